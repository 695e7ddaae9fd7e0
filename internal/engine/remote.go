package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Remote adapts any OCR server speaking the shared wire contract:
//
//	GET  /health -> {"status": "ok"|"healthy"|..., "model": ...}
//	POST /ocr    -> {"success": bool, "text": ..., "structured_data": [...],
//	                 "error": ..., "confidence": ..., "model": ...}
//
// One Remote per descriptor; the DeepSeek, EasyOCR, PaddleOCR and olmOCR
// servers all speak this contract and differ only in endpoint, language
// support and whether they return structured sections.
type Remote struct {
	desc   Descriptor
	client *http.Client
}

// NewRemote creates an adapter for a remote OCR server. Timeouts are
// applied per call from the descriptor, not on the shared client, because
// probe and recognize budgets differ by an order of magnitude.
func NewRemote(desc Descriptor) *Remote {
	return &Remote{
		desc:   desc,
		client: &http.Client{},
	}
}

func (r *Remote) Descriptor() Descriptor { return r.desc }

// healthResponse is the /health payload. Extra keys are ignored.
type healthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

var readyStatuses = map[string]bool{
	"ok":      true,
	"healthy": true,
	"ready":   true,
}

// Probe issues the health check. Any non-2xx status, unrecognized status
// value, timeout or transport error is an error; the prober records it as
// unavailability rather than propagating it.
func (r *Remote) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.desc.probeTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.desc.Endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return Classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Failure{Kind: FailureBackendError, Detail: fmt.Sprintf("health status %d", resp.StatusCode)}
	}
	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return &Failure{Kind: FailureMalformed, Err: err}
	}
	if !readyStatuses[strings.ToLower(health.Status)] {
		return &Failure{Kind: FailureUnavailable, Detail: fmt.Sprintf("status %q", health.Status)}
	}
	return nil
}

type ocrRequest struct {
	Image  string `json:"image"`
	Lang   string `json:"lang,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

// ocrResponse handles both response shapes the servers emit: plain-text
// engines fill "text", structured engines fill "structured_data" plus
// "raw_text". Unknown extra keys are ignored for forward compatibility.
type ocrResponse struct {
	Success        bool            `json:"success"`
	Text           string          `json:"text"`
	RawText        string          `json:"raw_text"`
	StructuredData json.RawMessage `json:"structured_data"`
	Error          string          `json:"error"`
	Confidence     float64         `json:"confidence"`
	ProcessingTime float64         `json:"processing_time"`
	Model          string          `json:"model"`
}

// Recognize posts the preprocessed image and maps every failure mode onto
// the typed taxonomy. It never panics or returns a Go error.
func (r *Remote) Recognize(ctx context.Context, png []byte, opts Options) *RawResult {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.desc.recognizeTimeout())
	defer cancel()

	lang := opts.Language
	if lang == "" {
		lang = r.desc.Language
	}
	prompt := opts.Prompt
	if prompt == "" {
		prompt = r.desc.Prompt
	}
	body, err := json.Marshal(ocrRequest{
		Image:  base64.StdEncoding.EncodeToString(png),
		Lang:   lang,
		Prompt: prompt,
	})
	if err != nil {
		return failedResult(r.desc.ID, started, &Failure{Kind: FailureMalformed, Err: err})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.desc.Endpoint+"/ocr", bytes.NewReader(body))
	if err != nil {
		return failedResult(r.desc.ID, started, &Failure{Kind: FailureTransport, Err: err})
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return failedResult(r.desc.ID, started, Classify(err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return failedResult(r.desc.ID, started, Classify(err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failedResult(r.desc.ID, started, &Failure{
			Kind:   FailureBackendError,
			Detail: fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(payload, 200)),
		})
	}

	var out ocrResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return failedResult(r.desc.ID, started, &Failure{Kind: FailureMalformed, Err: err})
	}
	if !out.Success {
		detail := out.Error
		if detail == "" {
			detail = "engine reported failure"
		}
		return failedResult(r.desc.ID, started, &Failure{Kind: FailureBackendError, Detail: detail})
	}

	text := out.Text
	if text == "" {
		text = out.RawText
	}
	return &RawResult{
		EngineID:       r.desc.ID,
		Text:           text,
		Structured:     out.StructuredData,
		Confidence:     out.Confidence,
		ProcessingTime: time.Since(started),
		Success:        true,
	}
}

func (r *Remote) Close() error { return nil }

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
