package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// structuredReceiptPrompt asks a vision model for the same section array the
// structured OCR servers produce, so one mapper handles both.
const structuredReceiptPrompt = `Extract all information from this receipt and return it as a JSON array with the following structure:
[
  {"name": "merchant name", "address": "street address", "city": "city with postal code", "email": "email if available"},
  {"invoice": {"number": "invoice number", "date": "DD.MM.YYYY", "time": "HH:MM:SS"}},
  {"item": "item name", "quantity": 1, "unit_price": "price with currency", "total_price": "total with currency"},
  {"summary": {"total": "total with currency", "tax_included": "tax info"}},
  {"contact": {"phone": "phone number", "email": "email"}}
]
Extract ALL items, prices, and information visible on the receipt.
Return ONLY the JSON array, without markdown code blocks or commentary.`

// Gemini adapts Google's Gemini vision API as a structured-capable engine.
type Gemini struct {
	desc   Descriptor
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a Gemini-backed engine.
func NewGemini(desc Descriptor, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Gemini{
		desc:   desc,
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

func (g *Gemini) Descriptor() Descriptor { return g.desc }

// Probe reports availability from configuration alone: the API has no cheap
// status call, so failures surface during recognition and feed back through
// probe-cache invalidation.
func (g *Gemini) Probe(ctx context.Context) error {
	return nil
}

// Recognize sends the image with the structured prompt and keeps the raw
// response text alongside any parsed section array. A response that is not
// a complete JSON array is treated as plain text, never partially decoded.
func (g *Gemini) Recognize(ctx context.Context, png []byte, opts Options) *RawResult {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.desc.recognizeTimeout())
	defer cancel()

	prompt := opts.Prompt
	if prompt == "" {
		prompt = structuredReceiptPrompt
	}
	resp, err := g.model.GenerateContent(ctx, genai.ImageData("png", png), genai.Text(prompt))
	if err != nil {
		return failedResult(g.desc.ID, started, Classify(err))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return failedResult(g.desc.ID, started, &Failure{Kind: FailureBackendError, Detail: "empty response"})
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	text := stripCodeFences(sb.String())

	var structured json.RawMessage
	var probe []any
	if err := json.Unmarshal([]byte(text), &probe); err == nil {
		structured = json.RawMessage(text)
	}

	return &RawResult{
		EngineID:       g.desc.ID,
		Text:           text,
		Structured:     structured,
		ProcessingTime: time.Since(started),
		Success:        true,
	}
}

func (g *Gemini) Close() error { return g.client.Close() }

// stripCodeFences removes markdown code fences models wrap JSON in despite
// instructions not to.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
