package engine

import (
	"context"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract runs OCR in-process via the gosseract binding. It is the
// terminal fallback of the cascade: always available, plain text only.
type Tesseract struct {
	desc      Descriptor
	newClient func() *gosseract.Client
}

// NewTesseract creates the local engine. Descriptor.Language holds the
// tesseract language stack, e.g. "eng" or "eng+jpn".
func NewTesseract(desc Descriptor) *Tesseract {
	return &Tesseract{
		desc:      desc,
		newClient: gosseract.NewClient,
	}
}

func (t *Tesseract) Descriptor() Descriptor { return t.desc }

// Probe always succeeds: the engine runs in-process and has no cold start.
func (t *Tesseract) Probe(ctx context.Context) error {
	return nil
}

// Recognize runs tesseract on the preprocessed image. A fresh client per
// call keeps invocations independent.
func (t *Tesseract) Recognize(ctx context.Context, png []byte, opts Options) *RawResult {
	started := time.Now()
	if err := ctx.Err(); err != nil {
		return failedResult(t.desc.ID, started, Classify(err))
	}

	c := t.newClient()
	defer c.Close()

	if err := c.SetImageFromBytes(png); err != nil {
		return failedResult(t.desc.ID, started, &Failure{Kind: FailureBackendError, Err: err})
	}
	lang := opts.Language
	if lang == "" {
		lang = t.desc.Language
	}
	if lang != "" {
		if err := c.SetLanguage(strings.Split(lang, "+")...); err != nil {
			return failedResult(t.desc.ID, started, &Failure{Kind: FailureBackendError, Err: err})
		}
	}
	text, err := c.Text()
	if err != nil {
		return failedResult(t.desc.ID, started, &Failure{Kind: FailureBackendError, Err: err})
	}

	return &RawResult{
		EngineID:       t.desc.ID,
		Text:           strings.TrimSpace(text),
		ProcessingTime: time.Since(started),
		Success:        true,
	}
}

func (t *Tesseract) Close() error { return nil }
