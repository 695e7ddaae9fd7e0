package engine

import (
	"context"
	"time"

	"receipttracker/internal/preprocess"
)

// Transport distinguishes in-process inference from a network call.
type Transport string

const (
	TransportLocal  Transport = "local"
	TransportRemote Transport = "remote"
)

const (
	defaultProbeTimeout     = 3 * time.Second
	defaultRecognizeTimeout = 60 * time.Second
)

// Descriptor describes one recognition backend. Descriptors are built from
// static configuration at process start and never mutated afterwards.
type Descriptor struct {
	ID         string
	Name       string
	Transport  Transport
	Structured bool // engine can return a structured section payload
	Endpoint   string
	Language   string
	Prompt     string
	Profile    preprocess.Profile

	// ProbeTimeout bounds the health check; RecognizeTimeout bounds the
	// recognition call and is per-backend because cold model loads on
	// remote engines can legitimately take a minute.
	ProbeTimeout     time.Duration
	RecognizeTimeout time.Duration
}

func (d Descriptor) probeTimeout() time.Duration {
	if d.ProbeTimeout > 0 {
		return d.ProbeTimeout
	}
	return defaultProbeTimeout
}

func (d Descriptor) recognizeTimeout() time.Duration {
	if d.RecognizeTimeout > 0 {
		return d.RecognizeTimeout
	}
	return defaultRecognizeTimeout
}

// Options are per-request hints forwarded to the backend.
type Options struct {
	Language string
	Prompt   string
}

// Engine is the uniform adapter contract. Probe is a lightweight health
// check; Recognize performs one recognition call on an already preprocessed
// PNG and never returns a Go error: failures come back as a RawResult with
// Success=false and a typed reason.
type Engine interface {
	Descriptor() Descriptor
	Probe(ctx context.Context) error
	Recognize(ctx context.Context, png []byte, opts Options) *RawResult
	Close() error
}
