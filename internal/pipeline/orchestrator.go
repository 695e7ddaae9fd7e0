package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"receipttracker/internal/engine"
	"receipttracker/internal/parse"
	"receipttracker/internal/preprocess"
)

// State is the orchestrator's per-request processing state.
type State int

const (
	StateIdle State = iota
	StateProbing
	StateInvoking
	StateNormalizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StateInvoking:
		return "invoking"
	case StateNormalizing:
		return "normalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options control one request.
type Options struct {
	// Engine pins a specific backend by id. With AllowFallback the rest
	// of the cascade follows the pinned engine; without it a pinned
	// failure is surfaced verbatim.
	Engine        string
	AllowFallback bool
	Language      string
	Prompt        string
}

// Orchestrator is the pipeline's public entry point. It owns the
// probe/invoke/normalize sequence and the failure policy; all of its
// configuration is injected at construction so cascade behavior is
// deterministic under test.
type Orchestrator struct {
	policy *Policy
	prober *engine.Prober
}

// New wires the orchestrator from the configured engines.
func New(engines []engine.Engine, prober *engine.Prober) *Orchestrator {
	return &Orchestrator{
		policy: NewPolicy(engines),
		prober: prober,
	}
}

// Engines exposes the cascade order, primarily for status endpoints.
func (o *Orchestrator) Engines() []engine.Engine {
	return o.policy.Engines()
}

// Prober exposes the shared probe cache.
func (o *Orchestrator) Prober() *engine.Prober {
	return o.prober
}

// Process turns a photographed document into a canonical receipt record.
// The request walks Idle -> Probing -> Invoking -> Normalizing -> Done,
// returning to Probing for the next candidate when an invocation fails.
// Recognition is attempted one candidate at a time; only probing runs in
// parallel. A non-nil error is always a *PipelineFailure carrying the
// ordered attempt trail.
func (o *Orchestrator) Process(ctx context.Context, data []byte, contentType string, opts Options) (*parse.ParsedReceipt, error) {
	img, err := preprocess.Decode(data, contentType)
	if err != nil {
		return nil, fmt.Errorf("decoding input: %w", err)
	}
	sel, err := o.policy.newSelection(opts)
	if err != nil {
		return nil, err
	}

	state := StateIdle
	// Warm the probe cache for the whole cascade up front; the probes are
	// independent and parallel probing shortens cascade latency.
	if len(sel.candidates) > 1 {
		o.transition(&state, StateProbing)
		o.prober.ProbeAll(ctx, sel.candidates)
	}

	for {
		cand, ok := sel.next()
		if !ok {
			break
		}
		desc := cand.Descriptor()

		if ctx.Err() != nil {
			o.transition(&state, StateFailed)
			sel.record(desc.ID, engine.FailureCancelled, ctx.Err().Error(), false)
			return nil, &PipelineFailure{Attempts: sel.attempts, Cancelled: true}
		}

		o.transition(&state, StateProbing)
		probe := o.prober.Probe(ctx, cand)
		if !probe.Available {
			sel.record(desc.ID, engine.FailureUnavailable, probe.Detail, false)
			continue
		}

		o.transition(&state, StateInvoking)
		png, err := preprocess.EncodePNG(preprocess.Apply(img, desc.Profile))
		if err != nil {
			sel.record(desc.ID, engine.FailureMalformed, err.Error(), false)
			continue
		}
		res := cand.Recognize(ctx, png, engine.Options{Language: opts.Language, Prompt: opts.Prompt})
		if !res.Success {
			// Fast-negative feedback: the next request re-probes this
			// backend instead of trusting a stale healthy entry.
			o.prober.Invalidate(desc.ID)
			sel.record(desc.ID, res.Failure.Kind, res.Failure.Error(), true)
			if res.Failure.Kind == engine.FailureCancelled {
				o.transition(&state, StateFailed)
				return nil, &PipelineFailure{Attempts: sel.attempts, Cancelled: true}
			}
			slog.Warn("Engine invocation failed",
				"engine", desc.ID,
				"reason", res.Failure.Kind,
				"selection", sel.state,
			)
			continue
		}

		o.transition(&state, StateNormalizing)
		rec := parse.Normalize(parse.Input{
			Text:       res.Text,
			Structured: res.Structured,
			Engine:     res.EngineID,
			Confidence: res.Confidence,
		})

		o.transition(&state, StateDone)
		slog.Info("Receipt processed",
			"engine", desc.ID,
			"duration", res.ProcessingTime,
			"confidence", rec.Confidence,
			"items", len(rec.Items),
		)
		return rec, nil
	}

	o.transition(&state, StateFailed)
	slog.Warn("All engines exhausted", "attempts", len(sel.attempts))
	return nil, &PipelineFailure{Attempts: sel.attempts}
}

func (o *Orchestrator) transition(state *State, next State) {
	if *state == next {
		return
	}
	slog.Debug("Pipeline state", "from", *state, "to", next)
	*state = next
}
