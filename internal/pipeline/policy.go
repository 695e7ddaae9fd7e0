package pipeline

import (
	"fmt"

	"receipttracker/internal/engine"
)

// SelectionState is the explicit state of one request's engine selection.
// The cascade is a linear walk through the candidate list; there is no
// recursive re-entry, so the failure trail stays linear and inspectable.
type SelectionState int

const (
	SelectionAuto SelectionState = iota
	SelectionPinned
	SelectionExhausted
)

func (s SelectionState) String() string {
	switch s {
	case SelectionAuto:
		return "auto"
	case SelectionPinned:
		return "pinned"
	case SelectionExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Policy owns the fixed priority order of the configured engines:
// structured-capable remote engines first, plain remote engines next, and
// local engines last as the terminal fallback. The order is computed once
// at construction from the immutable descriptors.
type Policy struct {
	ordered []engine.Engine
	byID    map[string]engine.Engine
}

// NewPolicy builds the cascade order from the registered engines,
// preserving registration order within each priority tier.
func NewPolicy(engines []engine.Engine) *Policy {
	p := &Policy{byID: make(map[string]engine.Engine, len(engines))}
	for _, e := range engines {
		p.byID[e.Descriptor().ID] = e
	}
	for _, tier := range []func(engine.Descriptor) bool{
		func(d engine.Descriptor) bool { return d.Transport == engine.TransportRemote && d.Structured },
		func(d engine.Descriptor) bool { return d.Transport == engine.TransportRemote && !d.Structured },
		func(d engine.Descriptor) bool { return d.Transport == engine.TransportLocal },
	} {
		for _, e := range engines {
			if tier(e.Descriptor()) {
				p.ordered = append(p.ordered, e)
			}
		}
	}
	return p
}

// Engines returns the cascade in priority order.
func (p *Policy) Engines() []engine.Engine {
	return p.ordered
}

// Lookup returns the engine with the given descriptor id.
func (p *Policy) Lookup(id string) (engine.Engine, bool) {
	e, ok := p.byID[id]
	return e, ok
}

// selection walks the candidates for a single request and accumulates the
// attempt trail. Exhausted is terminal for the request.
type selection struct {
	state      SelectionState
	candidates []engine.Engine
	idx        int
	attempts   []Attempt
}

// newSelection resolves the request options into a candidate list. A
// pinned engine is attempted alone unless the caller explicitly asked for
// pinned-with-fallback, in which case the remaining cascade follows it; an
// operator's choice is never silently overridden.
func (p *Policy) newSelection(opts Options) (*selection, error) {
	if opts.Engine == "" {
		return &selection{state: SelectionAuto, candidates: p.ordered}, nil
	}
	pinned, ok := p.byID[opts.Engine]
	if !ok {
		return nil, fmt.Errorf("unknown engine %q", opts.Engine)
	}
	candidates := []engine.Engine{pinned}
	state := SelectionPinned
	if opts.AllowFallback {
		state = SelectionAuto
		for _, e := range p.ordered {
			if e.Descriptor().ID != opts.Engine {
				candidates = append(candidates, e)
			}
		}
	}
	return &selection{state: state, candidates: candidates}, nil
}

// next yields the next candidate, transitioning to Exhausted when the list
// runs out.
func (s *selection) next() (engine.Engine, bool) {
	if s.idx >= len(s.candidates) {
		s.state = SelectionExhausted
		return nil, false
	}
	e := s.candidates[s.idx]
	s.idx++
	return e, true
}

// record appends one failed attempt to the trail.
func (s *selection) record(id string, kind engine.FailureKind, detail string, invoked bool) {
	s.attempts = append(s.attempts, Attempt{
		EngineID: id,
		Kind:     kind,
		Detail:   detail,
		Invoked:  invoked,
	})
}
