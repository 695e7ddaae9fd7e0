package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultProbeTTL = 30 * time.Second

// ProbeResult is the cached outcome of one availability check. Probe
// failures are data, never errors: the reason is captured in Detail.
type ProbeResult struct {
	EngineID  string
	Available bool
	Latency   time.Duration
	Detail    string
	CheckedAt time.Time
}

type probeEntry struct {
	result  ProbeResult
	expires time.Time
}

// Prober runs time-bounded health checks and caches the outcome per engine
// with a short TTL so repeated requests do not hammer cold backends.
// Entries expire independently; a sync.Map keeps reads lock-free across
// descriptors.
type Prober struct {
	ttl   time.Duration
	cache sync.Map // engine id -> probeEntry
	now   func() time.Time
}

// NewProber creates a prober. A zero ttl selects the default.
func NewProber(ttl time.Duration) *Prober {
	if ttl <= 0 {
		ttl = defaultProbeTTL
	}
	return &Prober{ttl: ttl, now: time.Now}
}

// Probe returns the cached availability of an engine, refreshing it when
// the entry is missing or expired.
func (p *Prober) Probe(ctx context.Context, e Engine) ProbeResult {
	id := e.Descriptor().ID
	if v, ok := p.cache.Load(id); ok {
		entry := v.(probeEntry)
		if p.now().Before(entry.expires) {
			return entry.result
		}
	}
	return p.refresh(ctx, e)
}

func (p *Prober) refresh(ctx context.Context, e Engine) ProbeResult {
	id := e.Descriptor().ID
	started := p.now()
	err := e.Probe(ctx)
	result := ProbeResult{
		EngineID:  id,
		Available: err == nil,
		Latency:   p.now().Sub(started),
		CheckedAt: started,
	}
	if err != nil {
		result.Detail = err.Error()
		slog.Debug("Engine probe failed", "engine", id, "reason", err)
	}
	p.cache.Store(id, probeEntry{result: result, expires: p.now().Add(p.ttl)})
	return result
}

// Invalidate drops the cached result for an engine. Called on a confirmed
// invocation failure so the next request re-probes immediately.
func (p *Prober) Invalidate(id string) {
	p.cache.Delete(id)
}

// ProbeAll checks several engines concurrently and returns results in the
// same order as the input. Probes are independent network calls with no
// shared mutable state beyond the cache, so parallelizing them shortens
// cascade latency.
func (p *Prober) ProbeAll(ctx context.Context, engines []Engine) []ProbeResult {
	results := make([]ProbeResult, len(engines))
	g, ctx := errgroup.WithContext(ctx)
	for i, e := range engines {
		g.Go(func() error {
			results[i] = p.Probe(ctx, e)
			return nil
		})
	}
	g.Wait()
	return results
}
