package engine

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeEngine is a scriptable in-memory engine.
type fakeEngine struct {
	desc       Descriptor
	probeErr   error
	probeCalls int
	result     *RawResult
}

func (f *fakeEngine) Descriptor() Descriptor { return f.desc }

func (f *fakeEngine) Probe(ctx context.Context) error {
	f.probeCalls++
	return f.probeErr
}

func (f *fakeEngine) Recognize(ctx context.Context, png []byte, opts Options) *RawResult {
	return f.result
}

func (f *fakeEngine) Close() error { return nil }

var _ = Describe("Prober", func() {
	var (
		prober *Prober
		eng    *fakeEngine
		now    time.Time
	)

	BeforeEach(func() {
		now = time.Date(2024, time.October, 19, 12, 0, 0, 0, time.UTC)
		prober = NewProber(30 * time.Second)
		prober.now = func() time.Time { return now }
		eng = &fakeEngine{desc: Descriptor{ID: "fake"}}
	})

	It("reports a healthy engine available", func() {
		res := prober.Probe(context.Background(), eng)
		Expect(res.Available).To(BeTrue())
		Expect(res.EngineID).To(Equal("fake"))
	})

	It("reports a failing engine unavailable with the reason", func() {
		eng.probeErr = errors.New("connection refused")
		res := prober.Probe(context.Background(), eng)
		Expect(res.Available).To(BeFalse())
		Expect(res.Detail).To(Equal("connection refused"))
	})

	It("caches the result within the TTL", func() {
		prober.Probe(context.Background(), eng)
		now = now.Add(10 * time.Second)
		prober.Probe(context.Background(), eng)
		Expect(eng.probeCalls).To(Equal(1))
	})

	It("re-probes after the TTL expires", func() {
		prober.Probe(context.Background(), eng)
		now = now.Add(31 * time.Second)
		prober.Probe(context.Background(), eng)
		Expect(eng.probeCalls).To(Equal(2))
	})

	It("caches failures just like successes", func() {
		eng.probeErr = errors.New("down")
		prober.Probe(context.Background(), eng)
		prober.Probe(context.Background(), eng)
		Expect(eng.probeCalls).To(Equal(1))
	})

	It("re-probes immediately after invalidation", func() {
		prober.Probe(context.Background(), eng)
		prober.Invalidate("fake")
		prober.Probe(context.Background(), eng)
		Expect(eng.probeCalls).To(Equal(2))
	})

	It("scopes invalidation to the named engine", func() {
		other := &fakeEngine{desc: Descriptor{ID: "other"}}
		prober.Probe(context.Background(), eng)
		prober.Probe(context.Background(), other)
		prober.Invalidate("other")
		prober.Probe(context.Background(), eng)
		prober.Probe(context.Background(), other)
		Expect(eng.probeCalls).To(Equal(1))
		Expect(other.probeCalls).To(Equal(2))
	})

	Describe("ProbeAll", func() {
		It("returns results in input order", func() {
			down := &fakeEngine{desc: Descriptor{ID: "down"}, probeErr: errors.New("down")}
			up := &fakeEngine{desc: Descriptor{ID: "up"}}
			results := prober.ProbeAll(context.Background(), []Engine{down, up})
			Expect(results).To(HaveLen(2))
			Expect(results[0].EngineID).To(Equal("down"))
			Expect(results[0].Available).To(BeFalse())
			Expect(results[1].EngineID).To(Equal("up"))
			Expect(results[1].Available).To(BeTrue())
		})

		It("fills the cache for subsequent single probes", func() {
			prober.ProbeAll(context.Background(), []Engine{eng})
			prober.Probe(context.Background(), eng)
			Expect(eng.probeCalls).To(Equal(1))
		})
	})
})
