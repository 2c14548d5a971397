package strategy

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/shoreline-labs/lb/internal/metrics"
	"github.com/shoreline-labs/lb/internal/registry"
)

// leastLatency re-probes every alive backend on every call and picks
// the one with the smallest successful TCP-connect latency. It keeps
// no state between calls.
type leastLatency struct {
	reg     *registry.Registry
	timeout time.Duration
}

func newLeastLatency() *leastLatency {
	return &leastLatency{timeout: 2 * time.Second}
}

func (s *leastLatency) Name() string { return "LeastLatency" }

func (s *leastLatency) Configure(reg *registry.Registry, _ map[string]string) error {
	s.reg = reg
	return nil
}

type probeResult struct {
	index   int
	elapsed time.Duration
	ok      bool
}

func (s *leastLatency) Select(ctx context.Context, _ Request) (*registry.Backend, bool) {
	candidates := s.reg.Alive()
	if len(candidates) == 0 {
		metrics.StrategySelectionsTotal.WithLabelValues(s.Name(), "none").Inc()
		return nil, false
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results := make([]probeResult, len(candidates))
	var wg sync.WaitGroup
	wg.Add(len(candidates))
	for i, b := range candidates {
		go func(i int, b *registry.Backend) {
			defer wg.Done()
			dialer := &net.Dialer{}
			t0 := time.Now()
			conn, err := dialer.DialContext(probeCtx, "tcp", b.Address())
			if err != nil {
				results[i] = probeResult{index: i, ok: false}
				return
			}
			elapsed := time.Since(t0)
			conn.Close()
			results[i] = probeResult{index: i, elapsed: elapsed, ok: true}
		}(i, b)
	}
	wg.Wait()

	best := -1
	for i, r := range results {
		if !r.ok {
			continue
		}
		if best == -1 || r.elapsed < results[best].elapsed {
			best = i
		}
	}

	if best == -1 {
		metrics.StrategySelectionsTotal.WithLabelValues(s.Name(), "none").Inc()
		return nil, false
	}
	metrics.StrategySelectionsTotal.WithLabelValues(s.Name(), "selected").Inc()
	return candidates[best], true
}
