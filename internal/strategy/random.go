package strategy

import (
	"context"
	"math/rand/v2"

	"github.com/shoreline-labs/lb/internal/metrics"
	"github.com/shoreline-labs/lb/internal/registry"
)

// random samples a uniform index and retries by linear scan from
// there if the landed backend isn't alive. math/rand/v2's global
// functions are already safe for concurrent use, so no per-instance
// lock is needed.
type random struct {
	reg *registry.Registry
}

func newRandom() *random {
	return &random{}
}

func (s *random) Name() string { return "Random" }

func (s *random) Configure(reg *registry.Registry, _ map[string]string) error {
	s.reg = reg
	return nil
}

func (s *random) Select(_ context.Context, _ Request) (*registry.Backend, bool) {
	backends := s.reg.List()
	count := len(backends)
	if count == 0 {
		metrics.StrategySelectionsTotal.WithLabelValues(s.Name(), "none").Inc()
		return nil, false
	}

	start := rand.N(count)
	for i := 0; i < count; i++ {
		idx := (start + i) % count
		if backends[idx].IsAlive() {
			metrics.StrategySelectionsTotal.WithLabelValues(s.Name(), "selected").Inc()
			return backends[idx], true
		}
	}
	metrics.StrategySelectionsTotal.WithLabelValues(s.Name(), "none").Inc()
	return nil, false
}
