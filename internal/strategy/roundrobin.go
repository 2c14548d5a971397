package strategy

import (
	"context"
	"sync/atomic"

	"github.com/shoreline-labs/lb/internal/metrics"
	"github.com/shoreline-labs/lb/internal/registry"
)

// roundRobin cycles through the registry in registry order,
// skipping dead backends. The cursor is advanced with a single atomic
// add so concurrent selections observe strictly monotonically
// increasing cursor values modulo the backend count.
type roundRobin struct {
	reg    *registry.Registry
	cursor atomic.Uint64
}

func newRoundRobin() *roundRobin {
	return &roundRobin{}
}

func (s *roundRobin) Name() string { return "RoundRobin" }

func (s *roundRobin) Configure(reg *registry.Registry, _ map[string]string) error {
	s.reg = reg
	return nil
}

func (s *roundRobin) Select(_ context.Context, _ Request) (*registry.Backend, bool) {
	backends := s.reg.List()
	count := len(backends)
	if count == 0 {
		metrics.StrategySelectionsTotal.WithLabelValues(s.Name(), "none").Inc()
		return nil, false
	}

	start := s.cursor.Add(1) - 1
	for i := 0; i < count; i++ {
		idx := int((start + uint64(i)) % uint64(count))
		if backends[idx].IsAlive() {
			metrics.StrategySelectionsTotal.WithLabelValues(s.Name(), "selected").Inc()
			return backends[idx], true
		}
	}
	metrics.StrategySelectionsTotal.WithLabelValues(s.Name(), "none").Inc()
	return nil, false
}
