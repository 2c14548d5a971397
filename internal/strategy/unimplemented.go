package strategy

import (
	"context"
	"sync"

	"github.com/shoreline-labs/lb/internal/metrics"
	"github.com/shoreline-labs/lb/internal/registry"
	"github.com/shoreline-labs/lb/logger"
)

// unimplemented covers the variants declared by the configuration
// schema but not implemented by this engine: WeightedRoundRobin,
// LeastConnections, WeightedLeastConnections, LeastTraffic. Configure
// is a no-op; Select always reports no eligible backend and logs a
// single warning per process lifetime.
type unimplemented struct {
	name     string
	warnOnce sync.Once
}

func newUnimplemented(name string) *unimplemented {
	return &unimplemented{name: name}
}

func (s *unimplemented) Name() string { return s.name }

func (s *unimplemented) Configure(_ *registry.Registry, _ map[string]string) error {
	return nil
}

func (s *unimplemented) Select(_ context.Context, _ Request) (*registry.Backend, bool) {
	s.warnOnce.Do(func() {
		logger.Warn("strategy.unimplemented", "strategy is declared but not implemented; treating selections as no-backend-available", "strategy", s.name)
	})
	metrics.StrategySelectionsTotal.WithLabelValues(s.Name(), "unimplemented").Inc()
	return nil, false
}
