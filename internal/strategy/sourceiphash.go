package strategy

import (
	"context"

	"github.com/shoreline-labs/lb/internal/metrics"
	"github.com/shoreline-labs/lb/internal/registry"
)

// sourceIPHash resolves the client host through an immutable table
// built once at Configure time, reusing the same `mappings` config
// section as URIPathHash but keyed by client IP instead of path.
type sourceIPHash struct {
	byHost map[string]*registry.Backend
}

func newSourceIPHash() *sourceIPHash {
	return &sourceIPHash{}
}

func (s *sourceIPHash) Name() string { return "SourceIPHash" }

func (s *sourceIPHash) Configure(reg *registry.Registry, mappings map[string]string) error {
	table := make(map[string]*registry.Backend, len(mappings))
	for name, host := range mappings {
		b, ok := reg.Lookup(name)
		if !ok {
			continue
		}
		table[host] = b
	}
	s.byHost = table
	return nil
}

func (s *sourceIPHash) Select(_ context.Context, req Request) (*registry.Backend, bool) {
	b, ok := s.byHost[req.ClientHost]
	if !ok || !b.IsAlive() {
		metrics.StrategySelectionsTotal.WithLabelValues(s.Name(), "none").Inc()
		return nil, false
	}
	metrics.StrategySelectionsTotal.WithLabelValues(s.Name(), "selected").Inc()
	return b, true
}
