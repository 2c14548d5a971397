package strategy

import (
	"context"

	"github.com/shoreline-labs/lb/internal/metrics"
	"github.com/shoreline-labs/lb/internal/registry"
)

// uriPathHash resolves the request's exact path through an immutable
// table built once at Configure time. Matching is exact-equality on
// the request's path component as received, not a prefix or pattern
// match.
type uriPathHash struct {
	byPath map[string]*registry.Backend
}

func newURIPathHash() *uriPathHash {
	return &uriPathHash{}
}

func (s *uriPathHash) Name() string { return "URIPathHash" }

func (s *uriPathHash) Configure(reg *registry.Registry, mappings map[string]string) error {
	table := make(map[string]*registry.Backend, len(mappings))
	for name, path := range mappings {
		b, ok := reg.Lookup(name)
		if !ok {
			continue
		}
		table[path] = b
	}
	s.byPath = table
	return nil
}

func (s *uriPathHash) Select(_ context.Context, req Request) (*registry.Backend, bool) {
	b, ok := s.byPath[req.Path]
	if !ok || !b.IsAlive() {
		metrics.StrategySelectionsTotal.WithLabelValues(s.Name(), "none").Inc()
		return nil, false
	}
	metrics.StrategySelectionsTotal.WithLabelValues(s.Name(), "selected").Inc()
	return b, true
}
