// Package strategy implements the Strategy Engine (C3): a closed set
// of backend-selection algorithms behind a uniform interface, each
// owning its own concurrency-safe internal state.
package strategy

import (
	"context"
	"fmt"

	"github.com/shoreline-labs/lb/internal/registry"
)

// Request is the read-only view of a client request the strategy
// engine needs to make a selection decision.
type Request struct {
	Path       string
	ClientHost string
}

// Strategy is the closed interface every balancing algorithm
// implements. Configure runs once at startup; Select runs on the hot
// path and must never panic or block on I/O beyond what the variant's
// own semantics require (LeastLatency dials backends deliberately).
type Strategy interface {
	// Name returns the strategy's configuration name, used for
	// metrics labelling and one-shot warning logs.
	Name() string

	// Configure precomputes any tables the variant needs. mappings is
	// the name->path bindings from configuration, already resolved to
	// backend names that exist in reg.
	Configure(reg *registry.Registry, mappings map[string]string) error

	// Select returns the backend to forward to, or ok=false when no
	// eligible backend exists.
	Select(ctx context.Context, req Request) (backend *registry.Backend, ok bool)
}

// New builds the Strategy named by name. Unknown names are a fatal
// startup error.
func New(name string) (Strategy, error) {
	switch name {
	case "RoundRobin":
		return newRoundRobin(), nil
	case "Random":
		return newRandom(), nil
	case "URIPathHash":
		return newURIPathHash(), nil
	case "SourceIPHash":
		return newSourceIPHash(), nil
	case "LeastLatency":
		return newLeastLatency(), nil
	case "WeightedRoundRobin", "LeastConnections", "WeightedLeastConnections", "LeastTraffic":
		return newUnimplemented(name), nil
	default:
		return nil, fmt.Errorf("strategy: unknown strategy %q", name)
	}
}
