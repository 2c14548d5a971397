// Package registry implements the Backend Registry (C1): an
// immutable-after-startup set of backend descriptors plus a mutable,
// lock-free liveness flag per backend.
package registry

import (
	"fmt"
	"net/url"
	"sync/atomic"
)

// Status is a backend's current liveness/eligibility state.
type Status int32

const (
	// Alive backends are eligible for selection by the strategy engine.
	Alive Status = iota
	Busy
	Dead
	Throttled
)

func (s Status) String() string {
	switch s {
	case Alive:
		return "Alive"
	case Busy:
		return "Busy"
	case Dead:
		return "Dead"
	case Throttled:
		return "Throttled"
	default:
		return "Unknown"
	}
}

// Backend is an immutable upstream descriptor with mutable status and
// connection-count fields. The immutable fields are set once at
// construction; status and conns are safe for concurrent access from
// the health supervisor (writer) and the forwarding pipeline (reader).
type Backend struct {
	Name     string
	Scheme   string
	Host     string
	Port     uint16
	BasePath string

	status atomic.Int32
	conns  atomic.Uint64
}

func newBackend(name, scheme, host string, port uint16, basePath string) *Backend {
	b := &Backend{
		Name:     name,
		Scheme:   scheme,
		Host:     host,
		Port:     port,
		BasePath: basePath,
	}
	b.status.Store(int32(Alive))
	return b
}

// Status returns the backend's current status with a lock-free read.
func (b *Backend) Status() Status {
	return Status(b.status.Load())
}

// SetStatus is the single mutating operation on liveness; called only
// by the health supervisor.
func (b *Backend) SetStatus(s Status) {
	b.status.Store(int32(s))
}

// IsAlive reports whether the backend may currently be selected.
func (b *Backend) IsAlive() bool {
	return b.Status() == Alive
}

// IncConn and DecConn track in-flight forwards for diagnostics and for
// any future least-connections style strategy.
func (b *Backend) IncConn() { b.conns.Add(1) }
func (b *Backend) DecConn() { b.conns.Add(^uint64(0)) }

// Conns returns the current in-flight connection count.
func (b *Backend) Conns() uint64 { return b.conns.Load() }

// Address returns the "host:port" authority used to rewrite outbound
// requests.
func (b *Backend) Address() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// BaseURL returns the scheme+authority+base-path this backend forwards
// under, with no trailing slash guarantees.
func (b *Backend) BaseURL() *url.URL {
	return &url.URL{
		Scheme: b.Scheme,
		Host:   b.Address(),
		Path:   b.BasePath,
	}
}

// Registry is the ordered, name-indexed set of backends built once at
// startup. It never grows or shrinks during operation.
type Registry struct {
	ordered []*Backend
	byName  map[string]*Backend
}

// Entry is the input shape used to construct a Registry, independent
// of the YAML config package so this package has no config dependency.
type Entry struct {
	Name     string
	Scheme   string
	Host     string
	Port     uint16
	BasePath string
}

// New builds a Registry keeping the order of entries. Duplicate
// names are a construction error and must be treated as a fatal
// startup error by the caller.
func New(entries []Entry) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]*Backend, len(entries)),
	}
	for _, e := range entries {
		if _, exists := r.byName[e.Name]; exists {
			return nil, fmt.Errorf("registry: duplicate backend name %q", e.Name)
		}
		b := newBackend(e.Name, e.Scheme, e.Host, e.Port, e.BasePath)
		r.ordered = append(r.ordered, b)
		r.byName[e.Name] = b
	}
	return r, nil
}

// Lookup returns the backend registered under name, if any.
func (r *Registry) Lookup(name string) (*Backend, bool) {
	b, ok := r.byName[name]
	return b, ok
}

// List returns the backends in the order they were passed to New. The slice itself
// is a fresh copy; backend pointers are shared.
func (r *Registry) List() []*Backend {
	out := make([]*Backend, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the total number of registered backends, alive or not.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// Alive returns only the currently alive backends, in registry order.
func (r *Registry) Alive() []*Backend {
	out := make([]*Backend, 0, len(r.ordered))
	for _, b := range r.ordered {
		if b.IsAlive() {
			out = append(out, b)
		}
	}
	return out
}
