// Package session implements the Session Mapper (C4): a mapping from
// session identifier to the backend a session has been pinned to, plus
// the persistence-type-dependent derivation of that identifier.
package session

import (
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/shoreline-labs/lb/config"
	"github.com/shoreline-labs/lb/internal/registry"
)

// Request is the subset of the forwarding pipeline's request
// descriptor the session mapper needs.
type Request struct {
	ClientHost string
	ServerHost string
	Cookie     string // value of the "session" cookie, "" if absent
}

// CookieName is the literal cookie name recognised for Cookie
// persistence.
const CookieName = "session"

// ID computes the session identifier for req under persistence. For
// Cookie persistence with no cookie present, a deterministic 64-bit
// non-cryptographic hash of (client host, server host) is used
// instead.
func ID(req Request, persistence config.PersistenceType) string {
	switch persistence {
	case config.PersistenceIP:
		return req.ClientHost
	case config.PersistenceCookie:
		if req.Cookie != "" {
			return req.Cookie
		}
		return syntheticID(req.ClientHost, req.ServerHost)
	default:
		return ""
	}
}

func syntheticID(clientHost, serverHost string) string {
	h := xxhash.New()
	h.WriteString(clientHost)
	h.WriteString(serverHost)
	return strconv.FormatUint(h.Sum64(), 10)
}

// Mapper is the shared session->backend table. Reads vastly outnumber
// writes (one write per new session, many reads per replayed request),
// so lookups take the read side of an RWMutex and only promote to the
// write side on a confirmed miss. A uniformly serialising lock would
// serialise the whole proxy and is not acceptable here.
type Mapper struct {
	mu    sync.RWMutex
	table map[string]*registry.Backend
}

// New constructs an empty session mapper.
func New() *Mapper {
	return &Mapper{table: make(map[string]*registry.Backend)}
}

// Resolve returns the backend cached for id. On a miss it calls
// fallback to obtain one, installs it under id, and returns it. Once
// installed, a given id always resolves to the same backend even if
// that backend later dies — affinity wins over liveness by design, and
// the caller is responsible for turning a dead selected backend into a
// 502 at forward time.
func (m *Mapper) Resolve(id string, fallback func() (*registry.Backend, bool)) (*registry.Backend, bool) {
	m.mu.RLock()
	if b, ok := m.table[id]; ok {
		m.mu.RUnlock()
		return b, true
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	// Re-check under the write lock: another goroutine may have
	// installed id while we waited for the lock.
	if b, ok := m.table[id]; ok {
		return b, true
	}

	b, ok := fallback()
	if !ok {
		return nil, false
	}
	m.table[id] = b
	return b, true
}

// Len reports the number of sessions currently tracked. Exposed for
// tests and diagnostics; this table grows without bound, and eviction
// is left unaddressed for now.
func (m *Mapper) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.table)
}
