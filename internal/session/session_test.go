package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoreline-labs/lb/config"
	"github.com/shoreline-labs/lb/internal/registry"
)

func testBackend(t *testing.T, name string) *registry.Backend {
	t.Helper()
	reg, err := registry.New([]registry.Entry{{Name: name, Host: "127.0.0.1", Port: 9001}})
	require.NoError(t, err)
	b, _ := reg.Lookup(name)
	return b
}

func TestIDCookiePresent(t *testing.T) {
	id := ID(Request{ClientHost: "1.2.3.4", ServerHost: "lb.local", Cookie: "abc123"}, config.PersistenceCookie)
	assert.Equal(t, "abc123", id)
}

func TestIDCookieAbsentIsDeterministic(t *testing.T) {
	req := Request{ClientHost: "1.2.3.4", ServerHost: "lb.local"}
	id1 := ID(req, config.PersistenceCookie)
	id2 := ID(req, config.PersistenceCookie)
	assert.Equal(t, id1, id2)
	assert.NotEmpty(t, id1)
}

func TestIDDiffersByClientHost(t *testing.T) {
	id1 := ID(Request{ClientHost: "1.2.3.4", ServerHost: "lb.local"}, config.PersistenceCookie)
	id2 := ID(Request{ClientHost: "5.6.7.8", ServerHost: "lb.local"}, config.PersistenceCookie)
	assert.NotEqual(t, id1, id2)
}

func TestIDIPPersistence(t *testing.T) {
	id := ID(Request{ClientHost: "9.9.9.9"}, config.PersistenceIP)
	assert.Equal(t, "9.9.9.9", id)
}

func TestIDNonePersistence(t *testing.T) {
	id := ID(Request{ClientHost: "9.9.9.9"}, config.PersistenceNone)
	assert.Equal(t, "", id)
}

// All requests carrying the same session id must resolve to
// the same backend while the mapping exists.
func TestResolveIsStickyAcrossRepeatedCalls(t *testing.T) {
	a := testBackend(t, "A")
	b := testBackend(t, "B")

	m := New()
	calls := 0
	fallback := func() (*registry.Backend, bool) {
		calls++
		if calls == 1 {
			return a, true
		}
		return b, true
	}

	first, ok := m.Resolve("session-1", fallback)
	require.True(t, ok)
	assert.Equal(t, "A", first.Name)

	for i := 0; i < 4; i++ {
		got, ok := m.Resolve("session-1", fallback)
		require.True(t, ok)
		assert.Equal(t, "A", got.Name, "sticky session must keep returning the first backend")
	}
	assert.Equal(t, 1, calls, "fallback must only run once for a repeated session id")
}

func TestResolveStaysStickyAfterBackendDies(t *testing.T) {
	a := testBackend(t, "A")
	m := New()
	b, ok := m.Resolve("s1", func() (*registry.Backend, bool) { return a, true })
	require.True(t, ok)
	require.Equal(t, "A", b.Name)

	a.SetStatus(registry.Dead)

	again, ok := m.Resolve("s1", func() (*registry.Backend, bool) { t.Fatal("fallback should not run on a hit"); return nil, false })
	require.True(t, ok)
	assert.Equal(t, "A", again.Name, "affinity must win over liveness once a session is pinned")
}

func TestResolveMissReturnsFalseWhenFallbackFails(t *testing.T) {
	m := New()
	_, ok := m.Resolve("s1", func() (*registry.Backend, bool) { return nil, false })
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len(), "a failed fallback must not install an entry")
}

func TestResolveConcurrentInsertSameID(t *testing.T) {
	a := testBackend(t, "A")
	m := New()

	var wg sync.WaitGroup
	var calls int
	var mu sync.Mutex
	fallback := func() (*registry.Backend, bool) {
		mu.Lock()
		calls++
		mu.Unlock()
		return a, true
	}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := m.Resolve("shared", fallback)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, m.Len())
}
