package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shoreline-labs/lb/internal/registry"
)

func newTestRegistry(t *testing.T, names ...string) *registry.Registry {
	t.Helper()
	entries := make([]registry.Entry, len(names))
	for i, n := range names {
		entries[i] = registry.Entry{Name: n, Host: "127.0.0.1", Port: uint16(9000 + i)}
	}
	reg, err := registry.New(entries)
	require.NoError(t, err)
	return reg
}

// Round-robin across three backends yields A,B,C,A,B,C.
func TestRoundRobinSequence(t *testing.T) {
	reg := newTestRegistry(t, "A", "B", "C")
	s := newRoundRobin()
	require.NoError(t, s.Configure(reg, nil))

	want := []string{"A", "B", "C", "A", "B", "C"}
	for i, w := range want {
		b, ok := s.Select(context.Background(), Request{Path: "/p"})
		require.True(t, ok, "selection %d", i)
		require.Equal(t, w, b.Name, "selection %d", i)
	}
}

// Over K >= N requests the multiset of selections
// contains each backend floor(K/N) or ceil(K/N) times.
func TestRoundRobinFairness(t *testing.T) {
	reg := newTestRegistry(t, "A", "B", "C")
	s := newRoundRobin()
	require.NoError(t, s.Configure(reg, nil))

	const k = 11
	counts := map[string]int{}
	for i := 0; i < k; i++ {
		b, ok := s.Select(context.Background(), Request{})
		require.True(t, ok)
		counts[b.Name]++
	}

	lo, hi := k/3, (k+2)/3
	for _, name := range []string{"A", "B", "C"} {
		c := counts[name]
		require.GreaterOrEqualf(t, c, lo, "backend %s got %d", name, c)
		require.LessOrEqualf(t, c, hi, "backend %s got %d", name, c)
	}
}

func TestRoundRobinSkipsDead(t *testing.T) {
	reg := newTestRegistry(t, "A", "B", "C")
	a, _ := reg.Lookup("A")
	a.SetStatus(registry.Dead)

	s := newRoundRobin()
	require.NoError(t, s.Configure(reg, nil))

	for i := 0; i < 6; i++ {
		b, ok := s.Select(context.Background(), Request{})
		require.True(t, ok)
		require.NotEqual(t, "A", b.Name)
	}
}

func TestRoundRobinNoneAliveReturnsFalse(t *testing.T) {
	reg := newTestRegistry(t, "A")
	a, _ := reg.Lookup("A")
	a.SetStatus(registry.Dead)

	s := newRoundRobin()
	require.NoError(t, s.Configure(reg, nil))

	_, ok := s.Select(context.Background(), Request{})
	require.False(t, ok)
}

func TestRoundRobinEmptyRegistry(t *testing.T) {
	reg := newTestRegistry(t)
	s := newRoundRobin()
	require.NoError(t, s.Configure(reg, nil))

	_, ok := s.Select(context.Background(), Request{})
	require.False(t, ok)
}
