package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceIPHashExactMatch(t *testing.T) {
	reg := newTestRegistry(t, "A", "B")
	s := newSourceIPHash()
	require.NoError(t, s.Configure(reg, map[string]string{
		"A": "10.0.0.1",
		"B": "10.0.0.2",
	}))

	b, ok := s.Select(context.Background(), Request{ClientHost: "10.0.0.1"})
	require.True(t, ok)
	require.Equal(t, "A", b.Name)

	_, ok = s.Select(context.Background(), Request{ClientHost: "10.0.0.3"})
	require.False(t, ok)
}

func TestSourceIPHashIsPureFunctionOfClientHost(t *testing.T) {
	reg := newTestRegistry(t, "A", "B")
	s := newSourceIPHash()
	require.NoError(t, s.Configure(reg, map[string]string{"A": "10.0.0.1", "B": "10.0.0.2"}))

	for i := 0; i < 5; i++ {
		b, ok := s.Select(context.Background(), Request{ClientHost: "10.0.0.2"})
		require.True(t, ok)
		require.Equal(t, "B", b.Name)
	}
}
