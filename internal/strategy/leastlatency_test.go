package strategy

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shoreline-labs/lb/internal/registry"
)

func listenOn(t *testing.T) (host string, port uint16, closeFn func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	u, err := url.Parse("tcp://" + ln.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return u.Hostname(), uint16(p), func() { ln.Close() }
}

// Least-latency picks one of the alive backends that accept the TCP
// connect. Both listeners here are local and equally fast, so either
// may win the race.
func TestLeastLatencyPicksReachableBackend(t *testing.T) {
	fastHost, fastPort, closeFast := listenOn(t)
	defer closeFast()
	slowHost, slowPort, closeSlow := listenOn(t)
	defer closeSlow()

	reg, err := registry.New([]registry.Entry{
		{Name: "fast", Host: fastHost, Port: fastPort},
		{Name: "slow", Host: slowHost, Port: slowPort},
	})
	require.NoError(t, err)

	s := newLeastLatency()
	require.NoError(t, s.Configure(reg, nil))

	b, ok := s.Select(context.Background(), Request{})
	require.True(t, ok)
	require.Contains(t, []string{"fast", "slow"}, b.Name)
}

func TestLeastLatencyNoneReachable(t *testing.T) {
	reg, err := registry.New([]registry.Entry{
		{Name: "unreachable", Host: "127.0.0.1", Port: 1}, // reserved, connect refused/filtered
	})
	require.NoError(t, err)

	s := newLeastLatency()
	require.NoError(t, s.Configure(reg, nil))

	_, ok := s.Select(context.Background(), Request{})
	require.False(t, ok)
}
