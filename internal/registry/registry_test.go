package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsDuplicateNames(t *testing.T) {
	_, err := New([]Entry{
		{Name: "A", Host: "127.0.0.1", Port: 9001},
		{Name: "A", Host: "127.0.0.1", Port: 9002},
	})
	require.Error(t, err)
}

func TestNewPreservesOrder(t *testing.T) {
	reg, err := New([]Entry{
		{Name: "A", Host: "127.0.0.1", Port: 9001},
		{Name: "B", Host: "127.0.0.1", Port: 9002},
		{Name: "C", Host: "127.0.0.1", Port: 9003},
	})
	require.NoError(t, err)

	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, "A", list[0].Name)
	assert.Equal(t, "B", list[1].Name)
	assert.Equal(t, "C", list[2].Name)
}

func TestBackendStartsAlive(t *testing.T) {
	reg, err := New([]Entry{{Name: "A", Host: "127.0.0.1", Port: 9001}})
	require.NoError(t, err)

	b, ok := reg.Lookup("A")
	require.True(t, ok)
	assert.True(t, b.IsAlive())
	assert.Equal(t, Alive, b.Status())
}

func TestSetStatusExcludesDeadFromAlive(t *testing.T) {
	reg, err := New([]Entry{
		{Name: "A", Host: "127.0.0.1", Port: 9001},
		{Name: "B", Host: "127.0.0.1", Port: 9002},
	})
	require.NoError(t, err)

	b, _ := reg.Lookup("A")
	b.SetStatus(Dead)

	alive := reg.Alive()
	require.Len(t, alive, 1)
	assert.Equal(t, "B", alive[0].Name)
}

func TestConnCounter(t *testing.T) {
	reg, err := New([]Entry{{Name: "A", Host: "127.0.0.1", Port: 9001}})
	require.NoError(t, err)

	b, _ := reg.Lookup("A")
	b.IncConn()
	b.IncConn()
	b.DecConn()
	assert.Equal(t, uint64(1), b.Conns())
}

func TestAddressAndBaseURL(t *testing.T) {
	reg, err := New([]Entry{{Name: "A", Scheme: "http", Host: "10.0.0.1", Port: 9001, BasePath: "/api"}})
	require.NoError(t, err)

	b, _ := reg.Lookup("A")
	assert.Equal(t, "10.0.0.1:9001", b.Address())
	u := b.BaseURL()
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "10.0.0.1:9001", u.Host)
	assert.Equal(t, "/api", u.Path)
}
