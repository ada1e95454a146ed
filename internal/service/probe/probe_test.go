package probe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) (int, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port, func() { _ = ln.Close() }
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestIsReachableOpenPort(t *testing.T) {
	port, stop := listen(t)
	defer stop()

	res := New(time.Second).IsReachable(context.Background(), "127.0.0.1", []int{port})
	assert.True(t, res.Reachable)
	assert.Equal(t, port, res.Port)
	require.NotNil(t, res.LatencyMs)
	assert.GreaterOrEqual(t, *res.LatencyMs, int64(0))
}

func TestIsReachableFallsThroughClosedPorts(t *testing.T) {
	closed := closedPort(t)
	port, stop := listen(t)
	defer stop()

	res := New(time.Second).IsReachable(context.Background(), "127.0.0.1", []int{closed, port})
	assert.True(t, res.Reachable)
	assert.Equal(t, port, res.Port)
}

func TestIsReachableAllClosed(t *testing.T) {
	res := New(time.Second).IsReachable(context.Background(), "127.0.0.1", []int{closedPort(t)})
	assert.False(t, res.Reachable)
	assert.Zero(t, res.Port)
	assert.Nil(t, res.LatencyMs)
	assert.Error(t, res.Err)
}

func TestIsReachableNoHost(t *testing.T) {
	res := New(time.Second).IsReachable(context.Background(), " ", []int{22})
	assert.False(t, res.Reachable)
	assert.Nil(t, res.LatencyMs)
}

func TestServerPorts(t *testing.T) {
	assert.Equal(t, []int{22, 80, 443}, ServerPorts(22))
	assert.Equal(t, []int{443, 80}, ServerPorts(443))
	assert.Equal(t, []int{80, 443}, ServerPorts(0))
}
