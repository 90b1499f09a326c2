package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startResponder answers every datagram carrying token from its own port, and
// additionally from a second socket bound to a different port.
func startResponder(t *testing.T, token string) int {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	stray, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		_ = stray.Close()
	})

	go func() {
		buf := make([]byte, 64)
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			if string(buf[:n]) != token {
				continue
			}
			_, _ = conn.WriteToUDP(buf[:n], from)
			_, _ = conn.WriteToUDP(buf[:n], from) // duplicate reply
			_, _ = stray.WriteToUDP(buf[:n], from)
		}
	}()

	return conn.LocalAddr().(*net.UDPAddr).Port
}

func TestProbe_CollectsDistinctRepliesFromDiscoveryPort(t *testing.T) {
	port := startResponder(t, DefaultToken)

	hosts, err := Probe(context.Background(),
		WithBroadcastAddr("127.0.0.1"),
		WithPort(port),
		WithTimeout(200*time.Millisecond),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1"}, hosts)
}

func TestProbe_NoReply(t *testing.T) {
	port := startResponder(t, "other-token")

	start := time.Now()
	hosts, err := Probe(context.Background(),
		WithBroadcastAddr("127.0.0.1"),
		WithPort(port),
		WithTimeout(100*time.Millisecond),
	)
	require.NoError(t, err)
	assert.Empty(t, hosts)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestProbe_ContextCancelEndsWindow(t *testing.T) {
	port := startResponder(t, "other-token")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Probe(ctx,
		WithBroadcastAddr("127.0.0.1"),
		WithPort(port),
		WithTimeout(5*time.Second),
	)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProbe_InvalidOptions(t *testing.T) {
	_, err := Probe(context.Background(), WithPort(70000))
	require.Error(t, err)

	_, err = Probe(context.Background(), WithBroadcastAddr("not-an-ip"))
	require.Error(t, err)

	_, err = Probe(context.Background(), WithToken(""))
	require.Error(t, err)
}
