package remote

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-mk312/logger"
)

func TestParseFactor(t *testing.T) {
	tests := []struct {
		line string
		want float64
	}{
		{"", 0},
		{"  ", 0},
		{"1", 1},
		{"0.5\r", 0.5},
		{"1.75", 1.75},
		{"-3", 0},
		{"9", MaxFactor},
		{"+Inf", MaxFactor},
	}

	for _, tt := range tests {
		got, err := ParseFactor(tt.line)
		require.NoError(t, err, tt.line)
		assert.InDelta(t, tt.want, got, 1e-9, tt.line)
	}

	for _, line := range []string{"abc", "1,5", "NaN"} {
		got, err := ParseFactor(line)
		require.ErrorIs(t, err, ErrInvalidFactor, line)
		assert.Zero(t, got, line)
	}
}

func TestApply(t *testing.T) {
	assert.Equal(t, 100, Apply(100, 1))
	assert.Equal(t, 0, Apply(100, 0))
	assert.Equal(t, 50, Apply(100, 0.5))
	assert.Equal(t, 255, Apply(200, 2))
	assert.Equal(t, 0, Apply(-10, 1))
	assert.Equal(t, 38, Apply(25, 1.5))
}

func TestListener_ReceivesFactors(t *testing.T) {
	l, err := Listen(context.Background(), WithPort(0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	addr, ok := l.Addr().(*net.UDPAddr)
	require.True(t, ok)

	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: addr.Port})
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("0.5\nbogus\n3\n"))
	require.NoError(t, err)

	var got []float64
	timeout := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case f := <-l.Factors():
			got = append(got, f)
		case <-timeout:
			t.Fatalf("received %v, want 3 factors", got)
		}
	}
	assert.Equal(t, []float64{0.5, 0, MaxFactor}, got)
}

func TestListener_InvalidLineMutes(t *testing.T) {
	log := logger.NewMockLogger()
	log.On("Warn", mock.Anything, mock.Anything).Return()

	l, err := Listen(context.Background(), WithPort(0), WithLogger(log))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	addr, ok := l.Addr().(*net.UDPAddr)
	require.True(t, ok)

	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: addr.Port})
	require.NoError(t, err)
	defer conn.Close()

	for _, msg := range []string{"2\n", "garbage\n"} {
		_, err = conn.Write([]byte(msg))
		require.NoError(t, err)
	}

	var got []float64
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case f := <-l.Factors():
			got = append(got, f)
		case <-timeout:
			t.Fatalf("received %v, want 2 factors", got)
		}
	}
	assert.Equal(t, []float64{MaxFactor, 0}, got)
	log.AssertCalled(t, "Warn", "remote: invalid factor, muting", mock.Anything)
}

func TestListener_KeepsNewestWhenFull(t *testing.T) {
	l, err := Listen(context.Background(), WithPort(0), WithQueueSize(1))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	l.deliver(0.1)
	l.deliver(0.2)
	l.deliver(0.3)

	assert.InDelta(t, 0.3, <-l.Factors(), 1e-9)
}

func TestListener_ContextCancelCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l, err := Listen(ctx, WithPort(0))
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-l.Factors():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("factor channel not closed")
	}

	require.NoError(t, l.Close())
}

func TestListen_InvalidOptions(t *testing.T) {
	_, err := Listen(context.Background(), WithPort(70000))
	require.Error(t, err)
	_, err = Listen(context.Background(), WithQueueSize(0))
	require.Error(t, err)
	_, err = Listen(context.Background(), WithLogger(nil))
	require.Error(t, err)
}
