package mk312_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-mk312/internal/devsim"
	"github.com/arloliu/go-mk312/link"
	"github.com/arloliu/go-mk312/mk312"
)

// newTestEngine opens a session on dev and wraps it in an engine with fast timings.
func newTestEngine(t *testing.T, dev *devsim.Device, opts ...mk312.Option) (*mk312.Engine, *devsim.Conn) {
	t.Helper()

	base := []mk312.Option{
		mk312.WithHandshakeDelay(0),
		mk312.WithReadTimeout(30 * time.Millisecond),
	}
	cfg, err := mk312.NewConfig(append(base, opts...)...)
	require.NoError(t, err)

	conn := dev.Open()
	engine, err := mk312.NewEngine(conn, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	return engine, conn
}

func connectedEngine(t *testing.T, dev *devsim.Device, opts ...mk312.Option) *mk312.Engine {
	t.Helper()

	engine, _ := newTestEngine(t, dev, opts...)
	require.NoError(t, engine.Connect(context.Background()))

	return engine
}

// noisyLink never goes quiet.
type noisyLink struct{}

var _ link.Link = noisyLink{}

func (noisyLink) Send([]byte) error { return nil }

func (noisyLink) Receive(int) ([]byte, error) { return []byte{0xff}, nil }

func (noisyLink) Close() error { return nil }

// scriptLink answers the n-th sync byte with handshake[n] and the
// unencrypted probe with probeReply.
type scriptLink struct {
	handshake  []byte
	probeReply []byte

	syncs   int
	pending []byte
}

var _ link.Link = (*scriptLink)(nil)

func (s *scriptLink) Send(data []byte) error {
	switch {
	case len(data) == 1 && data[0] == 0x00:
		if s.syncs < len(s.handshake) {
			s.pending = append(s.pending, s.handshake[s.syncs])
		}
		s.syncs++
	case bytes.Equal(data, mk312.UnencryptedProbe):
		s.pending = append(s.pending, s.probeReply...)
	}

	return nil
}

func (s *scriptLink) Receive(maxLen int) ([]byte, error) {
	n := min(maxLen, len(s.pending))
	out := s.pending[:n:n]
	s.pending = s.pending[n:]

	return out, nil
}

func (s *scriptLink) Close() error { return nil }
