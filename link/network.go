package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/arloliu/go-mk312/logger"
)

// NetworkLink is a Link over a TCP connection to a network bridge.
type NetworkLink struct {
	addr   string
	conn   net.Conn
	cfg    *Config
	logger logger.Logger

	mu     sync.Mutex
	closed bool
	buf    []byte
}

var _ Link = (*NetworkLink)(nil)

// OpenNetwork connects to host on the configured TCP port (8843 by default).
func OpenNetwork(host string, opts ...Option) (*NetworkLink, error) {
	cfg, err := newConfig(DefaultNetworkReadTimeout, opts)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(host, strconv.Itoa(cfg.port))
	dialer := &net.Dialer{KeepAlive: 30 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.dialTimeout)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("link: dial %s: %w", addr, err)
	}

	cfg.logger.Debug("link: network link connected", "localAddr", conn.LocalAddr(), "remoteAddr", conn.RemoteAddr())

	return newNetworkLink(addr, conn, cfg), nil
}

func newNetworkLink(addr string, conn net.Conn, cfg *Config) *NetworkLink {
	return &NetworkLink{
		addr:   addr,
		conn:   conn,
		cfg:    cfg,
		logger: cfg.logger,
		buf:    make([]byte, 1024),
	}
}

// Addr returns the remote "host:port".
func (l *NetworkLink) Addr() string { return l.addr }

func (l *NetworkLink) Send(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	l.logger.Debug("link: send", "addr", l.addr, "data", fmt.Sprintf("% x", data))

	if err := l.conn.SetWriteDeadline(time.Now().Add(l.cfg.dialTimeout)); err != nil {
		return fmt.Errorf("link: set write deadline: %w", err)
	}
	for written := 0; written < len(data); {
		n, err := l.conn.Write(data[written:])
		written += n
		if err != nil {
			return fmt.Errorf("link: write %s: %w", l.addr, err)
		}
	}

	return nil
}

func (l *NetworkLink) Receive(maxLen int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}
	if maxLen <= 0 {
		return []byte{}, nil
	}
	if maxLen > len(l.buf) {
		l.buf = make([]byte, maxLen)
	}

	if err := l.conn.SetReadDeadline(time.Now().Add(l.cfg.readTimeout)); err != nil {
		return nil, fmt.Errorf("link: set read deadline: %w", err)
	}

	n, err := l.conn.Read(l.buf[:maxLen])
	if err != nil && !isTimeout(err) {
		return nil, fmt.Errorf("link: read %s: %w", l.addr, err)
	}

	out := make([]byte, n)
	copy(out, l.buf[:n])
	l.logger.Debug("link: recv", "addr", l.addr, "data", fmt.Sprintf("% x", out), "want", maxLen)

	return out, nil
}

func (l *NetworkLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if err := l.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("link: close %s: %w", l.addr, err)
	}

	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
