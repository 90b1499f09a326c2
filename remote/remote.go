// Package remote receives intensity factors over UDP.
//
// A controller program sends ASCII datagrams holding one floating point factor
// per line. Each factor is clamped to [0, MaxFactor] and scales the channel
// levels chosen by the user, so 1 keeps a level, 0 mutes it and 2 doubles it.
// A line that is not a number is delivered as 0.
package remote

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/arloliu/go-mk312/logger"
)

const (
	DefaultPort      = 50000
	DefaultQueueSize = 16
	MaxFactor        = 2.0

	maxDatagram = 4096
)

// ErrInvalidFactor is returned by ParseFactor for lines that are not a number.
var ErrInvalidFactor = errors.New("remote: invalid factor")

type config struct {
	port      int
	queueSize int
	logger    logger.Logger
}

// Option configures a Listener.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error { return f(cfg) }

// WithPort sets the UDP port. Zero binds an ephemeral port.
func WithPort(port int) Option {
	return optFunc(func(cfg *config) error {
		if port < 0 || port > 65535 {
			return fmt.Errorf("remote: port %d out of range [0, 65535]", port)
		}
		cfg.port = port

		return nil
	})
}

// WithQueueSize sets the capacity of the factor channel.
func WithQueueSize(n int) Option {
	return optFunc(func(cfg *config) error {
		if n <= 0 {
			return fmt.Errorf("remote: queue size %d must be positive", n)
		}
		cfg.queueSize = n

		return nil
	})
}

// WithLogger sets the listener logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		if l == nil {
			return errors.New("remote: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

// Listener delivers factors received on a UDP port.
type Listener struct {
	conn    *net.UDPConn
	factors chan float64
	logger  logger.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// Listen binds the UDP port and starts receiving. The listener closes when
// ctx is cancelled or Close is called.
func Listen(ctx context.Context, opts ...Option) (*Listener, error) {
	cfg := &config{
		port:      DefaultPort,
		queueSize: DefaultQueueSize,
		logger:    logger.GetLogger(),
	}
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: cfg.port})
	if err != nil {
		return nil, fmt.Errorf("remote: listen: %w", err)
	}

	l := &Listener{
		conn:    conn,
		factors: make(chan float64, cfg.queueSize),
		logger:  cfg.logger,
		done:    make(chan struct{}),
	}

	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	go func() {
		defer stop()
		l.receive()
	}()

	return l, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Factors returns the channel of received factors. It is closed after the
// listener stops.
func (l *Listener) Factors() <-chan float64 {
	return l.factors
}

// Close stops the listener and waits for the receive loop to end.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = l.conn.Close()
	})
	<-l.done

	return err
}

func (l *Listener) receive() {
	defer close(l.done)
	defer close(l.factors)

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				l.logger.Warn("remote: receive failed", "error", err)
			}

			return
		}

		for _, line := range strings.Split(strings.TrimSpace(string(buf[:n])), "\n") {
			// a line that is not a number mutes the channels
			f, err := ParseFactor(line)
			if err != nil {
				l.logger.Warn("remote: invalid factor, muting", "from", from.String(), "error", err)
			}
			l.deliver(f)
		}
	}
}

// deliver keeps the newest factors when the consumer lags behind.
func (l *Listener) deliver(f float64) {
	for {
		select {
		case l.factors <- f:
			return
		default:
		}

		select {
		case <-l.factors:
		default:
		}
	}
}

// ParseFactor converts one line into a factor in [0, MaxFactor]. An empty
// line means 0. Lines that are not a number return 0 with ErrInvalidFactor.
func ParseFactor(line string) (float64, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, nil
	}

	f, err := strconv.ParseFloat(line, 64)
	if err != nil || math.IsNaN(f) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFactor, line)
	}

	return min(max(f, 0), MaxFactor), nil
}

// Apply scales a 0-255 level by factor, rounding and clamping the result.
func Apply(level int, factor float64) int {
	v := int(math.Round(float64(level) * factor))

	return min(max(v, 0), 255)
}
