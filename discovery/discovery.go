// Package discovery locates network-attached MK-312 bridges.
//
// A probe broadcasts a fixed ASCII token to the discovery port and collects the
// source addresses of replies arriving from that same port until the timeout
// window closes. Nothing is retained between probes.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"time"

	"github.com/arloliu/go-mk312/logger"
)

const (
	DefaultPort    = 8842
	DefaultToken   = "ICQ-MK312"
	DefaultTimeout = 500 * time.Millisecond
)

// Config holds probe parameters.
type Config struct {
	port      int
	token     []byte
	timeout   time.Duration
	broadcast net.IP
	logger    logger.Logger
}

// Option is a functional option for Probe.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithPort sets the UDP discovery port. Replies are only accepted from this port.
func WithPort(port int) Option {
	return optFunc(func(cfg *Config) error {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("discovery: port %d out of range [1, 65535]", port)
		}
		cfg.port = port

		return nil
	})
}

// WithToken sets the identification token sent in the broadcast.
func WithToken(token string) Option {
	return optFunc(func(cfg *Config) error {
		if token == "" {
			return errors.New("discovery: token must not be empty")
		}
		cfg.token = []byte(token)

		return nil
	})
}

// WithTimeout sets the reply collection window.
func WithTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("discovery: timeout must be positive")
		}
		cfg.timeout = d

		return nil
	})
}

// WithBroadcastAddr sends the probe to addr instead of 255.255.255.255.
func WithBroadcastAddr(addr string) Option {
	return optFunc(func(cfg *Config) error {
		ip := net.ParseIP(addr)
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("discovery: invalid IPv4 address %q", addr)
		}
		cfg.broadcast = ip.To4()

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("discovery: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

// Probe broadcasts the discovery token and returns the distinct addresses that
// replied within the timeout, sorted.
func Probe(ctx context.Context, opts ...Option) ([]string, error) {
	cfg := &Config{
		port:      DefaultPort,
		token:     []byte(DefaultToken),
		timeout:   DefaultTimeout,
		broadcast: net.IPv4bcast,
		logger:    logger.GetLogger(),
	}
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	conn, err := listenBroadcast()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	dst := &net.UDPAddr{IP: cfg.broadcast, Port: cfg.port}
	if _, err := conn.WriteToUDP(cfg.token, dst); err != nil {
		return nil, fmt.Errorf("discovery: send probe: %w", err)
	}

	start := time.Now()
	deadline := start.Add(cfg.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("discovery: set deadline: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	hosts := make(map[string]struct{})
	buf := make([]byte, 1024)

	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				break
			}

			return nil, fmt.Errorf("discovery: receive: %w", err)
		}

		cfg.logger.Debug("discovery: reply",
			"from", from.String(),
			"elapsed", time.Since(start),
			"data", fmt.Sprintf("%q", buf[:n]))

		if from.Port == cfg.port {
			hosts[from.IP.String()] = struct{}{}
		}
	}

	result := make([]string, 0, len(hosts))
	for h := range hosts {
		result = append(result, h)
	}
	slices.Sort(result)

	return result, nil
}
