// Package link provides the byte transports used to reach an MK-312 controller.
//
// A Link is a half-duplex byte pipe with a bounded receive: Receive never blocks
// longer than the link's read timeout and returns an empty slice when nothing
// arrived. Two implementations exist:
//
//   - SerialLink drives a serial device at 19200 baud, 8N1, no flow control, and
//     holds an exclusive advisory lock on the device node while open.
//   - NetworkLink talks TCP to a network bridge on port 8843.
//
// Links never retry; retry policy belongs to the protocol engine and the session.
package link

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/arloliu/go-mk312/logger"
)

// Link is the transport capability consumed by the protocol engine.
type Link interface {
	// Send writes all of data to the device.
	Send(data []byte) error
	// Receive returns between 0 and maxLen bytes. An empty result with a nil
	// error means the read timeout elapsed with nothing to read.
	Receive(maxLen int) ([]byte, error)
	// Close releases the underlying resource. It is safe to call more than once.
	Close() error
}

const (
	DefaultBaudRate           = 19200
	DefaultSerialReadTimeout  = 200 * time.Millisecond
	DefaultNetworkReadTimeout = 100 * time.Millisecond
	DefaultNetworkPort        = 8843
	DefaultDialTimeout        = 3 * time.Second
)

var (
	// ErrPortLocked is returned when another process holds the serial device lock.
	ErrPortLocked = errors.New("link: device is locked by another process")
	// ErrClosed is returned by Send and Receive after Close.
	ErrClosed = errors.New("link: link closed")
)

var ipv4Pattern = regexp.MustCompile(`^[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}$`)

// IsNetworkAddress reports whether target is an IPv4 dotted-quad address.
// Anything else is treated as a serial device path.
func IsNetworkAddress(target string) bool {
	return ipv4Pattern.MatchString(target)
}

// Config holds the parameters shared by both link kinds.
type Config struct {
	baudRate    int
	readTimeout time.Duration
	port        int
	dialTimeout time.Duration
	logger      logger.Logger
}

func newConfig(readTimeout time.Duration, opts []Option) (*Config, error) {
	cfg := &Config{
		baudRate:    DefaultBaudRate,
		readTimeout: readTimeout,
		port:        DefaultNetworkPort,
		dialTimeout: DefaultDialTimeout,
		logger:      logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Option is a functional option for link construction.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithBaudRate overrides the serial baud rate.
func WithBaudRate(baud int) Option {
	return optFunc(func(cfg *Config) error {
		if baud <= 0 {
			return fmt.Errorf("link: invalid baud rate %d", baud)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithReadTimeout sets the per-call Receive timeout.
func WithReadTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 || d > 2*time.Second {
			return fmt.Errorf("link: read timeout %v out of range (0, 2s]", d)
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithPort overrides the TCP port of a network link.
func WithPort(port int) Option {
	return optFunc(func(cfg *Config) error {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("link: port %d out of range [1, 65535]", port)
		}
		cfg.port = port

		return nil
	})
}

// WithDialTimeout sets the TCP connect timeout.
func WithDialTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("link: dial timeout must be positive")
		}
		cfg.dialTimeout = d

		return nil
	})
}

// WithLogger sets the logger used for traffic dumps.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("link: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

// Dial opens the link matching target: a network link for IPv4 addresses,
// a serial link otherwise.
func Dial(target string, opts ...Option) (Link, error) {
	if target == "" {
		return nil, errors.New("link: empty target")
	}
	if IsNetworkAddress(target) {
		return OpenNetwork(target, opts...)
	}

	return OpenSerial(target, opts...)
}
