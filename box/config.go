package box

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-mk312/discovery"
	"github.com/arloliu/go-mk312/link"
	"github.com/arloliu/go-mk312/logger"
	"github.com/arloliu/go-mk312/mk312"
	"github.com/arloliu/go-mk312/register"
)

const (
	// DefaultWriteDrainLimit caps the queued writes applied per poll cycle.
	DefaultWriteDrainLimit   = 5
	DefaultDiscoveryInterval = 500 * time.Millisecond
	DefaultRetryPause        = 200 * time.Millisecond
	DefaultCommitPause       = 18 * time.Millisecond
	DefaultReconnectEvery    = 5
	DefaultFatalAfter        = 4
	DefaultEventQueueSize    = 64
)

// Dialer opens the link for target and tells whether the session must be encrypted.
type Dialer func(target string) (l link.Link, encrypted bool, err error)

// Discoverer returns the addresses of network attached boxes.
type Discoverer func(ctx context.Context) ([]string, error)

// DefaultDialer opens a network link for IPv4 targets (unencrypted) and a
// serial link otherwise (encrypted).
func DefaultDialer(target string) (link.Link, bool, error) {
	l, err := link.Dial(target)
	if err != nil {
		return nil, false, err
	}

	return l, !link.IsNetworkAddress(target), nil
}

// DefaultDiscoverer runs a UDP broadcast probe with default settings.
func DefaultDiscoverer(ctx context.Context) ([]string, error) {
	return discovery.Probe(ctx)
}

// Config holds the session worker settings.
type Config struct {
	drainLimit        int
	discovery         bool
	discoveryInterval time.Duration
	pollInterval      time.Duration
	retryPause        time.Duration
	commitPause       time.Duration
	reconnectEvery    int
	fatalAfter        int
	eventQueueSize    int

	dialer     Dialer
	discoverer Discoverer
	engineOpts []mk312.Option
	catalog    *register.Catalog
	logger     logger.Logger
}

// NewConfig creates a session configuration.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		drainLimit:        DefaultWriteDrainLimit,
		discovery:         true,
		discoveryInterval: DefaultDiscoveryInterval,
		retryPause:        DefaultRetryPause,
		commitPause:       DefaultCommitPause,
		reconnectEvery:    DefaultReconnectEvery,
		fatalAfter:        DefaultFatalAfter,
		eventQueueSize:    DefaultEventQueueSize,
		dialer:            DefaultDialer,
		discoverer:        DefaultDiscoverer,
		catalog:           register.DefaultCatalog(),
		logger:            logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *Config) WriteDrainLimit() int             { return c.drainLimit }
func (c *Config) Discovery() bool                  { return c.discovery }
func (c *Config) DiscoveryInterval() time.Duration { return c.discoveryInterval }
func (c *Config) PollInterval() time.Duration      { return c.pollInterval }
func (c *Config) RetryPause() time.Duration        { return c.retryPause }
func (c *Config) CommitPause() time.Duration       { return c.commitPause }
func (c *Config) ReconnectEvery() int              { return c.reconnectEvery }
func (c *Config) FatalAfter() int                  { return c.fatalAfter }
func (c *Config) EventQueueSize() int              { return c.eventQueueSize }
func (c *Config) Catalog() *register.Catalog       { return c.catalog }
func (c *Config) Logger() logger.Logger            { return c.logger }

// Option configures a session.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithWriteDrainLimit sets how many queued writes one poll cycle applies.
// The rest waits for the next cycle.
func WithWriteDrainLimit(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n <= 0 {
			return fmt.Errorf("box: write drain limit %d must be positive", n)
		}
		cfg.drainLimit = n

		return nil
	})
}

// WithDiscovery enables or disables UDP discovery while no target is set.
func WithDiscovery(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.discovery = enabled
		return nil
	})
}

// WithDiscoveryInterval sets the idle period between discovery probes.
func WithDiscoveryInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("box: discovery interval must be positive")
		}
		cfg.discoveryInterval = d

		return nil
	})
}

// WithPollInterval sets a pause between poll cycles. Zero polls back to back.
func WithPollInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 {
			return errors.New("box: poll interval must not be negative")
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithRetryPause sets the pause after a failed connect.
func WithRetryPause(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 {
			return errors.New("box: retry pause must not be negative")
		}
		cfg.retryPause = d

		return nil
	})
}

// WithCommitPause sets the settle time after a mode or advanced parameter commit.
func WithCommitPause(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 {
			return errors.New("box: commit pause must not be negative")
		}
		cfg.commitPause = d

		return nil
	})
}

// WithReconnectEvery forces a reconnect after every n consecutive poll errors.
func WithReconnectEvery(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n <= 0 {
			return fmt.Errorf("box: reconnect threshold %d must be positive", n)
		}
		cfg.reconnectEvery = n

		return nil
	})
}

// WithFatalAfter sets after how many consecutive connect failures status
// reports escalate from warning to error.
func WithFatalAfter(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n <= 0 {
			return fmt.Errorf("box: fatal threshold %d must be positive", n)
		}
		cfg.fatalAfter = n

		return nil
	})
}

// WithEventQueueSize sets the capacity of the event channel.
func WithEventQueueSize(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n <= 0 {
			return fmt.Errorf("box: event queue size %d must be positive", n)
		}
		cfg.eventQueueSize = n

		return nil
	})
}

// WithDialer replaces the link factory.
func WithDialer(d Dialer) Option {
	return optFunc(func(cfg *Config) error {
		if d == nil {
			return errors.New("box: dialer must not be nil")
		}
		cfg.dialer = d

		return nil
	})
}

// WithDiscoverer replaces the discovery probe.
func WithDiscoverer(d Discoverer) Option {
	return optFunc(func(cfg *Config) error {
		if d == nil {
			return errors.New("box: discoverer must not be nil")
		}
		cfg.discoverer = d

		return nil
	})
}

// WithEngineOptions passes options to every protocol engine the session creates.
// Encryption and logger are always set by the session.
func WithEngineOptions(opts ...mk312.Option) Option {
	return optFunc(func(cfg *Config) error {
		cfg.engineOpts = append(cfg.engineOpts, opts...)
		return nil
	})
}

// WithCatalog replaces the register catalog.
func WithCatalog(c *register.Catalog) Option {
	return optFunc(func(cfg *Config) error {
		if c == nil {
			return errors.New("box: catalog must not be nil")
		}
		cfg.catalog = c

		return nil
	})
}

// WithLogger sets the session logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("box: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
