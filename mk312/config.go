package mk312

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-mk312/logger"
)

// Protocol constants.
const (
	HandshakeAck      byte = 0x07
	PokeAck           byte = 0x06
	KeyConstant       byte = 0x55
	UnencryptedAccept byte = 0x69

	// HandshakeRun is the number of consecutive acks that completes a handshake.
	HandshakeRun = 3
)

// UnencryptedProbe is sent instead of a key exchange by hosts talking to
// network bridges that waive encryption.
var UnencryptedProbe = []byte{0x2f, 0x42, 0x42}

// Defaults.
const (
	DefaultHandshakeAttempts      = 12
	DefaultHandshakeDelay         = 100 * time.Millisecond
	DefaultKeyNegotiationAttempts = 12
	DefaultReadTimeout            = 500 * time.Millisecond
	DefaultFlushLimit             = 5
)

// Config holds protocol engine settings.
type Config struct {
	encryption        bool
	hostKey           byte
	handshakeAttempts int
	handshakeDelay    time.Duration
	keyAttempts       int
	readTimeout       time.Duration
	flushLimit        int
	decryptReplies    bool
	logger            logger.Logger
}

// NewConfig creates an engine configuration. Encryption is on by default.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		encryption:        true,
		handshakeAttempts: DefaultHandshakeAttempts,
		handshakeDelay:    DefaultHandshakeDelay,
		keyAttempts:       DefaultKeyNegotiationAttempts,
		readTimeout:       DefaultReadTimeout,
		flushLimit:        DefaultFlushLimit,
		logger:            logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *Config) Encryption() bool              { return c.encryption }
func (c *Config) HostKey() byte                 { return c.hostKey }
func (c *Config) HandshakeAttempts() int        { return c.handshakeAttempts }
func (c *Config) HandshakeDelay() time.Duration { return c.handshakeDelay }
func (c *Config) KeyNegotiationAttempts() int   { return c.keyAttempts }
func (c *Config) ReadTimeout() time.Duration    { return c.readTimeout }
func (c *Config) FlushLimit() int               { return c.flushLimit }
func (c *Config) DecryptReplies() bool          { return c.decryptReplies }
func (c *Config) Logger() logger.Logger         { return c.logger }

// Option configures an engine.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithEncryption selects the encrypted key exchange (true) or the unencrypted
// probe used by network bridges (false).
func WithEncryption(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.encryption = enabled
		return nil
	})
}

// WithHostKey sets the host half of the key exchange.
func WithHostKey(key byte) Option {
	return optFunc(func(cfg *Config) error {
		cfg.hostKey = key
		return nil
	})
}

// WithHandshakeAttempts bounds the number of sync bytes sent during the handshake.
func WithHandshakeAttempts(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < HandshakeRun {
			return fmt.Errorf("mk312: handshake attempts %d less than %d", n, HandshakeRun)
		}
		cfg.handshakeAttempts = n

		return nil
	})
}

// WithHandshakeDelay sets the pause between a sync byte and reading its reply.
func WithHandshakeDelay(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 {
			return errors.New("mk312: handshake delay must not be negative")
		}
		cfg.handshakeDelay = d

		return nil
	})
}

// WithKeyNegotiationAttempts bounds the key exchange retries.
func WithKeyNegotiationAttempts(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n <= 0 {
			return fmt.Errorf("mk312: key negotiation attempts %d must be positive", n)
		}
		cfg.keyAttempts = n

		return nil
	})
}

// WithReadTimeout sets how long a frame read keeps collecting bytes.
func WithReadTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 || d > 10*time.Second {
			return fmt.Errorf("mk312: read timeout %v out of range (0, 10s]", d)
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithFlushLimit sets how many non-empty reads a flush tolerates before
// declaring the link noisy.
func WithFlushLimit(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 {
			return fmt.Errorf("mk312: flush limit %d must not be negative", n)
		}
		cfg.flushLimit = n

		return nil
	})
}

// WithDecryptReplies XORs replies with the session key before validating them.
// MK-312BT firmware replies in clear, so this is off by default.
func WithDecryptReplies(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.decryptReplies = enabled
		return nil
	})
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("mk312: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
