package mk312

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-mk312/internal/pool"
	"github.com/arloliu/go-mk312/link"
	"github.com/arloliu/go-mk312/logger"
)

// cipherKeyAddr is the device register holding the session key.
const cipherKeyAddr uint16 = 0x4213

// flushChunk is the read size used while draining stale bytes.
const flushChunk = 1024

// Engine speaks the MK-312 wire protocol over a Link.
//
// Requests are encrypted with the session key once it is negotiated. Replies
// are read in clear by default, which is what the box firmware sends; a
// protocol that also XORs incoming frames before checksum validation needs
// WithDecryptReplies(true).
//
// This type is NOT goroutine-safe. A single owner (the session worker) drives
// it, matching the half-duplex request/reply nature of the device.
type Engine struct {
	link    link.Link
	cfg     *Config
	logger  logger.Logger
	metrics EngineMetrics

	key       byte
	keyed     bool
	connected bool
	closed    bool
}

// NewEngine wraps l. A nil cfg selects the defaults of NewConfig.
func NewEngine(l link.Link, cfg *Config) (*Engine, error) {
	if l == nil {
		return nil, errors.New("mk312: link is nil")
	}
	if cfg == nil {
		var err error
		if cfg, err = NewConfig(); err != nil {
			return nil, err
		}
	}

	return &Engine{
		link:   l,
		cfg:    cfg,
		logger: cfg.logger,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() *Config { return e.cfg }

// Metrics returns the engine counters.
func (e *Engine) Metrics() *EngineMetrics { return &e.metrics }

// Connected reports whether Connect completed and Close has not been called.
func (e *Engine) Connected() bool { return e.connected }

// SessionKey returns the negotiated key. ok is false outside an encrypted session.
func (e *Engine) SessionKey() (key byte, ok bool) { return e.key, e.keyed }

// Connect flushes the link, performs the sync handshake and negotiates the
// session key (or runs the unencrypted probe).
func (e *Engine) Connect(ctx context.Context) error {
	if e.closed {
		return ErrLinkClosed
	}

	e.connected = false
	e.keyed = false
	e.key = 0

	if err := e.flush(); err != nil {
		return err
	}
	if err := e.handshake(ctx); err != nil {
		return err
	}

	var err error
	if e.cfg.encryption {
		err = e.negotiateKey(ctx)
	} else {
		err = e.probeUnencrypted(ctx)
	}
	if err != nil {
		return err
	}

	e.connected = true
	e.metrics.incConnectCount()
	e.logger.Debug("mk312 connected", "encrypted", e.cfg.encryption)

	return nil
}

// flush discards whatever the link still buffers from a previous session.
func (e *Engine) flush() error {
	reads := 0
	for {
		data, err := e.link.Receive(flushChunk)
		if err != nil {
			return e.linkErr("flush", err)
		}
		if len(data) == 0 {
			return nil
		}

		reads++
		if reads > e.cfg.flushLimit {
			return fmt.Errorf("%w: still receiving after %d reads", ErrFlushFailed, reads)
		}
	}
}

func (e *Engine) handshake(ctx context.Context) error {
	run := 0
	replied := false

	for attempt := 1; attempt <= e.cfg.handshakeAttempts; attempt++ {
		e.metrics.incHandshakeAttemptCount()
		if err := e.send([]byte{0x00}); err != nil {
			return err
		}
		if !pool.Sleep(ctx, e.cfg.handshakeDelay) {
			return ctx.Err()
		}

		reply, err := e.link.Receive(1)
		if err != nil {
			return e.linkErr("handshake", err)
		}
		if len(reply) > 0 {
			replied = true
		}

		if len(reply) == 1 && reply[0] == HandshakeAck {
			run++
			if run == HandshakeRun {
				e.logger.Debug("mk312 handshake complete", "attempts", attempt)
				return nil
			}

			continue
		}

		run = 0
	}

	if !replied {
		return fmt.Errorf("%w after %d attempts: %w", ErrHandshakeFailed, e.cfg.handshakeAttempts, ErrNoReply)
	}

	return fmt.Errorf("%w after %d attempts", ErrHandshakeFailed, e.cfg.handshakeAttempts)
}

func (e *Engine) negotiateKey(ctx context.Context) error {
	hostKey := e.cfg.hostKey
	replied := false

	for attempt := 1; attempt <= e.cfg.keyAttempts; attempt++ {
		if err := e.send(EncodeFrame([]byte{CmdKeyExchange, hostKey}, 0, false)); err != nil {
			return err
		}

		// the key exchange reply is always sent in clear
		payload, err := e.readFrame(ctx, 3, false)
		switch {
		case errors.Is(err, ErrShortRead):
			if !errors.Is(err, ErrNoReply) {
				replied = true
			}

			continue
		case err != nil:
			return fmt.Errorf("%w: %w", ErrKeyNegotiation, err)
		}

		replied = true
		if len(payload) != 2 {
			continue
		}

		deviceKey := payload[1]
		e.key = deviceKey ^ hostKey ^ KeyConstant
		e.keyed = true
		e.logger.Debug("mk312 session key negotiated", "attempts", attempt)

		return nil
	}

	if !replied {
		return fmt.Errorf("%w: %w", ErrKeyNegotiation, ErrNoReply)
	}

	return fmt.Errorf("%w: no usable reply in %d attempts", ErrKeyNegotiation, e.cfg.keyAttempts)
}

func (e *Engine) probeUnencrypted(ctx context.Context) error {
	if err := e.send(UnencryptedProbe); err != nil {
		return err
	}

	reply, err := e.readRaw(ctx, 100)
	if err != nil {
		return err
	}

	switch {
	case len(reply) == 0:
		return fmt.Errorf("%w: %w", ErrKeyNegotiation, ErrNoReply)
	case len(reply) != 1 || reply[0] != UnencryptedAccept:
		return fmt.Errorf("%w: %w: % x", ErrKeyNegotiation, ErrUnexpectedReply, reply)
	}

	return nil
}

// Peek reads the byte at addr.
func (e *Engine) Peek(ctx context.Context, addr uint16) (byte, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}

	req := []byte{CmdPeek, byte(addr >> 8), byte(addr)}
	if err := e.send(EncodeFrame(req, e.key, e.keyed)); err != nil {
		return 0, err
	}

	payload, err := e.readFrame(ctx, 3, e.cfg.decryptReplies && e.keyed)
	if err != nil {
		return 0, fmt.Errorf("peek 0x%04x: %w", addr, err)
	}
	if len(payload) != 2 {
		return 0, fmt.Errorf("peek 0x%04x: %w: reply payload has %d byte(s)", addr, ErrShortRead, len(payload))
	}

	e.metrics.incPeekCount()

	return payload[1], nil
}

// Poke writes data (1 to MaxPokeLen bytes) starting at addr and waits for the
// device acknowledgement.
func (e *Engine) Poke(ctx context.Context, addr uint16, data ...byte) error {
	if len(data) == 0 || len(data) > MaxPokeLen {
		return fmt.Errorf("%w: got %d", ErrPayloadLength, len(data))
	}
	if err := e.ready(); err != nil {
		return err
	}

	req := make([]byte, 0, 3+len(data))
	req = append(req, PokeTag(len(data)), byte(addr>>8), byte(addr))
	req = append(req, data...)
	if err := e.send(EncodeFrame(req, e.key, e.keyed)); err != nil {
		return err
	}

	ack, err := e.readRaw(ctx, 1)
	if err != nil {
		return err
	}
	if len(ack) == 0 {
		return fmt.Errorf("poke 0x%04x: %w", addr, ErrNoReply)
	}
	if e.cfg.decryptReplies && e.keyed {
		ack[0] ^= e.key
	}
	if ack[0] != PokeAck {
		return fmt.Errorf("poke 0x%04x: %w: 0x%02x", addr, ErrUnexpectedReply, ack[0])
	}

	e.metrics.incPokeCount()

	return nil
}

// Close resets the device session key when one was negotiated, then closes
// the link. Failures of the key reset are ignored. Close is idempotent.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}

	if e.keyed && e.connected {
		ctx, cancel := context.WithTimeout(context.Background(), 2*e.cfg.readTimeout)
		if err := e.Poke(ctx, cipherKeyAddr, 0x00); err != nil {
			e.logger.Debug("mk312 key reset failed", "error", err)
		}
		cancel()
	}

	e.closed = true
	e.connected = false
	e.keyed = false
	e.key = 0

	if err := e.link.Close(); err != nil {
		return e.linkErr("close", err)
	}

	return nil
}

func (e *Engine) ready() error {
	if e.closed {
		return ErrLinkClosed
	}
	if !e.connected {
		return ErrNotConnected
	}

	return nil
}

func (e *Engine) send(frame []byte) error {
	if err := e.link.Send(frame); err != nil {
		return e.linkErr("send", err)
	}
	e.metrics.incFrameSendCount()

	return nil
}

// readRaw collects up to n bytes until n arrived or the read timeout elapsed.
func (e *Engine) readRaw(ctx context.Context, n int) ([]byte, error) {
	buf := make([]byte, 0, n)
	deadline := time.Now().Add(e.cfg.readTimeout)

	for len(buf) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunk, err := e.link.Receive(n - len(buf))
		if err != nil {
			return nil, e.linkErr("receive", err)
		}
		buf = append(buf, chunk...)

		if len(chunk) == 0 && !time.Now().Before(deadline) {
			break
		}
	}

	return buf, nil
}

// readFrame reads a checksummed reply of up to n bytes and returns its payload.
func (e *Engine) readFrame(ctx context.Context, n int, decrypt bool) ([]byte, error) {
	raw, err := e.readRaw(ctx, n)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrShortRead, ErrNoReply)
	}

	payload, err := DecodeFrame(raw, e.key, decrypt)
	if err != nil {
		if errors.Is(err, ErrChecksumMismatch) {
			e.metrics.incChecksumErrCount()
		}

		return nil, err
	}
	e.metrics.incFrameRecvCount()

	return payload, nil
}

func (e *Engine) linkErr(op string, err error) error {
	if errors.Is(err, link.ErrClosed) {
		return fmt.Errorf("%w: %s", ErrLinkClosed, op)
	}

	return transportErr(op, err)
}
