package mk312

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by this package wraps exactly one of them.
var (
	// ErrTransport covers link I/O failures and lock contention.
	ErrTransport = errors.New("mk312: transport error")
	// ErrProtocol covers malformed, missing or unexpected device replies.
	ErrProtocol = errors.New("mk312: protocol error")
	// ErrValidation covers caller mistakes. These are never worth retrying.
	ErrValidation = errors.New("mk312: validation error")
)

// Transport errors.
var (
	ErrLinkClosed = fmt.Errorf("%w: link closed", ErrTransport)
)

// Protocol errors.
var (
	ErrNotConnected     = fmt.Errorf("%w: engine not connected", ErrProtocol)
	ErrFlushFailed      = fmt.Errorf("%w: link does not go quiet", ErrProtocol)
	ErrHandshakeFailed  = fmt.Errorf("%w: handshake failed", ErrProtocol)
	ErrKeyNegotiation   = fmt.Errorf("%w: key negotiation failed", ErrProtocol)
	ErrNoReply          = fmt.Errorf("%w: no reply from device", ErrProtocol)
	ErrChecksumMismatch = fmt.Errorf("%w: checksum mismatch", ErrProtocol)
	ErrShortRead        = fmt.Errorf("%w: short read", ErrProtocol)
	ErrUnexpectedReply  = fmt.Errorf("%w: unexpected reply", ErrProtocol)
)

// Validation errors.
var (
	ErrPayloadLength   = fmt.Errorf("%w: poke payload must be 1 to %d bytes", ErrValidation, MaxPokeLen)
	ErrUnknownRegister = fmt.Errorf("%w: unknown register", ErrValidation)
	ErrReadOnly        = fmt.Errorf("%w: register is read-only", ErrValidation)
)

func transportErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}

// IsRetryable reports whether err is a transport or protocol failure that a
// reconnect may cure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrProtocol)
}
