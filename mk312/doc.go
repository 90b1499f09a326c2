// Package mk312 implements the MK-312 serial protocol.
//
// # Framing
//
// Every request is a short frame terminated by an 8-bit arithmetic checksum.
// Once a session key is negotiated, each outgoing byte (checksum included) is
// XORed with the key:
//
//	peek:  [0x3c, addrHi, addrLo, sum]               reply [0x22, value, sum]
//	poke:  [tag, addrHi, addrLo, data..., sum]       reply 0x06
//	key:   [0x2f, hostKey, sum]                      reply [0x21, deviceKey, sum]
//
// The poke tag carries the frame length (without checksum) in its upper nibble
// and 0x0d in the lower one, so a poke holds 1 to 8 data bytes.
//
// # Connecting
//
// Engine.Connect drains stale input, then sends single 0x00 bytes until three
// consecutive 0x07 acknowledgements arrive (at most 12 attempts). In encrypted
// mode it then exchanges keys; the session key is deviceKey ^ hostKey ^ 0x55.
// Network bridges skip encryption: the host sends [0x2f, 0x42, 0x42] and the
// bridge answers 0x69.
//
// Engine.Close writes 0 to the key register (0x4213) so the next host can
// negotiate again without power cycling the box.
//
// # Errors
//
// All errors wrap one of ErrTransport, ErrProtocol or ErrValidation. The first
// two are worth a reconnect; validation errors are caller bugs.
package mk312
