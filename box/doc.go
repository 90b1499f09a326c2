// Package box keeps an MK-312 box connected and mirrors its registers for a
// host application.
//
// A Session runs one worker goroutine that owns the protocol engine. The
// worker moves through these states:
//
//	Closed     no target: probe for network boxes every DiscoveryInterval
//	Opening    dial, handshake, negotiate and read the initial snapshot
//	Connected  apply queued writes, poll telemetry, notify
//	Closing    flush queued writes, reset the key, release the link
//	Exiting    terminal, entered from any state on Stop
//
// Failures never stop the worker. While Opening, the first failures are
// reported as warnings and later ones as errors with a hint. While
// Connected, every ReconnectEvery-th consecutive error drops the link and
// starts over from Opening.
//
// Writes are queued per register name in submission order; a second Set for
// a queued name replaces its value in place. Each poll cycle applies at most
// WriteDrainLimit of them. Setting current_mode to ModeNone does not poke
// the mode register but runs the firmware reset sequence instead.
package box
