package mk312

import "fmt"

// Command bytes.
const (
	CmdPeek        byte = 0x3c
	CmdPokeBase    byte = 0x0d
	CmdKeyExchange byte = 0x2f

	ReplyPeek        byte = 0x22
	ReplyKeyExchange byte = 0x21
)

// MaxPokeLen is the largest payload a single poke frame may carry.
const MaxPokeLen = 8

// Checksum returns the 8-bit arithmetic sum of data.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}

	return sum
}

// EncodeFrame appends the checksum to payload and, when encrypt is set, XORs
// every byte of the result (checksum included) with key. payload is not modified.
func EncodeFrame(payload []byte, key byte, encrypt bool) []byte {
	frame := make([]byte, len(payload)+1)
	copy(frame, payload)
	frame[len(payload)] = Checksum(payload)

	if encrypt {
		xorInPlace(frame, key)
	}

	return frame
}

// DecodeFrame validates a received frame and returns its payload without the
// trailing checksum. When decrypt is set the frame is XORed with key first.
// data is not modified.
func DecodeFrame(data []byte, key byte, decrypt bool) ([]byte, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: got %d byte(s), need at least 2", ErrShortRead, len(data))
	}

	frame := make([]byte, len(data))
	copy(frame, data)
	if decrypt {
		xorInPlace(frame, key)
	}

	n := len(frame) - 1
	want := Checksum(frame[:n])
	if frame[n] != want {
		return nil, fmt.Errorf("%w: got 0x%02x, want 0x%02x", ErrChecksumMismatch, frame[n], want)
	}

	return frame[:n], nil
}

// PokeTag returns the command byte of a poke carrying n data bytes. The upper
// nibble holds the frame length without checksum.
func PokeTag(n int) byte {
	return CmdPokeBase | byte((n+3)<<4)
}

// PokeDataLen extracts the data length from a poke command byte. ok is false
// when tag is not a poke command.
func PokeDataLen(tag byte) (n int, ok bool) {
	if tag&0x0f != CmdPokeBase {
		return 0, false
	}
	n = int(tag>>4) - 3
	if n < 1 || n > MaxPokeLen {
		return 0, false
	}

	return n, true
}

func xorInPlace(b []byte, key byte) {
	for i := range b {
		b[i] ^= key
	}
}
