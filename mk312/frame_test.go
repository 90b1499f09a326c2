package mk312_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-mk312/mk312"
)

func testPayloads() [][]byte {
	payloads := [][]byte{
		{0x00},
		{mk312.CmdPeek, 0x40, 0x70},
		{mk312.PokeTag(1), 0x42, 0x13, 0x00},
		{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
	}

	long := make([]byte, 32)
	for i := range long {
		long[i] = byte(i * 37)
	}

	return append(payloads, long)
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, byte(0x00), mk312.Checksum(nil))
	assert.Equal(t, byte(0x2f), mk312.Checksum([]byte{0x2f, 0x00}))
	assert.Equal(t, byte(0xec), mk312.Checksum([]byte{0x3c, 0x40, 0x70}))
	// wraps modulo 256
	assert.Equal(t, byte(0xfe), mk312.Checksum([]byte{0xff, 0xff}))
}

func TestFrame_ChecksumRoundTrip(t *testing.T) {
	for _, payload := range testPayloads() {
		frame := mk312.EncodeFrame(payload, 0, false)
		require.Len(t, frame, len(payload)+1)

		got, err := mk312.DecodeFrame(frame, 0, false)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}
}

func TestFrame_SingleByteCorruptionFails(t *testing.T) {
	for _, payload := range testPayloads() {
		frame := mk312.EncodeFrame(payload, 0, false)

		for i := range frame {
			for _, delta := range []byte{0x01, 0x80, 0xff} {
				corrupted := append([]byte(nil), frame...)
				corrupted[i] ^= delta

				_, err := mk312.DecodeFrame(corrupted, 0, false)
				require.ErrorIs(t, err, mk312.ErrChecksumMismatch, "payload % x, byte %d, delta 0x%02x", payload, i, delta)
				assert.ErrorIs(t, err, mk312.ErrProtocol)
			}
		}
	}
}

func TestFrame_EncryptionRoundTrip(t *testing.T) {
	for _, payload := range testPayloads() {
		for _, key := range []byte{0x00, 0x01, 0x55, 0xab, 0xfe, 0xff} {
			frame := mk312.EncodeFrame(payload, key, true)

			got, err := mk312.DecodeFrame(frame, key, true)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		}
	}
}

func TestFrame_EncryptsEveryByte(t *testing.T) {
	payload := []byte{mk312.CmdPeek, 0x40, 0x70}
	plain := mk312.EncodeFrame(payload, 0x5a, false)
	enc := mk312.EncodeFrame(payload, 0x5a, true)

	require.Len(t, enc, len(plain))
	for i := range plain {
		assert.Equal(t, plain[i]^0x5a, enc[i])
	}
}

func TestFrame_WrongKeyFails(t *testing.T) {
	payload := []byte{mk312.CmdPeek, 0x40, 0x70}
	frame := mk312.EncodeFrame(payload, 0x5a, true)

	for _, key := range []byte{0x00, 0x42, 0x5b, 0xa5, 0xff} {
		_, err := mk312.DecodeFrame(frame, key, true)
		assert.ErrorIs(t, err, mk312.ErrChecksumMismatch, "key 0x%02x", key)
	}

	// only the occasional key validates by coincidence
	coincidences := 0
	for k := 0; k < 256; k++ {
		if byte(k) == 0x5a {
			continue
		}
		if _, err := mk312.DecodeFrame(frame, byte(k), true); err == nil {
			coincidences++
		}
	}
	assert.Less(t, coincidences, 16)
}

func TestFrame_DecodeShortRead(t *testing.T) {
	for _, data := range [][]byte{nil, {0x06}} {
		_, err := mk312.DecodeFrame(data, 0, false)
		require.ErrorIs(t, err, mk312.ErrShortRead)
	}
}

func TestFrame_DecodeDoesNotModifyInput(t *testing.T) {
	frame := mk312.EncodeFrame([]byte{0x22, 0x10}, 0x33, true)
	orig := append([]byte(nil), frame...)

	_, err := mk312.DecodeFrame(frame, 0x33, true)
	require.NoError(t, err)
	assert.Equal(t, orig, frame)
}

func TestPokeTag(t *testing.T) {
	assert.Equal(t, byte(0x4d), mk312.PokeTag(1))
	assert.Equal(t, byte(0x5d), mk312.PokeTag(2))
	assert.Equal(t, byte(0xbd), mk312.PokeTag(8))

	for n := 1; n <= mk312.MaxPokeLen; n++ {
		got, ok := mk312.PokeDataLen(mk312.PokeTag(n))
		require.True(t, ok)
		assert.Equal(t, n, got)
	}

	_, ok := mk312.PokeDataLen(mk312.CmdPeek)
	assert.False(t, ok)
	_, ok = mk312.PokeDataLen(0x3d)
	assert.False(t, ok)
}
