package devsim

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-mk312/link"
	"github.com/arloliu/go-mk312/mk312"
	"github.com/arloliu/go-mk312/register"
)

// receiveAll collects reply bytes until n arrived or the wait ran out.
func receiveAll(t *testing.T, c *Conn, n int) []byte {
	t.Helper()

	var out []byte
	deadline := time.Now().Add(time.Second)
	for len(out) < n && time.Now().Before(deadline) {
		data, err := c.Receive(n - len(out))
		require.NoError(t, err)
		out = append(out, data...)
	}

	return out
}

func TestConn_HandshakeAndPeek(t *testing.T) {
	d := New()
	c := d.Open()

	require.NoError(t, c.Send([]byte{0x00}))
	assert.Equal(t, []byte{mk312.HandshakeAck}, receiveAll(t, c, 1))

	require.NoError(t, c.Send(mk312.EncodeFrame([]byte{mk312.CmdKeyExchange, 0x00}, 0, false)))
	reply := receiveAll(t, c, 3)
	payload, err := mk312.DecodeFrame(reply, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{mk312.ReplyKeyExchange, DefaultDeviceKey}, payload)

	key := DefaultDeviceKey ^ mk312.KeyConstant
	require.NoError(t, c.Send(mk312.EncodeFrame([]byte{mk312.CmdPeek, 0x40, 0x7b}, key, true)))
	payload, err = mk312.DecodeFrame(receiveAll(t, c, 3), 0, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{mk312.ReplyPeek, byte(register.ModeWaves)}, payload)
	assert.Equal(t, 1, d.PeekCount())
}

func TestConn_PokeRecordsWrite(t *testing.T) {
	d := New()
	c := d.Open()

	require.NoError(t, c.Send(mk312.UnencryptedProbe))
	assert.Equal(t, []byte{mk312.UnencryptedAccept}, receiveAll(t, c, 1))

	frame := mk312.EncodeFrame([]byte{mk312.PokeTag(2), 0x40, 0xa5, 0x01, 0x02}, 0, false)
	require.NoError(t, c.Send(frame))
	assert.Equal(t, []byte{mk312.PokeAck}, receiveAll(t, c, 1))

	assert.Equal(t, []Write{{Addr: 0x40a5, Data: []byte{0x01, 0x02}}}, d.Writes())
	assert.Equal(t, byte(0x02), d.Peek(0x40a6))

	d.ResetWrites()
	assert.Empty(t, d.Writes())
}

func TestConn_BadFrameAnswersNack(t *testing.T) {
	d := New()
	c := d.Open()

	require.NoError(t, c.Send([]byte{mk312.CmdPeek, 0x40, 0x7b, 0x00}))
	assert.Equal(t, []byte{mk312.HandshakeAck}, receiveAll(t, c, 1))
}

func TestConn_Closed(t *testing.T) {
	d := New()
	c := d.Open()

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, d.Closes())

	require.ErrorIs(t, c.Send([]byte{0x00}), link.ErrClosed)
	_, err := c.Receive(1)
	require.ErrorIs(t, err, link.ErrClosed)
}

func TestDevice_Serve(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	d := New()
	go func() { _ = d.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	nc, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	_, err = nc.Write([]byte{0x00})
	require.NoError(t, err)

	buf := make([]byte, 1)
	require.NoError(t, nc.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = nc.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, mk312.HandshakeAck, buf[0])
	assert.Equal(t, 1, d.Opens())

	require.NoError(t, nc.Close())
	require.Eventually(t, func() bool { return d.Closes() == 1 }, time.Second, time.Millisecond)
}
