// Package devsim simulates an MK-312 box behind a link.Link.
//
// A Device owns the memory image and fault switches. Each call to Open returns
// a fresh Conn with its own protocol state, the way a new serial session
// starts from an unkeyed box.
package devsim

import (
	"slices"
	"sync"
	"time"

	"github.com/arloliu/go-mk312/link"
	"github.com/arloliu/go-mk312/mk312"
	"github.com/arloliu/go-mk312/register"
)

// DefaultDeviceKey is the device half of the key exchange.
const DefaultDeviceKey byte = 0xab

// Write records one poke received by the device.
type Write struct {
	Addr uint16
	Data []byte
}

// Device is a simulated box. All methods are goroutine-safe.
type Device struct {
	mu sync.Mutex

	mem map[uint16]byte

	deviceKey     byte
	ackAfter      int
	nack          byte
	hasNack       bool
	encryptReply  bool
	calltableBusy int
	readDelay     time.Duration

	silent  bool
	corrupt bool

	busyLeft   int
	writes     []Write
	peeks      int
	handshakes int
	opens      int
	closes     int
}

// Option configures a Device.
type Option func(*Device)

// WithDeviceKey sets the key byte the device offers during negotiation.
func WithDeviceKey(k byte) Option { return func(d *Device) { d.deviceKey = k } }

// WithAckAfter makes the device ignore the first n sync bytes of each session.
func WithAckAfter(n int) Option { return func(d *Device) { d.ackAfter = n } }

// WithHandshakeNack makes ignored sync bytes answer b instead of staying silent.
func WithHandshakeNack(b byte) Option {
	return func(d *Device) {
		d.nack = b
		d.hasNack = true
	}
}

// WithEncryptedReplies XORs peek replies and acks with the session key.
func WithEncryptedReplies(enabled bool) Option { return func(d *Device) { d.encryptReply = enabled } }

// WithCalltableBusy makes the calltable register read busy n times after each
// command before reporting 0xff. A negative n never completes.
func WithCalltableBusy(n int) Option { return func(d *Device) { d.calltableBusy = n } }

// WithReadDelay sets how long Receive waits when nothing is pending.
func WithReadDelay(delay time.Duration) Option { return func(d *Device) { d.readDelay = delay } }

// WithMemory preloads memory.
func WithMemory(mem map[uint16]byte) Option {
	return func(d *Device) {
		for addr, v := range mem {
			d.mem[addr] = v
		}
	}
}

// New creates a device with a plausible memory image: Waves mode, normal
// power range, a charged battery and no user programs.
func New(opts ...Option) *Device {
	d := &Device{
		mem:       make(map[uint16]byte),
		deviceKey: DefaultDeviceKey,
		readDelay: time.Millisecond,
	}
	d.loadDefaults()

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Device) loadDefaults() {
	cat := register.DefaultCatalog()
	set := func(name string, v byte) {
		desc, _ := cat.Lookup(name)
		d.mem[desc.Address()] = v
	}

	set(register.CurrentMode, byte(register.ModeWaves))
	set(register.PowerLevelRange, byte(register.PowerNormal))
	set(register.BatteryVoltageBoot, 0xd2)
	set(register.BatteryVoltage, 0xa0)
	set(register.PSUVoltage, 0x7d)
	set(register.MultiAdjustScaled, 0x80)
	set(register.MultiAdjustMin, 0x01)
	set(register.MultiAdjustMax, 0xff)
	set(register.BoxVersion, 0x0b)
	set(register.Version1, 0x01)
	set(register.Version2, 0x06)
	set(register.Version3, 0x00)
	set(register.UserModesLoaded, 0x87)

	for i, name := range register.AdvancedParams {
		set(name, byte(0x10+i))
	}

	d.mem[register.AddrCalltable] = register.CalltableDone
}

// Open starts a new session and returns its link.
func (d *Device) Open() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.opens++

	return &Conn{dev: d}
}

// Peek returns the byte stored at addr.
func (d *Device) Peek(addr uint16) byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.mem[addr]
}

// Poke stores v at addr without recording a write.
func (d *Device) Poke(addr uint16, v byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mem[addr] = v
}

// SetSilent stops (or resumes) all replies.
func (d *Device) SetSilent(silent bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.silent = silent
}

// SetCorrupt makes frame replies carry a wrong checksum.
func (d *Device) SetCorrupt(corrupt bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.corrupt = corrupt
}

// Writes returns the pokes received so far, in order.
func (d *Device) Writes() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Write, len(d.writes))
	for i, w := range d.writes {
		out[i] = Write{Addr: w.Addr, Data: slices.Clone(w.Data)}
	}

	return out
}

// ResetWrites clears the poke log.
func (d *Device) ResetWrites() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.writes = nil
}

// PeekCount returns the number of peeks served.
func (d *Device) PeekCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.peeks
}

// HandshakeCount returns the number of sync bytes received across sessions.
func (d *Device) HandshakeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.handshakes
}

// Opens returns how many sessions were opened.
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.opens
}

// Closes returns how many sessions were closed.
func (d *Device) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.closes
}

// Conn is one session with a Device. It implements link.Link.
type Conn struct {
	dev *Device

	out        []byte
	key        byte
	keyed      bool
	handshakes int
	closed     bool
}

var _ link.Link = (*Conn)(nil)

// Inject queues bytes as if the device had sent them unprompted.
func (c *Conn) Inject(data []byte) {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()

	c.out = append(c.out, data...)
}

// Send delivers one request to the device.
func (c *Conn) Send(data []byte) error {
	d := c.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	if c.closed {
		return link.ErrClosed
	}

	c.handle(slices.Clone(data))

	return nil
}

// Receive returns pending reply bytes. When nothing is pending it waits the
// configured read delay and returns an empty slice.
func (c *Conn) Receive(maxLen int) ([]byte, error) {
	d := c.dev
	d.mu.Lock()
	if c.closed {
		d.mu.Unlock()
		return nil, link.ErrClosed
	}

	if len(c.out) == 0 {
		delay := d.readDelay
		d.mu.Unlock()
		time.Sleep(delay)

		return []byte{}, nil
	}

	n := min(maxLen, len(c.out))
	data := slices.Clone(c.out[:n])
	c.out = c.out[n:]
	d.mu.Unlock()

	return data, nil
}

// Close ends the session. It is idempotent.
func (c *Conn) Close() error {
	d := c.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	if !c.closed {
		c.closed = true
		d.closes++
	}

	return nil
}

// handle runs with the device lock held.
func (c *Conn) handle(data []byte) {
	d := c.dev

	switch {
	case len(data) == 1 && data[0] == 0x00 && !c.keyed:
		d.handshakes++
		c.handshakes++
		if d.silent {
			return
		}
		if c.handshakes > d.ackAfter {
			c.out = append(c.out, mk312.HandshakeAck)
		} else if d.hasNack {
			c.out = append(c.out, d.nack)
		}

		return

	case slices.Equal(data, mk312.UnencryptedProbe) && !c.keyed:
		if !d.silent {
			c.out = append(c.out, mk312.UnencryptedAccept)
		}

		return

	case len(data) == 3 && data[0] == mk312.CmdKeyExchange && !c.keyed:
		payload, err := mk312.DecodeFrame(data, 0, false)
		if err != nil || d.silent {
			return
		}
		c.reply([]byte{mk312.ReplyKeyExchange, d.deviceKey}, false)
		c.key = d.deviceKey ^ payload[1] ^ mk312.KeyConstant
		c.keyed = true

		return
	}

	if d.silent {
		return
	}

	payload, err := mk312.DecodeFrame(data, c.key, c.keyed)
	if err != nil {
		c.out = append(c.out, mk312.HandshakeAck)
		return
	}

	cmd := payload[0]
	if cmd == mk312.CmdPeek && len(payload) == 3 {
		d.peeks++
		c.reply([]byte{mk312.ReplyPeek, d.read(addrOf(payload))}, d.encryptReply)

		return
	}

	n, ok := mk312.PokeDataLen(cmd)
	if !ok || len(payload) != 3+n {
		c.out = append(c.out, mk312.HandshakeAck)
		return
	}

	addr := addrOf(payload)
	values := payload[3:]
	d.writes = append(d.writes, Write{Addr: addr, Data: slices.Clone(values)})
	for i, v := range values {
		d.mem[addr+uint16(i)] = v
	}
	if addr == register.AddrCalltable {
		d.mem[addr] = register.CalltableDone
		d.busyLeft = d.calltableBusy
	}

	ack := mk312.PokeAck
	if d.encryptReply && c.keyed {
		ack ^= c.key
	}
	c.out = append(c.out, ack)

	if addr == register.AddrCipherKey && values[0] == 0 {
		c.keyed = false
		c.key = 0
	}
}

func (d *Device) read(addr uint16) byte {
	if addr == register.AddrCalltable && d.busyLeft != 0 {
		if d.busyLeft > 0 {
			d.busyLeft--
		}

		return 0x00
	}

	return d.mem[addr]
}

func (c *Conn) reply(payload []byte, encrypt bool) {
	frame := mk312.EncodeFrame(payload, c.key, encrypt && c.keyed)
	if c.dev.corrupt {
		frame[len(frame)-1]++
	}
	c.out = append(c.out, frame...)
}

func addrOf(payload []byte) uint16 {
	return uint16(payload[1])<<8 | uint16(payload[2])
}
