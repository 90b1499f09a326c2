package link

import (
	"fmt"
	"sync"

	"go.bug.st/serial"

	"github.com/arloliu/go-mk312/logger"
)

// SerialLink is a Link over a local serial device.
type SerialLink struct {
	name   string
	port   serial.Port
	lock   *deviceLock
	cfg    *Config
	logger logger.Logger

	mu     sync.Mutex
	closed bool
	buf    []byte
}

var _ Link = (*SerialLink)(nil)

// OpenSerial opens the named serial device at 8N1 without flow control and
// takes an exclusive non-blocking lock on it. It fails with ErrPortLocked when
// another process already drives the device.
func OpenSerial(name string, opts ...Option) (*SerialLink, error) {
	cfg, err := newConfig(DefaultSerialReadTimeout, opts)
	if err != nil {
		return nil, err
	}

	lock, err := lockDevice(name)
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: cfg.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		lock.release()
		return nil, fmt.Errorf("link: open %s: %w", name, err)
	}

	if err := port.SetReadTimeout(cfg.readTimeout); err != nil {
		_ = port.Close()
		lock.release()

		return nil, fmt.Errorf("link: set read timeout on %s: %w", name, err)
	}

	cfg.logger.Debug("link: serial port opened", "port", name, "baud", cfg.baudRate)

	return &SerialLink{
		name:   name,
		port:   port,
		lock:   lock,
		cfg:    cfg,
		logger: cfg.logger,
		buf:    make([]byte, 1024),
	}, nil
}

// Name returns the device path.
func (l *SerialLink) Name() string { return l.name }

func (l *SerialLink) Send(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	l.logger.Debug("link: send", "port", l.name, "data", fmt.Sprintf("% x", data))

	for written := 0; written < len(data); {
		n, err := l.port.Write(data[written:])
		written += n
		if err != nil {
			return fmt.Errorf("link: write %s: %w", l.name, err)
		}
	}

	return nil
}

func (l *SerialLink) Receive(maxLen int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}
	if maxLen <= 0 {
		return []byte{}, nil
	}
	if maxLen > len(l.buf) {
		l.buf = make([]byte, maxLen)
	}

	// go.bug.st/serial returns n == 0 and a nil error when the read timeout elapses.
	n, err := l.port.Read(l.buf[:maxLen])
	if err != nil {
		return nil, fmt.Errorf("link: read %s: %w", l.name, err)
	}

	out := make([]byte, n)
	copy(out, l.buf[:n])
	l.logger.Debug("link: recv", "port", l.name, "data", fmt.Sprintf("% x", out), "want", maxLen)

	return out, nil
}

func (l *SerialLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	err := l.port.Close()
	l.lock.release()
	l.logger.Debug("link: serial port closed", "port", l.name)

	return err
}

// ListSerialPorts returns the serial device names present on this host.
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("link: list serial ports: %w", err)
	}

	return ports, nil
}
