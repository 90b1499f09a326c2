//go:build unix

package link

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// deviceLock is an flock(2) held on a separate descriptor of the device node.
// flock locks belong to the open file description, so a second process opening
// the same node conflicts even though the serial library owns its own descriptor.
type deviceLock struct {
	f *os.File
}

func lockDevice(name string) (*deviceLock, error) {
	f, err := os.OpenFile(name, os.O_RDONLY|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("link: open %s: %w", name, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrPortLocked, name)
		}

		return nil, fmt.Errorf("link: lock %s: %w", name, err)
	}

	return &deviceLock{f: f}, nil
}

func (l *deviceLock) release() {
	if l == nil || l.f == nil {
		return
	}
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	_ = l.f.Close()
	l.f = nil
}
