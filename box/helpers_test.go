package box

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-mk312/internal/devsim"
	"github.com/arloliu/go-mk312/link"
	"github.com/arloliu/go-mk312/mk312"
)

const simTarget = "/dev/ttySIM0"

func simDialer(dev *devsim.Device) Dialer {
	return func(string) (link.Link, bool, error) {
		return dev.Open(), true, nil
	}
}

func failingDialer(string) (link.Link, bool, error) {
	return nil, false, errors.New("no such device")
}

// newTestSession builds a session talking to dev with fast timings.
func newTestSession(t *testing.T, dev *devsim.Device, opts ...Option) *Session {
	t.Helper()

	base := []Option{
		WithDialer(simDialer(dev)),
		WithDiscovery(false),
		WithDiscoveryInterval(10 * time.Millisecond),
		WithRetryPause(time.Millisecond),
		WithCommitPause(0),
		WithEventQueueSize(4096),
		WithEngineOptions(
			mk312.WithHandshakeDelay(0),
			mk312.WithReadTimeout(20*time.Millisecond),
		),
	}

	s, err := NewSession(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(s.Stop)

	return s
}

// connectedWorker returns a worker already synchronised with dev, driven by the test.
func connectedWorker(t *testing.T, dev *devsim.Device, opts ...Option) (*Session, *worker) {
	t.Helper()

	s := newTestSession(t, dev, opts...)
	require.NoError(t, s.Open(simTarget))

	w := newWorker(s)
	w.s.state.Set(StateOpening)
	w.opening(context.Background())
	require.Equal(t, StateConnected, s.State())
	t.Cleanup(func() { _ = w.closeEngine() })

	return s, w
}

// drainEvents returns the events emitted so far.
func drainEvents(s *Session) []Event {
	var out []Event
	for {
		select {
		case ev := <-s.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func statusEvents(events []Event) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Kind == EventStatus {
			out = append(out, ev)
		}
	}

	return out
}

// waitEvent blocks until an event matching match arrives.
func waitEvent(t *testing.T, s *Session, match func(Event) bool) Event {
	t.Helper()

	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-s.Events():
			if match(ev) {
				return ev
			}
		case <-timeout:
			require.FailNow(t, "timed out waiting for event")
			return Event{}
		}
	}
}

func isStatus(msg string) func(Event) bool {
	return func(ev Event) bool {
		return ev.Kind == EventStatus && ev.Message == msg
	}
}

// registerWrites filters out calltable and display traffic.
func registerWrites(writes []devsim.Write) []devsim.Write {
	var out []devsim.Write
	for _, w := range writes {
		if w.Addr == 0x4070 || w.Addr == 0x4180 {
			continue
		}
		out = append(out, w)
	}

	return out
}
