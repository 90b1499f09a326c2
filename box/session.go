package box

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-mk312/logger"
	"github.com/arloliu/go-mk312/mk312"
	"github.com/arloliu/go-mk312/register"
)

var (
	// ErrValueRange is returned by Set for values that do not fit a register byte.
	ErrValueRange = fmt.Errorf("%w: value out of range [0, 255]", mk312.ErrValidation)
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("box: session already started")
	// ErrEmptyTarget is returned by Open without a target.
	ErrEmptyTarget = fmt.Errorf("%w: empty target", mk312.ErrValidation)
)

// readOnly registers live in ROM or belong to the protocol engine.
var readOnly = map[string]struct{}{
	register.BoxVersion:   {},
	register.Version1:     {},
	register.Version2:     {},
	register.Version3:     {},
	register.ComCipherKey: {},
}

// Session keeps a box connected and mirrors its registers.
//
// A single worker goroutine owns the protocol engine. Callers interact only
// through non-blocking methods: Set queues a write, Get reads the cache and
// Events delivers notifications. None of them performs device I/O.
type Session struct {
	cfg     *Config
	logger  logger.Logger
	metrics SessionMetrics

	state  atomicState
	cache  *xsync.MapOf[string, int]
	writes *writeQueue
	events chan Event
	wake   chan struct{}

	mu       sync.Mutex
	target   string
	programs []UserProgram
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSession creates a session in the Closed state. Call Start to run it.
func NewSession(opts ...Option) (*Session, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Session{
		cfg:    cfg,
		logger: cfg.logger,
		cache:  xsync.NewMapOf[string, int](),
		writes: newWriteQueue(),
		events: make(chan Event, cfg.eventQueueSize),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}, nil
}

// Start launches the worker. The worker exits when ctx is cancelled or Stop
// is called; Done is closed afterwards.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	w := newWorker(s)
	go w.run(ctx)

	return nil
}

// Stop forces the worker into Exiting and waits until it released the device.
func (s *Session) Stop() {
	s.mu.Lock()
	started, cancel := s.started, s.cancel
	s.target = ""
	s.mu.Unlock()

	if !started {
		return
	}

	cancel()
	<-s.done
}

// Done is closed once the worker exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Open sets the connection target: a serial device path or an IPv4 address.
func (s *Session) Open(target string) error {
	if target == "" {
		return ErrEmptyTarget
	}

	s.mu.Lock()
	s.target = target
	s.mu.Unlock()
	s.signal()

	return nil
}

// Close clears the target. A connected worker flushes pending writes,
// releases the box and returns to Closed.
func (s *Session) Close() {
	s.mu.Lock()
	s.target = ""
	s.mu.Unlock()
	s.signal()
}

// Target returns the current connection target.
func (s *Session) Target() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.target
}

// State returns the worker state.
func (s *Session) State() State {
	return s.state.Get()
}

// Events returns the notification channel.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Metrics returns the session counters.
func (s *Session) Metrics() *SessionMetrics {
	return &s.metrics
}

// Config returns the session configuration.
func (s *Session) Config() *Config {
	return s.cfg
}

// Get returns the last value read from register name. ok is false when the
// register was never read.
func (s *Session) Get(name string) (value int, ok bool) {
	return s.cache.Load(name)
}

// Snapshot returns a copy of every cached register value.
func (s *Session) Snapshot() map[string]int {
	out := make(map[string]int, s.cache.Size())
	s.cache.Range(func(name string, v int) bool {
		out[name] = v
		return true
	})

	return out
}

// UserPrograms returns the user programs found on the last connect.
func (s *Session) UserPrograms() []UserProgram {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.programs)
}

// Pending returns the names with a queued write, in drain order.
func (s *Session) Pending() []string {
	names := s.writes.pending()

	return slices.DeleteFunc(names, func(n string) bool { return n == displayKey })
}

// Set queues value for register name. Unknown and read-only names and values
// that do not fit a byte are rejected and reported as an error status.
func (s *Session) Set(name string, value int) error {
	if err := s.validate(name, value); err != nil {
		s.emitStatus(SeverityError, err.Error())
		return err
	}

	s.writes.put(name, writeOp{value: value})
	s.signal()

	return nil
}

// SetMode queues a mode change. ModeNone stops the running program.
func (s *Session) SetMode(m register.Mode) error {
	return s.Set(register.CurrentMode, int(m))
}

// ShowText queues a label write on the box display.
func (s *Session) ShowText(text string) error {
	if err := validateText(text); err != nil {
		s.emitStatus(SeverityError, err.Error())
		return err
	}

	s.writes.put(displayKey, writeOp{text: text})
	s.signal()

	return nil
}

func (s *Session) validate(name string, value int) error {
	desc, ok := s.cfg.catalog.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", mk312.ErrUnknownRegister, name)
	}
	if _, ro := readOnly[name]; ro {
		return fmt.Errorf("%w: %q", mk312.ErrReadOnly, name)
	}
	if desc.Kind() != register.KindBit && (value < 0 || value > 0xff) {
		return fmt.Errorf("%w: %s=%d", ErrValueRange, name, value)
	}

	return nil
}

func (s *Session) setPrograms(p []UserProgram) {
	s.mu.Lock()
	s.programs = p
	s.mu.Unlock()
}

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// emit delivers ev without blocking. A full channel drops it.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.metrics.incEventDropCount()
	}
}

func (s *Session) emitStatus(sev Severity, msg string) {
	switch sev {
	case SeverityError:
		s.logger.Error(msg)
	case SeverityWarning:
		s.logger.Warn(msg)
	default:
		s.logger.Info(msg)
	}

	s.emit(Event{Kind: EventStatus, Severity: sev, Message: msg})
}
