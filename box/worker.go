package box

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/go-mk312/internal/pool"
	"github.com/arloliu/go-mk312/logger"
	"github.com/arloliu/go-mk312/mk312"
	"github.com/arloliu/go-mk312/register"
)

const (
	hintNoReply = "Is the box connected and powered on?"
	hintRestart = "Try to turn off the box and on again?"
)

// noMode marks the last seen mode as unknown so the next poll reports it.
const noMode = -1

// worker is the session loop. Its fields are only touched by the worker goroutine.
type worker struct {
	s   *Session
	cfg *Config
	log logger.Logger

	engine   *mk312.Engine
	regs     *Registers
	errCount int
	lastMode int
}

func newWorker(s *Session) *worker {
	return &worker{
		s:        s,
		cfg:      s.cfg,
		log:      s.logger,
		lastMode: noMode,
	}
}

func (w *worker) run(ctx context.Context) {
	defer close(w.s.done)

	w.log.Debug("session worker started")
	for ctx.Err() == nil {
		switch w.s.state.Get() {
		case StateClosed:
			w.closed(ctx)
		case StateOpening:
			w.opening(ctx)
		case StateConnected:
			w.connected(ctx)
		case StateClosing:
			w.closing(ctx)
		default:
			w.exit()
			return
		}
	}

	w.exit()
}

func (w *worker) setState(st State) {
	prev := w.s.state.Get()
	if prev == st {
		return
	}
	w.s.state.Set(st)
	w.log.Debug("session state changed", "from", prev.String(), "to", st.String())
}

func (w *worker) closed(ctx context.Context) {
	if w.s.Target() != "" {
		w.setState(StateOpening)
		return
	}

	if w.cfg.discovery {
		addrs, err := w.cfg.discoverer(ctx)
		if err != nil && ctx.Err() == nil {
			w.log.Debug("discovery failed", "error", err)
		}
		for _, addr := range addrs {
			w.s.emit(Event{Kind: EventAddressDiscovered, Address: addr})
		}
	}

	w.idle(ctx, w.cfg.discoveryInterval)
}

func (w *worker) opening(ctx context.Context) {
	target := w.s.Target()
	if target == "" {
		w.status(SeverityInfo, "Aborting connection attempt.")
		w.setState(StateClosed)

		return
	}

	// writes queued for a previous session are stale
	w.s.writes.reset()

	if err := w.open(ctx, target); err != nil {
		if ctx.Err() != nil {
			return
		}

		w.errCount++
		w.s.metrics.ErrorGauge.Store(int64(w.errCount))

		msg := err.Error()
		if w.errCount < w.cfg.fatalAfter {
			w.status(SeverityWarning, msg)
		} else {
			msg += "\nCannot synchronise with mk312... "
			if errors.Is(err, mk312.ErrNoReply) {
				msg += hintNoReply
			} else {
				msg += hintRestart
			}
			w.status(SeverityError, msg)
		}

		pool.Sleep(ctx, w.cfg.retryPause)

		return
	}

	w.setState(StateConnected)
	w.errCount = 0
	w.lastMode = noMode
	w.s.metrics.ErrorGauge.Store(0)
	w.s.metrics.incConnectCount()
	w.status(SeverityInfo, "Connected and synchronised!")
}

// open dials target, runs the protocol handshake and reads the initial snapshot.
func (w *worker) open(ctx context.Context, target string) error {
	w.log = w.s.logger.With("conn_id", uuid.New().String(), "target", target)

	l, encrypted, err := w.cfg.dialer(target)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", mk312.ErrTransport, target, err)
	}

	opts := append([]mk312.Option{}, w.cfg.engineOpts...)
	opts = append(opts, mk312.WithEncryption(encrypted), mk312.WithLogger(w.log))
	ecfg, err := mk312.NewConfig(opts...)
	if err != nil {
		_ = l.Close()
		return err
	}

	engine, err := mk312.NewEngine(l, ecfg)
	if err != nil {
		_ = l.Close()
		return err
	}
	if err := engine.Connect(ctx); err != nil {
		_ = engine.Close()
		return err
	}

	w.engine = engine
	w.regs = NewRegisters(engine, w.cfg.catalog)

	if err := w.snapshot(ctx); err != nil {
		_ = w.closeEngine()
		return err
	}

	return nil
}

// snapshot reads the registers that only change on reconnect or on request.
func (w *worker) snapshot(ctx context.Context) error {
	if _, err := w.read(ctx, register.BatteryVoltageBoot); err != nil {
		return err
	}

	pr, err := w.read(ctx, register.PowerLevelRange)
	if err != nil {
		return err
	}
	w.s.emit(Event{Kind: EventPowerRange, PowerLevel: register.PowerLevel(pr)})

	loaded, err := w.read(ctx, register.UserModesLoaded)
	if err != nil {
		return err
	}
	programs, err := ReadUserPrograms(ctx, w.engine, loaded)
	if err != nil {
		return err
	}
	for _, p := range programs {
		w.log.Debug("user program", "mode", p.Mode.String(), "module", p.Module, "start", p.Start)
	}
	w.s.setPrograms(programs)

	for _, name := range []string{register.BoxVersion, register.Version1, register.Version2, register.Version3} {
		if _, err := w.read(ctx, name); err != nil {
			return err
		}
	}

	pots, err := w.read(ctx, register.ADCDisable)
	if err != nil {
		return err
	}
	w.s.emit(Event{Kind: EventPotsOverride, PotsOverride: pots != 0})

	for _, name := range register.AdvancedParams {
		if _, err := w.read(ctx, name); err != nil {
			return err
		}
	}
	w.s.emit(Event{Kind: EventAdvancedParams})

	return nil
}

func (w *worker) connected(ctx context.Context) {
	if w.s.Target() == "" {
		w.setState(StateClosing)
		return
	}

	if err := w.poll(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}

		w.errCount++
		w.s.metrics.ErrorGauge.Store(int64(w.errCount))
		w.status(SeverityError, err.Error())

		if w.errCount%w.cfg.reconnectEvery == 0 {
			w.log.Warn("too many consecutive errors, reconnecting", "errors", w.errCount)
			_ = w.closeEngine()
			w.s.metrics.incReconnectCount()
			w.setState(StateOpening)
		}

		return
	}

	w.errCount = 0
	w.s.metrics.ErrorGauge.Store(0)
	w.idle(ctx, w.cfg.pollInterval)
}

// poll runs one connected cycle: apply queued writes, then refresh telemetry.
func (w *worker) poll(ctx context.Context) error {
	w.s.metrics.incCycleCount()

	if err := w.drain(ctx, w.cfg.drainLimit); err != nil {
		return err
	}

	if _, err := w.read(ctx, register.MultiAdjustScaled); err != nil {
		return err
	}

	mode, err := w.read(ctx, register.CurrentMode)
	if err != nil {
		return err
	}
	if mode != w.lastMode {
		if err := w.modeChanged(ctx, register.Mode(mode)); err != nil {
			return err
		}
	}

	for _, name := range []string{register.PSUVoltage, register.BatteryVoltage, register.ChannelALevel, register.ChannelBLevel} {
		if _, err := w.read(ctx, name); err != nil {
			return err
		}
	}
	w.s.emit(Event{Kind: EventTelemetry})

	return nil
}

func (w *worker) modeChanged(ctx context.Context, mode register.Mode) error {
	for _, name := range []string{register.MultiAdjustMin, register.MultiAdjustMax} {
		if _, err := w.read(ctx, name); err != nil {
			return err
		}
	}

	w.s.emit(Event{Kind: EventModeChanged, Mode: mode})
	w.lastMode = int(mode)
	w.log.Info("mode changed", "mode", mode.String())

	pr, err := w.read(ctx, register.PowerLevelRange)
	if err != nil {
		return err
	}
	w.s.emit(Event{Kind: EventPowerRange, PowerLevel: register.PowerLevel(pr)})

	var extra []string
	switch mode {
	case register.ModeSplit:
		extra = []string{register.ChannelASplitMode, register.ChannelBSplitMode}
	case register.ModeRandom1:
		extra = []string{register.CurrentRandomMode}
	}
	for _, name := range extra {
		if _, err := w.read(ctx, name); err != nil {
			return err
		}
	}

	return nil
}

// drain applies at most limit queued writes in FIFO order. A write stays
// queued until it was applied, so a failed one is retried next cycle.
func (w *worker) drain(ctx context.Context, limit int) error {
	for range limit {
		name, op, ok := w.s.writes.front()
		if !ok {
			return nil
		}
		if err := w.apply(ctx, name, op); err != nil {
			return err
		}
		w.s.writes.done(name, op)
		w.s.metrics.incDrainedWriteCount()
	}

	return nil
}

func (w *worker) apply(ctx context.Context, name string, op writeOp) error {
	w.log.Debug("applying write", "name", name, "value", op.value)

	switch {
	case name == displayKey:
		return w.regs.ShowText(ctx, op.text)
	case name == register.CurrentMode && register.Mode(op.value) == register.ModeNone:
		return w.regs.ResetToNone(ctx)
	}

	if err := w.regs.Write(ctx, name, op.value); err != nil {
		return err
	}

	var commit []byte
	switch {
	case name == register.CurrentMode:
		commit = register.ModeCommit
	case register.IsAdvancedParam(name):
		commit = []byte{register.CalltableApplyAdv}
	default:
		return nil
	}

	if err := w.engine.Poke(ctx, register.AddrCalltable, commit...); err != nil {
		return fmt.Errorf("commit %s: %w", name, err)
	}
	pool.Sleep(ctx, w.cfg.commitPause)

	return nil
}

func (w *worker) closing(ctx context.Context) {
	err := w.drain(ctx, w.s.writes.len())
	if cerr := w.closeEngine(); err == nil {
		err = cerr
	}

	w.setState(StateClosed)
	w.lastMode = noMode

	if err != nil {
		w.status(SeverityError, err.Error())
		return
	}
	w.status(SeverityInfo, "Port closed.")
}

// exit releases the device on the way out. Errors are ignored.
func (w *worker) exit() {
	_ = w.closeEngine()
	w.setState(StateExiting)
	w.log.Debug("session worker ended")
}

func (w *worker) closeEngine() error {
	if w.engine == nil {
		return nil
	}

	err := w.engine.Close()
	w.engine = nil
	w.regs = nil

	return err
}

// read refreshes register name in the cache.
func (w *worker) read(ctx context.Context, name string) (int, error) {
	v, err := w.regs.Read(ctx, name)
	if err != nil {
		return 0, err
	}
	w.s.cache.Store(name, v)

	return v, nil
}

// idle waits d, or less when the session is signalled or ctx ends.
func (w *worker) idle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	t := pool.GetTimer(d)
	defer pool.PutTimer(t)

	select {
	case <-ctx.Done():
	case <-w.s.wake:
	case <-t.C:
	}
}

func (w *worker) status(sev Severity, msg string) {
	switch sev {
	case SeverityError:
		w.log.Error(msg)
	case SeverityWarning:
		w.log.Warn(msg)
	default:
		w.log.Info(msg)
	}

	w.s.emit(Event{Kind: EventStatus, Severity: sev, Message: msg})
}
