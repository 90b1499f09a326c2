package box

import (
	"context"
	"fmt"

	"github.com/arloliu/go-mk312/mk312"
	"github.com/arloliu/go-mk312/register"
)

// MaxCalltablePolls bounds the wait for a calltable routine to finish.
const MaxCalltablePolls = 50

// Device is byte level register access. *mk312.Engine implements it.
type Device interface {
	Peek(ctx context.Context, addr uint16) (byte, error)
	Poke(ctx context.Context, addr uint16, data ...byte) error
}

var _ Device = (*mk312.Engine)(nil)

// channelReset re-initialises the modulation registers of one channel bank,
// leaving the channel at rest.
var channelReset = []struct {
	offset uint16
	data   []byte
}{
	{0xa8, []byte{0x00, 0x00}}, // no intensity increment
	{0xa5, []byte{0x80}},       // intensity modulation at minimum
	{0xac, []byte{0x00}},
	{0xb1, []byte{0x00}}, // rate
	{0xae, []byte{0x64}}, // frequency modulation
	{0xb5, []byte{0x04}},
	{0xb7, []byte{0xc8}}, // width modulation
	{0xba, []byte{0x00}},
	{0xbe, []byte{0x04}},
	{0x9c, []byte{0xff}}, // ramp off
}

// Registers reads and writes named registers through a Device.
type Registers struct {
	dev     Device
	catalog *register.Catalog
}

// NewRegisters binds catalog to dev. A nil catalog selects register.DefaultCatalog.
func NewRegisters(dev Device, catalog *register.Catalog) *Registers {
	if catalog == nil {
		catalog = register.DefaultCatalog()
	}

	return &Registers{dev: dev, catalog: catalog}
}

func (r *Registers) lookup(name string) (register.Descriptor, error) {
	desc, ok := r.catalog.Lookup(name)
	if !ok {
		return register.Descriptor{}, fmt.Errorf("%w: %q", mk312.ErrUnknownRegister, name)
	}

	return desc, nil
}

// Read returns the decoded value of register name.
func (r *Registers) Read(ctx context.Context, name string) (int, error) {
	desc, err := r.lookup(name)
	if err != nil {
		return 0, err
	}

	raw, err := r.dev.Peek(ctx, desc.Address())
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", name, err)
	}

	return desc.Decode(raw), nil
}

// Write stores value into register name. Bit registers are read, modified
// and written back.
func (r *Registers) Write(ctx context.Context, name string, value int) error {
	desc, err := r.lookup(name)
	if err != nil {
		return err
	}

	var current byte
	if desc.NeedsCurrent() {
		if current, err = r.dev.Peek(ctx, desc.Address()); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	if err := r.dev.Poke(ctx, desc.Address(), desc.Merge(current, value)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	return nil
}

// runCalltable starts a firmware routine and waits for it to report done.
func (r *Registers) runCalltable(ctx context.Context, data ...byte) error {
	if err := r.dev.Poke(ctx, register.AddrCalltable, data...); err != nil {
		return err
	}

	return r.waitCalltable(ctx)
}

// waitCalltable polls the calltable register until it reads 0xff or
// MaxCalltablePolls polls went by. Running out of polls is not an error.
func (r *Registers) waitCalltable(ctx context.Context) error {
	for range MaxCalltablePolls {
		v, err := r.dev.Peek(ctx, register.AddrCalltable)
		if err != nil {
			return err
		}
		if v == register.CalltableDone {
			return nil
		}
	}

	return nil
}

// ResetToNone stops the running mode: it executes an unused mode id, puts both
// channel banks at rest and replaces the mode label with "None".
func (r *Registers) ResetToNone(ctx context.Context) error {
	if err := r.dev.Poke(ctx, register.AddrModeSelect, byte(register.ModeTransient)); err != nil {
		return fmt.Errorf("reset mode: %w", err)
	}
	if err := r.runCalltable(ctx, register.CalltableExecuteMode); err != nil {
		return fmt.Errorf("reset mode: %w", err)
	}

	for _, bank := range []uint16{register.ChannelBankA, register.ChannelBankB} {
		for _, p := range channelReset {
			if err := r.dev.Poke(ctx, bank+p.offset, p.data...); err != nil {
				return fmt.Errorf("reset channel bank 0x%04x: %w", bank, err)
			}
		}
	}

	return r.ShowText(ctx, register.ModeNone.String())
}

// ShowText blanks the mode label, then writes text into it one character
// at a time. Short labels are shifted one position right.
func (r *Registers) ShowText(ctx context.Context, text string) error {
	if err := validateText(text); err != nil {
		return err
	}

	if err := r.dev.Poke(ctx, register.AddrTextBuffer, register.TextBufferClear); err != nil {
		return fmt.Errorf("clear display: %w", err)
	}
	if err := r.runCalltable(ctx, register.CalltableClearDisplay); err != nil {
		return fmt.Errorf("clear display: %w", err)
	}

	offset := 9
	if len(text) >= register.LabelWidth {
		offset = 8
	}

	for pos := 0; pos < len(text); pos++ {
		if err := r.dev.Poke(ctx, register.AddrTextBuffer, text[pos], byte(pos+offset)); err != nil {
			return fmt.Errorf("write display: %w", err)
		}
		if err := r.runCalltable(ctx, register.CalltableWriteChar); err != nil {
			return fmt.Errorf("write display: %w", err)
		}
	}

	return nil
}

func validateText(text string) error {
	if len(text) > register.LabelWidth {
		return fmt.Errorf("%w: display text longer than %d characters", mk312.ErrValidation, register.LabelWidth)
	}
	for i := 0; i < len(text); i++ {
		if text[i] < 0x20 || text[i] > 0x7e {
			return fmt.Errorf("%w: display text must be printable ASCII", mk312.ErrValidation)
		}
	}

	return nil
}
