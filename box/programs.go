package box

import (
	"context"
	"fmt"

	"github.com/arloliu/go-mk312/register"
)

// MaxUserPrograms is the number of user program slots.
const MaxUserPrograms = 7

// UserProgram locates a user program in the box EEPROM.
type UserProgram struct {
	Mode   register.Mode
	Module byte
	Start  uint16
}

func (p UserProgram) String() string {
	return fmt.Sprintf("%s is module 0x%02x: 0x%04x (eeprom)", p.Mode, p.Module, p.Start)
}

// ReadUserPrograms walks the EEPROM start module table for count programs.
func ReadUserPrograms(ctx context.Context, dev Device, count int) ([]UserProgram, error) {
	count = min(max(count, 0), MaxUserPrograms)
	programs := make([]UserProgram, 0, count)

	for i := range count {
		module, err := dev.Peek(ctx, register.AddrUserStartModules+uint16(i))
		if err != nil {
			return nil, fmt.Errorf("user program %d: %w", i+1, err)
		}

		lookup, block := uint16(0x60), register.AddrProgramBlockLow
		if module >= 0xa0 {
			lookup, block = 0xa0, register.AddrProgramBlockHigh
		}

		offset, err := dev.Peek(ctx, register.AddrProgramLookup+uint16(module)-lookup)
		if err != nil {
			return nil, fmt.Errorf("user program %d: %w", i+1, err)
		}

		programs = append(programs, UserProgram{
			Mode:   register.ModeUser1 + register.Mode(i),
			Module: module,
			Start:  block + uint16(offset),
		})
	}

	return programs, nil
}
