// Package register describes the MK-312 memory map exposed to clients.
//
// Every client-visible parameter has a symbolic name bound to a Descriptor. A
// descriptor is one of three shapes:
//
//   - Plain: the byte at an address, used as is.
//   - Bit: a single flag inside the byte at an address.
//   - Offset: the byte at an address minus a fixed correction.
//
// The Catalog binding names to descriptors is built once and never mutated.
package register

import (
	"fmt"
	"maps"
	"slices"
)

// Kind selects the descriptor shape.
type Kind uint8

const (
	KindPlain Kind = iota
	KindBit
	KindOffset
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindBit:
		return "bit"
	case KindOffset:
		return "offset"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Descriptor locates a register in device memory.
type Descriptor struct {
	kind   Kind
	addr   uint16
	bit    uint8
	offset int
}

// Plain describes the byte at addr.
func Plain(addr uint16) Descriptor {
	return Descriptor{kind: KindPlain, addr: addr}
}

// Bit describes flag bit (0-7) of the byte at addr.
func Bit(addr uint16, bit uint8) Descriptor {
	if bit > 7 {
		panic(fmt.Sprintf("register: bit index %d out of range [0, 7]", bit))
	}

	return Descriptor{kind: KindBit, addr: addr, bit: bit}
}

// Offset describes the byte at addr corrected by offset: reads subtract it.
func Offset(addr uint16, offset int) Descriptor {
	return Descriptor{kind: KindOffset, addr: addr, offset: offset}
}

func (d Descriptor) Kind() Kind      { return d.kind }
func (d Descriptor) Address() uint16 { return d.addr }
func (d Descriptor) BitIndex() uint8 { return d.bit }
func (d Descriptor) Offset() int     { return d.offset }

// Decode converts the raw byte read at the descriptor's address into the
// register value. A Bit register decodes to the masked byte, so any non-zero
// result means the flag is set.
func (d Descriptor) Decode(raw byte) int {
	switch d.kind {
	case KindBit:
		return int(raw & (1 << d.bit))
	case KindOffset:
		return int(raw) - d.offset
	default:
		return int(raw)
	}
}

// Merge returns the byte to write for value given the byte currently stored.
// Only Bit registers look at current: the flag is cleared, then set again when
// value is non-zero. Plain and Offset registers write value unchanged; callers
// writing an Offset register already include the offset.
func (d Descriptor) Merge(current byte, value int) byte {
	switch d.kind {
	case KindBit:
		out := current &^ (1 << d.bit)
		if value != 0 {
			out |= 1 << d.bit
		}

		return out
	default:
		return byte(value)
	}
}

// NeedsCurrent reports whether writing requires reading the current byte first.
func (d Descriptor) NeedsCurrent() bool {
	return d.kind == KindBit
}

func (d Descriptor) String() string {
	switch d.kind {
	case KindBit:
		return fmt.Sprintf("0x%04x.%d", d.addr, d.bit)
	case KindOffset:
		return fmt.Sprintf("0x%04x%+d", d.addr, -d.offset)
	default:
		return fmt.Sprintf("0x%04x", d.addr)
	}
}

// Catalog is an immutable name to descriptor mapping.
type Catalog struct {
	regs map[string]Descriptor
}

// NewCatalog builds a catalog from regs. The map is copied.
func NewCatalog(regs map[string]Descriptor) *Catalog {
	return &Catalog{regs: maps.Clone(regs)}
}

// Lookup returns the descriptor bound to name.
func (c *Catalog) Lookup(name string) (Descriptor, bool) {
	d, ok := c.regs[name]
	return d, ok
}

// Has reports whether name is a known register.
func (c *Catalog) Has(name string) bool {
	_, ok := c.regs[name]
	return ok
}

// Names returns all register names, sorted.
func (c *Catalog) Names() []string {
	return slices.Sorted(maps.Keys(c.regs))
}

// Len returns the number of registers.
func (c *Catalog) Len() int {
	return len(c.regs)
}
