package register

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptor_Decode(t *testing.T) {
	tests := []struct {
		name string
		desc Descriptor
		raw  byte
		want int
	}{
		{"plain", Plain(0x4064), 0xc8, 0xc8},
		{"bit set", Bit(0x400f, 0), 0x01, 1},
		{"bit clear", Bit(0x400f, 0), 0x00, 0},
		{"bit ignores other bits", Bit(0x400f, 0), 0xfe, 0},
		{"high bit", Bit(0x400f, 7), 0x80, 0x80},
		{"offset", Offset(0x41f3, 0x87), 0x89, 2},
		{"offset below zero", Offset(0x41f3, 0x87), 0x80, -7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.desc.Decode(tt.raw))
		})
	}
}

func TestDescriptor_Merge(t *testing.T) {
	bit := Bit(0x400f, 2)
	assert.True(t, bit.NeedsCurrent())
	assert.Equal(t, byte(0xf4), bit.Merge(0xf0, 1))
	assert.Equal(t, byte(0xf4), bit.Merge(0xf0, 255))
	assert.Equal(t, byte(0xf0), bit.Merge(0xf4, 0))
	assert.Equal(t, byte(0x00), bit.Merge(0x04, 0))

	plain := Plain(0x4064)
	assert.False(t, plain.NeedsCurrent())
	assert.Equal(t, byte(0x42), plain.Merge(0xff, 0x42))

	// the caller already added the offset
	off := Offset(0x41f3, 0x87)
	assert.Equal(t, byte(0x89), off.Merge(0, 0x89))
}

func TestBit_OutOfRangePanics(t *testing.T) {
	assert.Panics(t, func() { Bit(0x4000, 8) })
}

func TestDescriptor_String(t *testing.T) {
	assert.Equal(t, "0x4064", Plain(0x4064).String())
	assert.Equal(t, "0x400f.0", Bit(0x400f, 0).String())
	assert.Equal(t, "0x41f3-135", Offset(0x41f3, 0x87).String())
	assert.Equal(t, "offset", KindOffset.String())
}

func TestDefaultCatalog(t *testing.T) {
	cat := DefaultCatalog()

	d, ok := cat.Lookup(CurrentMode)
	require.True(t, ok)
	assert.Equal(t, uint16(0x407b), d.Address())
	assert.Equal(t, KindPlain, d.Kind())

	d, ok = cat.Lookup(ADCDisable)
	require.True(t, ok)
	assert.Equal(t, KindBit, d.Kind())
	assert.Equal(t, uint8(0), d.BitIndex())

	d, ok = cat.Lookup(UserModesLoaded)
	require.True(t, ok)
	assert.Equal(t, KindOffset, d.Kind())
	assert.Equal(t, 0x87, d.Offset())

	_, ok = cat.Lookup("nope")
	assert.False(t, ok)
	assert.False(t, cat.Has("nope"))

	names := cat.Names()
	assert.Len(t, names, cat.Len())
	assert.IsNonDecreasing(t, names)
	for _, name := range AdvancedParams {
		assert.True(t, cat.Has(name), name)
		assert.True(t, IsAdvancedParam(name), name)
	}
	assert.False(t, IsAdvancedParam(CurrentMode))
}

func TestNewCatalog_Copies(t *testing.T) {
	src := map[string]Descriptor{"a": Plain(1)}
	cat := NewCatalog(src)
	src["b"] = Plain(2)

	assert.False(t, cat.Has("b"))
	assert.Equal(t, 1, cat.Len())
}

func TestMode(t *testing.T) {
	assert.Equal(t, "None", ModeNone.String())
	assert.Equal(t, "Waves", ModeWaves.String())
	assert.Equal(t, "User7", ModeUser7.String())
	assert.Equal(t, "Mode(0x90)", ModeTransient.String())
	assert.False(t, ModeTransient.Known())
	assert.True(t, ModeUser3.IsUser())
	assert.False(t, ModePhase3.IsUser())

	m, err := ParseMode("stroke")
	require.NoError(t, err)
	assert.Equal(t, ModeStroke, m)

	_, err = ParseMode("disco")
	require.Error(t, err)

	modes := Modes()
	assert.Len(t, modes, 26)
	assert.Equal(t, ModeNone, modes[0])
	assert.Equal(t, ModeUser7, modes[len(modes)-1])
	for _, m := range modes {
		assert.True(t, m.Known(), m.String())
	}
}

func TestPowerLevel(t *testing.T) {
	assert.Equal(t, "Low (1)", PowerLow.String())
	assert.Equal(t, "Normal (2)", PowerNormal.String())
	assert.Equal(t, "High (3)", PowerHigh.String())
	assert.Equal(t, "PowerLevel(9)", PowerLevel(9).String())
	assert.False(t, PowerLevel(0).Known())
}

func TestUnits(t *testing.T) {
	assert.InDelta(t, 12.877, BatteryVolts(160), 0.001)
	assert.InDelta(t, 15.0, PSUVolts(125), 0.001)
	assert.Equal(t, 0, BatteryPercent(11.0))
	assert.Equal(t, 100, BatteryPercent(14.0))
	assert.Equal(t, 57, BatteryPercent(12.5))
	assert.InDelta(t, 50.0, LevelPercent(128), 0.001)
}
