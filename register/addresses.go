package register

// Well-known control addresses.
const (
	// AddrCalltable runs a firmware routine when written and reads 0xff once it finished.
	AddrCalltable uint16 = 0x4070
	// AddrModeSelect holds the mode id picked up by the "execute mode" routine.
	AddrModeSelect uint16 = 0x4078
	// AddrTextBuffer receives display characters as [char, position] pairs.
	AddrTextBuffer uint16 = 0x4180
	// AddrCipherKey holds the session key; writing 0 returns the box to unkeyed state.
	AddrCipherKey uint16 = 0x4213

	// ChannelBankA and ChannelBankB are the per-channel modulation register banks.
	ChannelBankA uint16 = 0x4000
	ChannelBankB uint16 = 0x4100

	// EEPROM user program tables.
	AddrUserStartModules uint16 = 0x8018
	AddrProgramLookup    uint16 = 0x8000
	AddrProgramBlockLow  uint16 = 0x8040
	AddrProgramBlockHigh uint16 = 0x8100
)

// Calltable routines and status.
const (
	CalltableDone         byte = 0xff
	CalltableExecuteMode  byte = 0x12
	CalltableClearDisplay byte = 0x15
	CalltableWriteChar    byte = 0x13
	CalltableApplyAdv     byte = 0x20
	CalltableReloadMode   byte = 0x04
)

// TextBufferClear is the byte written to the text buffer before blanking the label.
const TextBufferClear byte = 0x64

// LabelWidth is the number of characters of the mode label on the second
// half of the top display line.
const LabelWidth = 8

// ModeCommit is written to AddrCalltable to apply a new current_mode value.
var ModeCommit = []byte{CalltableReloadMode, CalltableExecuteMode}
