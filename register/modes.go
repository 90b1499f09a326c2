package register

import (
	"fmt"
	"strings"
)

// Mode is the 8-bit mode id held in the current_mode register.
type Mode uint8

const (
	ModeNone    Mode = 0x00
	ModeWaves   Mode = 0x76
	ModeStroke  Mode = 0x77
	ModeClimb   Mode = 0x78
	ModeCombo   Mode = 0x79
	ModeIntense Mode = 0x7a
	ModeRhythm  Mode = 0x7b
	ModeAudio1  Mode = 0x7c
	ModeAudio2  Mode = 0x7d
	ModeAudio3  Mode = 0x7e
	ModeSplit   Mode = 0x7f
	ModeRandom1 Mode = 0x80
	ModeRandom2 Mode = 0x81
	ModeToggle  Mode = 0x82
	ModeOrgasm  Mode = 0x83
	ModeTorment Mode = 0x84
	ModePhase1  Mode = 0x85
	ModePhase2  Mode = 0x86
	ModePhase3  Mode = 0x87
	ModeUser1   Mode = 0x88
	ModeUser2   Mode = 0x89
	ModeUser3   Mode = 0x8a
	ModeUser4   Mode = 0x8b
	ModeUser5   Mode = 0x8c
	ModeUser6   Mode = 0x8d
	ModeUser7   Mode = 0x8e

	// ModeTransient is an id with no program behind it. Executing it stops
	// whatever mode was running; the "None" reset goes through it.
	ModeTransient Mode = 0x90
)

var modeNames = map[Mode]string{
	ModeNone: "None", ModeWaves: "Waves", ModeStroke: "Stroke", ModeClimb: "Climb",
	ModeCombo: "Combo", ModeIntense: "Intense", ModeRhythm: "Rhythm",
	ModeAudio1: "Audio1", ModeAudio2: "Audio2", ModeAudio3: "Audio3",
	ModeSplit: "Split", ModeRandom1: "Random1", ModeRandom2: "Random2",
	ModeToggle: "Toggle", ModeOrgasm: "Orgasm", ModeTorment: "Torment",
	ModePhase1: "Phase1", ModePhase2: "Phase2", ModePhase3: "Phase3",
	ModeUser1: "User1", ModeUser2: "User2", ModeUser3: "User3", ModeUser4: "User4",
	ModeUser5: "User5", ModeUser6: "User6", ModeUser7: "User7",
}

// Modes returns the named modes in id order.
func Modes() []Mode {
	out := []Mode{ModeNone}
	for m := ModeWaves; m <= ModeUser7; m++ {
		out = append(out, m)
	}

	return out
}

// String returns the mode name, or Mode(0x..) for ids outside the catalog.
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}

	return fmt.Sprintf("Mode(0x%02x)", uint8(m))
}

// Known reports whether m is a named mode.
func (m Mode) Known() bool {
	_, ok := modeNames[m]
	return ok
}

// IsUser reports whether m is one of the seven user program slots.
func (m Mode) IsUser() bool {
	return m >= ModeUser1 && m <= ModeUser7
}

// ParseMode resolves a mode name, case-insensitively.
func ParseMode(name string) (Mode, error) {
	for m, n := range modeNames {
		if strings.EqualFold(n, name) {
			return m, nil
		}
	}

	return 0, fmt.Errorf("register: unknown mode %q", name)
}

// PowerLevel is the value of the power_level_range register.
type PowerLevel uint8

const (
	PowerLow    PowerLevel = 1
	PowerNormal PowerLevel = 2
	PowerHigh   PowerLevel = 3
)

func (p PowerLevel) String() string {
	switch p {
	case PowerLow:
		return "Low (1)"
	case PowerNormal:
		return "Normal (2)"
	case PowerHigh:
		return "High (3)"
	default:
		return fmt.Sprintf("PowerLevel(%d)", uint8(p))
	}
}

// Known reports whether p is one of the three documented levels.
func (p PowerLevel) Known() bool {
	return p >= PowerLow && p <= PowerHigh
}
