package register

import "strings"

// Register names.
const (
	AdvRampLevel = "advparam_ramp_level"
	AdvRampTime  = "advparam_ramp_time"
	AdvDepth     = "advparam_depth"
	AdvTempo     = "advparam_tempo"
	AdvFrequency = "advparam_frequency"
	AdvEffect    = "advparam_effect"
	AdvWidth     = "advparam_width"
	AdvPace      = "advparam_pace"

	CurrentSense       = "current_sense"
	MultiAdjustValue   = "multiadjust_value"
	MultiAdjustScaled  = "multiadjust_scaled"
	MultiAdjustMin     = "multiadjust_min"
	MultiAdjustMax     = "multiadjust_max"
	PSUVoltage         = "psu_voltage"
	BatteryVoltage     = "battery_voltage"
	BatteryVoltageBoot = "battery_voltage_boot"
	ChannelALevel      = "channel_a_level"
	ChannelBLevel      = "channel_b_level"
	PowerLevelRange    = "power_level_range"
	UserModesLoaded    = "user_modes_loaded"
	ADCDisable         = "adc_disable"
	BoxVersion         = "box_version"
	Version1           = "v1"
	Version2           = "v2"
	Version3           = "v3"
	ComCipherKey       = "com_cipher_key"
	CurrentMode        = "current_mode"
	ChannelASplitMode  = "channel_a_split_mode"
	ChannelBSplitMode  = "channel_b_split_mode"
	CurrentRandomMode  = "current_random_mode"
)

const advancedPrefix = "advparam_"

// AdvancedParams lists the advanced parameter registers in device order.
var AdvancedParams = []string{
	AdvRampLevel, AdvRampTime, AdvDepth, AdvTempo,
	AdvFrequency, AdvEffect, AdvWidth, AdvPace,
}

// IsAdvancedParam reports whether name is an advanced parameter register.
// Writes to those must be followed by a commit.
func IsAdvancedParam(name string) bool {
	return strings.HasPrefix(name, advancedPrefix)
}

var defaultCatalog = NewCatalog(map[string]Descriptor{
	AdvRampLevel: Plain(0x41f8),
	AdvRampTime:  Plain(0x41f9),
	AdvDepth:     Plain(0x41fa),
	AdvTempo:     Plain(0x41fb),
	AdvFrequency: Plain(0x41fc),
	AdvEffect:    Plain(0x41fd),
	AdvWidth:     Plain(0x41fe),
	AdvPace:      Plain(0x41ff),

	CurrentSense:       Plain(0x4060),
	MultiAdjustValue:   Plain(0x4061),
	MultiAdjustScaled:  Plain(0x420d),
	MultiAdjustMin:     Plain(0x4086),
	MultiAdjustMax:     Plain(0x4087),
	PSUVoltage:         Plain(0x4062),
	BatteryVoltage:     Plain(0x4063),
	BatteryVoltageBoot: Plain(0x4203),
	ChannelALevel:      Plain(0x4064),
	ChannelBLevel:      Plain(0x4065),
	PowerLevelRange:    Plain(0x41f4),
	UserModesLoaded:    Offset(0x41f3, 0x87),
	ADCDisable:         Bit(0x400f, 0),
	BoxVersion:         Plain(0x00fc),
	Version1:           Plain(0x00fd),
	Version2:           Plain(0x00fe),
	Version3:           Plain(0x00ff),
	ComCipherKey:       Plain(AddrCipherKey),
	CurrentMode:        Plain(0x407b),
	ChannelASplitMode:  Plain(0x41f5),
	ChannelBSplitMode:  Plain(0x41f6),
	CurrentRandomMode:  Plain(0x4074),
})

// DefaultCatalog returns the MK-312BT register catalog.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}
