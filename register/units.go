package register

// BatteryVolts converts a battery_voltage reading to volts.
func BatteryVolts(raw int) float64 {
	return float64(raw) / 12.425
}

// PSUVolts converts a psu_voltage reading to volts.
func PSUVolts(raw int) float64 {
	return float64(raw) * 0.12
}

// BatteryPercent maps a battery voltage onto a 0-100 gauge, 11.5V being empty.
func BatteryPercent(volts float64) int {
	p := int((volts - 11.5) * 57.14)

	return min(max(p, 0), 100)
}

// LevelPercent converts a 0-255 channel level or battery_voltage_boot reading to percent.
func LevelPercent(raw int) float64 {
	return float64(raw) / 2.56
}
