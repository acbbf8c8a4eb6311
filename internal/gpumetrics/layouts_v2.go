package gpumetrics

// Format 2 tables are published by APUs. Temperatures are centi-Celsius
// and power is milliwatts.

// legacy v2_0 keeps the counter first and relies on compiler padding.
var v2_0 = mustLayout(2, 0, 120, true,
	scalar("system_clock_counter", 8, 8, UnitNanosecond, 1),

	scalar("temperature_gfx", 16, 2, UnitCelsius, centi),
	scalar("temperature_soc", 18, 2, UnitCelsius, centi),
	array("temperature_core", 20, 2, 8, UnitCelsius, centi),
	array("temperature_l3", 36, 2, 2, UnitCelsius, centi),

	scalar("average_gfx_activity", 40, 2, UnitPercent, 1),
	scalar("average_mm_activity", 42, 2, UnitPercent, 1),

	scalar("average_socket_power", 44, 2, UnitWatt, milli),
	scalar("average_cpu_power", 46, 2, UnitWatt, milli),
	scalar("average_soc_power", 48, 2, UnitWatt, milli),
	scalar("average_gfx_power", 50, 2, UnitWatt, milli),
	array("average_core_power", 52, 2, 8, UnitWatt, milli),

	scalar("average_gfxclk_frequency", 68, 2, UnitMHz, 1),
	scalar("average_socclk_frequency", 70, 2, UnitMHz, 1),
	scalar("average_uclk_frequency", 72, 2, UnitMHz, 1),
	scalar("average_fclk_frequency", 74, 2, UnitMHz, 1),
	scalar("average_vclk_frequency", 76, 2, UnitMHz, 1),
	scalar("average_dclk_frequency", 78, 2, UnitMHz, 1),

	scalar("current_gfxclk", 80, 2, UnitMHz, 1),
	scalar("current_socclk", 82, 2, UnitMHz, 1),
	scalar("current_uclk", 84, 2, UnitMHz, 1),
	scalar("current_fclk", 86, 2, UnitMHz, 1),
	scalar("current_vclk", 88, 2, UnitMHz, 1),
	scalar("current_dclk", 90, 2, UnitMHz, 1),
	array("current_coreclk", 92, 2, 8, UnitMHz, 1),
	array("current_l3clk", 108, 2, 2, UnitMHz, 1),

	scalar("throttle_status", 112, 4, UnitBitmask, 1),
	scalar("fan_pwm", 116, 2, UnitNone, 1),
	padding("padding", 118, 2, 1),
)

// v2Common returns the fields shared by revisions 2.1 through 2.4.
func v2Common(activityScale float64) []FieldSpec {
	return []FieldSpec{
		scalar("temperature_gfx", 4, 2, UnitCelsius, centi),
		scalar("temperature_soc", 6, 2, UnitCelsius, centi),
		array("temperature_core", 8, 2, 8, UnitCelsius, centi),
		array("temperature_l3", 24, 2, 2, UnitCelsius, centi),

		scalar("average_gfx_activity", 28, 2, UnitPercent, activityScale),
		scalar("average_mm_activity", 30, 2, UnitPercent, activityScale),

		scalar("system_clock_counter", 32, 8, UnitNanosecond, 1),

		scalar("average_socket_power", 40, 2, UnitWatt, milli),
		scalar("average_cpu_power", 42, 2, UnitWatt, milli),
		scalar("average_soc_power", 44, 2, UnitWatt, milli),
		scalar("average_gfx_power", 46, 2, UnitWatt, milli),
		array("average_core_power", 48, 2, 8, UnitWatt, milli),

		scalar("average_gfxclk_frequency", 64, 2, UnitMHz, 1),
		scalar("average_socclk_frequency", 66, 2, UnitMHz, 1),
		scalar("average_uclk_frequency", 68, 2, UnitMHz, 1),
		scalar("average_fclk_frequency", 70, 2, UnitMHz, 1),
		scalar("average_vclk_frequency", 72, 2, UnitMHz, 1),
		scalar("average_dclk_frequency", 74, 2, UnitMHz, 1),

		scalar("current_gfxclk", 76, 2, UnitMHz, 1),
		scalar("current_socclk", 78, 2, UnitMHz, 1),
		scalar("current_uclk", 80, 2, UnitMHz, 1),
		scalar("current_fclk", 82, 2, UnitMHz, 1),
		scalar("current_vclk", 84, 2, UnitMHz, 1),
		scalar("current_dclk", 86, 2, UnitMHz, 1),
		array("current_coreclk", 88, 2, 8, UnitMHz, 1),
		array("current_l3clk", 104, 2, 2, UnitMHz, 1),

		scalar("throttle_status", 108, 4, UnitBitmask, 1),
		scalar("fan_pwm", 112, 2, UnitNone, 1),
		padding("padding", 114, 2, 3),
	}
}

func v2AverageTemperatures() []FieldSpec {
	return []FieldSpec{
		scalar("average_temperature_gfx", 128, 2, UnitCelsius, centi),
		scalar("average_temperature_soc", 130, 2, UnitCelsius, centi),
		array("average_temperature_core", 132, 2, 8, UnitCelsius, centi),
		array("average_temperature_l3", 148, 2, 2, UnitCelsius, centi),
	}
}

var v2_1 = mustLayout(2, 1, 120, false, v2Common(1)...)

var v2_2 = mustLayout(2, 2, 128, false, append(v2Common(1),
	scalar("indep_throttle_status", 120, 8, UnitBitmask, 1),
)...)

var v2_3 = mustLayout(2, 3, 152, false, append(append(v2Common(1),
	scalar("indep_throttle_status", 120, 8, UnitBitmask, 1)),
	v2AverageTemperatures()...,
)...)

var v2_4 = mustLayout(2, 4, 168, false, append(append(append(v2Common(centi),
	scalar("indep_throttle_status", 120, 8, UnitBitmask, 1)),
	v2AverageTemperatures()...),
	scalar("average_cpu_voltage", 152, 2, UnitVolt, milli),
	scalar("average_soc_voltage", 154, 2, UnitVolt, milli),
	scalar("average_gfx_voltage", 156, 2, UnitVolt, milli),
	scalar("average_cpu_current", 158, 2, UnitAmpere, milli),
	scalar("average_soc_current", 160, 2, UnitAmpere, milli),
	scalar("average_gfx_current", 162, 2, UnitAmpere, milli),
)...)
