package gpumetrics

// Format 1 tables are published by discrete GPUs and the MI-series
// accelerators. Temperatures are whole degrees Celsius and power is Watts.

const (
	energyScale    = 1.0 / 65536 // 15.259uJ resolution
	linkSpeedScale = 0.1         // 0.1 GT/s
	fwTickScale    = 10          // 10ns firmware ticks
	milli          = 0.001
	centi          = 0.01
)

// legacy v1_0 keeps the counter first and relies on compiler padding.
var v1_0 = mustLayout(1, 0, 80, true,
	scalar("system_clock_counter", 8, 8, UnitNanosecond, 1),

	scalar("temperature_edge", 16, 2, UnitCelsius, 1),
	scalar("temperature_hotspot", 18, 2, UnitCelsius, 1),
	scalar("temperature_mem", 20, 2, UnitCelsius, 1),
	scalar("temperature_vrgfx", 22, 2, UnitCelsius, 1),
	scalar("temperature_vrsoc", 24, 2, UnitCelsius, 1),
	scalar("temperature_vrmem", 26, 2, UnitCelsius, 1),

	scalar("average_gfx_activity", 28, 2, UnitPercent, 1),
	scalar("average_umc_activity", 30, 2, UnitPercent, 1),
	scalar("average_mm_activity", 32, 2, UnitPercent, 1),

	scalar("average_socket_power", 34, 2, UnitWatt, 1),
	scalar("energy_accumulator", 36, 4, UnitNone, 1),

	scalar("average_gfxclk_frequency", 40, 2, UnitMHz, 1),
	scalar("average_socclk_frequency", 42, 2, UnitMHz, 1),
	scalar("average_uclk_frequency", 44, 2, UnitMHz, 1),
	scalar("average_vclk0_frequency", 46, 2, UnitMHz, 1),
	scalar("average_dclk0_frequency", 48, 2, UnitMHz, 1),
	scalar("average_vclk1_frequency", 50, 2, UnitMHz, 1),
	scalar("average_dclk1_frequency", 52, 2, UnitMHz, 1),

	scalar("current_gfxclk", 54, 2, UnitMHz, 1),
	scalar("current_socclk", 56, 2, UnitMHz, 1),
	scalar("current_uclk", 58, 2, UnitMHz, 1),
	scalar("current_vclk0", 60, 2, UnitMHz, 1),
	scalar("current_dclk0", 62, 2, UnitMHz, 1),
	scalar("current_vclk1", 64, 2, UnitMHz, 1),
	scalar("current_dclk1", 66, 2, UnitMHz, 1),

	scalar("throttle_status", 68, 4, UnitBitmask, 1),
	scalar("current_fan_speed", 72, 2, UnitRPM, 1),

	scalar("pcie_link_width", 74, 1, UnitLanes, 1),
	scalar("pcie_link_speed", 75, 1, UnitGTs, linkSpeedScale),
)

// v1Common returns the fields shared by revisions 1.1 through 1.3.
func v1Common() []FieldSpec {
	return []FieldSpec{
		scalar("temperature_edge", 4, 2, UnitCelsius, 1),
		scalar("temperature_hotspot", 6, 2, UnitCelsius, 1),
		scalar("temperature_mem", 8, 2, UnitCelsius, 1),
		scalar("temperature_vrgfx", 10, 2, UnitCelsius, 1),
		scalar("temperature_vrsoc", 12, 2, UnitCelsius, 1),
		scalar("temperature_vrmem", 14, 2, UnitCelsius, 1),

		scalar("average_gfx_activity", 16, 2, UnitPercent, 1),
		scalar("average_umc_activity", 18, 2, UnitPercent, 1),
		scalar("average_mm_activity", 20, 2, UnitPercent, 1),

		scalar("average_socket_power", 22, 2, UnitWatt, 1),
		scalar("energy_accumulator", 24, 8, UnitJoule, energyScale),
		scalar("system_clock_counter", 32, 8, UnitNanosecond, 1),

		scalar("average_gfxclk_frequency", 40, 2, UnitMHz, 1),
		scalar("average_socclk_frequency", 42, 2, UnitMHz, 1),
		scalar("average_uclk_frequency", 44, 2, UnitMHz, 1),
		scalar("average_vclk0_frequency", 46, 2, UnitMHz, 1),
		scalar("average_dclk0_frequency", 48, 2, UnitMHz, 1),
		scalar("average_vclk1_frequency", 50, 2, UnitMHz, 1),
		scalar("average_dclk1_frequency", 52, 2, UnitMHz, 1),

		scalar("current_gfxclk", 54, 2, UnitMHz, 1),
		scalar("current_socclk", 56, 2, UnitMHz, 1),
		scalar("current_uclk", 58, 2, UnitMHz, 1),
		scalar("current_vclk0", 60, 2, UnitMHz, 1),
		scalar("current_dclk0", 62, 2, UnitMHz, 1),
		scalar("current_vclk1", 64, 2, UnitMHz, 1),
		scalar("current_dclk1", 66, 2, UnitMHz, 1),

		scalar("throttle_status", 68, 4, UnitBitmask, 1),
		scalar("current_fan_speed", 72, 2, UnitRPM, 1),

		scalar("pcie_link_width", 74, 2, UnitLanes, 1),
		scalar("pcie_link_speed", 76, 2, UnitGTs, linkSpeedScale),
		padding("padding", 78, 2, 1),

		scalar("gfx_activity_acc", 80, 4, UnitCount, 1),
		scalar("mem_activity_acc", 84, 4, UnitCount, 1),
		array("temperature_hbm", 88, 2, 4, UnitCelsius, 1),
	}
}

var v1_1 = mustLayout(1, 1, 96, false, v1Common()...)

var v1_2 = mustLayout(1, 2, 104, false, append(v1Common(),
	scalar("firmware_timestamp", 96, 8, UnitNanosecond, fwTickScale),
)...)

var v1_3 = mustLayout(1, 3, 120, false, append(v1Common(),
	scalar("firmware_timestamp", 96, 8, UnitNanosecond, fwTickScale),
	scalar("voltage_soc", 104, 2, UnitVolt, milli),
	scalar("voltage_gfx", 106, 2, UnitVolt, milli),
	scalar("voltage_mem", 108, 2, UnitVolt, milli),
	padding("padding1", 110, 2, 1),
	scalar("indep_throttle_status", 112, 8, UnitBitmask, 1),
)...)

// v1_4 and v1_5 are the MI300 layouts: per-instance clock and engine arrays.
var v1_4 = mustLayout(1, 4, 288, false,
	scalar("temperature_hotspot", 4, 2, UnitCelsius, 1),
	scalar("temperature_mem", 6, 2, UnitCelsius, 1),
	scalar("temperature_vrsoc", 8, 2, UnitCelsius, 1),
	scalar("curr_socket_power", 10, 2, UnitWatt, 1),
	scalar("average_gfx_activity", 12, 2, UnitPercent, 1),
	scalar("average_umc_activity", 14, 2, UnitPercent, 1),
	array("vcn_activity", 16, 2, 4, UnitPercent, 1),

	scalar("energy_accumulator", 24, 8, UnitJoule, energyScale),
	scalar("system_clock_counter", 32, 8, UnitNanosecond, 1),
	scalar("throttle_status", 40, 4, UnitBitmask, 1),
	scalar("gfxclk_lock_status", 44, 4, UnitBitmask, 1),

	scalar("pcie_link_width", 48, 2, UnitLanes, 1),
	scalar("pcie_link_speed", 50, 2, UnitGTs, linkSpeedScale),
	scalar("xgmi_link_width", 52, 2, UnitLanes, 1),
	scalar("xgmi_link_speed", 54, 2, UnitGbps, 1),

	scalar("gfx_activity_acc", 56, 4, UnitCount, 1),
	scalar("mem_activity_acc", 60, 4, UnitCount, 1),

	scalar("pcie_bandwidth_acc", 64, 8, UnitGBps, 1),
	scalar("pcie_bandwidth_inst", 72, 8, UnitGBps, 1),
	scalar("pcie_l0_to_recov_count_acc", 80, 8, UnitCount, 1),
	scalar("pcie_replay_count_acc", 88, 8, UnitCount, 1),
	scalar("pcie_replay_rover_count_acc", 96, 8, UnitCount, 1),

	array("xgmi_read_data_acc", 104, 8, 8, UnitKilobyte, 1),
	array("xgmi_write_data_acc", 168, 8, 8, UnitKilobyte, 1),

	scalar("firmware_timestamp", 232, 8, UnitNanosecond, fwTickScale),

	array("current_gfxclk", 240, 2, 8, UnitMHz, 1),
	array("current_socclk", 256, 2, 4, UnitMHz, 1),
	array("current_vclk0", 264, 2, 4, UnitMHz, 1),
	array("current_dclk0", 272, 2, 4, UnitMHz, 1),
	scalar("current_uclk", 280, 2, UnitMHz, 1),
	padding("padding", 282, 2, 1),
)

var v1_5 = mustLayout(1, 5, 360, false,
	scalar("temperature_hotspot", 4, 2, UnitCelsius, 1),
	scalar("temperature_mem", 6, 2, UnitCelsius, 1),
	scalar("temperature_vrsoc", 8, 2, UnitCelsius, 1),
	scalar("curr_socket_power", 10, 2, UnitWatt, 1),
	scalar("average_gfx_activity", 12, 2, UnitPercent, 1),
	scalar("average_umc_activity", 14, 2, UnitPercent, 1),
	array("vcn_activity", 16, 2, 4, UnitPercent, 1),
	array("jpeg_activity", 24, 2, 32, UnitPercent, 1),

	scalar("energy_accumulator", 88, 8, UnitJoule, energyScale),
	scalar("system_clock_counter", 96, 8, UnitNanosecond, 1),
	scalar("throttle_status", 104, 4, UnitBitmask, 1),
	scalar("gfxclk_lock_status", 108, 4, UnitBitmask, 1),

	scalar("pcie_link_width", 112, 2, UnitLanes, 1),
	scalar("pcie_link_speed", 114, 2, UnitGTs, linkSpeedScale),
	scalar("xgmi_link_width", 116, 2, UnitLanes, 1),
	scalar("xgmi_link_speed", 118, 2, UnitGbps, 1),

	scalar("gfx_activity_acc", 120, 4, UnitCount, 1),
	scalar("mem_activity_acc", 124, 4, UnitCount, 1),

	scalar("pcie_bandwidth_acc", 128, 8, UnitGBps, 1),
	scalar("pcie_bandwidth_inst", 136, 8, UnitGBps, 1),
	scalar("pcie_l0_to_recov_count_acc", 144, 8, UnitCount, 1),
	scalar("pcie_replay_count_acc", 152, 8, UnitCount, 1),
	scalar("pcie_replay_rover_count_acc", 160, 8, UnitCount, 1),
	scalar("pcie_nak_sent_count_acc", 168, 4, UnitCount, 1),
	scalar("pcie_nak_rcvd_count_acc", 172, 4, UnitCount, 1),

	array("xgmi_read_data_acc", 176, 8, 8, UnitKilobyte, 1),
	array("xgmi_write_data_acc", 240, 8, 8, UnitKilobyte, 1),

	scalar("firmware_timestamp", 304, 8, UnitNanosecond, fwTickScale),

	array("current_gfxclk", 312, 2, 8, UnitMHz, 1),
	array("current_socclk", 328, 2, 4, UnitMHz, 1),
	array("current_vclk0", 336, 2, 4, UnitMHz, 1),
	array("current_dclk0", 344, 2, 4, UnitMHz, 1),
	scalar("current_uclk", 352, 2, UnitMHz, 1),
	padding("padding", 354, 2, 1),
)
