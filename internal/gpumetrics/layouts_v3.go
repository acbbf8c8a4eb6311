package gpumetrics

// v3_0 is the Strix-class APU table. Power is reported in milliwatts with a
// few 32-bit aggregates; per-core arrays hold sixteen entries.
var v3_0 = mustLayout(3, 0, 264, false,
	scalar("temperature_gfx", 4, 2, UnitCelsius, centi),
	scalar("temperature_soc", 6, 2, UnitCelsius, centi),
	array("temperature_core", 8, 2, 16, UnitCelsius, centi),
	scalar("temperature_skin", 40, 2, UnitCelsius, centi),

	scalar("average_gfx_activity", 42, 2, UnitPercent, 1),
	scalar("average_vcn_activity", 44, 2, UnitPercent, 1),
	array("average_ipu_activity", 46, 2, 8, UnitPercent, 1),
	array("average_core_c0_activity", 62, 2, 16, UnitPercent, 1),

	scalar("average_dram_reads", 94, 2, UnitMBps, 1),
	scalar("average_dram_writes", 96, 2, UnitMBps, 1),
	scalar("average_ipu_reads", 98, 2, UnitMBps, 1),
	scalar("average_ipu_writes", 100, 2, UnitMBps, 1),

	scalar("system_clock_counter", 104, 8, UnitNanosecond, 1),

	scalar("average_socket_power", 112, 4, UnitWatt, milli),
	scalar("average_ipu_power", 116, 2, UnitWatt, milli),
	scalar("average_apu_power", 120, 4, UnitWatt, milli),
	scalar("average_gfx_power", 124, 4, UnitWatt, milli),
	scalar("average_dgpu_power", 128, 4, UnitWatt, milli),
	scalar("average_all_core_power", 132, 4, UnitWatt, milli),
	array("average_core_power", 136, 2, 16, UnitWatt, milli),
	scalar("average_sys_power", 168, 2, UnitWatt, milli),
	scalar("stapm_power_limit", 170, 2, UnitWatt, milli),
	scalar("current_stapm_power_limit", 172, 2, UnitWatt, milli),

	scalar("average_gfxclk_frequency", 174, 2, UnitMHz, 1),
	scalar("average_socclk_frequency", 176, 2, UnitMHz, 1),
	scalar("average_vpeclk_frequency", 178, 2, UnitMHz, 1),
	scalar("average_ipuclk_frequency", 180, 2, UnitMHz, 1),
	scalar("average_fclk_frequency", 182, 2, UnitMHz, 1),
	scalar("average_vclk_frequency", 184, 2, UnitMHz, 1),
	scalar("average_uclk_frequency", 186, 2, UnitMHz, 1),
	scalar("average_mpipu_frequency", 188, 2, UnitMHz, 1),

	array("current_coreclk", 190, 2, 16, UnitMHz, 1),
	scalar("current_core_maxfreq", 222, 2, UnitMHz, 1),
	scalar("current_gfx_maxfreq", 224, 2, UnitMHz, 1),

	scalar("throttle_residency_prochot", 228, 4, UnitCount, 1),
	scalar("throttle_residency_spl", 232, 4, UnitCount, 1),
	scalar("throttle_residency_fppt", 236, 4, UnitCount, 1),
	scalar("throttle_residency_sppt", 240, 4, UnitCount, 1),
	scalar("throttle_residency_thm_core", 244, 4, UnitCount, 1),
	scalar("throttle_residency_thm_gfx", 248, 4, UnitCount, 1),
	scalar("throttle_residency_thm_soc", 252, 4, UnitCount, 1),

	scalar("time_filter_alphavalue", 256, 4, UnitSecond, 1e-6),
)

func builtinLayouts() []*Layout {
	return []*Layout{
		v1_0, v1_1, v1_2, v1_3, v1_4, v1_5,
		v2_0, v2_1, v2_2, v2_3, v2_4,
		v3_0,
	}
}
