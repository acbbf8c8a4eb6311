package gpumetrics

// Metric is a logical quantity that different revisions publish under
// different field names. Read tries each source in order and uses the first
// field the snapshot carries.
type Metric struct {
	Name    string
	sources []source
}

// source names a field, and for array fields the element to use.
type source struct {
	field string
	index int
}

func metric(name string, fields ...string) Metric {
	m := Metric{Name: name}
	for _, field := range fields {
		m.sources = append(m.sources, source{field: field})
	}
	return m
}

// Fields lists the candidate field names in lookup order.
func (m Metric) Fields() []string {
	out := make([]string, len(m.sources))
	for i, src := range m.sources {
		out[i] = src.field
	}
	return out
}

var (
	MetricEdgeTemperature    = metric("edge_temperature", "temperature_edge", "temperature_gfx")
	MetricHotspotTemperature = metric("hotspot_temperature", "temperature_hotspot")
	MetricMemTemperature     = metric("mem_temperature", "temperature_mem")
	MetricSoCTemperature     = metric("soc_temperature", "temperature_soc")
	MetricVRSoCTemperature   = metric("vrsoc_temperature", "temperature_vrsoc")

	MetricSocketPower = metric("socket_power", "average_socket_power", "curr_socket_power")
	MetricGFXPower    = metric("gfx_power", "average_gfx_power")

	MetricGFXActivity   = metric("gfx_activity", "average_gfx_activity")
	MetricMemActivity   = metric("mem_activity", "average_umc_activity")
	MetricMediaActivity = metric("media_activity", "average_mm_activity", "average_vcn_activity", "vcn_activity")

	MetricGFXClock = metric("gfx_clock", "current_gfxclk", "average_gfxclk_frequency")
	MetricMemClock = metric("mem_clock", "current_uclk", "average_uclk_frequency")
	MetricSoCClock = metric("soc_clock", "current_socclk", "average_socclk_frequency")

	MetricFanSpeed = metric("fan_speed", "current_fan_speed")

	MetricPCIeLinkWidth = metric("pcie_link_width", "pcie_link_width")
	MetricPCIeLinkSpeed = metric("pcie_link_speed", "pcie_link_speed")
	MetricXGMILinkWidth = metric("xgmi_link_width", "xgmi_link_width")
	MetricXGMILinkSpeed = metric("xgmi_link_speed", "xgmi_link_speed")

	MetricEnergy     = metric("energy", "energy_accumulator")
	MetricGFXVoltage = metric("gfx_voltage", "voltage_gfx", "average_gfx_voltage")
)

// CanonicalMetrics lists every cross-revision metric in a stable order.
func CanonicalMetrics() []Metric {
	return []Metric{
		MetricEdgeTemperature,
		MetricHotspotTemperature,
		MetricMemTemperature,
		MetricSoCTemperature,
		MetricVRSoCTemperature,
		MetricSocketPower,
		MetricGFXPower,
		MetricGFXActivity,
		MetricMemActivity,
		MetricMediaActivity,
		MetricGFXClock,
		MetricMemClock,
		MetricSoCClock,
		MetricFanSpeed,
		MetricPCIeLinkWidth,
		MetricPCIeLinkSpeed,
		MetricXGMILinkWidth,
		MetricXGMILinkSpeed,
		MetricEnergy,
		MetricGFXVoltage,
	}
}

// Read resolves m against s and converts it into its physical unit. Array
// fields contribute their selected element, the first by default.
// ErrNotPresent is returned when no candidate field exists; a candidate
// holding the "no reading" marker yields ErrNoReading.
func Read(s *Snapshot, m Metric) (Reading, error) {
	for _, src := range m.sources {
		v, ok := s.values[src.field]
		if !ok {
			continue
		}
		index := 0
		if v.Kind == KindArray {
			index = src.index
		}
		if index >= v.Len() {
			continue
		}
		return physicalElement(v, index)
	}
	return Reading{}, &NotPresentError{Name: m.Name, Revision: s.Revision()}
}
