package gpumetrics

import "math/bits"

// ThrottlerBit is a bit position in the ASIC-independent throttle status
// word published as indep_throttle_status.
type ThrottlerBit uint8

const (
	ThrottlerPPT0    ThrottlerBit = 0
	ThrottlerPPT1    ThrottlerBit = 1
	ThrottlerPPT2    ThrottlerBit = 2
	ThrottlerPPT3    ThrottlerBit = 3
	ThrottlerSPL     ThrottlerBit = 4
	ThrottlerFPPT    ThrottlerBit = 5
	ThrottlerSPPT    ThrottlerBit = 6
	ThrottlerSPPTAPU ThrottlerBit = 7

	ThrottlerTDCGFX  ThrottlerBit = 16
	ThrottlerTDCSoC  ThrottlerBit = 17
	ThrottlerTDCMem  ThrottlerBit = 18
	ThrottlerTDCVDD  ThrottlerBit = 19
	ThrottlerTDCCVIP ThrottlerBit = 20
	ThrottlerEDCCPU  ThrottlerBit = 21
	ThrottlerEDCGFX  ThrottlerBit = 22
	ThrottlerAPCC    ThrottlerBit = 23

	ThrottlerTempGPU     ThrottlerBit = 32
	ThrottlerTempCore    ThrottlerBit = 33
	ThrottlerTempMem     ThrottlerBit = 34
	ThrottlerTempEdge    ThrottlerBit = 35
	ThrottlerTempHotspot ThrottlerBit = 36
	ThrottlerTempSoC     ThrottlerBit = 37
	ThrottlerTempVRGFX   ThrottlerBit = 38
	ThrottlerTempVRSoC   ThrottlerBit = 39
	ThrottlerTempVRMem0  ThrottlerBit = 40
	ThrottlerTempVRMem1  ThrottlerBit = 41
	ThrottlerTempLiquid0 ThrottlerBit = 42
	ThrottlerTempLiquid1 ThrottlerBit = 43
	ThrottlerVRHot0      ThrottlerBit = 44
	ThrottlerVRHot1      ThrottlerBit = 45
	ThrottlerProchotCPU  ThrottlerBit = 46
	ThrottlerProchotGPU  ThrottlerBit = 47

	ThrottlerPPM ThrottlerBit = 56
	ThrottlerFIT ThrottlerBit = 57
)

var throttlerNames = map[ThrottlerBit]string{
	ThrottlerPPT0:        "PPT0",
	ThrottlerPPT1:        "PPT1",
	ThrottlerPPT2:        "PPT2",
	ThrottlerPPT3:        "PPT3",
	ThrottlerSPL:         "SPL",
	ThrottlerFPPT:        "FPPT",
	ThrottlerSPPT:        "SPPT",
	ThrottlerSPPTAPU:     "SPPT_APU",
	ThrottlerTDCGFX:      "TDC_GFX",
	ThrottlerTDCSoC:      "TDC_SOC",
	ThrottlerTDCMem:      "TDC_MEM",
	ThrottlerTDCVDD:      "TDC_VDD",
	ThrottlerTDCCVIP:     "TDC_CVIP",
	ThrottlerEDCCPU:      "EDC_CPU",
	ThrottlerEDCGFX:      "EDC_GFX",
	ThrottlerAPCC:        "APCC",
	ThrottlerTempGPU:     "TEMP_GPU",
	ThrottlerTempCore:    "TEMP_CORE",
	ThrottlerTempMem:     "TEMP_MEM",
	ThrottlerTempEdge:    "TEMP_EDGE",
	ThrottlerTempHotspot: "TEMP_HOTSPOT",
	ThrottlerTempSoC:     "TEMP_SOC",
	ThrottlerTempVRGFX:   "TEMP_VR_GFX",
	ThrottlerTempVRSoC:   "TEMP_VR_SOC",
	ThrottlerTempVRMem0:  "TEMP_VR_MEM0",
	ThrottlerTempVRMem1:  "TEMP_VR_MEM1",
	ThrottlerTempLiquid0: "TEMP_LIQUID0",
	ThrottlerTempLiquid1: "TEMP_LIQUID1",
	ThrottlerVRHot0:      "VRHOT0",
	ThrottlerVRHot1:      "VRHOT1",
	ThrottlerProchotCPU:  "PROCHOT_CPU",
	ThrottlerProchotGPU:  "PROCHOT_GPU",
	ThrottlerPPM:         "PPM",
	ThrottlerFIT:         "FIT",
}

func (b ThrottlerBit) String() string {
	if name, ok := throttlerNames[b]; ok {
		return name
	}
	return "UNKNOWN"
}

// ThrottlerType groups throttlers by the limit they enforce.
type ThrottlerType string

const (
	ThrottlerTypePower       ThrottlerType = "power"
	ThrottlerTypeCurrent     ThrottlerType = "current"
	ThrottlerTypeTemperature ThrottlerType = "temperature"
	ThrottlerTypeOther       ThrottlerType = "other"
)

// Type returns the category of b, following the bit ranges of the status word.
func (b ThrottlerBit) Type() ThrottlerType {
	switch {
	case b < 16:
		return ThrottlerTypePower
	case b < 32:
		return ThrottlerTypeCurrent
	case b < 56:
		return ThrottlerTypeTemperature
	default:
		return ThrottlerTypeOther
	}
}

// ThrottleStatus is an ASIC-independent throttle status word.
type ThrottleStatus uint64

// Has reports whether throttler b is active.
func (s ThrottleStatus) Has(b ThrottlerBit) bool {
	return s>>b&1 == 1
}

// Active lists the known throttlers set in s in bit order.
func (s ThrottleStatus) Active() []ThrottlerBit {
	var out []ThrottlerBit
	for word := uint64(s); word != 0; word &= word - 1 {
		b := ThrottlerBit(bits.TrailingZeros64(word))
		if _, known := throttlerNames[b]; known {
			out = append(out, b)
		}
	}
	return out
}

// Names returns the names of the active throttlers.
func (s ThrottleStatus) Names() []string {
	active := s.Active()
	out := make([]string, len(active))
	for i, b := range active {
		out[i] = b.String()
	}
	return out
}

// Types lists the distinct categories of the active throttlers in
// power, current, temperature, other order.
func (s ThrottleStatus) Types() []ThrottlerType {
	seen := make(map[ThrottlerType]bool, 4)
	for _, b := range s.Active() {
		seen[b.Type()] = true
	}
	var out []ThrottlerType
	for _, t := range []ThrottlerType{ThrottlerTypePower, ThrottlerTypeCurrent, ThrottlerTypeTemperature, ThrottlerTypeOther} {
		if seen[t] {
			out = append(out, t)
		}
	}
	return out
}

// hotspotThrottleFloor is the hotspot temperature below which the 1.3
// TEMP_HOTSPOT flag is ignored. SMU 13.0.0/13.0.7 firmware raises it at idle.
const hotspotThrottleFloor = 90

// v2_1 publishes the SMU 13 APU throttler bits directly.
var v2_1ThrottlerMap = [...]struct {
	from uint
	to   ThrottlerBit
}{
	{0, ThrottlerSPL},
	{1, ThrottlerFPPT},
	{2, ThrottlerSPPT},
	{3, ThrottlerSPPTAPU},
	{4, ThrottlerTempCore},
	{5, ThrottlerTempGPU},
	{6, ThrottlerTempSoC},
	{7, ThrottlerTDCVDD},
	{8, ThrottlerTDCSoC},
	{9, ThrottlerProchotCPU},
	{10, ThrottlerProchotGPU},
	{11, ThrottlerEDCCPU},
	{12, ThrottlerEDCGFX},
}

// IndependentThrottleStatus returns the ASIC-independent throttle status of s.
// Revision 2.1 only carries the ASIC-dependent word, which is translated.
// Revisions without either source fail with ErrNotPresent.
func IndependentThrottleStatus(s *Snapshot) (ThrottleStatus, error) {
	rev := s.Revision()
	switch rev {
	case Revision{Format: 2, Content: 1}:
		raw, err := Scalar(s, "throttle_status")
		if err != nil {
			return 0, err
		}
		var indep ThrottleStatus
		for _, m := range v2_1ThrottlerMap {
			if raw>>m.from&1 == 1 {
				indep |= 1 << m.to
			}
		}
		return indep, nil
	}

	raw, err := Scalar(s, "indep_throttle_status")
	if err != nil {
		return 0, err
	}
	status := ThrottleStatus(raw)

	if rev == (Revision{Format: 1, Content: 3}) && status.Has(ThrottlerTempHotspot) {
		hotspot, herr := Scalar(s, "temperature_hotspot")
		if herr != nil || hotspot < hotspotThrottleFloor {
			status &^= 1 << ThrottlerTempHotspot
		}
	}
	return status, nil
}
