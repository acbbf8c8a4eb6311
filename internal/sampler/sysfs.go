package sampler

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	gpuBusyFilename       = "gpu_busy_percent"
	memBusyFilename       = "mem_busy_percent"
	ppDpmSclkFilename     = "pp_dpm_sclk"
	ppDpmMclkFilename     = "pp_dpm_mclk"
	ppDpmSocclkFilename   = "pp_dpm_socclk"
	linkWidthFilename     = "current_link_width"
	linkSpeedFilename     = "current_link_speed"
	hwmonTempFile         = "temp1_input"
	hwmonFanFile          = "fan1_input"
	hwmonPowerAverageFile = "power1_average"
	hwmonPowerInputFile   = "power1_input"
	hwmonGFXVoltageFile   = "in0_input"
)

// hwmon temperature channels by label. Unlabelled boards expose only temp1,
// which is the edge sensor.
var hwmonTempLabels = map[string]func(m *Metrics) **float64{
	"edge":     func(m *Metrics) **float64 { return &m.TempC },
	"junction": func(m *Metrics) **float64 { return &m.HotspotTempC },
	"mem":      func(m *Metrics) **float64 { return &m.MemTempC },
}

func (r *Reader) readSysfs() Metrics {
	var metrics Metrics

	metrics.GPUBusyPct = r.readPercent(filepath.Join(r.devicePath, gpuBusyFilename))
	metrics.MemBusyPct = r.readPercent(filepath.Join(r.devicePath, memBusyFilename))

	metrics.SCLKMHz = r.readCurrentClock(ppDpmSclkFilename)
	metrics.MCLKMHz = r.readCurrentClock(ppDpmMclkFilename)
	metrics.SOCCLKMHz = r.readCurrentClock(ppDpmSocclkFilename)

	metrics.VRAMUsedBytes = r.readUint(filepath.Join(r.devicePath, "mem_info_vram_used"))
	metrics.VRAMTotalBytes = r.readUint(filepath.Join(r.devicePath, "mem_info_vram_total"))
	metrics.GTTUsedBytes = r.readUint(filepath.Join(r.devicePath, "mem_info_gtt_used"))
	metrics.GTTTotalBytes = r.readUint(filepath.Join(r.devicePath, "mem_info_gtt_total"))

	if width := r.readUint(filepath.Join(r.devicePath, linkWidthFilename)); width != nil {
		metrics.PCIeLinkWidth = float64Ptr(float64(*width))
	}
	metrics.PCIeLinkSpeedGT = r.readLinkSpeed(filepath.Join(r.devicePath, linkSpeedFilename))

	if r.hwmonPath != "" {
		r.readHwmon(&metrics)
	}
	return metrics
}

func (r *Reader) readHwmon(metrics *Metrics) {
	labelled := false
	for i := 1; i <= len(hwmonTempLabels); i++ {
		label, err := os.ReadFile(filepath.Join(r.hwmonPath, fmt.Sprintf("temp%d_label", i)))
		if err != nil {
			continue
		}
		pick, ok := hwmonTempLabels[strings.TrimSpace(string(label))]
		if !ok {
			continue
		}
		labelled = true
		*pick(metrics) = r.readScaledFloat(filepath.Join(r.hwmonPath, fmt.Sprintf("temp%d_input", i)), 1000)
	}
	if !labelled {
		metrics.TempC = r.readScaledFloat(filepath.Join(r.hwmonPath, hwmonTempFile), 1000)
	}

	metrics.FanRPM = r.readFloat(filepath.Join(r.hwmonPath, hwmonFanFile))
	metrics.GFXVoltageV = r.readScaledFloat(filepath.Join(r.hwmonPath, hwmonGFXVoltageFile), 1000)

	metrics.PowerW = r.readScaledFloat(filepath.Join(r.hwmonPath, hwmonPowerAverageFile), 1_000_000)
	if metrics.PowerW == nil {
		metrics.PowerW = r.readScaledFloat(filepath.Join(r.hwmonPath, hwmonPowerInputFile), 1_000_000)
	}
}

func (r *Reader) readPercent(path string) *float64 {
	value, err := r.readFloatValue(path)
	if err != nil || value < 0 {
		return nil
	}
	if value > 100 {
		// Some kernels report busy % scaled by 100.
		value = min(value/100, 100)
	}
	return float64Ptr(value)
}

// readCurrentClock returns the DPM level marked active with "*".
func (r *Reader) readCurrentClock(filename string) *float64 {
	raw, err := os.ReadFile(filepath.Join(r.devicePath, filename))
	if err != nil {
		return nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "*") {
			continue
		}
		if clock, ok := extractClockMHz(line); ok {
			return float64Ptr(clock)
		}
	}
	return nil
}

// readLinkSpeed parses current_link_speed, e.g. "16.0 GT/s PCIe".
func (r *Reader) readLinkSpeed(path string) *float64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 || !strings.EqualFold(fields[1], "GT/s") {
		return nil
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		r.logger.Debug("failed to parse link speed", "path", path, "value", string(data), "err", err)
		return nil
	}
	return float64Ptr(value)
}

func (r *Reader) readUint(path string) *uint64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	valueStr := strings.TrimSpace(string(data))
	if valueStr == "" {
		return nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		r.logger.Debug("failed to parse uint value", "path", path, "value", valueStr, "err", err)
		return nil
	}
	return uint64Ptr(value)
}

func (r *Reader) readScaledFloat(path string, divisor float64) *float64 {
	value, err := r.readFloatValue(path)
	if err != nil {
		return nil
	}
	return float64Ptr(value / divisor)
}

func (r *Reader) readFloat(path string) *float64 {
	value, err := r.readFloatValue(path)
	if err != nil {
		return nil
	}
	return float64Ptr(value)
}

func (r *Reader) readFloatValue(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	valueStr := strings.TrimSpace(string(data))
	if valueStr == "" {
		return 0, fmt.Errorf("empty value")
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	return value, nil
}

func detectHwmon(devicePath string) string {
	hwmonRoot := filepath.Join(devicePath, "hwmon")
	entries, err := os.ReadDir(hwmonRoot)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() || entry.Type()&os.ModeSymlink != 0 {
			return filepath.Join(hwmonRoot, entry.Name())
		}
	}
	return ""
}

func extractClockMHz(line string) (float64, bool) {
	for _, field := range strings.Fields(line) {
		field = strings.ToLower(strings.TrimSuffix(field, "*"))
		valueStr, ok := strings.CutSuffix(field, "mhz")
		if !ok {
			continue
		}
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return value, true
		}
	}
	return 0, false
}
