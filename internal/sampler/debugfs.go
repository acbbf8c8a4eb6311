package sampler

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
)

const debugPmInfoFilename = "amdgpu_pm_info"

type debugInfo struct {
	gpuLoad *float64
	sclkMHz *float64
	mclkMHz *float64
	tempC   *float64
	powerW  *float64
}

// pmInfoRules map amdgpu_pm_info lines onto debugInfo fields. The first
// matching rule wins for a line.
var pmInfoRules = []struct {
	match func(lower string) bool
	field func(info *debugInfo) **float64
	once  bool
}{
	{match: prefix("gpu load"), field: func(i *debugInfo) **float64 { return &i.gpuLoad }},
	{match: prefix("sclk"), field: func(i *debugInfo) **float64 { return &i.sclkMHz }},
	{match: prefix("mclk"), field: func(i *debugInfo) **float64 { return &i.mclkMHz }},
	{match: prefix("gpu temperature"), field: func(i *debugInfo) **float64 { return &i.tempC }},
	{match: prefix("gpu power"), field: func(i *debugInfo) **float64 { return &i.powerW }},
	{match: prefix("power:"), field: func(i *debugInfo) **float64 { return &i.powerW }},
	{match: prefix("average gfxclk"), field: func(i *debugInfo) **float64 { return &i.sclkMHz }},
	{match: prefix("average memclk"), field: func(i *debugInfo) **float64 { return &i.mclkMHz }},
	{match: contains("gpu load"), field: func(i *debugInfo) **float64 { return &i.gpuLoad }, once: true},
	{match: suffix("(sclk)"), field: func(i *debugInfo) **float64 { return &i.sclkMHz }, once: true},
	{match: suffix("(mclk)"), field: func(i *debugInfo) **float64 { return &i.mclkMHz }, once: true},
	{match: suffix("(average gpu)"), field: func(i *debugInfo) **float64 { return &i.powerW }, once: true},
}

func prefix(p string) func(string) bool   { return func(s string) bool { return strings.HasPrefix(s, p) } }
func suffix(p string) func(string) bool   { return func(s string) bool { return strings.HasSuffix(s, p) } }
func contains(p string) func(string) bool { return func(s string) bool { return strings.Contains(s, p) } }

func (r *Reader) readDebugFSInfo() debugInfo {
	data, err := os.ReadFile(filepath.Join(r.debugCardDir, debugPmInfoFilename))
	if err != nil {
		return debugInfo{}
	}
	return parsePmInfo(data)
}

func parsePmInfo(data []byte) debugInfo {
	var info debugInfo
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, rule := range pmInfoRules {
			if !rule.match(lower) {
				continue
			}
			dst := rule.field(&info)
			if rule.once && *dst != nil {
				break
			}
			if val, ok := extractFirstFloat(line); ok {
				*dst = float64Ptr(val)
			}
			break
		}
	}
	return info
}

func (m *Metrics) needsDebugFS() bool {
	return m.GPUBusyPct == nil || m.SCLKMHz == nil || m.MCLKMHz == nil || m.PowerW == nil || m.TempC == nil
}

func (info debugInfo) apply(m *Metrics) {
	fill := func(dst **float64, src *float64) {
		if *dst == nil && src != nil {
			*dst = src
		}
	}
	fill(&m.GPUBusyPct, info.gpuLoad)
	fill(&m.SCLKMHz, info.sclkMHz)
	fill(&m.MCLKMHz, info.mclkMHz)
	fill(&m.PowerW, info.powerW)
	fill(&m.TempC, info.tempC)
}

func extractFirstFloat(line string) (float64, bool) {
	var buf strings.Builder
	var seen bool
	for _, r := range line {
		if unicode.IsDigit(r) || r == '.' || (r == '-' && !seen) {
			buf.WriteRune(r)
			seen = true
			continue
		}
		if seen {
			// Thousands separators.
			if r == ',' {
				continue
			}
			break
		}
	}
	if !seen {
		return 0, false
	}
	value, err := strconv.ParseFloat(buf.String(), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
