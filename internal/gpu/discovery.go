package gpu

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/skobkin/amdgpu-metrics-web/internal/gpumetrics"
)

const (
	drmClassPath = "class/drm"
)

// Info describes a single GPU device discovered via sysfs.
type Info struct {
	ID         string `json:"id"`
	PCI        string `json:"pci"`
	PCIID      string `json:"pci_id"`
	Name       string `json:"name"`
	RenderNode string `json:"render_node"`

	// GPUMetricsRevision is the revision declared by device/gpu_metrics, empty
	// when the card publishes no table.
	GPUMetricsRevision  string `json:"gpu_metrics_revision,omitempty"`
	GPUMetricsSupported bool   `json:"gpu_metrics_supported"`
}

// Discover enumerates DRM cards exposed via sysfs under the provided root.
func Discover(root string, logger *slog.Logger) ([]Info, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sysRoot, err := os.OpenRoot(root)
	if err != nil {
		return nil, fmt.Errorf("open sysfs root: %w", err)
	}
	defer sysRoot.Close()

	entries, err := fs.ReadDir(sysRoot.FS(), drmClassPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
			logger.Warn("drm class path missing", "path", filepath.Join(root, drmClassPath))
			return nil, nil
		}
		return nil, fmt.Errorf("read drm class dir: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		name := entry.Name()
		if !isCardName(name) || (!entry.IsDir() && entry.Type()&os.ModeSymlink == 0) {
			continue
		}

		cardRoot, err := sysRoot.OpenRoot(filepath.Join(drmClassPath, name))
		if err != nil {
			logger.Warn("failed to open card root", "card", name, "err", err)
			continue
		}

		info, err := loadCardInfo(name, cardRoot)
		if err := cardRoot.Close(); err != nil {
			logger.Debug("failed to close card root", "card", name, "err", err)
		}
		if err != nil {
			logger.Warn("failed to load card info", "card", name, "err", err)
			continue
		}
		infos = append(infos, info)
	}

	return infos, nil
}

func loadCardInfo(cardID string, cardRoot *os.Root) (Info, error) {
	deviceRoot, err := cardRoot.OpenRoot("device")
	if err != nil {
		return Info{}, fmt.Errorf("open device root: %w", err)
	}
	defer deviceRoot.Close()

	uevent := map[string]string{}
	if data, err := deviceRoot.ReadFile("uevent"); err == nil {
		uevent = parseUevent(string(data))
	}

	pciID := uevent["PCI_ID"]
	if pciID == "" {
		vendor, vendorErr := readTrim(deviceRoot, "vendor")
		device, deviceErr := readTrim(deviceRoot, "device")
		if vendorErr == nil && deviceErr == nil {
			pciID = strings.TrimPrefix(vendor, "0x") + ":" + strings.TrimPrefix(device, "0x")
		}
	}

	subVendor, subDevice, _ := strings.Cut(uevent["PCI_SUBSYS_ID"], ":")
	if subVendor == "" {
		subVendor, _ = readTrim(deviceRoot, "subsystem_vendor")
	}
	if subDevice == "" {
		subDevice, _ = readTrim(deviceRoot, "subsystem_device")
	}

	name := cmp.Or(uevent["PCI_ID_NAME"], uevent["DRIVER"])
	if name == "" {
		name, _ = readTrim(deviceRoot, "product_name")
	}
	if resolved := defaultResolver.Resolve(parsePCIIdentity(pciID, subVendor, subDevice)); preferResolved(name, resolved) {
		name = resolved
	}

	revision, supported := probeGPUMetrics(deviceRoot)

	return Info{
		ID:                  cardID,
		PCI:                 uevent["PCI_SLOT_NAME"],
		PCIID:               pciID,
		Name:                name,
		RenderNode:          findRenderNode(deviceRoot),
		GPUMetricsRevision:  revision,
		GPUMetricsSupported: supported,
	}, nil
}

// probeGPUMetrics reads the gpu_metrics header and reports whether the
// default registry can decode the declared revision.
func probeGPUMetrics(deviceRoot *os.Root) (string, bool) {
	file, err := deviceRoot.Open("gpu_metrics")
	if err != nil {
		return "", false
	}
	defer file.Close()

	buf := make([]byte, gpumetrics.HeaderSize)
	if _, err := io.ReadFull(file, buf); err != nil {
		return "", false
	}
	header, err := gpumetrics.ReadHeader(buf)
	if err != nil {
		return "", false
	}
	_, err = gpumetrics.DefaultRegistry().Resolve(header.FormatRevision, header.ContentRevision)
	return header.Revision().String(), err == nil
}

func findRenderNode(deviceRoot *os.Root) string {
	drmRoot, err := deviceRoot.OpenRoot("drm")
	if err != nil {
		return ""
	}
	defer drmRoot.Close()

	entries, err := fs.ReadDir(drmRoot.FS(), ".")
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "renderD") {
			return filepath.Join("/dev/dri", name)
		}
	}
	return ""
}

// parseUevent splits KEY=value lines of a sysfs uevent file.
func parseUevent(data string) map[string]string {
	values := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return values
}

func readTrim(root *os.Root, name string) (string, error) {
	data, err := root.ReadFile(name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// isCardName matches "cardN" and rejects connectors such as "card0-DP-1".
func isCardName(name string) bool {
	index, ok := strings.CutPrefix(name, "card")
	if !ok || index == "" {
		return false
	}
	for _, r := range index {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
