package gpu

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/jaypipes/pcidb"
)

func TestDiscover(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	card0 := filepath.Join(root, "class", "drm", "card0", "device")
	writeFile(t, filepath.Join(card0, "uevent"), "DRIVER=amdgpu\nPCI_ID=1002:73DF\nPCI_SLOT_NAME=0000:0a:00.0\nPCI_ID_NAME=AMD Radeon RX 6800\n")
	mkdirAll(t, filepath.Join(card0, "drm", "renderD128"))
	writeFile(t, filepath.Join(card0, "gpu_metrics"), string([]byte{0x78, 0x00, 0x01, 0x03}))

	card1 := filepath.Join(root, "class", "drm", "card1", "device")
	writeFile(t, filepath.Join(card1, "uevent"), "DRIVER=amdgpu\nPCI_SLOT_NAME=0000:0b:00.0\n")
	writeFile(t, filepath.Join(card1, "vendor"), "0x1002\n")
	writeFile(t, filepath.Join(card1, "device"), "0x731f\n")
	writeFile(t, filepath.Join(card1, "product_name"), "AMD Radeon Pro Test\n")
	mkdirAll(t, filepath.Join(card1, "drm", "renderD129"))
	writeFile(t, filepath.Join(card1, "gpu_metrics"), string([]byte{0x40, 0x00, 0x09, 0x01}))

	// Connector entries and render nodes are not cards.
	mkdirAll(t, filepath.Join(root, "class", "drm", "card0-DP-1"))
	mkdirAll(t, filepath.Join(root, "class", "drm", "renderD128"))

	infos, err := Discover(root, logger)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}

	if len(infos) != 2 {
		t.Fatalf("expected 2 GPUs, got %d", len(infos))
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID < infos[j].ID
	})

	first := infos[0]
	if first.ID != "card0" {
		t.Fatalf("expected first GPU id 'card0', got %q", first.ID)
	}
	if first.PCI != "0000:0a:00.0" {
		t.Errorf("unexpected PCI slot: %q", first.PCI)
	}
	if first.PCIID != "1002:73DF" {
		t.Errorf("unexpected PCI ID: %q", first.PCIID)
	}
	if first.Name == "" {
		t.Errorf("expected a name for card0")
	}
	if first.RenderNode != "/dev/dri/renderD128" {
		t.Errorf("unexpected render node: %q", first.RenderNode)
	}
	if first.GPUMetricsRevision != "1.3" || !first.GPUMetricsSupported {
		t.Errorf("unexpected gpu_metrics probe: %q supported=%v", first.GPUMetricsRevision, first.GPUMetricsSupported)
	}

	second := infos[1]
	if second.ID != "card1" {
		t.Fatalf("expected second GPU id 'card1', got %q", second.ID)
	}
	if second.PCIID != "1002:731f" {
		t.Errorf("expected PCI ID fallback to vendor/device, got %q", second.PCIID)
	}
	if second.RenderNode != "/dev/dri/renderD129" {
		t.Errorf("unexpected render node for card1: %q", second.RenderNode)
	}
	if second.GPUMetricsRevision != "9.1" || second.GPUMetricsSupported {
		t.Errorf("unexpected gpu_metrics probe for card1: %q supported=%v", second.GPUMetricsRevision, second.GPUMetricsSupported)
	}
}

func TestDiscoverWithoutGPUMetrics(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deviceDir := filepath.Join(root, "class", "drm", "card2", "device")
	writeFile(t, filepath.Join(deviceDir, "uevent"), "DRIVER=amdgpu\nPCI_ID=1002:1638\n")
	writeFile(t, filepath.Join(deviceDir, "gpu_metrics"), "ab")

	infos, err := Discover(root, logger)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 GPU, got %d", len(infos))
	}
	if infos[0].GPUMetricsRevision != "" || infos[0].GPUMetricsSupported {
		t.Fatalf("short table must not report a revision: %+v", infos[0])
	}
}

func mkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o750); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

func TestDiscoverMissingDRMClass(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	infos, err := Discover(root, logger)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}

	if len(infos) != 0 {
		t.Fatalf("expected 0 GPUs, got %d", len(infos))
	}
}

func TestDiscoverFollowsSymlinks(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	classPath := filepath.Join(root, "class", "drm")
	if err := os.MkdirAll(classPath, 0o750); err != nil {
		t.Fatalf("mkdir class: %v", err)
	}

	target := filepath.Join(root, "devices", "pci0000:00", "0000:00:01.0", "drm", "card0")
	deviceDir := filepath.Join(target, "device")
	if err := os.MkdirAll(filepath.Join(deviceDir, "drm"), 0o750); err != nil {
		t.Fatalf("mkdir device: %v", err)
	}

	writeFile(t, filepath.Join(deviceDir, "uevent"), "PCI_SLOT_NAME=0000:00:01.0\nPCI_ID=1002:73df\n")
	writeFile(t, filepath.Join(deviceDir, "vendor"), "0x1002\n")
	writeFile(t, filepath.Join(deviceDir, "device"), "0x73df\n")
	if err := os.MkdirAll(filepath.Join(deviceDir, "drm", "renderD128"), 0o750); err != nil {
		t.Fatalf("mkdir render node: %v", err)
	}

	linkPath := filepath.Join(classPath, "card0")
	relTarget, err := filepath.Rel(classPath, target)
	if err != nil {
		t.Fatalf("filepath.Rel: %v", err)
	}
	if err := os.Symlink(relTarget, linkPath); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	infos, err := Discover(root, logger)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "card0" {
		t.Fatalf("expected symlinked gpu, got %+v", infos)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDiscoverUsesPCIDatabase(t *testing.T) {
	t.Parallel()

	db, err := pcidb.New()
	if err != nil {
		t.Skipf("pcidb unavailable: %v", err)
	}

	const (
		vendorID = "1002"
		deviceID = "73BF"
	)

	productKey := strings.ToUpper(vendorID + deviceID)
	product, ok := db.Products[productKey]
	if !ok || product == nil || product.Name == "" {
		t.Skipf("pcidb missing product for %s", productKey)
	}

	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deviceDir := filepath.Join(root, "class", "drm", "card0", "device")
	renderDir := filepath.Join(deviceDir, "drm", "renderD128")
	if err := os.MkdirAll(renderDir, 0o750); err != nil {
		t.Fatalf("mkdir render dir: %v", err)
	}

	writeFile(t, filepath.Join(deviceDir, "uevent"), "PCI_SLOT_NAME=0000:00:01.0\nPCI_ID=1002:73BF\nPCI_SUBSYS_ID=1849:5201\n")
	writeFile(t, filepath.Join(deviceDir, "vendor"), "0x1002\n")
	writeFile(t, filepath.Join(deviceDir, "device"), "0x73bf\n")
	writeFile(t, filepath.Join(deviceDir, "subsystem_vendor"), "0x1849\n")
	writeFile(t, filepath.Join(deviceDir, "subsystem_device"), "0x5201\n")

	infos, err := Discover(root, logger)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 GPU, got %d", len(infos))
	}

	name := infos[0].Name
	if name == "" {
		t.Fatalf("expected non-empty name from pci ids")
	}
	if name != product.Name {
		t.Fatalf("expected name %q, got %q", product.Name, name)
	}
}

func TestIsCardName(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"card0":      true,
		"card12":     true,
		"card":       false,
		"card0-DP-1": false,
		"renderD128": false,
		"cardX":      false,
	}
	for name, want := range cases {
		if got := isCardName(name); got != want {
			t.Errorf("isCardName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNameResolverCachesAndPrefersSubsystem(t *testing.T) {
	t.Parallel()

	loads := 0
	resolver := newNameResolver(func() (*pcidb.PCIDB, error) {
		loads++
		return &pcidb.PCIDB{
			Products: map[string]*pcidb.Product{
				"100273bf": {
					VendorID: "1002",
					ID:       "73bf",
					Name:     "Navi 21",
					Subsystems: []*pcidb.Product{
						{VendorID: "1849", ID: "5201", Name: "Radeon RX 6900 XT OC"},
					},
				},
			},
		}, nil
	})

	if got := resolver.Resolve(parsePCIIdentity("1002:73BF", "0x1849", "0x5201")); got != "Radeon RX 6900 XT OC" {
		t.Fatalf("expected subsystem name, got %q", got)
	}
	if got := resolver.Resolve(parsePCIIdentity("0x1002:0x73bf", "", "")); got != "Navi 21" {
		t.Fatalf("expected product name, got %q", got)
	}
	if got := resolver.Resolve(parsePCIIdentity("1002:ffff", "", "")); got != "" {
		t.Fatalf("expected no name for unknown device, got %q", got)
	}
	if got := resolver.Resolve(parsePCIIdentity("", "", "")); got != "" {
		t.Fatalf("expected no name for empty identity, got %q", got)
	}
	if loads != 1 {
		t.Fatalf("expected the database to load once, got %d", loads)
	}
}

func TestPreferResolved(t *testing.T) {
	t.Parallel()

	tests := []struct {
		current, resolved string
		want              bool
	}{
		{"", "Navi 21", true},
		{"amdgpu", "Navi 21", true},
		{"PCI device 73bf", "Navi 21", true},
		{"0x73bf", "Navi 21", true},
		{"AMD Radeon RX 6800", "Navi 21", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := preferResolved(tt.current, tt.resolved); got != tt.want {
			t.Errorf("preferResolved(%q, %q) = %v, want %v", tt.current, tt.resolved, got, tt.want)
		}
	}
}
