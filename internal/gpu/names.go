package gpu

import (
	"strings"
	"sync"

	"github.com/jaypipes/pcidb"
)

// pciIdentity is the vendor/device quadruple used to look a card up in the
// PCI ID database. All parts are lower-case hex without a 0x prefix.
type pciIdentity struct {
	Vendor    string
	Device    string
	SubVendor string
	SubDevice string
}

// parsePCIIdentity builds an identity from a "vvvv:dddd" pair and optional
// subsystem IDs, normalising every part.
func parsePCIIdentity(pair, subVendor, subDevice string) pciIdentity {
	vendor, device, _ := strings.Cut(pair, ":")
	return pciIdentity{
		Vendor:    normalizePCIID(vendor),
		Device:    normalizePCIID(device),
		SubVendor: normalizePCIID(subVendor),
		SubDevice: normalizePCIID(subDevice),
	}
}

func (id pciIdentity) valid() bool {
	return id.Vendor != "" && id.Device != ""
}

func (id pciIdentity) hasSubsystem() bool {
	return id.SubVendor != "" && id.SubDevice != ""
}

// nameResolver maps PCI identities to marketing names. The database is loaded
// lazily on first use and lookups are memoised.
type nameResolver struct {
	load func() (*pcidb.PCIDB, error)

	once sync.Once
	db   *pcidb.PCIDB

	mu    sync.Mutex
	cache map[pciIdentity]string
}

func newNameResolver(load func() (*pcidb.PCIDB, error)) *nameResolver {
	return &nameResolver{load: load, cache: make(map[pciIdentity]string)}
}

var defaultResolver = newNameResolver(func() (*pcidb.PCIDB, error) { return pcidb.New() })

func (r *nameResolver) database() *pcidb.PCIDB {
	r.once.Do(func() {
		db, err := r.load()
		if err == nil {
			r.db = db
		}
	})
	return r.db
}

// Resolve returns the most specific name known for id, or "" when the
// database is unavailable or has no entry.
func (r *nameResolver) Resolve(id pciIdentity) string {
	if !id.valid() {
		return ""
	}

	r.mu.Lock()
	name, ok := r.cache[id]
	r.mu.Unlock()
	if ok {
		return name
	}

	name = r.lookup(id)

	r.mu.Lock()
	r.cache[id] = name
	r.mu.Unlock()
	return name
}

func (r *nameResolver) lookup(id pciIdentity) string {
	db := r.database()
	if db == nil {
		return ""
	}
	product := db.Products[id.Vendor+id.Device]
	if product == nil {
		return ""
	}
	if id.hasSubsystem() {
		for _, sub := range product.Subsystems {
			if sub == nil || sub.Name == "" {
				continue
			}
			if strings.EqualFold(sub.VendorID, id.SubVendor) && strings.EqualFold(sub.ID, id.SubDevice) {
				return sub.Name
			}
		}
	}
	return product.Name
}

func normalizePCIID(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.TrimPrefix(value, "0x")
	if value == "" {
		return ""
	}
	if len(value) < 4 {
		value = strings.Repeat("0", 4-len(value)) + value
	}
	return value
}

// genericNames are driver-provided placeholders that a database name beats.
var genericNames = map[string]struct{}{
	"amdgpu":  {},
	"radeon":  {},
	"unknown": {},
}

// preferResolved reports whether the database name should replace the name
// taken from uevent or product_name.
func preferResolved(current, resolved string) bool {
	if resolved == "" {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(current))
	if lower == "" {
		return true
	}
	if _, ok := genericNames[lower]; ok {
		return true
	}
	return strings.HasPrefix(lower, "pci device") || strings.HasPrefix(lower, "0x")
}
