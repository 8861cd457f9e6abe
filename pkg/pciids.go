package pkg

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/siderolabs/go-pcidb/pkg/pcidb"
)

// VendorDatabase holds vendor and device names parsed from pci.ids. A
// database without a parsed table answers from the compiled-in copy of
// pci.ids shipped with go-pcidb.
type VendorDatabase struct {
	Vendors  map[uint16]VendorInfo
	embedded bool
}

// VendorInfo holds a vendor name and its devices
type VendorInfo struct {
	Name    string
	Devices map[uint16]string
}

// DefaultPciIDsPaths are searched in order when no path is configured
var DefaultPciIDsPaths = []string{
	"/usr/share/hwdata/pci.ids",
	"/usr/share/pci.ids",
	"/usr/share/misc/pci.ids",
}

// LoadVendorDatabase parses the pci.ids file at path, or the first of
// DefaultPciIDsPaths that exists when path is empty. It falls back to the
// embedded database when nothing is found.
func LoadVendorDatabase(path string) (*VendorDatabase, error) {
	if path == "" {
		for _, p := range DefaultPciIDsPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path == "" {
		Debug("no pci.ids found, using embedded vendor database")
		return EmbeddedVendorDatabase(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vendor database: %w", err)
	}
	defer f.Close()

	db, err := ParseVendorDatabase(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	WithField("path", path).WithField("vendors", len(db.Vendors)).Debug("loaded vendor database")
	return db, nil
}

// ParseVendorDatabase reads the pci.ids format: vendor lines at column 0,
// device lines indented by one tab. Subsystem lines and the class section
// are skipped.
func ParseVendorDatabase(r io.Reader) (*VendorDatabase, error) {
	db := &VendorDatabase{Vendors: make(map[uint16]VendorInfo)}

	var current *VendorInfo
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Class definitions start the trailing section
		if strings.HasPrefix(line, "C ") {
			break
		}

		switch {
		case strings.HasPrefix(line, "\t\t"):
			continue
		case strings.HasPrefix(line, "\t"):
			if current == nil {
				continue
			}
			id, name, ok := splitIDLine(line[1:])
			if ok {
				current.Devices[id] = name
			}
		default:
			id, name, ok := splitIDLine(line)
			if !ok {
				current = nil
				continue
			}
			v := VendorInfo{Name: name, Devices: make(map[uint16]string)}
			db.Vendors[id] = v
			current = &v
		}
	}
	return db, scanner.Err()
}

func splitIDLine(line string) (uint16, string, bool) {
	if len(line) < 6 {
		return 0, "", false
	}
	id, err := strconv.ParseUint(line[:4], 16, 16)
	if err != nil {
		return 0, "", false
	}
	return uint16(id), strings.TrimSpace(line[4:]), true
}

// EmbeddedVendorDatabase returns a database backed by go-pcidb
func EmbeddedVendorDatabase() *VendorDatabase {
	return &VendorDatabase{embedded: true}
}

// VendorName returns the vendor name or an empty string
func (db *VendorDatabase) VendorName(vendor uint16) string {
	if db == nil {
		return ""
	}
	if db.embedded {
		name, _ := pcidb.LookupVendor(vendor)
		return name
	}
	return db.Vendors[vendor].Name
}

// DeviceName returns the device name or an empty string
func (db *VendorDatabase) DeviceName(vendor, device uint16) string {
	if db == nil {
		return ""
	}
	if db.embedded {
		name, _ := pcidb.LookupProduct(vendor, device)
		return name
	}
	v, ok := db.Vendors[vendor]
	if !ok {
		return ""
	}
	return v.Devices[device]
}
