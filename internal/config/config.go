package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backends for configuration space access
const (
	BackendPort    = "port"
	BackendSysfs   = "sysfs"
	BackendFixture = "fixture"
)

// ErrInvalidBackend is returned for an unknown access backend
var ErrInvalidBackend = errors.New("invalid access backend")

// Config represents the pcicam configuration
type Config struct {
	LogLevel  string       `yaml:"log_level"`
	LogFormat string       `yaml:"log_format"`
	Access    AccessConfig `yaml:"access"`
	Scan      ScanConfig   `yaml:"scan"`
	PciIDs    string       `yaml:"pci_ids"`
	Filter    FilterConfig `yaml:"filter"`
	Server    ServerConfig `yaml:"server"`
}

// AccessConfig selects how configuration registers are reached
type AccessConfig struct {
	Backend   string `yaml:"backend"`
	SysfsRoot string `yaml:"sysfs_root"`
	Fixture   string `yaml:"fixture"`
	Domain    uint16 `yaml:"domain"`
}

// ScanConfig bounds an enumeration pass
type ScanConfig struct {
	FirstBus uint8 `yaml:"first_bus"`
	LastBus  uint8 `yaml:"last_bus"`
}

// FilterConfig selects which discovered functions get reported. Enumeration
// itself always covers every function.
type FilterConfig struct {
	AllowedVendors  []string `yaml:"allowed_vendors"`
	ExcludedVendors []string `yaml:"excluded_vendors"`
}

// ServerConfig configures the gRPC inventory service
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Access: AccessConfig{
			Backend:   BackendPort,
			SysfsRoot: "/sys/bus/pci/devices",
		},
		Scan: ScanConfig{
			FirstBus: 0,
			LastBus:  255,
		},
		Server: ServerConfig{
			Listen: ":50051",
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of Default
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.Access.Backend {
	case BackendPort, BackendSysfs:
	case BackendFixture:
		if c.Access.Fixture == "" {
			return fmt.Errorf("backend %q needs access.fixture", BackendFixture)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Access.Backend)
	}
	if c.Scan.FirstBus > c.Scan.LastBus {
		return fmt.Errorf("scan.first_bus %d is above scan.last_bus %d", c.Scan.FirstBus, c.Scan.LastBus)
	}
	if _, err := c.Filter.Allowed(); err != nil {
		return err
	}
	if _, err := c.Filter.Excluded(); err != nil {
		return err
	}
	return nil
}

// Allowed returns the parsed allow list
func (f FilterConfig) Allowed() ([]uint16, error) {
	return parseVendorIDs(f.AllowedVendors)
}

// Excluded returns the parsed exclude list
func (f FilterConfig) Excluded() ([]uint16, error) {
	return parseVendorIDs(f.ExcludedVendors)
}

// Match reports whether a vendor passes the filter. An empty allow list
// allows everything not excluded.
func (f FilterConfig) Match(vendor uint16) bool {
	excluded, _ := f.Excluded()
	for _, v := range excluded {
		if v == vendor {
			return false
		}
	}
	allowed, _ := f.Allowed()
	if len(allowed) == 0 {
		return true
	}
	for _, v := range allowed {
		if v == vendor {
			return true
		}
	}
	return false
}

// ParseVendorList parses a comma-separated list of vendor IDs such as
// "0x15b3,8086"
func ParseVendorList(list string) []string {
	if list == "" {
		return nil
	}

	vendors := make([]string, 0)
	for _, vendor := range strings.Split(list, ",") {
		vendor = strings.TrimSpace(vendor)
		if vendor != "" {
			vendors = append(vendors, vendor)
		}
	}
	return vendors
}

func parseVendorIDs(ids []string) ([]uint16, error) {
	var out []uint16
	for _, s := range ids {
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid vendor id %q: %w", s, err)
		}
		out = append(out, uint16(v))
	}
	return out, nil
}
