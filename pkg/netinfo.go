package pkg

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/safchain/ethtool"
)

// DriverQuerier is the subset of ethtool used to describe an interface
type DriverQuerier interface {
	DriverName(intf string) (string, error)
	BusInfo(intf string) (string, error)
	Close()
}

// NetInfo describes the kernel network interfaces backed by a function
type NetInfo struct {
	Interfaces []string `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	Driver     string   `json:"driver,omitempty" yaml:"driver,omitempty"`
	BusInfo    string   `json:"bus_info,omitempty" yaml:"bus_info,omitempty"`
}

// NetResolver maps network-class functions to their interfaces. It only
// reports what the kernel already bound; it never binds drivers itself.
type NetResolver struct {
	sysfsRoot string
	query     DriverQuerier
}

// NewNetResolver opens an ethtool handle
func NewNetResolver(sysfsRoot string) (*NetResolver, error) {
	eth, err := ethtool.NewEthtool()
	if err != nil {
		return nil, fmt.Errorf("failed to create ethtool handle: %w", err)
	}
	return NewNetResolverWith(sysfsRoot, eth), nil
}

// NewNetResolverWith uses query instead of a real ethtool handle
func NewNetResolverWith(sysfsRoot string, query DriverQuerier) *NetResolver {
	if sysfsRoot == "" {
		sysfsRoot = "/sys/bus/pci/devices"
	}
	return &NetResolver{sysfsRoot: sysfsRoot, query: query}
}

// Lookup returns the interfaces under <root>/<address>/net and the driver
// reported by ethtool for the first of them.
func (r *NetResolver) Lookup(address string) (NetInfo, error) {
	var info NetInfo

	entries, err := os.ReadDir(filepath.Join(r.sysfsRoot, address, "net"))
	if err != nil {
		if os.IsNotExist(err) {
			return info, nil
		}
		return info, fmt.Errorf("failed to list interfaces of %s: %w", address, err)
	}
	for _, e := range entries {
		info.Interfaces = append(info.Interfaces, e.Name())
	}
	sort.Strings(info.Interfaces)
	if len(info.Interfaces) == 0 {
		return info, nil
	}

	ifname := info.Interfaces[0]
	if info.Driver, err = r.query.DriverName(ifname); err != nil {
		WithError(err).WithField("interface", ifname).Debug("failed to get driver name")
	}
	if info.BusInfo, err = r.query.BusInfo(ifname); err != nil {
		WithError(err).WithField("interface", ifname).Debug("failed to get bus info")
	}
	return info, nil
}

// Close releases the ethtool handle
func (r *NetResolver) Close() {
	r.query.Close()
}
