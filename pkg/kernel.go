package pkg

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prometheus/procfs/sysfs"

	"pcicam/pkg/types"
)

// KernelFunctions lists the functions the running kernel enumerated. mount
// is the sysfs mount point, usually /sys.
func KernelFunctions(mount string) ([]types.Address, error) {
	fs, err := sysfs.NewFS(mount)
	if err != nil {
		return nil, fmt.Errorf("failed to open sysfs: %w", err)
	}

	devices, err := fs.PciDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to read pci devices: %w", err)
	}

	addrs := make([]types.Address, 0, len(devices))
	for _, device := range devices {
		addrs = append(addrs, types.Address{
			Domain:   uint16(device.Location.Segment),
			Bus:      uint8(device.Location.Bus),
			Device:   uint8(device.Location.Device),
			Function: uint8(device.Location.Function),
		})
	}
	sortAddresses(addrs)
	return addrs, nil
}

// SysfsMount returns the sysfs mount point above a bus/pci/devices
// directory, or "/sys" when root does not end that way.
func SysfsMount(devicesRoot string) string {
	clean := filepath.Clean(devicesRoot)
	suffix := string(filepath.Separator) + filepath.Join("bus", "pci", "devices")
	if mount, ok := strings.CutSuffix(clean, suffix); ok && mount != "" {
		return mount
	}
	return "/sys"
}

// KernelDiff is the disagreement between a walk and the kernel's view
type KernelDiff struct {
	// Missing are functions the kernel knows that the walk did not find
	Missing []types.Address
	// Extra are functions the walk found that the kernel does not list
	Extra []types.Address
}

// Empty reports whether both views agree
func (d KernelDiff) Empty() bool {
	return len(d.Missing) == 0 && len(d.Extra) == 0
}

// CompareWithKernel checks found against kernel. Kernel functions outside
// the walked domain and bus range are ignored.
func CompareWithKernel(found []types.DiscoveredDevice, kernel []types.Address, domain uint16, firstBus, lastBus uint8) KernelDiff {
	walked := make(map[types.Address]bool, len(found))
	for _, d := range found {
		walked[d.Address] = true
	}

	var diff KernelDiff
	known := make(map[types.Address]bool, len(kernel))
	for _, a := range kernel {
		if a.Domain != domain || a.Bus < firstBus || a.Bus > lastBus {
			continue
		}
		known[a] = true
		if !walked[a] {
			diff.Missing = append(diff.Missing, a)
		}
	}
	for _, d := range found {
		if !known[d.Address] {
			diff.Extra = append(diff.Extra, d.Address)
		}
	}
	sortAddresses(diff.Missing)
	sortAddresses(diff.Extra)
	return diff
}

func sortAddresses(addrs []types.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		a, b := addrs[i], addrs[j]
		if a.Domain != b.Domain {
			return a.Domain < b.Domain
		}
		if a.Bus != b.Bus {
			return a.Bus < b.Bus
		}
		if a.Device != b.Device {
			return a.Device < b.Device
		}
		return a.Function < b.Function
	})
}
