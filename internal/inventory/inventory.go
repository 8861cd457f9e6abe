// Package inventory keeps the result of the last enumeration pass and serves
// it over gRPC.
package inventory

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pcicam/pkg"
	"pcicam/pkg/pci"
	"pcicam/pkg/types"
)

// Scanner runs one enumeration pass
type Scanner interface {
	Enumerate() []types.DiscoveredDevice
	Stats() pci.Stats
}

// Snapshot is the outcome of one pass, after filtering
type Snapshot struct {
	Devices   []types.DiscoveredDevice
	ScannedAt time.Time
	Stats     pci.Stats
}

// Inventory serializes passes and keeps the last completed one
type Inventory struct {
	scanner Scanner
	match   func(types.DiscoveredDevice) bool
	log     *logrus.Entry

	scanMu sync.Mutex // held for a whole pass
	mu     sync.RWMutex
	last   Snapshot
}

// New returns an inventory that has not scanned yet. A nil match keeps
// every function.
func New(scanner Scanner, match func(types.DiscoveredDevice) bool) *Inventory {
	if match == nil {
		match = func(types.DiscoveredDevice) bool { return true }
	}
	return &Inventory{
		scanner: scanner,
		match:   match,
		log:     pkg.WithComponent("inventory"),
	}
}

// Rescan runs a full pass and replaces the stored snapshot
func (inv *Inventory) Rescan() Snapshot {
	inv.scanMu.Lock()
	defer inv.scanMu.Unlock()

	var kept []types.DiscoveredDevice
	for _, d := range inv.scanner.Enumerate() {
		if inv.match(d) {
			kept = append(kept, d)
		}
	}
	snap := Snapshot{
		Devices:   kept,
		ScannedAt: time.Now(),
		Stats:     inv.scanner.Stats(),
	}

	inv.mu.Lock()
	prev := inv.last
	inv.last = snap
	inv.mu.Unlock()

	added, removed := Diff(prev.Devices, snap.Devices)
	for _, d := range added {
		inv.log.WithFields(pkg.DeviceFields(d)).Info("function added")
	}
	for _, d := range removed {
		inv.log.WithFields(pkg.DeviceFields(d)).Info("function removed")
	}
	return snap
}

// Last returns the most recent snapshot
func (inv *Inventory) Last() Snapshot {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.last
}

// Diff compares two passes by address and ids
func Diff(before, after []types.DiscoveredDevice) (added, removed []types.DiscoveredDevice) {
	type key struct {
		addr   types.Address
		vendor uint16
		device uint16
	}
	keyOf := func(d types.DiscoveredDevice) key {
		return key{d.Address, d.Header.VendorID, d.Header.DeviceID}
	}

	seen := make(map[key]bool, len(before))
	for _, d := range before {
		seen[keyOf(d)] = true
	}
	now := make(map[key]bool, len(after))
	for _, d := range after {
		now[keyOf(d)] = true
		if !seen[keyOf(d)] {
			added = append(added, d)
		}
	}
	for _, d := range before {
		if !now[keyOf(d)] {
			removed = append(removed, d)
		}
	}
	return added, removed
}
