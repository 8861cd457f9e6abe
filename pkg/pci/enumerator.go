package pci

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"pcicam/pkg"
	"pcicam/pkg/cam"
	"pcicam/pkg/types"
)

// Stats summarizes one enumeration pass
type Stats struct {
	DevicesProbed   int           `json:"devices_probed"`
	FunctionsProbed int           `json:"functions_probed"`
	FunctionsFound  int           `json:"functions_found"`
	Duration        time.Duration `json:"duration"`
}

// Enumerator walks bus, device and function numbers through an Accessor
type Enumerator struct {
	acc       cam.Accessor
	domain    uint16
	firstBus  uint8
	lastBus   uint8
	log       *logrus.Entry
	lastStats Stats
}

// Option configures an Enumerator
type Option func(*Enumerator)

// WithBusRange limits the scan to buses first..last inclusive
func WithBusRange(first, last uint8) Option {
	return func(e *Enumerator) {
		e.firstBus = first
		e.lastBus = last
	}
}

// WithDomain stamps discovered addresses with a PCI segment number
func WithDomain(domain uint16) Option {
	return func(e *Enumerator) {
		e.domain = domain
	}
}

// WithLogger replaces the default component logger
func WithLogger(entry *logrus.Entry) Option {
	return func(e *Enumerator) {
		e.log = entry
	}
}

// NewEnumerator returns an enumerator covering buses 0 through 255
func NewEnumerator(acc cam.Accessor, opts ...Option) *Enumerator {
	e := &Enumerator{
		acc:     acc,
		lastBus: types.MaxBus,
		log:     pkg.WithComponent("enumerator"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BusRange returns the configured inclusive bus range
func (e *Enumerator) BusRange() (first, last uint8) {
	return e.firstBus, e.lastBus
}

// Stats returns the counters of the last completed pass
func (e *Enumerator) Stats() Stats {
	return e.lastStats
}

// Walk performs a full scan and hands every present function to fn in
// ascending (bus, device, function) order. A device whose function 0 is
// absent is skipped without probing functions 1-7.
func (e *Enumerator) Walk(fn func(types.DiscoveredDevice)) {
	start := time.Now()
	var stats Stats

	probe := func(addr types.Address) (types.DiscoveredDevice, bool) {
		stats.FunctionsProbed++
		d, ok := Decode(addr, BindReader(e.acc, addr))
		if ok {
			stats.FunctionsFound++
			if e.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
				e.log.WithFields(pkg.DeviceFields(d)).Debug("function found")
			}
		}
		return d, ok
	}

	for bus := int(e.firstBus); bus <= int(e.lastBus); bus++ {
		for dev := 0; dev <= types.MaxDevice; dev++ {
			stats.DevicesProbed++
			addr := types.Address{Domain: e.domain, Bus: uint8(bus), Device: uint8(dev)}

			f0, ok := probe(addr)
			if !ok {
				continue
			}
			fn(f0)
			if !f0.Multifunction {
				continue
			}

			for f := 1; f <= types.MaxFunction; f++ {
				addr.Function = uint8(f)
				if d, ok := probe(addr); ok {
					fn(d)
				}
			}
		}
	}

	stats.Duration = time.Since(start)
	e.lastStats = stats
	e.log.WithFields(logrus.Fields{
		"buses":    fmt.Sprintf("%02x-%02x", e.firstBus, e.lastBus),
		"probed":   stats.FunctionsProbed,
		"found":    stats.FunctionsFound,
		"duration": stats.Duration,
	}).Info("enumeration pass complete")
}

// Enumerate performs a full scan and returns the discovered functions
func (e *Enumerator) Enumerate() []types.DiscoveredDevice {
	var devices []types.DiscoveredDevice
	e.Walk(func(d types.DiscoveredDevice) {
		devices = append(devices, d)
	})
	return devices
}
