package main

import (
	"errors"
	"fmt"
	"sync"

	"pcicam/internal/config"
	"pcicam/internal/inventory"
	"pcicam/pkg"
	"pcicam/pkg/cam"
	"pcicam/pkg/pci"
	"pcicam/pkg/types"
)

// openAccessor builds the configured backend. The returned function releases
// it and is never nil.
func openAccessor(c *config.Config) (cam.Accessor, func(), error) {
	noop := func() {}

	switch c.Access.Backend {
	case config.BackendPort:
		port, err := cam.OpenIOPorts()
		if err != nil {
			if errors.Is(err, cam.ErrPortIONotSupported) {
				return nil, noop, fmt.Errorf("%w; use --backend sysfs", err)
			}
			return nil, noop, err
		}
		acc := cam.NewPortAccessor(port)
		return acc, func() {
			if err := acc.Close(); err != nil {
				pkg.WithError(err).Warn("failed to release I/O ports")
			}
		}, nil

	case config.BackendSysfs:
		return cam.NewSysfsAccessor(c.Access.SysfsRoot, c.Access.Domain), noop, nil

	case config.BackendFixture:
		bus, err := cam.LoadFixture(c.Access.Fixture)
		if err != nil {
			return nil, noop, err
		}
		return cam.NewPortAccessor(bus), noop, nil
	}
	return nil, noop, fmt.Errorf("%w: %q", config.ErrInvalidBackend, c.Access.Backend)
}

// newEnumerator applies the scan section of the configuration
func newEnumerator(acc cam.Accessor, c *config.Config) *pci.Enumerator {
	return pci.NewEnumerator(acc,
		pci.WithBusRange(c.Scan.FirstBus, c.Scan.LastBus),
		pci.WithDomain(c.Access.Domain),
	)
}

// newScanner returns the scanner behind long-running commands. The fixture
// backend reloads its file on every pass so edits show up as hotplug.
func newScanner(c *config.Config) (inventory.Scanner, func(), error) {
	if c.Access.Backend == config.BackendFixture {
		s := &fixtureScanner{cfg: c}
		if _, err := cam.LoadFixture(c.Access.Fixture); err != nil {
			return nil, func() {}, err
		}
		return s, func() {}, nil
	}
	acc, release, err := openAccessor(c)
	if err != nil {
		return nil, release, err
	}
	return newEnumerator(acc, c), release, nil
}

// fixtureScanner enumerates a freshly loaded fixture on each pass. A file
// that fails to load keeps the previous result.
type fixtureScanner struct {
	cfg *config.Config

	mu    sync.Mutex
	last  []types.DiscoveredDevice
	stats pci.Stats
}

func (s *fixtureScanner) Enumerate() []types.DiscoveredDevice {
	s.mu.Lock()
	defer s.mu.Unlock()

	bus, err := cam.LoadFixture(s.cfg.Access.Fixture)
	if err != nil {
		pkg.WithError(err).WithField("fixture", s.cfg.Access.Fixture).Warn("fixture reload failed, keeping previous pass")
		return s.last
	}
	enum := newEnumerator(cam.NewPortAccessor(bus), s.cfg)
	s.last = enum.Enumerate()
	s.stats = enum.Stats()
	return s.last
}

func (s *fixtureScanner) Stats() pci.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// vendorFilter turns the filter section into a match function
func vendorFilter(c *config.Config) func(types.DiscoveredDevice) bool {
	f := c.Filter
	return func(d types.DiscoveredDevice) bool {
		return f.Match(d.Header.VendorID)
	}
}

// parseRegister accepts a register byte offset in any strconv base
func parseRegister(s string) (uint8, error) {
	v, err := parseUint(s, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid register %q: %w", s, err)
	}
	return uint8(v), nil
}
