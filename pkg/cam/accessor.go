// Package cam implements the legacy PCI Configuration Access Mechanism:
// a 32-bit address port selecting bus, device, function and register,
// paired with a 32-bit data port carrying the register contents.
package cam

import (
	"errors"
	"sync"

	"pcicam/pkg/types"
)

const (
	// AddressPort is the CONFIG_ADDRESS I/O port
	AddressPort uint16 = 0xCF8
	// DataPort is the CONFIG_DATA I/O port
	DataPort uint16 = 0xCFC

	// AllOnes is what a read returns when nothing claims the cycle
	AllOnes = ^uint32(0)
)

// ErrPortIONotSupported is returned where raw port I/O is unavailable
var ErrPortIONotSupported = errors.New("port I/O is not supported on this platform")

// Accessor reads and writes single configuration registers. Reads have no
// failure mode: absent hardware answers all-ones and is recognized one level
// up through the vendor id.
type Accessor interface {
	Read(addr types.ConfigAddress) uint32
	Write(addr types.ConfigAddress, value uint32)
}

// Port is a pair of 32-bit I/O instructions
type Port interface {
	Out32(port uint16, value uint32)
	In32(port uint16) uint32
}

// PortAccessor drives the CAM port pair. Selecting a register and moving its
// data are two separate port operations, so each pair runs under mu.
type PortAccessor struct {
	mu   sync.Mutex
	port Port
}

// NewPortAccessor wraps port. The accessor must be the only user of the
// address/data pair.
func NewPortAccessor(port Port) *PortAccessor {
	return &PortAccessor{port: port}
}

// Read selects addr and returns the data port contents
func (a *PortAccessor) Read(addr types.ConfigAddress) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.port.Out32(AddressPort, addr.Word())
	return a.port.In32(DataPort)
}

// Write selects addr and stores value through the data port
func (a *PortAccessor) Write(addr types.ConfigAddress, value uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.port.Out32(AddressPort, addr.Word())
	a.port.Out32(DataPort, value)
}

// Close releases the underlying port when it holds resources
func (a *PortAccessor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.port.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
