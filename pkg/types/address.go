package types

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// MaxBus is the highest bus number reachable through CAM
	MaxBus = 255
	// MaxDevice is the highest device (slot) number on a bus
	MaxDevice = 31
	// MaxFunction is the highest function number of a device
	MaxFunction = 7

	configEnable = uint32(1) << 31
)

// Address identifies a single PCI function
type Address struct {
	Domain   uint16
	Bus      uint8
	Device   uint8
	Function uint8
}

// String formats the address the way sysfs names device directories
func (a Address) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%x", a.Domain, a.Bus, a.Device, a.Function)
}

// Valid reports whether device and function fit their CAM fields
func (a Address) Valid() bool {
	return a.Device <= MaxDevice && a.Function <= MaxFunction
}

// Register returns the configuration address of register reg of this function
func (a Address) Register(reg uint8) ConfigAddress {
	return ConfigAddress{Address: a, Register: reg}
}

// MarshalText implements encoding.TextMarshaler
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// ParseAddress parses "dddd:bb:dd.f" or "bb:dd.f" (hex fields)
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimSpace(strings.ToLower(s))

	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
	case 3:
		domain, err := strconv.ParseUint(parts[0], 16, 16)
		if err != nil {
			return a, fmt.Errorf("invalid domain in %q: %w", s, err)
		}
		a.Domain = uint16(domain)
		parts = parts[1:]
	default:
		return a, fmt.Errorf("invalid PCI address: %q", s)
	}

	bus, err := strconv.ParseUint(parts[0], 16, 8)
	if err != nil {
		return a, fmt.Errorf("invalid bus in %q: %w", s, err)
	}

	devFn := strings.Split(parts[1], ".")
	if len(devFn) != 2 {
		return a, fmt.Errorf("missing function in %q", s)
	}
	dev, err := strconv.ParseUint(devFn[0], 16, 8)
	if err != nil {
		return a, fmt.Errorf("invalid device in %q: %w", s, err)
	}
	fn, err := strconv.ParseUint(devFn[1], 16, 8)
	if err != nil {
		return a, fmt.Errorf("invalid function in %q: %w", s, err)
	}

	a.Bus = uint8(bus)
	a.Device = uint8(dev)
	a.Function = uint8(fn)
	if !a.Valid() {
		return a, fmt.Errorf("device or function out of range in %q", s)
	}
	return a, nil
}

// ConfigAddress selects one 32-bit configuration register of a function.
// Register is a byte offset; only multiples of 4 reach the hardware.
type ConfigAddress struct {
	Address
	Register uint8
}

// Word encodes the address in the layout expected by the CAM address port:
//
//	31      30-24     23-16  15-11   10-8      7-2       1-0
//	enable  reserved  bus    device  function  register  00
func (c ConfigAddress) Word() uint32 {
	return configEnable |
		uint32(c.Bus)<<16 |
		deviceSelect(c.Device) |
		functionSelect(c.Function) |
		uint32(c.Register&0xFC)
}

func (c ConfigAddress) String() string {
	return fmt.Sprintf("%s@0x%02x", c.Address, c.Register)
}

func deviceSelect(dev uint8) uint32 {
	return uint32(dev&0x1F) << 11
}

func functionSelect(fn uint8) uint32 {
	return uint32(fn&0x07) << 8
}

// ParseWord decodes a CAM address word. The boolean reports the enable bit.
func ParseWord(w uint32) (ConfigAddress, bool) {
	c := ConfigAddress{
		Address: Address{
			Bus:      uint8(w >> 16),
			Device:   uint8(w>>11) & 0x1F,
			Function: uint8(w>>8) & 0x07,
		},
		Register: uint8(w) & 0xFC,
	}
	return c, w&configEnable != 0
}
