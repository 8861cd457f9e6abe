package pci

import (
	"pcicam/pkg/cam"
	"pcicam/pkg/types"
)

// function builds the register map of a present function. extra overrides
// or adds registers.
func function(vendor, device uint16, class uint32, headerType uint8, extra map[uint8]uint32) map[uint8]uint32 {
	regs := map[uint8]uint32{
		RegID:     uint32(device)<<16 | uint32(vendor),
		RegClass:  class,
		RegHeader: uint32(headerType) << 16,
	}
	for k, v := range extra {
		regs[k] = v
	}
	return regs
}

func newBus(funcs map[types.Address]map[uint8]uint32) (*cam.SimulatedBus, cam.Accessor) {
	bus := cam.NewSimulatedBus()
	for addr, regs := range funcs {
		bus.AddFunction(addr, regs)
	}
	return bus, cam.NewPortAccessor(bus)
}
