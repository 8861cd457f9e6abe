package cam

import (
	"sync"

	"pcicam/pkg/types"
)

// configRegisters is the 256-byte configuration space of one function
type configRegisters [64]uint32

// SimulatedBus is an in-memory PCI bus that answers the CAM port pair the
// way a host bridge does: the address port latches a selector word and the
// data port reads or writes the selected register. Functions that were
// never added answer all-ones.
type SimulatedBus struct {
	mu        sync.Mutex
	latch     uint32
	functions map[types.Address]*configRegisters
	reads     []types.ConfigAddress
	writes    []types.ConfigAddress
}

// NewSimulatedBus returns an empty bus
func NewSimulatedBus() *SimulatedBus {
	return &SimulatedBus{functions: make(map[types.Address]*configRegisters)}
}

func simKey(addr types.Address) types.Address {
	addr.Domain = 0
	return addr
}

// AddFunction makes addr present with the given register contents, keyed by
// byte offset. Offsets are rounded down to their register.
func (b *SimulatedBus) AddFunction(addr types.Address, regs map[uint8]uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cfg := &configRegisters{}
	for off, v := range regs {
		cfg[off>>2] = v
	}
	b.functions[simKey(addr)] = cfg
}

// RemoveFunction makes addr absent again
func (b *SimulatedBus) RemoveFunction(addr types.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.functions, simKey(addr))
}

// SetRegister updates one register of a present function
func (b *SimulatedBus) SetRegister(addr types.Address, reg uint8, value uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cfg, ok := b.functions[simKey(addr)]; ok {
		cfg[reg>>2] = value
	}
}

// Functions returns the addresses of all present functions
func (b *SimulatedBus) Functions() []types.Address {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]types.Address, 0, len(b.functions))
	for addr := range b.functions {
		out = append(out, addr)
	}
	return out
}

func (b *SimulatedBus) Out32(port uint16, value uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch port {
	case AddressPort:
		b.latch = value
	case DataPort:
		sel, enabled := types.ParseWord(b.latch)
		if !enabled {
			return
		}
		b.writes = append(b.writes, sel)
		if cfg, ok := b.functions[sel.Address]; ok {
			cfg[sel.Register>>2] = value
		}
	}
}

func (b *SimulatedBus) In32(port uint16) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch port {
	case AddressPort:
		return b.latch
	case DataPort:
		sel, enabled := types.ParseWord(b.latch)
		if !enabled {
			return AllOnes
		}
		b.reads = append(b.reads, sel)
		if cfg, ok := b.functions[sel.Address]; ok {
			return cfg[sel.Register>>2]
		}
	}
	return AllOnes
}

// Reads returns every register selected through the data port, in order
func (b *SimulatedBus) Reads() []types.ConfigAddress {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.ConfigAddress(nil), b.reads...)
}

// Writes returns every register written through the data port, in order
func (b *SimulatedBus) Writes() []types.ConfigAddress {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.ConfigAddress(nil), b.writes...)
}

// ReadsOf returns the registers read from one function, in order
func (b *SimulatedBus) ReadsOf(addr types.Address) []uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()

	var regs []uint8
	for _, r := range b.reads {
		if r.Address == simKey(addr) {
			regs = append(regs, r.Register)
		}
	}
	return regs
}

// ResetLog clears the recorded reads and writes
func (b *SimulatedBus) ResetLog() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads = nil
	b.writes = nil
}
