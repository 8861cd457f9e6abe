package cam

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"pcicam/pkg/types"
)

// Fixture describes a simulated bus in YAML:
//
//	functions:
//	  - address: "00:00.0"
//	    registers:
//	      0x00: 0x12378086
//	      0x08: 0x06000002
type Fixture struct {
	Functions []FixtureFunction `yaml:"functions"`
}

// FixtureFunction is one present function and its non-zero registers
type FixtureFunction struct {
	Address   string            `yaml:"address"`
	Registers map[Offset]Uint32 `yaml:"registers"`
}

// Offset is a register byte offset accepting 0x-prefixed YAML scalars
type Offset uint8

func (o *Offset) UnmarshalYAML(value *yaml.Node) error {
	v, err := strconv.ParseUint(value.Value, 0, 8)
	if err != nil {
		return fmt.Errorf("line %d: invalid register offset %q: %w", value.Line, value.Value, err)
	}
	*o = Offset(v)
	return nil
}

// Uint32 is a register value accepting 0x-prefixed YAML scalars
type Uint32 uint32

func (u *Uint32) UnmarshalYAML(value *yaml.Node) error {
	v, err := strconv.ParseUint(value.Value, 0, 32)
	if err != nil {
		return fmt.Errorf("line %d: invalid register value %q: %w", value.Line, value.Value, err)
	}
	*u = Uint32(v)
	return nil
}

func (u Uint32) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("0x%08x", uint32(u)), nil
}

func (o Offset) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("0x%02x", uint8(o)), nil
}

// ParseFixture builds a simulated bus from YAML
func ParseFixture(data []byte) (*SimulatedBus, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}

	bus := NewSimulatedBus()
	for i, fn := range fx.Functions {
		addr, err := types.ParseAddress(fn.Address)
		if err != nil {
			return nil, fmt.Errorf("function %d: %w", i, err)
		}
		regs := make(map[uint8]uint32, len(fn.Registers))
		for off, v := range fn.Registers {
			if off%4 != 0 {
				return nil, fmt.Errorf("function %s: register offset %#x is not 4-byte aligned", addr, uint8(off))
			}
			regs[uint8(off)] = uint32(v)
		}
		bus.AddFunction(addr, regs)
	}
	return bus, nil
}

// LoadFixture reads a fixture file
func LoadFixture(path string) (*SimulatedBus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	return ParseFixture(data)
}

// Snapshot captures the 256-byte configuration window of every function
// reachable through acc as a fixture, for replaying a machine's bus
// elsewhere. Zero registers are left out.
func Snapshot(acc Accessor, addrs []types.Address) Fixture {
	var fx Fixture
	for _, addr := range addrs {
		fn := FixtureFunction{
			Address:   addr.String(),
			Registers: make(map[Offset]Uint32),
		}
		for reg := 0; reg < 0x100; reg += 4 {
			if v := acc.Read(addr.Register(uint8(reg))); v != 0 {
				fn.Registers[Offset(reg)] = Uint32(v)
			}
		}
		fx.Functions = append(fx.Functions, fn)
	}
	return fx
}
