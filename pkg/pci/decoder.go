// Package pci decodes configuration headers and enumerates the bus.
package pci

import (
	"encoding/binary"

	"pcicam/pkg/cam"
	"pcicam/pkg/types"
)

// Register offsets of the configuration header
const (
	RegID            = 0x00
	RegCommandStatus = 0x04
	RegClass         = 0x08
	RegHeader        = 0x0C
	RegBAR0          = 0x10
	RegBAR1          = 0x14

	// type 0x00
	RegCardBusCIS   = 0x28
	RegSubsystem    = 0x2C
	RegExpansionROM = 0x30
	RegCapabilities = 0x34
	RegInterrupt    = 0x3C

	// type 0x01
	RegBusNumbers      = 0x18
	RegIOBaseLimit     = 0x1C
	RegMemoryBaseLimit = 0x20
	RegPrefBaseLimit   = 0x24
	RegPrefBaseUpper   = 0x28
	RegPrefLimitUpper  = 0x2C
	RegIOUpper         = 0x30
	RegBridgeROM       = 0x38

	// type 0x02 extends to the 16-bit legacy mode base at 0x44
	cardBusLastReg = 0x44
)

// RegisterReader returns the 32-bit register at byte offset reg of one
// fixed function.
type RegisterReader func(reg uint8) uint32

// BindReader fixes acc to the function at addr
func BindReader(acc cam.Accessor, addr types.Address) RegisterReader {
	return func(reg uint8) uint32 {
		return acc.Read(addr.Register(reg))
	}
}

func byteAt(v uint32, n uint) uint8 {
	return uint8(v >> (8 * n))
}

func low16(v uint32) uint16 {
	return uint16(v)
}

func high16(v uint32) uint16 {
	return uint16(v >> 16)
}

// Decode reads the configuration header of the function at addr. It returns
// false without touching any other register when the vendor id is 0xFFFF.
func Decode(addr types.Address, read RegisterReader) (types.DiscoveredDevice, bool) {
	id := read(RegID)
	if low16(id) == types.VendorAbsent {
		return types.DiscoveredDevice{}, false
	}

	cmdStatus := read(RegCommandStatus)
	class := read(RegClass)
	hdr := read(RegHeader)

	common := types.FunctionHeader{
		VendorID:      low16(id),
		DeviceID:      high16(id),
		Command:       low16(cmdStatus),
		Status:        high16(cmdStatus),
		RevisionID:    byteAt(class, 0),
		ProgIF:        byteAt(class, 1),
		Subclass:      byteAt(class, 2),
		ClassCode:     byteAt(class, 3),
		CacheLineSize: byteAt(hdr, 0),
		LatencyTimer:  byteAt(hdr, 1),
		HeaderType:    byteAt(hdr, 2) & types.HeaderTypeMask,
		BIST:          byteAt(hdr, 3),
	}

	d := types.DiscoveredDevice{
		Address:       addr,
		Header:        common,
		Multifunction: byteAt(hdr, 2)&types.HeaderMultifunction != 0,
	}

	switch common.HeaderType {
	case types.HeaderTypeStandard:
		d.Variant = decodeStandard(read)
	case types.HeaderTypeBridge:
		d.Variant = decodeBridge(read)
	case types.HeaderTypeCardBus:
		d.Variant = decodeCardBus(read)
	default:
		d.Variant = types.UnknownHeader{HeaderType: common.HeaderType}
	}
	return d, true
}

func decodeStandard(read RegisterReader) types.StandardHeader {
	var h types.StandardHeader
	for i := range h.BARs {
		h.BARs[i] = read(uint8(RegBAR0 + 4*i))
	}
	h.CardBusCISPointer = read(RegCardBusCIS)

	subsys := read(RegSubsystem)
	h.SubsystemVendorID = low16(subsys)
	h.SubsystemID = high16(subsys)

	h.ExpansionROMBase = read(RegExpansionROM)
	h.CapabilityPointer = byteAt(read(RegCapabilities), 0)

	irq := read(RegInterrupt)
	h.InterruptLine = byteAt(irq, 0)
	h.InterruptPin = byteAt(irq, 1)
	h.MinGrant = byteAt(irq, 2)
	h.MaxLatency = byteAt(irq, 3)
	return h
}

func decodeBridge(read RegisterReader) types.BridgeHeader {
	var h types.BridgeHeader
	h.BARs[0] = read(RegBAR0)
	h.BARs[1] = read(RegBAR1)

	buses := read(RegBusNumbers)
	h.PrimaryBus = byteAt(buses, 0)
	h.SecondaryBus = byteAt(buses, 1)
	h.SubordinateBus = byteAt(buses, 2)
	h.SecondaryLatencyTimer = byteAt(buses, 3)

	io := read(RegIOBaseLimit)
	h.IOBase = byteAt(io, 0)
	h.IOLimit = byteAt(io, 1)
	h.SecondaryStatus = high16(io)

	mem := read(RegMemoryBaseLimit)
	h.MemoryBase = low16(mem)
	h.MemoryLimit = high16(mem)

	pref := read(RegPrefBaseLimit)
	h.PrefetchableBase = low16(pref)
	h.PrefetchableLimit = high16(pref)
	h.PrefetchableBaseUpper = read(RegPrefBaseUpper)
	h.PrefetchableLimitUpper = read(RegPrefLimitUpper)

	ioUpper := read(RegIOUpper)
	h.IOBaseUpper = low16(ioUpper)
	h.IOLimitUpper = high16(ioUpper)

	h.CapabilityPointer = byteAt(read(RegCapabilities), 0)
	h.ExpansionROMBase = read(RegBridgeROM)

	irq := read(RegInterrupt)
	h.InterruptLine = byteAt(irq, 0)
	h.InterruptPin = byteAt(irq, 1)
	h.BridgeControl = high16(irq)
	return h
}

func decodeCardBus(read RegisterReader) types.CardBusHeader {
	raw := make([]byte, 0, cardBusLastReg-RegBAR0+4)
	for reg := RegBAR0; reg <= cardBusLastReg; reg += 4 {
		raw = binary.LittleEndian.AppendUint32(raw, read(uint8(reg)))
	}
	return types.CardBusHeader{Raw: raw}
}

// CapabilityPointer returns the offset of the first capability, or 0 when
// the function has no capability list. The list itself is not walked.
func CapabilityPointer(d types.DiscoveredDevice) uint8 {
	if !d.Header.HasCapabilityList() {
		return 0
	}
	switch v := d.Variant.(type) {
	case types.StandardHeader:
		return v.CapabilityPointer &^ 0x3
	case types.BridgeHeader:
		return v.CapabilityPointer &^ 0x3
	}
	return 0
}
