package types

import "encoding/json"

const (
	// VendorAbsent is the vendor id read back when no function answers
	VendorAbsent = 0xFFFF

	// HeaderTypeMask selects the layout code of the header type register
	HeaderTypeMask = 0x7F
	// HeaderMultifunction is set on function 0 of multifunction devices
	HeaderMultifunction = 0x80

	HeaderTypeStandard = 0x00
	HeaderTypeBridge   = 0x01
	HeaderTypeCardBus  = 0x02

	// StatusCapabilityList is set in the status register when 0x34 is valid
	StatusCapabilityList = 0x10
)

// HeaderKind names a configuration header layout
type HeaderKind string

const (
	KindStandard HeaderKind = "standard"
	KindBridge   HeaderKind = "bridge"
	KindCardBus  HeaderKind = "cardbus"
	KindUnknown  HeaderKind = "unknown"
)

// FunctionHeader holds the registers shared by every header layout (0x00-0x0F)
type FunctionHeader struct {
	VendorID      uint16 `json:"vendor_id" yaml:"vendor_id"`
	DeviceID      uint16 `json:"device_id" yaml:"device_id"`
	Command       uint16 `json:"command" yaml:"command"`
	Status        uint16 `json:"status" yaml:"status"`
	RevisionID    uint8  `json:"revision_id" yaml:"revision_id"`
	ProgIF        uint8  `json:"prog_if" yaml:"prog_if"`
	Subclass      uint8  `json:"subclass" yaml:"subclass"`
	ClassCode     uint8  `json:"class_code" yaml:"class_code"`
	CacheLineSize uint8  `json:"cache_line_size" yaml:"cache_line_size"`
	LatencyTimer  uint8  `json:"latency_timer" yaml:"latency_timer"`
	HeaderType    uint8  `json:"header_type" yaml:"header_type"`
	BIST          uint8  `json:"bist" yaml:"bist"`
}

// HasCapabilityList reports whether the status register advertises a
// capability list.
func (h FunctionHeader) HasCapabilityList() bool {
	return h.Status&StatusCapabilityList != 0
}

// HeaderVariant is the layout-specific part of a function's configuration
// space. The set of implementations is closed.
type HeaderVariant interface {
	Kind() HeaderKind
	isHeaderVariant()
}

// StandardHeader is the type 0x00 layout used by endpoints
type StandardHeader struct {
	BARs              [6]uint32 `json:"bars" yaml:"bars"`
	CardBusCISPointer uint32    `json:"cardbus_cis_pointer" yaml:"cardbus_cis_pointer"`
	SubsystemVendorID uint16    `json:"subsystem_vendor_id" yaml:"subsystem_vendor_id"`
	SubsystemID       uint16    `json:"subsystem_id" yaml:"subsystem_id"`
	ExpansionROMBase  uint32    `json:"expansion_rom_base" yaml:"expansion_rom_base"`
	CapabilityPointer uint8     `json:"capability_pointer" yaml:"capability_pointer"`
	InterruptLine     uint8     `json:"interrupt_line" yaml:"interrupt_line"`
	InterruptPin      uint8     `json:"interrupt_pin" yaml:"interrupt_pin"`
	MinGrant          uint8     `json:"min_grant" yaml:"min_grant"`
	MaxLatency        uint8     `json:"max_latency" yaml:"max_latency"`
}

func (StandardHeader) Kind() HeaderKind { return KindStandard }
func (StandardHeader) isHeaderVariant() {}

// BridgeHeader is the type 0x01 PCI-to-PCI bridge layout
type BridgeHeader struct {
	BARs                   [2]uint32 `json:"bars" yaml:"bars"`
	PrimaryBus             uint8     `json:"primary_bus" yaml:"primary_bus"`
	SecondaryBus           uint8     `json:"secondary_bus" yaml:"secondary_bus"`
	SubordinateBus         uint8     `json:"subordinate_bus" yaml:"subordinate_bus"`
	SecondaryLatencyTimer  uint8     `json:"secondary_latency_timer" yaml:"secondary_latency_timer"`
	IOBase                 uint8     `json:"io_base" yaml:"io_base"`
	IOLimit                uint8     `json:"io_limit" yaml:"io_limit"`
	SecondaryStatus        uint16    `json:"secondary_status" yaml:"secondary_status"`
	MemoryBase             uint16    `json:"memory_base" yaml:"memory_base"`
	MemoryLimit            uint16    `json:"memory_limit" yaml:"memory_limit"`
	PrefetchableBase       uint16    `json:"prefetchable_base" yaml:"prefetchable_base"`
	PrefetchableLimit      uint16    `json:"prefetchable_limit" yaml:"prefetchable_limit"`
	PrefetchableBaseUpper  uint32    `json:"prefetchable_base_upper" yaml:"prefetchable_base_upper"`
	PrefetchableLimitUpper uint32    `json:"prefetchable_limit_upper" yaml:"prefetchable_limit_upper"`
	IOBaseUpper            uint16    `json:"io_base_upper" yaml:"io_base_upper"`
	IOLimitUpper           uint16    `json:"io_limit_upper" yaml:"io_limit_upper"`
	CapabilityPointer      uint8     `json:"capability_pointer" yaml:"capability_pointer"`
	ExpansionROMBase       uint32    `json:"expansion_rom_base" yaml:"expansion_rom_base"`
	InterruptLine          uint8     `json:"interrupt_line" yaml:"interrupt_line"`
	InterruptPin           uint8     `json:"interrupt_pin" yaml:"interrupt_pin"`
	BridgeControl          uint16    `json:"bridge_control" yaml:"bridge_control"`
}

func (BridgeHeader) Kind() HeaderKind { return KindBridge }
func (BridgeHeader) isHeaderVariant() {}

// Window is an inclusive address range forwarded by a bridge
type Window struct {
	Base  uint64 `json:"base"`
	Limit uint64 `json:"limit"`
}

// Enabled reports whether the bridge forwards anything through the window
func (w Window) Enabled() bool {
	return w.Base <= w.Limit
}

// IOWindow decodes the I/O range forwarded to the secondary bus.
// The upper 16 bits only apply when the bridge advertises 32-bit decoding.
func (b BridgeHeader) IOWindow() Window {
	base := uint64(b.IOBase&0xF0) << 8
	limit := uint64(b.IOLimit&0xF0)<<8 | 0xFFF
	if b.IOBase&0x0F == 0x01 {
		base |= uint64(b.IOBaseUpper) << 16
		limit |= uint64(b.IOLimitUpper) << 16
	}
	return Window{Base: base, Limit: limit}
}

// MemoryWindow decodes the non-prefetchable memory range (1 MiB granular)
func (b BridgeHeader) MemoryWindow() Window {
	return Window{
		Base:  uint64(b.MemoryBase&0xFFF0) << 16,
		Limit: uint64(b.MemoryLimit&0xFFF0)<<16 | 0xFFFFF,
	}
}

// PrefetchableWindow decodes the prefetchable memory range, joining the
// upper 32 bits when the bridge supports 64-bit addressing.
func (b BridgeHeader) PrefetchableWindow() Window {
	base := uint64(b.PrefetchableBase&0xFFF0) << 16
	limit := uint64(b.PrefetchableLimit&0xFFF0)<<16 | 0xFFFFF
	if b.PrefetchableBase&0x0F == 0x01 {
		base |= uint64(b.PrefetchableBaseUpper) << 32
		limit |= uint64(b.PrefetchableLimitUpper) << 32
	}
	return Window{Base: base, Limit: limit}
}

// CardBusHeader is the type 0x02 layout. Registers past the common header
// are kept as raw little-endian bytes and not interpreted.
type CardBusHeader struct {
	Raw []byte `json:"raw" yaml:"raw"`
}

func (CardBusHeader) Kind() HeaderKind { return KindCardBus }
func (CardBusHeader) isHeaderVariant() {}

// UnknownHeader stands for layout codes with no defined register map
type UnknownHeader struct {
	HeaderType uint8 `json:"header_type" yaml:"header_type"`
}

func (UnknownHeader) Kind() HeaderKind { return KindUnknown }
func (UnknownHeader) isHeaderVariant() {}

// DiscoveredDevice is one present function found during enumeration
type DiscoveredDevice struct {
	Address       Address        `json:"address"`
	Header        FunctionHeader `json:"header"`
	Variant       HeaderVariant  `json:"variant"`
	Multifunction bool           `json:"multifunction"`
}

// Kind returns the layout of the record's variant
func (d DiscoveredDevice) Kind() HeaderKind {
	if d.Variant == nil {
		return KindUnknown
	}
	return d.Variant.Kind()
}

// Standard returns the standard header, if that is the record's layout
func (d DiscoveredDevice) Standard() (StandardHeader, bool) {
	h, ok := d.Variant.(StandardHeader)
	return h, ok
}

// Bridge returns the bridge header, if that is the record's layout
func (d DiscoveredDevice) Bridge() (BridgeHeader, bool) {
	h, ok := d.Variant.(BridgeHeader)
	return h, ok
}

// MarshalJSON adds a "kind" discriminator next to the variant
func (d DiscoveredDevice) MarshalJSON() ([]byte, error) {
	type plain DiscoveredDevice
	return json.Marshal(struct {
		plain
		Kind HeaderKind `json:"kind"`
	}{plain(d), d.Kind()})
}
