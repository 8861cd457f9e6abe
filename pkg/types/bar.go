package types

// BARKind tells what address space a base address register decodes
type BARKind string

const (
	BARUnused   BARKind = "unused"
	BARIO       BARKind = "io"
	BARMemory32 BARKind = "mem32"
	BARMemory1M BARKind = "mem1m"
	BARMemory64 BARKind = "mem64"
	// BARUpper marks the high half of a preceding 64-bit memory BAR
	BARUpper BARKind = "upper"
)

// BAR is the interpretation of a single base address register value.
// Only the programmed base is reported; sizing needs writes and is left to
// resource allocation.
type BAR struct {
	Index        int     `json:"index"`
	Kind         BARKind `json:"kind"`
	Prefetchable bool    `json:"prefetchable,omitempty"`
	Base         uint64  `json:"base"`
}

// DescribeBAR interprets bars[i]. A 64-bit memory BAR consumes bars[i+1]
// for its upper half.
func DescribeBAR(bars []uint32, i int) BAR {
	if i < 0 || i >= len(bars) {
		return BAR{Index: i, Kind: BARUnused}
	}
	return DescribeBARs(bars)[i]
}

// DescribeBARs interprets every register of a BAR block
func DescribeBARs(bars []uint32) []BAR {
	out := make([]BAR, 0, len(bars))
	for i := 0; i < len(bars); i++ {
		b := decodeBAR(i, bars)
		out = append(out, b)
		if b.Kind == BARMemory64 && i+1 < len(bars) {
			i++
			out = append(out, BAR{Index: i, Kind: BARUpper})
		}
	}
	return out
}

func decodeBAR(i int, bars []uint32) BAR {
	b := BAR{Index: i, Kind: BARUnused}
	v := bars[i]
	if v == 0 {
		return b
	}
	if v&0x1 != 0 {
		b.Kind = BARIO
		b.Base = uint64(v &^ 0x3)
		return b
	}

	b.Prefetchable = v&0x8 != 0
	b.Base = uint64(v &^ 0xF)
	switch (v >> 1) & 0x3 {
	case 0x0:
		b.Kind = BARMemory32
	case 0x1:
		b.Kind = BARMemory1M
	case 0x2:
		b.Kind = BARMemory64
		if i+1 < len(bars) {
			b.Base |= uint64(bars[i+1]) << 32
		}
	default:
		b.Prefetchable = false
		b.Base = 0
	}
	return b
}

// BARs returns the interpreted base address registers of the record's layout
func (d DiscoveredDevice) BARs() []BAR {
	switch v := d.Variant.(type) {
	case StandardHeader:
		return DescribeBARs(v.BARs[:])
	case BridgeHeader:
		return DescribeBARs(v.BARs[:])
	}
	return nil
}
