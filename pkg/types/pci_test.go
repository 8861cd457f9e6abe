package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestBridgeWindows(t *testing.T) {
	b := BridgeHeader{
		IOBase:                 0xe1,
		IOLimit:                0xf1,
		IOBaseUpper:            0x0001,
		IOLimitUpper:           0x0001,
		MemoryBase:             0xfc00,
		MemoryLimit:            0xfe00,
		PrefetchableBase:       0xe001,
		PrefetchableLimit:      0xeff1,
		PrefetchableBaseUpper:  0x4,
		PrefetchableLimitUpper: 0x4,
	}

	tests := []struct {
		name string
		got  Window
		want Window
	}{
		{"io 32-bit", b.IOWindow(), Window{Base: 0x1e000, Limit: 0x1ffff}},
		{"memory", b.MemoryWindow(), Window{Base: 0xfc000000, Limit: 0xfe0fffff}},
		{"prefetchable 64-bit", b.PrefetchableWindow(), Window{Base: 0x4e0000000, Limit: 0x4efffffff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %#x-%#x, want %#x-%#x", tt.got.Base, tt.got.Limit, tt.want.Base, tt.want.Limit)
			}
			if !tt.got.Enabled() {
				t.Error("window should be enabled")
			}
		})
	}
}

func TestBridgeWindow16BitIgnoresUpper(t *testing.T) {
	b := BridgeHeader{IOBase: 0xd0, IOLimit: 0xd0, IOBaseUpper: 0xffff, IOLimitUpper: 0xffff}
	if w := b.IOWindow(); w.Base != 0xd000 || w.Limit != 0xdfff {
		t.Errorf("16-bit io window = %#x-%#x", w.Base, w.Limit)
	}
}

func TestBridgeWindowDisabled(t *testing.T) {
	b := BridgeHeader{MemoryBase: 0xfff0, MemoryLimit: 0x0000}
	if b.MemoryWindow().Enabled() {
		t.Error("base above limit should disable the window")
	}
}

func TestDescribeBARs(t *testing.T) {
	bars := []uint32{0xfebf0000, 0x0000e001, 0xfe00000c, 0x00000001, 0x00000000, 0xfeb00008}
	got := DescribeBARs(bars)

	want := []BAR{
		{Index: 0, Kind: BARMemory32, Base: 0xfebf0000},
		{Index: 1, Kind: BARIO, Base: 0xe000},
		{Index: 2, Kind: BARMemory64, Prefetchable: true, Base: 0x1fe000000},
		{Index: 3, Kind: BARUpper},
		{Index: 4, Kind: BARUnused},
		{Index: 5, Kind: BARMemory32, Prefetchable: true, Base: 0xfeb00000},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d BARs, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("BAR %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if b := DescribeBAR(bars, 3); b.Kind != BARUpper {
		t.Errorf("DescribeBAR(3) = %+v, want upper half", b)
	}
	if b := DescribeBAR(bars, 9); b.Kind != BARUnused {
		t.Errorf("DescribeBAR(out of range) = %+v", b)
	}
}

func TestDiscoveredDeviceJSON(t *testing.T) {
	d := DiscoveredDevice{
		Address: Address{Bus: 1},
		Header:  FunctionHeader{VendorID: 0x15b3, DeviceID: 0x101e, HeaderType: 0x01},
		Variant: BridgeHeader{SecondaryBus: 2, SubordinateBus: 4},
	}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"kind":"bridge"`, `"address":"0000:01:00.0"`, `"secondary_bus":2`, `"vendor_id":5555`} {
		if !strings.Contains(s, want) {
			t.Errorf("%s missing from %s", want, s)
		}
	}
}

func TestDiscoveredDeviceAccessors(t *testing.T) {
	d := DiscoveredDevice{Variant: StandardHeader{BARs: [6]uint32{0x0000e001}}}
	if _, ok := d.Standard(); !ok {
		t.Error("Standard() should succeed")
	}
	if _, ok := d.Bridge(); ok {
		t.Error("Bridge() should fail on a standard header")
	}
	if bars := d.BARs(); len(bars) != 6 || bars[0].Kind != BARIO {
		t.Errorf("BARs() = %+v", bars)
	}
	if (DiscoveredDevice{}).Kind() != KindUnknown {
		t.Error("record without variant should report unknown")
	}
	if (DiscoveredDevice{Variant: CardBusHeader{}}).BARs() != nil {
		t.Error("cardbus records expose no BARs")
	}
}
