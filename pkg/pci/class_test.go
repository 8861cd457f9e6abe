package pci

import (
	"testing"

	"pcicam/pkg/types"
)

func TestClassName(t *testing.T) {
	tests := []struct {
		class, subclass uint8
		want            string
	}{
		{0x02, 0x00, "ethernet"},
		{0x02, 0x80, "network"},
		{0x06, 0x04, "pci_bridge"},
		{0x01, 0x08, "nvme"},
		{0xff, 0x00, "unassigned_class"},
		{0x42, 0x01, "unknown_class_4201"},
	}
	for _, tt := range tests {
		if got := ClassName(tt.class, tt.subclass); got != tt.want {
			t.Errorf("ClassName(%#x, %#x) = %q, want %q", tt.class, tt.subclass, got, tt.want)
		}
	}
}

func TestIsNetwork(t *testing.T) {
	nic := types.DiscoveredDevice{Header: types.FunctionHeader{ClassCode: 0x02}}
	if !IsNetwork(nic) {
		t.Error("class 0x02 should be network")
	}
	if IsNetwork(types.DiscoveredDevice{Header: types.FunctionHeader{ClassCode: 0x06}}) {
		t.Error("class 0x06 should not be network")
	}
	if DeviceClassName(nic) != "ethernet" {
		t.Errorf("DeviceClassName = %q", DeviceClassName(nic))
	}
}
