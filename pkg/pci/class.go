package pci

import (
	"fmt"

	"pcicam/pkg/types"
)

var classNames = map[uint8]string{
	0x00: "unclassified",
	0x01: "mass_storage",
	0x02: "network",
	0x03: "display",
	0x04: "multimedia",
	0x05: "memory",
	0x06: "bridge",
	0x07: "simple_communications",
	0x08: "base_system_peripherals",
	0x09: "input_devices",
	0x0a: "docking_stations",
	0x0b: "processors",
	0x0c: "serial_bus_controllers",
	0x0d: "wireless_controllers",
	0x0e: "intelligent_controllers",
	0x0f: "satellite_communications",
	0x10: "encryption_decryption",
	0x11: "data_acquisition",
	0x12: "processing_accelerators",
	0x13: "non_essential_instrumentation",
	0xff: "unassigned_class",
}

// subclasses that matter when reading an inventory by eye
var subclassNames = map[uint16]string{
	0x0100: "scsi",
	0x0101: "ide",
	0x0106: "sata",
	0x0107: "sas",
	0x0108: "nvme",
	0x0200: "ethernet",
	0x0207: "infiniband",
	0x0300: "vga",
	0x0403: "audio",
	0x0600: "host_bridge",
	0x0601: "isa_bridge",
	0x0604: "pci_bridge",
	0x0607: "cardbus_bridge",
	0x0c03: "usb",
	0x0c05: "smbus",
}

// ClassName returns a short description of a class/subclass pair
func ClassName(class, subclass uint8) string {
	if name, ok := subclassNames[uint16(class)<<8|uint16(subclass)]; ok {
		return name
	}
	if name, ok := classNames[class]; ok {
		return name
	}
	return fmt.Sprintf("unknown_class_%02x%02x", class, subclass)
}

// DeviceClassName describes the class of a discovered function
func DeviceClassName(d types.DiscoveredDevice) string {
	return ClassName(d.Header.ClassCode, d.Header.Subclass)
}

// IsNetwork reports whether the function is a network controller
func IsNetwork(d types.DiscoveredDevice) bool {
	return d.Header.ClassCode == 0x02
}
