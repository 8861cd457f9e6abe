package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"pcicam/pkg"
	"pcicam/pkg/pci"
	"pcicam/pkg/types"
)

// DeviceRow is one discovered function prepared for output
type DeviceRow struct {
	Address       string
	Kind          types.HeaderKind
	VendorID      uint16
	DeviceID      uint16
	Vendor        string
	Product       string
	Class         string
	Multifunction bool
	Net           *pkg.NetInfo
	Device        types.DiscoveredDevice
}

// deviceOutput is the serialized shape of a row for json and yaml
type deviceOutput struct {
	Address       string               `json:"address" yaml:"address"`
	Kind          types.HeaderKind     `json:"kind" yaml:"kind"`
	VendorID      string               `json:"vendor_id" yaml:"vendor_id"`
	DeviceID      string               `json:"device_id" yaml:"device_id"`
	Vendor        string               `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Product       string               `json:"product,omitempty" yaml:"product,omitempty"`
	Class         string               `json:"class" yaml:"class"`
	Multifunction bool                 `json:"multifunction" yaml:"multifunction"`
	Header        types.FunctionHeader `json:"header" yaml:"header"`
	Variant       types.HeaderVariant  `json:"variant" yaml:"variant"`
	BARs          []types.BAR          `json:"bars,omitempty" yaml:"bars,omitempty"`
	Net           *pkg.NetInfo         `json:"net,omitempty" yaml:"net,omitempty"`
}

var outputFormats = []string{"table", "json", "yaml", "csv", "simple", "detailed"}

// buildRows resolves names for every function. db may be nil.
func buildRows(devices []types.DiscoveredDevice, db *pkg.VendorDatabase) []DeviceRow {
	rows := make([]DeviceRow, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, DeviceRow{
			Address:       d.Address.String(),
			Kind:          d.Kind(),
			VendorID:      d.Header.VendorID,
			DeviceID:      d.Header.DeviceID,
			Vendor:        db.VendorName(d.Header.VendorID),
			Product:       db.DeviceName(d.Header.VendorID, d.Header.DeviceID),
			Class:         pci.DeviceClassName(d),
			Multifunction: d.Multifunction,
			Device:        d,
		})
	}
	return rows
}

func formatDevices(format string, rows []DeviceRow) (string, error) {
	switch strings.ToLower(format) {
	case "table":
		return formatDeviceTable(rows), nil
	case "json":
		return formatDeviceJSON(rows)
	case "yaml":
		return formatDeviceYAML(rows)
	case "csv":
		return formatDeviceCSV(rows)
	case "simple":
		return formatDeviceSimple(rows), nil
	case "detailed":
		return formatDeviceDetailed(rows), nil
	}
	return "", fmt.Errorf("invalid format: %s. Use: %s", format, strings.Join(outputFormats, ", "))
}

func toOutput(rows []DeviceRow) []deviceOutput {
	output := make([]deviceOutput, 0, len(rows))
	for _, r := range rows {
		out := deviceOutput{
			Address:       r.Address,
			Kind:          r.Kind,
			VendorID:      fmt.Sprintf("%04x", r.VendorID),
			DeviceID:      fmt.Sprintf("%04x", r.DeviceID),
			Vendor:        r.Vendor,
			Product:       r.Product,
			Class:         r.Class,
			Multifunction: r.Multifunction,
			Header:        r.Device.Header,
			Variant:       r.Device.Variant,
			Net:           r.Net,
		}
		for _, b := range r.Device.BARs() {
			if b.Kind != types.BARUnused {
				out.BARs = append(out.BARs, b)
			}
		}
		output = append(output, out)
	}
	return output
}

func formatDeviceJSON(rows []DeviceRow) (string, error) {
	data, err := json.MarshalIndent(toOutput(rows), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal devices: %w", err)
	}
	return string(data) + "\n", nil
}

func formatDeviceYAML(rows []DeviceRow) (string, error) {
	data, err := yaml.Marshal(toOutput(rows))
	if err != nil {
		return "", fmt.Errorf("failed to marshal devices: %w", err)
	}
	return string(data), nil
}

func formatDeviceCSV(rows []DeviceRow) (string, error) {
	var builder strings.Builder
	w := csv.NewWriter(&builder)
	w.Write([]string{"ADDRESS", "KIND", "VENDOR_ID", "DEVICE_ID", "VENDOR", "PRODUCT", "CLASS", "MULTIFUNCTION", "INTERFACES"})
	for _, r := range rows {
		multi := "No"
		if r.Multifunction {
			multi = "Yes"
		}
		w.Write([]string{
			r.Address,
			string(r.Kind),
			fmt.Sprintf("%04x", r.VendorID),
			fmt.Sprintf("%04x", r.DeviceID),
			r.Vendor,
			r.Product,
			r.Class,
			multi,
			interfaces(r),
		})
	}
	w.Flush()
	return builder.String(), w.Error()
}

func formatDeviceSimple(rows []DeviceRow) string {
	var builder strings.Builder
	for _, r := range rows {
		builder.WriteString(fmt.Sprintf("%s\t%04x:%04x\t%s\t%s\n",
			r.Address, r.VendorID, r.DeviceID, r.Kind, r.Class))
	}
	return builder.String()
}

func formatDeviceDetailed(rows []DeviceRow) string {
	var builder strings.Builder
	for _, r := range rows {
		h := r.Device.Header
		builder.WriteString(fmt.Sprintf("Function: %s\n", r.Address))
		builder.WriteString(fmt.Sprintf("  Vendor: %04x %s\n", r.VendorID, r.Vendor))
		builder.WriteString(fmt.Sprintf("  Device: %04x %s\n", r.DeviceID, r.Product))
		builder.WriteString(fmt.Sprintf("  Class: %02x%02x prog-if %02x (%s)\n", h.ClassCode, h.Subclass, h.ProgIF, r.Class))
		builder.WriteString(fmt.Sprintf("  Revision: %02x\n", h.RevisionID))
		builder.WriteString(fmt.Sprintf("  Command: %04x  Status: %04x\n", h.Command, h.Status))
		builder.WriteString(fmt.Sprintf("  Header: %s (0x%02x), multifunction: %t\n", r.Kind, h.HeaderType, r.Multifunction))
		if capPtr := pci.CapabilityPointer(r.Device); capPtr != 0 {
			builder.WriteString(fmt.Sprintf("  Capabilities: 0x%02x\n", capPtr))
		}

		switch v := r.Device.Variant.(type) {
		case types.StandardHeader:
			builder.WriteString(fmt.Sprintf("  Subsystem: %04x:%04x\n", v.SubsystemVendorID, v.SubsystemID))
			if v.InterruptPin != 0 {
				builder.WriteString(fmt.Sprintf("  Interrupt: pin %c routed to IRQ %d\n", 'A'+v.InterruptPin-1, v.InterruptLine))
			}
		case types.BridgeHeader:
			builder.WriteString(fmt.Sprintf("  Bus: primary=%02x, secondary=%02x, subordinate=%02x\n",
				v.PrimaryBus, v.SecondaryBus, v.SubordinateBus))
			writeWindow(&builder, "I/O behind bridge", v.IOWindow())
			writeWindow(&builder, "Memory behind bridge", v.MemoryWindow())
			writeWindow(&builder, "Prefetchable memory behind bridge", v.PrefetchableWindow())
		case types.CardBusHeader:
			builder.WriteString(fmt.Sprintf("  CardBus registers: %d bytes\n", len(v.Raw)))
		}

		for _, b := range r.Device.BARs() {
			if b.Kind == types.BARUnused || b.Kind == types.BARUpper {
				continue
			}
			prefetch := ""
			if b.Prefetchable {
				prefetch = ", prefetchable"
			}
			builder.WriteString(fmt.Sprintf("  BAR%d: %s at 0x%x%s\n", b.Index, b.Kind, b.Base, prefetch))
		}

		if r.Net != nil && len(r.Net.Interfaces) > 0 {
			builder.WriteString(fmt.Sprintf("  Interfaces: %s\n", strings.Join(r.Net.Interfaces, ", ")))
			builder.WriteString(fmt.Sprintf("  Driver: %s\n", r.Net.Driver))
		}
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeWindow(builder *strings.Builder, name string, w types.Window) {
	if !w.Enabled() {
		builder.WriteString(fmt.Sprintf("  %s: [disabled]\n", name))
		return
	}
	builder.WriteString(fmt.Sprintf("  %s: %x-%x\n", name, w.Base, w.Limit))
}

func formatDeviceTable(rows []DeviceRow) string {
	var builder strings.Builder
	builder.WriteString("┌──────────────┬──────────┬───────────┬─────────────────────┬─────────────────────┬─────────────────────┬─────────────────────┐\n")
	builder.WriteString("│ Address      │ Kind     │ ID        │ Vendor              │ Product             │ Class               │ Interfaces          │\n")
	builder.WriteString("├──────────────┼──────────┼───────────┼─────────────────────┼─────────────────────┼─────────────────────┼─────────────────────┤\n")

	for _, r := range rows {
		id := fmt.Sprintf("%04x:%04x", r.VendorID, r.DeviceID)
		builder.WriteString(fmt.Sprintf("│ %-12s │ %-8s │ %-9s │ %-19s │ %-19s │ %-19s │ %-19s │\n",
			r.Address,
			r.Kind,
			id,
			truncateString(r.Vendor, 19),
			truncateString(r.Product, 19),
			truncateString(r.Class, 19),
			truncateString(interfaces(r), 19)))
	}

	builder.WriteString("└──────────────┴──────────┴───────────┴─────────────────────┴─────────────────────┴─────────────────────┴─────────────────────┘\n")
	return builder.String()
}

func interfaces(r DeviceRow) string {
	if r.Net == nil {
		return ""
	}
	return strings.Join(r.Net.Interfaces, " ")
}

// truncateString truncates a string to maxLen runes, adding "..." if needed
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
