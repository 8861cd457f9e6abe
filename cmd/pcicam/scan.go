package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pcicam/internal/config"
	"pcicam/pkg"
	"pcicam/pkg/cam"
	"pcicam/pkg/pci"
	"pcicam/pkg/types"
)

var (
	// Scan command flags
	scanFormat          string
	scanNet             bool
	scanSnapshot        string
	scanAllowedVendors  string
	scanExcludedVendors string
	scanCompareKernel   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Enumerate PCI functions",
	Long: `Walk every bus, device and function in the configured bus range and print
the functions that answer.

Available formats:
  • table (default) - Pretty-printed table
  • json - JSON output
  • yaml - YAML output
  • csv - CSV format
  • simple - Tab-separated values
  • detailed - Verbose text output with BARs and bridge windows

Examples:
  pcicam scan                                  # Default table format
  pcicam scan --format detailed                # Decode every header
  pcicam scan --net                            # Show network interfaces
  pcicam scan --allowed-vendors 0x15b3,0x8086  # Report only these vendors
  pcicam scan --snapshot bus.yaml              # Save registers as a fixture
  pcicam scan --compare-kernel                 # Cross-check with the kernel's list`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanFormat, "format", "table", "Output format: table, json, yaml, csv, simple, detailed")
	scanCmd.Flags().BoolVar(&scanNet, "net", false, "Resolve network interfaces of network controllers via sysfs and ethtool")
	scanCmd.Flags().StringVar(&scanSnapshot, "snapshot", "", "Write the registers of every found function to a fixture file")
	scanCmd.Flags().StringVar(&scanAllowedVendors, "allowed-vendors", "", "Comma-separated list of allowed vendor IDs (e.g., 0x15b3,0x8086)")
	scanCmd.Flags().StringVar(&scanExcludedVendors, "excluded-vendors", "", "Comma-separated list of excluded vendor IDs (e.g., 0x1234,0x5678)")
	scanCmd.Flags().BoolVar(&scanCompareKernel, "compare-kernel", false, "Log functions the kernel lists in sysfs that the walk missed, and the reverse")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanAllowedVendors != "" {
		cfg.Filter.AllowedVendors = config.ParseVendorList(scanAllowedVendors)
	}
	if scanExcludedVendors != "" {
		cfg.Filter.ExcludedVendors = config.ParseVendorList(scanExcludedVendors)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	acc, release, err := openAccessor(cfg)
	if err != nil {
		return err
	}
	defer release()

	enum := newEnumerator(acc, cfg)
	all := enum.Enumerate()

	if scanSnapshot != "" {
		if err := writeSnapshot(acc, all, scanSnapshot); err != nil {
			return err
		}
	}
	if scanCompareKernel {
		if err := compareKernel(all); err != nil {
			return err
		}
	}

	match := vendorFilter(cfg)
	var devices []types.DiscoveredDevice
	for _, d := range all {
		if match(d) {
			devices = append(devices, d)
		}
	}

	db, err := pkg.LoadVendorDatabase(cfg.PciIDs)
	if err != nil {
		pkg.WithError(err).Warn("vendor names unavailable")
		db = nil
	}
	rows := buildRows(devices, db)
	if scanNet {
		annotateNet(rows, cfg.Access.SysfsRoot)
	}

	out, err := formatDevices(scanFormat, rows)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)

	stats := enum.Stats()
	pkg.WithField("found", stats.FunctionsFound).
		WithField("reported", len(devices)).
		Debug("scan finished")
	return nil
}

// annotateNet attaches interface names to network controllers. Failure to
// open ethtool leaves the rows untouched.
func annotateNet(rows []DeviceRow, root string) {
	resolver, err := pkg.NewNetResolver(root)
	if err != nil {
		pkg.WithError(err).Warn("network interface lookup disabled")
		return
	}
	defer resolver.Close()

	for i := range rows {
		if !pci.IsNetwork(rows[i].Device) {
			continue
		}
		info, err := resolver.Lookup(rows[i].Address)
		if err != nil {
			pkg.WithError(err).WithField("address", rows[i].Address).Debug("interface lookup failed")
			continue
		}
		rows[i].Net = &info
	}
}

// compareKernel logs every disagreement between the walk and sysfs
func compareKernel(found []types.DiscoveredDevice) error {
	mount := pkg.SysfsMount(cfg.Access.SysfsRoot)
	kernel, err := pkg.KernelFunctions(mount)
	if err != nil {
		return err
	}

	diff := pkg.CompareWithKernel(found, kernel, cfg.Access.Domain, cfg.Scan.FirstBus, cfg.Scan.LastBus)
	for _, a := range diff.Missing {
		pkg.WithField("address", a.String()).Warn("function listed by the kernel was not found by the walk")
	}
	for _, a := range diff.Extra {
		pkg.WithField("address", a.String()).Warn("function found by the walk is not listed by the kernel")
	}
	pkg.WithFields(logrus.Fields{
		"mount":   mount,
		"missing": len(diff.Missing),
		"extra":   len(diff.Extra),
	}).Info("kernel comparison complete")
	return nil
}

func writeSnapshot(acc cam.Accessor, devices []types.DiscoveredDevice, path string) error {
	addrs := make([]types.Address, 0, len(devices))
	for _, d := range devices {
		addrs = append(addrs, d.Address)
	}
	data, err := yaml.Marshal(cam.Snapshot(acc, addrs))
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	pkg.WithField("path", path).WithField("functions", len(addrs)).Info("snapshot written")
	return nil
}
