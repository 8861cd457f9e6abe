package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pcicam/internal/inventory"
	"pcicam/pkg"
	"pcicam/pkg/pci"
	"pcicam/pkg/types"
)

var (
	watchDebounce time.Duration
	watchPoll     time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print functions as they are added or removed",
	Long: `Enumerate once, then rescan whenever the bus changes and print the
difference. The port and sysfs backends rescan every --poll interval, since
sysfs raises no file events for hotplugged functions. With the fixture
backend, edits to the fixture file trigger a rescan.

Examples:
  pcicam watch --backend sysfs --poll 5s
  pcicam watch --fixture bus.yaml`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "Quiet period before a rescan")
	watchCmd.Flags().DurationVar(&watchPoll, "poll", defaultPoll, "Rescan period for the port and sysfs backends")
}

func runWatch(cmd *cobra.Command, args []string) error {
	scanner, release, err := newScanner(cfg)
	if err != nil {
		return err
	}
	defer release()

	inv := inventory.New(scanner, vendorFilter(cfg))
	out := cmd.OutOrStdout()

	printChanges(out, nil, inv.Rescan().Devices)
	rescan := func() {
		before := inv.Last().Devices
		printChanges(out, before, inv.Rescan().Devices)
	}

	monitor, err := newBusMonitor(cfg, watchDebounce, watchPoll, rescan)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := monitor.run(ctx); err != nil {
		return err
	}
	pkg.Info("watch stopped")
	return nil
}

// printChanges writes one line per added (+) or removed (-) function
func printChanges(w io.Writer, before, after []types.DiscoveredDevice) {
	added, removed := inventory.Diff(before, after)
	for _, d := range removed {
		fmt.Fprintf(w, "- %s\n", describe(d))
	}
	for _, d := range added {
		fmt.Fprintf(w, "+ %s\n", describe(d))
	}
}

func describe(d types.DiscoveredDevice) string {
	return fmt.Sprintf("%s %04x:%04x %s %s",
		d.Address, d.Header.VendorID, d.Header.DeviceID, d.Kind(), pci.DeviceClassName(d))
}
