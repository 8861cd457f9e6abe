package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"pcicam/internal/inventory"
	"pcicam/pkg"
	"pcicam/pkg/pci"
)

var (
	// Query command flags
	queryServerAddr string
	queryTimeout    time.Duration
	queryRescan     bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List functions known to a running inventory server",
	Long: `Connect to a pcicam inventory server and print its last pass.

Examples:
  pcicam query                              # Ask localhost:50051
  pcicam query --server 10.0.0.5:50051      # Remote server
  pcicam query --rescan                     # Trigger a rescan first`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVar(&queryServerAddr, "server", "localhost:50051", "gRPC server address")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 5*time.Second, "Request timeout")
	queryCmd.Flags().BoolVar(&queryRescan, "rescan", false, "Ask the server for a fresh pass before listing")
}

func runQuery(cmd *cobra.Command, args []string) error {
	conn, err := grpc.NewClient(queryServerAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	client := inventory.NewClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if queryRescan {
		count, err := client.Rescan(ctx)
		if err != nil {
			return fmt.Errorf("failed to rescan: %w", err)
		}
		pkg.Info("server rescan found %d functions", count)
	}

	records, err := client.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("could not list devices: %w", err)
	}
	pkg.Debug("received %d functions", len(records))

	fmt.Fprint(cmd.OutOrStdout(), formatRecords(records))
	return nil
}

// formatRecords prints server records in the simple scan format
func formatRecords(records []inventory.Record) string {
	rows := make([]DeviceRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, DeviceRow{
			Address:  r.Address,
			Kind:     r.Kind,
			VendorID: r.Header.VendorID,
			DeviceID: r.Header.DeviceID,
			Class:    pci.ClassName(r.Header.ClassCode, r.Header.Subclass),
		})
	}
	return formatDeviceSimple(rows)
}
