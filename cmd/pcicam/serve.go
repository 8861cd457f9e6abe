package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/grpclog"

	"pcicam/internal/inventory"
	"pcicam/pkg"
)

var (
	// Serve command flags
	serveListen   string
	serveInterval time.Duration
	serveWatch    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the PCI inventory over gRPC",
	Long: `Enumerate once, then serve the result through the pcicam.v1.Inventory gRPC
service. Clients call ListDevices for the last pass and Rescan to start a
new one.

Examples:
  pcicam serve                                # Listen on server.listen
  pcicam serve --listen 127.0.0.1:9090        # Custom address
  pcicam serve --interval 30s                 # Rescan periodically
  pcicam serve --fixture bus.yaml --watch     # Rescan on fixture edits`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", "", "gRPC listen address (default from config, :50051)")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 0, "Rescan period, 0 disables periodic rescans")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Rescan on hotplug (fixture edits, or polling for port and sysfs)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveListen != "" {
		cfg.Server.Listen = serveListen
	}

	scanner, release, err := newScanner(cfg)
	if err != nil {
		return err
	}
	defer release()

	inv := inventory.New(scanner, vendorFilter(cfg))
	snap := inv.Rescan()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveInterval > 0 {
		go rescanEvery(ctx, inv, serveInterval)
	}
	if serveWatch {
		monitor, err := newBusMonitor(cfg, 500*time.Millisecond, defaultPoll, func() { inv.Rescan() })
		if err != nil {
			return fmt.Errorf("failed to create monitor: %w", err)
		}
		go func() {
			if err := monitor.run(ctx); err != nil {
				pkg.WithError(err).Error("bus monitor stopped")
			}
		}()
	}

	lis, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	grpclog.SetLoggerV2(pkg.GRPCLogger())
	grpcServer := grpc.NewServer()
	inventory.RegisterInventoryServer(grpcServer, inventory.NewServer(inv))

	pkg.WithFields(logrus.Fields{
		"listen":    lis.Addr().String(),
		"backend":   cfg.Access.Backend,
		"functions": len(snap.Devices),
	}).Info("starting inventory server")

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		pkg.Info("shutting down server...")
		grpcServer.GracefulStop()
	}()

	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func rescanEvery(ctx context.Context, inv *inventory.Inventory, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			inv.Rescan()
		case <-ctx.Done():
			return
		}
	}
}
