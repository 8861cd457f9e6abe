package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pcicam/internal/config"
	"pcicam/pkg"
)

var (
	// Global flags
	configFile string
	backend    string
	fixture    string
	sysfsRoot  string
	logLevel   string
	logFormat  string
	domain     uint16

	// cfg is the merged configuration, filled in before every command runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pcicam",
	Short: "pcicam - PCI configuration space enumerator",
	Long: `pcicam discovers PCI functions by walking every bus, device and function
number through the legacy configuration access mechanism (ports 0xCF8/0xCFC)
and decodes their configuration headers.

Access backends:
  • port    - raw port I/O (root, linux/amd64)
  • sysfs   - /sys/bus/pci/devices/*/config
  • fixture - a YAML register dump, for replaying a machine elsewhere

Examples:
  pcicam scan                                 # Enumerate through port I/O
  pcicam scan --backend sysfs --format json   # Enumerate through sysfs
  pcicam read 00:1f.3 0x08                    # Read one register
  pcicam addr encode 01:02.3 0x10             # Show the CAM address word
  pcicam serve --listen :50051                # Serve the inventory over gRPC
  pcicam watch --backend sysfs                # Rescan on hotplug`,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to configuration file")
	flags.StringVar(&backend, "backend", "", "Access backend: port, sysfs, fixture")
	flags.StringVar(&fixture, "fixture", "", "Fixture file for the fixture backend")
	flags.StringVar(&sysfsRoot, "sysfs-root", "", "Root of the sysfs PCI device tree")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "", "Log format: text, json")
	flags.Uint16Var(&domain, "domain", 0, "PCI domain (segment) stamped on addresses")
}

// loadSettings merges the config file, if any, with command-line flags
func loadSettings(cmd *cobra.Command, args []string) error {
	cfg = config.Default()
	if configFile != "" {
		loaded, err := config.LoadConfig(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Access.Backend = backend
	}
	if flags.Changed("fixture") {
		cfg.Access.Fixture = fixture
		// a fixture without an explicit backend means the fixture backend
		if !flags.Changed("backend") {
			cfg.Access.Backend = config.BackendFixture
		}
	}
	if flags.Changed("sysfs-root") {
		cfg.Access.SysfsRoot = sysfsRoot
	}
	if flags.Changed("domain") {
		cfg.Access.Domain = domain
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = logFormat
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := pkg.SetLogLevelFromString(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if err := pkg.SetFormat(cfg.LogFormat); err != nil {
		return err
	}
	pkg.SetOutput(cmd.ErrOrStderr())
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
