package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pcicam/pkg/types"
)

var addrCmd = &cobra.Command{
	Use:   "addr",
	Short: "Convert between PCI addresses and CAM address words",
}

var addrEncodeCmd = &cobra.Command{
	Use:     "encode <address> <register>",
	Short:   "Print the word written to the address port",
	Example: `  pcicam addr encode 01:02.3 0x10   # 0x80011310`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseTarget(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "0x%08x\n", target.Word())
		return nil
	},
}

var addrDecodeCmd = &cobra.Command{
	Use:     "decode <word>",
	Short:   "Split an address port word into its fields",
	Example: `  pcicam addr decode 0x80011310   # 0000:01:02.3 register 0x10`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := parseUint(args[0], 32)
		if err != nil {
			return fmt.Errorf("invalid address word %q: %w", args[0], err)
		}
		target, enabled := types.ParseWord(uint32(w))
		fmt.Fprintf(cmd.OutOrStdout(), "%s register 0x%02x enabled=%t\n", target.Address, target.Register, enabled)
		return nil
	},
}

func init() {
	addrCmd.AddCommand(addrEncodeCmd)
	addrCmd.AddCommand(addrDecodeCmd)
	rootCmd.AddCommand(addrCmd)
}
