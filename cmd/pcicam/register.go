package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pcicam/pkg"
	"pcicam/pkg/types"
)

var readCmd = &cobra.Command{
	Use:   "read <address> <register>",
	Short: "Read one 32-bit configuration register",
	Long: `Read the 32-bit register at a byte offset of one function. The offset is
rounded down to a multiple of 4. Absent functions read as 0xffffffff.

Examples:
  pcicam read 00:00.0 0x00        # vendor and device id
  pcicam read 0000:3b:00.0 0x08   # class code and revision`,
	Args: cobra.ExactArgs(2),
	RunE: runRead,
}

var writeCmd = &cobra.Command{
	Use:   "write <address> <register> <value>",
	Short: "Write one 32-bit configuration register",
	Long: `Write a 32-bit value to a register of one function. No read-modify-write
is performed; the whole register is replaced.

Example:
  pcicam write 00:03.0 0x04 0x00100007   # enable I/O, memory and bus mastering`,
	Args: cobra.ExactArgs(3),
	RunE: runWrite,
}

func init() {
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
}

func parseUint(s string, bits int) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 0, bits)
}

func parseTarget(addrArg, regArg string) (types.ConfigAddress, error) {
	addr, err := types.ParseAddress(addrArg)
	if err != nil {
		return types.ConfigAddress{}, err
	}
	reg, err := parseRegister(regArg)
	if err != nil {
		return types.ConfigAddress{}, err
	}
	if reg%4 != 0 {
		pkg.Warn("register 0x%02x is not 4-byte aligned, using 0x%02x", reg, reg&0xFC)
	}
	return addr.Register(reg &^ 3), nil
}

func runRead(cmd *cobra.Command, args []string) error {
	target, err := parseTarget(args[0], args[1])
	if err != nil {
		return err
	}

	acc, release, err := openAccessor(cfg)
	if err != nil {
		return err
	}
	defer release()

	value := acc.Read(target)
	pkg.WithField("target", target.String()).WithField("word", fmt.Sprintf("0x%08x", target.Word())).Debug("register read")
	fmt.Fprintf(cmd.OutOrStdout(), "0x%08x\n", value)
	return nil
}

func runWrite(cmd *cobra.Command, args []string) error {
	target, err := parseTarget(args[0], args[1])
	if err != nil {
		return err
	}
	value, err := parseUint(args[2], 32)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[2], err)
	}

	acc, release, err := openAccessor(cfg)
	if err != nil {
		return err
	}
	defer release()

	acc.Write(target, uint32(value))
	pkg.WithField("target", target.String()).WithField("value", fmt.Sprintf("0x%08x", value)).Info("register written")
	return nil
}
