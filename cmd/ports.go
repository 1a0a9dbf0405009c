package cmd

import (
	"fmt"

	"github.com/icco/urack/internal/transport"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI input ports and serial devices",
	Long: `List the MIDI input ports a Bluetooth peripheral can appear as and the serial
devices that can carry USB-MIDI packets. Use the names with --ble-port and --usb-device.`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "MIDI inputs:")
	ins := transport.InPortNames()
	if len(ins) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, name := range ins {
		mark := " "
		if transport.IsExcluded(name) {
			mark = "-"
		}
		fmt.Fprintf(out, " %s %s\n", mark, name)
	}

	fmt.Fprintln(out, "Serial devices:")
	serials, err := transport.SerialPortNames()
	if err != nil {
		return fmt.Errorf("error listing serial devices: %w", err)
	}
	if len(serials) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, name := range serials {
		fmt.Fprintf(out, "   %s\n", name)
	}
	return nil
}
