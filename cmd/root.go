package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logFile    string
	blePort    string
	usbDevice  string
	usbBaud    int
	outputs    int
)

var rootCmd = &cobra.Command{
	Use:   "urack",
	Short: "MIDI routing settings for the uRack module",
	Long: `urack routes MIDI from a Bluetooth MIDI port and a USB-MIDI serial link to the
module's outputs, and provides the settings screen used to map outputs to notes,
controllers, pitch bend and clock.

Settings are stored as YAML and written every time a value changes.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&configPath, "config", "c", "", "settings file (default is <user config dir>/urack/settings.yaml)")
	f.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	f.StringVar(&logFile, "log-file", "", "append logs to this file")
	f.StringVar(&blePort, "ble-port", "Bluetooth", "substring of the MIDI input port name of the Bluetooth peripheral")
	f.StringVar(&usbDevice, "usb-device", "", "serial device carrying USB-MIDI packets, empty disables USB")
	f.IntVar(&usbBaud, "usb-baud", 115200, "baud rate of the USB-MIDI serial device")
	f.IntVar(&outputs, "outputs", 8, "number of module outputs")
}

// newLogger builds the process logger. quiet drops output that has no file to
// go to, so the log never draws over a full-screen UI.
func newLogger(quiet bool) (*logrus.Logger, func() error, error) {
	log := logrus.New()
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(lvl)

	closer := func() error { return nil }
	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening log file: %w", err)
		}
		log.SetOutput(f)
		log.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
		closer = f.Close
	case quiet:
		log.SetOutput(io.Discard)
	default:
		log.SetOutput(os.Stderr)
	}
	return log, closer, nil
}
