// gpsdxo-mon reads the serial telemetry of a GPS disciplined oscillator and
// shows it as a live terminal dashboard.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

var version = "dev"

type options struct {
	configPath  string
	device      string
	baud        int
	web         string
	headless    bool
	record      string
	replay      string
	replaySpeed float64
	replayLoop  bool
	logFile     string

	help        bool
	showVersion bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "gpsdxo-mon: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet, opts := newFlagSet()
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(os.Stderr, flagSet)
			return nil
		}
		return err
	}
	if opts.showVersion {
		fmt.Printf("gpsdxo-mon %s\n", version)
		return nil
	}
	if opts.help {
		printHelp(os.Stderr, flagSet)
		return nil
	}
	if err := opts.positional(flagSet.Args()); err != nil {
		return err
	}

	cfg, err := buildConfig(opts, flagSet)
	if err != nil {
		return err
	}
	return monitor(cfg)
}

func newFlagSet() (*pflag.FlagSet, *options) {
	opts := &options{}
	fs := pflag.NewFlagSet("gpsdxo-mon", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.configPath, "config", "", "path to YAML config")
	fs.IntVar(&opts.baud, "baud", 0, "serial baud rate (default 115200)")
	fs.StringVar(&opts.web, "web", "", "serve the HTTP status API on this address, e.g. 127.0.0.1:8080")
	fs.BoolVar(&opts.headless, "headless", false, "log values instead of drawing the dashboard")
	fs.StringVar(&opts.record, "record", "", "record every received line to this file")
	fs.StringVar(&opts.replay, "replay", "", "play a recorded session instead of opening a device")
	fs.Float64Var(&opts.replaySpeed, "replay-speed", 0, "replay speed multiplier (default 1)")
	fs.BoolVar(&opts.replayLoop, "replay-loop", false, "restart the replay at the end of the file")
	fs.StringVar(&opts.logFile, "log-file", "", "append logs to this file")
	fs.BoolVarP(&opts.help, "help", "h", false, "show help")
	fs.BoolVar(&opts.showVersion, "version", false, "print the version and exit")
	return fs, opts
}

func (o *options) positional(args []string) error {
	switch len(args) {
	case 0:
		return nil
	case 1:
		o.device = args[0]
		return nil
	default:
		return fmt.Errorf("unexpected argument: %s", args[1])
	}
}

func printHelp(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, `gpsdxo-mon shows the live telemetry of a GPSDXO on a serial port.

Usage:
  gpsdxo-mon [flags] <device>

Examples:
  gpsdxo-mon /dev/ttyUSB0
  gpsdxo-mon --web 127.0.0.1:8080 --record session.log /dev/ttyACM0
  gpsdxo-mon --replay session.log --replay-speed 4

Keys:
  q, ctrl+c  quit

Flags:
`)
	fs.SetOutput(w)
	fs.PrintDefaults()
}
