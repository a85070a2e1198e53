package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-fpec/bridge"
	"github.com/moffa90/go-fpec/fpec"
	"github.com/moffa90/go-fpec/sim"
	"github.com/moffa90/go-fpec/stm32"
)

// Global flags
var (
	portName    string
	baudRate    int
	useSim      bool
	debug       bool
	pollTimeout time.Duration
	pollLimit   int
	reserve     string
)

// target is the bus the subcommands work on, opened in PersistentPreRunE.
var target struct {
	bus    *stm32.Restricted
	regs   *stm32.Registers
	closer io.Closer
}

var rootCmd = &cobra.Command{
	Use:          "fpecctl",
	Short:        "Erase and program STM32F3 internal flash",
	Long:         "Erases flash pages and programs flash words through the STM32F3 flash interface, over a serial register bridge or against a simulator.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "ports", "help", "completion":
			return nil
		}
		return openTarget()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&portName, "port", "p", "", "serial port of the register bridge agent")
	flags.IntVarP(&baudRate, "baud", "b", bridge.DefaultBaudRate, "serial baud rate")
	flags.BoolVar(&useSim, "sim", false, "run against the built-in simulator")
	flags.BoolVar(&debug, "debug", false, "enable debug logging")
	flags.DurationVar(&pollTimeout, "poll-timeout", fpec.DefaultPollTimeout, "maximum time to wait for an operation")
	flags.IntVar(&pollLimit, "poll-limit", 0, "maximum busy polls per operation (0 for no limit)")
	flags.StringVar(&reserve, "reserve", "", "refuse to touch START:SIZE, e.g. 0x08000000:0x4000")
}

func openTarget() error {
	var bus stm32.HalfWordBus
	switch {
	case useSim:
		bus = sim.New()
	case portName != "":
		port, err := bridge.Open(portName, bridge.SerialConfig{BaudRate: baudRate}, bridge.WithClientLogger(newLogger()))
		if err != nil {
			return err
		}
		if err := port.Ping(); err != nil {
			port.Close()
			return fmt.Errorf("agent on %s not responding: %w", portName, err)
		}
		bus = port
		target.closer = port
	default:
		return errors.New("either --port or --sim is required")
	}

	target.bus = stm32.Restrict(bus, stm32.RegisterWindow, stm32.FlashWindow)
	target.regs = stm32.NewRegisters(target.bus)
	return nil
}

// newController builds a Controller from the global flags.
func newController() (*fpec.Controller, error) {
	opts := []fpec.Option{
		fpec.WithLogger(newLogger()),
		fpec.WithPollTimeout(pollTimeout),
		fpec.WithPollLimit(pollLimit),
	}
	if reserve != "" {
		start, size, err := parseRegion(reserve)
		if err != nil {
			return nil, fmt.Errorf("--reserve: %w", err)
		}
		opts = append(opts, fpec.WithReservedRegion(start, size))
	}
	return fpec.New(target.regs, stm32.NewFlash(target.bus), opts...), nil
}

// closeTarget releases the serial port, if one was opened.
func closeTarget() {
	if target.closer != nil {
		target.closer.Close()
		target.closer = nil
	}
}

// report prints the outcome of an operation and returns err for the exit
// status.
func report(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.OutOrStdout(), fpec.OutcomeOf(err))
	return err
}
