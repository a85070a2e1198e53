package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-fpec/bridge"
	"github.com/moffa90/go-fpec/stm32"
)

func init() {
	statusCmd.Flags().BoolVar(&clearStatus, "clear", false, "acknowledge latched status flags after printing")
	rootCmd.AddCommand(eraseCmd, programCmd, readCmd, statusCmd, lockCmd, portsCmd)
}

var clearStatus bool

var eraseCmd = &cobra.Command{
	Use:   "erase <address>",
	Short: "Erase the flash page starting at address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseUint32(args[0])
		if err != nil {
			return err
		}
		ctrl, err := newController()
		if err != nil {
			return err
		}
		return report(cmd, ctrl.ErasePage(context.Background(), addr))
	},
}

var programCmd = &cobra.Command{
	Use:   "program <address> <value>",
	Short: "Program one 32-bit word of erased flash",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseUint32(args[0])
		if err != nil {
			return err
		}
		value, err := parseUint32(args[1])
		if err != nil {
			return err
		}
		ctrl, err := newController()
		if err != nil {
			return err
		}
		return report(cmd, ctrl.ProgramWord(context.Background(), addr, value))
	},
}

var readCmd = &cobra.Command{
	Use:   "read <address>",
	Short: "Read one 32-bit word",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseUint32(args[0])
		if err != nil {
			return err
		}
		v, err := target.bus.Load32(addr)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "0x%08X: 0x%08X\n", addr, v)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the flash interface status and control registers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sr, cr, err := target.regs.Status()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "SR 0x%08X  busy=%t eop=%t wrprterr=%t pgerr=%t\n", sr,
			sr&stm32.SRBusy != 0,
			sr&stm32.SREndOfOperation != 0,
			sr&stm32.SRWriteProtectError != 0,
			sr&stm32.SRProgrammingError != 0,
		)
		fmt.Fprintf(out, "CR 0x%08X  lock=%t per=%t pg=%t strt=%t\n", cr,
			cr&stm32.CRLock != 0,
			cr&stm32.CRPageErase != 0,
			cr&stm32.CRProgram != 0,
			cr&stm32.CRStart != 0,
		)
		if clearStatus {
			return target.regs.ClearStatus()
		}
		return nil
	},
}

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Lock the flash control register",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return target.regs.Lock()
	},
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := bridge.Ports()
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}
