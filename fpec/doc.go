// Package fpec drives the flash program/erase controller (FPEC) of an
// STM32F3-class microcontroller: page erase and single-word programming.
//
// # Overview
//
// Each operation runs the controller's documented command sequence:
//   - Refuse to start while the busy flag is set
//   - Unlock the control register with the two-key handshake
//   - Select the operation, latch the address and start the cycle
//   - Poll the busy flag with a bounded poller
//   - Check and clear the end-of-operation flag
//   - Clear the operation enable bit
//
// # Basic Usage
//
//	regs := stm32.NewRegisters(bus)
//	ctrl := fpec.New(regs, stm32.NewFlash(bus))
//
//	if err := ctrl.ErasePage(ctx, 0x0803F800); err != nil {
//	    log.Fatal(err)
//	}
//	if err := ctrl.ProgramWord(ctx, 0x0803F800, 0xCAFEF00D); err != nil {
//	    log.Fatal(err)
//	}
//
// # Outcomes
//
// Every call decides exactly one Outcome, available through OutcomeOf:
//   - Success: the cycle completed and end-of-operation was cleared
//   - Busy: an operation was in progress; nothing was changed, retry later
//   - UnlockFailed: the key handshake failed; only a device reset recovers
//   - EraseFailed / ProgramFailed: the hardware rejected the cycle
//     (IsWriteProtected distinguishes write-protected pages)
//   - Timeout: the busy flag did not clear within the poll bound
//   - InvalidAddress: the address was rejected before touching hardware
//   - Canceled: ctx was done before the operation started
//   - Fault: the register file or flash array could not be accessed
//
// # Addresses
//
// Erase addresses must be page aligned and program addresses word aligned,
// both inside the configured Geometry. WithReservedRegion keeps the pages
// holding the running firmware out of reach.
//
// # Concurrency
//
// A Controller owns the register file. Calls never queue behind each other:
// a call made while another is in flight returns ErrBusy.
package fpec
