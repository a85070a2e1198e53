package fpec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	opErase   = "erase page"
	opProgram = "program word"
)

// Controller sequences erase and program operations on the flash controller.
//
// A Controller is the single owner of the register file: create one at
// startup and share the pointer. Operations never queue; a call made while
// another is in flight returns ErrBusy without touching any register.
type Controller struct {
	regs   Registers
	mem    Memory
	config Config
	poller Poller

	mu sync.Mutex
}

// New creates a Controller over the given register file and flash array.
//
// Example:
//
//	bus := stm32.MMIO()
//	ctrl := fpec.New(stm32.NewRegisters(bus), stm32.NewFlash(bus),
//	    fpec.WithReservedRegion(0x08000000, 64*1024),
//	    fpec.WithPollTimeout(50*time.Millisecond),
//	)
func New(regs Registers, mem Memory, opts ...Option) *Controller {
	if regs == nil {
		panic("registers cannot be nil")
	}
	if mem == nil {
		panic("memory cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	poller := cfg.Poller
	if poller == nil {
		poller = &BoundedPoller{
			MaxPolls: cfg.PollLimit,
			Timeout:  cfg.PollTimeout,
			Interval: cfg.PollInterval,
		}
	}

	return &Controller{
		regs:   regs,
		mem:    mem,
		config: cfg,
		poller: poller,
	}
}

// Geometry returns the flash layout the controller validates against.
func (c *Controller) Geometry() Geometry {
	return c.config.Geometry
}

// ErasePage erases the page starting at addr, leaving every byte 0xFF.
//
// The sequence is:
//  1. Fail with ErrBusy if an operation is in progress
//  2. Unlock the control register if it is locked
//  3. Select page erase, latch the address and start the cycle
//  4. Wait for the busy flag to clear, bounded by the poll settings
//  5. Check and clear end-of-operation
//
// ctx is checked before any register is touched; once the cycle has
// started it can only be awaited.
func (c *Controller) ErasePage(ctx context.Context, addr uint32) error {
	if err := c.checkAddress(opErase, addr, c.config.Geometry.PageSize); err != nil {
		return err
	}
	if !c.mu.TryLock() {
		return &OperationError{Op: opErase, Address: addr, Err: ErrBusy}
	}
	defer c.mu.Unlock()

	start := time.Now()
	polls, err := c.execute(ctx, opErase, addr, FieldPageErase, ErrEraseFailed, func() error {
		if err := c.write(FieldAddress, addr); err != nil {
			return err
		}
		return c.write(FieldStart, 1)
	})
	c.finish(opErase, addr, polls, start, err)
	return err
}

// ProgramWord writes value to the erased word at addr.
//
// Flash bits only move from 1 to 0; programming a word that was not erased
// is rejected by the hardware and reported as ErrProgramFailed. With
// VerifyAfterProgram enabled the word is read back after the cycle.
func (c *Controller) ProgramWord(ctx context.Context, addr uint32, value uint32) error {
	if err := c.checkAddress(opProgram, addr, c.config.Geometry.WordSize); err != nil {
		return err
	}
	if !c.mu.TryLock() {
		return &OperationError{Op: opProgram, Address: addr, Err: ErrBusy}
	}
	defer c.mu.Unlock()

	start := time.Now()
	polls, err := c.execute(ctx, opProgram, addr, FieldProgram, ErrProgramFailed, func() error {
		if err := c.write(FieldAddress, addr); err != nil {
			return err
		}
		if err := c.mem.Store32(addr, value); err != nil {
			return &RegisterError{Access: "store", Address: addr, Err: err}
		}
		return nil
	})
	if err == nil && c.config.VerifyAfterProgram {
		err = c.verify(addr, value)
	}
	c.finish(opProgram, addr, polls, start, err)
	return err
}

// execute runs the shared command sequence. trigger performs the steps
// between selecting the operation and waiting for completion.
func (c *Controller) execute(ctx context.Context, op string, addr uint32, enable Field, failure error, trigger func() error) (polls int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%s at 0x%08X: cancelled: %w", op, addr, err)
	}
	if err := c.prepare(op, addr); err != nil {
		return 0, err
	}

	if err := c.write(enable, 1); err != nil {
		return 0, err
	}
	defer func() {
		// The enable bit must not bleed into the next operation.
		if clearErr := c.write(enable, 0); clearErr != nil && err == nil {
			err = clearErr
		}
	}()

	c.report(Event{Op: op, Phase: PhaseStarting, Address: addr})
	if err := trigger(); err != nil {
		return 0, err
	}

	c.report(Event{Op: op, Phase: PhaseWaiting, Address: addr})
	polls, err = c.poller.Until(func() (bool, error) {
		busy, err := c.read(FieldBusy)
		return busy == 0, err
	})
	if errors.Is(err, ErrPollExpired) {
		return polls, &OperationError{Op: op, Address: addr, Err: ErrTimeout, Polls: polls}
	}
	if err != nil {
		return polls, err
	}

	eop, err := c.read(FieldEndOfOperation)
	if err != nil {
		return polls, err
	}
	if eop != 0 {
		return polls, c.clear(FieldEndOfOperation)
	}

	opErr := &OperationError{Op: op, Address: addr, Err: failure, Polls: polls}
	if opErr.WriteProtected, err = c.takeFlag(FieldWriteProtectError); err != nil {
		return polls, err
	}
	if opErr.ProgrammingError, err = c.takeFlag(FieldProgrammingError); err != nil {
		return polls, err
	}
	return polls, opErr
}

// prepare checks the busy flag and unlocks the control register.
func (c *Controller) prepare(op string, addr uint32) error {
	busy, err := c.read(FieldBusy)
	if err != nil {
		return err
	}
	if busy != 0 {
		return &OperationError{Op: op, Address: addr, Err: ErrBusy}
	}

	if err := c.unlock(op, addr); err != nil {
		return err
	}

	// Flags left over from an earlier operation would be mistaken for
	// this operation's result.
	for _, f := range []Field{FieldEndOfOperation, FieldWriteProtectError, FieldProgrammingError} {
		stale, err := c.takeFlag(f)
		if err != nil {
			return err
		}
		if stale {
			c.logDebug("cleared stale status flag", "field", f.String())
		}
	}
	return nil
}

// unlock writes the key sequence if, and only if, the control register is locked.
func (c *Controller) unlock(op string, addr uint32) error {
	locked, err := c.read(FieldLock)
	if err != nil {
		return err
	}
	if locked == 0 {
		return nil
	}

	c.report(Event{Op: op, Phase: PhaseUnlocking, Address: addr})
	c.logDebug("control register locked, unlocking")

	// Two separate writes; the hardware latches state between them.
	if err := c.write(FieldKey, Key1); err != nil {
		return err
	}
	if err := c.write(FieldKey, Key2); err != nil {
		return err
	}

	locked, err = c.read(FieldLock)
	if err != nil {
		return err
	}
	if locked != 0 {
		c.logError("unlock failed, flash controller stays locked until device reset",
			"op", op,
			"address", fmt.Sprintf("0x%08X", addr),
		)
		return &OperationError{Op: op, Address: addr, Err: ErrUnlockFailed}
	}
	return nil
}

func (c *Controller) verify(addr, expected uint32) error {
	actual, err := c.mem.Load32(addr)
	if err != nil {
		return &RegisterError{Access: "load", Address: addr, Err: err}
	}
	if actual != expected {
		return &VerifyError{Address: addr, Expected: expected, Actual: actual}
	}
	return nil
}

func (c *Controller) checkAddress(op string, addr, unit uint32) error {
	g := c.config.Geometry
	if !g.Contains(addr) {
		return &AddressError{
			Op:      op,
			Address: addr,
			Reason:  fmt.Sprintf("outside flash 0x%08X-0x%08X", g.Base, g.End()-1),
		}
	}
	if addr%unit != 0 {
		return &AddressError{
			Op:      op,
			Address: addr,
			Reason:  fmt.Sprintf("not aligned to %d bytes", unit),
		}
	}
	for _, r := range c.config.Reserved {
		if r.overlaps(uint64(addr), uint64(addr)+uint64(unit)) {
			return &AddressError{
				Op:      op,
				Address: addr,
				Reason:  fmt.Sprintf("inside reserved region 0x%08X+%d", r.Start, r.Size),
			}
		}
	}
	return nil
}

// takeFlag reads a latched status flag and clears it if set.
func (c *Controller) takeFlag(f Field) (bool, error) {
	v, err := c.read(f)
	if err != nil || v == 0 {
		return false, err
	}
	return true, c.clear(f)
}

func (c *Controller) read(f Field) (uint32, error) {
	v, err := c.regs.Read(f)
	if err != nil {
		return 0, &RegisterError{Access: "read", Field: f, Err: err}
	}
	return v, nil
}

func (c *Controller) write(f Field, v uint32) error {
	if err := c.regs.Write(f, v); err != nil {
		return &RegisterError{Access: "write", Field: f, Err: err}
	}
	return nil
}

func (c *Controller) clear(f Field) error {
	if err := c.regs.Clear(f); err != nil {
		return &RegisterError{Access: "clear", Field: f, Err: err}
	}
	return nil
}

// finish reports the final phase and logs the outcome.
func (c *Controller) finish(op string, addr uint32, polls int, start time.Time, err error) {
	outcome := OutcomeOf(err)
	event := Event{
		Op:      op,
		Phase:   PhaseComplete,
		Address: addr,
		Polls:   polls,
		Outcome: outcome,
		Elapsed: time.Since(start),
	}

	if err != nil {
		event.Phase = PhaseFailed
		c.report(event)
		c.logError(op+" failed",
			"address", fmt.Sprintf("0x%08X", addr),
			"outcome", outcome.String(),
			"error", err.Error(),
		)
		return
	}

	c.report(event)
	c.logInfo(op+" complete",
		"address", fmt.Sprintf("0x%08X", addr),
		"polls", polls,
		"elapsed", event.Elapsed.String(),
	)
}

// report calls the event callback if configured.
func (c *Controller) report(e Event) {
	if c.config.EventCallback != nil {
		c.config.EventCallback(e)
	}
}

// logDebug logs a debug message if a logger is configured.
func (c *Controller) logDebug(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (c *Controller) logInfo(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (c *Controller) logError(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Error(msg, keysAndValues...)
	}
}
