package fpec

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors carried by OperationError.
var (
	// ErrBusy means an operation was already in progress; nothing was changed
	// and the caller may retry later.
	ErrBusy = errors.New("flash controller busy")

	// ErrUnlockFailed means the key sequence did not unlock the control
	// register. A malformed sequence locks the controller until the next
	// device reset; software cannot recover from it.
	ErrUnlockFailed = errors.New("flash controller unlock failed")

	// ErrEraseFailed means the erase cycle completed without end-of-operation.
	ErrEraseFailed = errors.New("page erase failed")

	// ErrProgramFailed means the program cycle completed without end-of-operation.
	ErrProgramFailed = errors.New("word program failed")

	// ErrTimeout means the busy flag did not clear within the poll bound.
	// The hardware operation may still complete; treat it as failed.
	ErrTimeout = errors.New("flash operation timed out")
)

// OperationError reports a flash operation that did not succeed.
type OperationError struct {
	// Op is the operation name ("erase page" or "program word")
	Op string

	// Address is the target flash address
	Address uint32

	// Err is one of the package sentinels
	Err error

	// WriteProtected is set when the hardware latched a write-protection error
	WriteProtected bool

	// ProgrammingError is set when the hardware latched a programming error
	ProgrammingError bool

	// Polls is the number of busy polls performed before the outcome was decided
	Polls int
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s at 0x%08X: %v", e.Op, e.Address, e.Err)
	switch {
	case e.WriteProtected:
		msg += " (write-protected page)"
	case e.ProgrammingError:
		msg += " (target not erased)"
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// AddressError reports an address rejected before any register was touched.
type AddressError struct {
	Op      string
	Address uint32
	Reason  string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("%s: invalid address 0x%08X: %s", e.Op, e.Address, e.Reason)
}

// RegisterError reports a failed access to the register file or flash array.
type RegisterError struct {
	// Access is "read", "write", "clear", "load" or "store"
	Access string

	// Field is the register field accessed (unset for flash array accesses)
	Field Field

	// Address is the flash address for load and store accesses
	Address uint32

	Err error
}

func (e *RegisterError) Error() string {
	if e.Access == "load" || e.Access == "store" {
		return fmt.Sprintf("flash %s at 0x%08X: %v", e.Access, e.Address, e.Err)
	}
	return fmt.Sprintf("register %s %s: %v", e.Access, e.Field, e.Err)
}

func (e *RegisterError) Unwrap() error {
	return e.Err
}

// VerifyError indicates that a programmed word did not read back as written.
type VerifyError struct {
	Address  uint32
	Expected uint32
	Actual   uint32
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify mismatch at 0x%08X: expected 0x%08X, got 0x%08X",
		e.Address, e.Expected, e.Actual)
}

// Outcome is the classification of a single flash operation.
type Outcome int

const (
	Success Outcome = iota
	Busy
	UnlockFailed
	EraseFailed
	ProgramFailed
	Timeout
	InvalidAddress
	Canceled
	Fault
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "Success"
	case Busy:
		return "Busy"
	case UnlockFailed:
		return "UnlockFailed"
	case EraseFailed:
		return "EraseFailed"
	case ProgramFailed:
		return "ProgramFailed"
	case Timeout:
		return "Timeout"
	case InvalidAddress:
		return "InvalidAddress"
	case Canceled:
		return "Canceled"
	case Fault:
		return "Fault"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// OutcomeOf classifies an error returned by ErasePage or ProgramWord.
func OutcomeOf(err error) Outcome {
	var (
		addrErr   *AddressError
		verifyErr *VerifyError
	)
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrBusy):
		return Busy
	case errors.Is(err, ErrUnlockFailed):
		return UnlockFailed
	case errors.Is(err, ErrTimeout):
		return Timeout
	case errors.Is(err, ErrEraseFailed):
		return EraseFailed
	case errors.Is(err, ErrProgramFailed), errors.As(err, &verifyErr):
		return ProgramFailed
	case errors.As(err, &addrErr):
		return InvalidAddress
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Canceled
	default:
		return Fault
	}
}

// IsWriteProtected reports whether err was caused by a write-protected page.
func IsWriteProtected(err error) bool {
	var opErr *OperationError
	return errors.As(err, &opErr) && opErr.WriteProtected
}
