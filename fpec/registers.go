package fpec

import "fmt"

// Field names a bit field or word register of the flash controller.
// The bit layout behind each field belongs to the Registers implementation.
type Field int

const (
	// FieldLock is set while the control register is locked.
	FieldLock Field = iota

	// FieldBusy is set while an erase or program cycle is in progress.
	FieldBusy

	// FieldEndOfOperation is the latched success flag.
	FieldEndOfOperation

	// FieldWriteProtectError is latched when an operation targets a write-protected page.
	FieldWriteProtectError

	// FieldProgrammingError is latched when programming a location that was not erased.
	FieldProgrammingError

	// FieldPageErase selects the page erase operation.
	FieldPageErase

	// FieldProgram selects the programming operation.
	FieldProgram

	// FieldStart triggers the selected erase operation.
	FieldStart

	// FieldAddress is the target address register.
	FieldAddress

	// FieldKey is the unlock key port.
	FieldKey
)

var fieldNames = [...]string{
	FieldLock:              "lock",
	FieldBusy:              "busy",
	FieldEndOfOperation:    "end-of-operation",
	FieldWriteProtectError: "write-protect-error",
	FieldProgrammingError:  "programming-error",
	FieldPageErase:         "page-erase-enable",
	FieldProgram:           "program-enable",
	FieldStart:             "start",
	FieldAddress:           "address",
	FieldKey:               "key",
}

func (f Field) String() string {
	if f >= 0 && int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// Registers is the control surface of the flash controller.
//
// Write updates a single field with a read-modify-write of the register
// that owns it, leaving the other fields of that register untouched.
// Clear acknowledges a latched status flag using whatever access the
// hardware requires (write-one-to-clear on STM32).
type Registers interface {
	Read(f Field) (uint32, error)
	Write(f Field, value uint32) error
	Clear(f Field) error
}

// Memory is the only path through which the driver touches the flash array.
type Memory interface {
	Load32(addr uint32) (uint32, error)
	Store32(addr uint32, value uint32) error
}

// Unlock key sequence. Any other sequence written to the key port locks
// the controller until the next device reset.
const (
	Key1 uint32 = 0x45670123
	Key2 uint32 = 0xCDEF89AB
)
