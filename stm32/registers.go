package stm32

import (
	"fmt"
	"math/bits"

	"github.com/moffa90/go-fpec/fpec"
)

type accessKind int

const (
	readWrite accessKind = iota
	readOnly
	writeOnly
	writeOneToClear
	readSet // software may only set the bit
)

type fieldDef struct {
	offset uint32
	mask   uint32
	kind   accessKind
}

// layout maps each driver field onto the FLASH_* registers.
var layout = map[fpec.Field]fieldDef{
	fpec.FieldLock:              {OffsetCR, CRLock, readSet},
	fpec.FieldBusy:              {OffsetSR, SRBusy, readOnly},
	fpec.FieldEndOfOperation:    {OffsetSR, SREndOfOperation, writeOneToClear},
	fpec.FieldWriteProtectError: {OffsetSR, SRWriteProtectError, writeOneToClear},
	fpec.FieldProgrammingError:  {OffsetSR, SRProgrammingError, writeOneToClear},
	fpec.FieldPageErase:         {OffsetCR, CRPageErase, readWrite},
	fpec.FieldProgram:           {OffsetCR, CRProgram, readWrite},
	fpec.FieldStart:             {OffsetCR, CRStart, readWrite},
	fpec.FieldAddress:           {OffsetAR, 0xFFFFFFFF, writeOnly},
	fpec.FieldKey:               {OffsetKEYR, 0xFFFFFFFF, writeOnly},
}

// Registers implements fpec.Registers for the STM32F3 flash interface.
type Registers struct {
	bus  Bus
	base uint32
}

var _ fpec.Registers = (*Registers)(nil)

// NewRegisters returns the flash interface registers reachable through bus.
func NewRegisters(bus Bus) *Registers {
	if bus == nil {
		panic("bus cannot be nil")
	}
	return &Registers{bus: bus, base: FPECBase}
}

// Read returns the value of field f, shifted down to bit 0.
func (r *Registers) Read(f fpec.Field) (uint32, error) {
	def, err := r.lookup(f)
	if err != nil {
		return 0, err
	}
	if def.kind == writeOnly {
		return 0, fmt.Errorf("%s is write-only", f)
	}

	v, err := r.bus.Load32(r.base + def.offset)
	if err != nil {
		return 0, err
	}
	return (v & def.mask) >> bits.TrailingZeros32(def.mask), nil
}

// Write sets field f to value. Bit fields are updated with a
// read-modify-write of their register; word registers are stored directly.
func (r *Registers) Write(f fpec.Field, value uint32) error {
	def, err := r.lookup(f)
	if err != nil {
		return err
	}

	addr := r.base + def.offset
	switch def.kind {
	case writeOnly:
		return r.bus.Store32(addr, value)
	case readOnly:
		return fmt.Errorf("%s is read-only", f)
	case writeOneToClear:
		return fmt.Errorf("%s can only be cleared", f)
	case readSet:
		if value == 0 {
			return fmt.Errorf("%s is cleared by the key sequence only", f)
		}
	}

	v, err := r.bus.Load32(addr)
	if err != nil {
		return err
	}
	v &^= def.mask
	v |= (value << bits.TrailingZeros32(def.mask)) & def.mask
	return r.bus.Store32(addr, v)
}

// Clear acknowledges a latched status flag, or zeroes a control bit.
func (r *Registers) Clear(f fpec.Field) error {
	def, err := r.lookup(f)
	if err != nil {
		return err
	}

	switch def.kind {
	case writeOneToClear:
		// Zeros written to the other flags leave them untouched.
		return r.bus.Store32(r.base+def.offset, def.mask)
	case readWrite:
		return r.Write(f, 0)
	default:
		return fmt.Errorf("%s cannot be cleared", f)
	}
}

// Lock sets FLASH_CR.LOCK, closing the control register until the next
// key sequence.
func (r *Registers) Lock() error {
	return r.Write(fpec.FieldLock, 1)
}

// Status returns the raw status and control register values.
func (r *Registers) Status() (sr, cr uint32, err error) {
	if sr, err = r.bus.Load32(r.base + OffsetSR); err != nil {
		return 0, 0, err
	}
	if cr, err = r.bus.Load32(r.base + OffsetCR); err != nil {
		return 0, 0, err
	}
	return sr, cr, nil
}

func (r *Registers) lookup(f fpec.Field) (fieldDef, error) {
	def, ok := layout[f]
	if !ok {
		return fieldDef{}, fmt.Errorf("unknown field %s", f)
	}
	return def, nil
}

// ClearStatus acknowledges every latched status flag at once.
func (r *Registers) ClearStatus() error {
	return r.bus.Store32(r.base+OffsetSR, srClearMask)
}
