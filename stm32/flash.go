package stm32

import (
	"fmt"

	"github.com/moffa90/go-fpec/fpec"
)

// HalfWordBus is a Bus that can also store 16-bit values. The STM32F3
// flash interface programs main flash one half-word at a time; any other
// store width with PG set is answered with a bus fault.
type HalfWordBus interface {
	Bus
	Store16(addr uint32, value uint16) error
}

// DefaultHalfWordPolls bounds the wait for the first half of a word.
const DefaultHalfWordPolls = 10000

// Flash implements fpec.Memory for STM32F3 main flash. Store32 programs
// the low half-word, waits for it to finish, then programs the high
// half-word and returns without waiting; the driver's bounded wait covers
// the second half.
type Flash struct {
	bus      HalfWordBus
	sr       uint32
	maxPolls int
}

var _ fpec.Memory = (*Flash)(nil)

// NewFlash returns the flash array reachable through bus.
//
// Example:
//
//	bus := stm32.MMIO()
//	ctrl := fpec.New(stm32.NewRegisters(bus), stm32.NewFlash(bus))
func NewFlash(bus HalfWordBus) *Flash {
	if bus == nil {
		panic("bus cannot be nil")
	}
	return &Flash{bus: bus, sr: FPECBase + OffsetSR, maxPolls: DefaultHalfWordPolls}
}

// Load32 implements fpec.Memory.
func (f *Flash) Load32(addr uint32) (uint32, error) {
	return f.bus.Load32(addr)
}

// Store32 implements fpec.Memory.
//
// End-of-operation from the first half is acknowledged before the second
// half starts, so the flag the driver sees belongs to the second half. If
// the first half fails, the second is not attempted and its error flags
// are left for the driver to report.
func (f *Flash) Store32(addr uint32, value uint32) error {
	if addr%4 != 0 {
		return &AccessError{Op: "store", Addr: addr, Reason: "not word aligned"}
	}

	if err := f.bus.Store16(addr, uint16(value)); err != nil {
		return err
	}

	sr, err := f.waitIdle(addr)
	if err != nil {
		return err
	}
	if sr&(SRProgrammingError|SRWriteProtectError) != 0 {
		return nil
	}
	if sr&SREndOfOperation != 0 {
		if err := f.bus.Store32(f.sr, SREndOfOperation); err != nil {
			return err
		}
	}

	return f.bus.Store16(addr+2, uint16(value>>16))
}

// waitIdle polls FLASH_SR until BSY clears and returns the final value.
func (f *Flash) waitIdle(addr uint32) (uint32, error) {
	for i := 0; i < f.maxPolls; i++ {
		sr, err := f.bus.Load32(f.sr)
		if err != nil {
			return 0, err
		}
		if sr&SRBusy == 0 {
			return sr, nil
		}
	}
	return 0, fmt.Errorf("store 0x%08X: low half-word still busy after %d polls: %w", addr, f.maxPolls, fpec.ErrTimeout)
}
