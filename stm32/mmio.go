//go:build tinygo

package stm32

import (
	"runtime/volatile"
	"unsafe"
)

// rawMMIO performs volatile accesses at physical addresses.
type rawMMIO struct{}

func (rawMMIO) Load32(addr uint32) (uint32, error) {
	return volatile.LoadUint32((*uint32)(unsafe.Pointer(uintptr(addr)))), nil
}

func (rawMMIO) Store32(addr uint32, value uint32) error {
	volatile.StoreUint32((*uint32)(unsafe.Pointer(uintptr(addr))), value)
	return nil
}

func (rawMMIO) Store16(addr uint32, value uint16) error {
	volatile.StoreUint16((*uint16)(unsafe.Pointer(uintptr(addr))), value)
	return nil
}

// MMIO returns the on-chip bus restricted to the flash interface registers
// and main flash. Wrap it with NewRegisters for the register file and with
// NewFlash for the flash array; never hand it to the driver as Memory
// directly, since 32-bit program stores fault.
func MMIO() *Restricted {
	return Restrict(rawMMIO{}, RegisterWindow, FlashWindow)
}
