// Package stm32 maps the flash driver's register fields onto the STM32F3
// flash interface (FLASH_KEYR, FLASH_SR, FLASH_CR, FLASH_AR).
//
// Registers works over any Bus: the on-chip MMIO bus when built with
// TinyGo, the simulator in package sim, or a bridge.Client talking to a
// target over a serial link.
//
//	bus := stm32.MMIO()
//	ctrl := fpec.New(stm32.NewRegisters(bus), stm32.NewFlash(bus))
//
// Main flash is programmed in half-words; Flash splits each word store
// into two.
package stm32
