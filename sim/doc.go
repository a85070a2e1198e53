// Package sim provides a software model of the STM32F3 flash interface.
//
// FPEC answers 32-bit loads and stores on the flash interface register
// block and on main flash, which makes it a drop-in stm32.Bus for tests,
// the fpecctl tool and the bridge server. It models the lock latch and
// key sequence, the busy flag, the latched status flags and the
// one-way nature of flash bits.
//
// Operation latency is counted in status register reads rather than wall
// time, so tests are deterministic.
package sim
