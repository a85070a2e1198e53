package stm32

// Memory map of the STM32F303xB/C flash interface (RM0316 section 4).
const (
	// FlashBase is the start of main flash memory
	FlashBase = 0x08000000

	// FlashSize is the main flash size of the xC parts (256 KiB)
	FlashSize = 256 * 1024

	// FPECBase is the base address of the flash interface registers
	FPECBase = 0x40022000
)

// Register offsets from FPECBase.
const (
	// OffsetACR is the access control register
	OffsetACR = 0x00

	// OffsetKEYR is the key register (write-only)
	OffsetKEYR = 0x04

	// OffsetOPTKEYR is the option byte key register (write-only)
	OffsetOPTKEYR = 0x08

	// OffsetSR is the status register
	OffsetSR = 0x0C

	// OffsetCR is the control register
	OffsetCR = 0x10

	// OffsetAR is the address register (write-only)
	OffsetAR = 0x14

	// OffsetOBR is the option byte register (read-only)
	OffsetOBR = 0x1C

	// OffsetWRPR is the write protection register (read-only)
	OffsetWRPR = 0x20

	// registerBlockSize spans ACR through WRPR
	registerBlockSize = 0x24
)

// Status register (FLASH_SR) bits.
const (
	// SRBusy is set while a flash operation is in progress
	SRBusy = 1 << 0

	// SRProgrammingError is set when programming a location that was not erased (write 1 to clear)
	SRProgrammingError = 1 << 2

	// SRWriteProtectError is set when erasing or programming a protected page (write 1 to clear)
	SRWriteProtectError = 1 << 4

	// SREndOfOperation is set when an operation completes successfully (write 1 to clear)
	SREndOfOperation = 1 << 5

	// srClearMask covers every write-one-to-clear bit
	srClearMask = SRProgrammingError | SRWriteProtectError | SREndOfOperation
)

// Control register (FLASH_CR) bits.
const (
	// CRProgram selects flash programming
	CRProgram = 1 << 0

	// CRPageErase selects page erase
	CRPageErase = 1 << 1

	// CRMassErase selects mass erase
	CRMassErase = 1 << 2

	// CROptionProgram selects option byte programming
	CROptionProgram = 1 << 4

	// CROptionErase selects option byte erase
	CROptionErase = 1 << 5

	// CRStart triggers an erase operation
	CRStart = 1 << 6

	// CRLock is set while FLASH_CR is locked; software can only set it
	CRLock = 1 << 7

	// CROptionWriteEnable allows option byte programming
	CROptionWriteEnable = 1 << 9

	// CRErrorInterrupt enables the error interrupt
	CRErrorInterrupt = 1 << 10

	// CREndOfOperationInterrupt enables the end-of-operation interrupt
	CREndOfOperationInterrupt = 1 << 12
)

// ResetCR is the FLASH_CR value after reset.
const ResetCR = CRLock
