package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/moffa90/go-fpec/fpec"
	"github.com/moffa90/go-fpec/stm32"
)

// ErrBusFault is returned for accesses the hardware would answer with a
// bus fault, such as storing to flash without program-enable set.
var ErrBusFault = errors.New("bus fault")

const (
	erased     = 0xFFFFFFFF
	erasedHalf = 0xFFFF

	resetACR  = 0x00000030
	resetWRPR = 0xFFFFFFFF

	// Pages covered by each FLASH_WRPR bit.
	pagesPerWRPBit = 2
)

// Stats counts accesses that reached the simulated controller. Programs
// counts half-word program cycles.
type Stats struct {
	KeyWrites int
	SRReads   int
	CRWrites  int
	Erases    int
	Programs  int
	Lockouts  int
}

// FPEC simulates the STM32F3 flash interface and its flash array behind a
// 32-bit bus. It is safe for concurrent use.
type FPEC struct {
	mu sync.Mutex

	config Config
	flash  []uint32

	sr, cr, ar uint32
	keyStage   int
	lockedOut  bool

	remaining int
	complete  func()

	stats Stats
}

var _ stm32.HalfWordBus = (*FPEC)(nil)

// New returns a simulator in its reset state: locked, idle, flash erased.
//
// Example:
//
//	dev := sim.New(sim.WithEraseLatency(4), sim.WithProtectedPages(0))
//	ctrl := fpec.New(stm32.NewRegisters(dev), stm32.NewFlash(dev))
func New(opts ...Option) *FPEC {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &FPEC{
		config: cfg,
		flash:  make([]uint32, stm32.FlashSize/4),
	}
	for i := range s.flash {
		s.flash[i] = erased
	}
	s.reset()
	return s
}

// Reset models a device reset. Flash contents survive; the controller
// comes back locked with any key lockout released.
func (s *FPEC) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *FPEC) reset() {
	s.sr = 0
	s.cr = stm32.ResetCR
	s.ar = 0
	s.keyStage = 0
	s.lockedOut = false
	s.remaining = 0
	s.complete = nil
}

// Load32 implements stm32.Bus.
func (s *FPEC) Load32(addr uint32) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if addr%4 != 0 {
		return 0, fmt.Errorf("load 0x%08X: %w", addr, ErrBusFault)
	}
	if idx, ok := flashIndex(addr); ok {
		return s.flash[idx], nil
	}

	switch addr {
	case stm32.FPECBase + stm32.OffsetACR:
		return resetACR, nil
	case stm32.FPECBase + stm32.OffsetSR:
		return s.readSR(), nil
	case stm32.FPECBase + stm32.OffsetCR:
		return s.cr, nil
	case stm32.FPECBase + stm32.OffsetWRPR:
		return s.wrpr(), nil
	case stm32.FPECBase + stm32.OffsetKEYR,
		stm32.FPECBase + stm32.OffsetOPTKEYR,
		stm32.FPECBase + stm32.OffsetAR,
		stm32.FPECBase + stm32.OffsetOBR:
		return 0, nil
	}
	return 0, fmt.Errorf("load 0x%08X: %w", addr, ErrBusFault)
}

// Store32 implements stm32.Bus.
func (s *FPEC) Store32(addr uint32, value uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if addr%4 != 0 {
		return fmt.Errorf("store 0x%08X: %w", addr, ErrBusFault)
	}
	if _, ok := flashIndex(addr); ok {
		if s.cr&stm32.CRProgram == 0 {
			return fmt.Errorf("store 0x%08X without program-enable: %w", addr, ErrBusFault)
		}
		return fmt.Errorf("store 0x%08X: flash is programmed in half-words: %w", addr, ErrBusFault)
	}

	switch addr {
	case stm32.FPECBase + stm32.OffsetKEYR:
		s.writeKey(value)
	case stm32.FPECBase + stm32.OffsetSR:
		s.sr &^= value & (stm32.SRProgrammingError | stm32.SRWriteProtectError | stm32.SREndOfOperation)
	case stm32.FPECBase + stm32.OffsetCR:
		s.writeCR(value)
	case stm32.FPECBase + stm32.OffsetAR:
		s.ar = value
	case stm32.FPECBase + stm32.OffsetACR,
		stm32.FPECBase + stm32.OffsetOPTKEYR:
	default:
		return fmt.Errorf("store 0x%08X: %w", addr, ErrBusFault)
	}
	return nil
}

// readSR reports busy for the configured number of reads, then runs the
// pending completion.
func (s *FPEC) readSR() uint32 {
	s.stats.SRReads++

	if s.remaining == 0 {
		return s.sr
	}
	if s.config.StuckBusy {
		return s.sr | stm32.SRBusy
	}

	s.remaining--
	if s.remaining == 0 {
		s.finish()
	}
	return s.sr | stm32.SRBusy
}

func (s *FPEC) writeKey(value uint32) {
	s.stats.KeyWrites++

	if s.lockedOut {
		return
	}
	if s.cr&stm32.CRLock == 0 {
		s.lockout()
		return
	}

	switch {
	case s.keyStage == 0 && value == fpec.Key1:
		s.keyStage = 1
	case s.keyStage == 1 && value == fpec.Key2:
		s.keyStage = 0
		s.cr &^= stm32.CRLock
	default:
		s.lockout()
	}
}

// lockout holds the controller locked until the next Reset.
func (s *FPEC) lockout() {
	s.stats.Lockouts++
	s.lockedOut = true
	s.keyStage = 0
	s.cr |= stm32.CRLock
}

func (s *FPEC) writeCR(value uint32) {
	s.stats.CRWrites++

	if s.cr&stm32.CRLock != 0 {
		return
	}
	// LOCK only sets; STRT only sets and is cleared by hardware.
	next := value | s.cr&(stm32.CRLock|stm32.CRStart)
	if s.remaining > 0 {
		s.cr = s.cr | next&stm32.CRLock
		return
	}

	started := next&stm32.CRStart != 0 && s.cr&stm32.CRStart == 0
	s.cr = next
	if s.cr&stm32.CRLock != 0 {
		s.cr = stm32.ResetCR
		return
	}
	if started && s.cr&stm32.CRPageErase != 0 {
		s.startErase()
	}
}

func (s *FPEC) startErase() {
	s.stats.Erases++

	page, inFlash := pageOf(s.ar)
	s.begin(s.config.EraseLatency, func() {
		switch {
		case !inFlash:
			s.sr |= stm32.SRProgrammingError
		case s.config.protected[page]:
			s.sr |= stm32.SRWriteProtectError
		default:
			first := page * fpec.PageSize / 4
			for i := first; i < first+fpec.PageSize/4; i++ {
				s.flash[i] = erased
			}
			s.signalEOP()
		}
	})
}

// Store16 implements stm32.HalfWordBus. Only main flash accepts
// half-word stores, and only with program-enable set.
func (s *FPEC) Store16(addr uint32, value uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := flashIndex(addr &^ 3)
	if addr%2 != 0 || !ok {
		return fmt.Errorf("store16 0x%08X: %w", addr, ErrBusFault)
	}
	return s.storeFlash(addr, idx, value)
}

func (s *FPEC) storeFlash(addr uint32, idx int, value uint16) error {
	if s.cr&stm32.CRProgram == 0 {
		return fmt.Errorf("store 0x%08X without program-enable: %w", addr, ErrBusFault)
	}
	if s.remaining > 0 {
		return fmt.Errorf("store 0x%08X while busy: %w", addr, ErrBusFault)
	}

	s.stats.Programs++
	page, _ := pageOf(addr)
	shift := (addr & 2) * 8
	s.begin(s.config.ProgramLatency, func() {
		current := uint16(s.flash[idx] >> shift)
		switch {
		case s.config.protected[page]:
			s.sr |= stm32.SRWriteProtectError
		case current != erasedHalf && value != 0:
			s.sr |= stm32.SRProgrammingError
		default:
			s.flash[idx] &^= uint32(^value) << shift
			s.signalEOP()
		}
	})
	return nil
}

func (s *FPEC) begin(latency int, complete func()) {
	s.complete = complete
	s.remaining = latency
	if latency == 0 {
		s.finish()
	}
}

func (s *FPEC) finish() {
	s.remaining = 0
	s.cr &^= stm32.CRStart
	if s.complete != nil {
		s.complete()
		s.complete = nil
	}
}

func (s *FPEC) signalEOP() {
	if !s.config.SuppressEOP {
		s.sr |= stm32.SREndOfOperation
	}
}

// wrpr reports protection the way FLASH_WRPR does: a cleared bit protects
// a pair of pages.
func (s *FPEC) wrpr() uint32 {
	v := uint32(resetWRPR)
	for page := range s.config.protected {
		if bit := page / pagesPerWRPBit; bit < 32 {
			v &^= 1 << bit
		}
	}
	return v
}

// SetStuckBusy makes the busy flag stay set once an operation starts.
func (s *FPEC) SetStuckBusy(stuck bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.StuckBusy = stuck
}

// SetSuppressEOP makes operations complete without raising
// end-of-operation.
func (s *FPEC) SetSuppressEOP(suppress bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.SuppressEOP = suppress
}

// Locked reports whether FLASH_CR is locked.
func (s *FPEC) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cr&stm32.CRLock != 0
}

// LockedOut reports whether a wrong key sequence has locked the
// controller until the next Reset.
func (s *FPEC) LockedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockedOut
}

// Busy reports whether an operation is in progress.
func (s *FPEC) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining > 0
}

// Word returns the flash word at addr without going through the bus.
func (s *FPEC) Word(addr uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := flashIndex(addr &^ 3)
	if !ok {
		return 0
	}
	return s.flash[idx]
}

// Stats returns a snapshot of the access counters.
func (s *FPEC) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func flashIndex(addr uint32) (int, bool) {
	if addr < stm32.FlashBase || addr-stm32.FlashBase >= stm32.FlashSize {
		return 0, false
	}
	return int(addr-stm32.FlashBase) / 4, true
}

func pageOf(addr uint32) (int, bool) {
	idx, ok := flashIndex(addr &^ 3)
	if !ok {
		return 0, false
	}
	return idx * 4 / fpec.PageSize, true
}
