package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/moffa90/go-fpec/fpec"
	"github.com/moffa90/go-fpec/stm32"
)

const testPage = stm32.FlashBase + 6*fpec.PageSize

func newController(dev *FPEC, opts ...fpec.Option) *fpec.Controller {
	opts = append([]fpec.Option{fpec.WithPollLimit(64)}, opts...)
	return fpec.New(stm32.NewRegisters(dev), stm32.NewFlash(dev), opts...)
}

func TestResetState(t *testing.T) {
	dev := New()

	if !dev.Locked() {
		t.Error("simulator should start locked")
	}
	if dev.Busy() {
		t.Error("simulator should start idle")
	}
	if got := dev.Word(stm32.FlashBase); got != 0xFFFFFFFF {
		t.Errorf("flash word = 0x%08X, want erased", got)
	}
}

func TestKeySequence(t *testing.T) {
	tests := []struct {
		name          string
		keys          []uint32
		wantLocked    bool
		wantLockedOut bool
	}{
		{"correct keys", []uint32{fpec.Key1, fpec.Key2}, false, false},
		{"only first key", []uint32{fpec.Key1}, true, false},
		{"wrong first key", []uint32{fpec.Key2, fpec.Key1}, true, true},
		{"wrong second key", []uint32{fpec.Key1, 0x12345678}, true, true},
		{"retry after wrong key", []uint32{fpec.Key1, 0, fpec.Key1, fpec.Key2}, true, true},
		{"keys while unlocked", []uint32{fpec.Key1, fpec.Key2, fpec.Key1}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := New()
			for _, k := range tt.keys {
				if err := dev.Store32(stm32.FPECBase+stm32.OffsetKEYR, k); err != nil {
					t.Fatalf("Store32() error = %v", err)
				}
			}
			if got := dev.Locked(); got != tt.wantLocked {
				t.Errorf("Locked() = %v, want %v", got, tt.wantLocked)
			}
			if got := dev.LockedOut(); got != tt.wantLockedOut {
				t.Errorf("LockedOut() = %v, want %v", got, tt.wantLockedOut)
			}
		})
	}
}

func unlock(dev *FPEC) {
	dev.Store32(stm32.FPECBase+stm32.OffsetKEYR, fpec.Key1)
	dev.Store32(stm32.FPECBase+stm32.OffsetKEYR, fpec.Key2)
}

func TestResetReleasesLockout(t *testing.T) {
	dev := New()
	dev.Store32(stm32.FPECBase+stm32.OffsetKEYR, 0)
	if !dev.LockedOut() {
		t.Fatal("expected lockout")
	}

	dev.Reset()

	dev.Store32(stm32.FPECBase+stm32.OffsetKEYR, fpec.Key1)
	dev.Store32(stm32.FPECBase+stm32.OffsetKEYR, fpec.Key2)
	if dev.Locked() {
		t.Error("key sequence after reset should unlock")
	}
}

func TestControlRegisterIgnoredWhileLocked(t *testing.T) {
	dev := New()

	if err := dev.Store32(stm32.FPECBase+stm32.OffsetCR, stm32.CRPageErase|stm32.CRStart); err != nil {
		t.Fatalf("Store32() error = %v", err)
	}
	cr, _ := dev.Load32(stm32.FPECBase + stm32.OffsetCR)
	if cr != stm32.ResetCR {
		t.Errorf("CR = 0x%X, want 0x%X", cr, stm32.ResetCR)
	}
	if dev.Busy() {
		t.Error("locked controller started an operation")
	}
}

func TestSettingLockRelocks(t *testing.T) {
	dev := New()
	regs := stm32.NewRegisters(dev)
	dev.Store32(stm32.FPECBase+stm32.OffsetKEYR, fpec.Key1)
	dev.Store32(stm32.FPECBase+stm32.OffsetKEYR, fpec.Key2)

	if err := regs.Lock(); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if !dev.Locked() {
		t.Error("setting LOCK should relock the controller")
	}
	if dev.LockedOut() {
		t.Error("relocking should not lock out the key sequence")
	}
}

func TestFlashStoreWithoutProgramEnable(t *testing.T) {
	dev := New()

	err := dev.Store32(stm32.FlashBase, 0)
	if !errors.Is(err, ErrBusFault) {
		t.Errorf("Store32() error = %v, want ErrBusFault", err)
	}
	if got := dev.Word(stm32.FlashBase); got != 0xFFFFFFFF {
		t.Errorf("flash word changed to 0x%08X", got)
	}
}

func TestWordStoreToFlashFaults(t *testing.T) {
	dev := New()
	unlock(dev)
	if err := dev.Store32(stm32.FPECBase+stm32.OffsetCR, stm32.CRProgram); err != nil {
		t.Fatalf("Store32(CR) error = %v", err)
	}

	err := dev.Store32(testPage, 0x12345678)
	if !errors.Is(err, ErrBusFault) {
		t.Errorf("Store32() with PG set error = %v, want ErrBusFault", err)
	}
	if dev.Busy() || dev.Word(testPage) != 0xFFFFFFFF {
		t.Error("32-bit store started a program cycle")
	}
}

func TestHalfWordProgramming(t *testing.T) {
	dev := New(WithProgramLatency(0))
	unlock(dev)
	dev.Store32(stm32.FPECBase+stm32.OffsetCR, stm32.CRProgram)

	if err := dev.Store16(testPage+2, 0xBEEF); err != nil {
		t.Fatalf("Store16() error = %v", err)
	}
	if got := dev.Word(testPage); got != 0xBEEFFFFF {
		t.Errorf("word = 0x%08X, want 0xBEEFFFFF", got)
	}

	// The low half is still erased and can be programmed.
	if err := dev.Store16(testPage, 0x1234); err != nil {
		t.Fatalf("Store16() error = %v", err)
	}
	if got := dev.Word(testPage); got != 0xBEEF1234 {
		t.Errorf("word = 0x%08X, want 0xBEEF1234", got)
	}

	sr, _ := dev.Load32(stm32.FPECBase + stm32.OffsetSR)
	if sr&stm32.SRProgrammingError != 0 {
		t.Errorf("SR = 0x%X, unexpected programming error", sr)
	}

	if err := dev.Store16(testPage+1, 0); !errors.Is(err, ErrBusFault) {
		t.Errorf("unaligned Store16() error = %v, want ErrBusFault", err)
	}
	if err := dev.Store16(stm32.FPECBase+stm32.OffsetCR, 0); !errors.Is(err, ErrBusFault) {
		t.Errorf("Store16() to a register error = %v, want ErrBusFault", err)
	}
}

func TestProgramWordUsesTwoHalfWordCycles(t *testing.T) {
	dev := New()
	ctrl := newController(dev)

	if err := ctrl.ProgramWord(context.Background(), testPage+12, 0x89ABCDEF); err != nil {
		t.Fatalf("ProgramWord() error = %v", err)
	}
	if got := dev.Word(testPage + 12); got != 0x89ABCDEF {
		t.Errorf("word = 0x%08X, want 0x89ABCDEF", got)
	}
	if got := dev.Stats().Programs; got != 2 {
		t.Errorf("Programs = %d, want 2", got)
	}
}

func TestUnmappedAccess(t *testing.T) {
	dev := New()

	if _, err := dev.Load32(0x20000000); !errors.Is(err, ErrBusFault) {
		t.Errorf("Load32() error = %v, want ErrBusFault", err)
	}
	if err := dev.Store32(stm32.FlashBase+2, 0); !errors.Is(err, ErrBusFault) {
		t.Errorf("Store32() error = %v, want ErrBusFault", err)
	}
}

func TestWriteProtectionRegister(t *testing.T) {
	dev := New(WithProtectedPages(0, 1, 6))

	wrpr, err := dev.Load32(stm32.FPECBase + stm32.OffsetWRPR)
	if err != nil {
		t.Fatalf("Load32() error = %v", err)
	}
	if want := uint32(0xFFFFFFFF &^ (1<<0 | 1<<3)); wrpr != want {
		t.Errorf("WRPR = 0x%08X, want 0x%08X", wrpr, want)
	}
}

func TestEraseAndProgram(t *testing.T) {
	dev := New()
	ctrl := newController(dev)
	ctx := context.Background()

	if err := ctrl.ProgramWord(ctx, testPage+8, 0xCAFEF00D); err != nil {
		t.Fatalf("ProgramWord() error = %v", err)
	}
	if got := dev.Word(testPage + 8); got != 0xCAFEF00D {
		t.Errorf("word = 0x%08X, want 0xCAFEF00D", got)
	}

	// Reprogramming a written word is refused by the hardware.
	err := ctrl.ProgramWord(ctx, testPage+8, 0x12345678)
	if fpec.OutcomeOf(err) != fpec.ProgramFailed {
		t.Fatalf("ProgramWord() outcome = %v, want ProgramFailed (err %v)", fpec.OutcomeOf(err), err)
	}
	var opErr *fpec.OperationError
	if !errors.As(err, &opErr) || !opErr.ProgrammingError {
		t.Errorf("error = %v, want programming error detail", err)
	}
	if got := dev.Word(testPage + 8); got != 0xCAFEF00D {
		t.Errorf("word = 0x%08X after refused program, want 0xCAFEF00D", got)
	}

	if err := ctrl.ErasePage(ctx, testPage); err != nil {
		t.Fatalf("ErasePage() error = %v", err)
	}
	for addr := uint32(testPage); addr < testPage+fpec.PageSize; addr += 4 {
		if got := dev.Word(addr); got != 0xFFFFFFFF {
			t.Fatalf("word 0x%08X = 0x%08X after erase", addr, got)
		}
	}

	if err := ctrl.ProgramWord(ctx, testPage+8, 0x12345678); err != nil {
		t.Errorf("ProgramWord() after erase error = %v", err)
	}

	cr, _ := dev.Load32(stm32.FPECBase + stm32.OffsetCR)
	if cr&(stm32.CRPageErase|stm32.CRProgram|stm32.CRStart) != 0 {
		t.Errorf("CR = 0x%X, operation bits left set", cr)
	}
}

func TestEraseLeavesNeighboursIntact(t *testing.T) {
	dev := New()
	ctrl := newController(dev)
	ctx := context.Background()

	neighbour := uint32(testPage + fpec.PageSize)
	if err := ctrl.ProgramWord(ctx, neighbour, 0); err != nil {
		t.Fatalf("ProgramWord() error = %v", err)
	}
	if err := ctrl.ErasePage(ctx, testPage); err != nil {
		t.Fatalf("ErasePage() error = %v", err)
	}
	if got := dev.Word(neighbour); got != 0 {
		t.Errorf("neighbouring page word = 0x%08X, want 0", got)
	}
}

func TestEraseIdempotent(t *testing.T) {
	dev := New()
	ctrl := newController(dev)

	for i := 0; i < 3; i++ {
		if err := ctrl.ErasePage(context.Background(), testPage); err != nil {
			t.Fatalf("ErasePage() #%d error = %v", i+1, err)
		}
	}
	if got := dev.Stats().KeyWrites; got != 2 {
		t.Errorf("KeyWrites = %d, want 2 (controller stays unlocked)", got)
	}
}

func TestProgramZeroOverWrittenWord(t *testing.T) {
	dev := New()
	ctrl := newController(dev)
	ctx := context.Background()

	if err := ctrl.ProgramWord(ctx, testPage, 0x0000FFFF); err != nil {
		t.Fatalf("ProgramWord() error = %v", err)
	}
	if err := ctrl.ProgramWord(ctx, testPage, 0); err != nil {
		t.Fatalf("ProgramWord(0) over written word error = %v", err)
	}
	if got := dev.Word(testPage); got != 0 {
		t.Errorf("word = 0x%08X, want 0", got)
	}
}

func TestWriteProtectedPage(t *testing.T) {
	dev := New(WithProtectedPages(6))
	ctrl := newController(dev)
	ctx := context.Background()

	err := ctrl.ErasePage(ctx, testPage)
	if fpec.OutcomeOf(err) != fpec.EraseFailed || !fpec.IsWriteProtected(err) {
		t.Errorf("ErasePage() error = %v, want write-protected erase failure", err)
	}

	err = ctrl.ProgramWord(ctx, testPage+4, 0)
	if fpec.OutcomeOf(err) != fpec.ProgramFailed || !fpec.IsWriteProtected(err) {
		t.Errorf("ProgramWord() error = %v, want write-protected program failure", err)
	}

	sr, _ := dev.Load32(stm32.FPECBase + stm32.OffsetSR)
	if sr != 0 {
		t.Errorf("SR = 0x%X, want flags cleared", sr)
	}
}

func TestLockedOutController(t *testing.T) {
	dev := New()
	dev.Store32(stm32.FPECBase+stm32.OffsetKEYR, 0xBADC0DE)
	ctrl := newController(dev)

	err := ctrl.ErasePage(context.Background(), testPage)
	if fpec.OutcomeOf(err) != fpec.UnlockFailed {
		t.Fatalf("ErasePage() outcome = %v, want UnlockFailed", fpec.OutcomeOf(err))
	}
	if got := dev.Stats().Erases; got != 0 {
		t.Errorf("Erases = %d, want 0", got)
	}

	dev.Reset()
	if err := ctrl.ErasePage(context.Background(), testPage); err != nil {
		t.Errorf("ErasePage() after reset error = %v", err)
	}
}

func TestStuckBusy(t *testing.T) {
	dev := New(WithStuckBusy())
	ctrl := newController(dev)
	ctx := context.Background()

	err := ctrl.ErasePage(ctx, testPage)
	if fpec.OutcomeOf(err) != fpec.Timeout {
		t.Fatalf("ErasePage() outcome = %v, want Timeout", fpec.OutcomeOf(err))
	}

	// The cycle never finished, so the next call sees busy.
	err = ctrl.ProgramWord(ctx, testPage, 0)
	if fpec.OutcomeOf(err) != fpec.Busy {
		t.Errorf("ProgramWord() outcome = %v, want Busy", fpec.OutcomeOf(err))
	}

	dev.SetStuckBusy(false)
	dev.Reset()
	if err := ctrl.ProgramWord(ctx, testPage, 0); err != nil {
		t.Errorf("ProgramWord() after reset error = %v", err)
	}
}

func TestSuppressedEOP(t *testing.T) {
	dev := New()
	dev.SetSuppressEOP(true)
	ctrl := newController(dev)

	err := ctrl.ErasePage(context.Background(), testPage)
	if fpec.OutcomeOf(err) != fpec.EraseFailed {
		t.Errorf("ErasePage() outcome = %v, want EraseFailed", fpec.OutcomeOf(err))
	}
	if fpec.IsWriteProtected(err) {
		t.Error("missing EOP should not be reported as write protection")
	}
}

func TestLatency(t *testing.T) {
	dev := New(WithEraseLatency(5), WithProgramLatency(0))
	ctx := context.Background()

	var polls []int
	ctrl := newController(dev, fpec.WithEventCallback(func(e fpec.Event) {
		if e.Phase == fpec.PhaseComplete {
			polls = append(polls, e.Polls)
		}
	}))

	if err := ctrl.ErasePage(ctx, testPage); err != nil {
		t.Fatalf("ErasePage() error = %v", err)
	}
	if err := ctrl.ProgramWord(ctx, testPage, 1); err != nil {
		t.Fatalf("ProgramWord() error = %v", err)
	}

	if len(polls) != 2 || polls[0] != 6 || polls[1] != 1 {
		t.Errorf("polls = %v, want [6 1]", polls)
	}
}

func BenchmarkProgramWord(b *testing.B) {
	dev := New(WithProgramLatency(1))
	ctrl := newController(dev)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		addr := uint32(stm32.FlashBase + (i%(stm32.FlashSize/4))*4)
		if addr%fpec.PageSize == 0 {
			ctrl.ErasePage(ctx, addr)
		}
		ctrl.ProgramWord(ctx, addr, uint32(i))
	}
}
