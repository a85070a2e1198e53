package stm32

import "fmt"

// Bus performs 32-bit loads and stores at absolute addresses.
type Bus interface {
	Load32(addr uint32) (uint32, error)
	Store32(addr uint32, value uint32) error
}

// Window is an address range a restricted bus may touch.
type Window struct {
	Base uint32
	Size uint32
}

// Address windows of the flash interface.
var (
	RegisterWindow = Window{Base: FPECBase, Size: registerBlockSize}
	FlashWindow    = Window{Base: FlashBase, Size: FlashSize}
)

func (w Window) contains(addr, width uint32) bool {
	return w.Size >= width && addr >= w.Base && addr-w.Base <= w.Size-width
}

// AccessError reports a bus access that was refused before reaching the bus.
type AccessError struct {
	Op     string
	Addr   uint32
	Reason string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s 0x%08X refused: %s", e.Op, e.Addr, e.Reason)
}

// Restricted is a Bus that only forwards aligned accesses falling inside its
// windows. It is the only sanctioned way to reach raw memory.
type Restricted struct {
	bus     Bus
	windows []Window
}

// Restrict limits bus to the given windows.
//
// Example:
//
//	bus := stm32.Restrict(raw, stm32.RegisterWindow, stm32.FlashWindow)
func Restrict(bus Bus, windows ...Window) *Restricted {
	if bus == nil {
		panic("bus cannot be nil")
	}
	return &Restricted{bus: bus, windows: windows}
}

// Load32 implements Bus.
func (r *Restricted) Load32(addr uint32) (uint32, error) {
	if err := r.check("load", addr); err != nil {
		return 0, err
	}
	return r.bus.Load32(addr)
}

// Store32 implements Bus.
func (r *Restricted) Store32(addr uint32, value uint32) error {
	if err := r.check("store", addr); err != nil {
		return err
	}
	return r.bus.Store32(addr, value)
}

// Store16 implements HalfWordBus. It fails if the underlying bus has no
// half-word store.
func (r *Restricted) Store16(addr uint32, value uint16) error {
	if err := r.checkWidth("store", addr, 2); err != nil {
		return err
	}
	hw, ok := r.bus.(HalfWordBus)
	if !ok {
		return &AccessError{Op: "store", Addr: addr, Reason: "half-word stores not supported"}
	}
	return hw.Store16(addr, value)
}

func (r *Restricted) check(op string, addr uint32) error {
	return r.checkWidth(op, addr, 4)
}

func (r *Restricted) checkWidth(op string, addr, width uint32) error {
	if addr%width != 0 {
		return &AccessError{Op: op, Addr: addr, Reason: fmt.Sprintf("not %d-byte aligned", width)}
	}
	for _, w := range r.windows {
		if w.contains(addr, width) {
			return nil
		}
	}
	return &AccessError{Op: op, Addr: addr, Reason: "outside permitted windows"}
}
