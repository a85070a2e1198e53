package fpec

import "fmt"

// Flash layout constants.
const (
	// PageSize is the smallest erasable unit in bytes.
	PageSize = 2048

	// WordSize is the programming unit in bytes.
	WordSize = 4
)

// Geometry describes the flash array the controller manages.
type Geometry struct {
	// Base is the address of the first byte of flash
	Base uint32

	// Size is the flash size in bytes
	Size uint32

	// PageSize is the erase unit in bytes
	PageSize uint32

	// WordSize is the program unit in bytes
	WordSize uint32
}

// STM32F303xC is the 256 KiB main flash of the STM32F303xB/C parts.
var STM32F303xC = Geometry{
	Base:     0x08000000,
	Size:     256 * 1024,
	PageSize: PageSize,
	WordSize: WordSize,
}

// End returns the first address past the flash array.
func (g Geometry) End() uint32 {
	return g.Base + g.Size
}

// Pages returns the number of pages in the array.
func (g Geometry) Pages() int {
	if g.PageSize == 0 {
		return 0
	}
	return int(g.Size / g.PageSize)
}

// Contains reports whether addr lies inside the flash array.
func (g Geometry) Contains(addr uint32) bool {
	return addr >= g.Base && addr-g.Base < g.Size
}

// PageAddress returns the start address of the page with the given index.
func (g Geometry) PageAddress(index int) (uint32, error) {
	if index < 0 || index >= g.Pages() {
		return 0, fmt.Errorf("page %d is out of range: valid range is 0-%d", index, g.Pages()-1)
	}
	return g.Base + uint32(index)*g.PageSize, nil
}

// PageIndex returns the index of the page containing addr.
func (g Geometry) PageIndex(addr uint32) (int, error) {
	if !g.Contains(addr) {
		return 0, fmt.Errorf("address 0x%08X is outside flash 0x%08X-0x%08X", addr, g.Base, g.End()-1)
	}
	return int((addr - g.Base) / g.PageSize), nil
}

func (g Geometry) validate() error {
	if g.PageSize == 0 || g.WordSize == 0 {
		return fmt.Errorf("page and word size must be non-zero")
	}
	if g.PageSize%g.WordSize != 0 {
		return fmt.Errorf("page size %d is not a multiple of word size %d", g.PageSize, g.WordSize)
	}
	if g.Size == 0 || g.Size%g.PageSize != 0 {
		return fmt.Errorf("flash size %d is not a whole number of %d-byte pages", g.Size, g.PageSize)
	}
	if g.Base%g.PageSize != 0 {
		return fmt.Errorf("flash base 0x%08X is not page aligned", g.Base)
	}
	if uint64(g.Base)+uint64(g.Size) > 1<<32 {
		return fmt.Errorf("flash 0x%08X+%d overflows the address space", g.Base, g.Size)
	}
	return nil
}

// Region is an address range the controller refuses to erase or program,
// typically the pages holding the running firmware.
type Region struct {
	Start uint32
	Size  uint32
}

func (r Region) overlaps(start, end uint64) bool {
	return start < uint64(r.Start)+uint64(r.Size) && uint64(r.Start) < end
}
