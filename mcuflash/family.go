package mcuflash

import "fmt"

// Family describes one on-chip flash variant: array geometry, the program
// width policy, write-protection granularity and where the option byte
// record lives. The register block layout (regs.go) is shared by every
// supported family; only these parameters differ.
type Family struct {
	Name string
	ID   [3]byte // reported identification; on-chip flash has no JEDEC ID
	Base uint32  // bus address of the flash array

	// Uniform geometry, used when Sectors is nil.
	SectorSize  int64
	SectorCount int64

	// Sectors lists non-uniform sector sizes in address order and
	// overrides the uniform geometry.
	Sectors []int64

	Width WidthPolicy

	// Each write-protection mask bit covers SectorsPerWRPBit sectors; the
	// highest bit covers whatever remains above it. WRPBits zero disables
	// the protection operations.
	SectorsPerWRPBit int
	WRPBits          int

	OptionBase uint32 // bus address of the option byte record
}

// WidthPolicy selects the program unit size. Halfword-only families fix
// it; variable-width families pick the widest unit the supply voltage can
// drive.
type WidthPolicy struct {
	Fixed     int // program unit in bytes when > 0
	ByVoltage []WidthStep
}

// WidthStep maps a minimum supply voltage to a program unit size. Steps
// are ordered widest first.
type WidthStep struct {
	MinMV int
	Bytes int
}

func (w WidthPolicy) unit(supplyMV int) (int, error) {
	if w.Fixed > 0 {
		return w.Fixed, nil
	}
	for _, s := range w.ByVoltage {
		if supplyMV >= s.MinMV {
			return s.Bytes, nil
		}
	}
	return 0, fmt.Errorf("mcuflash: no program width available at %d mV", supplyMV)
}

// SectorInfo locates the sector owning an address. Derived on demand,
// never persisted.
type SectorInfo struct {
	Index      int
	Origin     int64
	Size       int64
	ProtectBit int
}

func (f *Family) capacity() int64 {
	if len(f.Sectors) > 0 {
		var sum int64
		for _, s := range f.Sectors {
			sum += s
		}
		return sum
	}
	return f.SectorSize * f.SectorCount
}

// sectorAt computes the owning sector for uniform layouts and walks the
// table for non-uniform ones.
func (f *Family) sectorAt(addr int64) (SectorInfo, error) {
	if addr < 0 || addr >= f.capacity() {
		return SectorInfo{}, fmt.Errorf("mcuflash: address %#x outside the array", addr)
	}
	if len(f.Sectors) == 0 {
		idx := int(addr / f.SectorSize)
		return SectorInfo{
			Index:      idx,
			Origin:     int64(idx) * f.SectorSize,
			Size:       f.SectorSize,
			ProtectBit: f.protectBit(idx),
		}, nil
	}
	var origin int64
	for idx, size := range f.Sectors {
		if addr < origin+size {
			return SectorInfo{
				Index:      idx,
				Origin:     origin,
				Size:       size,
				ProtectBit: f.protectBit(idx),
			}, nil
		}
		origin += size
	}
	return SectorInfo{}, fmt.Errorf("mcuflash: address %#x outside the array", addr)
}

// protectBit maps a sector index to its option mask bit; the last bit
// covers every sector past the evenly divided range.
func (f *Family) protectBit(idx int) int {
	if f.WRPBits == 0 || f.SectorsPerWRPBit == 0 {
		return 0
	}
	return min(idx/f.SectorsPerWRPBit, f.WRPBits-1)
}

// infoGeometry flattens the layout for DeviceInfo. Non-uniform families
// report their smallest sector so partition arithmetic stays exact; an
// erase at that granularity still wipes the whole owning sector.
func (f *Family) infoGeometry() (sectorSize, sectorCount int64) {
	if len(f.Sectors) == 0 {
		return f.SectorSize, f.SectorCount
	}
	smallest := f.Sectors[0]
	for _, s := range f.Sectors[1:] {
		smallest = min(smallest, s)
	}
	return smallest, f.capacity() / smallest
}

// FamilyHalfword is the fixed-halfword register family: a uniform array
// programmed sixteen bits at a time, [PM0075].
func FamilyHalfword() *Family {
	return &Family{
		Name:             "halfword",
		ID:               [3]byte{0x04, 0x10, 0x00},
		Base:             0x08000000,
		SectorSize:       1024,
		SectorCount:      128,
		Width:            WidthPolicy{Fixed: 2},
		SectorsPerWRPBit: 4,
		WRPBits:          32,
		OptionBase:       0x1FFFF800,
	}
}

// FamilyVariable is the voltage-graded register family: non-uniform
// sectors and a program width chosen by the supply voltage, [RM0090].
func FamilyVariable() *Family {
	return &Family{
		Name: "variable",
		ID:   [3]byte{0x04, 0x13, 0x00},
		Base: 0x08000000,
		Sectors: []int64{
			16 << 10, 16 << 10, 16 << 10, 16 << 10,
			64 << 10,
			128 << 10, 128 << 10, 128 << 10, 128 << 10, 128 << 10, 128 << 10, 128 << 10,
		},
		Width: WidthPolicy{ByVoltage: []WidthStep{
			{MinMV: 2700, Bytes: 4},
			{MinMV: 2100, Bytes: 2},
			{MinMV: 1700, Bytes: 1},
		}},
		SectorsPerWRPBit: 1,
		WRPBits:          12,
		OptionBase:       0x1FFFC000,
	}
}
