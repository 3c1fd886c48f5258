package mcuflash

// Bus is the driver's window onto the flash controller block and the
// memory-mapped flash array. Register and memory accesses cannot fail at
// this level; programming faults surface in the controller's status
// register instead.
//
// On target hardware an implementation maps straight to MMIO; tests supply
// a register-file model.
type Bus interface {
	// Reg reads a 32-bit controller register at a block-relative offset.
	Reg(off uint32) uint32

	// SetReg writes a 32-bit controller register.
	SetReg(off uint32, v uint32)

	// ReadMem copies len(buf) bytes from the flash array at a bus address.
	ReadMem(addr uint32, buf []byte)

	// ProgramMem performs one program-bus write of len(data) bytes (1, 2,
	// 4 or 8, per the active program width). Only effective while the
	// controller has a program mode bit set.
	ProgramMem(addr uint32, data []byte)
}
