package spinor

import (
	"errors"
	"fmt"
	"time"

	"github.com/gentam/nvm"
)

// Flash commands:
//   - [N25Q32|Table 16: Command Set]
//   - [W25Q128|8.1.2 Instruction Set Table 1]
//   - [SST25VF016B|Table 5: Device Operation Instructions]
const (
	OpPowerUp      = 0xAB // Release Power Down
	OpPowerDown    = 0xB9
	OpReadID       = 0x9F
	OpRead         = 0x03
	OpFastRead     = 0x0B // requires one dummy byte after the address
	OpWriteEnable  = 0x06
	OpWriteDisable = 0x04
	OpPageProgram  = 0x02
	OpAAIProgram   = 0xAD // SST auto address increment word program
	OpErase4KB     = 0x20 // Subsector Erase / Sector Erase (4KB)
	OpErase64KB    = 0xD8 // Sector Erase / Block Erase (64KB)
	OpEraseChip    = 0xC7 // Bulk Erase / Chip Erase
	OpReadStatus   = 0x05
	OpWriteStatus  = 0x01

	// Leading RDID bytes equal to this value are manufacturer continuation
	// codes, not part of the identification.
	idContinuation = 0x7F
)

// Config describes one SPI NOR chip: its geometry and the opcode subset it
// speaks. It is immutable after Start.
type Config struct {
	SectorSize  int64 // erase granularity in bytes
	SectorCount int64
	PageSize    int64 // bytes clocked out per program command
	PageAlign   int64 // program address alignment, power of two
	AddrBytes   int   // address bytes per command, 1 to 4, big-endian

	CmdRead        byte // OpRead, or OpFastRead with its dummy byte
	CmdProgram     byte // OpPageProgram, or OpAAIProgram (see below)
	CmdSectorErase byte // zero when the chip has no erase command;
	// erase is then emulated by programming 0xFF
	CmdMassErase byte // defaults to OpEraseChip when CmdSectorErase is set

	// BPBits is the number of block-protection bits in the status register.
	// Zero disables the write-protection operations (they no-op).
	BPBits int

	// PowerUpTime and PowerDownTime are the post-command settle times for
	// PowerUp and PowerDown (tRES1 and tDP in the datasheets).
	PowerUpTime   time.Duration
	PowerDownTime time.Duration

	Wait nvm.WaitPolicy // busy-poll policy; zero value means nvm.DefaultWait
	Lock nvm.Lock       // bus arbitration; nil means nvm.NopLock
}

func (c *Config) validate() error {
	if c.SectorSize <= 0 || c.SectorCount <= 0 {
		return errors.New("spinor: sector geometry must be positive")
	}
	if c.PageSize <= 0 || c.PageAlign <= 0 || c.PageAlign&(c.PageAlign-1) != 0 {
		return errors.New("spinor: page size must be positive and page alignment a power of two")
	}
	if c.PageSize%c.PageAlign != 0 {
		return errors.New("spinor: page size must be a multiple of page alignment")
	}
	if c.AddrBytes < 1 || c.AddrBytes > 4 {
		return fmt.Errorf("spinor: address width %d out of range", c.AddrBytes)
	}
	if c.CmdRead == 0 || c.CmdProgram == 0 {
		return errors.New("spinor: read and program commands are mandatory")
	}
	if c.BPBits < 0 || c.BPBits > 4 {
		return fmt.Errorf("spinor: %d block protection bits unsupported", c.BPBits)
	}
	if c.CmdSectorErase != 0 && c.CmdMassErase == 0 {
		c.CmdMassErase = OpEraseChip
	}
	c.Wait = c.Wait.OrDefault()
	if c.Lock == nil {
		c.Lock = nvm.NopLock{}
	}
	return nil
}

// capacity returns the addressable size in bytes.
func (c *Config) capacity() int64 {
	return c.SectorSize * c.SectorCount
}
