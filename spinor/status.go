package spinor

import (
	"fmt"
	"strings"
)

// StatusRegister represents the status register of the flash chip.
//
//	Bits| [N25Q32|Table 9]                     | [W25Q128|7.1 Status Registers]
//	----+--------------------------------------+-------------------------------
//	7   | Status register write enable/disable | SRP: Status Register Protect
//	6   | Reserved                             | SEC: Sector protect
//	5   | Top/bottom                           | TB: Top/Bottom protect
//	4:2 | Block protect 2-0                    | BP2-0: Block Protect bit 2-0
//	1   | Write enable latch                   | WEL: Write Enable Latch
//	0   | Write in progress                    | BUSY: Erase/Write in progress
//
// The block-protection field starts at bit 2 and is bpBits wide; chips with
// four BP bits (e.g. SST25VF016B) extend it into bit 5.
type StatusRegister byte

const bpShift = 2

func (sr StatusRegister) StatusRegisterProtect() bool { return sr&(1<<7) != 0 }
func (sr StatusRegister) WriteEnabled() bool          { return sr&(1<<1) != 0 }
func (sr StatusRegister) Busy() bool                  { return sr&(1<<0) != 0 }

// BP extracts the block-protection level from a field of bits bits.
func (sr StatusRegister) BP(bits int) int {
	return int(sr>>bpShift) & (1<<bits - 1)
}

// WithBP returns the register with the block-protection field replaced.
func (sr StatusRegister) WithBP(bits, level int) StatusRegister {
	mask := StatusRegister(1<<bits-1) << bpShift
	return sr&^mask | StatusRegister(level)<<bpShift&mask
}

func (sr StatusRegister) String() string {
	b := fmt.Sprintf("%08b", byte(sr))
	s := []string{}
	if sr.StatusRegisterProtect() {
		s = append(s, "SRP")
	}
	if bp := sr.BP(4); bp != 0 {
		s = append(s, fmt.Sprintf("BP=%d", bp))
	}
	if sr.WriteEnabled() {
		s = append(s, "WEL")
	}
	if sr.Busy() {
		s = append(s, "BUSY")
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}
