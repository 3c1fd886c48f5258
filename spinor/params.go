package spinor

import "time"

var (
	flashIDMicronN25Q32   = [3]byte{0x20, 0xBA, 0x16}
	flashIDWinbondW25Q128 = [3]byte{0xEF, 0x70, 0x18}
	flashIDSSTSST25VF016B = [3]byte{0xBF, 0x25, 0x41}
)

type chipParams struct {
	name string
	cfg  Config
}

var knownChips = map[[3]byte]chipParams{
	flashIDMicronN25Q32: {
		name: "Micron N25Q 32Mb",
		// [N25Q32|Table 38: AC Characteristics and Operating Conditions]
		cfg: Config{
			SectorSize:     4096,
			SectorCount:    1024,
			PageSize:       256,
			PageAlign:      256,
			AddrBytes:      3,
			CmdRead:        OpRead,
			CmdProgram:     OpPageProgram,
			CmdSectorErase: OpErase4KB,
			CmdMassErase:   OpEraseChip,
			BPBits:         3,
		},
	},

	flashIDWinbondW25Q128: {
		name: "Winbond W25Q 128Mb",
		// [W25Q128|9.6 AC Electrical Characteristics]
		cfg: Config{
			SectorSize:     4096,
			SectorCount:    4096,
			PageSize:       256,
			PageAlign:      256,
			AddrBytes:      3,
			CmdRead:        OpRead,
			CmdProgram:     OpPageProgram,
			CmdSectorErase: OpErase4KB,
			CmdMassErase:   OpEraseChip,
			BPBits:         3,
			// tRES1: /CS High to Standby Mode without ID Read
			PowerUpTime: 3 * time.Microsecond,
			// tDP: /CS High to Power-down Mode
			PowerDownTime: 3 * time.Microsecond,
		},
	},

	flashIDSSTSST25VF016B: {
		name: "SST SST25VF016B 16Mb",
		// [SST25VF016B|Table 5]: no page program; AAI programs word pairs.
		cfg: Config{
			SectorSize:     4096,
			SectorCount:    512,
			PageSize:       2,
			PageAlign:      2,
			AddrBytes:      3,
			CmdRead:        OpRead,
			CmdProgram:     OpAAIProgram,
			CmdSectorErase: OpErase4KB,
			CmdMassErase:   OpEraseChip,
			BPBits:         4,
		},
	},
}

// Detect returns a ready-made configuration for a known JEDEC ID. The
// returned Config still wants Wait and Lock filled in by the caller when
// the defaults do not suit.
func Detect(id [3]byte) (name string, cfg Config, ok bool) {
	p, ok := knownChips[id]
	if !ok {
		return "", Config{}, false
	}
	return p.name, p.cfg, true
}
