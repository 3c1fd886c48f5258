package mcuflash

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gentam/nvm"
)

// busSim is a register-file model of the flash controller: the KEYR and
// OPTKEYR unlock state machines (with lock-out on a wrong sequence), mode
// bits gating program-bus writes, NOR programming, erase triggered by the
// start bit, a busy flag held for a few status reads, and option bytes
// whose protection only applies after Reset.
type busSim struct {
	fam   *Family
	flash []byte
	opt   []byte

	cr, sr, ar uint32

	keyStage  int
	optStage  int
	unlocked  bool
	optWRE    bool
	lockedOut bool // wrong key sequence; only Reset clears it

	busy int // SR reads still reporting busy

	keyWrites []uint32 // every KEYR write, for sequence assertions

	// effective configuration, latched from the option bytes at Reset
	rdp Level
	wrp uint32
}

func newBusSim(fam *Family) *busSim {
	s := &busSim{
		fam:   fam,
		flash: make([]byte, fam.capacity()),
		opt:   make([]byte, optionRecLen),
		cr:    crLock,
	}
	for i := range s.flash {
		s.flash[i] = 0xFF
	}
	// factory record: level 0, everything unprotected
	put := func(i int, b byte) { s.opt[i] = b; s.opt[i+1] = ^b }
	put(0, rdpUnprotect)
	put(2, 0xFF)
	put(4, 0xFF)
	put(6, 0xFF)
	for i := 0; i < 4; i++ {
		put(8+2*i, 0xFF)
	}
	return s
}

// Reset latches the option bytes into the effective configuration, the
// way a power cycle would.
func (s *busSim) Reset() {
	s.rdp = levelFromByte(s.opt[0])
	var wrp uint32
	for i := 0; i < 4; i++ {
		wrp |= uint32(^s.opt[8+2*i]) << (8 * i)
	}
	if s.fam.WRPBits < 32 {
		wrp &= 1<<s.fam.WRPBits - 1
	}
	s.wrp = wrp
	s.cr = crLock
	s.unlocked = false
	s.optWRE = false
	s.lockedOut = false
	s.keyStage = 0
	s.optStage = 0
	s.busy = 0
}

func (s *busSim) Reg(off uint32) uint32 {
	switch off {
	case regSR:
		sr := s.sr
		if s.busy > 0 {
			sr |= srBusy
			s.busy--
		}
		return sr
	case regCR:
		return s.cr
	case regAR:
		return s.ar
	}
	return 0
}

func (s *busSim) SetReg(off uint32, v uint32) {
	switch off {
	case regKEYR:
		s.keyWrites = append(s.keyWrites, v)
		if s.lockedOut {
			return
		}
		switch {
		case s.keyStage == 0 && v == key1:
			s.keyStage = 1
		case s.keyStage == 1 && v == key2:
			s.keyStage = 0
			s.unlocked = true
			s.cr &^= crLock
		default:
			s.keyStage = 0
			s.lockedOut = true
		}

	case regOPTKEYR:
		if s.lockedOut || !s.unlocked {
			return
		}
		switch {
		case s.optStage == 0 && v == optKey1:
			s.optStage = 1
		case s.optStage == 1 && v == optKey2:
			s.optStage = 0
			s.optWRE = true
			s.cr |= crOPTWRE
		default:
			s.optStage = 0
		}

	case regSR:
		s.sr &^= v & (srPGErr | srWRPErr) // write one to clear

	case regAR:
		s.ar = v

	case regCR:
		if s.lockedOut || !s.unlocked {
			return // the controller ignores CR while locked
		}
		trigger := v&crStart != 0 && s.cr&crStart == 0
		s.cr = v
		if v&crLock != 0 {
			s.unlocked = false
			s.optWRE = false
			s.cr &^= crOPTWRE
		}
		if trigger {
			s.erase()
		}
	}
}

func (s *busSim) erase() {
	switch {
	case s.cr&crPER != 0:
		origin := int64(s.ar - s.fam.Base)
		sec, err := s.fam.sectorAt(origin)
		if err != nil {
			s.sr |= srPGErr
			return
		}
		if s.wrp>>sec.ProtectBit&1 != 0 {
			s.sr |= srWRPErr
			return
		}
		for a := sec.Origin; a < sec.Origin+sec.Size; a++ {
			s.flash[a] = 0xFF
		}
		s.busy = 2

	case s.cr&crMER != 0:
		if s.wrp != 0 {
			s.sr |= srWRPErr
			return
		}
		for i := range s.flash {
			s.flash[i] = 0xFF
		}
		s.busy = 3

	case s.cr&crOPTER != 0:
		if !s.optWRE {
			return
		}
		for i := range s.opt {
			s.opt[i] = 0xFF
		}
		s.busy = 2
	}
}

func (s *busSim) ReadMem(addr uint32, buf []byte) {
	if s.inOptions(addr) {
		copy(buf, s.opt[addr-s.fam.OptionBase:])
		return
	}
	copy(buf, s.flash[addr-s.fam.Base:])
}

func (s *busSim) ProgramMem(addr uint32, data []byte) {
	switch {
	case s.cr&crPG != 0 && !s.inOptions(addr):
		off := int64(addr - s.fam.Base)
		if sec, err := s.fam.sectorAt(off); err == nil && s.wrp>>sec.ProtectBit&1 != 0 {
			s.sr |= srWRPErr
			return
		}
		for i, b := range data {
			old := s.flash[off+int64(i)]
			if old&b != b {
				s.sr |= srPGErr // would need to set a programmed-down bit
			}
			s.flash[off+int64(i)] &= b
		}
		s.busy = 2

	case s.cr&crOPTPG != 0 && s.optWRE && s.inOptions(addr):
		off := addr - s.fam.OptionBase
		// dropping read protection from level 1 mass-erases user flash
		if off == 0 && len(data) > 0 && data[0] == rdpUnprotect && s.rdp == Level1 {
			for i := range s.flash {
				s.flash[i] = 0xFF
			}
		}
		for i, b := range data {
			s.opt[off+uint32(i)] &= b
		}
		s.busy = 1
	}
	// no mode bit set: the bus write goes nowhere
}

func (s *busSim) inOptions(addr uint32) bool {
	return addr >= s.fam.OptionBase && addr < s.fam.OptionBase+optionRecLen
}

func newTestDriver(t *testing.T, fam *Family, cfg Config) (*Driver, *busSim) {
	t.Helper()
	sim := newBusSim(fam)
	sim.Reset()
	d := New(sim, fam)
	if cfg.Wait == (nvm.WaitPolicy{}) {
		cfg.Wait = nvm.WaitPolicy{BusyPolls: 8}
	}
	require.NoError(t, d.Start(cfg))
	return d, sim
}
