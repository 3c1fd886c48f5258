package spinor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi"

	"github.com/gentam/nvm"
)

// chipSim is a behavioral model of a JEDEC SPI NOR chip: NOR programming
// (bits only clear), sector erase, a busy bit that stays set for a few
// status polls, the write-enable latch, BP-bit suffix protection and deep
// power-down. It records every mutating command for exact-sequence
// assertions.
type chipSim struct {
	cfg Config
	id  []byte // RDID response, may start with continuation bytes

	mem       []byte
	status    StatusRegister
	busyPolls int // RDSR reads still reporting busy
	selected  bool
	down      bool // deep power-down

	log    []progRec
	failTx error // injected transport failure
}

type progRec struct {
	op   byte
	addr int64
	data []byte
}

func newChipSim(cfg Config, id ...byte) *chipSim {
	_ = (&cfg).validate() // pick up the same defaults the driver applies
	if len(id) == 0 {
		id = []byte{0xEF, 0x70, 0x18}
	}
	s := &chipSim{
		cfg: cfg,
		id:  id,
		mem: make([]byte, cfg.SectorSize*cfg.SectorCount),
	}
	for i := range s.mem {
		s.mem[i] = 0xFF
	}
	return s
}

// simCS feeds chip-select edges from the driver back into the simulator.
type simCS struct {
	gpiotest.Pin
	sim *chipSim
}

func (p *simCS) Out(l gpio.Level) error {
	if err := p.Pin.Out(l); err != nil {
		return err
	}
	p.sim.selected = l == gpio.Low
	return nil
}

func (s *chipSim) String() string      { return "chipsim" }
func (s *chipSim) Duplex() conn.Duplex { return conn.Full }

func (s *chipSim) TxPackets(p []spi.Packet) error {
	for i := range p {
		if err := s.Tx(p[i].W, p[i].R); err != nil {
			return err
		}
	}
	return nil
}

func (s *chipSim) Tx(w, r []byte) error {
	if s.failTx != nil {
		return s.failTx
	}
	if !s.selected {
		return errors.New("chipsim: transaction without chip select")
	}
	if len(w) == 0 || len(r) != len(w) {
		return errors.New("chipsim: only equal-length full-duplex transactions")
	}

	op := w[0]
	if s.down && op != OpPowerUp {
		return nil // deep power-down: every other command is ignored
	}

	if op == OpReadStatus {
		sr := s.status
		if s.busyPolls > 0 {
			sr |= 1 // busy
			s.busyPolls--
		}
		r[1] = byte(sr)
		return nil
	}
	if s.busyPolls > 0 {
		return fmt.Errorf("chipsim: command %#02x while busy", op)
	}

	switch {
	case op == OpRead || op == OpFastRead:
		hdr := 1 + s.cfg.AddrBytes
		if op == OpFastRead {
			hdr++
		}
		copy(r[hdr:], s.mem[s.addr(w[1:]):])

	case op == OpReadID:
		copy(r[1:], s.id)

	case op == OpWriteEnable:
		s.status |= 1 << 1

	case op == OpWriteDisable:
		s.status &^= 1 << 1
		s.log = append(s.log, progRec{op: OpWriteDisable})

	case op == s.cfg.CmdProgram:
		if !s.status.WriteEnabled() {
			return errors.New("chipsim: program without write enable")
		}
		addr := s.addr(w[1:])
		data := w[1+s.cfg.AddrBytes:]
		for i, b := range data {
			if a := addr + int64(i); a < s.protectedStart() {
				s.mem[a] &= b // NOR: programming only clears bits
			}
		}
		s.status &^= 1 << 1
		s.busyPolls = 2
		s.log = append(s.log, progRec{op: op, addr: addr, data: append([]byte(nil), data...)})

	case op == s.cfg.CmdSectorErase && op != 0:
		if !s.status.WriteEnabled() {
			return errors.New("chipsim: erase without write enable")
		}
		addr := s.addr(w[1:])
		addr -= addr % s.cfg.SectorSize
		for a := addr; a < addr+s.cfg.SectorSize; a++ {
			if a < s.protectedStart() {
				s.mem[a] = 0xFF
			}
		}
		s.status &^= 1 << 1
		s.busyPolls = 3
		s.log = append(s.log, progRec{op: op, addr: addr})

	case op == s.cfg.CmdMassErase && op != 0:
		if !s.status.WriteEnabled() {
			return errors.New("chipsim: chip erase without write enable")
		}
		for a := range s.mem {
			if int64(a) < s.protectedStart() {
				s.mem[a] = 0xFF
			}
		}
		s.status &^= 1 << 1
		s.busyPolls = 3
		s.log = append(s.log, progRec{op: op})

	case op == OpWriteStatus:
		if !s.status.WriteEnabled() {
			return errors.New("chipsim: write status without write enable")
		}
		s.status = StatusRegister(w[1]) &^ 0x03 // WEL and busy are not writable
		s.busyPolls = 1
		s.log = append(s.log, progRec{op: OpWriteStatus, data: []byte{w[1]}})

	case op == OpPowerDown:
		s.down = true

	case op == OpPowerUp:
		s.down = false

	default:
		return fmt.Errorf("chipsim: unknown opcode %#02x", op)
	}
	return nil
}

func (s *chipSim) addr(b []byte) int64 {
	var a int64
	for i := 0; i < s.cfg.AddrBytes; i++ {
		a = a<<8 | int64(b[i])
	}
	return a
}

// protectedStart mirrors the driver's BP ladder.
func (s *chipSim) protectedStart() int64 {
	capacity := int64(len(s.mem))
	level := s.status.BP(s.cfg.BPBits)
	if s.cfg.BPBits == 0 || level == 0 {
		return capacity
	}
	maxLevel := 1<<s.cfg.BPBits - 1
	return capacity - capacity>>(maxLevel-level)
}

// programs returns only the program/erase records, skipping WEL bookkeeping.
func (s *chipSim) programs() []progRec {
	out := []progRec{}
	for _, rec := range s.log {
		if rec.op == s.cfg.CmdProgram {
			out = append(out, rec)
		}
	}
	return out
}

func newTestDriver(t *testing.T, cfg Config, id ...byte) (*Driver, *chipSim) {
	t.Helper()
	sim := newChipSim(cfg, id...)
	cs := &simCS{sim: sim}
	cs.N = "CS"
	d := New(sim, cs)
	require.NoError(t, d.Start(cfg))
	return d, sim
}

// testConfig is a small W25Q-flavored chip: 4 sectors of 4 KiB.
func testConfig() Config {
	return Config{
		SectorSize:     4096,
		SectorCount:    4,
		PageSize:       256,
		PageAlign:      256,
		AddrBytes:      3,
		CmdRead:        OpRead,
		CmdProgram:     OpPageProgram,
		CmdSectorErase: OpErase4KB,
		CmdMassErase:   OpEraseChip,
		BPBits:         3,
		Wait:           nvm.WaitPolicy{BusyPolls: 4, PollInterval: 0},
	}
}
