// Package mcuflash drives MCU-internal program flash behind the
// nvm.Device contract. A Family descriptor generalizes the supported
// register variants; the Bus interface decouples the driver from MMIO so
// it can run against real hardware or a register-file model.
package mcuflash

import (
	"errors"
	"fmt"

	"github.com/gentam/nvm"
)

var (
	// ErrProgram reports a programming fault flagged by the controller,
	// typically an attempt to program a cell that is not erased.
	ErrProgram = errors.New("mcuflash: programming failed")

	// ErrWriteProtected reports a program or erase into a region the
	// option bytes write-protect.
	ErrWriteProtected = errors.New("mcuflash: target is write-protected")

	// ErrOptionInvalid reports an option byte record whose complement
	// bytes do not check out.
	ErrOptionInvalid = errors.New("mcuflash: option bytes corrupt")

	// ErrReadProtectLocked reports an option change attempted at read
	// protection level 2, which is permanent by hardware design.
	ErrReadProtectLocked = errors.New("mcuflash: read protection level 2 is permanent")
)

// Config parameterizes a started driver.
type Config struct {
	// SupplyMV is the supply voltage in millivolts; it selects the
	// program width on variable-width families and is ignored by
	// fixed-width ones.
	SupplyMV int

	Wait nvm.WaitPolicy // busy-poll policy; zero value means nvm.DefaultWait
	Lock nvm.Lock       // bus arbitration; nil means nvm.NopLock
}

// Driver is one on-chip flash array. Every program and erase brackets the
// mode bit with the controller unlock/lock sequence, keeping the window
// for accidental corruption as small as the hardware allows. All
// operations busy-wait to completion before returning.
type Driver struct {
	bus Bus
	fam *Family
	cfg Config

	unit  int // active program width in bytes
	state nvm.State
}

var _ nvm.Device = (*Driver)(nil)

// New returns a stopped handle over a register bus and family descriptor.
func New(bus Bus, fam *Family) *Driver {
	return &Driver{bus: bus, fam: fam, state: nvm.Stopped}
}

func (d *Driver) Start(cfg Config) error {
	nvm.MustState("mcuflash start", d.state, nvm.Stopped, nvm.Ready)
	if d.bus == nil || d.fam == nil {
		return errors.New("mcuflash: handle has no bus or family bound")
	}
	if d.fam.capacity() <= 0 {
		return fmt.Errorf("mcuflash: family %q has no geometry", d.fam.Name)
	}
	unit, err := d.fam.Width.unit(cfg.SupplyMV)
	if err != nil {
		return err
	}
	cfg.Wait = cfg.Wait.OrDefault()
	if cfg.Lock == nil {
		cfg.Lock = nvm.NopLock{}
	}
	d.cfg = cfg
	d.unit = unit
	d.state = nvm.Ready
	return nil
}

func (d *Driver) Stop() {
	nvm.MustState("mcuflash stop", d.state, nvm.Stopped, nvm.Ready)
	d.state = nvm.Stopped
}

func (d *Driver) mustReady(op string) {
	nvm.MustState("mcuflash "+op, d.state, nvm.Ready)
}

// Unit reports the active program width in bytes.
func (d *Driver) Unit() int { return d.unit }

// AddrToSector locates the sector owning an address. Out-of-range lookups
// are a query miss, not a fault, and return an error.
func (d *Driver) AddrToSector(addr int64) (SectorInfo, error) {
	return d.fam.sectorAt(addr)
}

func (d *Driver) waitReady() {
	for poll := 0; d.bus.Reg(regSR)&srBusy != 0; poll++ {
		d.cfg.Wait.Pause(poll)
	}
}

// unlock opens the control register with the two-word key sequence.
func (d *Driver) unlock() {
	d.bus.SetReg(regKEYR, key1)
	d.bus.SetReg(regKEYR, key2)
}

func (d *Driver) lock() {
	d.bus.SetReg(regCR, d.bus.Reg(regCR)|crLock)
}

func (d *Driver) setCR(bit uint32)   { d.bus.SetReg(regCR, d.bus.Reg(regCR)|bit) }
func (d *Driver) clearCR(bit uint32) { d.bus.SetReg(regCR, d.bus.Reg(regCR)&^bit) }

// takeErrors collects and clears the controller's error flags.
func (d *Driver) takeErrors(op string, busAddr uint32) error {
	sr := d.bus.Reg(regSR)
	if sr&(srPGErr|srWRPErr) == 0 {
		return nil
	}
	d.bus.SetReg(regSR, sr&(srPGErr|srWRPErr)) // write one to clear
	if sr&srWRPErr != 0 {
		return fmt.Errorf("mcuflash: %s at %#x: %w", op, busAddr, ErrWriteProtected)
	}
	return fmt.Errorf("mcuflash: %s at %#x: %w", op, busAddr, ErrProgram)
}

func (d *Driver) Read(addr int64, buf []byte) error {
	d.mustReady("read")
	nvm.MustRange("mcuflash read", addr, int64(len(buf)), d.fam.capacity())
	d.state = nvm.Reading
	defer func() { d.state = nvm.Ready }()
	d.waitReady()
	d.bus.ReadMem(d.fam.Base+uint32(addr), buf)
	return nil
}

// Write programs one unit at a time. There is no page alignment
// constraint: a request head or tail that only covers part of a unit is
// merged with the array's current contents, which is harmless on erased
// cells and faithful to what the bus would do anyway.
func (d *Driver) Write(addr int64, data []byte) error {
	d.mustReady("write")
	nvm.MustRange("mcuflash write", addr, int64(len(data)), d.fam.capacity())
	if len(data) == 0 {
		return nil
	}
	d.state = nvm.Writing
	defer func() { d.state = nvm.Ready }()

	u := int64(d.unit)
	end := addr + int64(len(data))
	for a := addr &^ (u - 1); a < end; a += u {
		unit := make([]byte, u)
		d.bus.ReadMem(d.fam.Base+uint32(a), unit)
		lo := max(addr, a)
		hi := min(end, a+u)
		copy(unit[lo-a:], data[lo-addr:hi-addr])
		if err := d.program(d.fam.Base+uint32(a), unit); err != nil {
			return err
		}
	}
	return nil
}

// program issues a single unit write under the unlock/set-mode/lock
// discipline: the controller is unlocked immediately before PG is set and
// relocked as soon as the write has been checked.
func (d *Driver) program(busAddr uint32, unit []byte) error {
	d.waitReady()
	d.unlock()
	d.setCR(crPG)
	d.bus.ProgramMem(busAddr, unit)
	d.waitReady()
	err := d.takeErrors("program", busAddr)
	d.clearCR(crPG)
	d.lock()
	return err
}

// Erase erases whole sectors located through AddrToSector until the range
// is covered.
func (d *Driver) Erase(addr, size int64) error {
	d.mustReady("erase")
	nvm.MustRange("mcuflash erase", addr, size, d.fam.capacity())
	if size == 0 {
		return nil
	}
	d.state = nvm.Erasing
	defer func() { d.state = nvm.Ready }()

	sec, err := d.fam.sectorAt(addr)
	if err != nil {
		return err
	}
	for {
		if err := d.eraseSector(sec); err != nil {
			return err
		}
		next := sec.Origin + sec.Size
		if next >= addr+size || next >= d.fam.capacity() {
			return nil
		}
		if sec, err = d.fam.sectorAt(next); err != nil {
			return err
		}
	}
}

func (d *Driver) eraseSector(sec SectorInfo) error {
	busAddr := d.fam.Base + uint32(sec.Origin)
	d.waitReady()
	d.unlock()
	d.setCR(crPER)
	d.bus.SetReg(regAR, busAddr)
	d.setCR(crStart)
	d.waitReady()
	err := d.takeErrors("erase", busAddr)
	d.clearCR(crPER | crStart)
	d.lock()
	return err
}

func (d *Driver) MassErase() error {
	d.mustReady("mass erase")
	d.state = nvm.Erasing
	defer func() { d.state = nvm.Ready }()

	d.waitReady()
	d.unlock()
	d.setCR(crMER)
	d.setCR(crStart)
	d.waitReady()
	err := d.takeErrors("mass erase", d.fam.Base)
	d.clearCR(crMER | crStart)
	d.lock()
	return err
}

// Sync waits out the controller's busy flag. Operations on this backend
// complete before returning, so this is normally instant.
func (d *Driver) Sync() error {
	d.mustReady("sync")
	d.waitReady()
	return nil
}

func (d *Driver) Info() (nvm.DeviceInfo, error) {
	d.mustReady("info")
	d.waitReady()
	sectorSize, sectorCount := d.fam.infoGeometry()
	return nvm.DeviceInfo{
		SectorSize:  sectorSize,
		SectorCount: sectorCount,
		ID:          d.fam.ID,
	}, nil
}

// Acquire takes the configured bus lock.
func (d *Driver) Acquire() {
	d.mustReady("acquire")
	d.cfg.Lock.Acquire()
}

// Release gives the configured bus lock back.
func (d *Driver) Release() {
	d.mustReady("release")
	d.cfg.Lock.Release()
}
