// Package spinor drives JEDEC SPI NOR flash chips behind the nvm.Device
// contract. The opcode table and geometry come from a Config, so one driver
// covers chips as different as a page-programmed Winbond part and an
// SST part that only knows auto-address-increment word programming.
package spinor

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"

	"github.com/gentam/nvm"
)

// Driver is one SPI NOR chip on a shared bus. Program and erase commands
// are issued without a trailing busy-wait; the handle stays in the Writing
// or Erasing state until Sync (or the next operation) has polled the busy
// bit clear.
type Driver struct {
	conn spi.Conn
	cs   gpio.PinIO
	cfg  Config

	state nvm.State

	id      [3]byte // JEDEC ID, cached on first Info
	idValid bool
}

var _ nvm.Device = (*Driver)(nil)

// New returns a stopped handle over an SPI connection and its chip-select
// line.
func New(conn spi.Conn, cs gpio.PinIO) *Driver {
	return &Driver{conn: conn, cs: cs, state: nvm.Stopped}
}

// Start binds the chip configuration. The hardware is not touched; the
// first operation that needs the chip will talk to it.
func (d *Driver) Start(cfg Config) error {
	nvm.MustState("spinor start", d.state, nvm.Stopped, nvm.Ready)
	if err := cfg.validate(); err != nil {
		return err
	}
	d.cfg = cfg
	d.idValid = false
	d.state = nvm.Ready
	return nil
}

// Stop returns the handle to the stopped state. Callers must Sync first if
// a program or erase may still be in flight.
func (d *Driver) Stop() {
	nvm.MustState("spinor stop", d.state, nvm.Stopped, nvm.Ready)
	d.state = nvm.Stopped
}

func (d *Driver) mustStarted(op string) {
	nvm.MustState("spinor "+op, d.state, nvm.Ready, nvm.Writing, nvm.Erasing)
}

// tx wraps an SPI transaction with CS assertion.
func (d *Driver) tx(buf []byte) (err error) {
	if err = d.cs.Out(gpio.Low); err != nil {
		return err
	}
	defer func() {
		if csErr := d.cs.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
	}()
	err = d.conn.Tx(buf, buf)
	return
}

// putAddr writes the big-endian address bytes the chip expects.
func (d *Driver) putAddr(b []byte, addr int64) {
	for i := 0; i < d.cfg.AddrBytes; i++ {
		b[i] = byte(addr >> (8 * (d.cfg.AddrBytes - 1 - i)))
	}
}

func (d *Driver) readStatus() (StatusRegister, error) {
	b := []byte{OpReadStatus, 0}
	if err := d.tx(b); err != nil {
		return 0, err
	}
	return StatusRegister(b[1]), nil
}

// Status reads the chip's status register.
func (d *Driver) Status() (StatusRegister, error) {
	d.mustStarted("status")
	return d.readStatus()
}

func (d *Driver) writeEnable() error  { return d.tx([]byte{OpWriteEnable}) }
func (d *Driver) writeDisable() error { return d.tx([]byte{OpWriteDisable}) }

// waitReady polls the busy bit until it clears, pausing per the configured
// wait policy. There is no timeout; see nvm.WaitPolicy.
func (d *Driver) waitReady() error {
	for poll := 0; ; poll++ {
		sr, err := d.readStatus()
		if err != nil {
			return err
		}
		if !sr.Busy() {
			return nil
		}
		d.cfg.Wait.Pause(poll)
	}
}

// Sync waits out any in-flight program or erase, then marks the handle
// Ready. It is a no-op when the handle is already Ready.
func (d *Driver) Sync() error {
	d.mustStarted("sync")
	if d.state == nvm.Ready {
		return nil
	}
	if err := d.waitReady(); err != nil {
		return err
	}
	d.state = nvm.Ready
	return nil
}

// Read streams len(buf) bytes starting at addr. Reading while the chip is
// busy is undefined on most JEDEC parts, so Read syncs first. Large reads
// are split to stay within the maximum transaction size.
func (d *Driver) Read(addr int64, buf []byte) error {
	d.mustStarted("read")
	nvm.MustRange("spinor read", addr, int64(len(buf)), d.cfg.capacity())
	if len(buf) == 0 {
		return nil
	}
	if err := d.Sync(); err != nil {
		return err
	}
	d.state = nvm.Reading
	defer func() { d.state = nvm.Ready }()

	const maxTx = 65536 // [FTDI-AN_108]
	hdr := 1 + d.cfg.AddrBytes
	if d.cfg.CmdRead == OpFastRead {
		hdr++ // one dummy byte between address and data
	}

	off := 0
	for remaining := len(buf); remaining > 0; {
		chunk := min(remaining, maxTx-hdr)
		b := make([]byte, hdr+chunk)
		b[0] = d.cfg.CmdRead
		d.putAddr(b[1:], addr)

		if err := d.tx(b); err != nil {
			return err
		}
		copy(buf[off:], b[hdr:])

		addr += int64(chunk)
		off += chunk
		remaining -= chunk
	}
	return nil
}

// Write programs data at addr in page-sized chunks. Each chunk clocks out
// exactly PageSize bytes from the aligned page origin, padded with 0xFF on
// either side of the payload; programming 0xFF leaves erased cells alone.
// The final command is left running: the handle stays Writing until the
// next Sync.
func (d *Driver) Write(addr int64, data []byte) error {
	d.mustStarted("write")
	nvm.MustRange("spinor write", addr, int64(len(data)), d.cfg.capacity())
	if len(data) == 0 {
		return nil
	}
	if err := d.Sync(); err != nil {
		return err
	}
	d.state = nvm.Writing

	for len(data) > 0 {
		origin := addr &^ (d.cfg.PageAlign - 1)
		pre := addr - origin
		n := min(int64(len(data)), d.cfg.PageSize-pre)
		if err := d.programPage(origin, pre, data[:n]); err != nil {
			return err
		}
		addr += n
		data = data[n:]
	}
	return d.endProgram()
}

// programPage issues one program command of exactly PageSize data bytes:
// pre bytes of 0xFF, the payload, then 0xFF up to the page end.
func (d *Driver) programPage(origin, pre int64, payload []byte) error {
	if err := d.waitReady(); err != nil {
		return err
	}
	if err := d.writeEnable(); err != nil {
		return err
	}
	hdr := int64(1 + d.cfg.AddrBytes)
	b := make([]byte, hdr+d.cfg.PageSize)
	b[0] = d.cfg.CmdProgram
	d.putAddr(b[1:], origin)
	for i := hdr; i < int64(len(b)); i++ {
		b[i] = 0xFF
	}
	copy(b[hdr+pre:], payload)
	return d.tx(b)
}

// endProgram terminates an auto-address-increment session. AAI parts stay
// in programming mode until an explicit write-disable after the final
// busy-wait; plain page-program parts need nothing.
func (d *Driver) endProgram() error {
	if d.cfg.CmdProgram != OpAAIProgram {
		return nil
	}
	if err := d.waitReady(); err != nil {
		return err
	}
	return d.writeDisable()
}

// Erase erases every sector overlapping [addr, addr+size). The handle is
// left Erasing with the last command still running.
func (d *Driver) Erase(addr, size int64) error {
	d.mustStarted("erase")
	nvm.MustRange("spinor erase", addr, size, d.cfg.capacity())
	if size == 0 {
		return nil
	}
	if err := d.Sync(); err != nil {
		return err
	}
	d.state = nvm.Erasing
	return d.eraseRange(addr, addr+size)
}

func (d *Driver) eraseRange(addr, end int64) error {
	start := addr - addr%d.cfg.SectorSize
	for a := start; a < end; a += d.cfg.SectorSize {
		if d.cfg.CmdSectorErase == 0 {
			if err := d.blankSector(a); err != nil {
				return err
			}
			continue
		}
		if err := d.waitReady(); err != nil {
			return err
		}
		if err := d.writeEnable(); err != nil {
			return err
		}
		b := make([]byte, 1+d.cfg.AddrBytes)
		b[0] = d.cfg.CmdSectorErase
		d.putAddr(b[1:], a)
		if err := d.tx(b); err != nil {
			return err
		}
	}
	return nil
}

// blankSector emulates an erase on chips without an erase command by
// programming 0xFF across every page of the sector. Functionally
// equivalent to a real erase, nowhere near timing-equivalent.
func (d *Driver) blankSector(origin int64) error {
	for a := origin; a < origin+d.cfg.SectorSize; a += d.cfg.PageSize {
		if err := d.programPage(a, 0, nil); err != nil {
			return err
		}
	}
	return d.endProgram()
}

// MassErase erases the whole chip, with the dedicated opcode when the chip
// has an erase command and by emulated sector erases otherwise.
func (d *Driver) MassErase() error {
	d.mustStarted("mass erase")
	if err := d.Sync(); err != nil {
		return err
	}
	d.state = nvm.Erasing
	if d.cfg.CmdSectorErase == 0 {
		return d.eraseRange(0, d.cfg.capacity())
	}
	if err := d.writeEnable(); err != nil {
		return err
	}
	return d.tx([]byte{d.cfg.CmdMassErase})
}

// Info waits out any transfer and reports the configured geometry together
// with the chip's JEDEC identification, read once and cached.
func (d *Driver) Info() (nvm.DeviceInfo, error) {
	d.mustStarted("info")
	if err := d.Sync(); err != nil {
		return nvm.DeviceInfo{}, err
	}
	if !d.idValid {
		id, err := d.readID()
		if err != nil {
			return nvm.DeviceInfo{}, err
		}
		d.id = id
		d.idValid = true
	}
	return nvm.DeviceInfo{
		SectorSize:  d.cfg.SectorSize,
		SectorCount: d.cfg.SectorCount,
		ID:          d.id,
	}, nil
}

// readID issues RDID and skips the leading continuation bytes some
// manufacturers clock out before the three identification bytes.
func (d *Driver) readID() ([3]byte, error) {
	b := make([]byte, 1+9)
	b[0] = OpReadID
	if err := d.tx(b); err != nil {
		return [3]byte{}, err
	}
	p := b[1:]
	for len(p) > 3 && p[0] == idContinuation {
		p = p[1:]
	}
	if p[0] == idContinuation {
		return [3]byte{}, errors.New("spinor: no identification after continuation bytes")
	}
	return [3]byte(p[:3]), nil
}

// Acquire takes the configured bus lock.
func (d *Driver) Acquire() {
	d.mustStarted("acquire")
	d.cfg.Lock.Acquire()
}

// Release gives the configured bus lock back.
func (d *Driver) Release() {
	d.mustStarted("release")
	d.cfg.Lock.Release()
}

// PowerUp releases the chip from deep power-down and waits the configured
// settle time.
func (d *Driver) PowerUp() error {
	d.mustStarted("power up")
	if err := d.tx([]byte{OpPowerUp}); err != nil {
		return err
	}
	time.Sleep(d.cfg.PowerUpTime)
	return nil
}

// PowerDown puts the chip into deep power-down. Only PowerUp is honored by
// the chip afterwards.
func (d *Driver) PowerDown() error {
	d.mustStarted("power down")
	if err := d.Sync(); err != nil {
		return err
	}
	if err := d.tx([]byte{OpPowerDown}); err != nil {
		return err
	}
	time.Sleep(d.cfg.PowerDownTime)
	return nil
}

// String names the handle for diagnostics.
func (d *Driver) String() string {
	return fmt.Sprintf("spinor(%v, %d KiB)", d.state, d.cfg.capacity()/1024)
}
