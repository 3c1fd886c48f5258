package mcuflash

import (
	"fmt"

	"github.com/gentam/nvm"
)

// Option bytes live in a small, separately erasable region. Individual
// bits cannot be changed in place: any change is read-whole, erase-whole,
// rewrite-whole. Every field takes effect only after the next MCU reset.

// Level is the read-protection level. The lattice is one way: raising the
// level is always allowed, leaving Level1 for Level0 makes the hardware
// mass-erase user flash as a side effect, and Level2 can never be left.
type Level uint8

const (
	Level0 Level = iota // no read protection
	Level1              // debug access to flash blocked
	Level2              // permanent: debug fused off, options frozen
)

func (l Level) String() string {
	if l > Level2 {
		return fmt.Sprintf("level(%d)", uint8(l))
	}
	return fmt.Sprintf("level %d", uint8(l))
}

// RDP byte encodings; any other value reads back as Level1.
const (
	rdpUnprotect = 0xA5
	rdpPermanent = 0xCC
	rdpLevel1    = 0x00
)

func levelFromByte(b byte) Level {
	switch b {
	case rdpUnprotect:
		return Level0
	case rdpPermanent:
		return Level2
	}
	return Level1
}

func byteFromLevel(l Level) byte {
	switch l {
	case Level0:
		return rdpUnprotect
	case Level2:
		return rdpPermanent
	}
	return rdpLevel1
}

// Options is the decoded option byte record.
type Options struct {
	ReadProtect Level
	User        byte    // user configuration bits
	Data        [2]byte // free-form data bytes
	// WriteProtect is the logical protection mask: bit i set means the
	// sectors under protect bit i refuse program and erase after reset.
	WriteProtect uint32
}

// Record layout: eight halfwords of byte-plus-complement at OptionBase.
// The write-protect bytes are stored active low.
const optionRecLen = 16

func decodeOptions(raw []byte) (Options, error) {
	for i := 0; i < optionRecLen; i += 2 {
		if raw[i+1] != ^raw[i] {
			return Options{}, fmt.Errorf("%w: halfword %d reads %#02x/%#02x",
				ErrOptionInvalid, i/2, raw[i], raw[i+1])
		}
	}
	var wrp uint32
	for i := 0; i < 4; i++ {
		wrp |= uint32(^raw[8+2*i]) << (8 * i)
	}
	return Options{
		ReadProtect:  levelFromByte(raw[0]),
		User:         raw[2],
		Data:         [2]byte{raw[4], raw[6]},
		WriteProtect: wrp,
	}, nil
}

func (d *Driver) encodeOptions(o Options) [optionRecLen]byte {
	var raw [optionRecLen]byte
	put := func(i int, b byte) {
		raw[i] = b
		raw[i+1] = ^b
	}
	put(0, byteFromLevel(o.ReadProtect))
	put(2, o.User)
	put(4, o.Data[0])
	put(6, o.Data[1])
	mask := o.WriteProtect
	if d.fam.WRPBits < 32 {
		mask &= 1<<d.fam.WRPBits - 1
	}
	for i := 0; i < 4; i++ {
		put(8+2*i, ^byte(mask>>(8*i)))
	}
	return raw
}

// ReadOptions decodes the current option byte record.
func (d *Driver) ReadOptions() (Options, error) {
	d.mustReady("read options")
	raw := make([]byte, optionRecLen)
	d.bus.ReadMem(d.fam.OptionBase, raw)
	return decodeOptions(raw)
}

// WriteOptions replaces the whole option byte record: erase the region,
// then program every halfword back with the requested changes. Nothing
// takes effect until reset.
//
// Leaving Level1 read protection for Level0 makes the hardware mass-erase
// user flash before the new record applies; that side effect is the
// documented price of the transition, not a driver failure. At Level2 the
// record is frozen and every change fails.
func (d *Driver) WriteOptions(next Options) error {
	d.mustReady("write options")
	if next.ReadProtect > Level2 {
		return fmt.Errorf("mcuflash: read protection %v does not exist", next.ReadProtect)
	}
	cur := make([]byte, 1)
	d.bus.ReadMem(d.fam.OptionBase, cur)
	if levelFromByte(cur[0]) == Level2 {
		return ErrReadProtectLocked
	}

	d.state = nvm.Writing
	defer func() { d.state = nvm.Ready }()

	if err := d.optionErase(); err != nil {
		return err
	}
	raw := d.encodeOptions(next)
	for i := 0; i < optionRecLen; i += 2 {
		if err := d.optionProgram(uint32(i), raw[i]); err != nil {
			return err
		}
	}
	return nil
}

// optionUnlock opens the option write path: the plain unlock sequence
// followed by the option keys.
func (d *Driver) optionUnlock() {
	d.unlock()
	d.bus.SetReg(regOPTKEYR, optKey1)
	d.bus.SetReg(regOPTKEYR, optKey2)
}

func (d *Driver) optionErase() error {
	d.waitReady()
	d.optionUnlock()
	d.setCR(crOPTER)
	d.setCR(crStart)
	d.waitReady()
	err := d.takeErrors("option erase", d.fam.OptionBase)
	d.clearCR(crOPTER | crStart)
	d.lock()
	return err
}

func (d *Driver) optionProgram(off uint32, b byte) error {
	d.waitReady()
	d.optionUnlock()
	d.setCR(crOPTPG)
	d.bus.ProgramMem(d.fam.OptionBase+off, []byte{b, ^b})
	d.waitReady()
	err := d.takeErrors("option program", d.fam.OptionBase+off)
	d.clearCR(crOPTPG)
	d.lock()
	return err
}

// wrpMaskFor collects the protect bits of every sector overlapping the
// range.
func (d *Driver) wrpMaskFor(addr, size int64) (uint32, error) {
	var mask uint32
	sec, err := d.fam.sectorAt(addr)
	if err != nil {
		return 0, err
	}
	for {
		mask |= 1 << sec.ProtectBit
		next := sec.Origin + sec.Size
		if next >= addr+size || next >= d.fam.capacity() {
			return mask, nil
		}
		if sec, err = d.fam.sectorAt(next); err != nil {
			return 0, err
		}
	}
}

// WriteProtect adds the sectors covering [addr, addr+size) to the option
// write-protection mask. Takes effect after reset.
func (d *Driver) WriteProtect(addr, size int64) error {
	d.mustReady("write protect")
	nvm.MustRange("mcuflash write protect", addr, size, d.fam.capacity())
	if d.fam.WRPBits == 0 {
		return nil
	}
	opts, err := d.ReadOptions()
	if err != nil {
		return err
	}
	bits, err := d.wrpMaskFor(addr, size)
	if err != nil {
		return err
	}
	opts.WriteProtect |= bits
	return d.WriteOptions(opts)
}

// WriteUnprotect removes the sectors covering [addr, addr+size) from the
// option write-protection mask. Sectors sharing a protect bit with the
// range are freed with it. Takes effect after reset.
func (d *Driver) WriteUnprotect(addr, size int64) error {
	d.mustReady("write unprotect")
	nvm.MustRange("mcuflash write unprotect", addr, size, d.fam.capacity())
	if d.fam.WRPBits == 0 {
		return nil
	}
	opts, err := d.ReadOptions()
	if err != nil {
		return err
	}
	bits, err := d.wrpMaskFor(addr, size)
	if err != nil {
		return err
	}
	opts.WriteProtect &^= bits
	return d.WriteOptions(opts)
}

// MassWriteProtect sets every protection bit. Takes effect after reset.
func (d *Driver) MassWriteProtect() error {
	d.mustReady("mass write protect")
	if d.fam.WRPBits == 0 {
		return nil
	}
	opts, err := d.ReadOptions()
	if err != nil {
		return err
	}
	opts.WriteProtect = 1<<d.fam.WRPBits - 1
	return d.WriteOptions(opts)
}

// MassWriteUnprotect clears every protection bit. Takes effect after
// reset.
func (d *Driver) MassWriteUnprotect() error {
	d.mustReady("mass write unprotect")
	if d.fam.WRPBits == 0 {
		return nil
	}
	opts, err := d.ReadOptions()
	if err != nil {
		return err
	}
	opts.WriteProtect = 0
	return d.WriteOptions(opts)
}
