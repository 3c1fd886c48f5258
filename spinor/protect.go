package spinor

import "github.com/gentam/nvm"

// Block protection maps a level in the status register's BP field to a
// hardware-protected suffix of the address space. Level zero protects
// nothing; every level above doubles the suffix until the whole chip is
// covered at the maximum level:
//
//	size(level) = capacity >> (maxLevel - level),  maxLevel = 1<<BPBits - 1
//
// The power-of-two ladder matches the common BP tables; verify against the
// target chip's datasheet before relying on exact region boundaries.

// protectedStart returns the first protected byte address at a level, or
// the capacity when the level protects nothing.
func (d *Driver) protectedStart(level int) int64 {
	capacity := d.cfg.capacity()
	if level == 0 {
		return capacity
	}
	maxLevel := 1<<d.cfg.BPBits - 1
	return capacity - capacity>>(maxLevel-level)
}

// setProtectLevel rewrites the BP field, preserving the rest of the status
// register. The write-status cycle is left running (handle stays Writing).
func (d *Driver) setProtectLevel(level int) error {
	sr, err := d.readStatus()
	if err != nil {
		return err
	}
	d.state = nvm.Writing
	if err := d.writeEnable(); err != nil {
		return err
	}
	return d.tx([]byte{OpWriteStatus, byte(sr.WithBP(d.cfg.BPBits, level))})
}

// WriteProtect raises protection to the smallest protected suffix that
// starts at or before addr, covering [addr, addr+size) and everything
// after it. No-op on chips without BP bits.
func (d *Driver) WriteProtect(addr, size int64) error {
	d.mustStarted("write protect")
	nvm.MustRange("spinor write protect", addr, size, d.cfg.capacity())
	if d.cfg.BPBits == 0 {
		return nil
	}
	if err := d.Sync(); err != nil {
		return err
	}
	maxLevel := 1<<d.cfg.BPBits - 1
	for level := 1; level <= maxLevel; level++ {
		if d.protectedStart(level) <= addr {
			return d.setProtectLevel(level)
		}
	}
	return d.setProtectLevel(maxLevel)
}

// WriteUnprotect lowers protection to the largest protected suffix that
// starts at or after addr+size, freeing [addr, addr+size) while keeping as
// much of the tail protected as the ladder allows. No-op on chips without
// BP bits.
func (d *Driver) WriteUnprotect(addr, size int64) error {
	d.mustStarted("write unprotect")
	nvm.MustRange("spinor write unprotect", addr, size, d.cfg.capacity())
	if d.cfg.BPBits == 0 {
		return nil
	}
	if err := d.Sync(); err != nil {
		return err
	}
	maxLevel := 1<<d.cfg.BPBits - 1
	for level := maxLevel; level > 0; level-- {
		if d.protectedStart(level) >= addr+size {
			return d.setProtectLevel(level)
		}
	}
	return d.setProtectLevel(0)
}

// MassWriteProtect sets every BP bit.
func (d *Driver) MassWriteProtect() error {
	d.mustStarted("mass write protect")
	if d.cfg.BPBits == 0 {
		return nil
	}
	if err := d.Sync(); err != nil {
		return err
	}
	return d.setProtectLevel(1<<d.cfg.BPBits - 1)
}

// MassWriteUnprotect clears every BP bit.
func (d *Driver) MassWriteUnprotect() error {
	d.mustStarted("mass write unprotect")
	if d.cfg.BPBits == 0 {
		return nil
	}
	if err := d.Sync(); err != nil {
		return err
	}
	return d.setProtectLevel(0)
}
