package nvm

import (
	"errors"
	"fmt"
)

// PartitionConfig binds a Partition to a sector range of an inner device.
type PartitionConfig struct {
	Device      Device // inner device, already started
	StartSector int64  // first inner sector owned by the partition
	SectorCount int64  // number of inner sectors owned by the partition
}

// Partition exposes a sector range of an inner Device as a Device of its
// own. It is a pure address-translating proxy: every call is bounds-checked
// against the partition's geometry, shifted by the partition's byte origin
// and forwarded verbatim, including Acquire/Release so bus arbitration
// composes transitively. Partitions nest without special cases.
type Partition struct {
	state State
	inner Device

	// cached from the inner device at Start
	sectorSize  int64
	sectorCount int64
	origin      int64 // absolute byte offset of sector zero
	size        int64 // byte capacity of the partition
	id          [3]byte
}

var _ Device = (*Partition)(nil)

// NewPartition returns a stopped partition handle.
func NewPartition() *Partition {
	return &Partition{state: Stopped}
}

// Start queries the inner device's geometry once and caches the partition's
// absolute origin and size. The sector size is inherited unchanged.
func (p *Partition) Start(cfg PartitionConfig) error {
	MustState("partition start", p.state, Stopped, Ready)
	if cfg.Device == nil {
		return errors.New("nvm: partition has no inner device")
	}
	info, err := cfg.Device.Info()
	if err != nil {
		return fmt.Errorf("nvm: partition inner geometry: %w", err)
	}
	if cfg.StartSector < 0 || cfg.SectorCount <= 0 ||
		cfg.StartSector+cfg.SectorCount > info.SectorCount {
		return fmt.Errorf("nvm: partition sectors [%d,+%d) exceed inner device of %d sectors",
			cfg.StartSector, cfg.SectorCount, info.SectorCount)
	}

	p.inner = cfg.Device
	p.sectorSize = info.SectorSize
	p.sectorCount = cfg.SectorCount
	p.origin = cfg.StartSector * info.SectorSize
	p.size = cfg.SectorCount * info.SectorSize
	p.id = info.ID
	p.state = Ready
	return nil
}

func (p *Partition) Stop() {
	MustState("partition stop", p.state, Stopped, Ready)
	p.state = Stopped
}

func (p *Partition) Read(addr int64, buf []byte) error {
	MustState("partition read", p.state, Ready)
	MustRange("partition read", addr, int64(len(buf)), p.size)
	p.state = Reading
	defer func() { p.state = Ready }()
	return p.inner.Read(p.origin+addr, buf)
}

func (p *Partition) Write(addr int64, data []byte) error {
	MustState("partition write", p.state, Ready)
	MustRange("partition write", addr, int64(len(data)), p.size)
	p.state = Writing
	defer func() { p.state = Ready }()
	return p.inner.Write(p.origin+addr, data)
}

func (p *Partition) Erase(addr, size int64) error {
	MustState("partition erase", p.state, Ready)
	MustRange("partition erase", addr, size, p.size)
	p.state = Erasing
	defer func() { p.state = Ready }()
	return p.inner.Erase(p.origin+addr, size)
}

// MassErase erases the partition's whole range, not the inner device.
func (p *Partition) MassErase() error {
	MustState("partition mass erase", p.state, Ready)
	p.state = Erasing
	defer func() { p.state = Ready }()
	return p.inner.Erase(p.origin, p.size)
}

func (p *Partition) Sync() error {
	MustState("partition sync", p.state, Ready)
	return p.inner.Sync()
}

// Info reports the partition's own sector count under the inner device's
// sector size and identification.
func (p *Partition) Info() (DeviceInfo, error) {
	MustState("partition info", p.state, Ready)
	return DeviceInfo{
		SectorSize:  p.sectorSize,
		SectorCount: p.sectorCount,
		ID:          p.id,
	}, nil
}

func (p *Partition) Acquire() {
	MustState("partition acquire", p.state, Ready)
	p.inner.Acquire()
}

func (p *Partition) Release() {
	MustState("partition release", p.state, Ready)
	p.inner.Release()
}

func (p *Partition) WriteProtect(addr, size int64) error {
	MustState("partition write protect", p.state, Ready)
	MustRange("partition write protect", addr, size, p.size)
	return p.inner.WriteProtect(p.origin+addr, size)
}

func (p *Partition) WriteUnprotect(addr, size int64) error {
	MustState("partition write unprotect", p.state, Ready)
	MustRange("partition write unprotect", addr, size, p.size)
	return p.inner.WriteUnprotect(p.origin+addr, size)
}

// MassWriteProtect protects the partition's whole range.
func (p *Partition) MassWriteProtect() error {
	MustState("partition mass write protect", p.state, Ready)
	return p.inner.WriteProtect(p.origin, p.size)
}

// MassWriteUnprotect removes protection from the partition's whole range.
func (p *Partition) MassWriteUnprotect() error {
	MustState("partition mass write unprotect", p.state, Ready)
	return p.inner.WriteUnprotect(p.origin, p.size)
}
