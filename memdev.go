package nvm

import "errors"

// MemConfig describes the geometry of a MemDevice.
type MemConfig struct {
	SectorSize  int64
	SectorCount int64
	ID          [3]byte
	Lock        Lock // nil means NopLock
}

// MemDevice is a RAM-backed Device with NOR flash semantics: erase fills
// sectors with 0xFF and programming can only clear bits. It backs partition
// tests and stands in for hardware wherever a Device is consumed.
type MemDevice struct {
	state State
	cfg   MemConfig
	data  []byte

	acquired int // Acquire/Release balance, for tests
}

var _ Device = (*MemDevice)(nil)

// NewMemDevice returns a stopped handle.
func NewMemDevice() *MemDevice {
	return &MemDevice{state: Stopped}
}

func (m *MemDevice) Start(cfg MemConfig) error {
	MustState("memdev start", m.state, Stopped, Ready)
	if cfg.SectorSize <= 0 || cfg.SectorCount <= 0 {
		return errors.New("nvm: memdev geometry must be positive")
	}
	if cfg.Lock == nil {
		cfg.Lock = NopLock{}
	}
	m.cfg = cfg
	m.data = make([]byte, cfg.SectorSize*cfg.SectorCount)
	for i := range m.data {
		m.data[i] = 0xFF
	}
	m.state = Ready
	return nil
}

func (m *MemDevice) Stop() {
	MustState("memdev stop", m.state, Stopped, Ready)
	m.state = Stopped
}

func (m *MemDevice) Read(addr int64, buf []byte) error {
	MustState("memdev read", m.state, Ready)
	MustRange("memdev read", addr, int64(len(buf)), m.capacity())
	m.state = Reading
	defer func() { m.state = Ready }()
	copy(buf, m.data[addr:])
	return nil
}

// Write programs with AND semantics so a missing erase shows up as corrupt
// data instead of silently passing.
func (m *MemDevice) Write(addr int64, data []byte) error {
	MustState("memdev write", m.state, Ready)
	MustRange("memdev write", addr, int64(len(data)), m.capacity())
	m.state = Writing
	defer func() { m.state = Ready }()
	for i, b := range data {
		m.data[addr+int64(i)] &= b
	}
	return nil
}

func (m *MemDevice) Erase(addr, size int64) error {
	MustState("memdev erase", m.state, Ready)
	MustRange("memdev erase", addr, size, m.capacity())
	m.state = Erasing
	defer func() { m.state = Ready }()
	if size == 0 {
		return nil
	}
	start := addr - addr%m.cfg.SectorSize
	end := addr + size
	for a := start; a < end; a += m.cfg.SectorSize {
		for i := int64(0); i < m.cfg.SectorSize; i++ {
			m.data[a+i] = 0xFF
		}
	}
	return nil
}

func (m *MemDevice) MassErase() error {
	MustState("memdev mass erase", m.state, Ready)
	m.state = Erasing
	defer func() { m.state = Ready }()
	for i := range m.data {
		m.data[i] = 0xFF
	}
	return nil
}

func (m *MemDevice) Sync() error {
	MustState("memdev sync", m.state, Ready)
	return nil
}

func (m *MemDevice) Info() (DeviceInfo, error) {
	MustState("memdev info", m.state, Ready)
	return DeviceInfo{
		SectorSize:  m.cfg.SectorSize,
		SectorCount: m.cfg.SectorCount,
		ID:          m.cfg.ID,
	}, nil
}

func (m *MemDevice) Acquire() {
	m.cfg.Lock.Acquire()
	m.acquired++
}

func (m *MemDevice) Release() {
	m.acquired--
	m.cfg.Lock.Release()
}

// Acquired reports the current Acquire/Release balance.
func (m *MemDevice) Acquired() int { return m.acquired }

// Write protection is not modeled; the operations no-op per the Device
// contract for unsupported capabilities.
func (m *MemDevice) WriteProtect(addr, size int64) error {
	MustState("memdev write protect", m.state, Ready)
	MustRange("memdev write protect", addr, size, m.capacity())
	return nil
}

func (m *MemDevice) WriteUnprotect(addr, size int64) error {
	MustState("memdev write unprotect", m.state, Ready)
	MustRange("memdev write unprotect", addr, size, m.capacity())
	return nil
}

func (m *MemDevice) MassWriteProtect() error {
	MustState("memdev mass write protect", m.state, Ready)
	return nil
}

func (m *MemDevice) MassWriteUnprotect() error {
	MustState("memdev mass write unprotect", m.state, Ready)
	return nil
}

// Bytes exposes the backing array for test assertions.
func (m *MemDevice) Bytes() []byte { return m.data }

func (m *MemDevice) capacity() int64 {
	return m.cfg.SectorSize * m.cfg.SectorCount
}
