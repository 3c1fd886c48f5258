package nvm

import "fmt"

// DeviceInfo describes the geometry and identity of an NVM device. It is
// queried once from the concrete backend and immutable thereafter.
type DeviceInfo struct {
	SectorSize  int64   // erase granularity in bytes
	SectorCount int64   // number of erasable sectors
	ID          [3]byte // JEDEC identification, or a backend-defined stand-in
}

// Capacity returns the addressable size of the device in bytes.
func (i DeviceInfo) Capacity() int64 {
	return i.SectorSize * i.SectorCount
}

// State is the lifecycle state of a device handle. Operations set a transfer
// state on entry and restore Ready once the handle can accept the next call.
type State uint8

const (
	Uninit State = iota
	Stopped
	Ready
	Reading
	Writing
	Erasing
)

func (s State) String() string {
	switch s {
	case Uninit:
		return "uninit"
	case Stopped:
		return "stopped"
	case Ready:
		return "ready"
	case Reading:
		return "reading"
	case Writing:
		return "writing"
	case Erasing:
		return "erasing"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Device is the capability contract shared by all NVM backends. One
// implementation is bound per handle at construction and never switched
// afterwards.
//
// All addresses are byte offsets relative to the handle's own geometry; a
// partition's caller never sees inner-device absolute addresses. Passing a
// range outside the handle's geometry, or calling an operation on a stopped
// handle, is a programming error and faults with a panic. I/O problems are
// reported through the returned error.
//
// Acquire/Release and the write-protection operations are optional
// capabilities: backends without them succeed as no-ops instead of failing.
type Device interface {
	// Read copies len(buf) bytes starting at addr into buf.
	Read(addr int64, buf []byte) error

	// Write programs len(data) bytes starting at addr. The target range is
	// expected to be erased; writing may only clear bits on NOR media. On
	// failure the device may be left partially written.
	Write(addr int64, data []byte) error

	// Erase erases every sector overlapping [addr, addr+size), resetting it
	// to 0xFF. addr is aligned down to the first covering sector.
	Erase(addr, size int64) error

	// MassErase erases the whole device.
	MassErase() error

	// Sync waits until any in-progress program or erase has finished.
	Sync() error

	// Info reports the device geometry and identification.
	Info() (DeviceInfo, error)

	// Acquire takes exclusive use of the backend bus. It propagates through
	// composed devices down to the lowest concrete backend.
	Acquire()

	// Release gives up exclusive use of the backend bus.
	Release()

	// WriteProtect hardware-protects at least [addr, addr+size) against
	// program and erase, following the backend's protection granularity.
	WriteProtect(addr, size int64) error

	// WriteUnprotect removes hardware protection from at least
	// [addr, addr+size), keeping as much protection elsewhere as the
	// backend's granularity allows.
	WriteUnprotect(addr, size int64) error

	// MassWriteProtect protects the whole device.
	MassWriteProtect() error

	// MassWriteUnprotect removes protection from the whole device.
	MassWriteUnprotect() error
}

// MustRange faults unless [addr, addr+size) lies inside a device of the
// given capacity. Range violations are programming errors, not recoverable
// I/O failures, so they panic instead of returning an error.
func MustRange(op string, addr, size, capacity int64) {
	if addr < 0 || size < 0 || addr+size > capacity {
		panic(fmt.Sprintf("nvm: %s out of range: addr=%d size=%d capacity=%d", op, addr, size, capacity))
	}
}

// MustState faults unless the handle is in one of the wanted states.
func MustState(op string, got State, want ...State) {
	for _, w := range want {
		if got == w {
			return
		}
	}
	panic(fmt.Sprintf("nvm: %s called in state %v", op, got))
}
