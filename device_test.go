package nvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceInfoCapacity(t *testing.T) {
	info := DeviceInfo{SectorSize: 4096, SectorCount: 1024}
	assert.Equal(t, int64(4<<20), info.Capacity())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestMustRange(t *testing.T) {
	assert.NotPanics(t, func() { MustRange("op", 0, 100, 100) })
	assert.NotPanics(t, func() { MustRange("op", 100, 0, 100) })
	assert.Panics(t, func() { MustRange("op", -1, 1, 100) })
	assert.Panics(t, func() { MustRange("op", 0, -1, 100) })
	assert.Panics(t, func() { MustRange("op", 1, 100, 100) })
}

func TestMustState(t *testing.T) {
	assert.NotPanics(t, func() { MustState("op", Ready, Ready, Writing) })
	assert.Panics(t, func() { MustState("op", Stopped, Ready) })
}
