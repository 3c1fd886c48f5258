package spinor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// 16 KiB chip, 3 BP bits: level 7 protects everything, each level below
// halves the protected suffix.
func TestProtectedStartLadder(t *testing.T) {
	d, _ := newTestDriver(t, testConfig())
	capacity := int64(4 * 4096)

	require.Equal(t, capacity, d.protectedStart(0))
	require.Equal(t, capacity-capacity/64, d.protectedStart(1))
	require.Equal(t, capacity-capacity/4, d.protectedStart(5))
	require.Equal(t, capacity-capacity/2, d.protectedStart(6))
	require.Equal(t, int64(0), d.protectedStart(7))
}

func TestWriteProtectPicksSmallestCoveringSuffix(t *testing.T) {
	capacity := int64(4 * 4096)
	cases := []struct {
		name      string
		addr      int64
		wantLevel int
	}{
		{"last byte", capacity - 1, 1},
		{"just inside smallest suffix", capacity - capacity/64, 1},
		{"half way", capacity / 2, 6},
		{"start of chip", 0, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, sim := newTestDriver(t, testConfig())
			require.NoError(t, d.WriteProtect(tc.addr, capacity-tc.addr))
			require.NoError(t, d.Sync())
			require.Equal(t, tc.wantLevel, sim.status.BP(3))
		})
	}
}

func TestWriteUnprotectKeepsLargestSafeSuffix(t *testing.T) {
	d, sim := newTestDriver(t, testConfig())

	require.NoError(t, d.MassWriteProtect())
	require.NoError(t, d.Sync())
	require.Equal(t, 7, sim.status.BP(3))

	// freeing the first byte must drop to the biggest suffix that starts
	// at or after byte 1, which is half the chip
	require.NoError(t, d.WriteUnprotect(0, 1))
	require.NoError(t, d.Sync())
	require.Equal(t, 6, sim.status.BP(3))
	require.GreaterOrEqual(t, sim.protectedStart(), int64(1))
}

// Protect immediately followed by unprotect over the same range leaves the
// range writable again.
func TestProtectUnprotectRoundtrip(t *testing.T) {
	d, sim := newTestDriver(t, testConfig())
	addr, size := int64(3*4096), int64(100)

	require.NoError(t, d.WriteProtect(addr, size))
	require.NoError(t, d.Sync())

	// programming the protected suffix is silently ignored by the chip
	require.NoError(t, d.Write(addr, pattern(8)))
	buf := make([]byte, 8)
	require.NoError(t, d.Read(addr, buf))
	require.NotEqual(t, pattern(8), buf)

	require.NoError(t, d.WriteUnprotect(addr, size))
	require.NoError(t, d.Sync())
	require.GreaterOrEqual(t, sim.protectedStart(), addr+size)

	require.NoError(t, d.Write(addr, pattern(8)))
	require.NoError(t, d.Read(addr, buf))
	require.Equal(t, pattern(8), buf)
}

func TestMassProtectBlocksEverything(t *testing.T) {
	d, sim := newTestDriver(t, testConfig())

	require.NoError(t, d.MassWriteProtect())
	require.NoError(t, d.Sync())
	require.Equal(t, int64(0), sim.protectedStart())

	require.NoError(t, d.Write(0, pattern(4)))
	buf := make([]byte, 4)
	require.NoError(t, d.Read(0, buf))
	require.NotEqual(t, pattern(4), buf)

	require.NoError(t, d.MassWriteUnprotect())
	require.NoError(t, d.Sync())
	require.Equal(t, 0, sim.status.BP(3))

	require.NoError(t, d.Write(0, pattern(4)))
	require.NoError(t, d.Read(0, buf))
	require.Equal(t, pattern(4), buf)
}

// Chips without BP bits succeed as no-ops and touch nothing.
func TestProtectWithoutBPBits(t *testing.T) {
	cfg := testConfig()
	cfg.BPBits = 0
	d, sim := newTestDriver(t, cfg)

	require.NoError(t, d.WriteProtect(0, 16))
	require.NoError(t, d.WriteUnprotect(0, 16))
	require.NoError(t, d.MassWriteProtect())
	require.NoError(t, d.MassWriteUnprotect())
	require.Empty(t, sim.log)
}
