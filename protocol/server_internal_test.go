package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPickBlockShift(t *testing.T) {
	cases := []struct {
		sectorCount uint64
		wantShift   uint8
	}{
		{1, 7}, // size=512, packets_min=1, packets_1024=1
		{3, 7}, // size=1536, packets_min=2, packets_1024=2
		{6, 7}, // size=3072, packets_min=3, packets_1024=3
	}

	for _, c := range cases {
		got := pickBlockShift(c.sectorCount * 512)
		require.Equalf(t, c.wantShift, got, "sectorCount=%d", c.sectorCount)
	}
}

func TestPickBlockShiftFallsBackToThree(t *testing.T) {
	// 2850 bytes needs 2 packets at shift 3's 1440-byte cap but 3 packets
	// at every other candidate cap, so only shift 3 hits the minimum.
	got := pickBlockShift(2850)
	require.Equal(t, uint8(3), got)
}

func TestPickBlockShiftTieBreaksToLargestBlockSize(t *testing.T) {
	// A one-sector read (512 bytes) fits in a single packet at every
	// candidate shift, so the largest block size (shift 7) wins.
	got := pickBlockShift(512)
	require.Equal(t, uint8(7), got)
}
