package vexfat

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildFatBytesReservesFirstTwoClusters(t *testing.T) {
	geom := computeGeometry(8, 1)
	fatBytes := buildFatBytes(geom, nil)

	require.Equal(t, uint32(0xFFFFFFF8), binary.LittleEndian.Uint32(fatBytes[0:4]))
	require.Equal(t, uint32(ClusterEndOfChain), binary.LittleEndian.Uint32(fatBytes[4:8]))
}

func TestBuildFatBytesChainsContiguousRun(t *testing.T) {
	geom := computeGeometry(8, 1)
	chains := []chain{{first: FirstValidCluster, count: 3}}
	fatBytes := buildFatBytes(geom, chains)

	entry := func(cluster uint32) uint32 {
		return binary.LittleEndian.Uint32(fatBytes[cluster*4 : cluster*4+4])
	}

	require.Equal(t, FirstValidCluster+1, int(entry(FirstValidCluster)))
	require.Equal(t, FirstValidCluster+2, int(entry(FirstValidCluster+1)))
	require.Equal(t, uint32(ClusterEndOfChain), entry(FirstValidCluster+2))
}
