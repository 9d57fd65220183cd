package vexfat

import "encoding/binary"

// buildFatBytes renders the single FAT region: cluster 0 holds the media
// descriptor, cluster 1 the end-of-chain marker reserved by the exFAT
// specification, and every allocated chain links its clusters contiguously,
// terminated by ClusterEndOfChain. Directories and files both set
// NoFatChain on their Stream Extension entry (dirent.go) since every
// allocation here is already a single contiguous run, but the FAT is filled
// in regardless so a driver that ignores the flag still gets a correct walk.
func buildFatBytes(geom Geometry, chains []chain) []byte {
	buf := make([]byte, geom.FatLength*BytesPerSector)

	binary.LittleEndian.PutUint32(buf[0:4], 0xFFFFFFF8)
	binary.LittleEndian.PutUint32(buf[4:8], ClusterEndOfChain)

	for _, c := range chains {
		for i := uint32(0); i < c.count; i++ {
			cluster := c.first + i
			offset := cluster * 4
			next := uint32(ClusterEndOfChain)
			if i+1 < c.count {
				next = cluster + 1
			}
			binary.LittleEndian.PutUint32(buf[offset:offset+4], next)
		}
	}

	return buf
}
