// Package vexfat synthesizes a read-only exFAT volume on the fly from a host
// directory tree. It never materializes the full image; ReadSector renders
// exactly one 512-byte sector at a time from boot-region templates, FAT and
// bitmap blobs computed at construction, prebuilt directory-entry blobs, or
// pass-through reads of the mapped host files.
package vexfat

import "github.com/vexfatbd/udpbd-server/internal/vexerr"

const (
	// BytesPerSectorShift fixes the sector size at 512 bytes.
	BytesPerSectorShift = 9
	BytesPerSector      = 1 << BytesPerSectorShift

	// SectorsPerClusterShift fixes the cluster size at 1 MiB.
	SectorsPerClusterShift = 11
	SectorsPerCluster      = 1 << SectorsPerClusterShift
	BytesPerCluster        = SectorsPerCluster * BytesPerSector

	// DirentSize is the size of one on-disk exFAT directory entry.
	DirentSize = 32

	// bootRegionSectors is the boot sector + 8 extended boot sectors +
	// OEM parameters + reserved + checksum sector.
	bootRegionSectors = 12

	// firstFatSector is the sector offset of the first (only) FAT, chosen to
	// be exactly the minimum the exFAT spec allows: right after both boot
	// regions.
	firstFatSector = 2 * bootRegionSectors

	// Reserved cluster indices; clusters are numbered starting at 2.
	FirstValidCluster = 2
	ClusterFree       = 0
	ClusterBad        = 0xFFFFFFF7
	ClusterEndOfChain = 0xFFFFFFFF
)

// Geometry holds every size and offset needed to lay out and address the
// synthesized volume. Offsets and lengths are in sectors; ClusterCount and
// RootDirectoryCluster are in clusters.
type Geometry struct {
	ClusterCount         uint32
	FatOffset            uint32
	FatLength            uint32
	ClusterHeapOffset    uint32
	SectorCount          uint32
	VolumeSerialNumber   uint32
	RootDirectoryCluster uint32
}

// alignUp rounds a up to the next multiple of to (to must be a power of 2).
func alignUp(a, to uint32) uint32 {
	return (a + to - 1) &^ (to - 1)
}

func ceilDiv(a, b uint32) uint32 {
	return (a + b - 1) / b
}

// computeGeometry derives offsets from a cluster count. The FAT holds one
// 4-byte entry per cluster plus the two reserved entries for the media
// descriptor and end-of-chain marker, since FAT entries are indexed by
// cluster number and clusters start at 2. The cluster heap starts at the
// next cluster-aligned sector after the FAT.
func computeGeometry(clusterCount uint32, serial uint32) Geometry {
	fatLength := ceilDiv((clusterCount+FirstValidCluster)*4, BytesPerSector)
	clusterHeapOffset := alignUp(firstFatSector+fatLength, SectorsPerCluster)
	sectorCount := clusterHeapOffset + clusterCount*SectorsPerCluster

	return Geometry{
		ClusterCount:       clusterCount,
		FatOffset:          firstFatSector,
		FatLength:          fatLength,
		ClusterHeapOffset:  clusterHeapOffset,
		SectorCount:        sectorCount,
		VolumeSerialNumber: serial,
	}
}

// ClusterToSector converts a cluster index (>= 2) to its first LBA.
func (g Geometry) ClusterToSector(cluster uint32) (uint32, error) {
	if cluster < FirstValidCluster || cluster >= FirstValidCluster+g.ClusterCount {
		return 0, vexerr.ErrOutOfRange.WithMessage("cluster index out of range")
	}
	return g.ClusterHeapOffset + (cluster-FirstValidCluster)*SectorsPerCluster, nil
}

// ClustersForBytes returns the number of whole clusters needed to hold size
// bytes (at least one, even for a zero-byte file).
func ClustersForBytes(size int64) uint32 {
	if size <= 0 {
		return 1
	}
	return uint32((size + BytesPerCluster - 1) / BytesPerCluster)
}
