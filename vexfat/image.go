package vexfat

import (
	"log"
	"math/rand"
	"time"

	"github.com/vexfatbd/udpbd-server/internal/vexerr"
)

// clustersPerSlackUnit is the allowance of three slack clusters per
// directory and per file, covering metadata growth the walker's snapshot
// size didn't account for.
const clustersPerSlackUnit = 3

// Image is an immutable, read-only exFAT volume synthesized from a host
// directory tree. Once New returns, ReadSector never mutates any state
// other than the host-file handle cache.
type Image struct {
	geometry Geometry
	cache    *fileCache
	ivmap    *intervalMap
}

// SectorCount returns the synthesized volume's total sector count, the
// value the protocol layer reports in InfoReply.
func (img *Image) SectorCount() uint32 { return img.geometry.SectorCount }

// New lays out a virtual exFAT volume over hostRoot containing entries
// (already sorted ascending by Path), optionally nested under a single
// prefixName subdirectory.
func New(hostRoot string, entries []Entry, prefixName string) (*Image, error) {
	root := buildTree(entries, prefixName)
	if err := validateTree(root); err != nil {
		return nil, vexerr.ErrImageBuildFailed.WrapError(err)
	}

	dirs, files := countDirsAndFiles(root)
	dataClusters := sumDataClusters(root)
	slack := uint32(clustersPerSlackUnit * (dirs + files))

	upcaseBytes := upcaseTableBytes()
	upcaseClusters := ClustersForBytes(int64(len(upcaseBytes)))

	total := dataClusters + slack + upcaseClusters
	var bitmapClusters uint32
	for i := 0; i < 2; i++ {
		bitmapClusters = ClustersForBytes(int64((total + 7) / 8))
		total = dataClusters + slack + upcaseClusters + bitmapClusters
	}
	if total%2 != 0 {
		total++
	}

	serial := uint32(rand.New(rand.NewSource(time.Now().UnixNano())).Int63())
	geometry := computeGeometry(total, serial)

	alloc := newAllocator(total)

	bitmapFirst, err := alloc.allocateContiguous(bitmapClusters)
	if err != nil {
		return nil, vexerr.ErrImageBuildFailed.WrapError(err)
	}
	upcaseFirst, err := alloc.allocateContiguous(upcaseClusters)
	if err != nil {
		return nil, vexerr.ErrImageBuildFailed.WrapError(err)
	}

	if err := allocateAndRender(root, alloc); err != nil {
		return nil, vexerr.ErrImageBuildFailed.WrapError(err)
	}
	geometry.RootDirectoryCluster = root.firstCluster

	upcaseChecksum := upcaseTableChecksum(upcaseBytes)
	bitmapEntry := buildAllocationBitmapEntry(bitmapFirst, uint64(total+7)/8)
	upcaseEntry := buildUpCaseTableEntry(upcaseChecksum, upcaseFirst, uint64(len(upcaseBytes)))
	root.dirBytes = append(append(append([]byte{}, bitmapEntry...), upcaseEntry...), root.dirBytes...)

	chains := collectChains(root)
	chains = append(chains, chain{bitmapFirst, bitmapClusters}, chain{upcaseFirst, upcaseClusters})
	fatBytes := buildFatBytes(geometry, chains)

	bitmapBytes := buildAllocationBitmapBytes(alloc, total)

	mainBoot, _ := buildBootRegion(geometry)
	bootBlob := concatSectors(mainBoot)

	cache := newFileCache(hostRoot)
	ivmap := newIntervalMap()

	// The backup boot region is byte-identical to the main one.
	ivmap.add(0, bootRegionSectors, &blobProvider{data: bootBlob})
	ivmap.add(bootRegionSectors, 2*bootRegionSectors, &blobProvider{data: bootBlob})
	ivmap.add(geometry.FatOffset, geometry.FatOffset+geometry.FatLength, &blobProvider{data: fatBytes})

	addChainInterval(ivmap, geometry, bitmapFirst, bitmapClusters, &blobProvider{data: bitmapBytes})
	addChainInterval(ivmap, geometry, upcaseFirst, upcaseClusters, &blobProvider{data: upcaseBytes})

	walkDirs(root, func(n *node) {
		addChainInterval(ivmap, geometry, n.firstCluster, n.clusterCount, &blobProvider{data: n.dirBytes})
	})
	walkFiles(root, func(n *node) {
		addChainInterval(ivmap, geometry, n.firstCluster, n.clusterCount, &fileProvider{relPath: n.hostPath, cache: cache})
	})

	ivmap.finalize()

	return &Image{geometry: geometry, cache: cache, ivmap: ivmap}, nil
}

func sumDataClusters(n *node) uint32 {
	var total uint32
	walkDirs(n, func(d *node) { total += dataClusterEstimate(d) })
	walkFiles(n, func(f *node) { total += dataClusterEstimate(f) })
	return total
}

func addChainInterval(ivmap *intervalMap, geom Geometry, firstCluster, count uint32, p sectorProvider) {
	start, err := geom.ClusterToSector(firstCluster)
	if err != nil {
		log.Printf("vexfat: %v", err)
		return
	}
	ivmap.add(start, start+count*SectorsPerCluster, p)
}

// buildBootRegion renders the 12 sectors of one boot region (main or
// backup, they're byte-identical) and the checksum it embeds in sector 11.
func buildBootRegion(geom Geometry) ([][]byte, uint32) {
	sectors := make([][]byte, 0, bootRegionSectors)
	sectors = append(sectors, buildBootSectorBytes(geom))
	for i := 0; i < 8; i++ {
		sectors = append(sectors, buildExtendedBootSectorBytes())
	}
	sectors = append(sectors, buildOemParametersSectorBytes())
	sectors = append(sectors, make([]byte, BytesPerSector)) // reserved sector

	checksum := buildBootRegionChecksum(sectors)
	sectors = append(sectors, buildChecksumSectorBytes(checksum))
	return sectors, checksum
}

func concatSectors(sectors [][]byte) []byte {
	buf := make([]byte, 0, len(sectors)*BytesPerSector)
	for _, s := range sectors {
		buf = append(buf, s...)
	}
	return buf
}

// ReadSector renders exactly one 512-byte sector. lba must be in
// [0, SectorCount()); callers (blockstream.go) are responsible for that
// precondition.
func (img *Image) ReadSector(lba uint32) ([]byte, error) {
	if lba >= img.geometry.SectorCount {
		return nil, vexerr.ErrOutOfRange.WithMessage("lba past end of volume")
	}

	provider, rel, ok := img.ivmap.lookup(lba)
	if !ok {
		return make([]byte, BytesPerSector), nil
	}

	buf, err := provider.readSector(rel)
	if err != nil {
		log.Printf("vexfat: host read failed at lba %d: %v", lba, vexerr.ErrHostIO.WrapError(err))
		return make([]byte, BytesPerSector), nil
	}
	return buf, nil
}

// Close releases every open host-file handle.
func (img *Image) Close() {
	img.cache.closeAll()
}
