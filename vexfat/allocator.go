package vexfat

import (
	"github.com/boljen/go-bitmap"

	"github.com/vexfatbd/udpbd-server/internal/vexerr"
)

// allocator hands out contiguous runs of clusters in first-fit order during
// image construction. Clusters are numbered starting at FirstValidCluster
// rather than 0.
type allocator struct {
	used       bitmap.Bitmap
	totalUnits uint32
	nextHint   uint32
}

func newAllocator(totalClusters uint32) *allocator {
	return &allocator{
		used:       bitmap.New(int(totalClusters)),
		totalUnits: totalClusters,
	}
}

// allocateContiguous allocates the first available run of count clusters and
// returns the index (cluster-space, i.e. already offset by
// FirstValidCluster) of its first cluster.
func (a *allocator) allocateContiguous(count uint32) (uint32, error) {
	if count == 0 {
		return 0, vexerr.ErrOutOfRange.WithMessage("cannot allocate zero clusters")
	}

	runStart, runLen := uint32(0), uint32(0)
	for i := a.nextHint; i < a.totalUnits; i++ {
		if a.used.Get(int(i)) {
			runLen = 0
			continue
		}
		if runLen == 0 {
			runStart = i
		}
		runLen++
		if runLen == count {
			for j := runStart; j < runStart+count; j++ {
				a.used.Set(int(j), true)
			}
			a.nextHint = runStart + count
			return runStart + FirstValidCluster, nil
		}
	}

	return 0, vexerr.ErrGeometryOverflow.WithMessage("not enough clusters for tree")
}

// isUsed reports whether the cluster at zero-based heap index i (i.e.
// cluster i+FirstValidCluster) has been allocated.
func (a *allocator) isUsed(i uint32) bool {
	return a.used.Get(int(i))
}
