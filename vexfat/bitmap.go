package vexfat

// buildAllocationBitmapBytes renders the Allocation Bitmap region content:
// one bit per cluster starting at FirstValidCluster, LSB of byte 0
// corresponding to that first cluster. The bitmap's own
// clusters and every other allocated cluster all come from the same
// allocator, so by the time this runs every permanent allocation has already
// happened and only trailing slack clusters remain clear.
func buildAllocationBitmapBytes(alloc *allocator, totalClusters uint32) []byte {
	buf := make([]byte, (totalClusters+7)/8)
	for i := uint32(0); i < totalClusters; i++ {
		if alloc.isUsed(i) {
			buf[i/8] |= 1 << (i % 8)
		}
	}
	return buf
}
