package vexfat

import "sort"

// sectorProvider serves one 512-byte sector at a position relative to the
// start of whatever interval it was registered for.
type sectorProvider interface {
	readSector(relSector uint32) ([]byte, error)
}

type interval struct {
	start    uint32 // inclusive
	end      uint32 // exclusive
	provider sectorProvider
}

// intervalMap dispatches an absolute LBA to the provider that owns it: a
// sorted array of intervals with binary-search lookup. Gaps
// between intervals (alignment padding) are legal and resolve to a zero
// sector rather than an error.
type intervalMap struct {
	intervals []interval
}

func newIntervalMap() *intervalMap {
	return &intervalMap{}
}

func (m *intervalMap) add(start, end uint32, p sectorProvider) {
	m.intervals = append(m.intervals, interval{start: start, end: end, provider: p})
}

// finalize sorts intervals by start sector, required before lookup.
func (m *intervalMap) finalize() {
	sort.Slice(m.intervals, func(i, j int) bool { return m.intervals[i].start < m.intervals[j].start })
}

// lookup returns the provider owning lba and the sector offset relative to
// its interval's start, or ok=false if lba falls in an unmapped gap.
func (m *intervalMap) lookup(lba uint32) (provider sectorProvider, relSector uint32, ok bool) {
	i := sort.Search(len(m.intervals), func(i int) bool { return m.intervals[i].end > lba })
	if i >= len(m.intervals) || m.intervals[i].start > lba {
		return nil, 0, false
	}
	iv := m.intervals[i]
	return iv.provider, lba - iv.start, true
}

// blobProvider serves sectors out of a fixed in-memory byte slice, zero-
// padding any sector that runs past the end of data.
type blobProvider struct {
	data []byte
}

func (p *blobProvider) readSector(relSector uint32) ([]byte, error) {
	buf := make([]byte, BytesPerSector)
	start := int64(relSector) * BytesPerSector
	if start >= int64(len(p.data)) {
		return buf, nil
	}
	end := start + BytesPerSector
	if end > int64(len(p.data)) {
		end = int64(len(p.data))
	}
	copy(buf, p.data[start:end])
	return buf, nil
}

// fileProvider serves sectors by reading through the shared host-file
// handle cache; reads past the file's real size are zero-filled (see
// fileCache.readAt).
type fileProvider struct {
	relPath string
	cache   *fileCache
}

func (p *fileProvider) readSector(relSector uint32) ([]byte, error) {
	buf := make([]byte, BytesPerSector)
	offset := int64(relSector) * BytesPerSector
	if err := p.cache.readAt(p.relPath, offset, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
