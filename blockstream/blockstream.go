// Package blockstream provides a sector-addressed cursor over a
// vexfat.Image, the thin seek/read abstraction the protocol server drives.
// It never issues host I/O directly: every sector it
// needs comes from a single call to Image.ReadSector, which in turn only
// touches the host filesystem for sectors that fall inside a mapped file's
// cluster run.
package blockstream

import (
	"fmt"
	"io"

	"github.com/vexfatbd/udpbd-server/vexfat"
)

// BlockStream tracks a byte position within a synthesized volume and
// fulfills reads by buffering one sector at a time.
type BlockStream struct {
	image       *vexfat.Image
	sectorCount uint32
	position    uint64

	bufSector uint32
	buf       []byte
	bufValid  bool
}

// New wraps image in a BlockStream positioned at sector 0.
func New(image *vexfat.Image) *BlockStream {
	return &BlockStream{
		image:       image,
		sectorCount: image.SectorCount(),
	}
}

// Seek positions the cursor at the start of the given sector. It fails only
// if sector is at or past the end of the volume.
func (bs *BlockStream) Seek(sector uint32) error {
	if sector >= bs.sectorCount {
		return fmt.Errorf("sector %d not in range [0, %d)", sector, bs.sectorCount)
	}
	bs.position = uint64(sector) * vexfat.BytesPerSector
	bs.bufValid = false
	return nil
}

// Read fills buf completely, synthesizing sectors on demand and advancing
// the cursor. It fails if the read would run past the end of the volume.
func (bs *BlockStream) Read(buf []byte) (int, error) {
	endPosition := bs.position + uint64(len(buf))
	if endPosition > uint64(bs.sectorCount)*vexfat.BytesPerSector {
		return 0, io.ErrUnexpectedEOF
	}

	written := 0
	for written < len(buf) {
		sector := uint32(bs.position / vexfat.BytesPerSector)
		offsetInSector := int(bs.position % vexfat.BytesPerSector)

		if err := bs.loadSector(sector); err != nil {
			return written, err
		}

		n := copy(buf[written:], bs.buf[offsetInSector:])
		written += n
		bs.position += uint64(n)
	}
	return written, nil
}

// Write discards its payload: the synthesized volume has no mutation
// semantics. The cursor still advances so a write session's byte
// accounting stays correct.
func (bs *BlockStream) Write(buf []byte) (int, error) {
	bs.position += uint64(len(buf))
	bs.bufValid = false
	return len(buf), nil
}

func (bs *BlockStream) loadSector(sector uint32) error {
	if bs.bufValid && bs.bufSector == sector {
		return nil
	}
	data, err := bs.image.ReadSector(sector)
	if err != nil {
		return err
	}
	bs.buf = data
	bs.bufSector = sector
	bs.bufValid = true
	return nil
}
