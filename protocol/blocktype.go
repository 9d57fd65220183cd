package protocol

import (
	"encoding/binary"
	"fmt"
)

// BlockTypeSize is the on-wire size of a BlockType in bytes.
const BlockTypeSize = 4

// BlockType carries the negotiated transfer granularity for one RDMA
// packet: the block-size exponent and how many blocks of that size the
// payload holds.
type BlockType struct {
	Shift      uint8
	BlockCount uint16
}

// BlockSize returns the size in bytes of one block at this BlockType's
// shift: 1 << (shift+2).
func (bt BlockType) BlockSize() int { return 1 << (bt.Shift + 2) }

// Encode renders the BlockType as its 4-byte little-endian wire form:
// shift in bits 0..3, block count in bits 4..12, bits 13..31 reserved.
func (bt BlockType) Encode() [BlockTypeSize]byte {
	value := uint32(bt.Shift&0x0F) | (uint32(bt.BlockCount&0x1FF) << 4)
	var buf [BlockTypeSize]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	return buf
}

// DecodeBlockType parses the first 4 bytes of buf as a BlockType.
func DecodeBlockType(buf []byte) (BlockType, error) {
	if len(buf) < BlockTypeSize {
		return BlockType{}, fmt.Errorf("block type needs %d bytes, got %d", BlockTypeSize, len(buf))
	}
	value := binary.LittleEndian.Uint32(buf)
	return BlockType{
		Shift:      uint8(value & 0x0F),
		BlockCount: uint16((value >> 4) & 0x1FF),
	}, nil
}

// shiftPayloadCap is the maximum RDMA payload, in bytes, achievable at each
// candidate block shift: floor(1466 / block_size) whole blocks per packet.
// Only these four shifts are ever selected by pickBlockShift in server.go.
var shiftPayloadCap = map[uint8]int{
	7: 1024,
	6: 1280,
	5: 1408,
	3: 1440,
}
