package protocol

import (
	"encoding/binary"
	"fmt"
)

// MaxUDPPayload is the largest datagram this protocol ever sends or
// expects.
const MaxUDPPayload = 1472

// MaxRdmaPayload is the largest payload an Rdma packet can carry once the
// 6-byte Header+BlockType prefix is accounted for.
const MaxRdmaPayload = MaxUDPPayload - HeaderSize - BlockTypeSize

// InfoReply answers an Info request with the volume's sector geometry.
type InfoReply struct {
	Header      Header
	SectorSize  uint32
	SectorCount uint32
}

// Encode renders the 10-byte wire form of an InfoReply.
func (r InfoReply) Encode() []byte {
	buf := make([]byte, HeaderSize+8)
	h := r.Header.Encode()
	copy(buf, h[:])
	binary.LittleEndian.PutUint32(buf[HeaderSize:], r.SectorSize)
	binary.LittleEndian.PutUint32(buf[HeaderSize+4:], r.SectorCount)
	return buf
}

// ReadWriteRequest is the shape shared by Read and Write command packets.
type ReadWriteRequest struct {
	Header      Header
	SectorNr    uint32
	SectorCount uint16
}

// DecodeReadWriteRequest parses an 8-byte ReadWriteRequest following a
// decoded header.
func DecodeReadWriteRequest(header Header, buf []byte) (ReadWriteRequest, error) {
	if len(buf) < HeaderSize+6 {
		return ReadWriteRequest{}, fmt.Errorf("read/write request needs %d bytes, got %d", HeaderSize+6, len(buf))
	}
	return ReadWriteRequest{
		Header:      header,
		SectorNr:    binary.LittleEndian.Uint32(buf[HeaderSize:]),
		SectorCount: binary.LittleEndian.Uint16(buf[HeaderSize+4:]),
	}, nil
}

// Rdma is a bulk-transfer packet: a Header, the BlockType describing its
// payload's granularity, and up to MaxRdmaPayload bytes of data.
type Rdma struct {
	Header    Header
	BlockType BlockType
	Data      []byte
}

// Encode renders the Rdma packet's wire form, sized to exactly fit Data.
func (r Rdma) Encode() []byte {
	buf := make([]byte, HeaderSize+BlockTypeSize+len(r.Data))
	h := r.Header.Encode()
	copy(buf, h[:])
	bt := r.BlockType.Encode()
	copy(buf[HeaderSize:], bt[:])
	copy(buf[HeaderSize+BlockTypeSize:], r.Data)
	return buf
}

// DecodeRdma parses an Rdma packet following a decoded header.
func DecodeRdma(header Header, buf []byte) (Rdma, error) {
	if len(buf) < HeaderSize+BlockTypeSize {
		return Rdma{}, fmt.Errorf("rdma packet needs at least %d bytes, got %d", HeaderSize+BlockTypeSize, len(buf))
	}
	bt, err := DecodeBlockType(buf[HeaderSize:])
	if err != nil {
		return Rdma{}, err
	}
	data := make([]byte, len(buf)-HeaderSize-BlockTypeSize)
	copy(data, buf[HeaderSize+BlockTypeSize:])
	return Rdma{Header: header, BlockType: bt, Data: data}, nil
}

// WriteReply acknowledges a completed write session.
type WriteReply struct {
	Header Header
	Result int32
}

// Encode renders the 6-byte wire form of a WriteReply.
func (r WriteReply) Encode() []byte {
	buf := make([]byte, HeaderSize+4)
	h := r.Header.Encode()
	copy(buf, h[:])
	binary.LittleEndian.PutUint32(buf[HeaderSize:], uint32(r.Result))
	return buf
}
