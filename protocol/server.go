package protocol

import (
	"log"
	"net"

	"golang.org/x/sys/unix"

	"github.com/vexfatbd/udpbd-server/blockstream"
	"github.com/vexfatbd/udpbd-server/internal/vexerr"
	"github.com/vexfatbd/udpbd-server/vexfat"
)

// Port is the fixed UDPBD port, 0xBDBD.
const Port = 48573

// writeSession tracks the single in-flight write the server accepts at a
// time; UDPBD serves one client, so one slot suffices.
type writeSession struct {
	open           bool
	bytesRemaining uint64
	valid          bool
	commandID      uint8
}

// Server owns the UDP socket and drives the command-response loop over a
// single vexfat.Image.
type Server struct {
	conn   *net.UDPConn
	stream *blockstream.BlockStream
	image  *vexfat.Image

	session writeSession
}

// Listen binds the UDPBD socket at 0.0.0.0:Port with broadcast enabled, so
// unsolicited Info probes sent to the broadcast address are still answered.
func Listen(image *vexfat.Image) (*Server, error) {
	return ListenAt(&net.UDPAddr{IP: net.IPv4zero, Port: Port}, image)
}

// ListenAt is Listen with an explicit address, so callers (the CLI's
// --listen override, tests) can bind an ephemeral port instead of the
// well-known UDPBD port.
func ListenAt(addr *net.UDPAddr, image *vexfat.Image) (*Server, error) {
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, vexerr.ErrBindFailed.WrapError(err)
	}

	if err := enableBroadcast(conn); err != nil {
		log.Printf("protocol: could not enable SO_BROADCAST: %v", err)
	}

	return &Server{
		conn:   conn,
		stream: blockstream.New(image),
		image:  image,
	}, nil
}

// enableBroadcast sets SO_BROADCAST on the underlying socket via its raw
// file descriptor, since net.UDPConn exposes no portable way to do so.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// Close releases the UDP socket and the image's host-file handles.
func (s *Server) Close() error {
	s.image.Close()
	return s.conn.Close()
}

// LocalAddr returns the address the server's socket is bound to, mainly
// useful when it was opened on an ephemeral port (ListenAt with port 0).
func (s *Server) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Run blocks forever, serving one request at a time. It returns only if
// receiving from the socket fails unrecoverably.
func (s *Server) Run() error {
	buf := make([]byte, MaxUDPPayload)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		s.handlePacket(buf[:n], addr)
	}
}

func (s *Server) handlePacket(packet []byte, addr *net.UDPAddr) {
	header, err := DecodeHeader(packet)
	if err != nil {
		log.Printf("protocol: %v", vexerr.ErrProtocolDecode.WrapError(err))
		return
	}

	// Any command other than WriteRdma arriving while a write session is
	// open aborts that session silently.
	if header.Command != CmdWriteRdma {
		s.session = writeSession{}
	}

	switch header.Command {
	case CmdInfo:
		s.handleInfo(header, addr)
	case CmdRead:
		s.handleRead(header, packet, addr)
	case CmdWrite:
		s.handleWrite(header, packet, addr)
	case CmdWriteRdma:
		s.handleWriteRdma(header, packet, addr)
	default:
		log.Printf("protocol: %v: command %#x", vexerr.ErrProtocolDecode, header.Command)
	}
}

func (s *Server) send(data []byte, addr *net.UDPAddr) {
	if _, err := s.conn.WriteToUDP(data, addr); err != nil {
		log.Printf("protocol: %v", vexerr.ErrSendFailed.WrapError(err))
	}
}

func (s *Server) handleInfo(header Header, addr *net.UDPAddr) {
	reply := InfoReply{
		Header:      Header{Command: CmdInfoReply, CommandID: header.CommandID, CommandPkt: 1},
		SectorSize:  vexfat.BytesPerSector,
		SectorCount: s.image.SectorCount(),
	}
	s.send(reply.Encode(), addr)
}

func (s *Server) handleRead(header Header, packet []byte, addr *net.UDPAddr) {
	req, err := DecodeReadWriteRequest(header, packet)
	if err != nil {
		log.Printf("protocol: %v", vexerr.ErrProtocolDecode.WrapError(err))
		return
	}

	seekErr := s.stream.Seek(req.SectorNr)

	shift := pickBlockShift(uint64(req.SectorCount) * vexfat.BytesPerSector)
	blockSize := 1 << (shift + 2)
	blocksPerPacket := uint32(MaxRdmaPayload / blockSize)
	blocksPerSector := uint32(vexfat.BytesPerSector / blockSize)

	blocksLeft := uint32(req.SectorCount) * blocksPerSector
	commandPkt := uint8(1)

	for blocksLeft > 0 {
		count := blocksLeft
		if count > blocksPerPacket {
			count = blocksPerPacket
		}

		payload := make([]byte, int(count)*blockSize)
		if seekErr == nil {
			n, err := s.stream.Read(payload)
			if err != nil {
				log.Printf("protocol: %v", vexerr.ErrHostIO.WrapError(err))
				for i := n; i < len(payload); i++ {
					payload[i] = 0
				}
			}
		}

		rdma := Rdma{
			Header:    Header{Command: CmdReadRdma, CommandID: header.CommandID, CommandPkt: commandPkt},
			BlockType: BlockType{Shift: shift, BlockCount: uint16(count)},
			Data:      payload,
		}
		s.send(rdma.Encode(), addr)

		blocksLeft -= count
		commandPkt++
	}
}

func (s *Server) handleWrite(header Header, packet []byte, addr *net.UDPAddr) {
	req, err := DecodeReadWriteRequest(header, packet)
	if err != nil {
		log.Printf("protocol: %v", vexerr.ErrProtocolDecode.WrapError(err))
		return
	}

	seekErr := s.stream.Seek(req.SectorNr)
	s.session = writeSession{
		open:           true,
		bytesRemaining: uint64(req.SectorCount) * vexfat.BytesPerSector,
		valid:          seekErr == nil,
		commandID:      header.CommandID,
	}
}

func (s *Server) handleWriteRdma(header Header, packet []byte, addr *net.UDPAddr) {
	rdma, err := DecodeRdma(header, packet)
	if err != nil {
		log.Printf("protocol: %v", vexerr.ErrProtocolDecode.WrapError(err))
		return
	}

	if !s.session.open {
		return
	}

	size := uint64(rdma.BlockType.BlockCount) * uint64(rdma.BlockType.BlockSize())
	if s.session.valid {
		if _, err := s.stream.Write(rdma.Data); err != nil {
			log.Printf("protocol: %v", vexerr.ErrHostIO.WrapError(err))
		}
	}

	if size >= s.session.bytesRemaining {
		s.session.bytesRemaining = 0
	} else {
		s.session.bytesRemaining -= size
	}

	if s.session.bytesRemaining == 0 {
		// command_pkt is stamped with command_id+1 rather than the
		// response's own command_pkt sequence; odd, but it's what the
		// OPL client is known to accept.
		reply := WriteReply{
			Header: Header{Command: CmdWriteDone, CommandID: header.CommandID, CommandPkt: header.CommandID + 1},
			Result: 0,
		}
		s.send(reply.Encode(), addr)
		s.session = writeSession{}
	}
}

// pickBlockShift chooses the block-size exponent that minimizes the number
// of RDMA packets needed to move size bytes, breaking ties toward the
// larger block size. Shift 3's 1440-byte payload cap
// is the largest of the four candidates, so it alone defines the true
// packet-count minimum; the other shifts are only used when they still hit
// that same minimum, since a larger block size means less PS2-side DMA
// setup overhead.
func pickBlockShift(size uint64) uint8 {
	packetsAt := func(payloadCap int) uint64 {
		return (size + uint64(payloadCap) - 1) / uint64(payloadCap)
	}

	minPackets := packetsAt(shiftPayloadCap[3])
	for _, shift := range []uint8{7, 6, 5} {
		if packetsAt(shiftPayloadCap[shift]) == minPackets {
			return shift
		}
	}
	return 3
}
