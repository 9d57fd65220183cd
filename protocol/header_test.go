package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vexfatbd/udpbd-server/protocol"
)

func TestHeaderRoundTrip(t *testing.T) {
	cases := []protocol.Header{
		{Command: protocol.CmdInfo, CommandID: 0, CommandPkt: 0},
		{Command: protocol.CmdReadRdma, CommandID: 7, CommandPkt: 255},
		{Command: protocol.CmdWriteDone, CommandID: 3, CommandPkt: 4},
	}

	for _, want := range cases {
		wire := want.Encode()
		got, err := protocol.DecodeHeader(wire[:])
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestDecodeHeaderTooShort(t *testing.T) {
	_, err := protocol.DecodeHeader([]byte{0x01})
	require.Error(t, err)
}

func TestInfoRequestDecodesToCommandZero(t *testing.T) {
	// An Info probe has cmd=0, id=0, pkt=0.
	header, err := protocol.DecodeHeader([]byte{0x00, 0x00})
	require.NoError(t, err)
	require.Equal(t, uint8(protocol.CmdInfo), header.Command)
	require.Equal(t, uint8(0), header.CommandID)
	require.Equal(t, uint8(0), header.CommandPkt)
}
