package blockstream_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vexfatbd/udpbd-server/blockstream"
	"github.com/vexfatbd/udpbd-server/vexfat"
)

func newTestStream(t *testing.T) *blockstream.BlockStream {
	t.Helper()
	hostDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(hostDir, "FILE.BIN"), []byte("abcdefgh"), 0o644))

	entries := []vexfat.Entry{{Path: "FILE.BIN", IsFile: true, Size: 8}}
	image, err := vexfat.New(hostDir, entries, "")
	require.NoError(t, err)
	t.Cleanup(image.Close)

	return blockstream.New(image)
}

func TestSeekOutOfRangeFails(t *testing.T) {
	bs := newTestStream(t)
	err := bs.Seek(1 << 30)
	require.Error(t, err)
}

func TestReadAdvancesPositionAcrossSectors(t *testing.T) {
	bs := newTestStream(t)
	require.NoError(t, bs.Seek(0))

	buf := make([]byte, vexfat.BytesPerSector*2)
	n, err := bs.Read(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
}

func TestReadPastEndOfVolumeErrors(t *testing.T) {
	bs := newTestStream(t)
	require.NoError(t, bs.Seek(0))

	// A read request bigger than the whole volume must fail rather than
	// silently truncate.
	buf := make([]byte, (vexfat.BytesPerCluster)*1000)
	_, err := bs.Read(buf)
	require.Error(t, err)
}

func TestReadUnalignedOffsetBuffersOneSector(t *testing.T) {
	bs := newTestStream(t)
	require.NoError(t, bs.Seek(0))

	first := make([]byte, 10)
	_, err := bs.Read(first)
	require.NoError(t, err)

	second := make([]byte, vexfat.BytesPerSector-10)
	_, err = bs.Read(second)
	require.NoError(t, err)

	// The two reads together cover exactly sector 0; the first of them must
	// match the start of a single full read of that sector.
	require.NoError(t, bs.Seek(0))
	whole := make([]byte, vexfat.BytesPerSector)
	_, err = bs.Read(whole)
	require.NoError(t, err)
	require.Equal(t, whole[:10], first)
}

func TestWriteDiscardsButAdvancesPosition(t *testing.T) {
	bs := newTestStream(t)
	require.NoError(t, bs.Seek(0))

	n, err := bs.Write(make([]byte, 100))
	require.NoError(t, err)
	require.Equal(t, 100, n)
}
