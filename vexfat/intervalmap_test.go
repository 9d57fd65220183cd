package vexfat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntervalMapLookupDispatchesToOwningProvider(t *testing.T) {
	m := newIntervalMap()
	a := &blobProvider{data: []byte("a-region")}
	b := &blobProvider{data: []byte("b-region")}
	m.add(0, 10, a)
	m.add(10, 20, b)
	m.finalize()

	provider, rel, ok := m.lookup(0)
	require.True(t, ok)
	require.Same(t, a, provider)
	require.Equal(t, uint32(0), rel)

	provider, rel, ok = m.lookup(15)
	require.True(t, ok)
	require.Same(t, b, provider)
	require.Equal(t, uint32(5), rel)
}

func TestIntervalMapLookupGapIsUnmapped(t *testing.T) {
	m := newIntervalMap()
	m.add(0, 5, &blobProvider{})
	m.add(10, 15, &blobProvider{})
	m.finalize()

	_, _, ok := m.lookup(7)
	require.False(t, ok)
}

func TestBlobProviderZeroPadsPastEnd(t *testing.T) {
	p := &blobProvider{data: []byte{1, 2, 3}}
	buf, err := p.readSector(0)
	require.NoError(t, err)
	require.Len(t, buf, BytesPerSector)
	require.Equal(t, byte(1), buf[0])
	require.Equal(t, byte(0), buf[BytesPerSector-1])
}
