package vexfat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocatorFirstFitContiguous(t *testing.T) {
	alloc := newAllocator(10)

	first, err := alloc.allocateContiguous(4)
	require.NoError(t, err)
	require.Equal(t, uint32(FirstValidCluster), first)

	second, err := alloc.allocateContiguous(3)
	require.NoError(t, err)
	require.Equal(t, uint32(FirstValidCluster+4), second)
}

func TestAllocatorExhaustion(t *testing.T) {
	alloc := newAllocator(4)

	_, err := alloc.allocateContiguous(4)
	require.NoError(t, err)

	_, err = alloc.allocateContiguous(1)
	require.Error(t, err)
}

func TestAllocatorZeroCountRejected(t *testing.T) {
	alloc := newAllocator(4)
	_, err := alloc.allocateContiguous(0)
	require.Error(t, err)
}
