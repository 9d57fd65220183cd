package vexfat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildTreeNestsUnderPrefix(t *testing.T) {
	entries := []Entry{
		{Path: "DOCS/readme.txt", IsFile: true, Size: 5},
		{Path: "GAME.ISO", IsFile: true, Size: 100},
	}
	root := buildTree(entries, "PS2ISO")

	require.Len(t, root.children, 1)
	prefixNode := root.children[0]
	require.Equal(t, "PS2ISO", prefixNode.name)
	require.True(t, prefixNode.isDir)

	names := make([]string, len(prefixNode.children))
	for i, c := range prefixNode.children {
		names[i] = c.name
	}
	require.Equal(t, []string{"DOCS", "GAME.ISO"}, names) // sorted ascending
}

func TestBuildTreeWithoutPrefixIsFlat(t *testing.T) {
	entries := []Entry{{Path: "GAME.ISO", IsFile: true, Size: 1}}
	root := buildTree(entries, "")
	require.Len(t, root.children, 1)
	require.Equal(t, "GAME.ISO", root.children[0].name)
}

func TestCountDirsAndFiles(t *testing.T) {
	entries := []Entry{
		{Path: "A/one.txt", IsFile: true, Size: 1},
		{Path: "A/two.txt", IsFile: true, Size: 1},
		{Path: "B.txt", IsFile: true, Size: 1},
	}
	root := buildTree(entries, "")
	dirs, files := countDirsAndFiles(root)
	require.Equal(t, 2, dirs) // root + A
	require.Equal(t, 3, files)
}

func TestValidateTreeRejectsOverlongName(t *testing.T) {
	longName := strings.Repeat("a", maxNameUnits+1)
	entries := []Entry{{Path: longName, IsFile: true, Size: 1}}
	root := buildTree(entries, "")
	require.Error(t, validateTree(root))
}

func TestValidateTreeAcceptsOrdinaryNames(t *testing.T) {
	entries := []Entry{{Path: "GAME.ISO", IsFile: true, Size: 1}}
	root := buildTree(entries, "")
	require.NoError(t, validateTree(root))
}

func TestAllocateAndRenderAssignsContiguousClusters(t *testing.T) {
	entries := []Entry{
		{Path: "ONE.BIN", IsFile: true, Size: 1},
		{Path: "TWO.BIN", IsFile: true, Size: 1},
	}
	root := buildTree(entries, "")
	alloc := newAllocator(64)

	require.NoError(t, allocateAndRender(root, alloc))
	require.NotZero(t, root.firstCluster)
	require.NotEmpty(t, root.dirBytes)

	for _, c := range root.children {
		require.GreaterOrEqual(t, c.firstCluster, uint32(FirstValidCluster))
	}
}
