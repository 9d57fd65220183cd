package vexfat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/vexfatbd/udpbd-server/internal/vexerr"
)

// maxNameUnits is the exFAT on-disk limit on a FileName in UTF-16 code
// units; a longer name can't be rendered (the Stream Extension's NameLength
// is one byte).
const maxNameUnits = 255

// Entry is the descriptor the host filesystem walker hands the core for
// every path under the served directory: a
// slash-separated relative path, whether it names a regular file, and its
// size in bytes at walk time. The walker itself, and sorting by full path,
// are both external collaborators; New (image.go) only requires entries to
// already be sorted ascending by Path.
//
// Path places the entry in the synthesized volume and may be nested under a
// prefix the host tree itself doesn't have (the OPL "DVD/" directory); when
// that nesting makes Path diverge from the entry's actual location under
// hostRoot, HostPath carries the real one. A walker that serves the host
// tree unmodified can leave HostPath empty and let it default to Path.
type Entry struct {
	Path     string
	HostPath string
	IsFile   bool
	Size     int64
}

// node is one directory or file in the tree being laid out on the volume.
type node struct {
	name         string
	isDir        bool
	hostPath     string
	size         int64
	firstCluster uint32
	clusterCount uint32
	children     []*node
	dirBytes     []byte
}

// buildTree turns a sorted, flat list of Entry into a nested tree rooted at
// an implicit root directory, optionally nested one level under prefixName
// (the OPL subdirectory, e.g. "PS2ISO").
func buildTree(entries []Entry, prefixName string) *node {
	root := &node{isDir: true}
	insertAt := root

	if prefixName != "" {
		prefixNode := &node{name: prefixName, isDir: true}
		root.children = append(root.children, prefixNode)
		insertAt = prefixNode
	}

	for _, e := range entries {
		parts := strings.Split(strings.Trim(e.Path, "/"), "/")
		cur := insertAt
		for i, part := range parts {
			isLast := i == len(parts)-1
			if isLast && e.IsFile {
				cur.children = append(cur.children, &node{
					name:     part,
					hostPath: hostPathOf(e),
					size:     e.Size,
				})
				continue
			}

			var child *node
			for _, existing := range cur.children {
				if existing.isDir && existing.name == part {
					child = existing
					break
				}
			}
			if child == nil {
				child = &node{name: part, isDir: true}
				cur.children = append(cur.children, child)
			}
			cur = child
		}
	}

	sortTree(root)
	return root
}

func hostPathOf(e Entry) string {
	if e.HostPath != "" {
		return e.HostPath
	}
	return e.Path
}

func sortTree(n *node) {
	sort.Slice(n.children, func(i, j int) bool { return n.children[i].name < n.children[j].name })
	for _, c := range n.children {
		if c.isDir {
			sortTree(c)
		}
	}
}

// countDirsAndFiles walks the tree counting every directory and file node
// (the root counts as one directory), feeding the slack-cluster rule in
// image.go.
func countDirsAndFiles(n *node) (dirs, files int) {
	if n.isDir {
		dirs = 1
		for _, c := range n.children {
			cd, cf := countDirsAndFiles(c)
			dirs += cd
			files += cf
		}
		return dirs, files
	}
	return 0, 1
}

// dataClusterEstimate returns the cluster count a node's own content will
// need, ignoring slack: ceil(size/cluster) for files, ceil(direntBytes/cluster)
// for directories (a minimum of one cluster each way).
func dataClusterEstimate(n *node) uint32 {
	if !n.isDir {
		return ClustersForBytes(n.size)
	}
	total := 0
	if n.name == "" {
		// The root directory additionally carries the Allocation Bitmap
		// and Up-case Table entries.
		total = 2 * DirentSize
	}
	for _, c := range n.children {
		total += direntSetSize(c.name) * DirentSize
	}
	return ClustersForBytes(int64(total))
}

// allocateAndRender performs pre-order cluster allocation and post-order
// directory-entry rendering: a directory's
// own chain is allocated before descending into its children, and its byte
// contents are only rendered once every child's first cluster is known.
func allocateAndRender(n *node, alloc *allocator) error {
	if !n.isDir {
		n.clusterCount = ClustersForBytes(n.size)
		first, err := alloc.allocateContiguous(n.clusterCount)
		if err != nil {
			return vexerr.ErrGeometryOverflow.WithMessage("allocating file " + n.name)
		}
		n.firstCluster = first
		return nil
	}

	n.clusterCount = dataClusterEstimate(n)
	first, err := alloc.allocateContiguous(n.clusterCount)
	if err != nil {
		return vexerr.ErrGeometryOverflow.WithMessage("allocating directory " + n.name)
	}
	n.firstCluster = first

	for _, c := range n.children {
		if err := allocateAndRender(c, alloc); err != nil {
			return err
		}
	}

	n.dirBytes = renderDirectoryBytes(n)
	return nil
}

// renderDirectoryBytes concatenates the entry set for every child of n, in
// the same order children were allocated.
func renderDirectoryBytes(n *node) []byte {
	var buf []byte
	for _, c := range n.children {
		fileSize := uint64(0)
		if !c.isDir {
			fileSize = uint64(c.size)
		} else {
			fileSize = uint64(len(c.dirBytes))
		}
		buf = append(buf, buildFileEntrySet(c.name, c.isDir, c.firstCluster, c.clusterCount, fileSize)...)
	}
	return buf
}

// chain is a (firstCluster, clusterCount) run, the unit fat.go links into a
// FAT chain.
type chain struct {
	first uint32
	count uint32
}

// collectChains gathers the allocation of every directory and file node in
// the tree, in no particular order (fat.go only needs per-chain linkage).
func collectChains(root *node) []chain {
	var chains []chain
	walkDirs(root, func(n *node) { chains = append(chains, chain{n.firstCluster, n.clusterCount}) })
	walkFiles(root, func(n *node) { chains = append(chains, chain{n.firstCluster, n.clusterCount}) })
	return chains
}

// walkDirs visits every directory node (including root), calling fn with
// each. Used to assemble the interval map in image.go.
func walkDirs(n *node, fn func(*node)) {
	if !n.isDir {
		return
	}
	fn(n)
	for _, c := range n.children {
		walkDirs(c, fn)
	}
}

// walkFiles visits every file node, calling fn with each.
func walkFiles(n *node, fn func(*node)) {
	if !n.isDir {
		fn(n)
		return
	}
	for _, c := range n.children {
		walkFiles(c, fn)
	}
}

// validateTree collects every per-entry problem found while mapping the
// tree: a name that can't be encoded within exFAT's FileName entry limit,
// or a file whose reported size is negative. These are aggregated with
// multierror rather than failing on the first one, so a caller sees every
// offending path in one error; any problem makes New fail.
func validateTree(root *node) error {
	var result *multierror.Error
	var walk func(n *node)
	walk = func(n *node) {
		if n.name != "" && len(encodeName(n.name)) > maxNameUnits {
			result = multierror.Append(result, fmt.Errorf("%w: name %q exceeds %d UTF-16 units", vexerr.ErrImageBuildFailed, n.name, maxNameUnits))
		}
		if !n.isDir && n.size < 0 {
			result = multierror.Append(result, fmt.Errorf("%w: file %q has negative size %d", vexerr.ErrImageBuildFailed, n.name, n.size))
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(root)
	return result.ErrorOrNil()
}
