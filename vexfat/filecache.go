package vexfat

import (
	"container/list"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// maxOpenHostFiles bounds the LRU of open host file descriptors.
// Reopening on eviction is cheap; keeping file contents in
// memory is not, and is never done here.
const maxOpenHostFiles = 16

type fileCache struct {
	root string

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
}

type cacheEntry struct {
	path string
	file *os.File
}

func newFileCache(root string) *fileCache {
	return &fileCache{
		root:    root,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// readAt reads len(buf) bytes from the host file at relPath, starting at
// offset. A short read at EOF zero-fills the remainder of buf rather than
// returning an error, matching the sector-synthesis contract in image.go:
// a read past end-of-file is not a host I/O failure.
func (c *fileCache) readAt(relPath string, offset int64, buf []byte) error {
	f, err := c.open(relPath)
	if err != nil {
		return err
	}

	n, err := f.ReadAt(buf, offset)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *fileCache) open(relPath string) (*os.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[relPath]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*cacheEntry).file, nil
	}

	f, err := os.Open(filepath.Join(c.root, relPath))
	if err != nil {
		return nil, err
	}

	if c.order.Len() >= maxOpenHostFiles {
		c.evictOldest()
	}

	elem := c.order.PushFront(&cacheEntry{path: relPath, file: f})
	c.entries[relPath] = elem
	return f, nil
}

// evictOldest must be called with c.mu held.
func (c *fileCache) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	entry := oldest.Value.(*cacheEntry)
	if err := entry.file.Close(); err != nil {
		log.Printf("vexfat: closing evicted handle for %q: %v", entry.path, err)
	}
	delete(c.entries, entry.path)
	c.order.Remove(oldest)
}

// closeAll releases every open handle; called when the image is discarded.
func (c *fileCache) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for e := c.order.Front(); e != nil; e = e.Next() {
		if err := e.Value.(*cacheEntry).file.Close(); err != nil {
			log.Printf("vexfat: closing handle: %v", err)
		}
	}
	c.entries = make(map[string]*list.Element)
	c.order = list.New()
}
