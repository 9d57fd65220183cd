package vexfat

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/noxer/bytewriter"
)

// exFAT directory entry type codes.
const (
	entryTypeAllocationBitmap = 0x81
	entryTypeUpCaseTable      = 0x82
	entryTypeVolumeLabel      = 0x83
	entryTypeFile             = 0x85
	entryTypeStreamExtension  = 0xC0
	entryTypeFileName         = 0xC1
)

const (
	fileAttrReadOnly  = 0x0001
	fileAttrHidden    = 0x0002
	fileAttrSystem    = 0x0004
	fileAttrDirectory = 0x0010
	fileAttrArchive   = 0x0020

	streamFlagAllocationPossible = 0x01
	streamFlagNoFatChain         = 0x02

	nameUnitsPerEntry = 15
)

// fatEpochTimestamp is the fixed exFAT timestamp (2000-01-01 00:00:00) this
// server stamps on every synthesized entry; the host file's own mtime isn't
// part of the descriptors the walker hands the core.
const fatEpochTimestamp = uint32(20<<25 | 1<<21 | 1<<16)

// entrySetChecksum implements the exFAT directory entry-set checksum: a
// 16-bit rotate-and-add over every byte of the set except the SetChecksum
// field itself (bytes 2-3 of the first, primary entry).
func entrySetChecksum(entries []byte) uint16 {
	var checksum uint16
	for i, b := range entries {
		if i == 2 || i == 3 {
			continue
		}
		checksum = (checksum >> 1) | (checksum << 15)
		checksum += uint16(b)
	}
	return checksum
}

// encodeName converts a host file/directory name to UTF-16 code units.
func encodeName(name string) []uint16 {
	return utf16.Encode([]rune(name))
}

// nameHash implements the exFAT NameHash field: like the checksum above but
// computed over the upper-cased, little-endian UTF-16 bytes of the name.
func nameHash(units []uint16) uint16 {
	var hash uint16
	for _, u := range units {
		upper := upcaseRune(u)
		for _, b := range [2]byte{byte(upper), byte(upper >> 8)} {
			hash = (hash >> 1) | (hash << 15)
			hash += uint16(b)
		}
	}
	return hash
}

// direntSetSize returns how many 32-byte entries a File + Stream + FileName
// entry set occupies for a name of the given length.
func direntSetSize(name string) int {
	units := encodeName(name)
	nameEntries := (len(units) + nameUnitsPerEntry - 1) / nameUnitsPerEntry
	if nameEntries == 0 {
		nameEntries = 1
	}
	return 2 + nameEntries
}

// buildFileEntrySet renders the File + Stream Extension + FileName entries
// describing one child (file or directory) of a directory. clusterCount is
// the child's allocated run length; for a directory, DataLength must equal
// that whole run (clusterCount*BytesPerCluster), not the unaligned count of
// bytes its entries happen to occupy.
func buildFileEntrySet(name string, isDir bool, firstCluster, clusterCount uint32, fileSize uint64) []byte {
	units := encodeName(name)
	nameEntries := (len(units) + nameUnitsPerEntry - 1) / nameUnitsPerEntry
	if nameEntries == 0 {
		nameEntries = 1
	}

	total := (2 + nameEntries) * DirentSize
	buf := make([]byte, total)
	w := bytewriter.New(buf)

	attrs := uint16(fileAttrArchive)
	if isDir {
		attrs = fileAttrDirectory
	}

	// File entry (primary).
	w.Write([]byte{entryTypeFile, byte(1 + nameEntries)})
	binary.Write(w, binary.LittleEndian, uint16(0)) // SetChecksum, patched below
	binary.Write(w, binary.LittleEndian, attrs)
	binary.Write(w, binary.LittleEndian, uint16(0)) // Reserved1
	binary.Write(w, binary.LittleEndian, fatEpochTimestamp)
	binary.Write(w, binary.LittleEndian, fatEpochTimestamp)
	binary.Write(w, binary.LittleEndian, fatEpochTimestamp)
	// Create10msIncrement, LastModified10msIncrement, the three UTC offset
	// bytes, and Reserved2 all stay zero: "not available", which every real
	// driver treats as UTC/unknown rather than an error.
	w.Write(make([]byte, 12))

	// A directory's stream always spans its full cluster run: there's no
	// notion of a directory being partially written the way a file can be.
	dataLength := fileSize
	if isDir {
		dataLength = uint64(clusterCount) * BytesPerCluster
		fileSize = dataLength
	}

	// Stream Extension entry (secondary).
	streamFlags := byte(streamFlagAllocationPossible | streamFlagNoFatChain)
	w.Write([]byte{entryTypeStreamExtension, streamFlags, 0, byte(len(units))})
	binary.Write(w, binary.LittleEndian, nameHash(units))
	binary.Write(w, binary.LittleEndian, uint16(0)) // Reserved2
	binary.Write(w, binary.LittleEndian, fileSize)  // ValidDataLength
	binary.Write(w, binary.LittleEndian, uint32(0)) // Reserved3
	binary.Write(w, binary.LittleEndian, firstCluster)
	binary.Write(w, binary.LittleEndian, dataLength) // DataLength

	// FileName entries (secondary, 15 UTF-16 units each, zero-padded).
	for i := 0; i < nameEntries; i++ {
		w.Write([]byte{entryTypeFileName, 0})
		start := i * nameUnitsPerEntry
		end := start + nameUnitsPerEntry
		for j := start; j < end; j++ {
			var unit uint16
			if j < len(units) {
				unit = units[j]
			}
			binary.Write(w, binary.LittleEndian, unit)
		}
	}

	checksum := entrySetChecksum(buf[:total])
	binary.LittleEndian.PutUint16(buf[2:4], checksum)

	return buf
}

// buildAllocationBitmapEntry renders the root-only Allocation Bitmap entry.
func buildAllocationBitmapEntry(firstCluster uint32, dataLength uint64) []byte {
	buf := make([]byte, DirentSize)
	buf[0] = entryTypeAllocationBitmap
	binary.LittleEndian.PutUint32(buf[20:24], firstCluster)
	binary.LittleEndian.PutUint64(buf[24:32], dataLength)
	return buf
}

// buildUpCaseTableEntry renders the root-only Up-case Table entry.
func buildUpCaseTableEntry(checksum uint32, firstCluster uint32, dataLength uint64) []byte {
	buf := make([]byte, DirentSize)
	buf[0] = entryTypeUpCaseTable
	binary.LittleEndian.PutUint32(buf[4:8], checksum)
	binary.LittleEndian.PutUint32(buf[20:24], firstCluster)
	binary.LittleEndian.PutUint64(buf[24:32], dataLength)
	return buf
}
