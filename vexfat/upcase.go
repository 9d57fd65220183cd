package vexfat

// upcaseRune implements a deliberately small case-folding table: ASCII
// lower-to-upper only. Real exFAT volumes ship a full Unicode upcase table,
// but every file this server names comes from a host directory walk, and
// OPL only needs case-insensitive matching to work consistently with
// whatever table the volume itself advertises. Building the on-disk table
// from this exact function keeps NameHash (dirent.go) and the stored
// Up-case Table content in agreement by construction.
func upcaseRune(r uint16) uint16 {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}

// upcaseTableBytes renders the full 128KiB Up-case Table: one little-endian
// uint16 per UTF-16 code unit in [0, 0x10000), mapping it to its upper-case
// form (or itself, if unchanged).
func upcaseTableBytes() []byte {
	buf := make([]byte, 0x10000*2)
	for cp := 0; cp < 0x10000; cp++ {
		mapped := upcaseRune(uint16(cp))
		buf[cp*2] = byte(mapped)
		buf[cp*2+1] = byte(mapped >> 8)
	}
	return buf
}

// upcaseTableChecksum is the 32-bit checksum exFAT stores in the Up-case
// Table directory entry, a plain rotate-and-add over the raw table bytes.
func upcaseTableChecksum(table []byte) uint32 {
	var checksum uint32
	for _, b := range table {
		checksum = ((checksum << 31) | (checksum >> 1)) + uint32(b)
	}
	return checksum
}
