package vexfat

import "encoding/binary"

// Offsets within the 512-byte boot sector, per the exFAT specification
// (grounded on the field ordering of dsoprea-go-exfat's BootSectorHeader).
const (
	offJumpBoot               = 0
	offFileSystemName         = 3
	offMustBeZero             = 11
	offPartitionOffset        = 64
	offVolumeLength           = 72
	offFatOffset              = 80
	offFatLength              = 84
	offClusterHeapOffset      = 88
	offClusterCount           = 92
	offFirstClusterOfRootDir  = 96
	offVolumeSerialNumber     = 100
	offFileSystemRevision     = 104
	offVolumeFlags            = 106
	offBytesPerSectorShift    = 108
	offSectorsPerClusterShift = 109
	offNumberOfFats           = 110
	offDriveSelect            = 111
	offPercentInUse           = 112
	offBootCode               = 120
	offBootSignature          = 510
)

// buildBootSectorBytes renders the boot sector shared by the main and backup
// boot regions. Every field is fixed by the synthesized geometry except
// VolumeSerialNumber, which is randomized once at image construction.
func buildBootSectorBytes(geom Geometry) []byte {
	buf := make([]byte, BytesPerSector)

	copy(buf[offJumpBoot:], []byte{0xEB, 0x76, 0x90})
	copy(buf[offFileSystemName:], []byte("EXFAT   "))
	binary.LittleEndian.PutUint64(buf[offVolumeLength:], uint64(geom.SectorCount))
	binary.LittleEndian.PutUint32(buf[offFatOffset:], geom.FatOffset)
	binary.LittleEndian.PutUint32(buf[offFatLength:], geom.FatLength)
	binary.LittleEndian.PutUint32(buf[offClusterHeapOffset:], geom.ClusterHeapOffset)
	binary.LittleEndian.PutUint32(buf[offClusterCount:], geom.ClusterCount)
	binary.LittleEndian.PutUint32(buf[offFirstClusterOfRootDir:], geom.RootDirectoryCluster)
	binary.LittleEndian.PutUint32(buf[offVolumeSerialNumber:], geom.VolumeSerialNumber)
	buf[offFileSystemRevision] = 0x00
	buf[offFileSystemRevision+1] = 0x01
	binary.LittleEndian.PutUint16(buf[offVolumeFlags:], 0)
	buf[offBytesPerSectorShift] = BytesPerSectorShift
	buf[offSectorsPerClusterShift] = SectorsPerClusterShift
	buf[offNumberOfFats] = 1
	buf[offDriveSelect] = 0x80
	buf[offPercentInUse] = 0xFF // not available

	for i := offBootCode; i < offBootSignature; i++ {
		buf[i] = 0xF4
	}
	binary.LittleEndian.PutUint16(buf[offBootSignature:], 0xAA55)

	return buf
}

// buildExtendedBootSectorBytes renders one of the 8 extended boot sectors:
// no extensions are defined, so only the trailing boot signature is set.
func buildExtendedBootSectorBytes() []byte {
	buf := make([]byte, BytesPerSector)
	binary.LittleEndian.PutUint16(buf[BytesPerSector-2:], 0xAA55)
	return buf
}

// buildOemParametersSectorBytes renders the (unused) OEM parameters sector.
func buildOemParametersSectorBytes() []byte {
	return make([]byte, BytesPerSector)
}

// buildBootRegionChecksum implements the exFAT boot-checksum algorithm: a
// 32-bit rotate-and-add over every byte of the first 11 sectors of a boot
// region, skipping the VolumeFlags and PercentInUse fields of the boot
// sector itself (those vary independently of the structural layout the
// checksum protects).
func buildBootRegionChecksum(sectors [][]byte) uint32 {
	var checksum uint32
	for sectorIndex, sector := range sectors {
		for i, b := range sector {
			if sectorIndex == 0 && (i == offVolumeFlags || i == offVolumeFlags+1 || i == offPercentInUse) {
				continue
			}
			checksum = ((checksum << 31) | (checksum >> 1)) + uint32(b)
		}
	}
	return checksum
}

// buildChecksumSectorBytes repeats the 4-byte checksum across a full sector.
func buildChecksumSectorBytes(checksum uint32) []byte {
	buf := make([]byte, BytesPerSector)
	for i := 0; i < BytesPerSector; i += 4 {
		binary.LittleEndian.PutUint32(buf[i:], checksum)
	}
	return buf
}
