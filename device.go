package kfat

// SectorSize is the fixed size of one disk sector in bytes. All device
// I/O happens in whole sectors.
const SectorSize = 512

// A BlockDevice provides raw sector access to a disk. Implementations
// must read and write exactly count sectors starting at the given
// logical block address.
type BlockDevice interface {
	// ReadSectors fills buf with count sectors starting at lba.
	// buf must be at least count*SectorSize bytes long.
	ReadSectors(buf []byte, lba uint64, count uint16) error

	// WriteSectors writes count sectors from buf starting at lba.
	WriteSectors(buf []byte, lba uint64, count uint16) error

	// Check probes device availability. It is called once at
	// filesystem start before any structure is trusted.
	Check() error
}
