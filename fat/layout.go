package fat

// On-disk layout. LBA 0 is reserved for a boot sector and never
// touched by the filesystem. The allocator, the root allocation table
// and the root directory live at fixed well-known sectors; everything
// past FirstUsableSector belongs to the sector allocator.
const (
	AllocatorSector = 1
	RootTableSector = 2
	RootDirSector   = 3

	// DirectorySectors is the span of one directory record on disk.
	DirectorySectors = 8
	// DirectoryBlockSectors is the full allocation of a non-root
	// directory: one allocation table sector followed by the
	// directory record. The table always sits at the sector just
	// before its directory.
	DirectoryBlockSectors = DirectorySectors + 1

	FirstUsableSector = RootDirSector + DirectorySectors
)

// Structure magic values. A zeroed or garbage sector never matches.
const (
	directoryMagic uint32 = 0x5441464B // "KFAT" little-endian
	allocatorMagic uint16 = 0x5341     // "AS"
	tableMagic     uint16 = 0xFFF8
)
