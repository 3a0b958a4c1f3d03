package fat

import (
	"encoding/binary"

	"github.com/rstms/kfat"
)

// maxFreedSectors is the number of reclaimed sector numbers that fit
// in the allocator's sector alongside the magic, the watermark and the
// zero terminator.
const maxFreedSectors = kfat.SectorSize/2 - 3

// A SectorAllocator hands out data sectors for the whole disk. Freed
// sectors are reused last-in first-out before the watermark is
// extended, so churn stays close to recently touched sectors. The
// allocator persists in one dedicated sector, independent of any
// directory's allocation table.
type SectorAllocator struct {
	nextFree uint16
	freed    []uint16
}

// NewSectorAllocator returns an allocator with an empty free list and
// the watermark at the first usable sector.
func NewSectorAllocator() *SectorAllocator {
	return &SectorAllocator{nextFree: FirstUsableSector}
}

// FreeSector returns one usable sector, preferring the most recently
// freed one.
func (a *SectorAllocator) FreeSector() uint16 {
	if n := len(a.freed); n > 0 {
		lba := a.freed[n-1]
		a.freed = a.freed[:n-1]
		return lba
	}
	lba := a.nextFree
	a.nextFree++
	return lba
}

// ContiguousSectors reserves count fresh sectors from the watermark
// and returns the first. The free list is never consulted: contiguity
// cannot be guaranteed from a sparse list.
func (a *SectorAllocator) ContiguousSectors(count uint16) uint16 {
	lba := a.nextFree
	a.nextFree += count
	return lba
}

// Free returns lba to the free list.
func (a *SectorAllocator) Free(lba uint16) {
	a.freed = append(a.freed, lba)
}

// FreeDirectory returns a full directory block starting at lba: the
// allocation table sector plus the directory record span.
func (a *SectorAllocator) FreeDirectory(lba uint16) {
	for i := uint16(0); i < DirectoryBlockSectors; i++ {
		a.Free(lba + i)
	}
}

// AllocatedCount reports how many data sectors are currently in use.
func (a *SectorAllocator) AllocatedCount() int {
	return int(a.nextFree) - FirstUsableSector - len(a.freed)
}

func (a *SectorAllocator) encode() []byte {
	buf := make([]byte, kfat.SectorSize)
	binary.LittleEndian.PutUint16(buf[0:], allocatorMagic)
	binary.LittleEndian.PutUint16(buf[2:], a.nextFree)
	freed := a.freed
	if len(freed) > maxFreedSectors {
		freed = freed[len(freed)-maxFreedSectors:]
	}
	for i, lba := range freed {
		binary.LittleEndian.PutUint16(buf[4+i*2:], lba)
	}
	return buf
}

// Save writes the allocator state to its dedicated sector. A free
// list longer than the sector holds keeps only the most recently
// freed entries; the overflow stays allocated across a remount until
// the image is rewritten.
func (a *SectorAllocator) Save(device kfat.BlockDevice) error {
	err := device.WriteSectors(a.encode(), AllocatorSector, 1)
	if err != nil {
		return Fatal(err)
	}
	return nil
}

// LoadSectorAllocator reads the persisted allocator state. A magic
// mismatch fails with ErrInvalidSectorAllocator; the caller then
// re-initializes a fresh allocator rather than trusting partial data.
func LoadSectorAllocator(device kfat.BlockDevice) (*SectorAllocator, error) {
	buf := make([]byte, kfat.SectorSize)
	err := device.ReadSectors(buf, AllocatorSector, 1)
	if err != nil {
		return nil, Fatal(err)
	}
	if binary.LittleEndian.Uint16(buf[0:]) != allocatorMagic {
		return nil, kfat.ErrInvalidSectorAllocator
	}
	a := &SectorAllocator{
		nextFree: binary.LittleEndian.Uint16(buf[2:]),
	}
	for off := 4; off+1 < kfat.SectorSize; off += 2 {
		lba := binary.LittleEndian.Uint16(buf[off:])
		if lba == 0 {
			break
		}
		a.freed = append(a.freed, lba)
	}
	return a, nil
}
