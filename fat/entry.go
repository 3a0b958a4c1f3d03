package fat

import (
	"encoding/binary"
	"fmt"

	"github.com/rstms/kfat"
)

// An AllocationEntry is one packed 16-bit slot of an allocation table:
// a 4-bit type tag in the high nibble and a 12-bit payload. For Used
// entries the payload is a sector offset relative to FirstUsableSector.
type AllocationEntry uint16

type EntryState uint8

const (
	StateFree       EntryState = 0x0
	StateEndOfChain EntryState = 0x1
	StateBad        EntryState = 0x2
	StateUsed       EntryState = 0x3
)

const sectorOffsetMask = 0x0FFF

// FreeEntry returns the entry marking an unallocated slot.
func FreeEntry() AllocationEntry {
	return AllocationEntry(uint16(StateFree) << 12)
}

// EndOfChainEntry marks the last slot of a cluster chain.
func EndOfChainEntry() AllocationEntry {
	return AllocationEntry(uint16(StateEndOfChain) << 12)
}

// BadEntry marks a slot whose sector must never be used.
func BadEntry() AllocationEntry {
	return AllocationEntry(uint16(StateBad) << 12)
}

// UsedEntry returns a Used entry holding the given sector offset. The
// offset must fit in 12 bits.
func UsedEntry(offset uint16) (AllocationEntry, error) {
	if offset > sectorOffsetMask {
		return FreeEntry(), fmt.Errorf("%w: offset %d exceeds 12 bits", kfat.ErrBadSector, offset)
	}
	return AllocationEntry(uint16(StateUsed)<<12 | offset), nil
}

func (e AllocationEntry) State() EntryState {
	return EntryState(e >> 12)
}

// Sector returns the sector offset of a Used entry. Any other state
// fails with ErrUnusedSector.
func (e AllocationEntry) Sector() (uint16, error) {
	if e.State() != StateUsed {
		return 0, kfat.ErrUnusedSector
	}
	return uint16(e) & sectorOffsetMask, nil
}

func (e AllocationEntry) encode(buf []byte) {
	binary.LittleEndian.PutUint16(buf, uint16(e))
}

func decodeAllocationEntry(buf []byte) AllocationEntry {
	return AllocationEntry(binary.LittleEndian.Uint16(buf))
}
