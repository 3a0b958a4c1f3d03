package fat

import (
	"github.com/rstms/kfat"
)

// tableEntries is the slot count of one allocation table. 256 packed
// 16-bit entries occupy exactly one sector.
const tableEntries = kfat.SectorSize / 2

// An AllocationTable is the per-directory cluster map. Slot 0 is
// reserved for the table magic; slots 1..255 describe data sectors
// owned by the directory. Lookups are linear scans, which bounds the
// table at one sector and needs no index structures.
type AllocationTable struct {
	entries [tableEntries]AllocationEntry
}

// NewAllocationTable returns a fresh table with only the magic slot
// occupied.
func NewAllocationTable() *AllocationTable {
	t := &AllocationTable{}
	t.entries[0] = AllocationEntry(tableMagic)
	return t
}

// IsValid distinguishes a real table from an uninitialized or zeroed
// sector.
func (t *AllocationTable) IsValid() bool {
	return uint16(t.entries[0]) == tableMagic
}

// FirstFreeEntry returns the index of the first Free slot, scanning
// from slot 1.
func (t *AllocationTable) FirstFreeEntry() (int, error) {
	for i := 1; i < tableEntries; i++ {
		if t.entries[i].State() == StateFree {
			return i, nil
		}
	}
	return 0, kfat.ErrOutOfSpace
}

// AddEntry stores e at the first free slot and returns its index.
func (t *AllocationTable) AddEntry(e AllocationEntry) (int, error) {
	i, err := t.FirstFreeEntry()
	if err != nil {
		return 0, err
	}
	t.entries[i] = e
	return i, nil
}

// EntryAt returns the entry stored at index i.
func (t *AllocationTable) EntryAt(i int) (AllocationEntry, error) {
	if i < 1 || i >= tableEntries {
		return FreeEntry(), kfat.ErrIndexOutOfBounds
	}
	return t.entries[i], nil
}

// RemoveEntry resets slot i to Free. This is bookkeeping only: the
// underlying disk sector must be returned to the sector allocator by
// the caller before the slot is cleared.
func (t *AllocationTable) RemoveEntry(i int) error {
	if i < 1 || i >= tableEntries {
		return kfat.ErrIndexOutOfBounds
	}
	t.entries[i] = FreeEntry()
	return nil
}

func (t *AllocationTable) encode() []byte {
	buf := make([]byte, kfat.SectorSize)
	for i, e := range t.entries {
		e.encode(buf[i*2:])
	}
	return buf
}

// Save writes the table to its sector.
func (t *AllocationTable) Save(device kfat.BlockDevice, lba uint16) error {
	err := device.WriteSectors(t.encode(), uint64(lba), 1)
	if err != nil {
		return Fatal(err)
	}
	return nil
}

// LoadAllocationTable reads the table stored at lba. Validity is not
// enforced here: callers check IsValid and either recreate the table
// (non-root) or abort (root).
func LoadAllocationTable(device kfat.BlockDevice, lba uint16) (*AllocationTable, error) {
	buf := make([]byte, kfat.SectorSize)
	err := device.ReadSectors(buf, uint64(lba), 1)
	if err != nil {
		return nil, Fatal(err)
	}
	t := &AllocationTable{}
	for i := range t.entries {
		t.entries[i] = decodeAllocationEntry(buf[i*2:])
	}
	return t, nil
}
