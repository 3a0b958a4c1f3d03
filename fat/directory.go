package fat

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rstms/kfat"
)

// Directory record layout. The header holds the magic and the sector
// of the directory's own allocation table; the rest of the record is a
// fixed array of 32-byte entries. The whole record spans
// DirectorySectors sectors on disk.
const (
	directoryHeaderSize = 8
	directoryNameSize   = 29
	directoryEntrySize  = 32
	directoryEntryCount = (DirectorySectors*kfat.SectorSize - directoryHeaderSize) /
		directoryEntrySize
	directoryRecordSize = DirectorySectors * kfat.SectorSize
)

// A DirectoryEntry names one child of a directory. An entry whose name
// bytes are all zero is an empty slot, free for reuse. For files,
// firstCluster indexes the owning directory's allocation table; for
// subdirectories it is the child directory's record sector.
type DirectoryEntry struct {
	name         [directoryNameSize]byte
	firstCluster uint16
	kind         kfat.EntryKind
}

// NewDirectoryEntry builds an entry, truncating names longer than the
// fixed capacity.
func NewDirectoryEntry(name string, firstCluster uint16, kind kfat.EntryKind) DirectoryEntry {
	e := DirectoryEntry{
		firstCluster: firstCluster,
		kind:         kind,
	}
	copy(e.name[:], name)
	return e
}

func (e *DirectoryEntry) Name() string {
	i := bytes.IndexByte(e.name[:], 0)
	if i < 0 {
		i = len(e.name)
	}
	return string(e.name[:i])
}

func (e *DirectoryEntry) FirstCluster() uint16 {
	return e.firstCluster
}

func (e *DirectoryEntry) Kind() kfat.EntryKind {
	return e.kind
}

func (e *DirectoryEntry) IsDir() bool {
	return e.kind == kfat.KindDirectory
}

func (e *DirectoryEntry) isEmpty() bool {
	return e.name == [directoryNameSize]byte{}
}

// matches compares names byte for byte. No case folding, no wildcards.
func (e *DirectoryEntry) matches(name string) bool {
	return !e.isEmpty() && e.Name() == name
}

func (e *DirectoryEntry) encode(buf []byte) {
	copy(buf[:directoryNameSize], e.name[:])
	binary.LittleEndian.PutUint16(buf[directoryNameSize:], e.firstCluster)
	buf[directoryNameSize+2] = byte(e.kind)
}

func decodeDirectoryEntry(buf []byte) DirectoryEntry {
	var e DirectoryEntry
	copy(e.name[:], buf[:directoryNameSize])
	e.firstCluster = binary.LittleEndian.Uint16(buf[directoryNameSize:])
	e.kind = kfat.EntryKind(buf[directoryNameSize+2])
	return e
}

// A Directory is one directory record: a validated header plus a fixed
// table of entries. Every non-root directory carries "." and ".."
// entries pointing at its own record sector and its parent's,
// established at creation and never removed by normal operations.
type Directory struct {
	magic     uint32
	fatSector uint16
	entries   [directoryEntryCount]DirectoryEntry
}

// NewRootDirectory returns the fresh root record. The root has no
// parent and carries no dot entries.
func NewRootDirectory() *Directory {
	return &Directory{
		magic:     directoryMagic,
		fatSector: RootTableSector,
	}
}

// NewDirectory returns a fresh non-root record whose "." entry points
// at selfLBA and ".." at parentLBA.
func NewDirectory(fatSector, selfLBA, parentLBA uint16) *Directory {
	d := &Directory{
		magic:     directoryMagic,
		fatSector: fatSector,
	}
	d.entries[0] = NewDirectoryEntry(".", selfLBA, kfat.KindDirectory)
	d.entries[1] = NewDirectoryEntry("..", parentLBA, kfat.KindDirectory)
	return d
}

// FATSector returns the sector of this directory's allocation table.
func (d *Directory) FATSector() uint16 {
	return d.fatSector
}

// AddEntry stores e in the first empty slot.
func (d *Directory) AddEntry(e DirectoryEntry) error {
	for i := range d.entries {
		if d.entries[i].isEmpty() {
			d.entries[i] = e
			return nil
		}
	}
	return kfat.ErrOutOfSpace
}

// GetEntry returns the entry with the given name.
func (d *Directory) GetEntry(name string) (DirectoryEntry, error) {
	for i := range d.entries {
		if d.entries[i].matches(name) {
			return d.entries[i], nil
		}
	}
	return DirectoryEntry{}, kfat.ErrFileNotFound
}

// RemoveEntry zeroes any slot matching name. A miss is silently a
// no-op; callers are expected to have confirmed existence already.
func (d *Directory) RemoveEntry(name string) {
	for i := range d.entries {
		if d.entries[i].matches(name) {
			d.entries[i] = DirectoryEntry{}
		}
	}
}

// Entries returns the non-empty entries in slot order.
func (d *Directory) Entries() []DirectoryEntry {
	result := make([]DirectoryEntry, 0, 8)
	for i := range d.entries {
		if !d.entries[i].isEmpty() {
			result = append(result, d.entries[i])
		}
	}
	return result
}

// Invalidate clears the magic so a stale read of this record can never
// validate again. Used on deletion before the final write.
func (d *Directory) Invalidate() {
	d.magic = 0
}

func (d *Directory) encode() []byte {
	buf := make([]byte, directoryRecordSize)
	binary.LittleEndian.PutUint32(buf[0:], d.magic)
	binary.LittleEndian.PutUint16(buf[4:], d.fatSector)
	for i := range d.entries {
		d.entries[i].encode(buf[directoryHeaderSize+i*directoryEntrySize:])
	}
	return buf
}

// Save writes the whole record to its sector span.
func (d *Directory) Save(device kfat.BlockDevice, lba uint16) error {
	err := device.WriteSectors(d.encode(), uint64(lba), DirectorySectors)
	if err != nil {
		return Fatal(err)
	}
	return nil
}

// LoadDirectory reads the record stored at lba and validates its
// magic. A mismatch fails with ErrInvalidDirectory, distinct from I/O
// failures which propagate as-is.
func LoadDirectory(device kfat.BlockDevice, lba uint16) (*Directory, error) {
	buf := make([]byte, directoryRecordSize)
	err := device.ReadSectors(buf, uint64(lba), DirectorySectors)
	if err != nil {
		return nil, Fatal(err)
	}
	d := &Directory{
		magic:     binary.LittleEndian.Uint32(buf[0:]),
		fatSector: binary.LittleEndian.Uint16(buf[4:]),
	}
	if d.magic != directoryMagic {
		return nil, kfat.ErrInvalidDirectory
	}
	for i := range d.entries {
		d.entries[i] = decodeDirectoryEntry(buf[directoryHeaderSize+i*directoryEntrySize:])
	}
	return d, nil
}

// Print writes a listing of the non-empty entries, tagging
// subdirectories. Presentation only.
func (d *Directory) Print(w io.Writer) {
	for _, e := range d.Entries() {
		if e.IsDir() {
			fmt.Fprintf(w, "%s <dir>\n", e.Name())
		} else {
			fmt.Fprintln(w, e.Name())
		}
	}
}
