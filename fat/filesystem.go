package fat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rstms/kfat"
)

// FileSystem is the implementation of kfat.FileSystem. It owns the
// block device, the global sector allocator and the root allocation
// table and directory; every other directory is loaded by sector
// during path traversal and discarded when the operation completes.
//
// Execution is single-threaded and run-to-completion: structures
// mutate in memory and are flushed synchronously at the end of each
// mutating operation. There is no journal; within one operation the
// disk writes are ordered data sector, allocation table, directory,
// parent directory, so an interrupted operation fails toward an
// unlinked object rather than a dangling reference.
type FileSystem struct {
	device    kfat.BlockDevice
	alloc     *SectorAllocator
	rootTable *AllocationTable
	rootDir   *Directory
	workdir   []string
}

// ensure FileSystem implements kfat.FileSystem
var _ kfat.FileSystem = (*FileSystem)(nil)

// New opens a previously formatted filesystem on device. A missing
// allocator signature is recovered by writing a fresh allocator; a
// root allocation table or root directory that fails validation is an
// unrecoverable condition, since no parent context exists to rebuild
// them from.
func New(device kfat.BlockDevice) (*FileSystem, error) {
	if err := device.Check(); err != nil {
		return nil, err
	}

	alloc, err := LoadSectorAllocator(device)
	if errors.Is(err, kfat.ErrInvalidSectorAllocator) {
		alloc = NewSectorAllocator()
		if err := alloc.Save(device); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	rootTable, err := LoadAllocationTable(device, RootTableSector)
	if err != nil {
		return nil, err
	}
	if !rootTable.IsValid() {
		return nil, Fatalf("root allocation table failed validation")
	}

	rootDir, err := LoadDirectory(device, RootDirSector)
	if err != nil {
		return nil, err
	}

	result := &FileSystem{
		device:    device,
		alloc:     alloc,
		rootTable: rootTable,
		rootDir:   rootDir,
	}

	return result, nil
}

// Format writes a fresh allocator, root allocation table and root
// directory to device and returns the mounted filesystem.
func Format(device kfat.BlockDevice) (*FileSystem, error) {
	if err := device.Check(); err != nil {
		return nil, err
	}

	fs := &FileSystem{
		device:    device,
		alloc:     NewSectorAllocator(),
		rootTable: NewAllocationTable(),
		rootDir:   NewRootDirectory(),
	}

	if err := fs.rootTable.Save(device, RootTableSector); err != nil {
		return nil, err
	}
	if err := fs.rootDir.Save(device, RootDirSector); err != nil {
		return nil, err
	}
	if err := fs.alloc.Save(device); err != nil {
		return nil, err
	}

	return fs, nil
}

// WorkingDirectory returns the current path, rooted at "/".
func (f *FileSystem) WorkingDirectory() string {
	return "/" + strings.Join(f.workdir, "/")
}

// AllocatedSectors reports how many data sectors are currently
// allocated. Useful for space reporting and leak accounting.
func (f *FileSystem) AllocatedSectors() int {
	return f.alloc.AllocatedCount()
}

// resolve walks the working directory path from the root and returns
// the final directory and its record sector. A missing or file-typed
// segment fails with ErrDirectoryNotFound. A non-root directory whose
// magic no longer validates is reformatted in place; its contents are
// unrecoverable anyway and a fresh record keeps the tree walkable.
func (f *FileSystem) resolve() (*Directory, uint16, error) {
	dir := f.rootDir
	lba := uint16(RootDirSector)

	for _, segment := range f.workdir {
		entry, err := dir.GetEntry(segment)
		if errors.Is(err, kfat.ErrFileNotFound) || (err == nil && !entry.IsDir()) {
			return nil, 0, fmt.Errorf("%w: %s", kfat.ErrDirectoryNotFound, segment)
		}
		if err != nil {
			return nil, 0, err
		}

		childLBA := entry.FirstCluster()
		child, err := LoadDirectory(f.device, childLBA)
		if errors.Is(err, kfat.ErrInvalidDirectory) {
			child, err = f.reformatDirectory(childLBA, lba)
		}
		if err != nil {
			return nil, 0, err
		}
		dir = child
		lba = childLBA
	}

	return dir, lba, nil
}

// reformatDirectory rebuilds a corrupt non-root directory in place.
// The allocation table of a directory always sits at the sector just
// before its record, so both can be recreated from the record sector
// alone.
func (f *FileSystem) reformatDirectory(lba, parentLBA uint16) (*Directory, error) {
	table := NewAllocationTable()
	if err := table.Save(f.device, lba-1); err != nil {
		return nil, err
	}
	dir := NewDirectory(lba-1, lba, parentLBA)
	if err := dir.Save(f.device, lba); err != nil {
		return nil, err
	}
	return dir, nil
}

// tableFor returns the allocation table of dir along with its sector.
// The root table is the cached copy validated at start; any other
// table is loaded on demand and recreated fresh if it no longer
// validates.
func (f *FileSystem) tableFor(dir *Directory, dirLBA uint16) (*AllocationTable, uint16, error) {
	if dirLBA == RootDirSector {
		return f.rootTable, RootTableSector, nil
	}
	table, err := LoadAllocationTable(f.device, dir.FATSector())
	if err != nil {
		return nil, 0, err
	}
	if !table.IsValid() {
		table = NewAllocationTable()
		if err := table.Save(f.device, dir.FATSector()); err != nil {
			return nil, 0, err
		}
	}
	return table, dir.FATSector(), nil
}

// dataSector maps a file entry's allocation table slot to its absolute
// data sector.
func (f *FileSystem) dataSector(table *AllocationTable, cluster int) (uint16, error) {
	entry, err := table.EntryAt(cluster)
	if err != nil {
		return 0, err
	}
	offset, err := entry.Sector()
	if err != nil {
		return 0, err
	}
	return FirstUsableSector + offset, nil
}

// Entries lists the contents of the working directory.
func (f *FileSystem) Entries() ([]kfat.EntryInfo, error) {
	dir, _, err := f.resolve()
	if err != nil {
		return nil, err
	}
	entries := dir.Entries()
	result := make([]kfat.EntryInfo, 0, len(entries))
	for i := range entries {
		result = append(result, kfat.EntryInfo{
			Name: entries[i].Name(),
			Kind: entries[i].Kind(),
		})
	}
	return result, nil
}

// NewDir creates a subdirectory of the working directory. The new
// directory gets its own allocation table and record in one
// contiguous nine-sector block, with "." pointing at its record and
// ".." at the working directory.
func (f *FileSystem) NewDir(name string) error {
	if reservedName(name) {
		return fmt.Errorf("%w: %s", kfat.ErrDirAlreadyExists, name)
	}
	dir, dirLBA, err := f.resolve()
	if err != nil {
		return err
	}
	if _, err := dir.GetEntry(name); err == nil {
		return fmt.Errorf("%w: %s", kfat.ErrDirAlreadyExists, name)
	}

	base := f.alloc.ContiguousSectors(DirectoryBlockSectors)
	childLBA := base + 1

	childTable := NewAllocationTable()
	child := NewDirectory(base, childLBA, dirLBA)

	if err := dir.AddEntry(NewDirectoryEntry(name, childLBA, kfat.KindDirectory)); err != nil {
		f.alloc.FreeDirectory(base)
		return err
	}

	if err := childTable.Save(f.device, base); err != nil {
		return err
	}
	if err := child.Save(f.device, childLBA); err != nil {
		return err
	}
	if err := dir.Save(f.device, dirLBA); err != nil {
		return err
	}
	return f.alloc.Save(f.device)
}

// AddFile creates an empty file in the working directory, backed by
// one zero-filled data sector.
func (f *FileSystem) AddFile(name string) error {
	if reservedName(name) {
		return fmt.Errorf("%w: %s", kfat.ErrFileAlreadyExists, name)
	}
	dir, dirLBA, err := f.resolve()
	if err != nil {
		return err
	}
	if _, err := dir.GetEntry(name); err == nil {
		return fmt.Errorf("%w: %s", kfat.ErrFileAlreadyExists, name)
	}

	table, tableLBA, err := f.tableFor(dir, dirLBA)
	if err != nil {
		return err
	}

	lba := f.alloc.FreeSector()
	used, err := UsedEntry(lba - FirstUsableSector)
	if err != nil {
		f.alloc.Free(lba)
		return err
	}
	cluster, err := table.AddEntry(used)
	if err != nil {
		f.alloc.Free(lba)
		return err
	}
	if err := dir.AddEntry(NewDirectoryEntry(name, uint16(cluster), kfat.KindFile)); err != nil {
		table.RemoveEntry(cluster)
		f.alloc.Free(lba)
		return err
	}

	if err := f.device.WriteSectors(make([]byte, kfat.SectorSize), uint64(lba), 1); err != nil {
		return Fatal(err)
	}
	if err := table.Save(f.device, tableLBA); err != nil {
		return err
	}
	if err := dir.Save(f.device, dirLBA); err != nil {
		return err
	}
	return f.alloc.Save(f.device)
}

// fileSector resolves name to the absolute data sector of a file in
// the working directory.
func (f *FileSystem) fileSector(name string) (uint16, error) {
	dir, dirLBA, err := f.resolve()
	if err != nil {
		return 0, err
	}
	entry, err := dir.GetEntry(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", kfat.ErrFileNotFound, name)
	}
	if entry.IsDir() {
		return 0, fmt.Errorf("%w: %s", kfat.ErrNotAFile, name)
	}
	table, _, err := f.tableFor(dir, dirLBA)
	if err != nil {
		return 0, err
	}
	return f.dataSector(table, int(entry.FirstCluster()))
}

// GetData returns the full data sector of the named file.
func (f *FileSystem) GetData(name string) ([]byte, error) {
	lba, err := f.fileSector(name)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, kfat.SectorSize)
	if err := f.device.ReadSectors(buf, uint64(lba), 1); err != nil {
		return nil, Fatal(err)
	}
	return buf, nil
}

// ChangeData replaces the file's data sector with buf, zero-padded to
// a whole sector. Data larger than one sector does not fit: files are
// capped at a single sector.
func (f *FileSystem) ChangeData(name string, buf []byte) error {
	if len(buf) > kfat.SectorSize {
		return fmt.Errorf("%w: data exceeds one sector", kfat.ErrOutOfSpace)
	}
	lba, err := f.fileSector(name)
	if err != nil {
		return err
	}
	sector := make([]byte, kfat.SectorSize)
	copy(sector, buf)
	if err := f.device.WriteSectors(sector, uint64(lba), 1); err != nil {
		return Fatal(err)
	}
	return nil
}

// AppendData fills the file's data sector from its first zero byte
// onward.
func (f *FileSystem) AppendData(name string, buf []byte) error {
	data, err := f.GetData(name)
	if err != nil {
		return err
	}
	start := len(data)
	for i, b := range data {
		if b == 0 {
			start = i
			break
		}
	}
	if start+len(buf) > kfat.SectorSize {
		return fmt.Errorf("%w: data exceeds one sector", kfat.ErrOutOfSpace)
	}
	copy(data[start:], buf)
	return f.ChangeData(name, data)
}

// reservedName reports names that never denote a creatable or
// removable entry: the empty string and the dot links every non-root
// directory is born with.
func reservedName(name string) bool {
	switch name {
	case "", ".", "..":
		return true
	}
	return false
}

// RemoveEntry deletes the named file, or, when the name refers to a
// directory, the directory and everything below it. The dot links
// belong to the directory record itself and are never removal
// targets; resolving ".." here would make the parent the victim.
func (f *FileSystem) RemoveEntry(name string) error {
	if reservedName(name) {
		return fmt.Errorf("%w: %s", kfat.ErrDirectoryNotFound, name)
	}
	err := f.removeFile(name)
	if errors.Is(err, kfat.ErrNotAFile) {
		return f.removeDirByName(name)
	}
	return err
}

// removeFile frees the file's data sector, clears its allocation
// table slot and zeroes its directory entry, in that order, so the
// allocator never loses track of a sector still referenced by the
// table.
func (f *FileSystem) removeFile(name string) error {
	dir, dirLBA, err := f.resolve()
	if err != nil {
		return err
	}
	entry, err := dir.GetEntry(name)
	if err != nil {
		return fmt.Errorf("%w: %s", kfat.ErrFileNotFound, name)
	}
	if entry.IsDir() {
		return fmt.Errorf("%w: %s", kfat.ErrNotAFile, name)
	}

	table, tableLBA, err := f.tableFor(dir, dirLBA)
	if err != nil {
		return err
	}
	cluster := int(entry.FirstCluster())
	tableEntry, err := table.EntryAt(cluster)
	if err != nil {
		return err
	}
	offset, err := tableEntry.Sector()
	if err != nil {
		return err
	}

	f.alloc.Free(FirstUsableSector + offset)
	table.RemoveEntry(cluster)
	dir.RemoveEntry(name)

	if err := table.Save(f.device, tableLBA); err != nil {
		return err
	}
	if err := dir.Save(f.device, dirLBA); err != nil {
		return err
	}
	return f.alloc.Save(f.device)
}

// removeDirByName reclaims a directory tree. Pending directories are
// kept on an explicit work list instead of call recursion so deletion
// of a deep tree runs in constant stack space. For each directory the
// data sectors named by its allocation table are freed first, then its
// children are queued, its magic is invalidated against stale reads,
// and finally its own nine-sector block goes back to the allocator.
func (f *FileSystem) removeDirByName(name string) error {
	dir, dirLBA, err := f.resolve()
	if err != nil {
		return err
	}
	entry, err := dir.GetEntry(name)
	if err != nil {
		return fmt.Errorf("%w: %s", kfat.ErrFileNotFound, name)
	}
	if !entry.IsDir() {
		return fmt.Errorf("%w: %s", kfat.ErrNotADirectory, name)
	}

	pending := []uint16{entry.FirstCluster()}
	for len(pending) > 0 {
		lba := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		target, err := LoadDirectory(f.device, lba)
		if errors.Is(err, kfat.ErrInvalidDirectory) {
			// Record is already unreadable; reclaim its block.
			// Anything below it is unreachable and leaks.
			f.alloc.FreeDirectory(lba - 1)
			continue
		}
		if err != nil {
			return err
		}

		table, err := LoadAllocationTable(f.device, target.FATSector())
		if err != nil {
			return err
		}
		if table.IsValid() {
			for i := 1; i < tableEntries; i++ {
				offset, err := table.entries[i].Sector()
				if err != nil {
					continue
				}
				f.alloc.Free(FirstUsableSector + offset)
				table.RemoveEntry(i)
			}
		}

		for _, child := range target.Entries() {
			if child.IsDir() && child.Name() != "." && child.Name() != ".." {
				pending = append(pending, child.FirstCluster())
			}
		}

		target.Invalidate()
		if err := target.Save(f.device, lba); err != nil {
			return err
		}
		f.alloc.FreeDirectory(target.FATSector())
	}

	dir.RemoveEntry(name)
	if err := dir.Save(f.device, dirLBA); err != nil {
		return err
	}
	return f.alloc.Save(f.device)
}

// SearchDirectory reports whether the working directory holds a
// directory-typed entry with the given name. Absence is not an error;
// anything else propagates.
func (f *FileSystem) SearchDirectory(name string) (bool, error) {
	dir, _, err := f.resolve()
	if err != nil {
		return false, err
	}
	entry, err := dir.GetEntry(name)
	if errors.Is(err, kfat.ErrFileNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return entry.IsDir(), nil
}

// ChangeDir moves the working directory.
func (f *FileSystem) ChangeDir(name string) error {
	switch name {
	case "/":
		f.workdir = nil
		return nil
	case ".":
		return nil
	case "..":
		if len(f.workdir) > 0 {
			f.workdir = f.workdir[:len(f.workdir)-1]
		}
		return nil
	}
	found, err := f.SearchDirectory(name)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", kfat.ErrDirectoryNotFound, name)
	}
	f.workdir = append(f.workdir, name)
	return nil
}
