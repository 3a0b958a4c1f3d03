package kfat

// EntryKind is the on-disk type tag of a directory entry.
type EntryKind uint8

const (
	KindFile      EntryKind = 0x01
	KindDirectory EntryKind = 0x02
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	}
	return "unknown"
}

// EntryInfo describes a single directory entry as seen by callers of
// FileSystem.Entries.
type EntryInfo struct {
	Name string
	Kind EntryKind
}

func (e EntryInfo) IsDir() bool {
	return e.Kind == KindDirectory
}
