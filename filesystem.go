package kfat

// A FileSystem provides access to a tree hierarchy of directories and
// files on a block device. All operations act relative to the current
// working directory.
type FileSystem interface {
	// Entries lists the contents of the working directory.
	Entries() ([]EntryInfo, error)

	// NewDir creates a subdirectory in the working directory.
	NewDir(name string) error
	// AddFile creates an empty file in the working directory.
	AddFile(name string) error

	// GetData returns the full data sector of the named file.
	GetData(name string) ([]byte, error)
	// ChangeData replaces the file's data sector with buf,
	// zero-padded to a whole sector.
	ChangeData(name string, buf []byte) error
	// AppendData fills the file's data sector from the first zero
	// byte onward.
	AppendData(name string, buf []byte) error

	// RemoveEntry deletes the named file, or if the name refers to
	// a directory, the directory and all its descendants.
	RemoveEntry(name string) error

	// SearchDirectory reports whether the working directory holds
	// a directory-typed entry with the given name.
	SearchDirectory(name string) (bool, error)

	// ChangeDir moves the working directory to the named
	// subdirectory, to the parent for "..", or to the root for "/".
	ChangeDir(name string) error
	// WorkingDirectory returns the current path, rooted at "/".
	WorkingDirectory() string
}
