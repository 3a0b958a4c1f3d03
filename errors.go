package kfat

import "errors"

// Filesystem error taxonomy. Logical conflicts are checked before any
// mutation; corruption errors are recoverable for non-root structures
// and fatal for the root ones; ErrDiskNotAvailable is fatal for any
// operation.
var (
	ErrFileNotFound      = errors.New("file not found")
	ErrDirectoryNotFound = errors.New("directory not found")
	ErrFileAlreadyExists = errors.New("file already exists")
	ErrDirAlreadyExists  = errors.New("directory already exists")
	ErrNotAFile          = errors.New("not a file")
	ErrNotADirectory     = errors.New("not a directory")

	ErrOutOfSpace = errors.New("out of space")
	ErrBadSector  = errors.New("bad sector")

	// Internal bookkeeping violations. These never surface from
	// normal user input.
	ErrIndexOutOfBounds = errors.New("index out of bounds")
	ErrUnusedSector     = errors.New("unused sector")

	ErrInvalidDirectory       = errors.New("invalid directory")
	ErrInvalidSectorAllocator = errors.New("invalid sector allocator")

	ErrDiskNotAvailable = errors.New("disk not available")
)
