package image

import (
	"bytes"
	"errors"
	"os"
	"path"
	"strings"

	"github.com/rstms/kfat"
	"github.com/rstms/kfat/fat"
	"github.com/spf13/afero"
)

// FileRecord describes one entry found while scanning an image.
type FileRecord struct {
	Name string
	Dir  bool
}

// Image bundles an image file, its block device and the mounted
// filesystem, and adds path-based convenience operations on top of
// the working-directory API.
type Image struct {
	Filename string
	hostFs   afero.Fs
	device   *FileDevice
	fs       *fat.FileSystem
}

// OpenImage mounts a previously created filesystem image.
func OpenImage(hostFs afero.Fs, filename string) (*Image, error) {
	i := Image{Filename: filename, hostFs: hostFs}
	var err error
	i.device, err = OpenFileDevice(hostFs, filename)
	if err != nil {
		return nil, Fatal(err)
	}
	i.fs, err = fat.New(i.device)
	if err != nil {
		i.device.Close()
		return nil, Fatal(err)
	}
	return &i, nil
}

// CreateImage creates and formats a fresh image of the given sector
// count.
func CreateImage(hostFs afero.Fs, filename string, sectors uint64) (*Image, error) {
	i := Image{Filename: filename, hostFs: hostFs}
	var err error
	i.device, err = CreateFileDevice(hostFs, filename, sectors)
	if err != nil {
		return nil, Fatal(err)
	}
	i.fs, err = fat.Format(i.device)
	if err != nil {
		i.device.Close()
		return nil, Fatal(err)
	}
	return &i, nil
}

// Close flushes and closes the image file.
func (i *Image) Close() error {
	if i.device == nil {
		return nil
	}
	err := i.device.Close()
	i.device = nil
	return err
}

// FS exposes the mounted filesystem, for callers that want the
// working-directory API directly.
func (i *Image) FS() *fat.FileSystem {
	return i.fs
}

// splitPath breaks a slash-separated image path into its directory
// segments and final name.
func splitPath(pathname string) ([]string, string) {
	pathname = strings.Trim(path.Clean("/"+pathname), "/")
	if pathname == "" {
		return nil, ""
	}
	segments := strings.Split(pathname, "/")
	return segments[:len(segments)-1], segments[len(segments)-1]
}

// chdir moves the filesystem's working directory to the named
// segments, starting from the root.
func (i *Image) chdir(segments []string) error {
	if err := i.fs.ChangeDir("/"); err != nil {
		return err
	}
	for _, segment := range segments {
		if err := i.fs.ChangeDir(segment); err != nil {
			return err
		}
	}
	return nil
}

// IsDir reports whether pathname names a directory in the image.
func (i *Image) IsDir(pathname string) (bool, error) {
	segments, name := splitPath(pathname)
	if name == "" {
		// the root always exists
		return true, nil
	}
	if err := i.chdir(segments); err != nil {
		if errors.Is(err, kfat.ErrDirectoryNotFound) {
			return false, nil
		}
		return false, Fatal(err)
	}
	return i.fs.SearchDirectory(name)
}

// Mkdir creates a directory at pathname. The parent must exist.
func (i *Image) Mkdir(pathname string) error {
	segments, name := splitPath(pathname)
	if name == "" {
		return Fatalf("cannot create root")
	}
	if err := i.chdir(segments); err != nil {
		return err
	}
	return i.fs.NewDir(name)
}

// WriteFile stores data at pathname, creating the file if needed.
func (i *Image) WriteFile(pathname string, data []byte) error {
	segments, name := splitPath(pathname)
	if name == "" {
		return Fatalf("empty filename")
	}
	if err := i.chdir(segments); err != nil {
		return err
	}
	err := i.fs.AddFile(name)
	if err != nil && !errors.Is(err, kfat.ErrFileAlreadyExists) {
		return err
	}
	return i.fs.ChangeData(name, data)
}

// ReadFile returns the contents of the file at pathname, trimmed at
// the first zero byte. Files carry no length metadata; their content
// is zero-terminated within the data sector.
func (i *Image) ReadFile(pathname string) ([]byte, error) {
	segments, name := splitPath(pathname)
	if name == "" {
		return nil, Fatalf("empty filename")
	}
	if err := i.chdir(segments); err != nil {
		return nil, err
	}
	data, err := i.fs.GetData(name)
	if err != nil {
		return nil, err
	}
	if j := bytes.IndexByte(data, 0); j >= 0 {
		data = data[:j]
	}
	return data, nil
}

// Remove deletes the file or directory tree at pathname.
func (i *Image) Remove(pathname string) error {
	segments, name := splitPath(pathname)
	if name == "" {
		return Fatalf("cannot remove root")
	}
	if err := i.chdir(segments); err != nil {
		return err
	}
	return i.fs.RemoveEntry(name)
}

// AddFile copies a host file into the image at dstPathname. The
// content must fit in one sector.
func (i *Image) AddFile(dstPathname, srcPathname string) error {
	data, err := afero.ReadFile(i.hostFs, srcPathname)
	if err != nil {
		return Fatal(err)
	}
	if len(data) > kfat.SectorSize {
		return Fatalf("%s: %d bytes exceed the one-sector file limit",
			srcPathname, len(data))
	}
	return i.WriteFile(dstPathname, data)
}

// ScanFiles walks the whole image and returns a record for every
// entry below the root.
func (i *Image) ScanFiles() ([]FileRecord, error) {
	if err := i.fs.ChangeDir("/"); err != nil {
		return nil, err
	}
	return i.walk("/")
}

func (i *Image) walk(prefix string) ([]FileRecord, error) {
	records := []FileRecord{}
	entries, err := i.fs.Entries()
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		switch entry.Name {
		case ".", "..":
			continue
		}
		records = append(records, FileRecord{
			Name: path.Join(prefix, entry.Name),
			Dir:  entry.IsDir(),
		})
		if entry.IsDir() {
			if err := i.fs.ChangeDir(entry.Name); err != nil {
				return nil, err
			}
			subRecords, err := i.walk(path.Join(prefix, entry.Name))
			if err != nil {
				return nil, err
			}
			records = append(records, subRecords...)
			if err := i.fs.ChangeDir(".."); err != nil {
				return nil, err
			}
		}
	}
	return records, nil
}

// Import writes a host directory tree into the image.
func (i *Image) Import(dirname string) error {
	return afero.Walk(i.hostFs, dirname, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return Fatal(err)
		}
		if p == dirname {
			return nil
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, dirname), string(os.PathSeparator))
		if info.IsDir() {
			return i.Mkdir(rel)
		}
		return i.AddFile(rel, p)
	})
}
