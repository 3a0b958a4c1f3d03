package image

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// Export writes the full contents of the image into a host directory.
// Directories come out of ScanFiles before their children, so they
// can be created in record order.
func (i *Image) Export(dirname string) error {
	if err := i.hostFs.MkdirAll(dirname, 0700); err != nil {
		return Fatal(err)
	}

	records, err := i.ScanFiles()
	if err != nil {
		return Fatal(err)
	}

	for _, record := range records {
		target := filepath.Join(dirname, filepath.FromSlash(record.Name))
		if record.Dir {
			if err := i.hostFs.Mkdir(target, 0700); err != nil {
				return Fatal(err)
			}
			continue
		}
		data, err := i.ReadFile(record.Name)
		if err != nil {
			return Fatal(err)
		}
		if err := afero.WriteFile(i.hostFs, target, data, 0600); err != nil {
			return Fatal(err)
		}
	}
	return nil
}

// RewriteImage copies everything from one image into a freshly
// formatted image of the given sector count, compacting allocations
// in the process.
func RewriteImage(hostFs afero.Fs, dstFile, srcFile string, sectors uint64) error {
	src, err := OpenImage(hostFs, srcFile)
	if err != nil {
		return Fatal(err)
	}
	defer src.Close()

	dst, err := CreateImage(hostFs, dstFile, sectors)
	if err != nil {
		return Fatal(err)
	}
	defer dst.Close()

	records, err := src.ScanFiles()
	if err != nil {
		return Fatal(err)
	}

	for _, record := range records {
		if record.Dir {
			if err := dst.Mkdir(record.Name); err != nil {
				return Fatal(err)
			}
			continue
		}
		data, err := src.ReadFile(record.Name)
		if err != nil {
			return Fatal(err)
		}
		if err := dst.WriteFile(record.Name, data); err != nil {
			return Fatal(err)
		}
	}
	return nil
}
