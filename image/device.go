package image

import (
	"fmt"
	"os"

	"github.com/rstms/kfat"
	"github.com/spf13/afero"
)

// FileDevice adapts an image file to the kfat.BlockDevice contract.
// The backing filesystem is injected so tests can run on an in-memory
// afero filesystem while the CLI uses the host OS.
type FileDevice struct {
	file    afero.File
	sectors uint64
}

// ensure FileDevice implements kfat.BlockDevice
var _ kfat.BlockDevice = (*FileDevice)(nil)

// OpenFileDevice opens an existing image file as a block device.
func OpenFileDevice(hostFs afero.Fs, filename string) (*FileDevice, error) {
	file, err := hostFs.OpenFile(filename, os.O_RDWR, 0600)
	if err != nil {
		return nil, Fatal(err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, Fatal(err)
	}
	if info.Size()%kfat.SectorSize != 0 {
		file.Close()
		return nil, Fatalf("image size %d is not sector aligned", info.Size())
	}
	return &FileDevice{
		file:    file,
		sectors: uint64(info.Size()) / kfat.SectorSize,
	}, nil
}

// CreateFileDevice creates a zero-filled image file of the given
// sector count and opens it as a block device.
func CreateFileDevice(hostFs afero.Fs, filename string, sectors uint64) (*FileDevice, error) {
	file, err := hostFs.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0600)
	if err != nil {
		return nil, Fatal(err)
	}
	if err := file.Truncate(int64(sectors) * kfat.SectorSize); err != nil {
		file.Close()
		return nil, Fatal(err)
	}
	return &FileDevice{file: file, sectors: sectors}, nil
}

// SectorCount returns the device size in sectors.
func (d *FileDevice) SectorCount() uint64 {
	return d.sectors
}

func (d *FileDevice) checkRange(buf []byte, lba uint64, count uint16) (int, error) {
	n := int(count) * kfat.SectorSize
	if len(buf) < n {
		return 0, Fatalf("buffer holds %d bytes, need %d", len(buf), n)
	}
	if lba+uint64(count) > d.sectors {
		return 0, fmt.Errorf("%w: sector %d beyond device end %d",
			kfat.ErrDiskNotAvailable, lba, d.sectors)
	}
	return n, nil
}

func (d *FileDevice) ReadSectors(buf []byte, lba uint64, count uint16) error {
	n, err := d.checkRange(buf, lba, count)
	if err != nil {
		return err
	}
	if _, err := d.file.ReadAt(buf[:n], int64(lba)*kfat.SectorSize); err != nil {
		return fmt.Errorf("%w: %v", kfat.ErrDiskNotAvailable, err)
	}
	return nil
}

func (d *FileDevice) WriteSectors(buf []byte, lba uint64, count uint16) error {
	n, err := d.checkRange(buf, lba, count)
	if err != nil {
		return err
	}
	if _, err := d.file.WriteAt(buf[:n], int64(lba)*kfat.SectorSize); err != nil {
		return fmt.Errorf("%w: %v", kfat.ErrDiskNotAvailable, err)
	}
	return nil
}

func (d *FileDevice) Check() error {
	if d.file == nil {
		return kfat.ErrDiskNotAvailable
	}
	if _, err := d.file.Stat(); err != nil {
		return fmt.Errorf("%w: %v", kfat.ErrDiskNotAvailable, err)
	}
	return nil
}

// Close flushes and closes the backing file.
func (d *FileDevice) Close() error {
	if d.file == nil {
		return nil
	}
	if err := d.file.Sync(); err != nil {
		d.file.Close()
		d.file = nil
		return Fatal(err)
	}
	err := d.file.Close()
	d.file = nil
	if err != nil {
		return Fatal(err)
	}
	return nil
}
