//go:build linux

package image

import (
	"fmt"

	"github.com/rstms/kfat"
	"golang.org/x/sys/unix"
)

// RawDevice accesses a real block device node directly with
// positioned reads and writes. Writes land synchronously; the
// filesystem assumes every write is on disk when the call returns.
type RawDevice struct {
	fd      int
	sectors uint64
}

// ensure RawDevice implements kfat.BlockDevice
var _ kfat.BlockDevice = (*RawDevice)(nil)

// OpenRawDevice opens a block device node, or a regular file, for
// sector I/O.
func OpenRawDevice(path string) (*RawDevice, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, Fatal(err)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, Fatal(err)
	}

	size := stat.Size
	if stat.Mode&unix.S_IFMT == unix.S_IFBLK {
		blockSize, err := unix.IoctlGetInt(fd, unix.BLKGETSIZE64)
		if err != nil {
			unix.Close(fd)
			return nil, Fatal(err)
		}
		size = int64(blockSize)
	}
	if size%kfat.SectorSize != 0 {
		unix.Close(fd)
		return nil, Fatalf("device size %d is not sector aligned", size)
	}

	return &RawDevice{fd: fd, sectors: uint64(size) / kfat.SectorSize}, nil
}

func (d *RawDevice) ReadSectors(buf []byte, lba uint64, count uint16) error {
	n := int(count) * kfat.SectorSize
	if len(buf) < n {
		return Fatalf("buffer holds %d bytes, need %d", len(buf), n)
	}
	if lba+uint64(count) > d.sectors {
		return fmt.Errorf("%w: sector %d beyond device end %d",
			kfat.ErrDiskNotAvailable, lba, d.sectors)
	}
	read, err := unix.Pread(d.fd, buf[:n], int64(lba)*kfat.SectorSize)
	if err != nil || read != n {
		return fmt.Errorf("%w: read %d of %d bytes: %v",
			kfat.ErrDiskNotAvailable, read, n, err)
	}
	return nil
}

func (d *RawDevice) WriteSectors(buf []byte, lba uint64, count uint16) error {
	n := int(count) * kfat.SectorSize
	if len(buf) < n {
		return Fatalf("buffer holds %d bytes, need %d", len(buf), n)
	}
	if lba+uint64(count) > d.sectors {
		return fmt.Errorf("%w: sector %d beyond device end %d",
			kfat.ErrDiskNotAvailable, lba, d.sectors)
	}
	written, err := unix.Pwrite(d.fd, buf[:n], int64(lba)*kfat.SectorSize)
	if err != nil || written != n {
		return fmt.Errorf("%w: wrote %d of %d bytes: %v",
			kfat.ErrDiskNotAvailable, written, n, err)
	}
	return nil
}

func (d *RawDevice) Check() error {
	var stat unix.Stat_t
	if err := unix.Fstat(d.fd, &stat); err != nil {
		return fmt.Errorf("%w: %v", kfat.ErrDiskNotAvailable, err)
	}
	return nil
}

// Close releases the device node.
func (d *RawDevice) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	if err != nil {
		return Fatal(err)
	}
	return nil
}
