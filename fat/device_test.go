package fat

import (
	"github.com/rstms/kfat"
)

// memDevice is an in-memory sector store used by the engine tests.
type memDevice struct {
	data []byte
}

func newMemDevice(sectors int) *memDevice {
	return &memDevice{data: make([]byte, sectors*kfat.SectorSize)}
}

func (d *memDevice) span(lba uint64, count uint16) ([]byte, error) {
	start := lba * kfat.SectorSize
	end := start + uint64(count)*kfat.SectorSize
	if end > uint64(len(d.data)) {
		return nil, kfat.ErrDiskNotAvailable
	}
	return d.data[start:end], nil
}

func (d *memDevice) ReadSectors(buf []byte, lba uint64, count uint16) error {
	src, err := d.span(lba, count)
	if err != nil {
		return err
	}
	copy(buf, src)
	return nil
}

func (d *memDevice) WriteSectors(buf []byte, lba uint64, count uint16) error {
	dst, err := d.span(lba, count)
	if err != nil {
		return err
	}
	copy(dst, buf)
	return nil
}

func (d *memDevice) Check() error {
	return nil
}

// corrupt zeroes n bytes at the start of the given sector.
func (d *memDevice) corrupt(lba uint64, n int) {
	start := lba * kfat.SectorSize
	for i := 0; i < n; i++ {
		d.data[start+uint64(i)] = 0
	}
}
