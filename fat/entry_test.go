package fat

import (
	"testing"

	"github.com/rstms/kfat"
	"github.com/stretchr/testify/require"
)

func TestUsedEntrySectorRoundTrip(t *testing.T) {
	for _, offset := range []uint16{0, 1, 42, 0x800, 0xFFF} {
		entry, err := UsedEntry(offset)
		require.Nil(t, err)
		require.Equal(t, StateUsed, entry.State())
		sector, err := entry.Sector()
		require.Nil(t, err)
		require.Equal(t, offset, sector)
	}
}

func TestUsedEntryOffsetOverflow(t *testing.T) {
	_, err := UsedEntry(0x1000)
	require.ErrorIs(t, err, kfat.ErrBadSector)
}

func TestNonUsedEntryHasNoSector(t *testing.T) {
	for _, entry := range []AllocationEntry{FreeEntry(), EndOfChainEntry(), BadEntry()} {
		_, err := entry.Sector()
		require.ErrorIs(t, err, kfat.ErrUnusedSector)
	}
}

func TestAllocationEntryEncoding(t *testing.T) {
	entry, err := UsedEntry(0xABC)
	require.Nil(t, err)

	buf := make([]byte, 2)
	entry.encode(buf)
	// little-endian: payload low byte first, tag in the high nibble
	require.Equal(t, byte(0xBC), buf[0])
	require.Equal(t, byte(0x3A), buf[1])

	require.Equal(t, entry, decodeAllocationEntry(buf))
}
