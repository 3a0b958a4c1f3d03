package image

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const testSectors = 256

func testImage(t *testing.T) (*Image, afero.Fs) {
	t.Helper()
	hostFs := afero.NewMemMapFs()
	i, err := CreateImage(hostFs, "test.img", testSectors)
	require.Nil(t, err)
	return i, hostFs
}

func TestImageCreateReopen(t *testing.T) {
	i, hostFs := testImage(t)
	require.Nil(t, i.WriteFile("hello", []byte("howdy")))
	require.Nil(t, i.Close())

	j, err := OpenImage(hostFs, "test.img")
	require.Nil(t, err)
	defer j.Close()

	data, err := j.ReadFile("hello")
	require.Nil(t, err)
	require.Equal(t, []byte("howdy"), data)
}

func TestImageOpenUnformatted(t *testing.T) {
	hostFs := afero.NewMemMapFs()
	device, err := CreateFileDevice(hostFs, "blank.img", testSectors)
	require.Nil(t, err)
	require.Nil(t, device.Close())

	_, err = OpenImage(hostFs, "blank.img")
	require.Error(t, err)
}

func TestImageIsDir(t *testing.T) {
	i, _ := testImage(t)
	defer i.Close()

	require.Nil(t, i.Mkdir("foo"))
	require.Nil(t, i.Mkdir("foo/bar"))
	require.Nil(t, i.WriteFile("foo/baz", []byte("x")))

	for pathname, expected := range map[string]bool{
		"/":        true,
		"foo":      true,
		"/foo":     true,
		"foo/bar":  true,
		"foo/baz":  false,
		"missing":  false,
		"foo/nope": false,
		"a/b/c":    false,
	} {
		found, err := i.IsDir(pathname)
		require.Nil(t, err)
		require.Equal(t, expected, found, pathname)
	}
}

func TestImageScanFiles(t *testing.T) {
	i, _ := testImage(t)
	defer i.Close()

	require.Nil(t, i.Mkdir("docs"))
	require.Nil(t, i.WriteFile("docs/readme", []byte("hello")))
	require.Nil(t, i.WriteFile("top.txt", []byte("top")))

	records, err := i.ScanFiles()
	require.Nil(t, err)

	found := map[string]bool{}
	for _, record := range records {
		found[record.Name] = record.Dir
	}
	require.Equal(t, map[string]bool{
		"/docs":        true,
		"/docs/readme": false,
		"/top.txt":     false,
	}, found)
}

func TestImageRemove(t *testing.T) {
	i, _ := testImage(t)
	defer i.Close()

	require.Nil(t, i.Mkdir("d"))
	require.Nil(t, i.WriteFile("d/f", []byte("x")))
	require.Nil(t, i.Remove("d"))

	records, err := i.ScanFiles()
	require.Nil(t, err)
	require.Empty(t, records)
}

func TestImageImportExport(t *testing.T) {
	i, hostFs := testImage(t)
	defer i.Close()

	srcDir := filepath.Join("testdata", "files")
	require.Nil(t, hostFs.MkdirAll(filepath.Join(srcDir, "sub"), 0700))
	require.Nil(t, afero.WriteFile(hostFs, filepath.Join(srcDir, "foo"), []byte("foo contents"), 0600))
	require.Nil(t, afero.WriteFile(hostFs, filepath.Join(srcDir, "sub", "bar"), []byte("bar contents"), 0600))

	require.Nil(t, i.Import(srcDir))

	data, err := i.ReadFile("sub/bar")
	require.Nil(t, err)
	require.Equal(t, []byte("bar contents"), data)

	dstDir := filepath.Join("testdata", "out")
	require.Nil(t, i.Export(dstDir))

	exported, err := afero.ReadFile(hostFs, filepath.Join(dstDir, "foo"))
	require.Nil(t, err)
	require.Equal(t, []byte("foo contents"), exported)
	exported, err = afero.ReadFile(hostFs, filepath.Join(dstDir, "sub", "bar"))
	require.Nil(t, err)
	require.Equal(t, []byte("bar contents"), exported)
}

func TestRewriteImage(t *testing.T) {
	i, hostFs := testImage(t)
	require.Nil(t, i.Mkdir("d"))
	require.Nil(t, i.WriteFile("d/f", []byte("payload")))
	require.Nil(t, i.Close())

	require.Nil(t, RewriteImage(hostFs, "dst.img", "test.img", testSectors))

	j, err := OpenImage(hostFs, "dst.img")
	require.Nil(t, err)
	defer j.Close()
	data, err := j.ReadFile("d/f")
	require.Nil(t, err)
	require.Equal(t, []byte("payload"), data)
}

func TestFileDeviceBounds(t *testing.T) {
	hostFs := afero.NewMemMapFs()
	device, err := CreateFileDevice(hostFs, "dev.img", 4)
	require.Nil(t, err)
	defer device.Close()

	require.Nil(t, device.Check())
	require.Equal(t, uint64(4), device.SectorCount())

	buf := make([]byte, 512)
	require.Nil(t, device.ReadSectors(buf, 3, 1))
	require.Error(t, device.ReadSectors(buf, 4, 1))
	require.Error(t, device.WriteSectors(buf, 3, 2))
	require.Error(t, device.ReadSectors(buf[:100], 0, 1))
}
