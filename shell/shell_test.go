package shell

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rstms/kfat/image"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func testShell(t *testing.T) (*Shell, *bytes.Buffer) {
	t.Helper()
	i, err := image.CreateImage(afero.NewMemMapFs(), "shell.img", 256)
	require.Nil(t, err)
	t.Cleanup(func() { i.Close() })

	out := &bytes.Buffer{}
	return New(i.FS(), strings.NewReader(""), out), out
}

func run(t *testing.T, s *Shell, lines ...string) {
	t.Helper()
	for _, line := range lines {
		require.True(t, s.Execute(line), line)
	}
}

func TestShellFileCommands(t *testing.T) {
	s, out := testShell(t)

	run(t, s, "touch a.txt", "ls")
	require.Equal(t, "a.txt\n", out.String())

	out.Reset()
	run(t, s, "write a.txt hello world", "cat a.txt")
	require.Equal(t, "hello world\n", out.String())

	out.Reset()
	run(t, s, "append a.txt , goodbye", "cat a.txt")
	require.Equal(t, "hello world, goodbye\n", out.String())

	out.Reset()
	run(t, s, "rm a.txt", "ls")
	require.Equal(t, "", out.String())
}

func TestShellDirectoryCommands(t *testing.T) {
	s, out := testShell(t)

	run(t, s, "mkdir docs", "ls")
	require.Equal(t, "docs <dir>\n", out.String())

	out.Reset()
	run(t, s, "cd docs", "pwd")
	require.Equal(t, "/docs\n", out.String())

	out.Reset()
	run(t, s, "touch inner", "cd ..", "pwd")
	require.Equal(t, "/\n", out.String())

	out.Reset()
	run(t, s, "cd missing")
	require.Contains(t, out.String(), "Error:")
	require.Contains(t, out.String(), "directory not found")
}

func TestShellCatEmptyFile(t *testing.T) {
	s, out := testShell(t)
	run(t, s, "touch empty", "cat empty")
	require.Equal(t, "", out.String())
}

func TestShellEcho(t *testing.T) {
	s, out := testShell(t)
	run(t, s, `echo "quoted text"`)
	require.Equal(t, "quoted text\n", out.String())

	out.Reset()
	run(t, s, "echo plain")
	require.Equal(t, "plain\n", out.String())
}

func TestShellUsageAndUnknown(t *testing.T) {
	s, out := testShell(t)

	run(t, s, "touch")
	require.Equal(t, "Usage: touch [name]\n", out.String())

	out.Reset()
	run(t, s, "write a.txt")
	require.Equal(t, "Usage: write [name] [text]\n", out.String())

	out.Reset()
	run(t, s, "frobnicate")
	require.Equal(t, "frobnicate: command not found\n", out.String())
}

func TestShellExit(t *testing.T) {
	s, _ := testShell(t)
	require.False(t, s.Execute("exit"))
}

func TestShellRun(t *testing.T) {
	i, err := image.CreateImage(afero.NewMemMapFs(), "run.img", 256)
	require.Nil(t, err)
	defer i.Close()

	in := strings.NewReader("touch a.txt\nls\nexit\n")
	out := &bytes.Buffer{}
	require.Nil(t, New(i.FS(), in, out).Run())
	require.Contains(t, out.String(), "a.txt")
	require.Contains(t, out.String(), "/> ")
}
