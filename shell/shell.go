// Package shell implements the interactive command interface over a
// mounted filesystem. Each command maps onto one filesystem operation;
// the shell itself only parses arguments and prints results.
package shell

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rstms/kfat"
)

type Shell struct {
	fs  kfat.FileSystem
	in  *bufio.Scanner
	out io.Writer
}

func New(fs kfat.FileSystem, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		fs:  fs,
		in:  bufio.NewScanner(in),
		out: out,
	}
}

// Run reads commands until EOF or exit.
func (s *Shell) Run() error {
	for {
		fmt.Fprintf(s.out, "%s> ", s.fs.WorkingDirectory())
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}
		if !s.Execute(s.in.Text()) {
			return nil
		}
	}
}

// Execute runs a single command line. It returns false when the shell
// should stop.
func (s *Shell) Execute(line string) bool {
	parts := fields(line, 3)
	if len(parts) == 0 {
		return true
	}

	switch parts[0] {
	case "exit":
		return false
	case "help":
		s.help()
	case "echo":
		if len(parts) > 1 {
			s.echo(strings.Join(parts[1:], " "))
		} else {
			fmt.Fprintln(s.out, "Usage: echo [text]")
		}
	case "pwd":
		fmt.Fprintln(s.out, s.fs.WorkingDirectory())
	case "ls":
		s.ls()
	case "touch":
		s.withName(parts, "touch [name]", s.fs.AddFile)
	case "mkdir":
		s.withName(parts, "mkdir [name]", s.fs.NewDir)
	case "rm":
		s.withName(parts, "rm [name]", s.fs.RemoveEntry)
	case "cd":
		s.withName(parts, "cd [name]", s.fs.ChangeDir)
	case "cat":
		if len(parts) < 2 {
			fmt.Fprintln(s.out, "Usage: cat [name]")
			break
		}
		s.cat(parts[1])
	case "write":
		if len(parts) < 3 {
			fmt.Fprintln(s.out, "Usage: write [name] [text]")
			break
		}
		s.report(s.fs.ChangeData(parts[1], []byte(parts[2])))
	case "append":
		if len(parts) < 3 {
			fmt.Fprintln(s.out, "Usage: append [name] [text]")
			break
		}
		s.report(s.fs.AppendData(parts[1], []byte(parts[2])))
	default:
		fmt.Fprintf(s.out, "%s: command not found\n", parts[0])
	}
	return true
}

// fields splits a command line into at most n parts, so write and
// append keep their trailing text intact, spaces included.
func fields(line string, n int) []string {
	parts := []string{}
	for _, part := range strings.SplitN(line, " ", n) {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func (s *Shell) withName(parts []string, usage string, op func(string) error) {
	if len(parts) < 2 {
		fmt.Fprintf(s.out, "Usage: %s\n", usage)
		return
	}
	s.report(op(parts[1]))
}

func (s *Shell) report(err error) {
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

func (s *Shell) echo(text string) {
	if strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) && len(text) > 2 {
		text = text[1 : len(text)-1]
	}
	fmt.Fprintln(s.out, text)
}

func (s *Shell) ls() {
	entries, err := s.fs.Entries()
	if err != nil {
		s.report(err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			fmt.Fprintf(s.out, "%s <dir>\n", entry.Name)
		} else {
			fmt.Fprintln(s.out, entry.Name)
		}
	}
}

// cat prints file content up to the first zero byte, with a trailing
// newline when the file is not empty.
func (s *Shell) cat(name string) {
	data, err := s.fs.GetData(name)
	if err != nil {
		s.report(err)
		return
	}
	end := len(data)
	for i, b := range data {
		if b == 0 {
			end = i
			break
		}
	}
	if end > 0 {
		fmt.Fprintf(s.out, "%s\n", data[:end])
	}
}

func (s *Shell) help() {
	fmt.Fprintln(s.out, "ls             - list the working directory")
	fmt.Fprintln(s.out, "cd [name|..]   - change the working directory")
	fmt.Fprintln(s.out, "pwd            - print the working directory")
	fmt.Fprintln(s.out, "touch [name]   - create an empty file")
	fmt.Fprintln(s.out, "mkdir [name]   - create a directory")
	fmt.Fprintln(s.out, "rm [name]      - remove a file or directory tree")
	fmt.Fprintln(s.out, "cat [name]     - print the contents of a file")
	fmt.Fprintln(s.out, "write [name] [text]  - replace file contents")
	fmt.Fprintln(s.out, "append [name] [text] - append to file contents")
	fmt.Fprintln(s.out, "echo [text]    - echo a string")
	fmt.Fprintln(s.out, "help           - this text")
	fmt.Fprintln(s.out, "exit           - leave the shell")
}
