package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/rstms/kfat/image"
	"github.com/rstms/kfat/shell"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

func main() {
	hostFs := afero.NewOsFs()

	app := &cli.App{
		Name:    "kfat",
		Usage:   "create and manipulate kfat filesystem images",
		Version: "0.1.0",

		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "create and format a new filesystem image",
				ArgsUsage: "[image]",
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:  "sectors",
						Usage: "image size in 512-byte sectors",
						Value: 2880,
					},
				},
				Action: func(c *cli.Context) error {
					filename, err := imageArg(c)
					if err != nil {
						return err
					}
					i, err := image.CreateImage(hostFs, filename, c.Uint64("sectors"))
					if err != nil {
						return err
					}
					return i.Close()
				},
			},
			{
				Name:      "shell",
				Usage:     "run an interactive shell on an image",
				ArgsUsage: "[image]",
				Action: func(c *cli.Context) error {
					i, err := openImageArg(hostFs, c)
					if err != nil {
						return err
					}
					defer i.Close()
					return shell.New(i.FS(), os.Stdin, os.Stdout).Run()
				},
			},
			{
				Name:      "ls",
				Usage:     "list every file and directory in an image",
				ArgsUsage: "[image]",
				Action: func(c *cli.Context) error {
					i, err := openImageArg(hostFs, c)
					if err != nil {
						return err
					}
					defer i.Close()
					records, err := i.ScanFiles()
					if err != nil {
						return err
					}
					for _, record := range records {
						if record.Dir {
							fmt.Printf("%s <dir>\n", record.Name)
						} else {
							fmt.Println(record.Name)
						}
					}
					return nil
				},
			},
			{
				Name:      "import",
				Usage:     "copy a host directory tree into an image",
				ArgsUsage: "[image] [directory]",
				Action: func(c *cli.Context) error {
					i, err := openImageArg(hostFs, c)
					if err != nil {
						return err
					}
					defer i.Close()
					dirname := c.Args().Get(1)
					if dirname == "" {
						return errors.New("missing directory argument")
					}
					return i.Import(dirname)
				},
			},
			{
				Name:      "export",
				Usage:     "copy the contents of an image into a host directory",
				ArgsUsage: "[image] [directory]",
				Action: func(c *cli.Context) error {
					i, err := openImageArg(hostFs, c)
					if err != nil {
						return err
					}
					defer i.Close()
					dirname := c.Args().Get(1)
					if dirname == "" {
						return errors.New("missing directory argument")
					}
					return i.Export(dirname)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func imageArg(c *cli.Context) (string, error) {
	filename := c.Args().First()
	if filename == "" {
		return "", errors.New("missing image argument")
	}
	return filename, nil
}

func openImageArg(hostFs afero.Fs, c *cli.Context) (*image.Image, error) {
	filename, err := imageArg(c)
	if err != nil {
		return nil, err
	}
	return image.OpenImage(hostFs, filename)
}
