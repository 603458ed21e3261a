// cmd/cat.go

package main

import (
	"context"
	"fmt"
	"os"

	"TierBuf/pkg/pagebuf"

	"github.com/urfave/cli/v2"
)

func catFlags() *cli.Command {
	return &cli.Command{
		Name:      "cat",
		Usage:     "print a range of FILE read through a buffered session",
		ArgsUsage: "FILE",
		Action:    cat,
		Flags: append(storageFlags(),
			&cli.Uint64Flag{
				Name:  "offset",
				Usage: "first byte to print",
			},
			&cli.Uint64Flag{
				Name:  "length",
				Usage: "number of bytes to print, 0 means up to the end",
			},
			&cli.BoolFlag{
				Name:  "warmup",
				Usage: "materialize the whole range before printing it",
			},
		),
	}
}

func cat(c *cli.Context) error {
	conf, t := setup(c)
	defer t.Close()
	if c.Args().Len() != 1 {
		return fmt.Errorf("FILE is needed")
	}
	ctx := context.Background()
	f, err := pagebuf.Open(ctx, c.Args().First(), 0, conf.session(true), newRegistry(t))
	if err != nil {
		return err
	}
	defer f.Close(ctx)

	off, length := c.Uint64("offset"), c.Uint64("length")
	end := f.EOF()
	if length > 0 && off+length < end {
		end = off + length
	}
	if off >= end {
		return nil
	}
	if c.Bool("warmup") {
		if err := f.Warmup(ctx, off, end-off); err != nil {
			return err
		}
	}
	buf := make([]byte, f.BlockSize())
	for off < end {
		n := min(uint64(len(buf)), end-off)
		if err := f.ReadAt(ctx, buf[:n], off); err != nil {
			return err
		}
		if _, err := os.Stdout.Write(buf[:n]); err != nil {
			return err
		}
		off += n
	}
	return nil
}
