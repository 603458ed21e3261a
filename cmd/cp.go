// cmd/cp.go

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"TierBuf/pkg/pagebuf"
	"TierBuf/pkg/utils"

	"github.com/urfave/cli/v2"
)

func cpFlags() *cli.Command {
	return &cli.Command{
		Name:      "cp",
		Usage:     "copy a file into DST through a buffered session",
		ArgsUsage: "SRC DST",
		Action:    cp,
		Flags: append(storageFlags(),
			&cli.BoolFlag{
				Name:  "force",
				Usage: "overwrite DST if it exists",
			},
			&cli.BoolFlag{
				Name:  "verify",
				Usage: "read DST back through the session and compare before closing it",
			},
		),
	}
}

func cp(c *cli.Context) error {
	conf, t := setup(c)
	defer t.Close()
	if c.Args().Len() != 2 {
		return fmt.Errorf("SRC and DST are needed")
	}
	src, dst := c.Args().Get(0), c.Args().Get(1)
	if utils.Exists(dst) && !c.Bool("force") {
		return fmt.Errorf("%s exists, use --force to overwrite it", dst)
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	st, err := in.Stat()
	if err != nil {
		return err
	}

	ctx := context.Background()
	reg := newRegistry(t)
	f, err := pagebuf.Open(ctx, dst, pagebuf.ReadWrite|pagebuf.Create|pagebuf.Truncate, conf.session(true), reg)
	if err != nil {
		return err
	}
	progress, bar := utils.NewProgressBar("Copying:", st.Size(), c.Bool("quiet"))
	buf := make([]byte, f.BlockSize()*16)
	var off uint64
	for {
		n, err := io.ReadFull(in, buf)
		if n > 0 {
			if err := f.WriteAt(ctx, buf[:n], off); err != nil {
				_ = f.Close(ctx)
				return err
			}
			off += uint64(n)
			bar.IncrBy(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			_ = f.Close(ctx)
			return err
		}
	}
	bar.SetTotal(int64(off), true)
	progress.Wait()

	if c.Bool("verify") {
		if err := verify(ctx, f, in); err != nil {
			_ = f.Close(ctx)
			return err
		}
	}
	stat := f.Stats()
	if err := f.Close(ctx); err != nil {
		return err
	}
	logger.Infof("copied %d bytes from %s to %s in %d blocks", off, src, dst, stat.KnownBlocks)
	return nil
}

func verify(ctx context.Context, f *pagebuf.File, in *os.File) error {
	want := make([]byte, f.BlockSize())
	got := make([]byte, f.BlockSize())
	for off := uint64(0); off < f.EOF(); off += uint64(len(want)) {
		n, err := in.ReadAt(want, int64(off))
		if err != nil && err != io.EOF {
			return err
		}
		if err := f.ReadAt(ctx, got[:n], off); err != nil {
			return err
		}
		if !bytes.Equal(want[:n], got[:n]) {
			return fmt.Errorf("content of %s differs at block %d", f.Name(), off/f.BlockSize())
		}
	}
	logger.Infof("verified %d bytes of %s", f.EOF(), f.Name())
	return nil
}
