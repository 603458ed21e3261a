// cmd/bench.go

package main

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"TierBuf/pkg/pagebuf"
	"TierBuf/pkg/utils"

	"github.com/urfave/cli/v2"
)

func benchFlags() *cli.Command {
	return &cli.Command{
		Name:      "bench",
		Usage:     "run a random read/write workload through a buffered session",
		ArgsUsage: "[FILE]",
		Action:    bench,
		Flags: append(storageFlags(),
			&cli.Uint64Flag{
				Name:  "file-size",
				Value: 256,
				Usage: "size of the working set in MiB",
			},
			&cli.IntFlag{
				Name:  "io-size",
				Value: 100,
				Usage: "size of each read and write in KiB",
			},
			&cli.IntFlag{
				Name:  "ops",
				Value: 2000,
				Usage: "number of writes, and as many reads",
			},
			&cli.Int64Flag{
				Name:  "seed",
				Usage: "seed of the workload, 0 picks one",
			},
			&cli.BoolFlag{
				Name:  "access-log",
				Usage: "print every read and write to stderr",
			},
		),
	}
}

type benchResult struct {
	op    string
	bytes uint64
	used  time.Duration
}

func (r benchResult) String() string {
	secs := r.used.Seconds()
	return fmt.Sprintf("%s %d MiB in %.2f s, %.2f MiB/s", r.op, r.bytes>>20, secs, float64(r.bytes)/(1<<20)/secs)
}

func bench(c *cli.Context) error {
	conf, t := setup(c)
	defer t.Close()
	ctx := context.Background()

	var f *pagebuf.File
	var err error
	if c.Args().Len() > 0 {
		f, err = pagebuf.Open(ctx, c.Args().First(), pagebuf.ReadWrite|pagebuf.Create, conf.session(true), newRegistry(t))
	} else {
		f, err = pagebuf.Open(ctx, "", pagebuf.ReadWrite, conf.session(false), newRegistry(t))
	}
	if err != nil {
		return err
	}

	if c.Bool("access-log") {
		done := streamAccessLog()
		defer done()
	}

	seed := c.Int64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(seed))
	size := c.Uint64("file-size") << 20
	ioSize := uint64(c.Int("io-size")) << 10
	if ioSize == 0 || ioSize > size {
		_ = f.Close(ctx)
		return fmt.Errorf("io size %d must be in (0, %d]", ioSize, size)
	}
	ops := c.Int("ops")
	logger.Infof("bench %s: %d ops of %d KiB in %d MiB, block size %d KiB, seed %d",
		t.Name(), ops, ioSize>>10, size>>20, f.BlockSize()>>10, seed)

	// the first write covers the whole working set so every read has data
	ref := make([]byte, size)
	rnd.Read(ref)
	var results []benchResult
	start := time.Now()
	if err = f.WriteAt(ctx, ref, 0); err != nil {
		_ = f.Close(ctx)
		return err
	}
	results = append(results, benchResult{"fill", size, time.Since(start)})

	progress, bar := utils.NewDynProgressBar("Running:", c.Bool("quiet"))
	bar.SetTotal(int64(2*ops), false)
	data := make([]byte, ioSize)
	var wused, rused time.Duration
	for i := 0; i < ops && err == nil; i++ {
		off := uint64(rnd.Int63n(int64(size - ioSize + 1)))
		rnd.Read(data)
		start = time.Now()
		if err = f.WriteAt(ctx, data, off); err == nil {
			copy(ref[off:], data)
		}
		wused += time.Since(start)
		bar.Increment()
	}
	for i := 0; i < ops && err == nil; i++ {
		off := uint64(rnd.Int63n(int64(size - ioSize + 1)))
		start = time.Now()
		err = f.ReadAt(ctx, data, off)
		rused += time.Since(start)
		if err == nil && !bytes.Equal(data, ref[off:off+ioSize]) {
			err = fmt.Errorf("read %d bytes at %d returned wrong data", ioSize, off)
		}
		bar.Increment()
	}
	bar.SetTotal(int64(2*ops), true)
	progress.Wait()
	if err != nil {
		_ = f.Close(ctx)
		return err
	}
	results = append(results,
		benchResult{"write", uint64(ops) * ioSize, wused},
		benchResult{"read", uint64(ops) * ioSize, rused})

	st := f.Stats()
	start = time.Now()
	if err = f.Close(ctx); err != nil {
		return err
	}
	results = append(results, benchResult{"close", st.LogicalEnd, time.Since(start)})

	for _, r := range results {
		fmt.Println(r)
	}
	ru := utils.GetRusage()
	blocks, used := t.mem.Stats()
	fmt.Printf("blocks: %d known, %d in memory (%d MiB), %d MiB allocated\n",
		st.KnownBlocks, blocks, used>>20, utils.AllocMemory()>>20)
	fmt.Printf("cpu: %.2f s user, %.2f s system, %.2f s elapsed\n",
		ru.GetUtime(), ru.GetStime(), utils.Clock().Seconds())
	return nil
}

// streamAccessLog copies the access log to stderr until the returned func is called.
func streamAccessLog() func() {
	const id = 1
	pagebuf.OpenAccessLog(id)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 1<<16)
		for {
			n := pagebuf.ReadAccessLog(id, buf, 100*time.Millisecond)
			if n > 0 {
				_, _ = os.Stderr.Write(buf[:n])
				continue
			}
			select {
			case <-stop:
				return
			default:
			}
		}
	}()
	return func() {
		close(stop)
		<-done
		pagebuf.CloseAccessLog(id)
	}
}
