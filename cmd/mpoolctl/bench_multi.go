package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/rageworx/mpool/internal/config"
	"github.com/rageworx/mpool/internal/mpool"
)

var benchMultiCommand = &cli.Command{
	Name:  "bench-multi",
	Usage: "benchmark AllocMulti dispatch across the configured size ladder",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "iterations", Value: 500_000, Usage: "alloc/free pairs to run"},
	},
	Action: benchMultiAction,
}

func benchMultiAction(c *cli.Context) error {
	tun, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if err := tun.Validate(); err != nil {
		return err
	}

	m := mpool.NewModuleWithLimits(tun.Limits())
	if err := m.Init(); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer m.Finalize()

	h, err := m.CreateMultiSync(mpool.Handle{}, tun.Ladder, nil, nil)
	if err != nil {
		return fmt.Errorf("create multi: %w", err)
	}
	defer m.Destroy(h)

	maxSize := tun.Ladder[len(tun.Ladder)-1] * 2 // exercise overflow synthesis too
	iterations := c.Int("iterations")
	rng := rand.New(rand.NewSource(1))

	start := time.Now()
	for i := 0; i < iterations; i++ {
		size := rng.Intn(maxSize) + 1
		b, err := m.AllocMulti(h, size)
		if err != nil {
			return fmt.Errorf("alloc_multi(%d): %w", size, err)
		}
		if err := m.Free(b); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("ladder=%v iterations=%d elapsed=%s throughput=%.0f ops/s\n",
		tun.Ladder, iterations, elapsed, float64(iterations)/elapsed.Seconds())

	snap := m.Snapshot()
	fmt.Printf("occupation=%d bytes, pools=%d\n", snap.Occupation, len(snap.Pools))
	return nil
}
