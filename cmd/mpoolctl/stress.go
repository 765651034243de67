package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/rageworx/mpool/internal/config"
	"github.com/rageworx/mpool/internal/mpool"
)

var stressCommand = &cli.Command{
	Name:  "stress",
	Usage: "run concurrent alloc/free pairs against a synchronized pool",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "workers", Value: 2, Usage: "concurrent goroutines"},
		&cli.IntFlag{Name: "pairs", Value: 1_000_000, Usage: "alloc/free pairs per worker"},
		&cli.IntFlag{Name: "object-size", Value: 128, Usage: "pool object size in bytes"},
	},
	Action: stressAction,
}

func stressAction(c *cli.Context) error {
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

	h, err := m.CreateSync(mpool.Handle{}, c.Int("object-size"), nil, nil)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	defer m.Destroy(h)

	workers := c.Int("workers")
	pairs := c.Int("pairs")

	var g errgroup.Group
	start := time.Now()
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for j := 0; j < pairs; j++ {
				b, err := m.Alloc(h)
				if err != nil {
					return err
				}
				if err := m.Free(b); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	total := int64(workers) * int64(pairs)
	fmt.Printf("workers=%d pairs_per_worker=%d total_pairs=%d elapsed=%s throughput=%.0f pairs/s\n",
		workers, pairs, total, elapsed, float64(total)/elapsed.Seconds())
	return nil
}
