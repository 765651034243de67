package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/rageworx/mpool/internal/config"
	"github.com/rageworx/mpool/internal/metrics"
	"github.com/rageworx/mpool/internal/mpool"
)

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "initialize the default multi-pool ladder and print a one-shot stats report",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "print the report as JSON instead of text"},
	},
	Action: func(c *cli.Context) error {
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

		if _, err := m.CreateMultiSync(mpool.Handle{}, tun.Ladder, nil, nil); err != nil {
			return fmt.Errorf("create default multi-pool: %w", err)
		}

		report := metrics.NewReport(m.Snapshot())
		if c.Bool("json") {
			out, err := json.MarshalIndent(report.FormatAsJSON(), "", "  ")
			if err != nil {
				return fmt.Errorf("marshal report: %w", err)
			}
			fmt.Println(string(out))
			return nil
		}
		fmt.Print(report.FormatAsText())
		return nil
	},
}
