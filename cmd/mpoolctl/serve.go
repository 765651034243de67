package main

import (
	"fmt"
	"log"

	"github.com/urfave/cli/v2"

	"github.com/rageworx/mpool/internal/config"
	"github.com/rageworx/mpool/internal/mcpserver"
	"github.com/rageworx/mpool/internal/mpool"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "run an MCP server over stdio exposing pool_stats/pool_create/pool_destroy",
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

		ctx, cancel := signalContext()
		defer cancel()

		if path := c.String("config"); path != "" {
			go func() {
				if err := config.Watch(ctx, path, func(t config.Tunables) {
					log.Printf("serve: config %s changed (fingerprint %x); restart to apply a new ladder", path, t.Fingerprint())
				}); err != nil {
					log.Printf("serve: config watch stopped: %v", err)
				}
			}()
		}

		srv := mcpserver.NewServer(m)
		return srv.Run(ctx)
	},
}
