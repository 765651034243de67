package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/rageworx/mpool/internal/version"
)

func main() {
	app := &cli.App{
		Name:                   "mpoolctl",
		Usage:                  "exercise and introspect a hierarchical slab allocator",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Tunables config path (.toml or .kdl)",
			},
		},
		Commands: []*cli.Command{
			stressCommand,
			benchMultiCommand,
			serveCommand,
			statusCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "mpoolctl:", err)
		os.Exit(1)
	}
}

// signalContext returns a context canceled on SIGINT/SIGTERM, the
// pattern the teacher's server command uses for graceful shutdown.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
