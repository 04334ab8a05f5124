package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/eventhub/internal/metricsrv"
)

func newServeCmd(g *globals) *cobra.Command {
	var (
		f    hubFlags
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a hub with scripted extensions until interrupted",
		Long: `Register the Lua extensions, start the hub and serve /metrics, /healthz,
/readyz, /extensions and /state/{owner} until SIGINT or SIGTERM.`,
		Example: "  eventhub serve --ext counter.lua --addr :9090",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = g.cfg.Metrics.Addr
			}
			if addr == "" {
				addr = ":9090"
			}

			rt, err := buildHub(g, f)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			router := metricsrv.NewRouter(rt.hub, rt.registry, g.logger)
			serveErr := metricsrv.Serve(ctx, addr, router, g.logger)

			g.logger.Info().Msg("shutting down")
			if err := rt.shutdown(context.Background()); err != nil {
				g.logger.Warn().Err(err).Msg("hub shutdown incomplete")
			}
			return serveErr
		},
	}

	cmd.Flags().StringArrayVarP(&f.extensions, "ext", "e", nil, "Lua extension script (repeatable)")
	cmd.Flags().StringVar(&f.rulesPath, "rules", "", "YAML rules file")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, else :9090)")
	return cmd
}
