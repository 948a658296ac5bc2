package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vdiff/internal/config"
	"github.com/vango-dev/vdiff/pkg/middleware"
	"github.com/vango-dev/vdiff/pkg/server"
	"github.com/vango-dev/vdiff/pkg/snapshot"
)

func serveCmd() *cobra.Command {
	var (
		dir  string
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve named mounts over HTTP and WebSocket",
		Long: `Start the mount server.

PUT a tree document to /mounts/{name} to render it; watchers connected to
/mounts/{name}/ws receive the resulting patches. Settings come from
vdiff.json in --config (defaults when absent), then VDIFF_PORT and
VDIFF_HOST, then flags.

Examples:
  vdiff serve
  vdiff serve --config ./deploy --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrNew(dir)
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sc, err := serverConfig(ctx, cfg)
			if err != nil {
				return err
			}
			srv := server.New(sc)
			success(cmd.OutOrStdout(), "Serving mounts on %s", sc.Address)
			if sc.Store != nil {
				info(cmd.OutOrStdout(), "Snapshots: %s", cfg.Snapshot.Backend)
			}
			if sc.MetricsPath != "" {
				info(cmd.OutOrStdout(), "Metrics:   %s", sc.MetricsPath)
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&dir, "config", "c", ".", "Directory containing vdiff.json")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from vdiff.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from vdiff.json)")

	return cmd
}

// serverConfig translates the file config into a server config, wiring
// the metrics and tracing middleware and the snapshot backend.
func serverConfig(ctx context.Context, cfg *config.Config) (*server.ServerConfig, error) {
	sc := server.DefaultServerConfig()
	sc.Address = cfg.Address()
	if d := cfg.ReadTimeout(); d > 0 {
		sc.ReadTimeout = d
	}
	if d := cfg.WriteTimeout(); d > 0 {
		sc.WriteTimeout = d
	}
	sc.MaxBodyBytes = cfg.Server.MaxBodyBytes
	sc.StrictKeys = cfg.Reconcile.StrictKeys

	if cfg.Metrics.Enabled {
		sc.MetricsPath = cfg.Metrics.Path
		sc.Middleware = append(sc.Middleware,
			middleware.Prometheus(middleware.WithNamespace(cfg.Metrics.Namespace)))
	}
	if cfg.Tracing.Enabled {
		sc.Middleware = append(sc.Middleware,
			middleware.OpenTelemetry(middleware.WithTracerName(cfg.Tracing.TracerName)))
	}

	store, err := snapshot.Open(ctx, snapshot.Options{
		Backend:  cfg.Snapshot.Backend,
		Dir:      cfg.SnapshotDir(),
		Bucket:   cfg.Snapshot.Bucket,
		Prefix:   cfg.Snapshot.Prefix,
		Region:   cfg.Snapshot.Region,
		Endpoint: cfg.Snapshot.Endpoint,
	})
	if err != nil {
		return nil, err
	}
	sc.Store = store
	return sc, nil
}
