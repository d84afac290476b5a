package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ecosight/ecosight/cmd/ecosight/internal/build"
	"github.com/ecosight/ecosight/pkg/metrics"
	"github.com/ecosight/ecosight/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection API",
	Long: `Run the HTTP API and the WebSocket sensor stream.

The server starts immediately; models load in the background and are
retried with backoff. Until they load, /health reports "unhealthy" and
prediction endpoints answer 503.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	logger := slog.Default()

	var m *metrics.Metrics
	if cfg.Server.Metrics {
		m = metrics.New()
	}
	p, loader, err := newPipeline(cfg, m)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	go func() {
		if err := loader.Run(ctx, cfg.Backoff()); err != nil && ctx.Err() == nil {
			logger.Error("models unavailable, serving without them", "error", err)
		}
	}()

	srv := server.New(cfg.ServerConfig(), p,
		server.WithLogger(logger),
		server.WithMetrics(m),
		server.WithVersion(build.Version),
	)
	logger.Info("starting ecosight", "version", build.Version, "addr", cfg.Server.Addr)
	return srv.ListenAndServe(ctx)
}
