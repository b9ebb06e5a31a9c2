package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/pkg/config"
	"github.com/marmos91/yak/pkg/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon",
	Long: `Run the yak daemon in the foreground.

The protocol service listens on rpc.addr. Each workspace registered with
"yakd init" gets its own NFSv3 server on a random port of the nfs port
range. SIGINT or SIGTERM shuts everything down in order.

Examples:
  # Start with the default configuration
  yakd serve

  # Start with a custom config file
  yakd serve --config /etc/yak/config.yaml

  # Override settings through the environment
  YAK_LOGGING_LEVEL=DEBUG YAK_RPC_ADDR=127.0.0.1:4751 yakd serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.Info("Starting yakd", "version", Version, "commit", Commit)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	srv, err := server.New(ctx, cfg, Version, config.InitializeMetrics(cfg))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The signal watcher exits once the server is gone.
		defer cancel()
		if err := srv.Serve(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigs)

		select {
		case sig := <-sigs:
			logger.Info("Received signal, shutting down", "signal", sig.String())
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
