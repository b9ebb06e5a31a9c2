package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/pkg/client"
	"github.com/marmos91/yak/pkg/config"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// dialDaemon connects to addr, or to the rpc.addr of the loaded
// configuration when addr is empty.
func dialDaemon(ctx context.Context, addr string) (*client.Client, error) {
	if addr == "" {
		cfg, err := config.Load(GetConfigFile())
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		addr = cfg.RPC.Addr
	}
	c, err := client.Dial(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("daemon not reachable at %s: %w", addr, err)
	}
	return c, nil
}

func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.ConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
