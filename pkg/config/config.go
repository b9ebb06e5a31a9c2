package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete daemon configuration.
//
// Sources, highest precedence first:
//  1. Environment variables (YAK_*, with "." replaced by "_")
//  2. Configuration file (YAML or TOML)
//  3. Default values
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`

	// Cache is the directory reserved for a persistent store backend. The
	// in-memory backends do not write to it.
	Cache string `mapstructure:"cache" yaml:"cache"`

	RPC     RPCConfig     `mapstructure:"rpc" yaml:"rpc"`
	NFS     NFSConfig     `mapstructure:"nfs" yaml:"nfs"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

type LoggingConfig struct {
	// Level is the minimum level written: DEBUG, INFO, WARN or ERROR
	// (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format is text or json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output is stdout, stderr or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

type ServerConfig struct {
	// ShutdownTimeout bounds each shutdown step
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`
}

// RPCConfig configures the protocol service listener.
type RPCConfig struct {
	// Addr is the TCP address to listen on
	Addr string `mapstructure:"addr" yaml:"addr" validate:"required"`

	// MaxConnections limits concurrent clients. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections" validate:"min=0"`

	// Concurrency is the number of calls a client may keep in flight,
	// reported by the CONCURRENCY procedure
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" validate:"min=1"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig throttles protocol service calls across all clients.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. 0 disables limiting.
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second"`

	// Burst is the number of calls admitted at once. 0 means the rate.
	Burst uint `mapstructure:"burst" yaml:"burst"`
}

// NFSConfig configures the per-workspace NFS servers.
type NFSConfig struct {
	// Host is the address mounts bind to and report
	Host string `mapstructure:"host" yaml:"host" validate:"required,ip"`

	// MinPort and MaxPort bound the ports mounts are drawn from
	MinPort int `mapstructure:"min_port" yaml:"min_port" validate:"min=1,max=65535"`
	MaxPort int `mapstructure:"max_port" yaml:"max_port" validate:"min=1,max=65535"`

	// MaxBindAttempts is how many ports a bind tries before failing
	MaxBindAttempts int `mapstructure:"max_bind_attempts" yaml:"max_bind_attempts" validate:"min=1"`

	BindTimeout     time.Duration `mapstructure:"bind_timeout" yaml:"bind_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"min=0"`

	// UID and GID own every file of the working copies
	UID uint32 `mapstructure:"uid" yaml:"uid"`
	GID uint32 `mapstructure:"gid" yaml:"gid"`
}

// StoreConfig selects the object store backend. Only the section matching
// Type is used.
type StoreConfig struct {
	// Type is memory or badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	Memory map[string]any `mapstructure:"memory" yaml:"memory,omitempty"`
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`
}

type MetricsConfig struct {
	// Enabled starts the HTTP status server with Prometheus collectors
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port of the status server
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
}

// Load reads configuration from the file at configPath (or the default
// location when empty), the environment and defaults, then validates it.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	// YAK_RPC_ADDR overrides rpc.addr
	v.SetEnvPrefix("YAK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// bindEnvKeys registers every known key so that environment variables
// apply even when the file does not mention the key. AutomaticEnv alone
// only covers keys viper already knows about.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"logging.level", "logging.format", "logging.output",
		"server.shutdown_timeout",
		"cache",
		"rpc.addr", "rpc.max_connections", "rpc.concurrency",
		"rpc.read_timeout", "rpc.write_timeout", "rpc.idle_timeout", "rpc.shutdown_timeout",
		"rpc.rate_limit.requests_per_second", "rpc.rate_limit.burst",
		"nfs.host", "nfs.min_port", "nfs.max_port", "nfs.max_bind_attempts",
		"nfs.bind_timeout", "nfs.shutdown_timeout",
		"nfs.read_timeout", "nfs.write_timeout", "nfs.idle_timeout",
		"nfs.uid", "nfs.gid",
		"store.type",
		"metrics.enabled", "metrics.port",
	} {
		_ = v.BindEnv(key)
	}
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns $XDG_CONFIG_HOME/yak, ~/.config/yak, or "." when
// no home directory is known.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "yak")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "yak")
}

// GetDefaultConfigPath returns the path Load reads when given none.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists reports whether a file exists at the default path.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

func GetConfigDir() string {
	return getConfigDir()
}
