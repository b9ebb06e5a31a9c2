package config

import (
	"errors"
	"fmt"
	"net"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/yak/pkg/store/badger"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks struct tags and then the rules tags cannot express.
// Log levels are accepted in either case; ApplyDefaults normalizes them.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if _, _, err := net.SplitHostPort(cfg.RPC.Addr); err != nil {
		return fmt.Errorf("rpc.addr: %w", err)
	}
	if cfg.NFS.MinPort > cfg.NFS.MaxPort {
		return fmt.Errorf("nfs: min_port %d is greater than max_port %d", cfg.NFS.MinPort, cfg.NFS.MaxPort)
	}
	if cfg.Store.Type == "badger" {
		if _, err := badger.ConfigFromOptions(cfg.Store.Badger); err != nil {
			return fmt.Errorf("store.badger: %w", err)
		}
	}
	if cfg.RPC.RateLimit.RequestsPerSecond == 0 && cfg.RPC.RateLimit.Burst != 0 {
		return fmt.Errorf("rpc.rate_limit: burst %d set without requests_per_second", cfg.RPC.RateLimit.Burst)
	}
	return nil
}

// formatValidationError reports the first failed field with its tag and
// value.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
