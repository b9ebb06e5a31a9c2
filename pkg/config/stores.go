package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/pkg/store"
	"github.com/marmos91/yak/pkg/store/badger"
	"github.com/marmos91/yak/pkg/store/memory"
)

// memoryStoreOptions is the memory backend's section. It has no tunables
// yet; decoding it still rejects malformed sections.
type memoryStoreOptions struct{}

// CreateStore builds the object store selected by cfg.Type from its
// type-specific section.
func CreateStore(ctx context.Context, cfg *StoreConfig) (store.ObjectStore, error) {
	switch cfg.Type {
	case "memory":
		var opts memoryStoreOptions
		if err := mapstructure.Decode(cfg.Memory, &opts); err != nil {
			return nil, fmt.Errorf("invalid memory store options: %w", err)
		}
		logger.Debug("Creating object store", "type", cfg.Type)
		return memory.NewMemoryObjectStore(), nil

	case "badger":
		badgerCfg, err := badger.ConfigFromOptions(cfg.Badger)
		if err != nil {
			return nil, err
		}
		logger.Debug("Creating object store", "type", cfg.Type,
			"block_cache_mb", badgerCfg.BlockCacheMB, "index_cache_mb", badgerCfg.IndexCacheMB)
		s, err := badger.NewBadgerObjectStore(ctx, badgerCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}
}
