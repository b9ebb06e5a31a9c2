package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/pkg/object"
	"github.com/marmos91/yak/pkg/store"
)

// BadgerObjectStore implements store.ObjectStore on an in-memory BadgerDB.
//
// BadgerDB runs with WithInMemory(true): nothing touches disk and the data
// is gone when the store is closed.
//
// Each Write is one blind db.Update transaction. Since the value under a key
// is a pure function of the key, concurrent writers of the same object can
// never disagree, and blind writes never raise badger.ErrConflict.
type BadgerObjectStore struct {
	db        *badger.DB
	emptyTree object.ID
}

var _ store.ObjectStore = (*BadgerObjectStore)(nil)

// Config holds the backend options from the `store.badger` config block.
type Config struct {
	// BlockCacheMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheMB int64 `mapstructure:"block_cache_mb"`

	// IndexCacheMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheMB int64 `mapstructure:"index_cache_mb"`
}

// ConfigFromOptions decodes a raw option map into Config.
func ConfigFromOptions(opts map[string]any) (Config, error) {
	var cfg Config
	if err := mapstructure.Decode(opts, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid badger store options: %w", err)
	}
	return cfg, nil
}

// NewBadgerObjectStore opens an in-memory BadgerDB.
func NewBadgerObjectStore(ctx context.Context, cfg Config) (*BadgerObjectStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blockCacheMB := cfg.BlockCacheMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := cfg.IndexCacheMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}

	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(badgerLogger{}).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None).
		WithBlockCacheSize(blockCacheMB << 20).
		WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory BadgerDB: %w", err)
	}

	return &BadgerObjectStore{
		db:        db,
		emptyTree: object.Hash(&object.Tree{}),
	}, nil
}

func (s *BadgerObjectStore) EmptyTreeID() object.ID {
	return s.emptyTree
}

// put stores the canonical encoding of v under its id.
func (s *BadgerObjectStore) put(ctx context.Context, kind store.Kind, v object.Encodable) (object.ID, error) {
	if err := ctx.Err(); err != nil {
		return object.ID{}, err
	}

	data := object.Encode(v)
	id := object.Hash(v)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(objectKey(kind, id), data)
	})
	if err != nil {
		return object.ID{}, store.NewIOError(kind, "write", err)
	}
	return id, nil
}

// get returns a copy of the encoded object under id.
func (s *BadgerObjectStore) get(ctx context.Context, kind store.Kind, id object.ID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(objectKey(kind, id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.NewNotFoundError(kind, id)
	}
	if err != nil {
		return nil, store.NewIOError(kind, "read", err)
	}
	return data, nil
}

func (s *BadgerObjectStore) WriteFile(ctx context.Context, f *object.File) (object.ID, error) {
	if err := store.ValidateNotNil(store.KindFile, f == nil); err != nil {
		return object.ID{}, err
	}
	return s.put(ctx, store.KindFile, f)
}

func (s *BadgerObjectStore) ReadFile(ctx context.Context, id object.ID) (*object.File, error) {
	data, err := s.get(ctx, store.KindFile, id)
	if err != nil {
		return nil, err
	}
	f, err := object.DecodeFile(data)
	if err != nil {
		return nil, store.NewIOError(store.KindFile, "decode", err)
	}
	return f, nil
}

func (s *BadgerObjectStore) WriteSymlink(ctx context.Context, l *object.Symlink) (object.ID, error) {
	if err := store.ValidateNotNil(store.KindSymlink, l == nil); err != nil {
		return object.ID{}, err
	}
	return s.put(ctx, store.KindSymlink, l)
}

func (s *BadgerObjectStore) ReadSymlink(ctx context.Context, id object.ID) (*object.Symlink, error) {
	data, err := s.get(ctx, store.KindSymlink, id)
	if err != nil {
		return nil, err
	}
	l, err := object.DecodeSymlink(data)
	if err != nil {
		return nil, store.NewIOError(store.KindSymlink, "decode", err)
	}
	return l, nil
}

func (s *BadgerObjectStore) WriteTree(ctx context.Context, t *object.Tree) (object.ID, error) {
	if err := store.ValidateTree(t); err != nil {
		return object.ID{}, err
	}
	return s.put(ctx, store.KindTree, t)
}

func (s *BadgerObjectStore) ReadTree(ctx context.Context, id object.ID) (*object.Tree, error) {
	data, err := s.get(ctx, store.KindTree, id)
	if store.IsNotFound(err) && id == s.emptyTree {
		return &object.Tree{}, nil
	}
	if err != nil {
		return nil, err
	}
	t, err := object.DecodeTree(data)
	if err != nil {
		return nil, store.NewIOError(store.KindTree, "decode", err)
	}
	return t, nil
}

func (s *BadgerObjectStore) WriteCommit(ctx context.Context, c *object.Commit) (object.ID, error) {
	if err := store.ValidateCommit(c); err != nil {
		return object.ID{}, err
	}
	return s.put(ctx, store.KindCommit, c)
}

func (s *BadgerObjectStore) ReadCommit(ctx context.Context, id object.ID) (*object.Commit, error) {
	data, err := s.get(ctx, store.KindCommit, id)
	if err != nil {
		return nil, err
	}
	c, err := object.DecodeCommit(data)
	if err != nil {
		return nil, store.NewIOError(store.KindCommit, "decode", err)
	}
	return c, nil
}

// Stats counts keys per prefix with key-only iteration.
func (s *BadgerObjectStore) Stats(ctx context.Context) (store.Stats, error) {
	if err := ctx.Err(); err != nil {
		return store.Stats{}, err
	}

	var stats store.Stats
	err := s.db.View(func(txn *badger.Txn) error {
		counts := map[string]*int{
			prefixFile:    &stats.Files,
			prefixSymlink: &stats.Symlinks,
			prefixTree:    &stats.Trees,
			prefixCommit:  &stats.Commits,
		}
		for prefix, n := range counts {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = []byte(prefix)

			it := txn.NewIterator(opts)
			for it.Rewind(); it.Valid(); it.Next() {
				*n++
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return store.Stats{}, fmt.Errorf("failed to count objects: %w", err)
	}
	return stats, nil
}

func (s *BadgerObjectStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes BadgerDB's internal logging through the daemon logger.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any)   { logger.Errorf("badger: "+format, args...) }
func (badgerLogger) Warningf(format string, args ...any) { logger.Warnf("badger: "+format, args...) }
func (badgerLogger) Infof(format string, args ...any)    { logger.Infof("badger: "+format, args...) }
func (badgerLogger) Debugf(format string, args ...any)   { logger.Debugf("badger: "+format, args...) }
