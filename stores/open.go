package stores

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oarkflow/squealx"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/oarkflow/sudocache"
	"github.com/oarkflow/sudocache/logger"
)

// Stores bundles the opened backends for one configuration.
type Stores struct {
	Records  sudocache.RecordStore
	Identity sudocache.IdentityStore

	closers []func() error
}

// Close releases the underlying connections and caches.
func (s *Stores) Close() error {
	var first error
	for _, close := range s.closers {
		if err := close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open builds the record and identity stores the configuration asks
// for. The sqlite backend runs migrations; the redis backend keeps
// identities in memory since only rules live in Redis.
func Open(cfg *sudocache.Config) (*Stores, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	out := &Stores{}
	switch cfg.Store.Backend {
	case "", "memory":
		out.Records = sudocache.NewMemoryRecordStore()
		out.Identity = sudocache.NewMemoryIdentityStore()

	case "sqlite":
		sqlDB, err := sql.Open("sqlite", cfg.Store.SQLiteDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db := squealx.NewDb(sqlDB, "sqlite", "sudocache")
		if err := Migrate(db); err != nil {
			sqlDB.Close()
			return nil, err
		}
		out.Records = NewSQLRecordStore(db)
		out.Identity = NewSQLIdentityStore(db)
		out.closers = append(out.closers, sqlDB.Close)

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		out.Records = NewRedisRecordStore(client)
		out.Identity = sudocache.NewMemoryIdentityStore()
		out.closers = append(out.closers, client.Close)

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if cfg.Store.RistrettoNumCounter > 0 {
		ttl := time.Duration(cfg.Store.IdentityCacheTTL) * time.Millisecond
		if ttl <= 0 {
			ttl = time.Minute
		}
		cached, err := NewCachedIdentityStore(out.Identity,
			cfg.Store.RistrettoNumCounter, cfg.Store.RistrettoMaxCost, cfg.Store.RistrettoBuffer, ttl)
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("identity cache: %w", err)
		}
		out.Identity = cached
		out.closers = append(out.closers, func() error { cached.Close(); return nil })
	}

	return out, nil
}

// NewCache opens the configured stores and wraps them in a Cache for
// the configured subtree.
func NewCache(cfg *sudocache.Config) (*sudocache.Cache, *Stores, error) {
	st, err := Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts := []sudocache.CacheOption{
		sudocache.WithLogger(loggerFromConfig(cfg)),
	}
	if cfg.Store.Subtree != "" {
		opts = append(opts, sudocache.WithSubtree(cfg.Store.Subtree))
	}
	return sudocache.NewCache(st.Records, st.Identity, opts...), st, nil
}

func loggerFromConfig(cfg *sudocache.Config) logger.Logger {
	return logger.New(cfg.Logging.Driver)
}
