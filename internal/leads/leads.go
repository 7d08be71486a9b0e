// Package leads selects and opens the configured lead store adapter.
package leads

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"architect/internal/config"
	"architect/internal/domain/lead"
	"architect/internal/leads/memorystore"
	"architect/internal/leads/postgresstore"
	"architect/internal/leads/sqlitestore"
	"architect/internal/logging"
)

// Open returns the lead store for cfg and a cleanup func that releases its resources.
func Open(ctx context.Context, cfg config.StoreConfig) (lead.Store, func(), error) {
	logger := logging.NewComponentLogger("LeadStore")

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		logger.Info("using in-memory lead store")
		return memorystore.New(), func() {}, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("create postgres pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		store := postgresstore.New(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("using postgres lead store")
		return store, pool.Close, nil

	case "sqlite":
		store, err := sqlitestore.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using sqlite lead store at %s", cfg.DSN)
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("close sqlite lead store: %v", err)
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown lead store driver %q", cfg.Driver)
	}
}
