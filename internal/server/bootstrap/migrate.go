package bootstrap

import (
	"context"
	"fmt"

	"architect/internal/config"
	"architect/internal/leads"
	"architect/internal/logging"
)

// RunMigrate opens the configured lead store, which creates its schema, and exits.
func RunMigrate(ctx context.Context, cfg config.StoreConfig) error {
	logger := logging.NewComponentLogger("Migrate")
	_, cleanup, err := leads.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("migrate %s store: %w", cfg.Driver, err)
	}
	cleanup()
	logger.Info("Lead store schema is up to date (driver=%s)", cfg.Driver)
	return nil
}
