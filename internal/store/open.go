package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"medical-record-exchange/internal/config"
)

// Open builds the record store over the configured backend.
func Open(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (*RecordStore, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Driver {
	case config.DriverFile:
		backend, err = NewFileBackend(cfg.Path)
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("create store dir %s: %w", dir, mkErr)
			}
		}
		backend, err = OpenSQLite(ctx, cfg.Path, logger)
	case config.DriverPostgres:
		backend, err = OpenPostgres(ctx, cfg.DSN, logger)
	case config.DriverS3:
		backend, err = OpenS3(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	logger.Info().Str("driver", cfg.Driver).Msg("record store opened")
	return NewRecordStore(backend, logger), nil
}
