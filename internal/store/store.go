// Package store persists extraction run records for audit and review. The
// extraction result itself is handed to the rate-management collaborator;
// the store only keeps a copy alongside run status and completeness.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/rategrid/contract-extractor/internal/config"
	"github.com/rategrid/contract-extractor/internal/model"
)

// Store records extraction runs.
type Store interface {
	Migrate(ctx context.Context) error
	CreateRun(ctx context.Context, hotelName string) (*model.Run, error)
	CompleteRun(ctx context.Context, id string, result *model.ContractExtractionResult) error
	FailRun(ctx context.Context, id string, cause error) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
	Close() error
}

// New creates a Store from config. SQLite is the default single-node
// backend; Postgres serves shared deployments.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
