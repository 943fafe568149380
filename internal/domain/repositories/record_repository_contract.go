package repositories

import (
	"context"

	"medical-record-exchange/internal/domain/entities"
)

// RecordRepositoryContract is the persistent keyed collection of records.
// Every mutation returns the new full list; the whole collection is the unit
// of persistence. Update and Delete on an unknown id are no-ops, not errors.
type RecordRepositoryContract interface {
	List(ctx context.Context) ([]entities.Record, error)
	Add(ctx context.Context, record entities.Record) ([]entities.Record, error)
	Update(ctx context.Context, record entities.Record) ([]entities.Record, error)
	Delete(ctx context.Context, id string) ([]entities.Record, error)
	// FindByID returns nil, nil when no record has the id.
	FindByID(ctx context.Context, id string) (*entities.Record, error)
}
