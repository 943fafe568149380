package services

import (
	"context"

	"medical-record-exchange/internal/domain/dtos"
	"medical-record-exchange/internal/domain/entities"
)

// RecordServiceContract defines the explicit record management operations
// used by presentation code: local creation, the edit flow and deletion.
type RecordServiceContract interface {
	List(ctx context.Context) ([]entities.Record, error)
	// Get returns domain.ErrRecordNotFound for an unknown id.
	Get(ctx context.Context, id string) (*entities.Record, error)
	// Create assigns a fresh identifier and defaults lastVisit to today.
	Create(ctx context.Context, request dtos.CreateRecordRequest) (*entities.Record, error)
	// Edit applies the non-nil fields of request. The identifier never changes.
	Edit(ctx context.Context, id string, request dtos.UpdateRecordRequest) (*entities.Record, error)
	Remove(ctx context.Context, id string) error
}
