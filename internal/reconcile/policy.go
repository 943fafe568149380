// Package reconcile merges a scanned record into the local store.
package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medical-record-exchange/internal/domain/entities"
	"medical-record-exchange/internal/domain/repositories"
)

// Result is the record to surface after reconciliation and whether it was
// already known locally.
type Result struct {
	Record entities.Record
	Known  bool
}

// Policy decides what a scan of an already stored identifier does.
type Policy interface {
	Merge(stored, scanned entities.Record) entities.Record
}

// ExistingWins keeps the stored record untouched: a repeated scan surfaces
// what is already on this device and never refreshes its fields.
type ExistingWins struct{}

func (ExistingWins) Merge(stored, _ entities.Record) entities.Record { return stored }

// Reconciler looks scanned records up by identifier and inserts the unknown
// ones. Unresolved identifiers receive a fresh one before insertion so that
// unrelated unidentified scans never collapse into a single record.
type Reconciler struct {
	repo   repositories.RecordRepositoryContract
	policy Policy
	newID  func() string
	logger zerolog.Logger
}

type Option func(*Reconciler)

func WithPolicy(p Policy) Option { return func(r *Reconciler) { r.policy = p } }

func WithIDGenerator(gen func() string) Option { return func(r *Reconciler) { r.newID = gen } }

func New(repo repositories.RecordRepositoryContract, logger zerolog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		repo:   repo,
		policy: ExistingWins{},
		newID:  uuid.NewString,
		logger: logger.With().Str("component", "reconcile").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile surfaces the stored record when the identifier is known, without
// writing. Otherwise it inserts the scanned record and surfaces it.
func (r *Reconciler) Reconcile(ctx context.Context, scanned entities.Record) (Result, error) {
	if scanned.Unresolved() {
		scanned.ID = r.newID()
		r.logger.Info().Str("record_id", scanned.ID).Msg("assigned identifier to unidentified record")
		return r.insert(ctx, scanned)
	}

	stored, err := r.repo.FindByID(ctx, scanned.ID)
	if err != nil {
		return Result{}, fmt.Errorf("lookup record %s: %w", scanned.ID, err)
	}
	if stored == nil {
		return r.insert(ctx, scanned)
	}

	merged := r.policy.Merge(*stored, scanned)
	if merged != *stored {
		if _, err := r.repo.Update(ctx, merged); err != nil {
			return Result{}, fmt.Errorf("update record %s: %w", merged.ID, err)
		}
	}
	r.logger.Info().Str("record_id", stored.ID).Msg("scan matched stored record")
	return Result{Record: merged, Known: true}, nil
}

// Resolve serves identifier-only scans: a lookup with no insertion. A nil
// record with a nil error means the identifier is unknown.
func (r *Reconciler) Resolve(ctx context.Context, id string) (*entities.Record, error) {
	stored, err := r.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup record %s: %w", id, err)
	}
	return stored, nil
}

func (r *Reconciler) insert(ctx context.Context, scanned entities.Record) (Result, error) {
	if _, err := r.repo.Add(ctx, scanned); err != nil {
		return Result{}, fmt.Errorf("add record %s: %w", scanned.ID, err)
	}
	r.logger.Info().Str("record_id", scanned.ID).Msg("scanned record added")
	return Result{Record: scanned, Known: false}, nil
}
