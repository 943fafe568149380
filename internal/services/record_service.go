package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medical-record-exchange/internal/domain"
	"medical-record-exchange/internal/domain/dtos"
	"medical-record-exchange/internal/domain/entities"
	"medical-record-exchange/internal/domain/repositories"
)

// RecordServiceImpl implements RecordServiceContract.
type RecordServiceImpl struct {
	recordRepo repositories.RecordRepositoryContract
	logger     zerolog.Logger
	now        func() time.Time
	newID      func() string
}

// NewRecordService creates a new instance of RecordServiceImpl.
func NewRecordService(repo repositories.RecordRepositoryContract, logger zerolog.Logger) RecordServiceContract {
	return &RecordServiceImpl{
		recordRepo: repo,
		logger:     logger.With().Str("component", "record_service").Logger(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

func (s *RecordServiceImpl) List(ctx context.Context) ([]entities.Record, error) {
	records, err := s.recordRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

func (s *RecordServiceImpl) Get(ctx context.Context, id string) (*entities.Record, error) {
	record, err := s.recordRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find record %s: %w", id, err)
	}
	if record == nil {
		return nil, fmt.Errorf("record %s: %w", id, domain.ErrRecordNotFound)
	}
	return record, nil
}

func (s *RecordServiceImpl) Create(ctx context.Context, request dtos.CreateRecordRequest) (*entities.Record, error) {
	record := entities.Record{
		ID:          s.newID(),
		Name:        request.Name,
		Age:         request.Age,
		Gender:      request.Gender,
		Phone:       request.Phone,
		Address:     request.Address,
		LastVisit:   request.LastVisit,
		Condition:   request.Condition,
		Medications: request.Medications,
		Treatments:  request.Treatments,
		Symptoms:    request.Symptoms,
		Notes:       request.Notes,
		FollowUp:    request.FollowUp,
		Avatar:      request.Avatar,
	}
	if record.LastVisit == "" {
		record.LastVisit = s.now().Format(entities.LastVisitLayout)
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.recordRepo.Add(ctx, record); err != nil {
		s.logger.Error().Err(err).Str("record_id", record.ID).Msg("create record failed")
		return nil, fmt.Errorf("add record: %w", err)
	}
	s.logger.Info().Str("record_id", record.ID).Msg("record created")
	return &record, nil
}

func (s *RecordServiceImpl) Edit(ctx context.Context, id string, request dtos.UpdateRecordRequest) (*entities.Record, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *current
	setString(&updated.Name, request.Name)
	if request.Age != nil {
		updated.Age = *request.Age
	}
	setString(&updated.Gender, request.Gender)
	setString(&updated.Phone, request.Phone)
	setString(&updated.Address, request.Address)
	setString(&updated.LastVisit, request.LastVisit)
	setString(&updated.Condition, request.Condition)
	setString(&updated.Medications, request.Medications)
	setString(&updated.Treatments, request.Treatments)
	setString(&updated.Symptoms, request.Symptoms)
	setString(&updated.Notes, request.Notes)
	setString(&updated.FollowUp, request.FollowUp)
	setString(&updated.Avatar, request.Avatar)

	if err := updated.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.recordRepo.Update(ctx, updated); err != nil {
		s.logger.Error().Err(err).Str("record_id", id).Msg("edit record failed")
		return nil, fmt.Errorf("update record %s: %w", id, err)
	}
	s.logger.Info().Str("record_id", id).Msg("record edited")
	return &updated, nil
}

func (s *RecordServiceImpl) Remove(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if _, err := s.recordRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	s.logger.Info().Str("record_id", id).Msg("record removed")
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
