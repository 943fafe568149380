package store

import (
	"context"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"medical-record-exchange/internal/domain/entities"
)

// recordRow is the postgres row of one record.
type recordRow struct {
	Position    int    `gorm:"primaryKey;autoIncrement:false"`
	RecordID    string `gorm:"column:id;not null;index"`
	Name        string `gorm:"not null"`
	Age         int    `gorm:"not null;default:0"`
	Gender      string `gorm:"not null"`
	Phone       string `gorm:"not null"`
	Address     string `gorm:"not null"`
	LastVisit   string `gorm:"not null"`
	Condition   string `gorm:"not null"`
	Medications string
	Treatments  string
	Symptoms    string
	Notes       string
	FollowUp    string
	Avatar      string
}

func (recordRow) TableName() string { return CollectionName }

func toRow(position int, r entities.Record) recordRow {
	return recordRow{
		Position:    position,
		RecordID:    r.ID,
		Name:        r.Name,
		Age:         r.Age,
		Gender:      r.Gender,
		Phone:       r.Phone,
		Address:     r.Address,
		LastVisit:   r.LastVisit,
		Condition:   r.Condition,
		Medications: r.Medications,
		Treatments:  r.Treatments,
		Symptoms:    r.Symptoms,
		Notes:       r.Notes,
		FollowUp:    r.FollowUp,
		Avatar:      r.Avatar,
	}
}

func (row recordRow) toRecord() entities.Record {
	return entities.Record{
		ID:          row.RecordID,
		Name:        row.Name,
		Age:         row.Age,
		Gender:      row.Gender,
		Phone:       row.Phone,
		Address:     row.Address,
		LastVisit:   row.LastVisit,
		Condition:   row.Condition,
		Medications: row.Medications,
		Treatments:  row.Treatments,
		Symptoms:    row.Symptoms,
		Notes:       row.Notes,
		FollowUp:    row.FollowUp,
		Avatar:      row.Avatar,
	}
}

// GormBackend stores the collection in postgres through gorm, using the
// lib/pq database/sql driver underneath.
type GormBackend struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func OpenPostgres(ctx context.Context, dsn string, logger zerolog.Logger) (*GormBackend, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DriverName: "postgres",
		DSN:        dsn,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewGormBackend(ctx, db, logger)
}

// NewGormBackend migrates the records table on db.
func NewGormBackend(ctx context.Context, db *gorm.DB, logger zerolog.Logger) (*GormBackend, error) {
	if err := db.WithContext(ctx).AutoMigrate(&recordRow{}); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", CollectionName, err)
	}
	return &GormBackend{
		db:     db,
		logger: logger.With().Str("backend", "postgres").Logger(),
	}, nil
}

func (b *GormBackend) Load(ctx context.Context) ([]entities.Record, error) {
	var rows []recordRow
	if err := b.db.WithContext(ctx).Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	records := make([]entities.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}

func (b *GormBackend) Save(ctx context.Context, records []entities.Record) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&recordRow{}).Error; err != nil {
			return fmt.Errorf("clear records: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		rows := make([]recordRow, 0, len(records))
		for i, r := range records {
			rows = append(rows, toRow(i+1, r))
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert records: %w", err)
		}
		return nil
	})
}

func (b *GormBackend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
