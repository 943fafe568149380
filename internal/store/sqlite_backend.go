package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sort"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"medical-record-exchange/internal/domain/entities"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const recordColumns = `id, name, age, gender, phone, address, last_visit, condition,
	medications, treatments, symptoms, notes, follow_up, avatar`

// SQLiteBackend keeps the collection in one table. The position column
// preserves insertion order; Save rewrites the table in a single transaction.
type SQLiteBackend struct {
	db     *sql.DB
	logger zerolog.Logger
}

// OpenSQLite opens (or creates) the database at dsn, applies the pragmas and
// runs the embedded migrations.
func OpenSQLite(ctx context.Context, dsn string, logger zerolog.Logger) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	// one connection keeps ":memory:" databases shared and writes serialized
	db.SetMaxOpenConns(1)

	b, err := NewSQLiteBackend(ctx, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func NewSQLiteBackend(ctx context.Context, db *sql.DB, logger zerolog.Logger) (*SQLiteBackend, error) {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, stmt := range pragmas {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	if err := runMigrations(ctx, db); err != nil {
		return nil, err
	}
	return &SQLiteBackend{
		db:     db,
		logger: logger.With().Str("backend", "sqlite").Logger(),
	}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	entries, err := embeddedMigrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && path.Ext(e.Name()) == ".sql" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := embeddedMigrations.ReadFile(path.Join("migrations", name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
	}
	return nil
}

func (b *SQLiteBackend) Load(ctx context.Context) ([]entities.Record, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM `+CollectionName+` ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []entities.Record{}
	for rows.Next() {
		var r entities.Record
		if err := rows.Scan(&r.ID, &r.Name, &r.Age, &r.Gender, &r.Phone, &r.Address, &r.LastVisit,
			&r.Condition, &r.Medications, &r.Treatments, &r.Symptoms, &r.Notes, &r.FollowUp, &r.Avatar); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func (b *SQLiteBackend) Save(ctx context.Context, records []entities.Record) (err error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				b.logger.Warn().Err(rbErr).Msg("rollback failed")
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM `+CollectionName); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+CollectionName+` (position, `+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err = stmt.ExecContext(ctx, i, r.ID, r.Name, r.Age, r.Gender, r.Phone, r.Address, r.LastVisit,
			r.Condition, r.Medications, r.Treatments, r.Symptoms, r.Notes, r.FollowUp, r.Avatar); err != nil {
			return fmt.Errorf("insert record %s: %w", r.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
