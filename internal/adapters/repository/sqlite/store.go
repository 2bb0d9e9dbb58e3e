// Package sqlite provides a SQLite-backed entrant store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/adapters/repository/sqlite/migrations"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/metrics"
)

const entrantColumns = `id, name, weight, height, reach, age, fights, wins, deleted, created_at`

// Store persists entrants in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ repository.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite entrant store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer keeps RecordResult transactions free of SQLITE_BUSY upgrades.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func migrate(ctx context.Context, sqlDB *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, migrations.FS)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Add inserts a new entrant.
func (s *Store) Add(ctx context.Context, attrs model.Attributes) (model.Entrant, error) {
	start := time.Now()
	defer func() { metrics.RecordStorageLatency("add", metrics.Since(start)) }()

	attrs, err := repository.PrepareAttributes(attrs)
	if err != nil {
		return model.Entrant{}, err
	}
	createdAt := time.Now().UTC().Truncate(time.Millisecond)

	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO entrants (name, weight, height, reach, age, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		attrs.Name, attrs.Weight, attrs.Height, attrs.Reach, attrs.Age, toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Entrant{}, repository.Duplicate(attrs.Name)
		}
		if isCheckViolation(err) {
			return model.Entrant{}, fmt.Errorf("%w: %v", model.ErrValidation, err)
		}
		return model.Entrant{}, fmt.Errorf("insert entrant: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Entrant{}, fmt.Errorf("insert entrant id: %w", err)
	}
	return model.Entrant{
		ID:        id,
		Name:      attrs.Name,
		Weight:    attrs.Weight,
		Height:    attrs.Height,
		Reach:     attrs.Reach,
		Age:       attrs.Age,
		CreatedAt: createdAt,
	}, nil
}

// GetByID returns an entrant, deleted or not.
func (s *Store) GetByID(ctx context.Context, id int64) (model.Entrant, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+entrantColumns+` FROM entrants WHERE id = ?`, id)
	e, err := scanEntrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entrant{}, repository.NotFound(id)
	}
	if err != nil {
		return model.Entrant{}, fmt.Errorf("get entrant %d: %w", id, err)
	}
	return e, nil
}

// GetByName returns the live entrant with this exact name.
func (s *Store) GetByName(ctx context.Context, name string) (model.Entrant, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+entrantColumns+` FROM entrants WHERE name = ? AND deleted = 0`, name)
	e, err := scanEntrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entrant{}, repository.NameNotFound(name)
	}
	if err != nil {
		return model.Entrant{}, fmt.Errorf("get entrant %q: %w", name, err)
	}
	return e, nil
}

// Delete soft-deletes a live entrant.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE entrants SET deleted = 1 WHERE id = ? AND deleted = 0`, id)
	if err != nil {
		return fmt.Errorf("delete entrant %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entrant %d: %w", id, err)
	}
	if n == 0 {
		return repository.NotFound(id)
	}
	return nil
}

// List returns entrants in id order.
func (s *Store) List(ctx context.Context, includeDeleted bool) ([]model.Entrant, error) {
	query := `SELECT ` + entrantColumns + ` FROM entrants`
	if !includeDeleted {
		query += ` WHERE deleted = 0`
	}
	query += ` ORDER BY id`

	rows, err := s.sqlDB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list entrants: %w", err)
	}
	defer rows.Close()

	out := make([]model.Entrant, 0)
	for rows.Next() {
		e, err := scanEntrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entrant: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entrants: %w", err)
	}
	return out, nil
}

// RecordResult bumps both fight counters and the winner's wins in one transaction.
func (s *Store) RecordResult(ctx context.Context, winnerID, loserID int64) error {
	start := time.Now()
	defer func() { metrics.RecordStorageLatency("record_result", metrics.Since(start)) }()

	if err := repository.CheckPair(winnerID, loserID); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record result: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range []int64{winnerID, loserID} {
		var deleted bool
		err := tx.QueryRowContext(ctx, `SELECT deleted FROM entrants WHERE id = ?`, id).Scan(&deleted)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && deleted) {
			return repository.NotFound(id)
		}
		if err != nil {
			return fmt.Errorf("check entrant %d: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE entrants
		    SET fights = fights + 1,
		        wins = wins + CASE WHEN id = ? THEN 1 ELSE 0 END
		  WHERE id IN (?, ?)`,
		winnerID, winnerID, loserID,
	); err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record result: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntrant(row scanner) (model.Entrant, error) {
	var (
		e         model.Entrant
		deleted   int64
		createdAt int64
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Weight, &e.Height, &e.Reach, &e.Age,
		&e.Fights, &e.Wins, &deleted, &createdAt); err != nil {
		return model.Entrant{}, err
	}
	e.Deleted = deleted != 0
	e.CreatedAt = fromMillis(createdAt)
	return e, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

func isCheckViolation(err error) bool {
	var sqliteErr *msqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_CHECK
}
