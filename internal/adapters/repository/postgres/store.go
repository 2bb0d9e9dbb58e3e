// Package postgres provides a PostgreSQL-backed entrant store on pgx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for goose
	"github.com/pressly/goose/v3"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/adapters/repository/postgres/migrations"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/metrics"
)

const (
	entrantColumns = `id, name, weight, height, reach, age, fights, wins, deleted, created_at`

	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

// Store persists entrants in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ repository.Store = (*Store)(nil)

// Open connects to dsn, runs migrations and returns a ready store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if err := RunMigrations(ctx, dsn); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// New wraps an existing pool. The schema must already be migrated.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// RunMigrations runs goose migrations on the given DSN.
func RunMigrations(ctx context.Context, dsn string) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening sql connection for migrations: %w", err)
	}
	defer sqlDB.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrations.FS)
	if err != nil {
		return fmt.Errorf("creating goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Add inserts a new entrant.
func (s *Store) Add(ctx context.Context, attrs model.Attributes) (model.Entrant, error) {
	start := time.Now()
	defer func() { metrics.RecordStorageLatency("add", metrics.Since(start)) }()

	attrs, err := repository.PrepareAttributes(attrs)
	if err != nil {
		return model.Entrant{}, err
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO entrants (name, weight, height, reach, age)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+entrantColumns,
		attrs.Name, attrs.Weight, attrs.Height, attrs.Reach, attrs.Age,
	)
	e, err := scanEntrant(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case codeUniqueViolation:
				return model.Entrant{}, repository.Duplicate(attrs.Name)
			case codeCheckViolation:
				return model.Entrant{}, fmt.Errorf("%w: %s", model.ErrValidation, pgErr.ConstraintName)
			}
		}
		return model.Entrant{}, fmt.Errorf("insert entrant: %w", err)
	}
	return e, nil
}

// GetByID returns an entrant, deleted or not.
func (s *Store) GetByID(ctx context.Context, id int64) (model.Entrant, error) {
	e, err := scanEntrant(s.pool.QueryRow(ctx, `SELECT `+entrantColumns+` FROM entrants WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Entrant{}, repository.NotFound(id)
	}
	if err != nil {
		return model.Entrant{}, fmt.Errorf("get entrant %d: %w", id, err)
	}
	return e, nil
}

// GetByName returns the live entrant with this exact name.
func (s *Store) GetByName(ctx context.Context, name string) (model.Entrant, error) {
	e, err := scanEntrant(s.pool.QueryRow(ctx,
		`SELECT `+entrantColumns+` FROM entrants WHERE name = $1 AND NOT deleted`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Entrant{}, repository.NameNotFound(name)
	}
	if err != nil {
		return model.Entrant{}, fmt.Errorf("get entrant %q: %w", name, err)
	}
	return e, nil
}

// Delete soft-deletes a live entrant.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE entrants SET deleted = TRUE WHERE id = $1 AND NOT deleted`, id)
	if err != nil {
		return fmt.Errorf("delete entrant %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.NotFound(id)
	}
	return nil
}

// List returns entrants in id order.
func (s *Store) List(ctx context.Context, includeDeleted bool) ([]model.Entrant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entrantColumns+` FROM entrants WHERE $1 OR NOT deleted ORDER BY id`, includeDeleted)
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

// RecordResult locks both rows in id order, re-checks them and applies the
// result in one transaction.
func (s *Store) RecordResult(ctx context.Context, winnerID, loserID int64) error {
	start := time.Now()
	defer func() { metrics.RecordStorageLatency("record_result", metrics.Since(start)) }()

	if err := repository.CheckPair(winnerID, loserID); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id, deleted FROM entrants WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
			[]int64{winnerID, loserID})
		if err != nil {
			return fmt.Errorf("lock entrants: %w", err)
		}
		live := make(map[int64]bool, 2)
		for rows.Next() {
			var (
				id      int64
				deleted bool
			)
			if err := rows.Scan(&id, &deleted); err != nil {
				rows.Close()
				return fmt.Errorf("scan entrant: %w", err)
			}
			live[id] = !deleted
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("lock entrants: %w", err)
		}
		for _, id := range []int64{winnerID, loserID} {
			if !live[id] {
				return repository.NotFound(id)
			}
		}

		if _, err := tx.Exec(ctx,
			`UPDATE entrants
			    SET fights = fights + 1,
			        wins = wins + CASE WHEN id = $1 THEN 1 ELSE 0 END
			  WHERE id IN ($1, $2)`,
			winnerID, loserID,
		); err != nil {
			return fmt.Errorf("record result: %w", err)
		}
		return nil
	})
}

func scanEntrant(row pgx.Row) (model.Entrant, error) {
	var e model.Entrant
	err := row.Scan(&e.ID, &e.Name, &e.Weight, &e.Height, &e.Reach, &e.Age,
		&e.Fights, &e.Wins, &e.Deleted, &e.CreatedAt)
	if err != nil {
		return model.Entrant{}, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}
