package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/gestly/gestly/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.All = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

// NewX wraps an existing sqlx handle.
func NewX(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// mapErr converts driver errors into storage sentinels.
func mapErr(kind string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", kind, storage.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s: %w", kind, storage.ErrConflict)
	}
	return fmt.Errorf("%s: %w", kind, err)
}

func (s *Store) insert(ctx context.Context, kind, query string, arg any) error {
	_, err := s.db.NamedExecContext(ctx, query, arg)
	return mapErr(kind, err)
}

func (s *Store) update(ctx context.Context, kind, query string, arg any) error {
	result, err := s.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return mapErr(kind, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return mapErr(kind, sql.ErrNoRows)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, kind, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapErr(kind, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return mapErr(kind, sql.ErrNoRows)
	}
	return nil
}

func (s *Store) get(ctx context.Context, kind string, dest any, query string, args ...any) error {
	return mapErr(kind, s.db.GetContext(ctx, dest, query, args...))
}

func (s *Store) list(ctx context.Context, kind string, dest any, query string, args ...any) error {
	return mapErr(kind, s.db.SelectContext(ctx, dest, query, args...))
}

func now() time.Time {
	return time.Now().UTC()
}
