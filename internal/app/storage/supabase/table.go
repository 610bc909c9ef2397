// Package supabase implements the storage interfaces over the Supabase
// PostgREST API so Gestly can run against a hosted project without a direct
// database connection.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/reflectx"

	"github.com/gestly/gestly/internal/app/domain/jsonb"
	"github.com/gestly/gestly/internal/app/storage"
	"github.com/gestly/gestly/internal/supabase"
)

var mapper = reflectx.NewMapperFunc("db", strings.ToLower)

// columns flattens a domain struct into a PostgREST row keyed by db tag.
func columns(v any, skip ...string) map[string]any {
	rv := reflect.Indirect(reflect.ValueOf(v))
	tm := mapper.TypeMap(rv.Type())
	row := make(map[string]any, len(tm.Index))
	for _, fi := range tm.Index {
		if fi.Embedded || strings.Contains(fi.Path, ".") || fi.Name == "" {
			continue
		}
		if contains(skip, fi.Path) {
			continue
		}
		val := rv.FieldByIndex(fi.Index).Interface()
		switch typed := val.(type) {
		case jsonb.Strings:
			if typed == nil {
				val = jsonb.Strings{}
			}
		case jsonb.Map:
			if typed == nil {
				val = jsonb.Map{}
			}
		}
		row[fi.Path] = val
	}
	return row
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func mapErr(kind string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *supabase.Error
	if errors.As(err, &apiErr) && apiErr.Conflict() {
		return fmt.Errorf("%s: %w", kind, storage.ErrConflict)
	}
	return fmt.Errorf("%s: %w", kind, err)
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// table wraps one PostgREST resource holding rows of type T.
type table[T any] struct {
	client *supabase.Client
	name   string
	kind   string
}

func (t table[T]) from() *supabase.QueryBuilder {
	return t.client.From(t.name).Select("*")
}

func (t table[T]) insert(ctx context.Context, v T) (T, error) {
	var zero T
	var rows []T
	if err := t.client.From(t.name).Insert(ctx, columns(v), &rows); err != nil {
		return zero, mapErr(t.kind, err)
	}
	if len(rows) == 0 {
		return v, nil
	}
	return rows[0], nil
}

func (t table[T]) update(ctx context.Context, id string, v T, skip ...string) (T, error) {
	var zero T
	var rows []T
	skip = append(skip, "id", "created_at")
	if err := t.client.From(t.name).Eq("id", id).Update(ctx, columns(v, skip...), &rows); err != nil {
		return zero, mapErr(t.kind, err)
	}
	if len(rows) == 0 {
		return zero, fmt.Errorf("%s %s: %w", t.kind, id, storage.ErrNotFound)
	}
	return rows[0], nil
}

func (t table[T]) one(ctx context.Context, q *supabase.QueryBuilder, key string) (T, error) {
	var zero T
	var rows []T
	if err := q.Limit(1).Execute(ctx, &rows); err != nil {
		return zero, mapErr(t.kind, err)
	}
	if len(rows) == 0 {
		return zero, fmt.Errorf("%s %s: %w", t.kind, key, storage.ErrNotFound)
	}
	return rows[0], nil
}

func (t table[T]) get(ctx context.Context, id string) (T, error) {
	return t.one(ctx, t.from().Eq("id", id), id)
}

func (t table[T]) list(ctx context.Context, q *supabase.QueryBuilder) ([]T, error) {
	rows := []T{}
	if err := q.Execute(ctx, &rows); err != nil {
		return nil, mapErr(t.kind, err)
	}
	return rows, nil
}

func (t table[T]) remove(ctx context.Context, q *supabase.QueryBuilder, key string) error {
	var rows []map[string]any
	if err := q.Delete(ctx, &rows); err != nil {
		return mapErr(t.kind, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s %s: %w", t.kind, key, storage.ErrNotFound)
	}
	return nil
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
