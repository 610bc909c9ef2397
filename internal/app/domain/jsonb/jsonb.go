// Package jsonb holds column types persisted as JSON documents. They work
// with database/sql (and sqlx) on Postgres jsonb columns and marshal as
// plain JSON for the Supabase REST API.
package jsonb

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Strings is a list of strings stored as a JSON array.
type Strings []string

// Value implements driver.Valuer.
func (s Strings) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return Value(s)
}

// Scan implements sql.Scanner.
func (s *Strings) Scan(src any) error {
	return Scan(src, s)
}

// Contains reports whether v is in the list.
func (s Strings) Contains(v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

// Map is a string map stored as a JSON object.
type Map map[string]string

// Value implements driver.Valuer.
func (m Map) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return Value(m)
}

// Scan implements sql.Scanner.
func (m *Map) Scan(src any) error {
	return Scan(src, m)
}

// Clone returns a copy of the map.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Value marshals v for storage in a JSON column. A string is returned since
// lib/pq sends []byte parameters as bytea.
func Value(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes a JSON column into dst. NULL leaves dst untouched.
func Scan(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("jsonb: unsupported source type %T", src)
	}
}
