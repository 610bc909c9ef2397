package apikey

import (
	"time"

	"github.com/gestly/gestly/internal/app/domain/jsonb"
)

// Prefix marks plaintext Gestly API keys.
const Prefix = "gst_"

// Scopes understood by the public API.
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
)

// APIKey authenticates a business on the public API. Only the hash is kept.
type APIKey struct {
	ID         string        `json:"id" db:"id"`
	BusinessID string        `json:"business_id" db:"business_id"`
	Name       string        `json:"name" db:"name"`
	Prefix     string        `json:"prefix" db:"prefix"`
	Hash       string        `json:"-" db:"hash"`
	Scopes     jsonb.Strings `json:"scopes" db:"scopes"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	LastUsedAt *time.Time    `json:"last_used_at,omitempty" db:"last_used_at"`
	RevokedAt  *time.Time    `json:"revoked_at,omitempty" db:"revoked_at"`
}

// Allows reports whether the key carries scope. No scopes means all.
func (k APIKey) Allows(scope string) bool {
	return len(k.Scopes) == 0 || k.Scopes.Contains(scope)
}

// Revoked reports whether the key has been revoked.
func (k APIKey) Revoked() bool { return k.RevokedAt != nil }

// Issued is returned once when a key is created.
type Issued struct {
	Key       APIKey `json:"key"`
	Plaintext string `json:"plaintext"`
}
