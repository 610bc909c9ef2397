// Package middleware provides the HTTP middleware of the Gestly API.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gestly/gestly/internal/app/domain/apikey"
)

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	apiKeyKey    contextKey = "api_key"
	requestIDKey contextKey = "request_id"
)

// UserID returns the authenticated dashboard user, if any.
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

// WithUserID stores the authenticated user in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// APIKey returns the key that authenticated a public API request.
func APIKey(ctx context.Context) (apikey.APIKey, bool) {
	v, ok := ctx.Value(apiKeyKey).(apikey.APIKey)
	return v, ok
}

// WithAPIKey stores an authenticated key in ctx.
func WithAPIKey(ctx context.Context, key apikey.APIKey) context.Context {
	return context.WithValue(ctx, apiKeyKey, key)
}

// RequestID returns the id assigned to the current request.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
