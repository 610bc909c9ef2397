package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gestly/gestly/internal/app/domain/apikey"
	"github.com/gestly/gestly/internal/app/services"
	"github.com/gestly/gestly/pkg/logger"
)

// APIKeyHeader carries public API keys.
const APIKeyHeader = "X-API-Key"

// Authenticator resolves a plaintext API key.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (apikey.APIKey, error)
}

// APIKeyAuth authenticates public API requests by X-API-Key or a gst_
// bearer token.
func APIKeyAuth(auth Authenticator, log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.NewDefault("apikey")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(APIKeyHeader))
			if raw == "" {
				if token := bearer(r); strings.HasPrefix(token, apikey.Prefix) {
					raw = token
				}
			}
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "missing api key")
				return
			}
			key, err := auth.Authenticate(r.Context(), raw)
			if err != nil {
				if !errors.Is(err, services.ErrUnauthorized) {
					log.WithError(err).Error("authenticate api key")
					writeError(w, http.StatusInternalServerError, "internal error")
					return
				}
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAPIKey(r.Context(), key)))
		})
	}
}

// RequireScope rejects keys without scope.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := APIKey(r.Context())
			if !ok || !key.Allows(scope) {
				writeError(w, http.StatusForbidden, "api key lacks scope "+scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
