package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/gestly/gestly/pkg/logger"
)

// Audience is the audience Supabase puts on user access tokens.
const Audience = "authenticated"

// Claims are the fields read from a Supabase access token.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// SupabaseAuth validates HS256 access tokens signed with the project's JWT
// secret and exposes the user id (sub) to handlers.
type SupabaseAuth struct {
	secret []byte
	log    *logger.Logger
}

// NewSupabaseAuth creates the dashboard authentication middleware.
func NewSupabaseAuth(secret string, log *logger.Logger) *SupabaseAuth {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &SupabaseAuth{secret: []byte(secret), log: log}
}

// Handler returns the middleware handler.
func (m *SupabaseAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" && websocket.IsWebSocketUpgrade(r) {
			// Browsers cannot set headers on websocket handshakes.
			token = r.URL.Query().Get("access_token")
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := m.Validate(token)
		if err != nil {
			m.log.WithError(err).WithField("path", r.URL.Path).Debug("token rejected")
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.Subject)))
	})
}

// Validate parses and checks a token.
func (m *SupabaseAuth) Validate(token string) (*Claims, error) {
	if len(m.secret) == 0 {
		return nil, errors.New("jwt secret is not configured")
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("token is not valid")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func bearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
