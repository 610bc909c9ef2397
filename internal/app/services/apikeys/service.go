// Package apikeys issues and authenticates public API keys.
package apikeys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gestly/gestly/internal/app/domain/apikey"
	"github.com/gestly/gestly/internal/app/domain/billing"
	"github.com/gestly/gestly/internal/app/domain/business"
	"github.com/gestly/gestly/internal/app/domain/jsonb"
	"github.com/gestly/gestly/internal/app/services"
	"github.com/gestly/gestly/internal/app/storage"
	"github.com/gestly/gestly/pkg/logger"
)

// PlanResolver returns the effective plan of a business.
type PlanResolver interface {
	Get(ctx context.Context, id string) (business.Business, error)
	PlanFor(b business.Business) billing.Plan
}

const (
	secretBytes    = 32
	displayPrefix  = 12
	touchThreshold = time.Minute
)

// Service manages API keys.
type Service struct {
	store storage.APIKeyStore
	plans PlanResolver
	log   *logger.Logger
	now   func() time.Time
}

// New constructs an API key service.
func New(store storage.APIKeyStore, plans PlanResolver, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("apikeys")
	}
	return &Service{store: store, plans: plans, log: log, now: time.Now}
}

// Hash returns the stored form of a plaintext key.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generate() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return apikey.Prefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Create issues a key. The plaintext is only ever returned here.
func (s *Service) Create(ctx context.Context, businessID, name string, scopes []string) (apikey.Issued, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return apikey.Issued{}, services.Invalid("name is required")
	}
	if len(scopes) == 0 {
		scopes = []string{apikey.ScopeRead, apikey.ScopeWrite}
	}
	for _, scope := range scopes {
		if scope != apikey.ScopeRead && scope != apikey.ScopeWrite {
			return apikey.Issued{}, services.Invalid("unknown scope %q", scope)
		}
	}
	if s.plans != nil {
		b, err := s.plans.Get(ctx, businessID)
		if err != nil {
			return apikey.Issued{}, err
		}
		if plan := s.plans.PlanFor(b); !plan.APIAccess {
			return apikey.Issued{}, fmt.Errorf("plan %s has no API access: %w", plan.Name, services.ErrPlanLimit)
		}
	}

	plaintext, err := generate()
	if err != nil {
		return apikey.Issued{}, err
	}
	key, err := s.store.CreateAPIKey(ctx, apikey.APIKey{
		BusinessID: businessID,
		Name:       name,
		Prefix:     plaintext[:displayPrefix],
		Hash:       Hash(plaintext),
		Scopes:     jsonb.Strings(scopes),
	})
	if err != nil {
		return apikey.Issued{}, err
	}
	s.log.WithField("business_id", businessID).WithField("key_id", key.ID).Info("api key issued")
	return apikey.Issued{Key: key, Plaintext: plaintext}, nil
}

// Authenticate resolves a plaintext key. Unknown and revoked keys yield
// ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, raw string) (apikey.APIKey, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, apikey.Prefix) {
		return apikey.APIKey{}, services.ErrUnauthorized
	}
	key, err := s.store.GetAPIKeyByHash(ctx, Hash(raw))
	if errors.Is(err, storage.ErrNotFound) {
		return apikey.APIKey{}, services.ErrUnauthorized
	}
	if err != nil {
		return apikey.APIKey{}, err
	}
	if key.Revoked() {
		return apikey.APIKey{}, services.ErrUnauthorized
	}

	now := s.now().UTC()
	if key.LastUsedAt == nil || now.Sub(*key.LastUsedAt) > touchThreshold {
		key.LastUsedAt = &now
		if updated, err := s.store.UpdateAPIKey(ctx, key); err != nil {
			s.log.WithError(err).WithField("key_id", key.ID).Debug("touch api key")
		} else {
			key = updated
		}
	}
	return key, nil
}

// Revoke disables a key permanently.
func (s *Service) Revoke(ctx context.Context, businessID, id string) (apikey.APIKey, error) {
	key, err := s.store.GetAPIKey(ctx, id)
	if err != nil {
		return apikey.APIKey{}, err
	}
	if key.BusinessID != businessID {
		return apikey.APIKey{}, services.NotFound("api key", id)
	}
	if key.Revoked() {
		return key, nil
	}
	now := s.now().UTC()
	key.RevokedAt = &now
	updated, err := s.store.UpdateAPIKey(ctx, key)
	if err != nil {
		return apikey.APIKey{}, err
	}
	s.log.WithField("key_id", id).Info("api key revoked")
	return updated, nil
}

// List returns the keys of a business without their hashes.
func (s *Service) List(ctx context.Context, businessID string) ([]apikey.APIKey, error) {
	return s.store.ListAPIKeys(ctx, businessID)
}
