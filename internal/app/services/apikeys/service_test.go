package apikeys

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestly/gestly/internal/app/domain/apikey"
	"github.com/gestly/gestly/internal/app/domain/billing"
	"github.com/gestly/gestly/internal/app/services"
	"github.com/gestly/gestly/internal/app/services/businesses"
	"github.com/gestly/gestly/internal/app/storage/memory"
)

func setup(t *testing.T, plan string) (*Service, string) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	biz := businesses.New(store, store, billing.DefaultPlans(), nil)
	b, err := biz.Create(ctx, "owner", businesses.CreateInput{Name: "Clinic"})
	require.NoError(t, err)
	b.Plan = plan
	_, err = biz.ApplySubscription(ctx, b)
	require.NoError(t, err)
	return New(store, biz, nil), b.ID
}

func TestCreateRequiresAPIAccess(t *testing.T) {
	svc, id := setup(t, billing.PlanFree)
	_, err := svc.Create(context.Background(), id, "site", nil)
	assert.True(t, errors.Is(err, services.ErrPlanLimit))
}

func TestIssueAuthenticateRevoke(t *testing.T) {
	svc, id := setup(t, billing.PlanBusiness)
	ctx := context.Background()

	issued, err := svc.Create(ctx, id, "website", []string{apikey.ScopeRead})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(issued.Plaintext, apikey.Prefix))
	assert.Len(t, issued.Plaintext, len(apikey.Prefix)+43)
	assert.Equal(t, Hash(issued.Plaintext), issued.Key.Hash)
	assert.True(t, strings.HasPrefix(issued.Plaintext, issued.Key.Prefix))

	key, err := svc.Authenticate(ctx, issued.Plaintext)
	require.NoError(t, err)
	assert.Equal(t, issued.Key.ID, key.ID)
	assert.NotNil(t, key.LastUsedAt)
	assert.True(t, key.Allows(apikey.ScopeRead))
	assert.False(t, key.Allows(apikey.ScopeWrite))

	_, err = svc.Authenticate(ctx, "gst_nope")
	assert.True(t, errors.Is(err, services.ErrUnauthorized))
	_, err = svc.Authenticate(ctx, "sk_live_123")
	assert.True(t, errors.Is(err, services.ErrUnauthorized))

	_, err = svc.Revoke(ctx, "other", issued.Key.ID)
	assert.True(t, errors.Is(err, services.ErrNotFound))
	_, err = svc.Revoke(ctx, id, issued.Key.ID)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, issued.Plaintext)
	assert.True(t, errors.Is(err, services.ErrUnauthorized))

	keys, err := svc.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].RevokedAt)
}

func TestCreateRejectsUnknownScope(t *testing.T) {
	svc, id := setup(t, billing.PlanBusiness)
	_, err := svc.Create(context.Background(), id, "x", []string{"admin"})
	assert.True(t, errors.Is(err, services.ErrInvalidInput))
}
