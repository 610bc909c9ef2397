package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestly/gestly/internal/app/domain/billing"
	"github.com/gestly/gestly/internal/app/domain/business"
	"github.com/gestly/gestly/internal/app/services/businesses"
	"github.com/gestly/gestly/internal/app/storage/memory"
)

const secret = "whsec_test"

var fixed = time.Unix(1900000000, 0)

func sign(payload string, ts time.Time) string {
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), ComputeSignature(ts.Unix(), []byte(payload), secret))
}

func setup(t *testing.T) (*Service, *businesses.Service, business.Business) {
	t.Helper()
	store := memory.New()
	plans := billing.DefaultPlans()
	plans[1].StripePriceID = "price_pro"
	biz := businesses.New(store, store, plans, nil)
	b, err := biz.Create(context.Background(), "owner", businesses.CreateInput{Name: "Studio"})
	require.NoError(t, err)
	svc := New(biz, secret, 0, nil).WithClock(func() time.Time { return fixed })
	return svc, biz, b
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	header := sign(string(payload), fixed)

	assert.NoError(t, VerifySignature(payload, header, secret, DefaultTolerance, fixed))
	assert.True(t, errors.Is(VerifySignature(payload, "", secret, DefaultTolerance, fixed), ErrMissingSignature))
	assert.True(t, errors.Is(VerifySignature([]byte(`{}`), header, secret, DefaultTolerance, fixed), ErrInvalidSignature))
	assert.True(t, errors.Is(VerifySignature(payload, header, "other", DefaultTolerance, fixed), ErrInvalidSignature))
	assert.True(t, errors.Is(VerifySignature(payload, header, secret, DefaultTolerance, fixed.Add(6*time.Minute)), ErrStaleSignature))

	rolled := fmt.Sprintf("t=%d,v1=deadbeef,v1=%s", fixed.Unix(), ComputeSignature(fixed.Unix(), payload, secret))
	assert.NoError(t, VerifySignature(payload, rolled, secret, DefaultTolerance, fixed))
}

func TestCheckoutThenCancel(t *testing.T) {
	svc, biz, b := setup(t)
	ctx := context.Background()

	checkout := fmt.Sprintf(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{
		"client_reference_id":%q,"customer":"cus_1","subscription":"sub_1","metadata":{"plan":"business"}}}}`, b.ID)
	res, err := svc.HandleWebhook(ctx, []byte(checkout), sign(checkout, fixed))
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Equal(t, b.ID, res.BusinessID)

	got, _ := biz.Get(ctx, b.ID)
	assert.Equal(t, billing.PlanBusiness, got.Plan)
	assert.Equal(t, "cus_1", got.StripeCustomerID)
	assert.Equal(t, billing.StatusActive, got.SubscriptionStatus)

	updated := `{"id":"evt_2","type":"customer.subscription.updated","data":{"object":{
		"id":"sub_1","customer":"cus_1","status":"active","items":{"data":[{"price":{"id":"price_pro"}}]}}}}`
	_, err = svc.HandleWebhook(ctx, []byte(updated), sign(updated, fixed))
	require.NoError(t, err)
	got, _ = biz.Get(ctx, b.ID)
	assert.Equal(t, billing.PlanPro, got.Plan)

	failed := `{"id":"evt_3","type":"invoice.payment_failed","data":{"object":{"customer":"cus_1"}}}`
	_, err = svc.HandleWebhook(ctx, []byte(failed), sign(failed, fixed))
	require.NoError(t, err)
	got, _ = biz.Get(ctx, b.ID)
	assert.Equal(t, billing.StatusPastDue, got.SubscriptionStatus)

	deleted := `{"id":"evt_4","type":"customer.subscription.deleted","data":{"object":{"id":"sub_1","customer":"cus_1"}}}`
	_, err = svc.HandleWebhook(ctx, []byte(deleted), sign(deleted, fixed))
	require.NoError(t, err)
	got, _ = biz.Get(ctx, b.ID)
	assert.Equal(t, billing.PlanFree, got.Plan)
	assert.Equal(t, billing.StatusCanceled, got.SubscriptionStatus)
	assert.Equal(t, billing.PlanFree, biz.PlanFor(got).Name)
}

func TestUnknownEventsAcknowledged(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	payload := `{"id":"evt_9","type":"charge.refunded","data":{"object":{}}}`
	res, err := svc.HandleWebhook(ctx, []byte(payload), sign(payload, fixed))
	require.NoError(t, err)
	assert.False(t, res.Handled)

	orphan := `{"id":"evt_10","type":"invoice.payment_failed","data":{"object":{"customer":"cus_unknown"}}}`
	res, err = svc.HandleWebhook(ctx, []byte(orphan), sign(orphan, fixed))
	require.NoError(t, err)
	assert.False(t, res.Handled)
}
