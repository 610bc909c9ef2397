package campaigns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestly/gestly/internal/app/domain/billing"
	"github.com/gestly/gestly/internal/app/domain/business"
	domain "github.com/gestly/gestly/internal/app/domain/campaign"
	"github.com/gestly/gestly/internal/app/domain/customer"
	"github.com/gestly/gestly/internal/app/domain/integration"
	"github.com/gestly/gestly/internal/app/services"
	"github.com/gestly/gestly/internal/app/services/businesses"
	"github.com/gestly/gestly/internal/app/storage/memory"
	"github.com/gestly/gestly/pkg/testutil"
)

var now = time.Date(2030, 5, 20, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, plan string) (*Service, *memory.Store, business.Business, *testutil.MockMessenger) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	biz := businesses.New(store, store, nil, nil)
	b, err := biz.Create(ctx, "owner", businesses.CreateInput{Name: "Spa"})
	require.NoError(t, err)
	b.Plan = plan
	b, err = biz.ApplySubscription(ctx, b)
	require.NoError(t, err)

	lastVisit := now.Add(-90 * 24 * time.Hour)
	recent := now.Add(-2 * 24 * time.Hour)
	for _, c := range []customer.Customer{
		{BusinessID: b.ID, Name: "Ana", Email: "ana@example.com", BirthDate: "1990-05-20", LoyaltyPoints: 150, LastVisitAt: &lastVisit},
		{BusinessID: b.ID, Name: "Bruno", Email: "bruno@example.com", LastVisitAt: &recent},
		{BusinessID: b.ID, Name: "Caio", Phone: "+5511988887777", LastVisitAt: &recent},
	} {
		_, err := store.CreateCustomer(ctx, c)
		require.NoError(t, err)
	}

	msg := &testutil.MockMessenger{Fail: map[string]bool{}}
	svc := New(store, store, biz, msg, nil, nil).WithClock(func() time.Time { return now })
	return svc, store, b, msg
}

func TestCreateRequiresPlan(t *testing.T) {
	svc, _, b, _ := setup(t, billing.PlanFree)
	_, err := svc.Create(context.Background(), domain.Campaign{BusinessID: b.ID, Name: "Promo", Channel: domain.ChannelEmail, Body: "hi"})
	assert.True(t, errors.Is(err, services.ErrPlanLimit))
}

func TestCreateValidatesTemplate(t *testing.T) {
	svc, _, b, _ := setup(t, billing.PlanPro)
	_, err := svc.Create(context.Background(), domain.Campaign{BusinessID: b.ID, Name: "Promo", Channel: domain.ChannelEmail, Body: "Hi {{.Customer.Name"})
	assert.True(t, errors.Is(err, services.ErrInvalidInput))
}

func TestPreviewAudiences(t *testing.T) {
	svc, _, b, _ := setup(t, billing.PlanPro)
	ctx := context.Background()

	cases := []struct {
		audience domain.Audience
		channel  domain.Channel
		size     int
	}{
		{domain.Audience{Kind: domain.AudienceAll}, domain.ChannelEmail, 2},
		{domain.Audience{Kind: domain.AudienceAll}, domain.ChannelSMS, 1},
		{domain.Audience{Kind: domain.AudienceInactive}, domain.ChannelEmail, 1},
		{domain.Audience{Kind: domain.AudienceBirthday}, domain.ChannelEmail, 1},
		{domain.Audience{Kind: domain.AudienceLoyal, MinPoints: 200}, domain.ChannelEmail, 0},
	}
	for _, tc := range cases {
		c, err := svc.Create(ctx, domain.Campaign{
			BusinessID: b.ID,
			Name:       "Promo",
			Channel:    tc.channel,
			Subject:    "News from {{.Business.Name}}",
			Body:       "Hi {{.Customer.Name}}",
			Audience:   tc.audience,
		})
		require.NoError(t, err)
		preview, err := svc.Preview(ctx, b.ID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, tc.size, preview.AudienceSize, "audience %+v on %s", tc.audience, tc.channel)
		assert.Equal(t, "News from Spa", preview.SampleSubject)
	}
}

func TestScheduleAndDispatch(t *testing.T) {
	svc, store, b, msg := setup(t, billing.PlanPro)
	ctx := context.Background()
	msg.Fail["bruno@example.com"] = true

	c, err := svc.Create(ctx, domain.Campaign{BusinessID: b.ID, Name: "Promo", Channel: domain.ChannelEmail, Body: "Hi {{.Customer.Name}}"})
	require.NoError(t, err)

	_, err = svc.Schedule(ctx, b.ID, c.ID, now.Add(-time.Hour))
	assert.True(t, errors.Is(err, services.ErrInvalidInput))

	_, err = svc.Schedule(ctx, b.ID, c.ID, now.Add(time.Minute))
	require.NoError(t, err)

	processed, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, processed, "not due yet")

	svc.WithClock(func() time.Time { return now.Add(2 * time.Minute) })
	processed, err = svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	got, err := store.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, got.Status)
	assert.Equal(t, 1, got.RecipientCount)
	assert.Equal(t, 1, got.FailedCount)
	assert.NotEmpty(t, got.LastError)
	require.Len(t, msg.Sent(), 1)
	assert.Equal(t, "Hi Ana", msg.Sent()[0].Body)

	_, err = svc.Update(ctx, b.ID, got)
	assert.True(t, errors.Is(err, services.ErrConflict))
	_, err = svc.Cancel(ctx, b.ID, c.ID)
	assert.True(t, errors.Is(err, services.ErrConflict))
}

func TestCancelWhileSendingIsRejected(t *testing.T) {
	svc, store, b, msg := setup(t, billing.PlanPro)
	ctx := context.Background()
	c, err := svc.Create(ctx, domain.Campaign{BusinessID: b.ID, Name: "Promo", Channel: domain.ChannelEmail, Body: "Hi"})
	require.NoError(t, err)
	_, err = svc.Schedule(ctx, b.ID, c.ID, now)
	require.NoError(t, err)

	var cancelErr error
	msg.OnSend = func(integration.Message) {
		if cancelErr == nil {
			_, cancelErr = svc.Cancel(ctx, b.ID, c.ID)
		}
	}
	svc.WithClock(func() time.Time { return now.Add(time.Minute) })
	processed, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.True(t, errors.Is(cancelErr, services.ErrConflict), "got %v", cancelErr)

	got, err := store.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, got.Status)
	assert.Equal(t, 2, got.RecipientCount)
}

// cancellingStore cancels every due campaign right after listing it, as a
// concurrent dashboard request would.
type cancellingStore struct {
	*memory.Store
}

func (s cancellingStore) ListDueCampaigns(ctx context.Context, at time.Time) ([]domain.Campaign, error) {
	due, err := s.Store.ListDueCampaigns(ctx, at)
	if err != nil {
		return nil, err
	}
	for _, c := range due {
		c.Status = domain.StatusCancelled
		if _, err := s.TransitionCampaign(ctx, c, domain.StatusScheduled); err != nil {
			return nil, err
		}
	}
	return due, nil
}

func TestCancelledBeforeClaimIsNotSent(t *testing.T) {
	svc, store, b, msg := setup(t, billing.PlanPro)
	ctx := context.Background()
	c, err := svc.Create(ctx, domain.Campaign{BusinessID: b.ID, Name: "Promo", Channel: domain.ChannelEmail, Body: "Hi"})
	require.NoError(t, err)
	_, err = svc.Schedule(ctx, b.ID, c.ID, now)
	require.NoError(t, err)

	racing := New(cancellingStore{store}, store, businesses.New(store, store, nil, nil), msg, nil, nil).
		WithClock(func() time.Time { return now.Add(time.Minute) })
	processed, err := racing.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
	assert.Empty(t, msg.Sent())

	got, err := store.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Nil(t, got.SentAt)
}

func TestRender(t *testing.T) {
	out, err := Render("{{.Customer.Name}} at {{.Business.Name}}", TemplateData{
		Customer: customer.Customer{Name: "Ana"},
		Business: business.Business{Name: "Spa"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana at Spa", out)
}
