package attendants

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestly/gestly/internal/app/domain/appointment"
	"github.com/gestly/gestly/internal/app/domain/attendant"
	"github.com/gestly/gestly/internal/app/domain/billing"
	"github.com/gestly/gestly/internal/app/domain/catalog"
	"github.com/gestly/gestly/internal/app/services"
	"github.com/gestly/gestly/internal/app/services/businesses"
	"github.com/gestly/gestly/internal/app/storage/memory"
	"github.com/gestly/gestly/pkg/logger"
)

func setup(t *testing.T, plan string) (*Service, *memory.Store, string) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	biz := businesses.New(store, store, billing.DefaultPlans(), logger.NewDiscard())
	b, err := biz.Create(ctx, "owner", businesses.CreateInput{Name: "Barber"})
	require.NoError(t, err)
	b.Plan = plan
	_, err = biz.ApplySubscription(ctx, b)
	require.NoError(t, err)
	return New(store, store, biz, logger.NewDiscard()), store, b.ID
}

func TestPlanLimit(t *testing.T) {
	svc, _, bizID := setup(t, billing.PlanFree)
	ctx := context.Background()

	first, err := svc.Create(ctx, attendant.Attendant{BusinessID: bizID, Name: " Ana "})
	require.NoError(t, err)
	assert.Equal(t, "Ana", first.Name)
	assert.True(t, first.Active)

	_, err = svc.Create(ctx, attendant.Attendant{BusinessID: bizID, Name: "Bruno"})
	assert.True(t, errors.Is(err, services.ErrPlanLimit), "got %v", err)

	_, err = svc.SetActive(ctx, bizID, first.ID, false)
	require.NoError(t, err)
	second, err := svc.Create(ctx, attendant.Attendant{BusinessID: bizID, Name: "Bruno"})
	require.NoError(t, err)

	_, err = svc.SetActive(ctx, bizID, first.ID, true)
	assert.True(t, errors.Is(err, services.ErrPlanLimit), "reactivation must respect the limit")

	active, err := svc.List(ctx, bizID, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
}

func TestUnlimitedPlan(t *testing.T) {
	svc, _, bizID := setup(t, billing.PlanBusiness)
	for _, name := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		_, err := svc.Create(context.Background(), attendant.Attendant{BusinessID: bizID, Name: name})
		require.NoError(t, err)
	}
}

func TestValidateServices(t *testing.T) {
	svc, store, bizID := setup(t, billing.PlanPro)
	ctx := context.Background()

	own, err := store.CreateService(ctx, catalog.Service{BusinessID: bizID, Name: "Cut", Duration: 30, Active: true})
	require.NoError(t, err)
	other, err := store.CreateService(ctx, catalog.Service{BusinessID: "someone-else", Name: "Cut", Duration: 30, Active: true})
	require.NoError(t, err)

	_, err = svc.Create(ctx, attendant.Attendant{BusinessID: bizID, Name: "Ana", ServiceIDs: []string{other.ID}})
	assert.True(t, errors.Is(err, services.ErrInvalidInput))

	_, err = svc.Create(ctx, attendant.Attendant{BusinessID: bizID, Name: "Ana", CommissionBps: 12000})
	assert.True(t, errors.Is(err, services.ErrInvalidInput))

	a, err := svc.Create(ctx, attendant.Attendant{BusinessID: bizID, Name: "Ana", Email: " ANA@Example.com ", ServiceIDs: []string{own.ID}})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", a.Email)

	_, err = svc.Get(ctx, "someone-else", a.ID)
	assert.True(t, errors.Is(err, services.ErrNotFound))
}

func TestCommissions(t *testing.T) {
	svc, _, bizID := setup(t, billing.PlanPro)
	ctx := context.Background()

	ana, err := svc.Create(ctx, attendant.Attendant{BusinessID: bizID, Name: "Ana", CommissionBps: 4000})
	require.NoError(t, err)
	bruno, err := svc.Create(ctx, attendant.Attendant{BusinessID: bizID, Name: "Bruno", CommissionBps: 2500})
	require.NoError(t, err)

	day := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	complete := func(id, attendantID string, price, discount int) appointment.Appointment {
		at := day
		return appointment.Appointment{
			ID: id, BusinessID: bizID, AttendantID: attendantID,
			PriceCents: price, DiscountCents: discount,
			Status: appointment.StatusCompleted, CompletedAt: &at,
		}
	}

	c, err := svc.RecordCommission(ctx, complete("ap-1", ana.ID, 5000, 1000))
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, 4000, c.BaseCents)
	assert.Equal(t, 1600, c.AmountCents)

	again, err := svc.RecordCommission(ctx, complete("ap-1", ana.ID, 5000, 1000))
	require.NoError(t, err)
	assert.Nil(t, again, "second record for the same appointment is a no-op")

	none, err := svc.RecordCommission(ctx, complete("ap-2", "", 5000, 0))
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = svc.RecordCommission(ctx, complete("ap-3", ana.ID, 3000, 0))
	require.NoError(t, err)
	_, err = svc.RecordCommission(ctx, complete("ap-4", bruno.ID, 999, 0))
	require.NoError(t, err)

	report, err := svc.CommissionReport(ctx, bizID, day.Add(-time.Hour), day.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, report, 2)
	assert.Equal(t, attendant.CommissionSummary{AttendantID: ana.ID, AttendantName: "Ana", Appointments: 2, GrossCents: 7000, CommissionCents: 2800}, report[0])
	assert.Equal(t, attendant.CommissionSummary{AttendantID: bruno.ID, AttendantName: "Bruno", Appointments: 1, GrossCents: 999, CommissionCents: 249}, report[1])

	empty, err := svc.CommissionReport(ctx, bizID, day.Add(time.Hour), day.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, empty)
}
