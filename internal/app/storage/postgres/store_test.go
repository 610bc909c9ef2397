package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestly/gestly/internal/app/domain/appointment"
	"github.com/gestly/gestly/internal/app/domain/business"
	"github.com/gestly/gestly/internal/app/domain/campaign"
	"github.com/gestly/gestly/internal/app/domain/customer"
	"github.com/gestly/gestly/internal/app/domain/loyalty"
	"github.com/gestly/gestly/internal/app/storage"
	"github.com/gestly/gestly/internal/platform/migrations"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestGetBusinessNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("SELECT .* FROM businesses WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetBusiness(context.Background(), "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBusinessScansJSONColumns(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	hours, _ := business.DefaultHours().Value()

	rows := sqlmock.NewRows([]string{
		"id", "owner_id", "name", "slug", "timezone", "phone", "email", "hours", "slot_interval",
		"min_notice", "loyalty", "plan", "subscription_status", "stripe_customer_id", "stripe_subscription_id",
		"created_at", "updated_at",
	}).AddRow("b1", "u1", "Salon", "salon", "America/Sao_Paulo", "", "", hours, 15,
		60, `{"enabled":true,"points_per_unit":2}`, "pro", "active", "cus_1", "sub_1", now, now)
	mock.ExpectQuery("SELECT .* FROM businesses WHERE id = \\$1").WithArgs("b1").WillReturnRows(rows)

	b, err := store.GetBusiness(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 15, b.SlotInterval)
	assert.True(t, b.Loyalty.Enabled)
	assert.Equal(t, 2, b.Loyalty.PointsPerUnit)
	assert.True(t, b.Hours[time.Sunday].Closed)
	assert.Equal(t, "09:00", b.Hours[time.Monday].Open)
}

func TestCreateCustomerConflict(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("INSERT INTO customers").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"})

	_, err := store.CreateCustomer(context.Background(), customer.Customer{BusinessID: "b1", Name: "Ana", Email: "a@x.test"})
	assert.True(t, errors.Is(err, storage.ErrConflict), "got %v", err)
}

func TestUpdateAppointmentMissing(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("UPDATE appointments").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.UpdateAppointment(context.Background(), appointment.Appointment{ID: "a1"})
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
}

func TestListAppointmentsBuildsFilter(t *testing.T) {
	store, mock := newMock(t)
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	mock.ExpectQuery("WHERE business_id = \\$1 AND start_at >= \\$2 AND start_at < \\$3 AND attendant_id = \\$4").
		WithArgs("b1", from, to, "a1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	list, err := store.ListAppointments(context.Background(), "b1", appointment.Filter{From: from, To: to, AttendantID: "a1"})
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSpecialDay(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("DELETE FROM special_days").WithArgs("b1", "2026-12-25").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.DeleteSpecialDay(context.Background(), "b1", "2026-12-25"))
}

func TestApplyLoyaltyTransactionIsAtomic(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE customers\\s+SET loyalty_points = loyalty_points \\+ \\$1").
		WithArgs(int64(50), sqlmock.AnyArg(), "c1").
		WillReturnRows(sqlmock.NewRows([]string{"loyalty_points"}).AddRow(120))
	mock.ExpectExec("INSERT INTO loyalty_transactions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := store.ApplyLoyaltyTransaction(context.Background(), loyalty.Transaction{
		BusinessID: "b1", CustomerID: "c1", AppointmentID: "ap1", Type: loyalty.TypeEarn, Points: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, 120, tx.BalanceAfter)
	assert.NotEmpty(t, tx.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyLoyaltyTransactionNegativeBalance(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE customers").WillReturnError(&pq.Error{Code: "23514", Message: "check violation"})
	mock.ExpectRollback()

	_, err := store.ApplyLoyaltyTransaction(context.Background(), loyalty.Transaction{CustomerID: "c1", Type: loyalty.TypeRedeem, Points: -500})
	assert.True(t, errors.Is(err, storage.ErrNegativeBalance), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyLoyaltyTransactionDuplicateRollsBack(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE customers").WillReturnRows(sqlmock.NewRows([]string{"loyalty_points"}).AddRow(90))
	mock.ExpectExec("INSERT INTO loyalty_transactions").WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"})
	mock.ExpectRollback()

	_, err := store.ApplyLoyaltyTransaction(context.Background(), loyalty.Transaction{CustomerID: "c1", AppointmentID: "ap1", Type: loyalty.TypeEarn, Points: 40})
	assert.True(t, errors.Is(err, storage.ErrConflict), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReminderSentGuardsStatus(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("UPDATE appointments\\s+SET reminder_sent_at = \\$2.*reminder_sent_at IS NULL AND status IN \\('scheduled', 'confirmed'\\)").
		WithArgs("ap1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := store.MarkReminderSent(context.Background(), "ap1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionCampaignConflict(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("UPDATE campaigns.*WHERE id = \\$1 AND status IN \\(\\$15\\)").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .* FROM campaigns WHERE id = \\$1").
		WithArgs("cp1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("cp1", "cancelled"))

	_, err := store.TransitionCampaign(context.Background(), campaign.Campaign{ID: "cp1", Status: campaign.StatusSending}, campaign.StatusScheduled)
	assert.True(t, errors.Is(err, storage.ErrConflict), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := New(db)

	b, err := store.CreateBusiness(ctx, business.Business{
		OwnerID: "owner", Name: "Integration", Slug: "integration-" + time.Now().Format("150405.000000"),
		Timezone: "UTC", Hours: business.DefaultHours(), SlotInterval: 30, Plan: "free", SubscriptionStatus: "active",
	})
	if err != nil {
		t.Fatalf("create business: %v", err)
	}
	c, err := store.CreateCustomer(ctx, customer.Customer{BusinessID: b.ID, Name: "Ana", Email: "ana@x.test"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	found, err := store.FindCustomerByContact(ctx, b.ID, "ana@x.test", "")
	if err != nil || found.ID != c.ID {
		t.Fatalf("find customer: %+v %v", found, err)
	}

	if _, err := store.ApplyLoyaltyTransaction(ctx, loyalty.Transaction{BusinessID: b.ID, CustomerID: c.ID, Type: loyalty.TypeAdjust, Points: 50}); err != nil {
		t.Fatalf("apply loyalty: %v", err)
	}
	// A stale copy must not roll the balance back.
	stale := found
	stale.Notes = "vip"
	updated, err := store.UpdateCustomer(ctx, stale)
	if err != nil {
		t.Fatalf("update customer: %v", err)
	}
	if updated.LoyaltyPoints != 50 || updated.Notes != "vip" {
		t.Fatalf("unexpected customer after update: %+v", updated)
	}
	if _, err := store.ApplyLoyaltyTransaction(ctx, loyalty.Transaction{BusinessID: b.ID, CustomerID: c.ID, Type: loyalty.TypeAdjust, Points: -60}); !errors.Is(err, storage.ErrNegativeBalance) {
		t.Fatalf("expected negative balance, got %v", err)
	}
}
