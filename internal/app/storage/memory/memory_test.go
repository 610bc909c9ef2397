package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gestly/gestly/internal/app/domain/appointment"
	"github.com/gestly/gestly/internal/app/domain/attendant"
	"github.com/gestly/gestly/internal/app/domain/business"
	"github.com/gestly/gestly/internal/app/domain/campaign"
	"github.com/gestly/gestly/internal/app/domain/customer"
	"github.com/gestly/gestly/internal/app/domain/loyalty"
	"github.com/gestly/gestly/internal/app/storage"
)

func TestBusinessSlugConflict(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateBusiness(ctx, business.Business{OwnerID: "u1", Slug: "salon"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := store.CreateBusiness(ctx, business.Business{OwnerID: "u2", Slug: "salon"})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := store.GetBusiness(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCustomerContactUniqueness(t *testing.T) {
	store := New()
	ctx := context.Background()

	first, err := store.CreateCustomer(ctx, customer.Customer{BusinessID: "b1", Name: "Ana", Email: "ana@x.test"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateCustomer(ctx, customer.Customer{BusinessID: "b1", Name: "Other", Email: "ana@x.test"}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := store.CreateCustomer(ctx, customer.Customer{BusinessID: "b2", Name: "Ana", Email: "ana@x.test"}); err != nil {
		t.Fatalf("other tenant should accept same email: %v", err)
	}

	found, err := store.FindCustomerByContact(ctx, "b1", "", "")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("empty contact must not match, got %+v %v", found, err)
	}
	found, err = store.FindCustomerByContact(ctx, "b1", "ana@x.test", "")
	if err != nil || found.ID != first.ID {
		t.Fatalf("find by email: %+v %v", found, err)
	}

	first.Notes = "vip"
	if _, err := store.UpdateCustomer(ctx, first); err != nil {
		t.Fatalf("update same record should not conflict: %v", err)
	}
}

func TestSpecialDayUpsert(t *testing.T) {
	store := New()
	ctx := context.Background()

	day, err := store.UpsertSpecialDay(ctx, business.SpecialDay{BusinessID: "b1", Date: "2026-12-25", Closed: true})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	again, err := store.UpsertSpecialDay(ctx, business.SpecialDay{BusinessID: "b1", Date: "2026-12-25", Open: "10:00", Close: "12:00"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if again.ID != day.ID {
		t.Fatalf("upsert should keep id")
	}
	days, _ := store.ListSpecialDays(ctx, "b1", "2026-12-01", "2026-12-31")
	if len(days) != 1 || days[0].Closed {
		t.Fatalf("unexpected days %+v", days)
	}
	if err := store.DeleteSpecialDay(ctx, "b1", "2026-12-25"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteSpecialDay(ctx, "b1", "2026-12-25"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCommissionOncePerAppointment(t *testing.T) {
	store := New()
	ctx := context.Background()
	c := attendant.Commission{BusinessID: "b1", AttendantID: "a1", AppointmentID: "ap1", AmountCents: 10}
	if _, err := store.CreateCommission(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateCommission(ctx, c); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	list, _ := store.ListCommissions(ctx, "b1", time.Time{}, time.Time{})
	if len(list) != 1 {
		t.Fatalf("expected 1 commission, got %d", len(list))
	}
}

func TestPendingRemindersAndDueCampaigns(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now().UTC()
	sent := now

	store.CreateAppointment(ctx, appointment.Appointment{BusinessID: "b1", StartAt: now.Add(time.Hour), Status: appointment.StatusScheduled})
	store.CreateAppointment(ctx, appointment.Appointment{BusinessID: "b1", StartAt: now.Add(2 * time.Hour), Status: appointment.StatusCancelled})
	store.CreateAppointment(ctx, appointment.Appointment{BusinessID: "b1", StartAt: now.Add(3 * time.Hour), Status: appointment.StatusConfirmed, ReminderSentAt: &sent})
	store.CreateAppointment(ctx, appointment.Appointment{BusinessID: "b1", StartAt: now.Add(48 * time.Hour), Status: appointment.StatusConfirmed})

	pending, err := store.ListPendingReminders(ctx, now, now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending reminder, got %d", len(pending))
	}

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	store.CreateCampaign(ctx, campaign.Campaign{BusinessID: "b1", Status: campaign.StatusScheduled, ScheduledAt: &past})
	store.CreateCampaign(ctx, campaign.Campaign{BusinessID: "b1", Status: campaign.StatusScheduled, ScheduledAt: &future})
	store.CreateCampaign(ctx, campaign.Campaign{BusinessID: "b1", Status: campaign.StatusDraft, ScheduledAt: &past})
	due, _ := store.ListDueCampaigns(ctx, now)
	if len(due) != 1 {
		t.Fatalf("expected 1 due campaign, got %d", len(due))
	}
}

func TestFindLoyaltyTransaction(t *testing.T) {
	store := New()
	ctx := context.Background()
	c, _ := store.CreateCustomer(ctx, customer.Customer{BusinessID: "b1", Name: "Ana", Phone: "1"})
	if _, err := store.ApplyLoyaltyTransaction(ctx, loyalty.Transaction{CustomerID: c.ID, AppointmentID: "ap1", Type: loyalty.TypeEarn, Points: 5}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := store.FindLoyaltyTransaction(ctx, "ap1", loyalty.TypeEarn); err != nil {
		t.Fatalf("find: %v", err)
	}
	if _, err := store.FindLoyaltyTransaction(ctx, "ap1", loyalty.TypeRefund); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestApplyLoyaltyTransactionGuards(t *testing.T) {
	store := New()
	ctx := context.Background()
	c, _ := store.CreateCustomer(ctx, customer.Customer{BusinessID: "b1", Name: "Ana", Phone: "1"})

	tx, err := store.ApplyLoyaltyTransaction(ctx, loyalty.Transaction{CustomerID: c.ID, AppointmentID: "ap1", Type: loyalty.TypeEarn, Points: 30})
	if err != nil || tx.BalanceAfter != 30 {
		t.Fatalf("apply: %+v %v", tx, err)
	}
	if _, err := store.ApplyLoyaltyTransaction(ctx, loyalty.Transaction{CustomerID: c.ID, AppointmentID: "ap1", Type: loyalty.TypeEarn, Points: 30}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict for a second credit, got %v", err)
	}
	if _, err := store.ApplyLoyaltyTransaction(ctx, loyalty.Transaction{CustomerID: c.ID, Type: loyalty.TypeAdjust, Points: -31}); !errors.Is(err, storage.ErrNegativeBalance) {
		t.Fatalf("expected negative balance, got %v", err)
	}
	if _, err := store.ApplyLoyaltyTransaction(ctx, loyalty.Transaction{CustomerID: "missing", Type: loyalty.TypeAdjust, Points: 1}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	got, _ := store.GetCustomer(ctx, c.ID)
	ledger, _ := store.ListLoyaltyTransactions(ctx, c.ID)
	if got.LoyaltyPoints != 30 || len(ledger) != 1 {
		t.Fatalf("rejected entries leaked: balance %d ledger %d", got.LoyaltyPoints, len(ledger))
	}

	// Contact edits from a stale copy keep the balance.
	c.Notes = "vip"
	if _, err := store.UpdateCustomer(ctx, c); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = store.GetCustomer(ctx, c.ID)
	if got.LoyaltyPoints != 30 || got.Notes != "vip" {
		t.Fatalf("unexpected customer %+v", got)
	}
}

func TestMarkReminderSent(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()
	open, _ := store.CreateAppointment(ctx, appointment.Appointment{BusinessID: "b1", StartAt: now.Add(time.Hour), Status: appointment.StatusConfirmed})
	cancelled, _ := store.CreateAppointment(ctx, appointment.Appointment{BusinessID: "b1", StartAt: now.Add(time.Hour), Status: appointment.StatusCancelled})

	ok, err := store.MarkReminderSent(ctx, open.ID, now)
	if err != nil || !ok {
		t.Fatalf("first mark: %v %v", ok, err)
	}
	if ok, _ := store.MarkReminderSent(ctx, open.ID, now); ok {
		t.Fatal("reminder stamped twice")
	}
	if ok, _ := store.MarkReminderSent(ctx, cancelled.ID, now); ok {
		t.Fatal("cancelled appointment stamped")
	}
	got, _ := store.GetAppointment(ctx, cancelled.ID)
	if got.Status != appointment.StatusCancelled || got.ReminderSentAt != nil {
		t.Fatalf("cancelled appointment changed: %+v", got)
	}
	if _, err := store.MarkReminderSent(ctx, "missing", now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTransitionCampaign(t *testing.T) {
	store := New()
	ctx := context.Background()
	c, _ := store.CreateCampaign(ctx, campaign.Campaign{BusinessID: "b1", Status: campaign.StatusCancelled})

	c.Status = campaign.StatusSending
	if _, err := store.TransitionCampaign(ctx, c, campaign.StatusScheduled); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got, _ := store.GetCampaign(ctx, c.ID)
	if got.Status != campaign.StatusCancelled {
		t.Fatalf("status overwritten: %s", got.Status)
	}
}
