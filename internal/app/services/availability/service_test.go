package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gestly/gestly/internal/app/domain/appointment"
	"github.com/gestly/gestly/internal/app/domain/attendant"
	"github.com/gestly/gestly/internal/app/domain/business"
	"github.com/gestly/gestly/internal/app/domain/catalog"
	"github.com/gestly/gestly/internal/app/services"
	"github.com/gestly/gestly/internal/app/services/businesses"
	"github.com/gestly/gestly/internal/app/storage/memory"
)

func TestServiceCompute(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	biz := businesses.New(store, store, nil, nil)

	hours := business.DefaultHours()
	b, err := biz.Create(ctx, "owner", businesses.CreateInput{Name: "Salon", Timezone: "UTC", Hours: &hours})
	if err != nil {
		t.Fatalf("create business: %v", err)
	}
	svc, _ := store.CreateService(ctx, catalog.Service{BusinessID: b.ID, Name: "Cut", Duration: 60, Active: true})
	ana, _ := store.CreateAttendant(ctx, attendant.Attendant{BusinessID: b.ID, Name: "Ana", Active: true})
	_, _ = store.CreateAttendant(ctx, attendant.Attendant{BusinessID: b.ID, Name: "Bia", Active: true, ServiceIDs: []string{"other"}})

	// 2030-03-02 is a Saturday: 09:00-13:00.
	_, _ = store.CreateAppointment(ctx, appointment.Appointment{
		BusinessID:  b.ID,
		AttendantID: ana.ID,
		ServiceID:   svc.ID,
		StartAt:     time.Date(2030, 3, 2, 9, 0, 0, 0, time.UTC),
		EndAt:       time.Date(2030, 3, 2, 10, 0, 0, 0, time.UTC),
		Status:      appointment.StatusScheduled,
	})

	avail := New(biz, store, store, store, nil).WithClock(func() time.Time {
		return time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)
	})
	slots, err := avail.Compute(ctx, b.ID, Query{ServiceID: svc.ID, Date: "2030-03-02"})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	// 09:00, 09:30 blocked; 10:00, 10:30, 11:00, 11:30, 12:00 free.
	if len(slots) != 5 {
		t.Fatalf("expected 5 slots, got %d: %+v", len(slots), slots)
	}
	for _, s := range slots {
		if len(s.AttendantIDs) != 1 || s.AttendantIDs[0] != ana.ID {
			t.Fatalf("only Ana performs the service, got %v", s.AttendantIDs)
		}
	}

	if _, err := biz.SetSpecialDay(ctx, business.SpecialDay{BusinessID: b.ID, Date: "2030-03-02", Closed: true}); err != nil {
		t.Fatalf("special day: %v", err)
	}
	slots, err = avail.Compute(ctx, b.ID, Query{ServiceID: svc.ID, Date: "2030-03-02"})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("closed special day should have no slots")
	}

	_, err = avail.Check(ctx, b.ID, Query{ServiceID: svc.ID, Date: "2030-03-02"}, time.Date(2030, 3, 2, 10, 0, 0, 0, time.UTC))
	if !errors.Is(err, services.ErrSlotUnavailable) {
		t.Fatalf("expected slot unavailable, got %v", err)
	}
}

func TestServiceComputeValidation(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	biz := businesses.New(store, store, nil, nil)
	b, _ := biz.Create(ctx, "owner", businesses.CreateInput{Name: "Clinic"})
	avail := New(biz, store, store, store, nil)

	if _, err := avail.Compute(ctx, b.ID, Query{ServiceID: "missing", Date: "2030-03-02"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := avail.Compute(ctx, b.ID, Query{ServiceID: "x", Date: "bad"}); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestServiceComputeSpecialDayHours(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	biz := businesses.New(store, store, nil, nil)

	hours := business.DefaultHours()
	b, err := biz.Create(ctx, "owner", businesses.CreateInput{Name: "Salon", Timezone: "UTC", Hours: &hours})
	if err != nil {
		t.Fatalf("create business: %v", err)
	}
	svc, _ := store.CreateService(ctx, catalog.Service{BusinessID: b.ID, Name: "Cut", Duration: 60, Active: true})

	// Saturday normally opens 09:00-13:00; this one opens late instead.
	if _, err := biz.SetSpecialDay(ctx, business.SpecialDay{BusinessID: b.ID, Date: "2030-03-02", Open: "14:00", Close: "16:00"}); err != nil {
		t.Fatalf("special day: %v", err)
	}
	avail := New(biz, store, store, store, nil).WithClock(func() time.Time {
		return time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)
	})
	slots, err := avail.Compute(ctx, b.ID, Query{ServiceID: svc.ID, Date: "2030-03-02"})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	want := []time.Time{
		time.Date(2030, 3, 2, 14, 0, 0, 0, time.UTC),
		time.Date(2030, 3, 2, 14, 30, 0, 0, time.UTC),
		time.Date(2030, 3, 2, 15, 0, 0, 0, time.UTC),
	}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d: %+v", len(want), len(slots), slots)
	}
	for i, s := range slots {
		if !s.Start.Equal(want[i]) {
			t.Fatalf("slot %d starts at %s, want %s", i, s.Start, want[i])
		}
	}

	// Weekly hours still apply to the following Saturday.
	slots, err = avail.Compute(ctx, b.ID, Query{ServiceID: svc.ID, Date: "2030-03-09"})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(slots) == 0 || !slots[0].Start.Equal(time.Date(2030, 3, 9, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected weekly hours on 2030-03-09, got %+v", slots)
	}
}
