package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/gestly/gestly/internal/app/domain/appointment"
	"github.com/gestly/gestly/internal/app/domain/business"
	"github.com/gestly/gestly/internal/app/domain/catalog"
	"github.com/gestly/gestly/internal/app/metrics"
	"github.com/gestly/gestly/internal/app/services"
	"github.com/gestly/gestly/internal/app/storage"
	"github.com/gestly/gestly/pkg/logger"
)

// BusinessReader resolves a business and its date overrides.
type BusinessReader interface {
	Get(ctx context.Context, id string) (business.Business, error)
	SpecialDay(ctx context.Context, businessID, date string) (*business.SpecialDay, error)
}

// Query selects the service and day to compute slots for.
type Query struct {
	ServiceID   string `json:"service_id"`
	Date        string `json:"date"`
	AttendantID string `json:"attendant_id,omitempty"`
	// ExcludeAppointmentID ignores one booking, used when rescheduling it.
	ExcludeAppointmentID string `json:"-"`
}

// Service loads the data for a day and runs Calculate over it.
type Service struct {
	businesses   BusinessReader
	catalog      storage.CatalogStore
	attendants   storage.AttendantStore
	appointments storage.AppointmentStore
	log          *logger.Logger
	now          func() time.Time
}

// New constructs an availability service.
func New(businesses BusinessReader, catalog storage.CatalogStore, attendants storage.AttendantStore, appointments storage.AppointmentStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("availability")
	}
	return &Service{
		businesses:   businesses,
		catalog:      catalog,
		attendants:   attendants,
		appointments: appointments,
		log:          log,
		now:          time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Compute returns the free slots for q on the business's calendar.
func (s *Service) Compute(ctx context.Context, businessID string, q Query) ([]Slot, error) {
	started := time.Now()
	defer func() { metrics.ObserveAvailability(time.Since(started)) }()

	b, err := s.businesses.Get(ctx, businessID)
	if err != nil {
		return nil, err
	}
	loc, err := b.Location()
	if err != nil {
		return nil, fmt.Errorf("business %s timezone: %w", businessID, err)
	}
	day, err := time.ParseInLocation(business.DateLayout, q.Date, loc)
	if err != nil {
		return nil, services.Invalid("invalid date %q, want YYYY-MM-DD", q.Date)
	}

	svc, err := s.bookableService(ctx, businessID, q.ServiceID)
	if err != nil {
		return nil, err
	}
	candidates, staffed, err := s.candidates(ctx, businessID, svc.ID, q.AttendantID)
	if err != nil {
		return nil, err
	}
	if staffed && len(candidates) == 0 {
		return nil, nil
	}

	hours := b.Hours[day.Weekday()]
	special, err := s.businesses.SpecialDay(ctx, businessID, q.Date)
	if err != nil {
		return nil, err
	}
	if special != nil {
		hours = special.Hours()
	}

	dayEnd := day.AddDate(0, 0, 1)
	booked, err := s.appointments.ListAppointments(ctx, businessID, appointment.Filter{
		From: day.Add(-time.Duration(catalog.MaxDuration) * time.Minute),
		To:   dayEnd,
	})
	if err != nil {
		return nil, err
	}
	relevant := booked[:0:0]
	for _, a := range booked {
		if a.ID == q.ExcludeAppointmentID || !a.Blocks() {
			continue
		}
		relevant = append(relevant, a)
	}

	slots, err := Calculate(Input{
		Location:     loc,
		Date:         q.Date,
		Hours:        hours,
		Interval:     b.SlotInterval,
		MinNotice:    b.MinNotice,
		Duration:     svc.Duration,
		Attendants:   candidates,
		Appointments: relevant,
		Now:          s.now(),
	})
	if err != nil {
		return nil, services.Invalid("%v", err)
	}
	s.log.WithField("business_id", businessID).
		WithField("date", q.Date).
		WithField("slots", len(slots)).
		Debug("availability computed")
	return slots, nil
}

// Check returns the slot starting at start or ErrSlotUnavailable.
func (s *Service) Check(ctx context.Context, businessID string, q Query, start time.Time) (Slot, error) {
	slots, err := s.Compute(ctx, businessID, q)
	if err != nil {
		return Slot{}, err
	}
	slot, ok := Find(slots, start)
	if !ok {
		return Slot{}, services.ErrSlotUnavailable
	}
	return slot, nil
}

func (s *Service) bookableService(ctx context.Context, businessID, id string) (catalog.Service, error) {
	if id == "" {
		return catalog.Service{}, services.Invalid("service_id is required")
	}
	svc, err := s.catalog.GetService(ctx, id)
	if err != nil {
		return catalog.Service{}, err
	}
	if svc.BusinessID != businessID {
		return catalog.Service{}, services.NotFound("service", id)
	}
	if !svc.Active {
		return catalog.Service{}, services.Invalid("service %s is not active", id)
	}
	return svc, nil
}

// candidates returns the active attendants able to perform serviceID and
// whether the business is staffed at all.
func (s *Service) candidates(ctx context.Context, businessID, serviceID, attendantID string) ([]string, bool, error) {
	list, err := s.attendants.ListAttendants(ctx, businessID)
	if err != nil {
		return nil, false, err
	}
	staffed := false
	var ids []string
	for _, a := range list {
		if !a.Active {
			continue
		}
		staffed = true
		if !a.Performs(serviceID) {
			continue
		}
		if attendantID != "" && a.ID != attendantID {
			continue
		}
		ids = append(ids, a.ID)
	}
	if attendantID != "" && len(ids) == 0 {
		return nil, staffed, services.Invalid("attendant %s cannot perform this service", attendantID)
	}
	return ids, staffed, nil
}
