// Package appointments books and moves appointments through their lifecycle.
package appointments

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gestly/gestly/internal/app/domain/appointment"
	"github.com/gestly/gestly/internal/app/domain/attendant"
	"github.com/gestly/gestly/internal/app/domain/business"
	"github.com/gestly/gestly/internal/app/domain/customer"
	"github.com/gestly/gestly/internal/app/domain/loyalty"
	"github.com/gestly/gestly/internal/app/events"
	"github.com/gestly/gestly/internal/app/metrics"
	"github.com/gestly/gestly/internal/app/services"
	"github.com/gestly/gestly/internal/app/services/availability"
	"github.com/gestly/gestly/internal/app/storage"
	"github.com/gestly/gestly/pkg/logger"
)

// Publisher receives appointment events.
type Publisher interface {
	Publish(ctx context.Context, businessID, eventType string, data any)
}

// BusinessReader resolves the business a booking belongs to.
type BusinessReader interface {
	Get(ctx context.Context, id string) (business.Business, error)
}

// Customers resolves and updates the people being booked.
type Customers interface {
	Get(ctx context.Context, businessID, id string) (customer.Customer, error)
	FindOrCreate(ctx context.Context, businessID string, contact customer.Contact) (customer.Customer, error)
	TouchVisit(ctx context.Context, id string, at time.Time) error
}

// Slots checks a start time against the availability calculator.
type Slots interface {
	Check(ctx context.Context, businessID string, q availability.Query, start time.Time) (availability.Slot, error)
}

// Loyalty applies point movements tied to appointments.
type Loyalty interface {
	Quote(ctx context.Context, businessID, customerID string, priceCents, requested int) (loyalty.Quote, error)
	Redeem(ctx context.Context, appt appointment.Appointment, requested int) (appointment.Appointment, error)
	Refund(ctx context.Context, appt appointment.Appointment) (*loyalty.Transaction, error)
	Accrue(ctx context.Context, appt appointment.Appointment) (*loyalty.Transaction, error)
}

// Commissions records attendant earnings.
type Commissions interface {
	RecordCommission(ctx context.Context, appt appointment.Appointment) (*attendant.Commission, error)
}

// Deps wires the collaborators of the appointment service.
type Deps struct {
	Store       storage.AppointmentStore
	Catalog     storage.CatalogStore
	Businesses  BusinessReader
	Customers   Customers
	Slots       Slots
	Loyalty     Loyalty
	Commissions Commissions
	Publisher   Publisher
}

// Service implements booking and status changes.
type Service struct {
	Deps
	log *logger.Logger
	now func() time.Time
	// book serialises the availability check and insert.
	book sync.Mutex
}

// New constructs an appointment service.
func New(deps Deps, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("appointments")
	}
	return &Service{Deps: deps, log: log, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// BookInput describes a new booking. Either CustomerID or Customer must be
// set; the public API passes contact details.
type BookInput struct {
	CustomerID   string            `json:"customer_id"`
	Customer     *customer.Contact `json:"customer,omitempty"`
	ServiceID    string            `json:"service_id"`
	AttendantID  string            `json:"attendant_id,omitempty"`
	StartAt      time.Time         `json:"start_at"`
	Notes        string            `json:"notes,omitempty"`
	RedeemPoints int               `json:"redeem_points,omitempty"`
}

func (s *Service) publish(ctx context.Context, eventType string, appt appointment.Appointment) {
	metrics.RecordAppointment(string(appt.Status), string(appt.Source))
	if s.Publisher != nil {
		s.Publisher.Publish(ctx, appt.BusinessID, eventType, appt)
	}
}

func (s *Service) resolveCustomer(ctx context.Context, businessID string, in BookInput) (customer.Customer, error) {
	if in.CustomerID != "" {
		return s.Customers.Get(ctx, businessID, in.CustomerID)
	}
	if in.Customer != nil {
		return s.Customers.FindOrCreate(ctx, businessID, *in.Customer)
	}
	return customer.Customer{}, services.Invalid("customer is required")
}

func (s *Service) query(ctx context.Context, businessID, serviceID, attendantID string, start time.Time) (availability.Query, error) {
	b, err := s.Businesses.Get(ctx, businessID)
	if err != nil {
		return availability.Query{}, err
	}
	loc, err := b.Location()
	if err != nil {
		return availability.Query{}, fmt.Errorf("business %s timezone: %w", businessID, err)
	}
	return availability.Query{
		ServiceID:   serviceID,
		Date:        start.In(loc).Format(business.DateLayout),
		AttendantID: attendantID,
	}, nil
}

// pick chooses the attendant for a slot: the requested one, or the first
// free qualified attendant.
func pick(slot availability.Slot, requested string) string {
	if requested != "" || len(slot.AttendantIDs) == 0 {
		return requested
	}
	return slot.AttendantIDs[0]
}

// Book creates an appointment in a free slot.
func (s *Service) Book(ctx context.Context, businessID string, source appointment.Source, in BookInput) (appointment.Appointment, error) {
	if in.StartAt.IsZero() {
		return appointment.Appointment{}, services.Invalid("start_at is required")
	}
	if source == "" {
		source = appointment.SourceDashboard
	}
	cust, err := s.resolveCustomer(ctx, businessID, in)
	if err != nil {
		return appointment.Appointment{}, err
	}
	svc, err := s.Catalog.GetService(ctx, in.ServiceID)
	if err != nil {
		return appointment.Appointment{}, err
	}
	if svc.BusinessID != businessID {
		return appointment.Appointment{}, services.NotFound("service", in.ServiceID)
	}
	if in.RedeemPoints > 0 {
		if s.Loyalty == nil {
			return appointment.Appointment{}, services.Invalid("loyalty program is not available")
		}
		if _, err := s.Loyalty.Quote(ctx, businessID, cust.ID, svc.PriceCents, in.RedeemPoints); err != nil {
			return appointment.Appointment{}, err
		}
	}
	q, err := s.query(ctx, businessID, svc.ID, in.AttendantID, in.StartAt)
	if err != nil {
		return appointment.Appointment{}, err
	}

	s.book.Lock()
	slot, err := s.Slots.Check(ctx, businessID, q, in.StartAt)
	if err != nil {
		s.book.Unlock()
		return appointment.Appointment{}, err
	}
	appt, err := s.Store.CreateAppointment(ctx, appointment.Appointment{
		BusinessID:  businessID,
		CustomerID:  cust.ID,
		ServiceID:   svc.ID,
		AttendantID: pick(slot, in.AttendantID),
		StartAt:     slot.Start.UTC(),
		EndAt:       slot.End.UTC(),
		Status:      appointment.StatusScheduled,
		PriceCents:  svc.PriceCents,
		Source:      source,
		Notes:       strings.TrimSpace(in.Notes),
	})
	s.book.Unlock()
	if err != nil {
		return appointment.Appointment{}, err
	}

	if in.RedeemPoints > 0 {
		redeemed, err := s.Loyalty.Redeem(ctx, appt, in.RedeemPoints)
		if err != nil {
			appt.Status = appointment.StatusCancelled
			appt.CancelReason = "loyalty redemption failed"
			if _, uerr := s.Store.UpdateAppointment(ctx, appt); uerr != nil {
				s.log.WithError(uerr).WithField("appointment_id", appt.ID).Warn("release appointment after failed redemption")
			}
			return appointment.Appointment{}, err
		}
		appt = redeemed
	}

	s.log.WithField("business_id", businessID).
		WithField("appointment_id", appt.ID).
		WithField("source", source).
		Info("appointment booked")
	s.publish(ctx, events.AppointmentCreated, appt)
	return appt, nil
}

// RescheduleInput moves an appointment to a new start and optionally a new
// attendant.
type RescheduleInput struct {
	StartAt     time.Time `json:"start_at"`
	AttendantID string    `json:"attendant_id,omitempty"`
}

// Reschedule moves a non-terminal appointment to another free slot.
func (s *Service) Reschedule(ctx context.Context, businessID, id string, in RescheduleInput) (appointment.Appointment, error) {
	if in.StartAt.IsZero() {
		return appointment.Appointment{}, services.Invalid("start_at is required")
	}
	appt, err := s.Get(ctx, businessID, id)
	if err != nil {
		return appointment.Appointment{}, err
	}
	if appt.Status.Terminal() {
		return appointment.Appointment{}, fmt.Errorf("appointment is %s: %w", appt.Status, services.ErrConflict)
	}
	q, err := s.query(ctx, businessID, appt.ServiceID, in.AttendantID, in.StartAt)
	if err != nil {
		return appointment.Appointment{}, err
	}
	q.ExcludeAppointmentID = appt.ID

	s.book.Lock()
	defer s.book.Unlock()
	slot, err := s.Slots.Check(ctx, businessID, q, in.StartAt)
	if err != nil {
		return appointment.Appointment{}, err
	}
	attendantID := in.AttendantID
	if attendantID == "" && appt.AttendantID != "" && contains(slot.AttendantIDs, appt.AttendantID) {
		attendantID = appt.AttendantID
	}
	appt.AttendantID = pick(slot, attendantID)
	appt.StartAt = slot.Start.UTC()
	appt.EndAt = slot.End.UTC()
	appt.ReminderSentAt = nil
	updated, err := s.Store.UpdateAppointment(ctx, appt)
	if err != nil {
		return appointment.Appointment{}, err
	}
	s.log.WithField("appointment_id", id).WithField("start_at", updated.StartAt).Info("appointment rescheduled")
	s.publish(ctx, events.AppointmentRescheduled, updated)
	return updated, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func (s *Service) transition(ctx context.Context, businessID, id string, to appointment.Status, mutate func(*appointment.Appointment)) (appointment.Appointment, error) {
	appt, err := s.Get(ctx, businessID, id)
	if err != nil {
		return appointment.Appointment{}, err
	}
	if !appointment.CanTransition(appt.Status, to) {
		return appointment.Appointment{}, fmt.Errorf("cannot move appointment from %s to %s: %w", appt.Status, to, services.ErrConflict)
	}
	appt.Status = to
	if mutate != nil {
		mutate(&appt)
	}
	updated, err := s.Store.UpdateAppointment(ctx, appt)
	if err != nil {
		return appointment.Appointment{}, err
	}
	s.log.WithField("appointment_id", id).WithField("status", to).Info("appointment status changed")
	return updated, nil
}

// Confirm marks a scheduled appointment as confirmed.
func (s *Service) Confirm(ctx context.Context, businessID, id string) (appointment.Appointment, error) {
	appt, err := s.transition(ctx, businessID, id, appointment.StatusConfirmed, nil)
	if err != nil {
		return appointment.Appointment{}, err
	}
	s.publish(ctx, events.AppointmentConfirmed, appt)
	return appt, nil
}

// Cancel cancels an appointment and refunds redeemed points.
func (s *Service) Cancel(ctx context.Context, businessID, id, reason string) (appointment.Appointment, error) {
	appt, err := s.transition(ctx, businessID, id, appointment.StatusCancelled, func(a *appointment.Appointment) {
		a.CancelReason = strings.TrimSpace(reason)
	})
	if err != nil {
		return appointment.Appointment{}, err
	}
	if s.Loyalty != nil {
		if _, err := s.Loyalty.Refund(ctx, appt); err != nil {
			s.log.WithError(err).WithField("appointment_id", id).Warn("refund redeemed points")
		}
	}
	s.publish(ctx, events.AppointmentCancelled, appt)
	return appt, nil
}

// MarkNoShow records that the customer did not attend.
func (s *Service) MarkNoShow(ctx context.Context, businessID, id string) (appointment.Appointment, error) {
	appt, err := s.transition(ctx, businessID, id, appointment.StatusNoShow, nil)
	if err != nil {
		return appointment.Appointment{}, err
	}
	s.publish(ctx, events.AppointmentNoShow, appt)
	return appt, nil
}

// Complete closes an appointment, accrues points, records the attendant's
// commission and stamps the customer's last visit.
func (s *Service) Complete(ctx context.Context, businessID, id string) (appointment.Appointment, error) {
	now := s.now().UTC()
	appt, err := s.transition(ctx, businessID, id, appointment.StatusCompleted, func(a *appointment.Appointment) {
		a.CompletedAt = &now
	})
	if err != nil {
		return appointment.Appointment{}, err
	}
	entry := s.log.WithField("appointment_id", id)
	if s.Loyalty != nil {
		if _, err := s.Loyalty.Accrue(ctx, appt); err != nil {
			entry.WithError(err).Warn("accrue loyalty points")
		}
	}
	if s.Commissions != nil {
		if _, err := s.Commissions.RecordCommission(ctx, appt); err != nil {
			entry.WithError(err).Warn("record commission")
		}
	}
	if err := s.Customers.TouchVisit(ctx, appt.CustomerID, appt.StartAt); err != nil {
		entry.WithError(err).Warn("update last visit")
	}
	s.publish(ctx, events.AppointmentCompleted, appt)
	return appt, nil
}

// Get returns an appointment of the business.
func (s *Service) Get(ctx context.Context, businessID, id string) (appointment.Appointment, error) {
	appt, err := s.Store.GetAppointment(ctx, id)
	if err != nil {
		return appointment.Appointment{}, err
	}
	if appt.BusinessID != businessID {
		return appointment.Appointment{}, services.NotFound("appointment", id)
	}
	return appt, nil
}

// List returns appointments matching the filter, ordered by start.
func (s *Service) List(ctx context.Context, businessID string, filter appointment.Filter) ([]appointment.Appointment, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, services.Invalid("unknown status %q", filter.Status)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return nil, services.Invalid("from must be before to")
	}
	return s.Store.ListAppointments(ctx, businessID, filter)
}

// ListByCustomer returns a customer's appointment history.
func (s *Service) ListByCustomer(ctx context.Context, businessID, customerID string) ([]appointment.Appointment, error) {
	if _, err := s.Customers.Get(ctx, businessID, customerID); err != nil {
		return nil, err
	}
	return s.Store.ListAppointmentsByCustomer(ctx, customerID)
}
