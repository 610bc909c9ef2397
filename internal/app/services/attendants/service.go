package attendants

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gestly/gestly/internal/app/domain/appointment"
	"github.com/gestly/gestly/internal/app/domain/attendant"
	"github.com/gestly/gestly/internal/app/domain/billing"
	"github.com/gestly/gestly/internal/app/domain/business"
	"github.com/gestly/gestly/internal/app/services"
	"github.com/gestly/gestly/internal/app/storage"
	"github.com/gestly/gestly/pkg/logger"
)

// PlanResolver returns the effective plan of a business.
type PlanResolver interface {
	Get(ctx context.Context, id string) (business.Business, error)
	PlanFor(b business.Business) billing.Plan
}

// Service manages attendants and their commissions.
type Service struct {
	store   storage.AttendantStore
	catalog storage.CatalogStore
	plans   PlanResolver
	log     *logger.Logger
}

// New constructs an attendant service.
func New(store storage.AttendantStore, catalog storage.CatalogStore, plans PlanResolver, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("attendants")
	}
	return &Service{store: store, catalog: catalog, plans: plans, log: log}
}

func (s *Service) validate(ctx context.Context, a *attendant.Attendant) error {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	if err := a.Validate(); err != nil {
		return services.Invalid("%v", err)
	}
	if s.catalog == nil {
		return nil
	}
	for _, id := range a.ServiceIDs {
		svc, err := s.catalog.GetService(ctx, id)
		if err != nil || svc.BusinessID != a.BusinessID {
			return services.Invalid("unknown service %s", id)
		}
	}
	return nil
}

func (s *Service) activeCount(ctx context.Context, businessID string) (int, error) {
	list, err := s.store.ListAttendants(ctx, businessID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range list {
		if a.Active {
			n++
		}
	}
	return n, nil
}

func (s *Service) checkLimit(ctx context.Context, businessID string) error {
	if s.plans == nil {
		return nil
	}
	b, err := s.plans.Get(ctx, businessID)
	if err != nil {
		return err
	}
	plan := s.plans.PlanFor(b)
	if plan.Unlimited() {
		return nil
	}
	n, err := s.activeCount(ctx, businessID)
	if err != nil {
		return err
	}
	if n >= plan.MaxAttendants {
		return fmt.Errorf("plan %s allows %d active attendants: %w", plan.Name, plan.MaxAttendants, services.ErrPlanLimit)
	}
	return nil
}

// Create adds an active attendant, enforcing the plan's attendant limit.
func (s *Service) Create(ctx context.Context, a attendant.Attendant) (attendant.Attendant, error) {
	if a.BusinessID == "" {
		return attendant.Attendant{}, services.Invalid("business_id is required")
	}
	a.ID = ""
	a.Active = true
	if err := s.validate(ctx, &a); err != nil {
		return attendant.Attendant{}, err
	}
	if err := s.checkLimit(ctx, a.BusinessID); err != nil {
		return attendant.Attendant{}, err
	}
	created, err := s.store.CreateAttendant(ctx, a)
	if err != nil {
		return attendant.Attendant{}, err
	}
	s.log.WithField("business_id", a.BusinessID).WithField("attendant_id", created.ID).Info("attendant created")
	return created, nil
}

// Get returns an attendant of the business.
func (s *Service) Get(ctx context.Context, businessID, id string) (attendant.Attendant, error) {
	a, err := s.store.GetAttendant(ctx, id)
	if err != nil {
		return attendant.Attendant{}, err
	}
	if a.BusinessID != businessID {
		return attendant.Attendant{}, services.NotFound("attendant", id)
	}
	return a, nil
}

// List returns attendants, optionally only active ones.
func (s *Service) List(ctx context.Context, businessID string, activeOnly bool) ([]attendant.Attendant, error) {
	all, err := s.store.ListAttendants(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if !activeOnly {
		return all, nil
	}
	result := make([]attendant.Attendant, 0, len(all))
	for _, a := range all {
		if a.Active {
			result = append(result, a)
		}
	}
	return result, nil
}

// Update overwrites contact details, commission rate and service list.
func (s *Service) Update(ctx context.Context, businessID string, a attendant.Attendant) (attendant.Attendant, error) {
	existing, err := s.Get(ctx, businessID, a.ID)
	if err != nil {
		return attendant.Attendant{}, err
	}
	a.BusinessID = existing.BusinessID
	a.Active = existing.Active
	if err := s.validate(ctx, &a); err != nil {
		return attendant.Attendant{}, err
	}
	updated, err := s.store.UpdateAttendant(ctx, a)
	if err != nil {
		return attendant.Attendant{}, err
	}
	s.log.WithField("attendant_id", a.ID).Info("attendant updated")
	return updated, nil
}

// SetActive toggles an attendant. Reactivation counts against the plan limit.
func (s *Service) SetActive(ctx context.Context, businessID, id string, active bool) (attendant.Attendant, error) {
	existing, err := s.Get(ctx, businessID, id)
	if err != nil {
		return attendant.Attendant{}, err
	}
	if existing.Active == active {
		return existing, nil
	}
	if active {
		if err := s.checkLimit(ctx, businessID); err != nil {
			return attendant.Attendant{}, err
		}
	}
	existing.Active = active
	updated, err := s.store.UpdateAttendant(ctx, existing)
	if err != nil {
		return attendant.Attendant{}, err
	}
	s.log.WithField("attendant_id", id).WithField("active", active).Info("attendant activation changed")
	return updated, nil
}

// RecordCommission stores the commission for a completed appointment. A
// second call for the same appointment is a no-op.
func (s *Service) RecordCommission(ctx context.Context, appt appointment.Appointment) (*attendant.Commission, error) {
	if appt.AttendantID == "" {
		return nil, nil
	}
	a, err := s.store.GetAttendant(ctx, appt.AttendantID)
	if err != nil {
		return nil, err
	}
	base := appt.BaseCents()
	c := attendant.Commission{
		BusinessID:    appt.BusinessID,
		AttendantID:   a.ID,
		AppointmentID: appt.ID,
		BaseCents:     base,
		Bps:           a.CommissionBps,
		AmountCents:   attendant.CommissionAmount(base, a.CommissionBps),
	}
	if appt.CompletedAt != nil {
		c.CreatedAt = *appt.CompletedAt
	}
	created, err := s.store.CreateCommission(ctx, c)
	if errors.Is(err, storage.ErrConflict) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.log.WithField("attendant_id", a.ID).
		WithField("appointment_id", appt.ID).
		WithField("amount_cents", created.AmountCents).
		Info("commission recorded")
	return &created, nil
}

// CommissionReport sums commissions per attendant in [from, to).
func (s *Service) CommissionReport(ctx context.Context, businessID string, from, to time.Time) ([]attendant.CommissionSummary, error) {
	rows, err := s.store.ListCommissions(ctx, businessID, from, to)
	if err != nil {
		return nil, err
	}
	names := map[string]string{}
	if list, err := s.store.ListAttendants(ctx, businessID); err == nil {
		for _, a := range list {
			names[a.ID] = a.Name
		}
	}

	byID := map[string]*attendant.CommissionSummary{}
	for _, c := range rows {
		sum, ok := byID[c.AttendantID]
		if !ok {
			sum = &attendant.CommissionSummary{AttendantID: c.AttendantID, AttendantName: names[c.AttendantID]}
			byID[c.AttendantID] = sum
		}
		sum.Appointments++
		sum.GrossCents += c.BaseCents
		sum.CommissionCents += c.AmountCents
	}

	report := make([]attendant.CommissionSummary, 0, len(byID))
	for _, sum := range byID {
		report = append(report, *sum)
	}
	sort.Slice(report, func(i, j int) bool { return report[i].AttendantName < report[j].AttendantName })
	return report, nil
}
