package businesses

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gestly/gestly/internal/app/domain/billing"
	"github.com/gestly/gestly/internal/app/domain/business"
	"github.com/gestly/gestly/internal/app/domain/loyalty"
	"github.com/gestly/gestly/internal/app/services"
	"github.com/gestly/gestly/internal/app/storage"
	"github.com/gestly/gestly/pkg/logger"
)

const (
	DefaultSlotInterval = 30
	MinSlotInterval     = 5
)

// Service manages tenants, their opening hours and plan limits.
type Service struct {
	store storage.BusinessStore
	days  storage.SpecialDayStore
	plans billing.Catalog
	log   *logger.Logger
}

// New constructs a business service.
func New(store storage.BusinessStore, days storage.SpecialDayStore, plans billing.Catalog, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("businesses")
	}
	if len(plans) == 0 {
		plans = billing.DefaultPlans()
	}
	return &Service{store: store, days: days, plans: plans, log: log}
}

// CreateInput carries the fields accepted on creation.
type CreateInput struct {
	Name     string                `json:"name"`
	Timezone string                `json:"timezone"`
	Phone    string                `json:"phone"`
	Email    string                `json:"email"`
	Hours    *business.WeeklyHours `json:"hours"`
}

// Create registers a business owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (business.Business, error) {
	if ownerID == "" {
		return business.Business{}, services.Invalid("owner is required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return business.Business{}, services.Invalid("name is required")
	}
	tz := strings.TrimSpace(in.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return business.Business{}, services.Invalid("unknown timezone %q", tz)
	}
	hours := business.DefaultHours()
	if in.Hours != nil {
		hours = *in.Hours
	}
	if err := hours.Validate(); err != nil {
		return business.Business{}, services.Invalid("hours: %v", err)
	}

	b := business.Business{
		OwnerID:            ownerID,
		Name:               name,
		Slug:               Slugify(name),
		Timezone:           tz,
		Phone:              strings.TrimSpace(in.Phone),
		Email:              strings.ToLower(strings.TrimSpace(in.Email)),
		Hours:              hours,
		SlotInterval:       DefaultSlotInterval,
		Loyalty:            loyalty.DefaultSettings(),
		Plan:               billing.PlanFree,
		SubscriptionStatus: billing.StatusActive,
	}

	created, err := s.store.CreateBusiness(ctx, b)
	if errors.Is(err, storage.ErrConflict) {
		// Slug taken: retry once with a short random suffix.
		b.Slug = b.Slug + "-" + uuid.NewString()[:6]
		created, err = s.store.CreateBusiness(ctx, b)
	}
	if err != nil {
		return business.Business{}, err
	}
	s.log.WithField("business_id", created.ID).WithField("owner_id", ownerID).Info("business created")
	return created, nil
}

// Get retrieves a business by identifier.
func (s *Service) Get(ctx context.Context, id string) (business.Business, error) {
	return s.store.GetBusiness(ctx, id)
}

// Authorize loads a business and checks that ownerID owns it.
func (s *Service) Authorize(ctx context.Context, id, ownerID string) (business.Business, error) {
	b, err := s.store.GetBusiness(ctx, id)
	if err != nil {
		return business.Business{}, err
	}
	if b.OwnerID != ownerID {
		return business.Business{}, services.ErrForbidden
	}
	return b, nil
}

// ListByOwner returns the businesses a user owns.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]business.Business, error) {
	return s.store.ListBusinessesByOwner(ctx, ownerID)
}

// UpdateInput holds optional changes; nil fields are left untouched.
type UpdateInput struct {
	Name         *string               `json:"name"`
	Phone        *string               `json:"phone"`
	Email        *string               `json:"email"`
	Timezone     *string               `json:"timezone"`
	Hours        *business.WeeklyHours `json:"hours"`
	SlotInterval *int                  `json:"slot_interval"`
	MinNotice    *int                  `json:"min_notice"`
	Loyalty      *loyalty.Settings     `json:"loyalty"`
}

// Update applies in to the business.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (business.Business, error) {
	b, err := s.store.GetBusiness(ctx, id)
	if err != nil {
		return business.Business{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return business.Business{}, services.Invalid("name is required")
		}
		b.Name = name
	}
	if in.Phone != nil {
		b.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Email != nil {
		b.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Timezone != nil {
		if _, err := time.LoadLocation(*in.Timezone); err != nil || *in.Timezone == "" {
			return business.Business{}, services.Invalid("unknown timezone %q", *in.Timezone)
		}
		b.Timezone = *in.Timezone
	}
	if in.Hours != nil {
		if err := in.Hours.Validate(); err != nil {
			return business.Business{}, services.Invalid("hours: %v", err)
		}
		b.Hours = *in.Hours
	}
	if in.SlotInterval != nil {
		if *in.SlotInterval < MinSlotInterval || *in.SlotInterval > 24*60 {
			return business.Business{}, services.Invalid("slot_interval must be between %d and 1440", MinSlotInterval)
		}
		b.SlotInterval = *in.SlotInterval
	}
	if in.MinNotice != nil {
		if *in.MinNotice < 0 {
			return business.Business{}, services.Invalid("min_notice must be >= 0")
		}
		b.MinNotice = *in.MinNotice
	}
	if in.Loyalty != nil {
		if err := validateLoyalty(*in.Loyalty); err != nil {
			return business.Business{}, err
		}
		b.Loyalty = *in.Loyalty
	}

	updated, err := s.store.UpdateBusiness(ctx, b)
	if err != nil {
		return business.Business{}, err
	}
	s.log.WithField("business_id", id).Info("business updated")
	return updated, nil
}

func validateLoyalty(l loyalty.Settings) error {
	switch {
	case l.PointsPerUnit < 0:
		return services.Invalid("loyalty.points_per_unit must be >= 0")
	case l.RedemptionCents < 0:
		return services.Invalid("loyalty.redemption_cents must be >= 0")
	case l.MinRedeemPoints < 0:
		return services.Invalid("loyalty.min_redeem_points must be >= 0")
	case l.Enabled && (l.MaxRedeemPercent < 1 || l.MaxRedeemPercent > 100):
		return services.Invalid("loyalty.max_redeem_percent must be between 1 and 100")
	}
	return nil
}

// ApplySubscription records billing state coming from Stripe.
func (s *Service) ApplySubscription(ctx context.Context, b business.Business) (business.Business, error) {
	if b.Plan != "" && !s.plans.Has(b.Plan) {
		return business.Business{}, services.Invalid("unknown plan %q", b.Plan)
	}
	updated, err := s.store.UpdateBusiness(ctx, b)
	if err != nil {
		return business.Business{}, err
	}
	s.log.WithField("business_id", b.ID).
		WithField("plan", b.Plan).
		WithField("status", b.SubscriptionStatus).
		Info("subscription updated")
	return updated, nil
}

// GetByStripeCustomer resolves a business from its Stripe customer id.
func (s *Service) GetByStripeCustomer(ctx context.Context, stripeCustomerID string) (business.Business, error) {
	return s.store.GetBusinessByStripeCustomer(ctx, stripeCustomerID)
}

// Plans returns the plan catalog.
func (s *Service) Plans() billing.Catalog {
	return s.plans
}

// PlanFor returns the effective plan. Lapsed subscriptions fall back to free.
func (s *Service) PlanFor(b business.Business) billing.Plan {
	switch b.SubscriptionStatus {
	case billing.StatusActive, billing.StatusTrialing, billing.StatusPastDue, "":
		return s.plans.Find(b.Plan)
	}
	return s.plans.Find(billing.PlanFree)
}

// SetSpecialDay creates or replaces the override for a date.
func (s *Service) SetSpecialDay(ctx context.Context, day business.SpecialDay) (business.SpecialDay, error) {
	if _, err := time.Parse(business.DateLayout, day.Date); err != nil {
		return business.SpecialDay{}, services.Invalid("date must be YYYY-MM-DD")
	}
	if !day.Closed {
		if err := day.Hours().Validate(); err != nil {
			return business.SpecialDay{}, services.Invalid("%v", err)
		}
	} else {
		day.Open, day.Close = "", ""
	}
	saved, err := s.days.UpsertSpecialDay(ctx, day)
	if err != nil {
		return business.SpecialDay{}, err
	}
	s.log.WithField("business_id", day.BusinessID).WithField("date", day.Date).Info("special day saved")
	return saved, nil
}

// DeleteSpecialDay removes an override.
func (s *Service) DeleteSpecialDay(ctx context.Context, businessID, date string) error {
	return s.days.DeleteSpecialDay(ctx, businessID, date)
}

// ListSpecialDays lists overrides in the inclusive date range.
func (s *Service) ListSpecialDays(ctx context.Context, businessID, from, to string) ([]business.SpecialDay, error) {
	return s.days.ListSpecialDays(ctx, businessID, from, to)
}

// SpecialDay returns the override for a date, if any.
func (s *Service) SpecialDay(ctx context.Context, businessID, date string) (*business.SpecialDay, error) {
	days, err := s.days.ListSpecialDays(ctx, businessID, date, date)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, nil
	}
	return &days[0], nil
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name and replaces runs of other characters with '-'.
func Slugify(name string) string {
	slug := nonAlnum.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "business"
	}
	return slug
}
