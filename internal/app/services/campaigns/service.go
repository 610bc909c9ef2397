// Package campaigns manages marketing campaigns and dispatches the due ones.
package campaigns

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/gestly/gestly/internal/app/domain/billing"
	"github.com/gestly/gestly/internal/app/domain/business"
	domain "github.com/gestly/gestly/internal/app/domain/campaign"
	"github.com/gestly/gestly/internal/app/domain/customer"
	"github.com/gestly/gestly/internal/app/domain/integration"
	"github.com/gestly/gestly/internal/app/events"
	"github.com/gestly/gestly/internal/app/services"
	"github.com/gestly/gestly/internal/app/storage"
	"github.com/gestly/gestly/pkg/logger"
)

// Defaults applied to audience filters left at zero.
const (
	DefaultInactiveDays = 60
	DefaultMinPoints    = 100
)

// Businesses resolves a business and its plan.
type Businesses interface {
	Get(ctx context.Context, id string) (business.Business, error)
	PlanFor(b business.Business) billing.Plan
}

// Messaging sends through messaging integrations.
type Messaging interface {
	Get(ctx context.Context, businessID, id string) (integration.Integration, error)
	Messenger(ctx context.Context, businessID, channel string) (integration.Integration, error)
	Send(ctx context.Context, i integration.Integration, msg integration.Message) (integration.Delivery, error)
}

// Publisher receives campaign events.
type Publisher interface {
	Publish(ctx context.Context, businessID, eventType string, data any)
}

// TemplateData is what campaign subjects and bodies render against.
type TemplateData struct {
	Customer customer.Customer
	Business business.Business
}

// Service manages campaigns.
type Service struct {
	store      storage.CampaignStore
	customers  storage.CustomerStore
	businesses Businesses
	messaging  Messaging
	publisher  Publisher
	log        *logger.Logger
	now        func() time.Time
}

// New constructs a campaign service.
func New(store storage.CampaignStore, customers storage.CustomerStore, businesses Businesses, messaging Messaging, publisher Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("campaigns")
	}
	return &Service{
		store:      store,
		customers:  customers,
		businesses: businesses,
		messaging:  messaging,
		publisher:  publisher,
		log:        log,
		now:        time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func parse(name, text string) (*template.Template, error) {
	return template.New(name).Option("missingkey=zero").Parse(text)
}

// Render executes a campaign template.
func Render(text string, data TemplateData) (string, error) {
	tmpl, err := parse("campaign", text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func validate(c *domain.Campaign) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return services.Invalid("name is required")
	}
	if !c.Channel.Valid() {
		return services.Invalid("channel must be email, sms or whatsapp")
	}
	if strings.TrimSpace(c.Body) == "" {
		return services.Invalid("body is required")
	}
	if _, err := parse("body", c.Body); err != nil {
		return services.Invalid("body template: %v", err)
	}
	if _, err := parse("subject", c.Subject); err != nil {
		return services.Invalid("subject template: %v", err)
	}
	switch c.Audience.Kind {
	case "":
		c.Audience.Kind = domain.AudienceAll
	case domain.AudienceAll, domain.AudienceInactive, domain.AudienceBirthday, domain.AudienceLoyal:
	default:
		return services.Invalid("unknown audience %q", c.Audience.Kind)
	}
	if c.Audience.InactiveDays < 0 || c.Audience.MinPoints < 0 {
		return services.Invalid("audience thresholds must not be negative")
	}
	return nil
}

func (s *Service) business(ctx context.Context, businessID string) (business.Business, error) {
	b, err := s.businesses.Get(ctx, businessID)
	if err != nil {
		return business.Business{}, err
	}
	if plan := s.businesses.PlanFor(b); !plan.Campaigns {
		return business.Business{}, fmt.Errorf("plan %s does not include campaigns: %w", plan.Name, services.ErrPlanLimit)
	}
	return b, nil
}

// Create stores a draft campaign.
func (s *Service) Create(ctx context.Context, c domain.Campaign) (domain.Campaign, error) {
	if _, err := s.business(ctx, c.BusinessID); err != nil {
		return domain.Campaign{}, err
	}
	if err := validate(&c); err != nil {
		return domain.Campaign{}, err
	}
	if c.IntegrationID != "" {
		if _, err := s.messaging.Get(ctx, c.BusinessID, c.IntegrationID); err != nil {
			return domain.Campaign{}, err
		}
	}
	c.ID = ""
	c.Status = domain.StatusDraft
	c.ScheduledAt, c.SentAt = nil, nil
	c.RecipientCount, c.FailedCount, c.LastError = 0, 0, ""
	created, err := s.store.CreateCampaign(ctx, c)
	if err != nil {
		return domain.Campaign{}, err
	}
	s.log.WithField("business_id", c.BusinessID).WithField("campaign_id", created.ID).Info("campaign created")
	return created, nil
}

// Get returns a campaign of the business.
func (s *Service) Get(ctx context.Context, businessID, id string) (domain.Campaign, error) {
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return domain.Campaign{}, err
	}
	if c.BusinessID != businessID {
		return domain.Campaign{}, services.NotFound("campaign", id)
	}
	return c, nil
}

// List returns the campaigns of a business.
func (s *Service) List(ctx context.Context, businessID string) ([]domain.Campaign, error) {
	return s.store.ListCampaigns(ctx, businessID)
}

// Update changes the content of a draft or scheduled campaign.
func (s *Service) Update(ctx context.Context, businessID string, in domain.Campaign) (domain.Campaign, error) {
	existing, err := s.Get(ctx, businessID, in.ID)
	if err != nil {
		return domain.Campaign{}, err
	}
	if !existing.Status.Editable() {
		return domain.Campaign{}, fmt.Errorf("campaign is %s: %w", existing.Status, services.ErrConflict)
	}
	existing.Name = in.Name
	existing.Channel = in.Channel
	existing.IntegrationID = in.IntegrationID
	existing.Subject = in.Subject
	existing.Body = in.Body
	existing.Audience = in.Audience
	if err := validate(&existing); err != nil {
		return domain.Campaign{}, err
	}
	updated, err := s.store.TransitionCampaign(ctx, existing, domain.StatusDraft, domain.StatusScheduled)
	return updated, stale(err)
}

// stale maps a lost status race to the service conflict error.
func stale(err error) error {
	if errors.Is(err, storage.ErrConflict) {
		return fmt.Errorf("campaign changed concurrently: %w", services.ErrConflict)
	}
	return err
}

// Schedule queues a campaign for dispatch at the given time.
func (s *Service) Schedule(ctx context.Context, businessID, id string, at time.Time) (domain.Campaign, error) {
	if at.IsZero() {
		return domain.Campaign{}, services.Invalid("scheduled_at is required")
	}
	if at.Before(s.now().Add(-time.Minute)) {
		return domain.Campaign{}, services.Invalid("scheduled_at is in the past")
	}
	if _, err := s.business(ctx, businessID); err != nil {
		return domain.Campaign{}, err
	}
	c, err := s.Get(ctx, businessID, id)
	if err != nil {
		return domain.Campaign{}, err
	}
	if !c.Status.Editable() {
		return domain.Campaign{}, fmt.Errorf("campaign is %s: %w", c.Status, services.ErrConflict)
	}
	at = at.UTC()
	c.ScheduledAt = &at
	c.Status = domain.StatusScheduled
	updated, err := s.store.TransitionCampaign(ctx, c, domain.StatusDraft, domain.StatusScheduled)
	if err != nil {
		return domain.Campaign{}, stale(err)
	}
	s.log.WithField("campaign_id", id).WithField("scheduled_at", at).Info("campaign scheduled")
	return updated, nil
}

// Cancel stops a draft or scheduled campaign.
func (s *Service) Cancel(ctx context.Context, businessID, id string) (domain.Campaign, error) {
	c, err := s.Get(ctx, businessID, id)
	if err != nil {
		return domain.Campaign{}, err
	}
	if !c.Status.Editable() {
		return domain.Campaign{}, fmt.Errorf("campaign is %s: %w", c.Status, services.ErrConflict)
	}
	c.Status = domain.StatusCancelled
	updated, err := s.store.TransitionCampaign(ctx, c, domain.StatusDraft, domain.StatusScheduled)
	if err != nil {
		return domain.Campaign{}, stale(err)
	}
	s.log.WithField("campaign_id", id).Info("campaign cancelled")
	return updated, nil
}

// Preview reports the audience size and renders the campaign for the first
// recipient, or for a placeholder customer when the audience is empty.
func (s *Service) Preview(ctx context.Context, businessID, id string) (domain.Preview, error) {
	c, err := s.Get(ctx, businessID, id)
	if err != nil {
		return domain.Preview{}, err
	}
	b, err := s.businesses.Get(ctx, businessID)
	if err != nil {
		return domain.Preview{}, err
	}
	recipients, err := s.Audience(ctx, b, c)
	if err != nil {
		return domain.Preview{}, err
	}
	sample := customer.Customer{Name: "Customer"}
	if len(recipients) > 0 {
		sample = recipients[0]
	}
	data := TemplateData{Customer: sample, Business: b}
	body, err := Render(c.Body, data)
	if err != nil {
		return domain.Preview{}, services.Invalid("body template: %v", err)
	}
	subject, err := Render(c.Subject, data)
	if err != nil {
		return domain.Preview{}, services.Invalid("subject template: %v", err)
	}
	return domain.Preview{AudienceSize: len(recipients), SampleSubject: subject, SampleBody: body}, nil
}

// Audience returns the reachable customers matching the campaign filter.
func (s *Service) Audience(ctx context.Context, b business.Business, c domain.Campaign) ([]customer.Customer, error) {
	all, err := s.customers.ListCustomers(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	loc, err := b.Location()
	if err != nil {
		loc = time.UTC
	}
	now := s.now().In(loc)

	result := make([]customer.Customer, 0, len(all))
	for _, cust := range all {
		if Address(c.Channel, cust) == "" {
			continue
		}
		if matches(c.Audience, cust, now) {
			result = append(result, cust)
		}
	}
	return result, nil
}

func matches(a domain.Audience, c customer.Customer, now time.Time) bool {
	switch a.Kind {
	case domain.AudienceInactive:
		days := a.InactiveDays
		if days == 0 {
			days = DefaultInactiveDays
		}
		last := c.CreatedAt
		if c.LastVisitAt != nil {
			last = *c.LastVisitAt
		}
		return now.Sub(last) >= time.Duration(days)*24*time.Hour
	case domain.AudienceBirthday:
		if len(c.BirthDate) != len("2006-01-02") {
			return false
		}
		return c.BirthDate[5:] == now.Format("01-02")
	case domain.AudienceLoyal:
		threshold := a.MinPoints
		if threshold == 0 {
			threshold = DefaultMinPoints
		}
		return c.LoyaltyPoints >= threshold
	default:
		return true
	}
}

// Address returns the customer handle used on a channel.
func Address(ch domain.Channel, c customer.Customer) string {
	if ch == domain.ChannelEmail {
		return c.Email
	}
	return c.Phone
}

// RunOnce dispatches every campaign whose schedule has passed and returns
// how many were processed.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	due, err := s.store.ListDueCampaigns(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("list due campaigns: %w", err)
	}
	processed := 0
	for _, c := range due {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		err := s.dispatch(ctx, c)
		switch {
		case errors.Is(err, errNotDue):
			s.log.WithField("campaign_id", c.ID).Debug(err.Error())
			continue
		case err != nil:
			s.log.WithError(err).WithField("campaign_id", c.ID).Warn("campaign dispatch failed")
		}
		processed++
	}
	return processed, nil
}

func (s *Service) gateway(ctx context.Context, c domain.Campaign) (integration.Integration, error) {
	if c.IntegrationID != "" {
		i, err := s.messaging.Get(ctx, c.BusinessID, c.IntegrationID)
		if err != nil {
			return integration.Integration{}, err
		}
		if !i.Active || i.Kind != integration.KindMessaging {
			return integration.Integration{}, fmt.Errorf("integration %s is not an active messaging gateway", i.ID)
		}
		return i, nil
	}
	return s.messaging.Messenger(ctx, c.BusinessID, string(c.Channel))
}

// errNotDue marks a campaign that left the scheduled state before it was
// claimed for dispatch.
var errNotDue = errors.New("campaign no longer scheduled")

func (s *Service) finish(ctx context.Context, c domain.Campaign, status domain.Status, cause error) error {
	now := s.now().UTC()
	c.Status = status
	c.SentAt = &now
	if cause != nil {
		c.LastError = cause.Error()
	}
	if _, err := s.store.TransitionCampaign(ctx, c, domain.StatusSending); err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if status == domain.StatusSent && s.publisher != nil {
		s.publisher.Publish(ctx, c.BusinessID, events.CampaignSent, c)
	}
	return cause
}

func (s *Service) dispatch(ctx context.Context, c domain.Campaign) error {
	c.Status = domain.StatusSending
	c, err := s.store.TransitionCampaign(ctx, c, domain.StatusScheduled)
	if errors.Is(err, storage.ErrConflict) {
		return errNotDue
	}
	if err != nil {
		return fmt.Errorf("mark sending: %w", err)
	}

	b, err := s.businesses.Get(ctx, c.BusinessID)
	if err != nil {
		return s.finish(ctx, c, domain.StatusFailed, err)
	}
	gw, err := s.gateway(ctx, c)
	if err != nil {
		return s.finish(ctx, c, domain.StatusFailed, err)
	}
	recipients, err := s.Audience(ctx, b, c)
	if err != nil {
		return s.finish(ctx, c, domain.StatusFailed, err)
	}

	var lastErr error
	for _, cust := range recipients {
		data := TemplateData{Customer: cust, Business: b}
		body, err := Render(c.Body, data)
		if err == nil {
			var subject string
			subject, err = Render(c.Subject, data)
			if err == nil {
				_, err = s.messaging.Send(ctx, gw, integration.Message{
					Channel: string(c.Channel),
					To:      Address(c.Channel, cust),
					Subject: subject,
					Body:    body,
				})
			}
		}
		if err != nil {
			c.FailedCount++
			lastErr = err
			continue
		}
		c.RecipientCount++
	}

	s.log.WithField("campaign_id", c.ID).
		WithField("sent", c.RecipientCount).
		WithField("failed", c.FailedCount).
		Info("campaign dispatched")
	if c.RecipientCount == 0 && c.FailedCount > 0 {
		return s.finish(ctx, c, domain.StatusFailed, lastErr)
	}
	if lastErr != nil {
		c.LastError = lastErr.Error()
	}
	return s.finish(ctx, c, domain.StatusSent, nil)
}
