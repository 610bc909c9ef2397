// Package billing consumes Stripe webhooks and keeps business plans in sync.
package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/gestly/gestly/internal/app/domain/billing"
	"github.com/gestly/gestly/internal/app/domain/business"
	"github.com/gestly/gestly/internal/app/services"
	"github.com/gestly/gestly/internal/app/storage"
	"github.com/gestly/gestly/pkg/logger"
)

// SignatureHeader is the header Stripe signs webhook payloads in.
const SignatureHeader = "Stripe-Signature"

// DefaultTolerance bounds the age of a signed payload.
const DefaultTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("missing stripe signature")
	ErrInvalidSignature = errors.New("invalid stripe signature")
	ErrStaleSignature   = errors.New("stripe signature timestamp outside tolerance")
)

// Businesses is the subset of the business service billing needs.
type Businesses interface {
	Get(ctx context.Context, id string) (business.Business, error)
	GetByStripeCustomer(ctx context.Context, stripeCustomerID string) (business.Business, error)
	ApplySubscription(ctx context.Context, b business.Business) (business.Business, error)
	Plans() billing.Catalog
}

// Result summarises how an event was processed.
type Result struct {
	EventID    string `json:"id"`
	Type       string `json:"type"`
	Handled    bool   `json:"handled"`
	BusinessID string `json:"business_id,omitempty"`
}

// Service verifies and applies Stripe events.
type Service struct {
	businesses Businesses
	secret     string
	tolerance  time.Duration
	log        *logger.Logger
	now        func() time.Time
}

// New constructs the webhook service.
func New(businesses Businesses, secret string, tolerance time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("billing")
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Service{businesses: businesses, secret: secret, tolerance: tolerance, log: log, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// ComputeSignature returns the v1 signature for payload signed at ts.
func ComputeSignature(ts int64, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a Stripe-Signature header. Any of several v1
// signatures may match, which happens while secrets are rolled.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}
	var (
		ts   int64
		sigs []string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			ts = parsed
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return ErrInvalidSignature
	}
	expected := ComputeSignature(ts, payload, secret)
	matched := false
	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			matched = true
			break
		}
	}
	if !matched {
		return ErrInvalidSignature
	}
	if age := now.Sub(time.Unix(ts, 0)); age > tolerance || age < -tolerance {
		return ErrStaleSignature
	}
	return nil
}

// HandleWebhook verifies and applies one event payload.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (Result, error) {
	if s.secret == "" {
		return Result{}, fmt.Errorf("stripe webhook secret is not configured")
	}
	if err := VerifySignature(payload, signature, s.secret, s.tolerance, s.now()); err != nil {
		return Result{}, err
	}
	if !gjson.ValidBytes(payload) {
		return Result{}, services.Invalid("payload is not valid JSON")
	}
	return s.Apply(ctx, payload)
}

// Apply processes an already verified event payload.
func (s *Service) Apply(ctx context.Context, payload []byte) (Result, error) {
	evt := gjson.ParseBytes(payload)
	res := Result{EventID: evt.Get("id").String(), Type: evt.Get("type").String()}
	obj := evt.Get("data.object")

	var (
		b   business.Business
		err error
	)
	switch res.Type {
	case "checkout.session.completed":
		b, err = s.checkoutCompleted(ctx, obj)
	case "customer.subscription.created", "customer.subscription.updated":
		b, err = s.subscriptionUpdated(ctx, obj)
	case "customer.subscription.deleted":
		b, err = s.subscriptionDeleted(ctx, obj)
	case "invoice.payment_failed":
		b, err = s.paymentFailed(ctx, obj)
	default:
		s.log.WithField("event_type", res.Type).Debug("ignoring stripe event")
		return res, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		s.log.WithField("event_id", res.EventID).WithField("event_type", res.Type).Warn("stripe event for unknown business")
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Handled = true
	res.BusinessID = b.ID
	return res, nil
}

func (s *Service) resolve(ctx context.Context, obj gjson.Result) (business.Business, error) {
	if id := obj.Get("metadata.business_id").String(); id != "" {
		return s.businesses.Get(ctx, id)
	}
	if id := obj.Get("client_reference_id").String(); id != "" {
		return s.businesses.Get(ctx, id)
	}
	if customer := obj.Get("customer").String(); customer != "" {
		return s.businesses.GetByStripeCustomer(ctx, customer)
	}
	return business.Business{}, fmt.Errorf("event has no business reference: %w", storage.ErrNotFound)
}

func (s *Service) planFrom(obj gjson.Result) string {
	plans := s.businesses.Plans()
	if name := obj.Get("metadata.plan").String(); name != "" && plans.Has(name) {
		return name
	}
	if plan, ok := plans.ByPriceID(obj.Get("items.data.0.price.id").String()); ok {
		return plan.Name
	}
	if plan, ok := plans.ByPriceID(obj.Get("plan.id").String()); ok {
		return plan.Name
	}
	return ""
}

// subscriptionStatus folds Stripe's statuses into the ones the plan
// logic understands.
func subscriptionStatus(v string) string {
	switch v {
	case "active":
		return billing.StatusActive
	case "trialing":
		return billing.StatusTrialing
	case "past_due", "unpaid", "incomplete":
		return billing.StatusPastDue
	default:
		return billing.StatusCanceled
	}
}

func (s *Service) checkoutCompleted(ctx context.Context, obj gjson.Result) (business.Business, error) {
	b, err := s.resolve(ctx, obj)
	if err != nil {
		return business.Business{}, err
	}
	if v := obj.Get("customer").String(); v != "" {
		b.StripeCustomerID = v
	}
	if v := obj.Get("subscription").String(); v != "" {
		b.StripeSubscriptionID = v
	}
	if plan := s.planFrom(obj); plan != "" {
		b.Plan = plan
	}
	b.SubscriptionStatus = billing.StatusActive
	return s.businesses.ApplySubscription(ctx, b)
}

func (s *Service) subscriptionUpdated(ctx context.Context, obj gjson.Result) (business.Business, error) {
	b, err := s.resolve(ctx, obj)
	if err != nil {
		return business.Business{}, err
	}
	if v := obj.Get("customer").String(); v != "" {
		b.StripeCustomerID = v
	}
	if v := obj.Get("id").String(); v != "" {
		b.StripeSubscriptionID = v
	}
	if plan := s.planFrom(obj); plan != "" {
		b.Plan = plan
	}
	b.SubscriptionStatus = subscriptionStatus(obj.Get("status").String())
	return s.businesses.ApplySubscription(ctx, b)
}

func (s *Service) subscriptionDeleted(ctx context.Context, obj gjson.Result) (business.Business, error) {
	b, err := s.resolve(ctx, obj)
	if err != nil {
		return business.Business{}, err
	}
	b.Plan = billing.PlanFree
	b.SubscriptionStatus = billing.StatusCanceled
	return s.businesses.ApplySubscription(ctx, b)
}

func (s *Service) paymentFailed(ctx context.Context, obj gjson.Result) (business.Business, error) {
	b, err := s.resolve(ctx, obj)
	if err != nil {
		return business.Business{}, err
	}
	b.SubscriptionStatus = billing.StatusPastDue
	return s.businesses.ApplySubscription(ctx, b)
}
