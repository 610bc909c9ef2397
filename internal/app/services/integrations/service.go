// Package integrations delivers events to webhooks and messages to
// messaging gateways.
package integrations

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/time/rate"

	"github.com/gestly/gestly/internal/app/domain/campaign"
	"github.com/gestly/gestly/internal/app/domain/integration"
	"github.com/gestly/gestly/internal/app/domain/jsonb"
	"github.com/gestly/gestly/internal/app/metrics"
	"github.com/gestly/gestly/internal/app/services"
	"github.com/gestly/gestly/internal/app/storage"
	"github.com/gestly/gestly/internal/httputil"
	"github.com/gestly/gestly/pkg/logger"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "X-Gestly-Signature"

const hkdfInfo = "gestly-webhook"

// Poster sends JSON payloads.
type Poster interface {
	PostJSON(ctx context.Context, url string, body []byte, headers map[string]string) (httputil.Response, error)
}

// Service manages integrations and performs outbound deliveries.
type Service struct {
	store  storage.IntegrationStore
	secret []byte
	client Poster
	log    *logger.Logger
	now    func() time.Time

	paceMu    sync.Mutex
	pace      map[string]*rate.Limiter
	sendRate  rate.Limit
	sendBurst int
}

// New constructs the service. masterSecret seeds per-integration signing
// keys and must not change once integrations exist.
func New(store storage.IntegrationStore, masterSecret string, client Poster, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("integrations")
	}
	if client == nil {
		client = httputil.NewClient(httputil.Config{})
	}
	return &Service{store: store, secret: []byte(masterSecret), client: client, log: log, now: time.Now, pace: map[string]*rate.Limiter{}}
}

// WithSendRate limits each messaging gateway to perSecond messages with the
// given burst. Send blocks until the gateway has capacity. A non-positive
// rate disables pacing.
func (s *Service) WithSendRate(perSecond float64, burst int) *Service {
	if perSecond <= 0 {
		return s
	}
	if burst <= 0 {
		burst = 1
	}
	s.sendRate = rate.Limit(perSecond)
	s.sendBurst = burst
	return s
}

func (s *Service) gatewayLimiter(id string) *rate.Limiter {
	if s.sendRate == 0 {
		return nil
	}
	s.paceMu.Lock()
	defer s.paceMu.Unlock()
	l, ok := s.pace[id]
	if !ok {
		l = rate.NewLimiter(s.sendRate, s.sendBurst)
		s.pace[id] = l
	}
	return l
}

// Created is returned once on creation with the webhook signing key.
type Created struct {
	integration.Integration
	SigningKey string `json:"signing_key,omitempty"`
}

// SigningKey derives the HMAC key of an integration.
func (s *Service) SigningKey(integrationID string) ([]byte, error) {
	if len(s.secret) == 0 {
		return nil, fmt.Errorf("webhook master secret is not configured")
	}
	reader := hkdf.New(sha256.New, s.secret, []byte(integrationID), []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// Sign produces the signature header value for body sent at ts.
func Sign(key []byte, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// Verify checks a signature header produced by Sign.
func Verify(key []byte, header string, body []byte) bool {
	var ts int64
	var sig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, _ = strconv.ParseInt(v, 10, 64)
		case "v1":
			sig = v
		}
	}
	if ts == 0 || sig == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(key, ts, body)), []byte(fmt.Sprintf("t=%d,v1=%s", ts, sig)))
}

func validate(i *integration.Integration) error {
	i.Name = strings.TrimSpace(i.Name)
	i.URL = strings.TrimSpace(i.URL)
	if i.Name == "" {
		return services.Invalid("name is required")
	}
	switch i.Kind {
	case integration.KindWebhook, integration.KindMessaging:
	default:
		return services.Invalid("kind must be webhook or messaging")
	}
	u, err := url.Parse(i.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return services.Invalid("url must be an absolute http(s) URL")
	}
	if i.Kind == integration.KindMessaging {
		if ch := i.Config[integration.ConfigChannel]; ch != "" && !campaign.Channel(ch).Valid() {
			return services.Invalid("unknown channel %q", ch)
		}
		if path := i.Config[integration.ConfigMessageIDPath]; path != "" && !strings.HasPrefix(path, "$") {
			return services.Invalid("message_id_path must be a JSONPath starting with $")
		}
	}
	if i.Config == nil {
		i.Config = jsonb.Map{}
	}
	return nil
}

// Create stores an integration and returns its signing key.
func (s *Service) Create(ctx context.Context, in integration.Integration) (Created, error) {
	if in.BusinessID == "" {
		return Created{}, services.Invalid("business_id is required")
	}
	in.ID = uuid.NewString()
	in.Active = true
	in.LastDeliveryAt = nil
	in.LastError = ""
	if err := validate(&in); err != nil {
		return Created{}, err
	}
	created, err := s.store.CreateIntegration(ctx, in)
	if err != nil {
		return Created{}, err
	}
	out := Created{Integration: created}
	if created.Kind == integration.KindWebhook {
		key, err := s.SigningKey(created.ID)
		if err != nil {
			return Created{}, err
		}
		out.SigningKey = hex.EncodeToString(key)
	}
	s.log.WithField("business_id", created.BusinessID).
		WithField("integration_id", created.ID).
		WithField("kind", created.Kind).
		Info("integration created")
	return out, nil
}

// Get returns an integration of the business.
func (s *Service) Get(ctx context.Context, businessID, id string) (integration.Integration, error) {
	i, err := s.store.GetIntegration(ctx, id)
	if err != nil {
		return integration.Integration{}, err
	}
	if i.BusinessID != businessID {
		return integration.Integration{}, services.NotFound("integration", id)
	}
	return i, nil
}

// List returns the integrations of a business.
func (s *Service) List(ctx context.Context, businessID string) ([]integration.Integration, error) {
	return s.store.ListIntegrations(ctx, businessID)
}

// Update overwrites name, URL, event filter, config and active flag.
func (s *Service) Update(ctx context.Context, businessID string, in integration.Integration) (integration.Integration, error) {
	existing, err := s.Get(ctx, businessID, in.ID)
	if err != nil {
		return integration.Integration{}, err
	}
	existing.Name = in.Name
	existing.URL = in.URL
	existing.Events = in.Events
	existing.Config = in.Config
	existing.Active = in.Active
	if err := validate(&existing); err != nil {
		return integration.Integration{}, err
	}
	return s.store.UpdateIntegration(ctx, existing)
}

// Delete removes an integration.
func (s *Service) Delete(ctx context.Context, businessID, id string) error {
	if _, err := s.Get(ctx, businessID, id); err != nil {
		return err
	}
	return s.store.DeleteIntegration(ctx, id)
}

func (s *Service) record(ctx context.Context, i integration.Integration, deliveryErr error) {
	now := s.now().UTC()
	i.LastDeliveryAt = &now
	i.LastError = ""
	if deliveryErr != nil {
		i.LastError = deliveryErr.Error()
	}
	metrics.RecordDelivery(string(i.Kind), deliveryErr == nil)
	if _, err := s.store.UpdateIntegration(ctx, i); err != nil {
		s.log.WithError(err).WithField("integration_id", i.ID).Warn("record delivery status")
	}
}

// Deliver posts a signed event envelope to a webhook.
func (s *Service) Deliver(ctx context.Context, i integration.Integration, evt integration.Event) (integration.Delivery, error) {
	if i.Kind != integration.KindWebhook {
		return integration.Delivery{}, services.Invalid("integration %s is not a webhook", i.ID)
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return integration.Delivery{}, fmt.Errorf("marshal event: %w", err)
	}
	key, err := s.SigningKey(i.ID)
	if err != nil {
		return integration.Delivery{}, err
	}
	headers := map[string]string{
		SignatureHeader:     Sign(key, s.now().Unix(), body),
		"X-Gestly-Event":    evt.Type,
		"X-Gestly-Delivery": evt.ID,
	}
	resp, err := s.client.PostJSON(ctx, i.URL, body, headers)
	s.record(ctx, i, err)
	delivery := integration.Delivery{IntegrationID: i.ID, StatusCode: resp.StatusCode}
	if err != nil {
		return delivery, fmt.Errorf("deliver %s to %s: %w", evt.Type, i.ID, err)
	}
	return delivery, nil
}

// Send hands a message to a messaging gateway and extracts the provider
// message id when a JSONPath is configured.
func (s *Service) Send(ctx context.Context, i integration.Integration, msg integration.Message) (integration.Delivery, error) {
	if i.Kind != integration.KindMessaging {
		return integration.Delivery{}, services.Invalid("integration %s is not a messaging gateway", i.ID)
	}
	if msg.Channel == "" {
		msg.Channel = i.Config[integration.ConfigChannel]
	}
	if strings.TrimSpace(msg.To) == "" {
		return integration.Delivery{}, services.Invalid("recipient is required")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return integration.Delivery{}, fmt.Errorf("marshal message: %w", err)
	}
	headers := map[string]string{}
	if auth := i.Config[integration.ConfigAuthHeader]; auth != "" {
		headers["Authorization"] = auth
	}
	if l := s.gatewayLimiter(i.ID); l != nil {
		if err := l.Wait(ctx); err != nil {
			return integration.Delivery{IntegrationID: i.ID}, fmt.Errorf("send via %s: %w", i.ID, err)
		}
	}
	resp, err := s.client.PostJSON(ctx, i.URL, body, headers)
	s.record(ctx, i, err)
	delivery := integration.Delivery{IntegrationID: i.ID, StatusCode: resp.StatusCode}
	if err != nil {
		return delivery, fmt.Errorf("send via %s: %w", i.ID, err)
	}
	if path := i.Config[integration.ConfigMessageIDPath]; path != "" {
		id, err := extract(resp.Body, path)
		if err != nil {
			s.log.WithError(err).WithField("integration_id", i.ID).Warn("extract provider message id")
		} else {
			delivery.MessageID = id
		}
	}
	return delivery, nil
}

func extract(body []byte, path string) (string, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	val, err := jsonpath.Get(path, doc)
	if err != nil {
		return "", fmt.Errorf("jsonpath %s: %w", path, err)
	}
	switch v := val.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case nil:
		return "", fmt.Errorf("jsonpath %s: no value", path)
	default:
		return fmt.Sprint(v), nil
	}
}

// ErrNoMessenger is returned when a business has no active messaging
// integration for a channel.
var ErrNoMessenger = errors.New("no active messaging integration")

// Messenger returns the first active messaging integration of a business.
// An empty channel matches any gateway; a gateway without a channel
// matches any channel.
func (s *Service) Messenger(ctx context.Context, businessID, channel string) (integration.Integration, error) {
	list, err := s.store.ListIntegrations(ctx, businessID)
	if err != nil {
		return integration.Integration{}, err
	}
	for _, i := range list {
		if !i.Active || i.Kind != integration.KindMessaging {
			continue
		}
		ch := i.Config[integration.ConfigChannel]
		if channel == "" || ch == "" || ch == channel {
			return i, nil
		}
	}
	return integration.Integration{}, ErrNoMessenger
}

// Test sends a ping event to a webhook.
func (s *Service) Test(ctx context.Context, businessID, id string) (integration.Delivery, error) {
	i, err := s.Get(ctx, businessID, id)
	if err != nil {
		return integration.Delivery{}, err
	}
	evt := integration.Event{
		ID:         uuid.NewString(),
		Type:       "ping",
		BusinessID: businessID,
		OccurredAt: s.now().UTC(),
		Data:       map[string]string{"integration_id": i.ID},
	}
	return s.Deliver(ctx, i, evt)
}

// HandleEvent forwards an event to every active webhook of its business
// that subscribes to the type.
func (s *Service) HandleEvent(ctx context.Context, evt integration.Event) {
	list, err := s.store.ListIntegrations(ctx, evt.BusinessID)
	if err != nil {
		s.log.WithError(err).WithField("business_id", evt.BusinessID).Warn("list webhooks")
		return
	}
	for _, i := range list {
		if !i.Active || i.Kind != integration.KindWebhook || !i.Wants(evt.Type) {
			continue
		}
		if _, err := s.Deliver(ctx, i, evt); err != nil {
			s.log.WithError(err).
				WithField("integration_id", i.ID).
				WithField("event", evt.Type).
				Warn("webhook delivery failed")
		}
	}
}
