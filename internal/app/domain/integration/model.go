package integration

import (
	"time"

	"github.com/gestly/gestly/internal/app/domain/jsonb"
)

// Kind of integration.
type Kind string

const (
	KindWebhook   Kind = "webhook"
	KindMessaging Kind = "messaging"
)

// Config keys understood by messaging integrations.
const (
	ConfigChannel       = "channel"
	ConfigAuthHeader    = "auth_header"
	ConfigMessageIDPath = "message_id_path"
)

// Integration is a third-party connection owned by a business.
type Integration struct {
	ID             string        `json:"id" db:"id"`
	BusinessID     string        `json:"business_id" db:"business_id"`
	Kind           Kind          `json:"kind" db:"kind"`
	Name           string        `json:"name" db:"name"`
	URL            string        `json:"url" db:"url"`
	Events         jsonb.Strings `json:"events" db:"events"`
	Config         jsonb.Map     `json:"config,omitempty" db:"config"`
	Active         bool          `json:"active" db:"active"`
	LastDeliveryAt *time.Time    `json:"last_delivery_at,omitempty" db:"last_delivery_at"`
	LastError      string        `json:"last_error,omitempty" db:"last_error"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// Wants reports whether a webhook subscribes to the event type.
func (i Integration) Wants(eventType string) bool {
	return len(i.Events) == 0 || i.Events.Contains(eventType)
}

// Event is the envelope delivered to webhooks and realtime clients.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	BusinessID string    `json:"business_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// Message is an outbound message handed to a messaging gateway.
type Message struct {
	Channel string `json:"channel"`
	To      string `json:"to"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// Delivery is the outcome of one outbound call.
type Delivery struct {
	IntegrationID string `json:"integration_id"`
	StatusCode    int    `json:"status_code"`
	MessageID     string `json:"message_id,omitempty"`
}
