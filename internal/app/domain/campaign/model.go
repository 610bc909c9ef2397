package campaign

import (
	"database/sql/driver"
	"time"

	"github.com/gestly/gestly/internal/app/domain/jsonb"
)

// Channel is the delivery medium.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Valid reports whether c is supported.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS || c == ChannelWhatsApp
}

// Status of a campaign.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Editable reports whether content may still change.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusScheduled
}

// AudienceKind selects which customers receive a campaign.
type AudienceKind string

const (
	AudienceAll      AudienceKind = "all"
	AudienceInactive AudienceKind = "inactive"
	AudienceBirthday AudienceKind = "birthday"
	AudienceLoyal    AudienceKind = "loyal"
)

// Audience describes the recipient filter.
type Audience struct {
	Kind         AudienceKind `json:"kind"`
	InactiveDays int          `json:"inactive_days,omitempty"`
	MinPoints    int          `json:"min_points,omitempty"`
}

// Value implements driver.Valuer.
func (a Audience) Value() (driver.Value, error) { return jsonb.Value(a) }

// Scan implements sql.Scanner.
func (a *Audience) Scan(src any) error { return jsonb.Scan(src, a) }

// Campaign is a marketing message.
type Campaign struct {
	ID             string     `json:"id" db:"id"`
	BusinessID     string     `json:"business_id" db:"business_id"`
	Name           string     `json:"name" db:"name"`
	Channel        Channel    `json:"channel" db:"channel"`
	IntegrationID  string     `json:"integration_id,omitempty" db:"integration_id"`
	Subject        string     `json:"subject,omitempty" db:"subject"`
	Body           string     `json:"body" db:"body"`
	Audience       Audience   `json:"audience" db:"audience"`
	Status         Status     `json:"status" db:"status"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	SentAt         *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	RecipientCount int        `json:"recipient_count" db:"recipient_count"`
	FailedCount    int        `json:"failed_count" db:"failed_count"`
	LastError      string     `json:"last_error,omitempty" db:"last_error"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// Preview summarises who would receive a campaign and a sample rendering.
type Preview struct {
	AudienceSize  int    `json:"audience_size"`
	SampleSubject string `json:"sample_subject,omitempty"`
	SampleBody    string `json:"sample_body"`
}
