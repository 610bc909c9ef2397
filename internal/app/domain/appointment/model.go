package appointment

import "time"

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Source records which surface created the appointment.
type Source string

const (
	SourceDashboard Source = "dashboard"
	SourceAPI       Source = "api"
)

// Appointment books a customer for a service at a given time.
type Appointment struct {
	ID             string     `json:"id" db:"id"`
	BusinessID     string     `json:"business_id" db:"business_id"`
	CustomerID     string     `json:"customer_id" db:"customer_id"`
	ServiceID      string     `json:"service_id" db:"service_id"`
	AttendantID    string     `json:"attendant_id,omitempty" db:"attendant_id"`
	StartAt        time.Time  `json:"start_at" db:"start_at"`
	EndAt          time.Time  `json:"end_at" db:"end_at"`
	Status         Status     `json:"status" db:"status"`
	PriceCents     int        `json:"price_cents" db:"price_cents"`
	DiscountCents  int        `json:"discount_cents" db:"discount_cents"`
	PointsRedeemed int        `json:"points_redeemed" db:"points_redeemed"`
	Source         Source     `json:"source" db:"source"`
	Notes          string     `json:"notes,omitempty" db:"notes"`
	CancelReason   string     `json:"cancel_reason,omitempty" db:"cancel_reason"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty" db:"reminder_sent_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is an allowed move.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StatusConfirmed:
		return from == StatusScheduled
	case StatusCompleted:
		return from == StatusConfirmed
	case StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Blocks reports whether the appointment occupies its time range.
func (a Appointment) Blocks() bool {
	return a.Status != StatusCancelled && a.Status != StatusNoShow
}

// BaseCents is the amount actually charged.
func (a Appointment) BaseCents() int {
	base := a.PriceCents - a.DiscountCents
	if base < 0 {
		return 0
	}
	return base
}

// Filter narrows appointment listings.
type Filter struct {
	From        time.Time
	To          time.Time
	AttendantID string
	Status      Status
}

// Match reports whether a satisfies the filter. Range is half-open on StartAt.
func (f Filter) Match(a Appointment) bool {
	if !f.From.IsZero() && a.StartAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !a.StartAt.Before(f.To) {
		return false
	}
	if f.AttendantID != "" && a.AttendantID != f.AttendantID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}
