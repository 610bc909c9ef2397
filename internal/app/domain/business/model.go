package business

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gestly/gestly/internal/app/domain/jsonb"
	"github.com/gestly/gestly/internal/app/domain/loyalty"
)

// Business is the tenant record every other entity hangs off.
type Business struct {
	ID                   string           `json:"id" db:"id"`
	OwnerID              string           `json:"owner_id" db:"owner_id"`
	Name                 string           `json:"name" db:"name"`
	Slug                 string           `json:"slug" db:"slug"`
	Timezone             string           `json:"timezone" db:"timezone"`
	Phone                string           `json:"phone,omitempty" db:"phone"`
	Email                string           `json:"email,omitempty" db:"email"`
	Hours                WeeklyHours      `json:"hours" db:"hours"`
	SlotInterval         int              `json:"slot_interval" db:"slot_interval"`
	MinNotice            int              `json:"min_notice" db:"min_notice"`
	Loyalty              loyalty.Settings `json:"loyalty" db:"loyalty"`
	Plan                 string           `json:"plan" db:"plan"`
	SubscriptionStatus   string           `json:"subscription_status" db:"subscription_status"`
	StripeCustomerID     string           `json:"stripe_customer_id,omitempty" db:"stripe_customer_id"`
	StripeSubscriptionID string           `json:"stripe_subscription_id,omitempty" db:"stripe_subscription_id"`
	CreatedAt            time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at" db:"updated_at"`
}

// Location resolves the business timezone, defaulting to UTC.
func (b Business) Location() (*time.Location, error) {
	if strings.TrimSpace(b.Timezone) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(b.Timezone)
}

// DayHours describes opening hours for one weekday. Times are "HH:MM".
type DayHours struct {
	Closed     bool   `json:"closed"`
	Open       string `json:"open,omitempty"`
	Close      string `json:"close,omitempty"`
	BreakStart string `json:"break_start,omitempty"`
	BreakEnd   string `json:"break_end,omitempty"`
}

// Validate checks ordering of open, close and the optional break.
func (d DayHours) Validate() error {
	if d.Closed {
		return nil
	}
	open, err := ParseClock(d.Open)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	closeAt, err := ParseClock(d.Close)
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if open >= closeAt {
		return fmt.Errorf("open %s must be before close %s", d.Open, d.Close)
	}
	if d.BreakStart == "" && d.BreakEnd == "" {
		return nil
	}
	bs, err := ParseClock(d.BreakStart)
	if err != nil {
		return fmt.Errorf("break_start: %w", err)
	}
	be, err := ParseClock(d.BreakEnd)
	if err != nil {
		return fmt.Errorf("break_end: %w", err)
	}
	if bs >= be || bs < open || be > closeAt {
		return fmt.Errorf("break %s-%s must fall inside %s-%s", d.BreakStart, d.BreakEnd, d.Open, d.Close)
	}
	return nil
}

// WeeklyHours is indexed by time.Weekday (Sunday = 0).
type WeeklyHours [7]DayHours

// Validate validates every day.
func (w WeeklyHours) Validate() error {
	for i, d := range w {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%s: %w", time.Weekday(i), err)
		}
	}
	return nil
}

// Value implements driver.Valuer.
func (w WeeklyHours) Value() (driver.Value, error) { return jsonb.Value(w) }

// Scan implements sql.Scanner.
func (w *WeeklyHours) Scan(src any) error { return jsonb.Scan(src, w) }

// DefaultHours opens Mon-Fri 09:00-18:00 and Saturday mornings.
func DefaultHours() WeeklyHours {
	var w WeeklyHours
	for day := time.Monday; day <= time.Friday; day++ {
		w[day] = DayHours{Open: "09:00", Close: "18:00"}
	}
	w[time.Saturday] = DayHours{Open: "09:00", Close: "13:00"}
	w[time.Sunday] = DayHours{Closed: true}
	return w
}

// SpecialDay overrides the weekly hours on one calendar date.
type SpecialDay struct {
	ID         string    `json:"id" db:"id"`
	BusinessID string    `json:"business_id" db:"business_id"`
	Date       string    `json:"date" db:"date"`
	Closed     bool      `json:"closed" db:"closed"`
	Open       string    `json:"open,omitempty" db:"open"`
	Close      string    `json:"close,omitempty" db:"close"`
	Note       string    `json:"note,omitempty" db:"note"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Hours returns the special day expressed as DayHours.
func (s SpecialDay) Hours() DayHours {
	return DayHours{Closed: s.Closed, Open: s.Open, Close: s.Close}
}

// DateLayout is the calendar date format used throughout the API.
const DateLayout = "2006-01-02"

// ParseClock converts "HH:MM" into minutes after midnight.
func ParseClock(v string) (int, error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid minute in %q", v)
	}
	return h*60 + m, nil
}
