package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Service is an item a business sells.
type Service struct {
	ID          string    `json:"id" db:"id"`
	BusinessID  string    `json:"business_id" db:"business_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	Duration    int       `json:"duration" db:"duration"`
	PriceCents  int       `json:"price_cents" db:"price_cents"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

const (
	MinDuration = 5
	MaxDuration = 720
)

// Validate checks name, duration bounds and price.
func (s Service) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if s.Duration < MinDuration || s.Duration > MaxDuration || s.Duration%5 != 0 {
		return fmt.Errorf("duration must be a multiple of 5 between %d and %d", MinDuration, MaxDuration)
	}
	if s.PriceCents < 0 {
		return fmt.Errorf("price_cents must be >= 0")
	}
	return nil
}

// Length returns the duration as a time.Duration.
func (s Service) Length() time.Duration {
	return time.Duration(s.Duration) * time.Minute
}
