package customer

import (
	"strings"
	"time"
	"unicode"
)

// Customer is a client of a business.
type Customer struct {
	ID            string     `json:"id" db:"id"`
	BusinessID    string     `json:"business_id" db:"business_id"`
	Name          string     `json:"name" db:"name"`
	Email         string     `json:"email,omitempty" db:"email"`
	Phone         string     `json:"phone,omitempty" db:"phone"`
	BirthDate     string     `json:"birth_date,omitempty" db:"birth_date"`
	Notes         string     `json:"notes,omitempty" db:"notes"`
	LoyaltyPoints int        `json:"loyalty_points" db:"loyalty_points"`
	LastVisitAt   *time.Time `json:"last_visit_at,omitempty" db:"last_visit_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Contact identifies a customer by any of its reachable handles.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// NormalizePhone keeps digits and a leading plus sign.
func NormalizePhone(v string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(v) {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Matches reports whether the customer matches a free-text search.
func (c Customer) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Name), q) ||
		strings.Contains(c.Email, q) ||
		strings.Contains(c.Phone, q)
}
