package attendant

import (
	"fmt"
	"strings"
	"time"

	"github.com/gestly/gestly/internal/app/domain/jsonb"
)

// Attendant is a staff member that performs services.
type Attendant struct {
	ID            string        `json:"id" db:"id"`
	BusinessID    string        `json:"business_id" db:"business_id"`
	Name          string        `json:"name" db:"name"`
	Email         string        `json:"email,omitempty" db:"email"`
	Phone         string        `json:"phone,omitempty" db:"phone"`
	CommissionBps int           `json:"commission_bps" db:"commission_bps"`
	ServiceIDs    jsonb.Strings `json:"service_ids" db:"service_ids"`
	Active        bool          `json:"active" db:"active"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// MaxBps is 100%.
const MaxBps = 10000

// Validate checks name and commission range.
func (a Attendant) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if a.CommissionBps < 0 || a.CommissionBps > MaxBps {
		return fmt.Errorf("commission_bps must be between 0 and %d", MaxBps)
	}
	return nil
}

// Performs reports whether the attendant can deliver the service.
// An empty list means every service.
func (a Attendant) Performs(serviceID string) bool {
	return len(a.ServiceIDs) == 0 || a.ServiceIDs.Contains(serviceID)
}

// Commission is what an attendant earned on one completed appointment.
type Commission struct {
	ID            string    `json:"id" db:"id"`
	BusinessID    string    `json:"business_id" db:"business_id"`
	AttendantID   string    `json:"attendant_id" db:"attendant_id"`
	AppointmentID string    `json:"appointment_id" db:"appointment_id"`
	BaseCents     int       `json:"base_cents" db:"base_cents"`
	Bps           int       `json:"bps" db:"bps"`
	AmountCents   int       `json:"amount_cents" db:"amount_cents"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// CommissionAmount floors base*bps/10000.
func CommissionAmount(baseCents, bps int) int {
	if baseCents <= 0 || bps <= 0 {
		return 0
	}
	return int(int64(baseCents) * int64(bps) / MaxBps)
}

// CommissionSummary aggregates commissions per attendant.
type CommissionSummary struct {
	AttendantID     string `json:"attendant_id"`
	AttendantName   string `json:"attendant_name"`
	Appointments    int    `json:"appointments"`
	GrossCents      int    `json:"gross_cents"`
	CommissionCents int    `json:"commission_cents"`
}
