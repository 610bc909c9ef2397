package loyalty

import (
	"database/sql/driver"
	"time"

	"github.com/gestly/gestly/internal/app/domain/jsonb"
)

// TransactionType classifies a ledger movement.
type TransactionType string

const (
	TypeEarn   TransactionType = "earn"
	TypeRedeem TransactionType = "redeem"
	TypeRefund TransactionType = "refund"
	TypeAdjust TransactionType = "adjust"
)

// Settings is the per-business loyalty program configuration.
type Settings struct {
	Enabled bool `json:"enabled"`
	// PointsPerUnit is awarded per whole currency unit spent.
	PointsPerUnit int `json:"points_per_unit"`
	// RedemptionCents is the value of a single point.
	RedemptionCents int `json:"redemption_cents"`
	MinRedeemPoints int `json:"min_redeem_points"`
	// MaxRedeemPercent caps the share of a price payable with points.
	MaxRedeemPercent int `json:"max_redeem_percent"`
}

// DefaultSettings returns a disabled program with sane values.
func DefaultSettings() Settings {
	return Settings{
		PointsPerUnit:    1,
		RedemptionCents:  5,
		MinRedeemPoints:  100,
		MaxRedeemPercent: 50,
	}
}

// Value implements driver.Valuer.
func (s Settings) Value() (driver.Value, error) { return jsonb.Value(s) }

// Scan implements sql.Scanner.
func (s *Settings) Scan(src any) error { return jsonb.Scan(src, s) }

// Transaction is one entry in a customer's points ledger.
type Transaction struct {
	ID            string          `json:"id" db:"id"`
	BusinessID    string          `json:"business_id" db:"business_id"`
	CustomerID    string          `json:"customer_id" db:"customer_id"`
	AppointmentID string          `json:"appointment_id,omitempty" db:"appointment_id"`
	Type          TransactionType `json:"type" db:"type"`
	Points        int             `json:"points" db:"points"`
	BalanceAfter  int             `json:"balance_after" db:"balance_after"`
	Note          string          `json:"note,omitempty" db:"note"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Quote is the outcome of a redemption request before it is applied.
type Quote struct {
	Points        int `json:"points"`
	DiscountCents int `json:"discount_cents"`
	Balance       int `json:"balance"`
}
