package postgres

import (
	"context"
	"time"

	"github.com/gestly/gestly/internal/app/domain/attendant"
)

const attendantColumns = `id, business_id, name, email, phone, commission_bps, service_ids, active, created_at, updated_at`

func (s *Store) CreateAttendant(ctx context.Context, a attendant.Attendant) (attendant.Attendant, error) {
	a.ID = newID(a.ID)
	a.CreatedAt = now()
	a.UpdatedAt = a.CreatedAt

	err := s.insert(ctx, "attendant", `
		INSERT INTO attendants (`+attendantColumns+`)
		VALUES (:id, :business_id, :name, :email, :phone, :commission_bps, :service_ids, :active, :created_at, :updated_at)
	`, a)
	if err != nil {
		return attendant.Attendant{}, err
	}
	return a, nil
}

func (s *Store) UpdateAttendant(ctx context.Context, a attendant.Attendant) (attendant.Attendant, error) {
	a.UpdatedAt = now()
	err := s.update(ctx, "attendant "+a.ID, `
		UPDATE attendants
		SET name = :name, email = :email, phone = :phone, commission_bps = :commission_bps,
			service_ids = :service_ids, active = :active, updated_at = :updated_at
		WHERE id = :id
	`, a)
	if err != nil {
		return attendant.Attendant{}, err
	}
	return s.GetAttendant(ctx, a.ID)
}

func (s *Store) GetAttendant(ctx context.Context, id string) (attendant.Attendant, error) {
	var a attendant.Attendant
	err := s.get(ctx, "attendant "+id, &a, `SELECT `+attendantColumns+` FROM attendants WHERE id = $1`, id)
	return a, err
}

func (s *Store) ListAttendants(ctx context.Context, businessID string) ([]attendant.Attendant, error) {
	result := []attendant.Attendant{}
	err := s.list(ctx, "attendants", &result, `
		SELECT `+attendantColumns+` FROM attendants WHERE business_id = $1 ORDER BY name, id
	`, businessID)
	return result, err
}

const commissionColumns = `id, business_id, attendant_id, appointment_id, base_cents, bps, amount_cents, created_at`

func (s *Store) CreateCommission(ctx context.Context, c attendant.Commission) (attendant.Commission, error) {
	c.ID = newID(c.ID)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	err := s.insert(ctx, "commission", `
		INSERT INTO commissions (`+commissionColumns+`)
		VALUES (:id, :business_id, :attendant_id, :appointment_id, :base_cents, :bps, :amount_cents, :created_at)
	`, c)
	if err != nil {
		return attendant.Commission{}, err
	}
	return c, nil
}

func (s *Store) ListCommissions(ctx context.Context, businessID string, from, to time.Time) ([]attendant.Commission, error) {
	if to.IsZero() {
		to = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	result := []attendant.Commission{}
	err := s.list(ctx, "commissions", &result, `
		SELECT `+commissionColumns+` FROM commissions
		WHERE business_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at
	`, businessID, from, to)
	return result, err
}
