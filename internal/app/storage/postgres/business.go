package postgres

import (
	"context"

	"github.com/gestly/gestly/internal/app/domain/business"
)

const businessColumns = `id, owner_id, name, slug, timezone, phone, email, hours, slot_interval,
	min_notice, loyalty, plan, subscription_status, stripe_customer_id, stripe_subscription_id,
	created_at, updated_at`

func (s *Store) CreateBusiness(ctx context.Context, b business.Business) (business.Business, error) {
	b.ID = newID(b.ID)
	b.CreatedAt = now()
	b.UpdatedAt = b.CreatedAt

	err := s.insert(ctx, "business", `
		INSERT INTO businesses (`+businessColumns+`)
		VALUES (:id, :owner_id, :name, :slug, :timezone, :phone, :email, :hours, :slot_interval,
			:min_notice, :loyalty, :plan, :subscription_status, :stripe_customer_id, :stripe_subscription_id,
			:created_at, :updated_at)
	`, b)
	if err != nil {
		return business.Business{}, err
	}
	return b, nil
}

func (s *Store) UpdateBusiness(ctx context.Context, b business.Business) (business.Business, error) {
	b.UpdatedAt = now()
	err := s.update(ctx, "business "+b.ID, `
		UPDATE businesses
		SET name = :name, slug = :slug, timezone = :timezone, phone = :phone, email = :email,
			hours = :hours, slot_interval = :slot_interval, min_notice = :min_notice, loyalty = :loyalty,
			plan = :plan, subscription_status = :subscription_status,
			stripe_customer_id = :stripe_customer_id, stripe_subscription_id = :stripe_subscription_id,
			updated_at = :updated_at
		WHERE id = :id
	`, b)
	if err != nil {
		return business.Business{}, err
	}
	return s.GetBusiness(ctx, b.ID)
}

func (s *Store) GetBusiness(ctx context.Context, id string) (business.Business, error) {
	var b business.Business
	err := s.get(ctx, "business "+id, &b, `SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id)
	return b, err
}

func (s *Store) GetBusinessByStripeCustomer(ctx context.Context, stripeCustomerID string) (business.Business, error) {
	var b business.Business
	err := s.get(ctx, "stripe customer "+stripeCustomerID, &b, `
		SELECT `+businessColumns+` FROM businesses
		WHERE stripe_customer_id = $1 AND stripe_customer_id <> ''
		LIMIT 1
	`, stripeCustomerID)
	return b, err
}

func (s *Store) ListBusinessesByOwner(ctx context.Context, ownerID string) ([]business.Business, error) {
	result := []business.Business{}
	err := s.list(ctx, "businesses", &result, `
		SELECT `+businessColumns+` FROM businesses WHERE owner_id = $1 ORDER BY created_at
	`, ownerID)
	return result, err
}

// --- SpecialDayStore --------------------------------------------------------

const specialDayColumns = `id, business_id, date, closed, open, close, note, created_at, updated_at`

func (s *Store) UpsertSpecialDay(ctx context.Context, day business.SpecialDay) (business.SpecialDay, error) {
	day.ID = newID(day.ID)
	day.CreatedAt = now()
	day.UpdatedAt = day.CreatedAt

	rows, err := s.db.NamedQueryContext(ctx, `
		INSERT INTO special_days (`+specialDayColumns+`)
		VALUES (:id, :business_id, :date, :closed, :open, :close, :note, :created_at, :updated_at)
		ON CONFLICT (business_id, date) DO UPDATE
		SET closed = EXCLUDED.closed, open = EXCLUDED.open, close = EXCLUDED.close,
			note = EXCLUDED.note, updated_at = EXCLUDED.updated_at
		RETURNING `+specialDayColumns, day)
	if err != nil {
		return business.SpecialDay{}, mapErr("special day", err)
	}
	defer rows.Close()

	var out business.SpecialDay
	if rows.Next() {
		if err := rows.StructScan(&out); err != nil {
			return business.SpecialDay{}, err
		}
	}
	return out, rows.Err()
}

func (s *Store) DeleteSpecialDay(ctx context.Context, businessID, date string) error {
	return s.exec(ctx, "special day "+date, `DELETE FROM special_days WHERE business_id = $1 AND date = $2`, businessID, date)
}

func (s *Store) ListSpecialDays(ctx context.Context, businessID, from, to string) ([]business.SpecialDay, error) {
	if from == "" {
		from = "0000-01-01"
	}
	if to == "" {
		to = "9999-12-31"
	}
	result := []business.SpecialDay{}
	err := s.list(ctx, "special days", &result, `
		SELECT `+specialDayColumns+` FROM special_days
		WHERE business_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date
	`, businessID, from, to)
	return result, err
}
