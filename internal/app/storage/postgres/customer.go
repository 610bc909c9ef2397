package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/gestly/gestly/internal/app/domain/catalog"
	"github.com/gestly/gestly/internal/app/domain/customer"
)

const customerColumns = `id, business_id, name, email, phone, birth_date, notes, loyalty_points,
	last_visit_at, created_at, updated_at`

func (s *Store) CreateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	c.ID = newID(c.ID)
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt

	err := s.insert(ctx, "customer", `
		INSERT INTO customers (`+customerColumns+`)
		VALUES (:id, :business_id, :name, :email, :phone, :birth_date, :notes, :loyalty_points,
			:last_visit_at, :created_at, :updated_at)
	`, c)
	if err != nil {
		return customer.Customer{}, err
	}
	return c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	c.UpdatedAt = now()
	err := s.update(ctx, "customer "+c.ID, `
		UPDATE customers
		SET name = :name, email = :email, phone = :phone, birth_date = :birth_date, notes = :notes,
			updated_at = :updated_at
		WHERE id = :id
	`, c)
	if err != nil {
		return customer.Customer{}, err
	}
	return s.GetCustomer(ctx, c.ID)
}

func (s *Store) TouchCustomerVisit(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET last_visit_at = $2, updated_at = $3
		WHERE id = $1 AND (last_visit_at IS NULL OR last_visit_at < $2)
	`, id, at.UTC(), now())
	if err != nil {
		return mapErr("customer "+id, err)
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		return nil
	}
	// No row moved: either the customer is gone or the stored visit is newer.
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id); err != nil {
		return mapErr("customer "+id, err)
	}
	if !exists {
		return mapErr("customer "+id, sql.ErrNoRows)
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (customer.Customer, error) {
	var c customer.Customer
	err := s.get(ctx, "customer "+id, &c, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	return c, err
}

func (s *Store) ListCustomers(ctx context.Context, businessID string) ([]customer.Customer, error) {
	result := []customer.Customer{}
	err := s.list(ctx, "customers", &result, `
		SELECT `+customerColumns+` FROM customers WHERE business_id = $1 ORDER BY name
	`, businessID)
	return result, err
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	return s.exec(ctx, "customer "+id, `DELETE FROM customers WHERE id = $1`, id)
}

func (s *Store) FindCustomerByContact(ctx context.Context, businessID, email, phone string) (customer.Customer, error) {
	var c customer.Customer
	err := s.get(ctx, "customer contact", &c, `
		SELECT `+customerColumns+` FROM customers
		WHERE business_id = $1 AND ((email <> '' AND email = $2) OR (phone <> '' AND phone = $3))
		ORDER BY created_at
		LIMIT 1
	`, businessID, email, phone)
	return c, err
}

// --- CatalogStore -----------------------------------------------------------

const serviceColumns = `id, business_id, name, description, duration, price_cents, active, created_at, updated_at`

func (s *Store) CreateService(ctx context.Context, svc catalog.Service) (catalog.Service, error) {
	svc.ID = newID(svc.ID)
	svc.CreatedAt = now()
	svc.UpdatedAt = svc.CreatedAt

	err := s.insert(ctx, "service", `
		INSERT INTO services (`+serviceColumns+`)
		VALUES (:id, :business_id, :name, :description, :duration, :price_cents, :active, :created_at, :updated_at)
	`, svc)
	if err != nil {
		return catalog.Service{}, err
	}
	return svc, nil
}

func (s *Store) UpdateService(ctx context.Context, svc catalog.Service) (catalog.Service, error) {
	svc.UpdatedAt = now()
	err := s.update(ctx, "service "+svc.ID, `
		UPDATE services
		SET name = :name, description = :description, duration = :duration, price_cents = :price_cents,
			active = :active, updated_at = :updated_at
		WHERE id = :id
	`, svc)
	if err != nil {
		return catalog.Service{}, err
	}
	return s.GetService(ctx, svc.ID)
}

func (s *Store) GetService(ctx context.Context, id string) (catalog.Service, error) {
	var svc catalog.Service
	err := s.get(ctx, "service "+id, &svc, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id)
	return svc, err
}

func (s *Store) ListServices(ctx context.Context, businessID string) ([]catalog.Service, error) {
	result := []catalog.Service{}
	err := s.list(ctx, "services", &result, `
		SELECT `+serviceColumns+` FROM services WHERE business_id = $1 ORDER BY name
	`, businessID)
	return result, err
}
