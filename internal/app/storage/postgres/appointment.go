package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/gestly/gestly/internal/app/domain/appointment"
	"github.com/gestly/gestly/internal/app/domain/loyalty"
	"github.com/gestly/gestly/internal/app/storage"
)

const appointmentColumns = `id, business_id, customer_id, service_id, attendant_id, start_at, end_at, status,
	price_cents, discount_cents, points_redeemed, source, notes, cancel_reason, reminder_sent_at,
	completed_at, created_at, updated_at`

func (s *Store) CreateAppointment(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	a.ID = newID(a.ID)
	a.CreatedAt = now()
	a.UpdatedAt = a.CreatedAt

	err := s.insert(ctx, "appointment", `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES (:id, :business_id, :customer_id, :service_id, :attendant_id, :start_at, :end_at, :status,
			:price_cents, :discount_cents, :points_redeemed, :source, :notes, :cancel_reason, :reminder_sent_at,
			:completed_at, :created_at, :updated_at)
	`, a)
	if err != nil {
		return appointment.Appointment{}, err
	}
	return a, nil
}

func (s *Store) UpdateAppointment(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	a.UpdatedAt = now()
	err := s.update(ctx, "appointment "+a.ID, `
		UPDATE appointments
		SET attendant_id = :attendant_id, start_at = :start_at, end_at = :end_at, status = :status,
			price_cents = :price_cents, discount_cents = :discount_cents, points_redeemed = :points_redeemed,
			notes = :notes, cancel_reason = :cancel_reason, reminder_sent_at = :reminder_sent_at,
			completed_at = :completed_at, updated_at = :updated_at
		WHERE id = :id
	`, a)
	if err != nil {
		return appointment.Appointment{}, err
	}
	return s.GetAppointment(ctx, a.ID)
}

func (s *Store) GetAppointment(ctx context.Context, id string) (appointment.Appointment, error) {
	var a appointment.Appointment
	err := s.get(ctx, "appointment "+id, &a, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return a, err
}

func (s *Store) ListAppointments(ctx context.Context, businessID string, filter appointment.Filter) ([]appointment.Appointment, error) {
	where := []string{"business_id = $1"}
	args := []any{businessID}
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if !filter.From.IsZero() {
		add("start_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("start_at < $%d", filter.To)
	}
	if filter.AttendantID != "" {
		add("attendant_id = $%d", filter.AttendantID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}

	result := []appointment.Appointment{}
	err := s.list(ctx, "appointments", &result, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY start_at
	`, args...)
	return result, err
}

func (s *Store) ListAppointmentsByCustomer(ctx context.Context, customerID string) ([]appointment.Appointment, error) {
	result := []appointment.Appointment{}
	err := s.list(ctx, "appointments", &result, `
		SELECT `+appointmentColumns+` FROM appointments WHERE customer_id = $1 ORDER BY start_at
	`, customerID)
	return result, err
}

func (s *Store) ListPendingReminders(ctx context.Context, from, to time.Time) ([]appointment.Appointment, error) {
	result := []appointment.Appointment{}
	err := s.list(ctx, "appointments", &result, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE status IN ('scheduled', 'confirmed') AND reminder_sent_at IS NULL
			AND start_at >= $1 AND start_at < $2
		ORDER BY start_at
	`, from, to)
	return result, err
}

func (s *Store) MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE appointments
		SET reminder_sent_at = $2, updated_at = $3
		WHERE id = $1 AND reminder_sent_at IS NULL AND status IN ('scheduled', 'confirmed')
	`, id, at.UTC(), now())
	if err != nil {
		return false, mapErr("appointment "+id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, mapErr("appointment "+id, err)
	}
	return rows > 0, nil
}

// --- LoyaltyStore -----------------------------------------------------------

const loyaltyColumns = `id, business_id, customer_id, appointment_id, type, points, balance_after, note, created_at`

// checkViolation is the SQLSTATE raised by customers.loyalty_points >= 0.
const checkViolation = "23514"

func (s *Store) ApplyLoyaltyTransaction(ctx context.Context, entry loyalty.Transaction) (loyalty.Transaction, error) {
	entry.ID = newID(entry.ID)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now()
	}
	kind := "customer " + entry.CustomerID

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return loyalty.Transaction{}, fmt.Errorf("begin loyalty transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var balance int
	err = tx.GetContext(ctx, &balance, `
		UPDATE customers
		SET loyalty_points = loyalty_points + $1, updated_at = $2
		WHERE id = $3
		RETURNING loyalty_points
	`, entry.Points, now(), entry.CustomerID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == checkViolation {
			return loyalty.Transaction{}, fmt.Errorf("%s: %w", kind, storage.ErrNegativeBalance)
		}
		return loyalty.Transaction{}, mapErr(kind, err)
	}
	entry.BalanceAfter = balance

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO loyalty_transactions (`+loyaltyColumns+`)
		VALUES (:id, :business_id, :customer_id, :appointment_id, :type, :points, :balance_after, :note, :created_at)
	`, entry); err != nil {
		return loyalty.Transaction{}, mapErr("loyalty "+string(entry.Type), err)
	}
	if err := tx.Commit(); err != nil {
		return loyalty.Transaction{}, fmt.Errorf("commit loyalty transaction: %w", err)
	}
	return entry, nil
}

func (s *Store) ListLoyaltyTransactions(ctx context.Context, customerID string) ([]loyalty.Transaction, error) {
	result := []loyalty.Transaction{}
	err := s.list(ctx, "loyalty transactions", &result, `
		SELECT `+loyaltyColumns+` FROM loyalty_transactions WHERE customer_id = $1 ORDER BY created_at
	`, customerID)
	return result, err
}

func (s *Store) FindLoyaltyTransaction(ctx context.Context, appointmentID string, typ loyalty.TransactionType) (loyalty.Transaction, error) {
	var tx loyalty.Transaction
	err := s.get(ctx, "loyalty "+string(typ), &tx, `
		SELECT `+loyaltyColumns+` FROM loyalty_transactions
		WHERE appointment_id = $1 AND appointment_id <> '' AND type = $2
		LIMIT 1
	`, appointmentID, string(typ))
	return tx, err
}
