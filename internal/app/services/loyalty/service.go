// Package loyalty accrues and redeems customer points.
package loyalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/gestly/gestly/internal/app/domain/appointment"
	"github.com/gestly/gestly/internal/app/domain/business"
	"github.com/gestly/gestly/internal/app/domain/customer"
	domain "github.com/gestly/gestly/internal/app/domain/loyalty"
	"github.com/gestly/gestly/internal/app/metrics"
	"github.com/gestly/gestly/internal/app/services"
	"github.com/gestly/gestly/internal/app/storage"
	"github.com/gestly/gestly/pkg/logger"
)

// BusinessReader exposes the loyalty settings of a business.
type BusinessReader interface {
	Get(ctx context.Context, id string) (business.Business, error)
}

// Service owns the points ledger. The store applies each entry and the
// cached customer balance in one atomic step.
type Service struct {
	businesses   BusinessReader
	customers    storage.CustomerStore
	ledger       storage.LoyaltyStore
	appointments storage.AppointmentStore
	log          *logger.Logger
}

// New constructs a loyalty service.
func New(businesses BusinessReader, customers storage.CustomerStore, ledger storage.LoyaltyStore, appointments storage.AppointmentStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("loyalty")
	}
	return &Service{
		businesses:   businesses,
		customers:    customers,
		ledger:       ledger,
		appointments: appointments,
		log:          log,
	}
}

// EarnedPoints is floor(base / 100) * pointsPerUnit.
func EarnedPoints(baseCents int, settings domain.Settings) int {
	if !settings.Enabled || baseCents <= 0 || settings.PointsPerUnit <= 0 {
		return 0
	}
	return (baseCents / 100) * settings.PointsPerUnit
}

// QuoteFor validates a redemption request against the settings and caps it
// to the share of the price payable with points.
func QuoteFor(settings domain.Settings, balance, priceCents, requested int) (domain.Quote, error) {
	if !settings.Enabled {
		return domain.Quote{}, services.Invalid("loyalty program is disabled")
	}
	if requested <= 0 {
		return domain.Quote{}, services.Invalid("points must be positive")
	}
	if requested < settings.MinRedeemPoints {
		return domain.Quote{}, services.Invalid("minimum redemption is %d points", settings.MinRedeemPoints)
	}
	if requested > balance {
		return domain.Quote{}, services.Invalid("insufficient balance: %d available", balance)
	}
	if settings.RedemptionCents <= 0 {
		return domain.Quote{}, services.Invalid("redemption value is not configured")
	}
	maxCents := priceCents * settings.MaxRedeemPercent / 100
	points := requested
	if capPoints := maxCents / settings.RedemptionCents; points > capPoints {
		points = capPoints
	}
	if points <= 0 {
		return domain.Quote{}, services.Invalid("price too low to redeem points")
	}
	return domain.Quote{
		Points:        points,
		DiscountCents: points * settings.RedemptionCents,
		Balance:       balance - points,
	}, nil
}

func (s *Service) settings(ctx context.Context, businessID string) (domain.Settings, error) {
	b, err := s.businesses.Get(ctx, businessID)
	if err != nil {
		return domain.Settings{}, err
	}
	return b.Loyalty, nil
}

func (s *Service) customer(ctx context.Context, businessID, customerID string) (customer.Customer, error) {
	c, err := s.customers.GetCustomer(ctx, customerID)
	if err != nil {
		return customer.Customer{}, err
	}
	if c.BusinessID != businessID {
		return customer.Customer{}, services.NotFound("customer", customerID)
	}
	return c, nil
}

// post applies a ledger entry. ErrConflict from the store means the entry
// for this appointment already exists.
func (s *Service) post(ctx context.Context, c customer.Customer, tx domain.Transaction) (domain.Transaction, error) {
	tx.BusinessID = c.BusinessID
	tx.CustomerID = c.ID
	created, err := s.ledger.ApplyLoyaltyTransaction(ctx, tx)
	switch {
	case errors.Is(err, storage.ErrNegativeBalance):
		return domain.Transaction{}, services.Invalid("balance cannot go below zero")
	case err != nil:
		return domain.Transaction{}, fmt.Errorf("write ledger: %w", err)
	}
	metrics.RecordLoyaltyPoints(string(tx.Type), tx.Points)
	s.log.WithField("customer_id", c.ID).
		WithField("type", tx.Type).
		WithField("points", tx.Points).
		WithField("balance", created.BalanceAfter).
		Info("loyalty ledger updated")
	return created, nil
}

func (s *Service) exists(ctx context.Context, appointmentID string, typ domain.TransactionType) (bool, error) {
	_, err := s.ledger.FindLoyaltyTransaction(ctx, appointmentID, typ)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Accrue credits points for a completed appointment. It returns nil when
// nothing was earned or the appointment was already credited.
func (s *Service) Accrue(ctx context.Context, appt appointment.Appointment) (*domain.Transaction, error) {
	settings, err := s.settings(ctx, appt.BusinessID)
	if err != nil {
		return nil, err
	}
	points := EarnedPoints(appt.BaseCents(), settings)
	if points == 0 {
		return nil, nil
	}

	done, err := s.exists(ctx, appt.ID, domain.TypeEarn)
	if err != nil || done {
		return nil, err
	}
	c, err := s.customer(ctx, appt.BusinessID, appt.CustomerID)
	if err != nil {
		return nil, err
	}
	tx, err := s.post(ctx, c, domain.Transaction{AppointmentID: appt.ID, Type: domain.TypeEarn, Points: points})
	if errors.Is(err, storage.ErrConflict) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// Quote previews a redemption for a customer without applying it.
func (s *Service) Quote(ctx context.Context, businessID, customerID string, priceCents, requested int) (domain.Quote, error) {
	settings, err := s.settings(ctx, businessID)
	if err != nil {
		return domain.Quote{}, err
	}
	c, err := s.customer(ctx, businessID, customerID)
	if err != nil {
		return domain.Quote{}, err
	}
	return QuoteFor(settings, c.LoyaltyPoints, priceCents, requested)
}

// Redeem debits points against an appointment and stores the discount on it.
func (s *Service) Redeem(ctx context.Context, appt appointment.Appointment, requested int) (appointment.Appointment, error) {
	if appt.Status.Terminal() {
		return appointment.Appointment{}, services.Invalid("appointment is %s", appt.Status)
	}
	if appt.PointsRedeemed > 0 {
		return appointment.Appointment{}, fmt.Errorf("points already redeemed on this appointment: %w", services.ErrConflict)
	}
	settings, err := s.settings(ctx, appt.BusinessID)
	if err != nil {
		return appointment.Appointment{}, err
	}

	c, err := s.customer(ctx, appt.BusinessID, appt.CustomerID)
	if err != nil {
		return appointment.Appointment{}, err
	}
	quote, err := QuoteFor(settings, c.LoyaltyPoints, appt.PriceCents, requested)
	if err != nil {
		return appointment.Appointment{}, err
	}
	_, err = s.post(ctx, c, domain.Transaction{AppointmentID: appt.ID, Type: domain.TypeRedeem, Points: -quote.Points})
	if errors.Is(err, storage.ErrConflict) {
		return appointment.Appointment{}, fmt.Errorf("points already redeemed on this appointment: %w", services.ErrConflict)
	}
	if err != nil {
		return appointment.Appointment{}, err
	}
	appt.PointsRedeemed = quote.Points
	appt.DiscountCents = quote.DiscountCents
	return s.appointments.UpdateAppointment(ctx, appt)
}

// Refund credits back the points redeemed on an appointment, once.
func (s *Service) Refund(ctx context.Context, appt appointment.Appointment) (*domain.Transaction, error) {
	if appt.PointsRedeemed <= 0 {
		return nil, nil
	}

	done, err := s.exists(ctx, appt.ID, domain.TypeRefund)
	if err != nil || done {
		return nil, err
	}
	c, err := s.customer(ctx, appt.BusinessID, appt.CustomerID)
	if err != nil {
		return nil, err
	}
	tx, err := s.post(ctx, c, domain.Transaction{
		AppointmentID: appt.ID,
		Type:          domain.TypeRefund,
		Points:        appt.PointsRedeemed,
		Note:          "appointment cancelled",
	})
	if errors.Is(err, storage.ErrConflict) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// Adjust applies a manual correction. The balance never drops below zero.
func (s *Service) Adjust(ctx context.Context, businessID, customerID string, delta int, note string) (domain.Transaction, error) {
	if delta == 0 {
		return domain.Transaction{}, services.Invalid("delta must not be zero")
	}

	c, err := s.customer(ctx, businessID, customerID)
	if err != nil {
		return domain.Transaction{}, err
	}
	return s.post(ctx, c, domain.Transaction{Type: domain.TypeAdjust, Points: delta, Note: note})
}

// History lists a customer's ledger, oldest first.
func (s *Service) History(ctx context.Context, businessID, customerID string) ([]domain.Transaction, error) {
	if _, err := s.customer(ctx, businessID, customerID); err != nil {
		return nil, err
	}
	return s.ledger.ListLoyaltyTransactions(ctx, customerID)
}
