package storage

import (
	"context"
	"errors"
	"time"

	"github.com/gestly/gestly/internal/app/domain/apikey"
	"github.com/gestly/gestly/internal/app/domain/appointment"
	"github.com/gestly/gestly/internal/app/domain/attendant"
	"github.com/gestly/gestly/internal/app/domain/business"
	"github.com/gestly/gestly/internal/app/domain/campaign"
	"github.com/gestly/gestly/internal/app/domain/catalog"
	"github.com/gestly/gestly/internal/app/domain/customer"
	"github.com/gestly/gestly/internal/app/domain/integration"
	"github.com/gestly/gestly/internal/app/domain/loyalty"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a uniqueness constraint is violated or a
	// guarded write finds the row in an unexpected state.
	ErrConflict = errors.New("storage: conflict")
	// ErrNegativeBalance is returned when a ledger entry would take a
	// loyalty balance below zero.
	ErrNegativeBalance = errors.New("storage: balance below zero")
)

// BusinessStore persists tenants.
type BusinessStore interface {
	CreateBusiness(ctx context.Context, b business.Business) (business.Business, error)
	UpdateBusiness(ctx context.Context, b business.Business) (business.Business, error)
	GetBusiness(ctx context.Context, id string) (business.Business, error)
	GetBusinessByStripeCustomer(ctx context.Context, stripeCustomerID string) (business.Business, error)
	ListBusinessesByOwner(ctx context.Context, ownerID string) ([]business.Business, error)
}

// SpecialDayStore persists per-date overrides. Dates are YYYY-MM-DD and
// ranges are inclusive.
type SpecialDayStore interface {
	UpsertSpecialDay(ctx context.Context, day business.SpecialDay) (business.SpecialDay, error)
	DeleteSpecialDay(ctx context.Context, businessID, date string) error
	ListSpecialDays(ctx context.Context, businessID, from, to string) ([]business.SpecialDay, error)
}

// CustomerStore persists customers.
type CustomerStore interface {
	CreateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error)
	// UpdateCustomer writes contact fields only. The loyalty balance moves
	// through ApplyLoyaltyTransaction and the last visit through
	// TouchCustomerVisit.
	UpdateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error)
	// TouchCustomerVisit moves LastVisitAt forward to at. Older values are
	// ignored.
	TouchCustomerVisit(ctx context.Context, id string, at time.Time) error
	GetCustomer(ctx context.Context, id string) (customer.Customer, error)
	ListCustomers(ctx context.Context, businessID string) ([]customer.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
	// FindCustomerByContact matches on email or phone (either may be empty).
	FindCustomerByContact(ctx context.Context, businessID, email, phone string) (customer.Customer, error)
}

// CatalogStore persists the services a business sells.
type CatalogStore interface {
	CreateService(ctx context.Context, svc catalog.Service) (catalog.Service, error)
	UpdateService(ctx context.Context, svc catalog.Service) (catalog.Service, error)
	GetService(ctx context.Context, id string) (catalog.Service, error)
	ListServices(ctx context.Context, businessID string) ([]catalog.Service, error)
}

// AttendantStore persists staff and their commissions.
type AttendantStore interface {
	CreateAttendant(ctx context.Context, a attendant.Attendant) (attendant.Attendant, error)
	UpdateAttendant(ctx context.Context, a attendant.Attendant) (attendant.Attendant, error)
	GetAttendant(ctx context.Context, id string) (attendant.Attendant, error)
	ListAttendants(ctx context.Context, businessID string) ([]attendant.Attendant, error)

	// CreateCommission returns ErrConflict when the appointment already has one.
	CreateCommission(ctx context.Context, c attendant.Commission) (attendant.Commission, error)
	ListCommissions(ctx context.Context, businessID string, from, to time.Time) ([]attendant.Commission, error)
}

// AppointmentStore persists bookings.
type AppointmentStore interface {
	CreateAppointment(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error)
	UpdateAppointment(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error)
	GetAppointment(ctx context.Context, id string) (appointment.Appointment, error)
	ListAppointments(ctx context.Context, businessID string, filter appointment.Filter) ([]appointment.Appointment, error)
	ListAppointmentsByCustomer(ctx context.Context, customerID string) ([]appointment.Appointment, error)
	// ListPendingReminders returns blocking appointments of any business
	// starting in [from, to) with no reminder sent.
	ListPendingReminders(ctx context.Context, from, to time.Time) ([]appointment.Appointment, error)
	// MarkReminderSent stamps the reminder time when the appointment is still
	// scheduled or confirmed and unstamped. It reports whether a row changed.
	MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error)
}

// LoyaltyStore persists the points ledger.
type LoyaltyStore interface {
	// ApplyLoyaltyTransaction adds tx.Points to the customer's balance and
	// appends the ledger row in one atomic step, filling BalanceAfter. It
	// returns ErrNegativeBalance when the balance would drop below zero and
	// ErrConflict when a non-adjust entry already exists for the appointment.
	ApplyLoyaltyTransaction(ctx context.Context, tx loyalty.Transaction) (loyalty.Transaction, error)
	ListLoyaltyTransactions(ctx context.Context, customerID string) ([]loyalty.Transaction, error)
	FindLoyaltyTransaction(ctx context.Context, appointmentID string, typ loyalty.TransactionType) (loyalty.Transaction, error)
}

// CampaignStore persists marketing campaigns.
type CampaignStore interface {
	CreateCampaign(ctx context.Context, c campaign.Campaign) (campaign.Campaign, error)
	// TransitionCampaign writes c only when the stored status is one of from
	// and returns ErrConflict otherwise.
	TransitionCampaign(ctx context.Context, c campaign.Campaign, from ...campaign.Status) (campaign.Campaign, error)
	GetCampaign(ctx context.Context, id string) (campaign.Campaign, error)
	ListCampaigns(ctx context.Context, businessID string) ([]campaign.Campaign, error)
	ListDueCampaigns(ctx context.Context, now time.Time) ([]campaign.Campaign, error)
}

// IntegrationStore persists third-party connections.
type IntegrationStore interface {
	CreateIntegration(ctx context.Context, i integration.Integration) (integration.Integration, error)
	UpdateIntegration(ctx context.Context, i integration.Integration) (integration.Integration, error)
	GetIntegration(ctx context.Context, id string) (integration.Integration, error)
	ListIntegrations(ctx context.Context, businessID string) ([]integration.Integration, error)
	DeleteIntegration(ctx context.Context, id string) error
}

// APIKeyStore persists hashed API keys.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, k apikey.APIKey) (apikey.APIKey, error)
	UpdateAPIKey(ctx context.Context, k apikey.APIKey) (apikey.APIKey, error)
	GetAPIKey(ctx context.Context, id string) (apikey.APIKey, error)
	GetAPIKeyByHash(ctx context.Context, hash string) (apikey.APIKey, error)
	ListAPIKeys(ctx context.Context, businessID string) ([]apikey.APIKey, error)
}

// Stores groups every store so backends can be passed around as one value.
type Stores struct {
	Businesses   BusinessStore
	SpecialDays  SpecialDayStore
	Customers    CustomerStore
	Catalog      CatalogStore
	Attendants   AttendantStore
	Appointments AppointmentStore
	Loyalty      LoyaltyStore
	Campaigns    CampaignStore
	Integrations IntegrationStore
	APIKeys      APIKeyStore
}

// All is implemented by backends that provide every store.
type All interface {
	BusinessStore
	SpecialDayStore
	CustomerStore
	CatalogStore
	AttendantStore
	AppointmentStore
	LoyaltyStore
	CampaignStore
	IntegrationStore
	APIKeyStore
}

// FromAll fills Stores from a single backend.
func FromAll(b All) Stores {
	return Stores{
		Businesses:   b,
		SpecialDays:  b,
		Customers:    b,
		Catalog:      b,
		Attendants:   b,
		Appointments: b,
		Loyalty:      b,
		Campaigns:    b,
		Integrations: b,
		APIKeys:      b,
	}
}
