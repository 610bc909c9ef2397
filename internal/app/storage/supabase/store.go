package supabase

import (
	"context"
	"errors"
	"fmt"
	"strings"
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
	"github.com/gestly/gestly/internal/app/storage"
	"github.com/gestly/gestly/internal/supabase"
)

// Store implements every storage interface through PostgREST.
type Store struct {
	businesses   table[business.Business]
	specialDays  table[business.SpecialDay]
	customers    table[customer.Customer]
	services     table[catalog.Service]
	attendants   table[attendant.Attendant]
	commissions  table[attendant.Commission]
	appointments table[appointment.Appointment]
	loyalty      table[loyalty.Transaction]
	campaigns    table[campaign.Campaign]
	integrations table[integration.Integration]
	apiKeys      table[apiKeyRow]
}

var _ storage.All = (*Store)(nil)

// apiKeyRow exposes the hash, which the domain type hides from JSON.
type apiKeyRow struct {
	apikey.APIKey
	Hash string `json:"hash" db:"-"`
}

func (r apiKeyRow) key() apikey.APIKey {
	k := r.APIKey
	k.Hash = r.Hash
	return k
}

// New creates a Store over the given client.
func New(client *supabase.Client) *Store {
	return &Store{
		businesses:   table[business.Business]{client, "businesses", "business"},
		specialDays:  table[business.SpecialDay]{client, "special_days", "special day"},
		customers:    table[customer.Customer]{client, "customers", "customer"},
		services:     table[catalog.Service]{client, "services", "service"},
		attendants:   table[attendant.Attendant]{client, "attendants", "attendant"},
		commissions:  table[attendant.Commission]{client, "commissions", "commission"},
		appointments: table[appointment.Appointment]{client, "appointments", "appointment"},
		loyalty:      table[loyalty.Transaction]{client, "loyalty_transactions", "loyalty transaction"},
		campaigns:    table[campaign.Campaign]{client, "campaigns", "campaign"},
		integrations: table[integration.Integration]{client, "integrations", "integration"},
		apiKeys:      table[apiKeyRow]{client, "api_keys", "api key"},
	}
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	*created, *updated = now, now
}

// --- BusinessStore ----------------------------------------------------------

func (s *Store) CreateBusiness(ctx context.Context, b business.Business) (business.Business, error) {
	b.ID = newID(b.ID)
	stamp(&b.CreatedAt, &b.UpdatedAt)
	return s.businesses.insert(ctx, b)
}

func (s *Store) UpdateBusiness(ctx context.Context, b business.Business) (business.Business, error) {
	b.UpdatedAt = time.Now().UTC()
	return s.businesses.update(ctx, b.ID, b, "owner_id")
}

func (s *Store) GetBusiness(ctx context.Context, id string) (business.Business, error) {
	return s.businesses.get(ctx, id)
}

func (s *Store) GetBusinessByStripeCustomer(ctx context.Context, stripeCustomerID string) (business.Business, error) {
	if stripeCustomerID == "" {
		return business.Business{}, fmt.Errorf("stripe customer: %w", storage.ErrNotFound)
	}
	return s.businesses.one(ctx, s.businesses.from().Eq("stripe_customer_id", stripeCustomerID), stripeCustomerID)
}

func (s *Store) ListBusinessesByOwner(ctx context.Context, ownerID string) ([]business.Business, error) {
	return s.businesses.list(ctx, s.businesses.from().Eq("owner_id", ownerID).Order("created_at", true))
}

// --- SpecialDayStore --------------------------------------------------------

func (s *Store) UpsertSpecialDay(ctx context.Context, day business.SpecialDay) (business.SpecialDay, error) {
	existing, err := s.specialDays.one(ctx, s.specialDays.from().Eq("business_id", day.BusinessID).Eq("date", day.Date), day.Date)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return business.SpecialDay{}, err
	}
	if err == nil {
		day.ID = existing.ID
		day.CreatedAt = existing.CreatedAt
		day.UpdatedAt = time.Now().UTC()
		return s.specialDays.update(ctx, day.ID, day)
	}
	day.ID = newID(day.ID)
	stamp(&day.CreatedAt, &day.UpdatedAt)
	return s.specialDays.insert(ctx, day)
}

func (s *Store) DeleteSpecialDay(ctx context.Context, businessID, date string) error {
	return s.specialDays.remove(ctx, s.client().From("special_days").Eq("business_id", businessID).Eq("date", date), date)
}

func (s *Store) ListSpecialDays(ctx context.Context, businessID, from, to string) ([]business.SpecialDay, error) {
	q := s.specialDays.from().Eq("business_id", businessID).Order("date", true)
	if from != "" {
		q = q.Gte("date", from)
	}
	if to != "" {
		q = q.Lte("date", to)
	}
	return s.specialDays.list(ctx, q)
}

func (s *Store) client() *supabase.Client { return s.businesses.client }

// --- CustomerStore ----------------------------------------------------------

func (s *Store) CreateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	c.ID = newID(c.ID)
	stamp(&c.CreatedAt, &c.UpdatedAt)
	return s.customers.insert(ctx, c)
}

func (s *Store) UpdateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	c.UpdatedAt = time.Now().UTC()
	return s.customers.update(ctx, c.ID, c, "business_id", "loyalty_points", "last_visit_at")
}

func (s *Store) TouchCustomerVisit(ctx context.Context, id string, at time.Time) error {
	patch := map[string]any{"last_visit_at": ts(at), "updated_at": ts(time.Now())}
	q := s.client().From("customers").
		Eq("id", id).
		Or(fmt.Sprintf("last_visit_at.is.null,last_visit_at.lt.%q", ts(at)))
	var rows []customer.Customer
	if err := q.Update(ctx, patch, &rows); err != nil {
		return mapErr("customer", err)
	}
	if len(rows) > 0 {
		return nil
	}
	// Nothing moved: the customer is gone or already has a later visit.
	_, err := s.customers.get(ctx, id)
	return err
}

func (s *Store) GetCustomer(ctx context.Context, id string) (customer.Customer, error) {
	return s.customers.get(ctx, id)
}

func (s *Store) ListCustomers(ctx context.Context, businessID string) ([]customer.Customer, error) {
	return s.customers.list(ctx, s.customers.from().Eq("business_id", businessID).Order("name", true))
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	return s.customers.remove(ctx, s.client().From("customers").Eq("id", id), id)
}

func (s *Store) FindCustomerByContact(ctx context.Context, businessID, email, phone string) (customer.Customer, error) {
	var terms []string
	if email != "" {
		terms = append(terms, fmt.Sprintf("email.eq.%q", email))
	}
	if phone != "" {
		terms = append(terms, fmt.Sprintf("phone.eq.%q", phone))
	}
	if len(terms) == 0 {
		return customer.Customer{}, fmt.Errorf("customer contact: %w", storage.ErrNotFound)
	}
	q := s.customers.from().Eq("business_id", businessID).Or(strings.Join(terms, ",")).Order("created_at", true)
	return s.customers.one(ctx, q, email+phone)
}

// --- CatalogStore -----------------------------------------------------------

func (s *Store) CreateService(ctx context.Context, svc catalog.Service) (catalog.Service, error) {
	svc.ID = newID(svc.ID)
	stamp(&svc.CreatedAt, &svc.UpdatedAt)
	return s.services.insert(ctx, svc)
}

func (s *Store) UpdateService(ctx context.Context, svc catalog.Service) (catalog.Service, error) {
	svc.UpdatedAt = time.Now().UTC()
	return s.services.update(ctx, svc.ID, svc, "business_id")
}

func (s *Store) GetService(ctx context.Context, id string) (catalog.Service, error) {
	return s.services.get(ctx, id)
}

func (s *Store) ListServices(ctx context.Context, businessID string) ([]catalog.Service, error) {
	return s.services.list(ctx, s.services.from().Eq("business_id", businessID).Order("name", true))
}

// --- AttendantStore ---------------------------------------------------------

func (s *Store) CreateAttendant(ctx context.Context, a attendant.Attendant) (attendant.Attendant, error) {
	a.ID = newID(a.ID)
	stamp(&a.CreatedAt, &a.UpdatedAt)
	return s.attendants.insert(ctx, a)
}

func (s *Store) UpdateAttendant(ctx context.Context, a attendant.Attendant) (attendant.Attendant, error) {
	a.UpdatedAt = time.Now().UTC()
	return s.attendants.update(ctx, a.ID, a, "business_id")
}

func (s *Store) GetAttendant(ctx context.Context, id string) (attendant.Attendant, error) {
	return s.attendants.get(ctx, id)
}

func (s *Store) ListAttendants(ctx context.Context, businessID string) ([]attendant.Attendant, error) {
	return s.attendants.list(ctx, s.attendants.from().Eq("business_id", businessID).Order("name", true).Order("id", true))
}

func (s *Store) CreateCommission(ctx context.Context, c attendant.Commission) (attendant.Commission, error) {
	c.ID = newID(c.ID)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return s.commissions.insert(ctx, c)
}

func (s *Store) ListCommissions(ctx context.Context, businessID string, from, to time.Time) ([]attendant.Commission, error) {
	q := s.commissions.from().Eq("business_id", businessID).Order("created_at", true)
	if !from.IsZero() {
		q = q.Gte("created_at", ts(from))
	}
	if !to.IsZero() {
		q = q.Lt("created_at", ts(to))
	}
	return s.commissions.list(ctx, q)
}

// --- AppointmentStore -------------------------------------------------------

func (s *Store) CreateAppointment(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	a.ID = newID(a.ID)
	stamp(&a.CreatedAt, &a.UpdatedAt)
	return s.appointments.insert(ctx, a)
}

func (s *Store) UpdateAppointment(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	a.UpdatedAt = time.Now().UTC()
	return s.appointments.update(ctx, a.ID, a, "business_id", "customer_id", "service_id", "source")
}

func (s *Store) GetAppointment(ctx context.Context, id string) (appointment.Appointment, error) {
	return s.appointments.get(ctx, id)
}

func (s *Store) ListAppointments(ctx context.Context, businessID string, filter appointment.Filter) ([]appointment.Appointment, error) {
	q := s.appointments.from().Eq("business_id", businessID).Order("start_at", true)
	if !filter.From.IsZero() {
		q = q.Gte("start_at", ts(filter.From))
	}
	if !filter.To.IsZero() {
		q = q.Lt("start_at", ts(filter.To))
	}
	if filter.AttendantID != "" {
		q = q.Eq("attendant_id", filter.AttendantID)
	}
	if filter.Status != "" {
		q = q.Eq("status", string(filter.Status))
	}
	return s.appointments.list(ctx, q)
}

func (s *Store) ListAppointmentsByCustomer(ctx context.Context, customerID string) ([]appointment.Appointment, error) {
	return s.appointments.list(ctx, s.appointments.from().Eq("customer_id", customerID).Order("start_at", true))
}

func (s *Store) ListPendingReminders(ctx context.Context, from, to time.Time) ([]appointment.Appointment, error) {
	q := s.appointments.from().
		In("status", string(appointment.StatusScheduled), string(appointment.StatusConfirmed)).
		Is("reminder_sent_at", "null").
		Gte("start_at", ts(from)).
		Lt("start_at", ts(to)).
		Order("start_at", true)
	return s.appointments.list(ctx, q)
}

func (s *Store) MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error) {
	patch := map[string]any{"reminder_sent_at": ts(at), "updated_at": ts(time.Now())}
	q := s.client().From("appointments").
		Eq("id", id).
		Is("reminder_sent_at", "null").
		In("status", string(appointment.StatusScheduled), string(appointment.StatusConfirmed))
	var rows []appointment.Appointment
	if err := q.Update(ctx, patch, &rows); err != nil {
		return false, mapErr("appointment", err)
	}
	return len(rows) > 0, nil
}

// --- LoyaltyStore -----------------------------------------------------------

// SQLSTATEs raised by apply_loyalty_transaction.
const (
	codeCheckViolation = "23514"
	codeNoDataFound    = "P0002"
)

func (s *Store) ApplyLoyaltyTransaction(ctx context.Context, tx loyalty.Transaction) (loyalty.Transaction, error) {
	tx.ID = newID(tx.ID)
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	params := map[string]any{
		"p_id":             tx.ID,
		"p_business_id":    tx.BusinessID,
		"p_customer_id":    tx.CustomerID,
		"p_appointment_id": tx.AppointmentID,
		"p_type":           string(tx.Type),
		"p_points":         tx.Points,
		"p_note":           tx.Note,
		"p_created_at":     ts(tx.CreatedAt),
	}
	var rows []loyalty.Transaction
	if err := s.client().RPC(ctx, "apply_loyalty_transaction", params, &rows); err != nil {
		var apiErr *supabase.Error
		if errors.As(err, &apiErr) {
			switch apiErr.Code {
			case codeCheckViolation:
				return loyalty.Transaction{}, fmt.Errorf("customer %s: %w", tx.CustomerID, storage.ErrNegativeBalance)
			case codeNoDataFound:
				return loyalty.Transaction{}, fmt.Errorf("customer %s: %w", tx.CustomerID, storage.ErrNotFound)
			}
		}
		return loyalty.Transaction{}, mapErr("loyalty "+string(tx.Type), err)
	}
	if len(rows) == 0 {
		return loyalty.Transaction{}, fmt.Errorf("loyalty %s: empty rpc result", tx.Type)
	}
	return rows[0], nil
}

func (s *Store) ListLoyaltyTransactions(ctx context.Context, customerID string) ([]loyalty.Transaction, error) {
	return s.loyalty.list(ctx, s.loyalty.from().Eq("customer_id", customerID).Order("created_at", true))
}

func (s *Store) FindLoyaltyTransaction(ctx context.Context, appointmentID string, typ loyalty.TransactionType) (loyalty.Transaction, error) {
	if appointmentID == "" {
		return loyalty.Transaction{}, fmt.Errorf("loyalty %s: %w", typ, storage.ErrNotFound)
	}
	q := s.loyalty.from().Eq("appointment_id", appointmentID).Eq("type", string(typ))
	return s.loyalty.one(ctx, q, appointmentID)
}

// --- CampaignStore ----------------------------------------------------------

func (s *Store) CreateCampaign(ctx context.Context, c campaign.Campaign) (campaign.Campaign, error) {
	c.ID = newID(c.ID)
	stamp(&c.CreatedAt, &c.UpdatedAt)
	return s.campaigns.insert(ctx, c)
}

func (s *Store) TransitionCampaign(ctx context.Context, c campaign.Campaign, from ...campaign.Status) (campaign.Campaign, error) {
	statuses := make([]string, len(from))
	for i, st := range from {
		statuses[i] = string(st)
	}
	c.UpdatedAt = time.Now().UTC()
	q := s.client().From("campaigns").Eq("id", c.ID).In("status", statuses...)
	var rows []campaign.Campaign
	if err := q.Update(ctx, columns(c, "id", "business_id", "created_at"), &rows); err != nil {
		return campaign.Campaign{}, mapErr("campaign", err)
	}
	if len(rows) > 0 {
		return rows[0], nil
	}
	current, err := s.campaigns.get(ctx, c.ID)
	if err != nil {
		return campaign.Campaign{}, err
	}
	return campaign.Campaign{}, fmt.Errorf("campaign %s is %s: %w", c.ID, current.Status, storage.ErrConflict)
}

func (s *Store) GetCampaign(ctx context.Context, id string) (campaign.Campaign, error) {
	return s.campaigns.get(ctx, id)
}

func (s *Store) ListCampaigns(ctx context.Context, businessID string) ([]campaign.Campaign, error) {
	return s.campaigns.list(ctx, s.campaigns.from().Eq("business_id", businessID).Order("created_at", true))
}

func (s *Store) ListDueCampaigns(ctx context.Context, now time.Time) ([]campaign.Campaign, error) {
	q := s.campaigns.from().
		Eq("status", string(campaign.StatusScheduled)).
		Lte("scheduled_at", ts(now)).
		Order("scheduled_at", true)
	return s.campaigns.list(ctx, q)
}

// --- IntegrationStore -------------------------------------------------------

func (s *Store) CreateIntegration(ctx context.Context, i integration.Integration) (integration.Integration, error) {
	i.ID = newID(i.ID)
	stamp(&i.CreatedAt, &i.UpdatedAt)
	return s.integrations.insert(ctx, i)
}

func (s *Store) UpdateIntegration(ctx context.Context, i integration.Integration) (integration.Integration, error) {
	i.UpdatedAt = time.Now().UTC()
	return s.integrations.update(ctx, i.ID, i, "business_id", "kind")
}

func (s *Store) GetIntegration(ctx context.Context, id string) (integration.Integration, error) {
	return s.integrations.get(ctx, id)
}

func (s *Store) ListIntegrations(ctx context.Context, businessID string) ([]integration.Integration, error) {
	return s.integrations.list(ctx, s.integrations.from().Eq("business_id", businessID).Order("created_at", true))
}

func (s *Store) DeleteIntegration(ctx context.Context, id string) error {
	return s.integrations.remove(ctx, s.client().From("integrations").Eq("id", id), id)
}

// --- APIKeyStore ------------------------------------------------------------

func (s *Store) CreateAPIKey(ctx context.Context, k apikey.APIKey) (apikey.APIKey, error) {
	k.ID = newID(k.ID)
	k.CreatedAt = time.Now().UTC()
	row, err := s.apiKeys.insert(ctx, apiKeyRow{APIKey: k, Hash: k.Hash})
	if err != nil {
		return apikey.APIKey{}, err
	}
	return row.key(), nil
}

func (s *Store) UpdateAPIKey(ctx context.Context, k apikey.APIKey) (apikey.APIKey, error) {
	row, err := s.apiKeys.update(ctx, k.ID, apiKeyRow{APIKey: k}, "hash", "business_id", "prefix")
	if err != nil {
		return apikey.APIKey{}, err
	}
	return row.key(), nil
}

func (s *Store) GetAPIKey(ctx context.Context, id string) (apikey.APIKey, error) {
	row, err := s.apiKeys.get(ctx, id)
	return row.key(), err
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (apikey.APIKey, error) {
	row, err := s.apiKeys.one(ctx, s.apiKeys.from().Eq("hash", hash), "hash")
	return row.key(), err
}

func (s *Store) ListAPIKeys(ctx context.Context, businessID string) ([]apikey.APIKey, error) {
	rows, err := s.apiKeys.list(ctx, s.apiKeys.from().Eq("business_id", businessID).Order("created_at", true))
	if err != nil {
		return nil, err
	}
	keys := make([]apikey.APIKey, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.key())
	}
	return keys, nil
}
