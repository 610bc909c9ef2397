package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

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
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu           sync.RWMutex
	businesses   map[string]business.Business
	specialDays  map[string]business.SpecialDay
	customers    map[string]customer.Customer
	services     map[string]catalog.Service
	attendants   map[string]attendant.Attendant
	commissions  map[string]attendant.Commission
	appointments map[string]appointment.Appointment
	loyalty      []loyalty.Transaction
	campaigns    map[string]campaign.Campaign
	integrations map[string]integration.Integration
	apiKeys      map[string]apikey.APIKey
}

var _ storage.All = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		businesses:   make(map[string]business.Business),
		specialDays:  make(map[string]business.SpecialDay),
		customers:    make(map[string]customer.Customer),
		services:     make(map[string]catalog.Service),
		attendants:   make(map[string]attendant.Attendant),
		commissions:  make(map[string]attendant.Commission),
		appointments: make(map[string]appointment.Appointment),
		campaigns:    make(map[string]campaign.Campaign),
		integrations: make(map[string]integration.Integration),
		apiKeys:      make(map[string]apikey.APIKey),
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// --- BusinessStore ----------------------------------------------------------

func (s *Store) CreateBusiness(_ context.Context, b business.Business) (business.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b.ID = newID(b.ID)
	if _, exists := s.businesses[b.ID]; exists {
		return business.Business{}, fmt.Errorf("business %s: %w", b.ID, storage.ErrConflict)
	}
	for _, existing := range s.businesses {
		if existing.Slug == b.Slug {
			return business.Business{}, fmt.Errorf("slug %s: %w", b.Slug, storage.ErrConflict)
		}
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	s.businesses[b.ID] = b
	return b, nil
}

func (s *Store) UpdateBusiness(_ context.Context, b business.Business) (business.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.businesses[b.ID]
	if !ok {
		return business.Business{}, notFound("business", b.ID)
	}
	b.CreatedAt = original.CreatedAt
	b.UpdatedAt = time.Now().UTC()
	s.businesses[b.ID] = b
	return b, nil
}

func (s *Store) GetBusiness(_ context.Context, id string) (business.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.businesses[id]
	if !ok {
		return business.Business{}, notFound("business", id)
	}
	return b, nil
}

func (s *Store) GetBusinessByStripeCustomer(_ context.Context, stripeCustomerID string) (business.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.businesses {
		if stripeCustomerID != "" && b.StripeCustomerID == stripeCustomerID {
			return b, nil
		}
	}
	return business.Business{}, notFound("stripe customer", stripeCustomerID)
}

func (s *Store) ListBusinessesByOwner(_ context.Context, ownerID string) ([]business.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]business.Business, 0)
	for _, b := range s.businesses {
		if b.OwnerID == ownerID {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// --- SpecialDayStore --------------------------------------------------------

func specialDayKey(businessID, date string) string { return businessID + "|" + date }

func (s *Store) UpsertSpecialDay(_ context.Context, day business.SpecialDay) (business.SpecialDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := specialDayKey(day.BusinessID, day.Date)
	now := time.Now().UTC()
	if existing, ok := s.specialDays[key]; ok {
		day.ID = existing.ID
		day.CreatedAt = existing.CreatedAt
	} else {
		day.ID = newID(day.ID)
		day.CreatedAt = now
	}
	day.UpdatedAt = now
	s.specialDays[key] = day
	return day, nil
}

func (s *Store) DeleteSpecialDay(_ context.Context, businessID, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := specialDayKey(businessID, date)
	if _, ok := s.specialDays[key]; !ok {
		return notFound("special day", date)
	}
	delete(s.specialDays, key)
	return nil
}

func (s *Store) ListSpecialDays(_ context.Context, businessID, from, to string) ([]business.SpecialDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]business.SpecialDay, 0)
	for _, day := range s.specialDays {
		if day.BusinessID != businessID {
			continue
		}
		if (from != "" && day.Date < from) || (to != "" && day.Date > to) {
			continue
		}
		result = append(result, day)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

// --- CustomerStore ----------------------------------------------------------

func (s *Store) contactTakenLocked(c customer.Customer) bool {
	for _, existing := range s.customers {
		if existing.BusinessID != c.BusinessID || existing.ID == c.ID {
			continue
		}
		if c.Email != "" && existing.Email == c.Email {
			return true
		}
		if c.Phone != "" && existing.Phone == c.Phone {
			return true
		}
	}
	return false
}

func (s *Store) CreateCustomer(_ context.Context, c customer.Customer) (customer.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = newID(c.ID)
	if s.contactTakenLocked(c) {
		return customer.Customer{}, fmt.Errorf("customer contact: %w", storage.ErrConflict)
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	s.customers[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCustomer(_ context.Context, c customer.Customer) (customer.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.customers[c.ID]
	if !ok {
		return customer.Customer{}, notFound("customer", c.ID)
	}
	if s.contactTakenLocked(c) {
		return customer.Customer{}, fmt.Errorf("customer contact: %w", storage.ErrConflict)
	}
	c.BusinessID = original.BusinessID
	c.LoyaltyPoints = original.LoyaltyPoints
	c.LastVisitAt = original.LastVisitAt
	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.customers[c.ID] = c
	return c, nil
}

func (s *Store) TouchCustomerVisit(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return notFound("customer", id)
	}
	if c.LastVisitAt != nil && !c.LastVisitAt.Before(at) {
		return nil
	}
	at = at.UTC()
	c.LastVisitAt = &at
	c.UpdatedAt = time.Now().UTC()
	s.customers[id] = c
	return nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return customer.Customer{}, notFound("customer", id)
	}
	return c, nil
}

func (s *Store) ListCustomers(_ context.Context, businessID string) ([]customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]customer.Customer, 0)
	for _, c := range s.customers {
		if c.BusinessID == businessID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return notFound("customer", id)
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) FindCustomerByContact(_ context.Context, businessID, email, phone string) (customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.customers {
		if c.BusinessID != businessID {
			continue
		}
		if (email != "" && c.Email == email) || (phone != "" && c.Phone == phone) {
			return c, nil
		}
	}
	return customer.Customer{}, notFound("customer contact", email+phone)
}

// --- CatalogStore -----------------------------------------------------------

func (s *Store) CreateService(_ context.Context, svc catalog.Service) (catalog.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc.ID = newID(svc.ID)
	now := time.Now().UTC()
	svc.CreatedAt, svc.UpdatedAt = now, now
	s.services[svc.ID] = svc
	return svc, nil
}

func (s *Store) UpdateService(_ context.Context, svc catalog.Service) (catalog.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.services[svc.ID]
	if !ok {
		return catalog.Service{}, notFound("service", svc.ID)
	}
	svc.CreatedAt = original.CreatedAt
	svc.UpdatedAt = time.Now().UTC()
	s.services[svc.ID] = svc
	return svc, nil
}

func (s *Store) GetService(_ context.Context, id string) (catalog.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.services[id]
	if !ok {
		return catalog.Service{}, notFound("service", id)
	}
	return svc, nil
}

func (s *Store) ListServices(_ context.Context, businessID string) ([]catalog.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]catalog.Service, 0)
	for _, svc := range s.services {
		if svc.BusinessID == businessID {
			result = append(result, svc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// --- AttendantStore ---------------------------------------------------------

func cloneAttendant(a attendant.Attendant) attendant.Attendant {
	a.ServiceIDs = append(a.ServiceIDs[:0:0], a.ServiceIDs...)
	return a
}

func (s *Store) CreateAttendant(_ context.Context, a attendant.Attendant) (attendant.Attendant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = newID(a.ID)
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	s.attendants[a.ID] = cloneAttendant(a)
	return cloneAttendant(a), nil
}

func (s *Store) UpdateAttendant(_ context.Context, a attendant.Attendant) (attendant.Attendant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.attendants[a.ID]
	if !ok {
		return attendant.Attendant{}, notFound("attendant", a.ID)
	}
	a.CreatedAt = original.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	s.attendants[a.ID] = cloneAttendant(a)
	return cloneAttendant(a), nil
}

func (s *Store) GetAttendant(_ context.Context, id string) (attendant.Attendant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.attendants[id]
	if !ok {
		return attendant.Attendant{}, notFound("attendant", id)
	}
	return cloneAttendant(a), nil
}

func (s *Store) ListAttendants(_ context.Context, businessID string) ([]attendant.Attendant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]attendant.Attendant, 0)
	for _, a := range s.attendants {
		if a.BusinessID == businessID {
			result = append(result, cloneAttendant(a))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name == result[j].Name {
			return result[i].ID < result[j].ID
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (s *Store) CreateCommission(_ context.Context, c attendant.Commission) (attendant.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.commissions[c.AppointmentID]; exists {
		return attendant.Commission{}, fmt.Errorf("commission for %s: %w", c.AppointmentID, storage.ErrConflict)
	}
	c.ID = newID(c.ID)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.commissions[c.AppointmentID] = c
	return c, nil
}

func (s *Store) ListCommissions(_ context.Context, businessID string, from, to time.Time) ([]attendant.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]attendant.Commission, 0)
	for _, c := range s.commissions {
		if c.BusinessID != businessID {
			continue
		}
		if (!from.IsZero() && c.CreatedAt.Before(from)) || (!to.IsZero() && !c.CreatedAt.Before(to)) {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// --- AppointmentStore -------------------------------------------------------

func (s *Store) CreateAppointment(_ context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = newID(a.ID)
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	s.appointments[a.ID] = a
	return a, nil
}

func (s *Store) UpdateAppointment(_ context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.appointments[a.ID]
	if !ok {
		return appointment.Appointment{}, notFound("appointment", a.ID)
	}
	a.CreatedAt = original.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	s.appointments[a.ID] = a
	return a, nil
}

func (s *Store) GetAppointment(_ context.Context, id string) (appointment.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.appointments[id]
	if !ok {
		return appointment.Appointment{}, notFound("appointment", id)
	}
	return a, nil
}

func sortAppointments(list []appointment.Appointment) {
	sort.Slice(list, func(i, j int) bool { return list[i].StartAt.Before(list[j].StartAt) })
}

func (s *Store) ListAppointments(_ context.Context, businessID string, filter appointment.Filter) ([]appointment.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]appointment.Appointment, 0)
	for _, a := range s.appointments {
		if a.BusinessID == businessID && filter.Match(a) {
			result = append(result, a)
		}
	}
	sortAppointments(result)
	return result, nil
}

func (s *Store) ListAppointmentsByCustomer(_ context.Context, customerID string) ([]appointment.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]appointment.Appointment, 0)
	for _, a := range s.appointments {
		if a.CustomerID == customerID {
			result = append(result, a)
		}
	}
	sortAppointments(result)
	return result, nil
}

func (s *Store) ListPendingReminders(_ context.Context, from, to time.Time) ([]appointment.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]appointment.Appointment, 0)
	for _, a := range s.appointments {
		if a.ReminderSentAt != nil || a.Status.Terminal() {
			continue
		}
		if a.StartAt.Before(from) || !a.StartAt.Before(to) {
			continue
		}
		result = append(result, a)
	}
	sortAppointments(result)
	return result, nil
}

func (s *Store) MarkReminderSent(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return false, notFound("appointment", id)
	}
	if a.ReminderSentAt != nil || a.Status.Terminal() {
		return false, nil
	}
	at = at.UTC()
	a.ReminderSentAt = &at
	a.UpdatedAt = time.Now().UTC()
	s.appointments[id] = a
	return true, nil
}

// --- LoyaltyStore -----------------------------------------------------------

func (s *Store) ApplyLoyaltyTransaction(_ context.Context, tx loyalty.Transaction) (loyalty.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[tx.CustomerID]
	if !ok {
		return loyalty.Transaction{}, notFound("customer", tx.CustomerID)
	}
	if tx.AppointmentID != "" && tx.Type != loyalty.TypeAdjust {
		for _, existing := range s.loyalty {
			if existing.AppointmentID == tx.AppointmentID && existing.Type == tx.Type {
				return loyalty.Transaction{}, fmt.Errorf("loyalty %s for %s: %w", tx.Type, tx.AppointmentID, storage.ErrConflict)
			}
		}
	}
	balance := c.LoyaltyPoints + tx.Points
	if balance < 0 {
		return loyalty.Transaction{}, fmt.Errorf("customer %s: %w", c.ID, storage.ErrNegativeBalance)
	}

	tx.ID = newID(tx.ID)
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	tx.BalanceAfter = balance
	c.LoyaltyPoints = balance
	c.UpdatedAt = time.Now().UTC()
	s.customers[c.ID] = c
	s.loyalty = append(s.loyalty, tx)
	return tx, nil
}

func (s *Store) ListLoyaltyTransactions(_ context.Context, customerID string) ([]loyalty.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]loyalty.Transaction, 0)
	for _, tx := range s.loyalty {
		if tx.CustomerID == customerID {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (s *Store) FindLoyaltyTransaction(_ context.Context, appointmentID string, typ loyalty.TransactionType) (loyalty.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tx := range s.loyalty {
		if appointmentID != "" && tx.AppointmentID == appointmentID && tx.Type == typ {
			return tx, nil
		}
	}
	return loyalty.Transaction{}, notFound("loyalty "+string(typ), appointmentID)
}

// --- CampaignStore ----------------------------------------------------------

func (s *Store) CreateCampaign(_ context.Context, c campaign.Campaign) (campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = newID(c.ID)
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	s.campaigns[c.ID] = c
	return c, nil
}

func (s *Store) TransitionCampaign(_ context.Context, c campaign.Campaign, from ...campaign.Status) (campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.campaigns[c.ID]
	if !ok {
		return campaign.Campaign{}, notFound("campaign", c.ID)
	}
	allowed := false
	for _, st := range from {
		if original.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return campaign.Campaign{}, fmt.Errorf("campaign %s is %s: %w", c.ID, original.Status, storage.ErrConflict)
	}
	c.BusinessID = original.BusinessID
	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.campaigns[c.ID] = c
	return c, nil
}

func (s *Store) GetCampaign(_ context.Context, id string) (campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.campaigns[id]
	if !ok {
		return campaign.Campaign{}, notFound("campaign", id)
	}
	return c, nil
}

func (s *Store) ListCampaigns(_ context.Context, businessID string) ([]campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]campaign.Campaign, 0)
	for _, c := range s.campaigns {
		if c.BusinessID == businessID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) ListDueCampaigns(_ context.Context, now time.Time) ([]campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]campaign.Campaign, 0)
	for _, c := range s.campaigns {
		if c.Status == campaign.StatusScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ScheduledAt.Before(*result[j].ScheduledAt) })
	return result, nil
}

// --- IntegrationStore -------------------------------------------------------

func cloneIntegration(i integration.Integration) integration.Integration {
	i.Events = append(i.Events[:0:0], i.Events...)
	i.Config = i.Config.Clone()
	return i
}

func (s *Store) CreateIntegration(_ context.Context, i integration.Integration) (integration.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i.ID = newID(i.ID)
	now := time.Now().UTC()
	i.CreatedAt, i.UpdatedAt = now, now
	s.integrations[i.ID] = cloneIntegration(i)
	return cloneIntegration(i), nil
}

func (s *Store) UpdateIntegration(_ context.Context, i integration.Integration) (integration.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.integrations[i.ID]
	if !ok {
		return integration.Integration{}, notFound("integration", i.ID)
	}
	i.CreatedAt = original.CreatedAt
	i.UpdatedAt = time.Now().UTC()
	s.integrations[i.ID] = cloneIntegration(i)
	return cloneIntegration(i), nil
}

func (s *Store) GetIntegration(_ context.Context, id string) (integration.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.integrations[id]
	if !ok {
		return integration.Integration{}, notFound("integration", id)
	}
	return cloneIntegration(i), nil
}

func (s *Store) ListIntegrations(_ context.Context, businessID string) ([]integration.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]integration.Integration, 0)
	for _, i := range s.integrations {
		if i.BusinessID == businessID {
			result = append(result, cloneIntegration(i))
		}
	}
	sort.Slice(result, func(a, b int) bool { return result[a].CreatedAt.Before(result[b].CreatedAt) })
	return result, nil
}

func (s *Store) DeleteIntegration(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.integrations[id]; !ok {
		return notFound("integration", id)
	}
	delete(s.integrations, id)
	return nil
}

// --- APIKeyStore ------------------------------------------------------------

func (s *Store) CreateAPIKey(_ context.Context, k apikey.APIKey) (apikey.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.apiKeys {
		if existing.Hash == k.Hash {
			return apikey.APIKey{}, fmt.Errorf("api key hash: %w", storage.ErrConflict)
		}
	}
	k.ID = newID(k.ID)
	k.CreatedAt = time.Now().UTC()
	s.apiKeys[k.ID] = k
	return k, nil
}

func (s *Store) UpdateAPIKey(_ context.Context, k apikey.APIKey) (apikey.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.apiKeys[k.ID]
	if !ok {
		return apikey.APIKey{}, notFound("api key", k.ID)
	}
	k.CreatedAt = original.CreatedAt
	k.Hash = original.Hash
	s.apiKeys[k.ID] = k
	return k, nil
}

func (s *Store) GetAPIKey(_ context.Context, id string) (apikey.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.apiKeys[id]
	if !ok {
		return apikey.APIKey{}, notFound("api key", id)
	}
	return k, nil
}

func (s *Store) GetAPIKeyByHash(_ context.Context, hash string) (apikey.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, k := range s.apiKeys {
		if k.Hash == hash {
			return k, nil
		}
	}
	return apikey.APIKey{}, notFound("api key", "hash")
}

func (s *Store) ListAPIKeys(_ context.Context, businessID string) ([]apikey.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]apikey.APIKey, 0)
	for _, k := range s.apiKeys {
		if k.BusinessID == businessID {
			result = append(result, k)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}
