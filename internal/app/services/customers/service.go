package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gestly/gestly/internal/app/domain/customer"
	"github.com/gestly/gestly/internal/app/services"
	"github.com/gestly/gestly/internal/app/storage"
	"github.com/gestly/gestly/pkg/logger"
)

// Service manages a business's customers.
type Service struct {
	store storage.CustomerStore
	log   *logger.Logger
}

// New constructs a customer service.
func New(store storage.CustomerStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("customers")
	}
	return &Service{store: store, log: log}
}

func normalize(c *customer.Customer) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = customer.NormalizeEmail(c.Email)
	c.Phone = customer.NormalizePhone(c.Phone)
	c.BirthDate = strings.TrimSpace(c.BirthDate)
	if c.Name == "" {
		return services.Invalid("name is required")
	}
	if c.Email == "" && c.Phone == "" {
		return services.Invalid("email or phone is required")
	}
	if c.Email != "" && !strings.Contains(c.Email, "@") {
		return services.Invalid("email %q is not valid", c.Email)
	}
	if c.BirthDate != "" {
		if _, err := time.Parse("2006-01-02", c.BirthDate); err != nil {
			return services.Invalid("birth_date must be YYYY-MM-DD")
		}
	}
	return nil
}

func conflict(err error) error {
	if errors.Is(err, storage.ErrConflict) {
		return fmt.Errorf("a customer with this email or phone already exists: %w", services.ErrConflict)
	}
	return err
}

// Create registers a customer.
func (s *Service) Create(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	if c.BusinessID == "" {
		return customer.Customer{}, services.Invalid("business_id is required")
	}
	if err := normalize(&c); err != nil {
		return customer.Customer{}, err
	}
	c.ID = ""
	c.LoyaltyPoints = 0
	c.LastVisitAt = nil

	created, err := s.store.CreateCustomer(ctx, c)
	if err != nil {
		return customer.Customer{}, conflict(err)
	}
	s.log.WithField("business_id", c.BusinessID).WithField("customer_id", created.ID).Info("customer created")
	return created, nil
}

// Get returns a customer of the business.
func (s *Service) Get(ctx context.Context, businessID, id string) (customer.Customer, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return customer.Customer{}, err
	}
	if c.BusinessID != businessID {
		return customer.Customer{}, services.NotFound("customer", id)
	}
	return c, nil
}

// List returns customers matching an optional free-text query.
func (s *Service) List(ctx context.Context, businessID, query string) ([]customer.Customer, error) {
	all, err := s.store.ListCustomers(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return all, nil
	}
	result := make([]customer.Customer, 0, len(all))
	for _, c := range all {
		if c.Matches(query) {
			result = append(result, c)
		}
	}
	return result, nil
}

// Update overwrites contact fields. Loyalty balance and visit history are kept.
func (s *Service) Update(ctx context.Context, businessID string, c customer.Customer) (customer.Customer, error) {
	existing, err := s.Get(ctx, businessID, c.ID)
	if err != nil {
		return customer.Customer{}, err
	}
	c.BusinessID = existing.BusinessID
	if err := normalize(&c); err != nil {
		return customer.Customer{}, err
	}
	updated, err := s.store.UpdateCustomer(ctx, c)
	if err != nil {
		return customer.Customer{}, conflict(err)
	}
	s.log.WithField("customer_id", c.ID).Info("customer updated")
	return updated, nil
}

// Delete removes a customer.
func (s *Service) Delete(ctx context.Context, businessID, id string) error {
	if _, err := s.Get(ctx, businessID, id); err != nil {
		return err
	}
	if err := s.store.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.log.WithField("customer_id", id).Info("customer deleted")
	return nil
}

// FindOrCreate returns the customer matching the contact, creating one when
// none exists. Missing contact fields on an existing record are filled in.
func (s *Service) FindOrCreate(ctx context.Context, businessID string, contact customer.Contact) (customer.Customer, error) {
	email := customer.NormalizeEmail(contact.Email)
	phone := customer.NormalizePhone(contact.Phone)
	if email == "" && phone == "" {
		return customer.Customer{}, services.Invalid("email or phone is required")
	}

	existing, err := s.store.FindCustomerByContact(ctx, businessID, email, phone)
	switch {
	case err == nil:
		changed := false
		if existing.Email == "" && email != "" {
			existing.Email, changed = email, true
		}
		if existing.Phone == "" && phone != "" {
			existing.Phone, changed = phone, true
		}
		if !changed {
			return existing, nil
		}
		updated, err := s.store.UpdateCustomer(ctx, existing)
		if err != nil {
			// Another customer owns the other handle; keep the match as is.
			if errors.Is(err, storage.ErrConflict) {
				return existing, nil
			}
			return customer.Customer{}, err
		}
		return updated, nil
	case errors.Is(err, storage.ErrNotFound):
		return s.Create(ctx, customer.Customer{BusinessID: businessID, Name: contact.Name, Email: email, Phone: phone})
	default:
		return customer.Customer{}, err
	}
}

// TouchVisit records the time of the latest completed visit. Older
// timestamps leave the stored visit untouched.
func (s *Service) TouchVisit(ctx context.Context, id string, at time.Time) error {
	return s.store.TouchCustomerVisit(ctx, id, at)
}
