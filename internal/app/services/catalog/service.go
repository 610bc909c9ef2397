package catalog

import (
	"context"
	"strings"

	domain "github.com/gestly/gestly/internal/app/domain/catalog"
	"github.com/gestly/gestly/internal/app/services"
	"github.com/gestly/gestly/internal/app/storage"
	"github.com/gestly/gestly/pkg/logger"
)

// Service manages the services a business sells.
type Service struct {
	store storage.CatalogStore
	log   *logger.Logger
}

// New constructs a catalog service.
func New(store storage.CatalogStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	return &Service{store: store, log: log}
}

// Create adds a service to the catalog. New items are active.
func (s *Service) Create(ctx context.Context, svc domain.Service) (domain.Service, error) {
	if svc.BusinessID == "" {
		return domain.Service{}, services.Invalid("business_id is required")
	}
	svc.ID = ""
	svc.Name = strings.TrimSpace(svc.Name)
	svc.Active = true
	if err := svc.Validate(); err != nil {
		return domain.Service{}, services.Invalid("%v", err)
	}
	created, err := s.store.CreateService(ctx, svc)
	if err != nil {
		return domain.Service{}, err
	}
	s.log.WithField("business_id", svc.BusinessID).WithField("service_id", created.ID).Info("service created")
	return created, nil
}

// Get returns a catalog item of the business.
func (s *Service) Get(ctx context.Context, businessID, id string) (domain.Service, error) {
	svc, err := s.store.GetService(ctx, id)
	if err != nil {
		return domain.Service{}, err
	}
	if svc.BusinessID != businessID {
		return domain.Service{}, services.NotFound("service", id)
	}
	return svc, nil
}

// List returns the catalog, optionally only active items.
func (s *Service) List(ctx context.Context, businessID string, activeOnly bool) ([]domain.Service, error) {
	all, err := s.store.ListServices(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if !activeOnly {
		return all, nil
	}
	result := make([]domain.Service, 0, len(all))
	for _, svc := range all {
		if svc.Active {
			result = append(result, svc)
		}
	}
	return result, nil
}

// Update overwrites name, description, duration and price.
func (s *Service) Update(ctx context.Context, businessID string, svc domain.Service) (domain.Service, error) {
	existing, err := s.Get(ctx, businessID, svc.ID)
	if err != nil {
		return domain.Service{}, err
	}
	existing.Name = strings.TrimSpace(svc.Name)
	existing.Description = svc.Description
	existing.Duration = svc.Duration
	existing.PriceCents = svc.PriceCents
	if err := existing.Validate(); err != nil {
		return domain.Service{}, services.Invalid("%v", err)
	}
	updated, err := s.store.UpdateService(ctx, existing)
	if err != nil {
		return domain.Service{}, err
	}
	s.log.WithField("service_id", svc.ID).Info("service updated")
	return updated, nil
}

// SetActive enables or disables booking of a service.
func (s *Service) SetActive(ctx context.Context, businessID, id string, active bool) (domain.Service, error) {
	existing, err := s.Get(ctx, businessID, id)
	if err != nil {
		return domain.Service{}, err
	}
	existing.Active = active
	updated, err := s.store.UpdateService(ctx, existing)
	if err != nil {
		return domain.Service{}, err
	}
	s.log.WithField("service_id", id).WithField("active", active).Info("service activation changed")
	return updated, nil
}
