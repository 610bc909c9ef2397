package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gestly/gestly/internal/app/domain/apikey"
	"github.com/gestly/gestly/internal/app/domain/campaign"
	"github.com/gestly/gestly/internal/app/domain/integration"
	"github.com/gestly/gestly/internal/app/storage"
)

const campaignColumns = `id, business_id, name, channel, integration_id, subject, body, audience, status,
	scheduled_at, sent_at, recipient_count, failed_count, last_error, created_at, updated_at`

func (s *Store) CreateCampaign(ctx context.Context, c campaign.Campaign) (campaign.Campaign, error) {
	c.ID = newID(c.ID)
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt

	err := s.insert(ctx, "campaign", `
		INSERT INTO campaigns (`+campaignColumns+`)
		VALUES (:id, :business_id, :name, :channel, :integration_id, :subject, :body, :audience, :status,
			:scheduled_at, :sent_at, :recipient_count, :failed_count, :last_error, :created_at, :updated_at)
	`, c)
	if err != nil {
		return campaign.Campaign{}, err
	}
	return c, nil
}

func (s *Store) TransitionCampaign(ctx context.Context, c campaign.Campaign, from ...campaign.Status) (campaign.Campaign, error) {
	if len(from) == 0 {
		return campaign.Campaign{}, fmt.Errorf("campaign %s: no source status: %w", c.ID, storage.ErrConflict)
	}
	c.UpdatedAt = now()
	args := []any{c.ID, c.Name, string(c.Channel), c.IntegrationID, c.Subject, c.Body, c.Audience,
		string(c.Status), c.ScheduledAt, c.SentAt, c.RecipientCount, c.FailedCount, c.LastError, c.UpdatedAt}
	placeholders := make([]string, len(from))
	for i, st := range from {
		args = append(args, string(st))
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE campaigns
		SET name = $2, channel = $3, integration_id = $4, subject = $5, body = $6, audience = $7,
			status = $8, scheduled_at = $9, sent_at = $10, recipient_count = $11, failed_count = $12,
			last_error = $13, updated_at = $14
		WHERE id = $1 AND status IN (`+strings.Join(placeholders, ", ")+`)
	`, args...)
	if err != nil {
		return campaign.Campaign{}, mapErr("campaign "+c.ID, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		current, err := s.GetCampaign(ctx, c.ID)
		if err != nil {
			return campaign.Campaign{}, err
		}
		return campaign.Campaign{}, fmt.Errorf("campaign %s is %s: %w", c.ID, current.Status, storage.ErrConflict)
	}
	return s.GetCampaign(ctx, c.ID)
}

func (s *Store) GetCampaign(ctx context.Context, id string) (campaign.Campaign, error) {
	var c campaign.Campaign
	err := s.get(ctx, "campaign "+id, &c, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	return c, err
}

func (s *Store) ListCampaigns(ctx context.Context, businessID string) ([]campaign.Campaign, error) {
	result := []campaign.Campaign{}
	err := s.list(ctx, "campaigns", &result, `
		SELECT `+campaignColumns+` FROM campaigns WHERE business_id = $1 ORDER BY created_at
	`, businessID)
	return result, err
}

func (s *Store) ListDueCampaigns(ctx context.Context, at time.Time) ([]campaign.Campaign, error) {
	result := []campaign.Campaign{}
	err := s.list(ctx, "campaigns", &result, `
		SELECT `+campaignColumns+` FROM campaigns
		WHERE status = 'scheduled' AND scheduled_at IS NOT NULL AND scheduled_at <= $1
		ORDER BY scheduled_at
	`, at)
	return result, err
}

// --- IntegrationStore -------------------------------------------------------

const integrationColumns = `id, business_id, kind, name, url, events, config, active, last_delivery_at,
	last_error, created_at, updated_at`

func (s *Store) CreateIntegration(ctx context.Context, i integration.Integration) (integration.Integration, error) {
	i.ID = newID(i.ID)
	i.CreatedAt = now()
	i.UpdatedAt = i.CreatedAt

	err := s.insert(ctx, "integration", `
		INSERT INTO integrations (`+integrationColumns+`)
		VALUES (:id, :business_id, :kind, :name, :url, :events, :config, :active, :last_delivery_at,
			:last_error, :created_at, :updated_at)
	`, i)
	if err != nil {
		return integration.Integration{}, err
	}
	return i, nil
}

func (s *Store) UpdateIntegration(ctx context.Context, i integration.Integration) (integration.Integration, error) {
	i.UpdatedAt = now()
	err := s.update(ctx, "integration "+i.ID, `
		UPDATE integrations
		SET name = :name, url = :url, events = :events, config = :config, active = :active,
			last_delivery_at = :last_delivery_at, last_error = :last_error, updated_at = :updated_at
		WHERE id = :id
	`, i)
	if err != nil {
		return integration.Integration{}, err
	}
	return s.GetIntegration(ctx, i.ID)
}

func (s *Store) GetIntegration(ctx context.Context, id string) (integration.Integration, error) {
	var i integration.Integration
	err := s.get(ctx, "integration "+id, &i, `SELECT `+integrationColumns+` FROM integrations WHERE id = $1`, id)
	return i, err
}

func (s *Store) ListIntegrations(ctx context.Context, businessID string) ([]integration.Integration, error) {
	result := []integration.Integration{}
	err := s.list(ctx, "integrations", &result, `
		SELECT `+integrationColumns+` FROM integrations WHERE business_id = $1 ORDER BY created_at
	`, businessID)
	return result, err
}

func (s *Store) DeleteIntegration(ctx context.Context, id string) error {
	return s.exec(ctx, "integration "+id, `DELETE FROM integrations WHERE id = $1`, id)
}

// --- APIKeyStore ------------------------------------------------------------

const apiKeyColumns = `id, business_id, name, prefix, hash, scopes, created_at, last_used_at, revoked_at`

func (s *Store) CreateAPIKey(ctx context.Context, k apikey.APIKey) (apikey.APIKey, error) {
	k.ID = newID(k.ID)
	k.CreatedAt = now()

	err := s.insert(ctx, "api key", `
		INSERT INTO api_keys (`+apiKeyColumns+`)
		VALUES (:id, :business_id, :name, :prefix, :hash, :scopes, :created_at, :last_used_at, :revoked_at)
	`, k)
	if err != nil {
		return apikey.APIKey{}, err
	}
	return k, nil
}

func (s *Store) UpdateAPIKey(ctx context.Context, k apikey.APIKey) (apikey.APIKey, error) {
	err := s.update(ctx, "api key "+k.ID, `
		UPDATE api_keys
		SET name = :name, scopes = :scopes, last_used_at = :last_used_at, revoked_at = :revoked_at
		WHERE id = :id
	`, k)
	if err != nil {
		return apikey.APIKey{}, err
	}
	return s.GetAPIKey(ctx, k.ID)
}

func (s *Store) GetAPIKey(ctx context.Context, id string) (apikey.APIKey, error) {
	var k apikey.APIKey
	err := s.get(ctx, "api key "+id, &k, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id)
	return k, err
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (apikey.APIKey, error) {
	var k apikey.APIKey
	err := s.get(ctx, "api key", &k, `SELECT `+apiKeyColumns+` FROM api_keys WHERE hash = $1`, hash)
	return k, err
}

func (s *Store) ListAPIKeys(ctx context.Context, businessID string) ([]apikey.APIKey, error) {
	result := []apikey.APIKey{}
	err := s.list(ctx, "api keys", &result, `
		SELECT `+apiKeyColumns+` FROM api_keys WHERE business_id = $1 ORDER BY created_at
	`, businessID)
	return result, err
}
