package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gestly/gestly/internal/app/domain/campaign"
	"github.com/gestly/gestly/internal/app/domain/integration"
)

type campaignPayload struct {
	Name          string            `json:"name"`
	Channel       campaign.Channel  `json:"channel"`
	IntegrationID string            `json:"integration_id"`
	Subject       string            `json:"subject"`
	Body          string            `json:"body"`
	Audience      campaign.Audience `json:"audience"`
}

func (p campaignPayload) campaign(businessID, id string) campaign.Campaign {
	return campaign.Campaign{
		ID:            id,
		BusinessID:    businessID,
		Name:          p.Name,
		Channel:       p.Channel,
		IntegrationID: p.IntegrationID,
		Subject:       p.Subject,
		Body:          p.Body,
		Audience:      p.Audience,
	}
}

func (h *handler) listCampaigns(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Campaigns.List(r.Context(), currentBusiness(r).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) createCampaign(w http.ResponseWriter, r *http.Request) {
	var payload campaignPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.app.Campaigns.Create(r.Context(), payload.campaign(currentBusiness(r).ID, ""))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) getCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Campaigns.Get(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) updateCampaign(w http.ResponseWriter, r *http.Request) {
	var payload campaignPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	b := currentBusiness(r)
	c, err := h.app.Campaigns.Update(r.Context(), b.ID, payload.campaign(b.ID, mux.Vars(r)["id"]))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) scheduleCampaign(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ScheduledAt string `json:"scheduled_at"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	at, err := parseTime(payload.ScheduledAt, "scheduled_at")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.app.Campaigns.Schedule(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"], at)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) cancelCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Campaigns.Cancel(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) previewCampaign(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Campaigns.Preview(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type integrationPayload struct {
	Kind   integration.Kind  `json:"kind"`
	Name   string            `json:"name"`
	URL    string            `json:"url"`
	Events []string          `json:"events"`
	Config map[string]string `json:"config"`
	Active *bool             `json:"active"`
}

func (h *handler) listIntegrations(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Integrations.List(r.Context(), currentBusiness(r).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) createIntegration(w http.ResponseWriter, r *http.Request) {
	var payload integrationPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.app.Integrations.Create(r.Context(), integration.Integration{
		BusinessID: currentBusiness(r).ID,
		Kind:       payload.Kind,
		Name:       payload.Name,
		URL:        payload.URL,
		Events:     payload.Events,
		Config:     payload.Config,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) getIntegration(w http.ResponseWriter, r *http.Request) {
	i, err := h.app.Integrations.Get(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, i)
}

func (h *handler) updateIntegration(w http.ResponseWriter, r *http.Request) {
	var payload integrationPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	b := currentBusiness(r)
	id := mux.Vars(r)["id"]
	existing, err := h.app.Integrations.Get(r.Context(), b.ID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	active := existing.Active
	if payload.Active != nil {
		active = *payload.Active
	}
	updated, err := h.app.Integrations.Update(r.Context(), b.ID, integration.Integration{
		ID:     id,
		Name:   payload.Name,
		URL:    payload.URL,
		Events: payload.Events,
		Config: payload.Config,
		Active: active,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteIntegration(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Integrations.Delete(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) testIntegration(w http.ResponseWriter, r *http.Request) {
	d, err := h.app.Integrations.Test(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"])
	if err != nil {
		if statusFor(err) != http.StatusInternalServerError {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "delivery": d})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handler) listAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.app.APIKeys.List(r.Context(), currentBusiness(r).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h *handler) createAPIKey(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name   string   `json:"name"`
		Scopes []string `json:"scopes"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	issued, err := h.app.APIKeys.Create(r.Context(), currentBusiness(r).ID, payload.Name, payload.Scopes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, issued)
}

func (h *handler) revokeAPIKey(w http.ResponseWriter, r *http.Request) {
	if _, err := h.app.APIKeys.Revoke(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
