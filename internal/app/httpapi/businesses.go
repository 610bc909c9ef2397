package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gestly/gestly/internal/app/domain/business"
	"github.com/gestly/gestly/internal/app/services/businesses"
	"github.com/gestly/gestly/internal/middleware"
)

func (h *handler) listBusinesses(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Businesses.ListByOwner(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) createBusiness(w http.ResponseWriter, r *http.Request) {
	var in businesses.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.app.Businesses.Create(r.Context(), middleware.UserID(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *handler) getBusiness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentBusiness(r))
}

func (h *handler) updateBusiness(w http.ResponseWriter, r *http.Request) {
	var in businesses.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.app.Businesses.Update(r.Context(), currentBusiness(r).ID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *handler) getPlan(w http.ResponseWriter, r *http.Request) {
	b := currentBusiness(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"plan":                h.app.Businesses.PlanFor(b),
		"subscription_status": b.SubscriptionStatus,
	})
}

func (h *handler) listSpecialDays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := h.app.Businesses.ListSpecialDays(r.Context(), currentBusiness(r).ID, q.Get("from"), q.Get("to"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (h *handler) putSpecialDay(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Closed bool   `json:"closed"`
		Open   string `json:"open"`
		Close  string `json:"close"`
		Note   string `json:"note"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	day, err := h.app.Businesses.SetSpecialDay(r.Context(), business.SpecialDay{
		BusinessID: currentBusiness(r).ID,
		Date:       mux.Vars(r)["date"],
		Closed:     payload.Closed,
		Open:       payload.Open,
		Close:      payload.Close,
		Note:       payload.Note,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (h *handler) deleteSpecialDay(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Businesses.DeleteSpecialDay(r.Context(), currentBusiness(r).ID, mux.Vars(r)["date"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
