package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gestly/gestly/internal/app/domain/apikey"
	"github.com/gestly/gestly/internal/app/domain/appointment"
	"github.com/gestly/gestly/internal/app/domain/customer"
	"github.com/gestly/gestly/internal/app/services/appointments"
	"github.com/gestly/gestly/internal/middleware"
)

func (h *handler) publicRoutes(r *mux.Router) {
	r.Use(middleware.APIKeyAuth(h.app.APIKeys, h.log.Component("apikey")))
	if h.opts.Limiter != nil {
		r.Use(middleware.RateLimit(h.opts.Limiter, h.log.Component("ratelimit")))
	}

	read := middleware.RequireScope(apikey.ScopeRead)
	write := middleware.RequireScope(apikey.ScopeWrite)

	r.Handle("/services", read(http.HandlerFunc(h.publicServices))).Methods(http.MethodGet)
	r.Handle("/attendants", read(http.HandlerFunc(h.publicAttendants))).Methods(http.MethodGet)
	r.Handle("/availability", read(http.HandlerFunc(h.publicAvailability))).Methods(http.MethodGet)
	r.Handle("/appointments", write(http.HandlerFunc(h.publicBook))).Methods(http.MethodPost)
	r.Handle("/appointments/{id}", read(http.HandlerFunc(h.publicAppointment))).Methods(http.MethodGet)
	r.Handle("/appointments/{id}/cancel", write(http.HandlerFunc(h.publicCancel))).Methods(http.MethodPost)
}

func keyBusiness(r *http.Request) string {
	k, _ := middleware.APIKey(r.Context())
	return k.BusinessID
}

func (h *handler) publicServices(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Catalog.List(r.Context(), keyBusiness(r), true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// publicAttendant hides contact details and commission rates.
type publicAttendant struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ServiceIDs []string `json:"service_ids"`
}

func (h *handler) publicAttendants(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Attendants.List(r.Context(), keyBusiness(r), true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]publicAttendant, 0, len(list))
	for _, a := range list {
		ids := []string(a.ServiceIDs)
		if ids == nil {
			ids = []string{}
		}
		out = append(out, publicAttendant{ID: a.ID, Name: a.Name, ServiceIDs: ids})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) publicAvailability(w http.ResponseWriter, r *http.Request) {
	q := availabilityQuery(r)
	slots, err := h.app.Availability.Compute(r.Context(), keyBusiness(r), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": q.Date, "service_id": q.ServiceID, "slots": slots})
}

func (h *handler) publicBook(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Customer    customer.Contact `json:"customer"`
		ServiceID   string           `json:"service_id"`
		AttendantID string           `json:"attendant_id"`
		StartAt     time.Time        `json:"start_at"`
		Notes       string           `json:"notes"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	contact := payload.Customer
	appt, err := h.app.Appointments.Book(r.Context(), keyBusiness(r), appointment.SourceAPI, appointments.BookInput{
		Customer:    &contact,
		ServiceID:   payload.ServiceID,
		AttendantID: payload.AttendantID,
		StartAt:     payload.StartAt,
		Notes:       payload.Notes,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (h *handler) publicAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.app.Appointments.Get(r.Context(), keyBusiness(r), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *handler) publicCancel(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &payload); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	appt, err := h.app.Appointments.Cancel(r.Context(), keyBusiness(r), mux.Vars(r)["id"], payload.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}
