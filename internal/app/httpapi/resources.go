package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gestly/gestly/internal/app/domain/attendant"
	"github.com/gestly/gestly/internal/app/domain/catalog"
	"github.com/gestly/gestly/internal/app/domain/customer"
	"github.com/gestly/gestly/internal/app/events"
	"github.com/gestly/gestly/internal/app/services"
)

type customerPayload struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birth_date"`
	Notes     string `json:"notes"`
}

func (p customerPayload) customer(businessID, id string) customer.Customer {
	return customer.Customer{
		ID:         id,
		BusinessID: businessID,
		Name:       p.Name,
		Email:      p.Email,
		Phone:      p.Phone,
		BirthDate:  p.BirthDate,
		Notes:      p.Notes,
	}
}

func (h *handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Customers.List(r.Context(), currentBusiness(r).ID, r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var payload customerPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	b := currentBusiness(r)
	c, err := h.app.Customers.Create(r.Context(), payload.customer(b.ID, ""))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.app.Events.Publish(r.Context(), b.ID, events.CustomerCreated, c)
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Customers.Get(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var payload customerPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	b := currentBusiness(r)
	c, err := h.app.Customers.Update(r.Context(), b.ID, payload.customer(b.ID, mux.Vars(r)["id"]))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Customers.Delete(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type servicePayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	PriceCents  int    `json:"price_cents"`
}

func (p servicePayload) service(businessID, id string) catalog.Service {
	return catalog.Service{
		ID:          id,
		BusinessID:  businessID,
		Name:        p.Name,
		Description: p.Description,
		Duration:    p.Duration,
		PriceCents:  p.PriceCents,
	}
}

type activePayload struct {
	Active bool `json:"active"`
}

func (h *handler) listServices(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Catalog.List(r.Context(), currentBusiness(r).ID, r.URL.Query().Get("active") == "true")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) createService(w http.ResponseWriter, r *http.Request) {
	var payload servicePayload
	if err := decodeJSON(r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	svc, err := h.app.Catalog.Create(r.Context(), payload.service(currentBusiness(r).ID, ""))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (h *handler) getService(w http.ResponseWriter, r *http.Request) {
	svc, err := h.app.Catalog.Get(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (h *handler) updateService(w http.ResponseWriter, r *http.Request) {
	var payload servicePayload
	if err := decodeJSON(r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	b := currentBusiness(r)
	svc, err := h.app.Catalog.Update(r.Context(), b.ID, payload.service(b.ID, mux.Vars(r)["id"]))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (h *handler) setServiceActive(w http.ResponseWriter, r *http.Request) {
	var payload activePayload
	if err := decodeJSON(r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	svc, err := h.app.Catalog.SetActive(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"], payload.Active)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

type attendantPayload struct {
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	CommissionBps int      `json:"commission_bps"`
	ServiceIDs    []string `json:"service_ids"`
}

func (p attendantPayload) attendant(businessID, id string) attendant.Attendant {
	return attendant.Attendant{
		ID:            id,
		BusinessID:    businessID,
		Name:          p.Name,
		Email:         p.Email,
		Phone:         p.Phone,
		CommissionBps: p.CommissionBps,
		ServiceIDs:    p.ServiceIDs,
	}
}

func (h *handler) listAttendants(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Attendants.List(r.Context(), currentBusiness(r).ID, r.URL.Query().Get("active") == "true")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) createAttendant(w http.ResponseWriter, r *http.Request) {
	var payload attendantPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.app.Attendants.Create(r.Context(), payload.attendant(currentBusiness(r).ID, ""))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *handler) getAttendant(w http.ResponseWriter, r *http.Request) {
	a, err := h.app.Attendants.Get(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handler) updateAttendant(w http.ResponseWriter, r *http.Request) {
	var payload attendantPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	b := currentBusiness(r)
	a, err := h.app.Attendants.Update(r.Context(), b.ID, payload.attendant(b.ID, mux.Vars(r)["id"]))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handler) setAttendantActive(w http.ResponseWriter, r *http.Request) {
	var payload activePayload
	if err := decodeJSON(r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.app.Attendants.SetActive(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"], payload.Active)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handler) commissionReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	report, err := h.app.Attendants.CommissionReport(r.Context(), currentBusiness(r).ID, from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// parseRange reads optional RFC 3339 "from" and "to" query parameters.
func parseRange(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, services.Invalid("from must be RFC 3339")
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, services.Invalid("to must be RFC 3339")
		}
		to = t
	}
	return from, to, nil
}
