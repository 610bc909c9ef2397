package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/gestly/gestly/internal/app/domain/appointment"
	"github.com/gestly/gestly/internal/app/services"
	"github.com/gestly/gestly/internal/app/services/appointments"
	"github.com/gestly/gestly/internal/app/services/availability"
)

func availabilityQuery(r *http.Request) availability.Query {
	q := r.URL.Query()
	return availability.Query{
		ServiceID:   q.Get("service_id"),
		Date:        q.Get("date"),
		AttendantID: q.Get("attendant_id"),
	}
}

func (h *handler) availability(w http.ResponseWriter, r *http.Request) {
	q := availabilityQuery(r)
	slots, err := h.app.Availability.Compute(r.Context(), currentBusiness(r).ID, q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": q.Date, "service_id": q.ServiceID, "slots": slots})
}

func (h *handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	list, err := h.app.Appointments.List(r.Context(), currentBusiness(r).ID, appointment.Filter{
		From:        from,
		To:          to,
		AttendantID: q.Get("attendant_id"),
		Status:      appointment.Status(q.Get("status")),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var in appointments.BookInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	appt, err := h.app.Appointments.Book(r.Context(), currentBusiness(r).ID, appointment.SourceDashboard, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (h *handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.app.Appointments.Get(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *handler) rescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	var in appointments.RescheduleInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	appt, err := h.app.Appointments.Reschedule(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"], in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *handler) appointmentAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	businessID, id := currentBusiness(r).ID, vars["id"]

	var (
		appt appointment.Appointment
		err  error
	)
	switch vars["action"] {
	case "confirm":
		appt, err = h.app.Appointments.Confirm(r.Context(), businessID, id)
	case "cancel":
		var payload struct {
			Reason string `json:"reason"`
		}
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &payload); err != nil {
				h.fail(w, r, err)
				return
			}
		}
		appt, err = h.app.Appointments.Cancel(r.Context(), businessID, id, payload.Reason)
	case "no-show":
		appt, err = h.app.Appointments.MarkNoShow(r.Context(), businessID, id)
	case "complete":
		appt, err = h.app.Appointments.Complete(r.Context(), businessID, id)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *handler) customerAppointments(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Appointments.ListByCustomer(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) loyaltyHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.app.Loyalty.History(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *handler) loyaltyAdjust(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Delta int    `json:"delta"`
		Note  string `json:"note"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.fail(w, r, err)
		return
	}
	tx, err := h.app.Loyalty.Adjust(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"], payload.Delta, payload.Note)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// loyaltyQuote previews a redemption: ?price_cents=&points=.
func (h *handler) loyaltyQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	price, err := strconv.Atoi(q.Get("price_cents"))
	if err != nil {
		h.fail(w, r, services.Invalid("price_cents must be an integer"))
		return
	}
	points, err := strconv.Atoi(q.Get("points"))
	if err != nil {
		h.fail(w, r, services.Invalid("points must be an integer"))
		return
	}
	quote, err := h.app.Loyalty.Quote(r.Context(), currentBusiness(r).ID, mux.Vars(r)["id"], price, points)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *handler) recentEvents(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if n <= 0 {
		n = 50
	}
	writeJSON(w, http.StatusOK, h.app.Events.Recent(currentBusiness(r).ID, n))
}

func parseTime(v, field string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, services.Invalid("%s must be RFC 3339", field)
	}
	return t, nil
}
