// Package httpapi exposes the dashboard API, the public booking API, the
// Stripe webhook and the realtime event stream over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	app "github.com/gestly/gestly/internal/app"
	"github.com/gestly/gestly/internal/app/domain/business"
	"github.com/gestly/gestly/internal/app/metrics"
	"github.com/gestly/gestly/internal/app/services"
	"github.com/gestly/gestly/internal/middleware"
	"github.com/gestly/gestly/internal/ratelimit"
	"github.com/gestly/gestly/pkg/logger"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Options configures the HTTP surfaces.
type Options struct {
	// JWTSecret verifies Supabase access tokens on dashboard routes.
	JWTSecret   string
	CORSOrigins []string
	// Limiter throttles the public API. Nil disables rate limiting.
	Limiter      ratelimit.Limiter
	AuditLogPath string
	Version      string
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app     *app.Application
	opts    Options
	log     *logger.Logger
	audit   *auditLog
	started time.Time
}

// NewHandler returns the root router.
func NewHandler(application *app.Application, opts Options, log *logger.Logger) (http.Handler, error) {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	sink, err := newFileAuditSink(opts.AuditLogPath)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	var auditSinkIface auditSink
	if sink != nil {
		auditSinkIface = sink
	}
	h := &handler{
		app:     application,
		opts:    opts,
		log:     log,
		audit:   newAuditLog(500, auditSinkIface),
		started: time.Now(),
	}

	r := mux.NewRouter()
	r.StrictSlash(false)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/webhooks/stripe", h.stripeWebhook).Methods(http.MethodPost)

	h.dashboardRoutes(r.PathPrefix("/v1/businesses").Subrouter())
	h.publicRoutes(r.PathPrefix("/v1/public").Subrouter())

	var root http.Handler = r
	root = metrics.InstrumentHandler(root)
	root = middleware.NewCORSMiddleware(opts.CORSOrigins).Handler(root)
	root = middleware.Logging(log.Component("http"))(root)
	return root, nil
}

func (h *handler) dashboardRoutes(r *mux.Router) {
	r.Use(middleware.NewSupabaseAuth(h.opts.JWTSecret, h.log.Component("auth")).Handler)
	r.Use(h.auditMiddleware)

	r.HandleFunc("", h.listBusinesses).Methods(http.MethodGet)
	r.HandleFunc("", h.createBusiness).Methods(http.MethodPost)

	b := r.PathPrefix("/{businessID}").Subrouter()
	b.Use(h.tenantMiddleware)
	b.HandleFunc("", h.getBusiness).Methods(http.MethodGet)
	b.HandleFunc("", h.updateBusiness).Methods(http.MethodPatch, http.MethodPut)
	b.HandleFunc("/plan", h.getPlan).Methods(http.MethodGet)
	b.HandleFunc("/special-days", h.listSpecialDays).Methods(http.MethodGet)
	b.HandleFunc("/special-days/{date}", h.putSpecialDay).Methods(http.MethodPut)
	b.HandleFunc("/special-days/{date}", h.deleteSpecialDay).Methods(http.MethodDelete)

	b.HandleFunc("/customers", h.listCustomers).Methods(http.MethodGet)
	b.HandleFunc("/customers", h.createCustomer).Methods(http.MethodPost)
	b.HandleFunc("/customers/{id}", h.getCustomer).Methods(http.MethodGet)
	b.HandleFunc("/customers/{id}", h.updateCustomer).Methods(http.MethodPatch, http.MethodPut)
	b.HandleFunc("/customers/{id}", h.deleteCustomer).Methods(http.MethodDelete)
	b.HandleFunc("/customers/{id}/appointments", h.customerAppointments).Methods(http.MethodGet)
	b.HandleFunc("/customers/{id}/loyalty", h.loyaltyHistory).Methods(http.MethodGet)
	b.HandleFunc("/customers/{id}/loyalty/adjust", h.loyaltyAdjust).Methods(http.MethodPost)
	b.HandleFunc("/customers/{id}/loyalty/quote", h.loyaltyQuote).Methods(http.MethodGet)

	b.HandleFunc("/services", h.listServices).Methods(http.MethodGet)
	b.HandleFunc("/services", h.createService).Methods(http.MethodPost)
	b.HandleFunc("/services/{id}", h.getService).Methods(http.MethodGet)
	b.HandleFunc("/services/{id}", h.updateService).Methods(http.MethodPatch, http.MethodPut)
	b.HandleFunc("/services/{id}/active", h.setServiceActive).Methods(http.MethodPut)

	b.HandleFunc("/attendants", h.listAttendants).Methods(http.MethodGet)
	b.HandleFunc("/attendants", h.createAttendant).Methods(http.MethodPost)
	b.HandleFunc("/attendants/{id}", h.getAttendant).Methods(http.MethodGet)
	b.HandleFunc("/attendants/{id}", h.updateAttendant).Methods(http.MethodPatch, http.MethodPut)
	b.HandleFunc("/attendants/{id}/active", h.setAttendantActive).Methods(http.MethodPut)
	b.HandleFunc("/commissions", h.commissionReport).Methods(http.MethodGet)

	b.HandleFunc("/availability", h.availability).Methods(http.MethodGet)
	b.HandleFunc("/appointments", h.listAppointments).Methods(http.MethodGet)
	b.HandleFunc("/appointments", h.bookAppointment).Methods(http.MethodPost)
	b.HandleFunc("/appointments/{id}", h.getAppointment).Methods(http.MethodGet)
	b.HandleFunc("/appointments/{id}/reschedule", h.rescheduleAppointment).Methods(http.MethodPost)
	b.HandleFunc("/appointments/{id}/{action:confirm|cancel|no-show|complete}", h.appointmentAction).Methods(http.MethodPost)

	b.HandleFunc("/campaigns", h.listCampaigns).Methods(http.MethodGet)
	b.HandleFunc("/campaigns", h.createCampaign).Methods(http.MethodPost)
	b.HandleFunc("/campaigns/{id}", h.getCampaign).Methods(http.MethodGet)
	b.HandleFunc("/campaigns/{id}", h.updateCampaign).Methods(http.MethodPatch, http.MethodPut)
	b.HandleFunc("/campaigns/{id}/schedule", h.scheduleCampaign).Methods(http.MethodPost)
	b.HandleFunc("/campaigns/{id}/cancel", h.cancelCampaign).Methods(http.MethodPost)
	b.HandleFunc("/campaigns/{id}/preview", h.previewCampaign).Methods(http.MethodGet)

	b.HandleFunc("/integrations", h.listIntegrations).Methods(http.MethodGet)
	b.HandleFunc("/integrations", h.createIntegration).Methods(http.MethodPost)
	b.HandleFunc("/integrations/{id}", h.getIntegration).Methods(http.MethodGet)
	b.HandleFunc("/integrations/{id}", h.updateIntegration).Methods(http.MethodPatch, http.MethodPut)
	b.HandleFunc("/integrations/{id}", h.deleteIntegration).Methods(http.MethodDelete)
	b.HandleFunc("/integrations/{id}/test", h.testIntegration).Methods(http.MethodPost)

	b.HandleFunc("/api-keys", h.listAPIKeys).Methods(http.MethodGet)
	b.HandleFunc("/api-keys", h.createAPIKey).Methods(http.MethodPost)
	b.HandleFunc("/api-keys/{id}", h.revokeAPIKey).Methods(http.MethodDelete)

	b.HandleFunc("/events", h.recentEvents).Methods(http.MethodGet)
	b.HandleFunc("/realtime", h.realtime).Methods(http.MethodGet)
	b.HandleFunc("/audit", h.auditEntries).Methods(http.MethodGet)
}

type businessKey struct{}

// tenantMiddleware resolves {businessID} and checks ownership.
func (h *handler) tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["businessID"]
		b, err := h.app.Businesses.Authorize(r.Context(), id, middleware.UserID(r.Context()))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), businessKey{}, b)))
	})
}

func currentBusiness(r *http.Request) business.Business {
	b, _ := r.Context().Value(businessKey{}).(business.Business)
	return b
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrPlanLimit):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrSlotUnavailable):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// fail writes err with its mapped status. Internal errors are logged and
// replaced by a generic message.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).
			WithField("request_id", middleware.RequestID(r.Context())).
			WithField("path", r.URL.Path).
			Error("request failed")
		writeError(w, status, errors.New(http.StatusText(status)))
		return
	}
	writeError(w, status, err)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", services.ErrInvalidInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
