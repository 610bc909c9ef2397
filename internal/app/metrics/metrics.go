package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gestly"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Appointment lifecycle transitions by resulting status and source.",
		},
		[]string{"status", "source"},
	)

	availabilityDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "compute_duration_seconds",
			Help:      "Time spent computing availability slots for one day.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10),
		},
	)

	loyaltyPoints = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loyalty",
			Name:      "points_total",
			Help:      "Loyalty points moved, by transaction type.",
		},
		[]string{"type"},
	)

	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "integrations",
			Name:      "deliveries_total",
			Help:      "Outbound webhook and messaging deliveries.",
		},
		[]string{"kind", "success"},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "public_api",
			Name:      "rate_limited_total",
			Help:      "Public API requests rejected by the rate limiter.",
		},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Background job runs.",
		},
		[]string{"job", "success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		bookings,
		availabilityDuration,
		loyaltyPoints,
		deliveries,
		rateLimited,
		jobRuns,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordAppointment counts an appointment reaching status.
func RecordAppointment(status, source string) {
	if source == "" {
		source = "dashboard"
	}
	bookings.WithLabelValues(status, source).Inc()
}

// ObserveAvailability records how long a slot computation took.
func ObserveAvailability(d time.Duration) {
	availabilityDuration.Observe(d.Seconds())
}

// RecordLoyaltyPoints adds the absolute number of points moved.
func RecordLoyaltyPoints(typ string, points int) {
	if points < 0 {
		points = -points
	}
	loyaltyPoints.WithLabelValues(typ).Add(float64(points))
}

// RecordDelivery counts an outbound integration call.
func RecordDelivery(kind string, success bool) {
	deliveries.WithLabelValues(kind, strconv.FormatBool(success)).Inc()
}

// RecordRateLimited counts a rejected public API request.
func RecordRateLimited() {
	rateLimited.Inc()
}

// RecordJobRun counts a background job execution.
func RecordJobRun(job string, success bool) {
	jobRuns.WithLabelValues(job, strconv.FormatBool(success)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Hijack lets websocket upgrades through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// canonicalPath collapses identifiers so label cardinality stays bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch {
	case len(parts) >= 2 && parts[0] == "v1" && parts[1] == "businesses":
		switch len(parts) {
		case 2:
			return "/v1/businesses"
		case 3:
			return "/v1/businesses/:business"
		default:
			return "/v1/businesses/:business/" + parts[3]
		}
	case len(parts) >= 3 && parts[0] == "v1" && parts[1] == "public":
		return "/v1/public/" + parts[2]
	case parts[0] == "v1" && len(parts) >= 2:
		return "/v1/" + parts[1]
	}
	return "/" + parts[0]
}
