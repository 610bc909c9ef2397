// Package events fans business events out to realtime subscribers and
// outbound sinks such as webhook integrations.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gestly/gestly/internal/app/domain/integration"
	"github.com/gestly/gestly/pkg/logger"
)

// Event types published by the services.
const (
	AppointmentCreated     = "appointment.created"
	AppointmentRescheduled = "appointment.rescheduled"
	AppointmentConfirmed   = "appointment.confirmed"
	AppointmentCancelled   = "appointment.cancelled"
	AppointmentNoShow      = "appointment.no_show"
	AppointmentCompleted   = "appointment.completed"
	CustomerCreated        = "customer.created"
	CampaignSent           = "campaign.sent"
	Ping                   = "ping"
)

// Sink receives every published event.
type Sink interface {
	HandleEvent(ctx context.Context, evt integration.Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, evt integration.Event)

// HandleEvent calls f.
func (f SinkFunc) HandleEvent(ctx context.Context, evt integration.Event) { f(ctx, evt) }

type subscriber struct {
	id         int64
	businessID string
	ch         chan integration.Event
}

// Hub is an in-process publish/subscribe bus keyed by business.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int64]*subscriber
	sinks   []Sink
	recent  []integration.Event
	size    int
	head    int
	count   int
	nextID  int64
	closed  bool
	wg      sync.WaitGroup
	timeout time.Duration
	log     *logger.Logger
}

// NewHub creates a hub that remembers the last size events.
func NewHub(size int, log *logger.Logger) *Hub {
	if size <= 0 {
		size = 256
	}
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &Hub{
		subs:    make(map[int64]*subscriber),
		recent:  make([]integration.Event, size),
		size:    size,
		timeout: 30 * time.Second,
		log:     log,
	}
}

// AddSink registers a sink. Sinks run on their own goroutine per event.
func (h *Hub) AddSink(s Sink) {
	h.mu.Lock()
	h.sinks = append(h.sinks, s)
	h.mu.Unlock()
}

// Publish records an event for the business and notifies everyone listening.
func (h *Hub) Publish(ctx context.Context, businessID, eventType string, data any) {
	evt := integration.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		BusinessID: businessID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.recent[h.head] = evt
	h.head = (h.head + 1) % h.size
	if h.count < h.size {
		h.count++
	}
	// Sends stay under the lock so unsubscribe cannot close a channel
	// between selection and delivery.
	dropped := 0
	for _, s := range h.subs {
		if s.businessID != businessID {
			continue
		}
		select {
		case s.ch <- evt:
		default:
			dropped++
		}
	}
	sinks := append([]Sink(nil), h.sinks...)
	h.wg.Add(len(sinks))
	h.mu.Unlock()

	if dropped > 0 {
		h.log.WithField("business_id", businessID).
			WithField("event", eventType).
			WithField("dropped", dropped).
			Warn("subscriber too slow, event dropped")
	}

	// Sinks outlive the request that triggered them.
	base := context.WithoutCancel(ctx)
	for _, sink := range sinks {
		go func(sink Sink) {
			defer h.wg.Done()
			sctx, cancel := context.WithTimeout(base, h.timeout)
			defer cancel()
			sink.HandleEvent(sctx, evt)
		}(sink)
	}
}

// Subscribe streams events of one business. The returned function
// unsubscribes and closes the channel.
func (h *Hub) Subscribe(businessID string, buffer int) (<-chan integration.Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &subscriber{id: h.nextID, businessID: businessID, ch: make(chan integration.Event, buffer)}
	if h.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subs[sub.id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[sub.id]; ok {
				delete(h.subs, sub.id)
				close(sub.ch)
			}
		})
	}
}

// Recent returns up to n of the latest events of a business, oldest first.
func (h *Hub) Recent(businessID string, n int) []integration.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var result []integration.Event
	for i := 0; i < h.count; i++ {
		idx := (h.head - h.count + i + h.size) % h.size
		if evt := h.recent[idx]; evt.BusinessID == businessID {
			result = append(result, evt)
		}
	}
	if n > 0 && len(result) > n {
		result = result[len(result)-n:]
	}
	return result
}

// Close stops accepting events, closes subscriber channels and waits for
// in-flight sink deliveries.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for id, s := range h.subs {
		close(s.ch)
		delete(h.subs, id)
	}
	h.mu.Unlock()
	h.wg.Wait()
}
