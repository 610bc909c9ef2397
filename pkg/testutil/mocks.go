// Package testutil provides shared fakes for outbound integrations.
package testutil

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gestly/gestly/internal/app/domain/integration"
	"github.com/gestly/gestly/internal/httputil"
)

// ErrNoGateway is returned by MockMessenger when no gateway is configured.
var ErrNoGateway = errors.New("no messaging gateway configured")

// Post is one request captured by RecordingPoster.
type Post struct {
	URL     string
	Body    []byte
	Headers map[string]string
}

// RecordingPoster implements integrations.Poster and records every call.
type RecordingPoster struct {
	mu       sync.Mutex
	posts    []Post
	Response httputil.Response
	Err      error
}

// NewRecordingPoster returns a poster that answers 200 with an empty object.
func NewRecordingPoster() *RecordingPoster {
	return &RecordingPoster{Response: httputil.Response{StatusCode: http.StatusOK, Body: []byte(`{}`)}}
}

// PostJSON records the call and returns the configured response.
func (p *RecordingPoster) PostJSON(_ context.Context, url string, body []byte, headers map[string]string) (httputil.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	p.posts = append(p.posts, Post{URL: url, Body: append([]byte(nil), body...), Headers: h})
	return p.Response, p.Err
}

// Posts returns a copy of the recorded calls.
func (p *RecordingPoster) Posts() []Post {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Post(nil), p.posts...)
}

// WaitForPosts blocks until at least n calls were recorded. Deliveries run
// asynchronously from the event hub.
func (p *RecordingPoster) WaitForPosts(t testing.TB, n int, timeout time.Duration) []Post {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		posts := p.Posts()
		if len(posts) >= n {
			return posts
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d posts, got %d", n, len(posts))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// MockMessenger fakes the messaging side of the integrations service.
type MockMessenger struct {
	mu sync.Mutex
	// None makes Messenger report that no gateway is configured.
	None bool
	// Fail lists recipients the gateway rejects.
	Fail map[string]bool
	// OnSend runs after each accepted message, outside the lock.
	OnSend func(msg integration.Message)
	sent   []integration.Message
}

// Get returns an active messaging gateway with the given id.
func (m *MockMessenger) Get(_ context.Context, businessID, id string) (integration.Integration, error) {
	return integration.Integration{ID: id, BusinessID: businessID, Kind: integration.KindMessaging, Active: true}, nil
}

// Messenger returns the default gateway of the business.
func (m *MockMessenger) Messenger(_ context.Context, businessID, _ string) (integration.Integration, error) {
	if m.None {
		return integration.Integration{}, ErrNoGateway
	}
	return integration.Integration{ID: "gw", BusinessID: businessID, Kind: integration.KindMessaging, Active: true}, nil
}

// Send records msg unless its recipient is listed in Fail.
func (m *MockMessenger) Send(_ context.Context, i integration.Integration, msg integration.Message) (integration.Delivery, error) {
	m.mu.Lock()
	if m.Fail[msg.To] {
		m.mu.Unlock()
		return integration.Delivery{}, errors.New("gateway rejected recipient")
	}
	m.sent = append(m.sent, msg)
	hook := m.OnSend
	m.mu.Unlock()
	if hook != nil {
		hook(msg)
	}
	return integration.Delivery{IntegrationID: i.ID, StatusCode: http.StatusOK}, nil
}

// Sent returns a copy of the delivered messages.
func (m *MockMessenger) Sent() []integration.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]integration.Message(nil), m.sent...)
}
