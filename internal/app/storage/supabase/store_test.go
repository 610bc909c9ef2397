package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestly/gestly/internal/app/domain/apikey"
	"github.com/gestly/gestly/internal/app/domain/attendant"
	"github.com/gestly/gestly/internal/app/domain/campaign"
	"github.com/gestly/gestly/internal/app/domain/customer"
	"github.com/gestly/gestly/internal/app/domain/loyalty"
	"github.com/gestly/gestly/internal/app/storage"
	"github.com/gestly/gestly/internal/supabase"
)

func newStore(t *testing.T, h http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client, err := supabase.New(supabase.Config{URL: srv.URL, APIKey: "service"})
	require.NoError(t, err)
	return New(client)
}

func TestCreateAttendantSendsColumns(t *testing.T) {
	var body map[string]any
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/attendants", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]map[string]any{body})
	})

	a, err := store.CreateAttendant(context.Background(), attendant.Attendant{BusinessID: "b1", Name: "Bia", CommissionBps: 4000})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "Bia", body["name"])
	assert.Equal(t, float64(4000), body["commission_bps"])
	assert.Equal(t, []any{}, body["service_ids"])
}

func TestFindCustomerByContactUsesOr(t *testing.T) {
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.b1", r.URL.Query().Get("business_id"))
		assert.Equal(t, `(email.eq."ana@x.test",phone.eq."+5511")`, r.URL.Query().Get("or"))
		json.NewEncoder(w).Encode([]customer.Customer{{ID: "c1", BusinessID: "b1", Email: "ana@x.test"}})
	})

	c, err := store.FindCustomerByContact(context.Background(), "b1", "ana@x.test", "+5511")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
}

func TestUpdateMissingRow(t *testing.T) {
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.x", r.URL.Query().Get("id"))
		w.Write([]byte("[]"))
	})

	_, err := store.UpdateCustomer(context.Background(), customer.Customer{ID: "x", Name: "n"})
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
}

func TestConflictMapped(t *testing.T) {
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"23505","message":"duplicate"}`))
	})

	_, err := store.CreateCustomer(context.Background(), customer.Customer{BusinessID: "b1", Name: "Ana"})
	assert.True(t, errors.Is(err, storage.ErrConflict), "got %v", err)
}

func TestAPIKeyHashRoundTrip(t *testing.T) {
	var body map[string]any
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewDecoder(r.Body).Decode(&body)
			json.NewEncoder(w).Encode([]map[string]any{body})
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{{"id": "k1", "hash": "abc", "business_id": "b1"}})
	})

	_, err := store.CreateAPIKey(context.Background(), apikey.APIKey{BusinessID: "b1", Name: "site", Hash: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "abc", body["hash"])

	k, err := store.GetAPIKeyByHash(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", k.Hash)
	assert.Equal(t, "b1", k.BusinessID)
}

func TestColumnsSkipsNested(t *testing.T) {
	row := columns(customer.Customer{ID: "c1", Name: "Ana"}, "id")
	_, hasID := row["id"]
	assert.False(t, hasID)
	assert.Equal(t, "Ana", row["name"])
	assert.Contains(t, row, "last_visit_at")
	for k := range row {
		assert.NotContains(t, k, ".")
	}
}

func TestUpdateCustomerLeavesBalanceAlone(t *testing.T) {
	var body map[string]any
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode([]customer.Customer{{ID: "c1", Name: "Ana", LoyaltyPoints: 70}})
	})

	got, err := store.UpdateCustomer(context.Background(), customer.Customer{ID: "c1", Name: "Ana", LoyaltyPoints: 0})
	require.NoError(t, err)
	assert.Equal(t, 70, got.LoyaltyPoints)
	assert.NotContains(t, body, "loyalty_points")
	assert.NotContains(t, body, "last_visit_at")
	assert.Equal(t, "Ana", body["name"])
}

func TestApplyLoyaltyTransactionCallsRPC(t *testing.T) {
	var params map[string]any
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/rpc/apply_loyalty_transaction", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		json.NewEncoder(w).Encode([]loyalty.Transaction{{ID: "t1", CustomerID: "c1", Type: loyalty.TypeEarn, Points: 50, BalanceAfter: 120}})
	})

	tx, err := store.ApplyLoyaltyTransaction(context.Background(), loyalty.Transaction{
		BusinessID: "b1", CustomerID: "c1", AppointmentID: "ap1", Type: loyalty.TypeEarn, Points: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, 120, tx.BalanceAfter)
	assert.Equal(t, "c1", params["p_customer_id"])
	assert.Equal(t, "ap1", params["p_appointment_id"])
	assert.Equal(t, float64(50), params["p_points"])
	assert.NotEmpty(t, params["p_id"])
}

func TestApplyLoyaltyTransactionErrors(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		want   error
	}{
		"negative":  {http.StatusBadRequest, `{"code":"23514","message":"check violation"}`, storage.ErrNegativeBalance},
		"missing":   {http.StatusNotFound, `{"code":"P0002","message":"customer c1 not found"}`, storage.ErrNotFound},
		"duplicate": {http.StatusConflict, `{"code":"23505","message":"duplicate"}`, storage.ErrConflict},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})
			_, err := store.ApplyLoyaltyTransaction(context.Background(), loyalty.Transaction{CustomerID: "c1", Type: loyalty.TypeRedeem, Points: -10})
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestMarkReminderSentIsGuarded(t *testing.T) {
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.ap1", q.Get("id"))
		assert.Equal(t, "is.null", q.Get("reminder_sent_at"))
		assert.Equal(t, "in.(scheduled,confirmed)", q.Get("status"))
		w.Write([]byte("[]"))
	})

	ok, err := store.MarkReminderSent(context.Background(), "ap1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransitionCampaignConflict(t *testing.T) {
	store := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPatch:
			assert.Equal(t, "in.(scheduled)", r.URL.Query().Get("status"))
			w.Write([]byte("[]"))
		default:
			json.NewEncoder(w).Encode([]campaign.Campaign{{ID: "cp1", Status: campaign.StatusCancelled}})
		}
	})

	_, err := store.TransitionCampaign(context.Background(), campaign.Campaign{ID: "cp1", Status: campaign.StatusSending}, campaign.StatusScheduled)
	assert.True(t, errors.Is(err, storage.ErrConflict), "got %v", err)
}
