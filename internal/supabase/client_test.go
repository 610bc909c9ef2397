package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestExecuteBuildsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/customers", r.URL.Path)
		assert.Equal(t, "eq.b1", r.URL.Query().Get("business_id"))
		assert.Equal(t, "name.asc", r.URL.Query().Get("order"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]row{{ID: "c1", Name: "Ana"}})
	}))
	defer srv.Close()

	client, err := New(Config{URL: srv.URL, APIKey: "service-key"})
	require.NoError(t, err)

	var rows []row
	err = client.From("customers").Select("*").Eq("business_id", "b1").Order("name", true).Limit(1).Execute(context.Background(), &rows)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ana", rows[0].Name)
}

func TestInsertSetsPreferHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		var in row
		json.NewDecoder(r.Body).Decode(&in)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]row{in})
	}))
	defer srv.Close()

	client, _ := New(Config{URL: srv.URL, APIKey: "k"})
	var out []row
	require.NoError(t, client.From("customers").Insert(context.Background(), row{ID: "c9", Name: "Bia"}, &out))
	assert.Equal(t, "c9", out[0].ID)
}

func TestErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"23505","message":"duplicate key value"}`))
	}))
	defer srv.Close()

	client, _ := New(Config{URL: srv.URL, APIKey: "k"})
	err := client.From("customers").Insert(context.Background(), row{}, nil)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.Conflict())
	assert.Contains(t, err.Error(), "duplicate key")
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{APIKey: "k"})
	assert.Error(t, err)
	_, err = New(Config{URL: "not a url", APIKey: "k"})
	assert.Error(t, err)
	_, err = New(Config{URL: "https://x.supabase.co"})
	assert.Error(t, err)
}
