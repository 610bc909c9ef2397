// Package supabase is a small PostgREST client for the hosted Supabase
// database. It covers the table operations the Gestly stores need.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a Supabase REST API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Config holds client configuration.
type Config struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
}

// New creates a new Supabase client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("APIKey is required")
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("URL must be absolute, got %q", cfg.URL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}, nil
}

// From starts a query builder for a table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{client: c, table: table}
}

// RPC calls a database function through /rest/v1/rpc/{fn} and decodes the
// result into dest.
func (c *Client) RPC(ctx context.Context, fn string, params any, dest any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal rpc params: %w", err)
	}
	reqURL := fmt.Sprintf("%s/rest/v1/rpc/%s", c.baseURL, url.PathEscape(fn))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, dest)
}

// QueryBuilder builds PostgREST queries.
type QueryBuilder struct {
	client     *Client
	table      string
	columns    string
	filters    url.Values
	orders     []string
	limit      int
	onConflict string
}

func (q *QueryBuilder) filter(column, op string, value any) *QueryBuilder {
	if q.filters == nil {
		q.filters = url.Values{}
	}
	q.filters.Add(column, fmt.Sprintf("%s.%v", op, value))
	return q
}

// Select specifies columns to select.
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

// Eq adds an equality filter.
func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder { return q.filter(column, "eq", value) }

// Neq adds a not-equal filter.
func (q *QueryBuilder) Neq(column string, value any) *QueryBuilder { return q.filter(column, "neq", value) }

// Gte adds a greater-than-or-equal filter.
func (q *QueryBuilder) Gte(column string, value any) *QueryBuilder { return q.filter(column, "gte", value) }

// Lt adds a less-than filter.
func (q *QueryBuilder) Lt(column string, value any) *QueryBuilder { return q.filter(column, "lt", value) }

// Lte adds a less-than-or-equal filter.
func (q *QueryBuilder) Lte(column string, value any) *QueryBuilder { return q.filter(column, "lte", value) }

// Is adds an IS filter (null, true, false).
func (q *QueryBuilder) Is(column string, value any) *QueryBuilder { return q.filter(column, "is", value) }

// In adds an IN filter.
func (q *QueryBuilder) In(column string, values ...string) *QueryBuilder {
	return q.filter(column, "in", "("+strings.Join(values, ",")+")")
}

// Or adds a raw PostgREST or=(...) expression.
func (q *QueryBuilder) Or(expr string) *QueryBuilder {
	if q.filters == nil {
		q.filters = url.Values{}
	}
	q.filters.Add("or", "("+expr+")")
	return q
}

// Order adds an ORDER BY clause.
func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

// Limit sets the LIMIT.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

// OnConflict sets the conflict target for Upsert.
func (q *QueryBuilder) OnConflict(columns string) *QueryBuilder {
	q.onConflict = columns
	return q
}

func (q *QueryBuilder) endpoint(read bool) string {
	reqURL := fmt.Sprintf("%s/rest/v1/%s", q.client.baseURL, q.table)
	params := url.Values{}
	for k, vs := range q.filters {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	if read {
		if q.columns != "" {
			params.Set("select", q.columns)
		}
		if len(q.orders) > 0 {
			params.Set("order", strings.Join(q.orders, ","))
		}
		if q.limit > 0 {
			params.Set("limit", fmt.Sprintf("%d", q.limit))
		}
	}
	if q.onConflict != "" {
		params.Set("on_conflict", q.onConflict)
	}
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	return reqURL
}

// Execute runs a SELECT and decodes the rows into dest (a slice pointer).
func (q *QueryBuilder) Execute(ctx context.Context, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.endpoint(true), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return q.client.send(req, dest)
}

// Insert posts rows and decodes the representation into dest.
func (q *QueryBuilder) Insert(ctx context.Context, data any, dest any) error {
	return q.write(ctx, http.MethodPost, "return=representation", data, dest)
}

// Upsert inserts or merges rows on the OnConflict target.
func (q *QueryBuilder) Upsert(ctx context.Context, data any, dest any) error {
	return q.write(ctx, http.MethodPost, "resolution=merge-duplicates,return=representation", data, dest)
}

// Update patches the filtered rows.
func (q *QueryBuilder) Update(ctx context.Context, data any, dest any) error {
	return q.write(ctx, http.MethodPatch, "return=representation", data, dest)
}

// Delete removes the filtered rows and decodes them into dest.
func (q *QueryBuilder) Delete(ctx context.Context, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, q.endpoint(false), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Prefer", "return=representation")
	return q.client.send(req, dest)
}

func (q *QueryBuilder) write(ctx context.Context, method, prefer string, data, dest any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.endpoint(false), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", prefer)
	return q.client.send(req, dest)
}

// Error is returned for non-2xx responses.
type Error struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("supabase error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("supabase error: status %d", e.StatusCode)
}

// Conflict reports a unique violation.
func (e *Error) Conflict() bool {
	return e.StatusCode == http.StatusConflict || e.Code == "23505"
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

func (c *Client) send(req *http.Request, dest any) error {
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	if dest == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
