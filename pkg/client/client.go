// Package client is a generic REST client for one resource endpoint of the
// admin API. It mirrors the server's wire contract: collections and single
// records on GET, JSON bodies on mutation, and {"error": message} failures.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
)

// Record mirrors a decoded table row.
type Record = map[string]any

// Messages are the fallback notification texts per operation kind, used when
// the server does not supply an error message of its own.
type Messages struct {
	CreateSuccess string
	UpdateSuccess string
	DeleteSuccess string
	CreateError   string
	UpdateError   string
	DeleteError   string
	FetchError    string
}

func DefaultMessages() Messages {
	return Messages{
		CreateSuccess: "record created",
		UpdateSuccess: "record updated",
		DeleteSuccess: "record deleted",
		CreateError:   "failed to create record",
		UpdateError:   "failed to update record",
		DeleteError:   "failed to delete record",
		FetchError:    "failed to load data",
	}
}

// Notifier receives transient success/error notifications, one per finished
// call. The zero value of client uses NopNotifier.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

type NopNotifier struct{}

func (NopNotifier) Success(string) {}
func (NopNotifier) Error(string)   {}

// Client talks to one resource endpoint. Each method performs exactly one
// HTTP call; there are no retries and no caching.
type Client struct {
	endpoint string
	http     *http.Client
	notifier Notifier
	messages Messages
	token    string

	mu      sync.Mutex
	loading bool
	lastErr string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }
func WithNotifier(n Notifier) Option       { return func(c *Client) { c.notifier = n } }
func WithMessages(m Messages) Option       { return func(c *Client) { c.messages = m } }

// WithToken sends the session token as a bearer header on every call.
func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// New creates a client for a resource endpoint, e.g.
// "http://localhost:8080/api/users".
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     http.DefaultClient,
		notifier: NopNotifier{},
		messages: DefaultMessages(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Loading reports whether a call on this client is in flight.
func (c *Client) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Err returns the message of the last failed call, empty after a success.
func (c *Client) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Client) setLoading(v bool) {
	c.mu.Lock()
	c.loading = v
	if v {
		c.lastErr = ""
	}
	c.mu.Unlock()
}

func (c *Client) fail(msg string) error {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
	c.notifier.Error(msg)
	return errors.New(msg)
}

// GetAll fetches the collection, optionally filtered by query params.
func (c *Client) GetAll(ctx context.Context, params url.Values) ([]Record, error) {
	c.setLoading(true)
	defer c.setLoading(false)

	var out []Record
	if err := c.get(ctx, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID fetches a single record; extra params (e.g. include) are passed
// through.
func (c *Client) GetByID(ctx context.Context, id int, params url.Values) (Record, error) {
	c.setLoading(true)
	defer c.setLoading(false)

	merged := url.Values{}
	for k, vs := range params {
		merged[k] = vs
	}
	merged.Set("id", strconv.Itoa(id))

	var out Record
	if err := c.get(ctx, merged, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create posts a new record and returns the created record.
func (c *Client) Create(ctx context.Context, data Record) (Record, error) {
	return c.mutate(ctx, http.MethodPost, data, c.messages.CreateError, c.messages.CreateSuccess)
}

// Update puts a partial record (which must carry its id) and returns the
// merged record.
func (c *Client) Update(ctx context.Context, data Record) (Record, error) {
	return c.mutate(ctx, http.MethodPut, data, c.messages.UpdateError, c.messages.UpdateSuccess)
}

// Save dispatches to Create or Update depending on the presence of an id.
func (c *Client) Save(ctx context.Context, data Record) (Record, error) {
	if hasID(data) {
		return c.Update(ctx, data)
	}
	return c.Create(ctx, data)
}

// Remove deletes a record by id.
func (c *Client) Remove(ctx context.Context, id int) error {
	c.setLoading(true)
	defer c.setLoading(false)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.endpoint+"?id="+strconv.Itoa(id), nil)
	if err != nil {
		return c.fail(c.messages.DeleteError)
	}
	resp, err := c.do(req)
	if err != nil {
		return c.fail(c.messages.DeleteError)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.fail(errorMessage(resp.Body, c.messages.DeleteError))
	}
	c.notifier.Success(c.messages.DeleteSuccess)
	return nil
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	reqURL := c.endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return c.fail(c.messages.FetchError)
	}
	resp, err := c.do(req)
	if err != nil {
		return c.fail(c.messages.FetchError)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.fail(errorMessage(resp.Body, c.messages.FetchError))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.fail(c.messages.FetchError)
	}
	return nil
}

func (c *Client) mutate(ctx context.Context, method string, data Record, errMsg, successMsg string) (Record, error) {
	c.setLoading(true)
	defer c.setLoading(false)

	body, err := json.Marshal(data)
	if err != nil {
		return nil, c.fail(errMsg)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(errMsg)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, c.fail(errMsg)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, c.fail(errorMessage(resp.Body, errMsg))
	}

	var out Record
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, c.fail(errMsg)
	}
	c.notifier.Success(successMsg)
	return out, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

// errorMessage extracts the failure message from a response body: the
// {"error": ...} field when present, the raw text otherwise, or the caller's
// fallback when the body is empty.
func errorMessage(body io.Reader, fallback string) string {
	raw, err := io.ReadAll(body)
	if err != nil || len(raw) == 0 {
		return fallback
	}
	var wire struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &wire); err == nil && wire.Error != "" {
		return wire.Error
	}
	return string(raw)
}

func hasID(data Record) bool {
	switch id := data["id"].(type) {
	case nil:
		return false
	case float64:
		return id != 0
	case int:
		return id != 0
	case string:
		return id != ""
	default:
		return fmt.Sprintf("%v", id) != ""
	}
}
