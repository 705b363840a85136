// Package upstream talks HTTP/JSON to the persistence service that owns
// appointment, staff and customer records.
//
// Reads use conditional GET (ETag / Last-Modified) against a Bolt-backed
// cache and fall back to the cached body when the service is unreachable or
// failing. Writes carry an Idempotency-Key so a retried create is safe.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"apptsync/internal/batch"
	"apptsync/internal/codec"
	"apptsync/internal/guard"
	appLog "apptsync/internal/log"
	"apptsync/internal/model"
)

const (
	DefaultTimeout = 15 * time.Second

	// IdempotencyHeader is sent on every create.
	IdempotencyHeader = "Idempotency-Key"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// Cache is optional; without it every read hits the network.
	Cache *Cache
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	cache   *Cache
}

// New creates a Client for opts.BaseURL.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("upstream base URL is empty")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid upstream base URL: %w", err)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: base,
		token:   opts.Token,
		client:  hc,
		cache:   opts.Cache,
	}, nil
}

// ListResult is the outcome of a list read.
type ListResult struct {
	Records   []json.RawMessage
	FromCache bool
}

// ListAppointments returns the raw wire records overlapping [from, to).
// Records are left undecoded so the caller can decode them one by one.
func (c *Client) ListAppointments(ctx context.Context, from, to time.Time) (ListResult, error) {
	q := url.Values{}
	q.Set("start", codec.FormatInstant(from))
	q.Set("end", codec.FormatInstant(to))

	body, fromCache, err := c.getCached(ctx, "/appointments?"+q.Encode())
	if err != nil {
		return ListResult{}, err
	}

	records, err := splitRecords(body, "appointments")
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Records: records, FromCache: fromCache}, nil
}

// ListStaff returns the staff directory. Entries whose id fails the bounded
// reference check are skipped.
func (c *Client) ListStaff(ctx context.Context) ([]model.StaffMember, error) {
	body, _, err := c.getCached(ctx, "/staff")
	if err != nil {
		return nil, err
	}

	records, err := splitRecords(body, "staff")
	if err != nil {
		return nil, err
	}

	out := make([]model.StaffMember, 0, len(records))
	for _, raw := range records {
		var s struct {
			ID    json.Number `json:"id"`
			Name  string      `json:"name"`
			Color string      `json:"color"`
		}
		if err := json.Unmarshal(raw, &s); err != nil {
			appLog.Debug("upstream: skipping malformed staff record", "err", err)
			continue
		}
		id, ok := guard.ValidateBoundedRef(s.ID)
		if !ok {
			appLog.Debug("upstream: skipping staff with invalid id", "id", s.ID.String())
			continue
		}
		out = append(out, model.StaffMember{ID: id, Name: s.Name, Color: s.Color})
	}
	return out, nil
}

// CreateAppointment creates one appointment. An empty key gets a fresh one.
func (c *Client) CreateAppointment(ctx context.Context, w model.WireAppointment, key string) (model.WireAppointment, error) {
	body, err := c.send(ctx, http.MethodPost, "/appointments", w, idempotencyKey(key))
	if err != nil {
		return model.WireAppointment{}, err
	}
	return decodeOne(body)
}

// CreateAppointments creates a batch under the "appointments" key.
func (c *Client) CreateAppointments(ctx context.Context, b batch.CreateBatch, key string) ([]json.RawMessage, error) {
	body, err := c.send(ctx, http.MethodPost, "/appointments/batch", b, idempotencyKey(key))
	if err != nil {
		return nil, err
	}
	return splitRecords(body, "appointments")
}

// UpdateAppointment replaces the appointment with the given id.
func (c *Client) UpdateAppointment(ctx context.Context, id string, w model.WireAppointment) (model.WireAppointment, error) {
	if strings.TrimSpace(id) == "" {
		return model.WireAppointment{}, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	w.ID = model.OpaqueID(id)
	body, err := c.send(ctx, http.MethodPut, "/appointments/"+url.PathEscape(id), w, "")
	if err != nil {
		return model.WireAppointment{}, err
	}
	return decodeOne(body)
}

// DeleteAppointment removes the appointment with the given id.
func (c *Client) DeleteAppointment(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty id", ErrNotFound)
	}
	_, err := c.send(ctx, http.MethodDelete, "/appointments/"+url.PathEscape(id), nil, "")
	return err
}

func (c *Client) send(ctx context.Context, method, path string, payload any, key string) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, appLog.RedactURL(c.baseURL), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrUnavailable, err)
	}
	if err := statusError(resp); err != nil {
		return nil, err
	}

	appLog.Info("upstream write", "method", method, "path", path, "status", resp.StatusCode)
	return data, nil
}

// getCached performs a conditional GET, serving the cached body on 304 and
// on network or server failures when one is available.
func (c *Client) getCached(ctx context.Context, path string) ([]byte, bool, error) {
	target := c.baseURL + path
	cached, haveCache := c.cache.get(target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false, err
	}
	c.authorize(req)
	req.Header.Set("Accept", "application/json")
	if haveCache {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if haveCache {
			appLog.Error("upstream fetch network error, using cached body", err, "url", appLog.RedactURL(target))
			return cached.Body, true, nil
		}
		return nil, false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, false, fmt.Errorf("%w: reading body: %w", ErrUnavailable, readErr)
		}
		entry := cacheEntry{
			URL:          target,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			Body:         body,
		}
		if err := c.cache.put(entry); err != nil {
			appLog.Error("upstream cache save failed", err, "url", appLog.RedactURL(target))
		}
		appLog.Debug("upstream fetch success", "path", path, "bytes", len(body))
		return body, false, nil

	case resp.StatusCode == http.StatusNotModified:
		if !haveCache {
			return nil, false, fmt.Errorf("%w: 304 Not Modified without a cached body", ErrBadResponse)
		}
		appLog.Debug("upstream fetch not modified; using cache", "path", path)
		return cached.Body, true, nil

	case resp.StatusCode >= 500 && haveCache:
		appLog.Error("upstream fetch non-OK, using cached body", errors.New(resp.Status), "url", appLog.RedactURL(target))
		return cached.Body, true, nil

	default:
		return nil, false, statusError(resp)
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrConflict
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", ErrUnavailable, resp.Status)
	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
}

func idempotencyKey(key string) string {
	if key = strings.TrimSpace(key); key != "" {
		return key
	}
	return uuid.NewString()
}

// splitRecords accepts either a bare JSON array or an object holding the
// array under key.
func splitRecords(body []byte, key string) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []json.RawMessage{}, nil
	}

	var records []json.RawMessage
	if body[0] == '[' {
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		return records, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	inner, ok := wrapped[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrBadResponse, key)
	}
	if err := json.Unmarshal(inner, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if records == nil {
		records = []json.RawMessage{}
	}
	return records, nil
}

func decodeOne(body []byte) (model.WireAppointment, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return model.WireAppointment{}, nil
	}
	w, err := batch.UnmarshalWire(body)
	if err != nil {
		return model.WireAppointment{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return w, nil
}
