// Package apiclient talks to the institution REST API, the single source of
// truth for every record the dashboard shows.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/campusdesk/campusdesk/internal/authz"
	"github.com/campusdesk/campusdesk/internal/platform/httpx"
	"github.com/campusdesk/campusdesk/internal/records"
)

// Errors returned by the client wrap the httpx sentinels.
var (
	ErrUnauthorized = fmt.Errorf("apiclient: %w", httpx.ErrUnauthorized)
	ErrForbidden    = fmt.Errorf("apiclient: %w", httpx.ErrForbidden)
	ErrNotFound     = fmt.Errorf("apiclient: %w", httpx.ErrNotFound)
	ErrUpstream     = fmt.Errorf("apiclient: %w", httpx.ErrUpstream)
)

// Upstream resource paths.
const (
	PathMe         = "/auth/me"
	PathStudents   = "/students"
	PathAttendance = "/attendance"
	PathPayments   = "/payments"
	PathCashflow   = "/cashflow"
)

const maxBody = 16 << 20

// Observer receives one observation per upstream round trip.
type Observer interface {
	ObserveUpstream(resource string, status int, elapsed time.Duration)
}

// Client is safe for concurrent use.
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *slog.Logger
	observer Observer
	group    singleflight.Group
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithObserver records upstream latencies.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New constructs a Client for baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Me loads the principal behind token.
func (c *Client) Me(ctx context.Context, token string) (*authz.User, error) {
	body, err := c.get(ctx, token, PathMe, nil)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	raw := body
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 {
		raw = envelope.Data
	}
	var user *authz.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("apiclient: decode principal: %w", err)
	}
	if user == nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// Students lists the institution's students.
func (c *Client) Students(ctx context.Context, token string, query url.Values) ([]records.Student, error) {
	return list[records.Student](ctx, c, token, PathStudents, query)
}

// Attendance lists attendance entries.
func (c *Client) Attendance(ctx context.Context, token string, query url.Values) ([]records.Attendance, error) {
	return list[records.Attendance](ctx, c, token, PathAttendance, query)
}

// Payments lists payment entries.
func (c *Client) Payments(ctx context.Context, token string, query url.Values) ([]records.Payment, error) {
	return list[records.Payment](ctx, c, token, PathPayments, query)
}

// Cashflow lists cashflow entries.
func (c *Client) Cashflow(ctx context.Context, token string, query url.Values) ([]records.Cashflow, error) {
	return list[records.Cashflow](ctx, c, token, PathCashflow, query)
}

func list[T any](ctx context.Context, c *Client, token, path string, query url.Values) ([]T, error) {
	body, err := c.get(ctx, token, path, query)
	if err != nil {
		return nil, err
	}
	items, err := records.DecodeList[T](body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: decode %s: %w", path, err)
	}
	return items, nil
}

// Response is a forwarded upstream reply.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Forward relays a mutation to the API and returns its reply verbatim.
// Upstream 4xx replies are returned as a Response, not an error.
func (c *Client) Forward(ctx context.Context, token, method, path string, body []byte, contentType string) (*Response, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := c.newRequest(ctx, token, method, path, nil, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, payload, err := c.do(req, resourceOf(path))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: %s %s returned %d", ErrUpstream, method, path, resp.StatusCode)
	}
	return &Response{Status: resp.StatusCode, ContentType: resp.Header.Get("Content-Type"), Body: payload}, nil
}

// get coalesces identical concurrent reads for the same token.
func (c *Client) get(ctx context.Context, token, path string, query url.Values) ([]byte, error) {
	key := token + "\x00" + path + "?" + query.Encode()
	ch := c.group.DoChan(key, func() (interface{}, error) {
		req, err := c.newRequest(context.WithoutCancel(ctx), token, http.MethodGet, path, query, nil)
		if err != nil {
			return nil, err
		}
		resp, payload, err := c.do(req, resourceOf(path))
		if err != nil {
			return nil, err
		}
		if err := statusError(resp.StatusCode, path); err != nil {
			return nil, err
		}
		return payload, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *Client) newRequest(ctx context.Context, token, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	reqID := middleware.GetReqID(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	req.Header.Set(middleware.RequestIDHeader, reqID)
	return req, nil
}

func (c *Client) do(req *http.Request, resource string) (*http.Response, []byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(resource, 0, start)
		c.logger.Warn("upstream request failed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Any("error", err))
		return nil, nil, fmt.Errorf("%w: %s %s: %v", ErrUpstream, req.Method, req.URL.Path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	c.observe(resource, resp.StatusCode, start)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read %s: %v", ErrUpstream, req.URL.Path, err)
	}
	return resp, payload, nil
}

func (c *Client) observe(resource string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveUpstream(resource, status, time.Since(start))
	}
}

func statusError(status int, path string) error {
	switch {
	case status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	default:
		return fmt.Errorf("%w: GET %s returned %d", ErrUpstream, path, status)
	}
}

// resourceOf returns the first path segment, used as a metrics label.
func resourceOf(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "root"
	}
	return path
}
