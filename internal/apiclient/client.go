// Package apiclient is the single chokepoint for HTTP calls to the
// storefront backend. It owns CSRF token acquisition and in-flight request
// de-duplication; callers never talk to the backend directly.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/anandmobiles/storefront-gateway/pkg/logger"
	"github.com/anandmobiles/storefront-gateway/pkg/metrics"
	"github.com/hashicorp/go-cleanhttp"

	pkgerrors "github.com/anandmobiles/storefront-gateway/pkg/errors"
)

const (
	defaultInflightCapacity  = 32
	defaultInflightRetention = time.Second
	defaultTimeout           = 30 * time.Second

	csrfHeader = "X-CSRFToken"
)

// Response is the normalized outcome of a backend call: the HTTP status plus
// the raw JSON body, decoded on demand by typed resource methods.
type Response struct {
	Status int
	Body   json.RawMessage
}

// Decode unmarshals the response body into dest.
func (r *Response) Decode(dest any) error {
	if r == nil || len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	return json.Unmarshal(r.Body, dest)
}

// Options configures a Client. Zero values fall back to sane defaults.
type Options struct {
	BaseURL           string
	HTTPClient        *http.Client
	Logger            *logger.Logger
	Metrics           *metrics.ClientMetrics
	Timeout           time.Duration
	InflightCapacity  int
	InflightRetention time.Duration
}

// Client dispatches requests to the storefront backend.
type Client struct {
	baseURL string
	http    *http.Client
	logg    *logger.Logger
	metrics *metrics.ClientMetrics

	mu        sync.Mutex
	csrfToken string

	inflight *inflightRegistry
}

// New constructs a client. Instances are safe for concurrent use.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("building cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}
	if httpClient.Timeout == 0 {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient.Timeout = timeout
	}

	retention := opts.InflightRetention
	if retention == 0 {
		retention = defaultInflightRetention
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
		logg:    opts.Logger,
		metrics: opts.Metrics,
	}
	c.inflight = newInflightRegistry(opts.InflightCapacity, retention, c.metrics.IncEviction)
	return c, nil
}

// CSRFToken returns the cached anti-forgery token, fetching it lazily on
// first need. Failures are logged and reported as an empty token; the
// request then proceeds without the header and the backend decides.
func (c *Client) CSRFToken(ctx context.Context) string {
	c.mu.Lock()
	if c.csrfToken != "" {
		token := c.csrfToken
		c.mu.Unlock()
		c.metrics.IncCacheHit("csrf")
		return token
	}
	c.mu.Unlock()
	c.metrics.IncCacheMiss("csrf")

	resp, err := c.perform(ctx, http.MethodGet, EndpointCSRFToken, nil, "")
	if err != nil {
		if c.logg != nil {
			c.logg.Warn(c.logg.WithEndpoint(ctx, http.MethodGet, EndpointCSRFToken), "csrf token fetch failed")
		}
		return ""
	}

	var payload struct {
		CSRFToken string `json:"csrfToken"`
	}
	if err := resp.Decode(&payload); err != nil || payload.CSRFToken == "" {
		if c.logg != nil {
			c.logg.Warn(ctx, "csrf token response missing token")
		}
		return ""
	}

	c.mu.Lock()
	c.csrfToken = payload.CSRFToken
	c.mu.Unlock()
	return payload.CSRFToken
}

// Reset drops the CSRF cache and the in-flight registry. The auth store
// calls this on logout so the next mutating request re-fetches a token.
func (c *Client) Reset() {
	c.mu.Lock()
	c.csrfToken = ""
	c.mu.Unlock()
	c.inflight.clear()
}

// Do dispatches a request, collapsing concurrent calls with the same
// method+endpoint signature onto one backend round trip. Every caller that
// joined observes the identical outcome, value or error.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any, token string) (*Response, error) {
	signature := method + " " + endpoint

	pending, joined := c.inflight.join(signature)
	if joined {
		c.metrics.IncDedupHit(endpoint)
		select {
		case <-pending.done:
			return pending.resp, pending.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	resp, err := c.perform(ctx, method, endpoint, body, token)
	c.inflight.settle(signature, pending, resp, err)
	return resp, err
}

// InflightSize reports the registry occupancy, used by health reporting.
func (c *Client) InflightSize() int {
	return c.inflight.size()
}

func (c *Client) perform(ctx context.Context, method, endpoint string, body any, token string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building request")
	}

	req.Header.Set("Content-Type", "application/json")
	if isMutating(method) {
		if csrf := c.CSRFToken(ctx); csrf != "" {
			req.Header.Set(csrfHeader, csrf)
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(method, endpoint, "network_error", time.Since(start))
		if c.logg != nil {
			c.logg.Error(c.logg.WithEndpoint(ctx, method, endpoint), "backend request failed", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "network error")
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.metrics.ObserveRequest(method, endpoint, "read_error", time.Since(start))
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "reading response")
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		c.metrics.ObserveRequest(method, endpoint, "backend_error", time.Since(start))
		message := backendMessage(raw)
		if message == "" {
			message = fmt.Sprintf("HTTP %d", httpResp.StatusCode)
		}
		return nil, pkgerrors.New(pkgerrors.FromStatus(httpResp.StatusCode), message)
	}

	c.metrics.ObserveRequest(method, endpoint, "success", time.Since(start))
	return &Response{Status: httpResp.StatusCode, Body: raw}, nil
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// backendMessage pulls a human-readable error out of the several ad-hoc
// shapes the backend produces.
func backendMessage(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	for _, candidate := range []string{payload.Error, payload.Message, payload.Detail} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}
