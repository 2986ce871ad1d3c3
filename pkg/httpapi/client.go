package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"agent-tools/pkg/apperr"
	"agent-tools/pkg/metrics"
)

// DefaultTimeout bounds every upstream call unless overridden
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a failed response is kept on the error
const maxErrorBody = 4096

// Client is a small JSON REST client shared by the plugins.
type Client struct {
	name       string
	baseURL    string
	httpClient *http.Client
	headers    http.Header
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHeader adds a header sent on every request
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// New creates a client for baseURL. name is used in logs, metrics and errors.
func New(name, baseURL string, opts ...Option) *Client {
	c := &Client{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		headers:    make(http.Header),
	}
	c.headers.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request describes one call
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   any
}

// Do sends req and decodes a 2xx JSON response into out (if non-nil).
// Non-2xx responses become an apperr.KindUpstream error carrying status and body.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	op := fmt.Sprintf("%s %s %s", c.name, req.Method, req.Path)

	endpoint := c.baseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return apperr.Wrap(apperr.KindValidation, op, err, "failed to encode request body")
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, body)
	if err != nil {
		return apperr.Wrap(apperr.KindUpstream, op, err, "failed to build request")
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range req.Header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	metrics.UpstreamLatency.WithLabelValues(c.name, req.Method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(c.name, req.Method, "error").Inc()
		return apperr.Wrap(apperr.KindUpstream, op, err, "request failed")
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues(c.name, req.Method, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		zap.L().Warn("Upstream request failed",
			zap.String("upstream", c.name),
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", data))
		return apperr.Upstream(op, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return apperr.Wrap(apperr.KindUpstream, op, err, "failed to decode response")
	}
	return nil
}

// Get is a shorthand for a GET request
func (c *Client) Get(ctx context.Context, path string, query url.Values, header http.Header, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query, Header: header}, out)
}

// Post is a shorthand for a POST request with a JSON body
func (c *Client) Post(ctx context.Context, path string, header http.Header, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Header: header, Body: body}, out)
}

// Delete is a shorthand for a DELETE request
func (c *Client) Delete(ctx context.Context, path string, query url.Values, header http.Header, out any) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path, Query: query, Header: header}, out)
}

// Bearer builds an Authorization header for a JWT
func Bearer(token string) http.Header {
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+token)
	return h
}
