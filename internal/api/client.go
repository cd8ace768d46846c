// Package api is the typed client for the Whispr REST backend. Every call
// carries the cookie credential, speaks JSON, and validates decoded
// entities before returning them.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"

	"whispr/internal/observability"
)

const maxResponseBytes = 10 << 20

// Request describes one backend call.
type Request struct {
	// Operation names the call for logs, metrics and spans.
	Operation string
	Method    string
	Path      string
	// Body is JSON encoded when non-nil.
	Body any
	// Header overrides the default headers, Content-Type included.
	Header http.Header
}

// Client talks to one backend base URL.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	jar     http.CookieJar
	limiter *rate.Limiter
	timeout time.Duration
	logger  *observability.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCookieJar sets the jar holding the session credential.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) { c.jar = jar }
}

// WithTimeout sets an http.Client timeout. Zero leaves the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRateLimit throttles outgoing calls. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger. Defaults to observability.GlobalLogger.
func WithLogger(l *observability.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{baseURL: u}
	for _, opt := range opts {
		opt(c)
	}

	hc := &http.Client{}
	if c.http != nil {
		copied := *c.http
		hc = &copied
	}
	if c.jar != nil {
		hc.Jar = c.jar
	}
	if c.timeout > 0 {
		hc.Timeout = c.timeout
	}
	c.http = hc
	c.logger = observability.OrGlobal(c.logger)
	return c, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Call performs req and decodes a 2xx JSON body into out (when non-nil).
// If out has a Validate method it is run on the decoded value.
func (c *Client) Call(ctx context.Context, req Request, out any) error {
	op := req.Operation
	ctx, correlationID := observability.EnsureCorrelationID(ctx)

	span, ctx := observability.NewSpan(ctx, "api."+op, observability.WithSpanKind(observability.SpanKindClient))
	defer span.End()
	span.AddAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.route", req.Path),
	)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			span.SetError(err)
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	httpReq, err := c.newRequest(ctx, req, correlationID)
	if err != nil {
		span.SetError(err)
		return fmt.Errorf("%s: %w", op, err)
	}

	done := observability.TrackRequest(op)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		done(0)
		observability.RecordAPIError(op, observability.KindTransport)
		span.SetError(err)
		c.logger.WarnContext(ctx, "api call failed",
			slog.String("operation", op),
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	done(resp.StatusCode)
	span.AddAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		observability.RecordAPIError(op, observability.KindTransport)
		span.SetError(err)
		return fmt.Errorf("%s: read body: %w", op, err)
	}

	c.logger.DebugContext(ctx, "api call",
		slog.String("operation", op),
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Int("status", resp.StatusCode),
		slog.String("correlation_id", correlationID),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remoteErr := newRemoteError(op, resp.StatusCode, body)
		observability.RecordAPIError(op, observability.KindStatus)
		span.SetError(remoteErr)
		return remoteErr
	}

	if out == nil {
		return nil
	}
	if err := decode(body, out); err != nil {
		observability.RecordAPIError(op, observability.KindDecode)
		span.SetError(err)
		c.logger.WarnContext(ctx, "api response rejected",
			slog.String("operation", op),
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
		return &DecodeError{Operation: op, Err: err}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req Request, correlationID string) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		buf, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL.String()+req.Path, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", correlationID)
	for k, vs := range req.Header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	observability.InjectHeaders(ctx, propagation.HeaderCarrier(httpReq.Header))
	return httpReq, nil
}

type validatable interface {
	Validate() error
}

func decode(body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return errors.New("empty body")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return err
	}
	if v, ok := out.(validatable); ok {
		return v.Validate()
	}
	return nil
}
