// Package client talks to the remote finance REST API.
// Every call goes through the circuit breaker, the bulkhead and a tracing span;
// only idempotent reads may be retried.
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
	"strings"
	"time"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/observability"
	"github.com/boddenberg/pato-rico-bfa/internal/infra/resilience"
	"github.com/boddenberg/pato-rico-bfa/internal/port"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("client")

// ServiceName identifies the finance API in errors and health reports.
const ServiceName = "finance-api"

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 4 << 10

// Paths holds the endpoints whose location differs between API deployments.
type Paths struct {
	Profile      string
	ExpenseTypes string
}

// DefaultPaths matches the current API deployment.
var DefaultPaths = Paths{
	Profile:      "/me",
	ExpenseTypes: "/types-of-expense",
}

// Option configures a Client.
type Option func(*Client)

// WithPaths overrides the drifting endpoint paths. Empty fields keep the default.
func WithPaths(p Paths) Option {
	return func(c *Client) {
		if p.Profile != "" {
			c.paths.Profile = p.Profile
		}
		if p.ExpenseTypes != "" {
			c.paths.ExpenseTypes = p.ExpenseTypes
		}
	}
}

// WithUnauthorizedHook registers fn to run whenever the API answers 401.
// The BFA uses it to drop the session's cached reads; the CLI clears the
// session file.
func WithUnauthorizedHook(fn func(ctx context.Context)) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// Client is the typed finance API client. It implements port.FinanceAPI.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	tokens         port.TokenSource
	cb             *gobreaker.CircuitBreaker
	bulkhead       *resilience.Bulkhead
	cfg            resilience.Config
	paths          Paths
	metrics        *observability.Metrics
	logger         *zap.Logger
	onUnauthorized func(ctx context.Context)
}

var _ port.FinanceAPI = (*Client)(nil)

// New creates a new finance API client.
func New(
	httpClient *http.Client,
	baseURL string,
	tokens port.TokenSource,
	cb *gobreaker.CircuitBreaker,
	cfg resilience.Config,
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts ...Option,
) *Client {
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		cb:         cb,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:        cfg,
		paths:      DefaultPaths,
		metrics:    metrics,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsClientError reports whether err is a 4xx answer. The circuit breaker
// counts those as successes: the API is healthy, the request was not.
func IsClientError(err error) bool {
	var failed *domain.ErrRequestFailed
	return errors.As(err, &failed) && failed.Status >= 400 && failed.Status < 500
}

// request describes one API call.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	public bool // sent without the bearer token
}

// do executes req and decodes a 2xx body into out (when out is non-nil).
func (c *Client) do(ctx context.Context, req request, out any) error {
	ctx, span := tracer.Start(ctx, "FinanceClient."+req.op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.method),
		attribute.String("http.path", req.path),
	)

	var token string
	if !req.public {
		t, ok := c.tokens.Token(ctx)
		if !ok {
			return &domain.ErrUnauthorized{Message: "no session credential"}
		}
		token = t
	}

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return err
	}
	defer c.bulkhead.Release()

	retryCfg := c.cfg
	if req.method != http.MethodGet {
		retryCfg.MaxRetries = 0
	}

	start := time.Now()
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, retryCfg, func() error {
			return c.roundTrip(ctx, req, token, out)
		})
	})
	c.metrics.RecordUpstream(req.op, time.Since(start))

	if err == nil {
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var failed *domain.ErrRequestFailed
	if errors.As(err, &failed) {
		c.metrics.IncrUpstreamError(req.op, statusClass(failed.Status))
		c.logger.Warn("finance API request failed",
			zap.String("op", req.op),
			zap.String("method", failed.Method),
			zap.String("path", failed.Path),
			zap.Int("status", failed.Status),
		)
		// A rejected sign-in carries no credential to invalidate.
		if failed.IsUnauthorized() && !req.public && c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return failed
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.metrics.IncrUpstreamError(req.op, "circuit")
		return &domain.ErrCircuitOpen{Service: ServiceName}
	}

	c.metrics.IncrUpstreamError(req.op, "transport")
	c.logger.Error("finance API unreachable",
		zap.String("op", req.op),
		zap.Error(err),
	)
	return &domain.ErrExternalService{Service: ServiceName, Err: err}
}

// roundTrip performs a single HTTP exchange. 4xx answers and undecodable
// bodies are permanent; transport errors and 5xx may be retried.
func (c *Client) roundTrip(ctx context.Context, req request, token string, out any) error {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("encode %s body: %w", req.op, err))
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return resilience.Permanent(err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	httpReq.Header.Set("X-Request-ID", requestID(ctx))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		failed := &domain.ErrRequestFailed{
			Method: req.method,
			Path:   req.path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(raw)),
		}
		if resp.StatusCode >= 500 {
			return failed
		}
		return resilience.Permanent(failed)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resilience.Permanent(fmt.Errorf("decode %s response: %w", req.op, err))
	}
	return nil
}

// requestID propagates the inbound request id, or mints one.
func requestID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "other"
	}
}

// rangeQuery renders optional from/to bounds. Zero times are omitted.
func rangeQuery(r domain.DateRange) url.Values {
	q := url.Values{}
	if !r.From.IsZero() {
		q.Set("from", r.From.UTC().Format(time.RFC3339))
	}
	if !r.To.IsZero() {
		q.Set("to", r.To.UTC().Format(time.RFC3339))
	}
	return q
}
