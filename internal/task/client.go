// Package task implements the backend's asynchronous job protocol: submit a
// request, poll its pipeline until it reaches a terminal state, then fetch
// the result.
package task

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"skctl/internal/auth"
	"skctl/internal/logger"
	"skctl/pkg/api"
)

const (
	// DefaultTaskingURL is the production tasking service.
	DefaultTaskingURL = "https://spaceknow-tasking.appspot.com"

	statusPath = "/tasking/get-status"
)

// Sleeper blocks for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Client sends authorized requests to the backend. It is safe for
// concurrent use; the jobs it creates are not.
type Client struct {
	taskingURL string
	tokens     auth.TokenSource
	httpClient *http.Client
	logger     *slog.Logger
	sleep      Sleeper
	now        func() time.Time

	tracer       trace.Tracer
	requests     metric.Int64Counter
	polls        metric.Int64Counter
	waitDuration metric.Float64Histogram
}

// Option configures a Client.
type Option func(*Client)

// WithTaskingURL overrides the tasking service base URL.
func WithTaskingURL(u string) Option {
	return func(c *Client) { c.taskingURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithLogger sets the logger used for job lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSleeper replaces the sleep used between polls.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// NewClient returns a client that authorizes every call with tokens.
func NewClient(tokens auth.TokenSource, opts ...Option) *Client {
	c := &Client{
		taskingURL: DefaultTaskingURL,
		tokens:     tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
		sleep:  sleepContext,
		now:    time.Now,
		tracer: otel.Tracer("skctl/task"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.initMetrics()
	return c
}

func (c *Client) initMetrics() {
	meter := otel.Meter("skctl/task")
	var err error

	c.requests, err = meter.Int64Counter("skctl.task.requests",
		metric.WithDescription("Backend calls by operation and outcome"))
	if err != nil {
		c.logger.Warn("failed to register request counter", "error", err)
		c.requests = noop.Int64Counter{}
	}

	c.polls, err = meter.Int64Counter("skctl.task.polls",
		metric.WithDescription("Status polls by job kind and observed status"))
	if err != nil {
		c.logger.Warn("failed to register poll counter", "error", err)
		c.polls = noop.Int64Counter{}
	}

	c.waitDuration, err = meter.Float64Histogram("skctl.task.wait.duration",
		metric.WithDescription("Time spent waiting for jobs to finish"),
		metric.WithUnit("s"))
	if err != nil {
		c.logger.Warn("failed to register wait histogram", "error", err)
		c.waitDuration = noop.Float64Histogram{}
	}
}

// Status looks up the current status of pipeline id.
func (c *Client) Status(ctx context.Context, id string) (Status, error) {
	return c.status(ctx, "get-status", id)
}

func (c *Client) status(ctx context.Context, op, id string) (Status, error) {
	body, err := c.post(ctx, op, id, c.taskingURL+statusPath, api.PipelineRequest{PipelineID: id})
	if err != nil {
		return "", err
	}

	var resp api.PipelineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse status response: %w", err)
	}
	return ParseStatus(resp.Status)
}

// Get fetches url with the bearer token attached.
func (c *Client) Get(ctx context.Context, op, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, op, "", true)
}

// Download fetches url without credentials, for pre-signed result links.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, "download", "", false)
}

func (c *Client) post(ctx context.Context, op, jobID, url string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.postRaw(ctx, op, jobID, url, payload)
}

func (c *Client) postRaw(ctx context.Context, op, jobID, url string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, op, jobID, true)
}

// do sends req and returns the body of a 2xx response. Any other status is
// returned as an *APIError classified by classify. A 401 is retried once
// with a fresh token when the token source can drop the refused one.
func (c *Client) do(req *http.Request, op, jobID string, authorize bool) ([]byte, error) {
	ctx, span := c.tracer.Start(req.Context(), "backend."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.String()),
			attribute.String("job.id", jobID),
		),
	)
	defer span.End()
	req = req.WithContext(ctx)

	fail := func(outcome string, err error) ([]byte, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op), attribute.String("outcome", outcome)))
		return nil, err
	}

	for retried := false; ; retried = true {
		if authorize {
			header, err := auth.Header(ctx, c.tokens)
			if err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			req.Header.Set("Authorization", header)
		}
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fail("transport", &TransportError{Op: op, JobID: jobID, Err: err})
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fail("transport", &TransportError{Op: op, JobID: jobID, Err: fmt.Errorf("failed to read response: %w", err)})
		}
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

		if resp.StatusCode == http.StatusUnauthorized && authorize && !retried {
			if next, ok := c.reauthorize(req); ok {
				c.log(ctx).Info("token refused, retrying with a fresh one", "op", op)
				req = next
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
			if resp.StatusCode >= 500 {
				return fail("transport", classify(op, jobID, apiErr))
			}
			return fail("rejected", classify(op, jobID, apiErr))
		}

		c.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op), attribute.String("outcome", "ok")))
		return respBody, nil
	}
}

// invalidator is a token source that can forget a token the backend refused.
type invalidator interface {
	Invalidate()
}

// reauthorize drops the cached token and returns a copy of req that can be
// sent again, or false when the token will not change.
func (c *Client) reauthorize(req *http.Request) (*http.Request, bool) {
	inv, ok := c.tokens.(invalidator)
	if !ok {
		return nil, false
	}
	next := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, false
		}
		next.Body = body
	}
	inv.Invalidate()
	return next, true
}

func (c *Client) log(ctx context.Context) *slog.Logger {
	return logger.FromContext(ctx, c.logger)
}
