package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"skctl/pkg/api"
)

// DefaultInterval is the fixed delay between status polls.
const DefaultInterval = 10 * time.Second

// ErrJobFailed is returned by Run when the backend reports FAILED.
var ErrJobFailed = errors.New("job failed")

// Operation describes one kind of backend job: where it is submitted, how
// its request is built and how its result is decoded.
type Operation[R any] interface {
	Kind() string
	InitiateURL() string
	RetrieveURL() string
	BuildRequest() (any, error)
	ParseResult(ctx context.Context, body []byte) (R, error)
}

// Job is a handle to one backend pipeline. A Job belongs to a single
// goroutine; its Status only changes through Poll and never leaves a
// terminal state.
type Job[R any] struct {
	ID     string
	Status Status
	// Request is the JSON payload that was submitted.
	Request json.RawMessage
	// Rejection is set when the backend refused the submission. Such a job
	// is FAILED with no ID and can never be retrieved.
	Rejection error

	op     Operation[R]
	client *Client
}

// Submit sends op's request to the backend.
//
// A network failure returns an error and no job. A response outside 2xx
// is not an error: it yields a FAILED job without an ID whose Rejection
// explains why.
func Submit[R any](ctx context.Context, c *Client, op Operation[R]) (*Job[R], error) {
	kind := op.Kind()
	req, err := op.BuildRequest()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", kind, err)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", kind, err)
	}

	job := &Job[R]{Request: payload, op: op, client: c}
	log := c.log(ctx).With("kind", kind)

	body, err := c.postRaw(ctx, "submit "+kind, "", op.InitiateURL(), payload)
	if err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			return nil, err
		}
		job.Status = StatusFailed
		job.Rejection = rejected("submit "+kind, apiErr)
		log.Warn("submission rejected", "status_code", apiErr.StatusCode, "error", apiErr.Message)
		return job, nil
	}

	var resp api.PipelineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse %s submit response: %w", kind, err)
	}
	status, err := ParseStatus(resp.Status)
	if err != nil {
		return nil, err
	}
	if resp.PipelineID == "" {
		return nil, fmt.Errorf("%s submit response has no pipeline id", kind)
	}

	job.ID, job.Status = resp.PipelineID, status
	log.Info("job submitted", "job_id", job.ID, "status", job.Status)
	return job, nil
}

// Attach returns a handle to a pipeline submitted earlier.
func Attach[R any](c *Client, op Operation[R], id string, status Status) *Job[R] {
	return &Job[R]{ID: id, Status: status, op: op, client: c}
}

// Kind returns the operation kind of the job.
func (j *Job[R]) Kind() string {
	return j.op.Kind()
}

// Poll refreshes the job status from the backend. It makes no call once the
// job is terminal.
//
// A network error or 5xx response is a TransportError and leaves Status
// unchanged.
func (j *Job[R]) Poll(ctx context.Context) (Status, error) {
	if j.Status.Terminal() {
		return j.Status, nil
	}
	if j.ID == "" {
		return j.Status, fmt.Errorf("%w: %s job has no pipeline id", ErrInvalidState, j.Kind())
	}

	status, err := j.client.status(ctx, "poll "+j.Kind(), j.ID)
	if err != nil {
		return j.Status, err
	}
	j.client.polls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", j.Kind()),
		attribute.String("status", string(status)),
	))
	j.Status = status
	return status, nil
}

type waitConfig struct {
	interval    time.Duration
	maxAttempts int
	timeout     time.Duration
}

// WaitOption configures Wait.
type WaitOption func(*waitConfig)

// WithInterval sets the delay between polls.
func WithInterval(d time.Duration) WaitOption {
	return func(c *waitConfig) { c.interval = d }
}

// WithMaxAttempts caps the number of polls. Zero means no cap.
func WithMaxAttempts(n int) WaitOption {
	return func(c *waitConfig) { c.maxAttempts = n }
}

// WithTimeout caps the wall-clock time spent waiting. Zero means no cap.
func WithTimeout(d time.Duration) WaitOption {
	return func(c *waitConfig) { c.timeout = d }
}

// Wait polls until the job is terminal. Each iteration sleeps for the
// interval and then polls; cancellation and the configured caps are checked
// before the sleep and again before the poll.
//
// Transport errors are logged and retried on the next iteration. When Wait
// gives up, the job keeps the last status it observed.
func (j *Job[R]) Wait(ctx context.Context, opts ...WaitOption) error {
	if j.Status.Terminal() {
		return nil
	}

	cfg := waitConfig{interval: DefaultInterval}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := j.client
	log := c.log(ctx).With("job_id", j.ID, "kind", j.Kind())
	start := c.now()
	outcome := "resolved"
	defer func() {
		c.waitDuration.Record(ctx, c.now().Sub(start).Seconds(), metric.WithAttributes(
			attribute.String("kind", j.Kind()),
			attribute.String("outcome", outcome),
		))
	}()

	check := func(attempt int) error {
		if err := ctx.Err(); err != nil {
			outcome = "cancelled"
			return err
		}
		if cfg.maxAttempts > 0 && attempt > cfg.maxAttempts {
			outcome = "exhausted"
			return fmt.Errorf("%w: job %s still %s after %d polls", ErrWaitExhausted, j.ID, j.Status, cfg.maxAttempts)
		}
		if cfg.timeout > 0 && c.now().Sub(start) >= cfg.timeout {
			outcome = "exhausted"
			return fmt.Errorf("%w: job %s still %s after %s", ErrWaitExhausted, j.ID, j.Status, cfg.timeout)
		}
		return nil
	}

	for attempt := 1; ; attempt++ {
		if err := check(attempt); err != nil {
			return err
		}
		if err := c.sleep(ctx, cfg.interval); err != nil {
			outcome = "cancelled"
			return err
		}
		if err := check(attempt); err != nil {
			return err
		}

		status, err := j.Poll(ctx)
		if err != nil {
			if errors.Is(err, ErrTransport) && ctx.Err() == nil {
				log.Warn("status poll failed, retrying", "attempt", attempt, "error", err)
				continue
			}
			outcome = "error"
			return err
		}

		log.Debug("job polled", "attempt", attempt, "status", status)
		if status.Terminal() {
			if status == StatusFailed {
				outcome = "failed"
			}
			log.Info("job finished", "status", status, "attempts", attempt)
			return nil
		}
	}
}

// Retrieve fetches the result of a RESOLVED job with a single backend call.
func (j *Job[R]) Retrieve(ctx context.Context) (R, error) {
	var zero R
	kind := j.Kind()

	if j.Rejection != nil {
		return zero, fmt.Errorf("%w: %s job was rejected at submit: %w", ErrInvalidState, kind, j.Rejection)
	}
	if j.Status != StatusResolved {
		return zero, fmt.Errorf("%w: cannot retrieve %s job %q in state %s", ErrInvalidState, kind, j.ID, j.Status)
	}

	op := "retrieve " + kind
	body, err := j.client.post(ctx, op, j.ID, j.op.RetrieveURL(), api.PipelineRequest{PipelineID: j.ID})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return zero, rejected(op, apiErr)
		}
		return zero, err
	}

	result, err := j.op.ParseResult(ctx, body)
	if err != nil {
		return zero, fmt.Errorf("failed to parse %s result for job %s: %w", kind, j.ID, err)
	}
	return result, nil
}

// Run submits op, waits for it and retrieves its result. The job is
// returned whenever one was created, so callers can report its id.
func Run[R any](ctx context.Context, c *Client, op Operation[R], opts ...WaitOption) (R, *Job[R], error) {
	var zero R

	job, err := Submit(ctx, c, op)
	if err != nil {
		return zero, nil, err
	}
	if job.Rejection != nil {
		return zero, job, job.Rejection
	}
	if err := job.Wait(ctx, opts...); err != nil {
		return zero, job, err
	}
	if job.Status == StatusFailed {
		return zero, job, fmt.Errorf("%w: %s job %s", ErrJobFailed, job.Kind(), job.ID)
	}

	result, err := job.Retrieve(ctx)
	return result, job, err
}
