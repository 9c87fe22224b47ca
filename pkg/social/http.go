package social

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 4 << 20

// HTTPOptions configure request timeouts and retries.
type HTTPOptions struct {
	Timeout    time.Duration // per attempt
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Logger     logrus.FieldLogger
}

func normalizeHTTPOptions(opts HTTPOptions) HTTPOptions {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 10 * time.Second
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = opts.BaseDelay
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return opts
}

// response is a fully read HTTP response, so retried attempts never leak bodies.
type response struct {
	Status int
	Body   []byte
}

func shouldRetry(resp *response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return true
	}
	switch resp.Status {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// doer executes requests under a retry policy with a per-attempt timeout.
type doer struct {
	client   *http.Client
	opts     HTTPOptions
	executor failsafe.Executor[*response]
}

func newDoer(client *http.Client, opts HTTPOptions) *doer {
	opts = normalizeHTTPOptions(opts)
	if client == nil {
		client = http.DefaultClient
	}
	policy := retrypolicy.NewBuilder[*response]().
		WithBackoff(opts.BaseDelay, opts.MaxDelay).
		WithMaxRetries(opts.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(shouldRetry).
		ReturnLastFailure().
		Build()
	return &doer{client: client, opts: opts, executor: failsafe.With[*response](policy)}
}

// do runs build to create a fresh request for each attempt.
func (d *doer) do(ctx context.Context, op string, build func(ctx context.Context) (*http.Request, error)) (*response, error) {
	attempt := 0
	return d.executor.WithContext(ctx).Get(func() (*response, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()

		req, err := build(callCtx)
		if err != nil {
			return nil, err
		}
		resp, err := d.client.Do(req)
		if err != nil {
			d.logRetry(op, attempt, err)
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			d.logRetry(op, attempt, err)
			return nil, fmt.Errorf("read body: %w", err)
		}
		out := &response{Status: resp.StatusCode, Body: body}
		if shouldRetry(out, nil) {
			d.logRetry(op, attempt, fmt.Errorf("status %d", resp.StatusCode))
		}
		return out, nil
	})
}

func (d *doer) logRetry(op string, attempt int, err error) {
	if attempt > d.opts.MaxRetries {
		return
	}
	d.opts.Logger.WithFields(logrus.Fields{
		"op":      op,
		"attempt": attempt,
	}).WithError(err).Debug("Social API call failed, retrying")
}

func statusError(resp *response) error {
	return fmt.Errorf("status %d: %s", resp.Status, snippet(resp.Body))
}

func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
