package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// RetryOptions configure the Retrying wrapper.
type RetryOptions struct {
	Timeout    time.Duration // per attempt; zero disables
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Logger     logrus.FieldLogger
}

func normalizeRetryOptions(opts RetryOptions) RetryOptions {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 8 * time.Second
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = opts.BaseDelay
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return opts
}

// Retrying bounds every call with a deadline and retries transient failures
// with jittered exponential backoff.
type Retrying struct {
	inner    Generator
	opts     RetryOptions
	executor failsafe.Executor[string]
}

// NewRetrying wraps inner.
func NewRetrying(inner Generator, opts RetryOptions) *Retrying {
	opts = normalizeRetryOptions(opts)
	policy := retrypolicy.NewBuilder[string]().
		WithBackoff(opts.BaseDelay, opts.MaxDelay).
		WithMaxRetries(opts.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(_ string, err error) bool {
			return IsTransient(err)
		}).
		ReturnLastFailure().
		Build()
	return &Retrying{
		inner:    inner,
		opts:     opts,
		executor: failsafe.With[string](policy),
	}
}

// Generate runs the inner generator under the retry policy.
func (r *Retrying) Generate(ctx context.Context, prompt string) (string, error) {
	attempt := 0
	return r.executor.WithContext(ctx).Get(func() (string, error) {
		attempt++
		callCtx := ctx
		if r.opts.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
			defer cancel()
		}
		out, err := r.inner.Generate(callCtx, prompt)
		if err != nil && attempt <= r.opts.MaxRetries && IsTransient(err) {
			r.opts.Logger.WithFields(logrus.Fields{
				"model":   r.inner.Model(),
				"attempt": attempt,
			}).WithError(err).Debug("LLM call failed, retrying")
		}
		return out, err
	})
}

// Model returns the inner generator's model.
func (r *Retrying) Model() string {
	return r.inner.Model()
}

// IsTransient reports whether err is worth retrying with the same key.
// Key errors are left to the KeyRing and cancellation is final.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrAllKeysExhausted) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	return !IsKeyError(err)
}
