package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// ErrAllKeysExhausted is returned when every key in the ring hit a quota or auth error.
var ErrAllKeysExhausted = errors.New("all api keys exhausted")

// CallRecorder observes each backend call by key index (0-based).
type CallRecorder func(keyIndex int, err error)

// KeyRing sends each request to the active backend and moves to the next one
// when the active key reports a quota or credential failure.
type KeyRing struct {
	mu       sync.Mutex
	backends []Generator
	active   int
	logger   logrus.FieldLogger

	OnCall CallRecorder
}

// NewKeyRing creates a ring over backends, one per API key.
func NewKeyRing(backends []Generator, logger logrus.FieldLogger) *KeyRing {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &KeyRing{backends: backends, logger: logger}
}

// Generate tries the active key, rotating through the remaining keys on key errors.
func (r *KeyRing) Generate(ctx context.Context, prompt string) (string, error) {
	if len(r.backends) == 0 {
		return "", errors.New("key ring is empty")
	}

	var lastErr error
	for attempt := 0; attempt < len(r.backends); attempt++ {
		idx, backend := r.current()
		out, err := backend.Generate(ctx, prompt)
		if r.OnCall != nil {
			r.OnCall(idx, err)
		}
		if err == nil {
			return out, nil
		}
		if !IsKeyError(err) {
			return "", err
		}
		lastErr = err
		next := r.rotate(idx)
		r.logger.WithFields(logrus.Fields{
			"key":      idx + 1,
			"next_key": next + 1,
		}).WithError(err).Warn("API key unavailable, switching keys")
	}
	return "", fmt.Errorf("%w: %v", ErrAllKeysExhausted, lastErr)
}

// Model returns the model of the active backend.
func (r *KeyRing) Model() string {
	_, b := r.current()
	if b == nil {
		return ""
	}
	return b.Model()
}

// Active returns the 0-based index of the key currently in use.
func (r *KeyRing) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *KeyRing) current() (int, Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.backends) == 0 {
		return 0, nil
	}
	return r.active, r.backends[r.active]
}

// rotate advances past failed unless another caller already did.
func (r *KeyRing) rotate(failed int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == failed {
		r.active = (r.active + 1) % len(r.backends)
	}
	return r.active
}

// IsKeyError reports whether err means the key itself cannot serve requests
// right now (quota exhausted, invalid or revoked key).
func IsKeyError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusUnauthorized, http.StatusForbidden:
			return true
		}
		if apiErr.Status == "RESOURCE_EXHAUSTED" || apiErr.Status == "PERMISSION_DENIED" {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"quota", "resource_exhausted", "api key", "api_key", "rate limit"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
