package types

import (
	"errors"
	"fmt"
)

// Error taxonomy. Components wrap these with %w so callers can use errors.Is.
var (
	ErrFetch          = errors.New("fetch failed")
	ErrClassification = errors.New("classification failed")
	ErrGeneration     = errors.New("generation failed")
	ErrSafetyRejected = errors.New("safety rejected")
	ErrPosting        = errors.New("posting failed")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrLedgerIO       = errors.New("ledger io failed")
)

// SafetyRejection explains why a candidate was dropped by the safety gate.
type SafetyRejection struct {
	Persona PersonaTag
	Reason  string
}

func (e *SafetyRejection) Error() string {
	return fmt.Sprintf("%s reply rejected: %s", e.Persona, e.Reason)
}

func (e *SafetyRejection) Unwrap() error { return ErrSafetyRejected }

// RateLimitExceeded reports the trailing-window count at the time of refusal.
type RateLimitExceeded struct {
	Count int
	Cap   int
}

func (e *RateLimitExceeded) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d/%d replies in window", e.Count, e.Cap)
}

func (e *RateLimitExceeded) Unwrap() error { return ErrRateLimited }
