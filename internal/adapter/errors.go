package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orderhub/orderhub/internal/domain"
)

// Sentinel errors matched with errors.Is against the typed errors below
var (
	ErrAuth        = errors.New("platform credential rejected")
	ErrRateLimited = errors.New("platform rate limit exceeded")
	ErrTransient   = errors.New("platform temporarily unavailable")
	ErrData        = errors.New("platform record could not be mapped")
	ErrNoAdapter   = errors.New("no adapter registered for platform")
)

// AuthError means the credential was rejected; it is never retried
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", ErrAuth, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", ErrAuth, e.Message)
}

func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// RateLimitedError means the platform throttled the call.
// RetryAfter is zero when the platform gave no hint.
type RateLimitedError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
	}
	return ErrRateLimited.Error()
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// TransientError covers network failures, 5xx responses and call timeouts
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", ErrTransient, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// DataError is a single record that could not be mapped
type DataError struct {
	ExternalID string
	Err        error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%s: record %q: %v", ErrData, e.ExternalID, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

func (e *DataError) Is(target error) bool { return target == ErrData }

// Classify maps an adapter error to the kind recorded on the connection
func Classify(err error) domain.ErrorKind {
	switch {
	case err == nil:
		return domain.ErrorKindNone
	case errors.Is(err, ErrAuth):
		return domain.ErrorKindAuth
	case errors.Is(err, ErrRateLimited):
		return domain.ErrorKindRateLimited
	case errors.Is(err, ErrTransient):
		return domain.ErrorKindTransient
	default:
		return domain.ErrorKindInternal
	}
}

// RetryAfter extracts the throttling hint from err
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// normalize turns deadline overruns into transient errors and leaves typed errors alone
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAuth) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Err: err}
	}
	return err
}
