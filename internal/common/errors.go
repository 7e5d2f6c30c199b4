// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound = errors.New("not found")

	// Linking conflicts.
	ErrAlreadyLinked   = errors.New("item already linked")
	ErrItemNotFound    = errors.New("line item not found")
	ErrProductNotFound = errors.New("catalog product not found")

	// Review workflow errors.
	ErrInvalidTransition = errors.New("invalid review transition")

	// Embedding collaborator errors.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Conflicts and missing records never resolve by retrying.
	if errors.Is(err, ErrAlreadyLinked) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrProductNotFound) {
		return false
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
