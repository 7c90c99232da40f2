package apperrors

import (
	"context"
	"errors"
	"fmt"
)

// ConfigError represents an invalid configuration value. The service cannot
// start when one is returned.
type ConfigError struct {
	// Message explains the specific configuration error.
	Message string
}

func (e ConfigError) Error() string { return e.Message }

// NewConfigError creates a new ConfigError with a formatted message.
func NewConfigError(format string, a ...any) error {
	return ConfigError{Message: fmt.Sprintf(format, a...)}
}

// TransportError reports a failure to reach an upstream source, or an
// upstream that answered with a non-success status.
type TransportError struct {
	// Source is the logical name of the upstream ("posts", "users", "comments").
	Source string
	// URL is the address that was requested. Empty for non-HTTP sources.
	URL string
	// StatusCode is the upstream HTTP status, or 0 when no response arrived.
	StatusCode int
	// Cause is the underlying error, if any.
	Cause error
}

func (e TransportError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: upstream %s returned status %d", e.Source, e.URL, e.StatusCode)
	case e.URL != "":
		return fmt.Sprintf("fetch %s: %s: %v", e.Source, e.URL, e.Cause)
	default:
		return fmt.Sprintf("fetch %s: %v", e.Source, e.Cause)
	}
}

func (e TransportError) Unwrap() error { return e.Cause }

// DecodeError reports an upstream body that is not a JSON array of the
// expected record shape.
type DecodeError struct {
	Source string
	Cause  error
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Source, e.Cause)
}

func (e DecodeError) Unwrap() error { return e.Cause }

// JoinIntegrityError reports a post whose author is missing from the
// fetched user set.
type JoinIntegrityError struct {
	PostID int64
	UserID int64
}

func (e JoinIntegrityError) Error() string {
	return fmt.Sprintf("join: post %d references unknown user %d", e.PostID, e.UserID)
}

// WrapError wraps an error with additional context using fmt.Errorf and %w.
// It returns nil if err is nil.
func WrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsContextError checks if the error is a context cancellation or deadline exceeded error.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
