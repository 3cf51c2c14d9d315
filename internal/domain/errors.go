package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorClass is the classification a provider or the orchestrator
// attaches to a failed unit. Classes drive the retry decision.
type ErrorClass string

const (
	ClassRateLimited ErrorClass = "RATE_LIMITED"
	ClassTimeout     ErrorClass = "TIMEOUT"
	ClassNotListed   ErrorClass = "NOT_LISTED"
	ClassNoIdentity  ErrorClass = "NO_IDENTITY"
	ClassNeedsReview ErrorClass = "NEEDS_REVIEW"
	ClassMalformed   ErrorClass = "MALFORMED"
	ClassConfig      ErrorClass = "CONFIG_ERROR"
	ClassSave        ErrorClass = "SAVE_ERROR"
	ClassUnknown     ErrorClass = "UNKNOWN"
)

// Retryable reports whether the class is transient. Permanent classes
// fail immediately without consuming a retry.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ClassRateLimited, ClassTimeout, ClassUnknown:
		return true
	}
	return false
}

// ClassedError wraps a cause with its classification and the platform
// it happened on.
type ClassedError struct {
	Class    ErrorClass
	Platform Platform
	Err      error
}

func (e *ClassedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Platform, e.Class)
	}
	return fmt.Sprintf("%s: %s: %v", e.Platform, e.Class, e.Err)
}

func (e *ClassedError) Unwrap() error { return e.Err }

func Classed(class ErrorClass, platform Platform, err error) *ClassedError {
	return &ClassedError{Class: class, Platform: platform, Err: err}
}

func Classedf(class ErrorClass, platform Platform, format string, args ...any) *ClassedError {
	return &ClassedError{Class: class, Platform: platform, Err: fmt.Errorf(format, args...)}
}

// ClassOf extracts the classification from an error chain. Bare
// deadline errors count as TIMEOUT; anything unclassified is UNKNOWN.
func ClassOf(err error) ErrorClass {
	var ce *ClassedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	return ClassUnknown
}
