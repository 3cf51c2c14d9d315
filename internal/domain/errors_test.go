package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestRetryable(t *testing.T) {
	retryable := []ErrorClass{ClassRateLimited, ClassTimeout, ClassUnknown}
	permanent := []ErrorClass{ClassNotListed, ClassNoIdentity, ClassNeedsReview, ClassMalformed, ClassConfig}

	for _, c := range retryable {
		if !c.Retryable() {
			t.Errorf("%s should be retryable", c)
		}
	}
	for _, c := range permanent {
		if c.Retryable() {
			t.Errorf("%s should not be retryable", c)
		}
	}
}

func TestClassOf(t *testing.T) {
	base := Classedf(ClassRateLimited, PlatformBooking, "http 429")
	wrapped := fmt.Errorf("fetch booking: %w", base)

	cases := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"direct", base, ClassRateLimited},
		{"wrapped", wrapped, ClassRateLimited},
		{"deadline", context.DeadlineExceeded, ClassTimeout},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ClassTimeout},
		{"plain", errors.New("boom"), ClassUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassOf(tc.err); got != tc.want {
				t.Errorf("ClassOf = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestClassedErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Classed(ClassTimeout, PlatformExpedia, cause)
	if !errors.Is(err, cause) {
		t.Error("ClassedError should unwrap to its cause")
	}
	if err.Error() == "" {
		t.Error("ClassedError.Error() empty")
	}
}
