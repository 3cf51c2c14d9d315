package refresh

import (
	"testing"
	"time"

	"repscore-engine/internal/domain"
)

func TestShouldRetry(t *testing.T) {
	p := Policy{MaxRetries: 1, Delay: time.Second}
	cases := []struct {
		name    string
		pl      domain.Platform
		attempt int
		class   domain.ErrorClass
		want    bool
	}{
		{"ota rate limited first attempt", domain.PlatformBooking, 0, domain.ClassRateLimited, true},
		{"ota timeout first attempt", domain.PlatformExpedia, 0, domain.ClassTimeout, true},
		{"ota unknown first attempt", domain.PlatformTripadvisor, 0, domain.ClassUnknown, true},
		{"ota budget exhausted", domain.PlatformBooking, 1, domain.ClassRateLimited, false},
		{"google never retried", domain.PlatformGoogle, 0, domain.ClassRateLimited, false},
		{"not listed never retried", domain.PlatformBooking, 0, domain.ClassNotListed, false},
		{"no identity never retried", domain.PlatformBooking, 0, domain.ClassNoIdentity, false},
		{"needs review never retried", domain.PlatformBooking, 0, domain.ClassNeedsReview, false},
		{"malformed never retried", domain.PlatformBooking, 0, domain.ClassMalformed, false},
		{"config error never retried", domain.PlatformBooking, 0, domain.ClassConfig, false},
		{"save error never retried in-run", domain.PlatformBooking, 0, domain.ClassSave, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.ShouldRetry(tc.pl, tc.attempt, tc.class); got != tc.want {
				t.Errorf("ShouldRetry(%s, %d, %s) = %v, want %v", tc.pl, tc.attempt, tc.class, got, tc.want)
			}
		})
	}
}

func TestShouldRetryZeroBudget(t *testing.T) {
	p := Policy{MaxRetries: 0}
	if p.ShouldRetry(domain.PlatformBooking, 0, domain.ClassRateLimited) {
		t.Error("zero budget must never retry")
	}
}

func TestBackoffIsFixed(t *testing.T) {
	p := Policy{MaxRetries: 3, Delay: 10 * time.Second}
	for attempt := 1; attempt <= 3; attempt++ {
		if got := p.Backoff(attempt); got != 10*time.Second {
			t.Errorf("Backoff(%d) = %s, want fixed 10s", attempt, got)
		}
	}
}
