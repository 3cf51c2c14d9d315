package domain

import "fmt"

type Platform string

const (
	PlatformGoogle      Platform = "google"
	PlatformTripadvisor Platform = "tripadvisor"
	PlatformBooking     Platform = "booking"
	PlatformExpedia     Platform = "expedia"
)

var platformMeta = map[Platform]struct {
	display string
	scale   int
	resolve bool
}{
	PlatformGoogle:      {"Google", 5, false},
	PlatformTripadvisor: {"Tripadvisor", 5, true},
	PlatformBooking:     {"Booking.com", 10, true},
	PlatformExpedia:     {"Expedia", 10, true},
}

// AllPlatforms returns the fixed fetch order: google first, then the OTAs.
func AllPlatforms() []Platform {
	return []Platform{PlatformGoogle, PlatformTripadvisor, PlatformBooking, PlatformExpedia}
}

func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if _, ok := platformMeta[p]; !ok {
		return "", fmt.Errorf("unknown platform %q", s)
	}
	return p, nil
}

func (p Platform) Valid() bool {
	_, ok := platformMeta[p]
	return ok
}

func (p Platform) DisplayName() string { return platformMeta[p].display }

// Scale is the platform's native rating scale, 5 or 10.
func (p Platform) Scale() int { return platformMeta[p].scale }

// RequiresResolution reports whether a listing URL must be resolved
// before this platform can be fetched. Google carries a place ID and
// never needs resolution.
func (p Platform) RequiresResolution() bool { return platformMeta[p].resolve }
