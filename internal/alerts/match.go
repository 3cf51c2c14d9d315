package alerts

import (
	"sort"
	"strings"
	"unicode"

	"repscore-engine/internal/domain"
)

// platformTokens maps subject substrings to the platform they name.
// Longer tokens are checked first so "booking.com" wins over a
// property that happens to contain "booking".
var platformTokens = []struct {
	token string
	pl    domain.Platform
}{
	{"tripadvisor", domain.PlatformTripadvisor},
	{"booking.com", domain.PlatformBooking},
	{"booking", domain.PlatformBooking},
	{"expedia", domain.PlatformExpedia},
	{"google", domain.PlatformGoogle},
}

// Match decides whether a subject line is a review alert for one of
// the configured properties. markers is the operator's subject_any
// list; a subject matching no marker is not an alert at all.
func Match(subject string, props []domain.Property, markers []string) (domain.Property, domain.Platform, bool) {
	if !containsAnyCI(subject, markers) {
		return domain.Property{}, "", false
	}

	ls := strings.ToLower(subject)
	var pl domain.Platform
	for _, t := range platformTokens {
		if strings.Contains(ls, t.token) {
			pl = t.pl
			break
		}
	}
	if pl == "" {
		return domain.Property{}, "", false
	}

	// Longest name first so "Grand Hotel Downtown" is not claimed by a
	// property named "Grand Hotel".
	cleaned := cleanName(subject)
	byLen := make([]domain.Property, len(props))
	copy(byLen, props)
	sort.SliceStable(byLen, func(i, j int) bool {
		return len(byLen[i].Name) > len(byLen[j].Name)
	})
	for _, p := range byLen {
		name := cleanName(p.Name)
		if name == "" {
			continue
		}
		if strings.Contains(cleaned, name) {
			return p, pl, true
		}
	}
	return domain.Property{}, "", false
}

func containsAnyCI(s string, any []string) bool {
	ls := strings.ToLower(s)
	for _, a := range any {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if strings.Contains(ls, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

// cleanName lowercases and strips everything but letters and digits
// down to single spaces, making containment checks punctuation-proof.
func cleanName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}
