// Package providers holds the per-platform rating fetchers the engine
// dispatches to: Google Places for google, Apify actors for the OTAs,
// and a deterministic stub for offline development.
package providers

import (
	"errors"
	"net"
	"net/http"

	"repscore-engine/internal/domain"
)

const userAgent = "repscore-engine/1.0 (+local)"

// classifyStatus maps an HTTP status to a classified error, nil for
// anything below 400.
func classifyStatus(pl domain.Platform, code int) error {
	switch {
	case code < 400:
		return nil
	case code == http.StatusTooManyRequests:
		return domain.Classedf(domain.ClassRateLimited, pl, "http %d", code)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.Classedf(domain.ClassConfig, pl, "http %d: check credentials", code)
	case code == http.StatusNotFound:
		return domain.Classedf(domain.ClassNotListed, pl, "http %d", code)
	default:
		return domain.Classedf(domain.ClassUnknown, pl, "http %d", code)
	}
}

// classifyTransport maps client-side errors; timeouts become TIMEOUT.
func classifyTransport(pl domain.Platform, err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return domain.Classed(domain.ClassTimeout, pl, err)
	}
	return domain.Classed(domain.ClassUnknown, pl, err)
}
