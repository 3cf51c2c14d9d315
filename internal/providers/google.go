package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"repscore-engine/internal/domain"
)

const googleBase = "https://maps.googleapis.com"

// Google fetches place ratings through the Places Details API. The
// place ID comes straight from property config; google units never go
// through URL resolution.
type Google struct {
	APIKey string
	Base   string
	hc     *http.Client
}

func NewGoogle(apiKey string) *Google {
	return &Google{
		APIKey: apiKey,
		Base:   googleBase,
		hc:     &http.Client{Timeout: 20 * time.Second},
	}
}

func (g *Google) Platform() domain.Platform { return domain.PlatformGoogle }

type placeDetails struct {
	Result struct {
		Name             string  `json:"name"`
		Rating           float64 `json:"rating"`
		UserRatingsTotal int     `json:"user_ratings_total"`
	} `json:"result"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

func (g *Google) Fetch(ctx context.Context, id domain.Identity) (domain.RatingResult, error) {
	if g.APIKey == "" {
		return domain.RatingResult{}, domain.Classedf(domain.ClassConfig, domain.PlatformGoogle, "google api key not set")
	}

	q := url.Values{}
	q.Set("place_id", id.Ref)
	q.Set("fields", "name,rating,user_ratings_total")
	q.Set("key", g.APIKey)
	detailsURL := g.Base + "/maps/api/place/details/json?" + q.Encode()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, detailsURL, nil)
	req.Header.Set("User-Agent", userAgent)

	res, err := g.hc.Do(req)
	if err != nil {
		return domain.RatingResult{}, classifyTransport(domain.PlatformGoogle, err)
	}
	defer res.Body.Close()
	if cerr := classifyStatus(domain.PlatformGoogle, res.StatusCode); cerr != nil {
		return domain.RatingResult{}, cerr
	}

	var body placeDetails
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return domain.RatingResult{}, domain.Classed(domain.ClassUnknown, domain.PlatformGoogle, fmt.Errorf("places decode: %w", err))
	}

	// the API reports errors in-band through the status field
	switch body.Status {
	case "OK":
	case "ZERO_RESULTS", "NOT_FOUND":
		return domain.RatingResult{}, domain.Classedf(domain.ClassNotListed, domain.PlatformGoogle, "places status %s", body.Status)
	case "OVER_QUERY_LIMIT", "RESOURCE_EXHAUSTED":
		return domain.RatingResult{}, domain.Classedf(domain.ClassRateLimited, domain.PlatformGoogle, "places status %s", body.Status)
	case "REQUEST_DENIED", "INVALID_REQUEST":
		return domain.RatingResult{}, domain.Classedf(domain.ClassConfig, domain.PlatformGoogle, "places status %s: %s", body.Status, body.ErrorMessage)
	default:
		return domain.RatingResult{}, domain.Classedf(domain.ClassUnknown, domain.PlatformGoogle, "places status %s: %s", body.Status, body.ErrorMessage)
	}

	return domain.RatingResult{
		Platform:    domain.PlatformGoogle,
		RawScore:    body.Result.Rating,
		Scale:       domain.PlatformGoogle.Scale(),
		ReviewCount: body.Result.UserRatingsTotal,
		DisplayName: body.Result.Name,
	}, nil
}
