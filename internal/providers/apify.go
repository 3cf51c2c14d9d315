package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"repscore-engine/internal/domain"
)

const apifyBase = "https://api.apify.com"

// DefaultActors maps each OTA to the Apify actor that scrapes it.
// Overridable per platform in config.
var DefaultActors = map[domain.Platform]string{
	domain.PlatformTripadvisor: "maxcopell~tripadvisor-scraper",
	domain.PlatformBooking:     "voyager~booking-scraper",
	domain.PlatformExpedia:     "epctex~expedia-scraper",
}

// Apify fetches OTA ratings by running a scraping actor synchronously
// against the unit's resolved listing URL. One call per unit; the run
// blocks until the actor's dataset is ready.
type Apify struct {
	platform domain.Platform
	Actor    string
	Token    string
	Base     string
	hc       *http.Client
}

func NewApify(pl domain.Platform, actor, token string) *Apify {
	if actor == "" {
		actor = DefaultActors[pl]
	}
	return &Apify{
		platform: pl,
		Actor:    actor,
		Token:    token,
		Base:     apifyBase,
		// sync actor runs routinely take a minute
		hc: &http.Client{Timeout: 150 * time.Second},
	}
}

func (a *Apify) Platform() domain.Platform { return a.platform }

type apifyInput struct {
	StartURLs []apifyStartURL `json:"startUrls"`
	MaxItems  int             `json:"maxItems"`
}

type apifyStartURL struct {
	URL string `json:"url"`
}

// apifyItem covers the rating fields the different actors emit.
type apifyItem struct {
	Name            string   `json:"name"`
	Title           string   `json:"title"`
	Rating          *float64 `json:"rating"`
	ReviewsScore    *float64 `json:"reviewsScore"`
	Stars           *float64 `json:"overallRating"`
	ReviewsCount    *int     `json:"reviewsCount"`
	NumberOfReviews *int     `json:"numberOfReviews"`
	ReviewsTotal    *int     `json:"numReviews"`
}

func (it apifyItem) displayName() string {
	if it.Name != "" {
		return it.Name
	}
	return it.Title
}

func (it apifyItem) rating() (float64, bool) {
	for _, v := range []*float64{it.Rating, it.ReviewsScore, it.Stars} {
		if v != nil {
			return *v, true
		}
	}
	return 0, false
}

func (it apifyItem) reviewCount() int {
	for _, v := range []*int{it.ReviewsCount, it.NumberOfReviews, it.ReviewsTotal} {
		if v != nil {
			return *v
		}
	}
	return 0
}

func (a *Apify) Fetch(ctx context.Context, id domain.Identity) (domain.RatingResult, error) {
	if a.Token == "" {
		return domain.RatingResult{}, domain.Classedf(domain.ClassConfig, a.platform, "apify token not set")
	}
	if a.Actor == "" {
		return domain.RatingResult{}, domain.Classedf(domain.ClassConfig, a.platform, "no actor configured")
	}

	input, _ := json.Marshal(apifyInput{
		StartURLs: []apifyStartURL{{URL: id.Ref}},
		MaxItems:  1,
	})

	q := url.Values{}
	q.Set("token", a.Token)
	q.Set("timeout", "120")
	runURL := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items?%s", a.Base, a.Actor, q.Encode())

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, runURL, bytes.NewReader(input))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	res, err := a.hc.Do(req)
	if err != nil {
		return domain.RatingResult{}, classifyTransport(a.platform, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusRequestTimeout || res.StatusCode == http.StatusGatewayTimeout {
		return domain.RatingResult{}, domain.Classedf(domain.ClassTimeout, a.platform, "actor run timed out (http %d)", res.StatusCode)
	}
	if cerr := classifyStatus(a.platform, res.StatusCode); cerr != nil {
		return domain.RatingResult{}, cerr
	}

	var items []apifyItem
	if err := json.NewDecoder(res.Body).Decode(&items); err != nil {
		return domain.RatingResult{}, domain.Classed(domain.ClassUnknown, a.platform, fmt.Errorf("actor output decode: %w", err))
	}
	if len(items) == 0 {
		return domain.RatingResult{}, domain.Classedf(domain.ClassNotListed, a.platform, "actor returned no listing for %s", id.Ref)
	}

	item := items[0]
	raw, ok := item.rating()
	if !ok {
		return domain.RatingResult{}, domain.Classedf(domain.ClassUnknown, a.platform, "actor item carries no rating field")
	}

	return domain.RatingResult{
		Platform:    a.platform,
		RawScore:    raw,
		Scale:       a.platform.Scale(),
		ReviewCount: item.reviewCount(),
		DisplayName: item.displayName(),
	}, nil
}
