package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"repscore-engine/internal/domain"
)

// platformSearch describes how to query each OTA and recognize listing
// links in the result page.
var platformSearch = map[domain.Platform]struct {
	base       string
	searchPath string // fmt with one %s: the escaped query
	hrefMark   string // listing links contain this fragment
}{
	domain.PlatformTripadvisor: {
		base:       "https://www.tripadvisor.com",
		searchPath: "/Search?q=%s",
		hrefMark:   "Hotel_Review",
	},
	domain.PlatformBooking: {
		base:       "https://www.booking.com",
		searchPath: "/searchresults.html?ss=%s",
		hrefMark:   "/hotel/",
	},
	domain.PlatformExpedia: {
		base:       "https://www.expedia.com",
		searchPath: "/Hotel-Search?destination=%s",
		hrefMark:   "Hotel-Information",
	},
}

// WebFinder searches a platform's public result pages over plain HTTP.
// Bases may be overridden per platform, which also serves tests.
type WebFinder struct {
	Client *http.Client
	Bases  map[domain.Platform]string
}

func NewWebFinder() *WebFinder {
	bases := make(map[domain.Platform]string, len(platformSearch))
	for pl, spec := range platformSearch {
		bases[pl] = spec.base
	}
	return &WebFinder{
		Client: &http.Client{Timeout: 20 * time.Second},
		Bases:  bases,
	}
}

func (f *WebFinder) Find(ctx context.Context, prop domain.Property, pl domain.Platform) ([]Candidate, error) {
	spec, ok := platformSearch[pl]
	if !ok {
		return nil, domain.Classedf(domain.ClassConfig, pl, "no search route for platform")
	}
	base := f.Bases[pl]
	if base == "" {
		base = spec.base
	}
	searchURL := base + fmt.Sprintf(spec.searchPath, url.QueryEscape(searchQuery(prop)))

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	res, err := f.Client.Do(req)
	if err != nil {
		return nil, classifyFetchErr(pl, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusTooManyRequests {
		return nil, domain.Classedf(domain.ClassRateLimited, pl, "search status %d", res.StatusCode)
	}
	if res.StatusCode >= 400 {
		return nil, domain.Classedf(domain.ClassUnknown, pl, "search status %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search html: %w", err)
	}
	return collectCandidates(doc, base, spec.hrefMark), nil
}

// collectCandidates pulls listing anchors out of a result page,
// deduped by canonical URL.
func collectCandidates(doc *goquery.Document, base, hrefMark string) []Candidate {
	seen := map[string]bool{}
	var out []Candidate

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || !strings.Contains(href, hrefMark) {
			return
		}

		ref := canonicalRef(base, href)
		if ref == "" || seen[ref] {
			return
		}

		name := cleanText(a.Text())
		if name == "" {
			return
		}
		seen[ref] = true
		out = append(out, Candidate{Name: name, Ref: ref})
	})
	return out
}

// canonicalRef absolutizes a listing href against the page base and
// strips volatile query/fragment parts so refs stay stable run to run.
func canonicalRef(base, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !u.IsAbs() {
		b, err := url.Parse(base)
		if err != nil {
			return ""
		}
		u = b.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func classifyFetchErr(pl domain.Platform, err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return domain.Classed(domain.ClassTimeout, pl, err)
	}
	return domain.Classed(domain.ClassUnknown, pl, err)
}
