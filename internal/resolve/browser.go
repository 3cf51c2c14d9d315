package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"repscore-engine/internal/domain"
)

// BrowserFinder renders a platform's search page in headless Chrome
// before reading listing links, for OTAs that build results with
// JavaScript. Lookups are rare and paced, so each Find gets its own
// browser context.
type BrowserFinder struct {
	Bases   map[domain.Platform]string
	Timeout time.Duration
}

func NewBrowserFinder() *BrowserFinder {
	bases := make(map[domain.Platform]string, len(platformSearch))
	for pl, spec := range platformSearch {
		bases[pl] = spec.base
	}
	return &BrowserFinder{Bases: bases, Timeout: 60 * time.Second}
}

func (f *BrowserFinder) Find(ctx context.Context, prop domain.Property, pl domain.Platform) ([]Candidate, error) {
	spec, ok := platformSearch[pl]
	if !ok {
		return nil, domain.Classedf(domain.ClassConfig, pl, "no search route for platform")
	}
	base := f.Bases[pl]
	if base == "" {
		base = spec.base
	}
	searchURL := base + fmt.Sprintf(spec.searchPath, url.QueryEscape(searchQuery(prop)))

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if bin := findBrowserBinary(); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelTab()

	runCtx, cancelRun := context.WithTimeout(tabCtx, f.timeout())
	defer cancelRun()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(searchURL),
		chromedp.Sleep(3*time.Second), // let result tiles render
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.Classed(domain.ClassTimeout, pl, fmt.Errorf("browser search: %w", err))
		}
		return nil, domain.Classed(domain.ClassUnknown, pl, fmt.Errorf("browser search: %w", err))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered html: %w", err)
	}
	return collectCandidates(doc, base, spec.hrefMark), nil
}

func (f *BrowserFinder) timeout() time.Duration {
	if f.Timeout > 0 {
		return f.Timeout
	}
	return 60 * time.Second
}

// findBrowserBinary locates a Chrome/Chromium binary, preferring an
// explicit CHROME_BIN.
func findBrowserBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}
	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
