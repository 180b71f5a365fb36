// Package scraper fetches search-result pages and extracts candidate
// listing links with their surrounding context.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"

	"github.com/gilsadis1/rentalsbot/pkg/rental"
)

const (
	userAgent      = "Mozilla/5.0 (compatible; TelAvivRentalBot/1.0)"
	maxContextLen  = 400 // Runes of context text kept per listing
	fetchAttempts  = 3
	fetchBaseDelay = time.Second
)

// HTTPStatusError indicates a non-success HTTP response from a source.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsHTTPStatusError checks if an error is an HTTP status error.
func IsHTTPStatusError(err error) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr)
}

// listingPathPatterns are the URL shapes that identify an individual
// listing page across the supported classified-ad sites. Matching is
// deliberately site-agnostic: robust over precise.
var listingPathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`itemId=\d+`),
	regexp.MustCompile(`/item/\d+`),
	regexp.MustCompile(`/rent/\d+`),
	regexp.MustCompile(`/realestate/item`),
	regexp.MustCompile(`/realestate/rent/.+/\d+`),
	regexp.MustCompile(`/nadlan/.+/\d+`),
}

// trackingParams are query parameters stripped during normalization so
// the same listing reached via different campaigns dedups to one key.
var trackingParams = []string{"gclid", "fbclid", "msclkid", "ref"}

// Scraper fetches and parses search-result pages.
type Scraper struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a new scraper.
func New(client *http.Client, logger *slog.Logger) *Scraper {
	return &Scraper{
		client: client,
		logger: logger,
	}
}

// FetchLinks retrieves the source's search page and returns the unique
// candidate listings found on it, in page order.
func (s *Scraper) FetchLinks(ctx context.Context, src rental.Source) ([]*rental.Listing, error) {
	var listings []*rental.Listing

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("User-Agent", userAgent)
			req.Header.Set("Accept", "text/html,application/xhtml+xml")
			req.Header.Set("Accept-Language", "he-IL,he;q=0.9,en;q=0.8")

			startTime := time.Now()
			resp, err := s.client.Do(req)
			duration := time.Since(startTime)

			if err != nil {
				s.logger.Warn("HTTP request failed, will retry",
					"source", src.Name,
					"url", src.URL,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					s.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			s.logger.Info("HTTP request completed",
				"source", src.Name,
				"url", src.URL,
				"status_code", resp.StatusCode,
				"duration_ms", duration.Milliseconds(),
				"content_length", resp.ContentLength)

			if resp.StatusCode != http.StatusOK {
				statusErr := &HTTPStatusError{URL: src.URL, StatusCode: resp.StatusCode}
				// Client errors other than rate limiting won't heal on retry
				if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return retry.Unrecoverable(statusErr)
				}
				return statusErr
			}

			listings, err = parseListings(resp.Body, src)
			if err != nil {
				s.logger.Error("Failed to parse HTML", "source", src.Name, "error", err)
				return retry.Unrecoverable(err)
			}

			s.logger.Info("Search page parsed",
				"source", src.Name,
				"candidates", len(listings))

			return nil
		},
		retry.Attempts(fetchAttempts),
		retry.Delay(fetchBaseDelay),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Info("Retrying fetch after error", "source", src.Name, "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch %s after retries: %w", src.Name, err)
	}

	return listings, nil
}

// parseListings scans all anchors on the page and keeps those whose
// normalized href looks like an individual listing.
func parseListings(body io.Reader, src rental.Source) ([]*rental.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}

	var listings []*rental.Listing
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")

		abs, ok := NormalizeURL(base, href)
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		if !IsListingLink(abs, src.DomainHint) {
			return
		}

		seen[abs] = struct{}{}
		listings = append(listings, &rental.Listing{
			URL:      abs,
			Text:     contextText(sel),
			ImageURL: imageNear(sel, base),
			Source:   src.Name,
		})
	})

	return listings, nil
}

// NormalizeURL resolves href against base and canonicalizes it into the
// dedup identity: absolute, fragment-free, tracking parameters removed.
// Returns false for hrefs that cannot identify a listing at all.
func NormalizeURL(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}

	abs.Fragment = ""

	q := abs.Query()
	changed := false
	for key := range q {
		if strings.HasPrefix(strings.ToLower(key), "utm_") {
			q.Del(key)
			changed = true
			continue
		}
		for _, tp := range trackingParams {
			if strings.EqualFold(key, tp) {
				q.Del(key)
				changed = true
				break
			}
		}
	}
	if changed {
		abs.RawQuery = q.Encode()
	}

	return abs.String(), true
}

// IsListingLink reports whether a normalized URL points at an individual
// listing on the hinted domain.
func IsListingLink(rawURL, domainHint string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if domainHint != "" && !strings.Contains(u.Host, domainHint) {
		return false
	}

	pathQ := u.Path + "?" + u.RawQuery
	for _, pat := range listingPathPatterns {
		if pat.MatchString(pathQ) {
			return true
		}
	}
	return false
}

// contextText returns the whitespace-collapsed text of the nearest
// listing-card ancestor, capped at maxContextLen runes.
func contextText(sel *goquery.Selection) string {
	container := sel.Closest("article, li, div")
	if container.Length() == 0 {
		container = sel
	}

	text := strings.Join(strings.Fields(container.Text()), " ")
	runes := []rune(text)
	if len(runes) > maxContextLen {
		text = string(runes[:maxContextLen])
	}
	return text
}

var bgImageRe = regexp.MustCompile(`url\(["']?([^"')]+)["']?\)`)

// imageNear finds the best image URL inside the listing card, preferring
// lazy-load attributes over src since src often holds a placeholder.
func imageNear(sel *goquery.Selection, base *url.URL) string {
	container := sel.Closest("article, li, div")
	if container.Length() == 0 {
		container = sel
	}

	var found string
	container.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src, ok := img.Attr("data-src")
		if !ok {
			src, ok = img.Attr("data-lazy-src")
		}
		if !ok {
			src, ok = img.Attr("src")
		}
		if !ok || src == "" {
			return true
		}

		abs := absoluteImageURL(src, base)
		if abs == "" || !usableImage(abs) {
			return true
		}

		found = abs
		return false
	})
	if found != "" {
		return found
	}

	// Some sites render card photos as CSS background images
	container.Find("[style]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		style, _ := el.Attr("style")
		m := bgImageRe.FindStringSubmatch(style)
		if m == nil {
			return true
		}
		abs := absoluteImageURL(m[1], base)
		if abs == "" || strings.Contains(strings.ToLower(abs), "placeholder") {
			return true
		}
		found = abs
		return false
	})

	return found
}

func absoluteImageURL(src string, base *url.URL) string {
	switch {
	case strings.HasPrefix(src, "//"):
		return "https:" + src
	case strings.HasPrefix(src, "/"):
		ref, err := url.Parse(src)
		if err != nil {
			return ""
		}
		return base.ResolveReference(ref).String()
	default:
		return src
	}
}

// usableImage rejects placeholders, icons, and inline data URIs.
func usableImage(src string) bool {
	lower := strings.ToLower(src)
	for _, bad := range []string{"placeholder", "icon", "logo", "avatar", "data:image"} {
		if strings.Contains(lower, bad) {
			return false
		}
	}
	return len(src) > 20
}
