// Package poll runs one scrape-filter-diff-email cycle over all
// configured sources.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gilsadis1/rentalsbot/digest"
	"github.com/gilsadis1/rentalsbot/pkg/rental"
)

// Fetcher interface for retrieving candidate listings from a source.
type Fetcher interface {
	FetchLinks(ctx context.Context, src rental.Source) ([]*rental.Listing, error)
}

// Filter interface for the listing criteria check.
type Filter interface {
	Passes(text string) bool
}

// SeenStore interface for the persisted seen-set.
type SeenStore interface {
	Contains(ctx context.Context, key string) (bool, error)
	MarkSeen(ctx context.Context, listings []*rental.Listing, ts time.Time) error
}

// Emailer interface for digest delivery.
type Emailer interface {
	SendDigest(ctx context.Context, subject, htmlBody string) error
}

// Runner sequences one run: fetch every source, filter, diff against
// the seen-set, send the digest, then commit the seen-set. The commit
// happens strictly after a successful send so a failed delivery leaves
// the seen-set untouched and the next run retries the same listings.
type Runner struct {
	fetcher Fetcher
	filter  Filter
	store   SeenStore
	emailer Emailer
	logger  *slog.Logger
	sources []rental.Source
	dryRun  bool
}

// New creates a runner over the configured sources. With dryRun set the
// seen-set is never written, so a real run can follow a rehearsal.
func New(fetcher Fetcher, filter Filter, store SeenStore, emailer Emailer, sources []rental.Source, dryRun bool, logger *slog.Logger) *Runner {
	return &Runner{
		fetcher: fetcher,
		filter:  filter,
		store:   store,
		emailer: emailer,
		logger:  logger,
		sources: sources,
		dryRun:  dryRun,
	}
}

// Run executes one full cycle. Per-source fetch failures are absorbed:
// the source contributes nothing and a warning lands in the digest.
// Only a failed send is returned as an error.
func (r *Runner) Run(ctx context.Context) error {
	now := time.Now()
	r.logger.Info("Run started", "sources", len(r.sources), "timestamp", now.Format(time.RFC3339))

	groups := make([]digest.Group, 0, len(r.sources))
	var warnings []string
	var newListings []*rental.Listing
	runSeen := make(map[string]struct{})

	for _, src := range r.sources {
		select {
		case <-ctx.Done():
			r.logger.Info("Context cancelled, stopping run", "error", ctx.Err())
			return ctx.Err()
		default:
		}

		fresh, warning := r.collectSource(ctx, src, runSeen)
		if warning != "" {
			warnings = append(warnings, warning)
		}
		groups = append(groups, digest.Group{Source: src.Name, Listings: fresh})
		newListings = append(newListings, fresh...)
	}

	body, empty := digest.Build(groups, now, warnings)
	if empty {
		r.logger.Info("No new listings, skipping email",
			"sources", len(r.sources),
			"fetch_failures", len(warnings))
		return nil
	}

	subject := digest.Subject(now)
	if err := r.emailer.SendDigest(ctx, subject, body); err != nil {
		// Seen-set deliberately not committed: these listings must
		// show up again next run.
		return fmt.Errorf("send digest: %w", err)
	}

	if r.dryRun {
		r.logger.Info("Dry run, seen-set not updated", "new_listings", len(newListings))
		return nil
	}

	if err := r.store.MarkSeen(ctx, newListings, now); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}

	r.logger.Info("Run completed",
		"new_listings", len(newListings),
		"fetch_failures", len(warnings))
	return nil
}

// collectSource fetches one source and returns its filtered, previously
// unseen listings plus a warning string when the fetch failed.
func (r *Runner) collectSource(ctx context.Context, src rental.Source, runSeen map[string]struct{}) ([]*rental.Listing, string) {
	candidates, err := r.fetcher.FetchLinks(ctx, src)
	if err != nil {
		r.logger.Warn("Source fetch failed, continuing with remaining sources",
			"source", src.Name,
			"error", err)
		return nil, fmt.Sprintf("שגיאה בטעינת %s: %v", src.Name, err)
	}

	var fresh []*rental.Listing
	for _, l := range candidates {
		if !r.filter.Passes(l.Text) {
			continue
		}
		if _, dup := runSeen[l.URL]; dup {
			continue
		}

		seen, err := r.store.Contains(ctx, l.URL)
		if err != nil {
			// Better a duplicate email than a listing silently lost
			r.logger.Warn("Seen-set lookup failed, treating listing as new",
				"url", l.URL,
				"error", err)
		}
		if seen {
			continue
		}

		runSeen[l.URL] = struct{}{}
		fresh = append(fresh, l)
	}

	r.logger.Info("Source checked",
		"source", src.Name,
		"candidates", len(candidates),
		"new", len(fresh))
	return fresh, ""
}
