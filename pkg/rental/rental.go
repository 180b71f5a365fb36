// Package rental contains the core domain types for the rental digest bot.
package rental

import "time"

// Source is one configured search-results page to poll.
type Source struct {
	Name       string `yaml:"name"`        // Label shown in the digest
	URL        string `yaml:"url"`         // Search-results page URL
	DomainHint string `yaml:"domain_hint"` // Optional host substring listing links must match
}

// Listing is a single candidate extracted from a source page.
// It exists only in memory during a run; after a successful send only
// its URL (the dedup key) is persisted.
type Listing struct {
	URL      string // Normalized absolute URL, the dedup identity
	Text     string // Best-effort context text around the link
	ImageURL string // Best-effort image near the link, may be empty
	Source   string // Name of the source that produced it
}

// SeenRecord is one persisted seen-set entry.
type SeenRecord struct {
	Source    string
	Key       string
	FirstSeen time.Time
}
