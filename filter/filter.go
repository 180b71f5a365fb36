// Package filter decides whether a listing's context text satisfies the
// user-configured criteria.
package filter

import (
	"strings"

	"github.com/gilsadis1/rentalsbot/config"
)

// Engine evaluates listing text against a fixed set of criteria.
type Engine struct {
	criteria config.Filters
}

// New creates a filter engine for the given criteria.
func New(criteria config.Filters) *Engine {
	return &Engine{criteria: criteria}
}

// Passes reports whether the given context text satisfies the criteria.
//
// Evaluation order: exclude keywords are a hard veto, then at least one
// include keyword must match (when any are configured), then numeric
// bounds. A numeric bound is only applied when a value can actually be
// extracted from the text; missing data never rejects a listing.
func (e *Engine) Passes(text string) bool {
	lower := strings.ToLower(text)

	for _, kw := range e.criteria.ExcludeKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}

	if len(e.criteria.MustIncludeKeywords) > 0 {
		found := false
		for _, kw := range e.criteria.MustIncludeKeywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if e.criteria.MinRooms > 0 {
		if rooms, ok := ExtractRooms(text); ok && rooms < e.criteria.MinRooms {
			return false
		}
	}

	if size, ok := ExtractSize(text); ok {
		if e.criteria.MinSizeSqm > 0 && size < e.criteria.MinSizeSqm {
			return false
		}
		if e.criteria.MaxSizeSqm > 0 && size > e.criteria.MaxSizeSqm {
			return false
		}
	}

	if price, ok := ExtractPrice(text); ok {
		if e.criteria.MinPriceNis > 0 && price < e.criteria.MinPriceNis {
			return false
		}
		if e.criteria.MaxPriceNis > 0 && price > e.criteria.MaxPriceNis {
			return false
		}
	}

	return true
}
