// Package digest builds the HTML email body for one run's newly found
// listings, grouped by source.
package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/gilsadis1/rentalsbot/pkg/rental"
)

// Group holds one source's new listings, in extraction order.
type Group struct {
	Source   string
	Listings []*rental.Listing
}

// Snippets longer than snippetCutoff runes are truncated to snippetLen
// with an ellipsis.
const (
	snippetLen    = 300
	snippetCutoff = 320
)

// Subject returns the digest subject line. The time suffix keeps Gmail
// from threading consecutive digests together.
func Subject(now time.Time) string {
	now = now.In(location())
	return fmt.Sprintf("🏠 דירות חדשות – %s %s", now.Format("02.01.2006"), now.Format("15:04"))
}

// Build renders the digest body for the given groups and returns it
// together with an empty flag. When empty is true no email should be
// sent; the body is still returned for callers that want to log it.
// Warnings from partially failed fetches are appended after the
// listings so delivery problems stay visible.
func Build(groups []Group, now time.Time, warnings []string) (body string, empty bool) {
	var b strings.Builder

	writeHead(&b)

	b.WriteString("<h1 dir=\"rtl\" align=\"right\">🏠 דירות חדשות</h1>\n")
	b.WriteString(fmt.Sprintf("<div class=\"subtitle\" dir=\"rtl\" align=\"right\">%s</div>\n",
		now.In(location()).Format("02.01.2006")))

	anyItems := false
	for _, g := range groups {
		if len(g.Listings) == 0 {
			continue
		}
		anyItems = true

		b.WriteString(fmt.Sprintf("<h2 dir=\"rtl\" align=\"right\">%s (%d מודעות)</h2>\n",
			escapeHTML(g.Source), len(g.Listings)))

		for _, l := range g.Listings {
			writeListing(&b, l)
		}
	}

	if !anyItems {
		b.WriteString("<div class=\"empty-msg\" dir=\"rtl\">לא נמצאו מודעות חדשות 🔍</div>\n")
	}

	if len(warnings) > 0 {
		b.WriteString("<hr><p><b>אזהרות:</b><br>")
		escaped := make([]string, len(warnings))
		for i, w := range warnings {
			escaped[i] = escapeHTML(w)
		}
		b.WriteString(strings.Join(escaped, "<br>"))
		b.WriteString("</p>\n")
	}

	b.WriteString("<div class=\"footer\">נשלח אוטומטית ע״י Rental Bot</div>\n")
	b.WriteString("</div></body></html>")

	return b.String(), !anyItems
}

func writeListing(b *strings.Builder, l *rental.Listing) {
	snippet := l.Text
	if runes := []rune(snippet); len(runes) > snippetCutoff {
		snippet = string(runes[:snippetLen]) + "…"
	}

	b.WriteString(fmt.Sprintf("<a href=\"%s\" class=\"listing\" target=\"_blank\">\n", escapeHTML(l.URL)))
	if l.ImageURL != "" {
		b.WriteString(fmt.Sprintf("<img src=\"%s\" class=\"listing-img\" alt=\"\">\n", escapeHTML(l.ImageURL)))
	} else {
		b.WriteString("<div class=\"no-image\">📷 אין תמונה</div>\n")
	}
	b.WriteString("<div class=\"listing-content\" dir=\"rtl\" align=\"right\">\n")
	b.WriteString(fmt.Sprintf("<div class=\"listing-text\" dir=\"rtl\">%s</div>\n", escapeHTML(snippet)))
	b.WriteString("<div class=\"listing-cta\">לצפייה במודעה ←</div>\n")
	b.WriteString("</div>\n</a>\n")
}

// writeHead emits the mobile-friendly RTL layout; cards stack on small
// screens.
func writeHead(b *strings.Builder) {
	b.WriteString("<!DOCTYPE html>\n<html dir=\"rtl\" lang=\"he\">\n<head>\n")
	b.WriteString("<meta charset=\"UTF-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	b.WriteString("<style>\n")
	b.WriteString("body { font-family: Arial, Helvetica, sans-serif; background: #f0f2f5; margin: 0; padding: 15px; font-size: 16px; line-height: 1.6; }\n")
	b.WriteString(".container { max-width: 600px; margin: 0 auto; background: #fff; border-radius: 16px; padding: 20px; }\n")
	b.WriteString("h1 { color: #1a1a1a; font-size: 24px; margin: 0 0 8px 0; }\n")
	b.WriteString(".subtitle { color: #666; font-size: 14px; margin-bottom: 25px; padding-bottom: 15px; border-bottom: 2px solid #e8e8e8; }\n")
	b.WriteString("h2 { color: #333; font-size: 17px; margin: 20px 0 12px 0; }\n")
	b.WriteString(".listing { display: block; text-decoration: none; color: inherit; border: 1px solid #e0e0e0; border-radius: 12px; margin: 15px 0; background: #fafafa; overflow: hidden; }\n")
	b.WriteString(".listing-img { width: 100%; height: 180px; object-fit: cover; display: block; }\n")
	b.WriteString(".no-image { width: 100%; height: 100px; background: #e8e8e8; text-align: center; line-height: 100px; color: #999; font-size: 14px; }\n")
	b.WriteString(".listing-content { padding: 15px; }\n")
	b.WriteString(".listing-text { color: #333; font-size: 15px; line-height: 1.7; margin-bottom: 12px; }\n")
	b.WriteString(".listing-cta { color: #2196F3; font-size: 14px; font-weight: bold; }\n")
	b.WriteString(".empty-msg { text-align: center; padding: 40px 20px; color: #666; font-size: 17px; background: #f9f9f9; border-radius: 12px; }\n")
	b.WriteString(".footer { margin-top: 25px; padding-top: 15px; border-top: 1px solid #eee; color: #999; font-size: 11px; text-align: center; }\n")
	b.WriteString("</style>\n</head>\n<body dir=\"rtl\" style=\"direction:rtl;text-align:right;\">\n")
	b.WriteString("<div class=\"container\" dir=\"rtl\" align=\"right\">\n")
}

// location returns the display timezone, falling back to UTC when the
// zone database is unavailable.
func location() *time.Location {
	loc, err := time.LoadLocation("Asia/Jerusalem")
	if err != nil {
		return time.UTC
	}
	return loc
}

// escapeHTML escapes HTML special characters for security.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&#39;")
	return s
}
