package parser

import (
	"strings"
	"time"

	"github.com/insightdelivered/statement-analyzer/internal/models"
)

// dateLayouts are tried in order; the first that parses wins. Day-first
// layouts precede month-first ones, and zero-padded layouts precede their
// un-padded variants so re-rendering reproduces the source token.
var dateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"02/01/06",
	"02-01-06",
	"01/02/2006",
	"01-02-2006",
	"2/1/2006",
	"2-1-2006",
	"2/1/06",
	"2-1-06",
	"1/2/2006",
	"1-2-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"02 Jan 06",
	"2 Jan 06",
	"02 January 2006",
	"2 January 2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"02-Jan-06",
	"2-Jan-06",
	"2006-01-02",
}

// parseDate converts a statement date token into a models.Date. Tokens that
// match no layout are kept raw.
func parseDate(raw string) models.Date {
	raw = strings.TrimSpace(raw)
	normalized := normalizeMonthCase(strings.ReplaceAll(raw, ",", ""))

	// Prefer a layout that reproduces the token exactly; mixed padding such
	// as "02/9/2025" only parses loosely.
	var loose *models.Date
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, normalized)
		if err != nil {
			continue
		}
		d := models.Date{Time: t, Raw: raw, Layout: layout}
		if t.Format(layout) == normalized {
			return d
		}
		if loose == nil {
			loose = &d
		}
	}
	if loose != nil {
		return *loose
	}
	return models.Date{Raw: raw}
}

// normalizeMonthCase title-cases alphabetic runs so "15 JAN 2024" parses
// with the "Jan" layouts.
func normalizeMonthCase(s string) string {
	b := []byte(strings.ToLower(s))
	start := true
	for i, c := range b {
		isLetter := c >= 'a' && c <= 'z'
		if isLetter && start {
			b[i] = c - 'a' + 'A'
		}
		start = !isLetter
	}
	return string(b)
}
