package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/insightdelivered/statement-analyzer/internal/models"
)

// ErrUnknownLayout is returned by New and ParseLayout for an unsupported layout.
var ErrUnknownLayout = errors.New("unknown statement layout")

// Parser defines the interface for statement layout strategies.
type Parser interface {
	// Parse takes the extracted statement text and returns structured
	// statement data. Malformed lines are skipped, never reported.
	Parse(text string) *models.StatementInfo
	// Layout returns the layout this strategy handles.
	Layout() models.Layout
}

// New returns the strategy for the given layout.
func New(layout models.Layout) (Parser, error) {
	switch layout {
	case models.LayoutTabular:
		return &TabularParser{}, nil
	case models.LayoutGeneric:
		return &GenericParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayout, layout)
	}
}

// ParseLayout maps a user-supplied layout name to a Layout.
func ParseLayout(name string) (models.Layout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tabular", "table", "known":
		return models.LayoutTabular, nil
	case "generic", "line":
		return models.LayoutGeneric, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: tabular, generic)", ErrUnknownLayout, name)
	}
}

// tabularSignatures are column-header pairs that only appear together in
// statements with separate debit/credit columns and a running balance.
var tabularSignatures = [][2]string{
	{"withdrawal", "deposit"},
	{"paid out", "paid in"},
	{"money out", "money in"},
	{"value date", "balance"},
}

// Detect classifies statement text into a known layout, falling back to
// LayoutGeneric. Only a full signature pair upgrades from generic.
func Detect(text string) models.Layout {
	lower := strings.ToLower(text)
	for _, sig := range tabularSignatures {
		if strings.Contains(lower, sig[0]) && strings.Contains(lower, sig[1]) {
			return models.LayoutTabular
		}
	}
	return models.LayoutGeneric
}

// splitLines normalises extraction artefacts and splits text into lines.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = normalizeLine(line)
	}
	return lines
}

// normalizeLine cleans up common PDF extraction artifacts.
func normalizeLine(line string) string {
	line = strings.ReplaceAll(line, "\u200b", "")
	line = strings.ReplaceAll(line, "\u00a0", " ")
	line = strings.ReplaceAll(line, "\t", " ")
	return strings.TrimSpace(line)
}

func newInfo(layout models.Layout, text string) *models.StatementInfo {
	info := &models.StatementInfo{Layout: layout}
	info.AccountHolder, info.AccountNumber, info.StatementPeriod = extractMetadata(text)
	return info
}
