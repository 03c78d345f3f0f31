package parser

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/insightdelivered/statement-analyzer/internal/models"
)

const monthAlt = `(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*`

// Date patterns found in bank statements.
var (
	// DD/MM/YYYY, DD-MM-YY and friends
	datePatternNumeric = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-](?:\d{4}|\d{2})\b`)
	// DD Mon YYYY (e.g., 15 Jan 2024)
	datePatternText = regexp.MustCompile(`(?i)\b\d{1,2}\s+` + monthAlt + `,?\s+\d{2,4}\b`)
	// DD-Mon-YYYY or DD-Mon-YY
	datePatternDash = regexp.MustCompile(`(?i)\b\d{1,2}-` + monthAlt + `-\d{2,4}\b`)
	// YYYY-MM-DD
	datePatternISO = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)

	datePatterns = []*regexp.Regexp{datePatternISO, datePatternNumeric, datePatternDash, datePatternText}
)

// span is a half-open byte range within a line.
type span struct{ start, end int }

// findDates returns every date token in s, in order of appearance, without
// overlaps.
func findDates(s string) []span {
	var spans []span
	for _, re := range datePatterns {
		for _, loc := range re.FindAllStringIndex(s, -1) {
			sp := span{loc[0], loc[1]}
			if !overlapsAny(sp, spans) {
				spans = append(spans, sp)
			}
		}
	}
	sortSpans(spans)
	return spans
}

func overlapsAny(sp span, spans []span) bool {
	for _, o := range spans {
		if sp.start < o.end && o.start < sp.end {
			return true
		}
	}
	return false
}

func sortSpans(spans []span) {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
}

// startsWithDate checks if a line begins with a date pattern.
func startsWithDate(line string) bool {
	return extractDate(line) != ""
}

// extractDate returns the date found at the start of a line, or "".
func extractDate(line string) string {
	line = strings.TrimSpace(line)
	spans := findDates(line)
	if len(spans) == 0 || spans[0].start >= 3 {
		return ""
	}
	return line[spans[0].start:spans[0].end]
}

// numericCandidate matches a possibly signed, possibly currency-prefixed
// number with optional thousands grouping and decimals.
var numericCandidate = regexp.MustCompile(`[+-]?(?:₹|£|\$|€|Rs\.?\s?|INR\s?)?\d[\d,]*(?:\.\d+)?`)

// numToken is a numeric value found in a line.
type numToken struct {
	span
	text  string
	value float64
}

// numericTokens returns the numbers in s that stand on their own. Spans in
// masked (typically dates) are ignored. Candidates that fail to parse are
// skipped individually.
func numericTokens(s string, masked []span) []numToken {
	var out []numToken
	for _, loc := range numericCandidate.FindAllStringIndex(s, -1) {
		sp := span{loc[0], loc[1]}
		if overlapsAny(sp, masked) {
			continue
		}
		raw := s[sp.start:sp.end]
		// a trailing grouping comma belongs to the sentence, not the number
		for strings.HasSuffix(raw, ",") {
			raw = raw[:len(raw)-1]
			sp.end--
		}
		if !standsAlone(s, sp) {
			continue
		}
		v, err := parseAmount(raw)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			continue
		}
		out = append(out, numToken{span: sp, text: raw, value: v})
	}
	return out
}

// standsAlone rejects numbers glued to words, times or fractions, apart from
// a trailing CR/DR marker such as "500.00CR".
func standsAlone(s string, sp span) bool {
	if sp.start > 0 {
		prev, _ := utf8.DecodeLastRuneInString(s[:sp.start])
		if unicode.IsLetter(prev) || unicode.IsDigit(prev) || strings.ContainsRune("/:.", prev) {
			return false
		}
	}
	if sp.end < len(s) {
		next, _ := utf8.DecodeRuneInString(s[sp.end:])
		if unicode.IsDigit(next) || strings.ContainsRune("/:", next) {
			return false
		}
		if unicode.IsLetter(next) {
			return gluedMarker(s[sp.end:]) != ""
		}
	}
	return true
}

// gluedMarker returns "CR" or "DR" when rest starts with that marker as a
// whole word.
func gluedMarker(rest string) string {
	if len(rest) < 2 {
		return ""
	}
	m := strings.ToUpper(rest[:2])
	if m != "CR" && m != "DR" {
		return ""
	}
	if len(rest) > 2 {
		next, _ := utf8.DecodeRuneInString(rest[2:])
		if unicode.IsLetter(next) || unicode.IsDigit(next) {
			return ""
		}
	}
	return m
}

// parseAmount converts a string like "1,234.56", "-£1,234.56" or "₹45,000"
// to a float64.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(
		"£", "", "$", "", "€", "", "₹", "",
		"INR", "", "Rs.", "", "Rs", "",
		",", "", " ", "", "\u00a0", "",
	).Replace(s)

	if s == "" || s == "-" || s == "+" {
		return 0, nil
	}

	return strconv.ParseFloat(s, 64)
}

// summaryKeywords mark header, footer and balance-only rows. They match as
// whole words anywhere on the line.
var summaryKeywords = []string{
	"opening balance", "closing balance", "opening bal", "closing bal",
	"balance brought forward", "brought forward", "carried forward",
	"balance b/f", "balance c/f", "total paid in", "total paid out",
	"total payments", "total receipts", "total withdrawals", "total deposits",
	"statement period", "statement summary",
}

var (
	summaryKeywordPattern = keywordPattern(summaryKeywords)
	summaryPrefixPattern  = regexp.MustCompile(`^(?:opening|closing|total|grand total)\b`)
	// page continuation markers only count on undated lines
	continuedPattern  = regexp.MustCompile(`\bcontinued\b`)
	pageFooterPattern = regexp.MustCompile(`(?i)\bpage\s+\d+(?:\s*(?:of|/)\s*\d+)?\b`)
)

func keywordPattern(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// isSummaryLine reports header, footer and balance-only rows, which are
// excluded before any parsing.
func isSummaryLine(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	if summaryPrefixPattern.MatchString(lower) || summaryKeywordPattern.MatchString(lower) {
		return true
	}
	if !startsWithDate(strings.TrimSpace(line)) && continuedPattern.MatchString(lower) {
		return true
	}
	if pageFooterPattern.MatchString(lower) {
		return true
	}
	return containsTransactionHeader(lower)
}

// containsTransactionHeader detects a column header row such as
// "Date Narration Withdrawal Deposit Balance".
func containsTransactionHeader(line string) bool {
	lower := strings.ToLower(line)
	if startsWithDate(lower) {
		return false
	}
	return strings.Contains(lower, "date") &&
		(strings.Contains(lower, "description") || strings.Contains(lower, "narration") ||
			strings.Contains(lower, "particulars") || strings.Contains(lower, "details") ||
			strings.Contains(lower, "transaction") || strings.Contains(lower, "paid")) &&
		(strings.Contains(lower, "amount") || strings.Contains(lower, "paid") ||
			strings.Contains(lower, "balance") || strings.Contains(lower, "withdrawal") ||
			strings.Contains(lower, "money"))
}

// extractOpeningBalance looks for opening/brought-forward balance lines
// and returns the balance amount. Returns (0, false) if not found.
func extractOpeningBalance(line string) (float64, bool) {
	lower := strings.ToLower(line)
	if !strings.Contains(lower, "opening balance") &&
		!strings.Contains(lower, "balance brought forward") &&
		!strings.Contains(lower, "brought forward") &&
		!strings.Contains(lower, "balance b/f") {
		return 0, false
	}

	nums := numericTokens(line, findDates(line))
	if len(nums) == 0 {
		return 0, false
	}
	return nums[len(nums)-1].value, true
}

// Keyword sets for debit/credit inference. Debit always wins a tie.
var (
	debitKeywordPattern   = regexp.MustCompile(`(?i)\b(?:debit\w*|withdraw\w*)\b`)
	creditKeywordPattern  = regexp.MustCompile(`(?i)\b(?:credit\w*|deposit\w*)\b`)
	trailingMarkerPattern = regexp.MustCompile(`(?i)(?:\s+|^)(?:CR|DR|CREDIT|DEBIT)\.?\s*$`)
)

// typeByKeyword resolves direction from narration keywords. A debit or
// withdraw keyword overrides a credit or deposit keyword.
func typeByKeyword(text string) (debit, credit bool) {
	return debitKeywordPattern.MatchString(text), creditKeywordPattern.MatchString(text)
}

// explicitMarker returns the CR/DR column marker attached to the amount
// token (glued or one space after it) or ending the line, or "".
func explicitMarker(text string, amount numToken) string {
	rest := text[amount.end:]
	if m := gluedMarker(rest); m != "" {
		return m
	}
	if m := gluedMarker(strings.TrimLeft(rest, " ")); m != "" {
		return m
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	last := strings.ToUpper(strings.TrimSuffix(fields[len(fields)-1], "."))
	if last == "CR" || last == "DR" {
		return last
	}
	return ""
}

var markerTokenPattern = regexp.MustCompile(`(?i)\b(CR|DR)\b\.?`)

// markerTokens reports which whole-word CR/DR tokens appear anywhere in text.
func markerTokens(text string) (dr, cr bool) {
	for _, m := range markerTokenPattern.FindAllStringSubmatch(text, -1) {
		switch strings.ToUpper(m[1]) {
		case "DR":
			dr = true
		case "CR":
			cr = true
		}
	}
	return dr, cr
}

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	separatorChars = " \t-–—|:;,./*#"
)

// cleanDescription removes the given spans from text, strips trailing
// direction markers and collapses whitespace.
func cleanDescription(text string, remove []span) string {
	sortSpans(remove)
	var b strings.Builder
	last := 0
	for _, sp := range remove {
		if sp.start < last {
			continue
		}
		b.WriteString(text[last:sp.start])
		b.WriteByte(' ')
		last = sp.end
	}
	b.WriteString(text[last:])

	desc := whitespaceRun.ReplaceAllString(b.String(), " ")
	for {
		trimmed := trailingMarkerPattern.ReplaceAllString(desc, "")
		trimmed = strings.Trim(trimmed, separatorChars)
		if trimmed == desc {
			break
		}
		desc = trimmed
	}
	if desc == "" {
		return models.DescriptionPlaceholder
	}
	return desc
}

// extractAccountNumber finds account numbers printed after an account label.
var accountNumberPattern = regexp.MustCompile(`(?i)(?:account|a/c|acct)\s*(?:no\.?|number|num)?\s*[:#]?\s*([0-9Xx*]{6,18})\b`)

func findAccountNumber(text string) string {
	m := accountNumberPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

func extractNameNearLabel(text string, labels []string) string {
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		for _, label := range labels {
			if idx := strings.Index(line, label); idx >= 0 {
				rest := strings.TrimSpace(line[idx+len(label):])
				if strings.HasPrefix(rest, ":") {
					rest = strings.TrimSpace(rest[1:])
				}
				if rest != "" {
					// Trim trailing numbers or account info
					parts := strings.Split(rest, "  ")
					return strings.TrimSpace(parts[0])
				}
			}
		}
	}
	return ""
}

func extractPeriod(text string) string {
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "period") && !strings.Contains(lower, " from ") {
			continue
		}
		spans := findDates(line)
		if len(spans) >= 2 {
			return line[spans[0].start:spans[0].end] + " to " + line[spans[1].start:spans[1].end]
		}
	}
	return ""
}

// extractMetadata returns the account fields found anywhere in the text.
func extractMetadata(text string) (holder, number, period string) {
	number = findAccountNumber(text)
	holder = extractNameNearLabel(text, []string{"Account holder", "Account Holder", "Account name", "Account Name", "Customer Name", "Name:"})
	period = extractPeriod(text)
	return holder, number, period
}

func truncate(line string, n int) string {
	if utf8.RuneCountInString(line) <= n {
		return line
	}
	return string([]rune(line)[:n]) + "..."
}
