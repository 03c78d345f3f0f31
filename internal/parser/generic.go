package parser

import (
	"math"

	"github.com/insightdelivered/statement-analyzer/internal/models"
)

// GenericParser is the fallback for statements without a recognised column
// layout. Every line carrying a date and at least one number yields one
// transaction; the last number on the line is the amount.
// Example: "15 Jan 2024 TESCO STORES 3297 23.45 DR"
type GenericParser struct{}

func (p *GenericParser) Layout() models.Layout {
	return models.LayoutGeneric
}

func (p *GenericParser) Parse(text string) *models.StatementInfo {
	info := newInfo(models.LayoutGeneric, text)

	for i, line := range splitLines(text) {
		if line == "" {
			continue
		}
		dl := models.DebugLine{
			LineNum: i + 1,
			Text:    truncate(line, 120),
			HasDate: len(findDates(line)) > 0,
		}

		if isSummaryLine(line) {
			dl.Result = "summary"
			info.DebugLines = append(info.DebugLines, dl)
			continue
		}

		txn, ok := parseGenericLine(line)
		if !ok {
			dl.Result = "skipped"
			info.DebugLines = append(info.DebugLines, dl)
			continue
		}

		dl.Result = "parsed"
		dl.Method = txn.ParseMethod
		info.DebugLines = append(info.DebugLines, dl)
		info.Transactions = append(info.Transactions, txn)
	}

	return info
}

// parseGenericLine reports false for lines lacking a date or a number.
func parseGenericLine(line string) (models.Transaction, bool) {
	dates := findDates(line)
	if len(dates) == 0 {
		return models.Transaction{}, false
	}
	nums := numericTokens(line, dates)
	if len(nums) == 0 {
		return models.Transaction{}, false
	}

	amount := nums[len(nums)-1]
	remove := append(append([]span{}, dates...), amount.span)

	return models.Transaction{
		Date:        parseDate(line[dates[0].start:dates[0].end]),
		Description: cleanDescription(line, remove),
		Type:        resolveGenericType(line, amount),
		Amount:      math.Abs(amount.value),
		ParseMethod: "generic-line",
	}, true
}

// resolveGenericType prefers an explicit CR/DR marker, then keywords with
// debit precedence. A marker next to the amount settles lines carrying
// both. Lines with no evidence are debits.
func resolveGenericType(line string, amount numToken) models.TxnType {
	switch explicitMarker(line, amount) {
	case "DR":
		return models.Debit
	case "CR":
		return models.Credit
	}
	switch dr, cr := markerTokens(line); {
	case cr && !dr:
		return models.Credit
	case dr && !cr:
		return models.Debit
	}
	debit, credit := typeByKeyword(line)
	if credit && !debit {
		return models.Credit
	}
	return models.Debit
}
