package parser

import (
	"math"
	"regexp"
	"strings"

	"github.com/insightdelivered/statement-analyzer/internal/models"
)

// TabularParser handles statements with separate withdrawal/deposit
// columns and a running balance, e.g.
//
//	Txn Date | Value Date | Description | Withdrawal | Deposit | Balance
//
// A transaction may wrap over several physical lines; a new record begins
// at each line that starts with a date.
// Example: "02/09/2025 02/09/2025 SALARY CREDIT - ACME CORP 45000 95000"
type TabularParser struct{}

func (p *TabularParser) Layout() models.Layout {
	return models.LayoutTabular
}

// block is one transaction record spanning one or more source lines.
type block struct {
	lines []string
	nums  []int // 1-based source line numbers
}

func (b block) text() string {
	return strings.Join(b.lines, " ")
}

// segment partitions lines into blocks, each starting at a leading-date
// line and running until the next one. Summary and header rows are
// excluded; lines before the first date line belong to no block.
func segment(lines []string) []block {
	var blocks []block
	for i, line := range lines {
		if line == "" || isSummaryLine(line) {
			continue
		}
		if startsWithDate(line) {
			blocks = append(blocks, block{lines: []string{line}, nums: []int{i + 1}})
			continue
		}
		if len(blocks) > 0 {
			last := &blocks[len(blocks)-1]
			last.lines = append(last.lines, line)
			last.nums = append(last.nums, i+1)
		}
	}
	return blocks
}

func (p *TabularParser) Parse(text string) *models.StatementInfo {
	info := newInfo(models.LayoutTabular, text)
	lines := splitLines(text)

	var prevBalance *float64
	for _, line := range lines {
		if bal, ok := extractOpeningBalance(line); ok {
			b := bal
			info.OpeningBalance = &b
			prevBalance = &b
			break
		}
	}

	results := make([]string, len(lines))
	for _, b := range segment(lines) {
		txn, ok := parseBlock(b, prevBalance)
		if !ok {
			// no numeric tokens: not a transaction, not a failure either
			results[b.nums[0]-1] = "dropped"
			continue
		}
		results[b.nums[0]-1] = "parsed"
		for _, n := range b.nums[1:] {
			results[n-1] = "continuation"
		}
		info.Transactions = append(info.Transactions, txn)
		prevBalance = txn.Balance
	}

	for i, line := range lines {
		if line == "" {
			continue
		}
		dl := models.DebugLine{
			LineNum: i + 1,
			Text:    truncate(line, 120),
			HasDate: startsWithDate(line),
			Result:  results[i],
		}
		switch {
		case dl.Result == "parsed":
			dl.Method = "tabular-block"
		case dl.Result != "":
		case isSummaryLine(line):
			dl.Result = "summary"
		default:
			dl.Result = "skipped"
		}
		info.DebugLines = append(info.DebugLines, dl)
	}

	return info
}

// parseBlock turns one block into a transaction. It reports false when the
// block holds no numeric tokens.
func parseBlock(b block, prevBalance *float64) (models.Transaction, bool) {
	text := b.text()
	dates := findDates(text)
	nums := numericTokens(text, dates)
	if len(nums) == 0 {
		return models.Transaction{}, false
	}

	// The last number is the running balance; the amount is the first
	// non-zero value to its left. With none, the balance doubles as amount.
	balanceTok := nums[len(nums)-1]
	amountTok := balanceTok
	cut := 0
	for i := len(nums) - 2; i >= 0; i-- {
		if nums[i].value != 0 {
			amountTok = nums[i]
			cut = i
			break
		}
	}
	// empty debit/credit columns printed as 0.00 sit just left of the amount
	for cut > 0 && nums[cut-1].value == 0 {
		cut--
	}

	remove := make([]span, 0, len(dates)+len(nums))
	remove = append(remove, dates...)
	for _, n := range nums[cut:] {
		remove = append(remove, n.span)
	}

	balance := balanceTok.value
	txn := models.Transaction{
		Date:        parseDate(extractDate(b.lines[0])),
		Description: cleanDescription(text, remove),
		Amount:      math.Abs(amountTok.value),
		Balance:     &balance,
		ParseMethod: "tabular-block",
	}
	txn.Type = resolveTabularType(text, amountTok, balance, prevBalance)
	return txn, true
}

// resolveTabularType decides debit vs credit. Keyword evidence comes first
// and a debit/withdraw keyword beats a credit/deposit keyword in the same
// block. Without keywords it falls back to column markers, the balance
// progression, the amount's sign and finally the narration.
func resolveTabularType(text string, amount numToken, balance float64, prevBalance *float64) models.TxnType {
	debit, credit := typeByKeyword(text)
	if debit {
		return models.Debit
	}
	if credit {
		return models.Credit
	}

	switch explicitMarker(text, amount) {
	case "DR":
		return models.Debit
	case "CR":
		return models.Credit
	}

	if prevBalance != nil {
		if t, ok := classifyByBalance(math.Abs(amount.value), balance, *prevBalance); ok {
			return t
		}
	}

	if amount.value < 0 || isDebitDescription(text) {
		return models.Debit
	}
	if isCreditDescription(text) {
		return models.Credit
	}
	return models.Debit
}

// classifyByBalance determines whether a transaction is a debit or credit
// by comparing the amount and current balance against the previous balance.
func classifyByBalance(amt, bal, prevBal float64) (models.TxnType, bool) {
	debitDiff := math.Abs((prevBal - amt) - bal)
	creditDiff := math.Abs((prevBal + amt) - bal)

	switch {
	case debitDiff < 0.015 && creditDiff >= 0.015:
		return models.Debit, true
	case creditDiff < 0.015 && debitDiff >= 0.015:
		return models.Credit, true
	case debitDiff < 0.015 && creditDiff < 0.015:
		// only possible for a zero amount
		return models.Debit, true
	}
	return "", false
}

var (
	debitDescriptionPattern  = regexp.MustCompile(`(?i)\b(?:card payment|direct debit|payment|purchase|transfer out|standing order|upi|pos|atm|emi|fee|charge|bill)\b`)
	creditDescriptionPattern = regexp.MustCompile(`(?i)\b(?:salary|refund|interest|received|cashback|reversal|transfer in|neft in|imps in)\b`)
)

func isDebitDescription(desc string) bool {
	return debitDescriptionPattern.MatchString(desc)
}

func isCreditDescription(desc string) bool {
	return creditDescriptionPattern.MatchString(desc)
}
