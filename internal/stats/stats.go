// Package stats reduces a transaction list to summary figures.
package stats

import (
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-analyzer/internal/models"
)

// Stats summarises a statement. The zero value is the result for an empty
// statement.
type Stats struct {
	Count        int      `json:"count"`
	SumDebits    float64  `json:"sumDebits"`
	SumCredits   float64  `json:"sumCredits"`
	FinalBalance *float64 `json:"finalBalance,omitempty"`
}

// Net is credits minus debits.
func (s Stats) Net() float64 {
	return decimal.NewFromFloat(s.SumCredits).Sub(decimal.NewFromFloat(s.SumDebits)).InexactFloat64()
}

// Aggregate counts txns and totals debits and credits. FinalBalance is the
// last transaction's balance, when it has one.
func Aggregate(txns []models.Transaction) Stats {
	var debits, credits decimal.Decimal
	for _, txn := range txns {
		amt := decimal.NewFromFloat(txn.Amount)
		switch txn.Type {
		case models.Debit:
			debits = debits.Add(amt)
		case models.Credit:
			credits = credits.Add(amt)
		}
	}

	s := Stats{
		Count:      len(txns),
		SumDebits:  debits.InexactFloat64(),
		SumCredits: credits.InexactFloat64(),
	}
	if n := len(txns); n > 0 && txns[n-1].Balance != nil {
		bal := *txns[n-1].Balance
		s.FinalBalance = &bal
	}
	return s
}
