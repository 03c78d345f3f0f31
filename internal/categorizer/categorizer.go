// Package categorizer labels transactions with a spending category using an
// ordered table of description patterns.
package categorizer

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-analyzer/internal/models"
)

// Categorizer holds a compiled rule table. It is read-only after New and
// safe for concurrent use.
type Categorizer struct {
	rules []compiledRule
}

// New compiles rules. A nil or empty table means DefaultRules.
func New(rules []Rule) (*Categorizer, error) {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	compiled, err := compile(rules)
	if err != nil {
		return nil, err
	}
	return &Categorizer{rules: compiled}, nil
}

// Category returns the category of the first rule matching description.
func (c *Categorizer) Category(description string) string {
	for _, r := range c.rules {
		if r.re.MatchString(description) {
			return r.category
		}
	}
	return DefaultCategory
}

// Categorize returns a copy of txns with Category set on every element.
// The input slice is not modified.
func (c *Categorizer) Categorize(txns []models.Transaction) []models.Transaction {
	out := make([]models.Transaction, len(txns))
	for i, txn := range txns {
		txn.Category = c.Category(txn.Description)
		out[i] = txn
	}
	return out
}

// CategorySpend is the debit total for one category.
type CategorySpend struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// Summary is the debit spend breakdown of a categorized statement.
type Summary struct {
	TopCategory string          `json:"topCategory,omitempty"`
	MaxSpent    float64         `json:"maxSpent"`
	ByCategory  []CategorySpend `json:"byCategory"`
}

// Summarize totals debit amounts per category, largest first. Credits are
// left out. Ties are broken by category name so the result is stable.
func Summarize(txns []models.Transaction) Summary {
	totals := make(map[string]decimal.Decimal)
	for _, txn := range txns {
		if txn.Type != models.Debit {
			continue
		}
		cat := txn.Category
		if cat == "" {
			cat = DefaultCategory
		}
		totals[cat] = totals[cat].Add(decimal.NewFromFloat(txn.Amount))
	}

	s := Summary{ByCategory: make([]CategorySpend, 0, len(totals))}
	for cat, total := range totals {
		s.ByCategory = append(s.ByCategory, CategorySpend{Category: cat, Amount: total.InexactFloat64()})
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		a, b := s.ByCategory[i], s.ByCategory[j]
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		return a.Category < b.Category
	})
	if len(s.ByCategory) > 0 {
		s.TopCategory = s.ByCategory[0].Category
		s.MaxSpent = s.ByCategory[0].Amount
	}
	return s
}
