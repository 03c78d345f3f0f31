package categorizer

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DefaultCategory is assigned when no rule matches.
const DefaultCategory = "Other"

// IncomeCategory is the label credits such as salary and refunds receive.
const IncomeCategory = "Income / Credits"

// ErrNoRules is returned by LoadRules for a file without any rules.
var ErrNoRules = errors.New("rule file contains no rules")

// Rule maps a description pattern to a category. Patterns are regular
// expressions matched case-insensitively anywhere in the description.
type Rule struct {
	Pattern  string `yaml:"pattern"`
	Category string `yaml:"category"`
}

// DefaultRules is the built-in table. Order is priority: earlier rules win.
var DefaultRules = []Rule{
	{Pattern: `salary|income|credit.*acme|refund|parent|fd maturity`, Category: IncomeCategory},
	{Pattern: `swiggy|zomato|restaurant|starbucks`, Category: "Food & Drinks"},
	{Pattern: `uber|ola|rapido|paytm`, Category: "Transport"},
	{Pattern: `amazon|flipkart|bookstore|clothing`, Category: "Shopping"},
	{Pattern: `atm|withdraw`, Category: "Cash Withdrawal"},
	{Pattern: `rent`, Category: "Rent / Housing"},
	{Pattern: `tax|electricity|lic`, Category: "Bills & Utilities"},
	{Pattern: `mutual fund|sip`, Category: "Investments"},
	{Pattern: `grocery|grocer`, Category: "Groceries"},
}

// LoadRules reads an ordered YAML list of rules:
//
//	- pattern: "swiggy|zomato"
//	  category: "Food & Drinks"
//
// Every pattern is compiled here so a bad file fails at startup.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rule file %s: %w", path, err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoRules)
	}
	if _, err := compile(rules); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

type compiledRule struct {
	re       *regexp.Regexp
	category string
}

func compile(rules []Rule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		if r.Category == "" {
			return nil, fmt.Errorf("rule %d: empty category", i+1)
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, r.Category, err)
		}
		out = append(out, compiledRule{re: re, category: r.Category})
	}
	return out, nil
}
