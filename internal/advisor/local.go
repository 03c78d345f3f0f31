package advisor

import (
	"context"
	"regexp"
	"strings"
)

// Local answers from a fixed set of intents. It needs no network.
type Local struct{}

type intent struct {
	match  *regexp.Regexp
	answer string
}

// intents are checked in order; the first match answers.
var intents = []intent{
	{
		match: regexp.MustCompile(`\b(?:budget\w*|save|saving\w*|spend less)\b`),
		answer: "Quick tip: use the 50/30/20 rule: 50% needs, 30% wants, 20% savings or debt payoff. " +
			"Automate a fixed transfer to savings on salary day and track your three largest categories weekly.",
	},
	{
		match: regexp.MustCompile(`\bcredit cards?\b|\bcc\b`),
		answer: "Credit card hygiene: pay the full balance before the due date, keep utilization under 30%, " +
			"avoid cash advances and use statement cycle dates to your advantage.",
	},
	{
		match: regexp.MustCompile(`\bemergenc(?:y|ies)\b`),
		answer: "Build an emergency fund worth 3 to 6 months of core expenses in a high-liquidity account. " +
			"Start with a one-month target and scale up.",
	},
	{
		match: regexp.MustCompile(`\bemis?\b|\bloans?\b`),
		answer: "Keep total EMIs under about 40% of take-home pay, prepay the highest-interest loan first " +
			"and never miss a due date; late payments hurt your credit score.",
	},
	{
		match: regexp.MustCompile(`\b(?:invest\w*|mutual funds?|sip|fd|rd)\b`),
		answer: "Starter investing idea: begin an SIP in a diversified index or conservative balanced fund " +
			"after you have built an emergency buffer and cleared high-interest debt.",
	},
	{
		match: regexp.MustCompile(`\b(?:debit|credit|statement|balance)\b`),
		answer: "On a statement, debits are money leaving your account and credits are money coming in. " +
			"The running balance after each line should equal the previous balance minus debits plus credits.",
	},
}

const (
	promptAnswer   = "Ask me about budgeting, savings, EMIs, credit vs debit, or how to read your statement."
	fallbackAnswer = "I'm a lightweight offline assistant. Ask about budgeting, emergency funds, credit-card tips, " +
		"or reading your statement."
)

func (Local) Ask(_ context.Context, question string) Reply {
	msg := strings.ToLower(strings.TrimSpace(question))
	if msg == "" {
		return Reply{Answer: promptAnswer, Source: SourceLocal}
	}
	for _, in := range intents {
		if in.match.MatchString(msg) {
			return Reply{Answer: in.answer, Source: SourceLocal}
		}
	}
	return Reply{Answer: fallbackAnswer, Source: SourceLocal}
}
