package models

import (
	"encoding/json"
	"strings"
	"time"
)

// TxnType is the direction of a transaction. The sign of a transaction is
// carried here, never by Amount.
type TxnType string

const (
	Debit  TxnType = "Debit"
	Credit TxnType = "Credit"
)

// DescriptionPlaceholder stands in for a narration that was empty after
// stripping date and amount tokens.
const DescriptionPlaceholder = "—"

// Date is a transaction date as found in the statement. When the raw token
// matched a known layout, Time and Layout are set; otherwise only Raw is.
type Date struct {
	Time   time.Time
	Raw    string
	Layout string // Go reference layout the raw token matched
}

// Parsed reports whether the raw token matched a known date layout.
func (d Date) Parsed() bool {
	return d.Layout != ""
}

// String renders the date as YYYY-MM-DD, or the raw token when unparsed.
func (d Date) String() string {
	if !d.Parsed() {
		return d.Raw
	}
	return d.Time.Format("2006-01-02")
}

// Format re-renders the date in the layout it was parsed from. An
// upper-case source token such as "15 JAN 2024" stays upper-case.
func (d Date) Format() string {
	if !d.Parsed() {
		return d.Raw
	}
	out := d.Time.Format(d.Layout)
	if d.Raw == strings.ToUpper(d.Raw) {
		return strings.ToUpper(out)
	}
	return out
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts the form written by MarshalJSON. Anything that is
// not YYYY-MM-DD is kept as Raw.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*d = Date{Raw: s}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		d.Time = t
		d.Layout = "2006-01-02"
	}
	return nil
}

// Transaction represents a single bank statement transaction.
type Transaction struct {
	Date        Date     `json:"date"`
	Description string   `json:"description"`
	Type        TxnType  `json:"type"`
	Amount      float64  `json:"amount"`
	Balance     *float64 `json:"balance,omitempty"`
	Category    string   `json:"category,omitempty"`
	ParseMethod string   `json:"parseMethod,omitempty"` // debug: which parser strategy matched
}

// Layout identifies a recognised arrangement of statement columns.
type Layout string

const (
	LayoutTabular Layout = "tabular"
	LayoutGeneric Layout = "generic"
)

// DebugLine captures what the parser did with each input line.
type DebugLine struct {
	LineNum int    `json:"lineNum"`
	Text    string `json:"text"`
	HasDate bool   `json:"hasDate"`
	Result  string `json:"result"` // "parsed", "skipped", "continuation", "summary", "dropped"
	Method  string `json:"method,omitempty"`
}

// StatementInfo holds metadata extracted from the statement.
type StatementInfo struct {
	Layout          Layout
	AccountHolder   string
	AccountNumber   string
	StatementPeriod string
	OpeningBalance  *float64
	Transactions    []Transaction
	DebugLines      []DebugLine
}
