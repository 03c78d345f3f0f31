package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/gocarina/gocsv"

	"github.com/insightdelivered/statement-analyzer/internal/models"
)

// csvRow is one exported transaction. Column names come from the tags.
type csvRow struct {
	Date        string `csv:"Date"`
	Description string `csv:"Description"`
	Type        string `csv:"Type"`
	Amount      string `csv:"Amount"`
	Balance     string `csv:"Balance"`
	Category    string `csv:"Category"`
}

// CSVWriter writes transactions to CSV format.
type CSVWriter struct {
	IncludeHeader bool
}

// WriteToFile writes transactions to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, info *models.StatementInfo) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, info)
}

// Write writes transactions in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, info *models.StatementInfo) error {
	writer := csv.NewWriter(out)

	// Write metadata as comments (CSV header rows)
	if w.IncludeHeader {
		for _, kv := range metadata(info) {
			if err := writer.Write([]string{"# " + kv[0], kv[1]}); err != nil {
				return fmt.Errorf("failed to write CSV metadata: %w", err)
			}
		}
	}

	rows := make([]csvRow, 0, len(info.Transactions))
	for _, txn := range info.Transactions {
		rows = append(rows, csvRow{
			Date:        txn.Date.String(),
			Description: txn.Description,
			Type:        string(txn.Type),
			Amount:      strconv.FormatFloat(txn.Amount, 'f', 2, 64),
			Balance:     formatAmount(txn.Balance),
			Category:    txn.Category,
		})
	}

	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(writer)); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	writer.Flush()
	return writer.Error()
}

// metadata lists the statement fields that are known, in display order.
func metadata(info *models.StatementInfo) [][2]string {
	var out [][2]string
	add := func(label, value string) {
		if value != "" {
			out = append(out, [2]string{label, value})
		}
	}
	add("Layout", string(info.Layout))
	add("Account Holder", info.AccountHolder)
	add("Account Number", info.AccountNumber)
	add("Statement Period", info.StatementPeriod)
	add("Opening Balance", formatAmount(info.OpeningBalance))
	return out
}

func formatAmount(amount *float64) string {
	if amount == nil {
		return ""
	}
	return strconv.FormatFloat(*amount, 'f', 2, 64)
}
