package writer

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/statement-analyzer/internal/models"
)

const (
	transactionsSheet = "Transactions"
	statementSheet    = "Statement"

	// built-in number format "#,##0.00"
	numFmtAmount = 4
)

var xlsxColumns = []any{"Date", "Description", "Type", "Amount", "Balance", "Category"}

// XLSXWriter writes transactions to an Excel workbook. Metadata goes on a
// separate sheet so the transaction sheet stays a plain table.
type XLSXWriter struct {
	IncludeHeader bool
}

func (w *XLSXWriter) WriteToFile(path string, info *models.StatementInfo) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, info)
}

func (w *XLSXWriter) Write(out io.Writer, info *models.StatementInfo) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", transactionsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: numFmtAmount})
	if err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}

	if err := f.SetSheetRow(transactionsSheet, "A1", &xlsxColumns); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}
	if err := f.SetRowStyle(transactionsSheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style header row: %w", err)
	}

	for i, txn := range info.Transactions {
		row := []any{txn.Date.String(), txn.Description, string(txn.Type), txn.Amount, nil, txn.Category}
		if txn.Balance != nil {
			row[4] = *txn.Balance
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(transactionsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if n := len(info.Transactions); n > 0 {
		last, _ := excelize.CoordinatesToCellName(5, n+1)
		if err := f.SetCellStyle(transactionsSheet, "D2", last, amountStyle); err != nil {
			return fmt.Errorf("failed to style amounts: %w", err)
		}
	}
	_ = f.SetColWidth(transactionsSheet, "B", "B", 48)
	_ = f.SetColWidth(transactionsSheet, "F", "F", 20)

	if w.IncludeHeader {
		if err := writeStatementSheet(f, info); err != nil {
			return err
		}
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeStatementSheet(f *excelize.File, info *models.StatementInfo) error {
	if _, err := f.NewSheet(statementSheet); err != nil {
		return fmt.Errorf("failed to create statement sheet: %w", err)
	}
	for i, kv := range metadata(info) {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		row := []any{kv[0], kv[1]}
		if err := f.SetSheetRow(statementSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write statement metadata: %w", err)
		}
	}
	_ = f.SetColWidth(statementSheet, "A", "B", 24)
	return nil
}
