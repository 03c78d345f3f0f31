package writer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestXLSXWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&XLSXWriter{IncludeHeader: true}).Write(&buf, sampleInfo()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{transactionsSheet, statementSheet}, f.GetSheetList())

	rows, err := f.GetRows(transactionsSheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Date", "Description", "Type", "Amount", "Balance", "Category"}, rows[0])
	assert.Equal(t, []string{"2025-09-02", "SALARY CREDIT - ACME CORP", "Credit", "45000", "95000", "Income / Credits"}, rows[1])
	assert.Equal(t, []string{"2025-09-03", "UPI PAYMENT - SWIGGY, BLR", "Debit", "350", "", "Food & Drinks"}, rows[2])

	meta, err := f.GetRows(statementSheet)
	require.NoError(t, err)
	require.NotEmpty(t, meta)
	assert.Equal(t, []string{"Layout", "tabular"}, meta[0])
	assert.Contains(t, meta, []string{"Account Number", "50100123456789"})
}

func TestXLSXWriter_WriteNoHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&XLSXWriter{}).Write(&buf, sampleInfo()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{transactionsSheet}, f.GetSheetList())
}

func TestXLSXWriter_NoTransactions(t *testing.T) {
	var buf bytes.Buffer
	info := sampleInfo()
	info.Transactions = nil
	require.NoError(t, (&XLSXWriter{}).Write(&buf, info))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(transactionsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
