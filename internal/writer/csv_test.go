package writer

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/insightdelivered/statement-analyzer/internal/models"
)

func ptr(f float64) *float64 { return &f }

func sampleInfo() *models.StatementInfo {
	return &models.StatementInfo{
		Layout:          models.LayoutTabular,
		AccountHolder:   "PRIYA NAIR",
		AccountNumber:   "50100123456789",
		StatementPeriod: "01/09/2025 to 30/09/2025",
		OpeningBalance:  ptr(50000),
		Transactions: []models.Transaction{
			{
				Date:        models.Date{Time: time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC), Raw: "02/09/2025", Layout: "02/01/2006"},
				Description: "SALARY CREDIT - ACME CORP",
				Type:        models.Credit,
				Amount:      45000,
				Balance:     ptr(95000),
				Category:    "Income / Credits",
			},
			{
				Date:        models.Date{Time: time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC), Raw: "03/09/2025", Layout: "02/01/2006"},
				Description: "UPI PAYMENT - SWIGGY, BLR",
				Type:        models.Debit,
				Amount:      350,
				Category:    "Food & Drinks",
			},
		},
	}
}

func TestCSVWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := &CSVWriter{IncludeHeader: true}
	if err := w.Write(&buf, sampleInfo()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()

	// Check metadata headers
	for _, label := range []string{"# Layout,tabular", "# Account Holder,PRIYA NAIR", "# Account Number", "# Opening Balance,50000.00"} {
		if !strings.Contains(output, label) {
			t.Errorf("expected metadata %q", label)
		}
	}

	// Check column headers
	if !strings.Contains(output, "Date,Description,Type,Amount,Balance,Category") {
		t.Error("expected column headers")
	}

	if !strings.Contains(output, "2025-09-02,SALARY CREDIT - ACME CORP,Credit,45000.00,95000.00,Income / Credits") {
		t.Errorf("expected first transaction row, got:\n%s", output)
	}
	// commas in descriptions are quoted, a missing balance is an empty cell
	if !strings.Contains(output, `2025-09-03,"UPI PAYMENT - SWIGGY, BLR",Debit,350.00,,Food & Drinks`) {
		t.Errorf("expected second transaction row, got:\n%s", output)
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	// 5 metadata lines + 1 header + 2 transactions = 8
	if len(lines) != 8 {
		t.Errorf("expected 8 lines, got %d", len(lines))
	}
}

func TestCSVWriter_WriteNoHeader(t *testing.T) {
	var buf bytes.Buffer
	w := &CSVWriter{IncludeHeader: false}
	if err := w.Write(&buf, sampleInfo()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()

	// Should NOT have metadata
	if strings.Contains(output, "# ") {
		t.Error("should not have metadata when header=false")
	}

	// Should still have column headers
	if !strings.HasPrefix(output, "Date,Description,Type,Amount,Balance,Category\n") {
		t.Error("expected column headers even without metadata")
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		input    *float64
		expected string
	}{
		{ptr(25.99), "25.99"},
		{ptr(1234.56), "1234.56"},
		{ptr(0), "0.00"},
		{nil, ""},
		{ptr(2500.00), "2500.00"},
	}

	for _, tt := range tests {
		got := formatAmount(tt.input)
		if got != tt.expected {
			t.Errorf("formatAmount(%v): got %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestMetadata_SkipsUnknownFields(t *testing.T) {
	got := metadata(&models.StatementInfo{Layout: models.LayoutGeneric})
	if len(got) != 1 || got[0] != [2]string{"Layout", "generic"} {
		t.Errorf("metadata: got %v", got)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		format string
		want   any
	}{
		{"csv", &CSVWriter{}},
		{"", &CSVWriter{}},
		{"XLSX", &XLSXWriter{}},
	}
	for _, tt := range tests {
		w, err := New(tt.format, false)
		if err != nil {
			t.Errorf("New(%q): unexpected error: %v", tt.format, err)
			continue
		}
		switch tt.want.(type) {
		case *CSVWriter:
			if _, ok := w.(*CSVWriter); !ok {
				t.Errorf("New(%q): got %T", tt.format, w)
			}
		case *XLSXWriter:
			if _, ok := w.(*XLSXWriter); !ok {
				t.Errorf("New(%q): got %T", tt.format, w)
			}
		}
	}

	if _, err := New("pdf", false); err == nil {
		t.Error("expected error for unknown format")
	}
	if Extension("xlsx") != ".xlsx" || Extension("csv") != ".csv" {
		t.Error("unexpected extension")
	}
}
