package parser

import (
	"testing"
	"unicode/utf8"

	"github.com/insightdelivered/statement-analyzer/internal/models"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		wantErr  bool
	}{
		{"25.99", 25.99, false},
		{"1,234.56", 1234.56, false},
		{"£25.99", 25.99, false},
		{"-25.99", -25.99, false},
		{"£1,234,567.89", 1234567.89, false},
		{"₹45,000", 45000, false},
		{"Rs. 1,200.50", 1200.50, false},
		{"0.00", 0.00, false},
		{"", 0, false},
		{" 25.99 ", 25.99, false},
		{"12.3.4", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("got %f, want %f", got, tt.expected)
			}
		})
	}
}

func TestStartsWithDate(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"15/01/2024 CARD PAYMENT", true},
		{"1/1/24 PAYMENT", true},
		{"15 Jan 2024 CARD PAYMENT", true},
		{"15 JAN 2024 CARD PAYMENT", true},
		{"15-Jan-2024 PAYMENT", true},
		{"2024-01-15 PAYMENT", true},
		{"  02/09/2025 SALARY", true},
		{"CARD PAYMENT 15/01/2024", false},
		{"not a date line", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := startsWithDate(tt.input)
			if got != tt.expected {
				t.Errorf("startsWithDate(%q): got %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNumericTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []float64
	}{
		{"masks dates", "02/09/2025 02/09/2025 SALARY 45000 95000", []float64{45000, 95000}},
		{"signed amount", "UPI PAYMENT - SWIGGY -350 94650 DEBIT", []float64{-350, 94650}},
		{"grouped decimals", "PAYMENT 1,234.56 10,000.00", []float64{1234.56, 10000}},
		{"glued marker", "NEFT 500.00CR 1500.00", []float64{500, 1500}},
		{"reference glued to letters", "REF12345 10.00", []float64{10}},
		{"times are not amounts", "ATM at 10:30 paid 5", []float64{5}},
		{"trailing comma", "paid 25.00, thanks", []float64{25}},
		{"currency prefix", "TESCO £23.45", []float64{23.45}},
		{"no numbers", "just words here", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := numericTokens(tt.input, findDates(tt.input))
			if len(got) != len(tt.want) {
				t.Fatalf("got %d tokens %+v, want %v", len(got), got, tt.want)
			}
			for i := range got {
				if got[i].value != tt.want[i] {
					t.Errorf("token %d: got %f, want %f", i, got[i].value, tt.want[i])
				}
			}
		})
	}
}

func TestIsSummaryLine(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"Opening Balance 50000.00", true},
		{"Closing balance 94650.00", true},
		{"Balance brought forward 1,000.00", true},
		{"Total withdrawals 350.00", true},
		{"Page 1 of 3", true},
		{"Txn Date Value Date Description Withdrawal Deposit Balance", true},
		{"Date Description Paid out Paid in Balance", true},
		{"02/09/2025 SALARY CREDIT 45000 95000", false},
		{"03/09/2025 UPI PAYMENT - SWIGGY -350 94650 DEBIT", false},
		{"TESCO STORES 3297", false},
		{"Continued on next page", true},
		{"(continued)", true},
		{"03/09/2025 DISCONTINUED PLAN REFUND 500.00 1,500.00", false},
		{"15/01/2024 SERVICE CONTINUED FEE 20.00", false},
		{"TOTALENERGIES FUEL", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := isSummaryLine(tt.input); got != tt.expected {
				t.Errorf("isSummaryLine(%q): got %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractOpeningBalance(t *testing.T) {
	bal, ok := extractOpeningBalance("Opening Balance as on 01/09/2025 50,000.00")
	if !ok {
		t.Fatal("expected opening balance")
	}
	if bal != 50000 {
		t.Errorf("got %f, want 50000", bal)
	}

	if _, ok := extractOpeningBalance("02/09/2025 SALARY 45000 95000"); ok {
		t.Error("transaction line reported as opening balance")
	}
}

func TestTypeByKeyword(t *testing.T) {
	tests := []struct {
		input       string
		debit, cred bool
	}{
		{"SALARY CREDIT", false, true},
		{"CASH DEPOSIT", false, true},
		{"ATM WITHDRAWAL", true, false},
		{"DEBIT CARD REFUND CREDITED", true, true},
		{"CARD PAYMENT", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, c := typeByKeyword(tt.input)
			if d != tt.debit || c != tt.cred {
				t.Errorf("typeByKeyword(%q): got (%v, %v), want (%v, %v)", tt.input, d, c, tt.debit, tt.cred)
			}
		})
	}
}

func TestCleanDescription(t *testing.T) {
	line := "03/09/2025 03/09/2025 UPI PAYMENT - SWIGGY -350 94650 DEBIT"
	remove := findDates(line)
	for _, n := range numericTokens(line, remove) {
		remove = append(remove, n.span)
	}
	if got := cleanDescription(line, remove); got != "UPI PAYMENT - SWIGGY" {
		t.Errorf("got %q, want %q", got, "UPI PAYMENT - SWIGGY")
	}

	line = "02/09/2025 100.00"
	remove = findDates(line)
	for _, n := range numericTokens(line, remove) {
		remove = append(remove, n.span)
	}
	if got := cleanDescription(line, remove); got != models.DescriptionPlaceholder {
		t.Errorf("got %q, want placeholder", got)
	}
}

func TestExtractMetadata(t *testing.T) {
	text := "Account holder: John Smith\nAccount number: 12345678\nStatement period: 01/01/2024 to 31/01/2024"
	holder, number, period := extractMetadata(text)
	if holder != "John Smith" {
		t.Errorf("holder: got %q", holder)
	}
	if number != "12345678" {
		t.Errorf("number: got %q", number)
	}
	if period != "01/01/2024 to 31/01/2024" {
		t.Errorf("period: got %q", period)
	}
}

func TestMarkerTokens(t *testing.T) {
	tests := []struct {
		input  string
		dr, cr bool
	}{
		{"15/01/2024 NEFT CR ACME 500", false, true},
		{"15/01/2024 DR. SMITH 40", true, false},
		{"ACROSS DRIVE 12", false, false},
		{"500CR", false, false},
	}
	for _, tt := range tests {
		dr, cr := markerTokens(tt.input)
		if dr != tt.dr || cr != tt.cr {
			t.Errorf("markerTokens(%q): got (%v, %v), want (%v, %v)", tt.input, dr, cr, tt.dr, tt.cr)
		}
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	line := "02/09/2025 ₹ 45,000 — SALARY"
	got := truncate(line, 12)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	if got != "02/09/2025 ₹..." {
		t.Errorf("got %q", got)
	}
	if truncate("short", 120) != "short" {
		t.Error("short line should be unchanged")
	}
}
