// Package writer exports parsed statements as CSV or XLSX.
package writer

import (
	"fmt"
	"io"
	"strings"

	"github.com/insightdelivered/statement-analyzer/internal/models"
)

// Writer exports a statement's transactions.
type Writer interface {
	Write(out io.Writer, info *models.StatementInfo) error
	WriteToFile(path string, info *models.StatementInfo) error
}

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// New returns the writer for format ("csv" or "xlsx").
func New(format string, includeHeader bool) (Writer, error) {
	switch strings.ToLower(format) {
	case FormatCSV, "":
		return &CSVWriter{IncludeHeader: includeHeader}, nil
	case FormatXLSX:
		return &XLSXWriter{IncludeHeader: includeHeader}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (valid: csv, xlsx)", format)
	}
}

// Extension returns the file extension, with dot, for format.
func Extension(format string) string {
	if strings.EqualFold(format, FormatXLSX) {
		return ".xlsx"
	}
	return ".csv"
}
