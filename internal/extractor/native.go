package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/insightdelivered/statement-analyzer/internal/models"
	"github.com/insightdelivered/statement-analyzer/internal/secret"
)

// NativeStage reads the embedded text layer with ledongthuc/pdf, page by
// page. Rows keep their left-to-right word order, which is what the line
// parsers rely on.
type NativeStage struct{}

func (s *NativeStage) Engine() models.Engine {
	return models.EngineNative
}

func (s *NativeStage) Extract(ctx context.Context, data []byte, password *secret.Secret) (StageResult, error) {
	r, err := pdf.NewReaderEncrypted(bytes.NewReader(data), int64(len(data)), passwordFunc(password))
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return StageResult{}, ErrPasswordRequired
		}
		return StageResult{}, fmt.Errorf("open PDF: %w", err)
	}

	numPages := r.NumPage()
	if numPages == 0 {
		return StageResult{}, fmt.Errorf("PDF has no pages")
	}

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return StageResult{Pages: i - 1}, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text := pageTextByRow(page)
		if text == "" {
			text = pagePlainText(page)
		}
		pages = append(pages, text)
	}

	return StageResult{Text: joinPages(pages), Pages: numPages}, nil
}

// pageTextByRow uses GetTextByRow, best for well-structured PDFs.
func pageTextByRow(page pdf.Page) string {
	rows, err := page.GetTextByRow()
	if err != nil {
		return ""
	}
	var lines []string
	for _, row := range rows {
		var parts []string
		for _, word := range row.Content {
			parts = append(parts, word.S)
		}
		line := strings.TrimSpace(strings.Join(parts, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// pagePlainText decodes the page with its own font map, which some
// generators need for their custom encodings.
func pagePlainText(page pdf.Page) string {
	fonts := make(map[string]*pdf.Font)
	for _, name := range page.Fonts() {
		f := page.Font(name)
		fonts[name] = &f
	}
	text, err := page.GetPlainText(fonts)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
