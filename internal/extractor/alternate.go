package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/dslipak/pdf"

	"github.com/insightdelivered/statement-analyzer/internal/models"
	"github.com/insightdelivered/statement-analyzer/internal/secret"
)

// columnGap is the horizontal distance, in points, between two text
// objects on a row beyond which they are treated as separate columns.
const columnGap = 15

// wordGap is the smallest gap after a measured text object that still marks
// a word break. Generators that place one glyph per object drop the space
// objects, so the break has to be recovered from geometry.
const wordGap = 1

// AlternateStage reconstructs rows from raw text objects with dslipak/pdf.
// It copes with generators whose text-by-row output is empty, and falls back
// to the reader's whole-document plain text.
type AlternateStage struct{}

func (s *AlternateStage) Engine() models.Engine {
	return models.EngineAlternate
}

func (s *AlternateStage) Extract(ctx context.Context, data []byte, password *secret.Secret) (StageResult, error) {
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
		pages = append(pages, contentRows(page.Content().Text))
	}

	text := joinPages(pages)
	if text == "" {
		text = readerPlainText(r)
	}
	return StageResult{Text: text, Pages: numPages}, nil
}

type textItem struct {
	x, y float64
	w    float64 // advance width; 0 when unknown
	s    string
}

// contentRows groups text pieces by Y coordinate to reconstruct rows, then
// sorts each row by X. Wide gaps become a double-space column separator.
func contentRows(texts []pdf.Text) string {
	items := make([]textItem, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		items = append(items, textItem{x: t.X, y: t.Y, w: t.W, s: t.S})
	}
	return layoutRows(items)
}

func layoutRows(items []textItem) string {
	rowMap := make(map[int][]textItem)
	for _, it := range items {
		// Round Y to nearest integer to group into rows
		yKey := int(math.Round(it.y))
		rowMap[yKey] = append(rowMap[yKey], it)
	}

	// PDF Y grows bottom-to-top
	yKeys := make([]int, 0, len(rowMap))
	for y := range rowMap {
		yKeys = append(yKeys, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(yKeys)))

	var lines []string
	for _, y := range yKeys {
		row := rowMap[y]
		sort.SliceStable(row, func(a, b int) bool {
			return row[a].x < row[b].x
		})

		var b strings.Builder
		var prevX, prevW float64
		for j, it := range row {
			if j > 0 {
				switch gap := it.x - (prevX + prevW); {
				case gap > columnGap:
					b.WriteString("  ")
				case prevW > 0 && gap > wordGap:
					b.WriteString(" ")
				}
			}
			b.WriteString(it.s)
			prevX, prevW = it.x, it.w
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// readerPlainText is whole-document extraction, used when no page yields
// positioned text objects.
func readerPlainText(r *pdf.Reader) string {
	reader, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
