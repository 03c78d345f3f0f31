// Package pipeline runs one statement document through extraction, layout
// detection and parsing, threading diagnostics through every stage.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/insightdelivered/statement-analyzer/internal/categorizer"
	"github.com/insightdelivered/statement-analyzer/internal/extractor"
	"github.com/insightdelivered/statement-analyzer/internal/logger"
	"github.com/insightdelivered/statement-analyzer/internal/metrics"
	"github.com/insightdelivered/statement-analyzer/internal/models"
	"github.com/insightdelivered/statement-analyzer/internal/parser"
	"github.com/insightdelivered/statement-analyzer/internal/secret"
	"github.com/insightdelivered/statement-analyzer/internal/stats"
)

// TextExtractor turns document bytes into text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, opts extractor.Options) models.ExtractionResult
}

// Options control one ProcessDocument call.
type Options struct {
	ForceOCR bool
	// Password is wiped before ProcessDocument returns.
	Password *secret.Secret
	// Layout overrides detection when set.
	Layout models.Layout
}

// Diagnostics explain how a result was obtained.
type Diagnostics struct {
	DocumentID string        `json:"documentId"`
	Engine     models.Engine `json:"engine"`
	PageCount  int           `json:"pageCount"`
	Note       string        `json:"note"`
	Layout     models.Layout `json:"layout,omitempty"`
}

// Result is the outcome of processing one document. Transactions is never
// nil; an empty slice together with Diagnostics.Note is how "nothing
// found" is reported.
type Result struct {
	Transactions []models.Transaction  `json:"transactions"`
	RawText      string                `json:"-"`
	Diagnostics  Diagnostics           `json:"diagnostics"`
	Info         *models.StatementInfo `json:"-"`
}

// Analysis is a Result with categories, statistics and a spending summary.
type Analysis struct {
	Result
	Stats   stats.Stats         `json:"stats"`
	Summary categorizer.Summary `json:"summary"`
}

// Processor is safe for concurrent use across documents.
type Processor struct {
	extractor   TextExtractor
	categorizer *categorizer.Categorizer
	metrics     *metrics.Metrics
}

// NewProcessor wires a processor. m may be nil.
func NewProcessor(ex TextExtractor, cat *categorizer.Categorizer, m *metrics.Metrics) *Processor {
	return &Processor{extractor: ex, categorizer: cat, metrics: m}
}

// ProcessDocument extracts and parses one document. It never fails: an
// unreadable document yields no transactions and a note saying why, and a
// panic anywhere below is recovered into the same shape.
func (p *Processor) ProcessDocument(ctx context.Context, data []byte, opts Options) (res Result) {
	defer opts.Password.Wipe()

	start := time.Now()
	id := uuid.NewString()
	log := logger.FromContext(ctx).With().Str("document_id", id).Logger()
	ctx = logger.WithContext(ctx, log)

	res = Result{
		Transactions: []models.Transaction{},
		Diagnostics:  Diagnostics{DocumentID: id, Engine: models.EngineNone},
	}

	defer func() {
		if r := recover(); r != nil {
			p.metrics.ObservePanic()
			log.Error().Interface("panic", r).Msg("statement processing panicked")
			res = Result{
				Transactions: []models.Transaction{},
				Diagnostics: Diagnostics{
					DocumentID: id,
					Engine:     res.Diagnostics.Engine,
					PageCount:  res.Diagnostics.PageCount,
					Note:       joinNote(res.Diagnostics.Note, fmt.Sprintf("internal error: %v", r)),
				},
			}
		}
		p.metrics.ObserveDocument(res.Diagnostics.Engine, res.Diagnostics.Layout, len(res.Transactions), time.Since(start))
	}()

	ext := p.extractor.Extract(ctx, data, extractor.Options{ForceOCR: opts.ForceOCR, Password: opts.Password})
	res.RawText = ext.Text
	res.Diagnostics.Engine = ext.Engine
	res.Diagnostics.PageCount = ext.PageCount
	res.Diagnostics.Note = ext.Note

	if ext.Text == "" {
		log.Info().Str("note", ext.Note).Msg("no text extracted")
		return res
	}

	layout := opts.Layout
	if layout == "" {
		layout = parser.Detect(ext.Text)
	}
	strategy, err := parser.New(layout)
	if err != nil {
		res.Diagnostics.Note = joinNote(res.Diagnostics.Note, fmt.Sprintf("%v; using detected layout", err))
		layout = parser.Detect(ext.Text)
		strategy, _ = parser.New(layout)
	}
	res.Diagnostics.Layout = layout

	info := strategy.Parse(ext.Text)
	res.Info = info
	if len(info.Transactions) > 0 {
		res.Transactions = info.Transactions
	} else {
		res.Diagnostics.Note = joinNote(res.Diagnostics.Note, fmt.Sprintf("no transactions recognised in %s layout", layout))
	}

	log.Info().
		Str("engine", string(ext.Engine)).
		Str("layout", string(layout)).
		Int("pages", ext.PageCount).
		Int("transactions", len(res.Transactions)).
		Dur("elapsed", time.Since(start)).
		Msg("statement processed")
	return res
}

// Analyze processes the document, then categorizes the transactions and
// computes statistics over them.
func (p *Processor) Analyze(ctx context.Context, data []byte, opts Options) Analysis {
	res := p.ProcessDocument(ctx, data, opts)
	if p.categorizer != nil {
		res.Transactions = p.categorizer.Categorize(res.Transactions)
		if res.Info != nil {
			info := *res.Info
			info.Transactions = res.Transactions
			res.Info = &info
		}
	}
	return Analysis{
		Result:  res,
		Stats:   stats.Aggregate(res.Transactions),
		Summary: categorizer.Summarize(res.Transactions),
	}
}

func joinNote(note, extra string) string {
	if note == "" {
		return extra
	}
	return note + "; " + extra
}
