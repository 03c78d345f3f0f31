// Package extractor pulls linear text out of statement PDFs. Engines are
// tried in order, native text layer first and OCR last, and the first one
// that produces any text wins.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/insightdelivered/statement-analyzer/internal/logger"
	"github.com/insightdelivered/statement-analyzer/internal/models"
	"github.com/insightdelivered/statement-analyzer/internal/secret"
)

// ErrPasswordRequired is reported when an encrypted document cannot be
// opened with the supplied password (or without one).
var ErrPasswordRequired = errors.New("document is encrypted: password missing or incorrect")

// StageResult is what a single engine got out of a document.
type StageResult struct {
	Text  string
	Pages int
}

// Stage is one text-extraction engine.
type Stage interface {
	Engine() models.Engine
	// Extract returns the document text. Empty text with a nil error means
	// the engine ran but found nothing.
	Extract(ctx context.Context, data []byte, password *secret.Secret) (StageResult, error)
}

// Options control a single Extract call.
type Options struct {
	// ForceOCR skips the text-layer engines.
	ForceOCR bool
	// Password is wiped before Extract returns.
	Password *secret.Secret
}

// StageObserver is told how every attempted stage went.
type StageObserver func(engine models.Engine, outcome string, elapsed time.Duration)

// Stage outcomes passed to a StageObserver.
const (
	OutcomeText  = "text"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// DefaultStageTimeout bounds each text-layer stage when none is configured.
const DefaultStageTimeout = 30 * time.Second

// Extractor runs the engine cascade.
type Extractor struct {
	stages       []Stage
	observer     StageObserver
	stageTimeout time.Duration
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithObserver registers a per-stage callback, typically for metrics.
func WithObserver(obs StageObserver) Option {
	return func(e *Extractor) { e.observer = obs }
}

// WithStages replaces the default engine cascade.
func WithStages(stages ...Stage) Option {
	return func(e *Extractor) { e.stages = stages }
}

// WithStageTimeout bounds every text-layer stage. The OCR stage has its own
// deadline. Zero or negative disables the bound.
func WithStageTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.stageTimeout = d }
}

// New returns an Extractor running native text, the alternate text layer
// and OCR, in that order.
func New(ocr OCRConfig, opts ...Option) *Extractor {
	e := &Extractor{
		stages:       []Stage{&NativeStage{}, &AlternateStage{}, NewOCRStage(ocr)},
		stageTimeout: DefaultStageTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the text of data and a record of how it was obtained. It
// never returns an error: failures of individual engines are folded into
// the result's Note.
//
// Encrypted documents are read twice if needed: first as supplied, with
// the password handed to the engine, then as a plain copy decrypted by
// pdfcpu. The plain copy is zeroed before Extract returns.
func (e *Extractor) Extract(ctx context.Context, data []byte, opts Options) models.ExtractionResult {
	defer opts.Password.Wipe()

	log := logger.FromContext(ctx)
	res := models.ExtractionResult{Engine: models.EngineNone}
	var notes []string

	doc := &document{data: data, password: opts.Password}
	defer doc.release()

	for _, st := range e.stages {
		engine := st.Engine()
		if opts.ForceOCR && engine != models.EngineOCR {
			continue
		}
		if err := ctx.Err(); err != nil {
			notes = append(notes, fmt.Sprintf("%s: %v", engine, err))
			break
		}

		start := time.Now()
		out, decrypted, err := e.attempt(ctx, st, doc)
		elapsed := time.Since(start)
		res.PageCount = out.Pages

		ev := log.Debug().Str("engine", string(engine)).Int("pages", out.Pages).Dur("elapsed", elapsed).Bool("decrypted", decrypted)
		switch {
		case err != nil:
			e.observe(engine, OutcomeError, elapsed)
			ev.Err(err).Msg("extraction stage failed")
			notes = append(notes, fmt.Sprintf("%s: %v", engine, err))
		case strings.TrimSpace(out.Text) == "":
			e.observe(engine, OutcomeEmpty, elapsed)
			ev.Msg("extraction stage found no text")
			notes = append(notes, fmt.Sprintf("%s: no text found in %d page(s)", engine, out.Pages))
		default:
			e.observe(engine, OutcomeText, elapsed)
			ev.Int("chars", len(out.Text)).Msg("extraction stage succeeded")
			note := fmt.Sprintf("%s: extracted %d characters from %d page(s)", engine, len(out.Text), out.Pages)
			if decrypted {
				note += " after decryption"
			}
			if q := textQuality(out.Text); q < 0.6 {
				note += fmt.Sprintf(" (low text quality %.2f, font encoding may be unsupported)", q)
			}
			res.Text = out.Text
			res.Engine = engine
			res.Note = strings.Join(append(notes, note), "; ")
			return res
		}
	}

	notes = append(notes, "no text could be extracted")
	res.Note = strings.Join(notes, "; ")
	return res
}

// attempt runs one engine over doc. Text-layer engines read the document
// as supplied first and, when that yields nothing and the document is
// encrypted, the decrypted copy. OCR reads the decrypted copy when there
// is one. decrypted reports whether the returned result came from it.
func (e *Extractor) attempt(ctx context.Context, st Stage, doc *document) (out StageResult, decrypted bool, err error) {
	if st.Engine() == models.EngineOCR {
		if plain, derr := doc.plain(); derr == nil {
			out, err = runStage(ctx, st, plain, nil, 0)
			return out, true, err
		}
		out, err = runStage(ctx, st, doc.data, doc.password, 0)
		return out, false, err
	}

	out, err = runStage(ctx, st, doc.data, doc.password, e.stageTimeout)
	if err == nil && strings.TrimSpace(out.Text) != "" {
		return out, false, nil
	}
	if ctx.Err() != nil || !doc.encrypted() {
		return out, false, err
	}

	plain, derr := doc.plain()
	if derr != nil {
		if errors.Is(derr, ErrPasswordRequired) {
			return out, false, ErrPasswordRequired
		}
		return out, false, err
	}
	retry, rerr := runStage(ctx, st, plain, nil, e.stageTimeout)
	if rerr == nil && strings.TrimSpace(retry.Text) != "" {
		return retry, true, nil
	}
	if err != nil {
		return out, false, err
	}
	return retry, true, rerr
}

func (e *Extractor) observe(engine models.Engine, outcome string, elapsed time.Duration) {
	if e.observer != nil {
		e.observer(engine, outcome, elapsed)
	}
}

// document is the input of one Extract call and its lazily decrypted copy.
type document struct {
	data     []byte
	password *secret.Secret

	tried     bool
	decrypted []byte
	err       error
}

var encryptMarker = []byte("/Encrypt")

// encrypted reports whether the document looks encrypted or a password was
// supplied for it.
func (d *document) encrypted() bool {
	return d.password.Present() || bytes.Contains(d.data, encryptMarker)
}

// plain returns the document decrypted by pdfcpu, decrypting on first use.
func (d *document) plain() ([]byte, error) {
	if !d.tried {
		d.tried = true
		if !d.encrypted() {
			d.err = errNotEncrypted
		} else {
			d.decrypted, d.err = decryptPDF(d.data, d.password)
		}
	}
	return d.decrypted, d.err
}

func (d *document) release() {
	clear(d.decrypted)
	d.decrypted = nil
}

var errNotEncrypted = errors.New("document is not encrypted")

// runStage runs st in its own goroutine so a PDF library stuck inside a
// page cannot outlive ctx, and turns a panic into a stage error. A
// positive timeout bounds the stage.
func runStage(ctx context.Context, st Stage, data []byte, pw *secret.Secret, timeout time.Duration) (StageResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		res StageResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("PDF library crashed: %v", r)}
			}
		}()
		res, err := st.Extract(ctx, data, pw)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return StageResult{}, fmt.Errorf("stage abandoned: %w", ctx.Err())
	}
}

// passwordFunc adapts a secret to the callback the PDF readers expect. The
// readers keep asking until they get "", so the value is offered once.
func passwordFunc(pw *secret.Secret) func() string {
	if !pw.Present() {
		return nil
	}
	offered := false
	return func() string {
		if offered {
			return ""
		}
		offered = true
		return pw.Reveal()
	}
}

// textQuality returns the ratio of basic ASCII readable characters (a-z, A-Z,
// 0-9, common punctuation, whitespace) to total characters. Returns 0.0-1.0.
// Uses a strict ASCII check: unicode.IsLetter() is too broad and matches
// accented characters that appear in garbage from identity-encoded fonts.
func textQuality(text string) float64 {
	total := 0
	readable := 0
	for _, r := range text {
		total++
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || unicode.IsSpace(r) ||
			strings.ContainsRune(".,-/:;()'\"£$€₹%&@#!?+=*", r) {
			readable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// joinPages joins non-empty page texts with newlines.
func joinPages(pages []string) string {
	var kept []string
	for _, p := range pages {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
