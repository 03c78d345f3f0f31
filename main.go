package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-analyzer/internal/advisor"
	"github.com/insightdelivered/statement-analyzer/internal/api"
	"github.com/insightdelivered/statement-analyzer/internal/categorizer"
	"github.com/insightdelivered/statement-analyzer/internal/config"
	"github.com/insightdelivered/statement-analyzer/internal/extractor"
	"github.com/insightdelivered/statement-analyzer/internal/logger"
	"github.com/insightdelivered/statement-analyzer/internal/metrics"
	"github.com/insightdelivered/statement-analyzer/internal/models"
	"github.com/insightdelivered/statement-analyzer/internal/parser"
	"github.com/insightdelivered/statement-analyzer/internal/pipeline"
	"github.com/insightdelivered/statement-analyzer/internal/secret"
	"github.com/insightdelivered/statement-analyzer/internal/writer"
)

const version = "2.0.0"

type cliOptions struct {
	layout        models.Layout
	forceOCR      bool
	password      []byte
	output        string
	format        string
	includeHeader bool
	currency      string
}

func main() {
	// CLI flags
	layoutFlag := flag.String("layout", "", "Statement layout: tabular, generic (auto-detected if omitted)")
	ocrFlag := flag.Bool("ocr", false, "Skip the text layer and OCR every page")
	passwordStdinFlag := flag.Bool("password-stdin", false, "Read the PDF password from the first line of stdin")
	outputFlag := flag.String("output", "", "Output file path (defaults to input filename with the format's extension)")
	formatFlag := flag.String("format", writer.FormatCSV, "Output format: csv, xlsx")
	headerFlag := flag.Bool("header", true, "Include account metadata in the output")
	rulesFlag := flag.String("rules", "", "YAML category rule file (overrides CATEGORY_RULES_FILE)")
	serveFlag := flag.Bool("serve", false, "Run the HTTP API instead of converting files")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	helpFlag := flag.Bool("help", false, "Show usage help")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Bank Statement Analyzer
by Insight Delivered (QEA AutoLens)

Extracts transactions from bank statement PDFs, including scanned and
password-protected ones, categorizes spending and exports CSV or XLSX.

Usage:
  statement-analyzer [flags] <input.pdf> [input2.pdf ...]
  statement-analyzer -serve

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Auto-detect layout and convert
  statement-analyzer statement.pdf

  # Password-protected statement to Excel
  echo "$PDF_PASSWORD" | statement-analyzer -password-stdin -format=xlsx statement.pdf

  # Scanned statement, custom categories
  statement-analyzer -ocr -rules=categories.yaml scan.pdf

  # HTTP API on SERVER_HOST:SERVER_PORT
  statement-analyzer -serve

Layouts:
  tabular  - date, narration, amount and running balance columns
  generic  - one transaction per line, date anywhere, amount last
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("statement-analyzer v%s\n", version)
		os.Exit(0)
	}

	if *helpFlag || (flag.NArg() == 0 && !*serveFlag) {
		flag.Usage()
		os.Exit(0)
	}

	cfg := config.Load()
	if *rulesFlag != "" {
		cfg.Categories.RulesFile = *rulesFlag
	}
	if err := cfg.Validate(); err != nil {
		fatalf("Invalid configuration: %v\n", err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	ctx, stop := signal.NotifyContext(logger.WithContext(context.Background(), log), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
	}

	cat, err := newCategorizer(cfg.Categories.RulesFile)
	if err != nil {
		fatalf("Category rules: %v\n", err)
	}
	proc := pipeline.NewProcessor(extractor.New(cfg.OCR,
		extractor.WithObserver(m.ObserveStage),
		extractor.WithStageTimeout(cfg.Extraction.StageTimeout),
	), cat, m)

	if *serveFlag {
		var gatherer prometheus.Gatherer
		if cfg.Metrics.Enabled {
			gatherer = reg
		}
		if err := serve(ctx, cfg, proc, gatherer, log); err != nil {
			fatalf("Server error: %v\n", err)
		}
		return
	}

	opts := cliOptions{
		forceOCR:      *ocrFlag,
		output:        *outputFlag,
		format:        strings.ToLower(*formatFlag),
		includeHeader: *headerFlag,
		currency:      cfg.Categories.Currency,
	}
	if _, err := writer.New(opts.format, opts.includeHeader); err != nil {
		fatalf("%v\n", err)
	}
	if *layoutFlag != "" {
		layout, err := parser.ParseLayout(*layoutFlag)
		if err != nil {
			fatalf("Unknown layout %q. Supported: tabular, generic\n", *layoutFlag)
		}
		opts.layout = layout
	}
	if opts.forceOCR && !extractor.NewOCRStage(cfg.OCR).Available() {
		log.Warn().Msg("-ocr given but pdftoppm or tesseract is not on PATH")
	}
	if opts.output != "" && flag.NArg() > 1 {
		fatalf("-output can only be used with a single input file\n")
	}
	if *passwordStdinFlag {
		pw, err := readPassword(os.Stdin)
		if err != nil {
			fatalf("Reading password: %v\n", err)
		}
		opts.password = pw
		defer clear(pw)
	}

	// Process each input file
	for _, inputPath := range flag.Args() {
		if err := processFile(ctx, proc, inputPath, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", inputPath, err)
			os.Exit(1)
		}
	}
}

func newCategorizer(rulesFile string) (*categorizer.Categorizer, error) {
	var rules []categorizer.Rule
	if rulesFile != "" {
		var err error
		if rules, err = categorizer.LoadRules(rulesFile); err != nil {
			return nil, err
		}
	}
	return categorizer.New(rules)
}

// readPassword returns the first line of r without its line ending.
func readPassword(r io.Reader) ([]byte, error) {
	line, err := bufio.NewReader(r).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return nil, fmt.Errorf("no password on stdin")
	}
	return line, nil
}

func processFile(ctx context.Context, proc *pipeline.Processor, inputPath string, opts cliOptions) error {
	// Validate input file
	ext := strings.ToLower(filepath.Ext(inputPath))
	if ext != ".pdf" {
		return fmt.Errorf("expected .pdf file, got %q", ext)
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	fmt.Printf("Processing: %s\n", inputPath)

	var pw *secret.Secret
	if opts.password != nil {
		// each document gets its own copy; the pipeline wipes it
		pw = secret.FromBytes(bytes.Clone(opts.password))
	}
	analysis := proc.Analyze(ctx, data, pipeline.Options{
		ForceOCR: opts.forceOCR,
		Password: pw,
		Layout:   opts.layout,
	})
	diag := analysis.Diagnostics

	fmt.Printf("  Engine: %s (%d page(s))\n", diag.Engine, diag.PageCount)
	if diag.Layout != "" {
		fmt.Printf("  Layout: %s\n", diag.Layout)
	}
	fmt.Printf("  Found %d transaction(s)\n", len(analysis.Transactions))
	if diag.Note != "" {
		fmt.Printf("  Note: %s\n", diag.Note)
	}

	if len(analysis.Transactions) == 0 {
		fmt.Println("  Warning: No transactions found. The PDF format may not match expected patterns.")
		fmt.Println("  Try -layout=generic, or -ocr for scanned statements.")
		return nil
	}

	// Determine output path
	outPath := opts.output
	if outPath == "" {
		outPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + writer.Extension(opts.format)
	}

	info := analysis.Info
	if info == nil {
		info = &models.StatementInfo{Layout: diag.Layout}
	}
	info.Transactions = analysis.Transactions

	w, err := writer.New(opts.format, opts.includeHeader)
	if err != nil {
		return err
	}
	if err := w.WriteToFile(outPath, info); err != nil {
		return fmt.Errorf("%s write failed: %w", strings.ToUpper(opts.format), err)
	}

	fmt.Printf("  Output: %s\n", outPath)

	// Print summary
	if info.AccountHolder != "" {
		fmt.Printf("  Account holder: %s\n", info.AccountHolder)
	}
	if info.AccountNumber != "" {
		fmt.Printf("  Account number: %s\n", info.AccountNumber)
	}
	if info.StatementPeriod != "" {
		fmt.Printf("  Period: %s\n", info.StatementPeriod)
	}
	st := analysis.Stats
	fmt.Printf("  Debits: %s  Credits: %s  Net: %s\n",
		display(st.SumDebits, opts.currency), display(st.SumCredits, opts.currency), display(st.Net(), opts.currency))
	if st.FinalBalance != nil {
		fmt.Printf("  Closing balance: %s\n", display(*st.FinalBalance, opts.currency))
	}
	if top := analysis.Summary.TopCategory; top != "" {
		fmt.Printf("  Top spending category: %s (%s)\n", top, display(analysis.Summary.MaxSpent, opts.currency))
	}

	fmt.Println("  Done.")
	return nil
}

func display(amount float64, currency string) string {
	return money.NewFromFloat(amount, currency).Display()
}

func serve(ctx context.Context, cfg *config.Config, proc *pipeline.Processor, gatherer prometheus.Gatherer, log zerolog.Logger) error {
	adv, err := advisor.New(ctx, cfg.Gemini)
	if err != nil {
		return err
	}
	app := api.NewApp(api.NewHandler(proc, adv, gatherer, log, version), cfg.Server.MaxUploadMB)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr()).
			Bool("gemini", cfg.Gemini.Enabled()).
			Bool("ocr", extractor.NewOCRStage(cfg.OCR).Available()).
			Msg("starting server")
		errCh <- app.Listen(cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
