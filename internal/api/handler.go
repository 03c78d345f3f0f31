// Package api exposes statement analysis and the finance advisor over HTTP.
package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-analyzer/internal/advisor"
	"github.com/insightdelivered/statement-analyzer/internal/categorizer"
	"github.com/insightdelivered/statement-analyzer/internal/logger"
	"github.com/insightdelivered/statement-analyzer/internal/models"
	"github.com/insightdelivered/statement-analyzer/internal/parser"
	"github.com/insightdelivered/statement-analyzer/internal/pipeline"
	"github.com/insightdelivered/statement-analyzer/internal/secret"
	"github.com/insightdelivered/statement-analyzer/internal/stats"
	"github.com/insightdelivered/statement-analyzer/internal/writer"
)

// Analyzer is the part of pipeline.Processor the handlers use.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte, opts pipeline.Options) pipeline.Analysis
}

// ConvertResponse is the JSON response from the /api/convert endpoint.
type ConvertResponse struct {
	Success      bool                 `json:"success"`
	Error        string               `json:"error,omitempty"`
	Layout       string               `json:"layout,omitempty"`
	AccountInfo  *AccountInfo         `json:"accountInfo,omitempty"`
	Transactions []models.Transaction `json:"transactions"`
	CSV          string               `json:"csv,omitempty"`
	Stats        stats.Stats          `json:"stats"`
	Summary      categorizer.Summary  `json:"summary"`
	Diagnostics  pipeline.Diagnostics `json:"diagnostics"`
	RawText      string               `json:"rawText,omitempty"`
	Version      string               `json:"version,omitempty"`
	DebugLines   []models.DebugLine   `json:"debugLines,omitempty"`
}

// AccountInfo holds account metadata for the JSON response.
type AccountInfo struct {
	Holder         string   `json:"holder,omitempty"`
	Number         string   `json:"number,omitempty"`
	Period         string   `json:"period,omitempty"`
	OpeningBalance *float64 `json:"openingBalance,omitempty"`
}

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	analyzer Analyzer
	advisor  advisor.Advisor
	gatherer prometheus.Gatherer
	log      zerolog.Logger
	version  string
}

// NewHandler wires the handlers. gatherer may be nil, in which case
// /metrics is not served.
func NewHandler(a Analyzer, adv advisor.Advisor, gatherer prometheus.Gatherer, log zerolog.Logger, version string) *Handler {
	if adv == nil {
		adv = advisor.Local{}
	}
	return &Handler{analyzer: a, advisor: adv, gatherer: gatherer, log: log, version: version}
}

// NewApp returns a fiber app with the routes registered. Uploads larger
// than maxUploadMB are rejected before reaching a handler.
func NewApp(h *Handler, maxUploadMB int) *fiber.App {
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	app := fiber.New(fiber.Config{
		AppName:               "statement-analyzer",
		BodyLimit:             maxUploadMB << 20,
		DisableStartupMessage: true,
		ErrorHandler:          h.errorHandler,
	})
	app.Use(recover.New())
	app.Use(h.requestLogger)
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", h.HandleHealth)
	app.Post("/api/convert", h.HandleConvert)
	app.Post("/api/ask", h.HandleAsk)
	if h.gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": h.version,
		"engine":  "fiber",
	})
}

func (h *Handler) HandleConvert(c *fiber.Ctx) error {
	// moved into a Secret straight away and never logged
	password := secret.New(c.FormValue("password"))
	defer password.Wipe()

	header, err := c.FormFile("file")
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "No file uploaded. Use form field 'file'.")
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		return writeError(c, fiber.StatusBadRequest, "Only PDF files are supported.")
	}

	opts := pipeline.Options{Password: password}
	if v := c.FormValue("ocr"); v != "" {
		force, err := strconv.ParseBool(v)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "Field 'ocr' must be true or false.")
		}
		opts.ForceOCR = force
	}
	if v := c.FormValue("layout"); v != "" {
		layout, err := parser.ParseLayout(v)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, err.Error()+". Use tabular or generic.")
		}
		opts.Layout = layout
	}
	includeHeader := c.FormValue("header") != "false"

	file, err := header.Open()
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, "Failed to read uploaded file.")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, "Failed to read uploaded file.")
	}

	ctx := logger.WithContext(c.UserContext(), h.log.With().Str("file", header.Filename).Logger())
	analysis := h.analyzer.Analyze(ctx, data, opts)

	info := analysis.Info
	if info == nil {
		info = &models.StatementInfo{Layout: analysis.Diagnostics.Layout}
	}
	info.Transactions = analysis.Transactions

	var csvBuf bytes.Buffer
	csvWriter := &writer.CSVWriter{IncludeHeader: includeHeader}
	if err := csvWriter.Write(&csvBuf, info); err != nil {
		return writeError(c, fiber.StatusInternalServerError, "CSV generation failed: "+err.Error())
	}

	if strings.EqualFold(c.FormValue("format"), writer.FormatCSV) {
		c.Attachment(strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename)) + ".csv")
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		return c.Send(csvBuf.Bytes())
	}

	resp := ConvertResponse{
		Success:      true,
		Layout:       string(analysis.Diagnostics.Layout),
		Transactions: analysis.Transactions,
		CSV:          csvBuf.String(),
		Stats:        analysis.Stats,
		Summary:      analysis.Summary,
		Diagnostics:  analysis.Diagnostics,
		RawText:      analysis.RawText,
		Version:      h.version,
		DebugLines:   info.DebugLines,
	}
	if info.AccountHolder != "" || info.AccountNumber != "" || info.StatementPeriod != "" || info.OpeningBalance != nil {
		resp.AccountInfo = &AccountInfo{
			Holder:         info.AccountHolder,
			Number:         info.AccountNumber,
			Period:         info.StatementPeriod,
			OpeningBalance: info.OpeningBalance,
		}
	}
	return c.JSON(resp)
}

func (h *Handler) HandleAsk(c *fiber.Ctx) error {
	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "Request body must be JSON with a 'question' field.")
	}
	ctx := logger.WithContext(c.UserContext(), h.log)
	return c.JSON(h.advisor.Ask(ctx, req.Question))
}

func (h *Handler) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	h.log.Info().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("elapsed", time.Since(start)).
		Msg("request")
	return err
}

func (h *Handler) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return writeError(c, code, err.Error())
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ConvertResponse{
		Success:      false,
		Error:        msg,
		Transactions: []models.Transaction{},
	})
}
