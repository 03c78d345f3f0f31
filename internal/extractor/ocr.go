package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/insightdelivered/statement-analyzer/internal/logger"
	"github.com/insightdelivered/statement-analyzer/internal/models"
	"github.com/insightdelivered/statement-analyzer/internal/secret"
)

// ErrOCRUnavailable is returned when pdftoppm or tesseract is not on PATH.
var ErrOCRUnavailable = errors.New("OCR tools not available (install poppler-utils and tesseract-ocr)")

func init() {
	// keep pdfcpu from creating a config directory in $HOME
	model.ConfigPath = "disable"
}

// OCRConfig bounds the rasterize-and-recognize stage.
type OCRConfig struct {
	Timeout  time.Duration // deadline for the whole stage; 0 means none
	MaxPages int           // pages rasterized from the start; 0 means all
	DPI      int
	Language string // tesseract language code
}

// DefaultOCRConfig returns the settings used when none are configured.
func DefaultOCRConfig() OCRConfig {
	return OCRConfig{
		Timeout:  2 * time.Minute,
		MaxPages: 20,
		DPI:      300,
		Language: "eng",
	}
}

// OCRStage converts PDF pages to images with pdftoppm and runs Tesseract
// on each. This handles scanned statements with no text layer.
type OCRStage struct {
	cfg      OCRConfig
	lookPath func(string) (string, error)
}

func NewOCRStage(cfg OCRConfig) *OCRStage {
	def := DefaultOCRConfig()
	if cfg.DPI <= 0 {
		cfg.DPI = def.DPI
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	return &OCRStage{cfg: cfg, lookPath: exec.LookPath}
}

func (s *OCRStage) Engine() models.Engine {
	return models.EngineOCR
}

// Available reports whether both external tools can be found.
func (s *OCRStage) Available() bool {
	return s.checkTools() == nil
}

func (s *OCRStage) checkTools() error {
	for _, tool := range []string{"pdftoppm", "tesseract"} {
		if _, err := s.lookPath(tool); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrOCRUnavailable, tool, err)
		}
	}
	return nil
}

func (s *OCRStage) Extract(ctx context.Context, data []byte, password *secret.Secret) (StageResult, error) {
	if err := s.checkTools(); err != nil {
		return StageResult{}, err
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	tmpDir, err := os.MkdirTemp("", "statement-ocr-*")
	if err != nil {
		return StageResult{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	plain, decryptErr := decryptPDF(data, password)
	if decryptErr != nil {
		// not encrypted, or a password pdfcpu rejects; pdftoppm decides
		plain = data
	}

	input := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(input, plain, 0o600); err != nil {
		return StageResult{}, fmt.Errorf("write temp PDF: %w", err)
	}

	total := pageCount(plain)
	images, err := s.rasterize(ctx, input, tmpDir)
	if err != nil {
		if decryptErr != nil && password.Present() {
			err = fmt.Errorf("%w (decrypt: %v)", err, decryptErr)
		}
		return StageResult{Pages: total}, err
	}

	log := logger.FromContext(ctx)
	if total > len(images) {
		log.Info().Int("pages", total).Int("ocr_pages", len(images)).Msg("OCR page cap reached")
	}

	var pages []string
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return StageResult{Text: joinPages(pages), Pages: len(images)}, fmt.Errorf("OCR interrupted: %w", err)
		}
		text, err := s.recognize(ctx, img)
		if err != nil {
			// some pages might still work
			log.Warn().Err(err).Str("image", filepath.Base(img)).Msg("tesseract failed on page")
			continue
		}
		pages = append(pages, text)
	}

	return StageResult{Text: joinPages(pages), Pages: len(images)}, nil
}

// rasterize renders the first MaxPages pages to PNG files in dir and returns
// them in page order.
func (s *OCRStage) rasterize(ctx context.Context, input, dir string) ([]string, error) {
	args := []string{"-r", strconv.Itoa(s.cfg.DPI), "-png"}
	if s.cfg.MaxPages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(s.cfg.MaxPages))
	}
	args = append(args, input, filepath.Join(dir, "page"))

	cmd := exec.CommandContext(ctx, "pdftoppm", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("pdftoppm: %w", ctxErr)
		}
		return nil, fmt.Errorf("pdftoppm failed: %v (output: %s)", err, strings.TrimSpace(string(out)))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read temp dir: %w", err)
	}
	var images []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".png") {
			images = append(images, filepath.Join(dir, e.Name()))
		}
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no page images")
	}
	sortPageImages(images)
	return images, nil
}

// recognize OCRs one page image. PSM 4 assumes a single column of text of
// variable sizes, which suits statements.
func (s *OCRStage) recognize(ctx context.Context, image string) (string, error) {
	cmd := exec.CommandContext(ctx, "tesseract", image, "stdout", "-l", s.cfg.Language, "--psm", "4")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract: %v (%s)", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(string(out)), nil
}

// sortPageImages orders pdftoppm output ("page-1.png", "page-10.png", ...)
// by page number rather than lexically.
func sortPageImages(images []string) {
	num := func(path string) int {
		base := strings.TrimSuffix(filepath.Base(path), ".png")
		if i := strings.LastIndex(base, "-"); i >= 0 {
			if n, err := strconv.Atoi(base[i+1:]); err == nil {
				return n
			}
		}
		return 0
	}
	sort.SliceStable(images, func(a, b int) bool { return num(images[a]) < num(images[b]) })
}

// decryptPDF returns data with its encryption removed using password. A
// document without a password or an /Encrypt entry is returned unchanged;
// one with an /Encrypt entry but no password is tried with the empty user
// password. A rejected password is reported as ErrPasswordRequired.
func decryptPDF(data []byte, password *secret.Secret) ([]byte, error) {
	if !password.Present() {
		if !bytes.Contains(data, encryptMarker) {
			return data, nil
		}
		return decryptBytes(data, "")
	}
	var out []byte
	err := password.Use(func(pw string) error {
		var err error
		out, err = decryptBytes(data, pw)
		return err
	})
	return out, err
}

func decryptBytes(data []byte, pw string) (plain []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			plain, err = nil, fmt.Errorf("decrypt PDF: pdfcpu crashed: %v", r)
		}
	}()
	conf := model.NewDefaultConfiguration()
	conf.UserPW = pw
	conf.OwnerPW = pw
	// classic xref table; the text-layer readers are least reliable on
	// object and xref streams
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	var out bytes.Buffer
	if err := api.Decrypt(bytes.NewReader(data), &out, conf); err != nil {
		if isWrongPassword(err) {
			return nil, fmt.Errorf("%w (%v)", ErrPasswordRequired, err)
		}
		return nil, fmt.Errorf("decrypt PDF: %w", err)
	}
	return out.Bytes(), nil
}

// isWrongPassword recognises pdfcpu rejecting both passwords, including
// the owner-password variant it raises for some commands.
func isWrongPassword(err error) bool {
	return errors.Is(err, pdfcpu.ErrWrongPassword) ||
		strings.Contains(err.Error(), "please provide the owner password")
}

// pageCount returns the number of pages pdfcpu reads in data, or 0.
func pageCount(data []byte) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	n, err := api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return 0
	}
	return n
}
