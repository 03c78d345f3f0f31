package extractor

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-analyzer/internal/models"
	"github.com/insightdelivered/statement-analyzer/internal/secret"
)

type fakeStage struct {
	engine   models.Engine
	text     string
	pages    int
	err      error
	panics   bool
	calls    int
	password string
}

func (f *fakeStage) Engine() models.Engine { return f.engine }

func (f *fakeStage) Extract(_ context.Context, _ []byte, pw *secret.Secret) (StageResult, error) {
	f.calls++
	f.password = pw.Reveal()
	if f.panics {
		panic("malformed xref")
	}
	return StageResult{Text: f.text, Pages: f.pages}, f.err
}

func cascade(native, alternate, ocr *fakeStage) *Extractor {
	return New(DefaultOCRConfig(), WithStages(native, alternate, ocr))
}

func TestExtract_FirstStageWins(t *testing.T) {
	native := &fakeStage{engine: models.EngineNative, text: "02/09/2025 SALARY 45000", pages: 2}
	alternate := &fakeStage{engine: models.EngineAlternate, text: "other"}
	ocr := &fakeStage{engine: models.EngineOCR, text: "other"}

	res := cascade(native, alternate, ocr).Extract(context.Background(), []byte("%PDF"), Options{})

	assert.Equal(t, models.EngineNative, res.Engine)
	assert.Equal(t, "02/09/2025 SALARY 45000", res.Text)
	assert.Equal(t, 2, res.PageCount)
	assert.Contains(t, res.Note, "native-text: extracted")
	assert.Equal(t, 0, alternate.calls)
	assert.Equal(t, 0, ocr.calls)
}

func TestExtract_FallsThroughInOrder(t *testing.T) {
	native := &fakeStage{engine: models.EngineNative, text: "  \n ", pages: 3}
	alternate := &fakeStage{engine: models.EngineAlternate, err: errors.New("unsupported filter"), pages: 3}
	ocr := &fakeStage{engine: models.EngineOCR, text: "15 Jan 2024 TESCO 23.45", pages: 3}

	res := cascade(native, alternate, ocr).Extract(context.Background(), nil, Options{})

	require.Equal(t, models.EngineOCR, res.Engine)
	assert.Equal(t, 1, native.calls)
	assert.Equal(t, 1, alternate.calls)
	assert.Equal(t, 1, ocr.calls)

	iNative := strings.Index(res.Note, "native-text: no text")
	iAlt := strings.Index(res.Note, "alternate-text-layer: unsupported filter")
	iOCR := strings.Index(res.Note, "ocr: extracted")
	require.True(t, iNative >= 0 && iAlt >= 0 && iOCR >= 0, "note: %s", res.Note)
	assert.True(t, iNative < iAlt && iAlt < iOCR, "notes out of order: %s", res.Note)
}

func TestExtract_ForceOCRSkipsTextLayers(t *testing.T) {
	native := &fakeStage{engine: models.EngineNative, text: "text layer"}
	alternate := &fakeStage{engine: models.EngineAlternate, text: "text layer"}
	ocr := &fakeStage{engine: models.EngineOCR, text: "scanned", pages: 1}

	res := cascade(native, alternate, ocr).Extract(context.Background(), nil, Options{ForceOCR: true})

	assert.Equal(t, models.EngineOCR, res.Engine)
	assert.Equal(t, "scanned", res.Text)
	assert.Zero(t, native.calls)
	assert.Zero(t, alternate.calls)
}

func TestExtract_NothingFound(t *testing.T) {
	native := &fakeStage{engine: models.EngineNative, pages: 4}
	alternate := &fakeStage{engine: models.EngineAlternate, pages: 4}
	ocr := &fakeStage{engine: models.EngineOCR, err: ErrOCRUnavailable}

	res := cascade(native, alternate, ocr).Extract(context.Background(), nil, Options{})

	assert.Equal(t, models.EngineNone, res.Engine)
	assert.Empty(t, res.Text)
	assert.Equal(t, 0, res.PageCount, "page count comes from the last attempted stage")
	assert.True(t, strings.HasSuffix(res.Note, "no text could be extracted"), res.Note)
	assert.Contains(t, res.Note, "OCR tools not available")
}

func TestExtract_PasswordWipedAfterUse(t *testing.T) {
	native := &fakeStage{engine: models.EngineNative}
	alternate := &fakeStage{engine: models.EngineAlternate, text: "ok"}
	ocr := &fakeStage{engine: models.EngineOCR}

	pw := secret.New("s3cret")
	cascade(native, alternate, ocr).Extract(context.Background(), nil, Options{Password: pw})

	assert.Equal(t, "s3cret", native.password)
	assert.Equal(t, "s3cret", alternate.password)
	assert.False(t, pw.Present(), "password must be wiped when Extract returns")
}

func TestExtract_PasswordWipedOnPanic(t *testing.T) {
	native := &fakeStage{engine: models.EngineNative, panics: true}
	alternate := &fakeStage{engine: models.EngineAlternate, panics: true}
	ocr := &fakeStage{engine: models.EngineOCR, panics: true}

	pw := secret.New("s3cret")
	res := cascade(native, alternate, ocr).Extract(context.Background(), nil, Options{Password: pw})

	assert.Equal(t, models.EngineNone, res.Engine)
	assert.Contains(t, res.Note, "PDF library crashed")
	assert.False(t, pw.Present())
}

func TestExtract_CancelledContext(t *testing.T) {
	native := &fakeStage{engine: models.EngineNative, text: "text"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := cascade(native, &fakeStage{engine: models.EngineAlternate}, &fakeStage{engine: models.EngineOCR}).
		Extract(ctx, nil, Options{})

	assert.Equal(t, models.EngineNone, res.Engine)
	assert.Zero(t, native.calls)
	assert.Contains(t, res.Note, "context canceled")
}

func TestExtract_Observer(t *testing.T) {
	var outcomes []string
	obs := func(engine models.Engine, outcome string, _ time.Duration) {
		outcomes = append(outcomes, string(engine)+"="+outcome)
	}
	e := New(DefaultOCRConfig(), WithStages(
		&fakeStage{engine: models.EngineNative},
		&fakeStage{engine: models.EngineAlternate, err: errors.New("bad")},
		&fakeStage{engine: models.EngineOCR, text: "x"},
	), WithObserver(obs))

	e.Extract(context.Background(), nil, Options{})

	assert.Equal(t, []string{"native-text=empty", "alternate-text-layer=error", "ocr=text"}, outcomes)
}

func TestExtract_GarbageBytes(t *testing.T) {
	ocr := NewOCRStage(DefaultOCRConfig())
	ocr.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	e := New(DefaultOCRConfig(), WithStages(&NativeStage{}, &AlternateStage{}, ocr))

	for _, data := range [][]byte{nil, []byte("not a pdf at all"), []byte("%PDF-1.4\n%%EOF")} {
		res := e.Extract(context.Background(), data, Options{Password: secret.New("pw")})
		assert.Equal(t, models.EngineNone, res.Engine)
		assert.Empty(t, res.Text)
		assert.Contains(t, res.Note, "no text could be extracted")
	}
}

func TestPasswordFunc_OffersOnce(t *testing.T) {
	assert.Nil(t, passwordFunc(nil))
	assert.Nil(t, passwordFunc(secret.New("")))

	fn := passwordFunc(secret.New("pw"))
	require.NotNil(t, fn)
	assert.Equal(t, "pw", fn())
	assert.Equal(t, "", fn())
	assert.Equal(t, "", fn())
}

func TestTextQuality(t *testing.T) {
	assert.Zero(t, textQuality(""))
	assert.InDelta(t, 1.0, textQuality("15/01/2024 TESCO 25.99"), 0.001)
	assert.Less(t, textQuality("ÿþÏÐÑÒÓ"), 0.6)
}

func TestLayoutRows(t *testing.T) {
	items := []textItem{
		{x: 200, y: 700, s: "45000"},
		{x: 10, y: 700.3, s: "02/09/2025"},
		{x: 80, y: 699.8, s: "SALARY"},
		{x: 10, y: 680, s: "03/09/2025"},
		{x: 80, y: 680, s: " "},
	}
	assert.Equal(t, "02/09/2025  SALARY  45000\n03/09/2025", layoutRows(items))
}

func TestLayoutRows_WordGaps(t *testing.T) {
	// one object per glyph, spaces already dropped
	var items []textItem
	x := 72.0
	for _, r := range "TESCO 23.45" {
		if r != ' ' {
			items = append(items, textItem{x: x, y: 700, w: 6, s: string(r)})
		}
		x += 6
	}
	items = append(items, textItem{x: x + 40, y: 700, w: 30, s: "100.00"})

	assert.Equal(t, "TESCO 23.45  100.00", layoutRows(items))
}

func TestJoinPages(t *testing.T) {
	assert.Equal(t, "a\nb", joinPages([]string{" a ", "", "  ", "b"}))
	assert.Equal(t, "", joinPages(nil))
}
