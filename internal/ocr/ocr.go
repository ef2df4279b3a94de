package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/tracklist-extractor/constants"
	"github.com/joseph-ayodele/tracklist-extractor/internal/common"
)

const (
	MethodPDFText = "pdf-text"
	MethodPDFOCR  = "pdf-ocr"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Language    string // BCP 47 tag from pdf.language, mapped for tesseract
	TessdataDir string
	DPI         int // rasterization DPI for scanned PDFs, default 300
	MaxPages    int // 0 = no limit

	// OCR runs only when ExtractImages is set and the text layer is shorter
	// than MinTextLength runes.
	ExtractImages bool
	MinTextLength int

	PSM int // e.g., 6 is good for uniform block of text
}

// ConfigFromPDF maps the pdf section of the application config.
func ConfigFromPDF(p common.PDFConfig) Config {
	return Config{
		Language:      p.Language,
		MaxPages:      p.MaxPages,
		ExtractImages: p.ExtractImages,
		MinTextLength: p.MinTextLength,
	}
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // always constants.SourceType
	Method     string // "pdf-text" | "pdf-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner replaces the exec-backed runner.
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	e := &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ExtractBytes extracts the text of an in-memory PDF, reading at most
// maxPages pages (0 falls back to the configured limit). Archive entries
// never touch disk except for the temp file the external tools need.
func (e *Extractor) ExtractBytes(ctx context.Context, data []byte, maxPages int) (ExtractionResult, error) {
	if len(data) == 0 {
		return ExtractionResult{SourceType: constants.SourceType}, fmt.Errorf("empty document")
	}
	tmp, err := os.CreateTemp("", "tracklist-*."+constants.ExtPDF)
	if err != nil {
		return ExtractionResult{SourceType: constants.SourceType}, err
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil {
			e.logger.Warn("ocr.tmp.remove_failed", "path", tmp.Name(), "error", err)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return ExtractionResult{SourceType: constants.SourceType}, err
	}
	if err := tmp.Close(); err != nil {
		return ExtractionResult{SourceType: constants.SourceType}, err
	}
	return e.ExtractFile(ctx, tmp.Name(), maxPages)
}

// ExtractFile extracts the text layer of the PDF at path and, when enabled,
// falls back to OCR for scans whose text layer is too short.
func (e *Extractor) ExtractFile(ctx context.Context, path string, maxPages int) (ExtractionResult, error) {
	start := time.Now()
	if maxPages <= 0 {
		maxPages = e.cfg.MaxPages
	}
	e.logger.Debug("ocr.extract.start", "path", path, "max_pages", maxPages)

	res := ExtractionResult{SourceType: constants.SourceType, Method: MethodPDFText}
	text, pages, warns, err := e.pdfToText(ctx, path, maxPages)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		res.Duration = time.Since(start)
		return res, fmt.Errorf("pdftotext: %w", err)
	}
	res.Text = Normalize(text)
	res.Pages = pages

	if e.cfg.ExtractImages && utf8.RuneCountInString(res.Text) < e.cfg.MinTextLength {
		lang := TesseractLanguage(e.cfg.Language)
		e.logger.Info("ocr.extract.fallback", "path", path, "text_len", utf8.RuneCountInString(res.Text), "lang", lang)
		ocrText, ocrPages, w, err := e.pdfToOCR(ctx, path, maxPages, lang)
		res.Warnings = append(res.Warnings, w...)
		switch {
		case err != nil:
			res.Warnings = append(res.Warnings, "ocr fallback failed: "+err.Error())
		case len(strings.TrimSpace(ocrText)) > len(res.Text):
			res.Text = Normalize(ocrText)
			res.Pages = ocrPages
			res.Method = MethodPDFOCR
			res.Language = lang
		}
	}

	res.Duration = time.Since(start)
	e.logger.Debug("ocr.extract.ok", "path", path, "method", res.Method, "pages", res.Pages,
		"text_len", len(res.Text), "elapsed_ms", res.Duration.Milliseconds())
	return res, nil
}
