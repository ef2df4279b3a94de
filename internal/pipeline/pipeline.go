// Package pipeline runs one batch extraction: it collects source documents,
// fans them out to a bounded worker pool, turns each into a tracklist record
// and writes the run report.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/tracklist-extractor/constants"
	"github.com/joseph-ayodele/tracklist-extractor/internal/async"
	"github.com/joseph-ayodele/tracklist-extractor/internal/common"
	"github.com/joseph-ayodele/tracklist-extractor/internal/ingest"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm/orchestrator"
	"github.com/joseph-ayodele/tracklist-extractor/internal/metrics"
	"github.com/joseph-ayodele/tracklist-extractor/internal/ocr"
	"github.com/joseph-ayodele/tracklist-extractor/internal/tracklist"
)

const lockFileName = ".tracklist.lock"

// ErrRunInProgress is returned when another run holds the output directory.
var ErrRunInProgress = errors.New("a run is already in progress")

// TextExtractor turns PDF bytes into text.
type TextExtractor interface {
	ExtractBytes(ctx context.Context, data []byte, maxPages int) (ocr.ExtractionResult, error)
}

// Completer runs one AI completion; *orchestrator.Orchestrator satisfies it.
type Completer interface {
	CreateCompletion(ctx context.Context, messages []llm.Message, modelID, providerName string, opts ...orchestrator.RequestOption) llm.CompletionResult
}

// Config holds the settings of one run.
type Config struct {
	InputDir          string
	OutputDir         string
	MaxWorkers        int
	QueueSize         int
	MaxFileSize       int64 // bytes; 0 disables the check
	SkipProcessed     bool
	MaxPages          int
	MinTextLength     int
	SaveExtractedText bool
	EnableMetrics     bool
	XLSXReport        bool

	// Model and Provider override the configured defaults when set.
	Model    string
	Provider string

	Defaults         common.DefaultsConfig
	EnabledProviders []string
}

// ConfigFrom maps the application config plus command-line overrides.
func ConfigFrom(cfg *common.Config, model, provider string) Config {
	return Config{
		InputDir:          cfg.Processing.InputDirectory,
		OutputDir:         cfg.Processing.OutputDirectory,
		MaxWorkers:        cfg.Processing.MaxWorkers,
		QueueSize:         cfg.Processing.BatchSize,
		MaxFileSize:       cfg.Processing.MaxFileSizeBytes(),
		SkipProcessed:     cfg.Processing.SkipProcessed,
		MaxPages:          cfg.PDF.MaxPages,
		MinTextLength:     cfg.PDF.MinTextLength,
		SaveExtractedText: cfg.Advanced.SaveExtractedText,
		EnableMetrics:     cfg.Advanced.EnableMetrics,
		XLSXReport:        cfg.Advanced.XLSXReport,
		Model:             model,
		Provider:          provider,
		Defaults:          cfg.Defaults,
		EnabledProviders:  cfg.EnabledProviders(),
	}
}

type Pipeline struct {
	cfg       Config
	extractor TextExtractor
	completer Completer
	builder   *tracklist.Builder
	metrics   *metrics.Aggregator
	prompt    string
	logger    *slog.Logger
	now       func() time.Time

	state stateMachine
	runMu sync.Mutex

	// per run
	failures  *FailureLog
	resultsMu sync.Mutex
	results   []UnitResult
	total     atomic.Int64
	completed atomic.Int64
}

type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithPrompt replaces the built-in system prompt.
func WithPrompt(prompt string) Option {
	return func(p *Pipeline) {
		if strings.TrimSpace(prompt) != "" {
			p.prompt = prompt
		}
	}
}

// WithMetrics shares an aggregator, typically the orchestrator's recorder.
func WithMetrics(a *metrics.Aggregator) Option {
	return func(p *Pipeline) {
		if a != nil {
			p.metrics = a
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

func New(cfg Config, extractor TextExtractor, completer Completer, opts ...Option) *Pipeline {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	p := &Pipeline{
		cfg:       cfg,
		extractor: extractor,
		completer: completer,
		metrics:   metrics.NewAggregator(),
		prompt:    llm.DefaultPrompt,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	p.builder = tracklist.NewBuilder(p.logger)
	return p
}

// State reports the current run phase.
func (p *Pipeline) State() State { return p.state.Load() }

// Metrics exposes the aggregator the pipeline reports into.
func (p *Pipeline) Metrics() *metrics.Aggregator { return p.metrics }

// Run processes every document under the input directory once. Per-document
// failures are logged and never abort the run; only setup problems (missing
// input directory, unwritable output directory, concurrent run) return an
// error. Cancelling ctx stops dispatch and marks queued units cancelled; the
// report is still written.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	if !p.runMu.TryLock() {
		return Report{}, ErrRunInProgress
	}
	defer p.runMu.Unlock()

	if err := p.state.transition(StateCollecting); err != nil {
		return Report{}, err
	}
	runID := uuid.NewString()
	ctx = common.WithRunID(ctx, runID)
	logger := p.logger.With("run_id", runID)

	unlock, index, err := p.setup(logger)
	if err != nil {
		logger.Error("pipeline.setup.failed", "error", err)
		_ = p.state.transition(StateDone)
		return Report{}, err
	}
	defer unlock()

	start := p.now()
	p.metrics.Reset(start)
	logger.Info("pipeline.run.start",
		"input", p.cfg.InputDir,
		"output", p.cfg.OutputDir,
		"workers", p.cfg.MaxWorkers,
		"model", orDefault(p.cfg.Model, p.cfg.Defaults.Model),
		"provider", orDefault(p.cfg.Provider, p.cfg.Defaults.Provider),
		"already_processed", index.Files())

	if err := p.state.transition(StateDispatching); err != nil {
		return Report{}, err
	}
	collector := ingest.NewCollector(logger)
	pool := async.NewPool(logger, async.WithWorkers(p.cfg.MaxWorkers), async.WithQueueSize(p.cfg.QueueSize))
	for doc := range collector.Collect(ctx, p.cfg.InputDir, p.cfg.MaxFileSize) {
		p.total.Add(1)
		p.metrics.AddTotal(1)
		if p.cfg.SkipProcessed && index.Contains(doc.ID) {
			logger.Info("pipeline.unit.already_processed", "source_id", doc.ID)
			p.finishUnit(UnitResult{SourceID: doc.ID, SourcePath: doc.AbsPath, Status: constants.UnitStatusSkipped, Error: "already processed"}, nil, 0, logger)
			continue
		}
		err := pool.Submit(ctx, func(int) { p.processUnit(ctx, doc, logger) })
		if err != nil {
			p.finishUnit(UnitResult{SourceID: doc.ID, SourcePath: doc.AbsPath, Status: constants.UnitStatusCancelled, Error: err.Error()}, nil, 0, logger)
		}
	}
	if p.total.Load() == 0 {
		logger.Warn("pipeline.run.no_documents", "input", p.cfg.InputDir)
	}

	if err := p.state.transition(StateDraining); err != nil {
		return Report{}, err
	}
	_ = pool.Shutdown(context.Background())

	if err := p.state.transition(StateReporting); err != nil {
		return Report{}, err
	}
	end := p.now()
	p.metrics.Finish(end)
	report := p.buildReport(runID, end, collector.Stats(), ctx.Err() != nil)
	err = p.writeReports(&report, logger)
	logSummary(logger, report)

	if terr := p.state.transition(StateDone); terr != nil {
		return report, terr
	}
	return report, err
}

// setup validates the directories, takes the output lock and loads the
// processed index. The returned func releases the lock.
func (p *Pipeline) setup(logger *slog.Logger) (func(), *ProcessedIndex, error) {
	st, err := os.Stat(p.cfg.InputDir)
	if err != nil || !st.IsDir() {
		return nil, nil, common.ConfigError("input directory %q does not exist", p.cfg.InputDir)
	}
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return nil, nil, common.ConfigError("create output directory: %v", err)
	}

	lock := flock.New(filepath.Join(p.cfg.OutputDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, nil, fmt.Errorf("lock output directory: %w", err)
	}
	if !locked {
		return nil, nil, fmt.Errorf("%w: %s is locked", ErrRunInProgress, p.cfg.OutputDir)
	}
	unlock := func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("pipeline.lock.release_failed", "error", err)
		}
	}

	var index *ProcessedIndex
	if p.cfg.SkipProcessed {
		index, err = LoadProcessedIndex(p.cfg.OutputDir)
		if err != nil {
			unlock()
			return nil, nil, fmt.Errorf("scan output directory: %w", err)
		}
	}

	p.failures = NewFailureLog(p.cfg.OutputDir)
	p.resultsMu.Lock()
	p.results = nil
	p.resultsMu.Unlock()
	p.total.Store(0)
	p.completed.Store(0)
	return unlock, index, nil
}

// skipError marks a unit that was deliberately not processed.
type skipError struct{ reason string }

func (e skipError) Error() string { return e.reason }

func (p *Pipeline) processUnit(ctx context.Context, doc ingest.SourceDocument, logger *slog.Logger) {
	start := p.now()
	ctx = common.WithSourceID(ctx, doc.ID)
	log := logger.With("source_id", doc.ID)

	res := UnitResult{SourceID: doc.ID, SourcePath: doc.AbsPath}
	comp, err := p.guardedProcess(ctx, doc, &res, log)
	elapsed := p.now().Sub(start)
	res.ElapsedSeconds = elapsed.Seconds()

	var skip skipError
	switch {
	case err == nil:
		res.Status = constants.UnitStatusSuccess
		log.Info("pipeline.unit.ok", "output", res.OutputPath, "tracks", res.Tracks, "elapsed_ms", elapsed.Milliseconds())
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		res.Status = constants.UnitStatusCancelled
		res.Error = err.Error()
		log.Info("pipeline.unit.cancelled")
	case errors.As(err, &skip):
		res.Status = constants.UnitStatusSkipped
		res.Error = skip.reason
	default:
		res.Status = constants.UnitStatusFailed
		res.Error = err.Error()
		log.Error("pipeline.unit.failed", "error", err, "elapsed_ms", elapsed.Milliseconds())
		if ferr := p.failures.Append(doc.ID, doc.AbsPath, err, p.now()); ferr != nil {
			log.Error("pipeline.failure_log.write_failed", "error", ferr)
		}
	}
	p.finishUnit(res, comp, elapsed, logger)
}

// guardedProcess turns a panic in one unit into an ordinary failure so the
// document still reaches the results and the failure log.
func (p *Pipeline) guardedProcess(ctx context.Context, doc ingest.SourceDocument, res *UnitResult, log *slog.Logger) (comp *llm.CompletionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline.unit.panic", "panic", r)
			comp, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return p.process(ctx, doc, res, log)
}

func (p *Pipeline) process(ctx context.Context, doc ingest.SourceDocument, res *UnitResult, log *slog.Logger) (*llm.CompletionResult, error) {
	if doc.Err != nil {
		return nil, doc.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	extracted, err := p.extractor.ExtractBytes(ctx, doc.Data, p.cfg.MaxPages)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return nil, common.SourceReadError(doc.ID, err)
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(extracted.Text)); n < p.cfg.MinTextLength {
		log.Warn("pipeline.unit.text_too_short", "chars", n, "min", p.cfg.MinTextLength)
		return nil, skipError{reason: fmt.Sprintf("not enough extracted text (%d chars)", n)}
	}
	log.Debug("pipeline.unit.extracted", "method", extracted.Method, "pages", extracted.Pages,
		"chars", len(extracted.Text), "warnings", len(extracted.Warnings))

	if p.cfg.SaveExtractedText {
		dump := filepath.Join(p.cfg.OutputDir, TextDumpName(doc.ID))
		if err := os.WriteFile(dump, []byte(extracted.Text), 0o644); err != nil {
			log.Warn("pipeline.unit.text_dump_failed", "path", dump, "error", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	comp := p.completer.CreateCompletion(ctx, llm.BuildTracklistMessages(p.prompt, extracted.Text), p.cfg.Model, p.cfg.Provider)
	res.RequestMetrics = &comp
	if !comp.Success {
		if cerr := ctx.Err(); cerr != nil {
			return &comp, cerr
		}
		return &comp, common.CompletionError(comp.ErrorMessage)
	}

	answer, repaired, err := tracklist.DecodeAnswer(comp.Content)
	if err != nil {
		p.metrics.RecordParse(false)
		log.Warn("pipeline.unit.answer_invalid", "error", err, "snippet", llm.SummarizeSnippet(comp.Content))
		return &comp, err
	}
	if len(repaired) > 0 {
		log.Info("pipeline.unit.answer_repaired", "fields", repaired)
	}
	record, err := p.builder.Transform(answer, doc.AbsPath)
	if err != nil {
		p.metrics.RecordParse(false)
		return &comp, err
	}
	p.metrics.RecordParse(true)

	data, err := encodeJSON(record)
	if err != nil {
		return &comp, err
	}
	out, err := writeUnique(p.cfg.OutputDir, OutputName(doc.ID), data)
	if err != nil {
		return &comp, fmt.Errorf("write output: %w", err)
	}
	res.OutputPath = out
	res.Tracks = len(record.Tracks)
	return &comp, nil
}

func (p *Pipeline) finishUnit(res UnitResult, comp *llm.CompletionResult, elapsed time.Duration, logger *slog.Logger) {
	p.metrics.RecordDocument(metrics.DocumentOutcome{Status: res.Status, Elapsed: elapsed, Completion: comp})

	p.resultsMu.Lock()
	p.results = append(p.results, res)
	p.resultsMu.Unlock()

	done := p.completed.Add(1)
	total := p.total.Load()
	pct := 0.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	logger.Info("pipeline.progress", "completed", done, "total", total, "percent", fmt.Sprintf("%.1f", pct))
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
