package pipeline

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joseph-ayodele/tracklist-extractor/constants"
	"github.com/joseph-ayodele/tracklist-extractor/internal/export"
	"github.com/joseph-ayodele/tracklist-extractor/internal/ingest"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm"
	"github.com/joseph-ayodele/tracklist-extractor/internal/logging"
	"github.com/joseph-ayodele/tracklist-extractor/internal/metrics"
)

const (
	ReportFileName     = "processing_metrics.json"
	XLSXReportFileName = "processing_metrics.xlsx"
)

// UnitResult is the report entry of one source document.
type UnitResult struct {
	SourceID       string                `json:"source_id"`
	SourcePath     string                `json:"source_path"`
	Status         constants.UnitStatus  `json:"status"`
	OutputPath     string                `json:"path,omitempty"`
	ElapsedSeconds float64               `json:"processing_time"`
	Tracks         int                   `json:"tracks_count"`
	RequestMetrics *llm.CompletionResult `json:"request_metrics,omitempty"`
	Error          string                `json:"error,omitempty"`
}

type ConfigSummary struct {
	DefaultProvider   string   `json:"default_provider"`
	DefaultModel      string   `json:"default_model"`
	EnabledProviders  []string `json:"enabled_providers"`
	RequestedModel    string   `json:"requested_model,omitempty"`
	RequestedProvider string   `json:"requested_provider,omitempty"`
}

// Report is written to processing_metrics.json at the end of every run.
type Report struct {
	RunID         string                   `json:"run_id"`
	Timestamp     string                   `json:"timestamp"`
	ConfigSummary ConfigSummary            `json:"config_summary"`
	Processing    metrics.ProcessingStats  `json:"processing_metrics"`
	Completions   *metrics.CompletionStats `json:"model_manager_metrics,omitempty"`
	Sources       ingest.Stats             `json:"source_stats"`
	Cancelled     bool                     `json:"cancelled"`
	Results       []UnitResult             `json:"results"`

	Path     string `json:"-"`
	XLSXPath string `json:"-"`
}

func (p *Pipeline) buildReport(runID string, now time.Time, sources ingest.Stats, cancelled bool) Report {
	snap := p.metrics.Snapshot()

	p.resultsMu.Lock()
	results := append([]UnitResult(nil), p.results...)
	p.resultsMu.Unlock()
	sort.Slice(results, func(i, j int) bool { return results[i].SourceID < results[j].SourceID })

	r := Report{
		RunID:     runID,
		Timestamp: now.Format(logging.TimestampLayout),
		ConfigSummary: ConfigSummary{
			DefaultProvider:   p.cfg.Defaults.Provider,
			DefaultModel:      p.cfg.Defaults.Model,
			EnabledProviders:  append([]string{}, p.cfg.EnabledProviders...),
			RequestedModel:    p.cfg.Model,
			RequestedProvider: p.cfg.Provider,
		},
		Processing: snap.Processing,
		Sources:    sources,
		Cancelled:  cancelled,
		Results:    results,
	}
	if p.cfg.EnableMetrics {
		comp := snap.Completions
		r.Completions = &comp
	} else {
		r.Processing.ModelUsage = nil
		r.Processing.ProviderUsage = nil
	}
	return r
}

// writeReports writes the JSON report and, when enabled, its XLSX mirror.
func (p *Pipeline) writeReports(r *Report, logger *slog.Logger) error {
	data, err := encodeJSON(r)
	if err != nil {
		return err
	}
	path := filepath.Join(p.cfg.OutputDir, ReportFileName)
	if err := writeFileAtomic(path, data); err != nil {
		logger.Error("pipeline.report.write_failed", "path", path, "error", err)
		return err
	}
	r.Path = path
	logger.Info("pipeline.report.saved", "path", path)

	if !p.cfg.XLSXReport {
		return nil
	}
	xlsx := filepath.Join(p.cfg.OutputDir, XLSXReportFileName)
	if err := export.WriteFile(xlsx, workbook(*r)); err != nil {
		logger.Error("pipeline.report.xlsx_failed", "path", xlsx, "error", err)
		return err
	}
	r.XLSXPath = xlsx
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func workbook(r Report) export.RunWorkbook {
	ps := r.Processing
	wb := export.RunWorkbook{
		Summary: []export.SummaryRow{
			{Key: "run_id", Value: r.RunID},
			{Key: "timestamp", Value: r.Timestamp},
			{Key: "default_provider", Value: r.ConfigSummary.DefaultProvider},
			{Key: "default_model", Value: r.ConfigSummary.DefaultModel},
			{Key: "total_files", Value: ps.TotalFiles},
			{Key: "processed_files", Value: ps.ProcessedFiles},
			{Key: "failed_files", Value: ps.FailedFiles},
			{Key: "skipped_files", Value: ps.SkippedFiles},
			{Key: "cancelled_files", Value: ps.CancelledFiles},
			{Key: "total_processing_time", Value: ps.TotalProcessingTime},
			{Key: "average_time_per_file", Value: ps.AverageTimePerFile()},
			{Key: "wall_time_seconds", Value: ps.WallTime().Seconds()},
			{Key: "total_tokens_used", Value: ps.TotalTokensUsed},
			{Key: "total_response_tokens", Value: ps.TotalResponseTokens},
			{Key: "successful_parses", Value: ps.SuccessfulParses},
			{Key: "failed_parses", Value: ps.FailedParses},
		},
	}
	if c := r.Completions; c != nil {
		wb.Summary = append(wb.Summary,
			export.SummaryRow{Key: "ai_requests", Value: c.TotalRequests},
			export.SummaryRow{Key: "ai_failed_requests", Value: c.FailedRequests},
			export.SummaryRow{Key: "ai_total_cost", Value: c.TotalCost},
		)
	}

	for _, u := range r.Results {
		row := export.ResultRow{
			SourceID:       u.SourceID,
			SourcePath:     u.SourcePath,
			Status:         string(u.Status),
			OutputPath:     u.OutputPath,
			ElapsedSeconds: u.ElapsedSeconds,
			Tracks:         u.Tracks,
			Error:          u.Error,
		}
		if m := u.RequestMetrics; m != nil {
			row.Model, row.Provider = m.ModelUsed, m.ProviderUsed
			row.Tokens, row.Cost = m.TotalTokens, m.CostEstimate
		}
		wb.Results = append(wb.Results, row)
	}

	for _, name := range sortedKeys(ps.ModelUsage) {
		u := ps.ModelUsage[name]
		wb.Usage = append(wb.Usage, export.UsageRow{Scope: "model", Name: name, Count: u.Count, Tokens: u.Tokens, Cost: u.Cost})
	}
	for _, name := range sortedKeys(ps.ProviderUsage) {
		u := ps.ProviderUsage[name]
		wb.Usage = append(wb.Usage, export.UsageRow{Scope: "provider", Name: name, Count: u.Count, Tokens: u.Tokens, Cost: u.Cost})
	}
	return wb
}

func logSummary(logger *slog.Logger, r Report) {
	ps := r.Processing
	logger.Info("pipeline.summary",
		"processed", ps.ProcessedFiles,
		"total", ps.TotalFiles,
		"failed", ps.FailedFiles,
		"skipped", ps.SkippedFiles,
		"cancelled", ps.CancelledFiles,
		"wall_time_s", ps.WallTime().Seconds(),
		"avg_time_per_file_s", ps.AverageTimePerFile(),
		"tokens", ps.TotalTokensUsed,
		"response_tokens", ps.TotalResponseTokens,
		"successful_parses", ps.SuccessfulParses,
		"failed_parses", ps.FailedParses)
	for _, name := range sortedKeys(ps.ModelUsage) {
		u := ps.ModelUsage[name]
		logger.Info("pipeline.summary.model", "model", name, "count", u.Count, "tokens", u.Tokens, "cost", u.Cost)
	}
	for _, name := range sortedKeys(ps.ProviderUsage) {
		u := ps.ProviderUsage[name]
		logger.Info("pipeline.summary.provider", "provider", name, "count", u.Count, "tokens", u.Tokens, "cost", u.Cost)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
