package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tracklist-extractor/internal/common"
	"github.com/joseph-ayodele/tracklist-extractor/internal/ingest"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm"
	"github.com/joseph-ayodele/tracklist-extractor/internal/metrics"
	"github.com/joseph-ayodele/tracklist-extractor/internal/ocr"
	"github.com/joseph-ayodele/tracklist-extractor/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var modelFlag string
	var providerFlag string
	var watch bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract tracklists from every PDF and ZIP under the input directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if missing := cfg.MissingCredentials(); len(missing) > 0 {
				return common.ConfigError("missing API keys: %s", strings.Join(missing, ", "))
			}

			logger, closer, err := ctx.newLogger(cmd, pipeline.GeneralLogPath(cfg.Processing.OutputDirectory))
			if err != nil {
				return err
			}
			defer closer.Close()

			prompt, err := llm.LoadPrompt(ctx.promptPath())
			if err != nil {
				return err
			}

			agg := metrics.NewAggregator()
			orch := ctx.newOrchestrator(logger, agg)
			extractor := ocr.NewExtractor(ocr.ConfigFromPDF(cfg.PDF), logger)
			p := pipeline.New(
				pipeline.ConfigFrom(cfg, strings.TrimSpace(modelFlag), strings.TrimSpace(providerFlag)),
				extractor,
				orch,
				pipeline.WithLogger(logger),
				pipeline.WithPrompt(prompt),
				pipeline.WithMetrics(agg),
			)

			out := cmd.OutOrStdout()
			report, err := p.Run(cmd.Context())
			if err != nil && report.RunID == "" {
				return err
			}
			printRunSummary(out, report)
			if err != nil {
				return err
			}
			if !watch || report.Cancelled {
				return nil
			}
			return watchAndRun(cmd.Context(), p, cfg.Processing.InputDirectory, logger, out)
		},
	}

	cmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Model id to use (defaults to the configured model)")
	cmd.Flags().StringVarP(&providerFlag, "provider", "p", "", "Provider to use (defaults to the configured provider)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and process new files as they appear")
	return cmd
}

// watchAndRun reruns the pipeline whenever PDFs or archives appear under
// root. Already processed documents are skipped by the output index.
func watchAndRun(ctx context.Context, p *pipeline.Pipeline, root string, logger *slog.Logger, out io.Writer) error {
	batches, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{Roots: []string{root}, Logger: logger})
	if err != nil {
		return err
	}
	logger.Info("watch.started", "root", root)

	for {
		select {
		case <-ctx.Done():
			logger.Info("watch.stopped")
			return nil
		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			logger.Info("watch.batch", "files", len(batch))
			report, err := p.Run(ctx)
			switch {
			case errors.Is(err, pipeline.ErrRunInProgress):
				logger.Warn("watch.run_skipped", "error", err)
				continue
			case err != nil && report.RunID == "":
				return err
			}
			printRunSummary(out, report)
			if err != nil {
				logger.Error("watch.run_failed", "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch.error", "error", err)
		}
	}
}

func printRunSummary(out io.Writer, r pipeline.Report) {
	p := r.Processing
	rows := [][]string{
		{"Documents", strconv.Itoa(p.TotalFiles)},
		{"Processed", strconv.Itoa(p.ProcessedFiles)},
		{"Failed", strconv.Itoa(p.FailedFiles)},
		{"Skipped", strconv.Itoa(p.SkippedFiles)},
		{"Cancelled", strconv.Itoa(p.CancelledFiles)},
		{"Tokens", strconv.Itoa(p.TotalTokensUsed)},
		{"Avg time/file", fmt.Sprintf("%.2fs", p.AverageTimePerFile())},
		{"Wall time", p.WallTime().Round(time.Millisecond).String()},
	}
	if r.Completions != nil {
		rows = append(rows,
			[]string{"AI requests", fmt.Sprintf("%d (%d failed)", r.Completions.TotalRequests, r.Completions.FailedRequests)},
			[]string{"Cost", formatCost(r.Completions.TotalCost)},
		)
	}
	if r.Path != "" {
		rows = append(rows, []string{"Report", r.Path})
	}
	if r.XLSXPath != "" {
		rows = append(rows, []string{"Workbook", r.XLSXPath})
	}
	fmt.Fprintln(out, renderTable([]string{"Run " + shortID(r.RunID), "Value"}, rows, []columnAlignment{alignLeft, alignRight}))

	if len(p.ModelUsage) == 0 {
		return
	}
	names := make([]string, 0, len(p.ModelUsage))
	for name := range p.ModelUsage {
		names = append(names, name)
	}
	sort.Strings(names)
	usage := make([][]string, 0, len(names))
	for _, name := range names {
		u := p.ModelUsage[name]
		usage = append(usage, []string{name, strconv.Itoa(u.Count), strconv.Itoa(u.Tokens), formatCost(u.Cost)})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Model", "Files", "Tokens", "Cost"},
		usage,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	))
}

func formatCost(c float64) string {
	return fmt.Sprintf("$%.4f", c)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
