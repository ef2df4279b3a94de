package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tracklist-extractor/internal/common"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm/orchestrator"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models from every registered provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closer, err := ctx.newLogger(cmd, "")
			if err != nil {
				return err
			}
			defer closer.Close()

			models := ctx.newOrchestrator(logger, nil).AvailableModels(cmd.Context(), all)
			out := cmd.OutOrStdout()
			if len(models) == 0 {
				fmt.Fprintln(out, "No models available")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Provider", "Model", "Name", "Max tokens", "Cost/1K", "Available"},
				modelRows(models),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include models of unavailable providers")
	return cmd
}

func modelRows(models []llm.ModelDescriptor) [][]string {
	sorted := append([]llm.ModelDescriptor(nil), models...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Provider != sorted[j].Provider {
			return sorted[i].Provider < sorted[j].Provider
		}
		return sorted[i].ID < sorted[j].ID
	})
	rows := make([][]string, 0, len(sorted))
	for _, m := range sorted {
		rows = append(rows, []string{
			m.Provider,
			m.ID,
			m.Name,
			strconv.Itoa(m.MaxTokens),
			fmt.Sprintf("%.4f", m.CostPer1K),
			yesNo(m.Available),
		})
	}
	return rows
}

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Provider", "Enabled", "Base URL", "Models", "Discovery", "Retries", "Timeout"},
				providerRows(cfg),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}

func providerRows(cfg *common.Config) [][]string {
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		p := cfg.Providers[name]
		label := name
		if name == cfg.Defaults.Provider {
			label += " (default)"
		} else if name == cfg.Defaults.FallbackProvider {
			label += " (fallback)"
		}
		rows = append(rows, []string{
			label,
			yesNo(p.Enabled),
			p.BaseURL,
			strconv.Itoa(len(p.Models)),
			yesNo(p.AutoDiscoverModels),
			strconv.Itoa(p.RetryAttempts),
			p.TimeoutDuration().String(),
		})
	}
	return rows
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe every enabled provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closer, err := ctx.newLogger(cmd, "")
			if err != nil {
				return err
			}
			defer closer.Close()

			status := ctx.newOrchestrator(logger, nil).ProviderStatus(cmd.Context())
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}
			if len(status) == 0 {
				fmt.Fprintln(out, "No providers enabled")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Provider", "Available", "Models", "First models", "Error"},
				statusRows(status),
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	return cmd
}

func statusRows(status map[string]orchestrator.ProviderStatus) [][]string {
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		st := status[name]
		ids := make([]string, 0, len(st.Models))
		for _, m := range st.Models {
			ids = append(ids, m.ID)
		}
		rows = append(rows, []string{
			name,
			yesNo(st.Available),
			strconv.Itoa(st.ModelsCount),
			strings.Join(ids, ", "),
			st.Error,
		})
	}
	return rows
}
