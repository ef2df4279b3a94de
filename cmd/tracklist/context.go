package main

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tracklist-extractor/internal/common"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm/orchestrator"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm/providers"
	"github.com/joseph-ayodele/tracklist-extractor/internal/logging"
	"github.com/joseph-ayodele/tracklist-extractor/internal/metrics"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	logFileFlag  *string

	configOnce sync.Once
	config     *common.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag, logFileFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		logFileFlag:  logFileFlag,
	}
}

func (c *commandContext) ensureConfig() (*common.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, err := common.LoadConfig(flagValue(c.configFlag))
		c.configPath = path
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// promptPath is normalize.txt next to the loaded config file, or in the
// working directory when defaults were used.
func (c *commandContext) promptPath() string {
	if c.configPath == "" {
		return llm.PromptFileName
	}
	return filepath.Join(filepath.Dir(c.configPath), llm.PromptFileName)
}

// newLogger writes console output to stderr so tables on stdout stay clean.
// defaultJSONL is used when --log-file is not given; empty disables the file.
func (c *commandContext) newLogger(cmd *cobra.Command, defaultJSONL string) (*slog.Logger, io.Closer, error) {
	level := flagValue(c.logLevelFlag)
	if level == "" && c.config != nil {
		level = c.config.Advanced.LogLevel
	}
	jsonl := flagValue(c.logFileFlag)
	if jsonl == "" {
		jsonl = defaultJSONL
	}
	return logging.New(logging.Options{
		Level:     level,
		Console:   cmd.ErrOrStderr(),
		JSONLPath: jsonl,
	})
}

func (c *commandContext) newOrchestrator(logger *slog.Logger, agg *metrics.Aggregator) *orchestrator.Orchestrator {
	opts := []orchestrator.Option{orchestrator.WithLogger(logger)}
	if agg != nil {
		opts = append(opts, orchestrator.WithRecorder(agg))
	}
	reg := providers.BuildRegistry(c.config, logger)
	return orchestrator.New(reg, c.config.Defaults, opts...)
}

func flagValue(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
