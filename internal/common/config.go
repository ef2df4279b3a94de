package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. TRACKLIST_PROCESSING_MAX_WORKERS.
const EnvPrefix = "TRACKLIST"

// Config holds all application configuration
type Config struct {
	Providers  map[string]ProviderConfig `mapstructure:"providers" yaml:"providers" json:"providers" toml:"providers" validate:"required,min=1,dive"`
	Defaults   DefaultsConfig            `mapstructure:"defaults" yaml:"defaults" json:"defaults" toml:"defaults"`
	Processing ProcessingConfig          `mapstructure:"processing" yaml:"processing" json:"processing" toml:"processing"`
	PDF        PDFConfig                 `mapstructure:"pdf" yaml:"pdf" json:"pdf" toml:"pdf"`
	Advanced   AdvancedConfig            `mapstructure:"advanced" yaml:"advanced" json:"advanced" toml:"advanced"`
}

// ModelConfig describes one statically configured model.
type ModelConfig struct {
	ID          string  `mapstructure:"id" yaml:"id" json:"id" toml:"id" validate:"required"`
	Name        string  `mapstructure:"name" yaml:"name" json:"name" toml:"name" validate:"required"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens" json:"max_tokens" toml:"max_tokens" validate:"gte=1,lte=100000"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature" json:"temperature" toml:"temperature" validate:"gte=0,lte=2"`
	CostPer1K   float64 `mapstructure:"cost_per_1k_tokens" yaml:"cost_per_1k_tokens" json:"cost_per_1k_tokens" toml:"cost_per_1k_tokens" validate:"gte=0"`
	Description string  `mapstructure:"description" yaml:"description,omitempty" json:"description,omitempty" toml:"description,omitempty"`
}

// ProviderConfig holds one backend's connection settings.
type ProviderConfig struct {
	Enabled            bool          `mapstructure:"enabled" yaml:"enabled" json:"enabled" toml:"enabled"`
	APIKey             string        `mapstructure:"api_key" yaml:"api_key" json:"api_key" toml:"api_key" validate:"required"`
	BaseURL            string        `mapstructure:"base_url" yaml:"base_url" json:"base_url" toml:"base_url" validate:"required,url"`
	Timeout            int           `mapstructure:"timeout" yaml:"timeout" json:"timeout" toml:"timeout" validate:"gte=1,lte=300"`
	RetryAttempts      int           `mapstructure:"retry_attempts" yaml:"retry_attempts" json:"retry_attempts" toml:"retry_attempts" validate:"gte=1,lte=10"`
	AutoDiscoverModels bool          `mapstructure:"auto_discover_models" yaml:"auto_discover_models" json:"auto_discover_models" toml:"auto_discover_models"`
	Models             []ModelConfig `mapstructure:"models" yaml:"models" json:"models" toml:"models" validate:"dive"`
}

// TimeoutDuration returns the request timeout.
func (p ProviderConfig) TimeoutDuration() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}

// DefaultsConfig selects the default and fallback provider/model.
type DefaultsConfig struct {
	Provider         string `mapstructure:"provider" yaml:"provider" json:"provider" toml:"provider" validate:"required"`
	Model            string `mapstructure:"model" yaml:"model" json:"model" toml:"model" validate:"required"`
	FallbackProvider string `mapstructure:"fallback_provider" yaml:"fallback_provider,omitempty" json:"fallback_provider,omitempty" toml:"fallback_provider,omitempty"`
	FallbackModel    string `mapstructure:"fallback_model" yaml:"fallback_model,omitempty" json:"fallback_model,omitempty" toml:"fallback_model,omitempty"`
}

// ProcessingConfig holds batch settings.
type ProcessingConfig struct {
	InputDirectory  string `mapstructure:"input_directory" yaml:"input_directory" json:"input_directory" toml:"input_directory" validate:"required"`
	OutputDirectory string `mapstructure:"output_directory" yaml:"output_directory" json:"output_directory" toml:"output_directory" validate:"required"`
	MaxWorkers      int    `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers" toml:"max_workers" validate:"gte=1,lte=32"`
	MaxFileSizeMB   int    `mapstructure:"max_file_size_mb" yaml:"max_file_size_mb" json:"max_file_size_mb" toml:"max_file_size_mb" validate:"gte=1,lte=10000"`
	SkipProcessed   bool   `mapstructure:"skip_processed" yaml:"skip_processed" json:"skip_processed" toml:"skip_processed"`
	BatchSize       int    `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size" toml:"batch_size" validate:"gte=1,lte=1000"`
}

// MaxFileSizeBytes converts the MB limit to bytes.
func (p ProcessingConfig) MaxFileSizeBytes() int64 {
	return int64(p.MaxFileSizeMB) * 1024 * 1024
}

// PDFConfig holds document text extraction settings.
type PDFConfig struct {
	MaxPages      int    `mapstructure:"max_pages" yaml:"max_pages" json:"max_pages" toml:"max_pages" validate:"gte=1,lte=1000"`
	MinTextLength int    `mapstructure:"min_text_length" yaml:"min_text_length" json:"min_text_length" toml:"min_text_length" validate:"gte=1,lte=10000"`
	Language      string `mapstructure:"language" yaml:"language" json:"language" toml:"language"`
	ExtractImages bool   `mapstructure:"extract_images" yaml:"extract_images" json:"extract_images" toml:"extract_images"`
}

// AdvancedConfig holds logging and accounting switches.
type AdvancedConfig struct {
	LogLevel           string `mapstructure:"log_level" yaml:"log_level" json:"log_level" toml:"log_level" validate:"oneof=DEBUG INFO WARNING ERROR CRITICAL"`
	SaveExtractedText  bool   `mapstructure:"save_extracted_text" yaml:"save_extracted_text" json:"save_extracted_text" toml:"save_extracted_text"`
	EnableMetrics      bool   `mapstructure:"enable_metrics" yaml:"enable_metrics" json:"enable_metrics" toml:"enable_metrics"`
	EnableCostTracking bool   `mapstructure:"enable_cost_tracking" yaml:"enable_cost_tracking" json:"enable_cost_tracking" toml:"enable_cost_tracking"`
	AutoRetryOnFailure bool   `mapstructure:"auto_retry_on_failure" yaml:"auto_retry_on_failure" json:"auto_retry_on_failure" toml:"auto_retry_on_failure"`
	XLSXReport         bool   `mapstructure:"xlsx_report" yaml:"xlsx_report" json:"xlsx_report" toml:"xlsx_report"`
}

// DefaultConfig is used when no configuration file is found.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderConfig{
			"openrouter": {
				Enabled:       true,
				APIKey:        "${OPENROUTER_API_KEY}",
				BaseURL:       "https://openrouter.ai/api/v1",
				Timeout:       30,
				RetryAttempts: 3,
				Models: []ModelConfig{{
					ID:        "google/gemini-2.5-flash",
					Name:      "Gemini 2.5 Flash",
					MaxTokens: 4096,
					CostPer1K: 0.001,
				}},
			},
			"lm_studio": {
				Enabled:            false,
				APIKey:             "lm-studio",
				BaseURL:            "http://localhost:1234/v1",
				Timeout:            60,
				RetryAttempts:      2,
				AutoDiscoverModels: true,
				Models:             []ModelConfig{},
			},
		},
		Defaults: DefaultsConfig{
			Provider:         "openrouter",
			Model:            "google/gemini-2.5-flash",
			FallbackProvider: "lm_studio",
		},
		Processing: ProcessingConfig{
			InputDirectory:  "./input",
			OutputDirectory: "./output-pdf",
			MaxWorkers:      4,
			MaxFileSizeMB:   1000,
			SkipProcessed:   true,
			BatchSize:       10,
		},
		PDF: PDFConfig{
			MaxPages:      50,
			MinTextLength: 100,
			Language:      "en",
		},
		Advanced: AdvancedConfig{
			LogLevel:           "INFO",
			EnableMetrics:      true,
			EnableCostTracking: true,
			AutoRetryOnFailure: true,
			XLSXReport:         true,
		},
	}
}

var configCandidates = []string{
	"config.yaml", "config.yml", "config.json", "config.toml",
	"app_config.yaml", "app_config.yml", "app_config.json", "app_config.toml",
}

// FindConfigFile looks for a configuration file in dir.
func FindConfigFile(dir string) string {
	for _, name := range configCandidates {
		p := filepath.Join(dir, name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

// LoadConfig reads configuration from path (or a discovered file in the
// working directory), expands ${VAR}/$VAR placeholders, applies TRACKLIST_*
// environment overrides and validates the result. With no file the built-in
// defaults are used. The returned string is the file that was read, if any.
func LoadConfig(path string) (*Config, string, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	setScalarDefaults(v, def)

	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = FindConfigFile(".")
	}

	if resolved == "" {
		raw, err := yaml.Marshal(def)
		if err != nil {
			return nil, "", ConfigError("encode defaults: %v", err)
		}
		v.SetConfigType("yaml")
		if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
			return nil, "", ConfigError("read defaults: %v", err)
		}
	} else {
		v.SetConfigFile(resolved)
		if err := v.ReadInConfig(); err != nil {
			return nil, resolved, ConfigError("read %s: %v", resolved, err)
		}
		setProviderDefaults(v)
	}

	expandEnvironment(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, resolved, ConfigError("decode %s: %v", resolved, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, resolved, err
	}
	return &cfg, resolved, nil
}

func setScalarDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("processing.input_directory", def.Processing.InputDirectory)
	v.SetDefault("processing.output_directory", def.Processing.OutputDirectory)
	v.SetDefault("processing.max_workers", def.Processing.MaxWorkers)
	v.SetDefault("processing.max_file_size_mb", def.Processing.MaxFileSizeMB)
	v.SetDefault("processing.skip_processed", def.Processing.SkipProcessed)
	v.SetDefault("processing.batch_size", def.Processing.BatchSize)
	v.SetDefault("pdf.max_pages", def.PDF.MaxPages)
	v.SetDefault("pdf.min_text_length", def.PDF.MinTextLength)
	v.SetDefault("pdf.language", def.PDF.Language)
	v.SetDefault("pdf.extract_images", def.PDF.ExtractImages)
	v.SetDefault("advanced.log_level", def.Advanced.LogLevel)
	v.SetDefault("advanced.save_extracted_text", def.Advanced.SaveExtractedText)
	v.SetDefault("advanced.enable_metrics", def.Advanced.EnableMetrics)
	v.SetDefault("advanced.enable_cost_tracking", def.Advanced.EnableCostTracking)
	v.SetDefault("advanced.auto_retry_on_failure", def.Advanced.AutoRetryOnFailure)
	v.SetDefault("advanced.xlsx_report", def.Advanced.XLSXReport)
}

// setProviderDefaults seeds per-provider defaults for keys the file omits.
func setProviderDefaults(v *viper.Viper) {
	for name := range v.GetStringMap("providers") {
		prefix := "providers." + name + "."
		v.SetDefault(prefix+"enabled", true)
		v.SetDefault(prefix+"timeout", 30)
		v.SetDefault(prefix+"retry_attempts", 3)
		v.SetDefault(prefix+"auto_discover_models", false)
	}
}

// expandEnvironment resolves ${VAR} and $VAR string values. Unset variables
// keep the placeholder so credential checks can report them.
func expandEnvironment(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		s, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if expanded := ExpandPlaceholder(s); expanded != s {
			v.Set(key, expanded)
		}
	}
}

// ExpandPlaceholder resolves a whole-value ${VAR} or $VAR reference.
func ExpandPlaceholder(s string) string {
	name, ok := placeholderName(s)
	if !ok {
		return s
	}
	if val := os.Getenv(name); val != "" {
		return val
	}
	return s
}

func placeholderName(s string) (string, bool) {
	switch {
	case strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}"):
		return s[2 : len(s)-1], true
	case strings.HasPrefix(s, "$") && len(s) > 1:
		return s[1:], true
	default:
		return "", false
	}
}

func (c *Config) normalize() {
	c.Advanced.LogLevel = strings.ToUpper(strings.TrimSpace(c.Advanced.LogLevel))
	for name, p := range c.Providers {
		p.APIKey = strings.TrimSpace(p.APIKey)
		p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
		for i := range p.Models {
			p.Models[i].ID = strings.TrimSpace(p.Models[i].ID)
			if p.Models[i].MaxTokens == 0 {
				p.Models[i].MaxTokens = 4096
			}
		}
		c.Providers[name] = p
	}
}

var validate = validator.New()

// Validate checks field ranges and cross references between sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (param %q, value %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
			}
			return ConfigError("%s", strings.Join(msgs, "; "))
		}
		return ConfigError("%v", err)
	}

	for name, p := range c.Providers {
		if !strings.HasPrefix(p.BaseURL, "http://") && !strings.HasPrefix(p.BaseURL, "https://") {
			return ConfigError("provider %q: base_url must start with http:// or https://", name)
		}
	}

	def, ok := c.Providers[c.Defaults.Provider]
	if !ok {
		return ConfigError("default provider %q is not defined", c.Defaults.Provider)
	}
	if !hasModel(def.Models, c.Defaults.Model) {
		return ConfigError("default model %q is not defined for provider %q", c.Defaults.Model, c.Defaults.Provider)
	}
	if fp := c.Defaults.FallbackProvider; fp != "" {
		fb, ok := c.Providers[fp]
		if !ok {
			return ConfigError("fallback provider %q is not defined", fp)
		}
		if fm := c.Defaults.FallbackModel; fm != "" && !hasModel(fb.Models, fm) {
			return ConfigError("fallback model %q is not defined for provider %q", fm, fp)
		}
	}
	return nil
}

func hasModel(models []ModelConfig, id string) bool {
	for _, m := range models {
		if m.ID == id {
			return true
		}
	}
	return false
}

// MissingCredentials lists enabled providers whose API key still references
// an unset environment variable, as "provider: VAR".
func (c *Config) MissingCredentials() []string {
	var missing []string
	for name, p := range c.Providers {
		if !p.Enabled {
			continue
		}
		if env, ok := placeholderName(p.APIKey); ok && os.Getenv(env) == "" {
			missing = append(missing, name+": "+env)
		}
	}
	sort.Strings(missing)
	return missing
}

// EnabledProviders returns the sorted names of enabled providers.
func (c *Config) EnabledProviders() []string {
	var names []string
	for name, p := range c.Providers {
		if p.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// SaveConfig writes cfg to path in yaml, json or toml. An empty path becomes
// config.<format>. Returns the written path.
func SaveConfig(cfg *Config, path, format string) (string, error) {
	if cfg == nil {
		return "", ConfigError("no configuration loaded")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "yaml"
	}
	if path == "" {
		path = "config." + format
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case "yaml", "yml":
		data, err = yaml.Marshal(cfg)
	case "json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case "toml":
		data, err = toml.Marshal(cfg)
	default:
		return "", ConfigError("unsupported config format %q", format)
	}
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}
