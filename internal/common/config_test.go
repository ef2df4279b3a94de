package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
providers:
  openrouter:
    api_key: ${TRACKLIST_TEST_KEY}
    base_url: https://openrouter.ai/api/v1/
    models:
      - id: " google/gemini-2.5-flash "
        name: Gemini
        cost_per_1k_tokens: 0.001
defaults:
  provider: openrouter
  model: google/gemini-2.5-flash
advanced:
  log_level: debug
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigAppliesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("TRACKLIST_TEST_KEY", "sk-test")
	path := writeConfig(t, "config.yaml", minimalYAML)

	cfg, used, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)

	p := cfg.Providers["openrouter"]
	assert.True(t, p.Enabled)
	assert.Equal(t, "sk-test", p.APIKey)
	assert.Equal(t, "https://openrouter.ai/api/v1", p.BaseURL)
	assert.Equal(t, 30, p.Timeout)
	assert.Equal(t, 3, p.RetryAttempts)
	require.Len(t, p.Models, 1)
	assert.Equal(t, "google/gemini-2.5-flash", p.Models[0].ID)
	assert.Equal(t, 4096, p.Models[0].MaxTokens)

	assert.Equal(t, "DEBUG", cfg.Advanced.LogLevel)
	assert.Equal(t, 4, cfg.Processing.MaxWorkers)
	assert.Equal(t, "./input", cfg.Processing.InputDirectory)
	assert.Equal(t, 50, cfg.PDF.MaxPages)
	assert.Equal(t, int64(1000*1024*1024), cfg.Processing.MaxFileSizeBytes())
	assert.Empty(t, cfg.MissingCredentials())
	assert.Equal(t, []string{"openrouter"}, cfg.EnabledProviders())
}

func TestLoadConfigEnvironmentOverride(t *testing.T) {
	t.Setenv("TRACKLIST_TEST_KEY", "sk-test")
	t.Setenv("TRACKLIST_PROCESSING_MAX_WORKERS", "8")
	path := writeConfig(t, "config.yaml", minimalYAML)

	cfg, _, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Processing.MaxWorkers)
}

func TestLoadConfigReportsMissingCredentials(t *testing.T) {
	t.Setenv("TRACKLIST_TEST_KEY", "")
	path := writeConfig(t, "config.yaml", minimalYAML)

	cfg, _, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "${TRACKLIST_TEST_KEY}", cfg.Providers["openrouter"].APIKey)
	assert.Equal(t, []string{"openrouter: TRACKLIST_TEST_KEY"}, cfg.MissingCredentials())
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]string{
		"unknown default model": `
providers:
  openrouter:
    api_key: key
    base_url: https://openrouter.ai/api/v1
    models: [{id: m1, name: M1}]
defaults: {provider: openrouter, model: m2}
`,
		"unknown fallback provider": `
providers:
  openrouter:
    api_key: key
    base_url: https://openrouter.ai/api/v1
    models: [{id: m1, name: M1}]
defaults: {provider: openrouter, model: m1, fallback_provider: nope}
`,
		"workers out of range": `
providers:
  openrouter:
    api_key: key
    base_url: https://openrouter.ai/api/v1
    models: [{id: m1, name: M1}]
defaults: {provider: openrouter, model: m1}
processing: {max_workers: 64}
`,
		"temperature out of range": `
providers:
  openrouter:
    api_key: key
    base_url: https://openrouter.ai/api/v1
    models: [{id: m1, name: M1, temperature: 3}]
defaults: {provider: openrouter, model: m1}
`,
		"bad log level": `
providers:
  openrouter:
    api_key: key
    base_url: https://openrouter.ai/api/v1
    models: [{id: m1, name: M1}]
defaults: {provider: openrouter, model: m1}
advanced: {log_level: chatty}
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := LoadConfig(writeConfig(t, "config.yaml", body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration), err.Error())
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestSaveConfigRoundTrip(t *testing.T) {
	for _, format := range []string{"yaml", "json", "toml"} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config."+format)
			written, err := SaveConfig(DefaultConfig(), path, format)
			require.NoError(t, err)
			assert.Equal(t, path, written)

			cfg, _, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, DefaultConfig().Defaults, cfg.Defaults)
			assert.Equal(t, DefaultConfig().Processing, cfg.Processing)
			assert.False(t, cfg.Providers["lm_studio"].Enabled)
			assert.True(t, cfg.Providers["lm_studio"].AutoDiscoverModels)
		})
	}
}

func TestSaveConfigRejectsUnknownFormat(t *testing.T) {
	_, err := SaveConfig(DefaultConfig(), filepath.Join(t.TempDir(), "c.ini"), "ini")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, FindConfigFile(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "app_config.toml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{}"), 0o644))
	assert.Equal(t, filepath.Join(dir, "config.json"), FindConfigFile(dir))
}

func TestExpandPlaceholder(t *testing.T) {
	t.Setenv("TRACKLIST_TEST_VALUE", "resolved")
	assert.Equal(t, "resolved", ExpandPlaceholder("${TRACKLIST_TEST_VALUE}"))
	assert.Equal(t, "resolved", ExpandPlaceholder("$TRACKLIST_TEST_VALUE"))
	assert.Equal(t, "${TRACKLIST_UNSET_VALUE}", ExpandPlaceholder("${TRACKLIST_UNSET_VALUE}"))
	assert.Equal(t, "plain", ExpandPlaceholder("plain"))
}
