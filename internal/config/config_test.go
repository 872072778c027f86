package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("GH_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Empty(t, cfg.GitHub.Token)
	assert.Equal(t, 15*time.Second, cfg.Refresh.FastInterval)
	assert.Equal(t, 30*time.Second, cfg.Refresh.SlowInterval)
	assert.Equal(t, time.Second, cfg.Refresh.StartupDelay)
	assert.Equal(t, 2*time.Second, cfg.Rerun.SettleDelay)
	assert.Equal(t, "MiniMax-M2.5-highspeed", cfg.Analyzer.Model)
	assert.Equal(t, 2048, cfg.Analyzer.MaxTokens)
	assert.Equal(t, CommandConfig{Label: "Claude CLI", Template: "claude -p {context}"}, cfg.CLI.Primary)
	assert.Equal(t, CommandConfig{Label: "Kimi CLI", Template: "kimi -y -p {context}"}, cfg.CLI.Secondary)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "prwatch", cfg.CLI.TmuxSessionPrefix)
}

func TestLoadParsesAndTrims(t *testing.T) {
	path := writeConfig(t, `
github:
  token: "  ghp_abc  "
  api_url: http://ghe.local/api/v3/
refresh:
  fast_interval: 5s
  slow_interval: 1m
rerun:
  settle_delay: 500ms
analyzer:
  api_key: " sk-1 "
cli:
  primary:
    label: "  Aider "
    template: " aider --message {context} "
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ghp_abc", cfg.GitHub.Token)
	assert.Equal(t, "http://ghe.local/api/v3/", cfg.GitHub.APIURL)
	assert.Equal(t, 5*time.Second, cfg.Refresh.FastInterval)
	assert.Equal(t, time.Minute, cfg.Refresh.SlowInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Rerun.SettleDelay)
	assert.Equal(t, "sk-1", cfg.Analyzer.APIKey)
	assert.Equal(t, CommandConfig{Label: "Aider", Template: "aider --message {context}"}, cfg.CLI.Primary)
	assert.Equal(t, "Kimi CLI", cfg.CLI.Secondary.Label)
}

func TestTokenEnvFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	t.Setenv("GH_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "from-github-token")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-github-token", cfg.GitHub.Token)

	t.Setenv("GH_TOKEN", "from-gh-token")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-gh-token", cfg.GitHub.Token)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "refresh: [\n"},
		{"bad duration", "refresh:\n  fast_interval: soon\n"},
		{"negative interval", "refresh:\n  slow_interval: -1s\n"},
		{"fast slower than slow", "refresh:\n  fast_interval: 1m\n  slow_interval: 30s\n"},
		{"label without template", "cli:\n  secondary:\n    label: Custom\n"},
		{"bad level", "log:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
