package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	GitHub   GitHubConfig   `yaml:"github"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Rerun    RerunConfig    `yaml:"rerun"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	CLI      CLIConfig      `yaml:"cli"`
	DBPath   string         `yaml:"db_path"`
	LogFile  string         `yaml:"log_file"`
	Log      LogConfig      `yaml:"log"`
	TUI      TUIConfig      `yaml:"tui"`
}

type GitHubConfig struct {
	// Token falls back to GH_TOKEN, then GITHUB_TOKEN.
	Token  string `yaml:"token"`
	APIURL string `yaml:"api_url"`
}

type RefreshConfig struct {
	FastInterval    time.Duration `yaml:"-"`
	RawFast         string        `yaml:"fast_interval"`
	SlowInterval    time.Duration `yaml:"-"`
	RawSlow         string        `yaml:"slow_interval"`
	StartupDelay    time.Duration `yaml:"-"`
	RawStartupDelay string        `yaml:"startup_delay"`
}

type RerunConfig struct {
	SettleDelay    time.Duration `yaml:"-"`
	RawSettleDelay string        `yaml:"settle_delay"`
}

type AnalyzerConfig struct {
	APIKey    string `yaml:"api_key"`
	URL       string `yaml:"url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type CLIConfig struct {
	Primary   CommandConfig `yaml:"primary"`
	Secondary CommandConfig `yaml:"secondary"`
	// UseTmux starts the CLI in a detached tmux session instead of the
	// foreground terminal.
	UseTmux           bool   `yaml:"use_tmux"`
	TmuxSessionPrefix string `yaml:"tmux_session_prefix"`
}

type CommandConfig struct {
	Label    string `yaml:"label"`
	Template string `yaml:"template"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TUIConfig struct {
	RefreshInterval time.Duration `yaml:"-"`
	RawInterval     string        `yaml:"refresh_interval"`
}

// DefaultPath is ~/.config/prwatch/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "prwatch.yaml"
	}
	return filepath.Join(dir, "prwatch", "config.yaml")
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func parseDuration(key string, raw *string, def string, dst *time.Duration) error {
	*raw = strings.TrimSpace(*raw)
	if *raw == "" {
		*raw = def
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return fmt.Errorf("parse %s %q: %w", key, *raw, err)
	}
	*dst = d
	return nil
}

func (c *Config) setDefaults() error {
	c.GitHub.Token = strings.TrimSpace(c.GitHub.Token)
	if c.GitHub.Token == "" {
		c.GitHub.Token = strings.TrimSpace(os.Getenv("GH_TOKEN"))
	}
	if c.GitHub.Token == "" {
		c.GitHub.Token = strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	}
	c.GitHub.APIURL = strings.TrimSpace(c.GitHub.APIURL)

	durations := []struct {
		key string
		raw *string
		def string
		dst *time.Duration
	}{
		{"refresh.fast_interval", &c.Refresh.RawFast, "15s", &c.Refresh.FastInterval},
		{"refresh.slow_interval", &c.Refresh.RawSlow, "30s", &c.Refresh.SlowInterval},
		{"refresh.startup_delay", &c.Refresh.RawStartupDelay, "1s", &c.Refresh.StartupDelay},
		{"rerun.settle_delay", &c.Rerun.RawSettleDelay, "2s", &c.Rerun.SettleDelay},
		{"tui.refresh_interval", &c.TUI.RawInterval, "1s", &c.TUI.RefreshInterval},
	}
	for _, d := range durations {
		if err := parseDuration(d.key, d.raw, d.def, d.dst); err != nil {
			return err
		}
	}

	c.Analyzer.APIKey = strings.TrimSpace(c.Analyzer.APIKey)
	if c.Analyzer.URL == "" {
		c.Analyzer.URL = "https://api.minimaxi.com/anthropic/v1/messages"
	}
	if c.Analyzer.Model == "" {
		c.Analyzer.Model = "MiniMax-M2.5-highspeed"
	}
	if c.Analyzer.MaxTokens == 0 {
		c.Analyzer.MaxTokens = 2048
	}

	c.CLI.Primary.normalize("Claude CLI", "claude -p {context}")
	c.CLI.Secondary.normalize("Kimi CLI", "kimi -y -p {context}")
	if c.CLI.TmuxSessionPrefix == "" {
		c.CLI.TmuxSessionPrefix = "prwatch"
	}

	if c.DBPath == "" {
		c.DBPath = "~/.local/share/prwatch/prwatch.db"
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(os.TempDir(), "prwatch", "prwatch.log")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	return nil
}

// normalize trims both fields and fills in the defaults when the command was
// left out entirely.
func (cc *CommandConfig) normalize(label, template string) {
	cc.Label = strings.TrimSpace(cc.Label)
	cc.Template = strings.TrimSpace(cc.Template)
	if cc.Label == "" && cc.Template == "" {
		cc.Label, cc.Template = label, template
	}
	if cc.Label == "" {
		cc.Label = label
	}
}

func (c *Config) validate() error {
	positive := []struct {
		key string
		d   time.Duration
	}{
		{"refresh.fast_interval", c.Refresh.FastInterval},
		{"refresh.slow_interval", c.Refresh.SlowInterval},
		{"refresh.startup_delay", c.Refresh.StartupDelay},
		{"rerun.settle_delay", c.Rerun.SettleDelay},
		{"tui.refresh_interval", c.TUI.RefreshInterval},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", p.key, p.d)
		}
	}
	if c.Refresh.FastInterval > c.Refresh.SlowInterval {
		return fmt.Errorf("refresh.fast_interval (%s) must not exceed refresh.slow_interval (%s)",
			c.Refresh.FastInterval, c.Refresh.SlowInterval)
	}
	if c.Analyzer.MaxTokens < 0 {
		return fmt.Errorf("analyzer.max_tokens must be positive, got %d", c.Analyzer.MaxTokens)
	}
	if c.CLI.Primary.Template == "" {
		return fmt.Errorf("cli.primary: template required for %q", c.CLI.Primary.Label)
	}
	if c.CLI.Secondary.Template == "" {
		return fmt.Errorf("cli.secondary: template required for %q", c.CLI.Secondary.Label)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q (debug|info|warn|error)", c.Log.Level)
	}
	return nil
}
