package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/marcin-skalski/prwatch/internal/analyzer"
	"github.com/marcin-skalski/prwatch/internal/cistatus"
	"github.com/marcin-skalski/prwatch/internal/config"
	"github.com/marcin-skalski/prwatch/internal/daemon"
	"github.com/marcin-skalski/prwatch/internal/github"
	"github.com/marcin-skalski/prwatch/internal/launcher"
	"github.com/marcin-skalski/prwatch/internal/logging"
	"github.com/marcin-skalski/prwatch/internal/storage"
	"github.com/marcin-skalski/prwatch/internal/tracker"
	"github.com/marcin-skalski/prwatch/internal/worker"
)

// CLI is the prwatch command tree.
type CLI struct {
	Config   string `help:"Path to the config file" default:"${default_config}" type:"path" short:"c"`
	LogLevel string `help:"Override log.level (debug|info|warn|error)"`

	Run         RunCmd         `cmd:"" help:"Start the dashboard, or the headless poller when not on a terminal (default)" default:"1"`
	Add         AddCmd         `cmd:"add" help:"Track one or more pull requests by URL"`
	Remove      RemoveCmd      `cmd:"remove" help:"Stop tracking a pull request"`
	List        ListCmd        `cmd:"list" help:"List tracked pull requests and their CI status"`
	Refresh     RefreshCmd     `cmd:"refresh" help:"Refresh every tracked pull request"`
	Rerun       RerunCmd       `cmd:"rerun" help:"Rerun the failed workflow runs of one pull request"`
	RerunFailed RerunFailedCmd `cmd:"rerun-failed" help:"Rerun every pull request whose CI failed"`
	Logs        LogsCmd        `cmd:"logs" help:"Print the log tail of a CI job"`
	OpenCLI     OpenCLICmd     `cmd:"open-cli" help:"Diagnose a failed job and hand it to the assistant CLI"`
}

// app holds the wired components for one command invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	kv       *storage.SQLiteKV
	tracked  *storage.TrackedList
	client   *github.Client
	analyzer *analyzer.Client
	launcher *launcher.Launcher
	engine   *daemon.Engine
	closers  []io.Closer

	stop    context.CancelFunc
	stopped chan struct{}
}

// newApp loads config, sets up logging and storage, and builds the engine.
// With fileOnly the logger never writes to stderr.
func (c *CLI) newApp(fileOnly bool) (*app, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	switch c.LogLevel {
	case "":
	case "debug", "info", "warn", "error":
		cfg.Log.Level = c.LogLevel
	default:
		return nil, fmt.Errorf("invalid --log-level %q (debug|info|warn|error)", c.LogLevel)
	}

	logger, logCloser, err := logging.SetupLogger(cfg.LogFile, cfg.Log.Level, fileOnly)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	a.kv, err = storage.Open(cfg.DBPath, logger.With("component", "storage"))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.kv)
	a.tracked = storage.NewTrackedList(a.kv)

	records, err := a.tracked.Load(context.Background())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load tracked pull requests: %w", err)
	}

	// The engine takes an untyped nil when no token is configured.
	var remote daemon.RemoteCI
	if cfg.GitHub.Token != "" {
		a.client, err = github.NewClient(github.Options{
			Token:   cfg.GitHub.Token,
			BaseURL: cfg.GitHub.APIURL,
		}, logger.With("component", "github"))
		if err != nil {
			a.Close()
			return nil, err
		}
		remote = a.client
	} else {
		logger.Warn("github token is not configured; refresh and rerun are disabled")
	}

	a.analyzer = analyzer.New(analyzer.Options{
		APIKey:    cfg.Analyzer.APIKey,
		URL:       cfg.Analyzer.URL,
		Model:     cfg.Analyzer.Model,
		MaxTokens: cfg.Analyzer.MaxTokens,
	}, logger.With("component", "analyzer"))
	a.launcher = launcher.New(cfg.CLI.UseTmux, cfg.CLI.TmuxSessionPrefix, logger.With("component", "launcher"))

	a.engine = daemon.New(remote, a.tracked, daemon.Options{
		FastInterval: cfg.Refresh.FastInterval,
		SlowInterval: cfg.Refresh.SlowInterval,
		StartupDelay: cfg.Refresh.StartupDelay,
		SettleDelay:  cfg.Rerun.SettleDelay,
	}, logger.With("component", "daemon"))
	a.engine.Restore(records)

	logger.Info("prwatch initialised", "config", c.Config, "tracked", len(records),
		"db", cfg.DBPath, "github", a.client != nil, "analyzer", a.analyzer.Configured())
	return a, nil
}

// start runs the engine loop in the background until ctx ends or Close is
// called.
func (a *app) start(ctx context.Context) {
	ctx, a.stop = context.WithCancel(ctx)
	a.stopped = make(chan struct{})
	go func() {
		defer close(a.stopped)
		if err := a.engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("engine stopped", "err", err)
		}
	}()
}

// Close stops the engine, then releases storage and the log file.
func (a *app) Close() error {
	if a.stop != nil {
		a.stop()
		<-a.stopped
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// commands lists the configured assistant CLIs in key order.
func (a *app) commands() []config.CommandConfig {
	return []config.CommandConfig{a.cfg.CLI.Primary, a.cfg.CLI.Secondary}
}

// diagnose runs a diagnosis worker for one failed job.
func (a *app) diagnose(ctx context.Context, rec tracker.Record, job cistatus.Job) (*worker.Diagnosis, error) {
	if a.client == nil {
		return nil, &github.ConfigurationError{Reason: "github token is not set"}
	}
	w := worker.New(rec.Repo, rec.Number, job, a.client, a.analyzer, a.logger.With("component", "worker"))
	return w.Run(ctx)
}

// findRecord resolves target against the tracked list. target is a pull
// request URL or "owner/name#number".
func findRecord(records []tracker.Record, target string) (tracker.Record, error) {
	repo, number, err := parseTarget(target)
	if err != nil {
		return tracker.Record{}, err
	}
	for _, r := range records {
		if r.Repo == repo && r.Number == number {
			return r, nil
		}
	}
	return tracker.Record{}, fmt.Errorf("%s#%d: %w", repo, number, daemon.ErrNotFound)
}

func parseTarget(target string) (string, int, error) {
	target = strings.TrimSpace(target)
	if repo, number, ok := tracker.ParsePRURL(target); ok {
		return repo, number, nil
	}
	repo, num, ok := strings.Cut(target, "#")
	if !ok {
		return "", 0, fmt.Errorf("%q: expected a pull request URL or owner/name#number", target)
	}
	if _, _, err := github.SplitRepo(repo); err != nil {
		return "", 0, err
	}
	number, err := strconv.Atoi(num)
	if err != nil || number <= 0 {
		return "", 0, fmt.Errorf("%q: invalid pull request number", target)
	}
	return repo, number, nil
}

// pickJob selects the named job, or the first failed one when name is empty.
func pickJob(rec tracker.Record, name string) (cistatus.Job, error) {
	for _, j := range rec.Jobs {
		if name == "" && j.Status == cistatus.JobFailure {
			return j, nil
		}
		if name != "" && j.Name == name {
			return j, nil
		}
	}
	if name == "" {
		return cistatus.Job{}, fmt.Errorf("%s has no failed jobs", rec.Key())
	}
	return cistatus.Job{}, fmt.Errorf("%s has no job named %q", rec.Key(), name)
}
