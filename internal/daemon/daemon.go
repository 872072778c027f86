package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marcin-skalski/prwatch/internal/github"
	"github.com/marcin-skalski/prwatch/internal/tracker"
)

var (
	// ErrAlreadyInProgress rejects a rerun (or bulk rerun) while one is
	// already running for the same subject. No network call is made.
	ErrAlreadyInProgress = errors.New("already in progress")
	// ErrNoRunsFound means rerun discovery found no failed workflow runs.
	ErrNoRunsFound  = errors.New("no failed workflow runs to rerun")
	ErrNotFound     = errors.New("pull request is not tracked")
	ErrStopped      = errors.New("engine stopped")
	ErrInvalidPRURL = errors.New("not a GitHub pull request URL")
	errTokenNotSet  = &github.ConfigurationError{Reason: "github token is not set"}
)

// RemoteCI is the subset of the GitHub client the engine drives.
type RemoteCI interface {
	github.Reader
	TriggerRerun(ctx context.Context, repo string, runID int64) error
}

// Persister saves the tracked list after every change.
type Persister interface {
	Save(ctx context.Context, records []tracker.Record) error
}

type Options struct {
	// FastInterval is the refresh period while any PR has running CI.
	FastInterval time.Duration
	// SlowInterval is the refresh period otherwise.
	SlowInterval time.Duration
	// StartupDelay postpones the first bulk refresh of restored records.
	StartupDelay time.Duration
	// SettleDelay is the wait before refreshing a PR after triggering reruns.
	SettleDelay time.Duration
}

func (o *Options) setDefaults() {
	if o.FastInterval <= 0 {
		o.FastInterval = 15 * time.Second
	}
	if o.SlowInterval <= 0 {
		o.SlowInterval = 30 * time.Second
	}
	if o.StartupDelay <= 0 {
		o.StartupDelay = time.Second
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 2 * time.Second
	}
}

// Engine owns the tracked PR store. All store access happens on the goroutine
// running Run; network calls run elsewhere and post their results back.
type Engine struct {
	client  RemoteCI
	persist Persister
	opts    Options
	logger  *slog.Logger

	store  *tracker.Store
	ops    chan func()
	done   chan struct{}
	wg     sync.WaitGroup
	runCtx context.Context

	// Owned by the loop goroutine.
	refreshingAll   bool
	rerunAllRunning bool
	rerunning       map[string]bool

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New builds an engine. client may be nil when no token is configured, in
// which case refreshes record a configuration error instead of calling out.
func New(client RemoteCI, persist Persister, opts Options, logger *slog.Logger) *Engine {
	opts.setDefaults()
	return &Engine{
		client:    client,
		persist:   persist,
		opts:      opts,
		logger:    logger,
		store:     tracker.NewStore(),
		ops:       make(chan func()),
		done:      make(chan struct{}),
		rerunning: make(map[string]bool),
		subs:      make(map[int]chan Event),
	}
}

// Restore seeds the store with persisted records. Call it before Run.
func (e *Engine) Restore(records []tracker.Record) {
	e.store.Load(records)
}

// Run drives the event loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx
	e.logger.Info("engine started",
		"records", e.store.Len(),
		"fast_interval", e.opts.FastInterval,
		"slow_interval", e.opts.SlowInterval)

	startup := time.NewTimer(e.opts.StartupDelay)
	defer startup.Stop()

	tick := time.NewTimer(e.interval())
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("shutting down, waiting for in-flight requests")
			close(e.done)
			e.wg.Wait()
			e.logger.Info("engine stopped")
			return nil
		case op := <-e.ops:
			op()
		case <-startup.C:
			e.logger.Debug("startup refresh", "records", e.store.Len())
			e.refreshEach()
		case <-tick.C:
			e.refreshEach()
			next := e.interval()
			e.logger.Debug("refresh tick", "records", e.store.Len(), "next", next)
			tick.Reset(next)
		}
	}
}

// interval is recomputed from store state on every tick.
func (e *Engine) interval() time.Duration {
	if e.store.AnyRunning() {
		return e.opts.FastInterval
	}
	return e.opts.SlowInterval
}

// do runs f on the loop goroutine and waits for it. It must not be called
// from the loop goroutine itself.
func (e *Engine) do(ctx context.Context, f func()) error {
	finished := make(chan struct{})
	op := func() {
		defer close(finished)
		f()
	}
	select {
	case e.ops <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrStopped
	}
	<-finished
	return nil
}

// post queues f on the loop goroutine without waiting for it to run. It is a
// no-op once the engine has stopped.
func (e *Engine) post(f func()) {
	select {
	case e.ops <- f:
	case <-e.done:
	}
}

// spawn runs f on a tracked goroutine bound to the engine's lifetime.
// Loop goroutine only.
func (e *Engine) spawn(f func(ctx context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		f(e.runCtx)
	}()
}

func (e *Engine) save() {
	if e.persist == nil {
		return
	}
	if err := e.persist.Save(e.runCtx, e.store.List()); err != nil {
		e.logger.Error("save tracked PRs failed", "err", err)
	}
}

// Add starts tracking a PR and schedules its first refresh. It reports false
// when the PR is already tracked.
func (e *Engine) Add(ctx context.Context, repo string, number int) (tracker.Record, bool, error) {
	if _, _, err := github.SplitRepo(repo); err != nil {
		return tracker.Record{}, false, err
	}
	if number <= 0 {
		return tracker.Record{}, false, fmt.Errorf("invalid PR number %d", number)
	}

	var (
		rec   tracker.Record
		added bool
	)
	err := e.do(ctx, func() {
		rec, added = e.store.Add(repo, number)
		if !added {
			return
		}
		e.logger.Info("tracking PR", "repo", repo, "pr", number)
		e.save()
		e.emitRecord(rec.ID)
		e.startRefresh(rec, nil)
	})
	return rec, added, err
}

// AddURL parses a GitHub pull request link and tracks it.
func (e *Engine) AddURL(ctx context.Context, text string) (tracker.Record, bool, error) {
	repo, number, ok := tracker.ParsePRURL(text)
	if !ok {
		return tracker.Record{}, false, ErrInvalidPRURL
	}
	return e.Add(ctx, repo, number)
}

// Remove stops tracking a record. Unknown ids are ignored.
func (e *Engine) Remove(ctx context.Context, id string) error {
	return e.do(ctx, func() {
		if !e.store.Remove(id) {
			return
		}
		delete(e.rerunning, id)
		e.save()
		e.emit(Event{Kind: EventRecordRemoved, RecordID: id})
	})
}

// Snapshot is a point-in-time copy of engine state for presentation.
type Snapshot struct {
	Timestamp       time.Time
	Records         []tracker.Record
	Rerunning       map[string]bool
	RefreshingAll   bool
	RerunAllRunning bool
	HasClient       bool
}

func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := e.do(ctx, func() {
		rerunning := make(map[string]bool, len(e.rerunning))
		for k, v := range e.rerunning {
			rerunning[k] = v
		}
		snap = Snapshot{
			Timestamp:       time.Now(),
			Records:         e.store.List(),
			Rerunning:       rerunning,
			RefreshingAll:   e.refreshingAll,
			RerunAllRunning: e.rerunAllRunning,
			HasClient:       e.client != nil,
		}
	})
	return snap, err
}

// Lookup returns a copy of one record.
func (e *Engine) Lookup(ctx context.Context, id string) (tracker.Record, error) {
	var (
		rec tracker.Record
		ok  bool
	)
	if err := e.do(ctx, func() { rec, ok = e.store.Get(id) }); err != nil {
		return tracker.Record{}, err
	}
	if !ok {
		return tracker.Record{}, ErrNotFound
	}
	return rec, nil
}
