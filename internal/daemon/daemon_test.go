package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-skalski/prwatch/internal/cistatus"
	"github.com/marcin-skalski/prwatch/internal/github"
	"github.com/marcin-skalski/prwatch/internal/tracker"
)

// fakeCI is an in-memory RemoteCI keyed by PR number.
type fakeCI struct {
	mu sync.Mutex

	prs    map[int]*github.PullRequest
	checks map[string][]github.CheckRun
	runs   map[string][]github.WorkflowRun
	prErr  map[int]error

	triggerErr  map[int64]error
	triggered   []int64
	prCalls     int
	inflight    int
	maxInflight int

	// gate, when set, blocks TriggerRerun until closed.
	gate chan struct{}
	// started receives once per TriggerRerun call when set.
	started chan int64
	// delay, when set, holds GetPullRequest for the given PR.
	delay map[int]chan struct{}
}

func newFakeCI() *fakeCI {
	return &fakeCI{
		prs:        make(map[int]*github.PullRequest),
		checks:     make(map[string][]github.CheckRun),
		runs:       make(map[string][]github.WorkflowRun),
		prErr:      make(map[int]error),
		triggerErr: make(map[int64]error),
		delay:      make(map[int]chan struct{}),
	}
}

func (f *fakeCI) setPR(number int, title, sha string, checks ...github.CheckRun) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prs[number] = &github.PullRequest{
		Number: number, Title: title, Author: "octocat", State: "open", HeadSHA: sha,
		Additions: 3, Deletions: 1, UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.checks[sha] = checks
}

func failedCheck(name string, runID, jobID int64) github.CheckRun {
	return github.CheckRun{
		ID: jobID, Name: name, Status: "completed", Conclusion: "failure",
		DetailsURL: fmt.Sprintf("https://github.com/acme/api/actions/runs/%d/job/%d", runID, jobID),
		AppName:    cistatus.CIApp,
	}
}

func runningCheck(name string) github.CheckRun {
	return github.CheckRun{ID: 1, Name: name, Status: "in_progress", AppName: cistatus.CIApp}
}

func (f *fakeCI) GetPullRequest(ctx context.Context, repo string, number int) (*github.PullRequest, error) {
	f.mu.Lock()
	f.prCalls++
	hold := f.delay[number]
	err := f.prErr[number]
	pr := f.prs[number]
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if pr == nil {
		return nil, &github.NetworkError{Status: 404, Message: "Not Found"}
	}
	cp := *pr
	return &cp, nil
}

func (f *fakeCI) GetCheckRuns(_ context.Context, _ string, sha string) ([]github.CheckRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]github.CheckRun(nil), f.checks[sha]...), nil
}

func (f *fakeCI) GetWorkflowRuns(_ context.Context, _ string, sha string) ([]github.WorkflowRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]github.WorkflowRun(nil), f.runs[sha]...), nil
}

func (f *fakeCI) TriggerRerun(ctx context.Context, _ string, runID int64) error {
	f.mu.Lock()
	f.inflight++
	f.maxInflight = max(f.maxInflight, f.inflight)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if f.started != nil {
		f.started <- runID
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggered = append(f.triggered, runID)
	return f.triggerErr[runID]
}

func (f *fakeCI) setChecks(sha string, checks ...github.CheckRun) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks[sha] = checks
}

func (f *fakeCI) triggeredRuns() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.triggered...)
}

func (f *fakeCI) maxConcurrentTriggers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInflight
}

func (f *fakeCI) triggerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.triggered)
}

func (f *fakeCI) pullRequestCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prCalls
}

type memPersister struct {
	mu    sync.Mutex
	saves int
	last  []tracker.Record
}

func (m *memPersister) Save(_ context.Context, records []tracker.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.last = records
	return nil
}

func (m *memPersister) snapshot() (int, []tracker.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves, m.last
}

func testOptions() Options {
	return Options{
		FastInterval: time.Hour,
		SlowInterval: time.Hour,
		StartupDelay: time.Hour,
		SettleDelay:  10 * time.Millisecond,
	}
}

func startEngine(t *testing.T, client RemoteCI, persist Persister, opts Options, restore ...tracker.Record) *Engine {
	t.Helper()
	e := New(client, persist, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.Restore(restore)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return e
}

func lookup(t *testing.T, e *Engine, id string) tracker.Record {
	t.Helper()
	rec, err := e.Lookup(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func waitLoaded(t *testing.T, e *Engine, id string) tracker.Record {
	t.Helper()
	require.Eventually(t, func() bool {
		return !lookup(t, e, id).IsLoading
	}, 2*time.Second, 5*time.Millisecond)
	return lookup(t, e, id)
}

func TestAddFetchesAndPersists(t *testing.T) {
	ci := newFakeCI()
	ci.setPR(7, "Fix flaky test", "sha7", failedCheck("build", 100, 200))
	persist := &memPersister{}
	e := startEngine(t, ci, persist, testOptions())
	ctx := context.Background()

	rec, added, err := e.AddURL(ctx, "see https://github.com/acme/api/pull/7 please")
	require.NoError(t, err)
	require.True(t, added)
	assert.Equal(t, "acme/api", rec.Repo)
	assert.Equal(t, 7, rec.Number)

	got := waitLoaded(t, e, rec.ID)
	assert.Equal(t, "Fix flaky test", got.Title)
	assert.Equal(t, "octocat", got.Author)
	assert.Equal(t, tracker.StateOpen, got.State)
	assert.Equal(t, cistatus.StatusFailure, got.Status())
	assert.Equal(t, int64(200), got.Jobs[0].JobID)
	require.NotNil(t, got.RunID)
	assert.Equal(t, int64(100), *got.RunID)
	assert.Empty(t, got.LastError)

	saves, last := persist.snapshot()
	assert.GreaterOrEqual(t, saves, 2)
	require.Len(t, last, 1)
	assert.Equal(t, "Fix flaky test", last[0].Title)

	_, added, err = e.Add(ctx, "acme/api", 7)
	require.NoError(t, err)
	assert.False(t, added)
}

func TestAddRejectsBadInput(t *testing.T) {
	e := startEngine(t, newFakeCI(), nil, testOptions())
	ctx := context.Background()

	_, _, err := e.AddURL(ctx, "not a link")
	assert.ErrorIs(t, err, ErrInvalidPRURL)

	_, _, err = e.Add(ctx, "noslash", 1)
	assert.Error(t, err)

	_, _, err = e.Add(ctx, "acme/api", 0)
	assert.Error(t, err)
}

func TestRefreshErrorIsIsolated(t *testing.T) {
	ci := newFakeCI()
	ci.setPR(1, "good", "sha1")
	ci.prErr[2] = &github.NetworkError{Status: 500, Message: "boom"}
	e := startEngine(t, ci, nil, testOptions())
	ctx := context.Background()

	good, _, err := e.Add(ctx, "acme/api", 1)
	require.NoError(t, err)
	bad, _, err := e.Add(ctx, "acme/api", 2)
	require.NoError(t, err)

	g := waitLoaded(t, e, good.ID)
	b := waitLoaded(t, e, bad.ID)

	assert.Equal(t, "good", g.Title)
	assert.Empty(t, g.LastError)
	assert.Contains(t, b.LastError, "boom")
	assert.Equal(t, tracker.PlaceholderTitle, b.Title)
}

func TestRefreshWithoutClientRecordsConfigError(t *testing.T) {
	e := startEngine(t, nil, nil, testOptions())
	ctx := context.Background()

	rec, _, err := e.Add(ctx, "acme/api", 1)
	require.NoError(t, err)
	got := waitLoaded(t, e, rec.ID)
	assert.Contains(t, got.LastError, "token")

	ran, err := e.RefreshAll(ctx)
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestStaleRefreshIsDropped(t *testing.T) {
	ci := newFakeCI()
	ci.setPR(1, "old title", "sha1")
	hold := make(chan struct{})
	ci.delay[1] = hold
	e := startEngine(t, ci, nil, testOptions())
	ctx := context.Background()

	// First refresh (from Add) is held at GetPullRequest.
	rec, _, err := e.Add(ctx, "acme/api", 1)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ci.pullRequestCalls() >= 2 }, time.Second, 5*time.Millisecond)

	// Second refresh is issued later and completes first.
	ci.mu.Lock()
	delete(ci.delay, 1)
	ci.mu.Unlock()
	ci.setPR(1, "new title", "sha1")
	require.NoError(t, e.Refresh(ctx, rec.ID))
	require.Eventually(t, func() bool {
		r := lookup(t, e, rec.ID)
		return r.Title == "new title" && !r.IsLoading
	}, 2*time.Second, 5*time.Millisecond)

	// The first refresh now completes with stale data and must not win.
	ci.setPR(1, "stale title", "sha1")
	close(hold)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "new title", lookup(t, e, rec.ID).Title)
}

func TestRemove(t *testing.T) {
	ci := newFakeCI()
	ci.setPR(1, "t", "sha1")
	persist := &memPersister{}
	e := startEngine(t, ci, persist, testOptions())
	ctx := context.Background()

	events, unsubscribe := e.Subscribe()
	defer unsubscribe()

	rec, _, err := e.Add(ctx, "acme/api", 1)
	require.NoError(t, err)
	require.NoError(t, e.Remove(ctx, rec.ID))
	require.NoError(t, e.Remove(ctx, "unknown"))

	_, err = e.Lookup(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, last := persist.snapshot()
	assert.Empty(t, last)

	require.Eventually(t, func() bool {
		for {
			select {
			case ev := <-events:
				if ev.Kind == EventRecordRemoved && ev.RecordID == rec.ID {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, 5*time.Millisecond)
}

func TestRerunPartialOutcome(t *testing.T) {
	ci := newFakeCI()
	ci.setPR(1, "t", "sha1", failedCheck("build", 11, 1), failedCheck("lint", 22, 2))
	ci.triggerErr[22] = &github.NetworkError{Status: 500, Message: "server error"}
	e := startEngine(t, ci, nil, testOptions())
	ctx := context.Background()

	rec, _, err := e.Add(ctx, "acme/api", 1)
	require.NoError(t, err)
	waitLoaded(t, e, rec.ID)

	outcome, err := e.Rerun(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomePartial, outcome.Kind)
	assert.Equal(t, 1, outcome.Triggered)
	assert.Equal(t, 2, outcome.Total)
	assert.Contains(t, outcome.String(), "1/2")
	assert.Contains(t, outcome.Err().Error(), "server error")

	// Follow-up refresh after the settle delay.
	calls := ci.pullRequestCalls()
	require.Eventually(t, func() bool { return ci.pullRequestCalls() > calls }, time.Second, 5*time.Millisecond)
}

func TestRerunOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		checks    []github.CheckRun
		errs      map[int64]error
		wantKind  OutcomeKind
		wantErrIs error
	}{
		{
			name:     "all triggered",
			checks:   []github.CheckRun{failedCheck("build", 11, 1), failedCheck("test", 11, 2)},
			wantKind: OutcomeSuccess,
		},
		{
			name:     "every trigger fails",
			checks:   []github.CheckRun{failedCheck("build", 11, 1)},
			errs:     map[int64]error{11: &github.AlreadyRunningError{RunID: 11}},
			wantKind: OutcomeFailure,
		},
		{
			name:      "no failed runs",
			checks:    []github.CheckRun{runningCheck("build")},
			wantKind:  OutcomeNothingToRerun,
			wantErrIs: ErrNoRunsFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ci := newFakeCI()
			ci.setPR(1, "t", "sha1", tt.checks...)
			for id, err := range tt.errs {
				ci.triggerErr[id] = err
			}
			e := startEngine(t, ci, nil, testOptions())
			ctx := context.Background()

			rec, _, err := e.Add(ctx, "acme/api", 1)
			require.NoError(t, err)
			waitLoaded(t, e, rec.ID)

			outcome, err := e.Rerun(ctx, rec.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, outcome.Kind)
			if tt.wantErrIs != nil {
				assert.ErrorIs(t, outcome.Err(), tt.wantErrIs)
			}
			if tt.wantKind == OutcomeSuccess {
				assert.NoError(t, outcome.Err())
				assert.Equal(t, 1, outcome.Total, "run ids are deduplicated")
			}
		})
	}
}

func TestRerunRejectsConcurrentCall(t *testing.T) {
	ci := newFakeCI()
	ci.setPR(1, "t", "sha1", failedCheck("build", 11, 1))
	ci.gate = make(chan struct{})
	ci.started = make(chan int64, 4)
	e := startEngine(t, ci, nil, testOptions())
	ctx := context.Background()

	rec, _, err := e.Add(ctx, "acme/api", 1)
	require.NoError(t, err)
	waitLoaded(t, e, rec.ID)

	first := make(chan RerunOutcome, 1)
	go func() {
		o, _ := e.Rerun(ctx, rec.ID)
		first <- o
	}()
	<-ci.started

	snap, err := e.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Rerunning[rec.ID])

	_, err = e.Rerun(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrAlreadyInProgress)
	assert.Len(t, ci.started, 0, "second call must not reach the network")

	close(ci.gate)
	o := <-first
	assert.Equal(t, OutcomeSuccess, o.Kind)
	assert.Equal(t, 1, ci.triggerCount())

	require.Eventually(t, func() bool {
		s, err := e.Snapshot(ctx)
		return err == nil && !s.Rerunning[rec.ID]
	}, time.Second, 5*time.Millisecond)
}

func TestRerunAllFailedWithNothingFailedMakesNoCalls(t *testing.T) {
	ci := newFakeCI()
	ci.setPR(1, "t", "sha1", runningCheck("build"))
	e := startEngine(t, ci, nil, testOptions())
	ctx := context.Background()

	rec, _, err := e.Add(ctx, "acme/api", 1)
	require.NoError(t, err)
	waitLoaded(t, e, rec.ID)
	before := ci.pullRequestCalls()

	bulk, err := e.RerunAllFailed(ctx)
	require.NoError(t, err)
	assert.Empty(t, bulk.Outcomes)
	assert.Equal(t, "No failed PRs to rerun", bulk.String())
	assert.Equal(t, before, ci.pullRequestCalls())
	assert.Zero(t, ci.triggerCount())
}

func TestRerunAllFailedRunsEachFailedPR(t *testing.T) {
	ci := newFakeCI()
	ci.setPR(1, "a", "sha1", failedCheck("build", 11, 1))
	ci.setPR(2, "b", "sha2", failedCheck("build", 22, 2))
	ci.setPR(3, "c", "sha3", runningCheck("build"))
	e := startEngine(t, ci, nil, testOptions())
	ctx := context.Background()

	for _, n := range []int{1, 2, 3} {
		rec, _, err := e.Add(ctx, "acme/api", n)
		require.NoError(t, err)
		waitLoaded(t, e, rec.ID)
	}

	bulk, err := e.RerunAllFailed(ctx)
	require.NoError(t, err)
	require.Len(t, bulk.Outcomes, 2)
	for _, o := range bulk.Outcomes {
		assert.Equal(t, OutcomeSuccess, o.Kind)
	}
	ci.mu.Lock()
	assert.ElementsMatch(t, []int64{11, 22}, ci.triggered)
	ci.mu.Unlock()
	assert.Contains(t, bulk.String(), "2 ok")
}

func TestRerunAllFailedIsGuarded(t *testing.T) {
	ci := newFakeCI()
	ci.setPR(1, "a", "sha1", failedCheck("build", 11, 1))
	e := startEngine(t, ci, nil, testOptions())
	ctx := context.Background()

	rec, _, err := e.Add(ctx, "acme/api", 1)
	require.NoError(t, err)
	waitLoaded(t, e, rec.ID)

	ci.gate = make(chan struct{})
	ci.started = make(chan int64, 4)
	done := make(chan error, 1)
	go func() {
		_, err := e.RerunAllFailed(ctx)
		done <- err
	}()
	<-ci.started

	_, err = e.RerunAllFailed(ctx)
	assert.ErrorIs(t, err, ErrAlreadyInProgress)

	close(ci.gate)
	require.NoError(t, <-done)
}

func TestRefreshAllWaitsForResults(t *testing.T) {
	ci := newFakeCI()
	ci.setPR(1, "one", "sha1")
	ci.setPR(2, "two", "sha2")
	e := startEngine(t, ci, nil, testOptions(),
		tracker.Record{ID: "a", Repo: "acme/api", Number: 1, Title: "stale"},
		tracker.Record{ID: "b", Repo: "acme/api", Number: 2, Title: "stale"},
	)
	ctx := context.Background()

	ran, err := e.RefreshAll(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, "one", lookup(t, e, "a").Title)
	assert.Equal(t, "two", lookup(t, e, "b").Title)
}

func TestRefreshAllIgnoresSecondRequest(t *testing.T) {
	ci := newFakeCI()
	ci.setPR(1, "one", "sha1")
	hold := make(chan struct{})
	ci.delay[1] = hold
	e := startEngine(t, ci, nil, testOptions(),
		tracker.Record{ID: "a", Repo: "acme/api", Number: 1},
	)
	ctx := context.Background()

	first := make(chan bool, 1)
	go func() {
		ran, _ := e.RefreshAll(ctx)
		first <- ran
	}()
	require.Eventually(t, func() bool {
		s, err := e.Snapshot(ctx)
		return err == nil && s.RefreshingAll
	}, time.Second, 5*time.Millisecond)

	ran, err := e.RefreshAll(ctx)
	require.NoError(t, err)
	assert.False(t, ran)

	close(hold)
	assert.True(t, <-first)
}

func TestStartupRefreshAndScheduledTicks(t *testing.T) {
	ci := newFakeCI()
	ci.setPR(1, "fresh", "sha1", runningCheck("build"))
	opts := Options{
		FastInterval: 20 * time.Millisecond,
		SlowInterval: time.Hour,
		StartupDelay: 10 * time.Millisecond,
		SettleDelay:  time.Hour,
	}
	e := startEngine(t, ci, nil, opts,
		tracker.Record{ID: "a", Repo: "acme/api", Number: 1, Title: "restored",
			Jobs: []cistatus.Job{{Name: "build", Status: cistatus.JobRunning}}},
	)

	require.Eventually(t, func() bool {
		return lookup(t, e, "a").Title == "fresh"
	}, 2*time.Second, 5*time.Millisecond)

	// A running PR keeps the fast interval active.
	calls := ci.pullRequestCalls()
	require.Eventually(t, func() bool {
		return ci.pullRequestCalls() >= calls+4
	}, 2*time.Second, 5*time.Millisecond)
}

func TestScheduledIntervalFollowsRunningState(t *testing.T) {
	ci := newFakeCI()
	ci.setPR(1, "t", "sha1", runningCheck("build"))
	opts := Options{
		FastInterval: 20 * time.Millisecond,
		SlowInterval: time.Hour,
		StartupDelay: 10 * time.Millisecond,
		SettleDelay:  time.Hour,
	}
	e := startEngine(t, ci, nil, opts,
		tracker.Record{ID: "a", Repo: "acme/api", Number: 1,
			Jobs: []cistatus.Job{{Name: "build", Status: cistatus.JobRunning}}},
	)

	calls := ci.pullRequestCalls()
	require.Eventually(t, func() bool {
		return ci.pullRequestCalls() >= calls+2
	}, 2*time.Second, 5*time.Millisecond)

	// CI finishes; the next refresh sees it and the period switches to slow.
	ci.setChecks("sha1", github.CheckRun{ID: 1, Name: "build", Status: "completed", Conclusion: "success", AppName: cistatus.CIApp})
	require.Eventually(t, func() bool {
		return lookup(t, e, "a").Status() == cistatus.StatusSuccess
	}, 2*time.Second, 5*time.Millisecond)

	// Allow a tick already armed with the fast period to land.
	time.Sleep(100 * time.Millisecond)
	settled := ci.pullRequestCalls()
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, settled, ci.pullRequestCalls())
}

func TestRerunFallsBackToWorkflowRuns(t *testing.T) {
	ci := newFakeCI()
	ci.setPR(1, "t", "sha1", github.CheckRun{
		ID: 1, Name: "build", Status: "completed", Conclusion: "failure", AppName: cistatus.CIApp,
	})
	ci.runs["sha1"] = []github.WorkflowRun{
		{ID: 5, Conclusion: "success"},
		{ID: 6, Conclusion: "cancelled"},
		{ID: 7, Conclusion: "failure"},
		{ID: 7, Conclusion: "failure"},
	}
	e := startEngine(t, ci, nil, testOptions())
	ctx := context.Background()

	rec, _, err := e.Add(ctx, "acme/api", 1)
	require.NoError(t, err)
	loaded := waitLoaded(t, e, rec.ID)
	require.NotNil(t, loaded.RunID)
	assert.Equal(t, int64(6), *loaded.RunID)

	outcome, err := e.Rerun(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Equal(t, 2, outcome.Total)
	assert.Equal(t, []int64{6, 7}, ci.triggeredRuns())
	assert.Equal(t, 1, ci.maxConcurrentTriggers(), "triggers within one PR run one at a time")
}

func TestOperationsAfterStop(t *testing.T) {
	e := New(newFakeCI(), nil, testOptions(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	cancel()
	<-done

	_, err := e.Snapshot(context.Background())
	assert.True(t, errors.Is(err, ErrStopped))
}

func TestBulkOutcomeString(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []RerunOutcome
		want     string
	}{
		{"empty", nil, "No failed PRs to rerun"},
		{
			"mixed",
			[]RerunOutcome{{Kind: OutcomeSuccess}, {Kind: OutcomePartial}, {Kind: OutcomeFailure}},
			"Reran 3 PRs: 1 ok, 1 partial, 1 failed",
		},
		{
			"nothing to rerun is not a failure",
			[]RerunOutcome{{Kind: OutcomeSuccess}, {Kind: OutcomeNothingToRerun}},
			"Reran 2 PRs: 1 ok, 0 partial, 0 failed, 1 with nothing to rerun",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BulkOutcome{Outcomes: tt.outcomes}.String())
		})
	}
}
