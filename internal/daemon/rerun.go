package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/marcin-skalski/prwatch/internal/cistatus"
	"github.com/marcin-skalski/prwatch/internal/github"
	"github.com/marcin-skalski/prwatch/internal/tracker"
)

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomePartial
	OutcomeFailure
	OutcomeNothingToRerun
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomePartial:
		return "partial"
	case OutcomeFailure:
		return "failure"
	case OutcomeNothingToRerun:
		return "nothing to rerun"
	}
	return "unknown"
}

// RerunOutcome summarises one rerun attempt for one PR.
type RerunOutcome struct {
	RecordID  string
	Repo      string
	Number    int
	Kind      OutcomeKind
	Triggered int
	Total     int
	Errs      []error
}

// Err is the first failure, ErrNoRunsFound when discovery found nothing, or
// nil on full success.
func (o RerunOutcome) Err() error {
	if len(o.Errs) > 0 {
		return o.Errs[0]
	}
	if o.Kind == OutcomeNothingToRerun {
		return ErrNoRunsFound
	}
	return nil
}

func (o RerunOutcome) String() string {
	subject := fmt.Sprintf("%s#%d", o.Repo, o.Number)
	switch o.Kind {
	case OutcomeSuccess:
		return fmt.Sprintf("%s: rerun triggered (%d/%d)", subject, o.Triggered, o.Total)
	case OutcomePartial:
		return fmt.Sprintf("%s: rerun partially triggered (%d/%d): %v", subject, o.Triggered, o.Total, o.Err())
	case OutcomeNothingToRerun:
		return fmt.Sprintf("%s: nothing to rerun", subject)
	default:
		return fmt.Sprintf("%s: rerun failed: %v", subject, o.Err())
	}
}

// BulkOutcome collects the per-PR outcomes of RerunAllFailed in order.
type BulkOutcome struct {
	Outcomes []RerunOutcome
}

func (b BulkOutcome) String() string {
	if len(b.Outcomes) == 0 {
		return "No failed PRs to rerun"
	}
	var ok, partial, failed, nothing int
	for _, o := range b.Outcomes {
		switch o.Kind {
		case OutcomeSuccess:
			ok++
		case OutcomePartial:
			partial++
		case OutcomeNothingToRerun:
			nothing++
		default:
			failed++
		}
	}
	summary := fmt.Sprintf("Reran %d PRs: %d ok, %d partial, %d failed", len(b.Outcomes), ok, partial, failed)
	if nothing > 0 {
		summary += fmt.Sprintf(", %d with nothing to rerun", nothing)
	}
	return summary
}

// Rerun triggers a rerun of every failed workflow run of one PR and waits for
// the result. A second call for the same PR while one is in flight returns
// ErrAlreadyInProgress without touching the network. When at least one run
// was triggered, the PR is refreshed after the settle delay.
func (e *Engine) Rerun(ctx context.Context, id string) (RerunOutcome, error) {
	var (
		rec      tracker.Record
		guardErr error
	)
	if err := e.do(ctx, func() { rec, guardErr = e.acquireRerun(id) }); err != nil {
		return RerunOutcome{}, err
	}
	if guardErr != nil {
		return RerunOutcome{}, guardErr
	}

	outcome := e.executeRerun(ctx, rec)
	e.logger.Info("rerun finished", "repo", rec.Repo, "pr", rec.Number,
		"outcome", outcome.Kind, "triggered", outcome.Triggered, "total", outcome.Total)
	e.post(func() { e.releaseRerun(id, outcome) })
	return outcome, nil
}

// RerunAllFailed reruns every PR whose derived status is failure, one after
// another. It is guarded against concurrent invocation; with no failed PRs it
// makes no network calls and returns an empty outcome.
func (e *Engine) RerunAllFailed(ctx context.Context) (BulkOutcome, error) {
	var (
		failed []tracker.Record
		busy   bool
	)
	err := e.do(ctx, func() {
		if e.rerunAllRunning {
			busy = true
			e.notify("Rerun of failed PRs already in progress")
			return
		}
		failed = e.store.WithStatus(cistatus.StatusFailure)
		if len(failed) == 0 {
			e.notify("No failed PRs to rerun")
			return
		}
		e.rerunAllRunning = true
		e.notify(fmt.Sprintf("Rerunning %d failed PRs…", len(failed)))
	})
	if err != nil {
		return BulkOutcome{}, err
	}
	if busy {
		return BulkOutcome{}, ErrAlreadyInProgress
	}
	if len(failed) == 0 {
		return BulkOutcome{}, nil
	}
	defer e.post(func() { e.rerunAllRunning = false })

	var bulk BulkOutcome
	for _, rec := range failed {
		outcome, err := e.Rerun(ctx, rec.ID)
		if err != nil {
			outcome = RerunOutcome{
				RecordID: rec.ID, Repo: rec.Repo, Number: rec.Number,
				Kind: OutcomeFailure, Errs: []error{err},
			}
		}
		bulk.Outcomes = append(bulk.Outcomes, outcome)
	}
	e.post(func() { e.notify(bulk.String()) })
	return bulk, nil
}

// acquireRerun sets the per-PR guard. Loop goroutine only.
func (e *Engine) acquireRerun(id string) (tracker.Record, error) {
	rec, ok := e.store.Get(id)
	if !ok {
		return tracker.Record{}, ErrNotFound
	}
	if e.rerunning[id] {
		return tracker.Record{}, fmt.Errorf("rerun %s: %w", rec.Key(), ErrAlreadyInProgress)
	}
	if e.client == nil {
		return tracker.Record{}, errTokenNotSet
	}
	e.rerunning[id] = true
	e.emitRecord(id)
	return rec, nil
}

// releaseRerun clears the guard and schedules the follow-up refresh.
// Loop goroutine only.
func (e *Engine) releaseRerun(id string, outcome RerunOutcome) {
	delete(e.rerunning, id)
	e.emitRecord(id)
	e.emit(Event{Kind: EventRerunFinished, RecordID: id, Text: outcome.String(), Outcome: &outcome})

	if outcome.Triggered == 0 {
		return
	}
	time.AfterFunc(e.opts.SettleDelay, func() {
		e.post(func() {
			if rec, ok := e.store.Get(id); ok {
				e.startRefresh(rec, nil)
			}
		})
	})
}

// executeRerun discovers the failed runs and triggers each in turn.
func (e *Engine) executeRerun(ctx context.Context, rec tracker.Record) RerunOutcome {
	outcome := RerunOutcome{RecordID: rec.ID, Repo: rec.Repo, Number: rec.Number}

	runIDs, err := github.FailedRunIDs(ctx, e.client, rec.Repo, rec.Number)
	if err != nil {
		outcome.Kind = OutcomeFailure
		outcome.Errs = []error{fmt.Errorf("discover failed runs: %w", err)}
		return outcome
	}
	if len(runIDs) == 0 {
		outcome.Kind = OutcomeNothingToRerun
		return outcome
	}

	outcome.Total = len(runIDs)
	for _, runID := range runIDs {
		if err := e.client.TriggerRerun(ctx, rec.Repo, runID); err != nil {
			e.logger.Warn("rerun trigger failed", "repo", rec.Repo, "run", runID, "err", err)
			outcome.Errs = append(outcome.Errs, fmt.Errorf("run %d: %w", runID, err))
			continue
		}
		outcome.Triggered++
	}

	switch {
	case outcome.Triggered == outcome.Total:
		outcome.Kind = OutcomeSuccess
	case outcome.Triggered > 0:
		outcome.Kind = OutcomePartial
	default:
		outcome.Kind = OutcomeFailure
	}
	return outcome
}
