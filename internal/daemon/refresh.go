package daemon

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/marcin-skalski/prwatch/internal/github"
	"github.com/marcin-skalski/prwatch/internal/tracker"
)

// Refresh re-fetches one record in the background.
func (e *Engine) Refresh(ctx context.Context, id string) error {
	var found bool
	err := e.do(ctx, func() {
		rec, ok := e.store.Get(id)
		if !ok {
			return
		}
		found = true
		e.startRefresh(rec, nil)
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// RefreshAll refreshes every record and waits until all results are merged.
// A call made while another bulk refresh is running is ignored and reports
// false.
func (e *Engine) RefreshAll(ctx context.Context) (bool, error) {
	var finished chan struct{}
	err := e.do(ctx, func() {
		switch {
		case e.refreshingAll:
			e.notify("Refresh already in progress")
			return
		case e.client == nil:
			e.notify("GitHub token is not configured")
			return
		case e.store.Len() == 0:
			return
		}

		e.refreshingAll = true
		finished = make(chan struct{})
		e.notify("Refreshing all PRs…")

		var pending sync.WaitGroup
		for _, rec := range e.store.List() {
			e.startRefresh(rec, &pending)
		}
		e.spawn(func(context.Context) {
			pending.Wait()
			e.post(func() {
				e.refreshingAll = false
				e.notify("Refresh complete")
				close(finished)
			})
		})
	})
	if err != nil || finished == nil {
		return false, err
	}

	select {
	case <-finished:
		return true, nil
	case <-ctx.Done():
		return true, ctx.Err()
	case <-e.done:
		return true, ErrStopped
	}
}

// refreshEach is the scheduled refresh. It is silent when no token is set.
func (e *Engine) refreshEach() {
	if e.client == nil || e.store.Len() == 0 {
		return
	}
	for _, rec := range e.store.List() {
		e.startRefresh(rec, nil)
	}
}

// startRefresh marks rec loading and fetches it on a worker goroutine. The
// result is merged on the loop; results older than one already merged are
// dropped by the store. Loop goroutine only.
func (e *Engine) startRefresh(rec tracker.Record, pending *sync.WaitGroup) {
	seq, ok := e.store.Begin(rec.ID)
	if !ok {
		return
	}
	e.emitRecord(rec.ID)

	if e.client == nil {
		e.applyPatch(rec.ID, tracker.Patch{Err: errTokenNotSet, Seq: seq})
		return
	}

	if pending != nil {
		pending.Add(1)
	}
	e.spawn(func(ctx context.Context) {
		if pending != nil {
			defer pending.Done()
		}
		patch := e.fetch(ctx, rec.Repo, rec.Number)
		patch.Seq = seq
		e.post(func() { e.applyPatch(rec.ID, patch) })
	})
}

// fetch loads PR data and the representative run concurrently.
func (e *Engine) fetch(ctx context.Context, repo string, number int) tracker.Patch {
	var (
		data   *github.PRData
		runID  int64
		hasRun bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := github.FetchPRData(gctx, e.client, repo, number)
		data = d
		return err
	})
	g.Go(func() error {
		id, ok, err := github.RepresentativeRunID(gctx, e.client, repo, number)
		runID, hasRun = id, ok
		return err
	})
	if err := g.Wait(); err != nil {
		e.logger.Warn("refresh failed", "repo", repo, "pr", number, "err", err)
		return tracker.Patch{Err: err}
	}

	if !hasRun {
		runID = 0
	}
	state := tracker.State(data.State)
	jobs := data.Jobs
	updated := data.UpdatedAt
	return tracker.Patch{
		Title:       &data.Title,
		Author:      &data.Author,
		State:       &state,
		Jobs:        &jobs,
		LastUpdated: &updated,
		Additions:   &data.Additions,
		Deletions:   &data.Deletions,
		RunID:       &runID,
	}
}

// applyPatch merges a completed refresh. Loop goroutine only.
func (e *Engine) applyPatch(id string, patch tracker.Patch) {
	if !e.store.Merge(id, patch) {
		e.logger.Debug("discarded refresh result", "id", id, "seq", patch.Seq)
		return
	}
	e.save()
	e.emitRecord(id)
}
