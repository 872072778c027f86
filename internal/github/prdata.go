package github

import (
	"context"
	"fmt"

	"github.com/marcin-skalski/prwatch/internal/cistatus"
)

// Reader is the read side of Client. The compound lookups below only need
// these calls, so callers can substitute fakes.
type Reader interface {
	GetPullRequest(ctx context.Context, repo string, number int) (*PullRequest, error)
	GetCheckRuns(ctx context.Context, repo, sha string) ([]CheckRun, error)
	GetWorkflowRuns(ctx context.Context, repo, sha string) ([]WorkflowRun, error)
}

var _ Reader = (*Client)(nil)

// PRData is a pull request together with its mapped CI jobs.
type PRData struct {
	PullRequest
	Jobs   []cistatus.Job
	Status cistatus.Status
}

// FetchPRData loads PR metadata, then the check-runs of its head commit.
func FetchPRData(ctx context.Context, r Reader, repo string, number int) (*PRData, error) {
	pr, err := r.GetPullRequest(ctx, repo, number)
	if err != nil {
		return nil, fmt.Errorf("get PR #%d: %w", number, err)
	}

	checks, err := r.GetCheckRuns(ctx, repo, pr.HeadSHA)
	if err != nil {
		return nil, fmt.Errorf("check-runs for PR #%d: %w", number, err)
	}

	jobs := make([]cistatus.Job, 0, len(checks))
	for _, cr := range checks {
		job := cistatus.Job{
			Name:   cr.Name,
			Status: cistatus.MapJobStatus(cistatus.CheckRun{Status: cr.Status, Conclusion: cr.Conclusion}),
		}
		if id, ok := cistatus.ExtractJobID(cr.DetailsURL); ok {
			job.JobID = id
		}
		jobs = append(jobs, job)
	}

	return &PRData{
		PullRequest: *pr,
		Jobs:        jobs,
		Status:      cistatus.DeriveCIStatus(jobs),
	}, nil
}

// RepresentativeRunID picks the workflow run shown for a PR: the first CI
// check-run linking a run, else the first failed workflow run of the head
// commit, else its first workflow run.
func RepresentativeRunID(ctx context.Context, r Reader, repo string, number int) (int64, bool, error) {
	pr, err := r.GetPullRequest(ctx, repo, number)
	if err != nil {
		return 0, false, fmt.Errorf("get PR #%d: %w", number, err)
	}

	checks, err := r.GetCheckRuns(ctx, repo, pr.HeadSHA)
	if err != nil {
		return 0, false, fmt.Errorf("check-runs for PR #%d: %w", number, err)
	}
	for _, cr := range checks {
		if cr.AppName != cistatus.CIApp || cr.DetailsURL == "" {
			continue
		}
		if id, ok := cistatus.ExtractRunID(cr.DetailsURL); ok {
			return id, true, nil
		}
	}

	runs, err := r.GetWorkflowRuns(ctx, repo, pr.HeadSHA)
	if err != nil {
		return 0, false, fmt.Errorf("workflow runs for PR #%d: %w", number, err)
	}
	if len(runs) == 0 {
		return 0, false, nil
	}
	for _, wr := range runs {
		if cistatus.IsFailedConclusion(wr.Conclusion) {
			return wr.ID, true, nil
		}
	}
	return runs[0].ID, true, nil
}

// FailedRunIDs discovers the failed workflow runs of a PR's head commit.
// Check-run detail links are preferred; the workflow-run listing is only
// consulted when they yield nothing. Ids are deduplicated in discovery order.
func FailedRunIDs(ctx context.Context, r Reader, repo string, number int) ([]int64, error) {
	pr, err := r.GetPullRequest(ctx, repo, number)
	if err != nil {
		return nil, fmt.Errorf("get PR #%d: %w", number, err)
	}

	checks, err := r.GetCheckRuns(ctx, repo, pr.HeadSHA)
	if err != nil {
		return nil, fmt.Errorf("check-runs for PR #%d: %w", number, err)
	}

	seen := make(map[int64]bool)
	var ids []int64
	add := func(id int64) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, cr := range checks {
		if cr.AppName != cistatus.CIApp || cr.DetailsURL == "" {
			continue
		}
		if !cistatus.IsFailedConclusion(cr.Conclusion) {
			continue
		}
		if id, ok := cistatus.ExtractRunID(cr.DetailsURL); ok {
			add(id)
		}
	}
	if len(ids) > 0 {
		return ids, nil
	}

	runs, err := r.GetWorkflowRuns(ctx, repo, pr.HeadSHA)
	if err != nil {
		return nil, fmt.Errorf("workflow runs for PR #%d: %w", number, err)
	}
	for _, wr := range runs {
		if cistatus.IsFailedConclusion(wr.Conclusion) {
			add(wr.ID)
		}
	}
	return ids, nil
}
