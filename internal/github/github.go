package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	gh "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

const (
	checkRunsPerPage    = 100
	workflowRunsPerPage = 50
	logTailLines        = 300
)

// Options configures a Client.
type Options struct {
	Token string
	// BaseURL overrides https://api.github.com/ (tests, GHES).
	BaseURL string
	// HTTPClient is the transport used for API calls before auth is layered on
	// and for downloading redirected log archives.
	HTTPClient *http.Client
}

// Client is a typed wrapper over the GitHub REST endpoints prwatch needs.
// It holds no tracking state.
type Client struct {
	api      *gh.Client
	download *http.Client
	logger   *slog.Logger
}

func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, &ConfigurationError{Reason: "github token is not set"}
	}

	base := opts.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	api := gh.NewClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})))

	if opts.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("invalid api url %q: %v", opts.BaseURL, err)}
		}
		api.BaseURL = u
	}

	return &Client{api: api, download: base, logger: logger}, nil
}

type PullRequest struct {
	Number    int
	Title     string
	Author    string
	State     string // open|merged|closed
	HeadSHA   string
	Additions int
	Deletions int
	UpdatedAt time.Time
}

type CheckRun struct {
	ID         int64
	Name       string
	Status     string
	Conclusion string
	DetailsURL string
	AppName    string
}

type WorkflowRun struct {
	ID         int64
	Conclusion string
}

// SplitRepo splits "owner/name".
func SplitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", &ConfigurationError{Reason: fmt.Sprintf("invalid repository %q (want owner/name)", repo)}
	}
	return owner, name, nil
}

func (c *Client) GetPullRequest(ctx context.Context, repo string, number int) (*PullRequest, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("github get pull request", "repo", repo, "pr", number)

	pr, _, err := c.api.PullRequests.Get(ctx, owner, name, number)
	if err != nil {
		return nil, classify("pull request", err)
	}

	sha := pr.GetHead().GetSHA()
	if sha == "" {
		return nil, &DecodeError{Endpoint: "pull request", Err: fmt.Errorf("missing head.sha")}
	}

	state := pr.GetState()
	if pr.MergedAt != nil {
		state = "merged"
	}
	switch state {
	case "open", "merged", "closed":
	default:
		return nil, &DecodeError{Endpoint: "pull request", Err: fmt.Errorf("unexpected state %q", pr.GetState())}
	}

	return &PullRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		Author:    pr.GetUser().GetLogin(),
		State:     state,
		HeadSHA:   sha,
		Additions: pr.GetAdditions(),
		Deletions: pr.GetDeletions(),
		UpdatedAt: pr.GetUpdatedAt().Time,
	}, nil
}

// GetCheckRuns returns the first page (up to 100) of check-runs for a commit.
func (c *Client) GetCheckRuns(ctx context.Context, repo, sha string) ([]CheckRun, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("github list check-runs", "repo", repo, "sha", sha)

	res, _, err := c.api.Checks.ListCheckRunsForRef(ctx, owner, name, sha, &gh.ListCheckRunsOptions{
		ListOptions: gh.ListOptions{PerPage: checkRunsPerPage},
	})
	if err != nil {
		return nil, classify("check-runs", err)
	}

	runs := make([]CheckRun, 0, len(res.CheckRuns))
	for i, cr := range res.CheckRuns {
		if cr.ID == nil || cr.Name == nil || cr.Status == nil {
			return nil, &DecodeError{Endpoint: "check-runs", Err: fmt.Errorf("check_runs[%d]: missing id, name or status", i)}
		}
		runs = append(runs, CheckRun{
			ID:         cr.GetID(),
			Name:       cr.GetName(),
			Status:     cr.GetStatus(),
			Conclusion: cr.GetConclusion(),
			DetailsURL: cr.GetDetailsURL(),
			AppName:    cr.GetApp().GetName(),
		})
	}
	return runs, nil
}

// GetWorkflowRuns returns the first page (up to 50) of workflow runs for a head commit.
func (c *Client) GetWorkflowRuns(ctx context.Context, repo, sha string) ([]WorkflowRun, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("github list workflow runs", "repo", repo, "sha", sha)

	res, _, err := c.api.Actions.ListRepositoryWorkflowRuns(ctx, owner, name, &gh.ListWorkflowRunsOptions{
		HeadSHA:     sha,
		ListOptions: gh.ListOptions{PerPage: workflowRunsPerPage},
	})
	if err != nil {
		return nil, classify("workflow runs", err)
	}

	runs := make([]WorkflowRun, 0, len(res.WorkflowRuns))
	for i, wr := range res.WorkflowRuns {
		if wr.ID == nil {
			return nil, &DecodeError{Endpoint: "workflow runs", Err: fmt.Errorf("workflow_runs[%d]: missing id", i)}
		}
		runs = append(runs, WorkflowRun{ID: wr.GetID(), Conclusion: wr.GetConclusion()})
	}
	return runs, nil
}

// GetJobLogs downloads an Actions job log, strips ANSI escapes and keeps the
// last 300 lines.
func (c *Client) GetJobLogs(ctx context.Context, repo string, jobID int64) (string, error) {
	if jobID == 0 {
		return "", &ConfigurationError{Reason: "job id not available"}
	}
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return "", err
	}
	c.logger.Debug("github job logs", "repo", repo, "job", jobID)

	loc, resp, err := c.api.Actions.GetWorkflowJobLogs(ctx, owner, name, jobID, 1)
	if err != nil {
		cerr := classify("job logs", err)
		var ne *NetworkError
		if errors.As(cerr, &ne) && ne.Status == 0 && resp != nil && resp.StatusCode >= 400 {
			return "", httpMessage(resp.StatusCode, "")
		}
		return "", cerr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build log request: %w", err)
	}
	dl, err := c.download.Do(req)
	if err != nil {
		return "", classify("job logs", err)
	}
	defer dl.Body.Close()
	if dl.StatusCode < 200 || dl.StatusCode > 299 {
		return "", httpMessage(dl.StatusCode, "")
	}

	raw, err := io.ReadAll(dl.Body)
	if err != nil {
		return "", &NetworkError{Message: fmt.Sprintf("read job logs: %v", err)}
	}
	return TailLines(ansi.Strip(string(raw)), logTailLines), nil
}

// TriggerRerun asks GitHub to rerun the failed jobs of a workflow run.
func (c *Client) TriggerRerun(ctx context.Context, repo string, runID int64) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	c.logger.Debug("github rerun failed jobs", "repo", repo, "run", runID)

	_, err = c.api.Actions.RerunFailedJobsByID(ctx, owner, name, runID)
	if err == nil {
		return nil
	}
	err = classify("rerun", err)
	if isAlreadyRunning(err) {
		return &AlreadyRunningError{RunID: runID}
	}
	return err
}

// TailLines returns the last n newline-separated lines of s.
func TailLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
