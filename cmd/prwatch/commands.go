package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcin-skalski/prwatch/internal/cistatus"
	"github.com/marcin-skalski/prwatch/internal/daemon"
	"github.com/marcin-skalski/prwatch/internal/launcher"
	"github.com/marcin-skalski/prwatch/internal/tracker"
	"github.com/marcin-skalski/prwatch/internal/tui"
)

// session is a short-lived engine for one-shot commands. Logs go to the file
// only so stdout stays clean.
type session struct {
	*app
	ctx context.Context
}

func (c *CLI) openSession() (*session, func(), error) {
	a, err := c.newApp(true)
	if err != nil {
		return nil, nil, err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	a.start(ctx)
	return &session{app: a, ctx: ctx}, func() {
		stop()
		a.Close()
	}, nil
}

func (s *session) records() ([]tracker.Record, error) {
	snap, err := s.engine.Snapshot(s.ctx)
	if err != nil {
		return nil, err
	}
	return snap.Records, nil
}

func (s *session) find(target string) (tracker.Record, error) {
	records, err := s.records()
	if err != nil {
		return tracker.Record{}, err
	}
	return findRecord(records, target)
}

// refreshAll refreshes everything when a token is configured and waits.
func (s *session) refreshAll() error {
	if s.client == nil {
		return nil
	}
	_, err := s.engine.RefreshAll(s.ctx)
	return err
}

// AddCmd tracks pull requests.
type AddCmd struct {
	URLs []string `arg:"" help:"Pull request URLs (https://github.com/owner/name/pull/N)" name:"url"`
}

func (c *AddCmd) Run(cli *CLI) error {
	s, closeFn, err := cli.openSession()
	if err != nil {
		return err
	}
	defer closeFn()

	var added []string
	for _, u := range c.URLs {
		rec, ok, err := s.engine.AddURL(s.ctx, u)
		if err != nil {
			return fmt.Errorf("add %s: %w", u, err)
		}
		if !ok {
			fmt.Printf("%s is already tracked\n", rec.Key())
			continue
		}
		added = append(added, rec.ID)
	}
	if len(added) == 0 {
		return nil
	}
	if err := s.refreshAll(); err != nil {
		return err
	}

	records, err := s.records()
	if err != nil {
		return err
	}
	for _, id := range added {
		for _, r := range records {
			if r.ID == id {
				fmt.Printf("Tracking %s\n", describe(r))
			}
		}
	}
	return nil
}

// RemoveCmd stops tracking a pull request.
type RemoveCmd struct {
	Target string `arg:"" help:"Pull request URL or owner/name#number"`
}

func (c *RemoveCmd) Run(cli *CLI) error {
	s, closeFn, err := cli.openSession()
	if err != nil {
		return err
	}
	defer closeFn()

	rec, err := s.find(c.Target)
	if err != nil {
		return err
	}
	if err := s.engine.Remove(s.ctx, rec.ID); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", rec.Key())
	return nil
}

// ListCmd prints the tracked pull requests.
type ListCmd struct {
	Refresh bool `help:"Refresh from GitHub before listing" short:"r"`
}

func (c *ListCmd) Run(cli *CLI) error {
	s, closeFn, err := cli.openSession()
	if err != nil {
		return err
	}
	defer closeFn()

	if c.Refresh {
		if err := s.refreshAll(); err != nil {
			return err
		}
	}
	records, err := s.records()
	if err != nil {
		return err
	}
	writeList(os.Stdout, records, time.Now())
	return nil
}

// RefreshCmd refreshes every tracked pull request and prints the result.
type RefreshCmd struct{}

func (c *RefreshCmd) Run(cli *CLI) error {
	s, closeFn, err := cli.openSession()
	if err != nil {
		return err
	}
	defer closeFn()

	if s.client == nil {
		return errTokenRequired
	}
	if err := s.refreshAll(); err != nil {
		return err
	}
	records, err := s.records()
	if err != nil {
		return err
	}
	writeList(os.Stdout, records, time.Now())
	return nil
}

var errTokenRequired = errors.New("github token is not configured (github.token, GH_TOKEN or GITHUB_TOKEN)")

// RerunCmd reruns the failed workflow runs of one pull request.
type RerunCmd struct {
	Target string `arg:"" help:"Pull request URL or owner/name#number"`
}

func (c *RerunCmd) Run(cli *CLI) error {
	s, closeFn, err := cli.openSession()
	if err != nil {
		return err
	}
	defer closeFn()

	if s.client == nil {
		return errTokenRequired
	}
	rec, err := s.find(c.Target)
	if err != nil {
		return err
	}
	outcome, err := s.engine.Rerun(s.ctx, rec.ID)
	if err != nil {
		return err
	}
	fmt.Println(outcome.String())
	if outcome.Kind == daemon.OutcomeFailure {
		return outcome.Err()
	}
	return nil
}

// RerunFailedCmd reruns every pull request whose CI failed.
type RerunFailedCmd struct {
	NoRefresh bool `help:"Use the stored CI status instead of refreshing first"`
}

func (c *RerunFailedCmd) Run(cli *CLI) error {
	s, closeFn, err := cli.openSession()
	if err != nil {
		return err
	}
	defer closeFn()

	if s.client == nil {
		return errTokenRequired
	}
	if !c.NoRefresh {
		if err := s.refreshAll(); err != nil {
			return err
		}
	}
	bulk, err := s.engine.RerunAllFailed(s.ctx)
	if err != nil {
		return err
	}
	for _, o := range bulk.Outcomes {
		fmt.Println(o.String())
	}
	fmt.Println(bulk.String())
	return nil
}

// LogsCmd prints the tail of a job log.
type LogsCmd struct {
	Target string `arg:"" help:"Pull request URL or owner/name#number"`
	Job    string `arg:"" optional:"" help:"Job name (default: first failed job)"`
}

func (c *LogsCmd) Run(cli *CLI) error {
	s, closeFn, err := cli.openSession()
	if err != nil {
		return err
	}
	defer closeFn()

	if s.client == nil {
		return errTokenRequired
	}
	rec, err := s.find(c.Target)
	if err != nil {
		return err
	}
	job, err := pickJob(rec, c.Job)
	if err != nil {
		return err
	}
	logs, err := s.client.GetJobLogs(s.ctx, rec.Repo, job.JobID)
	if err != nil {
		return fmt.Errorf("%s %q: %w", rec.Key(), job.Name, err)
	}
	fmt.Print(logs)
	return nil
}

// OpenCLICmd diagnoses a failed job and starts the assistant CLI with the
// result.
type OpenCLICmd struct {
	Target    string `arg:"" help:"Pull request URL or owner/name#number"`
	Job       string `help:"Job name (default: first failed job)" short:"j"`
	Secondary bool   `help:"Use cli.secondary instead of cli.primary" short:"s"`
}

func (c *OpenCLICmd) Run(cli *CLI) error {
	s, closeFn, err := cli.openSession()
	if err != nil {
		return err
	}
	defer closeFn()

	rec, err := s.find(c.Target)
	if err != nil {
		return err
	}
	job, err := pickJob(rec, c.Job)
	if err != nil {
		return err
	}
	if job.Status != cistatus.JobFailure {
		return fmt.Errorf("job %q did not fail", job.Name)
	}

	fmt.Printf("Diagnosing %s %q…\n", rec.Key(), job.Name)
	d, err := s.diagnose(s.ctx, rec, job)
	if err != nil {
		return fmt.Errorf("diagnose: %w", err)
	}
	if d.AnalysisErr != nil {
		fmt.Printf("Analysis unavailable (%v); passing the raw log instead\n", d.AnalysisErr)
	}

	command := s.cfg.CLI.Primary
	if c.Secondary {
		command = s.cfg.CLI.Secondary
	}
	req := launcher.Request{
		Template: command.Template,
		Context:  d.Context,
		Repo:     rec.Repo,
		Number:   rec.Number,
		PRURL:    rec.URL(),
	}

	if s.launcher.UseTmux() {
		name, err := s.launcher.Detached(s.ctx, req)
		if err != nil {
			return fmt.Errorf("%s: %w", command.Label, err)
		}
		fmt.Printf("%s started in tmux session %s\n", command.Label, name)
		return nil
	}

	cmd, err := s.launcher.Command(s.ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", command.Label, err)
	}
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", command.Label, err)
	}
	return nil
}

// describe renders one record on a single line.
func describe(r tracker.Record) string {
	line := fmt.Sprintf("%s %s [%s] %q @%s", r.Key(), r.Status(), r.State, r.Title, r.Author)
	if r.LastError != "" {
		line += " (error: " + r.LastError + ")"
	}
	return line
}

// writeList prints records grouped by repository.
func writeList(w io.Writer, records []tracker.Record, now time.Time) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No pull requests tracked.")
		return
	}
	for _, g := range tracker.GroupByRepo(records) {
		fmt.Fprintf(w, "%s (%d)\n", g.Repo, len(g.Records))
		for _, r := range g.Records {
			updated := "never"
			if !r.LastUpdated.IsZero() {
				updated = tui.FormatTimeAgo(r.LastUpdated, now)
			}
			fmt.Fprintf(w, "  #%-6d %-8s %-7s %s (@%s, %s)\n",
				r.Number, r.Status(), r.State, r.Title, r.Author, updated)
			for _, j := range r.Jobs {
				if j.Status == cistatus.JobFailure {
					fmt.Fprintf(w, "           ✗ %s\n", j.Name)
				}
			}
			if r.LastError != "" {
				fmt.Fprintf(w, "           ⚠ %s\n", r.LastError)
			}
		}
	}
}
