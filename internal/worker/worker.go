// Package worker diagnoses one failed CI job: it fetches the job log, asks the
// analyzer for a root-cause summary and assembles the context handed to an
// external assistant CLI.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/marcin-skalski/prwatch/internal/cistatus"
)

// LogSource fetches the tail of a job log.
type LogSource interface {
	GetJobLogs(ctx context.Context, repo string, jobID int64) (string, error)
}

// Analyzer turns a job log into a diagnosis.
type Analyzer interface {
	Analyze(ctx context.Context, jobName, logs string) (string, error)
}

type stage int

const (
	stageFetchLogs stage = iota
	stageAnalyze
	stageDone
)

// Diagnosis is the result of one worker run.
type Diagnosis struct {
	Repo   string
	Number int
	Job    cistatus.Job
	Logs   string
	// Analysis is the AI summary; empty when AnalysisErr is set.
	Analysis    string
	AnalysisErr error
	// Context is what gets passed to the assistant CLI: the analysis when
	// available, else the raw-log fallback.
	Context string
}

type Worker struct {
	repo     string
	number   int
	job      cistatus.Job
	logs     LogSource
	analyzer Analyzer
	logger   *slog.Logger
}

// New builds a worker for one job. analyzer may be nil, in which case the
// diagnosis carries the raw-log context only.
func New(repo string, number int, job cistatus.Job, logs LogSource, analyzer Analyzer, logger *slog.Logger) *Worker {
	return &Worker{
		repo:     repo,
		number:   number,
		job:      job,
		logs:     logs,
		analyzer: analyzer,
		logger:   logger.With("repo", repo, "pr", number, "job", job.Name),
	}
}

// Run performs the diagnosis. A cancelled run returns ctx.Err() and no result.
func (w *Worker) Run(ctx context.Context) (*Diagnosis, error) {
	w.logger.Info("diagnosis started", "job_id", w.job.JobID)

	d := &Diagnosis{Repo: w.repo, Number: w.number, Job: w.job}

	for s := stageFetchLogs; s != stageDone; s++ {
		select {
		case <-ctx.Done():
			w.logger.Info("diagnosis cancelled", "stage", stageString(s))
			return nil, ctx.Err()
		default:
		}

		switch s {
		case stageFetchLogs:
			if err := w.fetchLogs(ctx, d); err != nil {
				return nil, fmt.Errorf("fetch logs: %w", err)
			}
		case stageAnalyze:
			w.analyze(ctx, d)
		}
	}

	if err := ctx.Err(); err != nil {
		w.logger.Info("diagnosis cancelled", "stage", stageString(stageDone))
		return nil, err
	}

	w.logger.Info("diagnosis finished", "analysed", d.AnalysisErr == nil)
	return d, nil
}

func stageString(s stage) string {
	switch s {
	case stageFetchLogs:
		return "fetch_logs"
	case stageAnalyze:
		return "analyze"
	case stageDone:
		return "done"
	default:
		return "unknown"
	}
}
