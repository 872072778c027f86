package worker

import (
	"context"
	"fmt"

	"github.com/marcin-skalski/prwatch/internal/analyzer"
)

func (w *Worker) fetchLogs(ctx context.Context, d *Diagnosis) error {
	logs, err := w.logs.GetJobLogs(ctx, w.repo, w.job.JobID)
	if err != nil {
		return err
	}
	d.Logs = logs
	d.Context = FallbackContext(w.job.Name, logs)
	w.logger.Debug("logs fetched", "bytes", len(logs))
	return nil
}

func (w *Worker) analyze(ctx context.Context, d *Diagnosis) {
	if w.analyzer == nil {
		d.AnalysisErr = analyzer.ErrNotConfigured
		return
	}

	summary, err := w.analyzer.Analyze(ctx, w.job.Name, d.Logs)
	if err != nil {
		w.logger.Warn("analysis failed, keeping raw log context", "error", err)
		d.AnalysisErr = err
		return
	}
	d.Analysis = summary
	d.Context = summary
}

// FallbackContext is the assistant prompt used when no analysis is available.
func FallbackContext(jobName, logs string) string {
	return fmt.Sprintf("CI job %q failed. Analyze the root cause and propose concrete fixes.\n\n%s", jobName, logs)
}
