// Package cistatus turns raw check-run data into job and PR level CI statuses.
package cistatus

import (
	"regexp"
	"strconv"
)

// JobStatus is the status of a single CI job.
type JobStatus string

const (
	JobSuccess JobStatus = "success"
	JobFailure JobStatus = "failure"
	JobRunning JobStatus = "running"
	JobSkipped JobStatus = "skipped"
	JobPending JobStatus = "pending"
)

// Status is the aggregated CI status of a pull request.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusPending Status = "pending"
	StatusRunning Status = "running"
)

// Job is one CI job of a pull request. JobID is zero when the check-run does
// not link to an Actions job, in which case logs cannot be fetched.
type Job struct {
	Name   string    `json:"name"`
	Status JobStatus `json:"status"`
	JobID  int64     `json:"jobId,omitempty"`
}

// CIApp is the reporting app name of GitHub Actions check-runs.
const CIApp = "GitHub Actions"

// CheckRun is the subset of a check-run needed to map it to a job status.
type CheckRun struct {
	Status     string // queued|in_progress|completed
	Conclusion string // empty when the API reports null
}

// MapJobStatus maps a check-run to a job status. Unknown conclusions,
// including a null conclusion on a completed run, map to skipped.
func MapJobStatus(cr CheckRun) JobStatus {
	if cr.Status == "queued" || cr.Status == "in_progress" {
		return JobRunning
	}
	switch cr.Conclusion {
	case "success", "neutral":
		return JobSuccess
	case "failure", "timed_out":
		return JobFailure
	default:
		return JobSkipped
	}
}

// DeriveCIStatus aggregates job statuses. Running dominates failure.
func DeriveCIStatus(jobs []Job) Status {
	if len(jobs) == 0 {
		return StatusPending
	}
	failed := false
	for _, j := range jobs {
		switch j.Status {
		case JobRunning:
			return StatusRunning
		case JobFailure:
			failed = true
		}
	}
	if failed {
		return StatusFailure
	}
	return StatusSuccess
}

// IsFailedConclusion reports whether a conclusion makes a run eligible for rerun.
func IsFailedConclusion(conclusion string) bool {
	switch conclusion {
	case "failure", "timed_out", "cancelled", "action_required":
		return true
	}
	return false
}

var (
	runIDPattern = regexp.MustCompile(`/actions/runs/(\d+)(?:/job/\d+)?(?:[/?]|$)`)
	jobIDPattern = regexp.MustCompile(`/job/(\d+)`)
)

// ExtractRunID returns the workflow run id embedded in a check-run detail link.
func ExtractRunID(detailURL string) (int64, bool) {
	return matchID(runIDPattern, detailURL)
}

// ExtractJobID returns the Actions job id embedded in a check-run detail link.
func ExtractJobID(detailURL string) (int64, bool) {
	return matchID(jobIDPattern, detailURL)
}

func matchID(re *regexp.Regexp, s string) (int64, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
