package cistatus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapJobStatus(t *testing.T) {
	tests := []struct {
		name string
		cr   CheckRun
		want JobStatus
	}{
		{"queued", CheckRun{Status: "queued"}, JobRunning},
		{"in progress ignores conclusion", CheckRun{Status: "in_progress", Conclusion: "failure"}, JobRunning},
		{"success", CheckRun{Status: "completed", Conclusion: "success"}, JobSuccess},
		{"neutral", CheckRun{Status: "completed", Conclusion: "neutral"}, JobSuccess},
		{"failure", CheckRun{Status: "completed", Conclusion: "failure"}, JobFailure},
		{"timed out", CheckRun{Status: "completed", Conclusion: "timed_out"}, JobFailure},
		{"cancelled", CheckRun{Status: "completed", Conclusion: "cancelled"}, JobSkipped},
		{"skipped", CheckRun{Status: "completed", Conclusion: "skipped"}, JobSkipped},
		{"action required", CheckRun{Status: "completed", Conclusion: "action_required"}, JobSkipped},
		{"null conclusion", CheckRun{Status: "completed"}, JobSkipped},
		{"unknown conclusion", CheckRun{Status: "completed", Conclusion: "stale"}, JobSkipped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapJobStatus(tt.cr))
		})
	}
}

func jobs(statuses ...JobStatus) []Job {
	out := make([]Job, len(statuses))
	for i, s := range statuses {
		out[i] = Job{Name: string(s), Status: s}
	}
	return out
}

func TestDeriveCIStatus(t *testing.T) {
	assert.Equal(t, StatusPending, DeriveCIStatus(nil))
	assert.Equal(t, StatusPending, DeriveCIStatus([]Job{}))
	assert.Equal(t, StatusSuccess, DeriveCIStatus(jobs(JobSuccess, JobSkipped)))
	assert.Equal(t, StatusSuccess, DeriveCIStatus(jobs(JobPending)))
	assert.Equal(t, StatusFailure, DeriveCIStatus(jobs(JobSuccess, JobFailure, JobSkipped)))
	assert.Equal(t, StatusRunning, DeriveCIStatus(jobs(JobFailure, JobRunning)))
	assert.Equal(t, StatusRunning, DeriveCIStatus(jobs(JobRunning, JobFailure)))
}

// Every combination of up to three jobs: running wins, then failure.
func TestDeriveCIStatusExhaustive(t *testing.T) {
	all := []JobStatus{JobSuccess, JobFailure, JobRunning, JobSkipped, JobPending}
	var check func(prefix []JobStatus, depth int)
	check = func(prefix []JobStatus, depth int) {
		if len(prefix) > 0 {
			hasRunning, hasFailure := false, false
			for _, j := range prefix {
				hasRunning = hasRunning || j == JobRunning
				hasFailure = hasFailure || j == JobFailure
			}
			got := DeriveCIStatus(jobs(prefix...))
			switch {
			case hasRunning:
				assert.Equal(t, StatusRunning, got, "%v", prefix)
			case hasFailure:
				assert.Equal(t, StatusFailure, got, "%v", prefix)
			default:
				assert.Equal(t, StatusSuccess, got, "%v", prefix)
			}
		}
		if depth == 0 {
			return
		}
		for _, j := range all {
			check(append(append([]JobStatus(nil), prefix...), j), depth-1)
		}
	}
	check(nil, 3)
}

func TestMappedExample(t *testing.T) {
	mapped := []JobStatus{
		MapJobStatus(CheckRun{Status: "completed", Conclusion: "failure"}),
		MapJobStatus(CheckRun{Status: "in_progress"}),
	}
	assert.Equal(t, []JobStatus{JobFailure, JobRunning}, mapped)
	assert.Equal(t, StatusRunning, DeriveCIStatus(jobs(mapped...)))
}

func TestIsFailedConclusion(t *testing.T) {
	for _, c := range []string{"failure", "timed_out", "cancelled", "action_required"} {
		assert.True(t, IsFailedConclusion(c), c)
	}
	for _, c := range []string{"", "success", "neutral", "skipped", "stale"} {
		assert.False(t, IsFailedConclusion(c), c)
	}
}

func TestExtractRunID(t *testing.T) {
	id, ok := ExtractRunID("https://host/o/r/actions/runs/555/job/9999")
	assert.True(t, ok)
	assert.Equal(t, int64(555), id)

	id, ok = ExtractRunID("https://github.com/o/r/actions/runs/42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	id, ok = ExtractRunID("https://github.com/o/r/actions/runs/42?check_suite_focus=true")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = ExtractRunID("https://host/other")
	assert.False(t, ok)

	_, ok = ExtractRunID("https://host/o/r/actions/runs/12abc")
	assert.False(t, ok)
}

func TestExtractJobID(t *testing.T) {
	id, ok := ExtractJobID("https://github.com/o/r/actions/runs/555/job/9999")
	assert.True(t, ok)
	assert.Equal(t, int64(9999), id)

	_, ok = ExtractJobID("https://ci.example.com/build/1")
	assert.False(t, ok)
}
