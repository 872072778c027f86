// Package tracker holds the ordered set of tracked pull requests.
package tracker

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/marcin-skalski/prwatch/internal/cistatus"
)

// State is the lifecycle state of a pull request.
type State string

const (
	StateOpen   State = "open"
	StateMerged State = "merged"
	StateClosed State = "closed"
)

// Record is one tracked pull request. (Repo, Number) is unique within a Store.
//
// LastError, RunID and IsLoading are transient and never persisted.
type Record struct {
	ID          string         `json:"id"`
	Repo        string         `json:"repo"`
	Number      int            `json:"number"`
	Title       string         `json:"title"`
	Author      string         `json:"author"`
	State       State          `json:"state"`
	Jobs        []cistatus.Job `json:"jobs"`
	LastUpdated time.Time      `json:"lastUpdated"`
	Additions   *int           `json:"additions,omitempty"`
	Deletions   *int           `json:"deletions,omitempty"`

	RunID     *int64 `json:"-"`
	LastError string `json:"-"`
	IsLoading bool   `json:"-"`

	issued  uint64
	applied uint64
}

// Status is the CI status derived from Jobs. It is computed on every call so
// it can never drift from the job list.
func (r Record) Status() cistatus.Status {
	return cistatus.DeriveCIStatus(r.Jobs)
}

// Key returns "owner/name#number".
func (r Record) Key() string {
	return fmt.Sprintf("%s#%d", r.Repo, r.Number)
}

// URL returns the pull request's web address.
func (r Record) URL() string {
	return fmt.Sprintf("https://github.com/%s/pull/%d", r.Repo, r.Number)
}

func (r Record) clone() Record {
	c := r
	if r.Jobs != nil {
		c.Jobs = append([]cistatus.Job(nil), r.Jobs...)
	}
	if r.Additions != nil {
		v := *r.Additions
		c.Additions = &v
	}
	if r.Deletions != nil {
		v := *r.Deletions
		c.Deletions = &v
	}
	if r.RunID != nil {
		v := *r.RunID
		c.RunID = &v
	}
	return c
}

// Patch is a field-wise update. Nil fields leave the record untouched.
type Patch struct {
	Title       *string
	Author      *string
	State       *State
	Jobs        *[]cistatus.Job
	LastUpdated *time.Time
	Additions   *int
	Deletions   *int
	// RunID set to 0 clears the representative run.
	RunID *int64
	// Err is the outcome of the operation that produced the patch: nil clears
	// LastError, non-nil records it.
	Err error
	// Seq tags the patch with the sequence returned by Store.Begin. Zero means
	// untagged; untagged patches are always applied.
	Seq uint64
}

var prURLPattern = regexp.MustCompile(`github\.com/([^/\s]+/[^/\s]+)/pull/(\d+)`)

// ParsePRURL extracts (owner/name, number) from a GitHub pull request link.
func ParsePRURL(text string) (string, int, bool) {
	m := prURLPattern.FindStringSubmatch(text)
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil || n <= 0 {
		return "", 0, false
	}
	return m[1], n, true
}
