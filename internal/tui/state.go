package tui

import (
	"context"
	"time"

	"github.com/marcin-skalski/prwatch/internal/cistatus"
	"github.com/marcin-skalski/prwatch/internal/daemon"
	"github.com/marcin-skalski/prwatch/internal/launcher"
	"github.com/marcin-skalski/prwatch/internal/tracker"
	"github.com/marcin-skalski/prwatch/internal/worker"
)

// Controller is the engine surface the dashboard drives.
type Controller interface {
	Snapshot(ctx context.Context) (daemon.Snapshot, error)
	Subscribe() (<-chan daemon.Event, func())
	AddURL(ctx context.Context, text string) (tracker.Record, bool, error)
	Remove(ctx context.Context, id string) error
	RefreshAll(ctx context.Context) (bool, error)
	Rerun(ctx context.Context, id string) (daemon.RerunOutcome, error)
	RerunAllFailed(ctx context.Context) (daemon.BulkOutcome, error)
}

// DiagnoseFunc runs a diagnosis worker for one failed job.
type DiagnoseFunc func(ctx context.Context, rec tracker.Record, job cistatus.Job) (*worker.Diagnosis, error)

// CLICommand is one configured assistant CLI.
type CLICommand struct {
	Label    string
	Template string
}

type Deps struct {
	Engine          Controller
	Diagnose        DiagnoseFunc
	Launcher        *launcher.Launcher
	Commands        []CLICommand
	RefreshInterval time.Duration
	// Clipboard defaults to the system clipboard.
	Clipboard Clipboard
}

// Clipboard reads and writes the system clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type tickMsg time.Time

type snapshotMsg struct {
	snap daemon.Snapshot
	err  error
}

type eventMsg struct {
	ev daemon.Event
	ok bool
}

// statusMsg sets the transient status line.
type statusMsg struct {
	text string
	err  error
}

// diagnosisMsg carries a finished diagnosis tagged with the request sequence.
type diagnosisMsg struct {
	seq uint64
	d   *worker.Diagnosis
	err error
}
