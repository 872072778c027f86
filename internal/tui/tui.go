package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/marcin-skalski/prwatch/internal/cistatus"
	"github.com/marcin-skalski/prwatch/internal/daemon"
	"github.com/marcin-skalski/prwatch/internal/launcher"
	"github.com/marcin-skalski/prwatch/internal/tracker"
	"github.com/marcin-skalski/prwatch/internal/worker"
)

type viewMode int

const (
	viewModeList viewMode = iota
	viewModeDetail
	viewModeAdd
	viewModeFilter
)

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

type Model struct {
	deps        Deps
	snapshot    daemon.Snapshot
	events      <-chan daemon.Event
	unsubscribe func()

	mode       viewMode
	selectedID string
	filter     string
	input      textinput.Model
	status     string
	statusErr  bool
	width      int
	height     int

	// Detail view.
	jobIdx       int
	scrollOffset int
	diagSeq      uint64
	diagRunning  bool
	diagCancel   context.CancelFunc
	diagnosis    *worker.Diagnosis
	diagErr      error
}

func NewModel(deps Deps) Model {
	if deps.RefreshInterval <= 0 {
		deps.RefreshInterval = time.Second
	}
	if deps.Clipboard == nil {
		deps.Clipboard = systemClipboard{}
	}
	events, unsubscribe := deps.Engine.Subscribe()

	input := textinput.New()
	input.CharLimit = 512
	input.Width = 60

	return Model{
		deps:        deps,
		events:      events,
		unsubscribe: unsubscribe,
		mode:        viewModeList,
		input:       input,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadSnapshot(m.deps.Engine),
		waitForEvent(m.events),
		tickCmd(m.deps.RefreshInterval),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(loadSnapshot(m.deps.Engine), tickCmd(m.deps.RefreshInterval))

	case snapshotMsg:
		if msg.err != nil {
			m.setStatus("", msg.err)
			return m, nil
		}
		m.snapshot = msg.snap
		m.clampSelection()
		return m, nil

	case eventMsg:
		if !msg.ok {
			return m, nil
		}
		switch msg.ev.Kind {
		case daemon.EventNotice:
			m.setStatus(msg.ev.Text, nil)
		case daemon.EventRerunFinished:
			m.status = msg.ev.Text
			m.statusErr = msg.ev.Outcome != nil && msg.ev.Outcome.Kind != daemon.OutcomeSuccess
		}
		return m, tea.Batch(loadSnapshot(m.deps.Engine), waitForEvent(m.events))

	case statusMsg:
		m.setStatus(msg.text, msg.err)
		return m, loadSnapshot(m.deps.Engine)

	case diagnosisMsg:
		if msg.seq != m.diagSeq {
			return m, nil
		}
		m.diagRunning = false
		m.diagCancel = nil
		if errors.Is(msg.err, context.Canceled) {
			return m, nil
		}
		m.diagnosis, m.diagErr = msg.d, msg.err
		m.scrollOffset = 0
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case viewModeAdd:
			return m.updateAdd(msg)
		case viewModeFilter:
			return m.updateFilter(msg)
		case viewModeDetail:
			return m.updateDetail(msg)
		default:
			return m.updateList(msg)
		}
	}

	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.rows()
	idx := indexOf(rows, m.selectedID)

	switch msg.String() {
	case "q", "ctrl+c":
		return m.quit()
	case "up", "k":
		if idx > 0 {
			m.selectedID = rows[idx-1].ID
		}
	case "down", "j":
		if idx >= 0 && idx < len(rows)-1 {
			m.selectedID = rows[idx+1].ID
		}
	case "home", "g":
		if len(rows) > 0 {
			m.selectedID = rows[0].ID
		}
	case "end", "G":
		if len(rows) > 0 {
			m.selectedID = rows[len(rows)-1].ID
		}
	case "a":
		m.mode = viewModeAdd
		m.input.Reset()
		m.input.Placeholder = "https://github.com/owner/repo/pull/123"
		return m, m.input.Focus()
	case "p":
		return m, pasteAdd(m.deps.Engine, m.deps.Clipboard)
	case "/":
		m.mode = viewModeFilter
		m.input.Reset()
		m.input.Placeholder = "filter"
		m.input.SetValue(m.filter)
		return m, m.input.Focus()
	case "esc":
		m.filter = ""
	case "r":
		return m, refreshAll(m.deps.Engine)
	case "x":
		if idx >= 0 {
			return m, rerun(m.deps.Engine, rows[idx])
		}
	case "X":
		return m, rerunAllFailed(m.deps.Engine)
	case "d", "delete":
		if idx >= 0 {
			return m, remove(m.deps.Engine, rows[idx])
		}
	case "enter", " ":
		if idx >= 0 {
			m.openDetail(rows[idx])
		}
	}
	return m, nil
}

func (m Model) updateAdd(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m.quit()
	case "esc":
		m.mode = viewModeList
		m.input.Blur()
		return m, nil
	case "enter":
		text := m.input.Value()
		m.mode = viewModeList
		m.input.Blur()
		return m, addURL(m.deps.Engine, text)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m.quit()
	case "esc":
		m.filter = ""
		m.mode = viewModeList
		m.input.Blur()
		m.clampSelection()
		return m, nil
	case "enter":
		m.mode = viewModeList
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.filter = m.input.Value()
	m.clampSelection()
	return m, cmd
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rec, ok := m.selected()
	if !ok {
		m.cancelDiagnosis()
		m.mode = viewModeList
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m.quit()
	case "esc":
		m.cancelDiagnosis()
		m.mode = viewModeList
	case "up", "k":
		if m.jobIdx > 0 {
			m.jobIdx--
		}
	case "down", "j":
		if m.jobIdx < len(rec.Jobs)-1 {
			m.jobIdx++
		}
	case "pgup":
		m.scrollOffset = max(0, m.scrollOffset-10)
	case "pgdown":
		m.scrollOffset = min(m.scrollOffset+10, m.maxScroll())
	case "enter", "l":
		return m.startDiagnosis(rec)
	case "x":
		return m, rerun(m.deps.Engine, rec)
	case "y":
		if m.diagnosis == nil {
			m.setStatus("Nothing to copy yet", nil)
			return m, nil
		}
		return m, copyText(m.deps.Clipboard, m.diagnosis.Context)
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		return m.launch(rec, int(msg.String()[0]-'1'))
	}
	return m, nil
}

func (m *Model) openDetail(rec tracker.Record) {
	m.mode = viewModeDetail
	m.selectedID = rec.ID
	m.jobIdx = 0
	for i, j := range rec.Jobs {
		if j.Status == cistatus.JobFailure {
			m.jobIdx = i
			break
		}
	}
	m.scrollOffset = 0
	m.diagnosis, m.diagErr = nil, nil
}

func (m Model) startDiagnosis(rec tracker.Record) (tea.Model, tea.Cmd) {
	if m.jobIdx < 0 || m.jobIdx >= len(rec.Jobs) {
		return m, nil
	}
	job := rec.Jobs[m.jobIdx]
	if job.Status != cistatus.JobFailure {
		m.setStatus(fmt.Sprintf("Job %q did not fail", job.Name), nil)
		return m, nil
	}
	if job.JobID == 0 {
		m.setStatus(fmt.Sprintf("Job %q has no Actions log", job.Name), nil)
		return m, nil
	}
	if m.deps.Diagnose == nil {
		return m, nil
	}

	m.cancelDiagnosis()
	ctx, cancel := context.WithCancel(context.Background())
	m.diagSeq++
	seq := m.diagSeq
	m.diagCancel = cancel
	m.diagRunning = true
	m.diagnosis, m.diagErr = nil, nil

	diagnose := m.deps.Diagnose
	return m, func() tea.Msg {
		d, err := diagnose(ctx, rec, job)
		return diagnosisMsg{seq: seq, d: d, err: err}
	}
}

// cancelDiagnosis stops the running diagnosis; its result will be ignored.
func (m *Model) cancelDiagnosis() {
	if m.diagCancel != nil {
		m.diagCancel()
		m.diagCancel = nil
	}
	if m.diagRunning {
		m.diagSeq++
		m.diagRunning = false
	}
}

func (m Model) launch(rec tracker.Record, idx int) (tea.Model, tea.Cmd) {
	if idx < 0 || idx >= len(m.deps.Commands) || m.deps.Launcher == nil {
		return m, nil
	}
	if m.diagnosis == nil {
		m.setStatus("Analyze a failed job first (enter)", nil)
		return m, nil
	}
	command := m.deps.Commands[idx]
	req := launcher.Request{
		Template: command.Template,
		Context:  m.diagnosis.Context,
		Repo:     rec.Repo,
		Number:   rec.Number,
		PRURL:    rec.URL(),
	}

	l := m.deps.Launcher
	if l.UseTmux() {
		return m, func() tea.Msg {
			session, err := l.Detached(context.Background(), req)
			if err != nil {
				return statusMsg{err: fmt.Errorf("%s: %w", command.Label, err)}
			}
			return statusMsg{text: fmt.Sprintf("%s started in tmux session %s", command.Label, session)}
		}
	}

	c, err := l.Command(context.Background(), req)
	if err != nil {
		m.setStatus("", fmt.Errorf("%s: %w", command.Label, err))
		return m, nil
	}
	return m, tea.ExecProcess(c, func(err error) tea.Msg {
		if err != nil {
			return statusMsg{err: fmt.Errorf("%s: %w", command.Label, err)}
		}
		return statusMsg{text: command.Label + " exited"}
	})
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.cancelDiagnosis()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return m, tea.Quit
}

func (m *Model) setStatus(text string, err error) {
	if err != nil {
		m.status = err.Error()
		m.statusErr = true
		return
	}
	m.status = text
	m.statusErr = false
}

func (m Model) maxScroll() int {
	if m.diagnosis == nil {
		return 0
	}
	return max(0, countLines(m.diagnosis.Context)-m.diagnosisHeight())
}

// rows is the visible records in display order: grouped by repository, then
// narrowed by the fuzzy filter.
func (m Model) rows() []tracker.Record {
	records := m.snapshot.Records
	if m.filter != "" {
		records = filterRecords(records, m.filter)
	}
	var out []tracker.Record
	for _, g := range tracker.GroupByRepo(records) {
		out = append(out, g.Records...)
	}
	return out
}

func filterRecords(records []tracker.Record, query string) []tracker.Record {
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = fmt.Sprintf("%s %s %s", r.Key(), r.Title, r.Author)
	}
	keep := make(map[int]bool)
	for _, match := range fuzzy.Find(query, keys) {
		keep[match.Index] = true
	}
	var out []tracker.Record
	for i, r := range records {
		if keep[i] {
			out = append(out, r)
		}
	}
	return out
}

func (m Model) selected() (tracker.Record, bool) {
	for _, r := range m.snapshot.Records {
		if r.ID == m.selectedID {
			return r, true
		}
	}
	return tracker.Record{}, false
}

// clampSelection keeps the selection on a visible row.
func (m *Model) clampSelection() {
	rows := m.rows()
	if indexOf(rows, m.selectedID) >= 0 {
		return
	}
	if m.mode == viewModeDetail {
		if _, ok := m.selected(); ok {
			return
		}
		m.cancelDiagnosis()
		m.mode = viewModeList
	}
	if len(rows) == 0 {
		m.selectedID = ""
		return
	}
	m.selectedID = rows[0].ID
}

func indexOf(rows []tracker.Record, id string) int {
	for i, r := range rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func loadSnapshot(e Controller) tea.Cmd {
	return func() tea.Msg {
		snap, err := e.Snapshot(context.Background())
		return snapshotMsg{snap: snap, err: err}
	}
}

func waitForEvent(ch <-chan daemon.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		return eventMsg{ev: ev, ok: ok}
	}
}

func addURL(e Controller, text string) tea.Cmd {
	return func() tea.Msg {
		rec, added, err := e.AddURL(context.Background(), text)
		switch {
		case err != nil:
			return statusMsg{err: err}
		case !added:
			return statusMsg{text: "Already tracking that PR"}
		default:
			return statusMsg{text: "Tracking " + rec.Key()}
		}
	}
}

func pasteAdd(e Controller, cb Clipboard) tea.Cmd {
	return func() tea.Msg {
		text, err := cb.ReadAll()
		if err != nil {
			return statusMsg{err: fmt.Errorf("read clipboard: %w", err)}
		}
		return addURL(e, text)()
	}
}

func copyText(cb Clipboard, text string) tea.Cmd {
	return func() tea.Msg {
		if err := cb.WriteAll(text); err != nil {
			return statusMsg{err: fmt.Errorf("write clipboard: %w", err)}
		}
		return statusMsg{text: "Context copied to clipboard"}
	}
}

func remove(e Controller, rec tracker.Record) tea.Cmd {
	return func() tea.Msg {
		if err := e.Remove(context.Background(), rec.ID); err != nil {
			return statusMsg{err: err}
		}
		return statusMsg{text: "Stopped tracking " + rec.Key()}
	}
}

func refreshAll(e Controller) tea.Cmd {
	return func() tea.Msg {
		if _, err := e.RefreshAll(context.Background()); err != nil {
			return statusMsg{err: err}
		}
		return nil
	}
}

// rerun reports through the RerunFinished event; only guard errors come back
// here.
func rerun(e Controller, rec tracker.Record) tea.Cmd {
	return func() tea.Msg {
		if _, err := e.Rerun(context.Background(), rec.ID); err != nil {
			return statusMsg{err: fmt.Errorf("%s: %w", rec.Key(), err)}
		}
		return nil
	}
}

func rerunAllFailed(e Controller) tea.Cmd {
	return func() tea.Msg {
		if _, err := e.RerunAllFailed(context.Background()); err != nil {
			return statusMsg{err: err}
		}
		return nil
	}
}
