package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/marcin-skalski/prwatch/internal/cistatus"
	"github.com/marcin-skalski/prwatch/internal/tracker"
)

func (m Model) View() string {
	if m.mode == viewModeDetail {
		if rec, ok := m.selected(); ok {
			return m.renderDetailView(rec, time.Now())
		}
	}
	return m.renderListView(time.Now())
}

func (m Model) renderListView(now time.Time) string {
	var b strings.Builder
	snap := m.snapshot

	groups := tracker.GroupByRepo(m.rows())
	var failing, running int
	for _, r := range snap.Records {
		switch r.Status() {
		case cistatus.StatusFailure:
			failing++
		case cistatus.StatusRunning:
			running++
		}
	}

	// Header
	header := fmt.Sprintf("prwatch │ %d PRs │ %d failing │ %d running",
		len(snap.Records), failing, running)
	if snap.RefreshingAll {
		header += " │ refreshing…"
	}
	if snap.RerunAllRunning {
		header += " │ rerunning failed…"
	}
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	if !snap.HasClient && !snap.Timestamp.IsZero() {
		b.WriteString(errorStyle.Render(" GitHub token is not configured (github.token, GH_TOKEN or GITHUB_TOKEN)"))
		b.WriteString("\n")
	}

	title := "📦 Tracked Pull Requests"
	if m.filter != "" {
		title += fmt.Sprintf(" (filter: %s)", m.filter)
	}
	b.WriteString(sectionStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(m.renderTree(groups, now))

	switch m.mode {
	case viewModeAdd:
		b.WriteString("\nAdd PR: ")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	case viewModeFilter:
		b.WriteString("\n/")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	b.WriteString(m.renderStatus())

	// Footer
	footer := fmt.Sprintf("Last updated: %s │ q:quit a:add p:paste r:refresh x:rerun X:rerun failed d:delete /:filter enter:details",
		snap.Timestamp.Format("15:04:05"))
	b.WriteString(footerStyle.Render(footer))

	return b.String()
}

func (m Model) renderTree(groups []tracker.Group, now time.Time) string {
	if len(groups) == 0 {
		if m.filter != "" {
			return emptyStyle.Render("  (no PRs match the filter)") + "\n"
		}
		return emptyStyle.Render("  (no PRs tracked, press a to add one)") + "\n"
	}

	var b strings.Builder
	for i, g := range groups {
		isLast := i == len(groups)-1
		prefix := "├─"
		childPrefix := "│  "
		if isLast {
			prefix = "└─"
			childPrefix = "   "
		}

		repoLine := fmt.Sprintf("%s 🔧 %s [%d PRs]", prefix, g.Repo, len(g.Records))
		b.WriteString(treeRepoStyle.Render(repoLine))
		b.WriteString("\n")

		for j, rec := range g.Records {
			prPrefix := "├─"
			if j == len(g.Records)-1 {
				prPrefix = "└─"
			}

			line := childPrefix + prPrefix + " " + m.renderPRLine(rec, now)
			if rec.ID == m.selectedID {
				b.WriteString(selectedStyle.Render(line))
			} else {
				b.WriteString(treePRStyle.Render(line))
			}
			b.WriteString("\n")

			if rec.LastError != "" {
				errLine := fmt.Sprintf("%s   └─ ⚠ %s", childPrefix, truncate(rec.LastError, 80))
				b.WriteString(errorStyle.Render(errLine))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func (m Model) renderPRLine(rec tracker.Record, now time.Time) string {
	status := rec.Status()
	icon := lipgloss.NewStyle().Foreground(statusColor(status)).Render(statusIcon(status))

	parts := []string{icon, fmt.Sprintf("#%d", rec.Number), truncate(rec.Title, 60)}
	if badge := stateBadge(rec.State); badge != "" {
		parts = append(parts, badge)
	}

	meta := "@" + rec.Author
	if rec.Additions != nil && rec.Deletions != nil {
		meta += fmt.Sprintf(" +%d/-%d", *rec.Additions, *rec.Deletions)
	}
	if !rec.LastUpdated.IsZero() {
		meta += " " + FormatTimeAgo(rec.LastUpdated, now)
	}
	parts = append(parts, metaStyle.Render(meta))

	if rec.IsLoading {
		parts = append(parts, "⟳")
	}
	if m.snapshot.Rerunning[rec.ID] {
		parts = append(parts, "↻ rerunning")
	}
	return strings.Join(parts, " ")
}

func (m Model) renderDetailView(rec tracker.Record, now time.Time) string {
	var b strings.Builder

	status := rec.Status()
	header := fmt.Sprintf("%s │ %s", rec.Key(), truncate(rec.Title, 80))
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	meta := []string{
		fmt.Sprintf("Author: @%s", rec.Author),
		fmt.Sprintf("State: %s", rec.State),
		fmt.Sprintf("CI: %s %s", statusIcon(status), status),
	}
	if !rec.LastUpdated.IsZero() {
		meta = append(meta, "Updated: "+FormatTimeAgo(rec.LastUpdated, now))
	}
	b.WriteString(metaStyle.Render(" " + strings.Join(meta, " │ ")))
	b.WriteString("\n")
	link := rec.URL()
	if rec.RunID != nil {
		link += fmt.Sprintf(" │ https://github.com/%s/actions/runs/%d", rec.Repo, *rec.RunID)
	}
	b.WriteString(metaStyle.Render(" " + link))
	b.WriteString("\n")
	if rec.LastError != "" {
		b.WriteString(errorStyle.Render(" ⚠ " + rec.LastError))
		b.WriteString("\n")
	}

	// Jobs
	b.WriteString(sectionStyle.Render(fmt.Sprintf("🔨 Jobs (%d)", len(rec.Jobs))))
	b.WriteString("\n")
	if len(rec.Jobs) == 0 {
		b.WriteString(emptyStyle.Render("  (no check runs)"))
		b.WriteString("\n")
	}
	for i, job := range rec.Jobs {
		cursor := "  "
		if i == m.jobIdx {
			cursor = "▸ "
		}
		line := cursor + lipgloss.NewStyle().Foreground(jobColor(job.Status)).Render(jobIcon(job.Status)) + " " + job.Name
		if i == m.jobIdx {
			b.WriteString(selectedStyle.Render(line))
		} else {
			b.WriteString(line)
		}
		b.WriteString("\n")
	}

	// Diagnosis
	b.WriteString(sectionStyle.Render("🤖 Diagnosis"))
	b.WriteString("\n")
	b.WriteString(m.renderDiagnosis())

	b.WriteString(m.renderStatus())

	keys := []string{"esc:back", "↑↓:job", "enter:analyze", "x:rerun", "y:copy"}
	for i, c := range m.deps.Commands {
		keys = append(keys, fmt.Sprintf("%d:%s", i+1, c.Label))
	}
	b.WriteString(footerStyle.Render(strings.Join(keys, " ")))
	return b.String()
}

func (m Model) renderDiagnosis() string {
	switch {
	case m.diagRunning:
		return emptyStyle.Render("  Fetching logs and analyzing…") + "\n"
	case m.diagErr != nil:
		return errorStyle.Render("  "+m.diagErr.Error()) + "\n"
	case m.diagnosis == nil:
		return emptyStyle.Render("  (select a failed job and press enter)") + "\n"
	}

	var b strings.Builder
	if m.diagnosis.AnalysisErr != nil {
		b.WriteString(errorStyle.Render("  Analysis unavailable: " + m.diagnosis.AnalysisErr.Error()))
		b.WriteString("\n")
	}

	lines := strings.Split(m.diagnosis.Context, "\n")
	end := min(len(lines), m.scrollOffset+m.diagnosisHeight())
	start := min(m.scrollOffset, end)
	for _, line := range lines[start:end] {
		if m.width > 0 {
			line = truncate(line, max(20, m.width-4))
		}
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(lines) > end {
		b.WriteString(emptyStyle.Render(fmt.Sprintf("  … %d more lines (pgdown)", len(lines)-end)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderStatus() string {
	if m.status == "" {
		return ""
	}
	if m.statusErr {
		return "\n" + errorStyle.Render("⚠ "+m.status) + "\n"
	}
	return "\n" + statusStyle.Render(m.status) + "\n"
}

// diagnosisHeight is the number of diagnosis lines shown at once.
func (m Model) diagnosisHeight() int {
	if m.height <= 0 {
		return 30
	}
	return max(5, m.height-20)
}

func countLines(s string) int {
	return strings.Count(s, "\n") + 1
}

func truncate(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		return runewidth.Truncate(s, width, "...")
	}
	return s
}

// FormatTimeAgo renders the age of t as "Ns ago", "Nm ago", "Nh ago" or
// "Nd ago".
func FormatTimeAgo(t, now time.Time) string {
	s := int64(now.Sub(t) / time.Second)
	if s < 0 {
		s = 0
	}
	if s < 60 {
		return fmt.Sprintf("%ds ago", s)
	}
	mins := s / 60
	if mins < 60 {
		return fmt.Sprintf("%dm ago", mins)
	}
	h := mins / 60
	if h < 24 {
		return fmt.Sprintf("%dh ago", h)
	}
	return fmt.Sprintf("%dd ago", h/24)
}
