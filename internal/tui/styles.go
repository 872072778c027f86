package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/marcin-skalski/prwatch/internal/cistatus"
	"github.com/marcin-skalski/prwatch/internal/tracker"
)

var (
	// Status colors
	colorSuccess = lipgloss.Color("46")  // green
	colorFailure = lipgloss.Color("196") // red
	colorRunning = lipgloss.Color("33")  // blue
	colorPending = lipgloss.Color("220") // yellow
	colorSkipped = lipgloss.Color("240") // gray
	colorMerged  = lipgloss.Color("135") // purple

	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			PaddingLeft(1).
			PaddingRight(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginTop(1).
			MarginBottom(0)

	treeRepoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("cyan"))

	treePRStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Background(lipgloss.Color("237"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().
			Foreground(colorFailure)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

func statusIcon(s cistatus.Status) string {
	switch s {
	case cistatus.StatusSuccess:
		return "✅"
	case cistatus.StatusFailure:
		return "❌"
	case cistatus.StatusRunning:
		return "⚙️"
	case cistatus.StatusPending:
		return "⏳"
	default:
		return "❓"
	}
}

func statusColor(s cistatus.Status) lipgloss.Color {
	switch s {
	case cistatus.StatusSuccess:
		return colorSuccess
	case cistatus.StatusFailure:
		return colorFailure
	case cistatus.StatusRunning:
		return colorRunning
	case cistatus.StatusPending:
		return colorPending
	default:
		return lipgloss.Color("252")
	}
}

func jobIcon(s cistatus.JobStatus) string {
	switch s {
	case cistatus.JobSuccess:
		return "✓"
	case cistatus.JobFailure:
		return "✗"
	case cistatus.JobRunning:
		return "●"
	case cistatus.JobSkipped:
		return "−"
	default:
		return "○"
	}
}

func jobColor(s cistatus.JobStatus) lipgloss.Color {
	switch s {
	case cistatus.JobSuccess:
		return colorSuccess
	case cistatus.JobFailure:
		return colorFailure
	case cistatus.JobRunning:
		return colorRunning
	case cistatus.JobSkipped:
		return colorSkipped
	default:
		return colorPending
	}
}

func stateBadge(s tracker.State) string {
	switch s {
	case tracker.StateMerged:
		return lipgloss.NewStyle().Foreground(colorMerged).Render("[merged]")
	case tracker.StateClosed:
		return lipgloss.NewStyle().Foreground(colorSkipped).Render("[closed]")
	default:
		return ""
	}
}
