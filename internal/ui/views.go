package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C6CFF"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
	okIcon       = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00")).Render("✓")
	failIcon     = lipgloss.NewStyle().Foreground(lipgloss.Color("#A40000")).Render("✗")
	queuedIcon   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("○")
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
)

// maxRows limits the pair list to what fits on screen.
const maxRows = 20

func renderRenderingView(m Model) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("segue - beat-matched transitions"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("Rendering %d pair(s)", len(m.Pairs))))
	b.WriteString("\n\n")

	for _, row := range visibleRows(m) {
		b.WriteString(renderRow(m, row))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.progress.View())
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%d done, %d failed, %d rendering | %s elapsed | q to quit",
		m.Completed, m.Failed, m.Active, time.Since(m.StartTime).Round(time.Second))))
	b.WriteString("\n")
	return b.String()
}

// visibleRows keeps the active pairs on screen: everything rendering plus
// the most recent finished rows and the next queued ones.
func visibleRows(m Model) []PairProgress {
	if len(m.Pairs) <= maxRows {
		return m.Pairs
	}
	first := 0
	for i, row := range m.Pairs {
		if row.Status == StatusQueued || row.Status == StatusRendering {
			first = i
			break
		}
	}
	first = max(0, min(first-maxRows/4, len(m.Pairs)-maxRows))
	return m.Pairs[first : first+maxRows]
}

func renderRow(m Model, row PairProgress) string {
	label := fmt.Sprintf("%02d %s", row.Pair.Index+1, row.Pair.ID)
	switch row.Status {
	case StatusDone:
		o := row.Outcome
		line := fmt.Sprintf(" %s %s → %s  %.1f/%.1f BPM  x%.3f",
			okIcon, label, filepath.Base(o.Output), o.TempoA, o.TempoB, o.Ratio)
		if o.LowQuality {
			line += " " + warningStyle.Render("low quality")
		}
		if o.Fallback {
			line += " " + warningStyle.Render("fallback")
		}
		return line
	case StatusFailed:
		return fmt.Sprintf(" %s %s  %s", failIcon, label, row.Outcome.Error)
	case StatusRendering:
		return fmt.Sprintf(" %s %s  %s", m.spinner.View(), label,
			mutedStyle.Render(time.Since(row.StartTime).Round(100*time.Millisecond).String()))
	default:
		return fmt.Sprintf(" %s %s", queuedIcon, label)
	}
}

func renderCompletion(m Model) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("segue - done"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%d rendered, %d failed\n", m.Completed, m.Failed))
	if m.Err != nil {
		b.WriteString(failIcon + " " + m.Err.Error() + "\n")
	}
	return b.String()
}
