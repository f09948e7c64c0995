// Package cli renders terminal output for the segue commands.
package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/satindergrewal/segue/internal/batch"
	"github.com/satindergrewal/segue/internal/study"
)

var (
	accent = lipgloss.Color("#7C6CFF")

	heading = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1)
	failure = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A40000"))
	label   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	value   = lipgloss.NewStyle().Bold(true)
)

func field(w io.Writer, name string, v any) {
	fmt.Fprintf(w, "  %s %s\n", label.Render(name), value.Render(fmt.Sprint(v)))
}

// PrintVersion writes the version banner.
func PrintVersion(w io.Writer, version string) {
	fmt.Fprintln(w, heading.Render("segue"))
	field(w, "Version:", version)
}

// PrintError writes a command failure.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", failure.Render("Error:"), err)
}

// PrintSummary prints the end-of-run report: counts, quality flags, and
// every failed pair with the stage that failed it.
func PrintSummary(w io.Writer, r *batch.Report) {
	fmt.Fprintln(w, heading.Render("Render complete"))
	field(w, "Run:", r.RunID)
	field(w, "Created:", fmt.Sprintf("%d/%d transitions", r.Succeeded, len(r.Outcomes)))
	field(w, "Elapsed:", r.Elapsed().Round(time.Millisecond))

	var low, fallback int
	for _, o := range r.Outcomes {
		if o.LowQuality {
			low++
		}
		if o.Fallback {
			fallback++
		}
	}
	if low > 0 {
		field(w, "Low quality stretches:", low)
	}
	if fallback > 0 {
		field(w, "Segment fallbacks:", fallback)
	}

	if failures := r.Failures(); len(failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, failure.Render(fmt.Sprintf("%d failed:", len(failures))))
		for _, o := range failures {
			if o.Stage != "" {
				fmt.Fprintf(w, "  %02d %s (%s): %s\n", o.Index+1, o.PairID, o.Stage, o.Error)
				continue
			}
			fmt.Fprintf(w, "  %02d %s: %s\n", o.Index+1, o.PairID, o.Error)
		}
	}
	fmt.Fprintln(w)
}

// PrintStudy prints where the listener set and its key were written.
func PrintStudy(w io.Writer, dir, keyPath string, key []study.Entry) {
	fmt.Fprintln(w, heading.Render("Listener study ready"))
	field(w, "Tracks:", fmt.Sprintf("%d in %s", len(key), dir))
	field(w, "Master key:", filepath.Clean(keyPath))
	fmt.Fprintln(w)
}
