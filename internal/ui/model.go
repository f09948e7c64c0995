// Package ui provides the Bubbletea terminal user interface for segue render
package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/satindergrewal/segue/internal/batch"
)

// PairStatus represents the render state of a single pair
type PairStatus int

const (
	StatusQueued PairStatus = iota
	StatusRendering
	StatusDone
	StatusFailed
)

// PairProgress tracks one row of the pair table
type PairProgress struct {
	Pair      batch.Pair
	Status    PairStatus
	StartTime time.Time
	Outcome   batch.Outcome
}

// Model is the Bubbletea model for the render UI
type Model struct {
	Pairs     []PairProgress
	Active    int
	Completed int
	Failed    int

	StartTime time.Time
	Done      bool
	Report    *batch.Report
	Err       error

	spinner  spinner.Model
	progress progress.Model

	Width  int
	Height int
}

// NewModel creates a UI model for the given pairs
func NewModel(pairs []batch.Pair) Model {
	rows := make([]PairProgress, len(pairs))
	for i, p := range pairs {
		rows[i] = PairProgress{Pair: p}
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		Pairs:     rows,
		StartTime: time.Now(),
		spinner:   sp,
		progress:  progress.New(progress.WithDefaultGradient()),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case PairStartMsg:
		if row := m.row(msg.Index); row != nil {
			row.Status = StatusRendering
			row.StartTime = time.Now()
			m.Active++
		}

	case PairDoneMsg:
		if row := m.row(msg.Index); row != nil {
			row.Outcome = msg.Outcome
			if msg.Outcome.OK() {
				row.Status = StatusDone
				m.Completed++
			} else {
				row.Status = StatusFailed
				m.Failed++
			}
			m.Active--
		}
		return m, m.progress.SetPercent(m.Fraction())

	case AllDoneMsg:
		m.Done = true
		m.Report = msg.Report
		m.Err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// Fraction is the share of pairs that have finished.
func (m Model) Fraction() float64 {
	if len(m.Pairs) == 0 {
		return 1
	}
	return float64(m.Completed+m.Failed) / float64(len(m.Pairs))
}

func (m *Model) row(index int) *PairProgress {
	if index < 0 || index >= len(m.Pairs) {
		return nil
	}
	return &m.Pairs[index]
}

// View renders the UI
func (m Model) View() string {
	if m.Done {
		return renderCompletion(m)
	}
	return renderRenderingView(m)
}
