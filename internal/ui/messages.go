package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/satindergrewal/segue/internal/batch"
)

// PairStartMsg indicates a pair has started rendering
type PairStartMsg struct {
	Index  int
	PairID string
}

// PairDoneMsg indicates a pair has finished, successfully or not
type PairDoneMsg struct {
	Index   int
	Outcome batch.Outcome
}

// AllDoneMsg indicates the run is over
type AllDoneMsg struct {
	Report *batch.Report
	Err    error
}

// Forward converts runner events into UI messages.
func Forward(send func(tea.Msg)) func(batch.Event) {
	return func(ev batch.Event) {
		switch ev.Kind {
		case batch.EventStarted:
			send(PairStartMsg{Index: ev.Pair.Index, PairID: ev.Pair.ID})
		case batch.EventFinished:
			send(PairDoneMsg{Index: ev.Pair.Index, Outcome: *ev.Outcome})
		}
	}
}
