package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/satindergrewal/segue/internal/batch"
)

func testModel() Model {
	return NewModel([]batch.Pair{
		{Index: 0, ID: "first"},
		{Index: 1, ID: "second"},
	})
}

func apply(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestModelCountsOutcomes(t *testing.T) {
	m := apply(testModel(),
		PairStartMsg{Index: 0, PairID: "first"},
		PairStartMsg{Index: 1, PairID: "second"},
		PairDoneMsg{Index: 0, Outcome: batch.Outcome{Output: "out/transition_01_first.mp3"}},
		PairDoneMsg{Index: 1, Outcome: batch.Outcome{Error: "decode-b: missing"}},
	)

	if m.Completed != 1 || m.Failed != 1 || m.Active != 0 {
		t.Errorf("completed/failed/active = %d/%d/%d, want 1/1/0", m.Completed, m.Failed, m.Active)
	}
	if m.Pairs[0].Status != StatusDone || m.Pairs[1].Status != StatusFailed {
		t.Errorf("statuses = %v, %v", m.Pairs[0].Status, m.Pairs[1].Status)
	}
	if m.Fraction() != 1 {
		t.Errorf("Fraction = %v, want 1", m.Fraction())
	}

	view := m.View()
	if !strings.Contains(view, "transition_01_first.mp3") || !strings.Contains(view, "decode-b: missing") {
		t.Errorf("view missing outcomes:\n%s", view)
	}
}

func TestModelIgnoresUnknownIndex(t *testing.T) {
	m := apply(testModel(), PairStartMsg{Index: 7}, PairDoneMsg{Index: -1})
	if m.Active != 0 || m.Completed != 0 || m.Failed != 0 {
		t.Errorf("out-of-range messages changed counters: %+v", m)
	}
}

func TestModelQuitsWhenAllDone(t *testing.T) {
	next, cmd := testModel().Update(AllDoneMsg{})
	if !next.(Model).Done {
		t.Error("model should be done")
	}
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("AllDoneMsg should quit the program")
	}
}

func TestForward(t *testing.T) {
	var got []tea.Msg
	fwd := Forward(func(msg tea.Msg) { got = append(got, msg) })
	p := batch.Pair{Index: 2, ID: "x"}
	fwd(batch.Event{Kind: batch.EventStarted, Pair: p})
	fwd(batch.Event{Kind: batch.EventFinished, Pair: p, Outcome: &batch.Outcome{PairID: "x"}})

	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if s, ok := got[0].(PairStartMsg); !ok || s.Index != 2 {
		t.Errorf("first message = %#v", got[0])
	}
	if d, ok := got[1].(PairDoneMsg); !ok || d.Outcome.PairID != "x" {
		t.Errorf("second message = %#v", got[1])
	}
}
