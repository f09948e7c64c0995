package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/satindergrewal/segue/internal/batch"
	"github.com/satindergrewal/segue/internal/study"
)

func TestPrintSummary(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &batch.Report{
		RunID:     "run-1",
		Started:   start,
		Finished:  start.Add(1500 * time.Millisecond),
		Succeeded: 2,
		Outcomes: []batch.Outcome{
			{Index: 0, PairID: "a", Output: "01.mp3", LowQuality: true},
			{Index: 1, PairID: "b", Output: "02.mp3", Fallback: true},
			{Index: 2, PairID: "c", Stage: "decode", Error: "no such file"},
		},
	}

	var buf bytes.Buffer
	PrintSummary(&buf, r)
	out := buf.String()
	for _, want := range []string{
		"run-1",
		"2/3 transitions",
		"1.5s",
		"Low quality stretches:",
		"Segment fallbacks:",
		"1 failed:",
		"03 c (decode): no such file",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestPrintSummaryQuietWhenClean(t *testing.T) {
	r := &batch.Report{Succeeded: 1, Outcomes: []batch.Outcome{{PairID: "a", Output: "01.mp3"}}}
	var buf bytes.Buffer
	PrintSummary(&buf, r)
	for _, unwanted := range []string{"Low quality", "fallbacks", "failed"} {
		if strings.Contains(buf.String(), unwanted) {
			t.Errorf("clean run mentions %q:\n%s", unwanted, buf.String())
		}
	}
}

func TestPrintStudy(t *testing.T) {
	var buf bytes.Buffer
	PrintStudy(&buf, "study", "keys/./key.csv", make([]study.Entry, 4))
	if !strings.Contains(buf.String(), "4 in study") || !strings.Contains(buf.String(), "keys/key.csv") {
		t.Errorf("study output:\n%s", buf.String())
	}
}

func TestPrintVersionAndError(t *testing.T) {
	var buf bytes.Buffer
	PrintVersion(&buf, "1.2.3")
	if !strings.Contains(buf.String(), "1.2.3") {
		t.Errorf("version output: %q", buf.String())
	}

	buf.Reset()
	PrintError(&buf, errors.New("pairs.csv: no rows"))
	if !strings.Contains(buf.String(), "Error:") || !strings.Contains(buf.String(), "pairs.csv: no rows") {
		t.Errorf("error output: %q", buf.String())
	}
}
