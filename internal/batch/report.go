package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/satindergrewal/segue/internal/transition"
)

// Report summarizes a run. Outcomes are ordered by pair index.
type Report struct {
	RunID    string            `json:"run_id"`
	Started  time.Time         `json:"started"`
	Finished time.Time         `json:"finished"`
	Workers  int               `json:"workers"`
	Seed     int64             `json:"seed"`
	Format   string            `json:"format"`
	Config   transition.Config `json:"config"`

	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Outcomes  []Outcome `json:"outcomes"`
}

// Elapsed is the wall-clock duration of the run.
func (r *Report) Elapsed() time.Duration { return r.Finished.Sub(r.Started) }

// Failures returns the failed outcomes.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

func (r *Report) tally() {
	r.Succeeded, r.Failed = 0, 0
	for _, o := range r.Outcomes {
		if o.OK() {
			r.Succeeded++
		} else {
			r.Failed++
		}
	}
}

// WriteManifest writes the report as indented JSON.
func WriteManifest(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &r, nil
}
