// Package batch renders every pair in a transition table.
package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Pair is one row of the transition table.
type Pair struct {
	Index  int // 0-based row position, excluding the header
	ID     string
	TrackA string
	TrackB string

	Score    float64 // predicted smoothness 1..5
	HasScore bool
}

// OutputName is the rendered file name for p, numbered from 1.
func (p Pair) OutputName(ext string) string {
	return fmt.Sprintf("transition_%02d_%s.%s", p.Index+1, p.ID, strings.TrimPrefix(ext, "."))
}

var columnAliases = map[string][]string{
	"a":     {"track_a_id", "tracka_id"},
	"b":     {"track_b_id", "trackb_id"},
	"id":    {"pair_id", "pairid"},
	"score": {"smoothness_1_5"},
}

// LoadPairs reads a transition table from a CSV file.
func LoadPairs(path string) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pairs %s: %w", path, err)
	}
	defer f.Close()

	pairs, err := ReadPairs(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pairs, nil
}

// ReadPairs parses a CSV table with a header row. Column names are matched
// case-insensitively; track_a_id/TrackA_ID, track_b_id/TrackB_ID and
// pair_id/PairID are required, smoothness_1_5 is optional.
func ReadPairs(r io.Reader) ([]Pair, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("pairs table is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		for key, aliases := range columnAliases {
			for _, alias := range aliases {
				if name == alias {
					if _, dup := cols[key]; !dup {
						cols[key] = i
					}
				}
			}
		}
	}
	for _, key := range []string{"a", "b", "id"} {
		if _, ok := cols[key]; !ok {
			return nil, fmt.Errorf("pairs table is missing column %s", columnAliases[key][0])
		}
	}

	var pairs []Pair
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		p := Pair{
			Index:  len(pairs),
			TrackA: strings.TrimSpace(rec[cols["a"]]),
			TrackB: strings.TrimSpace(rec[cols["b"]]),
			ID:     strings.TrimSpace(rec[cols["id"]]),
		}
		if p.TrackA == "" || p.TrackB == "" || p.ID == "" {
			return nil, fmt.Errorf("line %d: empty track or pair id", line)
		}
		if i, ok := cols["score"]; ok {
			if v := strings.TrimSpace(rec[i]); v != "" {
				score, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: smoothness %q: %w", line, v, err)
				}
				p.Score, p.HasScore = score, true
			}
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}
