// Package study prepares rendered transitions for a blind listening test.
package study

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/satindergrewal/segue/internal/batch"
)

// KeyName is the default file name of the researcher's master key.
const KeyName = "listener_study_master_key.csv"

var keyHeader = []string{
	"Listener_Track_Number",
	"Listener_Filename",
	"Original_Clip_Number",
	"Pair_ID",
	"Quality_Level",
	"Predicted_Smoothness",
}

// Quality tiers derived from predicted smoothness.
const (
	TierHigh     = "HIGH"
	TierMedium   = "MEDIUM"
	TierLow      = "LOW"
	TierUnscored = "UNSCORED"
)

// Tier buckets a pair by its predicted smoothness.
func Tier(p batch.Pair) string {
	switch {
	case !p.HasScore:
		return TierUnscored
	case p.Score > 3.5:
		return TierHigh
	case p.Score >= 2.8:
		return TierMedium
	default:
		return TierLow
	}
}

// Entry maps one listener-facing file back to its pair.
type Entry struct {
	ListenerNumber int
	ListenerFile   string
	ClipNumber     int // 1-based row of the pair table
	PairID         string
	Quality        string
	Smoothness     float64
	HasSmoothness  bool
}

// Options control Prepare.
type Options struct {
	SourceDir string // rendered clips
	StudyDir  string
	Ext       string
	Seed      int64
}

// ListenerName is the anonymized file name for listener slot n.
func ListenerName(n int, ext string) string {
	return fmt.Sprintf("Track_%02d.%s", n, ext)
}

// Prepare shuffles the rendered clips, copies them into StudyDir under
// anonymized names and returns the key in listener order. Clips that were
// never rendered are skipped; their listener slot stays empty.
func Prepare(pairs []batch.Pair, opts Options) ([]Entry, error) {
	if err := os.MkdirAll(opts.StudyDir, 0o755); err != nil {
		return nil, fmt.Errorf("create study dir: %w", err)
	}

	seed := uint64(opts.Seed)
	order := rand.New(rand.NewPCG(seed, seed)).Perm(len(pairs))

	var key []Entry
	for slot, idx := range order {
		p := pairs[idx]
		src := filepath.Join(opts.SourceDir, p.OutputName(opts.Ext))
		if _, err := os.Stat(src); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.Printf("Skipping %s: not rendered", filepath.Base(src))
				continue
			}
			return nil, err
		}

		e := Entry{
			ListenerNumber: slot + 1,
			ListenerFile:   ListenerName(slot+1, opts.Ext),
			ClipNumber:     idx + 1,
			PairID:         p.ID,
			Quality:        Tier(p),
			Smoothness:     p.Score,
			HasSmoothness:  p.HasScore,
		}
		if err := copyFile(src, filepath.Join(opts.StudyDir, e.ListenerFile)); err != nil {
			return nil, err
		}
		log.Printf("Created %s (original: transition_%02d)", e.ListenerFile, e.ClipNumber)
		key = append(key, e)
	}
	return key, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}

// WriteKey writes the master key CSV.
func WriteKey(path string, key []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create key: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write(keyHeader)
	for _, e := range key {
		smooth := ""
		if e.HasSmoothness {
			smooth = strconv.FormatFloat(e.Smoothness, 'f', -1, 64)
		}
		w.Write([]string{
			strconv.Itoa(e.ListenerNumber),
			e.ListenerFile,
			strconv.Itoa(e.ClipNumber),
			e.PairID,
			e.Quality,
			smooth,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	return f.Close()
}

// ReadKey loads a master key written by WriteKey.
func ReadKey(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open key: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read key %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("key %s is empty", path)
	}

	key := make([]Entry, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(keyHeader) {
			return nil, fmt.Errorf("key line %d: %d fields, want %d", i+2, len(row), len(keyHeader))
		}
		e := Entry{ListenerFile: row[1], PairID: row[3], Quality: row[4]}
		if e.ListenerNumber, err = strconv.Atoi(row[0]); err != nil {
			return nil, fmt.Errorf("key line %d: %w", i+2, err)
		}
		if e.ClipNumber, err = strconv.Atoi(row[2]); err != nil {
			return nil, fmt.Errorf("key line %d: %w", i+2, err)
		}
		if row[5] != "" {
			if e.Smoothness, err = strconv.ParseFloat(row[5], 64); err != nil {
				return nil, fmt.Errorf("key line %d: %w", i+2, err)
			}
			e.HasSmoothness = true
		}
		key = append(key, e)
	}
	return key, nil
}
