package audition

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// RatingsName is the ratings file written into the study directory.
const RatingsName = "ratings.csv"

// ErrInvalidRating is returned for scores outside 1..5.
var ErrInvalidRating = errors.New("rating must be between 1 and 5")

var ratingsHeader = []string{"Timestamp", "Listener_Track_Number", "Listener_Filename", "Rating", "Listener"}

// Rating is one listener's score for one clip.
type Rating struct {
	Time     time.Time
	Clip     int
	File     string
	Score    int
	Listener string // remote address or a name the listener chose
}

// RatingLog appends ratings to a CSV file.
type RatingLog struct {
	mu   sync.Mutex
	path string
}

// NewRatingLog creates a log that appends to path.
func NewRatingLog(path string) *RatingLog {
	return &RatingLog{path: path}
}

// Path returns the file the log appends to.
func (l *RatingLog) Path() string { return l.path }

// Append validates and records r.
func (l *RatingLog) Append(r Rating) error {
	if r.Score < 1 || r.Score > 5 {
		return ErrInvalidRating
	}
	if r.Clip <= 0 {
		return errors.New("no clip to rate")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ratings: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if info.Size() == 0 {
		w.Write(ratingsHeader)
	}
	w.Write([]string{
		r.Time.UTC().Format(time.RFC3339),
		strconv.Itoa(r.Clip),
		r.File,
		strconv.Itoa(r.Score),
		r.Listener,
	})
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write rating: %w", err)
	}
	return f.Close()
}

// ReadRatings loads every rating in a ratings file.
func ReadRatings(path string) ([]Rating, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ratings: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read ratings %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([]Rating, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(ratingsHeader) {
			return nil, fmt.Errorf("ratings line %d: %d fields", i+2, len(row))
		}
		r := Rating{File: row[2], Listener: row[4]}
		if r.Time, err = time.Parse(time.RFC3339, row[0]); err != nil {
			return nil, fmt.Errorf("ratings line %d: %w", i+2, err)
		}
		if r.Clip, err = strconv.Atoi(row[1]); err != nil {
			return nil, fmt.Errorf("ratings line %d: %w", i+2, err)
		}
		if r.Score, err = strconv.Atoi(row[3]); err != nil {
			return nil, fmt.Errorf("ratings line %d: %w", i+2, err)
		}
		out = append(out, r)
	}
	return out, nil
}
