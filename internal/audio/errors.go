package audio

import (
	"errors"
	"fmt"
)

// ErrEmptyAudio is wrapped by DecodeError when a file decodes to no samples.
var ErrEmptyAudio = errors.New("no audio samples")

// DecodeError reports a source file that is missing or cannot be decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// BeatDetectionError means no usable tempo or beat grid was found.
type BeatDetectionError struct {
	Reason string
}

func (e *BeatDetectionError) Error() string {
	return "beat detection: " + e.Reason
}

// DegenerateStretchError reports a stretch ratio that is not finite,
// not positive, or outside what the stretcher supports.
type DegenerateStretchError struct {
	Ratio  float64
	Reason string
}

func (e *DegenerateStretchError) Error() string {
	return fmt.Sprintf("stretch ratio %g: %s", e.Ratio, e.Reason)
}

// InvariantViolation is an internal consistency failure. A batch run
// treats it as fatal rather than as a per-pair failure.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Msg
}

// Invariantf builds an InvariantViolation.
func Invariantf(format string, args ...any) error {
	return &InvariantViolation{Msg: fmt.Sprintf(format, args...)}
}

// IsInvariantViolation reports whether err wraps an InvariantViolation.
func IsInvariantViolation(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}
