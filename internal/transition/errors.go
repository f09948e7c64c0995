package transition

import "errors"

// Pipeline stages, in order.
const (
	StageDecodeA   = "decode-a"
	StageDecodeB   = "decode-b"
	StageBeatsA    = "beats-a"
	StageBeatsB    = "beats-b"
	StageStretch   = "stretch"
	StageBeatsB2   = "beats-b-stretched"
	StageSegmentA  = "segment-a"
	StageSegmentB  = "segment-b"
	StageCrossfade = "crossfade"
	StageAssemble  = "assemble"
	StageEncode    = "encode"
)

// StageError records which stage of a render failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the failing stage recorded in err, or "" when none is.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
