// Package streamsession implements the stream-session detector: a
// marker-driven state machine over logcat lines that produces raw
// StreamWindows, scores and gates them into valid ones, expands them into
// EffectiveWindows, and answers phase/in-session questions for any instant.
package streamsession

import "time"

// Line is the minimal shape the detector needs from a parsed threadtime
// line believed to belong to the streaming client.
type Line struct {
	TS      time.Time
	Tag     string
	Message string
}

// StreamWindow is one candidate streaming session inferred from marker
// activity in the logcat stream.
type StreamWindow struct {
	ID               int
	StartTS          time.Time
	EndTS            time.Time
	HasStrongStart   bool
	HasStartMarker   bool
	HasEndMarker     bool
	StartMarkerCount int
	EndMarkerCount   int
	ActivityCount    int
	Score            float64
	Valid            bool
}

// EffectiveWindow is a valid StreamWindow expanded by buffer margins, clipped
// to the capture range, and merged with overlapping neighbors.
type EffectiveWindow struct {
	ID      int
	StartTS time.Time
	EndTS   time.Time
}

// Mode selects how aggressively raw windows are gated into valid ones.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeStrict Mode = "strict"
	ModeAll    Mode = "all"
)

// Options configures detection, scoring, and effective-window expansion.
type Options struct {
	Mode Mode

	// IdleGapSec is how long (in seconds) a window may go without an update
	// before a new start marker forces a rollover instead of extending it.
	IdleGapSec float64

	PreBufferSec          float64
	PostBufferSec         float64
	ClockSkewToleranceSec float64

	// MinDurationSec is the minimum raw-window duration (seconds) to be
	// eligible for validity regardless of mode.
	MinDurationSec float64

	// MinActivityForWeakStart is the activity-count floor that can satisfy
	// validity without a strong start marker.
	MinActivityForWeakStart int
}

// DefaultOptions mirrors defaults.
func DefaultOptions() Options {
	return Options{
		Mode:                    ModeAuto,
		IdleGapSec:              10,
		PreBufferSec:            5,
		PostBufferSec:           10,
		ClockSkewToleranceSec:   2,
		MinDurationSec:          20,
		MinActivityForWeakStart: 6,
	}
}
