package streamsession

import (
	"sort"
	"time"
)

// EffectiveWindows expands every valid window by the configured buffers,
// clips to [captureStart, captureEnd], sorts, and merges overlaps.
func EffectiveWindows(windows []StreamWindow, opts Options, captureStart, captureEnd time.Time) []EffectiveWindow {
	pre := time.Duration(opts.PreBufferSec * float64(time.Second))
	post := time.Duration(opts.PostBufferSec * float64(time.Second))
	skew := time.Duration(opts.ClockSkewToleranceSec * float64(time.Second))

	var raw []EffectiveWindow
	for _, w := range windows {
		if !w.Valid {
			continue
		}
		start := w.StartTS.Add(-pre - skew)
		end := w.EndTS.Add(post + skew)
		if start.Before(captureStart) {
			start = captureStart
		}
		if end.After(captureEnd) {
			end = captureEnd
		}
		if !end.After(start) {
			continue
		}
		raw = append(raw, EffectiveWindow{StartTS: start, EndTS: end})
	}
	if len(raw) == 0 {
		return nil
	}
	sort.Slice(raw, func(i, j int) bool { return raw[i].StartTS.Before(raw[j].StartTS) })

	merged := []EffectiveWindow{raw[0]}
	for _, w := range raw[1:] {
		last := &merged[len(merged)-1]
		if !w.StartTS.After(last.EndTS) {
			if w.EndTS.After(last.EndTS) {
				last.EndTS = w.EndTS
			}
			continue
		}
		merged = append(merged, w)
	}
	for i := range merged {
		merged[i].ID = i + 1
	}
	return merged
}

// Phase resolves a ts against the valid StreamWindows, returning
// "stream"/"preconnect"/"post", and answers whether ts falls in any
// EffectiveWindow.
type Phase struct {
	valid []StreamWindow
	eff   []EffectiveWindow
}

// NewPhase builds a phase resolver from the valid windows (sorted by start)
// and the effective windows derived from them.
func NewPhase(windows []StreamWindow, eff []EffectiveWindow) *Phase {
	var valid []StreamWindow
	for _, w := range windows {
		if w.Valid {
			valid = append(valid, w)
		}
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].StartTS.Before(valid[j].StartTS) })
	return &Phase{valid: valid, eff: eff}
}

// Resolve returns (phase, inSession) for the given instant.
func (p *Phase) Resolve(ts time.Time) (string, bool) {
	inSession := false
	for _, w := range p.eff {
		if !ts.Before(w.StartTS) && !ts.After(w.EndTS) {
			inSession = true
			break
		}
	}

	if len(p.valid) == 0 {
		return "preconnect", inSession
	}
	for _, w := range p.valid {
		if !ts.Before(w.StartTS) && !ts.After(w.EndTS) {
			return "stream", inSession
		}
	}
	if ts.Before(p.valid[0].StartTS) {
		return "preconnect", inSession
	}
	if ts.After(p.valid[len(p.valid)-1].EndTS) {
		return "post", inSession
	}
	return "preconnect", inSession
}
