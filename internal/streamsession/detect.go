package streamsession

import (
	"sort"
	"time"
)

// Detect scans lines in ts order and returns the raw StreamWindows produced
// by the marker state machine. Lines must already be filtered
// to ones likely belonging to the streaming client.
func Detect(lines []Line, opts Options) []StreamWindow {
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TS.Before(sorted[j].TS) })

	idleGap := time.Duration(opts.IdleGapSec * float64(time.Second))

	var out []StreamWindow
	var cur *StreamWindow
	nextID := 1

	closeCurrent := func() {
		if cur == nil {
			return
		}
		out = append(out, *cur)
		cur = nil
	}

	for _, l := range sorted {
		hit := classifyLine(l)

		if hit.end {
			if cur != nil {
				cur.HasEndMarker = true
				cur.EndMarkerCount++
				if l.TS.After(cur.EndTS) {
					cur.EndTS = l.TS
				}
			}
			closeCurrent()
			continue
		}

		if hit.isStart() {
			if cur == nil {
				cur = newWindow(nextID, l.TS)
				nextID++
			} else if l.TS.Sub(cur.EndTS) > idleGap {
				closeCurrent()
				cur = newWindow(nextID, l.TS)
				nextID++
			}
			cur.HasStartMarker = true
			cur.StartMarkerCount++
			if hit.strongStart {
				cur.HasStrongStart = true
			}
			extend(cur, l.TS)
		}

		if hit.activity && cur != nil {
			cur.ActivityCount++
			extend(cur, l.TS)
		}
	}
	closeCurrent()

	sort.Slice(out, func(i, j int) bool { return out[i].StartTS.Before(out[j].StartTS) })
	merged := mergeAdjacent(out, idleGap)
	for i := range merged {
		merged[i].Score = score(merged[i])
		merged[i].Valid = isValid(merged[i], opts)
	}
	return merged
}

func newWindow(id int, ts time.Time) *StreamWindow {
	return &StreamWindow{ID: id, StartTS: ts, EndTS: ts}
}

func extend(w *StreamWindow, ts time.Time) {
	if ts.After(w.EndTS) {
		w.EndTS = ts
	}
}

// mergeAdjacent merges any two consecutive windows whose gap is < idleGap.
func mergeAdjacent(windows []StreamWindow, idleGap time.Duration) []StreamWindow {
	if len(windows) == 0 {
		return nil
	}
	out := []StreamWindow{windows[0]}
	for _, w := range windows[1:] {
		last := &out[len(out)-1]
		if w.StartTS.Sub(last.EndTS) < idleGap {
			if w.EndTS.After(last.EndTS) {
				last.EndTS = w.EndTS
			}
			last.HasStrongStart = last.HasStrongStart || w.HasStrongStart
			last.HasStartMarker = last.HasStartMarker || w.HasStartMarker
			last.HasEndMarker = last.HasEndMarker || w.HasEndMarker
			last.StartMarkerCount += w.StartMarkerCount
			last.EndMarkerCount += w.EndMarkerCount
			last.ActivityCount += w.ActivityCount
			continue
		}
		out = append(out, w)
	}
	for i := range out {
		out[i].ID = i + 1
	}
	return out
}

// score implements clamp01(0.2*hasStartMarker + 0.4*hasStrongStart +
// min(0.3, activityCount/20) + 0.1*hasEndMarker).
func score(w StreamWindow) float64 {
	s := 0.0
	if w.HasStartMarker {
		s += 0.2
	}
	if w.HasStrongStart {
		s += 0.4
	}
	activityTerm := float64(w.ActivityCount) / 20
	if activityTerm > 0.3 {
		activityTerm = 0.3
	}
	s += activityTerm
	if w.HasEndMarker {
		s += 0.1
	}
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// isValid gates a raw window per the active mode.
func isValid(w StreamWindow, opts Options) bool {
	if opts.Mode == ModeAll {
		return true
	}
	durationOK := w.EndTS.Sub(w.StartTS) >= time.Duration(opts.MinDurationSec*float64(time.Second))
	base := w.HasStartMarker && (w.HasStrongStart || w.ActivityCount >= opts.MinActivityForWeakStart) && durationOK
	if opts.Mode == ModeStrict {
		return base && w.HasStrongStart
	}
	return base
}
