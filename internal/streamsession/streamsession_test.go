package streamsession

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04:05", s)
	require.NoError(t, err)
	return ts.UTC()
}

// TestDetectSingleSessionWeakStartThenInternalStats verifies that a weak
// start marker followed by a run of INTERNAL_STATS lines and an end marker
// is detected as a single session window.
func TestDetectSingleSessionWeakStartThenInternalStats(t *testing.T) {
	base := mustParse(t, "2026-01-01 10:00:00")

	lines := []Line{
		{TS: base, Tag: "LimeLog", Message: "Launched new game session"},
		{TS: base.Add(5 * time.Second), Tag: "LimeLog", Message: "Configuring with format 1920x1080"},
	}
	for i := 0; i < 30; i++ {
		ts := base.Add(10 * time.Second).Add(time.Duration(i) * time.Second)
		lines = append(lines, Line{
			TS: ts, Tag: "LimeLog",
			Message: fmt.Sprintf("[INTERNAL_STATS] fps(total/rx/rd)=60/60/60 loss=0/1000(0.00%%) lossEvents=0 rtt=15ms rttVar=2ms decode=3ms render=4ms total=22ms host[min/max/avg]=1/5/3ms Rx %d Rd %d FPS", 60, 60),
		})
	}
	lines = append(lines, Line{TS: base.Add(45 * time.Second), Tag: "LimeLog", Message: "Connection terminated"})

	opts := DefaultOptions()
	windows := Detect(lines, opts)

	require.Len(t, windows, 1)
	w := windows[0]
	assert.True(t, w.Valid)
	assert.True(t, w.HasStrongStart)
	assert.Equal(t, base, w.StartTS)
	assert.Equal(t, base.Add(45*time.Second), w.EndTS)
	assert.GreaterOrEqual(t, w.Score, 0.9)

	opts.ClockSkewToleranceSec = 0
	captureStart := base.Add(-time.Hour)
	captureEnd := base.Add(time.Hour)
	eff := EffectiveWindows(windows, opts, captureStart, captureEnd)
	require.Len(t, eff, 1)
	assert.Equal(t, base.Add(-5*time.Second), eff[0].StartTS)
	assert.Equal(t, base.Add(55*time.Second), eff[0].EndTS)

	phase := NewPhase(windows, eff)
	p, inSession := phase.Resolve(base.Add(20 * time.Second))
	assert.Equal(t, "stream", p)
	assert.True(t, inSession)

	p, inSession = phase.Resolve(base.Add(-time.Minute))
	assert.Equal(t, "preconnect", p)
	assert.False(t, inSession)

	p, _ = phase.Resolve(base.Add(time.Hour / 2))
	assert.Equal(t, "post", p)
}

func TestEffectiveWindowsMergeOverlaps(t *testing.T) {
	base := mustParse(t, "2026-01-01 10:00:00")
	windows := []StreamWindow{
		{StartTS: base, EndTS: base.Add(25 * time.Second), Valid: true, HasStartMarker: true, HasStrongStart: true},
		{StartTS: base.Add(30 * time.Second), EndTS: base.Add(55 * time.Second), Valid: true, HasStartMarker: true, HasStrongStart: true},
	}
	opts := DefaultOptions()
	opts.ClockSkewToleranceSec = 0
	opts.PreBufferSec = 5
	opts.PostBufferSec = 10

	eff := EffectiveWindows(windows, opts, base.Add(-time.Hour), base.Add(time.Hour))
	// window1 effective: [-5s, 35s], window2 effective: [25s, 65s] -> overlap -> merge
	require.Len(t, eff, 1)
	assert.Equal(t, base.Add(-5*time.Second), eff[0].StartTS)
	assert.Equal(t, base.Add(65*time.Second), eff[0].EndTS)
}

func TestIsValidGatesByMode(t *testing.T) {
	base := mustParse(t, "2026-01-01 10:00:00")
	w := StreamWindow{
		StartTS: base, EndTS: base.Add(25 * time.Second),
		HasStartMarker: true, HasStrongStart: false, ActivityCount: 8,
	}
	opts := DefaultOptions()
	assert.True(t, isValid(w, opts))

	opts.Mode = ModeStrict
	assert.False(t, isValid(w, opts))

	w.HasStrongStart = true
	assert.True(t, isValid(w, opts))
}
