package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/netdiag/streamcheck/internal/correlate"
	"github.com/netdiag/streamcheck/internal/events"
	"github.com/netdiag/streamcheck/internal/streamsession"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBundle() Bundle {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	return Bundle{
		Provenance: Provenance{
			Mode:         streamsession.ModeAuto,
			NoisePolicy:  "default",
			CaptureStart: start,
			CaptureEnd:   start.Add(time.Hour),
			GeneratedAt:  start.Add(2 * time.Hour),
		},
		Counters: LineCounters{
			LogcatLinesTotal:   100,
			LogcatLinesSession: 40,
			EventsTotal:        10,
			EventsSession:      4,
			PerTypeCounts:      map[events.Type]int{events.Roam: 2},
			DropReasons:        map[string]int{"known_app_noise": 3},
		},
		RawWindows: []streamsession.StreamWindow{
			{ID: 0, StartTS: start, EndTS: start.Add(45 * time.Second), Score: 0.9, Valid: true},
		},
		EffectiveWindows: []streamsession.EffectiveWindow{
			{ID: 0, StartTS: start.Add(-5 * time.Second), EndTS: start.Add(55 * time.Second)},
		},
		Causes: []correlate.CauseScore{
			{Cause: correlate.CauseSystemTransitionInterference, Score: 0.8, Level: correlate.LevelHigh, Confidence: correlate.LevelHigh,
				Evidence: []correlate.EvidenceRow{{TS: 1000, Metric: "x", Detail: "d", Value: 1}}},
		},
		HasValidSession: true,
	}
}

func TestRenderMarkdownIncludesCoreSections(t *testing.T) {
	md := RenderMarkdown(sampleBundle())
	assert.Contains(t, md, "# Network Jitter Diagnostic Report")
	assert.Contains(t, md, "## Stream session identification")
	assert.Contains(t, md, "## Cause ranking")
	assert.Contains(t, md, "system_transition_interference")
}

func TestRenderMarkdownNoSessionEmptyMain(t *testing.T) {
	b := sampleBundle()
	b.HasValidSession = false
	b.Provenance.NoValidSessionPolicy = PolicyEmptyMain
	md := RenderMarkdown(b)
	assert.Contains(t, md, "No valid stream session found")
	assert.NotContains(t, md, "## Cause ranking")
}

func TestWriteTimelineFiltersSessionKeys(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	buckets := []correlate.MinuteBucket{
		{Key: "2026-01-01 10:00", TS: start, Counts: map[events.Type]int{events.Roam: 1}},
		{Key: "2026-01-01 10:01", TS: start.Add(time.Minute), Counts: map[events.Type]int{}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTimeline(&buf, buckets, map[string]bool{"2026-01-01 10:00": true}))
	out := buf.String()
	assert.Contains(t, out, "2026-01-01 10:00")
	assert.NotContains(t, out, "2026-01-01 10:01")
}

func TestBuildManifestRoundTrip(t *testing.T) {
	b := sampleBundle()
	m := BuildManifest(b, b.Provenance.GeneratedAt, map[string]string{"report": "report.md"})
	assert.Equal(t, true, m.Availability.HasValidSession)
	assert.Equal(t, 1, m.StreamWindows.Raw)
	require.Len(t, m.Causes, 1)
	assert.Equal(t, "system_transition_interference", m.Causes[0].Cause)

	var buf bytes.Buffer
	require.NoError(t, WriteManifest(&buf, m))
	assert.True(t, strings.Contains(buf.String(), "\"hasValidSession\": true"))
}

func TestWriteTerminalSummaryNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTerminalSummary(&buf, sampleBundle()))
	assert.Contains(t, buf.String(), "Network Jitter Diagnostic Summary")
}
