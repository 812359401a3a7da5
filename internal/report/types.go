// Package report implements the report emitter: the Markdown report,
// the CSV table set, and the JSON analysis manifest the report phase writes
// into logs/<capture>/, plus a terminal summary for the human running it.
package report

import (
	"time"

	"github.com/netdiag/streamcheck/internal/appfocus"
	"github.com/netdiag/streamcheck/internal/correlate"
	"github.com/netdiag/streamcheck/internal/events"
	"github.com/netdiag/streamcheck/internal/pinglog"
	"github.com/netdiag/streamcheck/internal/streamsession"
)

// SessionPolicy selects how the report behaves when no valid stream window
// was found.
type SessionPolicy string

const (
	PolicyEmptyMain SessionPolicy = "empty-main"
	PolicyDegraded  SessionPolicy = "degraded"
)

// Provenance records the configuration the analysis ran under, surfaced in
// both the Markdown report and the JSON manifest.
type Provenance struct {
	Mode                  streamsession.Mode
	NoisePolicy           appfocus.NoisePolicy
	NoValidSessionPolicy  SessionPolicy
	PreBufferSec          float64
	PostBufferSec         float64
	ClockSkewToleranceSec float64
	CaptureStart          time.Time
	CaptureEnd            time.Time
	GeneratedAt           time.Time
	Degraded              bool
}

// LineCounters is the full-vs-session / drop-reason counter set for the
// appendix sections.
type LineCounters struct {
	LogcatLinesTotal     int
	LogcatLinesSession   int
	EventsTotal          int
	EventsSession         int
	EventsOutsideSession int
	PerTypeCounts        map[events.Type]int
	DropReasons          map[string]int // drop reason -> count, app-focus + logcat noise filter
	MissingOptional      []string
}

// InternalStatsSummaryRow is one metric's count/min/p50/p95/max/avg row for
// the session-internal INTERNAL_STATS summary table.
type InternalStatsSummaryRow struct {
	Metric appfocus.MetricType
	Count  int
	Min    float64
	P50    float64
	P95    float64
	Max    float64
	Avg    float64
}

// PingFindings is the per-dialect ping-in-session statistics block.
type PingFindings struct {
	Transmitted     int
	Received        int
	PacketLossPct   float64
	HitRatioInSession float64
	P50LatencyMs    float64
	P95LatencyMs    float64
	JitterEventCount int
	BurstCount      int
	Findings        []string
}

// Bundle is every derived artifact the report phase assembles before
// rendering Markdown/CSV/JSON. The report package only
// renders; all analysis happens in correlate/appfocus/pinglog/streamsession.
type Bundle struct {
	Provenance Provenance
	Counters   LineCounters

	RawWindows       []streamsession.StreamWindow
	EffectiveWindows []streamsession.EffectiveWindow

	InternalStatsSummary []InternalStatsSummaryRow
	InternalStats        []appfocus.InternalStatsSample
	AppMetrics           []appfocus.AppMetricSample

	DevicePing PingFindings
	HostPing   PingFindings
	DeviceSamples []pinglog.Sample
	HostSamples   []pinglog.Sample

	Timeline   []correlate.MinuteBucket
	Intervals  []correlate.IntervalStats
	Periodicity []correlate.PeriodicityResult
	Alignments []correlate.TransitionAlignment

	Causes        []correlate.CauseScore
	Bidirectional correlate.BidirectionalResult

	HasValidSession bool
}
