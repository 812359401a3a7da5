// Package pipeline wires the report phase's parsers and the correlation
// engine into one ordered pass over a capture directory: one scan of
// logcat_all.log classifies lines into events and collects the streaming
// client's lines; stream-session detection runs on those lines so every
// later stage can ask it for phase/in-session answers; then dumpsys
// transition detection, app-focus extraction, and ping parsing fill the
// event store and the cause inputs, and finally the correlation engine runs
// over the assembled data for the report emitter to render. Logcat and ping
// logs are read line by line; each dumpsys log is read into memory as its
// full list of snapshots.
package pipeline

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/netdiag/streamcheck/internal/appfocus"
	"github.com/netdiag/streamcheck/internal/capture"
	"github.com/netdiag/streamcheck/internal/correlate"
	"github.com/netdiag/streamcheck/internal/dumpsys"
	"github.com/netdiag/streamcheck/internal/events"
	"github.com/netdiag/streamcheck/internal/logcat"
	"github.com/netdiag/streamcheck/internal/pinglog"
	"github.com/netdiag/streamcheck/internal/report"
	"github.com/netdiag/streamcheck/internal/snapshot"
	"github.com/netdiag/streamcheck/internal/streamsession"
	"github.com/netdiag/streamcheck/internal/timeutil"
)

// appTag is the streaming client's logcat tag.
const appTag = "LimeLog"

// Options configures one report run (the CLI surface, minus flag parsing
// itself, which cmd/report owns).
type Options struct {
	Dir                   string
	StreamWindowMode      streamsession.Mode
	NoisePolicy           appfocus.NoisePolicy
	SessionPreBufferSec   float64
	SessionPostBufferSec  float64
	ClockSkewToleranceSec float64
	NoValidSessionPolicy  report.SessionPolicy
	PingLogTzOffset       string
	Now                   func() time.Time
}

// Run executes the full report pass over opts.Dir and returns the
// assembled report.Bundle for the caller (cmd/report) to render and write.
func Run(opts Options) (report.Bundle, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logcatPath := filepath.Join(opts.Dir, "logcat_all.log")
	if _, err := os.Stat(logcatPath); err != nil {
		return report.Bundle{}, fmt.Errorf("missing required logcat_all.log: %w", err)
	}

	captureStart, captureEnd, err := captureWindow(opts.Dir, logcatPath)
	if err != nil {
		return report.Bundle{}, err
	}
	anchor := timeutil.NewYearAnchor(captureStart)

	var missing []string

	scan, err := scanLogcat(logcatPath, anchor)
	if err != nil {
		return report.Bundle{}, err
	}

	sessionOpts := streamsession.Options{
		Mode:                    opts.StreamWindowMode,
		IdleGapSec:              10,
		PreBufferSec:            opts.SessionPreBufferSec,
		PostBufferSec:           opts.SessionPostBufferSec,
		ClockSkewToleranceSec:   opts.ClockSkewToleranceSec,
		MinDurationSec:          20,
		MinActivityForWeakStart: 6,
	}
	rawWindows := streamsession.Detect(scan.sessionLines, sessionOpts)
	effWindows := streamsession.EffectiveWindows(rawWindows, sessionOpts, captureStart, captureEnd)
	phase := streamsession.NewPhase(rawWindows, effWindows)

	hasValidSession := false
	for _, w := range rawWindows {
		if w.Valid {
			hasValidSession = true
			break
		}
	}

	store := events.NewStore()
	for _, ev := range scan.storeEvents {
		store.Add(ev)
	}
	wakelockHitsPerMinute := map[string]int{}
	for _, hit := range scan.wakelockHits {
		wakelockHitsPerMinute[hit.UTC().Truncate(time.Minute).Format("2006-01-02 15:04")]++
	}

	dsMissing, err := loadDumpsysTransitions(opts.Dir, store)
	if err != nil {
		return report.Bundle{}, err
	}
	missing = append(missing, dsMissing...)

	appResult := processAppFocus(scan.appOnlyLines, phase.Resolve, opts.NoisePolicy, scan.dropReasons)

	devicePing, devMissing := parseDevicePing(opts.Dir, captureStart, phase.Resolve)
	missing = append(missing, devMissing...)
	hostPing, hostMissing := parseHostPing(opts.Dir, captureStart, phase.Resolve)
	missing = append(missing, hostMissing...)

	degraded := len(missing) > 0 || (!hasValidSession && opts.NoValidSessionPolicy == report.PolicyDegraded)

	timeline := correlate.BuildTimeline(store, captureStart, captureEnd, wakelockHitsPerMinute)
	intervalTypes := append(append([]events.Type{}, correlate.NetworkTypes...), correlate.TransitionTypes...)
	intervals := correlate.IntervalStatsForTypes(store, intervalTypes)
	periodicity := correlate.PeriodicityForTypes(store, intervalTypes)
	alignments := correlate.AlignTransitions(store, correlate.TransitionTypes, 60_000)

	causeInputs := buildCauseInputs(devicePing, appResult, store, degraded)
	causes := correlate.RankCauses(causeInputs)

	deviceFocus := toPingFocus(devicePing)
	hostFocus := toPingFocus(hostPing)
	bidirectional := correlate.Bidirectional(deviceFocus, hostFocus)

	eventsTotal, eventsSession, eventsOutside := countEventsByWindow(store, effWindows)
	logcatSession := 0
	for _, l := range scan.sessionLines {
		if _, inSession := phase.Resolve(l.TS); inSession {
			logcatSession++
		}
	}

	bundle := report.Bundle{
		Provenance: report.Provenance{
			Mode:                  opts.StreamWindowMode,
			NoisePolicy:           opts.NoisePolicy,
			NoValidSessionPolicy:  opts.NoValidSessionPolicy,
			PreBufferSec:          opts.SessionPreBufferSec,
			PostBufferSec:         opts.SessionPostBufferSec,
			ClockSkewToleranceSec: opts.ClockSkewToleranceSec,
			CaptureStart:          captureStart,
			CaptureEnd:            captureEnd,
			GeneratedAt:           now(),
			Degraded:              degraded,
		},
		Counters: report.LineCounters{
			LogcatLinesTotal:     scan.total,
			LogcatLinesSession:   logcatSession,
			EventsTotal:          eventsTotal,
			EventsSession:        eventsSession,
			EventsOutsideSession: eventsOutside,
			PerTypeCounts:        perTypeCounts(store),
			DropReasons:          scan.dropReasons,
			MissingOptional:      missing,
		},
		RawWindows:           rawWindows,
		EffectiveWindows:     effWindows,
		InternalStatsSummary: summarizeInternalStats(appResult.metrics),
		InternalStats:        appResult.stats,
		AppMetrics:           appResult.metrics,
		DevicePing:           summarizePing(devicePing),
		HostPing:             summarizePing(hostPing),
		DeviceSamples:        devicePing,
		HostSamples:          hostPing,
		Timeline:             timeline,
		Intervals:            intervals,
		Periodicity:          periodicity,
		Alignments:           alignments,
		Causes:               causes,
		Bidirectional:        bidirectional,
		HasValidSession:      hasValidSession,
	}
	return bundle, nil
}

// captureWindow derives the capture's [start, end) from capture_meta.json's
// startedAtIso/stoppedAtIso, the true capture boundaries recorded by the
// orchestrator, since the per-minute timeline and effective-window clipping
// both depend on the actual capture start/end rather than a fixed duration.
// Without a stoppedAtIso the end is the start plus the manifest's Minutes
// (30 when unset). When the manifest is unreadable or its startedAtIso does
// not parse — e.g. a standalone logcat file dropped in under test with no
// sibling capture_meta.json — the start falls back to logcat_all.log's
// modification time and the window to 30 minutes.
func captureWindow(dir, logcatPath string) (time.Time, time.Time, error) {
	manifestPath := filepath.Join(dir, "capture_meta.json")
	if f, err := os.Open(manifestPath); err == nil {
		defer f.Close()
		m, err := capture.ReadManifest(f)
		if err == nil {
			start, startErr := time.Parse(time.RFC3339Nano, m.StartedAtIso)
			if startErr == nil {
				if m.StoppedAtIso != "" {
					if end, endErr := time.Parse(time.RFC3339Nano, m.StoppedAtIso); endErr == nil {
						return start, end, nil
					}
				}
				minutes := m.Minutes
				if minutes <= 0 {
					minutes = 30
				}
				return start, start.Add(time.Duration(minutes) * time.Minute), nil
			}
		}
	}

	info, err := os.Stat(logcatPath)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := info.ModTime()
	end := start.Add(30 * time.Minute)
	return start, end, nil
}

type scanResult struct {
	total        int
	dropReasons  map[string]int
	sessionLines []streamsession.Line
	appOnlyLines []appfocus.Line
	storeEvents  []events.Event
	wakelockHits []time.Time
}

// streamingClientMarkerRe catches the streaming client's own session/metric
// markers (INTERNAL_STATS, STREAM_SESSION, Rx/Rd FPS lines) even when they
// surface under a tag other than appTag — a tag-only check misses a client
// that logs its session markers under an unexpected or rotated tag.
var streamingClientMarkerRe = regexp.MustCompile(`(?i)\[INTERNAL_STATS\]|\[STREAM_SESSION\]|Rx\s*\d+(\.\d+)?\s*/\s*Rd\s*\d+(\.\d+)?\s*FPS`)

func looksLikeStreamingClientLine(message string) bool {
	return streamingClientMarkerRe.MatchString(message)
}

// scanLogcat makes one pass over logcat_all.log, threadtime-parsing each
// line, classifying it into events, and separating out app-tagged lines
// (and any other line matching the streaming client's own markers) for
// the session detector and app-focus extractor.
func scanLogcat(path string, anchor timeutil.YearAnchor) (scanResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return scanResult{}, err
	}
	defer f.Close()

	res := scanResult{dropReasons: map[string]int{}}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		res.total++
		line := sc.Text()
		tt, ok := timeutil.ParseThreadtime(line, anchor, time.UTC)
		if !ok {
			continue
		}

		cl := logcat.Classify(logcat.Line{Tag: tt.Tag, Message: tt.Message})
		if cl.Dropped {
			res.dropReasons[cl.DropReason]++
		} else {
			for _, t := range cl.Types {
				res.storeEvents = append(res.storeEvents, events.Event{Type: t, TS: tt.Time, Source: "logcat", RawLine: line})
			}
			if cl.WakelockHit {
				res.wakelockHits = append(res.wakelockHits, tt.Time)
			}
		}

		if tt.Tag == appTag || looksLikeStreamingClientLine(tt.Message) {
			res.sessionLines = append(res.sessionLines, streamsession.Line{TS: tt.Time, Tag: tt.Tag, Message: tt.Message})
			res.appOnlyLines = append(res.appOnlyLines, appfocus.Line{
				TS: tt.Time, Tag: tt.Tag, Level: string(rune(tt.Level)), Message: tt.Message,
			})
		}
	}
	if err := sc.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func perTypeCounts(store *events.Store) map[events.Type]int {
	out := map[events.Type]int{}
	for _, t := range events.AllTypes {
		out[t] = store.Count(t)
	}
	return out
}

func countEventsByWindow(store *events.Store, eff []streamsession.EffectiveWindow) (total, inSession, outside int) {
	for _, t := range events.AllTypes {
		for _, ev := range store.ByType(t) {
			total++
			in := false
			for _, w := range eff {
				if !ev.TS.Before(w.StartTS) && !ev.TS.After(w.EndTS) {
					in = true
					break
				}
			}
			if in {
				inSession++
			} else {
				outside++
			}
		}
	}
	return total, inSession, outside
}

func loadDumpsysTransitions(dir string, store *events.Store) ([]string, error) {
	services := []struct {
		file   string
		detect func([]snapshot.Snapshot) []events.Event
	}{
		{"dumpsys_wifi.log", dumpsys.DetectWifiTransitions},
		{"dumpsys_alarm.log", dumpsys.DetectAlarmTransitions},
		{"dumpsys_jobs.log", dumpsys.DetectJobTransitions},
		{"dumpsys_deviceidle.log", dumpsys.DetectDeviceIdleTransitions},
		{"dumpsys_power.log", dumpsys.DetectPowerTransitions},
	}

	var missing []string
	for _, svc := range services {
		path := filepath.Join(dir, svc.file)
		f, err := os.Open(path)
		if err != nil {
			missing = append(missing, svc.file)
			continue
		}
		snaps, err := snapshot.ReadAll(f)
		f.Close()
		if err != nil {
			return missing, fmt.Errorf("parse %s: %w", svc.file, err)
		}
		store.AddAll(svc.detect(snaps))
	}
	return missing, nil
}

type appFocusResult struct {
	stats     []appfocus.InternalStatsSample
	metrics   []appfocus.AppMetricSample
	anomalies []appfocus.Anomaly
}

func processAppFocus(lines []appfocus.Line, resolve appfocus.PhaseResolver, policy appfocus.NoisePolicy, dropReasons map[string]int) appFocusResult {
	var res appFocusResult
	opts := appfocus.Options{AppTag: appTag, NoisePolicy: policy, Resolve: resolve}
	for _, l := range lines {
		out := appfocus.Process(l, opts)
		if !out.Kept {
			if out.DropReason != "" {
				dropReasons[out.DropReason]++
			}
			continue
		}
		if out.InternalStats != nil {
			res.stats = append(res.stats, *out.InternalStats)
		}
		res.metrics = append(res.metrics, out.Metrics...)
		res.anomalies = append(res.anomalies, out.Anomalies...)
	}
	return res
}

func summarizeInternalStats(metrics []appfocus.AppMetricSample) []report.InternalStatsSummaryRow {
	byType := map[appfocus.MetricType][]float64{}
	for _, m := range metrics {
		byType[m.Type] = append(byType[m.Type], m.Value)
	}
	var rows []report.InternalStatsSummaryRow
	for t, values := range byType {
		sorted := timeutil.SortedFloat64s(values)
		var sum, max float64
		min := sorted[0]
		for _, v := range sorted {
			sum += v
			if v > max {
				max = v
			}
			if v < min {
				min = v
			}
		}
		rows = append(rows, report.InternalStatsSummaryRow{
			Metric: t,
			Count:  len(sorted),
			Min:    min,
			P50:    timeutil.Quantile(sorted, 0.50),
			P95:    timeutil.Quantile(sorted, 0.95),
			Max:    max,
			Avg:    sum / float64(len(sorted)),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Metric < rows[j].Metric })
	return rows
}

func parseDevicePing(dir string, captureStart time.Time, resolve pinglog.PhaseResolver) ([]pinglog.Sample, []string) {
	path := filepath.Join(dir, "ping_host.log")
	f, err := os.Open(path)
	if err != nil {
		return nil, []string{"ping_host.log"}
	}
	defer f.Close()
	res := pinglog.ParseDeviceLog(f, pinglog.DeviceParseOptions{CaptureStartTS: captureStart, IntervalSec: 1, Resolve: resolve})
	return res.Samples, nil
}

func parseHostPing(dir string, captureStart time.Time, resolve pinglog.PhaseResolver) ([]pinglog.Sample, []string) {
	path := filepath.Join(dir, "ping_host_side.log")
	f, err := os.Open(path)
	if err != nil {
		return nil, []string{"ping_host_side.log"}
	}
	defer f.Close()
	res := pinglog.ParseHostLog(f, pinglog.HostParseOptions{CaptureStartTS: captureStart, IntervalSec: 1, Resolve: resolve})
	return res.Samples, nil
}

func summarizePing(samples []pinglog.Sample) report.PingFindings {
	var latencies []float64
	var transmitted, received, inSession int
	for _, s := range samples {
		transmitted++
		if s.InSession {
			inSession++
		}
		if s.Success {
			received++
			if s.LatencyMs != nil {
				latencies = append(latencies, *s.LatencyMs)
			}
		}
	}
	sorted := timeutil.SortedFloat64s(latencies)
	threshold := pinglog.ComputeThreshold(latencies)
	bursts := pinglog.HighLatencyBursts(samples, threshold)
	jitter := pinglog.JitterEvents(samples)

	findings := report.PingFindings{
		Transmitted:      transmitted,
		Received:         received,
		JitterEventCount: len(jitter),
		BurstCount:       len(bursts),
	}
	if transmitted > 0 {
		findings.PacketLossPct = 100 * float64(transmitted-received) / float64(transmitted)
		findings.HitRatioInSession = float64(inSession) / float64(transmitted)
	}
	if len(sorted) > 0 {
		findings.P50LatencyMs = timeutil.Quantile(sorted, 0.50)
		findings.P95LatencyMs = timeutil.Quantile(sorted, 0.95)
	}
	if findings.BurstCount > 0 {
		findings.Findings = append(findings.Findings, "high_latency_bursts_detected")
	}
	if findings.JitterEventCount > 0 {
		findings.Findings = append(findings.Findings, "jitter_events_detected")
	}
	return findings
}

func toPingFocus(samples []pinglog.Sample) correlate.PingFocus {
	var focus correlate.PingFocus
	focus.IntervalSec = 1
	var latencies []float64
	for _, s := range samples {
		if s.Success && s.LatencyMs != nil {
			focus.SampleTsMs = append(focus.SampleTsMs, s.TS.UnixMilli())
			focus.LatencyMs = append(focus.LatencyMs, *s.LatencyMs)
			latencies = append(latencies, *s.LatencyMs)
		}
	}
	threshold := pinglog.ComputeThreshold(latencies)
	for _, b := range pinglog.HighLatencyBursts(samples, threshold) {
		focus.BurstStartsMs = append(focus.BurstStartsMs, b.StartTS)
		focus.BurstEndsMs = append(focus.BurstEndsMs, b.EndTS)
	}
	return focus
}

func buildCauseInputs(devicePing []pinglog.Sample, app appFocusResult, store *events.Store, degraded bool) correlate.CauseInputs {
	in := correlate.CauseInputs{Degraded: degraded}

	var latencies []float64
	for _, s := range devicePing {
		if s.Success && s.LatencyMs != nil {
			in.HighLatencyStartsMs = append(in.HighLatencyStartsMs, s.TS.UnixMilli())
			latencies = append(latencies, *s.LatencyMs)
		}
	}
	in.LatencyMsSamples = latencies
	jitter := pinglog.JitterEvents(devicePing)
	for _, j := range jitter {
		in.JitterPointsMs = append(in.JitterPointsMs, j.TS)
		in.JitterDeltaMsSamples = append(in.JitterDeltaMsSamples, math.Abs(j.DeltaMs))
	}
	if len(devicePing) > 0 {
		failed := 0
		for _, s := range devicePing {
			if !s.Success {
				failed++
			}
		}
		in.LossPct = 100 * float64(failed) / float64(len(devicePing))
	}

	for _, a := range app.stats {
		ms := a.TS.UnixMilli()
		in.RTTVarMsTimestamps = append(in.RTTVarMsTimestamps, ms)
		in.RTTVarMsValues = append(in.RTTVarMsValues, a.RTTVarMs)
		in.DecodeMsTimestamps = append(in.DecodeMsTimestamps, ms)
		in.DecodeMsValues = append(in.DecodeMsValues, a.DecodeMs)
		in.RenderMsTimestamps = append(in.RenderMsTimestamps, ms)
		in.RenderMsValues = append(in.RenderMsValues, a.RenderMs)
		in.TotalMsTimestamps = append(in.TotalMsTimestamps, ms)
		in.TotalMsValues = append(in.TotalMsValues, a.TotalMs)
		in.LossPctTimestamps = append(in.LossPctTimestamps, ms)
		in.LossPctValues = append(in.LossPctValues, a.LossPct)
		in.FPSValues = append(in.FPSValues, a.FPSTotal)
	}
	for _, an := range app.anomalies {
		in.AppAnomalyPointsMs = append(in.AppAnomalyPointsMs, an.TS.UnixMilli())
	}

	in.SystemTransitionTimestamps = map[events.Type][]int64{}
	for _, t := range correlate.SystemTransitionCauseTypes {
		in.SystemTransitionTimestamps[t] = store.TimestampsMs(t)
	}

	return in
}
