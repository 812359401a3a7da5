package report

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/netdiag/streamcheck/internal/appfocus"
	"github.com/netdiag/streamcheck/internal/correlate"
	"github.com/netdiag/streamcheck/internal/events"
	"github.com/netdiag/streamcheck/internal/pinglog"
	"github.com/netdiag/streamcheck/internal/streamsession"
)

// csvTimeLayout is the CSV timestamp format.
const csvTimeLayout = "2006-01-02 15:04:05.000"

func formatTS(t time.Time) string { return t.UTC().Format(csvTimeLayout) }

func f(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }

func writeRows(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTimeline emits the per-minute timeline CSV (full, or session-filtered
// when onlyKeys is non-nil).
func WriteTimeline(w io.Writer, buckets []correlate.MinuteBucket, onlyKeys map[string]bool) error {
	header := []string{"minute", "wakelock_hits", "wakelock_spike"}
	for _, t := range events.AllTypes {
		header = append(header, string(t))
	}
	var rows [][]string
	for _, b := range buckets {
		if onlyKeys != nil && !onlyKeys[b.Key] {
			continue
		}
		row := []string{b.Key, strconv.Itoa(b.WakelockHits), strconv.FormatBool(b.WakelockSpike)}
		for _, t := range events.AllTypes {
			row = append(row, strconv.Itoa(b.Counts[t]))
		}
		rows = append(rows, row)
	}
	return writeRows(w, header, rows)
}

// WriteIntervals emits the interval-statistics CSV.
func WriteIntervals(w io.Writer, stats []correlate.IntervalStats) error {
	header := []string{"type", "count", "p25_sec", "p50_sec", "p75_sec", "top_bins"}
	var rows [][]string
	for _, s := range stats {
		bins := ""
		for i, b := range s.Bins {
			if i > 0 {
				bins += "|"
			}
			bins += strconv.FormatFloat(b.Start, 'f', 0, 64) + ":" + strconv.Itoa(b.Count)
		}
		rows = append(rows, []string{
			string(s.Type), strconv.Itoa(s.Count), f(s.P25), f(s.P50), f(s.P75), bins,
		})
	}
	return writeRows(w, header, rows)
}

// WriteInternalStats emits the raw INTERNAL_STATS sample CSV.
func WriteInternalStats(w io.Writer, samples []appfocus.InternalStatsSample) error {
	header := []string{
		"ts", "fps_total", "fps_rx", "fps_rd", "loss_frames", "loss_total", "loss_pct",
		"loss_events", "rtt_ms", "rtt_var_ms", "decode_ms", "render_ms", "total_ms",
		"host_latency_min_ms", "host_latency_max_ms", "host_latency_avg_ms", "decoder_hint", "hdr_hint",
	}
	var rows [][]string
	for _, s := range samples {
		rows = append(rows, []string{
			formatTS(s.TS), f(s.FPSTotal), f(s.FPSRx), f(s.FPSRd), f(s.LossFrames), f(s.LossTotal),
			f(s.LossPct), f(s.LossEvents), f(s.RTTMs), f(s.RTTVarMs), f(s.DecodeMs), f(s.RenderMs),
			f(s.TotalMs), f(s.HostLatencyMinMs), f(s.HostLatencyMaxMs), f(s.HostLatencyAvgMs),
			s.DecoderHint, s.HDRHint,
		})
	}
	return writeRows(w, header, rows)
}

// WriteAppMetrics emits the per-field app-metric sample CSV.
func WriteAppMetrics(w io.Writer, samples []appfocus.AppMetricSample) error {
	header := []string{"ts", "type", "value", "unit", "phase", "in_session", "confidence", "source"}
	var rows [][]string
	for _, s := range samples {
		rows = append(rows, []string{
			formatTS(s.TS), string(s.Type), f(s.Value), s.Unit, s.Phase,
			strconv.FormatBool(s.InSession), s.Confidence, string(s.MetricSource),
		})
	}
	return writeRows(w, header, rows)
}

// WriteStreamWindows emits the raw stream-window CSV.
func WriteStreamWindows(w io.Writer, windows []streamsession.StreamWindow) error {
	header := []string{
		"id", "start", "end", "has_strong_start", "has_start_marker", "has_end_marker",
		"start_marker_count", "end_marker_count", "activity_count", "score", "valid",
	}
	var rows [][]string
	for _, win := range windows {
		rows = append(rows, []string{
			strconv.Itoa(win.ID), formatTS(win.StartTS), formatTS(win.EndTS),
			strconv.FormatBool(win.HasStrongStart), strconv.FormatBool(win.HasStartMarker),
			strconv.FormatBool(win.HasEndMarker), strconv.Itoa(win.StartMarkerCount),
			strconv.Itoa(win.EndMarkerCount), strconv.Itoa(win.ActivityCount), f(win.Score),
			strconv.FormatBool(win.Valid),
		})
	}
	return writeRows(w, header, rows)
}

// WriteEffectiveWindows emits the effective (buffered, merged) stream-window
// CSV.
func WriteEffectiveWindows(w io.Writer, windows []streamsession.EffectiveWindow) error {
	header := []string{"id", "start", "end"}
	var rows [][]string
	for _, win := range windows {
		rows = append(rows, []string{strconv.Itoa(win.ID), formatTS(win.StartTS), formatTS(win.EndTS)})
	}
	return writeRows(w, header, rows)
}

// WritePingSamples emits one dialect's ping sample CSV, optionally filtered
// to in-session samples only.
func WritePingSamples(w io.Writer, samples []pinglog.Sample, sessionOnly bool) error {
	header := []string{"ts", "seq", "success", "latency_ms", "status", "ts_source", "phase", "in_session"}
	var rows [][]string
	for _, s := range samples {
		if sessionOnly && !s.InSession {
			continue
		}
		seq := ""
		if s.Seq != nil {
			seq = strconv.Itoa(*s.Seq)
		}
		lat := ""
		if s.LatencyMs != nil {
			lat = f(*s.LatencyMs)
		}
		rows = append(rows, []string{
			formatTS(s.TS), seq, strconv.FormatBool(s.Success), lat, s.Status,
			string(s.TSSource), s.Phase, strconv.FormatBool(s.InSession),
		})
	}
	return writeRows(w, header, rows)
}

// sessionMinuteKeys derives the set of minute keys touched by any effective
// window, for filtering the session-scoped timeline CSV.
func sessionMinuteKeys(buckets []correlate.MinuteBucket, eff []streamsession.EffectiveWindow) map[string]bool {
	keys := map[string]bool{}
	for _, b := range buckets {
		for _, w := range eff {
			if !b.TS.Before(w.StartTS.Truncate(time.Minute)) && !b.TS.After(w.EndTS) {
				keys[b.Key] = true
				break
			}
		}
	}
	return keys
}

func sortedEvidence(rows []correlate.EvidenceRow) []correlate.EvidenceRow {
	out := append([]correlate.EvidenceRow(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS < out[j].TS })
	return out
}
