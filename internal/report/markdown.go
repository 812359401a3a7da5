package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/netdiag/streamcheck/internal/events"
)

// RenderMarkdown builds the report's Markdown document: an
// availability statement, stream-session identification, session-internal
// INTERNAL_STATS summary, ping-in-session statistics, cause ranking,
// full-vs-session counters, and a noise-reduction appendix. When no valid
// session exists and the provenance policy is empty-main, the main sections
// collapse to a short recapture-suggestion block; when degraded, every
// section renders but is preceded by a one-time degradation banner.
func RenderMarkdown(b Bundle) string {
	var sb strings.Builder
	writeHeader(&sb, b)

	if !b.HasValidSession && b.Provenance.NoValidSessionPolicy == PolicyEmptyMain {
		writeNoSessionBlock(&sb, b)
		writeAppendices(&sb, b)
		return sb.String()
	}

	writeAvailability(&sb, b)
	writeSessionIdentification(&sb, b)
	writeInternalStatsSummary(&sb, b)
	writePingFindings(&sb, b)
	writeCauseRanking(&sb, b)
	writeAppendices(&sb, b)
	return sb.String()
}

func writeHeader(sb *strings.Builder, b Bundle) {
	sb.WriteString("# Network Jitter Diagnostic Report\n\n")
	if b.Provenance.Degraded {
		sb.WriteString("> **DEGRADED ANALYSIS** — one or more inputs were incomplete; every level and " +
			"confidence below is lowered accordingly.\n\n")
	}
	fmt.Fprintf(sb, "Generated: %s  \nCapture window: %s — %s\n\n",
		b.Provenance.GeneratedAt.UTC().Format(csvTimeLayout),
		b.Provenance.CaptureStart.UTC().Format(csvTimeLayout),
		b.Provenance.CaptureEnd.UTC().Format(csvTimeLayout))
}

func writeNoSessionBlock(sb *strings.Builder, b Bundle) {
	sb.WriteString("## No valid stream session found\n\n")
	sb.WriteString("No stream window in this capture satisfied the validity gate for " +
		fmt.Sprintf("mode `%s`.\n\n", b.Provenance.Mode))
	sb.WriteString("Suggestions for recapture:\n\n")
	sb.WriteString("- Confirm the streaming client was actually active during the capture window.\n")
	sb.WriteString("- Increase capture duration so INTERNAL_STATS activity has time to accumulate.\n")
	sb.WriteString("- Re-run with `--stream-window-mode all` to inspect raw (ungated) windows.\n\n")
	if len(b.RawWindows) > 0 {
		fmt.Fprintf(sb, "%d raw window(s) were detected but none passed the validity gate; see "+
			"`stream_windows.csv`.\n\n", len(b.RawWindows))
	}
}

func writeAvailability(sb *strings.Builder, b Bundle) {
	sb.WriteString("## Availability\n\n")
	fmt.Fprintf(sb, "- Valid stream session: **%v**\n", b.HasValidSession)
	fmt.Fprintf(sb, "- Mode: `%s`, noise policy: `%s`\n", b.Provenance.Mode, b.Provenance.NoisePolicy)
	fmt.Fprintf(sb, "- Logcat lines: %d total, %d in-session\n\n",
		b.Counters.LogcatLinesTotal, b.Counters.LogcatLinesSession)
}

func writeSessionIdentification(sb *strings.Builder, b Bundle) {
	sb.WriteString("## Stream session identification\n\n")
	sb.WriteString("### Raw windows\n\n")
	sb.WriteString("| id | start | end | score | valid |\n|---|---|---|---|---|\n")
	for _, w := range b.RawWindows {
		fmt.Fprintf(sb, "| %d | %s | %s | %.2f | %v |\n",
			w.ID, formatTS(w.StartTS), formatTS(w.EndTS), w.Score, w.Valid)
	}
	sb.WriteString("\n### Effective windows\n\n")
	sb.WriteString("| id | start | end |\n|---|---|---|\n")
	for _, w := range b.EffectiveWindows {
		fmt.Fprintf(sb, "| %d | %s | %s |\n", w.ID, formatTS(w.StartTS), formatTS(w.EndTS))
	}
	sb.WriteString("\n")
}

func writeInternalStatsSummary(sb *strings.Builder, b Bundle) {
	sb.WriteString("## Session-internal INTERNAL_STATS summary\n\n")
	sb.WriteString("| metric | count | min | p50 | p95 | max | avg |\n|---|---|---|---|---|---|---|\n")
	for _, r := range b.InternalStatsSummary {
		fmt.Fprintf(sb, "| %s | %d | %.2f | %.2f | %.2f | %.2f | %.2f |\n",
			r.Metric, r.Count, r.Min, r.P50, r.P95, r.Max, r.Avg)
	}
	sb.WriteString("\n")
}

func writePingFindings(sb *strings.Builder, b Bundle) {
	sb.WriteString("## Ping-in-session statistics\n\n")
	writePingSide(sb, "Device-side", b.DevicePing)
	writePingSide(sb, "Host-side", b.HostPing)

	sb.WriteString("### Bidirectional analysis\n\n")
	bi := b.Bidirectional
	fmt.Fprintf(sb, "- Direction: **%s** (confidence %s)\n", bi.Direction, bi.Confidence)
	fmt.Fprintf(sb, "- Paired samples: %d (device coverage %.1f%%, host coverage %.1f%%)\n",
		bi.PairedCount, bi.DeviceCoverage*100, bi.HostCoverage*100)
	fmt.Fprintf(sb, "- Burst overlap: %.2f, mean signed Δ: %.2f ms, p95 |Δ|: %.2f ms\n",
		bi.BurstOverlap, bi.MeanSignedDeltaMs, bi.P95AbsDeltaMs)
	if len(bi.Findings) > 0 {
		fmt.Fprintf(sb, "- Findings: %s\n", strings.Join(bi.Findings, ", "))
	}
	sb.WriteString("\n")
}

func writePingSide(sb *strings.Builder, label string, f PingFindings) {
	fmt.Fprintf(sb, "### %s\n\n", label)
	fmt.Fprintf(sb, "- Transmitted/received: %d/%d (%.2f%% loss)\n", f.Transmitted, f.Received, f.PacketLossPct)
	fmt.Fprintf(sb, "- Hit ratio in session: %.2f\n", f.HitRatioInSession)
	fmt.Fprintf(sb, "- p50/p95 latency: %.2f/%.2f ms\n", f.P50LatencyMs, f.P95LatencyMs)
	fmt.Fprintf(sb, "- Jitter events: %d, high-latency bursts: %d\n", f.JitterEventCount, f.BurstCount)
	if len(f.Findings) > 0 {
		fmt.Fprintf(sb, "- Findings: %s\n", strings.Join(f.Findings, ", "))
	}
	sb.WriteString("\n")
}

func writeCauseRanking(sb *strings.Builder, b Bundle) {
	sb.WriteString("## Cause ranking\n\n")
	top := b.Causes
	if len(top) > 3 {
		top = top[:3]
	}
	for i, c := range top {
		fmt.Fprintf(sb, "### %d. %s — %s (score %.2f, confidence %s)\n\n", i+1, c.Cause, c.Level, c.Score, c.Confidence)
		fmt.Fprintf(sb, "overlap=%.2f leadLag=%.2f intensity=%.2f\n\n", c.Overlap, c.LeadLag, c.Intensity)
		sb.WriteString("| ts | metric | detail | value |\n|---|---|---|---|\n")
		for _, e := range sortedEvidence(c.Evidence) {
			ts := ""
			if e.TS != 0 {
				ts = fmt.Sprintf("%d", e.TS)
			}
			fmt.Fprintf(sb, "| %s | %s | %s | %.2f |\n", ts, e.Metric, e.Detail, e.Value)
		}
		sb.WriteString("\n")
	}
}

func writeAppendices(sb *strings.Builder, b Bundle) {
	sb.WriteString("## Appendix: full-vs-session counters\n\n")
	fmt.Fprintf(sb, "- Events total: %d, in-session: %d, outside session: %d\n",
		b.Counters.EventsTotal, b.Counters.EventsSession, b.Counters.EventsOutsideSession)
	sb.WriteString("\n| type | count |\n|---|---|\n")
	var types []string
	for t := range b.Counters.PerTypeCounts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(sb, "| %s | %d |\n", t, b.Counters.PerTypeCounts[events.Type(t)])
	}

	sb.WriteString("\n## Appendix: noise reduction\n\n")
	sb.WriteString("Top drop reasons:\n\n| reason | count |\n|---|---|\n")
	var reasons []string
	for r := range b.Counters.DropReasons {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return b.Counters.DropReasons[reasons[i]] > b.Counters.DropReasons[reasons[j]] })
	for _, r := range reasons {
		fmt.Fprintf(sb, "| %s | %d |\n", r, b.Counters.DropReasons[r])
	}
	if len(b.Counters.MissingOptional) > 0 {
		fmt.Fprintf(sb, "\nMissing optional inputs: %s\n", strings.Join(b.Counters.MissingOptional, ", "))
	}
}
