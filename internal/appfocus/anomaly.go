package appfocus

import "regexp"

var anomalyPatterns = []struct {
	typ AnomalyType
	re  *regexp.Regexp
}{
	{AnomalyNetworkUnstable, regexp.MustCompile(`(?i)network\s*(is\s*)?unstable`)},
	{AnomalyConnectionFailure, regexp.MustCompile(`(?i)connection\s*(failed|failure)`)},
	{AnomalyPollFailedQuickly, regexp.MustCompile(`(?i)poll(ing)?\s*failed\s*(quickly|fast|immediately)`)},
	{AnomalyOffline, regexp.MustCompile(`(?i)\boffline\b`)},
	{AnomalyPendingAudioBacklog, regexp.MustCompile(`(?i)pending\s*audio\s*backlog|audio\s*queue\s*overflow`)},
	{AnomalyStageFailedOrTerm, regexp.MustCompile(`(?i)stage\s*failed|\bTERMINATED\b`)},
	{AnomalyFramePacingOrSkip, regexp.MustCompile(`(?i)frame\s*(pacing|skip(ped)?)`)},
}

// DetectAnomalies matches one line against the anomaly-pattern bank and the
// app-tag warn/error signal. appTag identifies the
// streaming client's own logcat tag so only its own warnings/errors count.
func DetectAnomalies(l Line, appTag string) []Anomaly {
	var out []Anomaly
	for _, p := range anomalyPatterns {
		if p.re.MatchString(l.Message) {
			out = append(out, Anomaly{TS: l.TS, Type: p.typ, Priority: l.Level, Tag: l.Tag, Line: l.Message})
		}
	}
	if l.Tag == appTag && (l.Level == "W" || l.Level == "E" || l.Level == "F" || l.Level == "A") {
		out = append(out, Anomaly{TS: l.TS, Type: AnomalyWarnOrError, Priority: l.Level, Tag: l.Tag, Line: l.Message})
	}
	return out
}

// DedupeAnomalies drops repeats of (ts, type, line) within one batch, keeping
// first occurrence order.
func DedupeAnomalies(anomalies []Anomaly) []Anomaly {
	type key struct {
		ts   int64
		typ  AnomalyType
		line string
	}
	seen := map[key]bool{}
	var out []Anomaly
	for _, a := range anomalies {
		k := key{a.TS.UnixMilli(), a.Type, a.Line}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, a)
	}
	return out
}
