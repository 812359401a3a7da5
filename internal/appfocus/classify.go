package appfocus

import "regexp"

var preconnectPollRe = regexp.MustCompile(`(?i)poll(ing)? for connection|waiting for handshake`)

// knownAppNoiseRe matches lines that are always dropped regardless of policy
// or phase, e.g. verbose per-frame heartbeat ticks with no diagnostic value.
var knownAppNoiseRe = regexp.MustCompile(`(?i)^heartbeat\s*tick$`)

// Options configures the drop decision.
type Options struct {
	AppTag      string
	NoisePolicy NoisePolicy
	Resolve     PhaseResolver
}

// Process classifies one line, extracts every metric/anomaly it carries, and
// applies the keep/drop decision.
func Process(l Line, opts Options) Result {
	phase, inSession := "unknown", false
	if opts.Resolve != nil {
		phase, inSession = opts.Resolve(l.TS)
	}

	res := Result{Phase: phase}

	if stats, metrics, ok := ParseInternalStats(l.TS, l.Message); ok {
		for i := range metrics {
			metrics[i].Phase = phase
			metrics[i].InSession = inSession
		}
		res.InternalStats = &stats
		res.Metrics = append(res.Metrics, metrics...)
	}

	legacyMetrics := ParseLegacyPatterns(l.TS, l.Message)
	for i := range legacyMetrics {
		legacyMetrics[i].Phase = phase
		legacyMetrics[i].InSession = inSession
	}
	res.Metrics = append(res.Metrics, legacyMetrics...)

	res.Anomalies = DetectAnomalies(l, opts.AppTag)

	res.Kept, res.DropReason = dropDecision(l, phase, inSession, opts.NoisePolicy, res)
	return res
}

func dropDecision(l Line, phase string, inSession bool, policy NoisePolicy, res Result) (kept bool, reason string) {
	if knownAppNoiseRe.MatchString(l.Message) {
		return false, "known_app_noise"
	}
	if preconnectPollRe.MatchString(l.Message) {
		if !(policy == NoisePolicyConservative && phase == "stream") {
			return false, "preconnect_polling_noise"
		}
	}
	// Aggressive noise reduction additionally discards legacy-pattern
	// (medium-confidence) metrics once a line falls outside the session
	// window, where only internal_stats-sourced observations are kept.
	if policy == NoisePolicyAggressive && !inSession && res.InternalStats == nil && len(res.Anomalies) == 0 {
		onlyLegacy := len(res.Metrics) > 0
		for _, m := range res.Metrics {
			if m.MetricSource != SourceLegacyPattern {
				onlyLegacy = false
				break
			}
		}
		if onlyLegacy {
			return false, "aggressive_legacy_outside_session"
		}
	}
	if res.InternalStats != nil || len(res.Metrics) > 0 || len(res.Anomalies) > 0 {
		return true, ""
	}
	if l.Tag == "" {
		return false, "no_signal"
	}
	if l.Level == "W" || l.Level == "E" {
		return true, ""
	}
	return false, "no_signal"
}
