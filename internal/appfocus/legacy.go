package appfocus

import (
	"regexp"
	"strconv"
	"time"
)

type legacyExtractor struct {
	re  *regexp.Regexp
	fn  func(ts time.Time, m []string) []AppMetricSample
}

var legacyExtractors = []legacyExtractor{
	{
		// "fps: 58/60" (rendered/target, or rx/rd pair in older builds)
		re: regexp.MustCompile(`(?i)\bfps[:=]\s*([\d.]+)\s*/\s*([\d.]+)\b`),
		fn: func(ts time.Time, m []string) []AppMetricSample {
			a, _ := strconv.ParseFloat(m[1], 64)
			b, _ := strconv.ParseFloat(m[2], 64)
			return []AppMetricSample{legacy(ts, MetricFPSPairLegacy, a, "fps"), legacy(ts, MetricFPSPairLegacy, b, "fps")}
		},
	},
	{
		// "rtt 18ms +/- 4ms" style jitter report
		re: regexp.MustCompile(`(?i)\brtt\s*([\d.]+)\s*ms\s*(?:\+/-|±)\s*([\d.]+)\s*ms`),
		fn: func(ts time.Time, m []string) []AppMetricSample {
			v, _ := strconv.ParseFloat(m[1], 64)
			jit, _ := strconv.ParseFloat(m[2], 64)
			return []AppMetricSample{legacy(ts, MetricRTTJitterLegacy, v, "ms"), legacy(ts, MetricRTTJitterLegacy, jit, "ms")}
		},
	},
	{
		// "packet loss 1.5%"
		re: regexp.MustCompile(`(?i)packet\s*loss\s*([\d.]+)\s*%`),
		fn: func(ts time.Time, m []string) []AppMetricSample {
			v, _ := strconv.ParseFloat(m[1], 64)
			return []AppMetricSample{legacy(ts, MetricLossRateLegacy, v, "pct")}
		},
	},
	{
		// "sync: a=1.234 b=5.678" precise-sync tuples
		re: regexp.MustCompile(`(?i)\bsync[:=]\s*a=([\d.]+)\s*b=([\d.]+)`),
		fn: func(ts time.Time, m []string) []AppMetricSample {
			a, _ := strconv.ParseFloat(m[1], 64)
			b, _ := strconv.ParseFloat(m[2], 64)
			return []AppMetricSample{legacy(ts, MetricPreciseSyncLegacy, a, "s"), legacy(ts, MetricPreciseSyncLegacy, b, "s")}
		},
	},
	{
		// "pendingAudio=12"
		re: regexp.MustCompile(`(?i)pendingAudio[:=]\s*(\d+)`),
		fn: func(ts time.Time, m []string) []AppMetricSample {
			v, _ := strconv.ParseFloat(m[1], 64)
			return []AppMetricSample{legacy(ts, MetricPendingAudioLegacy, v, "buffers")}
		},
	},
	{
		// "timeout config: connectMs=5000"
		re: regexp.MustCompile(`(?i)timeout\s*config.*connectMs[:=]\s*(\d+)`),
		fn: func(ts time.Time, m []string) []AppMetricSample {
			v, _ := strconv.ParseFloat(m[1], 64)
			return []AppMetricSample{legacy(ts, MetricTimeoutCfgLegacy, v, "ms")}
		},
	},
	{
		// "connStats bytesIn=1000 bytesOut=2000"
		re: regexp.MustCompile(`(?i)connStats\s*bytesIn[:=]\s*(\d+)\s*bytesOut[:=]\s*(\d+)`),
		fn: func(ts time.Time, m []string) []AppMetricSample {
			a, _ := strconv.ParseFloat(m[1], 64)
			b, _ := strconv.ParseFloat(m[2], 64)
			return []AppMetricSample{legacy(ts, MetricConnStatsLegacy, a, "bytes"), legacy(ts, MetricConnStatsLegacy, b, "bytes")}
		},
	},
	{
		// "e2e latency 45ms"
		re: regexp.MustCompile(`(?i)e2e\s*latency\s*([\d.]+)\s*ms`),
		fn: func(ts time.Time, m []string) []AppMetricSample {
			v, _ := strconv.ParseFloat(m[1], 64)
			return []AppMetricSample{legacy(ts, MetricE2ELatencyLegacy, v, "ms")}
		},
	},
	{
		// "decoderLatencyMs=7"
		re: regexp.MustCompile(`(?i)decoderLatencyMs[:=]\s*([\d.]+)`),
		fn: func(ts time.Time, m []string) []AppMetricSample {
			v, _ := strconv.ParseFloat(m[1], 64)
			return []AppMetricSample{legacy(ts, MetricDecoderLatLegacy, v, "ms")}
		},
	},
	{
		// "display refresh 120Hz"
		re: regexp.MustCompile(`(?i)display\s*refresh\s*([\d.]+)\s*Hz`),
		fn: func(ts time.Time, m []string) []AppMetricSample {
			v, _ := strconv.ParseFloat(m[1], 64)
			return []AppMetricSample{legacy(ts, MetricDisplayRefrLegacy, v, "hz")}
		},
	},
}

func legacy(ts time.Time, typ MetricType, v float64, unit string) AppMetricSample {
	return AppMetricSample{TS: ts, Type: typ, Value: v, Unit: unit, Confidence: "medium", MetricSource: SourceLegacyPattern}
}

// ParseLegacyPatterns runs every legacy extractor against one message and
// returns the union of all hits.
func ParseLegacyPatterns(ts time.Time, message string) []AppMetricSample {
	var out []AppMetricSample
	for _, ex := range legacyExtractors {
		if m := ex.re.FindStringSubmatch(message); m != nil {
			out = append(out, ex.fn(ts, m)...)
		}
	}
	return out
}
