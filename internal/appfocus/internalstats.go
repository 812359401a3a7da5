package appfocus

import (
	"regexp"
	"strconv"
	"time"
)

var internalStatsRe = regexp.MustCompile(
	`\[INTERNAL_STATS\]\s*` +
		`fps\(total/rx/rd\)=([\d.]+)/([\d.]+)/([\d.]+)\s*` +
		`loss=([\d.]+)/([\d.]+)\(([\d.]+)%\)\s*` +
		`lossEvents=([\d.]+)\s*` +
		`rtt=([\d.]+)ms\s*rttVar=([\d.]+)ms\s*` +
		`decode=([\d.]+)ms\s*render=([\d.]+)ms\s*total=([\d.]+)ms\s*` +
		`host\[min/max/avg\]=([\d.]+)/([\d.]+)/([\d.]+)ms` +
		`(?:\s*decoder=(\S+))?(?:\s*hdr=(\S+))?`)

// ParseInternalStats parses one [INTERNAL_STATS] line into the joint sample
// plus the per-field AppMetricSamples requires alongside it.
// ok is false when the line doesn't match the grammar.
func ParseInternalStats(ts time.Time, line string) (InternalStatsSample, []AppMetricSample, bool) {
	m := internalStatsRe.FindStringSubmatch(line)
	if m == nil {
		return InternalStatsSample{}, nil, false
	}
	f := func(i int) float64 {
		v, _ := strconv.ParseFloat(m[i], 64)
		return v
	}

	s := InternalStatsSample{
		TS:               ts,
		FPSTotal:         f(1),
		FPSRx:            f(2),
		FPSRd:            f(3),
		LossFrames:       f(4),
		LossTotal:        f(5),
		LossPct:          f(6),
		LossEvents:       f(7),
		RTTMs:            f(8),
		RTTVarMs:         f(9),
		DecodeMs:         f(10),
		RenderMs:         f(11),
		TotalMs:          f(12),
		HostLatencyMinMs: f(13),
		HostLatencyMaxMs: f(14),
		HostLatencyAvgMs: f(15),
		Line:             line,
	}
	if len(m) > 16 {
		s.DecoderHint = m[16]
	}
	if len(m) > 17 {
		s.HDRHint = m[17]
	}

	mk := func(typ MetricType, v float64, unit string) AppMetricSample {
		return AppMetricSample{TS: ts, Type: typ, Value: v, Unit: unit, Confidence: "high", MetricSource: SourceInternalStats}
	}
	metrics := []AppMetricSample{
		mk(MetricFPSTotal, s.FPSTotal, "fps"),
		mk(MetricFPSRx, s.FPSRx, "fps"),
		mk(MetricFPSRd, s.FPSRd, "fps"),
		mk(MetricLossFrames, s.LossFrames, "frames"),
		mk(MetricLossTotal, s.LossTotal, "frames"),
		mk(MetricLossPct, s.LossPct, "pct"),
		mk(MetricLossEvents, s.LossEvents, "count"),
		mk(MetricRTTMs, s.RTTMs, "ms"),
		mk(MetricRTTVarMs, s.RTTVarMs, "ms"),
		mk(MetricDecodeMs, s.DecodeMs, "ms"),
		mk(MetricRenderMs, s.RenderMs, "ms"),
		mk(MetricTotalMs, s.TotalMs, "ms"),
		mk(MetricHostLatencyMinMs, s.HostLatencyMinMs, "ms"),
		mk(MetricHostLatencyMaxMs, s.HostLatencyMaxMs, "ms"),
		mk(MetricHostLatencyAvgMs, s.HostLatencyAvgMs, "ms"),
	}
	return s, metrics, true
}
