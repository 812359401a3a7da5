package correlate

import (
	"math"
	"sort"

	"github.com/netdiag/streamcheck/internal/timeutil"
)

// PingFocus is the minimal shape Bidirectional needs from one dialect's
// derived ping focus (device-side or host-side).
type PingFocus struct {
	SampleTsMs    []int64
	LatencyMs     []float64 // parallel to SampleTsMs
	BurstStartsMs []int64
	BurstEndsMs   []int64 // parallel to BurstStartsMs
	IntervalSec   float64
}

const dominanceThreshold = 1.35

// Bidirectional compares device-side and host-side ping focus and classifies
// the dominant direction of high latency.
func Bidirectional(device, host PingFocus) BidirectionalResult {
	if len(device.SampleTsMs) == 0 && len(host.SampleTsMs) == 0 {
		return BidirectionalResult{Direction: DirectionNoData}
	}

	burstOverlap := burstOverlapRatio(device, host)
	paired, unpairedDevice, unpairedHost, deltas := alignSamples(device, host)

	res := BidirectionalResult{
		PairedCount:    len(paired),
		UnpairedDevice: unpairedDevice,
		UnpairedHost:   unpairedHost,
		BurstOverlap:   burstOverlap,
	}
	if len(device.SampleTsMs) > 0 {
		res.DeviceCoverage = float64(len(paired)) / float64(len(device.SampleTsMs))
	}
	if len(host.SampleTsMs) > 0 {
		res.HostCoverage = float64(len(paired)) / float64(len(host.SampleTsMs))
	}
	if len(deltas) > 0 {
		var sum float64
		abs := make([]float64, len(deltas))
		for i, d := range deltas {
			sum += d
			abs[i] = math.Abs(d)
		}
		res.MeanSignedDeltaMs = sum / float64(len(deltas))
		sortedAbs := timeutil.SortedFloat64s(abs)
		res.P50AbsDeltaMs = timeutil.Quantile(sortedAbs, 0.50)
		res.P95AbsDeltaMs = timeutil.Quantile(sortedAbs, 0.95)
		res.MaxAbsDeltaMs = sortedAbs[len(sortedAbs)-1]
	}

	deviceScore := sideScore(device)
	hostScore := sideScore(host)
	res.Direction, res.Confidence = classifyDirection(deviceScore, hostScore, burstOverlap)
	res.Findings = findings(device, host, res.Direction)
	return res
}

func sideScore(f PingFocus) float64 {
	p95 := timeutil.Quantile(timeutil.SortedFloat64s(f.LatencyMs), 0.95)
	max := 0.0
	if len(f.LatencyMs) > 0 {
		sorted := timeutil.SortedFloat64s(f.LatencyMs)
		max = sorted[len(sorted)-1]
	}
	return p95 + 0.4*max + 6*float64(len(f.BurstStartsMs))
}

func classifyDirection(deviceScore, hostScore, burstOverlap float64) (Direction, Level) {
	ratio := 1.0
	switch {
	case deviceScore > 0 && hostScore > 0:
		if deviceScore >= hostScore {
			ratio = deviceScore / hostScore
		} else {
			ratio = hostScore / deviceScore
		}
	case deviceScore > 0:
		ratio = math.Inf(1)
	case hostScore > 0:
		ratio = math.Inf(1)
	}

	if burstOverlap >= 0.4 && ratio < dominanceThreshold {
		conf := LevelMedium
		if burstOverlap >= 0.7 {
			conf = LevelHigh
		}
		return DirectionBidirectional, conf
	}
	if deviceScore > 0 && deviceScore >= dominanceThreshold*math.Max(hostScore, 1e-9) {
		return DirectionDeviceUplinkDominant, confidenceFromRatio(ratio)
	}
	if hostScore > 0 && hostScore >= dominanceThreshold*math.Max(deviceScore, 1e-9) {
		return DirectionHostDownlinkDominant, confidenceFromRatio(ratio)
	}
	if burstOverlap > 0 {
		return DirectionMixedOrPathSpecific, LevelLow
	}
	return DirectionInconclusive, LevelLow
}

func confidenceFromRatio(ratio float64) Level {
	if ratio >= 3 {
		return LevelHigh
	}
	return LevelMedium
}

func findings(device, host PingFocus, dir Direction) []string {
	var out []string
	switch dir {
	case DirectionDeviceUplinkDominant:
		if len(host.BurstStartsMs) == 0 {
			out = append(out, "device_only_high_latency")
		}
	case DirectionHostDownlinkDominant:
		if len(device.BurstStartsMs) == 0 {
			out = append(out, "host_only_high_latency")
		}
	case DirectionBidirectional:
		out = append(out, "high_latency_on_both_paths")
	}
	return out
}

func burstOverlapRatio(device, host PingFocus) float64 {
	if len(device.BurstStartsMs) == 0 || len(host.BurstStartsMs) == 0 {
		return 0
	}
	overlapping := 0
	for i, ds := range device.BurstStartsMs {
		de := device.BurstEndsMs[i]
		for j, hs := range host.BurstStartsMs {
			he := host.BurstEndsMs[j]
			if ds-1000 <= he && de+1000 >= hs {
				overlapping++
				break
			}
		}
	}
	denom := len(device.BurstStartsMs)
	if len(host.BurstStartsMs) > denom {
		denom = len(host.BurstStartsMs)
	}
	return float64(overlapping) / float64(denom)
}

// tsIdx pairs a sample timestamp with its index in the original
// (latency-parallel) PingFocus slices, so sorting by ts doesn't lose the
// correspondence to that sample's latency.
type tsIdx struct {
	ts  int64
	idx int
}

// alignSamples two-pointer-sweeps device and host samples, pairing within
// sampleAlignWindowMs = max(120, round(max(intervalA,intervalB)*1500)).
// Returns signed latency deltas (host latency - device latency) per paired
// sample — the bidirectional comparison is about the latency each side
// observed, not the clock-time gap between when each side's sample landed.
func alignSamples(device, host PingFocus) (paired [][2]int64, unpairedDevice, unpairedHost int, deltasMs []float64) {
	intervalMs := math.Max(device.IntervalSec, host.IntervalSec) * 1500
	windowMs := int64(math.Max(120, math.Round(intervalMs)))

	d := make([]tsIdx, len(device.SampleTsMs))
	for i, ts := range device.SampleTsMs {
		d[i] = tsIdx{ts, i}
	}
	h := make([]tsIdx, len(host.SampleTsMs))
	for i, ts := range host.SampleTsMs {
		h[i] = tsIdx{ts, i}
	}
	sort.Slice(d, func(i, j int) bool { return d[i].ts < d[j].ts })
	sort.Slice(h, func(i, j int) bool { return h[i].ts < h[j].ts })

	usedH := make([]bool, len(h))
	i, j := 0, 0
	for i < len(d) {
		for j < len(h) && h[j].ts < d[i].ts-windowMs {
			j++
		}
		matched := false
		k := j
		for k < len(h) && h[k].ts <= d[i].ts+windowMs {
			if !usedH[k] {
				paired = append(paired, [2]int64{d[i].ts, h[k].ts})
				deltasMs = append(deltasMs, host.LatencyMs[h[k].idx]-device.LatencyMs[d[i].idx])
				usedH[k] = true
				matched = true
				break
			}
			k++
		}
		if !matched {
			unpairedDevice++
		}
		i++
	}
	for _, used := range usedH {
		if !used {
			unpairedHost++
		}
	}
	return paired, unpairedDevice, unpairedHost, deltasMs
}
