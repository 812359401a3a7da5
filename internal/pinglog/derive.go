package pinglog

import (
	"math"

	"github.com/netdiag/streamcheck/internal/timeutil"
)

// JitterEvent marks a successful sample whose latency changed by at least
// 8ms (in either direction) relative to the immediately preceding
// successful sample.
type JitterEvent struct {
	TS            int64 // unix millis
	Seq           int
	LatencyMs     float64
	PrevLatencyMs float64
	DeltaMs       float64
	Phase         string
	InSession     bool
}

// HighLatencyBurst is a maximal run of high-latency samples whose
// consecutive gaps (within the run) never exceed 1200ms.
type HighLatencyBurst struct {
	StartTS      int64
	EndTS        int64
	StartSeq     int
	EndSeq       int
	Count        int
	MaxLatencyMs float64
	AvgLatencyMs float64
}

// ComputeThreshold implements threshold = max(15, median(latencies)+8).
func ComputeThreshold(latenciesMs []float64) float64 {
	if len(latenciesMs) == 0 {
		return 15
	}
	med := timeutil.Median(timeutil.SortedFloat64s(latenciesMs))
	t := med + 8
	if t < 15 {
		return 15
	}
	return t
}

// JitterEvents scans successful samples in ts order and emits a JitterEvent
// for every |Δlatency| >= 8ms against the prior successful sample.
func JitterEvents(samples []Sample) []JitterEvent {
	var out []JitterEvent
	havePrev := false
	var prevLat float64
	for _, s := range samples {
		if !s.Success || s.LatencyMs == nil {
			continue
		}
		lat := *s.LatencyMs
		seq := 0
		if s.Seq != nil {
			seq = *s.Seq
		}
		if havePrev {
			delta := lat - prevLat
			if math.Abs(delta) >= 8 {
				out = append(out, JitterEvent{
					TS: s.TS.UnixMilli(), Seq: seq, LatencyMs: lat,
					PrevLatencyMs: prevLat, DeltaMs: delta,
					Phase: s.Phase, InSession: s.InSession,
				})
			}
		}
		prevLat, havePrev = lat, true
	}
	return out
}

// HighLatencyBursts groups consecutive high-latency samples (latency >=
// threshold) into maximal runs whose internal gaps never exceed 1200ms.
func HighLatencyBursts(samples []Sample, threshold float64) []HighLatencyBurst {
	var hi []Sample
	for _, s := range samples {
		if s.Success && s.LatencyMs != nil && *s.LatencyMs >= threshold {
			hi = append(hi, s)
		}
	}
	if len(hi) == 0 {
		return nil
	}

	var out []HighLatencyBurst
	runStart := 0
	flush := func(end int) {
		run := hi[runStart : end+1]
		var sum, peak float64
		for _, s := range run {
			l := *s.LatencyMs
			sum += l
			if l > peak {
				peak = l
			}
		}
		startSeq, endSeq := 0, 0
		if run[0].Seq != nil {
			startSeq = *run[0].Seq
		}
		if run[len(run)-1].Seq != nil {
			endSeq = *run[len(run)-1].Seq
		}
		out = append(out, HighLatencyBurst{
			StartTS: run[0].TS.UnixMilli(), EndTS: run[len(run)-1].TS.UnixMilli(),
			StartSeq: startSeq, EndSeq: endSeq,
			Count: len(run), MaxLatencyMs: peak, AvgLatencyMs: sum / float64(len(run)),
		})
	}
	for i := 1; i < len(hi); i++ {
		gap := hi[i].TS.Sub(hi[i-1].TS).Milliseconds()
		if gap > 1200 {
			flush(i - 1)
			runStart = i
		}
	}
	flush(len(hi) - 1)
	return out
}
