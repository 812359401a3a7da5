package correlate

import (
	"math"
	"sort"

	"github.com/netdiag/streamcheck/internal/events"
	"github.com/netdiag/streamcheck/internal/timeutil"
)

// jitterWindowMs is the W=1s window used for every jitter-anchored
// near-point query in the cause table.
const jitterWindowMs = 1000

// SystemTransitionCauseTypes is the event-type set
// systemTransitionInterference scans for overlap/intensity.
var SystemTransitionCauseTypes = []events.Type{
	events.Disconnect, events.DHCP, events.DozeEnter, events.DozeExit,
	events.IdleEnter, events.IdleExit, events.Connect,
}

// CauseInputs is every raw sample series the cause-ranking formulas need,
// already extracted from ping focus, app-focus samples/anomalies, and the
// event store.
type CauseInputs struct {
	JitterPointsMs      []int64
	HighLatencyStartsMs []int64
	AppAnomalyPointsMs  []int64

	LossPct             float64
	LatencyMsSamples    []float64
	JitterDeltaMsSamples []float64

	RTTVarMsTimestamps []int64
	RTTVarMsValues     []float64

	DecodeMsTimestamps []int64
	DecodeMsValues     []float64
	RenderMsTimestamps []int64
	RenderMsValues     []float64
	TotalMsTimestamps  []int64
	TotalMsValues      []float64
	LossPctTimestamps  []int64
	LossPctValues      []float64
	FPSValues          []float64

	SystemTransitionTimestamps map[events.Type][]int64

	Degraded bool
}

// RankCauses builds and scores all four causes, ranked descending by score.
func RankCauses(in CauseInputs) []CauseScore {
	scores := []CauseScore{
		networkPathJitter(in),
		rttVarianceBurst(in),
		decodeRenderOverload(in),
		systemTransitionInterference(in),
	}
	for i := range scores {
		finalizeScore(&scores[i], in.Degraded)
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores
}

func finalizeScore(c *CauseScore, degraded bool) {
	raw := timeutil.Clamp01(0.5*c.Overlap + 0.3*c.LeadLag + 0.2*c.Intensity)
	c.Score = raw
	c.Confidence = LevelHigh
	if degraded {
		c.Score = raw * 0.7
		c.Confidence = LevelLow
	}
	switch {
	case c.Score >= 0.70:
		c.Level = LevelHigh
	case c.Score >= 0.45:
		c.Level = LevelMedium
	default:
		c.Level = LevelLow
	}
	if !degraded {
		switch c.Level {
		case LevelHigh:
			c.Confidence = LevelHigh
		case LevelMedium:
			c.Confidence = LevelMedium
		default:
			c.Confidence = LevelLow
		}
	}
	c.Evidence = capEvidence(c.Evidence, c)
}

func networkPathJitter(in CauseInputs) CauseScore {
	overlap := timeutil.Clamp01(1.2 * NearPointCount(in.JitterPointsMs, in.AppAnomalyPointsMs, jitterWindowMs).HitRatio)
	leadLag := timeutil.Clamp01(1.2 * NearPointCount(in.HighLatencyStartsMs, in.AppAnomalyPointsMs, jitterWindowMs).HitRatio)

	p95Lat := timeutil.Quantile(timeutil.SortedFloat64s(in.LatencyMsSamples), 0.95)
	p95Jit := timeutil.Quantile(timeutil.SortedFloat64s(in.JitterDeltaMsSamples), 0.95)
	intensity := (timeutil.Norm(in.LossPct, 0, 2) + timeutil.Norm(p95Lat, 12, 40) + timeutil.Norm(p95Jit, 8, 60)) / 3

	ev := topLatencyEvidence(in)
	return CauseScore{Cause: CauseNetworkPathJitter, Overlap: overlap, LeadLag: leadLag, Intensity: intensity, Evidence: ev}
}

func rttVarianceBurst(in CauseInputs) CauseScore {
	near := countNearSeries(in.RTTVarMsTimestamps, in.JitterPointsMs, jitterWindowMs)
	denom := math.Max(1, float64(len(in.JitterPointsMs)))
	overlap := timeutil.Clamp01(float64(near) / denom)

	avgNear := avgValuesNear(in.RTTVarMsTimestamps, in.RTTVarMsValues, in.JitterPointsMs, jitterWindowMs)
	p95Lat := timeutil.Quantile(timeutil.SortedFloat64s(in.LatencyMsSamples), 0.95)
	latDenom := p95Lat
	if latDenom <= 0 {
		latDenom = 20
	}
	leadLag := timeutil.Clamp01(avgNear / math.Max(1, latDenom))

	p95RTTVar := timeutil.Quantile(timeutil.SortedFloat64s(in.RTTVarMsValues), 0.95)
	intensity := timeutil.Norm(p95RTTVar, 5, 40)

	ev := topValueEvidence("rtt_var_ms", in.RTTVarMsTimestamps, in.RTTVarMsValues, in.JitterPointsMs)
	return CauseScore{Cause: CauseRTTVarianceBurst, Overlap: overlap, LeadLag: leadLag, Intensity: intensity, Evidence: ev}
}

func decodeRenderOverload(in CauseInputs) CauseScore {
	nearSum := countNearSeries(in.DecodeMsTimestamps, in.JitterPointsMs, jitterWindowMs) +
		countNearSeries(in.RenderMsTimestamps, in.JitterPointsMs, jitterWindowMs) +
		countNearSeries(in.TotalMsTimestamps, in.JitterPointsMs, jitterWindowMs) +
		countNearSeries(in.LossPctTimestamps, in.JitterPointsMs, jitterWindowMs)
	denom := math.Max(1, float64(len(in.JitterPointsMs))*1.2)
	overlap := timeutil.Clamp01(float64(nearSum) / denom)

	leadLag := timeutil.Clamp01(NearPointCount(in.HighLatencyStartsMs, in.AppAnomalyPointsMs, jitterWindowMs).HitRatio)

	p95Total := timeutil.Quantile(timeutil.SortedFloat64s(in.TotalMsValues), 0.95)
	p95Decode := timeutil.Quantile(timeutil.SortedFloat64s(in.DecodeMsValues), 0.95)
	p95Render := timeutil.Quantile(timeutil.SortedFloat64s(in.RenderMsValues), 0.95)
	p95Max := math.Max(p95Total, math.Max(p95Decode, p95Render))
	p95LossPct := timeutil.Quantile(timeutil.SortedFloat64s(in.LossPctValues), 0.95)
	p50FPS := timeutil.Median(timeutil.SortedFloat64s(in.FPSValues))

	intensity := (timeutil.Norm(p95Max, 12, 80) + timeutil.Norm(p95LossPct, 0.5, 10) + timeutil.Clamp01((60-p50FPS)/60)) / 3

	ev := topValueEvidence("total_ms", in.TotalMsTimestamps, in.TotalMsValues, in.JitterPointsMs)
	return CauseScore{Cause: CauseDecodeRenderOverload, Overlap: overlap, LeadLag: leadLag, Intensity: intensity, Evidence: ev}
}

func systemTransitionInterference(in CauseInputs) CauseScore {
	var bestHitRatio float64
	var sumAvgPerPoint, sumTotal float64
	var evidence []EvidenceRow

	for _, t := range SystemTransitionCauseTypes {
		pts := in.SystemTransitionTimestamps[t]
		if len(pts) == 0 {
			continue
		}
		res := NearPointCount(in.JitterPointsMs, pts, jitterWindowMs)
		if res.HitRatio > bestHitRatio {
			bestHitRatio = res.HitRatio
		}
		avgPerPoint := 0.0
		if len(pts) > 0 {
			avgPerPoint = float64(res.TotalHits) / float64(len(pts))
		}
		sumAvgPerPoint += avgPerPoint
		sumTotal += float64(res.TotalHits)
		if res.TotalHits > 0 {
			evidence = append(evidence, EvidenceRow{
				TS: pts[0], Metric: string(t), Detail: "near jitter point", Value: float64(res.TotalHits),
			})
		}
	}

	overlap := timeutil.Clamp01(bestHitRatio)
	leadLag := timeutil.Norm(sumAvgPerPoint, 0.01, 0.2)
	intensity := timeutil.Norm(sumTotal, 2, 60)

	return CauseScore{Cause: CauseSystemTransitionInterference, Overlap: overlap, LeadLag: leadLag, Intensity: intensity, Evidence: evidence}
}

func countNearSeries(seriesMs, anchorsMs []int64, windowMs int64) int {
	sorted := append([]int64(nil), seriesMs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	total := 0
	for _, a := range anchorsMs {
		total += timeutil.CountInRange(sorted, a-windowMs, a+windowMs)
	}
	return total
}

func avgValuesNear(tsMs []int64, values []float64, anchorsMs []int64, windowMs int64) float64 {
	if len(tsMs) != len(values) || len(anchorsMs) == 0 {
		return 0
	}
	var sum float64
	var n int
	for _, a := range anchorsMs {
		for i, ts := range tsMs {
			if ts >= a-windowMs && ts <= a+windowMs {
				sum += values[i]
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func topLatencyEvidence(in CauseInputs) []EvidenceRow {
	type pair struct {
		ts  int64
		lat float64
	}
	var pairs []pair
	for i, ts := range in.HighLatencyStartsMs {
		if i < len(in.LatencyMsSamples) {
			pairs = append(pairs, pair{ts, in.LatencyMsSamples[i]})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].lat > pairs[j].lat })
	var out []EvidenceRow
	for i := 0; i < len(pairs) && i < 5; i++ {
		out = append(out, EvidenceRow{TS: pairs[i].ts, Metric: "latency_ms", Detail: "top latency sample", Value: pairs[i].lat})
	}
	return out
}

func topValueEvidence(metric string, tsMs []int64, values []float64, anchorsMs []int64) []EvidenceRow {
	n := len(tsMs)
	if len(values) < n {
		n = len(values)
	}
	anchors := append([]int64(nil), anchorsMs...)
	sort.Slice(anchors, func(i, j int) bool { return anchors[i] < anchors[j] })
	var idx []int
	for i := 0; i < n; i++ {
		if timeutil.CountInRange(anchors, tsMs[i]-jitterWindowMs, tsMs[i]+jitterWindowMs) > 0 {
			idx = append(idx, i)
		}
	}
	sort.Slice(idx, func(i, j int) bool { return values[idx[i]] > values[idx[j]] })
	var out []EvidenceRow
	for i := 0; i < len(idx) && i < 5; i++ {
		out = append(out, EvidenceRow{TS: tsMs[idx[i]], Metric: metric, Detail: "top sample near jitter anchors", Value: values[idx[i]]})
	}
	return out
}

// capEvidence enforces the 3-5 evidence-row contract: pad with a breakdown
// row when primary evidence is insufficient, dedupe on (ts, metric, detail),
// and cap at 5.
func capEvidence(rows []EvidenceRow, c *CauseScore) []EvidenceRow {
	type key struct {
		ts     int64
		metric string
		detail string
	}
	seen := map[key]bool{}
	var out []EvidenceRow
	for _, r := range rows {
		k := key{r.TS, r.Metric, r.Detail}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	if len(out) < 3 {
		out = append(out, EvidenceRow{Metric: "overlap", Detail: "breakdown", Value: c.Overlap})
		out = append(out, EvidenceRow{Metric: "leadLag", Detail: "breakdown", Value: c.LeadLag})
		out = append(out, EvidenceRow{Metric: "intensity", Detail: "breakdown", Value: c.Intensity})
	}
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}
