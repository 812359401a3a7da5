package timeutil

import "math"

// PeriodCandidatesSec is the closed set of periodicity targets (seconds)
// tested by the correlation engine's periodicity pass.
var PeriodCandidatesSec = []float64{30, 45, 60, 90, 120, 180, 240, 300, 420, 600, 900}

// PeriodTolerance is the fractional tolerance band around each candidate.
const PeriodTolerance = 0.20

// PeriodicityResult carries the best-matching candidate period and the
// engine's composite score for one event type.
type PeriodicityResult struct {
	BestPeriodSec float64
	BestRatio     float64
	Score         float64
	Count         int
}

// ScorePeriodicity tests gapsSec (inter-event gaps in seconds) against the
// closed candidate set and returns the best-matching period along with the
// composite score bestRatio * ln(count+1), where count is the number of
// underlying events (gaps+1), not the gap count, so a single recurring
// event still contributes a nonzero weight once it has produced at least
// one gap.
func ScorePeriodicity(gapsSec []float64) PeriodicityResult {
	if len(gapsSec) == 0 {
		return PeriodicityResult{}
	}
	count := len(gapsSec) + 1
	var bestPeriod, bestRatio float64
	for _, period := range PeriodCandidatesSec {
		lo := period * (1 - PeriodTolerance)
		hi := period * (1 + PeriodTolerance)
		hits := 0
		for _, g := range gapsSec {
			if g >= lo && g <= hi {
				hits++
			}
		}
		ratio := float64(hits) / float64(len(gapsSec))
		if ratio > bestRatio {
			bestRatio = ratio
			bestPeriod = period
		}
	}
	return PeriodicityResult{
		BestPeriodSec: bestPeriod,
		BestRatio:     bestRatio,
		Score:         bestRatio * math.Log(float64(count)+1),
		Count:         count,
	}
}

// GapsSeconds converts a sorted slice of millisecond timestamps into
// inter-event gaps expressed in seconds.
func GapsSeconds(tsMs []int64) []float64 {
	if len(tsMs) < 2 {
		return nil
	}
	gaps := make([]float64, 0, len(tsMs)-1)
	for i := 1; i < len(tsMs); i++ {
		gaps = append(gaps, float64(tsMs[i]-tsMs[i-1])/1000.0)
	}
	return gaps
}
