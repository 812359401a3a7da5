package correlate

import (
	"sort"

	"github.com/netdiag/streamcheck/internal/events"
	"github.com/netdiag/streamcheck/internal/timeutil"
)

// IntervalStatsFor computes sorted inter-event gaps (seconds) for one type
// and reports count/p25/p50/p75 plus top-3 30-second bins.
func IntervalStatsFor(store *events.Store, t events.Type) IntervalStats {
	tsMs := store.TimestampsMs(t)
	gapsSec := timeutil.GapsSeconds(tsMs)
	sorted := timeutil.SortedFloat64s(gapsSec)

	bins := timeutil.TopBins(timeutil.BinHistogram(sorted, 30), 3)

	return IntervalStats{
		Type:  t,
		Count: len(sorted),
		P25:   timeutil.Quantile(sorted, 0.25),
		P50:   timeutil.Quantile(sorted, 0.50),
		P75:   timeutil.Quantile(sorted, 0.75),
		Bins:  bins,
	}
}

// IntervalStatsForTypes runs IntervalStatsFor over a configured set of
// interval-bearing types, in the given order.
func IntervalStatsForTypes(store *events.Store, types []events.Type) []IntervalStats {
	out := make([]IntervalStats, 0, len(types))
	for _, t := range types {
		out = append(out, IntervalStatsFor(store, t))
	}
	return out
}

// PeriodicityForTypes scores every type's inter-event gaps against the
// closed candidate period set and returns the top-3 by score, descending.
func PeriodicityForTypes(store *events.Store, types []events.Type) []PeriodicityResult {
	results := make([]PeriodicityResult, 0, len(types))
	for _, t := range types {
		tsMs := store.TimestampsMs(t)
		gaps := timeutil.GapsSeconds(tsMs)
		results = append(results, PeriodicityResult{Type: t, PeriodicityResult: timeutil.ScorePeriodicity(gaps)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > 3 {
		results = results[:3]
	}
	return results
}
