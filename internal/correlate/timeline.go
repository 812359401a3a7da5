package correlate

import (
	"sort"
	"time"

	"github.com/netdiag/streamcheck/internal/events"
	"github.com/netdiag/streamcheck/internal/timeutil"
)

const minuteKeyLayout = "2006-01-02 15:04"

// BuildTimeline buckets every classified event by minute over [start, end]
// (inclusive), producing one MinuteBucket per minute in range, and marks
// WAKELOCK_SPIKE minutes from the supplied per-minute wakelock hit counts.
func BuildTimeline(store *events.Store, start, end time.Time, wakelockHitsPerMinute map[string]int) []MinuteBucket {
	start = start.Truncate(time.Minute)
	end = end.Truncate(time.Minute)

	var buckets []MinuteBucket
	index := map[string]int{}
	for m := start; !m.After(end); m = m.Add(time.Minute) {
		key := m.UTC().Format(minuteKeyLayout)
		index[key] = len(buckets)
		buckets = append(buckets, MinuteBucket{Key: key, TS: m, Counts: map[events.Type]int{}})
	}

	for _, t := range events.AllTypes {
		for _, ev := range store.ByType(t) {
			key := ev.TS.UTC().Truncate(time.Minute).Format(minuteKeyLayout)
			if i, ok := index[key]; ok {
				buckets[i].Counts[t]++
			}
		}
	}

	for key, n := range wakelockHitsPerMinute {
		if i, ok := index[key]; ok {
			buckets[i].WakelockHits = n
		}
	}
	markWakelockSpikes(buckets)
	return buckets
}

// markWakelockSpikes flags every minute whose hit count exceeds
// median + 1.5*IQR (and is positive) across the whole timeline.
func markWakelockSpikes(buckets []MinuteBucket) {
	var counts []float64
	for _, b := range buckets {
		counts = append(counts, float64(b.WakelockHits))
	}
	if len(counts) == 0 {
		return
	}
	sorted := timeutil.SortedFloat64s(counts)
	threshold := timeutil.Median(sorted) + 1.5*timeutil.IQR(sorted)
	for i := range buckets {
		if buckets[i].WakelockHits > 0 && float64(buckets[i].WakelockHits) > threshold {
			buckets[i].WakelockSpike = true
		}
	}
}

// SortedKeys returns the timeline's minute keys in chronological order.
func SortedKeys(buckets []MinuteBucket) []string {
	keys := make([]string, len(buckets))
	for i, b := range buckets {
		keys[i] = b.Key
	}
	sort.Strings(keys) // minute-key format sorts lexicographically == chronologically
	return keys
}
