package correlate

import (
	"github.com/netdiag/streamcheck/internal/events"
	"github.com/netdiag/streamcheck/internal/timeutil"
)

// NetworkTypes is the column set counted by pre/post transition alignment.
var NetworkTypes = []events.Type{
	events.Scan, events.Roam, events.Disconnect, events.Connect, events.DHCP,
	events.RSSIChange, events.LinkSpeedChange, events.Validation, events.CaptivePortal,
	events.ConnDefaultSwitch, events.ConnDefaultTransportChg,
}

// TransitionTypes is the configured set of transition event types whose
// surrounding network activity is measured.
var TransitionTypes = []events.Type{
	events.DozeEnter, events.DozeExit, events.IdleEnter, events.IdleExit,
	events.BatterySaverOn, events.BatterySaverOff, events.WifiOn, events.WifiOff,
	events.WifiIfaceUp, events.WifiIfaceDown,
}

// NearPointCount is the near-point counting primitive: for a sorted set of
// anchor times A and a sorted set of point times P (both unix-ms), computes
// hit counts within [a-W, a+W] per anchor via binary-search lower-bounds.
func NearPointCount(anchorsMs, pointsMs []int64, windowMs int64) NearPointResult {
	if len(anchorsMs) == 0 {
		return NearPointResult{}
	}
	var total, hitAnchors int
	for _, a := range anchorsMs {
		c := timeutil.CountInRange(pointsMs, a-windowMs, a+windowMs)
		total += c
		if c > 0 {
			hitAnchors++
		}
	}
	return NearPointResult{
		TotalHits:  total,
		HitRatio:   float64(hitAnchors) / float64(len(anchorsMs)),
		AvgPerItem: float64(total) / float64(len(anchorsMs)),
	}
}

// networkActivityCount returns the count of every NetworkTypes event whose ts
// falls within [lo, hi] (unix-ms).
func networkActivityCount(store *events.Store, loMs, hiMs int64) int {
	total := 0
	for _, t := range NetworkTypes {
		total += timeutil.CountInRange(store.TimestampsMs(t), loMs, hiMs)
	}
	return total
}

// AlignTransitions computes pre/post network-activity counts in a 60s window
// around every transition event of the configured types.
func AlignTransitions(store *events.Store, types []events.Type, windowMs int64) []TransitionAlignment {
	var out []TransitionAlignment
	for _, t := range types {
		for _, ev := range store.ByType(t) {
			anchorMs := ev.TS.UnixMilli()
			pre := networkActivityCount(store, anchorMs-windowMs, anchorMs-1)
			post := networkActivityCount(store, anchorMs+1, anchorMs+windowMs)
			ratio := 0.0
			if pre > 0 {
				ratio = float64(post) / float64(pre)
			} else if post > 0 {
				ratio = float64(post)
			}
			increased := float64(post) >= 1.5*float64(pre) && post-pre >= 2
			out = append(out, TransitionAlignment{
				Type: t, Transition: ev, Pre: pre, Post: post, Ratio: ratio, Increased: increased,
			})
		}
	}
	return out
}
