// Package pinglog implements the ping-log parser: a line-level parser
// for device-side `ping` and host-side `nping` output, timestamp
// reconciliation across two independent clocks, and jitter/high-latency
// burst derivation.
package pinglog

import "time"

// TSSource records which of the three timestamp-resolution strategies
// produced a sample's ts.
type TSSource string

const (
	LogPrefixEpoch TSSource = "log_prefix_epoch"
	PingD          TSSource = "ping_D"
	SeqEstimated   TSSource = "seq_estimated"
	Unknown        TSSource = "unknown"
)

// Sample is one parsed ping round (or failed round) on either dialect's
// timeline.
type Sample struct {
	TS        time.Time
	Seq       *int
	Success   bool
	LatencyMs *float64
	Status    string // "reply" | "no_reply"
	TSSource  TSSource
	Phase     string
	InSession bool
	Line      string
}

// PhaseResolver answers the phase/session question for a given instant so
// ping processing depends on stream-session detection's output, never the
// reverse.
type PhaseResolver func(ts time.Time) (phase string, inSession bool)

func noopResolver(time.Time) (string, bool) { return "unknown", false }

func applyPhase(samples []Sample, resolve PhaseResolver) {
	if resolve == nil {
		resolve = noopResolver
	}
	for i := range samples {
		samples[i].Phase, samples[i].InSession = resolve(samples[i].TS)
	}
}
