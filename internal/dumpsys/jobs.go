package dumpsys

import (
	"regexp"
	"time"

	"github.com/netdiag/streamcheck/internal/events"
)

// JobState tracks the count of enforcement-true lines for the top-started
// and foreground-service job classes in a jobs dumpsys snapshot.
type JobState struct {
	ActiveCount int
}

var jobEnforcedRe = regexp.MustCompile(`(?i)(top-started|fgs)[^\n]*\benforc(ed|ing)\s*=\s*true`)

// ParseJobs counts enforcement-true lines in the top-started/fgs classes.
func ParseJobs(body string) JobState {
	return JobState{ActiveCount: len(jobEnforcedRe.FindAllStringIndex(body, -1))}
}

// DiffJobs emits JOB_ACTIVE_SPIKE whenever the active-enforced count rises.
func DiffJobs(prev, cur JobState, hasPrev bool, hostTS time.Time) []events.Event {
	if !hasPrev || cur.ActiveCount <= prev.ActiveCount {
		return nil
	}
	return []events.Event{{Type: events.JobActiveSpike, TS: hostTS, Source: "jobs"}}
}
