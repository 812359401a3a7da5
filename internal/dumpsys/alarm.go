package dumpsys

import (
	"regexp"
	"strconv"
	"time"

	"github.com/netdiag/streamcheck/internal/events"
)

// AlarmState is the fields tracked from an alarm dumpsys snapshot body.
type AlarmState struct {
	Pending          int
	WakeupEntries    int
	NextWakeupSec    float64
	HasNextWakeup    bool
}

var (
	pendingCountRe = regexp.MustCompile(`(?i)(\d+)\s+alarms?\s+pending`)
	wakeupEntryRe  = regexp.MustCompile(`(?i)\b(RTC_WAKEUP|ELAPSED_WAKEUP)\b`)
	nextWakeupRe   = regexp.MustCompile(`(?i)Next wakeup alarm:.*\+(\d+)ms`)
)

// ParseAlarm extracts pending-alarm count, wakeup-entry count, and the
// relative next-wakeup duration from an alarm dumpsys snapshot body.
func ParseAlarm(body string) AlarmState {
	var s AlarmState
	if m := pendingCountRe.FindStringSubmatch(body); m != nil {
		s.Pending, _ = strconv.Atoi(m[1])
	}
	s.WakeupEntries = len(wakeupEntryRe.FindAllStringIndex(body, -1))
	if m := nextWakeupRe.FindStringSubmatch(body); m != nil {
		ms, _ := strconv.Atoi(m[1])
		s.NextWakeupSec = float64(ms) / 1000.0
		s.HasNextWakeup = true
	}
	return s
}

// DiffAlarm emits ALARM_QUEUE_JUMP when pending increases by >= 8,
// ALARM_WAKEUP_BURST when wakeup entries increase by >= 3, and
// ALARM_WAKEUP_SOON when the absolute next wakeup is <= 5s or it drops
// across the 30s boundary between snapshots.
func DiffAlarm(prev, cur AlarmState, hasPrev bool, hostTS time.Time) []events.Event {
	if !hasPrev {
		return nil
	}
	var out []events.Event
	emit := func(t events.Type) {
		out = append(out, events.Event{Type: t, TS: hostTS, Source: "alarm"})
	}

	if cur.Pending-prev.Pending >= 8 {
		emit(events.AlarmQueueJump)
	}
	if cur.WakeupEntries-prev.WakeupEntries >= 3 {
		emit(events.AlarmWakeupBurst)
	}
	if cur.HasNextWakeup {
		crossedBoundary := prev.HasNextWakeup && prev.NextWakeupSec > 30 && cur.NextWakeupSec <= 30
		if cur.NextWakeupSec <= 5 || crossedBoundary {
			emit(events.AlarmWakeupSoon)
		}
	}
	return out
}
