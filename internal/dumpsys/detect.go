package dumpsys

import (
	"github.com/netdiag/streamcheck/internal/events"
	"github.com/netdiag/streamcheck/internal/snapshot"
)

// DetectWifiTransitions walks a sequence of wifi dumpsys snapshots in order
// and returns every transition event derived from consecutive OK snapshots.
// Non-OK snapshots (TIMEOUT/ERROR/SKIPPED) are skipped but do not reset the
// "previous" baseline, so a transient failure doesn't manufacture spurious
// transitions once sampling resumes.
func DetectWifiTransitions(snaps []snapshot.Snapshot) []events.Event {
	var out []events.Event
	var prev WifiState
	hasPrev := false
	for _, s := range snaps {
		if s.Status != snapshot.OK {
			continue
		}
		cur := ParseWifi(s.Body)
		out = append(out, DiffWifi(prev, cur, hasPrev, s.HostTS)...)
		prev, hasPrev = cur, true
	}
	return out
}

// DetectAlarmTransitions is the alarm-service analogue of DetectWifiTransitions.
func DetectAlarmTransitions(snaps []snapshot.Snapshot) []events.Event {
	var out []events.Event
	var prev AlarmState
	hasPrev := false
	for _, s := range snaps {
		if s.Status != snapshot.OK {
			continue
		}
		cur := ParseAlarm(s.Body)
		out = append(out, DiffAlarm(prev, cur, hasPrev, s.HostTS)...)
		prev, hasPrev = cur, true
	}
	return out
}

// DetectJobTransitions is the jobs-service analogue.
func DetectJobTransitions(snaps []snapshot.Snapshot) []events.Event {
	var out []events.Event
	var prev JobState
	hasPrev := false
	for _, s := range snaps {
		if s.Status != snapshot.OK {
			continue
		}
		cur := ParseJobs(s.Body)
		out = append(out, DiffJobs(prev, cur, hasPrev, s.HostTS)...)
		prev, hasPrev = cur, true
	}
	return out
}

// DetectDeviceIdleTransitions is the deviceidle-service analogue.
func DetectDeviceIdleTransitions(snaps []snapshot.Snapshot) []events.Event {
	var out []events.Event
	var prev IdleState
	hasPrev := false
	for _, s := range snaps {
		if s.Status != snapshot.OK {
			continue
		}
		cur := ParseDeviceIdle(s.Body)
		out = append(out, DiffIdle(prev, cur, hasPrev, s.HostTS)...)
		prev, hasPrev = cur, true
	}
	return out
}

// DetectPowerTransitions is the power-service analogue.
func DetectPowerTransitions(snaps []snapshot.Snapshot) []events.Event {
	var out []events.Event
	var prev PowerState
	hasPrev := false
	for _, s := range snaps {
		if s.Status != snapshot.OK {
			continue
		}
		cur := ParsePower(s.Body)
		out = append(out, DiffPower(prev, cur, hasPrev, s.HostTS)...)
		prev, hasPrev = cur, true
	}
	return out
}
