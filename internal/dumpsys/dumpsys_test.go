package dumpsys

import (
	"testing"
	"time"

	"github.com/netdiag/streamcheck/internal/events"
	"github.com/netdiag/streamcheck/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(t0 time.Time, offset time.Duration, body string) snapshot.Snapshot {
	return snapshot.Snapshot{HostTS: t0.Add(offset), Status: snapshot.OK, Body: body}
}

func TestWifiOnOffAndRoam(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snaps := []snapshot.Snapshot{
		snap(t0, 0, "Wi-Fi is disabled"),
		snap(t0, 2*time.Second, "Wi-Fi is enabled\nwlan0 state UP"),
		snap(t0, 4*time.Second, "Wi-Fi is enabled\nwlan0 state UP\nCMD_TRIGGER_ROAMING_RESULT success bssid=aa:bb"),
	}
	out := DetectWifiTransitions(snaps)
	var types []events.Type
	for _, e := range out {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, events.WifiOn)
	assert.Contains(t, types, events.WifiIfaceUp)
	assert.Contains(t, types, events.Roam)
}

func TestAlarmQueueJumpAndBurstAndSoon(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snaps := []snapshot.Snapshot{
		snap(t0, 0, "2 alarms pending\nNext wakeup alarm: +40000ms"),
		snap(t0, 10*time.Second, "12 alarms pending\nRTC_WAKEUP\nRTC_WAKEUP\nRTC_WAKEUP\nRTC_WAKEUP\nNext wakeup alarm: +3000ms"),
	}
	out := DetectAlarmTransitions(snaps)
	var types []events.Type
	for _, e := range out {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, events.AlarmQueueJump)
	assert.Contains(t, types, events.AlarmWakeupBurst)
	assert.Contains(t, types, events.AlarmWakeupSoon)
}

func TestJobsActiveSpikeOnIncrease(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snaps := []snapshot.Snapshot{
		snap(t0, 0, "top-started pkg=a enforced=false"),
		snap(t0, 10*time.Second, "top-started pkg=a enforced=true\nfgs pkg=b enforced=true"),
	}
	out := DetectJobTransitions(snaps)
	require.Len(t, out, 1)
	assert.Equal(t, events.JobActiveSpike, out[0].Type)
}

func TestDeviceIdleAndPowerTransitions(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	idleSnaps := []snapshot.Snapshot{
		snap(t0, 0, "mDeepEnabled: false\nmLightEnabled: false"),
		snap(t0, 30*time.Second, "mDeepEnabled: true\nmLightEnabled: true"),
	}
	idleOut := DetectDeviceIdleTransitions(idleSnaps)
	var idleTypes []events.Type
	for _, e := range idleOut {
		idleTypes = append(idleTypes, e.Type)
	}
	assert.Contains(t, idleTypes, events.DozeEnter)
	assert.Contains(t, idleTypes, events.IdleEnter)

	powerSnaps := []snapshot.Snapshot{
		snap(t0, 0, "mIsPowerSaveMode: false"),
		snap(t0, 30*time.Second, "mIsPowerSaveMode: true"),
	}
	powerOut := DetectPowerTransitions(powerSnaps)
	require.Len(t, powerOut, 1)
	assert.Equal(t, events.BatterySaverOn, powerOut[0].Type)
}

func TestNonOKSnapshotsDoNotResetBaseline(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snaps := []snapshot.Snapshot{
		snap(t0, 0, "Wi-Fi is enabled"),
		{HostTS: t0.Add(2 * time.Second), Status: snapshot.Timeout},
		snap(t0, 4*time.Second, "Wi-Fi is enabled"),
	}
	out := DetectWifiTransitions(snaps)
	assert.Empty(t, out)
}
