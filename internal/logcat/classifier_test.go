package logcat

import (
	"testing"

	"github.com/netdiag/streamcheck/internal/events"
	"github.com/stretchr/testify/assert"
)

func TestClassifyRoamRequiresWifiContext(t *testing.T) {
	r := Classify(Line{Tag: "WifiStateMachine", Message: "CMD_TRIGGER_ROAMING_RESULT roam complete"})
	assert.Contains(t, r.Types, events.Roam)

	r2 := Classify(Line{Tag: "SomeUnrelatedTag", Message: "vehicle roaming mode engaged"})
	assert.NotContains(t, r2.Types, events.Roam)
}

func TestClassifyDisconnectConnectRequireNetworkContext(t *testing.T) {
	r := Classify(Line{Tag: "ConnectivityService", Message: "NetworkAgent disconnected"})
	assert.Contains(t, r.Types, events.Disconnect)

	r2 := Classify(Line{Tag: "RandomApp", Message: "disconnected from server"})
	assert.NotContains(t, r2.Types, events.Disconnect)
}

func TestClassifyDozeRequiresContext(t *testing.T) {
	r := Classify(Line{Tag: "DeviceIdleController", Message: "Entering doze: light idle maintenance"})
	assert.Contains(t, r.Types, events.DozeEnter)

	r2 := Classify(Line{Tag: "MyGameApp", Message: "entering doze mode in game logic"})
	assert.NotContains(t, r2.Types, events.DozeEnter)
}

func TestClassifyBatterySaverOnOff(t *testing.T) {
	on := Classify(Line{Tag: "PowerManagerService", Message: "Battery saver enabled: true"})
	assert.Contains(t, on.Types, events.BatterySaverOn)

	off := Classify(Line{Tag: "DeviceIdleController", Message: "battery saver off"})
	assert.Contains(t, off.Types, events.BatterySaverOff)
}

func TestClassifyNoiseFilters(t *testing.T) {
	r1 := Classify(Line{Tag: "whatever", Message: "### SNAPSHOT START host_ts=... task=wifi"})
	assert.True(t, r1.Dropped)
	assert.Equal(t, "dumpsys_self_noise", r1.DropReason)

	r2 := Classify(Line{Tag: "Binder", Message: "thread pool started"})
	assert.True(t, r2.Dropped)
	assert.Equal(t, "binder_init", r2.DropReason)

	r3 := Classify(Line{Tag: "LimeLog", Message: "polling for connection retry 3"})
	assert.True(t, r3.Dropped)
	assert.Equal(t, "preconnect_polling", r3.DropReason)
}

func TestClassifyWakelockHit(t *testing.T) {
	r := Classify(Line{Tag: "PowerManagerService", Message: "acquire wakelock tag=app:wakelock"})
	assert.True(t, r.WakelockHit)
}

func TestClassifyMultipleTypesPerLine(t *testing.T) {
	r := Classify(Line{Tag: "ConnectivityService", Message: "dhcp validation captive portal check disconnected"})
	assert.Contains(t, r.Types, events.DHCP)
	assert.Contains(t, r.Types, events.Validation)
	assert.Contains(t, r.Types, events.CaptivePortal)
	assert.Contains(t, r.Types, events.Disconnect)
}
