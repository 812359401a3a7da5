package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAdbDevices(t *testing.T) {
	out := "List of devices attached\n" +
		"emulator-5554\tdevice product:sdk_gphone model:Pixel_7 device:emu64a\n" +
		"ABCD1234\tunauthorized\n" +
		"\n"
	devices := parseAdbDevices(out)
	require.Len(t, devices, 2)
	assert.Equal(t, "emulator-5554", devices[0].Serial)
	assert.Equal(t, "device", devices[0].State)
	assert.Equal(t, "Pixel_7", devices[0].Model)
	assert.Equal(t, "unauthorized", devices[1].State)
}

func TestAuthorizedDevicesFiltersNonDeviceState(t *testing.T) {
	devices := []Device{
		{Serial: "a", State: "device"},
		{Serial: "b", State: "unauthorized"},
		{Serial: "c", State: "offline"},
	}
	authorized := AuthorizedDevices(devices)
	require.Len(t, authorized, 1)
	assert.Equal(t, "a", authorized[0].Serial)
}

func TestResolveDeviceExactSerial(t *testing.T) {
	devices := []Device{{Serial: "ABCD1234", Model: "Pixel_7"}, {Serial: "WXYZ9999", Model: "Pixel_8"}}
	d, err := ResolveDevice(devices, "WXYZ9999")
	require.NoError(t, err)
	assert.Equal(t, "WXYZ9999", d.Serial)
}

func TestResolveDeviceFuzzyMatch(t *testing.T) {
	devices := []Device{{Serial: "ABCD1234", Model: "Pixel_7"}, {Serial: "WXYZ9999", Model: "Pixel_8"}}
	d, err := ResolveDevice(devices, "Pixel_8")
	require.NoError(t, err)
	assert.Equal(t, "WXYZ9999", d.Serial)
}

func TestResolveDeviceSingleDeviceNoWant(t *testing.T) {
	devices := []Device{{Serial: "ABCD1234"}}
	d, err := ResolveDevice(devices, "")
	require.NoError(t, err)
	assert.Equal(t, "ABCD1234", d.Serial)
}

func TestResolveDeviceAmbiguousNoWant(t *testing.T) {
	devices := []Device{{Serial: "ABCD1234"}, {Serial: "WXYZ9999"}}
	_, err := ResolveDevice(devices, "")
	assert.Error(t, err)
}

func TestResolveDeviceNoMatch(t *testing.T) {
	devices := []Device{{Serial: "ABCD1234"}}
	_, err := ResolveDevice(devices, "zzz-nonexistent-qqq")
	assert.Error(t, err)
}
