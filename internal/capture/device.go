package capture

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"
)

// Device is one entry from `adb devices -l`.
type Device struct {
	Serial string
	State  string // device | offline | unauthorized
	Model  string
}

// DeviceManager discovers attached Android devices via adb, short-caching
// the result so repeated resolution calls don't re-shell out every time.
type DeviceManager struct {
	adbPath  string
	cacheTTL time.Duration

	mu       sync.Mutex
	cached   []Device
	cachedAt time.Time
}

// NewDeviceManager returns a manager that shells out to adbPath (default
// "adb" on PATH).
func NewDeviceManager(adbPath string) *DeviceManager {
	if adbPath == "" {
		adbPath = "adb"
	}
	return &DeviceManager{adbPath: adbPath, cacheTTL: 2 * time.Second}
}

// ListDevices runs `adb devices -l` and parses its output.
func (m *DeviceManager) ListDevices(ctx context.Context) ([]Device, error) {
	m.mu.Lock()
	if m.cached != nil && time.Since(m.cachedAt) < m.cacheTTL {
		devs := make([]Device, len(m.cached))
		copy(devs, m.cached)
		m.mu.Unlock()
		return devs, nil
	}
	m.mu.Unlock()

	cmdCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(cmdCtx, m.adbPath, "devices", "-l")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("adb devices failed: %w", err)
	}

	devices := parseAdbDevices(string(out))

	m.mu.Lock()
	m.cached = devices
	m.cachedAt = time.Now()
	m.mu.Unlock()
	return devices, nil
}

func parseAdbDevices(out string) []Device {
	var devices []Device
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "List of devices") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		d := Device{Serial: fields[0], State: fields[1]}
		for _, f := range fields[2:] {
			if model, ok := strings.CutPrefix(f, "model:"); ok {
				d.Model = model
			}
		}
		devices = append(devices, d)
	}
	return devices
}

// AuthorizedDevices filters out offline/unauthorized entries.
func AuthorizedDevices(devices []Device) []Device {
	var out []Device
	for _, d := range devices {
		if d.State == "device" {
			out = append(out, d)
		}
	}
	return out
}

// ResolveDevice picks a device by exact serial, falling back to fuzzy
// matching against serial and model when want is a partial/typo'd
// identifier, mirroring the fuzzy-filter idiom the pack's TUI list
// components build on sahilm/fuzzy.
func ResolveDevice(devices []Device, want string) (Device, error) {
	if want == "" {
		if len(devices) == 0 {
			return Device{}, fmt.Errorf("no authorized device attached")
		}
		if len(devices) > 1 {
			return Device{}, fmt.Errorf("multiple authorized devices attached, specify --device")
		}
		return devices[0], nil
	}
	for _, d := range devices {
		if d.Serial == want {
			return d, nil
		}
	}

	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Serial + " " + d.Model
	}
	matches := fuzzy.Find(want, names)
	if len(matches) == 0 {
		return Device{}, fmt.Errorf("no authorized device matches %q", want)
	}
	return devices[matches[0].Index], nil
}
