// Package capture implements the capture orchestrator: it launches and
// supervises the logcat stream, the dumpsys poller queue, the optional
// device-side and host-side ping children, and writes the capture manifest.
package capture

import (
	"encoding/json"
	"io"
	"os"
	"time"
)

// TaskCounters tracks one scheduled task's lifetime outcome tally.
type TaskCounters struct {
	Runs           int   `json:"runs"`
	OK             int   `json:"ok"`
	Skipped        int   `json:"skipped"`
	Timeout        int   `json:"timeout"`
	Error          int   `json:"error"`
	LastDurationMs int64 `json:"lastDurationMs"`
}

// PingConfig mirrors one ping side's manifest block.
type PingConfig struct {
	Enabled     bool    `json:"enabled"`
	HostIP      string  `json:"hostIp,omitempty"`
	IntervalSec float64 `json:"intervalSec,omitempty"`
	SSHHost     string  `json:"sshHost,omitempty"`
	SSHUser     string  `json:"sshUser,omitempty"`
	SSHKeyPath  string  `json:"sshKeyPath,omitempty"`
}

// Manifest is capture_meta.json, schema version 3: it carries the device
// list, both ping dialects' configs, and per-task run counters.
type Manifest struct {
	Version         int                     `json:"version"`
	StartedAtIso    string                  `json:"startedAtIso"`
	StoppedAtIso    string                  `json:"stoppedAtIso,omitempty"`
	OutDir          string                  `json:"outDir"`
	Minutes         int                     `json:"minutes"`
	DeviceSerial    string                  `json:"deviceSerial"`
	DeviceList      []string                `json:"deviceList"`
	DevicePing      PingConfig              `json:"devicePing"`
	HostSidePing    PingConfig              `json:"hostSidePing"`
	StopReason      string                  `json:"stopReason,omitempty"`
	ParseExitCode   *int                    `json:"parseExitCode,omitempty"`
	TaskCounters    map[string]TaskCounters `json:"taskCounters"`
	PingLogTzOffset string                  `json:"pingLogTzOffset"`
}

// NewManifest seeds a manifest at capture start.
func NewManifest(outDir string, minutes int, deviceSerial string, deviceList []string, devicePing, hostPing PingConfig, tzOffset string, started time.Time) *Manifest {
	return &Manifest{
		Version:         3,
		StartedAtIso:    started.UTC().Format(time.RFC3339Nano),
		OutDir:          outDir,
		Minutes:         minutes,
		DeviceSerial:    deviceSerial,
		DeviceList:      deviceList,
		DevicePing:      devicePing,
		HostSidePing:    hostPing,
		TaskCounters:    map[string]TaskCounters{},
		PingLogTzOffset: tzOffset,
	}
}

// WriteAtomic rewrites the manifest file via a temp-file-plus-rename swap,
// the well-defined checkpoint behavior requires (start, stop,
// after report invocation).
func WriteAtomic(path string, m *Manifest) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ReadManifest loads a manifest from r, used by tests and by the report
// phase's degraded-mode provenance checks.
func ReadManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}
