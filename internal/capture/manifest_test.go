package capture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestWriteAtomicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture_meta.json")

	started := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m := NewManifest(dir, 30, "ABCD1234", []string{"ABCD1234"},
		PingConfig{Enabled: true, HostIP: "8.8.8.8", IntervalSec: 1},
		PingConfig{Enabled: false}, "+08:00", started)
	m.TaskCounters["wifi"] = TaskCounters{Runs: 10, OK: 9, Skipped: 1}

	require.NoError(t, WriteAtomic(path, m))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := ReadManifest(f)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Version)
	assert.Equal(t, "ABCD1234", got.DeviceSerial)
	assert.Equal(t, "+08:00", got.PingLogTzOffset)
	assert.Equal(t, 9, got.TaskCounters["wifi"].OK)
	assert.True(t, got.DevicePing.Enabled)
	assert.False(t, got.HostSidePing.Enabled)
}

func TestManifestWriteAtomicLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture_meta.json")
	m := NewManifest(dir, 5, "X", nil, PingConfig{}, PingConfig{}, "+00:00", time.Now())
	require.NoError(t, WriteAtomic(path, m))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "capture_meta.json", entries[0].Name())
}
