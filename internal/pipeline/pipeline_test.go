package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/netdiag/streamcheck/internal/capture"
	"github.com/netdiag/streamcheck/internal/report"
	"github.com/netdiag/streamcheck/internal/snapshot"
	"github.com/netdiag/streamcheck/internal/streamsession"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRunAssemblesBundleFromSyntheticCapture(t *testing.T) {
	dir := t.TempDir()

	logcat := "" +
		"01-02 10:00:00.000 100 200 I LimeLog: [INTERNAL_STATS] fps(total/rx/rd)=60/60/60 loss=0/600(0.0%) lossEvents=0 rtt=20ms rttVar=2ms decode=5ms render=3ms total=28ms host[min/max/avg]=18/22/20ms\n" +
		"01-02 10:00:01.000 100 200 W wifi: supplicant roaming detected\n" +
		"01-02 10:00:05.000 100 200 I LimeLog: [INTERNAL_STATS] fps(total/rx/rd)=58/58/58 loss=0/600(0.0%) lossEvents=0 rtt=21ms rttVar=3ms decode=5ms render=3ms total=29ms host[min/max/avg]=18/22/20ms\n" +
		"01-02 10:00:40.000 100 200 I LimeLog: connection terminated by peer\n"
	writeFile(t, dir, "logcat_all.log", logcat)

	// Backdate the mtime so the capture window anchors to a known instant.
	start := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "logcat_all.log"), start, start))

	f, err := os.Create(filepath.Join(dir, "dumpsys_wifi.log"))
	require.NoError(t, err)
	require.NoError(t, snapshot.Write(f, snapshot.Snapshot{
		HostTS: start, Task: "wifi", Status: snapshot.OK, DurationMs: 50, Body: "mWifiInfo: SSID=\"test\"",
	}))
	require.NoError(t, f.Close())

	opts := Options{
		Dir:                   dir,
		StreamWindowMode:      streamsession.ModeAll,
		NoisePolicy:           "default",
		SessionPreBufferSec:   5,
		SessionPostBufferSec:  10,
		ClockSkewToleranceSec: 2,
		NoValidSessionPolicy:  report.PolicyEmptyMain,
		Now:                   func() time.Time { return start.Add(time.Hour) },
	}

	bundle, err := Run(opts)
	require.NoError(t, err)

	assert.Equal(t, 4, bundle.Counters.LogcatLinesTotal)
	assert.Contains(t, bundle.Counters.MissingOptional, "ping_host.log")
	assert.Contains(t, bundle.Counters.MissingOptional, "ping_host_side.log")
	assert.NotContains(t, bundle.Counters.MissingOptional, "dumpsys_wifi.log")
	assert.NotEmpty(t, bundle.InternalStats)
	assert.Equal(t, start.Add(time.Hour), bundle.Provenance.GeneratedAt)
}

func TestRunUsesManifestStartStopOverLogcatMtime(t *testing.T) {
	dir := t.TempDir()

	logcat := "01-02 10:00:00.000 100 200 I LimeLog: [INTERNAL_STATS] fps(total/rx/rd)=60/60/60 loss=0/600(0.0%) lossEvents=0 rtt=20ms rttVar=2ms decode=5ms render=3ms total=28ms host[min/max/avg]=18/22/20ms\n"
	writeFile(t, dir, "logcat_all.log", logcat)

	// Backdate the mtime to something deliberately wrong so the test
	// fails if the manifest's startedAtIso/stoppedAtIso aren't honored.
	mtime := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "logcat_all.log"), mtime, mtime))

	manifestStart := time.Date(2026, 1, 2, 9, 55, 0, 0, time.UTC)
	manifestEnd := time.Date(2026, 1, 2, 10, 40, 0, 0, time.UTC)
	m := capture.NewManifest(dir, 45, "SERIAL", []string{"SERIAL"}, capture.PingConfig{}, capture.PingConfig{}, "+00:00", manifestStart)
	m.StoppedAtIso = manifestEnd.UTC().Format(time.RFC3339Nano)
	require.NoError(t, capture.WriteAtomic(filepath.Join(dir, "capture_meta.json"), m))

	opts := Options{
		Dir:                  dir,
		StreamWindowMode:     streamsession.ModeAll,
		NoisePolicy:          "default",
		NoValidSessionPolicy: report.PolicyEmptyMain,
		Now:                  func() time.Time { return manifestEnd },
	}

	bundle, err := Run(opts)
	require.NoError(t, err)
	assert.True(t, bundle.Provenance.CaptureStart.Equal(manifestStart))
	assert.True(t, bundle.Provenance.CaptureEnd.Equal(manifestEnd))
}

func TestRunErrorsWithoutLogcatFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Run(Options{Dir: dir})
	assert.Error(t, err)
}
