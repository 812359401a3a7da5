package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/netdiag/streamcheck/internal/appfocus"
	"github.com/netdiag/streamcheck/internal/cliutil"
	"github.com/netdiag/streamcheck/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoisePolicyFromString(t *testing.T) {
	assert.Equal(t, appfocus.NoisePolicyAggressive, noisePolicyFromString("aggressive"))
	assert.Equal(t, appfocus.NoisePolicyConservative, noisePolicyFromString("conservative"))
	assert.Equal(t, appfocus.NoisePolicyDefault, noisePolicyFromString("balanced"))
	assert.Equal(t, appfocus.NoisePolicyDefault, noisePolicyFromString("bogus"))
}

func TestApplyReportDefaultsUsesConfigWhenFlagLeftAtDefault(t *testing.T) {
	c := &cli{
		StreamWindowMode:      "auto",
		NoisePolicy:           "balanced",
		SessionPreBufferSec:   5,
		SessionPostBufferSec:  10,
		ClockSkewToleranceSec: 2,
		NoValidSessionPolicy:  "empty-main",
	}
	cfg := &config.Config{Report: config.ReportConfig{
		StreamWindowMode:      "strict",
		NoisePolicy:           "aggressive",
		SessionPreBufferSec:   1,
		SessionPostBufferSec:  2,
		ClockSkewToleranceSec: 0.5,
		NoValidSessionPolicy:  "degraded",
	}}
	globals := cliutil.NewGlobals(false, false, "text")

	applyReportDefaults(c, cfg, globals)

	assert.Equal(t, "strict", c.StreamWindowMode)
	assert.Equal(t, "aggressive", c.NoisePolicy)
	assert.Equal(t, 1.0, c.SessionPreBufferSec)
	assert.Equal(t, 2.0, c.SessionPostBufferSec)
	assert.Equal(t, 0.5, c.ClockSkewToleranceSec)
	assert.Equal(t, "degraded", c.NoValidSessionPolicy)
}

func TestApplyReportDefaultsPreservesExplicitFlags(t *testing.T) {
	c := &cli{
		StreamWindowMode:     "all",
		NoisePolicy:          "conservative",
		NoValidSessionPolicy: "empty-main",
	}
	cfg := &config.Config{Report: config.ReportConfig{
		StreamWindowMode:     "strict",
		NoisePolicy:          "aggressive",
		NoValidSessionPolicy: "degraded",
	}}
	globals := cliutil.NewGlobals(false, false, "text")
	globals.ExplicitlySet("stream-window-mode")
	globals.ExplicitlySet("noise-policy")
	globals.ExplicitlySet("no-valid-session-policy")

	applyReportDefaults(c, cfg, globals)

	assert.Equal(t, "all", c.StreamWindowMode)
	assert.Equal(t, "conservative", c.NoisePolicy)
	assert.Equal(t, "empty-main", c.NoValidSessionPolicy)
}

func TestResolveDirPrefersExplicitDir(t *testing.T) {
	dir, err := resolveDir("/some/explicit/dir", "/some/root")
	require.NoError(t, err)
	assert.Equal(t, "/some/explicit/dir", dir)
}

func TestResolveDirErrorsWithNeitherFlag(t *testing.T) {
	_, err := resolveDir("", "")
	assert.Error(t, err)
}

func TestResolveDirLatestPicksNewestStartedAt(t *testing.T) {
	root := t.TempDir()
	older := filepath.Join(root, "20260101_000000")
	newer := filepath.Join(root, "20260102_000000")
	require.NoError(t, os.MkdirAll(older, 0o755))
	require.NoError(t, os.MkdirAll(newer, 0o755))

	writeMeta := func(dir, startedAtIso string) {
		content := `{"startedAtIso":"` + startedAtIso + `","version":3}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "capture_meta.json"), []byte(content), 0o644))
	}
	writeMeta(older, "2026-01-01T00:00:00Z")
	writeMeta(newer, "2026-01-02T00:00:00Z")

	got, err := resolveDir("", root)
	require.NoError(t, err)
	assert.Equal(t, newer, got)
}

func TestResolveDirLatestSkipsUnreadableManifests(t *testing.T) {
	root := t.TempDir()
	broken := filepath.Join(root, "broken")
	good := filepath.Join(root, "good")
	require.NoError(t, os.MkdirAll(broken, 0o755))
	require.NoError(t, os.MkdirAll(good, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(good, "capture_meta.json"),
		[]byte(`{"startedAtIso":"2026-01-01T00:00:00Z"}`), 0o644))

	got, err := resolveDir("", root)
	require.NoError(t, err)
	assert.Equal(t, good, got)
}

func TestResolveDirLatestErrorsWhenRootUnreadable(t *testing.T) {
	_, err := resolveDir("", filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
