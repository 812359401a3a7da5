// Command netdiag-report runs the analysis pass over a capture directory
// produced by netdiag-capture: parses every raw stream, runs stream-session
// detection, app-focus extraction, and cause correlation, then writes the
// Markdown report, CSV table set, and JSON manifest alongside the raw logs.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/netdiag/streamcheck/internal/appfocus"
	"github.com/netdiag/streamcheck/internal/cliutil"
	"github.com/netdiag/streamcheck/internal/config"
	"github.com/netdiag/streamcheck/internal/pipeline"
	"github.com/netdiag/streamcheck/internal/report"
	"github.com/netdiag/streamcheck/internal/streamsession"
	"github.com/tidwall/gjson"
)

// cli is the report binary's flat flag surface.
type cli struct {
	Dir    string `help:"capture directory to analyze"`
	Latest string `name:"latest" help:"output directory root to resolve the most recent run from, instead of --dir"`
	Config string `help:"path to a config file overriding defaults"`

	StreamWindowMode      string  `name:"stream-window-mode" enum:"auto,strict,all" default:"auto" help:"stream window validity gating mode"`
	NoisePolicy           string  `name:"noise-policy" enum:"balanced,aggressive,conservative" default:"balanced" help:"app-focus noise reduction aggressiveness"`
	SessionPreBufferSec   float64 `name:"session-pre-buffer-sec" default:"5" help:"seconds added before a valid window's start"`
	SessionPostBufferSec  float64 `name:"session-post-buffer-sec" default:"10" help:"seconds added after a valid window's end"`
	ClockSkewToleranceSec float64 `name:"clock-skew-tolerance-sec" default:"2" help:"extra buffer margin to absorb device/host clock skew"`
	NoValidSessionPolicy  string  `name:"no-valid-session-policy" enum:"empty-main,degraded" default:"empty-main" help:"report behavior when no valid stream session is found"`

	Debug bool `help:"enable verbose logging"`
	Quiet bool `help:"suppress non-error logging"`
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("netdiag-report"),
		kong.Description("Analyze a netdiag-capture run and write the report, CSVs, and manifest."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}
	if c.Config != "" {
		if loaded, err := config.LoadFromFile(c.Config); err == nil {
			cfg = loaded
		}
	}

	globals := cliutil.NewGlobals(c.Debug, c.Quiet, "text")
	for _, p := range ctx.Path {
		if p.Flag != nil {
			globals.ExplicitlySet(p.Flag.Name)
		}
	}
	applyReportDefaults(&c, cfg, globals)

	dir, err := resolveDir(c.Dir, c.Latest)
	if err != nil {
		cliutil.ReportFatal(globals, err)
		os.Exit(1)
	}

	opts := pipeline.Options{
		Dir:                   dir,
		StreamWindowMode:      streamsession.Mode(c.StreamWindowMode),
		NoisePolicy:           noisePolicyFromString(c.NoisePolicy),
		SessionPreBufferSec:   c.SessionPreBufferSec,
		SessionPostBufferSec:  c.SessionPostBufferSec,
		ClockSkewToleranceSec: c.ClockSkewToleranceSec,
		NoValidSessionPolicy:  report.SessionPolicy(c.NoValidSessionPolicy),
	}

	bundle, err := pipeline.Run(opts)
	if err != nil {
		cliutil.ReportFatal(globals, err)
		os.Exit(1)
	}

	if err := writeOutputs(dir, bundle); err != nil {
		cliutil.ReportFatal(globals, err)
		os.Exit(1)
	}

	if !c.Quiet {
		_ = report.WriteTerminalSummary(globals.Stdout, bundle)
	}
	if !bundle.HasValidSession && bundle.Provenance.NoValidSessionPolicy == report.PolicyEmptyMain {
		os.Exit(2)
	}
}

// noisePolicyFromString maps the CLI/config vocabulary ("balanced") onto
// the appfocus package's internal NoisePolicy constants ("default").
func noisePolicyFromString(s string) appfocus.NoisePolicy {
	switch s {
	case "aggressive":
		return appfocus.NoisePolicyAggressive
	case "conservative":
		return appfocus.NoisePolicyConservative
	default:
		return appfocus.NoisePolicyDefault
	}
}

func applyReportDefaults(c *cli, cfg *config.Config, globals *cliutil.Globals) {
	if !globals.WasSet("stream-window-mode") && cfg.Report.StreamWindowMode != "" {
		c.StreamWindowMode = cfg.Report.StreamWindowMode
	}
	if !globals.WasSet("noise-policy") && cfg.Report.NoisePolicy != "" {
		c.NoisePolicy = cfg.Report.NoisePolicy
	}
	if !globals.WasSet("session-pre-buffer-sec") {
		c.SessionPreBufferSec = cfg.Report.SessionPreBufferSec
	}
	if !globals.WasSet("session-post-buffer-sec") {
		c.SessionPostBufferSec = cfg.Report.SessionPostBufferSec
	}
	if !globals.WasSet("clock-skew-tolerance-sec") {
		c.ClockSkewToleranceSec = cfg.Report.ClockSkewToleranceSec
	}
	if !globals.WasSet("no-valid-session-policy") && cfg.Report.NoValidSessionPolicy != "" {
		c.NoValidSessionPolicy = cfg.Report.NoValidSessionPolicy
	}
}

// resolveDir implements --dir vs --latest: --latest names an
// output directory root and resolves to the subdirectory whose
// capture_meta.json reports the newest startedAtIso, read with a cheap
// gjson field lookup rather than fully decoding every manifest.
func resolveDir(dir, latestRoot string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	if latestRoot == "" {
		return "", fmt.Errorf("one of --dir or --latest is required")
	}
	entries, err := os.ReadDir(latestRoot)
	if err != nil {
		return "", fmt.Errorf("read --latest root: %w", err)
	}

	var best string
	var bestStarted time.Time
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		runDir := filepath.Join(latestRoot, e.Name())
		raw, err := os.ReadFile(filepath.Join(runDir, "capture_meta.json"))
		if err != nil {
			continue
		}
		res := gjson.GetBytes(raw, "startedAtIso")
		if !res.Exists() {
			continue
		}
		started, err := time.Parse(time.RFC3339Nano, res.String())
		if err != nil {
			continue
		}
		if best == "" || started.After(bestStarted) {
			best, bestStarted = runDir, started
		}
	}
	if best == "" {
		return "", fmt.Errorf("no run directories with a readable capture_meta.json found under %s", latestRoot)
	}
	return best, nil
}

// writeOutputs renders and writes every report artifact into dir:
// report.md, analysis_meta.json, and the CSV table set.
func writeOutputs(dir string, b report.Bundle) error {
	if err := writeFile(dir, "report.md", func(f *os.File) error {
		_, err := f.WriteString(report.RenderMarkdown(b))
		return err
	}); err != nil {
		return err
	}

	files := map[string]string{
		"report.md":              "report.md",
		"timeline.csv":           "timeline.csv",
		"timeline_session.csv":   "timeline_session.csv",
		"intervals.csv":          "intervals.csv",
		"internal_stats.csv":     "internal_stats.csv",
		"app_metrics.csv":        "app_metrics.csv",
		"stream_windows.csv":     "stream_windows.csv",
		"effective_windows.csv":  "effective_windows.csv",
		"ping_device.csv":        "ping_device.csv",
		"ping_host.csv":          "ping_host.csv",
		"analysis_meta.json":     "analysis_meta.json",
	}

	sessionKeys := sessionMinuteKeysFor(b)

	if err := writeFile(dir, "timeline.csv", func(f *os.File) error {
		return report.WriteTimeline(f, b.Timeline, nil)
	}); err != nil {
		return err
	}
	if err := writeFile(dir, "timeline_session.csv", func(f *os.File) error {
		return report.WriteTimeline(f, b.Timeline, sessionKeys)
	}); err != nil {
		return err
	}
	if err := writeFile(dir, "intervals.csv", func(f *os.File) error {
		return report.WriteIntervals(f, b.Intervals)
	}); err != nil {
		return err
	}
	if err := writeFile(dir, "internal_stats.csv", func(f *os.File) error {
		return report.WriteInternalStats(f, b.InternalStats)
	}); err != nil {
		return err
	}
	if err := writeFile(dir, "app_metrics.csv", func(f *os.File) error {
		return report.WriteAppMetrics(f, b.AppMetrics)
	}); err != nil {
		return err
	}
	if err := writeFile(dir, "stream_windows.csv", func(f *os.File) error {
		return report.WriteStreamWindows(f, b.RawWindows)
	}); err != nil {
		return err
	}
	if err := writeFile(dir, "effective_windows.csv", func(f *os.File) error {
		return report.WriteEffectiveWindows(f, b.EffectiveWindows)
	}); err != nil {
		return err
	}
	if err := writeFile(dir, "ping_device.csv", func(f *os.File) error {
		return report.WritePingSamples(f, b.DeviceSamples, false)
	}); err != nil {
		return err
	}
	if err := writeFile(dir, "ping_host.csv", func(f *os.File) error {
		return report.WritePingSamples(f, b.HostSamples, false)
	}); err != nil {
		return err
	}

	manifest := report.BuildManifest(b, b.Provenance.GeneratedAt, files)
	return writeFile(dir, "analysis_meta.json", func(f *os.File) error {
		return report.WriteManifest(f, manifest)
	})
}

func sessionMinuteKeysFor(b report.Bundle) map[string]bool {
	keys := map[string]bool{}
	for _, w := range b.EffectiveWindows {
		for _, bucket := range b.Timeline {
			if !bucket.TS.Before(w.StartTS.Truncate(time.Minute)) && !bucket.TS.After(w.EndTS) {
				keys[bucket.Key] = true
			}
		}
	}
	return keys
}

func writeFile(dir, name string, fn func(*os.File) error) error {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}
