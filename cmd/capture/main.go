// Command netdiag-capture drives a capture run against a USB-attached
// Android device: logcat, dumpsys pollers, optional device and host-side
// ping children, writing raw streams and a capture manifest to a
// timestamped output directory, then invoking the report phase.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/netdiag/streamcheck/internal/capture"
	"github.com/netdiag/streamcheck/internal/cliutil"
	"github.com/netdiag/streamcheck/internal/config"
)

// cli is the capture binary's flat flag surface.
type cli struct {
	Minutes             int    `default:"30" help:"capture duration in minutes"`
	Out                 string `default:"logs" help:"output directory root"`
	Config              string `help:"path to a config file overriding defaults"`
	Device              string `help:"device serial (fuzzy-matched if ambiguous)"`
	Adb                 string `default:"adb" help:"path to the adb binary"`
	DevicePing          bool   `name:"device-ping" help:"enable device-side ping child"`
	DevicePingIP        string `name:"device-ping-ip" help:"device ping target IPv4"`
	DevicePingIntervalS float64 `name:"device-ping-interval-sec" default:"1" help:"device ping interval in seconds"`
	HostPing            bool    `name:"host-ping" help:"enable host-side SSH ping"`
	HostPingIP          string  `name:"host-ping-ip" help:"host-side ping target IPv4"`
	HostPingIntervalS   float64 `name:"host-ping-interval-sec" default:"1" help:"host-side ping interval in seconds"`
	SSHHost             string  `name:"ssh-host" help:"SSH host for host-side ping"`
	SSHUser             string  `name:"ssh-user" help:"SSH user for host-side ping"`
	SSHKey              string  `name:"ssh-key" help:"SSH private key path"`
	StartScript         string  `name:"host-ping-start-script" help:"remote PowerShell start script path"`
	StopScript          string  `name:"host-ping-stop-script" help:"remote PowerShell stop script path"`
	VerifyScript        string  `name:"host-ping-verify-script" help:"remote PowerShell verify script path"`
	PingLogTzOffset     string  `name:"ping-log-tz-offset" default:"+00:00" help:"local tz offset stamped into ping logs, e.g. +08:00"`
	Debug               bool    `help:"enable verbose logging"`
	Quiet               bool    `help:"suppress non-error logging"`
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("netdiag-capture"),
		kong.Description("Capture logcat, dumpsys, and ping streams from a USB-attached Android device."),
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

	applyCaptureDefaults(&c, cfg, globals)

	opts := capture.Options{
		OutDir:              c.Out,
		Minutes:             c.Minutes,
		AdbPath:             c.Adb,
		DeviceSerial:        c.Device,
		DevicePingEnabled:   c.DevicePing,
		DevicePingIP:        c.DevicePingIP,
		DevicePingIntervalS: c.DevicePingIntervalS,
		HostPingEnabled:     c.HostPing,
		HostPing: capture.HostSidePingConfig{
			SSHHost:      c.SSHHost,
			SSHUser:      c.SSHUser,
			SSHKeyPath:   c.SSHKey,
			HostIP:       c.HostPingIP,
			IntervalSec:  c.HostPingIntervalS,
			StartScript:  c.StartScript,
			StopScript:   c.StopScript,
			VerifyScript: c.VerifyScript,
			RemoteShell:  "powershell",
		},
		PingLogTzOffset: c.PingLogTzOffset,
		Logger:          globals.Logger,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := capture.Run(runCtx, opts)
	if err != nil {
		cliutil.ReportFatal(globals, err)
		os.Exit(1)
	}

	if !c.Quiet {
		fmt.Fprintf(globals.Stdout, "capture complete: %s (stop=%s, report_exit=%v)\n",
			result.RunDir, result.StopReason, derefExit(result.ParseExitCode))
	}
	if result.ParseExitCode != nil && *result.ParseExitCode != 0 {
		os.Exit(1)
	}
}

// applyCaptureDefaults fills flags left at their kong default with the
// loaded config's values (flags win when explicitly set).
func applyCaptureDefaults(c *cli, cfg *config.Config, globals *cliutil.Globals) {
	if !globals.WasSet("out") {
		c.Out = cfg.Capture.OutDir
	}
	if !globals.WasSet("minutes") {
		c.Minutes = cfg.Capture.Minutes
	}
	if !globals.WasSet("device-ping-interval-sec") {
		c.DevicePingIntervalS = cfg.Capture.DevicePingIntervalS
	}
	if !globals.WasSet("host-ping-interval-sec") {
		c.HostPingIntervalS = cfg.Capture.HostPingIntervalS
	}
	if !globals.WasSet("ping-log-tz-offset") && cfg.Capture.PingLogTzOffset != "" {
		c.PingLogTzOffset = cfg.Capture.PingLogTzOffset
	}
}

func derefExit(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}
