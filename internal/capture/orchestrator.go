package capture

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options configures one capture run ( CLI surface, minus flag
// parsing itself, which cmd/capture owns).
type Options struct {
	OutDir              string
	Minutes             int
	AdbPath             string
	DeviceSerial        string
	DevicePingEnabled   bool
	DevicePingIP        string
	DevicePingIntervalS float64
	HostPing            HostSidePingConfig
	HostPingEnabled     bool
	PingLogTzOffset     string
	Logger              *zap.Logger
	Clock               clock.Clock
}

// Result carries the orchestrator's outcome for the caller (cmd/capture) to
// turn into a process exit code.
type Result struct {
	RunDir        string
	StopReason    string
	ParseExitCode *int
}

// Run drives one full capture lifecycle: preflight, spawn children, run
// until duration expiry/signal/fault, staged shutdown, manifest write,
// report-phase invocation.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	if err := CheckAdbAvailable(opts.AdbPath); err != nil {
		return nil, err
	}
	mgr := NewDeviceManager(opts.AdbPath)
	device, err := RequireAuthorizedDevice(ctx, mgr, opts.DeviceSerial)
	if err != nil {
		return nil, err
	}

	if opts.DevicePingEnabled {
		if err := ValidateIPv4(opts.DevicePingIP); err != nil {
			return nil, err
		}
		if err := ValidateInterval(opts.DevicePingIntervalS); err != nil {
			return nil, err
		}
	}
	if opts.PingLogTzOffset != "" {
		if err := ValidateTZOffset(opts.PingLogTzOffset); err != nil {
			return nil, err
		}
	}
	if opts.HostPingEnabled {
		if err := VerifyHostSidePing(ctx, opts.HostPing); err != nil {
			return nil, err
		}
	}

	started := clk.Now()
	runDir := filepath.Join(opts.OutDir, started.UTC().Format("20060102_150405"))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	allDevices, _ := mgr.ListDevices(ctx)
	serials := make([]string, len(allDevices))
	for i, d := range allDevices {
		serials[i] = d.Serial
	}

	manifest := NewManifest(runDir, opts.Minutes, device.Serial, serials,
		PingConfig{Enabled: opts.DevicePingEnabled, HostIP: opts.DevicePingIP, IntervalSec: opts.DevicePingIntervalS},
		PingConfig{Enabled: opts.HostPingEnabled, SSHHost: opts.HostPing.SSHHost, SSHUser: opts.HostPing.SSHUser,
			SSHKeyPath: opts.HostPing.SSHKeyPath, IntervalSec: opts.HostPing.IntervalSec},
		opts.PingLogTzOffset, started)
	manifestPath := filepath.Join(runDir, "capture_meta.json")
	if err := WriteAtomic(manifestPath, manifest); err != nil {
		return nil, err
	}

	sup := &supervisor{
		opts:    opts,
		runDir:  runDir,
		device:  device,
		logger:  logger,
		clock:   clk,
		started: started,
	}
	stopReason, err := sup.runUntilDone(ctx)
	if err != nil {
		logger.Warn("capture supervisor reported an error during shutdown", zap.Error(err))
	}

	manifest.StoppedAtIso = clk.Now().UTC().Format(time.RFC3339Nano)
	manifest.StopReason = stopReason
	for name, c := range sup.taskCounters() {
		manifest.TaskCounters[name] = c
	}
	if err := WriteAtomic(manifestPath, manifest); err != nil {
		logger.Warn("failed to write stop checkpoint", zap.Error(err))
	}

	exitCode := invokeReportPhase(ctx, logger, runDir)
	manifest.ParseExitCode = &exitCode
	if err := WriteAtomic(manifestPath, manifest); err != nil {
		logger.Warn("failed to write final checkpoint", zap.Error(err))
	}

	return &Result{RunDir: runDir, StopReason: stopReason, ParseExitCode: &exitCode}, nil
}

type supervisor struct {
	opts    Options
	runDir  string
	device  Device
	logger  *zap.Logger
	clock   clock.Clock
	started time.Time

	mu    sync.Mutex
	queue *Queue
}

func (s *supervisor) taskCounters() map[string]TaskCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue == nil {
		return nil
	}
	return s.queue.Counters()
}

// runUntilDone spawns logcat, dumpsys pollers, and optional ping children,
// then blocks until duration expiry or ctx cancellation (interrupt/terminate),
// performing the staged shutdown before returning the stop reason. Children
// are not watched: a child that exits early does not end the run.
func (s *supervisor) runUntilDone(parent context.Context) (string, error) {
	durationCtx, cancelDuration := context.WithTimeout(parent, time.Duration(s.opts.Minutes)*time.Minute)
	defer cancelDuration()

	group, gctx := errgroup.WithContext(durationCtx)
	var children []*ManagedChild
	var childrenMu sync.Mutex
	addChild := func(c *ManagedChild) {
		childrenMu.Lock()
		children = append(children, c)
		childrenMu.Unlock()
	}

	logcatFile, err := os.Create(filepath.Join(s.runDir, "logcat_all.log"))
	if err != nil {
		return "fault", err
	}
	defer logcatFile.Close()
	stderrFile, err := os.Create(filepath.Join(s.runDir, "logcat_stderr.log"))
	if err != nil {
		return "fault", err
	}
	defer stderrFile.Close()

	if err := clearLogcatBuffer(parent, s.opts.AdbPath, s.device.Serial); err != nil {
		s.logger.Warn("failed to clear logcat buffer", zap.Error(err))
	}

	logcatChild, err := spawnLogcat(gctx, s.opts.AdbPath, s.device.Serial, logcatFile, stderrFile)
	if err != nil {
		return "fault", err
	}
	addChild(logcatChild)

	// One file per service: dumpsys_{wifi,conn,deviceidle,
	// power,alarm,jobs}.log, each with its own writer so no cross-task
	// synchronization is needed on the file handle.
	writers := make(map[string]*DumpsysWriter, len(DefaultDumpsysTasks()))
	for _, t := range DefaultDumpsysTasks() {
		f, err := os.Create(filepath.Join(s.runDir, "dumpsys_"+t.Name+".log"))
		if err != nil {
			return "fault", err
		}
		defer f.Close()
		writers[t.Name] = NewDumpsysWriter(bufio.NewWriter(f), s.clock.Now)
	}

	s.mu.Lock()
	s.queue = NewQueue(s.clock, func(ctx context.Context, task DumpsysTask) error {
		return writers[task.Name].RunAndWrite(ctx, s.opts.AdbPath, s.device.Serial, task.Name, task.Service)
	})
	queue := s.queue
	s.mu.Unlock()

	var taskWg sync.WaitGroup
	for _, t := range DefaultDumpsysTasks() {
		queue.Schedule(gctx, &taskWg, t)
	}

	if s.opts.DevicePingEnabled {
		pingFile, err := os.Create(filepath.Join(s.runDir, "ping_host.log"))
		if err != nil {
			return "fault", err
		}
		defer pingFile.Close()
		pingChild, pw, err := spawnDevicePing(gctx, s.opts.AdbPath, s.device.Serial, s.opts.DevicePingIP, s.opts.DevicePingIntervalS, pingFile)
		if err != nil {
			return "fault", err
		}
		addChild(pingChild)
		_ = pw
	}

	var hostSession *hostSidePingSession
	if s.opts.HostPingEnabled {
		hostFile, err := os.Create(filepath.Join(s.runDir, "ping_host_side.log"))
		if err != nil {
			return "fault", err
		}
		defer hostFile.Close()
		hostSession, err = startHostSidePing(gctx, s.opts.HostPing, hostFile)
		if err != nil {
			return "fault", err
		}
		addChild(hostSession.child)
	}

	stopReason := "duration_expired"
	<-gctx.Done()
	switch {
	case parent.Err() != nil:
		stopReason = "interrupt"
	case durationCtx.Err() == nil:
		stopReason = "fault"
	}

	queue.Stop()
	drained := make(chan struct{})
	go func() { taskWg.Wait(); close(drained) }()
	select {
	case <-drained:
	case <-time.After(25 * time.Second):
		s.logger.Warn("timed out awaiting outstanding snapshot tasks during shutdown")
	}

	childrenMu.Lock()
	for _, c := range children {
		c.Shutdown()
	}
	childrenMu.Unlock()

	if hostSession != nil {
		if err := hostSession.stop(parent, s.opts.HostPing); err != nil {
			s.logger.Warn("host-side stop script failed", zap.Error(err))
		}
	}

	_ = group.Wait()
	return stopReason, nil
}

func clearLogcatBuffer(ctx context.Context, adbPath, serial string) error {
	clearCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	args := adbArgs(serial, "logcat", "-c")
	return exec.CommandContext(clearCtx, adbPath, args...).Run()
}

func adbArgs(serial string, rest ...string) []string {
	if serial == "" {
		return rest
	}
	return append([]string{"-s", serial}, rest...)
}

func spawnLogcat(ctx context.Context, adbPath, serial string, stdout, stderr *os.File) (*ManagedChild, error) {
	args := adbArgs(serial, "logcat", "-v", "threadtime")
	cmd := exec.Command(adbPath, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start logcat: %w", err)
	}
	return NewManagedChild("logcat", cmd), nil
}

func spawnDevicePing(ctx context.Context, adbPath, serial, ip string, intervalSec float64, out *os.File) (*ManagedChild, *PrefixWriter, error) {
	args := adbArgs(serial, "shell", "ping", "-i", fmt.Sprintf("%.3f", intervalSec), ip)
	cmd := exec.Command(adbPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start device ping: %w", err)
	}
	pw := NewPrefixWriter(out, SourceDevicePing, nil)
	go func() { _ = CopyLines(stdout, pw) }()
	return NewManagedChild("device_ping", cmd), pw, nil
}

// invokeReportPhase shells out to the report binary against runDir and
// records its exit code in the manifest.
func invokeReportPhase(ctx context.Context, logger *zap.Logger, runDir string) int {
	reportPath, err := exec.LookPath("netdiag-report")
	if err != nil {
		logger.Warn("report binary not found on PATH, skipping report-phase invocation", zap.Error(err))
		return 1
	}
	cmd := exec.CommandContext(ctx, reportPath, "--dir", runDir)
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		logger.Warn("report phase invocation failed", zap.Error(err))
		return 1
	}
	return 0
}
