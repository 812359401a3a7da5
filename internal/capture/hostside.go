package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// hostSidePingSession is the single long-lived SSH session running the
// remote start script; its stdout/stderr are teed with the uniform prefix
// into ping_host_side.log.
type hostSidePingSession struct {
	child *ManagedChild
}

// startHostSidePing opens the long-lived SSH session. Preflight
// verification must already have run (VerifyHostSidePing).
func startHostSidePing(ctx context.Context, cfg HostSidePingConfig, out *os.File) (*hostSidePingSession, error) {
	args := sshBaseArgs(cfg)
	args = append(args, "powershell", "-File", cfg.StartScript, "-TargetIp", cfg.HostIP,
		"-IntervalSec", fmt.Sprintf("%.3f", cfg.IntervalSec))
	cmd := exec.Command("ssh", args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start host-side ping session: %w", err)
	}

	pw := NewPrefixWriter(out, SourceHostPing, nil)
	go func() { _ = CopyLines(stdout, pw) }()
	go func() { _ = CopyLines(stderr, pw) }()

	return &hostSidePingSession{child: NewManagedChild("host_ping", cmd)}, nil
}

// stop invokes the remote stop script over a separate SSH call.
func (h *hostSidePingSession) stop(ctx context.Context, cfg HostSidePingConfig) error {
	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	args := sshBaseArgs(cfg)
	args = append(args, "powershell", "-File", cfg.StopScript)
	return exec.CommandContext(stopCtx, "ssh", args...).Run()
}
