package capture

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"regexp"
	"time"

	"github.com/netdiag/streamcheck/internal/cliutil"
)

// CheckAdbAvailable is the first startup-fatal condition: adb must be
// resolvable on PATH.
func CheckAdbAvailable(adbPath string) error {
	if adbPath == "" {
		adbPath = "adb"
	}
	if _, err := exec.LookPath(adbPath); err != nil {
		return cliutil.NewFatalError(cliutil.ErrAdbMissing, "adb not found on PATH").
			WithHint("install the Android platform-tools and ensure adb is on PATH")
	}
	return nil
}

// RequireAuthorizedDevice fails startup when no authorized device is
// attached, or resolves one by serial/fuzzy match.
func RequireAuthorizedDevice(ctx context.Context, mgr *DeviceManager, want string) (Device, error) {
	all, err := mgr.ListDevices(ctx)
	if err != nil {
		return Device{}, cliutil.NewFatalError(cliutil.ErrNoAuthorizedDevice, err.Error())
	}
	authorized := AuthorizedDevices(all)
	if len(authorized) == 0 {
		return Device{}, cliutil.NewFatalError(cliutil.ErrNoAuthorizedDevice, "no authorized/online device attached").
			WithHint("run `adb devices` and authorize the device on-screen")
	}
	d, err := ResolveDevice(authorized, want)
	if err != nil {
		return Device{}, cliutil.NewFatalError(cliutil.ErrNoAuthorizedDevice, err.Error())
	}
	return d, nil
}

var ipv4Re = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

// ValidateIPv4 is a startup-fatal check for the device-ping target.
func ValidateIPv4(ip string) error {
	if !ipv4Re.MatchString(ip) || net.ParseIP(ip) == nil {
		return cliutil.NewFatalError(cliutil.ErrInvalidIPv4, fmt.Sprintf("invalid IPv4 address %q", ip))
	}
	return nil
}

var tzOffsetRe = regexp.MustCompile(`^([+-])(\d{2}):(\d{2})$`)

// ValidateTZOffset validates `--ping-log-tz-offset`: regex
// `^[+-]\d{2}:\d{2}$`, magnitude <= 14h.
func ValidateTZOffset(offset string) error {
	m := tzOffsetRe.FindStringSubmatch(offset)
	if m == nil {
		return cliutil.NewFatalError(cliutil.ErrInvalidTZOffset, fmt.Sprintf("invalid tz offset %q", offset))
	}
	var hh, mm int
	fmt.Sscanf(m[2], "%d", &hh)
	fmt.Sscanf(m[3], "%d", &mm)
	totalMin := hh*60 + mm
	if totalMin > 14*60 {
		return cliutil.NewFatalError(cliutil.ErrInvalidTZOffset, fmt.Sprintf("tz offset %q exceeds 14h magnitude", offset))
	}
	return nil
}

// ValidateInterval rejects non-positive ping intervals.
func ValidateInterval(sec float64) error {
	if sec <= 0 {
		return cliutil.NewFatalError(cliutil.ErrInvalidInterval, fmt.Sprintf("invalid interval %.3fs, must be > 0", sec))
	}
	return nil
}

// HostSidePingConfig carries the host-side SSH ping startup parameters.
type HostSidePingConfig struct {
	SSHHost       string
	SSHUser       string
	SSHKeyPath    string
	HostIP        string
	IntervalSec   float64
	StartScript   string
	StopScript    string
	VerifyScript  string
	RemoteShell   string // "powershell"
}

// VerifyHostSidePing runs the startup-fatal preflight checks required
// before opening the long-lived SSH session: SSH reachability, PowerShell
// presence, nping presence, and presence of the three remote scripts.
func VerifyHostSidePing(ctx context.Context, cfg HostSidePingConfig) error {
	if cfg.SSHKeyPath != "" {
		if _, err := os.Stat(cfg.SSHKeyPath); err != nil {
			return cliutil.NewFatalError(cliutil.ErrMissingSSHKey, fmt.Sprintf("SSH key not found: %s", cfg.SSHKeyPath)).
				WithHint("pass a readable --ssh-key path")
		}
	}
	if err := ValidateInterval(cfg.IntervalSec); err != nil {
		return err
	}
	if err := ValidateIPv4(cfg.HostIP); err != nil {
		return err
	}

	checks := []struct {
		name string
		args []string
	}{
		{"ssh reachability", []string{"-o", "BatchMode=yes", "-o", "ConnectTimeout=5", "echo", "ok"}},
		{"powershell presence", []string{"powershell", "-Command", "exit 0"}},
		{"nping presence", []string{"where", "nping"}},
		{"verify script present", []string{"powershell", "-Command", fmt.Sprintf("Test-Path '%s'", cfg.VerifyScript)}},
		{"start script present", []string{"powershell", "-Command", fmt.Sprintf("Test-Path '%s'", cfg.StartScript)}},
		{"stop script present", []string{"powershell", "-Command", fmt.Sprintf("Test-Path '%s'", cfg.StopScript)}},
	}

	for _, c := range checks {
		if err := runSSHCheck(ctx, cfg, c.args); err != nil {
			return cliutil.NewFatalError(cliutil.ErrHostPingVerifyFail,
				fmt.Sprintf("host-side ping verification failed (%s): %v", c.name, err))
		}
	}
	return nil
}

func runSSHCheck(ctx context.Context, cfg HostSidePingConfig, remoteArgs []string) error {
	checkCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	args := sshBaseArgs(cfg)
	args = append(args, remoteArgs...)
	cmd := exec.CommandContext(checkCtx, "ssh", args...)
	return cmd.Run()
}

func sshBaseArgs(cfg HostSidePingConfig) []string {
	args := []string{"-o", "BatchMode=yes", "-o", "ConnectTimeout=5"}
	if cfg.SSHKeyPath != "" {
		args = append(args, "-i", cfg.SSHKeyPath)
	}
	target := cfg.SSHHost
	if cfg.SSHUser != "" {
		target = cfg.SSHUser + "@" + cfg.SSHHost
	}
	return append(args, target)
}
