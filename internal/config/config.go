// Package config loads optional YAML defaults shared by the capture and
// report binaries via viper, using a search-path-plus-env-override pattern.
// This only supplies defaults for values the CLI flags can always override.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the defaults shared across both binaries.
type Config struct {
	Capture CaptureConfig `mapstructure:"capture"`
	Report  ReportConfig  `mapstructure:"report"`
}

// CaptureConfig carries the capture orchestrator's tunables.
type CaptureConfig struct {
	OutDir              string  `mapstructure:"out_dir"`
	Minutes             int     `mapstructure:"minutes"`
	DevicePingEnabled   bool    `mapstructure:"device_ping_enabled"`
	DevicePingIntervalS float64 `mapstructure:"device_ping_interval_sec"`
	HostPingEnabled     bool    `mapstructure:"host_ping_enabled"`
	HostPingIntervalS   float64 `mapstructure:"host_ping_interval_sec"`
	PingLogTzOffset     string  `mapstructure:"ping_log_tz_offset"`
}

// ReportConfig carries the report phase's tunables.
type ReportConfig struct {
	StreamWindowMode      string  `mapstructure:"stream_window_mode"`
	NoisePolicy           string  `mapstructure:"noise_policy"`
	SessionPreBufferSec   float64 `mapstructure:"session_pre_buffer_sec"`
	SessionPostBufferSec  float64 `mapstructure:"session_post_buffer_sec"`
	ClockSkewToleranceSec float64 `mapstructure:"clock_skew_tolerance_sec"`
	NoValidSessionPolicy  string  `mapstructure:"no_valid_session_policy"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			OutDir:              "logs",
			Minutes:             30,
			DevicePingIntervalS: 1,
			HostPingIntervalS:   1,
		},
		Report: ReportConfig{
			StreamWindowMode:      "auto",
			NoisePolicy:           "balanced",
			SessionPreBufferSec:   5,
			SessionPostBufferSec:  10,
			ClockSkewToleranceSec: 2,
			NoValidSessionPolicy:  "empty-main",
		},
	}
}

// Load searches `.netdiag.yaml`/`.netdiag.yml` in the current directory, the
// home directory, and `$XDG_CONFIG_HOME/netdiag/config.yaml`, in that
// precedence order, then overlays environment variables prefixed NETDIAG_.
func Load() (*Config, error) {
	cfg := Default()
	v := viper.New()

	v.SetDefault("capture.out_dir", cfg.Capture.OutDir)
	v.SetDefault("capture.minutes", cfg.Capture.Minutes)
	v.SetDefault("capture.device_ping_interval_sec", cfg.Capture.DevicePingIntervalS)
	v.SetDefault("capture.host_ping_interval_sec", cfg.Capture.HostPingIntervalS)
	v.SetDefault("report.stream_window_mode", cfg.Report.StreamWindowMode)
	v.SetDefault("report.noise_policy", cfg.Report.NoisePolicy)
	v.SetDefault("report.session_pre_buffer_sec", cfg.Report.SessionPreBufferSec)
	v.SetDefault("report.session_post_buffer_sec", cfg.Report.SessionPostBufferSec)
	v.SetDefault("report.clock_skew_tolerance_sec", cfg.Report.ClockSkewToleranceSec)
	v.SetDefault("report.no_valid_session_policy", cfg.Report.NoValidSessionPolicy)

	v.SetEnvPrefix("NETDIAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := findConfigFile(); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from an explicit path, for the CLI's
// `--config` flag.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	names := []string{".netdiag.yaml", ".netdiag.yml"}
	home, homeErr := os.UserHomeDir()
	configDir, configDirErr := os.UserConfigDir()

	var searchPaths []string
	if cwd, err := os.Getwd(); err == nil {
		searchPaths = append(searchPaths, cwd)
	}
	if homeErr == nil {
		searchPaths = append(searchPaths, home)
	}
	if configDirErr == nil {
		searchPaths = append(searchPaths, filepath.Join(configDir, "netdiag"))
	}

	for _, dir := range searchPaths {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	if configDirErr == nil {
		path := filepath.Join(configDir, "netdiag", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
