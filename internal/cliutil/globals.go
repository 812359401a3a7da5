// Package cliutil holds the shared Kong globals, fatal-error tagging, and
// shell completion support used by both cmd/capture and cmd/report.
package cliutil

import (
	"io"
	"os"

	"go.uber.org/zap"
)

// Globals is shared state that each binary's main builds after Kong flag
// parsing, mirroring cli.Globals.
type Globals struct {
	Format  string // "text" | "json"
	Quiet   bool
	Debug   bool
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *zap.Logger

	// FlagsSet records which flags the user explicitly passed, so config
	// defaults only fill in flags the user did not pass (whatever their value).
	FlagsSet map[string]bool
}

// NewGlobals builds a Globals with a leveled logger matching the Debug flag.
func NewGlobals(debug, quiet bool, format string) *Globals {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	if quiet {
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}
	logger, _ := cfg.Build()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Globals{
		Format:   format,
		Quiet:    quiet,
		Debug:    debug,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Logger:   logger,
		FlagsSet: map[string]bool{},
	}
}

// ExplicitlySet records that flag was passed on the command line, used to
// resolve CLI-flag-vs-config-default precedence.
func (g *Globals) ExplicitlySet(flag string) {
	if g.FlagsSet == nil {
		g.FlagsSet = map[string]bool{}
	}
	g.FlagsSet[flag] = true
}

// WasSet reports whether flag was explicitly passed.
func (g *Globals) WasSet(flag string) bool { return g.FlagsSet[flag] }
