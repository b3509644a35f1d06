package cli

import (
	"github.com/charmbracelet/log"

	"github.com/amirbrooks/workreport/internal/store"
)

// app bundles what every command needs.
type app struct {
	ws  *store.Workspace
	gf  GlobalFlags
	log *log.Logger
}

// newLogger returns the diagnostics logger. It writes to stderr so report
// text on stdout stays clean: warnings by default, debug with --verbose,
// errors only with --quiet.
func newLogger(gf GlobalFlags) *log.Logger {
	level := log.WarnLevel
	switch {
	case gf.Verbose:
		level = log.DebugLevel
	case gf.Quiet:
		level = log.ErrorLevel
	}
	return log.NewWithOptions(stderr, log.Options{
		Level:           level,
		Formatter:       log.TextFormatter,
		ReportTimestamp: gf.Verbose,
		Prefix:          "workreport",
	})
}
