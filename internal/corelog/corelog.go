// Package corelog builds the component-tagged loggers used across the
// process, mirroring the teacher's component-prefixed dw_printf calls and
// original_source/common/hermes_log.h's per-component HLOGx macros. Unlike
// both, there is no package-level global: New returns a logger a caller
// threads through its own constructor.
package corelog

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Component names match the ones SPEC_FULL.md §1.1 lists.
const (
	ComponentARQ   = "arq"
	ComponentFSM   = "fsm"
	ComponentModem = "modem"
	ComponentTCP   = "tcp"
	ComponentWire  = "wire"
)

// New builds a *log.Logger tagged with component, writing to w (os.Stderr
// if w is nil).
func New(component string, level log.Level, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          component,
	})
	l.SetLevel(level)
	return l
}

// ParseLevel maps the -v flag's verbosity count (spec §6) onto a
// charmbracelet/log level: 0 => Info, 1 => Debug, >=2 => Debug with caller
// reporting also enabled by the caller if desired.
func ParseLevel(verbosity int) log.Level {
	if verbosity <= 0 {
		return log.InfoLevel
	}
	return log.DebugLevel
}
