// Package control holds process-wide state with a lifecycle: the abort
// flag, the log-class bitmask, and the progress baton. It is the one piece
// of process-wide state the pipeline needs (per SPEC_FULL.md's Design
// Notes); every pass is still handed its configuration explicitly.
//
// SPDX-License-Identifier: BSD-2-Clause
package control

import (
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gitlab.com/esr/cvs2svn/internal/baton"
)

// Log classes. Mirrors the teacher's bitmask-of-classes approach: to add a
// new class of diagnostic, add a constant here and a matching entry in
// classNames; LogEnabled(class) then gates a Logit() call anywhere in the
// pipeline.
const (
	LogShout    uint = 1 << iota // errors and urgent messages
	LogWarn                      // exceptional condition, probably not a bug
	LogBaton                     // progress-meter internals
	LogCollect                   // Collect pass, file-by-file
	LogCollate                   // symbol classification decisions
	LogFilter                    // FilterSymbols decisions (opens/closes, sprout adjustments)
	LogCycle                     // cycle detection and splitting
	LogTopology                  // topological sort decisions
	LogSink                      // output/sink activity
)

var classNames = map[string]uint{
	"shout":    LogShout,
	"warn":     LogWarn,
	"baton":    LogBaton,
	"collect":  LogCollect,
	"collate":  LogCollate,
	"filter":   LogFilter,
	"cycle":    LogCycle,
	"topology": LogTopology,
	"sink":     LogSink,
}

// ClassByName resolves a log-class name (as given on the command line) to
// its bitmask value. Unknown names return 0, false.
func ClassByName(name string) (uint, bool) {
	v, ok := classNames[name]
	return v, ok
}

// Control is the pipeline's process-wide context.
type Control struct {
	logger   *logrus.Logger
	baton    *baton.Baton
	logmask  uint
	relax    bool // continue past recoverable per-file errors
	testMode bool // suppress wall-clock-dependent output, for golden tests

	abortLock sync.Mutex
	abort     bool

	signals chan os.Signal
	once    sync.Once
}

// New builds a Control with progress reporting enabled according to
// interactive, and installs a SIGINT handler that sets the abort flag
// (consulted at pass and per-file boundaries) rather than killing the
// process outright, so a pass can finish writing a consistent checkpoint.
func New(interactive bool) *Control {
	c := &Control{
		logmask: LogShout | LogWarn,
		signals: make(chan os.Signal, 1),
	}
	c.baton = baton.New(interactive)
	c.logger = logrus.New()
	c.logger.SetOutput(c.baton)
	c.logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:    !interactive,
		FullTimestamp:    true,
		TimestampFormat:  time.RFC3339,
		DisableTimestamp: false,
	})
	signal.Notify(c.signals, os.Interrupt)
	go func() {
		for range c.signals {
			c.SetAbort(true)
			c.Shout("interrupted, finishing current file/pass before stopping")
		}
	}()
	return c
}

// Baton exposes the progress baton for passes that want fine-grained
// counters (e.g. "parsing RCS files").
func (c *Control) Baton() *baton.Baton { return c.baton }

// SetLogMask replaces the active log-class bitmask wholesale.
func (c *Control) SetLogMask(mask uint) { c.logmask = mask }

// EnableClass ORs one more log class into the active mask.
func (c *Control) EnableClass(class uint) { c.logmask |= class }

// LogEnabled reports whether messages of the given class should be emitted.
func (c *Control) LogEnabled(class uint) bool { return c.logmask&class != 0 }

// SetRelax controls whether recoverable (file-level) errors abort or are
// merely logged and skipped, matching the "relax" option flag idiom.
func (c *Control) SetRelax(relax bool) { c.relax = relax }

// Relax reports the current --relax setting.
func (c *Control) Relax() bool { return c.relax }

// SetTestMode disables wall-clock-dependent formatting, for reproducible
// regression-test output.
func (c *Control) SetTestMode(v bool) { c.testMode = v }

// TestMode reports whether test-mode output formatting is active.
func (c *Control) TestMode() bool { return c.testMode }

// Logit writes a log-class-gated diagnostic line.
func (c *Control) Logit(class uint, format string, args ...interface{}) {
	if !c.LogEnabled(class) {
		return
	}
	c.logger.Infof(format, args...)
}

// Shout writes an always-on error/urgent message and does not by itself
// abort the run; callers that need to abort call SetAbort explicitly.
func (c *Control) Shout(format string, args ...interface{}) {
	c.logger.Errorf(format, args...)
}

// Warn writes an always-on warning.
func (c *Control) Warn(format string, args ...interface{}) {
	c.logger.Warnf(format, args...)
}

// GetAbort reports whether an abort has been requested (SIGINT, or a fatal
// error in a pass that chose to request cooperative shutdown).
func (c *Control) GetAbort() bool {
	c.abortLock.Lock()
	defer c.abortLock.Unlock()
	return c.abort
}

// SetAbort sets or clears the abort flag.
func (c *Control) SetAbort(cond bool) {
	c.abortLock.Lock()
	defer c.abortLock.Unlock()
	c.abort = cond
}

// Close stops the signal-handling goroutine and flushes the baton.
func (c *Control) Close() {
	c.once.Do(func() {
		signal.Stop(c.signals)
		close(c.signals)
	})
	c.baton.Sync()
}
