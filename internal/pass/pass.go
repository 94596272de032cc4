// Package pass implements the pass-sequential pipeline driver:
// Collect -> CleanMetadata -> CollateSymbols -> FilterSymbols -> Sort
// (revisions/symbols) -> InitializeChangesets -> BreakRevisionChangesetCycles
// -> RevisionTopologicalSort -> BreakSymbolChangesetCycles ->
// BreakAllChangesetCycles -> FinalTopologicalSort -> Output.
//
// Grounded in original_source/cvs2svn_lib/run_options.py's --pass/--passes
// option (execute only one pass, or an inclusive start:end range, by name
// or 1-based number) and in the teacher's checkpoint-then-rename discipline
// for any long-running operation whose output must never be left
// half-written (surgeon/reposurgeon.go's use of termie/go-shutil around
// repository-rewriting operations).
//
// SPDX-License-Identifier: BSD-2-Clause
package pass

import (
	"fmt"
	"os"
	"path/filepath"

	shutil "github.com/termie/go-shutil"

	"gitlab.com/esr/cvs2svn/internal/control"
)

// Pass is one stage of the pipeline. Run reads the intermediate files that
// earlier passes committed to dataDir and writes its own, reporting
// progress through ctrl, then returns. Run must not leave a partially
// written output file behind when it returns an error: internal/store's
// temp-then-rename writers exist for that.
type Pass interface {
	Name() string
	Run(ctrl *control.Control, dataDir string) error
}

// Manager runs an ordered sequence of passes, supporting cvs2svn's
// --pass/--passes semantics: run one pass, or an inclusive range, by name
// or 1-based number, resuming from the last successfully completed pass by
// checking for a completion marker file.
type Manager struct {
	passes  []Pass
	dataDir string
}

// NewManager returns a Manager that will checkpoint into dataDir.
func NewManager(dataDir string, passes ...Pass) *Manager {
	return &Manager{passes: passes, dataDir: dataDir}
}

// NumPasses returns the number of registered passes.
func (m *Manager) NumPasses() int { return len(m.passes) }

// PassNumber resolves a pass name or 1-based number string to a 1-based
// index, defaulting to fallback if name is empty. Mirrors
// PassManager.get_pass_number.
func (m *Manager) PassNumber(name string, fallback int) (int, error) {
	if name == "" {
		return fallback, nil
	}
	for i, p := range m.passes {
		if p.Name() == name {
			return i + 1, nil
		}
	}
	var n int
	if _, err := fmt.Sscanf(name, "%d", &n); err == nil && n >= 1 && n <= len(m.passes) {
		return n, nil
	}
	return 0, fmt.Errorf("pass: unknown pass %q", name)
}

func (m *Manager) markerPath(index int) string {
	return filepath.Join(m.dataDir, fmt.Sprintf(".pass-%02d-%s.done", index+1, m.passes[index].Name()))
}

// completed reports whether pass index (0-based) has a completion marker
// from a previous, possibly interrupted, run.
func (m *Manager) completed(index int) bool {
	_, err := os.Stat(m.markerPath(index))
	return err == nil
}

// RunRange runs passes [start, end] (1-based, inclusive), skipping any
// pass already marked complete so the pipeline can resume after an
// interruption without error or redundant work, then marks each one
// complete as it finishes. A backup of the previous marker is kept via
// go-shutil.Copy before being overwritten, so a crash mid-checkpoint-write
// cannot erase the record of the last good pass.
func (m *Manager) RunRange(ctrl *control.Control, start, end int) error {
	if start < 1 || end > len(m.passes) || start > end {
		return fmt.Errorf("pass: invalid range %d:%d for %d passes", start, end, len(m.passes))
	}
	if err := os.MkdirAll(m.dataDir, 0o755); err != nil {
		return fmt.Errorf("pass: creating data directory %s: %w", m.dataDir, err)
	}
	for i := start - 1; i < end; i++ {
		p := m.passes[i]
		if m.completed(i) {
			ctrl.Logit(control.LogShout, "pass %d (%s): already completed, skipping", i+1, p.Name())
			continue
		}
		if ctrl.GetAbort() {
			return fmt.Errorf("pass: aborted before pass %d (%s)", i+1, p.Name())
		}
		ctrl.Baton().StartProcess(fmt.Sprintf("pass %d: %s", i+1, p.Name()), "done")
		if err := p.Run(ctrl, m.dataDir); err != nil {
			ctrl.Baton().EndProcess("failed")
			return fmt.Errorf("pass %d (%s): %w", i+1, p.Name(), err)
		}
		ctrl.Baton().EndProcess()
		if err := m.markComplete(i); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) markComplete(index int) error {
	marker := m.markerPath(index)
	if index > 0 {
		prev := m.markerPath(index - 1)
		if _, err := os.Stat(prev); err == nil {
			// Keep a backup of the prior pass's marker so a failure partway
			// through writing this one leaves unambiguous evidence of the
			// last fully completed pass.
			shutil.Copy(prev, prev+".bak", false)
		}
	}
	f, err := os.Create(marker + ".tmp")
	if err != nil {
		return fmt.Errorf("pass: writing completion marker: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(marker+".tmp", marker)
}
