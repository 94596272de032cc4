// Command cvs2svn converts a CVS repository into a Subversion dumpfile by
// running the twelve-pass pipeline documented in SPEC_FULL.md: Collect,
// CleanMetadata, CollateSymbols, FilterSymbols, Sort, InitializeChangesets,
// BreakRevisionChangesetCycles, RevisionTopologicalSort,
// BreakSymbolChangesetCycles, BreakAllChangesetCycles, FinalTopologicalSort,
// and Output.
//
// SPDX-License-Identifier: BSD-2-Clause
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	fqme "gitlab.com/esr/fqme"

	"gitlab.com/esr/cvs2svn/internal/config"
	"gitlab.com/esr/cvs2svn/internal/control"
	"gitlab.com/esr/cvs2svn/internal/pass"
	"gitlab.com/esr/cvs2svn/internal/sink"
	"gitlab.com/esr/cvs2svn/internal/store"
)

var (
	configPath  string
	dataDir     string
	outputPath  string
	passSpec    string
	logClasses  []string
	relax       bool
	interactive bool
	dryRun      bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cvs2svn",
		Short: "Convert a CVS repository to a Subversion dumpfile",
		RunE:  runConvert,
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML run-configuration file (required)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "cvs2svn-data", "directory for intermediate pass checkpoints")
	cmd.Flags().StringVar(&outputPath, "dumpfile", "", "path to write the Subversion dumpfile to (default: stdout)")
	cmd.Flags().StringVar(&passSpec, "passes", "", "run only this pass, or an inclusive START:END range, by name or 1-based number")
	cmd.Flags().StringSliceVar(&logClasses, "log", nil, "log classes to enable (shout, warn, baton, collect, collate, filter, cycle, topology, sink)")
	cmd.Flags().BoolVar(&relax, "relax", false, "continue past recoverable per-file errors instead of aborting")
	cmd.Flags().BoolVar(&interactive, "interactive", isTerminal(), "render a live progress baton")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run Output against a counting sink instead of writing a dumpfile")
	cmd.MarkFlagRequired("config")
	return cmd
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	return err == nil && (fi.Mode()&os.ModeCharDevice) != 0
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctrl := control.New(interactive)
	defer ctrl.Close()
	ctrl.SetRelax(relax)
	for _, name := range logClasses {
		class, ok := control.ClassByName(name)
		if !ok {
			return fmt.Errorf("cvs2svn: unknown log class %q", name)
		}
		ctrl.EnableClass(class)
	}

	out, closeOut, err := openDumpfile(outputPath)
	if err != nil {
		return err
	}
	defer closeOut()

	var repoSink sink.RepositorySink
	if dryRun {
		repoSink = sink.NewCountingSink()
	} else {
		repoSink = sink.NewDumpfileSink(out)
	}

	outputPass := pass.NewOutputPass(cfg, repoSink)
	if name, _, err := fqme.WhoAmI(); err == nil && name != "" {
		outputPass.SymbolAuthor = name
	}

	mgr := buildManager(cfg, outputPass)

	startName, endName := parsePassSpec(passSpec)
	start, err := mgr.PassNumber(startName, 1)
	if err != nil {
		return err
	}
	end, err := mgr.PassNumber(endName, mgr.NumPasses())
	if err != nil {
		return err
	}

	if start <= collateSymbolsPassNumber && end >= collateSymbolsPassNumber {
		// CollateSymbols needs every ForcedBranches/ForcedTags/ExcludedSymbols
		// entry a Starlark rules file contributes resolved before it runs, and
		// those rules are evaluated against the symbol names Collect
		// discovers, so the passes before it run first.
		if start < collateSymbolsPassNumber {
			if err := mgr.RunRange(ctrl, start, collateSymbolsPassNumber-1); err != nil {
				return err
			}
			start = collateSymbolsPassNumber
		}
		if err := applyRules(cfg, mgr); err != nil {
			return err
		}
		// buildManager copied the rule lists into the CollateSymbols pass;
		// rebuild it so that pass sees what the rules file added.
		mgr = buildManager(cfg, outputPass)
	}

	return mgr.RunRange(ctrl, start, end)
}

// collateSymbolsPassNumber is CollateSymbols's fixed 1-based position in the
// pipeline built by buildManager.
const collateSymbolsPassNumber = 3

func applyRules(cfg *config.Config, mgr *pass.Manager) error {
	if cfg.RulesFile == "" {
		return nil
	}
	names, err := pass.LoadSymbolNames(dataDir)
	if err != nil {
		// Collect's output is missing (a start point after Collect in a
		// run that never completed it): nothing to
		// evaluate rules against yet, so skip silently and let CollateSymbols
		// run with whatever static forced_branches/forced_tags/
		// excluded_symbols the config file already specifies.
		return nil
	}
	return cfg.EvalRules(names)
}

func buildManager(cfg *config.Config, outputPass *pass.OutputPass) *pass.Manager {
	sortOpts := store.SortOptions{TmpDir: cfg.TmpDir, SystemSort: cfg.SortExecutable}
	return pass.NewManager(dataDir,
		pass.NewCollectPass(cfg),
		pass.NewCleanMetadataPass(cfg.Encodings, cfg.FallbackEncoding),
		pass.NewCollateSymbolsPass(cfg.ForcedBranches, cfg.ForcedTags, cfg.ExcludedSymbols, cfg.SymbolDefault),
		pass.NewFilterSymbolsPass(),
		pass.NewSortPass(sortOpts),
		pass.NewInitializeChangesetsPass(cfg.CommitThresholdSeconds),
		pass.NewBreakRevisionChangesetCyclesPass(),
		pass.NewRevisionTopologicalSortPass(),
		pass.NewBreakSymbolChangesetCyclesPass(),
		pass.NewBreakAllChangesetCyclesPass(),
		pass.NewFinalTopologicalSortPass(),
		outputPass,
	)
}

func openDumpfile(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cvs2svn: creating dumpfile %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

// parsePassSpec splits a "--passes" value of the form "START:END", "NAME",
// or "START:" / ":END" into its start and end components, mirroring
// run_options.py's --passes parsing.
func parsePassSpec(spec string) (start, end string) {
	if spec == "" {
		return "", ""
	}
	for i := 0; i < len(spec); i++ {
		if spec[i] == ':' {
			return spec[:i], spec[i+1:]
		}
	}
	return spec, spec
}
