package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codewithboateng/pyconform/internal/ir"
	"github.com/codewithboateng/pyconform/internal/reporting"
	"github.com/codewithboateng/pyconform/internal/rules"
	"github.com/codewithboateng/pyconform/internal/scan"
	"github.com/codewithboateng/pyconform/internal/storage"
)

type checkFlags struct {
	format   string
	outDir   string
	failOn   string
	severity string
	disable  []string
	packs    []string
	include  []string
	exclude  []string
	workers  int
	dbPath   string
	noDB     bool
	noColor  bool
}

func (a *app) checkCmd() *cobra.Command {
	var f checkFlags
	cmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Scan Python sources and report convention violations",
		Long: `Scan files and directory trees for convention violations.

Exit status is 0 when no violation reaches --fail-on, 1 when one does,
and 2 on usage or configuration errors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd, args, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.format, "format", "f", "", "output format (text|json|jsonl)")
	fl.StringVarP(&f.outDir, "out", "o", "", "directory for <run-id>.json and <run-id>.html reports")
	fl.StringVar(&f.failOn, "fail-on", "LOW", "lowest severity that fails the check (LOW|MEDIUM|HIGH|none)")
	fl.StringVar(&f.severity, "severity", "", "report only violations at or above this severity")
	fl.StringSliceVar(&f.disable, "disable", nil, "rule IDs to disable")
	fl.StringSliceVar(&f.packs, "rules", nil, "extra YAML rule packs")
	fl.StringSliceVar(&f.include, "include", nil, "file extensions to scan")
	fl.StringSliceVar(&f.exclude, "exclude", nil, "globs of files and directories to skip")
	fl.IntVarP(&f.workers, "workers", "j", 0, "parallel file scans (default from config)")
	fl.StringVar(&f.dbPath, "db", "", "SQLite run history to save the run to and load waivers from (default database.dsn)")
	fl.BoolVar(&f.noDB, "no-db", false, "ignore --db and database.dsn for this run")
	fl.BoolVar(&f.noColor, "no-color", false, "disable styled console output")
	return cmd
}

func (a *app) runCheck(cmd *cobra.Command, args []string, f checkFlags) error {
	cfg := &a.cfg
	if f.severity != "" {
		cfg.Rules.SeverityThreshold = f.severity
	}
	cfg.Rules.Disabled = append(cfg.Rules.Disabled, f.disable...)
	if len(f.include) > 0 {
		cfg.Analysis.Include = f.include
	}
	if len(f.exclude) > 0 {
		cfg.Analysis.Exclude = f.exclude
	}
	if f.workers > 0 {
		cfg.Analysis.Workers = f.workers
	}
	if f.outDir == "" {
		f.outDir = cfg.Reporting.OutDir
	}
	if f.format == "" {
		f.format = cfg.Reporting.Format
	}
	f.format = strings.ToLower(f.format)
	switch f.format {
	case "text", "json", "jsonl":
	default:
		return usageErr("unknown format %q (want text, json or jsonl)", f.format)
	}
	failOn := strings.ToUpper(strings.TrimSpace(f.failOn))
	switch failOn {
	case "LOW", "MEDIUM", "HIGH", "NONE":
	default:
		return usageErr("unknown --fail-on %q", f.failOn)
	}
	if f.severity != "" || len(f.disable) > 0 || len(f.packs) > 0 {
		if err := a.applyRules(f.packs); err != nil {
			return err
		}
	}

	paths := args
	if len(paths) == 0 {
		paths = cfg.Analysis.Sources
	}
	if len(paths) == 0 {
		return usageErr("no paths to check")
	}

	var db *storage.DB
	var waivers []storage.Waiver
	if dsn := a.historyDSN(f.dbPath); dsn != "" && !f.noDB {
		var err error
		if db, err = a.openDB(dsn); err != nil {
			return err
		}
		defer db.Close()
		if waivers, err = db.ListWaivers(true); err != nil {
			return fmt.Errorf("load waivers: %w", err)
		}
	}

	run, err := scan.Run(cmd.Context(), scan.Options{
		Paths:   paths,
		Include: cfg.Analysis.Include,
		Exclude: cfg.Analysis.Exclude,
		Workers: cfg.Analysis.Workers,
		Waivers: waivers,
	})
	if err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}
	run.Context.RulePacks = append([]string(nil), a.packs...)
	for _, w := range run.Warnings {
		a.logger.Warn(w)
	}

	if db != nil {
		if err := db.SaveRun(&run); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		a.logger.Info("run saved", "run", run.ID, "violations", len(run.Violations), "waived", run.Context.Waived)
	}
	if f.outDir != "" {
		if err := writeReports(&run, f.outDir); err != nil {
			return err
		}
		a.logger.Info("reports written", "dir", f.outDir)
	}

	if err := a.printRun(&run, f.format, !f.noColor); err != nil {
		return err
	}
	if failing(run.Violations, failOn) {
		return &ExitError{Code: exitViolations}
	}
	return nil
}

func (a *app) printRun(run *ir.Run, format string, color bool) error {
	switch format {
	case "json":
		return reporting.EncodeRun(a.stdout, run)
	case "jsonl":
		return reporting.WriteJSONL(a.stdout, run.Violations)
	default:
		return reporting.WriteText(a.stdout, run, color)
	}
}

func writeReports(run *ir.Run, outDir string) error {
	if _, err := reporting.WriteJSON(run.ID, outDir, run); err != nil {
		return fmt.Errorf("json report: %w", err)
	}
	if _, err := reporting.WriteHTML(run.ID, outDir, run); err != nil {
		return fmt.Errorf("html report: %w", err)
	}
	return nil
}

// failing reports whether any violation reaches failOn.
func failing(vs []ir.Violation, failOn string) bool {
	if failOn == "NONE" {
		return false
	}
	for _, v := range vs {
		if rules.SeverityAtLeast(v.Severity, failOn) {
			return true
		}
	}
	return false
}
