package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/codewithboateng/pyconform/internal/ir"
	"github.com/codewithboateng/pyconform/internal/reporting"
	"github.com/codewithboateng/pyconform/internal/storage"
)

var errNoRuns = errors.New("no runs stored")

func (a *app) reportCmd() *cobra.Command {
	var runID, outDir, dbPath string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Regenerate JSON and HTML reports for a stored run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if outDir == "" {
				outDir = a.cfg.Reporting.OutDir
			}
			if outDir == "" {
				return usageErr("report: --out (or reporting.out_dir) is required")
			}
			db, err := a.openDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			run, err := loadRun(db, runID)
			if err != nil {
				return err
			}
			if err := writeReports(&run, outDir); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "reports for %s written to %s\n", run.ID, outDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "run ID (default: latest)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory")
	addDBFlag(cmd.Flags(), &dbPath)
	return cmd
}

func (a *app) diffCmd() *cobra.Command {
	var baseID, headID, outDir, dbPath string
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare the violations of two stored runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if baseID == "" || headID == "" {
				return usageErr("diff: --base and --head are required")
			}
			db, err := a.openDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			base, err := loadRun(db, baseID)
			if err != nil {
				return err
			}
			head, err := loadRun(db, headID)
			if err != nil {
				return err
			}
			if outDir == "" {
				b, err := json.MarshalIndent(reporting.Diff(&base, &head), "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.stdout, string(b))
				return err
			}
			path, res, err := reporting.WriteDiffJSON(outDir, &base, &head)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "new=%d removed=%d changed=%d (%s)\n",
				res.Summary.NewCount, res.Summary.RemovedCount, res.Summary.ChangedCount, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseID, "base", "", "base run ID")
	cmd.Flags().StringVar(&headID, "head", "", "head run ID")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write diff_<base>__<head>.json here instead of stdout")
	addDBFlag(cmd.Flags(), &dbPath)
	return cmd
}

func (a *app) runsCmd() *cobra.Command {
	var limit, offset int
	var dbPath string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			rows, err := db.ListRuns(limit, offset)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(a.stdout, errNoRuns)
				return nil
			}
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("ID", "STARTED", "VIOLATIONS", "SOURCE")
			for _, r := range rows {
				t.Row(r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), strconv.Itoa(r.Violations), r.Source)
			}
			_, err = fmt.Fprintln(a.stdout, t.Render())
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	addDBFlag(cmd.Flags(), &dbPath)
	return cmd
}

// loadRun loads a run by ID, or the latest run when id is empty.
func loadRun(db *storage.DB, id string) (ir.Run, error) {
	var run ir.Run
	var err error
	if id == "" {
		run, err = db.LoadLatestRun()
	} else {
		run, err = db.LoadRun(id)
	}
	if errors.Is(err, storage.ErrNotFound) {
		if id == "" {
			return run, &ExitError{Code: exitUsage, Err: errNoRuns}
		}
		return run, usageErr("run %q not found", id)
	}
	return run, err
}
