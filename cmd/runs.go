package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"media_scrooper/models"
	"media_scrooper/storage"
)

var runsFlags struct {
	site  string
	limit int
}

func init() {
	runsCmd.Flags().StringVar(&runsFlags.site, "site", "", "Only list runs of this site")
	runsCmd.Flags().IntVar(&runsFlags.limit, "limit", 20, "Number of runs to list")
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs [id] [--site id] [--limit n]",
	Short: "Lists recent extraction runs, or shows one run with its log.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open SQLite: %w", err)
		}
		defer store.Close()

		if len(args) == 0 {
			runs, err := store.RecentRuns(runsFlags.site, runsFlags.limit)
			if err != nil {
				return err
			}
			return printRuns(os.Stdout, runs)
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid run id %q", args[0])
		}
		run, err := store.GetRun(id)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run %d not found", id)
		}
		logs, err := store.RunLogs(id)
		if err != nil {
			return err
		}
		return printRun(os.Stdout, run, logs)
	},
}

const timeLayout = "2006-01-02 15:04:05"

func printRuns(out io.Writer, runs []models.ExtractionRun) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSITE\tSTARTED\tSTATUS\tWINNER\tCANDIDATES\tERRORS\tTARGET")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.SiteID, r.StartedAt.Format(timeLayout), r.Status, orDash(r.Winner),
			r.Candidates, r.ErrorsCount, r.TargetURL)
	}
	return w.Flush()
}

func printRun(out io.Writer, run *models.ExtractionRun, logs []models.RunLog) error {
	finished := "-"
	if run.FinishedAt != nil {
		finished = run.FinishedAt.Format(timeLayout)
	}
	fmt.Fprintf(out, "run %d (%s)\n", run.ID, orDash(run.RunID))
	fmt.Fprintf(out, "  site:       %s\n", run.SiteID)
	fmt.Fprintf(out, "  target:     %s\n", run.TargetURL)
	fmt.Fprintf(out, "  started:    %s\n", run.StartedAt.Format(timeLayout))
	fmt.Fprintf(out, "  finished:   %s\n", finished)
	fmt.Fprintf(out, "  status:     %s\n", run.Status)
	fmt.Fprintf(out, "  winner:     %s\n", orDash(run.Winner))
	fmt.Fprintf(out, "  candidates: %d\n", run.Candidates)
	fmt.Fprintf(out, "  errors:     %d\n", run.ErrorsCount)

	if len(logs) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	for _, l := range logs {
		fmt.Fprintf(out, "%s  %-5s  %s\n", l.Timestamp.Format(timeLayout), l.Level, l.Message)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
