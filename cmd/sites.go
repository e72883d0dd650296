package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"media_scrooper/handlers"
	"media_scrooper/models"
	"media_scrooper/storage"
)

var withStats bool

func init() {
	sitesCmd.Flags().BoolVar(&withStats, "stats", false, "Include last run and success rate from the run database")
	rootCmd.AddCommand(sitesCmd)
}

var sitesCmd = &cobra.Command{
	Use:   "sites [--stats]",
	Short: "Lists loaded site profiles with their hosts, strategy order and targets.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{noBrowser: true, console: true})
		if err != nil {
			return err
		}
		defer a.Close()

		var stats statsSource
		if withStats {
			store, err := storage.NewSQLiteStore(a.cfg.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open SQLite: %w", err)
			}
			defer store.Close()
			stats = store
		}
		return printSites(os.Stdout, a.registry, stats)
	},
}

type statsSource interface {
	GetSiteStats(siteID string) (*models.SiteStats, error)
}

func printSites(out io.Writer, reg *handlers.Registry, stats statsSource) error {
	targets := make(map[string]int)
	for _, t := range reg.Targets() {
		targets[t.Site]++
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := "SITE\tNAME\tHOSTS\tSTRATEGIES\tTARGETS"
	if stats != nil {
		header += "\tLAST RUN\tSTATUS\tSUCCESS"
	}
	fmt.Fprintln(w, header)

	for _, id := range reg.Sites() {
		h, _ := reg.Site(id)
		p := h.Profile()

		var kinds []string
		for _, k := range p.Order() {
			if _, ok := h.Strategy(k); ok {
				kinds = append(kinds, string(k))
			}
		}
		hosts := strings.Join(reg.Hosts(id), ",")
		if hosts == "" {
			hosts = "*"
		}
		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%d", id, p.Name, hosts, strings.Join(kinds, ","), targets[id])

		if stats != nil {
			st, err := stats.GetSiteStats(id)
			if err != nil {
				return err
			}
			if st == nil || st.LastRunAt == nil {
				line += "\t-\t-\t-"
			} else {
				line += fmt.Sprintf("\t%s\t%s\t%.0f%%",
					st.LastRunAt.Format("2006-01-02 15:04"), st.LastRunStatus, st.SuccessRate*100)
			}
		}
		fmt.Fprintln(w, line)
	}
	return w.Flush()
}
