package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"media_scrooper/models"
	"media_scrooper/services"
)

var queueLimit int

func init() {
	queueCmd.Flags().IntVar(&queueLimit, "limit", 20, "Number of pending items to list")
	rootCmd.AddCommand(queueCmd)
}

var queueCmd = &cobra.Command{
	Use:   "queue [--limit n]",
	Short: "Shows the download queue: counts by status and the oldest pending media.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, appOptions{persist: true, noBrowser: true, console: true})
		if err != nil {
			return err
		}
		defer a.Close()
		if a.pg == nil {
			return errors.New("no download queue configured (set DATABASE_URL)")
		}

		depth, err := a.pg.QueueDepth(ctx)
		if err != nil {
			return err
		}
		pending, err := services.NewMediaService(a.pg, a.log).GetPending(ctx, queueLimit)
		if err != nil {
			return err
		}
		return printQueue(os.Stdout, depth, pending)
	},
}

func printQueue(out io.Writer, depth map[string]int, pending []models.QueuedMedia) error {
	statuses := make([]string, 0, len(depth))
	for s := range depth {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(out, "%s: %d\n", s, depth[s])
	}
	if len(pending) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SITE\tTYPE\tATTEMPTS\tQUEUED\tURL")
	for _, m := range pending {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			m.SiteID, orDash(m.MediaType), m.Attempts, m.CreatedAt.Format(timeLayout), m.CanonicalURL)
	}
	return w.Flush()
}
