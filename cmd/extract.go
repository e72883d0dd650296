package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"media_scrooper/models"
	"media_scrooper/scraper"
)

var extractFlags struct {
	maxPages   int
	maxRetries int
	timeout    time.Duration
	minWidth   int
	minHeight  int
	cursor     string
	maxFiles   int
	capture    bool
	noBrowser  bool
	save       bool
}

func init() {
	f := extractCmd.Flags()
	f.IntVar(&extractFlags.maxPages, "max-pages", 0, "Pages to walk (default from site config)")
	f.IntVar(&extractFlags.maxRetries, "max-retries", -1, "Retries per strategy (default from site config)")
	f.DurationVar(&extractFlags.timeout, "timeout", 0, "Per-strategy timeout (default from site config)")
	f.IntVar(&extractFlags.minWidth, "min-width", 0, "Drop media narrower than this, when known")
	f.IntVar(&extractFlags.minHeight, "min-height", 0, "Drop media shorter than this, when known")
	f.IntVar(&extractFlags.maxFiles, "max-files", 0, "Stop after this many media items (default from site config, 0 = unlimited)")
	f.BoolVar(&extractFlags.capture, "capture-network", false, "Also collect image and video responses seen by the browser")
	f.StringVar(&extractFlags.cursor, "cursor", "", "Resume from a cursor printed by a previous run")
	f.BoolVar(&extractFlags.noBrowser, "no-browser", false, "Skip the rendered-DOM strategy")
	f.BoolVar(&extractFlags.save, "save", false, "Record the run, keep its cursor and queue media for download")
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract <url>",
	Short: "Extracts media candidates from one page and prints them as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, appOptions{persist: extractFlags.save, noBrowser: extractFlags.noBrowser, console: true})
		if err != nil {
			return err
		}
		defer a.Close()

		target := args[0]
		opts := applyExtractFlags(a.registry.Options(target))

		res, err := a.runner.Extract(ctx, target, opts)
		if res != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(res); encErr != nil {
				return encErr
			}
		}
		// Partial results were printed above; the exit status still
		// reports the failure.
		if errors.Is(err, models.ErrMalformedInput) {
			return fmt.Errorf("malformed input: %w", err)
		}
		return err
	},
}

// applyExtractFlags overlays the flags the user set on the site options.
func applyExtractFlags(opts scraper.Options) scraper.Options {
	if extractFlags.maxPages > 0 {
		opts.MaxPages = extractFlags.maxPages
	}
	if extractFlags.maxRetries >= 0 {
		opts.MaxRetries = extractFlags.maxRetries
	}
	if extractFlags.timeout > 0 {
		opts.PerStrategyTimeout = extractFlags.timeout
	}
	if extractFlags.minWidth > 0 {
		opts.MinWidth = extractFlags.minWidth
	}
	if extractFlags.minHeight > 0 {
		opts.MinHeight = extractFlags.minHeight
	}
	if extractFlags.maxFiles > 0 {
		opts.MaxFiles = extractFlags.maxFiles
	}
	if extractFlags.capture {
		opts.CaptureNetwork = true
	}
	if extractFlags.cursor != "" {
		opts.Cursor = models.Cursor(extractFlags.cursor)
	}
	return opts
}
