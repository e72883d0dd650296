package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"media_scrooper/storage"
)

var resetConfirmed bool

func init() {
	resetCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "Confirm that all run history, cursors and queued commands are deleted")
	rootCmd.AddCommand(resetCmd)
}

var resetCmd = &cobra.Command{
	Use:   "reset --yes",
	Short: "Deletes run history, logs, site stats, cursors and pending commands.",
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

		if err := resetData(store, resetConfirmed); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", cfg.DBPath)
		return nil
	},
}

type resetter interface {
	ResetAllData() error
}

var errResetNotConfirmed = errors.New("reset deletes all run data; pass --yes to confirm")

func resetData(store resetter, confirmed bool) error {
	if !confirmed {
		return errResetNotConfirmed
	}
	return store.ResetAllData()
}
