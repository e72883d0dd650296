package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"media_scrooper/models"
	"media_scrooper/storage"
)

var commandParams models.CommandParams

func init() {
	commandCmd.Flags().StringVar(&commandParams.Site, "site", "", "Site ID the command applies to")
	commandCmd.Flags().StringVar(&commandParams.Target, "target", "", "Target URL the command applies to")
	rootCmd.AddCommand(commandCmd)
}

var commandTypes = map[string]models.CommandType{
	string(models.CmdExtractAll):    models.CmdExtractAll,
	string(models.CmdExtractSite):   models.CmdExtractSite,
	string(models.CmdExtractTarget): models.CmdExtractTarget,
	string(models.CmdResetCursor):   models.CmdResetCursor,
	string(models.CmdPause):         models.CmdPause,
	string(models.CmdResume):        models.CmdResume,
}

var commandCmd = &cobra.Command{
	Use:   "command <extract_all|extract_site|extract_target|reset_cursor|pause|resume> [--site id] [--target url]",
	Short: "Queues a command for a running daemon.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ct, ok := commandTypes[args[0]]
		if !ok {
			return fmt.Errorf("unknown command: %s", args[0])
		}
		if ct == models.CmdExtractTarget && commandParams.Target == "" {
			return fmt.Errorf("%s needs --target", ct)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open SQLite: %w", err)
		}
		defer store.Close()

		id, err := store.EnqueueCommand(ct, commandParams)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued %s (#%d)\n", ct, id)
		return nil
	},
}
