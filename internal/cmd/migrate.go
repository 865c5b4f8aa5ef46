package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	_, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	log.Info().Str("driver", cfg.DB.Driver).Msg("schema up to date")
	cmd.Println("schema up to date")
	return nil
}
