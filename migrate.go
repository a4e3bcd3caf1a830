package main

import (
	"github.com/spf13/cobra"

	"github.com/codepacceproduct/clausify/internal/log"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations for the configured driver",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cfg, flushLog, err := loadConfig(cmd.Context())
		defer flushLog()
		if err != nil {
			return err
		}
		db, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		log.FromCtx(ctx).Info().Msg("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
