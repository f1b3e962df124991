package main

import (
	"lexchat-backend/internal/store/postgres"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return postgres.Migrate(cfg.DatabaseURL, log)
	},
}
