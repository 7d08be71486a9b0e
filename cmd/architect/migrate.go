package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"architect/internal/server/bootstrap"
)

func newMigrateCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the lead store schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mustBind(v, cmd.Flags())
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return bootstrap.RunMigrate(cmd.Context(), cfg.Store)
		},
	}
	cmd.Flags().String("store", "", "Lead store driver (postgres, sqlite)")
	cmd.Flags().String("dsn", "", "Lead store DSN")
	return cmd
}
