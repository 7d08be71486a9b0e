package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"architect/internal/server/bootstrap"
)

func newAdvisorCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advisor",
		Short: "Run the Gemini-backed AI backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mustBind(v, cmd.Flags())
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return bootstrap.RunAdvisor(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("advisor-addr", "", "Listen address")
	cmd.Flags().String("gemini-key", "", "Gemini API key")
	cmd.Flags().String("model", "", "Gemini model name")
	return cmd
}
