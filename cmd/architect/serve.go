package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"architect/internal/server/bootstrap"
)

func newServeCommand(v *viper.Viper) *cobra.Command {
	var withAdvisor bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the funnel API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mustBind(v, cmd.Flags())
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return bootstrap.RunServer(cmd.Context(), cfg, bootstrap.ServerOptions{WithAdvisor: withAdvisor})
		},
	}
	flags := cmd.Flags()
	flags.String("addr", "", "Listen address")
	flags.StringSlice("allowed-origins", nil, "CORS origins allowed to call the API")
	flags.Bool("cookie-secure", false, "Mark cookies Secure")
	flags.String("advisor-url", "", "AI backend base URL")
	flags.String("store", "", "Lead store driver (memory, postgres, sqlite)")
	flags.String("dsn", "", "Lead store DSN")
	flags.String("local-store", "", "Device store driver (memory, redis)")
	flags.String("redis-addr", "", "Redis address for the device store")
	flags.String("jwt-secret", "", "Session signing secret")
	flags.String("public-url", "", "Public base URL used in magic links")
	flags.String("mailer", "", "Magic link mailer (log, smtp)")
	flags.BoolVar(&withAdvisor, "with-advisor", false, "Also serve the AI backend from this process")
	flags.String("advisor-addr", "", "Listen address of the embedded AI backend")
	flags.String("gemini-key", "", "Gemini API key for the embedded AI backend")
	return cmd
}
