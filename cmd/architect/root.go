package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"architect/internal/config"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	return buildRootCommand(viper.New())
}

func buildRootCommand(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "architect",
		Short:         "Richfield career architect funnel",
		Long:          "Lead intake, personality quiz and AI career roadmap for prospective Richfield students.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Config file (default ~/.architect/config.yaml)")
	flags.String("env", "", "Environment name (development, staging, production)")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (text, json)")
	flags.Bool("metrics", false, "Enable Prometheus metrics")
	flags.Bool("tracing", false, "Enable OpenTelemetry tracing")
	mustBind(v, flags)

	root.AddCommand(newServeCommand(v))
	root.AddCommand(newAdvisorCommand(v))
	root.AddCommand(newMigrateCommand(v))
	root.AddCommand(newWalkCommand())
	return root
}

func mustBind(v *viper.Viper, flags *pflag.FlagSet) {
	if err := v.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("bind flags: %v", err))
	}
}

// loadConfig resolves file, env and the flags the user actually set.
func loadConfig(v *viper.Viper) (config.Config, error) {
	opts := []config.Option{
		config.WithEnv(config.DefaultEnvLookupWithAliases()),
		config.WithOverrides(overridesFrom(v)),
	}
	if path := v.GetString("config"); path != "" {
		opts = append(opts, config.WithConfigPath(path))
	}
	cfg, _, err := config.Load(opts...)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func overridesFrom(v *viper.Viper) config.Overrides {
	var o config.Overrides
	o.Environment = stringFlag(v, "env")
	o.LogLevel = stringFlag(v, "log-level")
	o.LogFormat = stringFlag(v, "log-format")
	o.MetricsEnabled = boolFlag(v, "metrics")
	o.TracingEnabled = boolFlag(v, "tracing")

	o.ServerAddr = stringFlag(v, "addr")
	o.AdvisorBaseURL = stringFlag(v, "advisor-url")
	o.AdvisorAddr = stringFlag(v, "advisor-addr")
	o.GeminiAPIKey = stringFlag(v, "gemini-key")
	o.GeminiModel = stringFlag(v, "model")
	o.StoreDriver = stringFlag(v, "store")
	o.StoreDSN = stringFlag(v, "dsn")
	o.LocalDriver = stringFlag(v, "local-store")
	o.RedisAddr = stringFlag(v, "redis-addr")
	o.JWTSecret = stringFlag(v, "jwt-secret")
	o.PublicBaseURL = stringFlag(v, "public-url")
	o.Mailer = stringFlag(v, "mailer")
	if v.IsSet("cookie-secure") {
		o.CookieSecure = boolFlag(v, "cookie-secure")
	}
	if v.IsSet("allowed-origins") {
		origins := v.GetStringSlice("allowed-origins")
		o.AllowedOrigins = &origins
	}
	return o
}

func stringFlag(v *viper.Viper, key string) *string {
	if !v.IsSet(key) {
		return nil
	}
	value := v.GetString(key)
	return &value
}

func boolFlag(v *viper.Viper, key string) *bool {
	if !v.IsSet(key) {
		return nil
	}
	value := v.GetBool(key)
	return &value
}
