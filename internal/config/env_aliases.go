package config

// DefaultEnvAliases maps canonical ARCHITECT_* keys to the conventional names operators
// already export.
func DefaultEnvAliases() map[string][]string {
	aliases := map[string][]string{
		"ARCHITECT_ENV":             {"ENVIRONMENT", "APP_ENV"},
		"ARCHITECT_ALLOWED_ORIGINS": {"CORS_ALLOWED_ORIGINS"},
		"ARCHITECT_ADVISOR_URL":     {"ADVISOR_BASE_URL"},
		"ARCHITECT_GEMINI_API_KEY":  {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"ARCHITECT_DATABASE_URL":    {"DATABASE_URL"},
		"ARCHITECT_REDIS_ADDR":      {"REDIS_ADDR"},
		"ARCHITECT_REDIS_PASSWORD":  {"REDIS_PASSWORD"},
		"ARCHITECT_JWT_SECRET":      {"JWT_SECRET"},
		"ARCHITECT_OTLP_ENDPOINT":   {"OTEL_EXPORTER_OTLP_ENDPOINT"},
		"ARCHITECT_LOG_LEVEL":       {"LOG_LEVEL"},
	}

	out := make(map[string][]string, len(aliases))
	for key, list := range aliases {
		out[key] = append([]string(nil), list...)
	}
	return out
}

// DefaultEnvLookupWithAliases composes DefaultEnvLookup with DefaultEnvAliases.
func DefaultEnvLookupWithAliases() EnvLookup {
	return AliasEnvLookup(DefaultEnvLookup, DefaultEnvAliases())
}
