package config

import "time"

// fileConfig mirrors the YAML layout of ~/.architect/config.yaml. Pointer leaves distinguish
// "absent" from zero values.
type fileConfig struct {
	Environment *string `yaml:"environment"`
	Server      struct {
		Addr              *string        `yaml:"addr"`
		AllowedOrigins    *[]string      `yaml:"allowed_origins"`
		DeviceCookie      *string        `yaml:"device_cookie"`
		SessionCookie     *string        `yaml:"session_cookie"`
		CookieSecure      *bool          `yaml:"cookie_secure"`
		ReadHeaderTimeout *time.Duration `yaml:"read_header_timeout"`
		ShutdownTimeout   *time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	RateLimit struct {
		RequestsPerMinute *int `yaml:"requests_per_minute"`
		Burst             *int `yaml:"burst"`
	} `yaml:"rate_limit"`
	Advisor struct {
		BaseURL          *string        `yaml:"base_url"`
		Timeout          *time.Duration `yaml:"timeout"`
		MaxResponseBytes *int64         `yaml:"max_response_bytes"`
	} `yaml:"advisor"`
	AdvisorServer struct {
		Addr         *string `yaml:"addr"`
		GeminiAPIKey *string `yaml:"gemini_api_key"`
		GeminiModel  *string `yaml:"gemini_model"`
	} `yaml:"advisor_server"`
	Store struct {
		Driver *string `yaml:"driver"`
		DSN    *string `yaml:"dsn"`
	} `yaml:"store"`
	LocalStore struct {
		Driver        *string `yaml:"driver"`
		RedisAddr     *string `yaml:"redis_addr"`
		RedisPassword *string `yaml:"redis_password"`
		RedisDB       *int    `yaml:"redis_db"`
		MaxDevices    *int    `yaml:"max_devices"`
	} `yaml:"local_store"`
	Auth struct {
		JWTSecret     *string        `yaml:"jwt_secret"`
		SessionTTL    *time.Duration `yaml:"session_ttl"`
		LinkTTL       *time.Duration `yaml:"link_ttl"`
		PublicBaseURL *string        `yaml:"public_base_url"`
		Mailer        *string        `yaml:"mailer"`
		SMTPHost      *string        `yaml:"smtp_host"`
		SMTPPort      *int           `yaml:"smtp_port"`
		SMTPUsername  *string        `yaml:"smtp_username"`
		SMTPPassword  *string        `yaml:"smtp_password"`
		SMTPFrom      *string        `yaml:"smtp_from"`
	} `yaml:"auth"`
	Results struct {
		MaxViews *int `yaml:"max_views"`
	} `yaml:"results"`
	Observability struct {
		Logging struct {
			Level  *string `yaml:"level"`
			Format *string `yaml:"format"`
		} `yaml:"logging"`
		Metrics struct {
			Enabled        *bool `yaml:"enabled"`
			PrometheusPort *int  `yaml:"prometheus_port"`
		} `yaml:"metrics"`
		Tracing struct {
			Enabled        *bool    `yaml:"enabled"`
			Exporter       *string  `yaml:"exporter"`
			OTLPEndpoint   *string  `yaml:"otlp_endpoint"`
			ZipkinEndpoint *string  `yaml:"zipkin_endpoint"`
			SampleRate     *float64 `yaml:"sample_rate"`
			ServiceName    *string  `yaml:"service_name"`
		} `yaml:"tracing"`
	} `yaml:"observability"`
}

func (f fileConfig) apply(cfg *Config, meta *Metadata) {
	const src = SourceFile

	set(&cfg.Environment, f.Environment, "environment", meta, src)

	set(&cfg.Server.Addr, f.Server.Addr, "server.addr", meta, src)
	set(&cfg.Server.AllowedOrigins, f.Server.AllowedOrigins, "server.allowed_origins", meta, src)
	set(&cfg.Server.DeviceCookie, f.Server.DeviceCookie, "server.device_cookie", meta, src)
	set(&cfg.Server.SessionCookie, f.Server.SessionCookie, "server.session_cookie", meta, src)
	set(&cfg.Server.CookieSecure, f.Server.CookieSecure, "server.cookie_secure", meta, src)
	set(&cfg.Server.ReadHeaderTimeout, f.Server.ReadHeaderTimeout, "server.read_header_timeout", meta, src)
	set(&cfg.Server.ShutdownTimeout, f.Server.ShutdownTimeout, "server.shutdown_timeout", meta, src)

	set(&cfg.RateLimit.RequestsPerMinute, f.RateLimit.RequestsPerMinute, "rate_limit.requests_per_minute", meta, src)
	set(&cfg.RateLimit.Burst, f.RateLimit.Burst, "rate_limit.burst", meta, src)

	set(&cfg.Advisor.BaseURL, f.Advisor.BaseURL, "advisor.base_url", meta, src)
	set(&cfg.Advisor.Timeout, f.Advisor.Timeout, "advisor.timeout", meta, src)
	set(&cfg.Advisor.MaxResponseBytes, f.Advisor.MaxResponseBytes, "advisor.max_response_bytes", meta, src)

	set(&cfg.AdvisorServer.Addr, f.AdvisorServer.Addr, "advisor_server.addr", meta, src)
	set(&cfg.AdvisorServer.GeminiAPIKey, f.AdvisorServer.GeminiAPIKey, "advisor_server.gemini_api_key", meta, src)
	set(&cfg.AdvisorServer.GeminiModel, f.AdvisorServer.GeminiModel, "advisor_server.gemini_model", meta, src)

	set(&cfg.Store.Driver, f.Store.Driver, "store.driver", meta, src)
	set(&cfg.Store.DSN, f.Store.DSN, "store.dsn", meta, src)

	set(&cfg.LocalStore.Driver, f.LocalStore.Driver, "local_store.driver", meta, src)
	set(&cfg.LocalStore.RedisAddr, f.LocalStore.RedisAddr, "local_store.redis_addr", meta, src)
	set(&cfg.LocalStore.RedisPassword, f.LocalStore.RedisPassword, "local_store.redis_password", meta, src)
	set(&cfg.LocalStore.RedisDB, f.LocalStore.RedisDB, "local_store.redis_db", meta, src)
	set(&cfg.LocalStore.MaxDevices, f.LocalStore.MaxDevices, "local_store.max_devices", meta, src)

	set(&cfg.Auth.JWTSecret, f.Auth.JWTSecret, "auth.jwt_secret", meta, src)
	set(&cfg.Auth.SessionTTL, f.Auth.SessionTTL, "auth.session_ttl", meta, src)
	set(&cfg.Auth.LinkTTL, f.Auth.LinkTTL, "auth.link_ttl", meta, src)
	set(&cfg.Auth.PublicBaseURL, f.Auth.PublicBaseURL, "auth.public_base_url", meta, src)
	set(&cfg.Auth.Mailer, f.Auth.Mailer, "auth.mailer", meta, src)
	set(&cfg.Auth.SMTPHost, f.Auth.SMTPHost, "auth.smtp_host", meta, src)
	set(&cfg.Auth.SMTPPort, f.Auth.SMTPPort, "auth.smtp_port", meta, src)
	set(&cfg.Auth.SMTPUsername, f.Auth.SMTPUsername, "auth.smtp_username", meta, src)
	set(&cfg.Auth.SMTPPassword, f.Auth.SMTPPassword, "auth.smtp_password", meta, src)
	set(&cfg.Auth.SMTPFrom, f.Auth.SMTPFrom, "auth.smtp_from", meta, src)

	set(&cfg.Results.MaxViews, f.Results.MaxViews, "results.max_views", meta, src)

	obs := &cfg.Observability
	set(&obs.Logging.Level, f.Observability.Logging.Level, "observability.logging.level", meta, src)
	set(&obs.Logging.Format, f.Observability.Logging.Format, "observability.logging.format", meta, src)
	set(&obs.Metrics.Enabled, f.Observability.Metrics.Enabled, "observability.metrics.enabled", meta, src)
	set(&obs.Metrics.PrometheusPort, f.Observability.Metrics.PrometheusPort, "observability.metrics.prometheus_port", meta, src)
	set(&obs.Tracing.Enabled, f.Observability.Tracing.Enabled, "observability.tracing.enabled", meta, src)
	set(&obs.Tracing.Exporter, f.Observability.Tracing.Exporter, "observability.tracing.exporter", meta, src)
	set(&obs.Tracing.OTLPEndpoint, f.Observability.Tracing.OTLPEndpoint, "observability.tracing.otlp_endpoint", meta, src)
	set(&obs.Tracing.ZipkinEndpoint, f.Observability.Tracing.ZipkinEndpoint, "observability.tracing.zipkin_endpoint", meta, src)
	set(&obs.Tracing.SampleRate, f.Observability.Tracing.SampleRate, "observability.tracing.sample_rate", meta, src)
	set(&obs.Tracing.ServiceName, f.Observability.Tracing.ServiceName, "observability.tracing.service_name", meta, src)
}
