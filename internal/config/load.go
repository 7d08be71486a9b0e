package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Option customises Load.
type Option func(*loadOptions)

type loadOptions struct {
	envLookup  EnvLookup
	readFile   func(string) ([]byte, error)
	homeDir    func() (string, error)
	overrides  Overrides
	configPath string
}

// WithEnv supplies a custom environment lookup implementation.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) {
		o.envLookup = lookup
	}
}

// WithOverrides applies caller overrides that take highest precedence.
func WithOverrides(overrides Overrides) Option {
	return func(o *loadOptions) {
		o.overrides = overrides
	}
}

// WithConfigPath forces the loader to read a specific file.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) {
		o.configPath = path
	}
}

// WithFileReader injects a custom reader, used primarily for tests.
func WithFileReader(reader func(string) ([]byte, error)) Option {
	return func(o *loadOptions) {
		o.readFile = reader
	}
}

// WithHomeDir overrides how the loader resolves the user's home directory.
func WithHomeDir(resolver func() (string, error)) Option {
	return func(o *loadOptions) {
		o.homeDir = resolver
	}
}

// DefaultEnvLookup delegates to os.LookupEnv.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// AliasEnvLookup wraps an EnvLookup with additional alias keys.
func AliasEnvLookup(base EnvLookup, aliases map[string][]string) EnvLookup {
	if base == nil {
		base = DefaultEnvLookup
	}
	return func(key string) (string, bool) {
		if value, ok := base(key); ok && value != "" {
			return value, true
		}
		for _, alias := range aliases[key] {
			if value, ok := base(alias); ok && value != "" {
				return value, true
			}
		}
		return "", false
	}
}

// Load resolves configuration from defaults, the YAML file, the environment and overrides,
// in that order of increasing precedence.
func Load(opts ...Option) (Config, Metadata, error) {
	options := loadOptions{
		envLookup: DefaultEnvLookupWithAliases(),
		readFile:  os.ReadFile,
		homeDir:   os.UserHomeDir,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.envLookup == nil {
		options.envLookup = DefaultEnvLookup
	}

	meta := Metadata{sources: map[string]ValueSource{}, loadedAt: time.Now()}
	cfg := Default()

	if err := applyFile(&cfg, &meta, options); err != nil {
		return Config{}, Metadata{}, err
	}
	if err := applyEnv(&cfg, &meta, options.envLookup); err != nil {
		return Config{}, Metadata{}, err
	}
	applyOverrides(&cfg, &meta, options.overrides)

	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, Metadata{}, err
	}
	return cfg, meta, nil
}

// ResolveConfigPath returns the config file path: ARCHITECT_CONFIG, else ~/.architect/config.yaml.
func ResolveConfigPath(lookup EnvLookup, homeDir func() (string, error)) string {
	if lookup != nil {
		if path, ok := lookup("ARCHITECT_CONFIG"); ok && strings.TrimSpace(path) != "" {
			return strings.TrimSpace(path)
		}
	}
	if homeDir == nil {
		return ""
	}
	home, err := homeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".architect", "config.yaml")
}

func applyFile(cfg *Config, meta *Metadata, opts loadOptions) error {
	configPath := strings.TrimSpace(opts.configPath)
	if configPath == "" {
		configPath = ResolveConfigPath(opts.envLookup, opts.homeDir)
	}
	if configPath == "" {
		return nil
	}

	data, err := opts.readFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var parsed fileConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", configPath, err)
	}
	parsed.apply(cfg, meta)
	return nil
}

func applyEnv(cfg *Config, meta *Metadata, lookup EnvLookup) error {
	for _, binding := range envBindings(cfg) {
		value, ok := lookup(binding.key)
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			continue
		}
		if err := binding.set(value); err != nil {
			return fmt.Errorf("parse %s: %w", binding.key, err)
		}
		meta.sources[binding.field] = SourceEnv
	}
	return nil
}

func applyOverrides(cfg *Config, meta *Metadata, o Overrides) {
	set(&cfg.Environment, o.Environment, "environment", meta, SourceOverride)
	set(&cfg.Server.Addr, o.ServerAddr, "server.addr", meta, SourceOverride)
	set(&cfg.Server.AllowedOrigins, o.AllowedOrigins, "server.allowed_origins", meta, SourceOverride)
	set(&cfg.Server.CookieSecure, o.CookieSecure, "server.cookie_secure", meta, SourceOverride)
	set(&cfg.Advisor.BaseURL, o.AdvisorBaseURL, "advisor.base_url", meta, SourceOverride)
	set(&cfg.Advisor.Timeout, o.AdvisorTimeout, "advisor.timeout", meta, SourceOverride)
	set(&cfg.AdvisorServer.Addr, o.AdvisorAddr, "advisor_server.addr", meta, SourceOverride)
	set(&cfg.AdvisorServer.GeminiAPIKey, o.GeminiAPIKey, "advisor_server.gemini_api_key", meta, SourceOverride)
	set(&cfg.AdvisorServer.GeminiModel, o.GeminiModel, "advisor_server.gemini_model", meta, SourceOverride)
	set(&cfg.Store.Driver, o.StoreDriver, "store.driver", meta, SourceOverride)
	set(&cfg.Store.DSN, o.StoreDSN, "store.dsn", meta, SourceOverride)
	set(&cfg.LocalStore.Driver, o.LocalDriver, "local_store.driver", meta, SourceOverride)
	set(&cfg.LocalStore.RedisAddr, o.RedisAddr, "local_store.redis_addr", meta, SourceOverride)
	set(&cfg.Auth.JWTSecret, o.JWTSecret, "auth.jwt_secret", meta, SourceOverride)
	set(&cfg.Auth.PublicBaseURL, o.PublicBaseURL, "auth.public_base_url", meta, SourceOverride)
	set(&cfg.Auth.Mailer, o.Mailer, "auth.mailer", meta, SourceOverride)
	set(&cfg.Observability.Logging.Level, o.LogLevel, "observability.logging.level", meta, SourceOverride)
	set(&cfg.Observability.Logging.Format, o.LogFormat, "observability.logging.format", meta, SourceOverride)
	set(&cfg.Observability.Metrics.Enabled, o.MetricsEnabled, "observability.metrics.enabled", meta, SourceOverride)
	set(&cfg.Observability.Tracing.Enabled, o.TracingEnabled, "observability.tracing.enabled", meta, SourceOverride)
}

func set[T any](dst *T, src *T, field string, meta *Metadata, source ValueSource) {
	if src == nil {
		return
	}
	*dst = *src
	meta.sources[field] = source
}

type envBinding struct {
	key   string
	field string
	set   func(string) error
}

func envBindings(cfg *Config) []envBinding {
	return []envBinding{
		{"ARCHITECT_ENV", "environment", stringVar(&cfg.Environment)},
		{"ARCHITECT_SERVER_ADDR", "server.addr", stringVar(&cfg.Server.Addr)},
		{"ARCHITECT_ALLOWED_ORIGINS", "server.allowed_origins", listVar(&cfg.Server.AllowedOrigins)},
		{"ARCHITECT_COOKIE_SECURE", "server.cookie_secure", boolVar(&cfg.Server.CookieSecure)},
		{"ARCHITECT_RATE_LIMIT_RPM", "rate_limit.requests_per_minute", intVar(&cfg.RateLimit.RequestsPerMinute)},
		{"ARCHITECT_RATE_LIMIT_BURST", "rate_limit.burst", intVar(&cfg.RateLimit.Burst)},
		{"ARCHITECT_ADVISOR_URL", "advisor.base_url", stringVar(&cfg.Advisor.BaseURL)},
		{"ARCHITECT_ADVISOR_TIMEOUT", "advisor.timeout", durationVar(&cfg.Advisor.Timeout)},
		{"ARCHITECT_ADVISOR_ADDR", "advisor_server.addr", stringVar(&cfg.AdvisorServer.Addr)},
		{"ARCHITECT_GEMINI_API_KEY", "advisor_server.gemini_api_key", stringVar(&cfg.AdvisorServer.GeminiAPIKey)},
		{"ARCHITECT_GEMINI_MODEL", "advisor_server.gemini_model", stringVar(&cfg.AdvisorServer.GeminiModel)},
		{"ARCHITECT_STORE_DRIVER", "store.driver", stringVar(&cfg.Store.Driver)},
		{"ARCHITECT_DATABASE_URL", "store.dsn", stringVar(&cfg.Store.DSN)},
		{"ARCHITECT_LOCAL_STORE_DRIVER", "local_store.driver", stringVar(&cfg.LocalStore.Driver)},
		{"ARCHITECT_REDIS_ADDR", "local_store.redis_addr", stringVar(&cfg.LocalStore.RedisAddr)},
		{"ARCHITECT_REDIS_PASSWORD", "local_store.redis_password", stringVar(&cfg.LocalStore.RedisPassword)},
		{"ARCHITECT_REDIS_DB", "local_store.redis_db", intVar(&cfg.LocalStore.RedisDB)},
		{"ARCHITECT_JWT_SECRET", "auth.jwt_secret", stringVar(&cfg.Auth.JWTSecret)},
		{"ARCHITECT_SESSION_TTL", "auth.session_ttl", durationVar(&cfg.Auth.SessionTTL)},
		{"ARCHITECT_LINK_TTL", "auth.link_ttl", durationVar(&cfg.Auth.LinkTTL)},
		{"ARCHITECT_PUBLIC_URL", "auth.public_base_url", stringVar(&cfg.Auth.PublicBaseURL)},
		{"ARCHITECT_MAILER", "auth.mailer", stringVar(&cfg.Auth.Mailer)},
		{"ARCHITECT_SMTP_HOST", "auth.smtp_host", stringVar(&cfg.Auth.SMTPHost)},
		{"ARCHITECT_SMTP_PORT", "auth.smtp_port", intVar(&cfg.Auth.SMTPPort)},
		{"ARCHITECT_SMTP_USERNAME", "auth.smtp_username", stringVar(&cfg.Auth.SMTPUsername)},
		{"ARCHITECT_SMTP_PASSWORD", "auth.smtp_password", stringVar(&cfg.Auth.SMTPPassword)},
		{"ARCHITECT_SMTP_FROM", "auth.smtp_from", stringVar(&cfg.Auth.SMTPFrom)},
		{"ARCHITECT_LOG_LEVEL", "observability.logging.level", stringVar(&cfg.Observability.Logging.Level)},
		{"ARCHITECT_LOG_FORMAT", "observability.logging.format", stringVar(&cfg.Observability.Logging.Format)},
		{"ARCHITECT_METRICS_ENABLED", "observability.metrics.enabled", boolVar(&cfg.Observability.Metrics.Enabled)},
		{"ARCHITECT_TRACING_ENABLED", "observability.tracing.enabled", boolVar(&cfg.Observability.Tracing.Enabled)},
		{"ARCHITECT_TRACING_EXPORTER", "observability.tracing.exporter", stringVar(&cfg.Observability.Tracing.Exporter)},
		{"ARCHITECT_OTLP_ENDPOINT", "observability.tracing.otlp_endpoint", stringVar(&cfg.Observability.Tracing.OTLPEndpoint)},
		{"ARCHITECT_ZIPKIN_ENDPOINT", "observability.tracing.zipkin_endpoint", stringVar(&cfg.Observability.Tracing.ZipkinEndpoint)},
		{"ARCHITECT_TRACING_SAMPLE_RATE", "observability.tracing.sample_rate", floatVar(&cfg.Observability.Tracing.SampleRate)},
	}
}

func stringVar(dst *string) func(string) error {
	return func(value string) error {
		*dst = value
		return nil
	}
}

func listVar(dst *[]string) func(string) error {
	return func(value string) error {
		*dst = splitList(value)
		return nil
	}
}

func boolVar(dst *bool) func(string) error {
	return func(value string) error {
		parsed, err := parseBoolEnv(value)
		if err != nil {
			return err
		}
		*dst = parsed
		return nil
	}
}

func intVar(dst *int) func(string) error {
	return func(value string) error {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		*dst = parsed
		return nil
	}
}

func floatVar(dst *float64) func(string) error {
	return func(value string) error {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		*dst = parsed
		return nil
	}
}

func durationVar(dst *time.Duration) func(string) error {
	return func(value string) error {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*dst = parsed
		return nil
	}
}

func parseBoolEnv(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", value)
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalize(cfg *Config) {
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.LocalStore.Driver = strings.ToLower(strings.TrimSpace(cfg.LocalStore.Driver))
	cfg.Auth.Mailer = strings.ToLower(strings.TrimSpace(cfg.Auth.Mailer))
	cfg.Advisor.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Advisor.BaseURL), "/")
	cfg.Auth.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.Auth.PublicBaseURL), "/")

	if cfg.Advisor.Timeout <= 0 {
		cfg.Advisor.Timeout = DefaultAdvisorTimeout
	}
	if cfg.Advisor.MaxResponseBytes <= 0 {
		cfg.Advisor.MaxResponseBytes = DefaultAdvisorMaxBody
	}
	if cfg.RateLimit.RequestsPerMinute < 0 {
		cfg.RateLimit.RequestsPerMinute = 0
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = DefaultRateBurst
	}
	if cfg.LocalStore.MaxDevices <= 0 {
		cfg.LocalStore.MaxDevices = DefaultMaxDevices
	}
	if cfg.Results.MaxViews <= 0 {
		cfg.Results.MaxViews = DefaultMaxViews
	}
	if cfg.Auth.LinkTTL <= 0 {
		cfg.Auth.LinkTTL = DefaultLinkTTL
	}
	if cfg.Auth.SessionTTL <= 0 {
		cfg.Auth.SessionTTL = DefaultSessionTTL
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres", "sqlite":
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("store driver %q requires a dsn", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.LocalStore.Driver {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.LocalStore.RedisAddr) == "" {
			return fmt.Errorf("local store driver redis requires redis_addr")
		}
	default:
		return fmt.Errorf("unknown local store driver %q", c.LocalStore.Driver)
	}

	switch c.Auth.Mailer {
	case "log":
	case "smtp":
		if c.Auth.SMTPHost == "" || c.Auth.SMTPFrom == "" {
			return fmt.Errorf("smtp mailer requires smtp_host and smtp_from")
		}
	default:
		return fmt.Errorf("unknown mailer %q", c.Auth.Mailer)
	}

	if c.Environment == "production" && strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret is required in production")
	}
	return nil
}
