package config

import (
	"time"

	"architect/internal/observability"
)

// ValueSource describes where a configuration value originated.
type ValueSource string

const (
	SourceDefault  ValueSource = "default"
	SourceFile     ValueSource = "file"
	SourceEnv      ValueSource = "environment"
	SourceOverride ValueSource = "override"
)

const (
	DefaultServerAddr        = ":8080"
	DefaultAdvisorAddr       = ":5000"
	DefaultAdvisorBaseURL    = "http://localhost:5000"
	DefaultAdvisorTimeout    = 60 * time.Second
	DefaultAdvisorMaxBody    = int64(1 << 20)
	DefaultGeminiModel       = "gemini-2.5-flash"
	DefaultDeviceCookie      = "architect_device"
	DefaultSessionCookie     = "architect_session"
	DefaultSessionTTL        = 7 * 24 * time.Hour
	DefaultLinkTTL           = 15 * time.Minute
	DefaultRequestsPerMinute = 120
	DefaultRateBurst         = 20
	DefaultMaxDevices        = 10000
	DefaultMaxViews          = 10000
	DefaultShutdownTimeout   = 10 * time.Second
)

// Config is the resolved configuration shared by the funnel service and the advisor.
type Config struct {
	Environment   string
	Server        ServerConfig
	RateLimit     RateLimitConfig
	Advisor       AdvisorConfig
	AdvisorServer AdvisorServerConfig
	Store         StoreConfig
	LocalStore    LocalStoreConfig
	Auth          AuthConfig
	Results       ResultsConfig
	Observability observability.Config
}

// ServerConfig configures the funnel HTTP surface.
type ServerConfig struct {
	Addr              string
	AllowedOrigins    []string
	DeviceCookie      string
	SessionCookie     string
	CookieSecure      bool
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// RateLimitConfig bounds requests per device.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// AdvisorConfig configures the outbound AI backend client.
type AdvisorConfig struct {
	BaseURL          string
	Timeout          time.Duration
	MaxResponseBytes int64
}

// AdvisorServerConfig configures the `architect advisor` service.
type AdvisorServerConfig struct {
	Addr         string
	GeminiAPIKey string
	GeminiModel  string
}

// StoreConfig selects the lead store adapter.
type StoreConfig struct {
	Driver string // memory, postgres, sqlite
	DSN    string
}

// LocalStoreConfig selects the per-device key/value adapter.
type LocalStoreConfig struct {
	Driver        string // memory, redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MaxDevices    int
}

// AuthConfig configures magic-link sign-in and session tokens.
type AuthConfig struct {
	JWTSecret     string
	SessionTTL    time.Duration
	LinkTTL       time.Duration
	PublicBaseURL string
	Mailer        string // log, smtp
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPFrom      string
}

// ResultsConfig bounds the per-device result views held in memory.
type ResultsConfig struct {
	MaxViews int
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Environment: "development",
		Server: ServerConfig{
			Addr:              DefaultServerAddr,
			DeviceCookie:      DefaultDeviceCookie,
			SessionCookie:     DefaultSessionCookie,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   DefaultShutdownTimeout,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: DefaultRequestsPerMinute,
			Burst:             DefaultRateBurst,
		},
		Advisor: AdvisorConfig{
			BaseURL:          DefaultAdvisorBaseURL,
			Timeout:          DefaultAdvisorTimeout,
			MaxResponseBytes: DefaultAdvisorMaxBody,
		},
		AdvisorServer: AdvisorServerConfig{
			Addr:        DefaultAdvisorAddr,
			GeminiModel: DefaultGeminiModel,
		},
		Store: StoreConfig{Driver: "memory"},
		LocalStore: LocalStoreConfig{
			Driver:     "memory",
			RedisAddr:  "localhost:6379",
			MaxDevices: DefaultMaxDevices,
		},
		Auth: AuthConfig{
			SessionTTL:    DefaultSessionTTL,
			LinkTTL:       DefaultLinkTTL,
			PublicBaseURL: "http://localhost:8080",
			Mailer:        "log",
			SMTPPort:      587,
		},
		Results:       ResultsConfig{MaxViews: DefaultMaxViews},
		Observability: observability.DefaultConfig(),
	}
}

// Metadata captures provenance for each resolved field.
type Metadata struct {
	sources  map[string]ValueSource
	loadedAt time.Time
}

// Sources returns a copy of the field provenance map.
func (m Metadata) Sources() map[string]ValueSource {
	out := make(map[string]ValueSource, len(m.sources))
	for k, v := range m.sources {
		out[k] = v
	}
	return out
}

// Source reports where a field came from. Unknown fields are defaults.
func (m Metadata) Source(field string) ValueSource {
	if m.sources == nil {
		return SourceDefault
	}
	if src, ok := m.sources[field]; ok {
		return src
	}
	return SourceDefault
}

// LoadedAt returns when the configuration was resolved.
func (m Metadata) LoadedAt() time.Time {
	return m.loadedAt
}

// Overrides carries explicit values, typically CLI flags, that win over every other layer.
type Overrides struct {
	Environment    *string
	ServerAddr     *string
	AllowedOrigins *[]string
	CookieSecure   *bool
	AdvisorBaseURL *string
	AdvisorTimeout *time.Duration
	AdvisorAddr    *string
	GeminiAPIKey   *string
	GeminiModel    *string
	StoreDriver    *string
	StoreDSN       *string
	LocalDriver    *string
	RedisAddr      *string
	JWTSecret      *string
	PublicBaseURL  *string
	Mailer         *string
	LogLevel       *string
	LogFormat      *string
	MetricsEnabled *bool
	TracingEnabled *bool
}

// EnvLookup resolves an environment variable.
type EnvLookup func(string) (string, bool)
