package http

import (
	"time"

	"architect/internal/advisor"
	authapp "architect/internal/auth/app"
	"architect/internal/intake"
	"architect/internal/observability"
	"architect/internal/quiz"
	"architect/internal/results"
)

// RouterDeps holds all service dependencies needed to construct the HTTP router.
type RouterDeps struct {
	Intake  *intake.Service
	Quiz    *quiz.Service
	Results *results.Service
	Auth    *authapp.Service
	Advisor *advisor.Client
	Metrics *observability.MetricsCollector
	Tracer  *observability.TracerProvider
	Health  HealthReporter
}

// RouterConfig holds configuration values for the HTTP router.
type RouterConfig struct {
	Environment    string
	AllowedOrigins []string
	DeviceCookie   CookieConfig
	SessionCookie  CookieConfig
	SessionTTL     time.Duration
	RateLimit      RateLimitConfig
	MaxBodyBytes   int64
}

// HealthReporter lists components running in degraded mode.
type HealthReporter interface {
	Degraded() map[string]string
}
