package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"architect/internal/advisor"
	"architect/internal/auth/adapters"
	authapp "architect/internal/auth/app"
	"architect/internal/auth/ports"
	"architect/internal/config"
	"architect/internal/domain/lead"
	"architect/internal/leads"
	"architect/internal/localstore"
	"architect/internal/localstore/redisstore"
	"architect/internal/logging"
	"architect/internal/observability"
	id "architect/internal/utils/id"
)

const jwtIssuer = "architect"

// Foundation holds the infrastructure shared by every command.
type Foundation struct {
	Config   config.Config
	Logger   *observability.Logger
	Metrics  *observability.MetricsCollector
	Tracer   *observability.TracerProvider
	Degraded *DegradedComponents

	cleanups []func()
}

// Cleanup releases resources in reverse order of acquisition.
func (f *Foundation) Cleanup() {
	for i := len(f.cleanups) - 1; i >= 0; i-- {
		f.cleanups[i]()
	}
	f.cleanups = nil
}

func (f *Foundation) onCleanup(fn func()) {
	f.cleanups = append(f.cleanups, fn)
}

// BootstrapFoundation configures logging, metrics and tracing.
func BootstrapFoundation(ctx context.Context, cfg config.Config) (*Foundation, error) {
	obsLogger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	})
	logging.SetDefault(obsLogger)
	logger := logging.NewComponentLogger("Bootstrap")

	f := &Foundation{Config: cfg, Logger: obsLogger, Degraded: NewDegradedComponents()}
	stages := []BootstrapStage{
		{
			Name: "metrics", Required: false,
			Init: func(context.Context) error {
				metrics, err := observability.NewMetricsCollector(cfg.Observability.Metrics, obsLogger)
				if err != nil {
					return err
				}
				f.Metrics = metrics
				f.onCleanup(func() { shutdownWithTimeout(metrics.Shutdown) })
				return nil
			},
		},
		{
			Name: "tracing", Required: false,
			Init: func(context.Context) error {
				tracer, err := observability.NewTracerProvider(cfg.Observability.Tracing)
				if err != nil {
					return err
				}
				f.Tracer = tracer
				f.onCleanup(func() { shutdownWithTimeout(tracer.Shutdown) })
				return nil
			},
		},
	}
	if err := RunStages(ctx, stages, f.Degraded, logger); err != nil {
		f.Cleanup()
		return nil, err
	}
	return f, nil
}

// Stores are the lead and device stores of the funnel.
type Stores struct {
	Leads lead.Store
	Local localstore.Store
}

// OpenStores opens the lead store (required) and the device store. An unreachable Redis
// falls back to the in-memory device store and is reported as degraded.
func (f *Foundation) OpenStores(ctx context.Context) (Stores, error) {
	logger := logging.NewComponentLogger("Bootstrap")
	var stores Stores
	stages := []BootstrapStage{
		{
			Name: "lead-store", Required: true,
			Init: func(ctx context.Context) error {
				store, cleanup, err := leads.Open(ctx, f.Config.Store)
				if err != nil {
					return err
				}
				stores.Leads = store
				f.onCleanup(cleanup)
				return nil
			},
		},
		{
			Name: "local-store", Required: false,
			Init: func(ctx context.Context) error {
				if !strings.EqualFold(f.Config.LocalStore.Driver, "redis") {
					return nil
				}
				store := redisstore.New(redisstore.Options{
					Addr:     f.Config.LocalStore.RedisAddr,
					Password: f.Config.LocalStore.RedisPassword,
					DB:       f.Config.LocalStore.RedisDB,
				})
				pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				if err := store.Ping(pingCtx); err != nil {
					_ = store.Close()
					return fmt.Errorf("redis %s: %w", f.Config.LocalStore.RedisAddr, err)
				}
				stores.Local = store
				f.onCleanup(func() { _ = store.Close() })
				return nil
			},
		},
	}
	if err := RunStages(ctx, stages, f.Degraded, logger); err != nil {
		return Stores{}, err
	}
	if stores.Local == nil {
		memory, err := localstore.NewMemory(f.Config.LocalStore.MaxDevices)
		if err != nil {
			return Stores{}, err
		}
		stores.Local = memory
	}
	return stores, nil
}

// NewAdvisorClient builds the outbound advisor client.
func (f *Foundation) NewAdvisorClient() (*advisor.Client, error) {
	return advisor.New(f.Config.Advisor,
		advisor.WithLogger(logging.NewComponentLogger("AdvisorClient")),
		advisor.WithMetrics(f.Metrics),
		advisor.WithTracer(f.Tracer),
	)
}

// NewAuthService builds magic-link auth on in-memory link and session stores.
func (f *Foundation) NewAuthService() (*authapp.Service, error) {
	cfg := f.Config.Auth
	links, sessions := adapters.NewMemoryStores()

	var mailer ports.Mailer = adapters.NewLogMailer(logging.NewComponentLogger("Mailer"))
	if strings.EqualFold(cfg.Mailer, "smtp") {
		mailer = adapters.NewSMTPMailer(adapters.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}

	secret := cfg.JWTSecret
	if secret == "" {
		generated, err := id.NewToken(32)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		logging.NewComponentLogger("Bootstrap").Warn("No JWT secret configured; using an ephemeral development secret")
		secret = generated
		f.Degraded.Record("auth-secret", "ephemeral jwt secret, sessions end on restart")
	}

	svc := authapp.NewService(links, sessions, adapters.NewJWTTokenManager(secret, jwtIssuer), mailer, authapp.Config{
		LinkTTL:       cfg.LinkTTL,
		SessionTTL:    cfg.SessionTTL,
		PublicBaseURL: cfg.PublicBaseURL,
		Issuer:        jwtIssuer,
	})
	svc.WithLogger(logging.NewComponentLogger("Auth"))
	svc.WithMetrics(f.Metrics)
	return svc, nil
}

func shutdownWithTimeout(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = fn(ctx)
}
