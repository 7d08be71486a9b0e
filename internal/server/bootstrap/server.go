package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"architect/internal/config"
	domainquiz "architect/internal/domain/quiz"
	"architect/internal/intake"
	"architect/internal/logging"
	"architect/internal/quiz"
	"architect/internal/results"
	serverhttp "architect/internal/server/http"
)

// ServerOptions tweak RunServer.
type ServerOptions struct {
	// WithAdvisor also serves the AI backend on cfg.AdvisorServer.Addr from the same process.
	WithAdvisor bool
	// Ready, when set, receives the bound API address once the listener is open.
	Ready func(addr string)
}

// RunServer starts the funnel API and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.Config, opts ServerOptions) error {
	f, err := BootstrapFoundation(ctx, cfg)
	if err != nil {
		return err
	}
	defer f.Cleanup()

	logger := logging.NewComponentLogger("Main")
	logger.Info("Starting architect funnel API (env=%s)...", cfg.Environment)

	handler, closeServices, err := f.BuildAPI(ctx)
	if err != nil {
		return err
	}
	defer closeServices()

	if !f.Degraded.IsEmpty() {
		logger.Warn("[Bootstrap] Server starting in degraded mode: %v", f.Degraded.Degraded())
	}

	servers := []*http.Server{f.httpServer(cfg.Server.Addr, handler)}
	if opts.WithAdvisor {
		advisorHandler, err := f.BuildAdvisor(ctx)
		if err != nil {
			return fmt.Errorf("embedded advisor: %w", err)
		}
		servers = append(servers, f.httpServer(cfg.AdvisorServer.Addr, advisorHandler))
	}
	return serveUntilDone(ctx, servers, cfg.Server.ShutdownTimeout, opts.Ready, logger)
}

// BuildAPI wires stores, services and the router. The returned func stops service timers.
func (f *Foundation) BuildAPI(ctx context.Context) (http.Handler, func(), error) {
	cfg := f.Config
	stores, err := f.OpenStores(ctx)
	if err != nil {
		return nil, nil, err
	}
	advisorClient, err := f.NewAdvisorClient()
	if err != nil {
		return nil, nil, fmt.Errorf("advisor client: %w", err)
	}
	authSvc, err := f.NewAuthService()
	if err != nil {
		return nil, nil, err
	}
	bank, err := domainquiz.DefaultBank()
	if err != nil {
		return nil, nil, fmt.Errorf("quiz bank: %w", err)
	}

	quizSvc, err := quiz.NewService(bank, stores.Local,
		quiz.WithMaxEngines(cfg.LocalStore.MaxDevices),
		quiz.WithLogger(logging.NewComponentLogger("Quiz")),
		quiz.WithMetrics(f.Metrics),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("quiz service: %w", err)
	}
	intakeSvc := intake.NewService(stores.Leads, stores.Local,
		intake.WithLogger(logging.NewComponentLogger("Intake")),
		intake.WithMetrics(f.Metrics),
		intake.WithTracer(f.Tracer),
	)
	resultsSvc, err := results.NewService(stores.Leads, stores.Local, advisorClient,
		results.WithSessions(authSvc),
		results.WithQuiz(quizSvc),
		results.WithMaxViews(cfg.Results.MaxViews),
		results.WithLogger(logging.NewComponentLogger("Results")),
		results.WithMetrics(f.Metrics),
		results.WithTracer(f.Tracer),
	)
	if err != nil {
		quizSvc.Close()
		return nil, nil, fmt.Errorf("results service: %w", err)
	}

	router := serverhttp.NewRouter(
		serverhttp.RouterDeps{
			Intake:  intakeSvc,
			Quiz:    quizSvc,
			Results: resultsSvc,
			Auth:    authSvc,
			Advisor: advisorClient,
			Metrics: f.Metrics,
			Tracer:  f.Tracer,
			Health:  f.Degraded,
		},
		serverhttp.RouterConfig{
			Environment:    cfg.Environment,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			DeviceCookie:   serverhttp.CookieConfig{Name: cfg.Server.DeviceCookie, Secure: cfg.Server.CookieSecure},
			SessionCookie:  serverhttp.CookieConfig{Name: cfg.Server.SessionCookie, Secure: cfg.Server.CookieSecure},
			SessionTTL:     authSvc.SessionTTL(),
			RateLimit: serverhttp.RateLimitConfig{
				RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
				Burst:             cfg.RateLimit.Burst,
			},
		},
	)
	return router, quizSvc.Close, nil
}

func (f *Foundation) httpServer(addr string, handler http.Handler) *http.Server {
	readHeader := f.Config.Server.ReadHeaderTimeout
	if readHeader <= 0 {
		readHeader = 5 * time.Second
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeader,
		IdleTimeout:       120 * time.Second,
	}
}

// serveUntilDone runs every server until ctx ends or one of them fails, then shuts all
// of them down within timeout.
func serveUntilDone(ctx context.Context, servers []*http.Server, timeout time.Duration, ready func(string), logger logging.Logger) error {
	logger = logging.OrNop(logger)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	listeners := make([]net.Listener, 0, len(servers))
	for _, server := range servers {
		ln, err := net.Listen("tcp", server.Addr)
		if err != nil {
			for _, open := range listeners {
				_ = open.Close()
			}
			return fmt.Errorf("listen %s: %w", server.Addr, err)
		}
		listeners = append(listeners, ln)
	}
	if ready != nil {
		ready(listeners[0].Addr().String())
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, server := range servers {
		server, ln := server, listeners[i]
		g.Go(func() error {
			logger.Info("Server listening on %s", ln.Addr())
			if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		var errs []error
		for _, server := range servers {
			if err := server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", server.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
