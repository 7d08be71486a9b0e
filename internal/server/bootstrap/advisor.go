package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	advisorserver "architect/internal/advisor/server"
	"architect/internal/config"
	"architect/internal/logging"
)

// RunAdvisor serves the AI backend (Gemini behind the match, pivot, postgrad and chat
// endpoints) until ctx is cancelled.
func RunAdvisor(ctx context.Context, cfg config.Config) error {
	f, err := BootstrapFoundation(ctx, cfg)
	if err != nil {
		return err
	}
	defer f.Cleanup()

	logger := logging.NewComponentLogger("Main")
	logger.Info("Starting architect advisor (model=%s)...", cfg.AdvisorServer.GeminiModel)

	handler, err := f.BuildAdvisor(ctx)
	if err != nil {
		return err
	}
	return serveUntilDone(ctx, []*http.Server{f.httpServer(cfg.AdvisorServer.Addr, handler)}, cfg.Server.ShutdownTimeout, nil, logger)
}

// BuildAdvisor creates the Gemini-backed advisor handler.
func (f *Foundation) BuildAdvisor(ctx context.Context) (http.Handler, error) {
	cfg := f.Config.AdvisorServer
	gen, err := advisorserver.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, err
	}
	srv, err := advisorserver.New(gen,
		advisorserver.WithModel(gen.Model()),
		advisorserver.WithLogger(logging.NewComponentLogger("Advisor")),
		advisorserver.WithTracer(f.Tracer),
	)
	if err != nil {
		return nil, fmt.Errorf("advisor server: %w", err)
	}
	return srv.Handler(), nil
}
