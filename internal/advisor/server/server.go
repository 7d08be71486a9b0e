// Package server is the AI advisor backend: four JSON endpoints that turn a student's
// programme and trait vector into model-generated guidance.
package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kaptinlin/jsonrepair"

	"architect/internal/advisor"
	apperrors "architect/internal/errors"
	"architect/internal/logging"
	"architect/internal/observability"
	serverhttp "architect/internal/server/http"
)

type matchBody struct {
	Scores        []float64 `json:"scores"`
	Program       string    `json:"program"`
	SelectedMajor string    `json:"selected_major"`
}

type pivotBody struct {
	Scores        []float64 `json:"scores"`
	Program       string    `json:"program"`
	SelectedMajor string    `json:"selected_major"`
	DreamJob      string    `json:"dream_job"`
}

type postgradBody struct {
	Program        string    `json:"program"`
	SelectedMajor  string    `json:"selected_major"`
	Scores         []float64 `json:"scores"`
	PostgradChoice string    `json:"postgrad_choice"`
}

type chatBody struct {
	Message       string    `json:"message"`
	Program       string    `json:"program"`
	SelectedMajor string    `json:"selected_major"`
	Scores        []float64 `json:"scores"`
}

// Server serves the advisor endpoints.
type Server struct {
	gen     Generator
	model   string
	schemas *advisor.Schemas
	breaker *apperrors.CircuitBreaker
	logger  logging.Logger
	tracer  *observability.TracerProvider
	engine  *gin.Engine
}

// Option configures Server.
type Option func(*Server)

func WithLogger(logger logging.Logger) Option {
	return func(s *Server) { s.logger = logging.OrNop(logger) }
}

func WithTracer(tp *observability.TracerProvider) Option {
	return func(s *Server) { s.tracer = tp }
}

func WithModel(model string) Option {
	return func(s *Server) { s.model = model }
}

// WithBreaker replaces the circuit breaker guarding the generator.
func WithBreaker(cb *apperrors.CircuitBreaker) Option {
	return func(s *Server) { s.breaker = cb }
}

// New builds the advisor service around gen.
func New(gen Generator, opts ...Option) (*Server, error) {
	schemas, err := advisor.DefaultSchemas()
	if err != nil {
		return nil, err
	}
	s := &Server{
		gen:     gen,
		schemas: schemas,
		breaker: apperrors.NewCircuitBreaker("gemini", apperrors.DefaultCircuitBreakerConfig()),
		logger:  logging.NewComponentLogger("Advisor"),
	}
	for _, opt := range opts {
		opt(s)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(serverhttp.LogIDMiddleware())
	engine.Use(serverhttp.ObservabilityMiddleware(s.tracer))
	engine.Use(serverhttp.AccessLogMiddleware(s.logger))
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", serverhttp.HeaderLogID}
	engine.Use(cors.New(corsConfig))

	api := engine.Group("/api")
	api.POST("/match", s.handleMatch)
	api.POST("/pivot", s.handlePivot)
	api.POST("/postgrad", s.handlePostgrad)
	api.POST("/chat", s.handleChat)
	engine.GET("/health", s.handleHealth)

	s.engine = engine
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleMatch(c *gin.Context) {
	var body matchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.logger.Warn("match: bad request: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": MatchFailedMessage})
		return
	}
	if len(body.Scores) == 0 {
		body.Scores = advisor.DefaultScores[:]
	}
	if strings.TrimSpace(body.Program) == "" {
		body.Program = defaultProgram
	}

	out, err := s.generateJSON(c.Request.Context(), advisor.EndpointMatch, matchPrompt(body.Program, body.SelectedMajor, body.Scores))
	if err != nil {
		logging.FromContext(c.Request.Context(), s.logger).Error("Match API Error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": MatchFailedMessage})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", out)
}

func (s *Server) handlePivot(c *gin.Context) {
	var body pivotBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusOK, pivotFallback)
		return
	}
	out, err := s.generateJSON(c.Request.Context(), advisor.EndpointPivot, pivotPrompt(body.Program, body.SelectedMajor, body.DreamJob, body.Scores))
	if err != nil {
		logging.FromContext(c.Request.Context(), s.logger).Warn("Pivot API Error: %v", err)
		c.JSON(http.StatusOK, pivotFallback)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", out)
}

func (s *Server) handlePostgrad(c *gin.Context) {
	var body postgradBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusOK, postgradFallback)
		return
	}
	out, err := s.generateJSON(c.Request.Context(), advisor.EndpointPostgrad, postgradPrompt(body.Program, body.SelectedMajor, body.PostgradChoice))
	if err != nil {
		logging.FromContext(c.Request.Context(), s.logger).Warn("Postgrad API Error: %v", err)
		c.JSON(http.StatusOK, postgradFallback)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", out)
}

func (s *Server) handleChat(c *gin.Context) {
	var body chatBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusOK, chatFallback)
		return
	}
	ctx := c.Request.Context()
	text, err := s.generate(ctx, advisor.EndpointChat, func(ctx context.Context) (string, error) {
		return s.gen.GenerateText(ctx, chatPrompt(body))
	})
	if err != nil {
		logging.FromContext(ctx, s.logger).Error("Chat API Error: %v", err)
		c.JSON(http.StatusOK, chatFallback)
		return
	}
	c.JSON(http.StatusOK, advisor.ChatReply{Response: text})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"model":   s.model,
		"breaker": s.breaker.State().String(),
	})
}

// generateJSON asks the model for JSON, repairs near-miss output and checks it against the
// endpoint's response schema.
func (s *Server) generateJSON(ctx context.Context, endpoint, prompt string) ([]byte, error) {
	text, err := s.generate(ctx, endpoint, func(ctx context.Context) (string, error) {
		return s.gen.GenerateJSON(ctx, prompt)
	})
	if err != nil {
		return nil, err
	}
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, err
	}
	if err := s.schemas.Validate(endpoint, []byte(repaired)); err != nil {
		return nil, err
	}
	return []byte(repaired), nil
}

func (s *Server) generate(ctx context.Context, endpoint string, fn func(context.Context) (string, error)) (string, error) {
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanAdvisorServe, observability.EndpointAttrs(endpoint)...)
	defer span.End()
	if s.model != "" {
		span.SetAttributes(observability.ModelAttrs(s.model)...)
	}

	text, err := apperrors.ExecuteFunc(s.breaker, ctx, fn)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return text, nil
}
