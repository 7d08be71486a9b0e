package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"architect/internal/logging"
)

const defaultMaxBodyBytes = 64 << 10

// NewRouter creates the funnel's gin engine with every /v1 endpoint.
func NewRouter(deps RouterDeps, cfg RouterConfig) *gin.Engine {
	logger := logging.NewComponentLogger("Router")
	if strings.EqualFold(strings.TrimSpace(cfg.Environment), "production") {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(LogIDMiddleware())
	engine.Use(ObservabilityMiddleware(deps.Tracer))
	engine.Use(AccessLogMiddleware(logging.NewComponentLogger("HTTP")))
	engine.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	engine.Use(bodyLimitMiddleware(cfg.MaxBodyBytes))

	h := &apiHandler{deps: deps, cfg: cfg, logger: logger}

	engine.GET("/health", h.handleHealth)
	if deps.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	v1 := engine.Group("/v1")
	v1.Use(DeviceMiddleware(cfg.DeviceCookie))
	v1.Use(RateLimitMiddleware(cfg.RateLimit))
	{
		v1.GET("/catalog", h.handleCatalog)
		v1.POST("/intake", h.handleIntake)

		v1.GET("/quiz", h.handleQuiz)
		v1.POST("/quiz/answers", h.handleQuizAnswer)

		v1.GET("/results", h.handleResults)
		v1.POST("/results/focus", h.handleFocus)
		v1.POST("/results/roadmap", h.handleRoadmap)
		v1.POST("/results/pivot", h.handlePivot)
		v1.POST("/results/postgrad", h.handlePostgrad)
		v1.POST("/results/chat", h.handleChat)
		v1.POST("/results/signout", h.handleSignOut)
		v1.POST("/results/retake", h.handleRetake)

		v1.POST("/auth/link", h.handleAuthLink)
		v1.GET("/auth/callback", h.handleAuthCallback)
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, APIResponse{Error: "Not found."})
	})
	return engine
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", HeaderLogID}
	cfg.ExposeHeaders = []string{HeaderLogID}
	cfg.MaxAge = 12 * time.Hour

	cleaned := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" && origin != "*" {
			cleaned = append(cleaned, origin)
		}
	}
	if len(cleaned) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = cleaned
	cfg.AllowCredentials = true
	return cfg
}

func bodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
