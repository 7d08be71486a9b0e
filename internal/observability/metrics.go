package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsCollector manages all funnel metrics.
type MetricsCollector struct {
	meter  metric.Meter
	logger *Logger

	// Funnel metrics
	leads           metric.Int64Counter
	quizCompletions metric.Int64Counter
	magicLinks      metric.Int64Counter

	// Advisor metrics
	advisorRequests metric.Int64Counter
	advisorLatency  metric.Float64Histogram
	staleResponses  metric.Int64Counter

	// Server for Prometheus scraping
	prometheusServer *http.Server
}

// MetricsConfig configures the metrics collector
type MetricsConfig struct {
	Enabled        bool `yaml:"enabled"`
	PrometheusPort int  `yaml:"prometheus_port"`
}

// NewMetricsCollector creates a new metrics collector backed by the Prometheus exporter.
func NewMetricsCollector(config MetricsConfig, logger *Logger) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	collector, err := newMetricsCollector(exporter, logger)
	if err != nil {
		return nil, err
	}

	if config.PrometheusPort > 0 {
		if err := collector.StartPrometheusServer(config.PrometheusPort); err != nil {
			return nil, fmt.Errorf("failed to start prometheus server: %w", err)
		}
	}

	return collector, nil
}

// NewMetricsCollectorWithReader builds a collector on an arbitrary reader, used by tests
// with a manual reader.
func NewMetricsCollectorWithReader(reader sdkmetric.Reader) (*MetricsCollector, error) {
	return newMetricsCollector(reader, nil)
}

func newMetricsCollector(reader sdkmetric.Reader, logger *Logger) (*MetricsCollector, error) {
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter("architect")

	leads, err := meter.Int64Counter(
		"architect.leads.total",
		metric.WithDescription("Lead intake submissions by outcome"),
		metric.WithUnit("{lead}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create leads counter: %w", err)
	}

	quizCompletions, err := meter.Int64Counter(
		"architect.quiz.completions.total",
		metric.WithDescription("Completed quizzes"),
		metric.WithUnit("{quiz}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create quiz_completions counter: %w", err)
	}

	magicLinks, err := meter.Int64Counter(
		"architect.auth.magic_links.total",
		metric.WithDescription("Magic link requests by outcome"),
		metric.WithUnit("{link}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create magic_links counter: %w", err)
	}

	advisorRequests, err := meter.Int64Counter(
		"architect.advisor.requests.total",
		metric.WithDescription("Requests to the AI advisor backend"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create advisor_requests counter: %w", err)
	}

	advisorLatency, err := meter.Float64Histogram(
		"architect.advisor.latency",
		metric.WithDescription("AI advisor request latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create advisor_latency histogram: %w", err)
	}

	staleResponses, err := meter.Int64Counter(
		"architect.results.stale_responses.total",
		metric.WithDescription("Advisor responses discarded because a newer request superseded them"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stale_responses counter: %w", err)
	}

	return &MetricsCollector{
		meter:           meter,
		logger:          logger,
		leads:           leads,
		quizCompletions: quizCompletions,
		magicLinks:      magicLinks,
		advisorRequests: advisorRequests,
		advisorLatency:  advisorLatency,
		staleResponses:  staleResponses,
	}, nil
}

// Handler returns the Prometheus scrape handler.
func (m *MetricsCollector) Handler() http.Handler {
	return promclient.Handler()
}

// StartPrometheusServer starts a dedicated Prometheus metrics server
func (m *MetricsCollector) StartPrometheusServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	m.prometheusServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if m.logger != nil {
			m.logger.Info("prometheus metrics server listening", "port", port)
		}
		if err := m.prometheusServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if m.logger != nil {
				m.logger.Error("prometheus server error", "error", err)
			}
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the metrics collector
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m.prometheusServer != nil {
		return m.prometheusServer.Shutdown(ctx)
	}
	return nil
}

// RecordLead records an intake submission outcome (created, duplicate, rejected, error).
func (m *MetricsCollector) RecordLead(ctx context.Context, outcome string) {
	if m == nil || m.leads == nil {
		return
	}
	m.leads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordQuizCompletion records a finished quiz.
func (m *MetricsCollector) RecordQuizCompletion(ctx context.Context) {
	if m == nil || m.quizCompletions == nil {
		return
	}
	m.quizCompletions.Add(ctx, 1)
}

// RecordMagicLink records a magic link request outcome.
func (m *MetricsCollector) RecordMagicLink(ctx context.Context, outcome string) {
	if m == nil || m.magicLinks == nil {
		return
	}
	m.magicLinks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordAdvisorRequest records one call to the advisor backend.
func (m *MetricsCollector) RecordAdvisorRequest(ctx context.Context, endpoint string, status string, latency time.Duration) {
	if m == nil || m.advisorRequests == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	}

	m.advisorRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.advisorLatency.Record(ctx, latency.Seconds(), metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordStaleResponse records a response dropped by sequence fencing.
func (m *MetricsCollector) RecordStaleResponse(ctx context.Context, slot string) {
	if m == nil || m.staleResponses == nil {
		return
	}
	m.staleResponses.Add(ctx, 1, metric.WithAttributes(attribute.String("slot", slot)))
}
