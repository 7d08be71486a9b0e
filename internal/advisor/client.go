// Package advisor talks to the AI advisor backend over its four JSON endpoints. Every response
// is checked against an embedded schema before it reaches the funnel.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"architect/internal/config"
	apperrors "architect/internal/errors"
	"architect/internal/httpclient"
	"architect/internal/logging"
	"architect/internal/observability"
)

// ServiceName labels advisor failures.
const ServiceName = "advisor"

// Messages shown when a call fails.
const (
	MessageMatchFailed    = apperrors.MessageServiceError
	MessagePivotFailed    = "Failed to generate analysis."
	MessagePostgradFailed = "Failed to generate ROI."
	MessageChatFailed     = "Connection error."
)

var failureMessages = map[string]string{
	EndpointMatch:    MessageMatchFailed,
	EndpointPivot:    MessagePivotFailed,
	EndpointPostgrad: MessagePostgradFailed,
	EndpointChat:     MessageChatFailed,
}

// Advisor is the port the result orchestrator depends on.
type Advisor interface {
	Match(ctx context.Context, req MatchRequest) (*Roadmap, error)
	Pivot(ctx context.Context, req PivotRequest) (*PivotResult, error)
	Postgrad(ctx context.Context, req PostgradRequest) (*PostgradResult, error)
	Chat(ctx context.Context, req ChatRequest) (*ChatReply, error)
}

// Client is the HTTP implementation of Advisor.
type Client struct {
	baseURL   string
	http      *http.Client
	transport *httpclient.BreakerTransport
	maxBody   int64
	schemas   *Schemas
	logger    logging.Logger
	metrics   *observability.MetricsCollector
	tracer    *observability.TracerProvider
}

var _ Advisor = (*Client)(nil)

// Option configures Client.
type Option func(*Client)

func WithLogger(logger logging.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(logger) }
}

func WithMetrics(m *observability.MetricsCollector) Option {
	return func(c *Client) { c.metrics = m }
}

func WithTracer(tp *observability.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp }
}

// WithBreakerConfig replaces the default circuit breaker settings.
func WithBreakerConfig(cfg apperrors.CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.transport = httpclient.WrapTransportWithCircuitBreaker(httpclient.Transport(c.logger), ServiceName, cfg)
		c.http.Transport = c.transport
	}
}

// New builds a client for cfg.BaseURL.
func New(cfg config.AdvisorConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("advisor: base url is required")
	}
	schemas, err := DefaultSchemas()
	if err != nil {
		return nil, err
	}
	maxBody := cfg.MaxResponseBytes
	if maxBody <= 0 {
		maxBody = config.DefaultAdvisorMaxBody
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultAdvisorTimeout
	}

	logger := logging.NewComponentLogger("AdvisorClient")
	httpClient := httpclient.New(timeout, logger)
	transport := httpclient.WrapTransportWithCircuitBreaker(httpClient.Transport, ServiceName, apperrors.DefaultCircuitBreakerConfig())
	httpClient.Transport = transport

	c := &Client{
		baseURL:   baseURL,
		http:      httpClient,
		transport: transport,
		maxBody:   maxBody,
		schemas:   schemas,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Breaker exposes the circuit breaker for health reporting.
func (c *Client) Breaker() *apperrors.CircuitBreaker {
	return c.transport.Breaker()
}

func (c *Client) Match(ctx context.Context, req MatchRequest) (*Roadmap, error) {
	var out Roadmap
	if err := c.post(ctx, EndpointMatch, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Pivot(ctx context.Context, req PivotRequest) (*PivotResult, error) {
	var out PivotResult
	if err := c.post(ctx, EndpointPivot, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Postgrad(ctx context.Context, req PostgradRequest) (*PostgradResult, error) {
	var out PostgradResult
	if err := c.post(ctx, EndpointPostgrad, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	var out ChatReply
	if err := c.post(ctx, EndpointChat, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body any, out any) (err error) {
	ctx, span := c.tracer.StartSpan(ctx, observability.SpanAdvisorCall, observability.EndpointAttrs(endpoint)...)
	defer span.End()

	logger := logging.FromContext(ctx, c.logger)
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			if apperrors.IsDegraded(err) {
				status = apperrors.ErrorTypeDegraded.String()
			}
			span.RecordError(err)
			span.SetAttributes(observability.ErrorAttrs(err)...)
			logger.Warn("advisor %s failed after %s: %v", endpoint, time.Since(start), err)
		}
		span.SetAttributes(observability.StatusAttrs(status)...)
		c.metrics.RecordAdvisorRequest(ctx, endpoint, status, time.Since(start))
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		return c.serviceError(endpoint, 0, fmt.Errorf("encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return c.serviceError(endpoint, 0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.serviceError(endpoint, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := httpclient.ReadAllWithLimit(resp.Body, c.maxBody)
	if err != nil {
		return c.serviceError(endpoint, resp.StatusCode, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.serviceError(endpoint, resp.StatusCode, fmt.Errorf("unexpected status: %s", summarize(raw)))
	}
	if err := c.schemas.Validate(endpoint, raw); err != nil {
		return c.serviceError(endpoint, resp.StatusCode, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return c.serviceError(endpoint, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	logger.Debug("advisor %s ok in %s", endpoint, time.Since(start))
	return nil
}

func (c *Client) serviceError(endpoint string, status int, err error) error {
	var degraded *apperrors.DegradedError
	if errors.As(err, &degraded) {
		err = degraded
	}
	return &apperrors.ServiceError{
		Service:    ServiceName,
		Endpoint:   endpoint,
		StatusCode: status,
		Message:    failureMessages[endpoint],
		Err:        err,
	}
}

func summarize(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text == "" {
		return "empty body"
	}
	return text
}
