package httpclient

import (
	"net/http"
	"time"

	"architect/internal/logging"
)

// DefaultTimeout bounds outbound requests when the caller passes no timeout.
const DefaultTimeout = 30 * time.Second

// New returns an http.Client for outbound calls. Proxies follow HTTP(S)_PROXY/NO_PROXY.
func New(timeout time.Duration, logger logging.Logger) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: Transport(logger),
	}
}

// Transport returns a clone of the default transport.
func Transport(logger logging.Logger) *http.Transport {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		logging.OrNop(logger).Warn("default transport is %T, building a fresh one", http.DefaultTransport)
		return &http.Transport{Proxy: http.ProxyFromEnvironment}
	}
	transport := base.Clone()
	transport.Proxy = http.ProxyFromEnvironment
	transport.MaxIdleConnsPerHost = 16
	return transport
}
