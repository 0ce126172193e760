// Package proxy implements the streaming proxy engine: it rewrites an
// accepted request through a provider strategy, forwards it upstream over a
// shared pooled client, and streams the response back while tapping it for
// telemetry.
package proxy

import (
	"net/http"
	"time"

	"mercator-hq/helios/pkg/config"
)

// NewHTTPClient builds the shared upstream client. Deadlines are applied
// per request via context, not on the client, because streaming responses
// have no total deadline.
func NewHTTPClient(cfg config.ProxyConfig) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 0,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport}
}
