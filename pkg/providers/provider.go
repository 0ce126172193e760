// Package providers implements the per-provider strategies of the gateway.
//
// A Strategy is a stateless capability set over one upstream provider: it
// rewrites paths, headers and bodies into the provider's dialect, tells the
// engine how the response is framed, and knows how to pull the model, token
// usage and the provider's request id out of responses for telemetry.
package providers

import (
	"context"
	"net/http"
	"strings"

	"mercator-hq/helios/pkg/gateway"
)

// Strategy is the transform contract every provider implements.
type Strategy interface {
	// Name returns the provider identifier.
	Name() gateway.ProviderID

	// BaseURL returns the provider root for this request. Most providers
	// ignore the request; Bedrock derives the endpoint from the region.
	BaseURL(req *gateway.ProxyRequest) string

	// TransformPath rewrites an OpenAI-format path into the provider's
	// native path. It is idempotent on already-transformed paths.
	TransformPath(path string, req *gateway.ProxyRequest) string

	// ProcessHeaders produces the outbound header set from the inbound
	// one, including translated credentials. It fails with an
	// invalid-credentials error when required credentials are absent or
	// malformed.
	ProcessHeaders(headers http.Header) (http.Header, error)

	// TransformRequestBody rewrites the request body into the provider's
	// dialect. The default is identity.
	TransformRequestBody(path string, body []byte) ([]byte, error)

	// Sign applies request signing over the final outbound request. The
	// default is identity; only Bedrock signs.
	Sign(ctx context.Context, method, rawURL string, headers http.Header, body []byte) (http.Header, error)

	// ResponseFraming tells the engine how to parse the upstream response.
	ResponseFraming(contentType string, streamingRequested bool) gateway.Framing

	// TransformResponseBody rewrites a complete non-streaming response
	// body for the client. The default is identity.
	TransformResponseBody(body []byte, req *gateway.ProxyRequest) ([]byte, error)

	// NewChunkTranslator returns a per-request translator for upstream
	// framings that are not already SSE, or nil when the upstream bytes
	// can be passed through verbatim.
	NewChunkTranslator(req *gateway.ProxyRequest) ChunkTranslator

	// ExtractModel pulls the model name out of the request or response
	// body, request first.
	ExtractModel(reqBody, respBody []byte) string

	// ExtractUsage pulls token counts out of a response body or streamed
	// chunk payload. Absent counts stay nil.
	ExtractUsage(payload []byte) *gateway.TokenUsage

	// ExtractProviderRequestID pulls the provider's own request id from
	// response headers or body, for correlation.
	ExtractProviderRequestID(headers http.Header, respBody []byte) string
}

// TranslateResult is what a ChunkTranslator produced from one read of
// upstream bytes.
type TranslateResult struct {
	// Client holds SSE-encoded bytes to forward to the client.
	Client []byte

	// Chunks holds the decoded JSON payloads for the telemetry chunk log,
	// in receive order.
	Chunks [][]byte

	// Usage holds token counts when the consumed frames carried any.
	Usage *gateway.TokenUsage

	// Done reports that the terminal event was observed.
	Done bool

	// DecodeErrors counts frames dropped due to decode or checksum
	// failures while consuming this read.
	DecodeErrors int
}

// ChunkTranslator converts an upstream byte stream with provider-specific
// framing into SSE for the client. Implementations buffer partial frames
// across calls.
type ChunkTranslator interface {
	Translate(p []byte) (TranslateResult, error)
}

// base supplies the defaults shared by the OpenAI-compatible strategies.
type base struct{}

func (base) TransformRequestBody(_ string, body []byte) ([]byte, error) {
	return body, nil
}

func (base) Sign(_ context.Context, _, _ string, headers http.Header, _ []byte) (http.Header, error) {
	return headers, nil
}

func (base) ResponseFraming(contentType string, streamingRequested bool) gateway.Framing {
	if strings.Contains(contentType, "text/event-stream") {
		return gateway.FramingSSE
	}
	if contentType == "" && streamingRequested {
		return gateway.FramingSSE
	}
	return gateway.FramingJSON
}

func (base) TransformResponseBody(body []byte, _ *gateway.ProxyRequest) ([]byte, error) {
	return body, nil
}

func (base) NewChunkTranslator(_ *gateway.ProxyRequest) ChunkTranslator { return nil }

func (base) ExtractModel(reqBody, respBody []byte) string {
	return extractModel(reqBody, respBody)
}

func (base) ExtractUsage(payload []byte) *gateway.TokenUsage {
	return ExtractOpenAIUsage(payload)
}

func (base) ExtractProviderRequestID(headers http.Header, respBody []byte) string {
	return extractOpenAIRequestID(headers, respBody)
}
