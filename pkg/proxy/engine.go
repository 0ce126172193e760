package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/helios/pkg/config"
	"mercator-hq/helios/pkg/gateway"
	"mercator-hq/helios/pkg/providers"
	"mercator-hq/helios/pkg/telemetry"
)

// hopHeaders are stripped when forwarding upstream response headers.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Content-Length",
}

// Engine forwards rewritten requests upstream and streams responses back.
// One engine serves all requests; per-request state lives on the arguments.
type Engine struct {
	cfg    config.ProxyConfig
	client *http.Client
}

// NewEngine creates the engine with its shared pooled client.
func NewEngine(cfg config.ProxyConfig) *Engine {
	return &Engine{cfg: cfg, client: NewHTTPClient(cfg)}
}

// Execute runs the full proxy exchange for one request: transform chain,
// upstream call, response streaming with the telemetry tap.
//
// A non-nil return means no response bytes were written yet and the caller
// owns the error response. Once streaming has begun the engine handles
// termination itself, records the outcome on rec, and returns nil.
func (e *Engine) Execute(w http.ResponseWriter, r *http.Request, preq *gateway.ProxyRequest, strat providers.Strategy, rec *telemetry.RequestMetrics) error {
	rewritten, err := e.rewrite(r.Context(), preq, strat)
	if err != nil {
		return err
	}

	ctx := r.Context()
	if !preq.Stream {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.UpstreamTimeout)
		defer cancel()
	}

	upReq, err := http.NewRequestWithContext(ctx, rewritten.Method, rewritten.URL, bytes.NewReader(rewritten.Body))
	if err != nil {
		return gateway.WrapError(gateway.ErrInternal, "cannot build upstream request", err)
	}
	upReq.Header = rewritten.Header
	if host := rewritten.Header.Get("Host"); host != "" {
		upReq.Host = host
	}

	providerStart := time.Now()
	resp, err := e.client.Do(upReq)
	if err != nil {
		return classifyTransportError(r.Context(), ctx, err)
	}
	defer resp.Body.Close()

	rec.ProviderLatency = time.Since(providerStart)
	rec.ProviderStatusCode = resp.StatusCode
	if id := strat.ExtractProviderRequestID(resp.Header, nil); id != "" {
		rec.ProviderRequestID = id
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return e.forwardProviderError(w, resp, rec)
	}

	framing := strat.ResponseFraming(resp.Header.Get("Content-Type"), preq.Stream)
	switch framing {
	case gateway.FramingSSE:
		return e.streamPassThrough(w, resp, preq, strat, rec)
	case gateway.FramingAWSEventStream:
		return e.streamEventStream(w, resp, preq, strat, rec)
	default:
		return e.forwardJSON(w, resp, preq, strat, rec)
	}
}

// rewrite runs the strategy transform chain in its contract order:
// path, body, headers, signing.
func (e *Engine) rewrite(ctx context.Context, preq *gateway.ProxyRequest, strat providers.Strategy) (*gateway.RewrittenRequest, error) {
	path := strat.TransformPath(preq.Path, preq)

	body, err := strat.TransformRequestBody(path, preq.Body)
	if err != nil {
		return nil, err
	}

	headers, err := strat.ProcessHeaders(preq.Headers)
	if err != nil {
		return nil, err
	}

	rawURL := strat.BaseURL(preq) + path
	if preq.RawQuery != "" {
		rawURL += "?" + preq.RawQuery
	}

	headers, err = strat.Sign(ctx, preq.Method, rawURL, headers, body)
	if err != nil {
		return nil, err
	}

	return &gateway.RewrittenRequest{
		URL:    rawURL,
		Method: preq.Method,
		Header: headers,
		Body:   body,
	}, nil
}

// classifyTransportError distinguishes client disconnect, upstream timeout
// and connection failure.
func classifyTransportError(clientCtx, upstreamCtx context.Context, err error) error {
	if clientCtx.Err() != nil {
		return gateway.WrapError(gateway.ErrClientDisconnect, "client went away before upstream responded", err)
	}
	if errors.Is(upstreamCtx.Err(), context.DeadlineExceeded) {
		return gateway.WrapError(gateway.ErrUpstreamTimeout, "upstream deadline exceeded", err)
	}
	return gateway.WrapError(gateway.ErrUpstreamConnect, "upstream request failed", err)
}

// forwardProviderError passes an upstream non-2xx response through verbatim
// and records the provider failure.
func (e *Engine) forwardProviderError(w http.ResponseWriter, resp *http.Response, rec *telemetry.RequestMetrics) error {
	body, err := e.readBounded(resp.Body)
	if err != nil {
		return err
	}

	copySafeHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)

	rec.StatusCode = resp.StatusCode
	rec.ResponseSize = len(body)
	rec.SetResponseBody(body)
	rec.SetProviderError(resp.StatusCode)
	return nil
}

// forwardJSON buffers a complete JSON response, applies the strategy's
// response transform, and forwards it.
func (e *Engine) forwardJSON(w http.ResponseWriter, resp *http.Response, preq *gateway.ProxyRequest, strat providers.Strategy, rec *telemetry.RequestMetrics) error {
	body, err := e.readBounded(resp.Body)
	if err != nil {
		return err
	}

	body, err = strat.TransformResponseBody(body, preq)
	if err != nil {
		return err
	}

	copySafeHeaders(w.Header(), resp.Header)
	w.Header().Set("Content-Type", "application/json")
	if rec.ProviderRequestID != "" {
		w.Header().Set("x-request-id", rec.ProviderRequestID)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)

	rec.StatusCode = resp.StatusCode
	rec.ResponseSize = len(body)
	rec.SetResponseBody(body)
	if usage := strat.ExtractUsage(body); usage != nil {
		rec.Usage.Merge(usage)
	}
	if model := strat.ExtractModel(preq.Body, body); model != "" {
		rec.Model = model
	}
	return nil
}

// streamPassThrough forwards an SSE body byte for byte while the tap
// records chunk payloads and watches for usage on the final chunk.
func (e *Engine) streamPassThrough(w http.ResponseWriter, resp *http.Response, preq *gateway.ProxyRequest, strat providers.Strategy, rec *telemetry.RequestMetrics) error {
	e.writeStreamHeaders(w, resp, rec)
	rec.StatusCode = resp.StatusCode

	dst := newSSEWriter(w, e.cfg.StreamIdleTimeout)
	err := streamSSE(dst, &countingReader{r: resp.Body, n: &rec.ResponseSize}, func(payload []byte) {
		rec.AppendChunk(payload)
		if usage := strat.ExtractUsage(payload); usage != nil {
			rec.Usage.Merge(usage)
		}
	})
	e.finishStream(rec, err)
	return nil
}

// streamEventStream decodes AWS event-stream frames, re-emits them as SSE,
// and terminates the stream with the [DONE] sentinel.
func (e *Engine) streamEventStream(w http.ResponseWriter, resp *http.Response, preq *gateway.ProxyRequest, strat providers.Strategy, rec *telemetry.RequestMetrics) error {
	translator := strat.NewChunkTranslator(preq)
	if translator == nil {
		return gateway.NewError(gateway.ErrProtocolError, "provider declared event-stream framing without a translator")
	}

	e.writeStreamHeaders(w, resp, rec)
	rec.StatusCode = http.StatusOK

	dst := newSSEWriter(w, e.cfg.StreamIdleTimeout)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			rec.ResponseSize += n
			res, terr := translator.Translate(buf[:n])
			rec.DecodeErrors += res.DecodeErrors
			for _, chunk := range res.Chunks {
				rec.AppendChunk(chunk)
			}
			rec.Usage.Merge(res.Usage)
			if len(res.Client) > 0 {
				if werr := dst.Write(res.Client); werr != nil {
					e.finishStream(rec, werr)
					return nil
				}
			}
			if terr != nil {
				e.finishStream(rec, terr)
				return nil
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				werr := dst.Write([]byte("data: [DONE]\n\n"))
				e.finishStream(rec, werr)
				return nil
			}
			e.finishStream(rec, gateway.WrapError(gateway.ErrProtocolError, "upstream stream read failed", readErr))
			return nil
		}
	}
}

// finishStream resolves the terminal state of a stream that already sent
// headers: clean end, client abort, or failure.
func (e *Engine) finishStream(rec *telemetry.RequestMetrics, err error) {
	if err == nil {
		return
	}
	t := gateway.TypeOf(err)
	switch t {
	case gateway.ErrClientDisconnect, gateway.ErrClientStalled:
		rec.SetAborted(t)
	default:
		rec.SetError(t)
	}
	slog.Debug("stream terminated", "request_id", rec.ID, "error", err)
}

func (e *Engine) writeStreamHeaders(w http.ResponseWriter, resp *http.Response, rec *telemetry.RequestMetrics) {
	copySafeHeaders(w.Header(), resp.Header)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	if rec.ProviderRequestID != "" {
		w.Header().Set("x-request-id", rec.ProviderRequestID)
	}
	w.WriteHeader(resp.StatusCode)
	_ = http.NewResponseController(w).Flush()
}

// readBounded buffers a complete response body up to the configured cap.
func (e *Engine) readBounded(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, e.cfg.MaxResponseBytes+1))
	if err != nil {
		return nil, gateway.WrapError(gateway.ErrProtocolError, "cannot read upstream body", err)
	}
	if int64(len(body)) > e.cfg.MaxResponseBytes {
		return nil, gateway.NewError(gateway.ErrProtocolError, "upstream body exceeds configured maximum")
	}
	return body, nil
}

func copySafeHeaders(dst, src http.Header) {
	for name, values := range src {
		if isHopHeader(name) {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func isHopHeader(name string) bool {
	for _, h := range hopHeaders {
		if http.CanonicalHeaderKey(name) == h {
			return true
		}
	}
	return false
}

// countingReader tracks forwarded byte volume for the telemetry record.
type countingReader struct {
	r io.Reader
	n *int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	*c.n += n
	return n, err
}
