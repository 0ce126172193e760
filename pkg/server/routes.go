package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/helios/pkg/gateway"
	"mercator-hq/helios/pkg/telemetry"
	"mercator-hq/helios/pkg/telemetry/tracing"
)

// trackingHeaders are forwarded into the telemetry record and logged at
// debug level when present.
var trackingHeaders = []string{
	"x-project-id",
	"x-organisation-id",
	"x-organization-id",
	"x-user-id",
	"x-experiment-id",
}

func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}
	mux.HandleFunc("/v1/", s.handleProxy)
	return corsMiddleware(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleProxy is the request dispatcher: it validates the provider
// selection, buffers the body, builds the ProxyRequest, and hands off to
// the engine. Exactly one telemetry record is emitted per request, after
// the response completes or aborts.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	rec := telemetry.NewRequestMetrics(uuid.NewString(), s.cfg.Telemetry.MaxCapturedChunks)
	rec.Path = r.URL.Path
	rec.Method = r.Method
	rec.ThreadID = r.Header.Get("x-thread-id")
	rec.ProjectID = r.Header.Get("x-project-id")
	rec.OrgID = firstHeader(r.Header, "x-organisation-id", "x-organization-id")
	rec.UserID = r.Header.Get("x-user-id")
	rec.ExperimentID = r.Header.Get("x-experiment-id")
	logTrackingHeaders(r.Header)

	defer s.finish(rec)

	providerName := r.Header.Get("x-provider")
	if providerName == "" {
		s.writeError(w, rec, gateway.NewError(gateway.ErrMissingProvider, "x-provider header is required"))
		return
	}
	providerID, ok := gateway.ParseProviderID(providerName)
	if !ok {
		s.writeError(w, rec, gateway.NewError(gateway.ErrUnknownProvider, "unknown provider "+providerName))
		return
	}
	strat, ok := s.registry.Lookup(providerID)
	if !ok {
		s.writeError(w, rec, gateway.NewError(gateway.ErrUnknownProvider, "provider "+providerName+" is not registered"))
		return
	}
	rec.Provider = string(providerID)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Proxy.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, rec, gateway.WrapError(gateway.ErrRequestTooLarge, "request body exceeds configured maximum", err))
		} else {
			s.writeError(w, rec, gateway.WrapError(gateway.ErrInternal, "cannot read request body", err))
		}
		return
	}
	rec.SetRequestBody(body)

	preq := &gateway.ProxyRequest{
		ID:         rec.ID,
		Provider:   providerID,
		Path:       r.URL.Path,
		RawQuery:   r.URL.RawQuery,
		Method:     r.Method,
		Headers:    r.Header,
		Body:       body,
		Model:      gjson.GetBytes(body, "model").String(),
		Stream:     wantsStream(r, body),
		ReceivedAt: rec.Start,
	}
	rec.Model = preq.Model

	ctx, span := s.tracer.Start(r.Context(), "proxy_request",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(tracing.RequestAttributes(preq)...))
	defer func() {
		tracing.RecordOutcome(span, finalStatus(rec), rec.ErrorType)
		span.End()
	}()

	slog.Debug("dispatching proxy request",
		"request_id", rec.ID, "provider", rec.Provider,
		"path", preq.Path, "stream", preq.Stream)

	if err := s.engine.Execute(w, r.WithContext(ctx), preq, strat, rec); err != nil {
		s.writeError(w, rec, err)
	}
}

// writeError emits the JSON error response and records the failure. Error
// types with no reportable status (the client is gone) only mark the record.
func (s *Server) writeError(w http.ResponseWriter, rec *telemetry.RequestMetrics, err error) {
	t := gateway.TypeOf(err)
	status := t.HTTPStatus()
	if status == 0 {
		rec.SetAborted(t)
		return
	}

	rec.SetError(t)
	rec.StatusCode = status

	message := "internal error"
	var ge *gateway.Error
	if errors.As(err, &ge) {
		message = ge.Message
	}

	slog.Warn("proxy request failed",
		"request_id", rec.ID, "provider", rec.Provider,
		"error_type", t, "status", status, "error", err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"type":    string(t),
			"message": message,
		},
	})
}

// finish finalizes the record, resolves cost, and submits it exactly once.
func (s *Server) finish(rec *telemetry.RequestMetrics) {
	rec.Finalize()
	if rec.Cost == nil {
		rec.Cost = s.calculator.Cost(rec.Model, &rec.Usage)
	}
	s.collector.Submit(telemetry.BuildLogRecord(rec, s.resource))
}

func finalStatus(rec *telemetry.RequestMetrics) string {
	if rec.Status != "" {
		return rec.Status
	}
	return telemetry.StatusSuccess
}

func wantsStream(r *http.Request, body []byte) bool {
	if gjson.GetBytes(body, "stream").Bool() {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

func firstHeader(h http.Header, names ...string) string {
	for _, name := range names {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	return ""
}

func logTrackingHeaders(h http.Header) {
	for _, name := range trackingHeaders {
		if v := h.Get(name); v != "" {
			slog.Debug("tracking header", "name", name, "value", v)
		}
	}
}
