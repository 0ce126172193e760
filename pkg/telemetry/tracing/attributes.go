package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/helios/pkg/gateway"
)

// Span attribute keys for proxied requests.
const (
	AttrRequestID = attribute.Key("helios.request_id")
	AttrProvider  = attribute.Key("helios.provider")
	AttrModel     = attribute.Key("helios.model")
	AttrStream    = attribute.Key("helios.stream")
	AttrPath      = attribute.Key("http.target")
	AttrStatus    = attribute.Key("helios.status")
	AttrErrorType = attribute.Key("helios.error_type")
)

// RequestAttributes builds the span attributes for an accepted request.
func RequestAttributes(req *gateway.ProxyRequest) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrRequestID.String(req.ID),
		AttrProvider.String(string(req.Provider)),
		AttrModel.String(req.Model),
		AttrStream.Bool(req.Stream),
		AttrPath.String(req.Path),
	}
}

// RecordOutcome stamps the request outcome on the span before it ends.
func RecordOutcome(span trace.Span, status string, errType string) {
	span.SetAttributes(AttrStatus.String(status))
	if errType != "" {
		span.SetAttributes(AttrErrorType.String(errType))
		span.SetStatus(codes.Error, errType)
		return
	}
	span.SetStatus(codes.Ok, "")
}
