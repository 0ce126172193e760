package exporters

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/helios/pkg/telemetry"
)

// Prometheus feeds aggregate request metrics from telemetry records.
//
// Metrics:
//   - helios_requests_total{provider,model,status}
//   - helios_request_duration_seconds{provider}
//   - helios_provider_duration_seconds{provider}
//   - helios_tokens_total{provider,model,direction}
//   - helios_cost_usd_total{provider,model}
//   - helios_stream_decode_errors_total{provider}
type Prometheus struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	providerTime *prometheus.HistogramVec
	tokens       *prometheus.CounterVec
	cost         *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
}

// NewPrometheus creates and registers the exporter's metrics.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "helios",
				Name:      "requests_total",
				Help:      "Proxied requests by provider, model and status",
			},
			[]string{"provider", "model", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "helios",
				Name:      "request_duration_seconds",
				Help:      "Total request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		providerTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "helios",
				Name:      "provider_duration_seconds",
				Help:      "Time to first upstream response",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "helios",
				Name:      "tokens_total",
				Help:      "Token usage by direction",
			},
			[]string{"provider", "model", "direction"},
		),
		cost: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "helios",
				Name:      "cost_usd_total",
				Help:      "Estimated cost in USD",
			},
			[]string{"provider", "model"},
		),
		decodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "helios",
				Name:      "stream_decode_errors_total",
				Help:      "Dropped event-stream frames",
			},
			[]string{"provider"},
		),
	}

	reg.MustRegister(p.requests, p.duration, p.providerTime, p.tokens, p.cost, p.decodeErrors)
	return p
}

func (*Prometheus) Name() string { return "prometheus" }

func (p *Prometheus) Export(_ context.Context, rec *telemetry.LogRecord) error {
	attrs := rec.Attributes
	meta := attrs.Metadata

	p.requests.WithLabelValues(attrs.Provider, attrs.Model, meta.Status).Inc()
	p.duration.WithLabelValues(attrs.Provider).Observe(float64(meta.Latency) / 1000)
	p.providerTime.WithLabelValues(attrs.Provider).Observe(float64(meta.ProviderLatency) / 1000)

	if meta.Tokens != nil {
		if meta.Tokens.InputTokens != nil {
			p.tokens.WithLabelValues(attrs.Provider, attrs.Model, "input").Add(float64(*meta.Tokens.InputTokens))
		}
		if meta.Tokens.OutputTokens != nil {
			p.tokens.WithLabelValues(attrs.Provider, attrs.Model, "output").Add(float64(*meta.Tokens.OutputTokens))
		}
	}
	if meta.Cost != nil {
		p.cost.WithLabelValues(attrs.Provider, attrs.Model).Add(*meta.Cost)
	}
	if meta.DecodeErrors > 0 {
		p.decodeErrors.WithLabelValues(attrs.Provider).Add(float64(meta.DecodeErrors))
	}
	return nil
}
