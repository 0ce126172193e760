// Package config loads the gateway configuration from the environment.
//
// The gateway is configured exclusively through environment variables (plus
// an optional .env file loaded by the CLI before Load runs). Every option
// has a default suitable for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the complete gateway configuration.
type Config struct {
	Server    ServerConfig
	Proxy     ProxyConfig
	Telemetry TelemetryConfig
	AWS       AWSConfig
	Pricing   PricingConfig
}

// ServerConfig controls the listening HTTP server.
type ServerConfig struct {
	// Host is the listen address (HOST, default 127.0.0.1).
	Host string

	// Port is the listen port (PORT, default 3000).
	Port int

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// ListenAddress returns the host:port pair the server binds.
func (s ServerConfig) ListenAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ProxyConfig controls the streaming proxy engine.
type ProxyConfig struct {
	// MaxBodyBytes caps the inbound request body (MAX_BODY_BYTES,
	// default 10 MiB). Exceeding it fails the request with 413.
	MaxBodyBytes int64

	// MaxResponseBytes caps buffered non-streaming response bodies.
	MaxResponseBytes int64

	// UpstreamTimeout is the total deadline for non-streaming upstream
	// calls (UPSTREAM_TIMEOUT, default 60s). Streaming calls have no total
	// deadline.
	UpstreamTimeout time.Duration

	// StreamIdleTimeout aborts a stream when the client cannot absorb a
	// write for this long (STREAM_IDLE_TIMEOUT, default 5m).
	StreamIdleTimeout time.Duration

	// MaxIdleConnsPerHost caps pooled idle upstream connections.
	MaxIdleConnsPerHost int
}

// TelemetryConfig controls logging and the telemetry pipeline.
type TelemetryConfig struct {
	// LogLevel is read from LOG_LEVEL, falling back to RUST_LOG for
	// drop-in compatibility with the legacy deployment (default "info").
	LogLevel string

	// QueueSize is the collector queue capacity (TELEMETRY_QUEUE_SIZE,
	// default 1024). On overflow records are dropped, never blocking the
	// data path.
	QueueSize int

	// Workers is the collector worker pool size (TELEMETRY_WORKERS,
	// default 4).
	Workers int

	// ExporterTimeout bounds each exporter call per record.
	ExporterTimeout time.Duration

	// MaxCapturedChunks caps streamed_data per record
	// (MAX_CAPTURED_CHUNKS, default 1000); beyond it the record is marked
	// truncated.
	MaxCapturedChunks int

	// ServiceName, ServiceVersion and Environment populate the log record
	// resource block.
	ServiceName    string
	ServiceVersion string
	Environment    string

	// EnablePrometheus registers the Prometheus exporter
	// (ENABLE_PROMETHEUS, default true).
	EnablePrometheus bool

	Elasticsearch ElasticsearchConfig
}

// ElasticsearchConfig configures the optional Elasticsearch exporter.
type ElasticsearchConfig struct {
	// Enabled is read from ENABLE_ELASTICSEARCH.
	Enabled  bool
	URL      string
	Username string
	Password string
	// Index defaults to "ai-gateway-metrics".
	Index string
}

// AWSConfig holds the default Bedrock credentials, used when a request does
// not carry x-aws-* headers.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// UseInvoke switches the Bedrock strategy to the legacy
	// invoke/invoke-with-response-stream paths (BEDROCK_USE_INVOKE).
	UseInvoke bool
}

// PricingConfig points at the optional model price table.
type PricingConfig struct {
	// File is an optional YAML price table (PRICING_FILE). When set it is
	// watched and hot-reloaded.
	File string
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            envString("HOST", "127.0.0.1"),
			ShutdownTimeout: 15 * time.Second,
		},
		Proxy: ProxyConfig{
			MaxBodyBytes:        10 << 20,
			MaxResponseBytes:    64 << 20,
			UpstreamTimeout:     60 * time.Second,
			StreamIdleTimeout:   5 * time.Minute,
			MaxIdleConnsPerHost: 32,
		},
		Telemetry: TelemetryConfig{
			LogLevel:          envString("LOG_LEVEL", envString("RUST_LOG", "info")),
			QueueSize:         1024,
			Workers:           4,
			ExporterTimeout:   10 * time.Second,
			MaxCapturedChunks: 1000,
			ServiceName:       "helios",
			ServiceVersion:    "dev",
			Environment:       envString("DEPLOYMENT_ENVIRONMENT", "development"),
			EnablePrometheus:  envBool("ENABLE_PROMETHEUS", true),
			Elasticsearch: ElasticsearchConfig{
				Enabled:  envBool("ENABLE_ELASTICSEARCH", false),
				URL:      envString("ELASTICSEARCH_URL", "http://localhost:9200"),
				Username: os.Getenv("ELASTICSEARCH_USERNAME"),
				Password: os.Getenv("ELASTICSEARCH_PASSWORD"),
				Index:    envString("ELASTICSEARCH_INDEX", "ai-gateway-metrics"),
			},
		},
		AWS: AWSConfig{
			Region:          envString("AWS_REGION", "us-east-1"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			UseInvoke:       envBool("BEDROCK_USE_INVOKE", false),
		},
		Pricing: PricingConfig{
			File: os.Getenv("PRICING_FILE"),
		},
	}

	var err error
	if cfg.Server.Port, err = envInt("PORT", 3000); err != nil {
		return nil, err
	}
	if cfg.Proxy.MaxBodyBytes, err = envInt64("MAX_BODY_BYTES", cfg.Proxy.MaxBodyBytes); err != nil {
		return nil, err
	}
	if cfg.Proxy.UpstreamTimeout, err = envDuration("UPSTREAM_TIMEOUT", cfg.Proxy.UpstreamTimeout); err != nil {
		return nil, err
	}
	if cfg.Proxy.StreamIdleTimeout, err = envDuration("STREAM_IDLE_TIMEOUT", cfg.Proxy.StreamIdleTimeout); err != nil {
		return nil, err
	}
	if cfg.Telemetry.QueueSize, err = envInt("TELEMETRY_QUEUE_SIZE", cfg.Telemetry.QueueSize); err != nil {
		return nil, err
	}
	if cfg.Telemetry.Workers, err = envInt("TELEMETRY_WORKERS", cfg.Telemetry.Workers); err != nil {
		return nil, err
	}
	if cfg.Telemetry.MaxCapturedChunks, err = envInt("MAX_CAPTURED_CHUNKS", cfg.Telemetry.MaxCapturedChunks); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 1-65535", c.Server.Port)
	}
	if c.Proxy.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid MAX_BODY_BYTES %d: must be positive", c.Proxy.MaxBodyBytes)
	}
	if c.Telemetry.QueueSize <= 0 {
		return fmt.Errorf("invalid TELEMETRY_QUEUE_SIZE %d: must be positive", c.Telemetry.QueueSize)
	}
	if c.Telemetry.Workers <= 0 {
		return fmt.Errorf("invalid TELEMETRY_WORKERS %d: must be positive", c.Telemetry.Workers)
	}
	switch c.Telemetry.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q: must be debug, info, warn or error", c.Telemetry.LogLevel)
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
