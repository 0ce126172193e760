package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"mercator-hq/helios/pkg/config"
	"mercator-hq/helios/pkg/processing/costs"
	"mercator-hq/helios/pkg/providers"
	"mercator-hq/helios/pkg/providers/bedrock"
	"mercator-hq/helios/pkg/proxy"
	"mercator-hq/helios/pkg/server"
	"mercator-hq/helios/pkg/telemetry"
	"mercator-hq/helios/pkg/telemetry/exporters"
	"mercator-hq/helios/pkg/telemetry/logging"
	"mercator-hq/helios/pkg/telemetry/tracing"
)

var runFlags struct {
	logFormat string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway server",
	Long: `Start the gateway server.

Configuration is read from the environment (and a .env file in the working
directory, when present). The recognised variables are documented on the
fields of the pkg/config Config type.

Examples:
  # Start on the default 127.0.0.1:3000
  helios run

  # Custom listen address
  PORT=8080 HOST=0.0.0.0 helios run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runFlags.logFormat, "log-format", "text", "log output format (text, json)")
}

func runServer(cmd *cobra.Command, _ []string) error {
	// A missing .env file is fine; explicit env vars always win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Telemetry.ServiceVersion = Version

	logging.Setup(cfg.Telemetry.LogLevel, logging.LogFormat(runFlags.logFormat))

	tp, err := tracing.NewTracerProvider(cfg.Telemetry.ServiceName, Version, cfg.Telemetry.Environment)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	calculator := costs.NewCalculator()
	defer calculator.Close()
	if cfg.Pricing.File != "" {
		if err := calculator.LoadFile(cfg.Pricing.File); err != nil {
			return fmt.Errorf("load pricing: %w", err)
		}
		if err := calculator.Watch(cfg.Pricing.File); err != nil {
			slog.Warn("pricing hot-reload unavailable", "error", err)
		}
	}

	var exps []telemetry.Exporter
	var promRegistry *prometheus.Registry
	if cfg.Telemetry.LogLevel == "debug" {
		exps = append(exps, exporters.NewConsole())
	}
	if cfg.Telemetry.EnablePrometheus {
		promRegistry = prometheus.NewRegistry()
		exps = append(exps, exporters.NewPrometheus(promRegistry))
	}
	if cfg.Telemetry.Elasticsearch.Enabled {
		es, err := exporters.NewElasticsearch(cfg.Telemetry.Elasticsearch)
		if err != nil {
			return fmt.Errorf("init elasticsearch exporter: %w", err)
		}
		exps = append(exps, es)
		slog.Info("elasticsearch exporter registered",
			"url", cfg.Telemetry.Elasticsearch.URL,
			"index", cfg.Telemetry.Elasticsearch.Index)
	}

	collector := telemetry.NewCollector(cfg.Telemetry, exps...)
	collector.Start(cfg.Telemetry.Workers)

	registry := providers.NewRegistry()
	registry.Register(providers.NewOpenAI())
	registry.Register(providers.NewAnthropic())
	registry.Register(providers.NewGroq())
	registry.Register(providers.NewFireworks())
	registry.Register(providers.NewTogether())
	registry.Register(bedrock.New(cmd.Context(), cfg.AWS))
	registry.Seal()

	engine := proxy.NewEngine(cfg.Proxy)

	srv := server.New(cfg, registry, engine, collector, calculator, promRegistry)
	return srv.Start(cmd.Context())
}
