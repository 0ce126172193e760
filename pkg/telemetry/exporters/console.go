// Package exporters contains the telemetry exporters the gateway can
// register: console, Elasticsearch and Prometheus.
package exporters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"mercator-hq/helios/pkg/telemetry"
)

// Console pretty-prints each record, for development.
type Console struct {
	out io.Writer
}

// NewConsole creates a console exporter writing to stdout.
func NewConsole() *Console { return &Console{out: os.Stdout} }

func (*Console) Name() string { return "console" }

func (c *Console) Export(_ context.Context, rec *telemetry.LogRecord) error {
	encoded, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.out, "%s\n", encoded)
	return err
}
