package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/helios/pkg/config"
)

// Exporter ships one log record to an external system. Exporters must be
// safe for concurrent use; failures never reach the request path.
type Exporter interface {
	Name() string
	Export(ctx context.Context, rec *LogRecord) error
}

// exporter retry policy: bounded attempts, then drop.
const (
	exportAttempts     = 3
	exportRetryBackoff = 100 * time.Millisecond
)

// Collector is the process-wide telemetry sink: a bounded queue drained by
// a fixed worker pool. Submitting never blocks; when the queue is full the
// record is dropped and counted.
type Collector struct {
	queue     chan *LogRecord
	exporters []Exporter
	timeout   time.Duration

	wg        sync.WaitGroup
	closeOnce sync.Once

	dropped        atomic.Uint64
	submitted      atomic.Uint64
	exportFailures atomic.Uint64

	cron *cron.Cron
}

// NewCollector creates a collector over the given exporters. Call Start to
// launch the worker pool.
func NewCollector(cfg config.TelemetryConfig, exporters ...Exporter) *Collector {
	return &Collector{
		queue:     make(chan *LogRecord, cfg.QueueSize),
		exporters: exporters,
		timeout:   cfg.ExporterTimeout,
		cron:      cron.New(),
	}
}

// Start launches the worker pool and the periodic queue-stats reporter.
func (c *Collector) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}

	_, _ = c.cron.AddFunc("@every 1m", func() {
		dropped := c.dropped.Load()
		failures := c.exportFailures.Load()
		if dropped == 0 && failures == 0 {
			slog.Debug("telemetry queue stats",
				"depth", len(c.queue), "submitted", c.submitted.Load())
			return
		}
		slog.Warn("telemetry queue stats",
			"depth", len(c.queue),
			"submitted", c.submitted.Load(),
			"dropped", dropped,
			"export_failures", failures)
	})
	c.cron.Start()
}

// Submit enqueues a record without blocking. It reports whether the record
// was accepted; on a full queue the record is dropped and the drop counter
// incremented.
func (c *Collector) Submit(rec *LogRecord) bool {
	select {
	case c.queue <- rec:
		c.submitted.Add(1)
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Stats reports queue depth and counters, for logs and tests.
func (c *Collector) Stats() (depth int, submitted, dropped, exportFailures uint64) {
	return len(c.queue), c.submitted.Load(), c.dropped.Load(), c.exportFailures.Load()
}

// Close stops accepting records, drains the queue, and waits for workers up
// to the context deadline.
func (c *Collector) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.cron.Stop()
		close(c.queue)
	})

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Collector) worker() {
	defer c.wg.Done()
	for rec := range c.queue {
		c.dispatch(rec)
	}
}

// dispatch fans one record out to every exporter concurrently, each with
// its own timeout, and waits for all of them before taking the next record.
func (c *Collector) dispatch(rec *LogRecord) {
	var wg sync.WaitGroup
	for _, exp := range c.exporters {
		wg.Add(1)
		go func(exp Exporter) {
			defer wg.Done()
			c.exportWithRetry(exp, rec)
		}(exp)
	}
	wg.Wait()
}

func (c *Collector) exportWithRetry(exp Exporter, rec *LogRecord) {
	var err error
	for attempt := 0; attempt < exportAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(exportRetryBackoff << (attempt - 1))
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		err = exp.Export(ctx, rec)
		cancel()
		if err == nil {
			return
		}
	}
	c.exportFailures.Add(1)
	slog.Warn("telemetry export failed, dropping record",
		"exporter", exp.Name(), "request_id", rec.Attributes.ID, "error", err)
}
