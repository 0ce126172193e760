package telemetry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/helios/pkg/config"
)

type captureExporter struct {
	name string
	ch   chan *LogRecord
}

func newCaptureExporter(name string) *captureExporter {
	return &captureExporter{name: name, ch: make(chan *LogRecord, 16)}
}

func (c *captureExporter) Name() string { return c.name }

func (c *captureExporter) Export(_ context.Context, rec *LogRecord) error {
	c.ch <- rec
	return nil
}

func (c *captureExporter) wait(t *testing.T) *LogRecord {
	t.Helper()
	select {
	case rec := <-c.ch:
		return rec
	case <-time.After(2 * time.Second):
		t.Fatal("exporter did not receive a record in time")
		return nil
	}
}

type failingExporter struct {
	calls atomic.Int32
}

func (*failingExporter) Name() string { return "failing" }

func (f *failingExporter) Export(context.Context, *LogRecord) error {
	f.calls.Add(1)
	return errors.New("boom")
}

func testTelemetryConfig(queueSize int) config.TelemetryConfig {
	return config.TelemetryConfig{
		QueueSize:       queueSize,
		Workers:         2,
		ExporterTimeout: time.Second,
	}
}

func testRecord(id string) *LogRecord {
	m := NewRequestMetrics(id, 10)
	m.Finalize()
	return BuildLogRecord(m, Resource{ServiceName: "helios"})
}

func TestCollectorDeliversToAllExporters(t *testing.T) {
	a := newCaptureExporter("a")
	b := newCaptureExporter("b")
	c := NewCollector(testTelemetryConfig(8), a, b)
	c.Start(2)
	defer c.Close(context.Background())

	if !c.Submit(testRecord("req-1")) {
		t.Fatal("Submit() rejected the record")
	}

	if got := a.wait(t); got.Attributes.ID != "req-1" {
		t.Errorf("exporter a got %q", got.Attributes.ID)
	}
	if got := b.wait(t); got.Attributes.ID != "req-1" {
		t.Errorf("exporter b got %q", got.Attributes.ID)
	}
}

func TestCollectorExporterFailureIsolated(t *testing.T) {
	failing := &failingExporter{}
	capture := newCaptureExporter("capture")
	c := NewCollector(testTelemetryConfig(8), failing, capture)
	c.Start(1)
	defer c.Close(context.Background())

	c.Submit(testRecord("req-1"))

	// The healthy exporter still receives the record.
	capture.wait(t)

	// The failing exporter is retried a bounded number of times, then the
	// record is dropped for it.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if failing.calls.Load() == exportAttempts {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := failing.calls.Load(); got != exportAttempts {
		t.Errorf("failing exporter called %d times, want %d", got, exportAttempts)
	}

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, _, _, failures := c.Stats(); failures == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	_, _, _, failures := c.Stats()
	t.Errorf("export failures = %d, want 1", failures)
}

func TestCollectorQueueOverflowDrops(t *testing.T) {
	// No workers: the queue fills and stays full.
	c := NewCollector(testTelemetryConfig(1))

	if !c.Submit(testRecord("req-1")) {
		t.Fatal("first Submit() should succeed")
	}
	if c.Submit(testRecord("req-2")) {
		t.Fatal("second Submit() should drop, not block")
	}

	_, submitted, dropped, _ := c.Stats()
	if submitted != 1 || dropped != 1 {
		t.Errorf("submitted/dropped = %d/%d, want 1/1", submitted, dropped)
	}
}

func TestCollectorCloseDrains(t *testing.T) {
	capture := newCaptureExporter("capture")
	c := NewCollector(testTelemetryConfig(8), capture)
	c.Start(1)

	for i := 0; i < 5; i++ {
		c.Submit(testRecord("req"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if got := len(capture.ch); got != 5 {
		t.Errorf("delivered %d records before close, want 5", got)
	}
}
