package costs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"mercator-hq/helios/pkg/gateway"
)

// defaultTable covers the common hosted model families. Values are USD per
// 1K total tokens; unknown models stay unpriced.
func defaultTable() Table {
	return Table{
		Models: map[string]ModelPricing{},
		Rules: []Rule{
			{Contains: "claude", Per1K: 0.01102},
			{Contains: "titan", Per1K: 0.01},
			{Contains: "llama", Per1K: 0.01},
		},
	}
}

// Calculator resolves the cost of a request. It is safe for concurrent use
// and supports hot reload of the price table.
type Calculator struct {
	mu      sync.RWMutex
	table   Table
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewCalculator creates a calculator with the built-in default table.
func NewCalculator() *Calculator {
	return &Calculator{table: defaultTable(), done: make(chan struct{})}
}

// LoadFile replaces the table from a YAML file.
func (c *Calculator) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pricing file: %w", err)
	}
	var table Table
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return fmt.Errorf("parse pricing file: %w", err)
	}

	c.mu.Lock()
	c.table = table
	c.mu.Unlock()

	slog.Info("model price table loaded", "path", path,
		"models", len(table.Models), "rules", len(table.Rules))
	return nil
}

// Watch reloads the table whenever the file changes. Reload failures keep
// the previous table.
func (c *Calculator) Watch(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create pricing watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch pricing file: %w", err)
	}
	c.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := c.LoadFile(path); err != nil {
					slog.Warn("price table reload failed, keeping previous table",
						"path", path, "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("pricing watcher error", "error", err)
			case <-c.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the watcher, if any.
func (c *Calculator) Close() {
	close(c.done)
	if c.watcher != nil {
		c.watcher.Close()
	}
}

// Cost returns the estimated USD cost of a request, or nil when the model
// is unpriced or no usable token counts are present.
func (c *Calculator) Cost(model string, usage *gateway.TokenUsage) *float64 {
	if model == "" || usage.IsZero() {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if pricing, ok := c.table.Models[model]; ok {
		if usage.InputTokens == nil && usage.OutputTokens == nil {
			return nil
		}
		var cost float64
		if usage.InputTokens != nil {
			cost += float64(*usage.InputTokens) / 1000 * pricing.InputPer1K
		}
		if usage.OutputTokens != nil {
			cost += float64(*usage.OutputTokens) / 1000 * pricing.OutputPer1K
		}
		return &cost
	}

	total := usage.TotalTokens
	if total == nil {
		return nil
	}
	lower := strings.ToLower(model)
	for _, rule := range c.table.Rules {
		if strings.Contains(lower, rule.Contains) {
			cost := float64(*total) / 1000 * rule.Per1K
			return &cost
		}
	}
	return nil
}
