// Package metrics provides a lightweight, Prometheus-compatible metrics
// collector for the relay. It outputs text/plain in Prometheus exposition
// format.
package metrics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the global metrics collector.
var Collector = NewMetricsCollector()

// MetricsCollector aggregates counters, gauges, and histograms.
type MetricsCollector struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	startTime  time.Time
}

// NewMetricsCollector creates a new collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		startTime:  time.Now(),
	}
}

// Uptime returns how long the collector has been running.
func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

type series struct {
	name   string
	help   string
	labels string
}

func (s series) id() string {
	if s.labels == "" {
		return s.name
	}
	return s.name + "{" + s.labels + "}"
}

// Counter is a monotonically increasing counter.
type Counter struct {
	series
	value atomic.Int64
}

func (c *Counter) Inc() { c.value.Add(1) }
func (c *Counter) Add(n int64) { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	series
	value atomic.Int64
}

func (g *Gauge) Set(v int64) { g.value.Store(v) }
func (g *Gauge) Add(n int64) { g.value.Add(n) }
func (g *Gauge) Inc() { g.value.Add(1) }
func (g *Gauge) Dec() { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks the distribution of observed values.
type Histogram struct {
	series
	mu     sync.Mutex
	count  int64
	sum    float64
	bounds []float64
	counts []int64 // cumulative per bound
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.counts[i]++
		}
	}
}

// ObserveSince records the seconds elapsed since start.
func (h *Histogram) ObserveSince(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Counter returns or creates the counter for name and labels.
func (c *MetricsCollector) Counter(name, help, labels string) *Counter {
	s := series{name: name, help: help, labels: labels}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctr, ok := c.counters[s.id()]; ok {
		return ctr
	}
	ctr := &Counter{series: s}
	c.counters[s.id()] = ctr
	return ctr
}

// Gauge returns or creates the gauge for name and labels.
func (c *MetricsCollector) Gauge(name, help, labels string) *Gauge {
	s := series{name: name, help: help, labels: labels}
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.gauges[s.id()]; ok {
		return g
	}
	g := &Gauge{series: s}
	c.gauges[s.id()] = g
	return g
}

// Histogram returns or creates the histogram for name and labels.
func (c *MetricsCollector) Histogram(name, help, labels string, buckets []float64) *Histogram {
	s := series{name: name, help: help, labels: labels}
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.histograms[s.id()]; ok {
		return h
	}
	bounds := append([]float64(nil), buckets...)
	sort.Float64s(bounds)
	if len(bounds) == 0 || !math.IsInf(bounds[len(bounds)-1], 1) {
		bounds = append(bounds, math.Inf(1))
	}
	h := &Histogram{series: s, bounds: bounds, counts: make([]int64, len(bounds))}
	c.histograms[s.id()] = h
	return h
}

// WriteText renders every metric in Prometheus text format. Series sharing a
// name are grouped under one HELP/TYPE header.
func (c *MetricsCollector) WriteText(w io.Writer) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "# HELP lunabot_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(&sb, "# TYPE lunabot_uptime_seconds gauge\n")
	fmt.Fprintf(&sb, "lunabot_uptime_seconds %d\n", int64(c.Uptime().Seconds()))

	header := func(s series, kind string, seen map[string]bool) {
		if seen[s.name] {
			return
		}
		seen[s.name] = true
		fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s %s\n", s.name, s.help, s.name, kind)
	}

	seen := make(map[string]bool)
	for _, id := range sortedKeys(c.counters) {
		ctr := c.counters[id]
		header(ctr.series, "counter", seen)
		fmt.Fprintf(&sb, "%s %d\n", id, ctr.Value())
	}
	for _, id := range sortedKeys(c.gauges) {
		g := c.gauges[id]
		header(g.series, "gauge", seen)
		fmt.Fprintf(&sb, "%s %d\n", id, g.Value())
	}
	for _, id := range sortedKeys(c.histograms) {
		h := c.histograms[id]
		header(h.series, "histogram", seen)
		h.mu.Lock()
		sep := ""
		if h.labels != "" {
			sep = h.labels + ","
		}
		for i, le := range h.bounds {
			bound := fmt.Sprintf("%g", le)
			if math.IsInf(le, 1) {
				bound = "+Inf"
			}
			fmt.Fprintf(&sb, "%s_bucket{%sle=\"%s\"} %d\n", h.name, sep, bound, h.counts[i])
		}
		suffix := ""
		if h.labels != "" {
			suffix = "{" + h.labels + "}"
		}
		fmt.Fprintf(&sb, "%s_sum%s %f\n", h.name, suffix, h.sum)
		fmt.Fprintf(&sb, "%s_count%s %d\n", h.name, suffix, h.count)
		h.mu.Unlock()
	}

	io.WriteString(w, sb.String())
}

// Handler returns an http.HandlerFunc serving the metrics.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		c.WriteText(w)
	}
}

// Serve exposes the global collector on addr until ctx is cancelled.
func Serve(ctx context.Context, addr, path string, logger *slog.Logger) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, Collector.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Info("metrics listening", "addr", addr, "path", path)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- Pre-defined metrics used across the application ---

var (
	TurnsTotal    = Collector.Counter("lunabot_turns_total", "Total inbound turns handled", "")
	EngineErrors  = Collector.Counter("lunabot_engine_errors_total", "Dialogue engine calls that failed", "")
	TextSends     = Collector.Counter("lunabot_sends_total", "Successful platform sends", `kind="text"`)
	ImageSends    = Collector.Counter("lunabot_sends_total", "Successful platform sends", `kind="image"`)
	SendFailures  = Collector.Counter("lunabot_send_failures_total", "Platform sends that failed", "")
	RemindersSent = Collector.Counter("lunabot_engagement_fired_total", "Engagement timers that fired", `track="reminder"`)
	CheckInsSent  = Collector.Counter("lunabot_engagement_fired_total", "Engagement timers that fired", `track="checkin"`)
	GiftsSent     = Collector.Counter("lunabot_engagement_fired_total", "Engagement timers that fired", `track="gift"`)
	StaleTimers   = Collector.Counter("lunabot_engagement_stale_total", "Loyalty timers skipped by epoch check", "")
	PendingTimers = Collector.Gauge("lunabot_engagement_pending_timers", "Engagement timers currently armed", "")
	Conversations = Collector.Gauge("lunabot_engagement_conversations", "Conversations with engagement state", "")

	EngineLatency = Collector.Histogram("lunabot_engine_latency_seconds", "Dialogue engine latency in seconds", "",
		[]float64{0.25, 0.5, 1, 2, 5, 10, 30})
)
