// Package metrics wraps the small Counter/Gauge/Averager abstractions the
// Driver uses to report run-level statistics (blocks forged,
// ticks elapsed, messages dropped) over Prometheus. Adapted from
// luxfi-consensus/metrics/metric.go, trimmed to the three primitives this
// simulator actually needs and re-keyed to a single Registerer passed in
// by the caller instead of a package-global registry.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tolelom/qvote/internal/wrappers"
)

// Counter tracks a monotonically increasing count, mirrored into a
// prometheus.Counter.
type Counter interface {
	Inc()
	Add(delta int64)
	Read() int64
}

type counter struct {
	mu   sync.RWMutex
	v    int64
	prom prometheus.Counter
}

// NewCounter registers name/help on reg and returns a Counter that keeps
// its own in-process value in step with the Prometheus series, so callers
// needing the raw number (e.g. to print a final run summary) don't have to
// scrape their own registry.
func NewCounter(name, help string, reg prometheus.Registerer) (Counter, error) {
	prom := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	if err := reg.Register(prom); err != nil {
		return nil, err
	}
	return &counter{prom: prom}, nil
}

// NewCounterWithErrs is NewCounter for call sites constructing several
// metrics in a row that want to collect every registration failure before
// deciding whether to abort, rather than stopping at the first one
// (mirrors luxfi-consensus's NewAveragerWithErrs).
func NewCounterWithErrs(name, help string, reg prometheus.Registerer, errs *wrappers.Errs) Counter {
	c, err := NewCounter(name, help, reg)
	if err != nil {
		errs.Add(err)
		return &counter{}
	}
	return c
}

func (c *counter) Inc() { c.Add(1) }

func (c *counter) Add(delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v += delta
	if c.prom != nil {
		c.prom.Add(float64(delta))
	}
}

func (c *counter) Read() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v
}

// Gauge tracks a value that can move up or down, mirrored into a
// prometheus.Gauge.
type Gauge interface {
	Set(value float64)
	Add(delta float64)
	Read() float64
}

type gauge struct {
	mu   sync.RWMutex
	v    float64
	prom prometheus.Gauge
}

// NewGauge registers name/help on reg and returns a Gauge.
func NewGauge(name, help string, reg prometheus.Registerer) (Gauge, error) {
	prom := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	if err := reg.Register(prom); err != nil {
		return nil, err
	}
	return &gauge{prom: prom}, nil
}

// NewGaugeWithErrs is NewGauge for call sites collecting registration
// failures into an Errs.
func NewGaugeWithErrs(name, help string, reg prometheus.Registerer, errs *wrappers.Errs) Gauge {
	g, err := NewGauge(name, help, reg)
	if err != nil {
		errs.Add(err)
		return &gauge{}
	}
	return g
}

func (g *gauge) Set(value float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.v = value
	if g.prom != nil {
		g.prom.Set(value)
	}
}

func (g *gauge) Add(delta float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.v += delta
	if g.prom != nil {
		g.prom.Add(delta)
	}
}

func (g *gauge) Read() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.v
}

// Averager tracks a running mean, reported as two Prometheus series (a
// count and a sum) the same way luxfi-consensus's Averager does, so the
// mean itself can be recovered with a single PromQL division at query
// time.
type Averager interface {
	Observe(value float64)
	Read() float64
}

type averager struct {
	mu        sync.RWMutex
	sum       float64
	count     float64
	promCount prometheus.Counter
	promSum   prometheus.Gauge
}

// NewAverager registers name/help on reg (as "<name>_count" and
// "<name>_sum") and returns an Averager.
func NewAverager(name, help string, reg prometheus.Registerer) (Averager, error) {
	count := prometheus.NewCounter(prometheus.CounterOpts{
		Name: name + "_count",
		Help: "Total number of observations of " + help,
	})
	sum := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name + "_sum",
		Help: "Sum of " + help,
	})
	if err := reg.Register(count); err != nil {
		return nil, err
	}
	if err := reg.Register(sum); err != nil {
		return nil, err
	}
	return &averager{promCount: count, promSum: sum}, nil
}

// NewAveragerWithErrs is NewAverager for call sites collecting
// registration failures into an Errs instead of stopping at the first
// one.
func NewAveragerWithErrs(name, help string, reg prometheus.Registerer, errs *wrappers.Errs) Averager {
	a, err := NewAverager(name, help, reg)
	if err != nil {
		errs.Add(err)
		return &averager{}
	}
	return a
}

func (a *averager) Observe(value float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sum += value
	a.count++
	if a.promCount != nil {
		a.promCount.Inc()
	}
	if a.promSum != nil {
		a.promSum.Add(value)
	}
}

func (a *averager) Read() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.count == 0 {
		return 0
	}
	return a.sum / a.count
}

// RunMetrics bundles everything the Driver reports about one simulation
// run.
type RunMetrics struct {
	Ticks           Counter
	BlocksForged    Counter
	MessagesSent    Counter
	MessagesDropped Counter
	ChainLength     Averager
}

// NewRunMetrics registers the full set of run-level metrics against reg,
// collecting any registration error into a single combined failure via
// internal/wrappers.Errs rather than failing on the first bad name.
func NewRunMetrics(reg prometheus.Registerer) (RunMetrics, error) {
	var errs wrappers.Errs
	m := RunMetrics{
		Ticks:           NewCounterWithErrs("qvote_ticks_total", "driver ticks elapsed", reg, &errs),
		BlocksForged:    NewCounterWithErrs("qvote_blocks_forged_total", "blocks forged across all nodes", reg, &errs),
		MessagesSent:    NewCounterWithErrs("qvote_messages_sent_total", "messages handed to the transport", reg, &errs),
		MessagesDropped: NewCounterWithErrs("qvote_messages_dropped_total", "messages dropped by the transport", reg, &errs),
		ChainLength:     NewAveragerWithErrs("qvote_chain_length", "committed chain length across nodes", reg, &errs),
	}
	if errs.Errored() {
		return RunMetrics{}, errs.Err()
	}
	return m, nil
}
