package os

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics is the client_golang-backed MetricsAPI: callers
// register counters/gauges by name against a private registry, then record
// against those same names at runtime. Unknown names are silently dropped
// rather than panicking, since Inc/Set call sites don't error-check.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	mu          sync.RWMutex
	counters    map[string]prometheus.Counter
	counterVecs map[string]*prometheus.CounterVec
	gauges      map[string]prometheus.Gauge
}

// NewPrometheusMetrics builds a PrometheusMetrics backed by a fresh
// registry, pre-populated with the standard process and Go runtime
// collectors.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return &PrometheusMetrics{
		registry:    registry,
		counters:    make(map[string]prometheus.Counter),
		counterVecs: make(map[string]*prometheus.CounterVec),
		gauges:      make(map[string]prometheus.Gauge),
	}
}

// Registry returns the underlying Prometheus registry.
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

// Handler exposes the registry over HTTP in the standard exposition format.
func (p *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// RegisterCounter registers name once; later calls are no-ops.
func (p *PrometheusMetrics) RegisterCounter(name, help string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.counters[name]; ok {
		return
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	p.registry.MustRegister(c)
	p.counters[name] = c
}

// RegisterCounterVec registers name once; later calls are no-ops.
func (p *PrometheusMetrics) RegisterCounterVec(name, help string, labels []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.counterVecs[name]; ok {
		return
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	p.registry.MustRegister(c)
	p.counterVecs[name] = c
}

// RegisterGauge registers name once; later calls are no-ops.
func (p *PrometheusMetrics) RegisterGauge(name, help string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.gauges[name]; ok {
		return
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	p.registry.MustRegister(g)
	p.gauges[name] = g
}

// IncCounter adds delta to the counter registered as name, if any.
func (p *PrometheusMetrics) IncCounter(name string, delta float64) {
	p.mu.RLock()
	c, ok := p.counters[name]
	p.mu.RUnlock()
	if !ok {
		return
	}
	c.Add(delta)
}

// IncCounterVec adds delta to the counter registered as name for
// labelValues, if any.
func (p *PrometheusMetrics) IncCounterVec(name string, delta float64, labelValues ...string) {
	p.mu.RLock()
	c, ok := p.counterVecs[name]
	p.mu.RUnlock()
	if !ok {
		return
	}
	c.WithLabelValues(labelValues...).Add(delta)
}

// SetGauge sets the gauge registered as name, if any.
func (p *PrometheusMetrics) SetGauge(name string, value float64) {
	p.mu.RLock()
	g, ok := p.gauges[name]
	p.mu.RUnlock()
	if !ok {
		return
	}
	g.Set(value)
}

var _ MetricsAPI = (*PrometheusMetrics)(nil)
