package utils

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricSignaturesTotal = "rednote_signer_signatures_total"
	MetricSignDuration    = "rednote_signer_sign_duration_seconds"
	MetricActiveSessions  = "rednote_signer_active_sessions"
)

// MetricsCollector is a registry-scoped set of named metric vectors.
// All methods are no-ops on a nil collector.
type MetricsCollector struct {
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	mu         sync.RWMutex
}

func NewMetricsCollector(enableRuntimeMetrics bool) *MetricsCollector {
	reg := prometheus.NewRegistry()

	if enableRuntimeMetrics {
		_ = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		_ = reg.Register(collectors.NewGoCollector())
	}

	return &MetricsCollector{
		registry:   reg,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// NewSignerMetrics returns a collector with the signer metrics registered.
func NewSignerMetrics(enableRuntimeMetrics bool) (*MetricsCollector, error) {
	m := NewMetricsCollector(enableRuntimeMetrics)
	if err := m.RegisterCounter(MetricSignaturesTotal, "Signatures produced, by header kind and status.", "kind", "status"); err != nil {
		return nil, err
	}
	buckets := []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05}
	if err := m.RegisterHistogram(MetricSignDuration, "Time spent producing one signature.", buckets, "kind"); err != nil {
		return nil, err
	}
	if err := m.RegisterGauge(MetricActiveSessions, "Signing sessions currently open."); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MetricsCollector) RegisterCounter(name, help string, labelNames ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.counters[name]; ok {
		return nil
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labelNames)
	if err := m.registry.Register(cv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			m.counters[name] = are.ExistingCollector.(*prometheus.CounterVec)
			return nil
		}
		return err
	}
	m.counters[name] = cv
	return nil
}

func (m *MetricsCollector) RegisterGauge(name, help string, labelNames ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.gauges[name]; ok {
		return nil
	}
	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labelNames)
	if err := m.registry.Register(gv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			m.gauges[name] = are.ExistingCollector.(*prometheus.GaugeVec)
			return nil
		}
		return err
	}
	m.gauges[name] = gv
	return nil
}

func (m *MetricsCollector) RegisterHistogram(name, help string, buckets []float64, labelNames ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.histograms[name]; ok {
		return nil
	}
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labelNames)
	if err := m.registry.Register(hv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			m.histograms[name] = are.ExistingCollector.(*prometheus.HistogramVec)
			return nil
		}
		return err
	}
	m.histograms[name] = hv
	return nil
}

func (m *MetricsCollector) IncCounter(name string, delta float64, labels prometheus.Labels) {
	if m == nil {
		return
	}
	m.mu.RLock()
	cv := m.counters[name]
	m.mu.RUnlock()
	if cv != nil {
		cv.With(labels).Add(delta)
	}
}

func (m *MetricsCollector) SetGauge(name string, value float64, labels prometheus.Labels) {
	if m == nil {
		return
	}
	m.mu.RLock()
	gv := m.gauges[name]
	m.mu.RUnlock()
	if gv != nil {
		gv.With(labels).Set(value)
	}
}

func (m *MetricsCollector) ObserveHistogram(name string, value float64, labels prometheus.Labels) {
	if m == nil {
		return
	}
	m.mu.RLock()
	hv := m.histograms[name]
	m.mu.RUnlock()
	if hv != nil {
		hv.With(labels).Observe(value)
	}
}

// RecordSignature counts one signature and observes its duration.
func (m *MetricsCollector) RecordSignature(kind, status string, d time.Duration) {
	m.IncCounter(MetricSignaturesTotal, 1, prometheus.Labels{"kind": kind, "status": status})
	m.ObserveHistogram(MetricSignDuration, d.Seconds(), prometheus.Labels{"kind": kind})
}

func (m *MetricsCollector) SetActiveSessions(n int) {
	m.SetGauge(MetricActiveSessions, float64(n), prometheus.Labels{})
}

func (m *MetricsCollector) StartServerWithContext(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("metrics server error: %w", err)
	}
}

func (m *MetricsCollector) GetRegistry() *prometheus.Registry {
	return m.registry
}
