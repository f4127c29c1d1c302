package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rkscollector/rkscollector/internal/errs"
)

const namespace = "rkscollector"

// Metrics 会话与操作指标；nil 接收者上的方法为空操作
type Metrics struct {
	registry *prometheus.Registry

	sessions          *prometheus.CounterVec
	sessionDuration   *prometheus.HistogramVec
	sessionsInFlight  prometheus.Gauge
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// New 在独立 registry 上注册全部指标
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Device shell sessions by transport and outcome.",
		}, []string{"transport", "outcome"}),
		sessionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall time of a single device shell session.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45},
		}, []string{"transport"}),
		sessionsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_in_flight",
			Help:      "Device shell sessions currently open.",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Diagnostic operations by name and result.",
		}, []string{"operation", "result"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Wall time of a diagnostic operation including fan-out.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	reg.MustRegister(
		m.sessions,
		m.sessionDuration,
		m.sessionsInFlight,
		m.operations,
		m.operationDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry 供测试与自定义导出使用
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SessionStarted 返回结束回调，记录会话结果与耗时
func (m *Metrics) SessionStarted(transport string) func(partial bool, err error) {
	if m == nil {
		return func(bool, error) {}
	}
	start := time.Now()
	m.sessionsInFlight.Inc()
	return func(partial bool, err error) {
		m.sessionsInFlight.Dec()
		m.sessionDuration.WithLabelValues(transport).Observe(time.Since(start).Seconds())
		outcome := "ok"
		switch {
		case err != nil:
			outcome = errs.Kind(err)
		case partial:
			outcome = "partial"
		}
		m.sessions.WithLabelValues(transport, outcome).Inc()
	}
}

// ObserveOperation 记录一次操作结果；errorKind 为空表示成功
func (m *Metrics) ObserveOperation(operation, errorKind string, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if errorKind != "" {
		result = errorKind
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}
