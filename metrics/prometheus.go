package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector Prometheus 指标收集器实现.
type PrometheusCollector struct {
	config *Config

	// 采样器指标
	samplerQueries *prometheus.CounterVec
	samplerUpdates *prometheus.CounterVec

	// 上报器指标
	reporterSpans   *prometheus.CounterVec
	reporterFlushes *prometheus.CounterVec
	batchSpans      prometheus.Histogram

	registry *prometheus.Registry
}

// NewPrometheus 创建 Prometheus 指标收集器.
func NewPrometheus(cfg *Config) (*PrometheusCollector, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	cfg.ApplyDefaults()
	namespace := cfg.Namespace

	// 创建新的注册表，避免与默认注册表冲突
	registry := prometheus.NewRegistry()

	c := &PrometheusCollector{
		config:   cfg,
		registry: registry,
	}

	c.samplerQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "queries_total",
			Help:      "Total number of sampling decisions",
		},
		[]string{"result"},
	)

	c.samplerUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "updates_total",
			Help:      "Total number of remote sampling strategy refreshes",
		},
		[]string{"result"},
	)

	c.reporterSpans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporter",
			Name:      "spans_total",
			Help:      "Total number of spans handed to reporters",
		},
		[]string{"result"},
	)

	c.reporterFlushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporter",
			Name:      "flushes_total",
			Help:      "Total number of batch flushes",
		},
		[]string{"result"},
	)

	c.batchSpans = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reporter",
			Name:      "batch_spans",
			Help:      "Number of spans per flushed batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	collectors := []prometheus.Collector{
		c.samplerQueries,
		c.samplerUpdates,
		c.reporterSpans,
		c.reporterFlushes,
		c.batchSpans,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRegisterMetric, err)
		}
	}

	return c, nil
}

// RecordSamplerQuery 记录采样决策.
func (c *PrometheusCollector) RecordSamplerQuery(sampled bool) {
	c.samplerQueries.WithLabelValues(boolResult(sampled, ResultSampled, ResultNotSampled)).Inc()
}

// RecordSamplerUpdate 记录远程策略刷新结果.
func (c *PrometheusCollector) RecordSamplerUpdate(success bool) {
	c.samplerUpdates.WithLabelValues(boolResult(success, ResultSuccess, ResultFailure)).Inc()
}

// RecordReporterSpan 记录 span 上报结果.
func (c *PrometheusCollector) RecordReporterSpan(result string) {
	c.reporterSpans.WithLabelValues(result).Inc()
}

// RecordReporterFlush 记录批次发送结果.
func (c *PrometheusCollector) RecordReporterFlush(success bool, spans int) {
	c.reporterFlushes.WithLabelValues(boolResult(success, ResultSuccess, ResultFailure)).Inc()
	if success {
		c.batchSpans.Observe(float64(spans))
	}
}

// Registry 返回私有注册表.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}

// GetHandler 返回 metrics 的 HTTP 处理器.
func (c *PrometheusCollector) GetHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// GetPath 返回 metrics 路径.
func (c *PrometheusCollector) GetPath() string {
	if c.config.Path == "" {
		return "/metrics"
	}
	return c.config.Path
}
