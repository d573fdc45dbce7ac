// Package metrics 提供采样器与上报器的 Prometheus 指标收集功能.
package metrics

// 指标结果标签值.
const (
	ResultSampled    = "sampled"
	ResultNotSampled = "not_sampled"
	ResultSuccess    = "success"
	ResultFailure    = "failure"
	ResultReported   = "reported"
	ResultDropped    = "dropped"
)

// Collector 指标收集器接口.
type Collector interface {
	// 采样器指标
	RecordSamplerQuery(sampled bool)
	RecordSamplerUpdate(success bool)

	// 上报器指标
	RecordReporterSpan(result string)
	RecordReporterFlush(success bool, spans int)
}

// NewMetrics 创建指标收集器.
func NewMetrics(cfg *Config) (*PrometheusCollector, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	return NewPrometheus(cfg)
}

// MustNewMetrics 创建指标收集器，失败时 panic.
func MustNewMetrics(cfg *Config) *PrometheusCollector {
	c, err := NewMetrics(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

// Nop 返回不记录任何指标的收集器.
func Nop() Collector {
	return nopCollector{}
}

type nopCollector struct{}

func (nopCollector) RecordSamplerQuery(bool)       {}
func (nopCollector) RecordSamplerUpdate(bool)      {}
func (nopCollector) RecordReporterSpan(string)     {}
func (nopCollector) RecordReporterFlush(bool, int) {}

func boolResult(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
