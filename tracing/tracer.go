package tracing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/Tsukikage7/tracekit/sampler"
)

// ProviderOption TracerProvider 配置选项.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	sampler     sampler.Sampler
	parentBased bool
	exporter    trace.SpanExporter
	global      bool
}

// WithSampler 使用 tracekit 采样器做采样决策，未设置时按 cfg.SamplingRate 采样.
func WithSampler(s sampler.Sampler) ProviderOption {
	return func(o *providerOptions) {
		o.sampler = s
	}
}

// WithParentBased 有父 span 时沿用父 span 的采样决策，仅根 span 交给采样器.
func WithParentBased() ProviderOption {
	return func(o *providerOptions) {
		o.parentBased = true
	}
}

// WithExporter 替换 OTLP 导出器，设置后不再要求 OTLP 端点.
func WithExporter(exp trace.SpanExporter) ProviderOption {
	return func(o *providerOptions) {
		o.exporter = exp
	}
}

// WithoutGlobal 不修改全局 TracerProvider 与传播器.
func WithoutGlobal() ProviderOption {
	return func(o *providerOptions) {
		o.global = false
	}
}

// NewTracerProvider 创建由采样器驱动的 TracerProvider.
//
// 使用示例:
//
//	tp, err := tracing.NewTracerProvider(cfg, "checkout", "1.2.0",
//	    tracing.WithSampler(remote),
//	    tracing.WithParentBased(),
//	)
//	defer tp.Shutdown(ctx)
func NewTracerProvider(cfg *TracingConfig, serviceName, serviceVersion string, opts ...ProviderOption) (*trace.TracerProvider, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	if !cfg.Enabled {
		// 返回无操作的追踪器
		return trace.NewTracerProvider(), nil
	}

	if serviceName == "" {
		return nil, ErrEmptyServiceName
	}

	o := &providerOptions{global: true}
	for _, opt := range opts {
		opt(o)
	}

	// 未注入导出器时创建 OTLP HTTP 导出器
	exp := o.exporter
	if exp == nil {
		var err error
		if exp, err = newOTLPExporter(cfg.OTLP); err != nil {
			return nil, err
		}
	}

	// 创建资源
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateResource, err)
	}

	// 根 span 的采样器，按需包装为父决策优先
	root := otelSamplerFor(cfg, o.sampler)
	if o.parentBased {
		root = trace.ParentBased(root)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
		trace.WithSampler(root),
	)

	if o.global {
		// 设置全局 TracerProvider 与传播器
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	return tp, nil
}

// MustNewTracerProvider 创建 TracerProvider，失败时 panic.
func MustNewTracerProvider(cfg *TracingConfig, serviceName, serviceVersion string, opts ...ProviderOption) *trace.TracerProvider {
	tp, err := NewTracerProvider(cfg, serviceName, serviceVersion, opts...)
	if err != nil {
		panic(err)
	}
	return tp
}

// newOTLPExporter 按配置创建 OTLP HTTP 导出器.
func newOTLPExporter(cfg *OTLPConfig) (trace.SpanExporter, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, ErrEmptyEndpoint
	}

	// 导出器只接受 host:port，移除协议前缀
	endpoint := cfg.Endpoint
	if after, ok := strings.CutPrefix(endpoint, "http://"); ok {
		endpoint = after
	}
	if after, ok := strings.CutPrefix(endpoint, "https://"); ok {
		endpoint = after
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // 使用 HTTP 而不是 HTTPS
	}

	// 添加请求头
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}

	exp, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateExporter, err)
	}
	return exp, nil
}

// otelSamplerFor 优先使用 tracekit 采样器，否则按采样率采样.
func otelSamplerFor(cfg *TracingConfig, s sampler.Sampler) trace.Sampler {
	if s != nil {
		return NewOTelSampler(s)
	}
	// 采样率非法时默认 100%
	rate := cfg.SamplingRate
	if rate <= 0 || rate > 1 {
		rate = 1.0
	}
	return trace.TraceIDRatioBased(rate)
}
