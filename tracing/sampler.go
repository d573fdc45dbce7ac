package tracing

import (
	"encoding/binary"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/Tsukikage7/tracekit/sampler"
	"github.com/Tsukikage7/tracekit/span"
)

// otelSampler 将 sampler.Sampler 适配为 OpenTelemetry 采样器.
type otelSampler struct {
	sampler sampler.Sampler
}

// NewOTelSampler 创建 OpenTelemetry 采样器.
//
// 采样时决策标签作为 span 属性记录，不采样时丢弃. 父 span 的决策不参与判断，
// 需要时由调用方用 sdktrace.ParentBased 包装.
func NewOTelSampler(s sampler.Sampler) sdktrace.Sampler {
	return &otelSampler{sampler: s}
}

// ShouldSample 实现 sdktrace.Sampler.
func (o *otelSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	state := trace.SpanContextFromContext(p.ParentContext).TraceState()

	status := o.sampler.IsSampled(toTraceID(p.TraceID), p.Name)
	if !status.Sampled {
		return sdktrace.SamplingResult{Decision: sdktrace.Drop, Tracestate: state}
	}

	attrs := make([]attribute.KeyValue, 0, len(status.Tags))
	for _, t := range status.Tags {
		attrs = append(attrs, attribute.String(t.Key, t.Value))
	}
	return sdktrace.SamplingResult{
		Decision:   sdktrace.RecordAndSample,
		Attributes: attrs,
		Tracestate: state,
	}
}

// Description 实现 sdktrace.Sampler.
func (o *otelSampler) Description() string {
	return "TracekitSampler"
}

// toTraceID 按大端序拆分 16 字节 trace id.
func toTraceID(id trace.TraceID) span.TraceID {
	return span.TraceID{
		High: binary.BigEndian.Uint64(id[:8]),
		Low:  binary.BigEndian.Uint64(id[8:]),
	}
}
