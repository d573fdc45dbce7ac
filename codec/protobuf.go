package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/Tsukikage7/tracekit/span"
)

// model.proto 字段编号.
const (
	batchSpans   protowire.Number = 1
	batchProcess protowire.Number = 2

	spanTraceID    protowire.Number = 1
	spanSpanID     protowire.Number = 2
	spanOperation  protowire.Number = 3
	spanReferences protowire.Number = 4
	spanFlags      protowire.Number = 5
	spanStartTime  protowire.Number = 6
	spanDuration   protowire.Number = 7
	spanTags       protowire.Number = 8
	spanLogs       protowire.Number = 9

	refTraceID protowire.Number = 1
	refSpanID  protowire.Number = 2
	refType    protowire.Number = 3

	kvKey     protowire.Number = 1
	kvType    protowire.Number = 2
	kvStr     protowire.Number = 3
	kvBool    protowire.Number = 4
	kvInt64   protowire.Number = 5
	kvFloat64 protowire.Number = 6
	kvBinary  protowire.Number = 7

	logTimestamp protowire.Number = 1
	logFields    protowire.Number = 2

	processServiceName protowire.Number = 1
	processTags        protowire.Number = 2

	tsSeconds protowire.Number = 1
	tsNanos   protowire.Number = 2
)

// ValueType model.proto 中的标签值类型.
type ValueType int

const (
	ValueString ValueType = iota
	ValueBool
	ValueInt64
	ValueFloat64
	ValueBinary
)

// Protobuf jaeger model.proto 编码器.
type Protobuf struct {
	process []byte
}

// NewProtobuf 创建编码器，process 信息在创建时编码一次.
func NewProtobuf(serviceName string, tags ...span.Tag) *Protobuf {
	var p []byte
	p = protowire.AppendTag(p, processServiceName, protowire.BytesType)
	p = protowire.AppendString(p, serviceName)
	for _, tag := range tags {
		p = protowire.AppendTag(p, processTags, protowire.BytesType)
		p = protowire.AppendBytes(p, appendKeyValue(nil, tag))
	}

	var framed []byte
	framed = protowire.AppendTag(framed, batchProcess, protowire.BytesType)
	framed = protowire.AppendBytes(framed, p)
	return &Protobuf{process: framed}
}

// SerializeSpan 编码单个 span 为 Batch.spans 字段.
func (p *Protobuf) SerializeSpan(sp *span.Span) ([]byte, error) {
	if sp == nil {
		return nil, ErrNilSpan
	}

	body := appendSpan(nil, sp)
	out := make([]byte, 0, len(body)+protowire.SizeTag(batchSpans)+protowire.SizeVarint(uint64(len(body))))
	out = protowire.AppendTag(out, batchSpans, protowire.BytesType)
	out = protowire.AppendBytes(out, body)
	return out, nil
}

// SerializeBatch 拼接 process 与已编码的 span.
func (p *Protobuf) SerializeBatch(spans [][]byte) ([]byte, error) {
	size := len(p.process)
	for _, s := range spans {
		size += len(s)
	}

	out := make([]byte, 0, size)
	out = append(out, p.process...)
	for _, s := range spans {
		out = append(out, s...)
	}
	return out, nil
}

// BatchOverhead 返回 process 字段长度.
func (p *Protobuf) BatchOverhead() int {
	return len(p.process)
}

func appendSpan(b []byte, sp *span.Span) []byte {
	ctx := sp.Context

	b = protowire.AppendTag(b, spanTraceID, protowire.BytesType)
	b = protowire.AppendBytes(b, traceIDBytes(ctx.TraceID))
	b = protowire.AppendTag(b, spanSpanID, protowire.BytesType)
	b = protowire.AppendBytes(b, spanIDBytes(ctx.SpanID))

	if sp.OperationName != "" {
		b = protowire.AppendTag(b, spanOperation, protowire.BytesType)
		b = protowire.AppendString(b, sp.OperationName)
	}

	// 父 span 以 CHILD_OF 引用表达
	if ctx.ParentID != 0 {
		b = appendReference(b, span.Reference{
			Type:    span.ChildOf,
			Context: span.SpanContext{TraceID: ctx.TraceID, SpanID: ctx.ParentID},
		})
	}
	for _, ref := range sp.References {
		if ref.Type == span.ChildOf && ref.Context.SpanID == ctx.ParentID && ref.Context.TraceID == ctx.TraceID {
			continue
		}
		b = appendReference(b, ref)
	}

	if ctx.Flags != 0 {
		b = protowire.AppendTag(b, spanFlags, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(ctx.Flags))
	}

	b = protowire.AppendTag(b, spanStartTime, protowire.BytesType)
	b = protowire.AppendBytes(b, appendTimestamp(nil, sp.StartTime.Unix(), int32(sp.StartTime.Nanosecond())))
	b = protowire.AppendTag(b, spanDuration, protowire.BytesType)
	b = protowire.AppendBytes(b, appendTimestamp(nil, int64(sp.Duration/time.Second), int32(sp.Duration%time.Second)))

	for _, tag := range sp.Tags {
		b = protowire.AppendTag(b, spanTags, protowire.BytesType)
		b = protowire.AppendBytes(b, appendKeyValue(nil, tag))
	}

	for _, log := range sp.Logs {
		var l []byte
		l = protowire.AppendTag(l, logTimestamp, protowire.BytesType)
		l = protowire.AppendBytes(l, appendTimestamp(nil, log.Timestamp.Unix(), int32(log.Timestamp.Nanosecond())))
		for _, f := range log.Fields {
			l = protowire.AppendTag(l, logFields, protowire.BytesType)
			l = protowire.AppendBytes(l, appendKeyValue(nil, f))
		}
		b = protowire.AppendTag(b, spanLogs, protowire.BytesType)
		b = protowire.AppendBytes(b, l)
	}

	return b
}

func appendReference(b []byte, ref span.Reference) []byte {
	var r []byte
	r = protowire.AppendTag(r, refTraceID, protowire.BytesType)
	r = protowire.AppendBytes(r, traceIDBytes(ref.Context.TraceID))
	r = protowire.AppendTag(r, refSpanID, protowire.BytesType)
	r = protowire.AppendBytes(r, spanIDBytes(ref.Context.SpanID))
	if ref.Type == span.FollowsFrom {
		r = protowire.AppendTag(r, refType, protowire.VarintType)
		r = protowire.AppendVarint(r, 1)
	}

	b = protowire.AppendTag(b, spanReferences, protowire.BytesType)
	return protowire.AppendBytes(b, r)
}

func appendTimestamp(b []byte, seconds int64, nanos int32) []byte {
	if seconds != 0 {
		b = protowire.AppendTag(b, tsSeconds, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(seconds))
	}
	if nanos != 0 {
		b = protowire.AppendTag(b, tsNanos, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(nanos))
	}
	return b
}

func appendKeyValue(b []byte, tag span.Tag) []byte {
	b = protowire.AppendTag(b, kvKey, protowire.BytesType)
	b = protowire.AppendString(b, tag.Key)

	switch v := tag.Value.(type) {
	case string:
		b = appendString(b, v)
	case bool:
		b = appendType(b, ValueBool)
		if v {
			b = protowire.AppendTag(b, kvBool, protowire.VarintType)
			b = protowire.AppendVarint(b, 1)
		}
	case int:
		b = appendInt(b, int64(v))
	case int32:
		b = appendInt(b, int64(v))
	case int64:
		b = appendInt(b, v)
	case uint32:
		b = appendInt(b, int64(v))
	case float32:
		b = appendFloat(b, float64(v))
	case float64:
		b = appendFloat(b, v)
	case []byte:
		b = appendType(b, ValueBinary)
		if len(v) > 0 {
			b = protowire.AppendTag(b, kvBinary, protowire.BytesType)
			b = protowire.AppendBytes(b, v)
		}
	case nil:
		b = appendString(b, "")
	default:
		b = appendString(b, fmt.Sprint(v))
	}
	return b
}

func appendType(b []byte, t ValueType) []byte {
	b = protowire.AppendTag(b, kvType, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(t))
}

func appendString(b []byte, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, kvStr, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendInt(b []byte, v int64) []byte {
	b = appendType(b, ValueInt64)
	if v != 0 {
		b = protowire.AppendTag(b, kvInt64, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v))
	}
	return b
}

func appendFloat(b []byte, v float64) []byte {
	b = appendType(b, ValueFloat64)
	if v != 0 {
		b = protowire.AppendTag(b, kvFloat64, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}

// traceIDBytes 以大端序编码，高 64 位在前.
func traceIDBytes(id span.TraceID) []byte {
	out := make([]byte, 16)
	binary.BigEndian.PutUint64(out[:8], id.High)
	binary.BigEndian.PutUint64(out[8:], id.Low)
	return out
}

func spanIDBytes(id span.SpanID) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, uint64(id))
	return out
}
