// Package codec 提供 span 批次的线上编码.
//
// Protobuf 按 jaeger model.proto 的 Batch 布局编码：每个 span 在 SerializeSpan
// 时已编码为 Batch 的 spans 字段，批次即 process 字段与各 span 字段的拼接，
// 因此批次大小可以在追加前精确计算.
package codec

import "github.com/Tsukikage7/tracekit/span"

// Serializer span 批次编码器.
type Serializer interface {
	// SerializeSpan 编码单个 span，返回值长度即该 span 在批次中占用的字节数.
	SerializeSpan(sp *span.Span) ([]byte, error)

	// SerializeBatch 将已编码的 span 组成一个完整数据包.
	SerializeBatch(spans [][]byte) ([]byte, error)

	// BatchOverhead 返回批次中除 span 外的固定开销.
	BatchOverhead() int
}
