// Package reporter 提供已结束 span 的上报器.
//
// 所有实现都满足 Reporter 接口：Report 不返回错误，单个 span 的丢失只记录日志与指标;
// 批次级别的失败通过 Flush 的返回值暴露. Report(nil) 在所有实现中被忽略.
package reporter

import "github.com/Tsukikage7/tracekit/span"

// Reporter span 上报器.
type Reporter interface {
	// Report 上报一个已结束的 span，不阻塞调用方（触发批次发送时除外）.
	Report(sp *span.Span)

	// Flush 发送缓冲中的 span，仅在完整成功时返回 true.
	Flush() bool

	// Close 释放资源，重复调用返回 nil.
	Close() error
}

// Null 丢弃所有 span.
type Null struct{}

// NewNull 创建空上报器.
func NewNull() *Null {
	return &Null{}
}

// Report 不做任何处理.
func (*Null) Report(*span.Span) {}

// Flush 总是返回 true.
func (*Null) Flush() bool { return true }

// Close 总是返回 nil.
func (*Null) Close() error { return nil }

var (
	_ Reporter = (*Null)(nil)
	_ Reporter = (*Logging)(nil)
	_ Reporter = (*InMemory)(nil)
	_ Reporter = (*Composite)(nil)
	_ Reporter = (*Remote)(nil)
)
