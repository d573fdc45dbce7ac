// Package span 定义上报组件所需的只读 Span 快照.
//
// Span 的生命周期由外部 Tracer 管理，这里只描述序列化所需的字段：
// 标识、操作名、时间、标签、日志和引用.
package span

import (
	"fmt"
	"maps"
	"time"
)

// 采样标志位.
const (
	FlagSampled byte = 1 << 0
	FlagDebug   byte = 1 << 1
)

// TraceID 128 位链路标识.
type TraceID struct {
	High uint64
	Low  uint64
}

// IsValid 检查是否为有效 TraceID.
func (t TraceID) IsValid() bool {
	return t.High != 0 || t.Low != 0
}

// String 返回十六进制表示，High 为 0 时省略高位.
func (t TraceID) String() string {
	if t.High == 0 {
		return fmt.Sprintf("%016x", t.Low)
	}
	return fmt.Sprintf("%016x%016x", t.High, t.Low)
}

// SpanID 64 位 Span 标识.
type SpanID uint64

// String 返回十六进制表示.
func (s SpanID) String() string {
	return fmt.Sprintf("%016x", uint64(s))
}

// SpanContext 跨进程传递的 Span 上下文.
type SpanContext struct {
	TraceID  TraceID
	SpanID   SpanID
	ParentID SpanID
	Flags    byte
	Baggage  map[string]string
}

// IsSampled 是否已被采样.
func (c SpanContext) IsSampled() bool {
	return c.Flags&FlagSampled != 0
}

// Clone 深拷贝上下文.
func (c SpanContext) Clone() SpanContext {
	c.Baggage = maps.Clone(c.Baggage)
	return c
}

// Tag 键值标签，Value 支持 string、bool、整数、浮点数和 []byte.
type Tag struct {
	Key   string
	Value any
}

// LogRecord 带时间戳的日志记录.
type LogRecord struct {
	Timestamp time.Time
	Fields    []Tag
}

// ReferenceType 引用类型.
type ReferenceType int

const (
	// ChildOf 父子引用.
	ChildOf ReferenceType = iota
	// FollowsFrom 跟随引用.
	FollowsFrom
)

// Reference Span 间引用.
type Reference struct {
	Type    ReferenceType
	Context SpanContext
}

// Span 已结束 Span 的只读快照.
type Span struct {
	Context       SpanContext
	OperationName string
	StartTime     time.Time
	Duration      time.Duration
	Tags          []Tag
	Logs          []LogRecord
	References    []Reference
}

// Clone 返回深拷贝，切片、baggage 和 []byte 标签值均不与原对象共享.
func (s *Span) Clone() *Span {
	if s == nil {
		return nil
	}
	c := *s
	c.Context = s.Context.Clone()
	c.Tags = cloneTags(s.Tags)
	if s.Logs != nil {
		c.Logs = make([]LogRecord, len(s.Logs))
		for i, l := range s.Logs {
			c.Logs[i] = LogRecord{Timestamp: l.Timestamp, Fields: cloneTags(l.Fields)}
		}
	}
	if s.References != nil {
		c.References = make([]Reference, len(s.References))
		for i, r := range s.References {
			c.References[i] = Reference{Type: r.Type, Context: r.Context.Clone()}
		}
	}
	return &c
}

func cloneTags(tags []Tag) []Tag {
	if tags == nil {
		return nil
	}
	out := make([]Tag, len(tags))
	for i, t := range tags {
		if b, ok := t.Value.([]byte); ok {
			t.Value = append([]byte(nil), b...)
		}
		out[i] = t
	}
	return out
}
