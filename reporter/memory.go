package reporter

import (
	"fmt"
	"sync"

	"github.com/Tsukikage7/tracekit/metrics"
	"github.com/Tsukikage7/tracekit/span"
)

// allocFunc 分配容量为 n 的 span 缓冲区.
type allocFunc func(n int) ([]*span.Span, error)

func makeBuffer(n int) ([]*span.Span, error) {
	return make([]*span.Span, 0, n), nil
}

// InMemory 在内存中保存 span 副本，用于测试观察.
type InMemory struct {
	mu       sync.Mutex
	spans    []*span.Span
	dropped  int
	maxSpans int
	alloc    allocFunc
	metrics  metrics.Collector
}

// NewInMemory 创建内存上报器，初始缓冲区分配失败时返回 ErrAllocation.
func NewInMemory(opts ...Option) (*InMemory, error) {
	o := applyOptions(opts)

	capacity := defaultInitialCapacity
	if o.maxSpans > 0 && o.maxSpans < capacity {
		capacity = o.maxSpans
	}
	buf, err := o.alloc(capacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocation, err)
	}

	return &InMemory{
		spans:    buf,
		maxSpans: o.maxSpans,
		alloc:    o.alloc,
		metrics:  o.metrics,
	}, nil
}

// Report 保存 span 的深拷贝，超过上限或扩容失败时丢弃.
func (m *InMemory) Report(sp *span.Span) {
	if sp == nil {
		return
	}
	c := sp.Clone()

	m.mu.Lock()
	ok := m.appendLocked(c)
	if !ok {
		m.dropped++
	}
	m.mu.Unlock()

	if ok {
		m.metrics.RecordReporterSpan(metrics.ResultReported)
	} else {
		m.metrics.RecordReporterSpan(metrics.ResultDropped)
	}
}

func (m *InMemory) appendLocked(sp *span.Span) bool {
	if m.maxSpans > 0 && len(m.spans) >= m.maxSpans {
		return false
	}
	if len(m.spans) == cap(m.spans) {
		n := max(2*cap(m.spans), defaultInitialCapacity)
		if m.maxSpans > 0 {
			n = min(n, m.maxSpans)
		}
		buf, err := m.alloc(n)
		if err != nil {
			return false
		}
		m.spans = append(buf, m.spans...)
	}
	m.spans = append(m.spans, sp)
	return true
}

// Spans 返回已保存 span 的副本.
func (m *InMemory) Spans() []*span.Span {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*span.Span, len(m.spans))
	for i, sp := range m.spans {
		out[i] = sp.Clone()
	}
	return out
}

// Len 返回已保存的 span 数.
func (m *InMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.spans)
}

// Dropped 返回被丢弃的 span 数.
func (m *InMemory) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Reset 清空已保存的 span，保留缓冲区.
func (m *InMemory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.spans)
	m.spans = m.spans[:0]
	m.dropped = 0
}

// Flush 总是返回 true.
func (m *InMemory) Flush() bool { return true }

// Close 总是返回 nil，已保存的 span 仍可读取.
func (m *InMemory) Close() error { return nil }
