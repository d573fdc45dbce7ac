package reporter

import (
	"sync/atomic"

	"github.com/Tsukikage7/tracekit/logger"
	"github.com/Tsukikage7/tracekit/span"
)

// Logging 每个 span 输出一行信息日志，不做缓冲.
type Logging struct {
	logger logger.Logger
	closed atomic.Bool
}

// NewLogging 创建日志上报器，log 为空时不输出.
func NewLogging(log logger.Logger) *Logging {
	if log == nil {
		log = logger.Nop()
	}
	return &Logging{logger: log}
}

// Report 输出 span 摘要.
func (l *Logging) Report(sp *span.Span) {
	if sp == nil || l.closed.Load() {
		return
	}
	l.logger.Infof("[Reporter] 上报 span [操作:%s] [trace:%s] [span:%s] [耗时:%v] [标签:%d]",
		sp.OperationName, sp.Context.TraceID, sp.Context.SpanID, sp.Duration, len(sp.Tags))
}

// Flush 总是返回 true.
func (l *Logging) Flush() bool { return true }

// Close 同步日志缓冲，之后的 span 被忽略. 重复调用返回 nil.
func (l *Logging) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	_ = l.logger.Sync()
	return nil
}
