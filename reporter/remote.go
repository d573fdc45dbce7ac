package reporter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Tsukikage7/tracekit/codec"
	"github.com/Tsukikage7/tracekit/lock"
	"github.com/Tsukikage7/tracekit/logger"
	"github.com/Tsukikage7/tracekit/metrics"
	"github.com/Tsukikage7/tracekit/scheduler"
	"github.com/Tsukikage7/tracekit/span"
	"github.com/Tsukikage7/tracekit/transport"
)

// Remote 将 span 攒成批次后通过发送器投递.
//
// 批次大小按编码后的字节数计算，单个数据包不超过 maxPacketSize.
// 发送失败的批次直接丢弃，不会重试.
type Remote struct {
	sender        transport.Sender
	serializer    codec.Serializer
	maxPacketSize int
	budget        int
	logger        logger.Logger
	metrics       metrics.Collector

	flusher         *scheduler.Task
	shutdownTimeout time.Duration

	// batchMu 保护 batch、pending 与 closed
	batchMu sync.Mutex
	batch   [][]byte
	pending int
	closed  bool

	// connMu 串行化发送器的使用，与 batchMu 同时持有时必须经由 lock.Ordered
	connMu sync.Mutex
}

// NewRemote 创建批量上报器.
func NewRemote(sender transport.Sender, opts ...Option) (*Remote, error) {
	if sender == nil {
		return nil, ErrNilSender
	}
	o := applyOptions(opts)

	serializer := o.serializer
	if serializer == nil {
		if o.serviceName == "" {
			return nil, ErrEmptyServiceName
		}
		serializer = codec.NewProtobuf(o.serviceName, o.processTags...)
	}

	maxPacketSize := o.maxPacketSize
	if maxPacketSize == 0 {
		maxPacketSize = sender.MaxPacketSize()
	}
	if maxPacketSize <= 0 {
		return nil, ErrInvalidPacketSize
	}
	if o.flushInterval < 0 || (o.flushInterval > 0 && o.flushInterval < scheduler.MinInterval) {
		return nil, ErrInvalidFlushInterval
	}

	r := &Remote{
		sender:          sender,
		serializer:      serializer,
		maxPacketSize:   maxPacketSize,
		budget:          maxPacketSize - serializer.BatchOverhead(),
		logger:          o.logger,
		metrics:         o.metrics,
		shutdownTimeout: o.shutdownTimeout,
	}

	if o.flushInterval > 0 {
		task, err := scheduler.NewTask("reporter-flush", o.flushInterval, r.scheduledFlush,
			scheduler.WithLogger(o.logger))
		if err != nil {
			return nil, fmt.Errorf("reporter: 创建刷新任务失败: %w", err)
		}
		if err := task.Start(); err != nil {
			return nil, fmt.Errorf("reporter: 启动刷新任务失败: %w", err)
		}
		r.flusher = task
	}

	return r, nil
}

// Report 编码并追加到当前批次，放不下时先发送当前批次.
func (r *Remote) Report(sp *span.Span) {
	if sp == nil {
		return
	}

	data, err := r.serializer.SerializeSpan(sp)
	if err != nil {
		r.drop("编码失败", sp, err)
		return
	}
	if len(data) > r.budget {
		r.drop("超过数据包上限", sp, fmt.Errorf("%d > %d", len(data), r.budget))
		return
	}

	r.batchMu.Lock()
	if r.closed {
		r.batchMu.Unlock()
		r.drop("上报器已关闭", sp, transport.ErrClosed)
		return
	}
	if r.pending+len(data) <= r.budget {
		r.appendLocked(data)
		r.batchMu.Unlock()
		r.metrics.RecordReporterSpan(metrics.ResultReported)
		return
	}
	r.batchMu.Unlock()

	// 需要先发送当前批次，重新按顺序获取两把锁后再检查
	unlock := lock.Ordered(&r.batchMu, &r.connMu)
	if r.closed {
		unlock.Unlock()
		r.drop("上报器已关闭", sp, transport.ErrClosed)
		return
	}
	if r.pending+len(data) > r.budget {
		if !r.flushLocked() {
			r.logger.Warnf("[Reporter] 批次已满，发送失败后丢弃 [操作:%s]", sp.OperationName)
		}
	}
	r.appendLocked(data)
	unlock.Unlock()
	r.metrics.RecordReporterSpan(metrics.ResultReported)
}

func (r *Remote) appendLocked(data []byte) {
	r.batch = append(r.batch, data)
	r.pending += len(data)
}

func (r *Remote) drop(reason string, sp *span.Span, err error) {
	r.metrics.RecordReporterSpan(metrics.ResultDropped)
	r.logger.Warnf("[Reporter] 丢弃 span [原因:%s] [操作:%s] [错误:%v]", reason, sp.OperationName, err)
}

// Flush 发送当前批次.
//
// 批次为空、编码失败、数据包超限或发送失败时返回 false，失败的批次被丢弃.
func (r *Remote) Flush() bool {
	unlock := lock.Ordered(&r.batchMu, &r.connMu)
	defer unlock.Unlock()
	return r.flushLocked()
}

// flushLocked 调用方同时持有 batchMu 与 connMu.
func (r *Remote) flushLocked() bool {
	batch := r.batch
	r.batch, r.pending = nil, 0

	if len(batch) == 0 {
		return false
	}

	ok := r.send(batch)
	r.metrics.RecordReporterFlush(ok, len(batch))
	return ok
}

func (r *Remote) send(batch [][]byte) bool {
	payload, err := r.serializer.SerializeBatch(batch)
	if err != nil {
		r.logger.Errorf("[Reporter] 批次编码失败 [spans:%d] [错误:%v]", len(batch), err)
		return false
	}
	if len(payload) > r.maxPacketSize {
		r.logger.Errorf("[Reporter] 批次超过数据包上限 [spans:%d] [大小:%d] [上限:%d]",
			len(batch), len(payload), r.maxPacketSize)
		return false
	}
	if err := r.sender.Send(payload); err != nil {
		r.logger.Errorf("[Reporter] 批次发送失败 [spans:%d] [错误:%v]", len(batch), err)
		return false
	}
	return true
}

// Pending 返回当前批次中的 span 数.
func (r *Remote) Pending() int {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return len(r.batch)
}

// scheduledFlush 后台刷新，批次为空时跳过.
func (r *Remote) scheduledFlush(context.Context) error {
	if r.Pending() == 0 {
		return nil
	}
	if !r.Flush() {
		return ErrFlushFailed
	}
	return nil
}

// Close 停止后台刷新，发送剩余批次并关闭发送器. 重复调用返回 nil.
func (r *Remote) Close() error {
	r.batchMu.Lock()
	if r.closed {
		r.batchMu.Unlock()
		return nil
	}
	r.batchMu.Unlock()

	var errs []error
	if r.flusher != nil {
		if err := r.flusher.Stop(r.shutdownTimeout); err != nil {
			r.logger.Warnf("[Reporter] 后台刷新未在 %v 内退出，已放弃等待", r.shutdownTimeout)
			errs = append(errs, err)
		}
	}

	unlock := lock.Ordered(&r.batchMu, &r.connMu)
	defer unlock.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	if len(r.batch) > 0 {
		_ = r.flushLocked()
	}
	if err := r.sender.Close(); err != nil {
		errs = append(errs, fmt.Errorf("reporter: 关闭发送器失败: %w", err))
	}
	return errors.Join(errs...)
}
