package reporter

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Tsukikage7/tracekit/logger"
	"github.com/Tsukikage7/tracekit/recovery"
	"github.com/Tsukikage7/tracekit/span"
)

// Composite 将调用依次分发给全部子上报器.
//
// 子上报器归 Composite 独占，Close 时一并关闭. 单个子上报器 panic 会被恢复并记录，
// 不影响其余子上报器.
type Composite struct {
	reporters []Reporter
	logger    logger.Logger
	recoverer *recovery.Recoverer

	mu     sync.Mutex
	closed bool
}

// NewComposite 创建组合上报器，子上报器不能为空.
func NewComposite(reporters []Reporter, opts ...Option) (*Composite, error) {
	for i, r := range reporters {
		if r == nil {
			return nil, fmt.Errorf("%w: index %d", ErrNilReporter, i)
		}
	}
	o := applyOptions(opts)

	return &Composite{
		reporters: append([]Reporter(nil), reporters...),
		logger:    o.logger,
		recoverer: recovery.New(recovery.WithStackSize(8 * 1024)),
	}, nil
}

// Report 分发给每个子上报器.
func (c *Composite) Report(sp *span.Span) {
	if sp == nil {
		return
	}
	for i, r := range c.reporters {
		_ = c.call(i, "report", func() error {
			r.Report(sp)
			return nil
		})
	}
}

// Flush 刷新每个子上报器，全部成功才返回 true.
func (c *Composite) Flush() bool {
	ok := true
	for i, r := range c.reporters {
		err := c.call(i, "flush", func() error {
			if !r.Flush() {
				return ErrFlushFailed
			}
			return nil
		})
		if err != nil {
			ok = false
		}
	}
	return ok
}

// Close 关闭每个子上报器并汇总错误，重复调用返回 nil.
func (c *Composite) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var errs []error
	for i, r := range c.reporters {
		if err := c.call(i, "close", r.Close); err != nil {
			errs = append(errs, fmt.Errorf("reporter %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Len 返回子上报器数量.
func (c *Composite) Len() int {
	return len(c.reporters)
}

// call 执行一次子上报器调用并将 panic 转为错误.
func (c *Composite) call(i int, op string, fn func() error) error {
	err := c.recoverer.Call(fn)

	var pe *recovery.PanicError
	if errors.As(err, &pe) {
		c.logger.Errorf("[Reporter] 子上报器 panic [序号:%d] [操作:%s] [错误:%v]\n%s", i, op, pe.Value, pe.Stack)
		return fmt.Errorf("%w: %w", ErrPanic, pe)
	}
	return err
}
