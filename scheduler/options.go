package scheduler

import (
	"time"

	"github.com/Tsukikage7/tracekit/logger"
)

// Option 任务配置选项.
type Option func(*options)

// options 任务内部配置.
type options struct {
	logger  logger.Logger
	hooks   *Hooks
	timeout time.Duration
}

// defaultOptions 返回默认配置.
func defaultOptions() *options {
	return &options{
		logger: logger.Nop(),
	}
}

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithHooks 设置任务钩子，nil 表示不使用钩子.
func WithHooks(hooks *Hooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithTimeout 设置单次执行的超时时间.
//
// 0 表示不限制，执行仍会在 Stop 时收到取消信号.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}
