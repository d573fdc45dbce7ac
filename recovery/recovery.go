// Package recovery 将 panic 转换为错误.
//
// 用于隔离不可信的回调：单个回调 panic 时记录堆栈并返回 *PanicError，
// 调用方继续执行其余逻辑.
package recovery

import (
	"fmt"
	"runtime"

	"github.com/Tsukikage7/tracekit/logger"
)

// Handler 是 panic 处理函数.
type Handler func(p any, stack []byte)

// Options 配置选项.
type Options struct {
	// Logger 日志记录器，为空时不记录.
	Logger logger.Logger

	// Handler 自定义 panic 处理函数，在记录日志后调用.
	Handler Handler

	// StackSize 堆栈大小，默认 64KB.
	StackSize int

	// StackAll 是否捕获所有 goroutine 的堆栈，默认 false.
	StackAll bool
}

// Option 是配置函数.
type Option func(*Options)

// WithLogger 设置日志记录器.
func WithLogger(l logger.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithHandler 设置自定义 panic 处理函数.
func WithHandler(h Handler) Option {
	return func(o *Options) {
		o.Handler = h
	}
}

// WithStackSize 设置堆栈大小.
func WithStackSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.StackSize = size
		}
	}
}

// WithStackAll 设置是否捕获所有 goroutine 的堆栈.
func WithStackAll(all bool) Option {
	return func(o *Options) {
		o.StackAll = all
	}
}

// defaultOptions 返回默认配置.
func defaultOptions() *Options {
	return &Options{
		StackSize: 64 * 1024, // 64KB
		StackAll:  false,
	}
}

// applyOptions 应用配置选项.
func applyOptions(opts []Option) *Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Recoverer 复用同一组选项执行回调.
type Recoverer struct {
	opts *Options
}

// New 创建 Recoverer.
func New(opts ...Option) *Recoverer {
	return &Recoverer{opts: applyOptions(opts)}
}

// Call 执行 fn，fn panic 时返回 *PanicError.
func (r *Recoverer) Call(fn func() error) (err error) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		stack := captureStack(r.opts.StackSize, r.opts.StackAll)
		if r.opts.Logger != nil {
			r.opts.Logger.Errorf("[Recovery] panic 已恢复 [错误:%v]\n%s", p, stack)
		}
		if r.opts.Handler != nil {
			r.opts.Handler(p, stack)
		}
		err = &PanicError{Value: p, Stack: stack}
	}()
	return fn()
}

// Call 使用一次性选项执行 fn.
func Call(fn func() error, opts ...Option) error {
	return New(opts...).Call(fn)
}

// captureStack 捕获堆栈信息.
func captureStack(size int, all bool) []byte {
	stack := make([]byte, size)
	n := runtime.Stack(stack, all)
	return stack[:n]
}

// PanicError 表示 panic 错误.
type PanicError struct {
	// Value 是 panic 的值.
	Value any
	// Stack 是堆栈信息.
	Stack []byte
}

// Error 实现 error 接口.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap 返回原始错误（如果 panic 值是 error）.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
