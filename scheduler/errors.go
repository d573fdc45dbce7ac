package scheduler

import "errors"

// 预定义错误.
var (
	// ErrJobNameEmpty 任务名称为空.
	ErrJobNameEmpty = errors.New("scheduler: job name is required")

	// ErrHandlerNil 任务处理函数为空.
	ErrHandlerNil = errors.New("scheduler: job handler is required")

	// ErrIntervalInvalid 调度间隔小于 1 秒.
	ErrIntervalInvalid = errors.New("scheduler: interval must be at least 1s")

	// ErrSchedulerClosed 调度器已关闭.
	ErrSchedulerClosed = errors.New("scheduler: scheduler is closed")

	// ErrShutdownTimeout 等待执行中的任务超时.
	ErrShutdownTimeout = errors.New("scheduler: shutdown timed out waiting for running job")
)
