package scheduler

import (
	"context"
	"time"
)

// Source 执行来源.
type Source int

const (
	// SourceSchedule 由 cron 定时触发.
	SourceSchedule Source = iota
	// SourceTrigger 由 Trigger 手动触发.
	SourceTrigger
)

// String 返回来源名称.
func (s Source) String() string {
	switch s {
	case SourceSchedule:
		return "schedule"
	case SourceTrigger:
		return "trigger"
	default:
		return "unknown"
	}
}

// Run 单次执行的信息，在各个钩子之间传递.
type Run struct {
	// Task 任务名称.
	Task string

	// Source 执行来源.
	Source Source

	// StartTime 开始执行时间.
	StartTime time.Time

	// Duration 执行耗时（Before/OnSkip 中为 0）.
	Duration time.Duration

	// Err 执行错误（仅在 After/OnError 中有值）.
	Err error
}

// Hooks 任务钩子，未设置的钩子被忽略.
//
// 钩子在执行任务的 goroutine 中同步调用，ctx 在 Stop 时被取消.
type Hooks struct {
	// Before 执行前回调，返回 error 将取消本次执行且不计入统计.
	Before func(ctx context.Context, run *Run) error

	// After 执行后回调，无论成功失败都会调用.
	After func(ctx context.Context, run *Run)

	// OnError 执行失败回调，先于 After 调用.
	OnError func(ctx context.Context, run *Run)

	// OnSkip 定时触发时上一次执行未完成，本次被跳过.
	OnSkip func(ctx context.Context, run *Run)
}

func (h *Hooks) before(ctx context.Context, run *Run) error {
	if h == nil || h.Before == nil {
		return nil
	}
	return h.Before(ctx, run)
}

// finish 按执行结果调用 OnError 与 After.
func (h *Hooks) finish(ctx context.Context, run *Run) {
	if h == nil {
		return
	}
	if run.Err != nil && h.OnError != nil {
		h.OnError(ctx, run)
	}
	if h.After != nil {
		h.After(ctx, run)
	}
}

func (h *Hooks) skip(ctx context.Context, run *Run) {
	if h == nil || h.OnSkip == nil {
		return
	}
	h.OnSkip(ctx, run)
}
