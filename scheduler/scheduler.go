// Package scheduler 提供固定间隔的后台周期任务.
//
// 特性：
//   - 基于 robfig/cron 的固定间隔调度（最小 1 秒）
//   - 执行不重叠：上一次执行未完成时跳过本次调度
//   - 手动触发，与调度执行互斥
//   - 任务统计和 Hook 机制
//   - 有界等待的关闭
//
// 示例：
//
//	task := scheduler.MustNewTask("sampling-refresh", time.Minute, refresh,
//	    scheduler.WithLogger(log),
//	    scheduler.WithTimeout(5*time.Second),
//	)
//	task.Start()
//	defer task.Stop(5 * time.Second)
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// MinInterval 最小调度间隔，cron.Every 不支持亚秒级间隔.
const MinInterval = time.Second

// Task 周期任务.
type Task struct {
	name     string
	interval time.Duration
	fn       JobFunc
	opts     *options

	cron  *cron.Cron
	stats jobStats

	// runMu 保证调度执行与手动触发互斥
	runMu sync.Mutex
	wg    sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewTask 创建周期任务，需调用 Start 后才开始调度.
func NewTask(name string, interval time.Duration, fn JobFunc, opts ...Option) (*Task, error) {
	if name == "" {
		return nil, ErrJobNameEmpty
	}
	if fn == nil {
		return nil, ErrHandlerNil
	}
	if interval < MinInterval {
		return nil, ErrIntervalInvalid
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{
		name:     name,
		interval: interval,
		fn:       fn,
		opts:     o,
		ctx:      ctx,
		cancel:   cancel,
	}
	t.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{t})))
	t.cron.Schedule(cron.Every(interval), cron.FuncJob(t.scheduled))
	return t, nil
}

// MustNewTask 创建周期任务，失败时 panic.
func MustNewTask(name string, interval time.Duration, fn JobFunc, opts ...Option) *Task {
	t, err := NewTask(name, interval, fn, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name 返回任务名称.
func (t *Task) Name() string {
	return t.name
}

// Interval 返回调度间隔.
func (t *Task) Interval() time.Duration {
	return t.interval
}

// Start 启动调度，重复调用无副作用.
func (t *Task) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return ErrSchedulerClosed
	}
	if t.started {
		return nil
	}

	t.cron.Start()
	t.started = true
	t.opts.logger.Debugf("[Scheduler] 任务已启动: %s [interval:%v]", t.name, t.interval)
	return nil
}

// Trigger 立即同步执行一次，等待进行中的执行完成后开始.
func (t *Task) Trigger() error {
	if !t.track() {
		return ErrSchedulerClosed
	}
	defer t.wg.Done()

	// 等待进行中的执行完成，手动触发不会被跳过
	t.runMu.Lock()
	defer t.runMu.Unlock()
	return t.execute(SourceTrigger)
}

// Stats 返回执行统计快照.
func (t *Task) Stats() Stats {
	return t.stats.snapshot()
}

// Stop 停止调度并最多等待 timeout 让执行中的任务完成.
//
// 超时返回 ErrShutdownTimeout，执行中的任务已收到取消信号但不再等待.
// 重复调用返回 nil.
func (t *Task) Stop(timeout time.Duration) error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	started := t.started
	t.mu.Unlock()

	t.cancel()

	done := make(chan struct{})
	go func() {
		if started {
			<-t.cron.Stop().Done()
		}
		t.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		t.opts.logger.Debugf("[Scheduler] 任务已停止: %s", t.name)
		return nil
	case <-timer.C:
		t.opts.logger.Warnf("[Scheduler] 等待任务完成超时: %s [timeout:%v]", t.name, timeout)
		return ErrShutdownTimeout
	}
}

// track 在未停止时登记一次执行.
func (t *Task) track() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.wg.Add(1)
	return true
}

// scheduled 由 cron 调用，上一次执行未完成时跳过.
func (t *Task) scheduled() {
	if !t.track() {
		return
	}
	defer t.wg.Done()

	// 上一次执行（定时或手动）仍在进行，跳过本次
	if !t.runMu.TryLock() {
		t.stats.recordSkip()
		t.opts.hooks.skip(t.ctx, &Run{Task: t.name, Source: SourceSchedule, StartTime: time.Now()})
		t.opts.logger.Debugf("[Scheduler] 任务跳过（上一次执行未完成）: %s", t.name)
		return
	}
	defer t.runMu.Unlock()

	_ = t.execute(SourceSchedule)
}

// execute 执行一次任务，调用方持有 runMu.
func (t *Task) execute(source Source) error {
	ctx := t.ctx
	run := &Run{Task: t.name, Source: source, StartTime: time.Now()}

	// 前置钩子失败时不执行任务，也不计入统计
	if err := t.opts.hooks.before(ctx, run); err != nil {
		t.opts.logger.Debugf("[Scheduler] 前置钩子阻止任务执行 [job:%s] [source:%s] [error:%v]", t.name, source, err)
		return err
	}

	// 设置单次执行超时，Stop 时父 ctx 取消同样会传递下去
	execCtx, cancel := ctx, context.CancelFunc(func() {})
	if t.opts.timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, t.opts.timeout)
	}

	t.stats.recordStart(run.StartTime)
	err := t.fn(execCtx)
	cancel()

	run.Duration = time.Since(run.StartTime)
	run.Err = err

	if err == nil {
		t.stats.recordSuccess(run.Duration)
	} else {
		t.stats.recordFail(run.Duration, err)
		t.opts.logger.Debugf("[Scheduler] 任务执行失败: %s [source:%s] [error:%v]", t.name, source, err)
	}
	t.opts.hooks.finish(ctx, run)
	return err
}

// cronLogger 将 cron 内部日志转发到任务 logger.
type cronLogger struct {
	t *Task
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.t.opts.logger.Debugf("[Scheduler] %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.t.opts.logger.Errorf("[Scheduler] %s [job:%s] [error:%v] %v", msg, l.t.name, err, keysAndValues)
}
