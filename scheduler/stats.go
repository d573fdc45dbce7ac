package scheduler

import (
	"context"
	"sync"
	"time"
)

// JobFunc 任务执行函数.
type JobFunc func(ctx context.Context) error

// Stats 任务执行统计快照.
type Stats struct {
	RunCount      int64         // 执行次数
	SuccessCount  int64         // 成功次数
	FailCount     int64         // 失败次数
	SkipCount     int64         // 跳过次数（上一次执行未完成）
	LastRunAt     time.Time     // 上次执行时间
	LastSuccessAt time.Time     // 上次成功时间
	LastFailAt    time.Time     // 上次失败时间
	LastError     error         // 上次错误
	LastDuration  time.Duration // 上次执行耗时
}

// jobStats 并发安全的统计记录.
type jobStats struct {
	mu sync.Mutex
	s  Stats
}

func (j *jobStats) snapshot() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.s
}

func (j *jobStats) recordStart(now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.s.RunCount++
	j.s.LastRunAt = now
}

func (j *jobStats) recordSuccess(duration time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.s.SuccessCount++
	j.s.LastSuccessAt = time.Now()
	j.s.LastDuration = duration
	j.s.LastError = nil
}

func (j *jobStats) recordFail(duration time.Duration, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.s.FailCount++
	j.s.LastFailAt = time.Now()
	j.s.LastDuration = duration
	j.s.LastError = err
}

func (j *jobStats) recordSkip() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.s.SkipCount++
}
