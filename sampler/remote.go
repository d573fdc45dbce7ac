package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Tsukikage7/tracekit/lock"
	"github.com/Tsukikage7/tracekit/scheduler"
	"github.com/Tsukikage7/tracekit/span"
)

// RemotelyControlled 由远程策略驱动的采样器.
//
// 首次拉取成功前使用初始采样器. 拉取成功后，响应整体替换默认采样器与按操作采样表;
// 表满后新操作使用默认采样器，直到下一次成功拉取.
type RemotelyControlled struct {
	serviceName string
	opts        *options
	task        *scheduler.Task

	// stateMu 保护 effective、strategies 与 closed
	stateMu    sync.Mutex
	effective  Sampler
	strategies *Strategies
	closed     bool

	// tableMu 保护 table，与 stateMu 同时持有时必须经由 lock.Ordered
	tableMu sync.Mutex
	table   map[string]Sampler
}

// NewRemotelyControlled 创建远程采样器并启动后台刷新任务.
//
// 初始采样器由返回的采样器持有，在策略替换或 Close 时关闭.
func NewRemotelyControlled(serviceName string, opts ...Option) (*RemotelyControlled, error) {
	if serviceName == "" {
		return nil, ErrEmptyServiceName
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.fetcher == nil {
		return nil, ErrNilFetcher
	}
	if o.maxOperations <= 0 {
		return nil, ErrInvalidMaxOperations
	}
	if o.refreshInterval < scheduler.MinInterval {
		return nil, ErrInvalidRefreshInterval
	}
	if o.initial == nil {
		o.initial = NewProbabilistic(DefaultSamplingRate)
	}

	r := &RemotelyControlled{
		serviceName: serviceName,
		opts:        o,
		effective:   o.initial,
		table:       make(map[string]Sampler),
	}

	task, err := scheduler.NewTask("sampling-refresh:"+serviceName, o.refreshInterval, r.Refresh,
		scheduler.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("sampler: 创建刷新任务失败: %w", err)
	}
	if err := task.Start(); err != nil {
		return nil, fmt.Errorf("sampler: 启动刷新任务失败: %w", err)
	}
	r.task = task

	o.logger.Debugf("[Sampler] 远程采样器已启动 [服务:%s] [刷新间隔:%v] [最大操作数:%d]",
		serviceName, o.refreshInterval, o.maxOperations)
	return r, nil
}

// IsSampled 查询按操作采样表，不会发起网络请求.
func (r *RemotelyControlled) IsSampled(id span.TraceID, operation string) SamplingStatus {
	r.tableMu.Lock()
	s, ok := r.table[operation]
	r.tableMu.Unlock()

	if !ok {
		s = r.samplerFor(operation)
	}
	return s.IsSampled(id, operation)
}

// samplerFor 表中未命中时按当前策略创建条目，无法创建时返回默认采样器.
func (r *RemotelyControlled) samplerFor(operation string) Sampler {
	unlock := lock.Ordered(&r.stateMu, &r.tableMu)
	defer unlock.Unlock()

	if s, ok := r.table[operation]; ok {
		return s
	}

	if r.strategies == nil || r.closed || len(r.table) >= r.opts.maxOperations {
		return r.effective
	}

	ops := r.strategies.OperationSampling
	if ops == nil {
		return r.effective
	}

	s := NewGuaranteedThroughputProbabilistic(ops.DefaultLowerBoundTracesPerSecond,
		ops.DefaultSamplingProbability, r.opts.limiterOpts...)
	r.table[operation] = s
	return s
}

// Refresh 立即拉取一次策略，失败时保留原有状态.
func (r *RemotelyControlled) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.fetchTimeout)
	defer cancel()

	strategies, err := r.opts.fetcher.Fetch(ctx, r.serviceName)
	if err == nil {
		err = strategies.Validate()
	}
	if err != nil {
		r.opts.metrics.RecordSamplerUpdate(false)
		r.opts.logger.Warnf("[Sampler] 拉取采样策略失败 [服务:%s] [错误:%v]", r.serviceName, err)
		return err
	}

	r.stateMu.Lock()
	closed, same := r.closed, r.strategies.Equal(strategies)
	r.stateMu.Unlock()

	if closed {
		return ErrClosed
	}
	if same {
		r.opts.metrics.RecordSamplerUpdate(true)
		return nil
	}

	effective, table := r.build(strategies)

	unlock := lock.Ordered(&r.stateMu, &r.tableMu)
	if r.closed {
		unlock.Unlock()
		closeSamplers(effective, table)
		return ErrClosed
	}
	oldEffective, oldTable := r.effective, r.table
	r.effective, r.strategies, r.table = effective, strategies, table
	unlock.Unlock()

	if err := closeSamplers(oldEffective, oldTable); err != nil {
		r.opts.logger.Warnf("[Sampler] 关闭旧采样器失败 [服务:%s] [错误:%v]", r.serviceName, err)
	}

	r.opts.metrics.RecordSamplerUpdate(true)
	r.opts.logger.Debugf("[Sampler] 采样策略已更新 [服务:%s] [操作数:%d]", r.serviceName, len(table))
	return nil
}

// build 根据策略构建默认采样器与按操作采样表.
func (r *RemotelyControlled) build(s *Strategies) (Sampler, map[string]Sampler) {
	table := make(map[string]Sampler)

	if ops := s.OperationSampling; ops != nil {
		for _, op := range ops.PerOperationStrategies {
			if _, exists := table[op.Operation]; !exists && len(table) >= r.opts.maxOperations {
				break
			}
			table[op.Operation] = NewGuaranteedThroughputProbabilistic(ops.DefaultLowerBoundTracesPerSecond,
				op.ProbabilisticSampling.SamplingRate, r.opts.limiterOpts...)
		}
		return NewProbabilistic(ops.DefaultSamplingProbability), table
	}

	if s.StrategyType == StrategyRateLimiting {
		return NewRateLimiting(s.RateLimitingSampling.MaxTracesPerSecond, r.opts.limiterOpts...), table
	}
	return NewProbabilistic(s.ProbabilisticSampling.SamplingRate), table
}

// Operations 返回按操作采样表的当前条目数.
func (r *RemotelyControlled) Operations() int {
	r.tableMu.Lock()
	defer r.tableMu.Unlock()
	return len(r.table)
}

// Strategies 返回最近一次生效的策略，首次拉取成功前为 nil.
func (r *RemotelyControlled) Strategies() *Strategies {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.strategies
}

// Close 停止刷新任务并关闭持有的采样器.
//
// 刷新任务未在 shutdown timeout 内退出时放弃等待并返回 ErrShutdownTimeout.
func (r *RemotelyControlled) Close() error {
	r.stateMu.Lock()
	if r.closed {
		r.stateMu.Unlock()
		return nil
	}
	r.closed = true
	r.stateMu.Unlock()

	var errs []error
	if err := r.task.Stop(r.opts.shutdownTimeout); err != nil {
		r.opts.logger.Warnf("[Sampler] 刷新任务未在 %v 内退出，已放弃等待 [服务:%s]", r.opts.shutdownTimeout, r.serviceName)
		errs = append(errs, fmt.Errorf("%w: %w", ErrShutdownTimeout, err))
	}

	unlock := lock.Ordered(&r.stateMu, &r.tableMu)
	effective, table := r.effective, r.table
	r.table = make(map[string]Sampler)
	unlock.Unlock()

	if err := closeSamplers(effective, table); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func closeSamplers(effective Sampler, table map[string]Sampler) error {
	var errs []error
	for _, s := range table {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if effective != nil {
		if err := effective.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
