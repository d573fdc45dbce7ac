package sampler

import (
	"time"

	"github.com/Tsukikage7/tracekit/logger"
	"github.com/Tsukikage7/tracekit/metrics"
	"github.com/Tsukikage7/tracekit/ratelimit"
)

// 远程采样默认值.
const (
	DefaultMaxOperations   = 2000
	DefaultRefreshInterval = time.Minute
	DefaultShutdownTimeout = 5 * time.Second
	DefaultFetchTimeout    = 5 * time.Second
	DefaultSamplingRate    = 0.001
)

// Option RemotelyControlled 配置选项.
type Option func(*options)

type options struct {
	initial         Sampler
	maxOperations   int
	refreshInterval time.Duration
	fetcher         Fetcher
	logger          logger.Logger
	metrics         metrics.Collector
	shutdownTimeout time.Duration
	fetchTimeout    time.Duration
	limiterOpts     []ratelimit.Option
}

func defaultOptions() *options {
	return &options{
		maxOperations:   DefaultMaxOperations,
		refreshInterval: DefaultRefreshInterval,
		logger:          logger.Nop(),
		metrics:         metrics.Nop(),
		shutdownTimeout: DefaultShutdownTimeout,
		fetchTimeout:    DefaultFetchTimeout,
	}
}

// WithInitialSampler 设置首次拉取成功前使用的采样器，默认 Probabilistic(0.001).
func WithInitialSampler(s Sampler) Option {
	return func(o *options) {
		o.initial = s
	}
}

// WithMaxOperations 设置按操作采样表的容量.
func WithMaxOperations(n int) Option {
	return func(o *options) {
		o.maxOperations = n
	}
}

// WithRefreshInterval 设置策略刷新间隔，不能小于 1 秒.
func WithRefreshInterval(d time.Duration) Option {
	return func(o *options) {
		o.refreshInterval = d
	}
}

// WithFetcher 设置策略拉取器.
func WithFetcher(f Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
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

// WithMetrics 设置指标收集器.
func WithMetrics(m metrics.Collector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithShutdownTimeout 设置 Close 等待刷新任务退出的时间.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithFetchTimeout 设置单次拉取的超时时间.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fetchTimeout = d
		}
	}
}

// WithLimiterOptions 设置远程策略创建的限流器选项，用于注入时钟.
func WithLimiterOptions(opts ...ratelimit.Option) Option {
	return func(o *options) {
		o.limiterOpts = append(o.limiterOpts, opts...)
	}
}
