package tracer

import (
	"github.com/Tsukikage7/tracekit/logger"
	"github.com/Tsukikage7/tracekit/metrics"
	"github.com/Tsukikage7/tracekit/sampler"
	"github.com/Tsukikage7/tracekit/span"
	"github.com/Tsukikage7/tracekit/transport"
)

// Option Pipeline 配置选项.
type Option func(*options)

type options struct {
	logger      logger.Logger
	metrics     metrics.Collector
	processTags []span.Tag
	baggage     span.BaggageLimits

	// 仅 New 使用
	fetcher sampler.Fetcher
	sender  transport.Sender
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.Nop()
	}
	if o.metrics == nil {
		o.metrics = metrics.Nop()
	}
	return o
}

// WithLogger 设置日志记录器，New 默认按配置创建.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithMetrics 设置指标收集器，New 默认按配置创建.
func WithMetrics(m metrics.Collector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithProcessTags 设置进程标签.
func WithProcessTags(tags ...span.Tag) Option {
	return func(o *options) {
		o.processTags = append(o.processTags, tags...)
	}
}

// WithBaggageLimits 设置 baggage 限制，零值表示不限制.
func WithBaggageLimits(limits span.BaggageLimits) Option {
	return func(o *options) {
		o.baggage = limits
	}
}

// WithFetcher 替换远程采样的策略拉取器.
func WithFetcher(f sampler.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// WithSender 替换 remote 上报器的发送器.
func WithSender(s transport.Sender) Option {
	return func(o *options) {
		o.sender = s
	}
}
