package reporter

import (
	"time"

	"github.com/Tsukikage7/tracekit/codec"
	"github.com/Tsukikage7/tracekit/logger"
	"github.com/Tsukikage7/tracekit/metrics"
	"github.com/Tsukikage7/tracekit/span"
)

// 上报器默认值.
const (
	DefaultShutdownTimeout = 5 * time.Second
	defaultInitialCapacity = 64
)

// Option 上报器配置选项，各实现只读取与自身相关的字段.
type Option func(*options)

type options struct {
	logger  logger.Logger
	metrics metrics.Collector

	// Remote
	serializer      codec.Serializer
	serviceName     string
	processTags     []span.Tag
	maxPacketSize   int
	flushInterval   time.Duration
	shutdownTimeout time.Duration

	// InMemory
	maxSpans int
	alloc    allocFunc
}

func defaultOptions() *options {
	return &options{
		logger:          logger.Nop(),
		metrics:         metrics.Nop(),
		shutdownTimeout: DefaultShutdownTimeout,
		alloc:           makeBuffer,
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
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

// WithSerializer 设置 Remote 的编码器，默认使用 codec.Protobuf.
func WithSerializer(s codec.Serializer) Option {
	return func(o *options) {
		o.serializer = s
	}
}

// WithProcess 设置默认编码器使用的服务名与进程标签.
func WithProcess(serviceName string, tags ...span.Tag) Option {
	return func(o *options) {
		o.serviceName = serviceName
		o.processTags = tags
	}
}

// WithMaxPacketSize 设置单个数据包的最大字节数，默认取发送器的上限.
func WithMaxPacketSize(n int) Option {
	return func(o *options) {
		o.maxPacketSize = n
	}
}

// WithFlushInterval 设置后台刷新间隔，0 表示不启动后台刷新.
func WithFlushInterval(d time.Duration) Option {
	return func(o *options) {
		o.flushInterval = d
	}
}

// WithShutdownTimeout 设置 Close 等待后台刷新退出的时间.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithMaxSpans 设置 InMemory 最多保留的 span 数，0 表示不限制.
func WithMaxSpans(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxSpans = n
		}
	}
}

// withAllocator 替换 InMemory 的缓冲区分配函数.
func withAllocator(fn allocFunc) Option {
	return func(o *options) {
		o.alloc = fn
	}
}
