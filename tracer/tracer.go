package tracer

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/google/uuid"

	"github.com/Tsukikage7/tracekit/config"
	"github.com/Tsukikage7/tracekit/logger"
	"github.com/Tsukikage7/tracekit/metrics"
	"github.com/Tsukikage7/tracekit/reporter"
	"github.com/Tsukikage7/tracekit/retry"
	"github.com/Tsukikage7/tracekit/sampler"
	"github.com/Tsukikage7/tracekit/span"
	"github.com/Tsukikage7/tracekit/transport"
)

// Version 客户端版本.
const Version = "1.0.0"

// 进程标签键.
const (
	TagClientUUID    = "client-uuid"
	TagHostname      = "hostname"
	TagClientVersion = "jaeger.version"
)

// New 按配置创建采样上报管线.
//
// 构建失败时已创建的组件会被关闭后再返回错误. 未通过 WithLogger / WithMetrics 注入时
// 按配置创建 logger 与指标收集器，它们由返回的 Pipeline 持有.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// logger 与 metrics 为空时按配置创建
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var owned []func() error
	release := func() {
		for _, fn := range owned {
			_ = fn()
		}
	}

	if o.logger == nil {
		log, err := logger.NewLogger(&cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("tracer: 创建 logger 失败: %w", err)
		}
		o.logger = log
		owned = append(owned, log.Close)
	}
	o.logger = o.logger.With(logger.String("service", cfg.ServiceName))

	if o.metrics == nil && cfg.Metrics.Enabled {
		m, err := metrics.NewMetrics(&cfg.Metrics)
		if err != nil {
			release()
			return nil, fmt.Errorf("tracer: 创建指标收集器失败: %w", err)
		}
		o.metrics = m
	}
	if o.metrics == nil {
		o.metrics = metrics.Nop()
	}

	o.processTags = append(processTags(cfg), o.processTags...)

	s, err := buildSampler(cfg, o)
	if err != nil {
		release()
		return nil, err
	}

	r, err := buildReporter(cfg, o)
	if err != nil {
		_ = s.Close()
		release()
		return nil, err
	}

	p, err := NewPipeline(s, r,
		WithLogger(o.logger),
		WithMetrics(o.metrics),
		WithProcessTags(o.processTags...),
		WithBaggageLimits(cfg.Baggage),
	)
	if err != nil {
		_ = errors.Join(s.Close(), r.Close())
		release()
		return nil, err
	}
	p.owned = owned

	o.logger.Infof("[Tracer] 管线已创建 [采样器:%s] [上报器:%v]", cfg.Sampler.Type, cfg.Reporter.Kinds)
	return p, nil
}

// processTags 生成进程标签，配置中的静态标签按键排序追加.
func processTags(cfg *config.Config) []span.Tag {
	tags := []span.Tag{
		{Key: TagClientUUID, Value: uuid.NewString()},
		{Key: TagClientVersion, Value: "Go-" + Version},
	}
	if host, err := os.Hostname(); err == nil {
		tags = append(tags, span.Tag{Key: TagHostname, Value: host})
	}
	for _, k := range slices.Sorted(maps.Keys(cfg.Tags)) {
		tags = append(tags, span.Tag{Key: k, Value: cfg.Tags[k]})
	}
	return tags
}

func buildSampler(cfg *config.Config, o *options) (sampler.Sampler, error) {
	sc := cfg.Sampler
	switch sc.Type {
	case config.SamplerConst:
		return sampler.NewConst(sc.Param == 1), nil
	case config.SamplerProbabilistic:
		return sampler.NewProbabilistic(sc.Param), nil
	case config.SamplerRateLimiting:
		return sampler.NewRateLimiting(sc.Param), nil
	case config.SamplerLowerBound:
		return sampler.NewGuaranteedThroughputProbabilistic(sc.LowerBound, sc.Param), nil
	case config.SamplerRemote:
		fetcher, err := buildFetcher(sc, o)
		if err != nil {
			return nil, err
		}
		s, err := sampler.NewRemotelyControlled(cfg.ServiceName,
			sampler.WithFetcher(fetcher),
			sampler.WithInitialSampler(sampler.NewProbabilistic(sc.Param)),
			sampler.WithMaxOperations(sc.MaxOperations),
			sampler.WithRefreshInterval(sc.RefreshInterval),
			sampler.WithFetchTimeout(sc.FetchTimeout),
			sampler.WithLogger(o.logger),
			sampler.WithMetrics(o.metrics),
		)
		if err != nil {
			return nil, fmt.Errorf("tracer: 创建远程采样器失败: %w", err)
		}
		return s, nil
	}
	return nil, &config.ConfigError{Field: "sampler.type", Message: "unsupported sampler type: " + sc.Type}
}

func buildFetcher(sc config.SamplerConfig, o *options) (sampler.Fetcher, error) {
	if o.fetcher != nil {
		return o.fetcher, nil
	}
	if sc.Fetcher == config.FetcherConsul {
		f, err := sampler.NewConsulFetcher(sc.ConsulAddress, sc.ConsulPrefix)
		if err != nil {
			return nil, fmt.Errorf("tracer: 创建 consul 策略拉取器失败: %w", err)
		}
		return f, nil
	}
	return sampler.NewHTTPFetcher(sc.ServerURL,
		sampler.WithRetry(&retry.Config{
			MaxAttempts: sc.FetchAttempts,
			Delay:       retry.DefaultDelay,
			Backoff:     retry.ExponentialBackoff,
		}),
		sampler.WithHTTPLogger(o.logger),
	), nil
}

func buildReporter(cfg *config.Config, o *options) (reporter.Reporter, error) {
	built := make([]reporter.Reporter, 0, len(cfg.Reporter.Kinds))
	closeBuilt := func() {
		for _, r := range built {
			_ = r.Close()
		}
	}

	for _, kind := range cfg.Reporter.Kinds {
		r, err := buildOne(kind, cfg, o)
		if err != nil {
			closeBuilt()
			return nil, err
		}
		built = append(built, r)
	}

	if len(built) == 1 {
		return built[0], nil
	}
	c, err := reporter.NewComposite(built, reporter.WithLogger(o.logger))
	if err != nil {
		closeBuilt()
		return nil, err
	}
	return c, nil
}

func buildOne(kind string, cfg *config.Config, o *options) (reporter.Reporter, error) {
	rc := cfg.Reporter
	switch kind {
	case config.ReporterNull:
		return reporter.NewNull(), nil
	case config.ReporterLogging:
		return reporter.NewLogging(o.logger), nil
	case config.ReporterMemory:
		r, err := reporter.NewInMemory(reporter.WithMaxSpans(rc.MaxSpans), reporter.WithMetrics(o.metrics))
		if err != nil {
			return nil, fmt.Errorf("tracer: 创建内存上报器失败: %w", err)
		}
		return r, nil
	case config.ReporterRemote:
		sender := o.sender
		if sender == nil {
			udp, err := transport.NewUDP(rc.AgentHostPort,
				transport.WithMaxPacketSize(rc.MaxPacketSize),
				transport.WithWriteTimeout(rc.WriteTimeout),
				transport.WithLogger(o.logger),
			)
			if err != nil {
				return nil, fmt.Errorf("tracer: 连接 agent 失败: %w", err)
			}
			sender = udp
		}
		r, err := reporter.NewRemote(sender,
			reporter.WithProcess(cfg.ServiceName, o.processTags...),
			reporter.WithMaxPacketSize(min(rc.MaxPacketSize, sender.MaxPacketSize())),
			reporter.WithFlushInterval(rc.FlushInterval),
			reporter.WithLogger(o.logger),
			reporter.WithMetrics(o.metrics),
		)
		if err != nil {
			_ = sender.Close()
			return nil, fmt.Errorf("tracer: 创建远程上报器失败: %w", err)
		}
		return r, nil
	}
	return nil, &config.ConfigError{Field: "reporter.kinds", Message: "unsupported reporter: " + kind}
}
