// Package tracer 组合采样器与上报器，处理 span 结束时的采样与上报.
//
// 示例:
//
//	cfg := config.DefaultConfig("checkout")
//	p, err := tracer.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	p.Finish(sp)
package tracer

import (
	"errors"
	"slices"
	"sync"

	"github.com/Tsukikage7/tracekit/logger"
	"github.com/Tsukikage7/tracekit/metrics"
	"github.com/Tsukikage7/tracekit/reporter"
	"github.com/Tsukikage7/tracekit/sampler"
	"github.com/Tsukikage7/tracekit/span"
)

// Pipeline 采样上报管线，独占持有采样器与上报器.
type Pipeline struct {
	sampler     sampler.Sampler
	reporter    reporter.Reporter
	logger      logger.Logger
	metrics     metrics.Collector
	processTags []span.Tag
	baggage     span.BaggageLimits
	// owned New 创建的附属资源，Close 时最后释放
	owned []func() error

	mu     sync.Mutex
	closed bool
}

// NewPipeline 创建采样上报管线.
func NewPipeline(s sampler.Sampler, r reporter.Reporter, opts ...Option) (*Pipeline, error) {
	if s == nil {
		return nil, ErrNilSampler
	}
	if r == nil {
		return nil, ErrNilReporter
	}

	o := applyOptions(opts)

	return &Pipeline{
		sampler:     s,
		reporter:    r,
		logger:      o.logger,
		metrics:     o.metrics,
		processTags: o.processTags,
		baggage:     o.baggage,
	}, nil
}

// Decide 对新 trace 做出采样决策.
func (p *Pipeline) Decide(id span.TraceID, operation string) sampler.SamplingStatus {
	status := p.sampler.IsSampled(id, operation)
	p.metrics.RecordSamplerQuery(status.Sampled)
	return status
}

// Finish 处理已结束的 span.
//
// 已标记采样的 span 直接上报；否则询问采样器，采样时将决策标签追加到副本后上报.
// 超出 baggage 限制的 span 在副本上裁剪后上报，调用方的 span 不会被修改.
func (p *Pipeline) Finish(sp *span.Span) {
	if sp == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("[Tracer] 处理 span 时发生 panic [操作:%s] [错误:%v]", sp.OperationName, r)
		}
	}()

	if sp.Context.IsSampled() {
		if !p.baggage.Allows(sp.Context.Baggage) {
			sp = sp.Clone()
			p.limitBaggage(sp)
		}
		p.reporter.Report(sp)
		return
	}

	status := p.Decide(sp.Context.TraceID, sp.OperationName)
	if !status.Sampled {
		return
	}

	c := sp.Clone()
	p.limitBaggage(c)
	c.Context.Flags |= span.FlagSampled
	c.Tags = slices.Grow(c.Tags, len(status.Tags))
	for _, t := range status.Tags {
		c.Tags = append(c.Tags, span.Tag{Key: t.Key, Value: t.Value})
	}
	p.reporter.Report(c)
}

func (p *Pipeline) limitBaggage(sp *span.Span) {
	if dropped := sp.Context.LimitBaggage(p.baggage); dropped > 0 {
		p.logger.Debugf("[Tracer] baggage 超出限制 [操作:%s] [丢弃:%d]", sp.OperationName, dropped)
	}
}

// MergeBaggage 按管线的 baggage 限制合并提取到的条目，返回被丢弃的条目数.
func (p *Pipeline) MergeBaggage(sc *span.SpanContext, items map[string]string) int {
	return sc.MergeBaggage(items, p.baggage)
}

// BaggageLimits 返回 baggage 限制.
func (p *Pipeline) BaggageLimits() span.BaggageLimits {
	return p.baggage
}

// Flush 刷新上报器.
func (p *Pipeline) Flush() bool {
	return p.reporter.Flush()
}

// Sampler 返回采样器.
func (p *Pipeline) Sampler() sampler.Sampler {
	return p.sampler
}

// Reporter 返回上报器.
func (p *Pipeline) Reporter() reporter.Reporter {
	return p.reporter
}

// Metrics 返回指标收集器.
func (p *Pipeline) Metrics() metrics.Collector {
	return p.metrics
}

// ProcessTags 返回进程标签副本.
func (p *Pipeline) ProcessTags() []span.Tag {
	return slices.Clone(p.processTags)
}

// Close 依次关闭采样器与上报器并汇总错误，重复调用返回 nil.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := errors.Join(p.sampler.Close(), p.reporter.Close())
	if err != nil {
		p.logger.Warnf("[Tracer] 关闭失败 [错误:%v]", err)
	}
	if len(p.owned) == 0 {
		_ = p.logger.Sync()
	}
	for _, release := range p.owned {
		err = errors.Join(err, release())
	}
	return err
}
