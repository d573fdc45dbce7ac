package sampler

import (
	"math"
	"strconv"
	"sync"

	"github.com/Tsukikage7/tracekit/ratelimit"
	"github.com/Tsukikage7/tracekit/span"
)

// maxRandom trace id 低 64 位参与比较的取值上界.
const maxRandom = math.MaxInt64

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Const 固定决策采样器.
type Const struct {
	decision bool
	tags     []Tag
}

// NewConst 创建固定决策采样器.
func NewConst(decision bool) *Const {
	return &Const{
		decision: decision,
		tags:     typeTags(TypeConst, strconv.FormatBool(decision)),
	}
}

// IsSampled 返回固定决策.
func (c *Const) IsSampled(span.TraceID, string) SamplingStatus {
	return newStatus(c.decision, c.tags)
}

// Close 无资源需要释放.
func (c *Const) Close() error { return nil }

// Probabilistic 按 trace id 确定性采样，同一 trace id 的决策在所有服务中一致.
type Probabilistic struct {
	rate     float64
	boundary uint64
	tags     []Tag
}

// NewProbabilistic 创建概率采样器，rate 被限制在 [0, 1].
func NewProbabilistic(rate float64) *Probabilistic {
	if math.IsNaN(rate) || rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	return &Probabilistic{
		rate:     rate,
		boundary: uint64(rate * float64(maxRandom)),
		tags:     typeTags(TypeProbabilistic, formatFloat(rate)),
	}
}

// SamplingRate 返回采样率.
func (p *Probabilistic) SamplingRate() float64 {
	return p.rate
}

// IsSampled 比较 trace id 低 63 位与采样边界.
func (p *Probabilistic) IsSampled(id span.TraceID, _ string) SamplingStatus {
	return newStatus(p.sample(id), p.tags)
}

func (p *Probabilistic) sample(id span.TraceID) bool {
	if p.rate >= 1 {
		return true
	}
	return id.Low&maxRandom < p.boundary
}

// Close 无资源需要释放.
func (p *Probabilistic) Close() error { return nil }

// RateLimiting 每秒最多采样固定数量的 trace.
type RateLimiting struct {
	rate float64
	tags []Tag

	mu     sync.Mutex
	bucket *ratelimit.TokenBucket
}

// NewRateLimiting 创建限流采样器，令牌桶容量为 max(rate, 1).
func NewRateLimiting(maxTracesPerSecond float64, opts ...ratelimit.Option) *RateLimiting {
	if math.IsNaN(maxTracesPerSecond) || maxTracesPerSecond < 0 {
		maxTracesPerSecond = 0
	}
	return &RateLimiting{
		rate:   maxTracesPerSecond,
		tags:   typeTags(TypeRateLimiting, formatFloat(maxTracesPerSecond)),
		bucket: ratelimit.NewTokenBucket(maxTracesPerSecond, math.Max(maxTracesPerSecond, 1), opts...),
	}
}

// MaxTracesPerSecond 返回每秒最大采样数.
func (r *RateLimiting) MaxTracesPerSecond() float64 {
	return r.rate
}

// IsSampled 消耗一个令牌.
func (r *RateLimiting) IsSampled(span.TraceID, string) SamplingStatus {
	return newStatus(r.take(), r.tags)
}

func (r *RateLimiting) take() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bucket.CheckCredit(1)
}

// Close 无资源需要释放.
func (r *RateLimiting) Close() error { return nil }

// GuaranteedThroughputProbabilistic 概率采样加每秒保底采样数.
type GuaranteedThroughputProbabilistic struct {
	mu            sync.RWMutex
	probabilistic *Probabilistic
	lowerBound    *RateLimiting
	lowerTags     []Tag
	limiterOpts   []ratelimit.Option
}

// NewGuaranteedThroughputProbabilistic 创建保底概率采样器.
func NewGuaranteedThroughputProbabilistic(lowerBound, samplingRate float64, opts ...ratelimit.Option) *GuaranteedThroughputProbabilistic {
	g := &GuaranteedThroughputProbabilistic{limiterOpts: opts}
	g.probabilistic = NewProbabilistic(samplingRate)
	g.lowerBound = NewRateLimiting(lowerBound, opts...)
	g.lowerTags = typeTags(TypeLowerBound, formatFloat(g.probabilistic.rate))
	return g
}

// IsSampled 概率命中时同时扣减保底限流器，未命中时由保底限流器决定.
func (g *GuaranteedThroughputProbabilistic) IsSampled(id span.TraceID, operation string) SamplingStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.probabilistic.sample(id) {
		g.lowerBound.take()
		return newStatus(true, g.probabilistic.tags)
	}
	return newStatus(g.lowerBound.take(), g.lowerTags)
}

// Update 更新参数，保底速率不变时保留限流器状态.
func (g *GuaranteedThroughputProbabilistic) Update(lowerBound, samplingRate float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if samplingRate != g.probabilistic.rate {
		g.probabilistic = NewProbabilistic(samplingRate)
		g.lowerTags = typeTags(TypeLowerBound, formatFloat(g.probabilistic.rate))
	}
	if lowerBound != g.lowerBound.rate {
		g.lowerBound = NewRateLimiting(lowerBound, g.limiterOpts...)
	}
}

// SamplingRate 返回采样率.
func (g *GuaranteedThroughputProbabilistic) SamplingRate() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.probabilistic.rate
}

// LowerBound 返回每秒保底采样数.
func (g *GuaranteedThroughputProbabilistic) LowerBound() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lowerBound.rate
}

// Close 无资源需要释放.
func (g *GuaranteedThroughputProbabilistic) Close() error { return nil }
