// Package ratelimit 提供连续时间的令牌桶限流.
package ratelimit

import (
	"math"
	"time"
)

// TokenBucket 令牌桶.
//
// 余额按经过的时间连续补充，上限为 maxBalance，不启动任何后台任务，
// 仅在 CheckCredit 调用时按需计算.
//
// TokenBucket 不是并发安全的，跨 goroutine 共享时调用方需要自行加锁.
type TokenBucket struct {
	creditsPerSecond float64 // 每秒补充的额度
	maxBalance       float64 // 余额上限
	balance          float64 // 当前余额
	lastTick         time.Time
	now              func() time.Time
}

// Option 令牌桶配置选项.
type Option func(*TokenBucket)

// WithClock 设置时钟，测试中用于控制时间流逝.
func WithClock(now func() time.Time) Option {
	return func(tb *TokenBucket) {
		if now != nil {
			tb.now = now
		}
	}
}

// WithInitialBalance 设置初始余额，默认满桶.
func WithInitialBalance(balance float64) Option {
	return func(tb *TokenBucket) {
		tb.balance = balance
	}
}

// NewTokenBucket 创建令牌桶.
//
// creditsPerSecond: 每秒补充的额度
// maxBalance: 余额上限
func NewTokenBucket(creditsPerSecond, maxBalance float64, opts ...Option) *TokenBucket {
	// NaN 与负数一样按 0 处理，否则余额会变成 NaN
	maxBalance = nonNegative(maxBalance)
	creditsPerSecond = nonNegative(creditsPerSecond)

	tb := &TokenBucket{
		creditsPerSecond: creditsPerSecond,
		maxBalance:       maxBalance,
		balance:          maxBalance,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(tb)
	}
	tb.balance = clamp(nonNegative(tb.balance), 0, tb.maxBalance)
	tb.lastTick = tb.now()

	return tb
}

// CheckCredit 尝试扣除 cost 额度.
//
// 先按经过的时间补充余额，余额足够时扣除并返回 true.
// cost 为负数时直接返回 false，不修改状态.
func (tb *TokenBucket) CheckCredit(cost float64) bool {
	if math.IsNaN(cost) || cost < 0 {
		return false
	}

	tb.refill()

	if tb.balance >= cost {
		tb.balance -= cost
		return true
	}
	return false
}

// Balance 返回当前余额（不触发补充）.
func (tb *TokenBucket) Balance() float64 {
	return tb.balance
}

// MaxBalance 返回余额上限.
func (tb *TokenBucket) MaxBalance() float64 {
	return tb.maxBalance
}

// CreditsPerSecond 返回补充速率.
func (tb *TokenBucket) CreditsPerSecond() float64 {
	return tb.creditsPerSecond
}

// refill 按经过的时间补充余额，时钟回退时不补充.
func (tb *TokenBucket) refill() {
	now := tb.now()
	if now.After(tb.lastTick) {
		elapsed := now.Sub(tb.lastTick).Seconds()
		tb.balance = clamp(tb.balance+elapsed*tb.creditsPerSecond, 0, tb.maxBalance)
		tb.lastTick = now
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
