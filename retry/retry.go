// Package retry 提供带退避的重试.
package retry

import (
	"context"
	"fmt"
	"time"
)

// 默认值.
const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 100 * time.Millisecond
	maxBackoff         = 10 * time.Second
)

// BackoffFunc 根据已失败次数（从 0 开始）计算下一次等待时间.
type BackoffFunc func(attempt int, delay time.Duration) time.Duration

// Config 重试配置.
type Config struct {
	// MaxAttempts 最大尝试次数，包含首次
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
	// Delay 基础等待时间
	Delay time.Duration `json:"delay" yaml:"delay" mapstructure:"delay"`
	// Backoff 退避策略，默认指数退避
	Backoff BackoffFunc `json:"-" yaml:"-" mapstructure:"-"`
}

// DefaultConfig 返回默认配置.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultDelay,
		Backoff:     ExponentialBackoff,
	}
}

// normalize 补全非法或缺省字段.
func (c *Config) normalize() *Config {
	if c == nil {
		return DefaultConfig()
	}
	n := *c
	if n.MaxAttempts <= 0 {
		n.MaxAttempts = 1
	}
	if n.Delay < 0 {
		n.Delay = 0
	}
	if n.Backoff == nil {
		n.Backoff = ExponentialBackoff
	}
	return &n
}

// FixedBackoff 固定间隔.
func FixedBackoff(_ int, delay time.Duration) time.Duration {
	return delay
}

// ExponentialBackoff 指数退避，上限 10 秒.
func ExponentialBackoff(attempt int, delay time.Duration) time.Duration {
	if attempt > 16 {
		return maxBackoff
	}
	return min(delay<<attempt, maxBackoff)
}

// Do 执行 fn 直到成功、达到最大次数或 ctx 结束.
//
// 全部失败时返回包装了 ErrMaxAttempts 与最后一次错误的错误.
func Do(ctx context.Context, cfg *Config, fn func(ctx context.Context) error) error {
	cfg = cfg.normalize()

	var err error
	for attempt := range cfg.MaxAttempts {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(cfg.Backoff(attempt, cfg.Delay))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: %w", ErrMaxAttempts, err)
}
