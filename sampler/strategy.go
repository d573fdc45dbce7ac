package sampler

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// StrategyType 默认采样策略类型.
type StrategyType int

const (
	// StrategyProbabilistic 概率采样.
	StrategyProbabilistic StrategyType = iota
	// StrategyRateLimiting 限流采样.
	StrategyRateLimiting
)

// String 返回 agent 协议中的名称.
func (t StrategyType) String() string {
	switch t {
	case StrategyProbabilistic:
		return "PROBABILISTIC"
	case StrategyRateLimiting:
		return "RATE_LIMITING"
	default:
		return fmt.Sprintf("StrategyType(%d)", int(t))
	}
}

// MarshalJSON 编码为名称.
func (t StrategyType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON 同时接受名称和数值枚举.
func (t *StrategyType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		switch strings.ToUpper(name) {
		case "PROBABILISTIC":
			*t = StrategyProbabilistic
		case "RATE_LIMITING":
			*t = StrategyRateLimiting
		default:
			return fmt.Errorf("%w: unknown strategyType %q", ErrInvalidStrategy, name)
		}
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: strategyType %s", ErrInvalidStrategy, data)
	}
	*t = StrategyType(n)
	return nil
}

// ProbabilisticStrategy 概率采样参数.
type ProbabilisticStrategy struct {
	SamplingRate float64 `json:"samplingRate"`
}

// RateLimitingStrategy 限流采样参数.
type RateLimitingStrategy struct {
	MaxTracesPerSecond float64 `json:"maxTracesPerSecond"`
}

// OperationStrategy 单个操作的采样参数.
type OperationStrategy struct {
	Operation             string                 `json:"operation"`
	ProbabilisticSampling *ProbabilisticStrategy `json:"probabilisticSampling"`
}

// OperationSampling 按操作采样参数.
type OperationSampling struct {
	DefaultSamplingProbability       float64             `json:"defaultSamplingProbability"`
	DefaultLowerBoundTracesPerSecond float64             `json:"defaultLowerBoundTracesPerSecond"`
	PerOperationStrategies           []OperationStrategy `json:"perOperationStrategies"`
}

// Strategies agent /sampling 接口返回的采样策略.
type Strategies struct {
	StrategyType          StrategyType           `json:"strategyType"`
	ProbabilisticSampling *ProbabilisticStrategy `json:"probabilisticSampling,omitempty"`
	RateLimitingSampling  *RateLimitingStrategy  `json:"rateLimitingSampling,omitempty"`
	OperationSampling     *OperationSampling     `json:"operationSampling,omitempty"`
}

// ParseStrategies 解析并校验 JSON 策略.
func ParseStrategies(data []byte) (*Strategies, error) {
	var s Strategies
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStrategy, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate 校验策略参数.
func (s *Strategies) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: empty response", ErrInvalidStrategy)
	}

	if ops := s.OperationSampling; ops != nil {
		if !validRate(ops.DefaultSamplingProbability) {
			return fmt.Errorf("%w: defaultSamplingProbability %v", ErrInvalidStrategy, ops.DefaultSamplingProbability)
		}
		if !validNonNegative(ops.DefaultLowerBoundTracesPerSecond) {
			return fmt.Errorf("%w: defaultLowerBoundTracesPerSecond %v", ErrInvalidStrategy, ops.DefaultLowerBoundTracesPerSecond)
		}
		for _, op := range ops.PerOperationStrategies {
			if op.ProbabilisticSampling == nil || !validRate(op.ProbabilisticSampling.SamplingRate) {
				return fmt.Errorf("%w: operation %q", ErrInvalidStrategy, op.Operation)
			}
		}
		return nil
	}

	switch s.StrategyType {
	case StrategyProbabilistic:
		if s.ProbabilisticSampling == nil || !validRate(s.ProbabilisticSampling.SamplingRate) {
			return fmt.Errorf("%w: probabilisticSampling", ErrInvalidStrategy)
		}
	case StrategyRateLimiting:
		if s.RateLimitingSampling == nil || !validNonNegative(s.RateLimitingSampling.MaxTracesPerSecond) {
			return fmt.Errorf("%w: rateLimitingSampling", ErrInvalidStrategy)
		}
	default:
		return fmt.Errorf("%w: unknown strategyType %d", ErrInvalidStrategy, int(s.StrategyType))
	}
	return nil
}

// Equal 判断两份策略是否完全一致.
func (s *Strategies) Equal(other *Strategies) bool {
	return reflect.DeepEqual(s, other)
}

func validRate(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func validNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
