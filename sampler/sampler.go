// Package sampler 提供链路采样决策.
//
// 所有采样器的 IsSampled 都可以被多个 goroutine 高频并发调用，且不会阻塞在网络 I/O 上.
// RemotelyControlled 的远程策略只在后台刷新任务中拉取.
//
// 示例:
//
//	s, err := sampler.NewRemotelyControlled("checkout",
//	    sampler.WithFetcher(sampler.NewHTTPFetcher("http://127.0.0.1:5778")),
//	    sampler.WithLogger(log),
//	)
//	status := s.IsSampled(traceID, "GET /orders")
package sampler

import (
	"slices"

	"github.com/Tsukikage7/tracekit/span"
)

// 采样标签键.
const (
	TagType  = "sampler.type"
	TagParam = "sampler.param"
)

// 采样器类型.
const (
	TypeConst         = "const"
	TypeProbabilistic = "probabilistic"
	TypeRateLimiting  = "ratelimiting"
	TypeLowerBound    = "lowerbound"
	TypeRemote        = "remote"
)

// Tag 采样决策附带的诊断标签.
type Tag struct {
	Key   string
	Value string
}

// SamplingStatus 采样决策结果，标签保持插入顺序且允许重复.
//
// Tags 归调用方所有，修改它不会影响采样器后续的决策.
type SamplingStatus struct {
	Sampled bool
	Tags    []Tag
}

// Sampler 采样器接口.
type Sampler interface {
	// IsSampled 对 trace 做出采样决策.
	IsSampled(id span.TraceID, operation string) SamplingStatus

	// Close 释放资源，重复调用返回 nil.
	Close() error
}

func typeTags(typ, param string) []Tag {
	return []Tag{{Key: TagType, Value: typ}, {Key: TagParam, Value: param}}
}

// newStatus 复制采样器内部的标签，调用方可以自由修改返回值.
func newStatus(sampled bool, tags []Tag) SamplingStatus {
	return SamplingStatus{Sampled: sampled, Tags: slices.Clone(tags)}
}
