package tracer

import "errors"

// 预定义错误.
var (
	// ErrNilConfig 配置为空.
	ErrNilConfig = errors.New("tracer: 配置不能为空")

	// ErrNilSampler 采样器为空.
	ErrNilSampler = errors.New("tracer: 采样器不能为空")

	// ErrNilReporter 上报器为空.
	ErrNilReporter = errors.New("tracer: 上报器不能为空")
)
