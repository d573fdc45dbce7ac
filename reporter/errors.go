package reporter

import "errors"

// 预定义错误.
var (
	// ErrNilSender 发送器为空.
	ErrNilSender = errors.New("reporter: 发送器不能为空")

	// ErrNilReporter 子上报器为空.
	ErrNilReporter = errors.New("reporter: 子上报器不能为空")

	// ErrEmptyServiceName 未指定编码器时服务名不能为空.
	ErrEmptyServiceName = errors.New("reporter: 服务名不能为空")

	// ErrInvalidPacketSize 数据包大小非法.
	ErrInvalidPacketSize = errors.New("reporter: 数据包大小必须大于 0")

	// ErrInvalidFlushInterval 刷新间隔非法.
	ErrInvalidFlushInterval = errors.New("reporter: 刷新间隔不能小于 1 秒")

	// ErrAllocation 缓冲区分配失败.
	ErrAllocation = errors.New("reporter: 缓冲区分配失败")

	// ErrFlushFailed 批次发送失败.
	ErrFlushFailed = errors.New("reporter: 批次发送失败")

	// ErrPanic 子上报器发生 panic.
	ErrPanic = errors.New("reporter: 子上报器发生 panic")
)
