package sampler

import "errors"

// 预定义错误.
var (
	// ErrEmptyServiceName 服务名为空.
	ErrEmptyServiceName = errors.New("sampler: 服务名不能为空")

	// ErrNilFetcher 策略拉取器为空.
	ErrNilFetcher = errors.New("sampler: 策略拉取器不能为空")

	// ErrInvalidMaxOperations 操作表容量非法.
	ErrInvalidMaxOperations = errors.New("sampler: max operations 必须大于 0")

	// ErrInvalidRefreshInterval 刷新间隔小于 1 秒.
	ErrInvalidRefreshInterval = errors.New("sampler: 刷新间隔不能小于 1 秒")

	// ErrInvalidStrategy 策略内容非法.
	ErrInvalidStrategy = errors.New("sampler: 采样策略非法")

	// ErrStrategyNotFound 未找到服务的采样策略.
	ErrStrategyNotFound = errors.New("sampler: 未找到采样策略")

	// ErrUnexpectedStatus 策略服务返回非 2xx 状态码.
	ErrUnexpectedStatus = errors.New("sampler: 策略服务返回异常状态码")

	// ErrShutdownTimeout 关闭时等待刷新任务超时.
	ErrShutdownTimeout = errors.New("sampler: 等待刷新任务退出超时")

	// ErrClosed 采样器已关闭.
	ErrClosed = errors.New("sampler: 采样器已关闭")
)
