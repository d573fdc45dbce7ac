package logger

import "errors"

// 预定义错误常量.
var (
	// ErrOpenFile 打开日志文件失败.
	ErrOpenFile = errors.New("logger: 打开日志文件失败")

	// ErrNilWriter 输出 writer 为空.
	ErrNilWriter = errors.New("logger: writer 不能为空")
)
