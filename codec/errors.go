package codec

import "errors"

// 预定义错误.
var (
	// ErrNilSpan span 为空.
	ErrNilSpan = errors.New("codec: span 不能为空")

	// ErrMalformed 数据格式错误.
	ErrMalformed = errors.New("codec: 数据格式错误")
)
