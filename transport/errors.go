package transport

import "errors"

// 预定义错误.
var (
	// ErrClosed 发送器已关闭.
	ErrClosed = errors.New("transport: 发送器已关闭")

	// ErrPacketTooLarge 数据包超过最大长度.
	ErrPacketTooLarge = errors.New("transport: 数据包超过最大长度")

	// ErrEmptyAddress 目标地址为空.
	ErrEmptyAddress = errors.New("transport: 目标地址不能为空")

	// ErrShortWrite 数据包未完整写出.
	ErrShortWrite = errors.New("transport: 数据包未完整写出")
)
