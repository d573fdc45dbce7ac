// Package transport 提供 span 批次的数据报传输.
package transport

import "sync"

// DefaultMaxPacketSize 默认最大数据包长度，低于 UDP 理论上限 65507 并留出余量.
const DefaultMaxPacketSize = 65000

// Sender 数据报发送器.
//
// 每次 Send 发送一个完整的数据包，实现需保证并发安全.
type Sender interface {
	// Send 发送一个数据包.
	Send(packet []byte) error

	// Close 关闭发送器，重复调用返回 nil.
	Close() error

	// MaxPacketSize 返回可发送的最大数据包长度.
	MaxPacketSize() int
}

// Memory 将数据包保存在内存中的发送器，用于测试和本地调试.
type Memory struct {
	mu      sync.Mutex
	max     int
	packets [][]byte
	closed  bool
	err     error
}

// NewMemory 创建内存发送器，maxPacketSize <= 0 时使用默认值.
func NewMemory(maxPacketSize int) *Memory {
	if maxPacketSize <= 0 {
		maxPacketSize = DefaultMaxPacketSize
	}
	return &Memory{max: maxPacketSize}
}

// Send 保存数据包副本.
func (m *Memory) Send(packet []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.err != nil {
		return m.err
	}
	if len(packet) > m.max {
		return ErrPacketTooLarge
	}
	m.packets = append(m.packets, append([]byte(nil), packet...))
	return nil
}

// FailWith 设置后续 Send 返回的错误，nil 表示恢复正常.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Packets 返回已发送数据包的副本.
func (m *Memory) Packets() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]byte, len(m.packets))
	copy(out, m.packets)
	return out
}

// Close 关闭发送器.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed 返回是否已关闭.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MaxPacketSize 返回最大数据包长度.
func (m *Memory) MaxPacketSize() int {
	return m.max
}
