package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Tsukikage7/tracekit/logger"
)

// UDPOption UDP 发送器配置选项.
type UDPOption func(*udpOptions)

type udpOptions struct {
	maxPacketSize int
	writeTimeout  time.Duration
	logger        logger.Logger
}

// WithMaxPacketSize 设置最大数据包长度.
func WithMaxPacketSize(n int) UDPOption {
	return func(o *udpOptions) {
		if n > 0 {
			o.maxPacketSize = n
		}
	}
}

// WithWriteTimeout 设置单次写入超时，默认 100ms.
func WithWriteTimeout(d time.Duration) UDPOption {
	return func(o *udpOptions) {
		if d > 0 {
			o.writeTimeout = d
		}
	}
}

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) UDPOption {
	return func(o *udpOptions) {
		if log != nil {
			o.logger = log
		}
	}
}

// UDP 基于已连接 UDP socket 的发送器.
type UDP struct {
	opts *udpOptions
	addr string

	mu     sync.Mutex
	conn   *net.UDPConn
	closed bool
}

// NewUDP 解析并连接到 agent 地址.
func NewUDP(hostPort string, opts ...UDPOption) (*UDP, error) {
	if hostPort == "" {
		return nil, ErrEmptyAddress
	}

	o := &udpOptions{
		maxPacketSize: DefaultMaxPacketSize,
		writeTimeout:  100 * time.Millisecond,
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	raddr, err := net.ResolveUDPAddr("udp", hostPort)
	if err != nil {
		return nil, fmt.Errorf("transport: 解析地址失败 [%s]: %w", hostPort, err)
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("transport: 连接失败 [%s]: %w", hostPort, err)
	}

	o.logger.Debugf("[Transport] UDP 发送器已连接: %s [max_packet:%d]", raddr, o.maxPacketSize)
	return &UDP{opts: o, addr: raddr.String(), conn: conn}, nil
}

// MustNewUDP 创建 UDP 发送器，失败时 panic.
func MustNewUDP(hostPort string, opts ...UDPOption) *UDP {
	u, err := NewUDP(hostPort, opts...)
	if err != nil {
		panic(err)
	}
	return u
}

// Send 在写超时内发送一个数据包.
func (u *UDP) Send(packet []byte) error {
	if len(packet) > u.opts.maxPacketSize {
		return fmt.Errorf("%w: %d > %d", ErrPacketTooLarge, len(packet), u.opts.maxPacketSize)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return ErrClosed
	}

	if err := u.conn.SetWriteDeadline(time.Now().Add(u.opts.writeTimeout)); err != nil {
		return err
	}
	n, err := u.conn.Write(packet)
	if err != nil {
		return err
	}
	if n != len(packet) {
		return fmt.Errorf("%w: %d/%d", ErrShortWrite, n, len(packet))
	}
	return nil
}

// Close 关闭 socket，重复调用返回 nil.
func (u *UDP) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return nil
	}
	u.closed = true
	return u.conn.Close()
}

// MaxPacketSize 返回最大数据包长度.
func (u *UDP) MaxPacketSize() int {
	return u.opts.maxPacketSize
}

// Addr 返回目标地址.
func (u *UDP) Addr() string {
	return u.addr
}
