package reporter

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsukikage7/tracekit/codec"
	"github.com/Tsukikage7/tracekit/span"
	"github.com/Tsukikage7/tracekit/transport"
)

// nameSerializer 以操作名作为 span 编码，批次为简单拼接加上 extra 字节.
type nameSerializer struct {
	overhead int
	extra    int
	batchErr error
}

func (s nameSerializer) SerializeSpan(sp *span.Span) ([]byte, error) {
	if sp.OperationName == "" {
		return nil, errors.New("empty operation")
	}
	return []byte(sp.OperationName), nil
}

func (s nameSerializer) SerializeBatch(spans [][]byte) ([]byte, error) {
	if s.batchErr != nil {
		return nil, s.batchErr
	}
	out := bytes.Repeat([]byte{'#'}, s.overhead+s.extra)
	for _, b := range spans {
		out = append(out, b...)
	}
	return out, nil
}

func (s nameSerializer) BatchOverhead() int { return s.overhead }

// countingMetrics 按结果统计上报器指标.
type countingMetrics struct {
	mu      sync.Mutex
	results map[string]int
	flushes []int
}

func (m *countingMetrics) RecordSamplerQuery(bool)  {}
func (m *countingMetrics) RecordSamplerUpdate(bool) {}

func (m *countingMetrics) RecordReporterSpan(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.results == nil {
		m.results = make(map[string]int)
	}
	m.results[result]++
}

func (m *countingMetrics) RecordReporterFlush(ok bool, spans int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !ok {
		spans = -spans
	}
	m.flushes = append(m.flushes, spans)
}

func (m *countingMetrics) count(result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[result]
}

func packetStrings(m *transport.Memory) []string {
	var out []string
	for _, p := range m.Packets() {
		out = append(out, string(p))
	}
	return out
}

func TestNewRemote_Errors(t *testing.T) {
	_, err := NewRemote(nil)
	assert.ErrorIs(t, err, ErrNilSender)

	sender := transport.NewMemory(100)
	_, err = NewRemote(sender)
	assert.ErrorIs(t, err, ErrEmptyServiceName)

	_, err = NewRemote(sender, WithSerializer(nameSerializer{}), WithMaxPacketSize(-1))
	assert.ErrorIs(t, err, ErrInvalidPacketSize)

	_, err = NewRemote(sender, WithSerializer(nameSerializer{}), WithFlushInterval(10*time.Millisecond))
	assert.ErrorIs(t, err, ErrInvalidFlushInterval)
}

func TestRemote_Batching(t *testing.T) {
	sender := transport.NewMemory(100)
	m := &countingMetrics{}
	// s1+s2 恰好等于数据包上限
	r, err := NewRemote(sender, WithSerializer(nameSerializer{}), WithMaxPacketSize(10), WithMetrics(m))
	require.NoError(t, err)

	r.Report(newSpan("aaaa"))
	r.Report(newSpan("bbbbbb"))
	assert.Empty(t, sender.Packets())
	assert.Equal(t, 2, r.Pending())

	r.Report(newSpan("cc"))
	assert.Equal(t, []string{"aaaabbbbbb"}, packetStrings(sender))
	assert.Equal(t, 1, r.Pending())

	assert.True(t, r.Flush())
	assert.Equal(t, []string{"aaaabbbbbb", "cc"}, packetStrings(sender))
	assert.Equal(t, []int{2, 1}, m.flushes)
	assert.Equal(t, 3, m.count("reported"))

	// 空批次
	assert.False(t, r.Flush())
	require.NoError(t, r.Close())
}

func TestRemote_BudgetExcludesOverhead(t *testing.T) {
	sender := transport.NewMemory(100)
	r, err := NewRemote(sender, WithSerializer(nameSerializer{overhead: 4}), WithMaxPacketSize(10))
	require.NoError(t, err)
	defer r.Close()

	r.Report(newSpan("aaa"))
	r.Report(newSpan("bbb"))
	r.Report(newSpan("c"))
	assert.Equal(t, []string{"####aaabbb"}, packetStrings(sender))

	assert.True(t, r.Flush())
	assert.Equal(t, "####c", packetStrings(sender)[1])
}

func TestRemote_PacketTooSmall(t *testing.T) {
	sender := transport.NewMemory(100)
	m := &countingMetrics{}
	r, err := NewRemote(sender, WithSerializer(nameSerializer{}), WithMaxPacketSize(3), WithMetrics(m))
	require.NoError(t, err)
	defer r.Close()

	for range 10 {
		r.Report(newSpan("oversized"))
	}
	assert.Zero(t, r.Pending())
	assert.False(t, r.Flush())
	assert.Zero(t, r.Pending())
	assert.Empty(t, sender.Packets())
	assert.Equal(t, 10, m.count("dropped"))
}

func TestRemote_PayloadExceedsPacket(t *testing.T) {
	sender := transport.NewMemory(100)
	m := &countingMetrics{}
	// 编码器低报开销，批次实际超过上限
	r, err := NewRemote(sender, WithSerializer(nameSerializer{extra: 5}), WithMaxPacketSize(6), WithMetrics(m))
	require.NoError(t, err)
	defer r.Close()

	r.Report(newSpan("aaaa"))
	assert.False(t, r.Flush())
	assert.Zero(t, r.Pending())
	assert.Empty(t, sender.Packets())
	assert.Equal(t, []int{-1}, m.flushes)
}

func TestRemote_FailuresDiscardBatch(t *testing.T) {
	sender := transport.NewMemory(100)
	r, err := NewRemote(sender, WithSerializer(nameSerializer{}), WithMaxPacketSize(10))
	require.NoError(t, err)
	defer r.Close()

	sender.FailWith(errors.New("connection refused"))
	r.Report(newSpan("a"))
	r.Report(newSpan("b"))
	assert.False(t, r.Flush())
	assert.Zero(t, r.Pending())

	sender.FailWith(nil)
	assert.False(t, r.Flush())
	r.Report(newSpan("c"))
	assert.True(t, r.Flush())
	assert.Equal(t, []string{"c"}, packetStrings(sender))

	// 编码失败的 span 直接丢弃
	r.Report(newSpan(""))
	assert.Zero(t, r.Pending())

	failing, err := NewRemote(sender, WithSerializer(nameSerializer{batchErr: errors.New("encode")}))
	require.NoError(t, err)
	failing.Report(newSpan("x"))
	assert.False(t, failing.Flush())
	assert.Zero(t, failing.Pending())
}

func TestRemote_Close(t *testing.T) {
	sender := transport.NewMemory(100)
	m := &countingMetrics{}
	r, err := NewRemote(sender, WithSerializer(nameSerializer{}), WithMetrics(m))
	require.NoError(t, err)

	r.Report(newSpan("last"))
	r.Report(nil)
	require.NoError(t, r.Close())
	assert.Equal(t, []string{"last"}, packetStrings(sender))
	assert.True(t, sender.Closed())

	require.NoError(t, r.Close())
	assert.Len(t, sender.Packets(), 1)

	r.Report(newSpan("late"))
	assert.Zero(t, r.Pending())
	assert.False(t, r.Flush())
	assert.Equal(t, 1, m.count("dropped"))
}

func TestRemote_BackgroundFlush(t *testing.T) {
	sender := transport.NewMemory(100)
	r, err := NewRemote(sender, WithSerializer(nameSerializer{}), WithFlushInterval(time.Second))
	require.NoError(t, err)
	defer r.Close()

	r.Report(newSpan("tick"))
	require.Eventually(t, func() bool {
		return len(sender.Packets()) == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Zero(t, r.Pending())
}

func TestRemote_Concurrent(t *testing.T) {
	sender := transport.NewMemory(100)
	r, err := NewRemote(sender, WithSerializer(nameSerializer{}), WithMaxPacketSize(50))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				r.Report(newSpan("x"))
				if i%25 == 0 {
					r.Flush()
				}
			}
		}()
	}
	wg.Wait()
	require.NoError(t, r.Close())

	total := 0
	for _, p := range sender.Packets() {
		assert.LessOrEqual(t, len(p), 50)
		total += len(p)
	}
	assert.Equal(t, 800, total)
}

func TestRemote_UDPProtobuf(t *testing.T) {
	server, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer server.Close()

	sender, err := transport.NewUDP(server.LocalAddr().String(), transport.WithMaxPacketSize(4096))
	require.NoError(t, err)

	r, err := NewRemote(sender, WithProcess("checkout", span.Tag{Key: "hostname", Value: "node-1"}))
	require.NoError(t, err)

	r.Report(newSpan("GET /orders"))
	r.Report(newSpan("GET /items"))
	require.True(t, r.Flush())

	buf := make([]byte, 4096)
	require.NoError(t, server.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := server.ReadFromUDP(buf)
	require.NoError(t, err)

	batch, err := codec.DecodeBatch(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, "checkout", batch.ServiceName)
	require.Len(t, batch.Spans, 2)
	assert.Equal(t, "GET /orders", batch.Spans[0].OperationName)
	assert.Equal(t, "GET /items", batch.Spans[1].OperationName)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}
