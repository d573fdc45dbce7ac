package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/Tsukikage7/tracekit/span"
)

func testSpan(op string) *span.Span {
	start := time.Date(2024, 5, 1, 12, 0, 0, 250, time.UTC)
	return &span.Span{
		Context: span.SpanContext{
			TraceID:  span.TraceID{High: 0x0102030405060708, Low: 0x1112131415161718},
			SpanID:   42,
			ParentID: 7,
			Flags:    span.FlagSampled,
		},
		OperationName: op,
		StartTime:     start,
		Duration:      1500 * time.Millisecond,
		Tags: []span.Tag{
			{Key: "http.method", Value: "GET"},
			{Key: "error", Value: true},
			{Key: "retries", Value: 3},
			{Key: "ratio", Value: 0.5},
			{Key: "payload", Value: []byte{0xde, 0xad}},
			{Key: "peer", Value: struct{ Port int }{80}},
		},
		Logs: []span.LogRecord{{
			Timestamp: start.Add(time.Millisecond),
			Fields:    []span.Tag{{Key: "event", Value: "retry"}},
		}},
		References: []span.Reference{{
			Type:    span.FollowsFrom,
			Context: span.SpanContext{TraceID: span.TraceID{Low: 9}, SpanID: 99},
		}},
	}
}

func TestProtobuf_BatchRoundTrip(t *testing.T) {
	p := NewProtobuf("checkout", span.Tag{Key: "hostname", Value: "node-1"}, span.Tag{Key: "pid", Value: int64(12)})

	s1, err := p.SerializeSpan(testSpan("s1"))
	require.NoError(t, err)
	s2, err := p.SerializeSpan(testSpan("s2"))
	require.NoError(t, err)

	packet, err := p.SerializeBatch([][]byte{s1, s2})
	require.NoError(t, err)
	assert.Len(t, packet, p.BatchOverhead()+len(s1)+len(s2))

	batch, err := DecodeBatch(packet)
	require.NoError(t, err)
	assert.Equal(t, "checkout", batch.ServiceName)
	assert.Equal(t, []span.Tag{{Key: "hostname", Value: "node-1"}, {Key: "pid", Value: int64(12)}}, batch.ProcessTags)
	require.Len(t, batch.Spans, 2)
	assert.Equal(t, "s1", batch.Spans[0].OperationName)
	assert.Equal(t, "s2", batch.Spans[1].OperationName)

	got := batch.Spans[0]
	want := testSpan("s1")
	assert.Equal(t, want.Context.TraceID, got.Context.TraceID)
	assert.Equal(t, want.Context.SpanID, got.Context.SpanID)
	assert.Equal(t, want.Context.ParentID, got.Context.ParentID)
	assert.Equal(t, want.Context.Flags, got.Context.Flags)
	assert.True(t, want.StartTime.Equal(got.StartTime))
	assert.Equal(t, want.Duration, got.Duration)
	assert.Equal(t, []span.Tag{
		{Key: "http.method", Value: "GET"},
		{Key: "error", Value: true},
		{Key: "retries", Value: int64(3)},
		{Key: "ratio", Value: 0.5},
		{Key: "payload", Value: []byte{0xde, 0xad}},
		{Key: "peer", Value: "{80}"},
	}, got.Tags)
	require.Len(t, got.Logs, 1)
	assert.True(t, want.Logs[0].Timestamp.Equal(got.Logs[0].Timestamp))
	assert.Equal(t, want.Logs[0].Fields, got.Logs[0].Fields)
	assert.Equal(t, want.References, got.References)
}

func TestProtobuf_TraceIDBigEndian(t *testing.T) {
	p := NewProtobuf("svc")
	b, err := p.SerializeSpan(&span.Span{Context: span.SpanContext{
		TraceID: span.TraceID{High: 1, Low: 2},
		SpanID:  3,
	}})
	require.NoError(t, err)

	num, typ, n := protowire.ConsumeTag(b)
	require.Greater(t, n, 0)
	assert.Equal(t, batchSpans, num)
	assert.Equal(t, protowire.BytesType, typ)
	body, m := protowire.ConsumeBytes(b[n:])
	require.Greater(t, m, 0)

	num, _, n = protowire.ConsumeTag(body)
	require.Equal(t, spanTraceID, num)
	id, _ := protowire.ConsumeBytes(body[n:])
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 2}, id)
}

func TestProtobuf_NilSpan(t *testing.T) {
	_, err := NewProtobuf("svc").SerializeSpan(nil)
	assert.ErrorIs(t, err, ErrNilSpan)
}

func TestProtobuf_EmptyBatch(t *testing.T) {
	p := NewProtobuf("svc")
	packet, err := p.SerializeBatch(nil)
	require.NoError(t, err)
	assert.Len(t, packet, p.BatchOverhead())

	batch, err := DecodeBatch(packet)
	require.NoError(t, err)
	assert.Equal(t, "svc", batch.ServiceName)
	assert.Empty(t, batch.Spans)
}

func TestDecodeBatch_Malformed(t *testing.T) {
	_, err := DecodeBatch([]byte{0x0a, 0x05, 0x01})
	assert.ErrorIs(t, err, ErrMalformed)

	// trace_id 长度错误
	var sp []byte
	sp = protowire.AppendTag(sp, spanTraceID, protowire.BytesType)
	sp = protowire.AppendBytes(sp, []byte{1, 2, 3})
	var b []byte
	b = protowire.AppendTag(b, batchSpans, protowire.BytesType)
	b = protowire.AppendBytes(b, sp)
	_, err = DecodeBatch(b)
	assert.ErrorIs(t, err, ErrMalformed)
}
