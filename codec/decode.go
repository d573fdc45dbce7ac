package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/Tsukikage7/tracekit/span"
)

// Batch 解码后的批次.
type Batch struct {
	ServiceName string
	ProcessTags []span.Tag
	Spans       []*span.Span
}

// DecodeBatch 解码 Protobuf 编码的批次.
//
// 父 span 引用还原到 Context.ParentID，其余引用保留在 References 中.
func DecodeBatch(data []byte) (*Batch, error) {
	batch := &Batch{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch {
		case num == batchSpans && typ == protowire.BytesType:
			sp, err := decodeSpan(v)
			if err != nil {
				return err
			}
			batch.Spans = append(batch.Spans, sp)
		case num == batchProcess && typ == protowire.BytesType:
			return decodeProcess(v, batch)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// walk 逐个解析字段，v 为字段载荷: BytesType 为内容，VarintType 和 Fixed64Type 为 8 字节小端.
func walk(data []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		var v []byte
		switch typ {
		case protowire.BytesType:
			b, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
			}
			v, n = b, m
		case protowire.VarintType:
			x, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
			}
			v, n = binary.LittleEndian.AppendUint64(nil, x), m
		case protowire.Fixed64Type:
			x, m := protowire.ConsumeFixed64(data)
			if m < 0 {
				return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
			}
			v, n = binary.LittleEndian.AppendUint64(nil, x), m
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
			}
			n = m
		}
		data = data[n:]

		if err := fn(num, typ, v); err != nil {
			return err
		}
	}
	return nil
}

func scalar(v []byte) uint64 {
	if len(v) != 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(v)
}

func decodeProcess(data []byte, batch *Batch) error {
	return walk(data, func(num protowire.Number, _ protowire.Type, v []byte) error {
		switch num {
		case processServiceName:
			batch.ServiceName = string(v)
		case processTags:
			tag, err := decodeKeyValue(v)
			if err != nil {
				return err
			}
			batch.ProcessTags = append(batch.ProcessTags, tag)
		}
		return nil
	})
}

func decodeSpan(data []byte) (*span.Span, error) {
	sp := &span.Span{}
	err := walk(data, func(num protowire.Number, _ protowire.Type, v []byte) error {
		switch num {
		case spanTraceID:
			id, err := decodeTraceID(v)
			if err != nil {
				return err
			}
			sp.Context.TraceID = id
		case spanSpanID:
			if len(v) != 8 {
				return fmt.Errorf("%w: span_id 长度 %d", ErrMalformed, len(v))
			}
			sp.Context.SpanID = span.SpanID(binary.BigEndian.Uint64(v))
		case spanOperation:
			sp.OperationName = string(v)
		case spanReferences:
			ref, err := decodeReference(v)
			if err != nil {
				return err
			}
			if ref.Type == span.ChildOf && sp.Context.ParentID == 0 && ref.Context.TraceID == sp.Context.TraceID {
				sp.Context.ParentID = ref.Context.SpanID
				return nil
			}
			sp.References = append(sp.References, ref)
		case spanFlags:
			sp.Context.Flags = byte(scalar(v))
		case spanStartTime:
			sec, nanos, err := decodeTimestamp(v)
			if err != nil {
				return err
			}
			sp.StartTime = time.Unix(sec, nanos)
		case spanDuration:
			sec, nanos, err := decodeTimestamp(v)
			if err != nil {
				return err
			}
			sp.Duration = time.Duration(sec)*time.Second + time.Duration(nanos)
		case spanTags:
			tag, err := decodeKeyValue(v)
			if err != nil {
				return err
			}
			sp.Tags = append(sp.Tags, tag)
		case spanLogs:
			log, err := decodeLog(v)
			if err != nil {
				return err
			}
			sp.Logs = append(sp.Logs, log)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sp, nil
}

func decodeTraceID(v []byte) (span.TraceID, error) {
	if len(v) != 16 {
		return span.TraceID{}, fmt.Errorf("%w: trace_id 长度 %d", ErrMalformed, len(v))
	}
	return span.TraceID{
		High: binary.BigEndian.Uint64(v[:8]),
		Low:  binary.BigEndian.Uint64(v[8:]),
	}, nil
}

func decodeReference(data []byte) (span.Reference, error) {
	var ref span.Reference
	err := walk(data, func(num protowire.Number, _ protowire.Type, v []byte) error {
		switch num {
		case refTraceID:
			id, err := decodeTraceID(v)
			if err != nil {
				return err
			}
			ref.Context.TraceID = id
		case refSpanID:
			if len(v) != 8 {
				return fmt.Errorf("%w: span_id 长度 %d", ErrMalformed, len(v))
			}
			ref.Context.SpanID = span.SpanID(binary.BigEndian.Uint64(v))
		case refType:
			if scalar(v) == 1 {
				ref.Type = span.FollowsFrom
			}
		}
		return nil
	})
	return ref, err
}

func decodeTimestamp(data []byte) (int64, int64, error) {
	var sec, nanos int64
	err := walk(data, func(num protowire.Number, _ protowire.Type, v []byte) error {
		switch num {
		case tsSeconds:
			sec = int64(scalar(v))
		case tsNanos:
			nanos = int64(int32(scalar(v)))
		}
		return nil
	})
	return sec, nanos, err
}

func decodeLog(data []byte) (span.LogRecord, error) {
	var log span.LogRecord
	err := walk(data, func(num protowire.Number, _ protowire.Type, v []byte) error {
		switch num {
		case logTimestamp:
			sec, nanos, err := decodeTimestamp(v)
			if err != nil {
				return err
			}
			log.Timestamp = time.Unix(sec, nanos)
		case logFields:
			tag, err := decodeKeyValue(v)
			if err != nil {
				return err
			}
			log.Fields = append(log.Fields, tag)
		}
		return nil
	})
	return log, err
}

// decodeKeyValue 还原标签，整数统一为 int64.
func decodeKeyValue(data []byte) (span.Tag, error) {
	var (
		tag span.Tag
		typ ValueType
		str string
		bl  bool
		i64 int64
		f64 float64
		bin []byte
	)
	err := walk(data, func(num protowire.Number, _ protowire.Type, v []byte) error {
		switch num {
		case kvKey:
			tag.Key = string(v)
		case kvType:
			typ = ValueType(scalar(v))
		case kvStr:
			str = string(v)
		case kvBool:
			bl = scalar(v) != 0
		case kvInt64:
			i64 = int64(scalar(v))
		case kvFloat64:
			f64 = math.Float64frombits(scalar(v))
		case kvBinary:
			bin = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return tag, err
	}

	switch typ {
	case ValueBool:
		tag.Value = bl
	case ValueInt64:
		tag.Value = i64
	case ValueFloat64:
		tag.Value = f64
	case ValueBinary:
		if bin == nil {
			bin = []byte{}
		}
		tag.Value = bin
	case ValueString:
		tag.Value = str
	default:
		return tag, fmt.Errorf("%w: 未知标签类型 %d", ErrMalformed, typ)
	}
	return tag, nil
}
