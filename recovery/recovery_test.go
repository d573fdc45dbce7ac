package recovery

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsukikage7/tracekit/logger"
)

func TestCall_NoPanic(t *testing.T) {
	assert.NoError(t, Call(func() error { return nil }))

	want := errors.New("plain")
	assert.Same(t, want, Call(func() error { return want }))
}

func TestCall_Panic(t *testing.T) {
	var handled any
	err := Call(func() error { panic("boom") }, WithHandler(func(p any, stack []byte) {
		handled = p
		assert.NotEmpty(t, stack)
	}))

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", pe.Value)
	assert.Equal(t, "panic: boom", pe.Error())
	assert.Contains(t, string(pe.Stack), "recovery")
	assert.Equal(t, "boom", handled)
	assert.NoError(t, pe.Unwrap())
}

func TestCall_PanicWithError(t *testing.T) {
	cause := errors.New("cause")
	err := Call(func() error { panic(cause) })
	assert.ErrorIs(t, err, cause)
}

func TestRecoverer_Logs(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.NewLoggerWithWriter(&logger.Config{Level: logger.LevelError, Format: logger.FormatJSON}, &buf)
	require.NoError(t, err)

	r := New(WithLogger(log), WithStackSize(256), WithStackAll(false))
	for range 2 {
		assert.Error(t, r.Call(func() error { panic("again") }))
	}
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("[Recovery]")))
	assert.LessOrEqual(t, len(r.Call(func() error { panic("x") }).(*PanicError).Stack), 256)
}
