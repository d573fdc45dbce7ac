package retry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsukikage7/tracekit/logger"
)

func fastConfig(attempts int) *Config {
	return &Config{MaxAttempts: attempts, Delay: time.Millisecond, Backoff: FixedBackoff}
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 50*time.Millisecond, FixedBackoff(7, 50*time.Millisecond))
	assert.Equal(t, 100*time.Millisecond, ExponentialBackoff(0, 100*time.Millisecond))
	assert.Equal(t, 400*time.Millisecond, ExponentialBackoff(2, 100*time.Millisecond))
	assert.Equal(t, 10*time.Second, ExponentialBackoff(10, 100*time.Millisecond))
	assert.Equal(t, 10*time.Second, ExponentialBackoff(64, time.Second))
}

func TestConfig_Normalize(t *testing.T) {
	var nilCfg *Config
	assert.Equal(t, DefaultMaxAttempts, nilCfg.normalize().MaxAttempts)

	n := (&Config{MaxAttempts: -1, Delay: -time.Second}).normalize()
	assert.Equal(t, 1, n.MaxAttempts)
	assert.Zero(t, n.Delay)
	assert.NotNil(t, n.Backoff)
}

func TestDo(t *testing.T) {
	t.Run("成功不重试", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastConfig(3), func(context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("失败后重试成功", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastConfig(5), func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("temporary")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("达到最大次数", func(t *testing.T) {
		last := errors.New("still failing")
		calls := 0
		err := Do(context.Background(), fastConfig(3), func(context.Context) error {
			calls++
			return last
		})
		assert.ErrorIs(t, err, ErrMaxAttempts)
		assert.ErrorIs(t, err, last)
		assert.Equal(t, 3, calls)
	})

	t.Run("上下文取消", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := Do(ctx, &Config{MaxAttempts: 5, Delay: time.Hour}, func(context.Context) error {
			calls++
			cancel()
			return errors.New("fail")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestHTTPClient_RetryOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "payload", string(body))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("success"))
	}))
	defer srv.Close()

	client := NewHTTPClient(nil, fastConfig(5))
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("payload"))
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPClient_ExhaustedReturnsLastResponse(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := NewHTTPClient(srv.Client(), fastConfig(3)).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPClient_NoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := NewHTTPClient(nil, fastConfig(3)).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(1), calls.Load())

	calls.Store(0)
	req, _ = http.NewRequest(http.MethodGet, srv.URL, nil)
	client := NewHTTPClient(nil, fastConfig(3), WithRetryable(RetryOnConnectionError))
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPClient_UnreplayableBodySentOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	// io.NopCloser 包装后 http.NewRequest 无法设置 GetBody
	req, err := http.NewRequest(http.MethodPost, srv.URL, io.NopCloser(strings.NewReader("payload")))
	require.NoError(t, err)
	require.Nil(t, req.GetBody)

	resp, err := NewHTTPClient(nil, fastConfig(3)).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPClient_ContextCanceledDuringWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)

	cfg := &Config{MaxAttempts: 5, Delay: time.Minute, Backoff: FixedBackoff}
	start := time.Now()
	_, err := NewHTTPClient(nil, cfg).Do(req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestHTTPClient_LogsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	log, err := logger.NewLoggerWithWriter(&logger.Config{Level: logger.LevelDebug, Format: logger.FormatJSON}, &buf)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/sampling", nil)
	resp, err := NewHTTPClient(nil, fastConfig(3), WithLogger(log)).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.NoError(t, log.Sync())

	assert.Equal(t, int32(2), calls.Load())
	assert.Contains(t, buf.String(), "[Retry] 第 1 次请求失败")
	assert.Contains(t, buf.String(), "[状态:503]")
}

func TestRetryAfter(t *testing.T) {
	header := func(code int, value string) *http.Response {
		return &http.Response{StatusCode: code, Header: http.Header{"Retry-After": []string{value}}}
	}

	wait, ok := retryAfter(header(http.StatusTooManyRequests, "2"))
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, wait)

	wait, ok = retryAfter(header(http.StatusServiceUnavailable, "3600"))
	assert.True(t, ok)
	assert.Equal(t, maxBackoff, wait)

	_, ok = retryAfter(header(http.StatusInternalServerError, "2"))
	assert.False(t, ok)
	_, ok = retryAfter(header(http.StatusTooManyRequests, "soon"))
	assert.False(t, ok)
	_, ok = retryAfter(nil)
	assert.False(t, ok)
}

func TestDefaultHTTPRetryable(t *testing.T) {
	tests := []struct {
		name   string
		resp   *http.Response
		err    error
		expect bool
	}{
		{"网络错误", nil, errors.New("refused"), true},
		{"500", &http.Response{StatusCode: 500}, nil, true},
		{"429", &http.Response{StatusCode: 429}, nil, true},
		{"404", &http.Response{StatusCode: 404}, nil, false},
		{"200", &http.Response{StatusCode: 200}, nil, false},
		{"空响应", nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, DefaultHTTPRetryable(tt.resp, tt.err))
		})
	}
}
