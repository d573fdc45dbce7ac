package retry

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Tsukikage7/tracekit/logger"
)

// Doer 发送单个 HTTP 请求，*http.Client 满足该接口.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPRetryableFunc 判断 HTTP 响应是否应该重试.
type HTTPRetryableFunc func(resp *http.Response, err error) bool

// HTTPClient 可重试的 HTTP 客户端.
//
// 带 body 的请求只有在 req.GetBody 可用时才会重试，
// http.NewRequest 对 bytes.Reader、strings.Reader 等常见类型会自动设置.
type HTTPClient struct {
	doer      Doer
	cfg       *Config
	retryable HTTPRetryableFunc
	logger    logger.Logger
}

// HTTPOption HTTPClient 配置选项.
type HTTPOption func(*HTTPClient)

// WithRetryable 设置重试判断函数.
func WithRetryable(fn HTTPRetryableFunc) HTTPOption {
	return func(c *HTTPClient) {
		if fn != nil {
			c.retryable = fn
		}
	}
}

// WithLogger 设置日志记录器，每次重试前记录一条 warn 日志.
func WithLogger(log logger.Logger) HTTPOption {
	return func(c *HTTPClient) {
		if log != nil {
			c.logger = log
		}
	}
}

// NewHTTPClient 创建可重试的 HTTP 客户端.
//
// 使用示例:
//
//	client := retry.NewHTTPClient(http.DefaultClient, retry.DefaultConfig(),
//	    retry.WithLogger(log),
//	)
//	resp, err := client.Do(req)
func NewHTTPClient(doer Doer, cfg *Config, opts ...HTTPOption) *HTTPClient {
	if doer == nil {
		doer = http.DefaultClient
	}
	c := &HTTPClient{
		doer:      doer,
		cfg:       cfg.normalize(),
		retryable: DefaultHTTPRetryable,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do 执行 HTTP 请求，使用 req 自带的 context.
//
// 重试用尽时返回最后一次的响应或错误，调用方可以看到真实的状态码.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext 执行 HTTP 请求，ctx 结束时停止等待并返回 ctx.Err().
func (c *HTTPClient) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	attempts := c.cfg.MaxAttempts
	// body 无法重放时只发送一次
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		attempts = 1
	}

	for attempt := 0; ; attempt++ {
		// 检查上下文是否已取消
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attemptReq, err := c.prepare(ctx, req, attempt)
		if err != nil {
			return nil, err
		}

		resp, err := c.doer.Do(attemptReq)
		if attempt == attempts-1 || !c.retryable(resp, err) {
			return resp, err
		}

		wait := c.cfg.Backoff(attempt, c.cfg.Delay)
		if after, ok := retryAfter(resp); ok {
			wait = after
		}
		c.logger.Warnf("[Retry] 第 %d 次请求失败，%v 后重试 [url:%s] [状态:%s] [错误:%v]",
			attempt+1, wait, req.URL.Redacted(), status(resp), err)

		// 丢弃响应体以便复用连接
		if resp != nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
			resp.Body.Close()
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

// prepare 为每次尝试生成绑定 ctx 的请求，重试时通过 GetBody 重建 body.
func (c *HTTPClient) prepare(ctx context.Context, req *http.Request, attempt int) (*http.Request, error) {
	r := req.Clone(ctx)
	if attempt > 0 && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}
	return r, nil
}

// retryAfter 解析 429/503 响应的 Retry-After 秒数，上限与退避上限一致.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0, false
	}
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds < 0 {
		return 0, false
	}
	return min(time.Duration(seconds)*time.Second, maxBackoff), true
}

func status(resp *http.Response) string {
	if resp == nil {
		return "-"
	}
	return strconv.Itoa(resp.StatusCode)
}

// DefaultHTTPRetryable 默认的 HTTP 重试判断.
// 重试网络错误、5xx 与 429 响应.
func DefaultHTTPRetryable(resp *http.Response, err error) bool {
	// 网络错误总是重试
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	// 5xx 与 429 Too Many Requests 重试
	return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
}

// RetryOnConnectionError 仅在连接错误时重试.
func RetryOnConnectionError(_ *http.Response, err error) bool {
	return err != nil
}
