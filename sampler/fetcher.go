package sampler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/consul/api"

	"github.com/Tsukikage7/tracekit/logger"
	"github.com/Tsukikage7/tracekit/retry"
)

// Fetcher 远程采样策略拉取器.
type Fetcher interface {
	Fetch(ctx context.Context, serviceName string) (*Strategies, error)
}

// FetcherFunc 函数适配器.
type FetcherFunc func(ctx context.Context, serviceName string) (*Strategies, error)

// Fetch 调用函数本身.
func (f FetcherFunc) Fetch(ctx context.Context, serviceName string) (*Strategies, error) {
	return f(ctx, serviceName)
}

// maxResponseSize 策略响应体的读取上限.
const maxResponseSize = 1 << 20

// doer 发送 HTTP 请求.
type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFetcher 从 agent 的 /sampling 接口拉取策略.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
	retry   *retry.Config
	logger  logger.Logger
	doer    doer
}

// HTTPOption HTTPFetcher 配置选项.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient 设置 HTTP 客户端.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithRetry 对网络错误与 5xx 响应按配置重试，总耗时受单次拉取超时约束.
func WithRetry(cfg *retry.Config) HTTPOption {
	return func(f *HTTPFetcher) {
		f.retry = cfg
	}
}

// WithHTTPLogger 设置重试日志记录器，仅在配置 WithRetry 时使用.
func WithHTTPLogger(log logger.Logger) HTTPOption {
	return func(f *HTTPFetcher) {
		f.logger = log
	}
}

// NewHTTPFetcher 创建 HTTP 策略拉取器，baseURL 形如 http://127.0.0.1:5778.
func NewHTTPFetcher(baseURL string, opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(f)
	}

	f.doer = f.client
	if f.retry != nil {
		f.doer = retry.NewHTTPClient(f.client, f.retry, retry.WithLogger(f.logger))
	}
	return f
}

// Fetch 请求 {baseURL}/sampling?service=name.
func (f *HTTPFetcher) Fetch(ctx context.Context, serviceName string) (*Strategies, error) {
	endpoint := f.baseURL + "/sampling?service=" + url.QueryEscape(serviceName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("sampler: 创建请求失败: %w", err)
	}

	resp, err := f.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sampler: 请求采样策略失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("sampler: 读取响应失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return ParseStrategies(body)
}

// ConsulFetcher 从 Consul KV 读取策略，键为 {prefix}{serviceName}.
type ConsulFetcher struct {
	kv     *api.KV
	prefix string
}

// NewConsulFetcher 创建 Consul 策略拉取器，address 为空时使用 consul 默认地址.
func NewConsulFetcher(address, prefix string) (*ConsulFetcher, error) {
	cfg := api.DefaultConfig()
	if address != "" {
		cfg.Address = address
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("sampler: 创建 consul 客户端失败 [地址:%s]: %w", cfg.Address, err)
	}
	return NewConsulFetcherWithClient(client, prefix), nil
}

// NewConsulFetcherWithClient 使用已有 consul 客户端.
func NewConsulFetcherWithClient(client *api.Client, prefix string) *ConsulFetcher {
	return &ConsulFetcher{kv: client.KV(), prefix: prefix}
}

// Key 返回服务对应的 KV 键.
func (f *ConsulFetcher) Key(serviceName string) string {
	return f.prefix + serviceName
}

// Fetch 读取 KV 并解析为策略.
func (f *ConsulFetcher) Fetch(ctx context.Context, serviceName string) (*Strategies, error) {
	key := f.Key(serviceName)

	pair, _, err := f.kv.Get(key, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("sampler: 读取 consul KV 失败 [键:%s]: %w", key, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, key)
	}

	return ParseStrategies(pair.Value)
}
