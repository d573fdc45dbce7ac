package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Tsukikage7/tracekit/logger"
	"github.com/Tsukikage7/tracekit/metrics"
	"github.com/Tsukikage7/tracekit/span"
)

// 采样器类型.
const (
	SamplerConst         = "const"
	SamplerProbabilistic = "probabilistic"
	SamplerRateLimiting  = "ratelimiting"
	SamplerLowerBound    = "lowerbound"
	SamplerRemote        = "remote"
)

// 远程策略来源.
const (
	FetcherHTTP   = "http"
	FetcherConsul = "consul"
)

// 上报器类型.
const (
	ReporterNull    = "null"
	ReporterLogging = "logging"
	ReporterMemory  = "memory"
	ReporterRemote  = "remote"
)

// Config tracer 配置.
type Config struct {
	ServiceName string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`
	// Tags 附加到 process 的静态标签
	Tags map[string]string `json:"tags" yaml:"tags" mapstructure:"tags"`

	Sampler  SamplerConfig      `json:"sampler" yaml:"sampler" mapstructure:"sampler"`
	Reporter ReporterConfig     `json:"reporter" yaml:"reporter" mapstructure:"reporter"`
	Baggage  span.BaggageLimits `json:"baggage" yaml:"baggage" mapstructure:"baggage"`
	Logger   logger.Config      `json:"logger" yaml:"logger" mapstructure:"logger"`
	Metrics  metrics.Config     `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

// SamplerConfig 采样器配置.
type SamplerConfig struct {
	// Type 采样器类型: const, probabilistic, ratelimiting, lowerbound, remote
	Type string `json:"type" yaml:"type" mapstructure:"type"`
	// Param const 为 0/1，probabilistic 为采样率，ratelimiting 为每秒 trace 数，
	// lowerbound 为采样率，remote 为首次拉取前使用的采样率
	Param float64 `json:"param" yaml:"param" mapstructure:"param"`
	// LowerBound lowerbound 采样器的每秒保底 trace 数
	LowerBound float64 `json:"lower_bound" yaml:"lower_bound" mapstructure:"lower_bound"`

	// 远程采样
	Fetcher         string        `json:"fetcher" yaml:"fetcher" mapstructure:"fetcher"`
	ServerURL       string        `json:"server_url" yaml:"server_url" mapstructure:"server_url"`
	ConsulAddress   string        `json:"consul_address" yaml:"consul_address" mapstructure:"consul_address"`
	ConsulPrefix    string        `json:"consul_prefix" yaml:"consul_prefix" mapstructure:"consul_prefix"`
	RefreshInterval time.Duration `json:"refresh_interval" yaml:"refresh_interval" mapstructure:"refresh_interval"`
	FetchTimeout    time.Duration `json:"fetch_timeout" yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
	// FetchAttempts http 拉取的最大尝试次数，包含首次
	FetchAttempts int `json:"fetch_attempts" yaml:"fetch_attempts" mapstructure:"fetch_attempts"`
	MaxOperations int `json:"max_operations" yaml:"max_operations" mapstructure:"max_operations"`
}

// ReporterConfig 上报器配置.
type ReporterConfig struct {
	// Kinds 上报器类型列表，多个时组合上报
	Kinds []string `json:"kinds" yaml:"kinds" mapstructure:"kinds"`

	AgentHostPort string        `json:"agent_host_port" yaml:"agent_host_port" mapstructure:"agent_host_port"`
	MaxPacketSize int           `json:"max_packet_size" yaml:"max_packet_size" mapstructure:"max_packet_size"`
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval" mapstructure:"flush_interval"`
	WriteTimeout  time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`

	// MaxSpans memory 上报器的容量上限，0 表示不限制
	MaxSpans int `json:"max_spans" yaml:"max_spans" mapstructure:"max_spans"`
}

// ConfigError 配置错误.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tracer config error [%s]: %s", e.Field, e.Message)
}

// DefaultConfig 返回默认配置.
func DefaultConfig(serviceName string) *Config {
	c := &Config{ServiceName: serviceName}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults 应用默认值.
func (c *Config) ApplyDefaults() {
	if c.Sampler.Type == "" {
		c.Sampler.Type = SamplerRemote
		if c.Sampler.Param == 0 {
			c.Sampler.Param = 0.001
		}
	}
	c.Sampler.Type = strings.ToLower(c.Sampler.Type)
	if c.Sampler.Type == SamplerRemote {
		if c.Sampler.Fetcher == "" {
			c.Sampler.Fetcher = FetcherHTTP
		}
		if c.Sampler.ServerURL == "" {
			c.Sampler.ServerURL = "http://127.0.0.1:5778"
		}
		if c.Sampler.RefreshInterval == 0 {
			c.Sampler.RefreshInterval = time.Minute
		}
		if c.Sampler.MaxOperations == 0 {
			c.Sampler.MaxOperations = 2000
		}
		if c.Sampler.FetchTimeout == 0 {
			c.Sampler.FetchTimeout = 5 * time.Second
		}
		if c.Sampler.FetchAttempts == 0 {
			c.Sampler.FetchAttempts = 3
		}
	}

	if len(c.Reporter.Kinds) == 0 {
		c.Reporter.Kinds = []string{ReporterRemote}
	}
	for i, k := range c.Reporter.Kinds {
		c.Reporter.Kinds[i] = strings.ToLower(strings.TrimSpace(k))
	}
	if c.Reporter.AgentHostPort == "" {
		c.Reporter.AgentHostPort = "127.0.0.1:6831"
	}
	if c.Reporter.MaxPacketSize == 0 {
		c.Reporter.MaxPacketSize = 65000
	}
	if c.Reporter.FlushInterval == 0 {
		c.Reporter.FlushInterval = time.Second
	}
	if c.Reporter.WriteTimeout == 0 {
		c.Reporter.WriteTimeout = 100 * time.Millisecond
	}

	c.Logger.ApplyDefaults()
	c.Metrics.ApplyDefaults()
}

// Validate 验证配置.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.ServiceName == "" {
		return &ConfigError{Field: "service_name", Message: "service name is required"}
	}
	if err := c.Sampler.validate(); err != nil {
		return err
	}
	if err := c.Reporter.validate(); err != nil {
		return err
	}
	if c.Baggage.MaxItems < 0 || c.Baggage.MaxValueLength < 0 {
		return &ConfigError{Field: "baggage", Message: "limits must not be negative"}
	}
	return c.Logger.Validate()
}

func (s *SamplerConfig) validate() error {
	switch s.Type {
	case SamplerConst:
		if s.Param != 0 && s.Param != 1 {
			return &ConfigError{Field: "sampler.param", Message: "const sampler param must be 0 or 1"}
		}
	case SamplerProbabilistic, SamplerRemote:
		if s.Param < 0 || s.Param > 1 {
			return &ConfigError{Field: "sampler.param", Message: "sampling rate must be within [0, 1]"}
		}
	case SamplerRateLimiting:
		if s.Param < 0 {
			return &ConfigError{Field: "sampler.param", Message: "traces per second must not be negative"}
		}
	case SamplerLowerBound:
		if s.Param < 0 || s.Param > 1 {
			return &ConfigError{Field: "sampler.param", Message: "sampling rate must be within [0, 1]"}
		}
		if s.LowerBound < 0 {
			return &ConfigError{Field: "sampler.lower_bound", Message: "lower bound must not be negative"}
		}
	default:
		return &ConfigError{Field: "sampler.type", Message: "unsupported sampler type: " + s.Type}
	}

	if s.Type != SamplerRemote {
		return nil
	}
	switch s.Fetcher {
	case FetcherHTTP:
		if s.ServerURL == "" {
			return &ConfigError{Field: "sampler.server_url", Message: "server url is required"}
		}
	case FetcherConsul:
	default:
		return &ConfigError{Field: "sampler.fetcher", Message: "unsupported fetcher: " + s.Fetcher}
	}
	if s.RefreshInterval < time.Second {
		return &ConfigError{Field: "sampler.refresh_interval", Message: "refresh interval must be at least 1s"}
	}
	if s.MaxOperations <= 0 {
		return &ConfigError{Field: "sampler.max_operations", Message: "max operations must be positive"}
	}
	if s.FetchAttempts <= 0 {
		return &ConfigError{Field: "sampler.fetch_attempts", Message: "fetch attempts must be positive"}
	}
	return nil
}

func (r *ReporterConfig) validate() error {
	for _, k := range r.Kinds {
		switch k {
		case ReporterNull, ReporterLogging, ReporterMemory, ReporterRemote:
		default:
			return &ConfigError{Field: "reporter.kinds", Message: "unsupported reporter: " + k}
		}
	}
	if r.MaxPacketSize <= 0 {
		return &ConfigError{Field: "reporter.max_packet_size", Message: "max packet size must be positive"}
	}
	if r.FlushInterval < time.Second {
		return &ConfigError{Field: "reporter.flush_interval", Message: "flush interval must be at least 1s"}
	}
	if r.MaxSpans < 0 {
		return &ConfigError{Field: "reporter.max_spans", Message: "max spans must not be negative"}
	}
	return nil
}
