package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite 配置测试套件.
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) SetupSuite() {
	s.tempDir = s.T().TempDir()
}

// 测试用配置结构.
type appConfig struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
}

func (c *appConfig) Validate() error {
	if c.Name == "" {
		return errors.New("name 不能为空")
	}
	return nil
}

func (s *ConfigTestSuite) writeFile(name, content string) string {
	path := filepath.Join(s.tempDir, name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o644))
	return path
}

// === 通用加载 ===

func (s *ConfigTestSuite) TestLoad_FileNotFound() {
	_, err := Load[appConfig]("/nonexistent/config.yaml")
	s.ErrorIs(err, ErrFileNotFound)
}

func (s *ConfigTestSuite) TestLoad_InvalidYAML() {
	path := s.writeFile("invalid.yaml", `invalid: yaml: content: [}`)

	_, err := Load[appConfig](path)
	s.ErrorIs(err, ErrReadConfig)
}

func (s *ConfigTestSuite) TestLoad_ValidationFailure() {
	path := s.writeFile("noname.yaml", "port: 8080\n")

	_, err := Load[appConfig](path)
	s.ErrorIs(err, ErrValidation)
}

func (s *ConfigTestSuite) TestLoad_WithDefaults() {
	path := s.writeFile("partial.yaml", "name: my-app\n")

	cfg, err := Load[appConfig](path, WithDefaults(map[string]any{"port": 3000}))
	s.Require().NoError(err)
	s.Equal("my-app", cfg.Name)
	s.Equal(3000, cfg.Port)
}

func (s *ConfigTestSuite) TestMustLoad_Panic() {
	s.Panics(func() {
		MustLoad[appConfig]("/nonexistent/file.yaml")
	})
}

func (s *ConfigTestSuite) TestDefaultOptions() {
	opts := DefaultOptions()
	s.NotNil(opts.EnvKeyReplacer)
	s.True(opts.AutomaticEnv)
	s.False(opts.AllowEmptyEnv)
}

// === tracer 配置 ===

func (s *ConfigTestSuite) TestTracerConfig_YAML() {
	path := s.writeFile("tracer.yaml", `
service_name: checkout
tags:
  region: eu
sampler:
  type: remote
  param: 0.25
  fetcher: consul
  consul_prefix: sampling/
  refresh_interval: 30s
reporter:
  kinds: [remote, LOGGING]
  agent_host_port: 10.0.0.1:6831
  max_packet_size: 1500
baggage:
  max_items: 8
  max_value_length: 64
`)

	cfg, err := Load[Config](path)
	s.Require().NoError(err)
	s.Equal("checkout", cfg.ServiceName)
	s.Equal("eu", cfg.Tags["region"])
	s.Equal(SamplerRemote, cfg.Sampler.Type)
	s.Equal(0.25, cfg.Sampler.Param)
	s.Equal(FetcherConsul, cfg.Sampler.Fetcher)
	s.Equal("sampling/", cfg.Sampler.ConsulPrefix)
	s.Equal(30*time.Second, cfg.Sampler.RefreshInterval)
	s.Equal(2000, cfg.Sampler.MaxOperations)
	s.Equal([]string{ReporterRemote, ReporterLogging}, cfg.Reporter.Kinds)
	s.Equal("10.0.0.1:6831", cfg.Reporter.AgentHostPort)
	s.Equal(1500, cfg.Reporter.MaxPacketSize)
	s.Equal(time.Second, cfg.Reporter.FlushInterval)
	s.Equal(8, cfg.Baggage.MaxItems)
	s.Equal(64, cfg.Baggage.MaxValueLength)
	s.Equal("info", cfg.Logger.Level)
}

func (s *ConfigTestSuite) TestTracerConfig_EnvOverride() {
	s.T().Setenv("TRACEKIT_SAMPLER_TYPE", "const")
	s.T().Setenv("TRACEKIT_SAMPLER_PARAM", "1")

	cfg, err := LoadFromBytes[Config]([]byte("service_name: api\n"), "yaml",
		WithEnvPrefix("TRACEKIT"), WithEnvKeys("sampler.type", "sampler.param"))
	s.Require().NoError(err)
	s.Equal(SamplerConst, cfg.Sampler.Type)
	s.Equal(1.0, cfg.Sampler.Param)
}

func (s *ConfigTestSuite) TestTracerConfig_Defaults() {
	cfg := DefaultConfig("svc")

	s.NoError(cfg.Validate())
	s.Equal(SamplerRemote, cfg.Sampler.Type)
	s.Equal(0.001, cfg.Sampler.Param)
	s.Equal(FetcherHTTP, cfg.Sampler.Fetcher)
	s.Equal(time.Minute, cfg.Sampler.RefreshInterval)
	s.Equal(3, cfg.Sampler.FetchAttempts)
	s.Equal([]string{ReporterRemote}, cfg.Reporter.Kinds)
	s.Equal(65000, cfg.Reporter.MaxPacketSize)
	s.Equal(100*time.Millisecond, cfg.Reporter.WriteTimeout)
}

func (s *ConfigTestSuite) TestTracerConfig_Validate() {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"service name", func(c *Config) { c.ServiceName = "" }, "service_name"},
		{"sampler type", func(c *Config) { c.Sampler.Type = "adaptive" }, "sampler.type"},
		{"const param", func(c *Config) { c.Sampler.Type = SamplerConst; c.Sampler.Param = 0.5 }, "sampler.param"},
		{"probability", func(c *Config) { c.Sampler.Type = SamplerProbabilistic; c.Sampler.Param = 1.5 }, "sampler.param"},
		{"rate", func(c *Config) { c.Sampler.Type = SamplerRateLimiting; c.Sampler.Param = -1 }, "sampler.param"},
		{"lower bound", func(c *Config) { c.Sampler.Type = SamplerLowerBound; c.Sampler.LowerBound = -1 }, "sampler.lower_bound"},
		{"fetcher", func(c *Config) { c.Sampler.Fetcher = "etcd" }, "sampler.fetcher"},
		{"refresh", func(c *Config) { c.Sampler.RefreshInterval = 10 * time.Millisecond }, "sampler.refresh_interval"},
		{"max operations", func(c *Config) { c.Sampler.MaxOperations = -1 }, "sampler.max_operations"},
		{"fetch attempts", func(c *Config) { c.Sampler.FetchAttempts = -1 }, "sampler.fetch_attempts"},
		{"reporter kind", func(c *Config) { c.Reporter.Kinds = []string{"kafka"} }, "reporter.kinds"},
		{"packet size", func(c *Config) { c.Reporter.MaxPacketSize = -1 }, "reporter.max_packet_size"},
		{"flush interval", func(c *Config) { c.Reporter.FlushInterval = time.Millisecond }, "reporter.flush_interval"},
		{"baggage", func(c *Config) { c.Baggage.MaxItems = -1 }, "baggage"},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			cfg := DefaultConfig("svc")
			tc.mutate(cfg)

			var cfgErr *ConfigError
			s.Require().ErrorAs(cfg.Validate(), &cfgErr)
			s.Equal(tc.field, cfgErr.Field)
		})
	}
}

func (s *ConfigTestSuite) TestTracerConfig_NilValidate() {
	var cfg *Config
	s.ErrorIs(cfg.Validate(), ErrNilConfig)
}
