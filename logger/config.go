package logger

import (
	"fmt"
	"strings"
)

// Config 日志配置.
type Config struct {
	Type   string `json:"type" toml:"type" yaml:"type" mapstructure:"type"`
	Level  string `json:"level" toml:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" toml:"format" yaml:"format" mapstructure:"format"`

	// 输出配置
	Output   string `json:"output" toml:"output" yaml:"output" mapstructure:"output"`
	FilePath string `json:"file_path" toml:"file_path" yaml:"file_path" mapstructure:"file_path"`

	EnableCaller bool   `json:"enable_caller" toml:"enable_caller" yaml:"enable_caller" mapstructure:"enable_caller"`
	TimeKey      string `json:"time_key" toml:"time_key" yaml:"time_key" mapstructure:"time_key"`
	MessageKey   string `json:"message_key" toml:"message_key" yaml:"message_key" mapstructure:"message_key"`
}

// ConfigError 配置错误.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("logger config error [%s]: %s", e.Field, e.Message)
}

// Validate 验证配置.
func (c *Config) Validate() error {
	if c == nil {
		return &ConfigError{Field: "config", Message: "config cannot be nil"}
	}

	if c.Level != "" && !isValidLevel(c.Level) {
		return &ConfigError{Field: "level", Message: "invalid log level: " + c.Level}
	}

	if c.Format != "" && !isValidFormat(c.Format) {
		return &ConfigError{Field: "format", Message: "invalid format: " + c.Format}
	}

	switch strings.ToLower(c.Output) {
	case "", OutputConsole:
	case OutputFile:
		if c.FilePath == "" {
			return &ConfigError{Field: "file_path", Message: "file_path is required when output is file"}
		}
	default:
		return &ConfigError{Field: "output", Message: "invalid output: " + c.Output}
	}

	return nil
}

// ApplyDefaults 应用默认值.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = TypeZap
	}
	if c.Level == "" {
		c.Level = LevelInfo
	}
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if c.Output == "" {
		c.Output = OutputConsole
	}
	if c.TimeKey == "" {
		c.TimeKey = "timestamp"
	}
	if c.MessageKey == "" {
		c.MessageKey = "msg"
	}
}

func isValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case LevelDebug, LevelInfo, LevelWarn, "warning", LevelError:
		return true
	}
	return false
}

func isValidFormat(format string) bool {
	switch strings.ToLower(format) {
	case FormatJSON, FormatConsole:
		return true
	}
	return false
}

// DefaultConfig 返回默认配置.
func DefaultConfig() *Config {
	config := &Config{}
	config.ApplyDefaults()
	return config
}
