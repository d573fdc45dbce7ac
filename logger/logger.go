// Package logger 提供结构化日志记录功能.
package logger

import "io"

// 日志类型常量.
const (
	TypeZap = "zap"
	TypeNop = "nop"
)

// 日志级别常量.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// 输出格式常量.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// 输出目标常量.
const (
	OutputConsole = "console"
	OutputFile    = "file"
)

// Field 表示一个日志字段.
type Field struct {
	Key   string
	Value any
}

// Logger 日志记录器接口.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)

	// With 返回带有附加字段的 logger.
	With(fields ...Field) Logger

	Sync() error
	Close() error
}

// NewLogger 创建 logger 实例.
func NewLogger(config *Config) (Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.ApplyDefaults()

	switch config.Type {
	case TypeZap:
		return newZapLogger(config, nil)
	case TypeNop:
		return Nop(), nil
	default:
		return nil, &ConfigError{Field: "type", Message: "unsupported logger type: " + config.Type}
	}
}

// NewLoggerWithWriter 创建输出到指定 writer 的 zap logger，忽略 Output 配置.
func NewLoggerWithWriter(config *Config, w io.Writer) (Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrNilWriter
	}
	config.ApplyDefaults()
	return newZapLogger(config, w)
}

// MustNewLogger 创建 logger 实例，失败时 panic.
func MustNewLogger(config *Config) Logger {
	l, err := NewLogger(config)
	if err != nil {
		panic(err)
	}
	return l
}

// Nop 返回丢弃所有输出的 logger.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(...any)           {}
func (nopLogger) Debugf(string, ...any)  {}
func (nopLogger) Info(...any)            {}
func (nopLogger) Infof(string, ...any)   {}
func (nopLogger) Warn(...any)            {}
func (nopLogger) Warnf(string, ...any)   {}
func (nopLogger) Error(...any)           {}
func (nopLogger) Errorf(string, ...any)  {}
func (n nopLogger) With(...Field) Logger { return n }
func (nopLogger) Sync() error            { return nil }
func (nopLogger) Close() error           { return nil }
