package config

import "strings"

// Options 配置加载选项.
type Options struct {
	// EnvPrefix 环境变量前缀，例如 "TRACEKIT" 会将 TRACEKIT_SAMPLER_TYPE 映射到 sampler.type
	EnvPrefix string

	// EnvKeyReplacer 环境变量键替换器，默认将 . 替换为 _
	EnvKeyReplacer *strings.Replacer

	// AutomaticEnv 是否自动绑定环境变量
	AutomaticEnv bool

	// AllowEmptyEnv 是否允许空环境变量值覆盖配置
	AllowEmptyEnv bool

	// ConfigType 显式指定配置文件类型（yaml, json, toml 等）
	ConfigType string

	// Defaults 默认配置值
	Defaults map[string]any

	// EnvKeys 需要显式绑定环境变量的键，例如 "sampler.param"
	EnvKeys []string
}

// DefaultOptions 返回默认选项.
func DefaultOptions() *Options {
	return &Options{
		EnvKeyReplacer: strings.NewReplacer(".", "_"),
		AutomaticEnv:   true,
		AllowEmptyEnv:  false,
	}
}

// Option 配置选项函数.
type Option func(*Options)

// WithEnvPrefix 设置环境变量前缀.
func WithEnvPrefix(prefix string) Option {
	return func(o *Options) {
		o.EnvPrefix = prefix
	}
}

// WithAutomaticEnv 启用自动环境变量绑定.
func WithAutomaticEnv() Option {
	return func(o *Options) {
		o.AutomaticEnv = true
	}
}

// WithDefaults 设置默认值.
func WithDefaults(defaults map[string]any) Option {
	return func(o *Options) {
		o.Defaults = defaults
	}
}

// WithConfigType 显式指定配置文件类型.
func WithConfigType(configType string) Option {
	return func(o *Options) {
		o.ConfigType = configType
	}
}

// WithEnvKeys 显式绑定环境变量键.
// viper 的 AutomaticEnv 只对已知键生效，未出现在配置文件中的键需要显式绑定.
func WithEnvKeys(keys ...string) Option {
	return func(o *Options) {
		o.EnvKeys = append(o.EnvKeys, keys...)
	}
}
