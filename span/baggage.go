package span

import (
	"maps"
	"slices"
	"unicode/utf8"
)

// BaggageLimits baggage 容量限制，零值表示不限制.
type BaggageLimits struct {
	// MaxItems 最大条目数.
	MaxItems int `json:"max_items" yaml:"max_items" mapstructure:"max_items"`
	// MaxValueLength 单个值的最大长度，超出部分被截断.
	MaxValueLength int `json:"max_value_length" yaml:"max_value_length" mapstructure:"max_value_length"`
}

// SetBaggageItem 按限制写入 baggage.
//
// 已存在的 key 总是允许覆盖；新 key 超出 MaxItems 时拒绝并返回 false.
func (c *SpanContext) SetBaggageItem(key, value string, limits BaggageLimits) bool {
	if key == "" {
		return false
	}
	if _, exists := c.Baggage[key]; !exists && limits.MaxItems > 0 && len(c.Baggage) >= limits.MaxItems {
		return false
	}
	if limits.MaxValueLength > 0 && len(value) > limits.MaxValueLength {
		value = truncate(value, limits.MaxValueLength)
	}
	if c.Baggage == nil {
		c.Baggage = make(map[string]string)
	}
	c.Baggage[key] = value
	return true
}

// MergeBaggage 合并提取到的 baggage 条目，返回被丢弃的条目数.
//
// 条目按 key 排序后依次写入，超出 MaxItems 时被丢弃的条目是确定的.
func (c *SpanContext) MergeBaggage(items map[string]string, limits BaggageLimits) int {
	dropped := 0
	for _, k := range slices.Sorted(maps.Keys(items)) {
		if !c.SetBaggageItem(k, items[k], limits) {
			dropped++
		}
	}
	return dropped
}

// Allows 判断 baggage 是否满足限制.
func (l BaggageLimits) Allows(baggage map[string]string) bool {
	if l.MaxItems > 0 && len(baggage) > l.MaxItems {
		return false
	}
	if l.MaxValueLength > 0 {
		for _, v := range baggage {
			if len(v) > l.MaxValueLength {
				return false
			}
		}
	}
	return true
}

// LimitBaggage 按限制重建已有的 baggage，返回被丢弃的条目数.
func (c *SpanContext) LimitBaggage(limits BaggageLimits) int {
	if limits.Allows(c.Baggage) {
		return 0
	}
	items := c.Baggage
	c.Baggage = nil
	return c.MergeBaggage(items, limits)
}

// truncate 按字节截断到 n 以内，不拆分多字节字符.
func truncate(value string, n int) string {
	for n > 0 && !utf8.RuneStart(value[n]) {
		n--
	}
	return value[:n]
}
