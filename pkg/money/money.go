package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 金额字符串工具
// ============================================================================
//
// 账单里的所有金额字段在存储和传输中都是十进制字符串（例如 "50000"、"12500.50"），
// 不使用浮点数。任何算术都必须先经过 ParseOrZero：
//   - 空字符串、空白、无法解析的内容一律按 0 处理，不返回错误
//   - 解析成功的值保持十进制精度
//
// ============================================================================

// ParseOrZero 把金额字符串解析为十进制数，非法值返回 0
func ParseOrZero(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Normalize 去掉首尾空白，空值补成 "0"，其余原样保留（保留客户端的格式）
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "0"
	}
	return s
}

// IsZero 判断金额字符串按 ParseOrZero 规则是否为 0
func IsZero(s string) bool {
	return ParseOrZero(s).IsZero()
}

// Format 输出最简十进制字符串，例如 50000.00 -> "50000"
func Format(d decimal.Decimal) string {
	return d.String()
}

// Sum 对若干金额字符串求和
func Sum(values ...string) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(ParseOrZero(v))
	}
	return total
}

// 流水表金额列 decimal(15,2)
const (
	LedgerScale     = 2
	LedgerIntDigits = 13
)

var ledgerLimit = decimal.New(1, LedgerIntDigits)

// FitsLedger 金额能否原样存进流水表：最多两位小数，整数部分不超过 13 位
// 无法解析的值按 0 处理，视为合法
func FitsLedger(s string) bool {
	d := ParseOrZero(s)
	if !d.Equal(d.Truncate(LedgerScale)) {
		return false
	}
	return d.Abs().LessThan(ledgerLimit)
}
