package parser

import (
	"regexp"
	"strings"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/registry"
)

func splitTokens(s string) []string {
	return strings.Fields(s)
}

// MatchAny 任一正则命中
func MatchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// ContainsAny 检查字符串是否包含任意一个关键词
func ContainsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// NormalizeHeaders 规范化整行表头
func NormalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = registry.Normalize(h)
	}
	return out
}

// ColumnSamples 取某列前 n 个非空值
func ColumnSamples(sheet model.Sheet, col, n int) []string {
	var out []string
	for r := range sheet.Rows {
		if len(out) >= n {
			break
		}
		c := sheet.CellAt(r, col)
		if c.IsEmpty() {
			continue
		}
		out = append(out, c.String())
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
