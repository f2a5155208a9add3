package registry

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// 领域符号替换（在 NFKC + case fold 之后执行）
var symbolReplacer = strings.NewReplacer(
	"φ", " phi ",
	"ϕ", " phi ",
	"η", " eta ",
	"ω", " ohm ",
	"μ", "u",
	"°", " deg ",
	"²", "2",
	"³", "3",
	"%", " percent ",
	"√", " sqrt ",
	"×", " x ",
)

var (
	bracketPattern  = regexp.MustCompile(`[\(\[（【{][^\)\]）】}]*[\)\]）】}]`)
	numericOnlyExpr = regexp.MustCompile(`^[0-9 ]+$`)
)

// Normalize 规范化表头/别名：NFKC、大小写折叠、符号替换、标点转空格、压缩空白
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	// Caser 有状态，不能跨 goroutine 共享
	s = cases.Fold().String(s)
	s = symbolReplacer.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.Is(unicode.Mn, r):
			// 组合附加符号直接丢弃
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeCore 去掉括号内容（通常是单位）后再规范化，结果为空时退回完整形式
func NormalizeCore(s string) string {
	core := Normalize(bracketPattern.ReplaceAllString(s, " "))
	if core == "" {
		return Normalize(s)
	}
	return core
}

// BracketContent 返回表头括号内的文本（如 "Power (kW)" -> "kW"）
func BracketContent(s string) string {
	m := bracketPattern.FindString(s)
	if m == "" {
		return ""
	}
	r := []rune(m)
	return strings.TrimSpace(string(r[1 : len(r)-1]))
}

// Tokens 规范化后按空白切分
func Tokens(normalized string) []string {
	return strings.Fields(normalized)
}

// IsNumericOnly 规范化表头是否只含数字
func IsNumericOnly(normalized string) bool {
	return normalized != "" && numericOnlyExpr.MatchString(normalized)
}
