package capability

import (
	"context"
	"math"
	"strings"
)

// Embedder 文本 -> 定长向量，可能失败
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Prompt 结构化提示：为未映射的表头请求建议
type Prompt struct {
	Entity     string   `json:"entity"`
	Header     string   `json:"header"`
	Candidates []string `json:"candidates"`
	Samples    []string `json:"samples,omitempty"`
}

// Render 渲染为文本提示
func (p Prompt) Render() string {
	var b strings.Builder
	b.WriteString("You map spreadsheet column headers of an electrical ")
	b.WriteString(p.Entity)
	b.WriteString(" schedule to canonical field ids.\n")
	b.WriteString("Header: ")
	b.WriteString(p.Header)
	b.WriteString("\nCandidate fields: ")
	b.WriteString(strings.Join(p.Candidates, ", "))
	if len(p.Samples) > 0 {
		b.WriteString("\nSample values: ")
		b.WriteString(strings.Join(p.Samples, ", "))
	}
	b.WriteString("\nAnswer with JSON {\"field\": <candidate or empty>, \"score\": <0..1>, \"reason\": <short text>}.")
	return b.String()
}

// Suggestion LLM 的建议（只作参考信号）
type Suggestion struct {
	Field  string  `json:"field"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
}

// Advisor 结构化提示 -> 建议，可能失败
type Advisor interface {
	Advise(ctx context.Context, prompt Prompt) (Suggestion, error)
}

// Cosine 单位化后点积；维度不一致或零向量返回 0
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
