package parser

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/provenance"
	"github.com/lucifer2f/sld-design-sub001/internal/registry"
)

const (
	patternWeight  = 0.75
	semanticWeight = 0.25
	sheetNameBoost = 0.1
	// 区分性特征命中数达到该值时不再折减
	distinctiveSaturation = 2
)

// SheetClassifier Sheet 类型识别器
type SheetClassifier struct {
	env        Env
	sampleRows int
}

// NewSheetClassifier 创建识别器；sampleRows 为参与语义打分的样本行数
func NewSheetClassifier(env Env, sampleRows int) *SheetClassifier {
	if sampleRows < 0 {
		sampleRows = 0
	}
	return &SheetClassifier{env: env.withDefaults(), sampleRows: sampleRows}
}

// Classify 识别 Sheet 类型
func (c *SheetClassifier) Classify(ctx context.Context, sheet model.Sheet) model.SheetClassification {
	start := time.Now()
	reg := c.env.Registry
	policy := reg.SheetPolicy()

	normalized := NormalizeHeaders(sheet.Headers)
	sheetName := registry.Normalize(sheet.Name)
	semanticText := c.semanticText(normalized, sheet)

	useSemantic := c.env.Embeddings.Available() && semanticText != ""
	candidates := make([]model.CandidateScore, 0, len(reg.SheetDescriptors()))
	semanticScores := make(map[model.SheetType]float64)
	if useSemantic {
		for _, d := range reg.SheetDescriptors() {
			s, ok := c.semanticScore(ctx, semanticText, d)
			if !ok {
				// 能力中途失效：整张表退回纯模式匹配，保证各候选口径一致
				useSemantic = false
				break
			}
			semanticScores[d.Type] = s
		}
	}

	for _, d := range reg.SheetDescriptors() {
		cs := model.CandidateScore{Type: d.Type, Pattern: patternScore(d, normalized, sheetName)}
		if useSemantic {
			cs.Semantic = semanticScores[d.Type]
			cs.Combined = clamp01(patternWeight*cs.Pattern + semanticWeight*cs.Semantic)
		} else {
			cs.Combined = cs.Pattern
		}
		candidates = append(candidates, cs)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Combined > candidates[j].Combined
	})

	result := model.SheetClassification{
		SheetName:  sheet.Name,
		Type:       model.SheetTypeUnknown,
		Basis:      model.BasisPattern,
		Candidates: candidates,
		Tau:        policy.Tau,
		Margin:     policy.Margin,
	}
	if useSemantic {
		result.Basis = model.BasisCombined
	}

	var best, second model.CandidateScore
	if len(candidates) > 0 {
		best = candidates[0]
	}
	if len(candidates) > 1 {
		second = candidates[1]
		result.RunnerUp = second.Type
		result.RunnerUpScore = second.Combined
	}
	result.Confidence = best.Combined

	switch {
	case best.Combined < policy.Tau:
		result.Reason = string(model.ReasonBelowThreshold)
	case best.Combined-second.Combined < policy.Margin:
		result.Reason = string(model.ReasonAmbiguous)
	default:
		result.Type = best.Type
	}

	scores := make(map[string]float64, len(candidates))
	for _, cs := range candidates {
		scores[string(cs.Type)] = cs.Combined
	}
	c.env.Log.Append(model.ProvenanceEntry{
		Stage:    model.StageClassify,
		Sheet:    sheet.Name,
		Subject:  sheet.Name,
		Decision: string(result.Type),
		Method:   string(result.Basis),
		Score:    result.Confidence,
		Tau:      policy.Tau,
		Margin:   policy.Margin,
		Duration: time.Since(start),
		Scores:   scores,
		Detail:   result.Reason,
	})
	c.env.Logger.Debug("parser: sheet classified",
		zap.String("sheet", sheet.Name),
		zap.String("type", string(result.Type)),
		zap.Float64("confidence", result.Confidence),
		zap.String("runner_up", string(result.RunnerUp)))
	return result
}

// patternScore 表头命中率 × 区分性折减 + sheet 名加成
func patternScore(d registry.SheetDescriptor, headers []string, sheetName string) float64 {
	nonEmpty, matched := 0, 0
	distinct := make(map[int]struct{})
	for _, h := range headers {
		if h == "" {
			continue
		}
		nonEmpty++
		hit := false
		for i, re := range d.Distinctive {
			if re.MatchString(h) {
				distinct[i] = struct{}{}
				hit = true
			}
		}
		if hit || MatchAny(d.Generic, h) {
			matched++
		}
	}
	if nonEmpty == 0 {
		return 0
	}
	rate := float64(matched) / float64(nonEmpty)
	factor := 0.5 + 0.5*min(1, float64(len(distinct))/distinctiveSaturation)
	score := rate * factor
	if sheetName != "" && ContainsAny(sheetName, d.NameKeywords) {
		score += sheetNameBoost
	}
	return clamp01(score)
}

func (c *SheetClassifier) semanticText(headers []string, sheet model.Sheet) string {
	parts := make([]string, 0, len(headers))
	for _, h := range headers {
		if h != "" {
			parts = append(parts, h)
		}
	}
	for r := 0; r < c.sampleRows && r < len(sheet.Rows); r++ {
		for _, cell := range sheet.Rows[r] {
			if cell.Kind == model.CellText {
				if t := registry.Normalize(cell.Text); t != "" {
					parts = append(parts, t)
				}
			}
		}
	}
	return strings.Join(parts, " ")
}

func (c *SheetClassifier) semanticScore(ctx context.Context, text string, d registry.SheetDescriptor) (float64, bool) {
	if v, ok := c.env.Cache.Score(provenance.SignalSheet, text, string(d.Type)); ok {
		return v, true
	}
	s, ok := c.env.Embeddings.Similarity(ctx, text, d.Reference)
	if !ok {
		return 0, false
	}
	return c.env.Cache.PutScore(provenance.SignalSheet, text, string(d.Type), s), true
}
