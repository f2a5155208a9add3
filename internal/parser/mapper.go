package parser

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lucifer2f/sld-design-sub001/internal/capability"
	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/provenance"
	"github.com/lucifer2f/sld-design-sub001/internal/registry"
)

const advisorSamples = 3

// ColumnMapper 表头 -> 规范字段映射器
type ColumnMapper struct {
	env Env
}

// NewColumnMapper 创建映射器
func NewColumnMapper(env Env) *ColumnMapper {
	return &ColumnMapper{env: env.withDefaults()}
}

type candidate struct {
	field     model.CanonicalField
	fuzzy     float64
	embedding float64
	combined  float64
	method    model.MappingMethod
}

// Map 映射一张已分类 Sheet 的全部表头
func (m *ColumnMapper) Map(ctx context.Context, sheet model.Sheet, entity model.EntityType) []model.HeaderMapping {
	mappings := make([]model.HeaderMapping, len(sheet.Headers))
	for idx, raw := range sheet.Headers {
		mappings[idx] = m.mapHeader(ctx, sheet.Name, idx, raw, entity)
	}
	m.resolveCollisions(sheet.Name, mappings)
	m.advise(ctx, sheet, entity, mappings)
	return mappings
}

// Unmapped 未分类 Sheet 的表头：全部保留但不映射
func Unmapped(sheet model.Sheet) []model.HeaderMapping {
	mappings := make([]model.HeaderMapping, len(sheet.Headers))
	for idx, raw := range sheet.Headers {
		mappings[idx] = model.HeaderMapping{
			ColumnIndex:      idx,
			Header:           raw,
			NormalizedHeader: registry.Normalize(raw),
			Method:           model.MethodNone,
			LowConfidence:    true,
			Reason:           model.ReasonUnclassified,
		}
	}
	return mappings
}

func (m *ColumnMapper) mapHeader(ctx context.Context, sheetName string, idx int, raw string, entity model.EntityType) model.HeaderMapping {
	start := time.Now()
	reg := m.env.Registry
	full := registry.Normalize(raw)
	core := registry.NormalizeCore(raw)

	hm := model.HeaderMapping{
		ColumnIndex:      idx,
		Header:           raw,
		NormalizedHeader: full,
		Method:           model.MethodNone,
	}
	if full == "" {
		hm.Reason = model.ReasonEmptyHeader
		hm.LowConfidence = true
		m.record(sheetName, hm, start)
		return hm
	}

	// 别名精确命中具有决定性
	for _, key := range []string{full, core} {
		if fieldID, ok := reg.LookupAlias(entity, key); ok {
			f, _ := reg.Field(entity, fieldID)
			pol := reg.Policy(entity, f.Kind)
			hm.Field = fieldID
			hm.Score = 1.0
			hm.Method = model.MethodAliasExact
			hm.Accepted = true
			hm.Tau = pol.Tau
			hm.Margin = pol.Margin
			m.record(sheetName, hm, start)
			return hm
		}
	}

	cands := m.score(ctx, full, core, entity)
	if len(cands) == 0 {
		hm.Reason = model.ReasonBelowThreshold
		hm.LowConfidence = true
		m.record(sheetName, hm, start)
		return hm
	}

	top := cands[0]
	var runnerUp float64
	if len(cands) > 1 {
		hm.RunnerUpField = cands[1].field.ID
		runnerUp = cands[1].combined
	}
	pol := reg.Policy(entity, top.field.Kind)
	hm.Field = top.field.ID
	hm.Score = top.combined
	hm.RunnerUpScore = runnerUp
	hm.Method = top.method
	hm.Tau = pol.Tau
	hm.Margin = pol.Margin

	switch {
	case top.combined < pol.Tau:
		hm.Reason = model.ReasonBelowThreshold
	case top.combined-runnerUp < pol.Margin:
		hm.Reason = model.ReasonAmbiguous
		hm.Note = fmt.Sprintf("%s %.3f vs %s %.3f", top.field.ID, top.combined, hm.RunnerUpField, runnerUp)
	default:
		hm.Accepted = true
	}
	if !hm.Accepted {
		// 未接受时只保留候选信息
		hm.Field = ""
		hm.LowConfidence = true
		hm.Note = strings.TrimSpace("best candidate " + top.field.ID + "; " + hm.Note)
	}
	m.record(sheetName, hm, start)
	return hm
}

// score 对实体全部字段打分并按综合得分降序排列（同分按字段目录顺序）
func (m *ColumnMapper) score(ctx context.Context, full, core string, entity model.EntityType) []candidate {
	reg := m.env.Registry
	fields := reg.Fields(entity)
	cands := make([]candidate, 0, len(fields))
	for _, f := range fields {
		fuzzy := m.fuzzyScore(full, entity, f.ID)
		if core != "" && core != full {
			fuzzy = max(fuzzy, m.fuzzyScore(core, entity, f.ID))
		}
		emb := m.embeddingScore(ctx, full, f)

		c := candidate{field: f, fuzzy: fuzzy, embedding: emb}
		switch {
		case emb > fuzzy:
			c.combined, c.method = emb, model.MethodEmbedding
		case emb == fuzzy && emb > 0:
			c.combined, c.method = fuzzy, model.MethodCombined
		default:
			c.combined, c.method = fuzzy, model.MethodFuzzy
		}
		cands = append(cands, c)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].combined > cands[j].combined
	})
	return cands
}

// fuzzyScore 单个文本对字段别名的最佳模糊得分，缓存键只由该文本决定
func (m *ColumnMapper) fuzzyScore(text string, entity model.EntityType, field string) float64 {
	return m.env.Cache.ScoreOrCompute(provenance.SignalFuzzy, text, field, func() float64 {
		best := 0.0
		for _, alias := range m.env.Registry.Aliases(entity, field) {
			best = max(best, HeaderSimilarity(text, alias))
		}
		return best
	})
}

func (m *ColumnMapper) embeddingScore(ctx context.Context, header string, f model.CanonicalField) float64 {
	if v, ok := m.env.Cache.Score(provenance.SignalEmbedding, header, f.ID); ok {
		return v
	}
	if !m.env.Embeddings.Available() {
		return 0
	}
	s, ok := m.env.Embeddings.Similarity(ctx, header, fieldDescriptor(f))
	if !ok {
		return 0
	}
	return m.env.Cache.PutScore(provenance.SignalEmbedding, header, f.ID, s)
}

func fieldDescriptor(f model.CanonicalField) string {
	return strings.ReplaceAll(f.ID, "_", " ") + ": " + f.Description
}

// resolveCollisions 同一字段只保留得分最高的列（同分取列号小者）
func (m *ColumnMapper) resolveCollisions(sheetName string, mappings []model.HeaderMapping) {
	winner := make(map[string]int)
	for i, hm := range mappings {
		if !hm.Accepted {
			continue
		}
		j, ok := winner[hm.Field]
		if !ok || hm.Score > mappings[j].Score {
			winner[hm.Field] = i
		}
	}
	for i := range mappings {
		hm := &mappings[i]
		if !hm.Accepted {
			continue
		}
		w := winner[hm.Field]
		if w == i {
			continue
		}
		field := hm.Field
		hm.Accepted = false
		hm.LowConfidence = true
		hm.Reason = model.ReasonCollision
		hm.Note = fmt.Sprintf("%s already mapped from column %d (%s)", field, w, mappings[w].Header)
		hm.Field = ""
		m.env.Log.Append(model.ProvenanceEntry{
			Stage:    model.StageMap,
			Sheet:    sheetName,
			Subject:  hm.Header,
			Decision: string(model.ReasonCollision),
			Method:   string(hm.Method),
			Score:    hm.Score,
			Tau:      hm.Tau,
			Margin:   hm.Margin,
			Detail:   hm.Note,
		})
	}
}

// advise 为未映射表头请求 LLM 建议，仅作记录
func (m *ColumnMapper) advise(ctx context.Context, sheet model.Sheet, entity model.EntityType, mappings []model.HeaderMapping) {
	if !m.env.Advice.Available() {
		return
	}
	var candidates []string
	for _, f := range m.env.Registry.Fields(entity) {
		candidates = append(candidates, f.ID)
	}
	for i := range mappings {
		hm := &mappings[i]
		if hm.Accepted || hm.Reason == model.ReasonEmptyHeader {
			continue
		}
		s, ok := m.env.Advice.Suggest(ctx, capability.Prompt{
			Entity:     string(entity),
			Header:     hm.Header,
			Candidates: candidates,
			Samples:    ColumnSamples(sheet, hm.ColumnIndex, advisorSamples),
		})
		if !ok {
			return
		}
		if s.Field == "" {
			continue
		}
		if _, known := m.env.Registry.Field(entity, s.Field); !known {
			continue
		}
		hm.Suggestion = fmt.Sprintf("%s (%.2f)", s.Field, s.Score)
		m.env.Log.Append(model.ProvenanceEntry{
			Stage:    model.StageMap,
			Sheet:    sheet.Name,
			Subject:  hm.Header,
			Decision: "advisory",
			Method:   "advisor",
			Score:    s.Score,
			Detail:   s.Field + ": " + s.Reason,
		})
	}
}

func (m *ColumnMapper) record(sheetName string, hm model.HeaderMapping, start time.Time) {
	decision := "rejected"
	if hm.Accepted {
		decision = "accepted"
	}
	detail := string(hm.Reason)
	if hm.Accepted {
		detail = hm.Field
	}
	m.env.Log.Append(model.ProvenanceEntry{
		Stage:    model.StageMap,
		Sheet:    sheetName,
		Subject:  hm.Header,
		Decision: decision,
		Method:   string(hm.Method),
		Score:    hm.Score,
		Tau:      hm.Tau,
		Margin:   hm.Margin,
		Duration: time.Since(start),
		Detail:   detail,
	})
	if !hm.Accepted && hm.Reason == model.ReasonAmbiguous {
		m.env.Logger.Debug("parser: ambiguous header",
			zap.String("sheet", sheetName), zap.String("header", hm.Header), zap.String("note", hm.Note))
	}
}
