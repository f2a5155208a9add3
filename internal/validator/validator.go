package validator

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lucifer2f/sld-design-sub001/internal/extractor"
	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/provenance"
	"github.com/lucifer2f/sld-design-sub001/internal/registry"
)

// DefaultAcceptanceFloor 记录自动接受的最低置信度
const DefaultAcceptanceFloor = 0.6

// SheetInput 单个 sheet 的校验输入；Mappings 与 Records 会被原地更新
type SheetInput struct {
	Index    int // sheet 在输入中的序号，用于归属修正记录
	Name     string
	Entity   model.EntityType
	Mappings []model.HeaderMapping
	Records  []*model.ExtractedRecord
}

// Outcome 校验结果；Issues 只包含本阶段新产生的问题
// SheetIssues 与 SheetQuality 按 Validate 入参 sheets 的位置对齐
type Outcome struct {
	Issues       []model.ValidationIssue
	SheetIssues  [][]model.ValidationIssue
	SheetQuality []float64
	Quality      float64
}

// Validator 校验引擎：可疑映射检测、规则校验、质量评分
type Validator struct {
	reg    *registry.Registry
	sizing extractor.Sizing
	floor  float64
	log    *provenance.Log
	logger *zap.Logger
}

// New 创建校验引擎；floor <= 0 时使用默认下限
func New(reg *registry.Registry, sizing extractor.Sizing, floor float64, log *provenance.Log, logger *zap.Logger) *Validator {
	if floor <= 0 {
		floor = DefaultAcceptanceFloor
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if log == nil {
		log = provenance.NewLog()
	}
	return &Validator{reg: reg, sizing: sizing, floor: floor, log: log, logger: logger}
}

// Floor 接受下限
func (v *Validator) Floor() float64 { return v.floor }

// Validate 校验全部 sheet 与合成记录，并推进记录到终态
func (v *Validator) Validate(sheets []SheetInput, synthesized []*model.ExtractedRecord, corrections []model.Correction) Outcome {
	start := time.Now()
	out := Outcome{
		SheetIssues:  make([][]model.ValidationIssue, len(sheets)),
		SheetQuality: make([]float64, len(sheets)),
	}

	// 记录按指针归属到 sheet，同名 sheet 不会混淆
	var all []*model.ExtractedRecord
	owner := make(map[*model.ExtractedRecord]int)
	for i, s := range sheets {
		for _, rec := range s.Records {
			owner[rec] = i
		}
		all = append(all, s.Records...)
	}
	all = append(all, synthesized...)

	// 先处理可疑映射，被撤销的列值不参与后续规则
	tallies := make([]tally, len(sheets))
	for i := range sheets {
		s := &sheets[i]
		issues := v.reviewMappings(s)
		issues = append(issues, unmappedIssues(s)...)
		tallies[i].failed += len(issues)
		out.SheetIssues[i] = append(out.SheetIssues[i], issues...)
		out.Issues = append(out.Issues, issues...)
	}

	idx := newIndex(all)
	var synthTally tally
	for _, rec := range all {
		t := &synthTally
		sheetPos, owned := owner[rec]
		if owned {
			t = &tallies[sheetPos]
		}
		// 提取阶段的问题计入失败
		t.failed += len(rec.Issues)
		issues, passed := v.checkRecord(rec, idx)
		t.passed += passed
		t.failed += len(issues)
		rec.Issues = append(rec.Issues, issues...)
		if owned {
			out.SheetIssues[sheetPos] = append(out.SheetIssues[sheetPos], issues...)
		}
		out.Issues = append(out.Issues, issues...)
		v.finalize(rec)
	}

	type sheetKey struct {
		index int
		name  string
	}
	correctionsBySheet := make(map[sheetKey]int)
	for _, c := range corrections {
		correctionsBySheet[sheetKey{c.SheetIndex, c.Sheet}]++
	}
	var total tally
	var allMappings []model.HeaderMapping
	for i, s := range sheets {
		t := &tallies[i]
		t.mappings = s.Mappings
		t.records = len(s.Records)
		t.corrections = correctionsBySheet[sheetKey{s.Index, s.Name}]
		out.SheetQuality[i] = t.quality()
		total.passed += t.passed
		total.failed += t.failed
		total.records += t.records
		allMappings = append(allMappings, s.Mappings...)
	}
	total.passed += synthTally.passed
	total.failed += synthTally.failed
	total.records += len(synthesized)
	total.corrections = len(corrections)
	total.mappings = allMappings
	out.Quality = total.quality()

	v.log.Append(model.ProvenanceEntry{
		Stage:    model.StageValidate,
		Decision: "validated",
		Score:    out.Quality,
		Duration: time.Since(start),
		Detail:   fmt.Sprintf("%d records, %d issues, %d passed checks", len(all), len(out.Issues), total.passed),
	})
	v.logger.Debug("validator: done",
		zap.Int("records", len(all)),
		zap.Int("issues", len(out.Issues)),
		zap.Float64("quality", out.Quality))
	return out
}

// finalize 计算记录最终置信度并决定 ACCEPTED / NEEDS_REVIEW
func (v *Validator) finalize(rec *model.ExtractedRecord) {
	conf := RecordConfidence(rec)
	rec.Advance(model.StateValidated)
	rec.FinalConfidence = conf
	if conf >= v.floor && !hasBlocking(rec.Issues) {
		rec.Advance(model.StateAccepted)
	} else {
		rec.Advance(model.StateNeedsReview)
	}
}

func hasBlocking(issues []model.ValidationIssue) bool {
	for _, is := range issues {
		if is.Blocking() {
			return true
		}
	}
	return false
}

func issueFor(rec *model.ExtractedRecord, sev model.Severity, kind model.IssueKind, rule, field, msg string) model.ValidationIssue {
	return model.ValidationIssue{
		Severity: sev,
		Kind:     kind,
		Entity:   rec.Entity,
		EntityID: rec.ID,
		Sheet:    rec.Source.Sheet,
		Row:      rec.Source.Row,
		Field:    field,
		Message:  msg,
		RuleID:   rule,
	}
}
