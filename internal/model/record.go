package model

import (
	"sort"
	"strconv"
)

// RecordState 记录生命周期状态
type RecordState string

const (
	StateRaw         RecordState = "RAW"
	StateMapped      RecordState = "MAPPED"
	StateExtracted   RecordState = "EXTRACTED"
	StateEnhanced    RecordState = "ENHANCED"
	StateValidated   RecordState = "VALIDATED"
	StateAccepted    RecordState = "ACCEPTED"
	StateNeedsReview RecordState = "NEEDS_REVIEW"
)

var stateTransitions = map[RecordState][]RecordState{
	StateRaw:       {StateMapped},
	StateMapped:    {StateExtracted},
	StateExtracted: {StateEnhanced},
	StateEnhanced:  {StateValidated},
	StateValidated: {StateAccepted, StateNeedsReview},
}

// CanTransition 状态迁移是否合法
func (s RecordState) CanTransition(to RecordState) bool {
	for _, next := range stateTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal 是否为终态
func (s RecordState) Terminal() bool {
	return s == StateAccepted || s == StateNeedsReview
}

// FieldValue 单个字段的提取值
type FieldValue struct {
	Field      string    `json:"field"`
	Kind       ValueKind `json:"kind"`
	Set        bool      `json:"set"`
	Number     float64   `json:"number,omitempty"`
	Text       string    `json:"text,omitempty"`
	Unit       string    `json:"unit,omitempty"`
	Raw        string    `json:"raw,omitempty"`
	Column     int       `json:"column"` // -1 表示由增强阶段写入
	Confidence float64   `json:"confidence"`
	Issue      string    `json:"issue,omitempty"`
	Note       string    `json:"note,omitempty"`
}

// Value 返回字段值（数值或文本），未设置时返回 nil
func (v FieldValue) Value() any {
	if !v.Set {
		return nil
	}
	if v.Kind == KindNumeric {
		return v.Number
	}
	return v.Text
}

// String 字段值的文本形式
func (v FieldValue) String() string {
	if !v.Set {
		return ""
	}
	if v.Kind == KindNumeric {
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
	return v.Text
}

// RecordSource 记录来源
type RecordSource struct {
	Sheet       string `json:"sheet"`
	SheetIndex  int    `json:"sheetIndex"` // sheet 在输入中的序号；同名 sheet 以此区分
	Row         int    `json:"row"`        // 数据行号，从 1 开始；合成记录为 0
	Synthesized bool   `json:"synthesized"`
}

// MappedEntity 统一的实体访问能力
type MappedEntity interface {
	EntityType() EntityType
	Identifier() string
	Lookup(field string) (FieldValue, bool)
	Confidence() float64
	Provenance() RecordSource
}

// ExtractedRecord 提取后的实体记录
type ExtractedRecord struct {
	Entity          EntityType            `json:"entity"`
	ID              string                `json:"id"`
	Source          RecordSource          `json:"source"`
	Order           []string              `json:"order"`
	Fields          map[string]FieldValue `json:"fields"`
	State           RecordState           `json:"state"`
	FinalConfidence float64               `json:"confidence"`
	Issues          []ValidationIssue     `json:"issues,omitempty"`
}

var _ MappedEntity = (*ExtractedRecord)(nil)

// NewRecord 创建空记录
func NewRecord(entity EntityType, source RecordSource) *ExtractedRecord {
	return &ExtractedRecord{
		Entity: entity,
		Source: source,
		Fields: make(map[string]FieldValue),
		State:  StateRaw,
	}
}

func (r *ExtractedRecord) EntityType() EntityType { return r.Entity }
func (r *ExtractedRecord) Identifier() string { return r.ID }
func (r *ExtractedRecord) Provenance() RecordSource { return r.Source }

// Lookup 按规范字段查找
func (r *ExtractedRecord) Lookup(field string) (FieldValue, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

// Has 字段是否已设置有效值
func (r *ExtractedRecord) Has(field string) bool {
	v, ok := r.Fields[field]
	return ok && v.Set
}

// Number 读取数值字段
func (r *ExtractedRecord) Number(field string) (float64, bool) {
	v, ok := r.Fields[field]
	if !ok || !v.Set || v.Kind != KindNumeric {
		return 0, false
	}
	return v.Number, true
}

// Text 读取文本类字段
func (r *ExtractedRecord) Text(field string) string {
	v, ok := r.Fields[field]
	if !ok || !v.Set {
		return ""
	}
	return v.String()
}

// Put 写入字段，保持首次写入顺序
func (r *ExtractedRecord) Put(v FieldValue) {
	if r.Fields == nil {
		r.Fields = make(map[string]FieldValue)
	}
	if _, exists := r.Fields[v.Field]; !exists {
		r.Order = append(r.Order, v.Field)
	}
	r.Fields[v.Field] = v
}

// Unset 清除字段值并记录原因
func (r *ExtractedRecord) Unset(field, issue string) {
	v, ok := r.Fields[field]
	if !ok {
		return
	}
	v.Set = false
	v.Number = 0
	v.Text = ""
	v.Confidence = 0
	v.Issue = issue
	r.Fields[field] = v
}

// Confidence 记录置信度：验证后为最终置信度，之前为字段置信度均值
func (r *ExtractedRecord) Confidence() float64 {
	if r.State == StateAccepted || r.State == StateNeedsReview || r.State == StateValidated {
		return r.FinalConfidence
	}
	return r.MeanFieldConfidence()
}

// MeanFieldConfidence 已设置字段的置信度均值
func (r *ExtractedRecord) MeanFieldConfidence() float64 {
	var sum float64
	var n int
	for _, f := range r.Order {
		v := r.Fields[f]
		if !v.Set {
			continue
		}
		sum += v.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Advance 推进状态，非法迁移返回 false
func (r *ExtractedRecord) Advance(to RecordState) bool {
	if !r.State.CanTransition(to) {
		return false
	}
	r.State = to
	return true
}

// Clone 深拷贝
func (r *ExtractedRecord) Clone() *ExtractedRecord {
	cp := *r
	cp.Order = append([]string(nil), r.Order...)
	cp.Fields = make(map[string]FieldValue, len(r.Fields))
	for k, v := range r.Fields {
		cp.Fields[k] = v
	}
	cp.Issues = append([]ValidationIssue(nil), r.Issues...)
	return &cp
}

// SortRecords 按实体类型、来源 sheet、行号排序，合成记录排在最后
func SortRecords(records []*ExtractedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Source.Synthesized != b.Source.Synthesized {
			return !a.Source.Synthesized
		}
		if a.Source.Sheet != b.Source.Sheet {
			return a.Source.Sheet < b.Source.Sheet
		}
		if a.Source.SheetIndex != b.Source.SheetIndex {
			return a.Source.SheetIndex < b.Source.SheetIndex
		}
		if a.Source.Row != b.Source.Row {
			return a.Source.Row < b.Source.Row
		}
		return a.ID < b.ID
	})
}
