package extractor

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/provenance"
	"github.com/lucifer2f/sld-design-sub001/internal/registry"
)

const (
	// 未知单位时字段置信度折减
	unknownUnitFactor = 0.7

	RuleCoercion = "extract.coercion"
	RuleUnit     = "extract.unit"
)

// Extractor 按已接受映射逐行提取并类型化
type Extractor struct {
	reg     *registry.Registry
	log     *provenance.Log
	logger  *zap.Logger
	workers int
}

// New 创建提取器；workers ≤ 0 时按 4 处理
func New(reg *registry.Registry, log *provenance.Log, logger *zap.Logger, workers int) *Extractor {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{reg: reg, log: log, logger: logger, workers: workers}
}

// Result 单张 Sheet 的提取结果
type Result struct {
	Records []*model.ExtractedRecord
	Issues  []model.ValidationIssue
	Skipped int
}

// column 已接受映射列的预处理信息
type column struct {
	mapping    model.HeaderMapping
	field      model.CanonicalField
	headerUnit string
	hasUnit    bool
}

type rowResult struct {
	record *model.ExtractedRecord
	issues []model.ValidationIssue
}

// Extract 提取记录；行并行处理，输出顺序与行顺序一致
func (e *Extractor) Extract(sheet model.Sheet, entity model.EntityType, mappings []model.HeaderMapping) Result {
	start := time.Now()
	cols := e.columns(entity, mappings)
	var res Result
	if len(cols) == 0 {
		return res
	}

	rows := make([]rowResult, len(sheet.Rows))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range sheet.Rows {
		g.Go(func() error {
			rows[i] = e.extractRow(sheet, i, entity, cols)
			return nil
		})
	}
	_ = g.Wait()

	for i, rr := range rows {
		if rr.record == nil {
			res.Skipped++
			e.log.Append(model.ProvenanceEntry{
				Stage:    model.StageExtract,
				Sheet:    sheet.Name,
				Subject:  "row " + strconv.Itoa(i+1),
				Decision: "skipped",
				Detail:   "no mapped content",
			})
			continue
		}
		res.Records = append(res.Records, rr.record)
		res.Issues = append(res.Issues, rr.issues...)
	}

	e.log.Append(model.ProvenanceEntry{
		Stage:    model.StageExtract,
		Sheet:    sheet.Name,
		Subject:  string(entity),
		Decision: "extracted",
		Duration: time.Since(start),
		Detail:   fmt.Sprintf("%d records, %d rows skipped, %d issues", len(res.Records), res.Skipped, len(res.Issues)),
	})
	e.logger.Debug("extractor: sheet extracted",
		zap.String("sheet", sheet.Name),
		zap.Int("records", len(res.Records)),
		zap.Int("skipped", res.Skipped))
	return res
}

func (e *Extractor) columns(entity model.EntityType, mappings []model.HeaderMapping) []column {
	var cols []column
	for _, hm := range mappings {
		if !hm.Accepted {
			continue
		}
		f, ok := e.reg.Field(entity, hm.Field)
		if !ok {
			continue
		}
		c := column{mapping: hm, field: f}
		if f.Kind == model.KindNumeric {
			c.headerUnit, c.hasUnit = HeaderUnit(f.UnitClass, hm.Header)
		}
		cols = append(cols, c)
	}
	return cols
}

func (e *Extractor) extractRow(sheet model.Sheet, row int, entity model.EntityType, cols []column) rowResult {
	rec := model.NewRecord(entity, model.RecordSource{Sheet: sheet.Name, Row: row + 1})
	rec.Advance(model.StateMapped)

	var issues []model.ValidationIssue
	content := false
	for _, col := range cols {
		cell := sheet.CellAt(row, col.mapping.ColumnIndex)
		if cell.IsEmpty() {
			continue
		}
		content = true
		fv, issue := e.coerce(col, cell)
		rec.Put(fv)
		if issue != nil {
			issue.Sheet = sheet.Name
			issue.Row = row + 1
			issue.Entity = entity
			issues = append(issues, *issue)
		}
	}
	if !content {
		return rowResult{}
	}

	if idField := registry.IdentifierField(entity); idField != "" {
		rec.ID = rec.Text(idField)
	}
	for i := range issues {
		issues[i].EntityID = rec.ID
	}
	rec.Issues = append(rec.Issues, issues...)
	rec.Advance(model.StateExtracted)
	return rowResult{record: rec, issues: issues}
}

// coerce 单元格 -> 字段值；失败时字段置为未设置并返回问题
func (e *Extractor) coerce(col column, cell model.Cell) (model.FieldValue, *model.ValidationIssue) {
	f := col.field
	fv := model.FieldValue{
		Field:      f.ID,
		Kind:       f.Kind,
		Raw:        cell.String(),
		Column:     col.mapping.ColumnIndex,
		Confidence: col.mapping.Score,
	}
	fail := func(msg string) (model.FieldValue, *model.ValidationIssue) {
		fv.Confidence = 0
		fv.Issue = msg
		return fv, &model.ValidationIssue{
			Severity: model.SeverityWarning,
			Kind:     model.KindFieldCoercionFailure,
			Field:    f.ID,
			Message:  msg,
			RuleID:   RuleCoercion,
		}
	}

	switch f.Kind {
	case model.KindNumeric:
		return e.coerceNumeric(col, cell, fv, fail)
	case model.KindEnum:
		v, ok := CoerceEnum(f, cell.String())
		if !ok {
			return fail(fmt.Sprintf("value %q is not a valid %s", cell.String(), f.ID))
		}
		fv.Set = true
		fv.Text = v
	case model.KindIdentifier:
		fv.Set = true
		fv.Text = CoerceIdentifier(cell)
	default:
		fv.Set = true
		fv.Text = CoerceIdentifier(cell)
	}
	return fv, nil
}

func (e *Extractor) coerceNumeric(col column, cell model.Cell, fv model.FieldValue,
	fail func(string) (model.FieldValue, *model.ValidationIssue)) (model.FieldValue, *model.ValidationIssue) {
	f := col.field

	var value float64
	var token string
	switch cell.Kind {
	case model.CellNumber:
		value = cell.Number
	default:
		if f.UnitClass == model.UnitArea {
			if _, size, ok := ParseCableSpec(cell.Text); ok {
				value = size
				break
			}
		}
		v, unit, ok := ParseNumber(cell.Text)
		if !ok {
			return fail(fmt.Sprintf("value %q is not numeric", cell.Text))
		}
		value, token = v, unit
	}

	fromHeader := false
	if token == "" && col.hasUnit {
		token, fromHeader = col.headerUnit, true
	}

	var issue *model.ValidationIssue
	conv, ok := LookupUnit(f.UnitClass, token)
	if !ok {
		if fromHeader && !looksLikeUnit(token) {
			// 表头括号里是备注而非单位
			conv = linear(1)
		} else {
			conv = linear(1)
			fv.Confidence *= unknownUnitFactor
			fv.Note = fmt.Sprintf("unknown unit %q, assumed %s", token, canonicalUnit(f))
			issue = &model.ValidationIssue{
				Severity: model.SeverityInfo,
				Kind:     model.KindUnknownUnit,
				Field:    f.ID,
				Message:  fv.Note,
				RuleID:   RuleUnit,
			}
		}
	}
	fv.Set = true
	fv.Number = conv.Apply(value)
	fv.Unit = f.Unit
	return fv, issue
}

func canonicalUnit(f model.CanonicalField) string {
	if f.Unit == "" {
		return "unitless"
	}
	return f.Unit
}
