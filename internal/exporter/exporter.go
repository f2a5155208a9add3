package exporter

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/registry"
)

// 固定工作表名
const (
	SheetSummary     = "Summary"
	SheetCorrections = "Corrections"
	SheetIssues      = "Issues"
)

// entitySheets 实体 -> 导出工作表名
var entitySheets = map[model.EntityType]string{
	model.EntityLoad:        "Loads",
	model.EntityCable:       "Cables",
	model.EntityBus:         "Buses",
	model.EntityTransformer: "Transformers",
	model.EntityProjectInfo: "Project",
}

// EntitySheet 实体对应的导出工作表名
func EntitySheet(entity model.EntityType) string {
	return entitySheets[entity]
}

// ProgressEvent 导出进度事件（用于 UI 展示）
type ProgressEvent struct {
	Percent int
	Stage   string
}

func reportProgress(progress func(ProgressEvent), percent int, stage string) {
	if progress == nil {
		return
	}
	progress(ProgressEvent{Percent: min(max(percent, 0), 100), Stage: stage})
}

// Exporter 处理报告导出器：汇总、按实体分表的记录、修正与问题清单
type Exporter struct {
	reg *registry.Registry
}

// NewExporter 创建导出器
func NewExporter(reg *registry.Registry) *Exporter {
	if reg == nil {
		reg = registry.MustNew()
	}
	return &Exporter{reg: reg}
}

type styles struct {
	header   int
	review   int
	inferred int
}

// Export 导出报告；调用方负责关闭返回的文件
func (e *Exporter) Export(report *model.ProcessingReport, progress func(ProgressEvent)) (*excelize.File, error) {
	if report == nil {
		return nil, eris.Wrap(model.ErrNilInput, "nil report")
	}
	f := excelize.NewFile()
	st, err := newStyles(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	steps := 3 + len(model.AllEntityTypes())
	step := 0
	next := func(stage string) {
		step++
		reportProgress(progress, step*100/steps, stage)
	}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		_ = f.Close()
		return nil, eris.Wrap(err, "rename summary sheet")
	}
	if err := writeSummary(f, st, report); err != nil {
		_ = f.Close()
		return nil, err
	}
	next(SheetSummary)

	records := report.Records()
	model.SortRecords(records)
	for _, entity := range model.AllEntityTypes() {
		if err := e.writeEntity(f, st, entity, records); err != nil {
			_ = f.Close()
			return nil, err
		}
		next(entitySheets[entity])
	}

	if err := writeCorrections(f, st, report.Corrections); err != nil {
		_ = f.Close()
		return nil, err
	}
	next(SheetCorrections)
	if err := writeIssues(f, st, report.Issues); err != nil {
		_ = f.Close()
		return nil, err
	}
	next(SheetIssues)

	f.SetActiveSheet(0)
	return f, nil
}

// ExportFile 导出并保存到路径
func (e *Exporter) ExportFile(report *model.ProcessingReport, path string) error {
	f, err := e.Export(report, nil)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return eris.Wrapf(f.SaveAs(path), "save report workbook %s", path)
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error
	st.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#8EA9DB", Style: 1},
		},
	})
	if err != nil {
		return st, eris.Wrap(err, "header style")
	}
	st.review, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#FFF2CC"}},
	})
	if err != nil {
		return st, eris.Wrap(err, "review style")
	}
	st.inferred, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Italic: true, Color: "#7F7F7F"},
	})
	if err != nil {
		return st, eris.Wrap(err, "inferred style")
	}
	return st, nil
}

// writeTable 写表头与数据行并冻结表头
func writeTable(f *excelize.File, st styles, sheet string, headers []string, rows [][]any) error {
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return eris.Wrapf(err, "write header of %s", sheet)
	}
	last, err := excelize.CoordinatesToCellName(max(len(headers), 1), 1)
	if err != nil {
		return eris.Wrap(err, "cell name")
	}
	if err := f.SetCellStyle(sheet, "A1", last, st.header); err != nil {
		return eris.Wrapf(err, "style header of %s", sheet)
	}
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return eris.Wrap(err, "cell name")
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return eris.Wrapf(err, "write row %d of %s", r+1, sheet)
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return eris.Wrapf(err, "freeze header of %s", sheet)
	}
	return nil
}

func newSheet(f *excelize.File, name string) error {
	_, err := f.NewSheet(name)
	return eris.Wrapf(err, "create sheet %s", name)
}

func writeSummary(f *excelize.File, st styles, report *model.ProcessingReport) error {
	sum := report.Summarize()
	rows := [][]any{
		{"Run ID", report.RunID},
		{"Started", report.StartedAt.Format(time.RFC3339)},
		{"Finished", report.FinishedAt.Format(time.RFC3339)},
		{"Quality", report.Quality},
		{"Cancelled", report.Cancelled},
		{"Sheets", sum.Sheets},
		{"Processed Sheets", sum.Processed},
		{"Failed Sheets", sum.Failed},
		{"Records", sum.Records},
		{"Accepted", sum.Accepted},
		{"Needs Review", sum.NeedsReview},
		{"Corrections", sum.Corrections},
		{"Errors", sum.Errors},
		{"Warnings", sum.Warnings},
	}
	if err := writeTable(f, st, SheetSummary, []string{"Item", "Value"}, rows); err != nil {
		return err
	}

	// 各 sheet 结果放在汇总项下方
	start := len(rows) + 3
	headers := []any{"Sheet", "Status", "Type", "Confidence", "Records", "Rows Skipped", "Quality", "Error"}
	cell, _ := excelize.CoordinatesToCellName(1, start)
	if err := f.SetSheetRow(SheetSummary, cell, &headers); err != nil {
		return eris.Wrap(err, "write sheet table header")
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), start)
	if err := f.SetCellStyle(SheetSummary, cell, last, st.header); err != nil {
		return eris.Wrap(err, "style sheet table header")
	}
	for i, sh := range report.Sheets {
		sheetType, conf := string(model.SheetTypeUnknown), 0.0
		if sh.Classification != nil {
			sheetType, conf = string(sh.Classification.Type), sh.Classification.Confidence
		}
		row := []any{sh.Name, string(sh.Status), sheetType, conf, len(sh.Records), sh.RowsSkipped, sh.Quality, sh.Error}
		cell, _ := excelize.CoordinatesToCellName(1, start+1+i)
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return eris.Wrapf(err, "write sheet row %s", sh.Name)
		}
	}
	return eris.Wrap(f.SetColWidth(SheetSummary, "A", "A", 22), "summary column width")
}

func (e *Exporter) writeEntity(f *excelize.File, st styles, entity model.EntityType, records []*model.ExtractedRecord) error {
	sheet := entitySheets[entity]
	if err := newSheet(f, sheet); err != nil {
		return err
	}
	fields := e.reg.Fields(entity)
	headers := []string{"State", "Confidence", "Source Sheet", "Source Row"}
	for _, fd := range fields {
		h := fd.ID
		if fd.Unit != "" {
			h = fmt.Sprintf("%s (%s)", fd.ID, fd.Unit)
		}
		headers = append(headers, h)
	}

	var rows [][]any
	var kept []*model.ExtractedRecord
	for _, rec := range records {
		if rec.Entity != entity {
			continue
		}
		src := rec.Source.Sheet
		if rec.Source.Synthesized {
			src = "(synthesized)"
		}
		row := []any{string(rec.State), rec.FinalConfidence, src, rec.Source.Row}
		for _, fd := range fields {
			fv, _ := rec.Lookup(fd.ID)
			row = append(row, fv.Value())
		}
		rows = append(rows, row)
		kept = append(kept, rec)
	}
	if err := writeTable(f, st, sheet, headers, rows); err != nil {
		return err
	}

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	for i, rec := range kept {
		row := i + 2
		if rec.State == model.StateNeedsReview {
			if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", lastCol, row), st.review); err != nil {
				return eris.Wrapf(err, "style review row of %s", sheet)
			}
		}
		for j, fd := range fields {
			fv, ok := rec.Lookup(fd.ID)
			if !ok || !fv.Set || fv.Column >= 0 {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(5+j, row)
			if err := f.SetCellStyle(sheet, cell, cell, st.inferred); err != nil {
				return eris.Wrapf(err, "style inferred cell of %s", sheet)
			}
		}
	}
	return nil
}

func writeCorrections(f *excelize.File, st styles, corrections []model.Correction) error {
	if err := newSheet(f, SheetCorrections); err != nil {
		return err
	}
	rows := make([][]any, 0, len(corrections))
	for _, c := range corrections {
		rows = append(rows, []any{string(c.Entity), c.EntityID, c.Field, c.Prior, c.New, string(c.Reason), c.Sheet, c.Row})
	}
	return writeTable(f, st, SheetCorrections,
		[]string{"Entity", "Entity ID", "Field", "Prior", "New", "Reason", "Sheet", "Row"}, rows)
}

func writeIssues(f *excelize.File, st styles, issues []model.ValidationIssue) error {
	if err := newSheet(f, SheetIssues); err != nil {
		return err
	}
	rows := make([][]any, 0, len(issues))
	for _, is := range issues {
		rows = append(rows, []any{
			strings.ToUpper(string(is.Severity)), string(is.Kind), is.Sheet, is.Row,
			string(is.Entity), is.EntityID, is.Field, is.RuleID, is.Message,
		})
	}
	if err := writeTable(f, st, SheetIssues,
		[]string{"Severity", "Kind", "Sheet", "Row", "Entity", "Entity ID", "Field", "Rule", "Message"}, rows); err != nil {
		return err
	}
	return eris.Wrap(f.SetColWidth(SheetIssues, "I", "I", 80), "issues column width")
}
