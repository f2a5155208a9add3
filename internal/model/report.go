package model

import "time"

// SheetStatus 工作表处理状态
type SheetStatus string

const (
	SheetProcessed    SheetStatus = "processed"
	SheetUnrecognized SheetStatus = "unrecognized"
	SheetFailed       SheetStatus = "failed"
	SheetNotProcessed SheetStatus = "not_processed"
)

// SheetReport 单个工作表的处理结果
type SheetReport struct {
	Index          int                  `json:"index"`
	Name           string               `json:"name"`
	Status         SheetStatus          `json:"status"`
	Classification *SheetClassification `json:"classification,omitempty"`
	Mappings       []HeaderMapping      `json:"mappings"`
	Records        []*ExtractedRecord   `json:"records"`
	Issues         []ValidationIssue    `json:"issues"`
	Quality        float64              `json:"quality"`
	Error          string               `json:"error,omitempty"`
	RowsTotal      int                  `json:"rowsTotal"`
	RowsSkipped    int                  `json:"rowsSkipped"`
}

// ProcessingReport 一次运行的完整报告
type ProcessingReport struct {
	RunID        string             `json:"runId"`
	StartedAt    time.Time          `json:"startedAt"`
	FinishedAt   time.Time          `json:"finishedAt"`
	Sheets       []SheetReport      `json:"sheets"`
	Synthesized  []*ExtractedRecord `json:"synthesized"` // 增强阶段合成的记录
	Corrections  []Correction       `json:"corrections"`
	Issues       []ValidationIssue  `json:"issues"`
	Provenance   []ProvenanceEntry  `json:"provenance"`
	Quality      float64            `json:"quality"`
	Cancelled    bool               `json:"cancelled"`
	Capabilities map[string]bool    `json:"capabilities"`
}

// Records 全部记录（各 sheet 记录 + 合成记录）
func (r *ProcessingReport) Records() []*ExtractedRecord {
	var out []*ExtractedRecord
	for _, s := range r.Sheets {
		out = append(out, s.Records...)
	}
	return append(out, r.Synthesized...)
}

// Sheet 按名称查找 sheet 报告
func (r *ProcessingReport) Sheet(name string) (*SheetReport, bool) {
	for i := range r.Sheets {
		if r.Sheets[i].Name == name {
			return &r.Sheets[i], true
		}
	}
	return nil, false
}

// Summary 报告统计
type Summary struct {
	Sheets      int `json:"sheets"`
	Processed   int `json:"processed"`
	Failed      int `json:"failed"`
	Records     int `json:"records"`
	Accepted    int `json:"accepted"`
	NeedsReview int `json:"needsReview"`
	Corrections int `json:"corrections"`
	Errors      int `json:"errors"`
	Warnings    int `json:"warnings"`
}

// Summarize 计算报告统计
func (r *ProcessingReport) Summarize() Summary {
	s := Summary{Sheets: len(r.Sheets), Corrections: len(r.Corrections)}
	for _, sh := range r.Sheets {
		switch sh.Status {
		case SheetProcessed:
			s.Processed++
		case SheetFailed:
			s.Failed++
		}
	}
	for _, rec := range r.Records() {
		s.Records++
		switch rec.State {
		case StateAccepted:
			s.Accepted++
		case StateNeedsReview:
			s.NeedsReview++
		}
	}
	counts := CountBySeverity(r.Issues)
	s.Errors = counts[SeverityError]
	s.Warnings = counts[SeverityWarning]
	return s
}
