package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
)

// SheetResult sheet_results 表的一行
type SheetResult struct {
	Index         int               `json:"index"`
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Confidence    float64           `json:"confidence"`
	Status        string            `json:"status"`
	Quality       float64           `json:"quality"`
	TotalRows     int               `json:"totalRows"`
	SkippedRows   int               `json:"skippedRows"`
	RecordCount   int               `json:"recordCount"`
	Columns       []string          `json:"columns"`
	ColumnMapping map[string]string `json:"columnMapping"`
	ErrorMessage  string            `json:"errorMessage,omitempty"`
}

// BuildColumnsJSON 将列名序列化为 JSON
func BuildColumnsJSON(columns []string) string {
	if columns == nil {
		columns = []string{}
	}
	b, err := json.Marshal(columns)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// buildMappingJSON 已接受映射：表头 -> 规范字段
func buildMappingJSON(mappings []model.HeaderMapping) string {
	m := make(map[string]string)
	for _, hm := range mappings {
		if hm.Accepted {
			m[hm.Header] = hm.Field
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func insertSheetResult(ctx context.Context, tx *sql.Tx, runID string, sh model.SheetReport) error {
	sheetType, confidence := string(model.SheetTypeUnknown), 0.0
	if sh.Classification != nil {
		sheetType, confidence = string(sh.Classification.Type), sh.Classification.Confidence
	}
	headers := make([]string, 0, len(sh.Mappings))
	for _, hm := range sh.Mappings {
		headers = append(headers, hm.Header)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sheet_results (
			run_id, sheet_index, sheet_name, sheet_type, confidence,
			status, quality, total_rows, skipped_rows, record_count,
			columns_json, column_mapping_json, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID, sh.Index, sh.Name, sheetType, confidence,
		string(sh.Status), sh.Quality, sh.RowsTotal, sh.RowsSkipped, len(sh.Records),
		BuildColumnsJSON(headers), buildMappingJSON(sh.Mappings), sh.Error,
	)
	return eris.Wrapf(err, "failed to insert sheet result %s", sh.Name)
}

// SheetResults 运行的 sheet 结果，按 sheet 顺序
func (s *Store) SheetResults(ctx context.Context, runID string) ([]SheetResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sheet_index, sheet_name, sheet_type, confidence, status, quality,
			total_rows, skipped_rows, record_count, columns_json, column_mapping_json, error_message
		FROM sheet_results WHERE run_id = ? ORDER BY sheet_index
	`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "failed to query sheet results")
	}
	defer rows.Close()

	var out []SheetResult
	for rows.Next() {
		var r SheetResult
		var cols, mapping string
		if err := rows.Scan(&r.Index, &r.Name, &r.Type, &r.Confidence, &r.Status, &r.Quality,
			&r.TotalRows, &r.SkippedRows, &r.RecordCount, &cols, &mapping, &r.ErrorMessage); err != nil {
			return nil, eris.Wrap(err, "failed to scan sheet result")
		}
		if err := json.Unmarshal([]byte(cols), &r.Columns); err != nil {
			return nil, eris.Wrap(err, "failed to decode columns")
		}
		if err := json.Unmarshal([]byte(mapping), &r.ColumnMapping); err != nil {
			return nil, eris.Wrap(err, "failed to decode column mapping")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
