package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
)

// 运行状态
const (
	RunProcessing = "processing"
	RunCompleted  = "completed"
	RunCancelled  = "cancelled"
	RunFailed     = "failed"
)

// RunRecord import_runs 表的一行
type RunRecord struct {
	ID              string     `json:"id"`
	Filename        string     `json:"filename"`
	FileSize        int64      `json:"fileSize"`
	FileHash        string     `json:"fileHash"`
	Status          string     `json:"status"`
	TotalSheets     int        `json:"totalSheets"`
	ProcessedSheets int        `json:"processedSheets"`
	FailedSheets    int        `json:"failedSheets"`
	TotalRecords    int        `json:"totalRecords"`
	AcceptedRecords int        `json:"acceptedRecords"`
	ReviewRecords   int        `json:"reviewRecords"`
	Quality         float64    `json:"quality"`
	Cancelled       bool       `json:"cancelled"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

// CreateRun 创建运行记录（处理中）
func (s *Store) CreateRun(ctx context.Context, id, filename string, fileSize int64, fileHash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_runs (id, filename, file_size, file_hash, status)
		VALUES (?, ?, ?, ?, ?)
	`, id, filename, fileSize, fileHash, RunProcessing)
	return eris.Wrapf(err, "failed to create run %s", id)
}

// FailRun 运行未能开始或中途失败
func (s *Store) FailRun(ctx context.Context, id, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE import_runs SET status = ?, error_message = ?, completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, RunFailed, message, id)
	return eris.Wrapf(err, "failed to mark run %s failed", id)
}

// FinishRun 写入运行报告：汇总、sheet 结果、修正与问题在同一事务中
func (s *Store) FinishRun(ctx context.Context, report *model.ProcessingReport) error {
	if report == nil {
		return eris.Wrap(model.ErrNilInput, "nil report")
	}
	blob, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "failed to encode report")
	}
	sum := report.Summarize()
	status := RunCompleted
	if report.Cancelled {
		status = RunCancelled
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE import_runs SET
				status = ?,
				total_sheets = ?,
				processed_sheets = ?,
				failed_sheets = ?,
				total_records = ?,
				accepted_records = ?,
				review_records = ?,
				quality = ?,
				cancelled = ?,
				report_json = ?,
				completed_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, status, sum.Sheets, sum.Processed, sum.Failed, sum.Records, sum.Accepted, sum.NeedsReview,
			report.Quality, report.Cancelled, string(blob), report.RunID)
		if err != nil {
			return eris.Wrap(err, "failed to update run")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return eris.Wrapf(model.ErrRunNotFound, "run %s", report.RunID)
		}

		for _, sh := range report.Sheets {
			if err := insertSheetResult(ctx, tx, report.RunID, sh); err != nil {
				return err
			}
		}
		if err := insertCorrections(ctx, tx, report.RunID, report.Corrections); err != nil {
			return err
		}
		if err := insertIssues(ctx, tx, report.RunID, report.Issues); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
		`, keyLastRunID, report.RunID)
		return eris.Wrap(err, "failed to record last run")
	})
}

// SaveReport 一次性保存报告（无文件来源的运行）
func (s *Store) SaveReport(ctx context.Context, report *model.ProcessingReport, filename string) error {
	if report == nil {
		return eris.Wrap(model.ErrNilInput, "nil report")
	}
	if err := s.CreateRun(ctx, report.RunID, filename, 0, ""); err != nil {
		return err
	}
	return s.FinishRun(ctx, report)
}

const runColumns = `id, filename, file_size, file_hash, status, total_sheets, processed_sheets, failed_sheets,
	total_records, accepted_records, review_records, quality, cancelled, error_message, created_at, completed_at`

func scanRun(row interface{ Scan(...any) error }) (RunRecord, error) {
	var r RunRecord
	var completed sql.NullTime
	err := row.Scan(&r.ID, &r.Filename, &r.FileSize, &r.FileHash, &r.Status, &r.TotalSheets, &r.ProcessedSheets,
		&r.FailedSheets, &r.TotalRecords, &r.AcceptedRecords, &r.ReviewRecords, &r.Quality, &r.Cancelled,
		&r.ErrorMessage, &r.CreatedAt, &completed)
	if err != nil {
		return r, err
	}
	if completed.Valid {
		t := completed.Time
		r.CompletedAt = &t
	}
	return r, nil
}

// GetRun 按 id 查询运行
func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM import_runs WHERE id = ?", id)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, eris.Wrapf(model.ErrRunNotFound, "run %s", id)
		}
		return r, eris.Wrapf(err, "failed to read run %s", id)
	}
	return r, nil
}

// ListRuns 最近的运行，按创建时间倒序
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM import_runs ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, eris.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "failed to scan run")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadReport 读取运行的完整报告
func (s *Store) LoadReport(ctx context.Context, id string) (*model.ProcessingReport, error) {
	var blob sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT report_json FROM import_runs WHERE id = ?", id).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrRunNotFound, "run %s", id)
		}
		return nil, eris.Wrapf(err, "failed to read report %s", id)
	}
	if !blob.Valid {
		return nil, eris.Wrapf(model.ErrRunNotFound, "run %s has no report", id)
	}
	var report model.ProcessingReport
	if err := json.Unmarshal([]byte(blob.String), &report); err != nil {
		return nil, eris.Wrapf(err, "failed to decode report %s", id)
	}
	return &report, nil
}
