package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
)

func insertCorrections(ctx context.Context, tx *sql.Tx, runID string, corrections []model.Correction) error {
	if len(corrections) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO corrections (run_id, entity, entity_id, field, prior, new_value, reason, sheet_name, row_no, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return eris.Wrap(err, "failed to prepare correction insert")
	}
	defer stmt.Close()

	for _, c := range corrections {
		if _, err := stmt.ExecContext(ctx, runID, string(c.Entity), c.EntityID, c.Field, c.Prior, c.New,
			string(c.Reason), c.Sheet, c.Row, c.Timestamp.UTC()); err != nil {
			return eris.Wrapf(err, "failed to insert correction for %s", c.EntityID)
		}
	}
	return nil
}

func insertIssues(ctx context.Context, tx *sql.Tx, runID string, issues []model.ValidationIssue) error {
	if len(issues) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO issues (run_id, severity, kind, rule_id, entity, entity_id, sheet_name, row_no, field, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return eris.Wrap(err, "failed to prepare issue insert")
	}
	defer stmt.Close()

	for _, is := range issues {
		if _, err := stmt.ExecContext(ctx, runID, string(is.Severity), string(is.Kind), is.RuleID, string(is.Entity),
			is.EntityID, is.Sheet, is.Row, is.Field, is.Message); err != nil {
			return eris.Wrap(err, "failed to insert issue")
		}
	}
	return nil
}

// RunCorrections 运行的修正列表（按写入顺序）
func (s *Store) RunCorrections(ctx context.Context, runID string) ([]model.Correction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity, entity_id, field, prior, new_value, reason, sheet_name, row_no, created_at
		FROM corrections WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "failed to query corrections")
	}
	defer rows.Close()

	var out []model.Correction
	for rows.Next() {
		var c model.Correction
		var entity, reason string
		if err := rows.Scan(&entity, &c.EntityID, &c.Field, &c.Prior, &c.New, &reason,
			&c.Sheet, &c.Row, &c.Timestamp); err != nil {
			return nil, eris.Wrap(err, "failed to scan correction")
		}
		c.Entity = model.EntityType(entity)
		c.Reason = model.CorrectionReason(reason)
		out = append(out, c)
	}
	return out, rows.Err()
}

// RunIssues 运行的问题列表；minSeverity 为空时返回全部
func (s *Store) RunIssues(ctx context.Context, runID string, minSeverity model.Severity) ([]model.ValidationIssue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT severity, kind, rule_id, entity, entity_id, sheet_name, row_no, field, message
		FROM issues WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "failed to query issues")
	}
	defer rows.Close()

	var out []model.ValidationIssue
	for rows.Next() {
		var is model.ValidationIssue
		var sev, kind, entity string
		if err := rows.Scan(&sev, &kind, &is.RuleID, &entity, &is.EntityID, &is.Sheet, &is.Row,
			&is.Field, &is.Message); err != nil {
			return nil, eris.Wrap(err, "failed to scan issue")
		}
		is.Severity = model.Severity(sev)
		is.Kind = model.IssueKind(kind)
		is.Entity = model.EntityType(entity)
		if minSeverity != "" && is.Severity.Rank() < minSeverity.Rank() {
			continue
		}
		out = append(out, is)
	}
	return out, rows.Err()
}
