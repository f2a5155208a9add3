package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/rotisserie/eris"
)

const keyLastRunID = "last_run_id"

// SettingAcceptanceFloor 覆盖配置文件中的记录接受阈值
const SettingAcceptanceFloor = "acceptance_floor"

// ErrSettingNotFound 设置项不存在
var ErrSettingNotFound = eris.New("setting not found")

// GetSetting 获取设置项
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", eris.Wrapf(ErrSettingNotFound, "key %s", key)
		}
		return "", eris.Wrapf(err, "failed to read setting %s", key)
	}
	return value, nil
}

// GetSettingFloat 获取浮点数设置项
func (s *Store) GetSettingFloat(ctx context.Context, key string) (float64, error) {
	value, err := s.GetSetting(ctx, key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(value, 64)
	return f, eris.Wrapf(err, "setting %s is not a number", key)
}

// SetSetting 设置项（存在则覆盖）
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return eris.Wrapf(err, "failed to write setting %s", key)
}

// AllSettings 获取全部设置项
func (s *Store) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, eris.Wrap(err, "failed to list settings")
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, eris.Wrap(err, "failed to scan setting")
		}
		out[key] = value
	}
	return out, rows.Err()
}

// LastRunID 最近一次完成的运行
func (s *Store) LastRunID(ctx context.Context) (string, error) {
	return s.GetSetting(ctx, keyLastRunID)
}
