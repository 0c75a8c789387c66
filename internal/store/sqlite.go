package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/metrics-agent/pkg/logger"
)

// SQLiteStore 告警历史的SQLite实现（WAL模式，带索引与保留期清理）
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS alert_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	alert_id VARCHAR(255) NOT NULL,
	rule_name VARCHAR(255) NOT NULL,
	state VARCHAR(20) NOT NULL,
	severity VARCHAR(20),
	metric_name VARCHAR(255),
	metric_value REAL,
	threshold REAL,
	labels TEXT,
	triggered_at TIMESTAMP NOT NULL,
	resolved_at TIMESTAMP,
	last_notified_at TIMESTAMP,
	notification_count INTEGER DEFAULT 0,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_alert_id ON alert_history(alert_id);
CREATE INDEX IF NOT EXISTS idx_state ON alert_history(state);
CREATE INDEX IF NOT EXISTS idx_triggered_at ON alert_history(triggered_at);
CREATE INDEX IF NOT EXISTS idx_rule_name ON alert_history(rule_name);
`

// NewSQLiteStore 打开（必要时创建）告警历史数据库
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	// WAL提升并发读写表现
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init alert_history schema: %w", err)
	}

	logger.Info("alert store initialized", zap.String("path", path))
	return &SQLiteStore{db: db, path: path}, nil
}

// Append 追加一条生命周期记录
func (s *SQLiteStore) Append(event Event) error {
	labelsJSON, err := json.Marshal(event.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO alert_history (
			alert_id, rule_name, state, severity, metric_name,
			metric_value, threshold, labels,
			triggered_at, resolved_at, last_notified_at, notification_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.AlertID,
		event.RuleName,
		event.State,
		event.Severity,
		event.MetricName,
		event.MetricValue,
		event.Threshold,
		string(labelsJSON),
		event.TriggeredAt,
		nullableTime(event.ResolvedAt),
		nullableTime(event.LastNotifiedAt),
		event.NotificationCount,
	)
	if err != nil {
		return fmt.Errorf("insert alert event %s: %w", event.AlertID, err)
	}
	return nil
}

// Query 查询历史记录，最近触发在前
func (s *SQLiteStore) Query(filter Filter) ([]Event, error) {
	var conditions []string
	var args []any

	if filter.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, filter.Severity)
	}
	if filter.State != "" {
		conditions = append(conditions, "state = ?")
		args = append(args, filter.State)
	}
	if filter.RuleName != "" {
		conditions = append(conditions, "rule_name = ?")
		args = append(args, filter.RuleName)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "triggered_at >= ?")
		args = append(args, filter.Since)
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "triggered_at <= ?")
		args = append(args, filter.Until)
	}

	query := `SELECT alert_id, rule_name, state, severity, metric_name,
		metric_value, threshold, labels,
		triggered_at, resolved_at, last_notified_at, notification_count
		FROM alert_history`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY triggered_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alert history: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var labelsJSON string
		var resolvedAt, lastNotifiedAt sql.NullTime

		if err := rows.Scan(
			&event.AlertID, &event.RuleName, &event.State, &event.Severity, &event.MetricName,
			&event.MetricValue, &event.Threshold, &labelsJSON,
			&event.TriggeredAt, &resolvedAt, &lastNotifiedAt, &event.NotificationCount,
		); err != nil {
			return nil, fmt.Errorf("scan alert event: %w", err)
		}

		if labelsJSON != "" {
			if err := json.Unmarshal([]byte(labelsJSON), &event.Labels); err != nil {
				return nil, fmt.Errorf("unmarshal labels for %s: %w", event.AlertID, err)
			}
		}
		if resolvedAt.Valid {
			event.ResolvedAt = &resolvedAt.Time
		}
		if lastNotifiedAt.Valid {
			event.LastNotifiedAt = &lastNotifiedAt.Time
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Cleanup 删除保留期之外的已解决记录，返回删除条数
func (s *SQLiteStore) Cleanup(retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	result, err := s.db.Exec(
		"DELETE FROM alert_history WHERE triggered_at < ? AND state = ?",
		cutoff, StateResolved,
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup alert history: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		logger.Info("cleaned up old alerts",
			zap.Int64("deleted", deleted),
			zap.Int("retention_days", retentionDays))
	}
	return deleted, nil
}

// Close 关闭数据库连接
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
