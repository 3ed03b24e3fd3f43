package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chris576/Gluon/eventing"
)

// SQLJournal 基于 database/sql 的事件日志
//
// 驱动由使用方注入（例如 modernc.org/sqlite 做匿名导入）。
// 表结构由 Init 创建，payload 以 JSON 存储。
type SQLJournal struct {
	db        *sql.DB
	tableName string
}

// NewSQLJournal 创建 SQL 事件日志
func NewSQLJournal(db *sql.DB, tableName string) *SQLJournal {
	if tableName == "" {
		tableName = "event_journal"
	}
	return &SQLJournal{db: db, tableName: tableName}
}

// Init 建表（幂等）
func (j *SQLJournal) Init(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		aggregate_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT,
		version INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`, j.tableName)

	if _, err := j.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to initialize journal table %s: %w", j.tableName, err)
	}
	return nil
}

// Append 追加事件
func (j *SQLJournal) Append(ctx context.Context, evt *eventing.Event) error {
	if err := evt.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (id, aggregate_id, event_type, payload, version, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		j.tableName)

	_, err = j.db.ExecContext(ctx, query,
		evt.ID, evt.AggregateID, evt.Type, string(payload), evt.Version, evt.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append event %s: %w", evt.ID, err)
	}
	return nil
}

// Events 返回聚合的事件序列（按版本升序）
func (j *SQLJournal) Events(ctx context.Context, aggregateID string) ([]*eventing.Event, error) {
	query := fmt.Sprintf(
		"SELECT id, aggregate_id, event_type, payload, version, created_at FROM %s WHERE aggregate_id = ? ORDER BY version ASC",
		j.tableName)

	rows, err := j.db.QueryContext(ctx, query, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for aggregate %s: %w", aggregateID, err)
	}
	defer rows.Close()

	var events []*eventing.Event
	for rows.Next() {
		var (
			evt       eventing.Event
			payload   string
			createdAt time.Time
		)
		if err := rows.Scan(&evt.ID, &evt.AggregateID, &evt.Type, &payload, &evt.Version, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		evt.Timestamp = createdAt

		if payload != "" && payload != "null" {
			var body any
			if err := json.Unmarshal([]byte(payload), &body); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload of event %s: %w", evt.ID, err)
			}
			evt.Payload = body
		}
		events = append(events, &evt)
	}
	return events, rows.Err()
}

// Len 已记录的事件总数
func (j *SQLJournal) Len(ctx context.Context) (int, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", j.tableName)
	if err := j.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count journal events: %w", err)
	}
	return count, nil
}
