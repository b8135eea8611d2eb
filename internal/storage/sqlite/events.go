package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rna3dhub/motifatlas/internal/events"
)

// RecordEvent stores a pipeline event.
func (s *SQLiteStorage) RecordEvent(ctx context.Context, event *events.PipelineEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pipeline_events (id, run_id, type, stage, severity, message, data, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.RunID, event.Type, event.Stage, event.Severity, event.Message,
		string(dataJSON), formatTime(event.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to store event (type=%s, run=%s): %w", event.Type, event.RunID, err)
	}
	return nil
}

// GetEvents retrieves events matching the filter, oldest first.
func (s *SQLiteStorage) GetEvents(ctx context.Context, filter events.EventFilter) ([]*events.PipelineEvent, error) {
	query := `
		SELECT id, run_id, type, stage, severity, message, data, timestamp
		FROM pipeline_events
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, filter.Severity)
	}
	if !filter.AfterTime.IsZero() {
		query += " AND timestamp > ?"
		args = append(args, formatTime(filter.AfterTime))
	}

	query += " ORDER BY timestamp ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []*events.PipelineEvent
	for rows.Next() {
		event := &events.PipelineEvent{}
		var dataJSON, ts string
		if err := rows.Scan(&event.ID, &event.RunID, &event.Type, &event.Stage,
			&event.Severity, &event.Message, &dataJSON, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(dataJSON), &event.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		if event.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// CleanupEvents deletes events older than the retention period. Error and
// critical events use criticalRetentionDays. Deletions run in batches of
// batchSize rows.
func (s *SQLiteStorage) CleanupEvents(ctx context.Context, retentionDays, criticalRetentionDays, batchSize int) (int, error) {
	if retentionDays < 0 || criticalRetentionDays < 0 {
		return 0, fmt.Errorf("retention days cannot be negative")
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	now := time.Now()
	total, err := s.deleteOldEventsBatch(ctx, now.AddDate(0, 0, -retentionDays),
		[]events.EventSeverity{events.SeverityInfo, events.SeverityWarning}, batchSize)
	if err != nil {
		return total, fmt.Errorf("failed to delete old regular events: %w", err)
	}
	deleted, err := s.deleteOldEventsBatch(ctx, now.AddDate(0, 0, -criticalRetentionDays),
		[]events.EventSeverity{events.SeverityError, events.SeverityCritical}, batchSize)
	total += deleted
	if err != nil {
		return total, fmt.Errorf("failed to delete old critical events: %w", err)
	}
	return total, nil
}

func (s *SQLiteStorage) deleteOldEventsBatch(ctx context.Context, cutoff time.Time, severities []events.EventSeverity, batchSize int) (int, error) {
	totalDeleted := 0
	for {
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		default:
		}

		placeholders := ""
		args := []interface{}{formatTime(cutoff)}
		for i, sev := range severities {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, string(sev))
		}
		args = append(args, batchSize)

		result, err := s.db.ExecContext(ctx, fmt.Sprintf(`
			DELETE FROM pipeline_events
			WHERE id IN (
				SELECT id FROM pipeline_events
				WHERE timestamp < ?
				AND severity IN (%s)
				ORDER BY timestamp ASC
				LIMIT ?
			)
		`, placeholders), args...)
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to execute delete: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to get rows affected: %w", err)
		}
		totalDeleted += int(rowsAffected)
		if rowsAffected < int64(batchSize) {
			return totalDeleted, nil
		}
	}
}
