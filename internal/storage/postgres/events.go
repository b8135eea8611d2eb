package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rna3dhub/motifatlas/internal/events"
)

// RecordEvent stores a pipeline event.
func (s *PostgresStorage) RecordEvent(ctx context.Context, event *events.PipelineEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	data := event.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO pipeline_events (id, run_id, type, stage, severity, message, data, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.ID, event.RunID, string(event.Type), event.Stage, string(event.Severity),
		event.Message, string(dataJSON), event.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to store event (type=%s, run=%s): %w", event.Type, event.RunID, err)
	}
	return nil
}

// GetEvents retrieves events matching the filter, oldest first.
func (s *PostgresStorage) GetEvents(ctx context.Context, filter events.EventFilter) ([]*events.PipelineEvent, error) {
	query := `
		SELECT id, run_id, type, stage, severity, message, data::text, timestamp
		FROM pipeline_events
		WHERE 1=1
	`
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.RunID != "" {
		query += " AND run_id = " + arg(filter.RunID)
	}
	if filter.Type != "" {
		query += " AND type = " + arg(string(filter.Type))
	}
	if filter.Severity != "" {
		query += " AND severity = " + arg(string(filter.Severity))
	}
	if !filter.AfterTime.IsZero() {
		query += " AND timestamp > " + arg(filter.AfterTime.UTC())
	}
	query += " ORDER BY timestamp ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []*events.PipelineEvent
	for rows.Next() {
		event := &events.PipelineEvent{}
		var typ, sev, dataJSON string
		if err := rows.Scan(&event.ID, &event.RunID, &typ, &event.Stage,
			&sev, &event.Message, &dataJSON, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.Type = events.EventType(typ)
		event.Severity = events.EventSeverity(sev)
		if err := json.Unmarshal([]byte(dataJSON), &event.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// CleanupEvents deletes events older than the retention period. Error and
// critical events use criticalRetentionDays. Deletions run in batches of
// batchSize rows.
func (s *PostgresStorage) CleanupEvents(ctx context.Context, retentionDays, criticalRetentionDays, batchSize int) (int, error) {
	if retentionDays < 0 || criticalRetentionDays < 0 {
		return 0, fmt.Errorf("retention days cannot be negative")
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	now := time.Now()
	total, err := s.deleteOldEventsBatch(ctx, now.AddDate(0, 0, -retentionDays),
		[]string{string(events.SeverityInfo), string(events.SeverityWarning)}, batchSize)
	if err != nil {
		return total, fmt.Errorf("failed to delete old regular events: %w", err)
	}
	deleted, err := s.deleteOldEventsBatch(ctx, now.AddDate(0, 0, -criticalRetentionDays),
		[]string{string(events.SeverityError), string(events.SeverityCritical)}, batchSize)
	total += deleted
	if err != nil {
		return total, fmt.Errorf("failed to delete old critical events: %w", err)
	}
	return total, nil
}

func (s *PostgresStorage) deleteOldEventsBatch(ctx context.Context, cutoff time.Time, severities []string, batchSize int) (int, error) {
	totalDeleted := 0
	for {
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		default:
		}

		tag, err := s.pool.Exec(ctx, `
			DELETE FROM pipeline_events
			WHERE id IN (
				SELECT id FROM pipeline_events
				WHERE timestamp < $1 AND severity = ANY($2)
				ORDER BY timestamp ASC
				LIMIT $3
			)
		`, cutoff.UTC(), severities, batchSize)
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to execute delete: %w", err)
		}
		totalDeleted += int(tag.RowsAffected())
		if tag.RowsAffected() < int64(batchSize) {
			return totalDeleted, nil
		}
	}
}
