package events

import (
	"time"

	"github.com/google/uuid"
)

// NewRunID returns a fresh pipeline run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// NewStageEvent creates a stage event with type-safe data.
func NewStageEvent(runID string, typ EventType, stage string, severity EventSeverity, message string, data StageData) (*PipelineEvent, error) {
	event := &PipelineEvent{
		ID:        uuid.New().String(),
		RunID:     runID,
		Type:      typ,
		Stage:     stage,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now(),
	}
	if err := event.SetStageData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewReleaseCreatedEvent creates a release_created event with type-safe data.
func NewReleaseCreatedEvent(runID, message string, data ReleaseCreatedData) (*PipelineEvent, error) {
	event := &PipelineEvent{
		ID:        uuid.New().String(),
		RunID:     runID,
		Type:      EventTypeReleaseCreated,
		Severity:  SeverityInfo,
		Message:   message,
		Timestamp: time.Now(),
	}
	if err := event.SetReleaseCreatedData(data); err != nil {
		return nil, err
	}
	return event, nil
}
