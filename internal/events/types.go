package events

import (
	"fmt"
	"time"
)

// EventType represents the type of event emitted by a pipeline run.
type EventType string

const (
	// EventTypeStageStarted indicates a pipeline stage began
	EventTypeStageStarted EventType = "stage_started"
	// EventTypeStageCompleted indicates a pipeline stage finished successfully
	EventTypeStageCompleted EventType = "stage_completed"
	// EventTypeStageFailed indicates a pipeline stage returned an error
	EventTypeStageFailed EventType = "stage_failed"
	// EventTypeStageSkipped indicates a stage was skipped, either on request
	// or because an earlier failure was tolerated
	EventTypeStageSkipped EventType = "stage_skipped"
	// EventTypeReleaseCreated indicates a release was persisted
	EventTypeReleaseCreated EventType = "release_created"
)

// IsValid checks if the event type value is valid
func (t EventType) IsValid() bool {
	switch t {
	case EventTypeStageStarted, EventTypeStageCompleted, EventTypeStageFailed,
		EventTypeStageSkipped, EventTypeReleaseCreated:
		return true
	}
	return false
}

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo indicates informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning indicates potentially problematic events
	SeverityWarning EventSeverity = "warning"
	// SeverityError indicates error events
	SeverityError EventSeverity = "error"
	// SeverityCritical indicates events that aborted a run
	SeverityCritical EventSeverity = "critical"
)

// IsValid checks if the severity value is valid
func (s EventSeverity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// PipelineEvent is one entry in the run log of the pipeline.
type PipelineEvent struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// RunID groups the events of one pipeline invocation
	RunID string `json:"run_id"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Stage names the pipeline stage, empty for run level events
	Stage string `json:"stage,omitempty"`
	// Severity is the severity level of this event
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description of the event
	Message string `json:"message"`
	// Data contains structured, type-specific data (must be JSON-serializable)
	Data map[string]interface{} `json:"data,omitempty"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks the required fields of the event.
func (e *PipelineEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event id is required")
	}
	if e.RunID == "" {
		return fmt.Errorf("event %s: run id is required", e.ID)
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("event %s: invalid type %q", e.ID, e.Type)
	}
	if !e.Severity.IsValid() {
		return fmt.Errorf("event %s: invalid severity %q", e.ID, e.Severity)
	}
	if e.Type != EventTypeReleaseCreated && e.Stage == "" {
		return fmt.Errorf("event %s: %s requires a stage", e.ID, e.Type)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("event %s: timestamp is required", e.ID)
	}
	return nil
}

// StageData contains structured data for stage events.
type StageData struct {
	// Items is the number of things the stage produced (pairs, groups, rows)
	Items int `json:"items"`
	// Duration is how long the stage ran
	Duration time.Duration `json:"duration"`
	// Error is the failure message for failed or skipped stages
	Error string `json:"error,omitempty"`
}

// ReleaseCreatedData contains structured data for release_created events.
type ReleaseCreatedData struct {
	ReleaseID string `json:"release_id"`
	LoopType  string `json:"loop_type"`
	Motifs    int    `json:"motifs"`
	New       int    `json:"new"`
	Updated   int    `json:"updated"`
	Exact     int    `json:"exact"`
}

// EventFilter is used to query events from storage.
type EventFilter struct {
	// RunID filters events by pipeline run
	RunID string
	// Type filters events by event type
	Type EventType
	// Severity filters events by severity level
	Severity EventSeverity
	// AfterTime filters events that occurred after this time
	AfterTime time.Time
	// Limit limits the number of events returned
	Limit int
}
