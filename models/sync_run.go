package models

import "time"

// SyncRun status constants.
const (
	SyncRunStatusRunning   = "running"
	SyncRunStatusCompleted = "completed"
	SyncRunStatusFailed    = "failed"
	SyncRunStatusNoop      = "noop"
)

// SyncRun is the persisted record of one price synchronization run.
type SyncRun struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at,omitempty"`
	VariantCount    int       `json:"variant_count"`
	ObjectCount     int64     `json:"object_count"`
	BulkOperationID string    `json:"bulk_operation_id,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// SyncOutcome is what a run that did not crash reports back: either a
// terminal bulk operation (completed or failed upstream) or a no-op when no
// variant needed updating.
type SyncOutcome struct {
	Status       string        `json:"status"` // completed, failed or noop
	VariantCount int           `json:"variant_count"`
	Bulk         BulkOperation `json:"bulk,omitempty"`
}
