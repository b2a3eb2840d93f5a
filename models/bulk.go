package models

// Bulk operation status values as reported by the platform.
const (
	BulkStatusCreated   = "CREATED"
	BulkStatusRunning   = "RUNNING"
	BulkStatusCanceling = "CANCELING"
	BulkStatusCompleted = "COMPLETED"
	BulkStatusFailed    = "FAILED"
	BulkStatusCanceled  = "CANCELED"
)

// BulkOperation is one poll snapshot of the platform-side bulk mutation.
type BulkOperation struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ErrorCode   string `json:"errorCode,omitempty"`
	ObjectCount int64  `json:"objectCount"`
}

// Terminal reports whether the operation has reached a final status and
// polling should stop.
func (op BulkOperation) Terminal() bool {
	switch op.Status {
	case BulkStatusCompleted, BulkStatusFailed, BulkStatusCanceled:
		return true
	}
	return false
}

// Succeeded reports whether the operation finished processing every line.
func (op BulkOperation) Succeeded() bool {
	return op.Status == BulkStatusCompleted
}
