package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a render job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// RenderJob is the durable record of one asynchronous video render.
// ResultRef and ErrorMessage are mutually exclusive once the job is terminal.
type RenderJob struct {
	ID           uuid.UUID       `json:"id"`
	OwnerID      string          `json:"owner_id"`
	DeckID       uuid.UUID       `json:"deck_id"`
	Status       JobStatus       `json:"status"`
	Payload      json.RawMessage `json:"input_payload"`
	ResultRef    *string         `json:"result_reference"`
	ErrorMessage *string         `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
