package jobs

import (
	"context"
	"time"

	"github.com/dvloznov/statement-converter/internal/domain"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting for a worker.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the handler returned without error.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the handler returned an error. Failed jobs are not retried.
	JobStatusFailed JobStatus = "failed"
)

// ExtractJob asks a worker to extract the transactions of one uploaded document.
type ExtractJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// DocumentID is the store id of the document the result settles.
	DocumentID string `json:"document_id"`

	// File is the uploaded PDF.
	File domain.Upload `json:"-"`

	// ContextHint is free text forwarded to the model.
	ContextHint string `json:"context_hint,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was published.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when a worker picked the job up.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the handler returned.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains the handler error if the job failed.
	Error string `json:"error,omitempty"`
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishExtract enqueues an extraction job.
	PublishExtract(ctx context.Context, job *ExtractJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error marks the job failed; it is never retried.
type JobHandler func(ctx context.Context, job *ExtractJob) error
