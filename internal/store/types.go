package store

import "time"

// Import job statuses. Transitions are monotonic:
// discovering → converting → completed.
const (
	JobDiscovering = "discovering"
	JobConverting  = "converting"
	JobCompleted   = "completed"
)

// File record statuses. pending → uploaded|failed inside the import
// pipeline; the transcription subsystem later moves uploaded records to
// completed or failed.
const (
	FilePending   = "pending"
	FileUploaded  = "uploaded"
	FileFailed    = "failed"
	FileCompleted = "completed"
)

// ImportJob tracks one bulk import run. Created by the caller before the
// pipeline starts; mutated only by the orchestrator.
type ImportJob struct {
	ID           string     `json:"id"`
	SourceURL    string     `json:"source_url"`
	Bucket       string     `json:"bucket"`
	CustomerName string     `json:"customer_name"`
	UserID       string     `json:"user_id"`
	Status       string     `json:"status"`
	TotalFiles   int        `json:"total_files"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// FileRecord tracks one discovered file within a job, keyed for
// reconciliation by (job_id, original_url).
type FileRecord struct {
	ID           string `json:"id"`
	JobID        string `json:"job_id"`
	FileName     string `json:"file_name"`
	FileFormat   string `json:"file_format"`
	OriginalURL  string `json:"original_url"`
	StoragePath  string `json:"storage_path"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// CallRecord is created once the audio is durably stored; its id is the
// handle passed to transcription.
type CallRecord struct {
	ID           string `json:"id"`
	JobID        string `json:"job_id"`
	UserID       string `json:"user_id"`
	CustomerName string `json:"customer_name"`
	FileName     string `json:"file_name"`
	StoragePath  string `json:"storage_path"`
	BucketName   string `json:"bucket_name"`
}
