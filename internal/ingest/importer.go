package ingest

import (
	"context"
	"time"

	"github.com/callsight/ingest/internal/store"
	"github.com/callsight/ingest/internal/transcribe"
)

// Store is the slice of the relational store the pipeline depends on.
// Satisfied by *store.DB.
type Store interface {
	GetImportJob(ctx context.Context, id string) (*store.ImportJob, error)
	UpdateImportJobStatus(ctx context.Context, id, status string, totalFiles int) error
	UpdateImportJobError(ctx context.Context, id, msg string) error
	CompleteImportJob(ctx context.Context, id, msg string) error
	FindFileRecord(ctx context.Context, jobID, originalURL string) (*store.FileRecord, error)
	CreateFileRecord(ctx context.Context, r *store.FileRecord) error
	UpdateFileRecord(ctx context.Context, r *store.FileRecord) error
	FileRecordStatus(ctx context.Context, id string) (string, error)
	CreateCallRecord(ctx context.Context, r *store.CallRecord) error
	EnqueueTranscription(ctx context.Context, callRecordID, status string) error
}

// Storage is the object storage surface the pipeline depends on.
// Satisfied by *storage.Client.
type Storage interface {
	Upload(ctx context.Context, bucket, objectPath string, data []byte) (string, error)
	Sign(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error)
}

// Dispatch hands a transcription request to a background worker. It has no
// return channel; completion is observed through the file record's status.
type Dispatch func(req transcribe.Request)

// Importer drives import jobs end to end.
type Importer struct {
	store    Store
	storage  Storage
	dispatch Dispatch
}

// New creates an importer. dispatch may be nil to disable transcription.
func New(st Store, sg Storage, dispatch Dispatch) *Importer {
	return &Importer{store: st, storage: sg, dispatch: dispatch}
}
