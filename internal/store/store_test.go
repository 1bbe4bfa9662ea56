package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "ingest_test.db")
	d, err := Connect(context.Background(), dsn)
	require.NoError(t, err, "connect and migrate")
	t.Cleanup(func() { d.Close() })
	return d
}

func TestConnectRequiresDSN(t *testing.T) {
	_, err := Connect(context.Background(), "")
	require.Error(t, err)
}

func TestImportJobLifecycle(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	job := &ImportJob{
		SourceURL:    "https://example.com/recordings",
		Bucket:       "recordings",
		CustomerName: "Acme",
		UserID:       "user-1",
		Status:       JobDiscovering,
	}
	require.NoError(t, d.CreateImportJob(ctx, job))
	require.NotEmpty(t, job.ID, "id generated on insert")

	got, err := d.GetImportJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, "Acme", got.CustomerName)
	require.Equal(t, JobDiscovering, got.Status)
	require.Nil(t, got.CompletedAt)

	require.NoError(t, d.UpdateImportJobStatus(ctx, job.ID, JobConverting, 7))
	require.NoError(t, d.UpdateImportJobError(ctx, job.ID, "partial failure"))

	got, err = d.GetImportJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, JobConverting, got.Status)
	require.Equal(t, 7, got.TotalFiles)
	require.Equal(t, "partial failure", got.ErrorMessage)

	require.NoError(t, d.CompleteImportJob(ctx, job.ID, "No audio files were found at the provided URL"))
	got, err = d.GetImportJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, JobCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.Equal(t, "No audio files were found at the provided URL", got.ErrorMessage)
}

func TestCompleteImportJobKeepsErrorMessage(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	job := &ImportJob{SourceURL: "https://x", Status: JobConverting}
	require.NoError(t, d.CreateImportJob(ctx, job))
	require.NoError(t, d.UpdateImportJobError(ctx, job.ID, "kept"))

	// empty completion message must not clear an existing error
	require.NoError(t, d.CompleteImportJob(ctx, job.ID, ""))
	got, err := d.GetImportJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, "kept", got.ErrorMessage)
}

func TestFileRecordReconciliationKey(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	missing, err := d.FindFileRecord(ctx, "job-1", "https://x/a.mp3")
	require.NoError(t, err)
	require.Nil(t, missing, "absent record is (nil, nil), not an error")

	rec := &FileRecord{
		JobID:       "job-1",
		FileName:    "a.mp3",
		FileFormat:  ".mp3",
		OriginalURL: "https://x/a.mp3",
		Status:      FilePending,
	}
	require.NoError(t, d.CreateFileRecord(ctx, rec))
	require.NotEmpty(t, rec.ID)

	found, err := d.FindFileRecord(ctx, "job-1", "https://x/a.mp3")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, rec.ID, found.ID)

	// same URL under a different job is a different record
	other, err := d.FindFileRecord(ctx, "job-2", "https://x/a.mp3")
	require.NoError(t, err)
	require.Nil(t, other)

	found.StoragePath = "user-1/job-1/a.mp3"
	found.Status = FileUploaded
	require.NoError(t, d.UpdateFileRecord(ctx, found))

	status, err := d.FileRecordStatus(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, FileUploaded, status)

	require.NoError(t, d.UpdateFileRecordStatus(ctx, rec.ID, FileFailed, "download failed"))
	again, err := d.FindFileRecord(ctx, "job-1", "https://x/a.mp3")
	require.NoError(t, err)
	require.Equal(t, FileFailed, again.Status)
	require.Equal(t, "download failed", again.ErrorMessage)
	require.Equal(t, "user-1/job-1/a.mp3", again.StoragePath)
}

func TestCreateCallRecordAndEnqueue(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	call := &CallRecord{
		JobID:        "job-1",
		UserID:       "user-1",
		CustomerName: "Acme",
		FileName:     "a.mp3",
		StoragePath:  "user-1/job-1/a.mp3",
		BucketName:   "recordings",
	}
	require.NoError(t, d.CreateCallRecord(ctx, call))
	require.NotEmpty(t, call.ID)

	require.NoError(t, d.EnqueueTranscription(ctx, call.ID, FilePending))

	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transcription_queue WHERE call_record_id = ?`, call.ID).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestRebind(t *testing.T) {
	pg := &DB{postgres: true}
	lite := &DB{postgres: false}

	q := `INSERT INTO t (a, b, c) VALUES (?, ?, ?)`
	require.Equal(t, `INSERT INTO t (a, b, c) VALUES ($1, $2, $3)`, pg.rebind(q))
	require.Equal(t, q, lite.rebind(q))
}
