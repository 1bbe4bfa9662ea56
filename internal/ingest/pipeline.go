package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/callsight/ingest/internal/store"
)

// processFile runs the per-candidate pipeline:
// download → size/format gates → record reconciliation → upload →
// call record → transcription trigger. Any failure is recorded on the
// file record and isolated to this file; the job loop continues.
func (imp *Importer) processFile(ctx context.Context, s *Session, req ImportRequest, cand Candidate) error {
	err := imp.runFilePipeline(ctx, s, req, cand)
	if err != nil {
		metrics.FilesFailed.Add(1)
		imp.recordFileFailure(ctx, req.JobID, cand, err)
	}
	return err
}

func (imp *Importer) runFilePipeline(ctx context.Context, s *Session, req ImportRequest, cand Candidate) error {
	metrics.Downloads.Add(1)
	resp, err := s.Get(ctx, cand.URL)
	if err != nil {
		metrics.DownloadErrors.Add(1)
		return transientErrorf(err, "Failed to download %s", cand.URL)
	}
	if resp.Status != http.StatusOK {
		metrics.DownloadErrors.Add(1)
		return transientErrorf(nil, "Failed to download %s: status %d", cand.URL, resp.Status)
	}
	data := resp.Body

	if int64(len(data)) > cfg.MaxFileBytes {
		return validationErrorf("File too large: %d bytes exceeds the %d byte limit", len(data), cfg.MaxFileBytes)
	}

	ext, err := CheckFormat(cand.Name)
	if err != nil {
		return err
	}

	rec, err := imp.reconcileFileRecord(ctx, req.JobID, cand, ext)
	if err != nil {
		return err
	}

	objectPath := fmt.Sprintf("%s/%s/%s", req.UserID, req.JobID, cand.Name)
	stored, err := imp.storage.Upload(ctx, req.BucketName, objectPath, data)
	if err != nil {
		metrics.UploadErrors.Add(1)
		return transientErrorf(err, "Failed to upload %s", cand.Name)
	}
	if stored == "" {
		stored = objectPath
	}
	metrics.Uploads.Add(1)

	rec.StoragePath = stored
	rec.Status = store.FileUploaded
	rec.ErrorMessage = ""
	if err := imp.store.UpdateFileRecord(ctx, rec); err != nil {
		return fmt.Errorf("update file record %s: %w", rec.ID, err)
	}

	call := &store.CallRecord{
		JobID:        req.JobID,
		UserID:       req.UserID,
		CustomerName: req.CustomerName,
		FileName:     cand.Name,
		StoragePath:  stored,
		BucketName:   req.BucketName,
	}
	if err := imp.store.CreateCallRecord(ctx, call); err != nil {
		return fmt.Errorf("create call record: %w", err)
	}

	imp.triggerTranscription(ctx, TriggerInput{
		CallRecordID: call.ID,
		StoragePath:  stored,
		Bucket:       req.BucketName,
		FileName:     cand.Name,
		UserID:       req.UserID,
		CustomerName: req.CustomerName,
		Provider:     req.Provider,
		FileID:       rec.ID,
	})
	return nil
}

// reconcileFileRecord looks up the record by (job_id, original_url) and
// updates it in place, keeping re-runs idempotent. A failed lookup is
// treated as absent rather than aborting the file.
func (imp *Importer) reconcileFileRecord(ctx context.Context, jobID string, cand Candidate, ext string) (*store.FileRecord, error) {
	existing, err := imp.store.FindFileRecord(ctx, jobID, cand.URL)
	if err != nil {
		slog.Warn("file record lookup failed, creating new record",
			slog.String("job_id", jobID), slog.String("url", cand.URL), slog.Any("error", err))
		existing = nil
	}

	if existing != nil {
		existing.FileName = cand.Name
		existing.FileFormat = ext
		existing.Status = store.FilePending
		existing.ErrorMessage = ""
		if err := imp.store.UpdateFileRecord(ctx, existing); err != nil {
			return nil, fmt.Errorf("update file record %s: %w", existing.ID, err)
		}
		return existing, nil
	}

	rec := &store.FileRecord{
		JobID:       jobID,
		FileName:    cand.Name,
		FileFormat:  ext,
		OriginalURL: cand.URL,
		Status:      store.FilePending,
	}
	if err := imp.store.CreateFileRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("create file record: %w", err)
	}
	return rec, nil
}

// recordFileFailure writes the failure onto the file record, best-effort:
// a second failure while persisting the error is swallowed, never re-raised.
func (imp *Importer) recordFileFailure(ctx context.Context, jobID string, cand Candidate, cause error) {
	rec, err := imp.store.FindFileRecord(ctx, jobID, cand.URL)
	if err != nil || rec == nil {
		rec = &store.FileRecord{
			JobID:        jobID,
			FileName:     cand.Name,
			OriginalURL:  cand.URL,
			Status:       store.FileFailed,
			ErrorMessage: cause.Error(),
		}
		bestEffort("create failed file record", imp.store.CreateFileRecord(ctx, rec))
		return
	}
	rec.Status = store.FileFailed
	rec.ErrorMessage = cause.Error()
	bestEffort("persist file failure", imp.store.UpdateFileRecord(ctx, rec))
}
