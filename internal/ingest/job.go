package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/callsight/ingest/internal/store"
)

// ImportRequest is the entry-point input for one bulk import run.
// The ImportJob row must already exist; this subsystem only mutates it.
type ImportRequest struct {
	JobID          string `json:"job_id"`
	CustomerName   string `json:"customer_name"`
	SourceURL      string `json:"source_url"`
	BucketName     string `json:"bucket_name"`
	UserID         string `json:"user_id"`
	CallLogFileURL string `json:"call_log_file_url,omitempty"`
	Provider       string `json:"provider,omitempty"`
}

const skipCallLogNote = "Call log file not provided; skipped call log import"

const noFilesMessage = "No audio files were found at the provided URL"

// ProcessImportJob discovers audio files at the source URL, deduplicates
// them, and runs each through the file pipeline. Discovery failures and
// failed completion writes propagate to the caller; per-file failures are
// isolated and recorded individually. Re-running a job re-discovers, but
// file record reconciliation keeps it from duplicating rows.
func (imp *Importer) ProcessImportJob(ctx context.Context, req ImportRequest) error {
	log := slog.With(slog.String("job_id", req.JobID), slog.String("source_url", req.SourceURL))

	session := NewSession()
	defer session.Close()

	if req.CallLogFileURL == "" {
		imp.noteSkippedCallLog(ctx, req.JobID)
	}

	bestEffort("job status discovering",
		imp.store.UpdateImportJobStatus(ctx, req.JobID, store.JobDiscovering, 0))

	candidates, err := Discover(ctx, session, req.SourceURL)
	if err != nil {
		log.Error("discovery failed", slog.Any("error", err))
		return err
	}
	log.Info("discovery complete", slog.Int("candidates", len(candidates)))
	bestEffort("persist raw discovery count",
		imp.store.UpdateImportJobStatus(ctx, req.JobID, store.JobDiscovering, len(candidates)))

	unique := dedupCandidates(candidates)
	if len(unique) == 0 {
		log.Info("no audio files discovered, completing job")
		if err := imp.store.CompleteImportJob(ctx, req.JobID, noFilesMessage); err != nil {
			return fmt.Errorf("complete job %s: %w", req.JobID, err)
		}
		return nil
	}

	bestEffort("job status converting",
		imp.store.UpdateImportJobStatus(ctx, req.JobID, store.JobConverting, len(unique)))

	failed := 0
	for _, cand := range unique {
		if err := imp.processFile(ctx, session, req, cand); err != nil {
			failed++
			log.Warn("file pipeline failed",
				slog.String("url", cand.URL), slog.String("name", cand.Name), slog.Any("error", err))
		}
	}
	log.Info("import finished", slog.Int("files", len(unique)), slog.Int("failed", failed))

	if err := imp.store.CompleteImportJob(ctx, req.JobID, ""); err != nil {
		return fmt.Errorf("complete job %s: %w", req.JobID, err)
	}
	return nil
}

// noteSkippedCallLog records that no call-log file URL was supplied.
// Idempotent: the note is never duplicated, and an existing error message
// is preserved by concatenation.
func (imp *Importer) noteSkippedCallLog(ctx context.Context, jobID string) {
	job, err := imp.store.GetImportJob(ctx, jobID)
	if err != nil {
		bestEffort("read job for skip note", err)
		return
	}
	if strings.Contains(job.ErrorMessage, skipCallLogNote) {
		return
	}
	msg := skipCallLogNote
	if job.ErrorMessage != "" {
		msg = job.ErrorMessage + "; " + skipCallLogNote
	}
	bestEffort("record skip note", imp.store.UpdateImportJobError(ctx, jobID, msg))
}
